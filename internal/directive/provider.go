// Package directive offers directive completions at '@' transitions.
package directive

import (
	"go.uber.org/zap"

	"github.com/woxQAQ/unified-markup-lsp/internal/addon"
	"github.com/woxQAQ/unified-markup-lsp/internal/syntax"
	"github.com/woxQAQ/unified-markup-lsp/pkg/markup"
)

// CatalogSource supplies the add-on catalog current at call time.
type CatalogSource interface {
	Catalog() *addon.Catalog
}

// Provider produces directive candidates from the syntax tree.
type Provider struct {
	catalog CatalogSource
	logger  *zap.Logger
}

// NewProvider creates a provider. catalog may be nil, in which case only
// built-in directives are offered.
func NewProvider(catalog CatalogSource, logger *zap.Logger) *Provider {
	return &Provider{
		catalog: catalog,
		logger:  logger.With(zap.String("component", "directive-provider")),
	}
}

// Complete returns candidates for the cursor at offset. Directives are only
// valid in a transition that starts its line (after optional indentation);
// anywhere else the result is empty. Control keywords are valid at any
// transition.
func (p *Provider) Complete(tree *syntax.Tree, offset int) []markup.Candidate {
	node := tree.NodeAt(offset)
	if node == nil || node.Kind != syntax.NodeTransition || offset < node.NameSpan.Start {
		return nil
	}

	var out []markup.Candidate
	if tree.LeadingWhitespace(node.Span.Start) {
		out = p.directives()
	}
	for _, kw := range Keywords {
		out = append(out, markup.Candidate{
			Kind:        markup.KindKeyword,
			DisplayText: kw,
			InsertText:  kw,
		})
	}

	p.logger.Debug("Directive candidates",
		zap.Int("offset", offset),
		zap.String("prefix", node.Name),
		zap.Int("count", len(out)),
	)
	return out
}

func (p *Provider) directives() []markup.Candidate {
	out := make([]markup.Candidate, 0, len(Builtins))
	for _, b := range Builtins {
		out = append(out, candidate(b.Name, b.Summary))
	}

	if p.catalog == nil {
		return out
	}
	for _, d := range p.catalog.Catalog().Directives() {
		if IsBuiltin(d.Name) {
			continue
		}
		out = append(out, candidate(d.Name, d.Summary))
	}
	return out
}

func candidate(name, summary string) markup.Candidate {
	return markup.Candidate{
		Kind:        markup.KindDirective,
		DisplayText: name,
		InsertText:  name,
		Description: summary,
		Payload:     markup.DirectiveDescription{Directive: name, Summary: summary},
	}
}

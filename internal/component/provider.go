// Package component offers component element and attribute completions
// inside start tags.
package component

import (
	"go.lsp.dev/protocol"
	"go.uber.org/zap"

	"github.com/woxQAQ/unified-markup-lsp/internal/addon"
	"github.com/woxQAQ/unified-markup-lsp/internal/document"
	"github.com/woxQAQ/unified-markup-lsp/internal/syntax"
	"github.com/woxQAQ/unified-markup-lsp/pkg/markup"
)

// CatalogSource supplies the add-on catalog current at call time.
type CatalogSource interface {
	Catalog() *addon.Catalog
}

// Provider produces semantic completion items from the add-on catalog.
type Provider struct {
	catalog CatalogSource
	logger  *zap.Logger
}

// NewProvider creates a provider over catalog.
func NewProvider(catalog CatalogSource, logger *zap.Logger) *Provider {
	return &Provider{
		catalog: catalog,
		logger:  logger.With(zap.String("component", "component-provider")),
	}
}

// Complete returns element items while the cursor is on a tag name and
// attribute items while it is past the name of a known component's start
// tag. Every item carries a self-contained description payload in Data.
func (p *Provider) Complete(offset int, snap *document.Snapshot) []protocol.CompletionItem {
	tree := snap.Analysis()
	node := tree.NodeAt(offset)
	if node == nil || node.Kind != syntax.NodeStartTag {
		return nil
	}

	catalog := p.catalog.Catalog()

	if offset >= node.NameSpan.Start && offset <= node.NameSpan.End() {
		return elementItems(catalog)
	}
	if offset > node.NameSpan.End() {
		return p.attributeItems(catalog, tree.Source, node, offset)
	}
	return nil
}

func elementItems(catalog *addon.Catalog) []protocol.CompletionItem {
	components := catalog.Components()
	items := make([]protocol.CompletionItem, 0, len(components))

	for _, c := range components {
		// A name shadowed by an earlier component needs its namespace.
		label := c.Name
		if first, _ := catalog.Component(c.Name); first.QualifiedName() != c.QualifiedName() {
			label = c.QualifiedName()
		}

		items = append(items, protocol.CompletionItem{
			Label:      label,
			InsertText: label,
			FilterText: label,
			Detail:     c.QualifiedName(),
			Kind:       protocol.CompletionItemKindClass,
			Data: markup.Encode(markup.ElementDescription{
				Component: c.Name,
				Namespace: c.Namespace,
				Summary:   c.Summary,
			}),
		})
	}
	return items
}

func (p *Provider) attributeItems(catalog *addon.Catalog, source string, node *syntax.Node, offset int) []protocol.CompletionItem {
	present := make(map[string]bool, len(node.Attributes))
	for _, a := range node.Attributes {
		if a.HasValue && insideValue(source, a.ValueSpan, offset) {
			return nil
		}
		if a.NameSpan.Contains(offset) {
			// The attribute being typed.
			continue
		}
		present[a.Name] = true
	}

	comp, ok := catalog.Component(node.Name)
	if !ok {
		p.logger.Debug("No component for tag", zap.String("tag", node.Name))
		return nil
	}

	items := make([]protocol.CompletionItem, 0, len(comp.Attributes))
	for _, a := range comp.Attributes {
		if present[a.Name] {
			continue
		}
		items = append(items, protocol.CompletionItem{
			Label:      a.Name,
			InsertText: a.Name,
			FilterText: a.Name,
			Detail:     a.Type,
			Kind:       protocol.CompletionItemKindProperty,
			Data: markup.Encode(markup.AttributeDescription{
				Component: comp.Name,
				Attribute: a.Name,
				Type:      a.Type,
				Summary:   a.Summary,
			}),
		})
	}
	return items
}

// insideValue reports whether offset is inside an attribute value. The end of
// an unterminated quoted value still counts as inside.
func insideValue(source string, span markup.Span, offset int) bool {
	if offset <= span.Start || offset > span.End() {
		return false
	}
	if offset < span.End() {
		return true
	}
	raw := source[span.Start:span.End()]
	if raw[0] != '"' && raw[0] != '\'' {
		// Bare values end at whitespace; the cursor right after one is
		// still typing it.
		return true
	}
	return len(raw) == 1 || raw[len(raw)-1] != raw[0]
}

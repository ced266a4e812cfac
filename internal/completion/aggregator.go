package completion

import (
	"context"

	"go.lsp.dev/protocol"
	"go.uber.org/zap"

	"github.com/woxQAQ/unified-markup-lsp/internal/document"
	"github.com/woxQAQ/unified-markup-lsp/pkg/markup"
)

// Aggregator merges directive and semantic completions for one position.
type Aggregator struct {
	directives DirectiveProvider
	semantic   SemanticProvider
	logger     *zap.Logger
}

// NewAggregator creates an aggregator over the two providers.
func NewAggregator(directives DirectiveProvider, semantic SemanticProvider, logger *zap.Logger) *Aggregator {
	return &Aggregator{
		directives: directives,
		semantic:   semantic,
		logger:     logger.With(zap.String("component", "completion-aggregator")),
	}
}

// Aggregate returns directive items (in provider order) followed by semantic
// items (in provider order). Labels are not de-duplicated and nothing is
// re-ranked. A document whose analysis is unsupported yields an empty list.
// If ctx is cancelled before a provider runs, Aggregate returns ctx.Err() and
// no list.
func (a *Aggregator) Aggregate(ctx context.Context, snap *document.Snapshot, offset int) (*protocol.CompletionList, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	tree := snap.Analysis()
	if !tree.Supported() {
		a.logger.Info("Skipping completion for unsupported document",
			zap.String("uri", string(snap.URI())),
			zap.String("reason", tree.Reason()),
		)
		return emptyList(), nil
	}

	if err := ctx.Err(); err != nil {
		return nil, err
	}
	candidates := a.directives.Complete(tree, offset)

	items := make([]protocol.CompletionItem, 0, len(candidates))
	for _, c := range candidates {
		if c.Kind != markup.KindDirective {
			continue
		}
		items = append(items, directiveItem(c))
	}
	directiveCount := len(items)

	if err := ctx.Err(); err != nil {
		return nil, err
	}
	items = append(items, a.semantic.Complete(offset, snap)...)

	a.logger.Debug("Completion aggregated",
		zap.String("uri", string(snap.URI())),
		zap.Int("offset", offset),
		zap.Int("directive_items", directiveCount),
		zap.Int("semantic_items", len(items)-directiveCount),
	)

	return &protocol.CompletionList{IsIncomplete: false, Items: items}, nil
}

// directiveItem maps a directive candidate to a fully detailed item. Its
// payload is tagged as a directive, so it is never resolved.
func directiveItem(c markup.Candidate) protocol.CompletionItem {
	payload, ok := c.Payload.(markup.DirectiveDescription)
	if !ok {
		payload = markup.DirectiveDescription{Directive: c.DisplayText, Summary: c.Description}
	}

	item := protocol.CompletionItem{
		Label:      c.DisplayText,
		InsertText: c.InsertText,
		Detail:     c.Description,
		FilterText: c.DisplayText,
		SortText:   c.DisplayText,
		Kind:       protocol.CompletionItemKindStruct,
		Data:       markup.Encode(payload),
	}
	if c.Description != "" {
		item.Documentation = c.Description
	}
	return item
}

func emptyList() *protocol.CompletionList {
	return &protocol.CompletionList{IsIncomplete: false, Items: []protocol.CompletionItem{}}
}

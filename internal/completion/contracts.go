// Package completion implements the two-phase completion feature: a cheap
// list of items for a cursor position, and on-demand documentation for a
// single item.
package completion

import (
	"context"

	"go.lsp.dev/protocol"

	"github.com/woxQAQ/unified-markup-lsp/internal/document"
	"github.com/woxQAQ/unified-markup-lsp/internal/syntax"
	"github.com/woxQAQ/unified-markup-lsp/pkg/markup"
)

// DirectiveProvider produces syntax-driven candidates.
type DirectiveProvider interface {
	Complete(tree *syntax.Tree, offset int) []markup.Candidate
}

// SemanticProvider produces component and attribute items, each carrying
// its description payload in Data.
type SemanticProvider interface {
	Complete(offset int, snap *document.Snapshot) []protocol.CompletionItem
}

// DocumentationRenderer renders a description payload. The boolean is false
// when there is no documentation.
type DocumentationRenderer interface {
	Render(d markup.Description) (string, bool)
}

// SnapshotSource resolves a document to its current snapshot. A missing
// document is reported with false, not an error.
type SnapshotSource interface {
	Resolve(ctx context.Context, id document.ID) (*document.Snapshot, bool, error)
}

package completion

import (
	"go.lsp.dev/protocol"

	"github.com/woxQAQ/unified-markup-lsp/pkg/markup"
)

// Resolver fills in documentation for component items on demand. It only
// reads the payload embedded in the item and never touches a document.
type Resolver struct {
	renderer DocumentationRenderer
	kind     protocol.MarkupKind
}

// NewResolver creates a resolver producing documentation of the given
// markup kind.
func NewResolver(renderer DocumentationRenderer, kind protocol.MarkupKind) *Resolver {
	return &Resolver{renderer: renderer, kind: kind}
}

// CanResolve reports whether item carries an element or attribute payload.
func (r *Resolver) CanResolve(item protocol.CompletionItem) bool {
	_, ok := resolvable(item)
	return ok
}

// Resolve returns item with rendered documentation. Items that cannot be
// resolved, or whose payload renders to nothing, come back unchanged.
func (r *Resolver) Resolve(item protocol.CompletionItem) protocol.CompletionItem {
	d, ok := resolvable(item)
	if !ok {
		return item
	}

	text, ok := r.renderer.Render(d)
	if !ok {
		return item
	}

	item.Documentation = protocol.MarkupContent{Kind: r.kind, Value: text}
	return item
}

func resolvable(item protocol.CompletionItem) (markup.Description, bool) {
	d, ok := markup.Decode(item.Data)
	if !ok {
		return nil, false
	}
	switch d.(type) {
	case markup.ElementDescription, markup.AttributeDescription:
		return d, true
	case markup.DirectiveDescription:
		return nil, false
	default:
		return nil, false
	}
}

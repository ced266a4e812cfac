// Package docs renders completion documentation from description payloads.
package docs

import (
	"fmt"
	"strings"

	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/woxQAQ/unified-markup-lsp/pkg/markup"
)

// Format is the output format of rendered documentation.
type Format int

const (
	Markdown Format = iota
	PlainText
)

func (f Format) String() string {
	if f == PlainText {
		return "plaintext"
	}
	return "markdown"
}

type cacheKey struct {
	format Format
	desc   markup.Description
}

type rendered struct {
	text string
	ok   bool
}

// Renderer turns description payloads into documentation text.
// Rendering is a pure function of the payload, so results are memoized.
// A Renderer is safe for concurrent use.
type Renderer struct {
	cache *lru.Cache[cacheKey, rendered]
}

// NewRenderer creates a renderer remembering up to cacheSize results.
// cacheSize <= 0 disables memoization.
func NewRenderer(cacheSize int) (*Renderer, error) {
	r := &Renderer{}
	if cacheSize > 0 {
		cache, err := lru.New[cacheKey, rendered](cacheSize)
		if err != nil {
			return nil, fmt.Errorf("failed to create documentation cache: %w", err)
		}
		r.cache = cache
	}
	return r, nil
}

// In returns a view of r that renders in format.
func (r *Renderer) In(format Format) *View {
	return &View{renderer: r, format: format}
}

// View renders documentation in one format.
type View struct {
	renderer *Renderer
	format   Format
}

// Format returns the view's output format.
func (v *View) Format() Format {
	return v.format
}

// Render returns the documentation for d. The boolean is false when d has
// nothing worth showing.
func (v *View) Render(d markup.Description) (string, bool) {
	return v.renderer.render(d, v.format)
}

func (r *Renderer) render(d markup.Description, format Format) (string, bool) {
	if d == nil {
		return "", false
	}

	key := cacheKey{format: format, desc: d}
	if r.cache != nil {
		if hit, ok := r.cache.Get(key); ok {
			return hit.text, hit.ok
		}
	}

	text, ok := renderMarkdown(d)
	if ok && format == PlainText {
		text = ToPlainText(text)
	}

	if r.cache != nil {
		r.cache.Add(key, rendered{text: text, ok: ok})
	}
	return text, ok
}

// renderMarkdown builds the markdown documentation for d. Entities without
// a summary have no documentation.
func renderMarkdown(d markup.Description) (string, bool) {
	var b strings.Builder

	switch v := d.(type) {
	case markup.DirectiveDescription:
		if v.Summary == "" {
			return "", false
		}
		fmt.Fprintf(&b, "**@%s**\n\n%s", v.Directive, v.Summary)

	case markup.ElementDescription:
		if v.Summary == "" {
			return "", false
		}
		name := v.Component
		if v.Namespace != "" {
			name = v.Namespace + "." + v.Component
		}
		fmt.Fprintf(&b, "**%s**\n\n%s", name, v.Summary)

	case markup.AttributeDescription:
		if v.Summary == "" {
			return "", false
		}
		fmt.Fprintf(&b, "**%s**", v.Attribute)
		if v.Type != "" {
			fmt.Fprintf(&b, " `%s`", v.Type)
		}
		fmt.Fprintf(&b, "\n\n%s\n\nParameter of `%s`.", v.Summary, v.Component)

	default:
		return "", false
	}

	return b.String(), true
}

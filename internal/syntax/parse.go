package syntax

import (
	"fmt"
	"strings"

	"github.com/alecthomas/participle/v2/lexer"
	"github.com/woxQAQ/unified-markup-lsp/pkg/markup"
)

// Analyzer parses document text into a Tree.
type Analyzer struct {
	maxSize int
}

// NewAnalyzer creates an analyzer. Documents larger than maxSize bytes are
// reported as unsupported; maxSize <= 0 disables the limit.
func NewAnalyzer(maxSize int) *Analyzer {
	return &Analyzer{maxSize: maxSize}
}

// Analyze parses text.
func (a *Analyzer) Analyze(text string) *Tree {
	if a.maxSize > 0 && len(text) > a.maxSize {
		return &Tree{
			Source: text,
			reason: fmt.Sprintf("document size %d exceeds limit %d", len(text), a.maxSize),
		}
	}
	return Parse(text)
}

// Parse builds the syntax tree for text.
func Parse(text string) *Tree {
	tree := &Tree{Source: text, supported: true}

	tokens, err := tokenize(text)
	if err != nil {
		tree.supported = false
		tree.reason = err.Error()
		return tree
	}

	b := builder{tree: tree}
	for _, tok := range tokens {
		if tok.EOF() {
			break
		}
		b.add(tok)
	}
	b.finishTag()

	return tree
}

type builder struct {
	tree *Tree
	tag  *Node // open start tag
	// awaitingValue is set after '=' until the attribute value arrives.
	awaitingValue bool
}

func (b *builder) add(tok lexer.Token) {
	span := markup.Span{Start: tok.Pos.Offset, Length: len(tok.Value)}

	switch tokenNames[tok.Type] {
	case "Comment":
		b.emit(Node{Kind: NodeComment, Span: span, Closed: true})

	case "OpenComment":
		b.emit(Node{Kind: NodeComment, Span: span})
		b.tree.supported = false
		b.tree.reason = "unterminated comment"

	case "Escape", "Text":
		b.emit(Node{Kind: NodeText, Span: span})

	case "Transition":
		b.emit(Node{
			Kind:     NodeTransition,
			Span:     span,
			Name:     tok.Value[1:],
			NameSpan: markup.Span{Start: span.Start + 1, Length: span.Length - 1},
		})

	case "EndTag":
		name := strings.TrimSpace(strings.TrimSuffix(tok.Value[2:], ">"))
		b.emit(Node{
			Kind:     NodeEndTag,
			Span:     span,
			Name:     name,
			NameSpan: markup.Span{Start: span.Start + 2, Length: len(name)},
			Closed:   strings.HasSuffix(tok.Value, ">"),
		})

	case "Lt":
		// A bare '<' is where a new element name is about to be typed.
		b.emit(Node{
			Kind:     NodeStartTag,
			Span:     span,
			NameSpan: markup.Span{Start: span.End()},
		})

	case "TagOpen":
		b.finishTag()
		b.tag = &Node{
			Kind:     NodeStartTag,
			Span:     span,
			Name:     tok.Value[1:],
			NameSpan: markup.Span{Start: span.Start + 1, Length: span.Length - 1},
		}

	case "TagEnd":
		if b.tag == nil {
			return
		}
		b.extend(span)
		b.tag.Closed = true
		b.tag.SelfClosing = tok.Value == "/>"
		b.finishTag()

	case "AttrName":
		if b.tag == nil {
			return
		}
		b.extend(span)
		if b.awaitingValue {
			b.setValue(tok.Value, span)
			return
		}
		b.tag.Attributes = append(b.tag.Attributes, Attribute{Name: tok.Value, NameSpan: span})

	case "Equals":
		if b.tag == nil {
			return
		}
		b.extend(span)
		b.awaitingValue = len(b.tag.Attributes) > 0

	case "String", "Bare":
		if b.tag == nil {
			return
		}
		b.extend(span)
		if b.awaitingValue {
			b.setValue(tok.Value, span)
		}

	default: // Whitespace, Stray
		if b.tag != nil {
			b.extend(span)
		}
	}
}

func (b *builder) emit(n Node) {
	b.finishTag()
	b.tree.Nodes = append(b.tree.Nodes, n)
}

func (b *builder) extend(span markup.Span) {
	b.tag.Span.Length = span.End() - b.tag.Span.Start
}

func (b *builder) setValue(raw string, span markup.Span) {
	attr := &b.tag.Attributes[len(b.tag.Attributes)-1]
	attr.HasValue = true
	attr.ValueSpan = span
	attr.Value = unquote(raw)
	b.awaitingValue = false
}

func (b *builder) finishTag() {
	if b.tag == nil {
		return
	}
	b.tree.Nodes = append(b.tree.Nodes, *b.tag)
	b.tag = nil
	b.awaitingValue = false
}

func unquote(s string) string {
	if s == "" || (s[0] != '"' && s[0] != '\'') {
		return s
	}
	q := s[0]
	s = s[1:]
	if len(s) > 0 && s[len(s)-1] == q {
		s = s[:len(s)-1]
	}
	return s
}

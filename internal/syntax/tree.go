// Package syntax builds the flat syntax tree the completion providers work on.
package syntax

import (
	"strings"

	"github.com/woxQAQ/unified-markup-lsp/pkg/markup"
)

// NodeKind identifies the kind of a syntax node.
type NodeKind int

const (
	NodeText NodeKind = iota + 1
	NodeComment
	NodeTransition
	NodeStartTag
	NodeEndTag
)

func (k NodeKind) String() string {
	switch k {
	case NodeText:
		return "text"
	case NodeComment:
		return "comment"
	case NodeTransition:
		return "transition"
	case NodeStartTag:
		return "startTag"
	case NodeEndTag:
		return "endTag"
	default:
		return "unknown"
	}
}

// Attribute is an attribute inside a start tag.
type Attribute struct {
	Name      string
	NameSpan  markup.Span
	Value     string
	ValueSpan markup.Span
	HasValue  bool
}

// Node is one top-level syntax element.
type Node struct {
	Kind NodeKind
	Span markup.Span

	// Name is the transition identifier (without '@') or the tag name.
	Name     string
	NameSpan markup.Span

	Attributes []Attribute

	// Closed is true when the node has a terminator ('>' for tags, '*@'
	// for comments). A cursor right after a closed node is outside it.
	Closed      bool
	SelfClosing bool
}

// HasAttribute reports whether the start tag declares name.
func (n *Node) HasAttribute(name string) bool {
	for _, a := range n.Attributes {
		if a.Name == name {
			return true
		}
	}
	return false
}

// Tree is the analysis artifact of one document revision.
type Tree struct {
	Nodes  []Node
	Source string

	supported bool
	reason    string
}

// Supported reports whether analysis completed for the document.
func (t *Tree) Supported() bool {
	return t.supported
}

// Reason explains why the tree is unsupported.
func (t *Tree) Reason() string {
	return t.reason
}

// NodeAt returns the node the cursor at offset is in, or nil.
func (t *Tree) NodeAt(offset int) *Node {
	for i := range t.Nodes {
		n := &t.Nodes[i]
		if n.Span.Start >= offset {
			break
		}
		end := n.Span.End()
		if offset < end || (offset == end && !n.Closed) {
			return n
		}
	}
	return nil
}

// LeadingWhitespace reports whether only spaces and tabs precede offset on
// its line.
func (t *Tree) LeadingWhitespace(offset int) bool {
	if offset > len(t.Source) {
		offset = len(t.Source)
	}
	lineStart := strings.LastIndexByte(t.Source[:offset], '\n') + 1
	return strings.Trim(t.Source[lineStart:offset], " \t") == ""
}

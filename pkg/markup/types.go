package markup

// Core types for the unified markup LSP server
// This package defines shared types used across internal packages

// Position represents a position in a text document.
// Character is counted in UTF-16 code units, both fields are zero-based.
type Position struct {
	Line      int `json:"line"`
	Character int `json:"character"`
}

// Span is a byte range in a document's text.
// A zero-length span is an insertion point.
type Span struct {
	Start  int `json:"start"`
	Length int `json:"length"`
}

// End returns the exclusive end offset of the span.
func (s Span) End() int {
	return s.Start + s.Length
}

// Contains reports whether offset lies in [Start, End].
// The end is inclusive so a cursor placed right after a token still touches it.
func (s Span) Contains(offset int) bool {
	return offset >= s.Start && offset <= s.End()
}

// Kind tags where a completion candidate came from.
type Kind int

const (
	KindDirective Kind = iota + 1
	KindComponentElement
	KindComponentAttribute
	KindKeyword
)

func (k Kind) String() string {
	switch k {
	case KindDirective:
		return "directive"
	case KindComponentElement:
		return "componentElement"
	case KindComponentAttribute:
		return "componentAttribute"
	case KindKeyword:
		return "keyword"
	default:
		return "unknown"
	}
}

// Candidate is a provider-agnostic completion suggestion.
type Candidate struct {
	Kind        Kind
	DisplayText string
	InsertText  string
	// Description is the short, already final description of the candidate.
	Description string
	// Payload is the optional deferred-resolution payload.
	Payload Description
}

package completion

import (
	"path"
	"strings"

	"go.lsp.dev/protocol"
)

// MethodCompletion is the request the completion registration applies to.
const MethodCompletion = "textDocument/completion"

// RegistrationID identifies the dynamic completion registration.
const RegistrationID = "markup-completion"

// TriggerCharacters are the characters that make the client ask for
// completion: "@" starts a directive, "<" starts a component tag.
var TriggerCharacters = []string{"@", "<"}

// DocumentFilter selects the documents completion applies to.
type DocumentFilter struct {
	Language string `json:"language,omitempty"`
	Pattern  string `json:"pattern,omitempty"`
}

// Matches reports whether a document with the given language id and file
// name is selected. Every non-empty field must match. Patterns are matched
// against the base name, so "**/*.mkup" selects every .mkup file.
func (f DocumentFilter) Matches(languageID, filename string) bool {
	if f.Language != "" && f.Language != languageID {
		return false
	}
	if f.Pattern == "" {
		return true
	}
	pattern := f.Pattern
	if i := strings.LastIndex(pattern, "/"); i >= 0 {
		pattern = pattern[i+1:]
	}
	ok, err := path.Match(pattern, path.Base(filename))
	return err == nil && ok
}

// RegistrationOptions are the options sent with a dynamic completion
// registration.
type RegistrationOptions struct {
	DocumentSelector  []DocumentFilter `json:"documentSelector"`
	TriggerCharacters []string         `json:"triggerCharacters"`
	ResolveProvider   bool             `json:"resolveProvider"`
}

// Capabilities is the static completion descriptor for a document selector.
type Capabilities struct {
	selector DocumentFilter
}

// NewCapabilities creates the descriptor for selector.
func NewCapabilities(selector DocumentFilter) *Capabilities {
	return &Capabilities{selector: selector}
}

// Selector returns the document filter completion is registered for.
func (c *Capabilities) Selector() DocumentFilter {
	return c.selector
}

// Options returns the registration options. Every call returns fresh slices.
func (c *Capabilities) Options() RegistrationOptions {
	return RegistrationOptions{
		DocumentSelector:  []DocumentFilter{c.selector},
		TriggerCharacters: append([]string(nil), TriggerCharacters...),
		ResolveProvider:   true,
	}
}

// ServerCapability is the completion provider advertised in the initialize
// result for clients that cannot register dynamically.
func (c *Capabilities) ServerCapability() *protocol.CompletionOptions {
	return &protocol.CompletionOptions{
		TriggerCharacters: append([]string(nil), TriggerCharacters...),
		ResolveProvider:   true,
	}
}

// Registration is the client/registerCapability entry scoping completion to
// the selected documents.
func (c *Capabilities) Registration() protocol.Registration {
	return protocol.Registration{
		ID:              RegistrationID,
		Method:          MethodCompletion,
		RegisterOptions: c.Options(),
	}
}

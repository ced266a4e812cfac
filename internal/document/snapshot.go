// Package document holds the immutable per-revision view of a text document.
package document

import (
	"sync"

	"go.lsp.dev/uri"

	"github.com/woxQAQ/unified-markup-lsp/internal/syntax"
)

// Analyzer computes the analysis artifact for a document's text.
type Analyzer interface {
	Analyze(text string) *syntax.Tree
}

// Snapshot is an immutable, versioned view of one document.
// It is safe for concurrent use; the analysis is computed at most once.
type Snapshot struct {
	id         ID
	uri        uri.URI
	languageID string
	version    int32
	text       string
	lines      *LineIndex

	analyzer Analyzer
	once     sync.Once
	tree     *syntax.Tree
}

// NewSnapshot creates a snapshot. analyzer may be nil, in which case the
// default parser is used.
func NewSnapshot(docURI uri.URI, languageID string, version int32, text string, analyzer Analyzer) *Snapshot {
	return &Snapshot{
		id:         NewID(docURI),
		uri:        docURI,
		languageID: languageID,
		version:    version,
		text:       text,
		lines:      NewLineIndex(text),
		analyzer:   analyzer,
	}
}

// ID returns the normalized document identifier.
func (s *Snapshot) ID() ID { return s.id }

// URI returns the URI the document was opened with.
func (s *Snapshot) URI() uri.URI { return s.uri }

// LanguageID returns the client-reported language identifier.
func (s *Snapshot) LanguageID() string { return s.languageID }

// Version returns the document version.
func (s *Snapshot) Version() int32 { return s.version }

// Text returns the document text.
func (s *Snapshot) Text() string { return s.text }

// Lines returns the line index used for position mapping.
func (s *Snapshot) Lines() *LineIndex { return s.lines }

// Analysis returns the document's syntax tree, computing it on first use.
func (s *Snapshot) Analysis() *syntax.Tree {
	s.once.Do(func() {
		if s.analyzer != nil {
			s.tree = s.analyzer.Analyze(s.text)
		} else {
			s.tree = syntax.Parse(s.text)
		}
	})
	return s.tree
}

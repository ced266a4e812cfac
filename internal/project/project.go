package project

import (
	"context"
	"errors"

	"go.lsp.dev/uri"
	"go.uber.org/zap"

	"github.com/woxQAQ/unified-markup-lsp/internal/document"
)

// ErrDocumentNotOpen is returned when a change or close names a document
// that was never opened.
var ErrDocumentNotOpen = errors.New("project: document is not open")

// Project is the document table plus the owner that guards it.
type Project struct {
	owner    *Owner
	analyzer document.Analyzer
	logger   *zap.Logger

	// docs is only touched by owner tasks.
	docs map[document.ID]*document.Snapshot
}

// New creates a project served by owner.
func New(owner *Owner, analyzer document.Analyzer, logger *zap.Logger) *Project {
	return &Project{
		owner:    owner,
		analyzer: analyzer,
		logger:   logger.With(zap.String("component", "project")),
		docs:     make(map[document.ID]*document.Snapshot),
	}
}

// Open installs the first snapshot of a document.
func (p *Project) Open(ctx context.Context, docURI uri.URI, languageID string, version int32, text string) error {
	snap := document.NewSnapshot(docURI, languageID, version, text, p.analyzer)

	return p.owner.Do(ctx, "open", func(context.Context) {
		p.docs[snap.ID()] = snap
		p.logger.Debug("Document opened",
			zap.String("uri", string(docURI)),
			zap.Int32("version", version),
		)
	})
}

// Change replaces the text of an open document. Versions not newer than the
// current one are ignored.
func (p *Project) Change(ctx context.Context, docURI uri.URI, version int32, text string) error {
	id := document.NewID(docURI)

	var errNotOpen error
	err := p.owner.Do(ctx, "change", func(context.Context) {
		current, ok := p.docs[id]
		if !ok {
			errNotOpen = ErrDocumentNotOpen
			return
		}
		if version <= current.Version() {
			p.logger.Warn("Ignoring stale document change",
				zap.String("uri", string(docURI)),
				zap.Int32("version", version),
				zap.Int32("current_version", current.Version()),
			)
			return
		}
		p.docs[id] = document.NewSnapshot(current.URI(), current.LanguageID(), version, text, p.analyzer)
	})
	if err != nil {
		return err
	}
	return errNotOpen
}

// Close removes a document from the table. Snapshots already handed out stay
// valid.
func (p *Project) Close(ctx context.Context, docURI uri.URI) error {
	id := document.NewID(docURI)

	var errNotOpen error
	err := p.owner.Do(ctx, "close", func(context.Context) {
		if _, ok := p.docs[id]; !ok {
			errNotOpen = ErrDocumentNotOpen
			return
		}
		delete(p.docs, id)
	})
	if err != nil {
		return err
	}
	return errNotOpen
}

// Resolve looks up the current snapshot of a document on the owner.
// The boolean is false when no such document is open, which is a normal
// outcome. An error is returned only when the lookup itself could not run
// (cancellation, stopped owner, owner re-entry).
func (p *Project) Resolve(ctx context.Context, id document.ID) (*document.Snapshot, bool, error) {
	var snap *document.Snapshot
	err := p.owner.Do(ctx, "resolve", func(context.Context) {
		snap = p.docs[id]
	})
	if err != nil {
		return nil, false, err
	}
	return snap, snap != nil, nil
}

// Documents lists the open documents.
func (p *Project) Documents(ctx context.Context) ([]document.ID, error) {
	var ids []document.ID
	err := p.owner.Do(ctx, "documents", func(context.Context) {
		ids = make([]document.ID, 0, len(p.docs))
		for id := range p.docs {
			ids = append(ids, id)
		}
	})
	return ids, err
}

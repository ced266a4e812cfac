package completion

import (
	"context"
	"errors"

	"go.lsp.dev/protocol"
	"go.lsp.dev/uri"
	"go.uber.org/zap"

	"github.com/woxQAQ/unified-markup-lsp/internal/document"
	"github.com/woxQAQ/unified-markup-lsp/pkg/markup"
)

// Service answers completion and resolve requests.
type Service struct {
	snapshots    SnapshotSource
	aggregator   *Aggregator
	resolver     *Resolver
	capabilities *Capabilities
	logger       *zap.Logger
}

// ServiceOption configures a Service.
type ServiceOption func(*Service)

// WithCapabilities restricts completion to the documents selected by caps.
// Without it every document is served.
func WithCapabilities(caps *Capabilities) ServiceOption {
	return func(s *Service) {
		s.capabilities = caps
	}
}

// WithLogger sets the service logger.
func WithLogger(logger *zap.Logger) ServiceOption {
	return func(s *Service) {
		s.logger = logger
	}
}

// NewService creates a completion service.
func NewService(snapshots SnapshotSource, aggregator *Aggregator, resolver *Resolver, opts ...ServiceOption) *Service {
	s := &Service{
		snapshots:  snapshots,
		aggregator: aggregator,
		resolver:   resolver,
		logger:     zap.NewNop(),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.logger = s.logger.With(zap.String("component", "completion-service"))
	return s
}

// Complete returns the completion list for pos in the document at docURI.
// Unknown documents and documents outside the selector get an empty list.
// The only error is cancellation, returned as the context's error.
func (s *Service) Complete(ctx context.Context, docURI uri.URI, pos markup.Position) (*protocol.CompletionList, error) {
	logger := s.logger.With(
		zap.String("uri", string(docURI)),
		zap.Int("line", pos.Line),
		zap.Int("character", pos.Character),
	)

	snap, found, err := s.snapshots.Resolve(ctx, document.NewID(docURI))
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, ctxErr
		}
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			return nil, err
		}
		logger.Warn("Snapshot lookup failed", zap.Error(err))
		return emptyList(), nil
	}
	if !found {
		logger.Debug("Document not open")
		return emptyList(), nil
	}

	if s.capabilities != nil && !s.capabilities.Selector().Matches(snap.LanguageID(), string(snap.ID())) {
		logger.Debug("Document not selected for completion", zap.String("language", snap.LanguageID()))
		return emptyList(), nil
	}

	offset := snap.Lines().ToSpan(pos).Start
	return s.aggregator.Aggregate(ctx, snap, offset)
}

// Resolve fills in documentation for item. It never waits for the document
// owner.
func (s *Service) Resolve(ctx context.Context, item protocol.CompletionItem) (protocol.CompletionItem, error) {
	if err := ctx.Err(); err != nil {
		return item, err
	}
	return s.resolver.Resolve(item), nil
}

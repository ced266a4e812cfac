package lsp

import (
	"context"
	"encoding/json"
	"io"
	"sync"

	"github.com/sourcegraph/conc/pool"
	"go.lsp.dev/jsonrpc2"
	"go.lsp.dev/protocol"
	"go.uber.org/zap"

	"github.com/woxQAQ/unified-markup-lsp/internal/completion"
	"github.com/woxQAQ/unified-markup-lsp/internal/component"
	"github.com/woxQAQ/unified-markup-lsp/internal/directive"
	"github.com/woxQAQ/unified-markup-lsp/internal/docs"
	"github.com/woxQAQ/unified-markup-lsp/internal/project"
)

type sessionState int

const (
	stateCreated sessionState = iota
	stateInitialized
	stateShutdown
)

// session is one client connection. Text synchronization is applied on the
// connection's reader in arrival order; completion and resolve requests run
// on the worker pool.
type session struct {
	server  *Server
	conn    jsonrpc2.Conn
	logger  *zap.Logger
	owner   *project.Owner
	project *project.Project
	caps    *completion.Capabilities
	workers *pool.Pool
	cancel  func(id jsonrpc2.ID)
	// background tracks server-to-client calls, which never take a worker.
	background sync.WaitGroup

	mu      sync.Mutex
	state   sessionState
	service *completion.Service
	dynamic bool

	exitOnce sync.Once
	exited   chan struct{}
}

func newSession(s *Server, id uint64, rwc io.ReadWriteCloser) *session {
	logger := s.logger.With(zap.String("component", "session"), zap.Uint64("session", id))
	owner := project.NewOwner(s.cfg.Server.OwnerQueueSize, logger)

	workers := s.cfg.Server.Workers
	if workers <= 0 {
		workers = 1
	}

	return &session{
		server:  s,
		conn:    jsonrpc2.NewConn(jsonrpc2.NewStream(rwc)),
		logger:  logger,
		owner:   owner,
		project: project.New(owner, s.analyzer, logger),
		caps:    completion.NewCapabilities(s.selector),
		workers: pool.New().WithMaxGoroutines(workers),
		exited:  make(chan struct{}),
	}
}

func (s *session) serve(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	ownerDone := make(chan struct{})
	go func() {
		defer close(ownerDone)
		s.owner.Run(ctx)
	}()

	handler, canceller := jsonrpc2.CancelHandler(s.handle)
	s.cancel = canceller

	s.logger.Info("Session started")
	s.conn.Go(ctx, handler)

	select {
	case <-s.conn.Done():
	case <-s.exited:
	case <-ctx.Done():
	}
	s.conn.Close()
	<-s.conn.Done()

	cancel()
	s.workers.Wait()
	s.background.Wait()
	<-ownerDone

	s.logger.Info("Session ended", zap.NamedError("reason", s.conn.Err()))
	return nil
}

func (s *session) currentState() sessionState {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

func (s *session) completionService() *completion.Service {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.service
}

// initialize negotiates the documentation format and registration mode from
// the client capabilities and builds the completion service.
func (s *session) initialize(raw json.RawMessage) (*initializeResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state != stateCreated {
		return nil, jsonrpc2.NewError(jsonrpc2.InvalidRequest, "initialize may only be sent once")
	}

	client := parseClientCapabilities(raw)
	format, kind := docs.PlainText, protocol.PlainText
	if client.markdown {
		format, kind = docs.Markdown, protocol.Markdown
	}

	catalog := s.server.addons
	aggregator := completion.NewAggregator(
		directive.NewProvider(catalog, s.logger),
		component.NewProvider(catalog, s.logger),
		s.logger,
	)
	resolver := completion.NewResolver(s.server.renderer.In(format), kind)
	s.service = completion.NewService(s.project, aggregator, resolver,
		completion.WithCapabilities(s.caps),
		completion.WithLogger(s.logger),
	)
	s.dynamic = client.dynamicCompletion
	s.state = stateInitialized

	result := &initializeResult{
		Capabilities: serverCapabilities{
			TextDocumentSync: textDocumentSyncOptions{
				OpenClose: true,
				Change:    protocol.TextDocumentSyncKindFull,
			},
		},
		ServerInfo: serverInfo{Name: serverName, Version: Version},
	}
	if !s.dynamic {
		result.Capabilities.CompletionProvider = s.caps.ServerCapability()
	}

	s.logger.Info("Session initialized",
		zap.String("documentation_format", format.String()),
		zap.Bool("dynamic_registration", s.dynamic),
	)
	return result, nil
}

// registerCompletion scopes completion to the selected documents on clients
// that support dynamic registration.
func (s *session) registerCompletion(ctx context.Context) {
	s.mu.Lock()
	dynamic := s.dynamic
	s.mu.Unlock()
	if !dynamic {
		return
	}

	params := protocol.RegistrationParams{
		Registrations: []protocol.Registration{s.caps.Registration()},
	}
	var result json.RawMessage
	if _, err := s.conn.Call(ctx, methodRegisterCapability, params, &result); err != nil {
		s.logger.Warn("Failed to register completion", zap.Error(err))
		return
	}
	s.logger.Debug("Completion registered", zap.String("id", completion.RegistrationID))
}

func (s *session) shutdown() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.state = stateShutdown
}

func (s *session) exit() {
	s.exitOnce.Do(func() { close(s.exited) })
}

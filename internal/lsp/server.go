// Package lsp serves the markup language server over JSON-RPC.
package lsp

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"os"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/woxQAQ/unified-markup-lsp/internal/addon"
	"github.com/woxQAQ/unified-markup-lsp/internal/completion"
	"github.com/woxQAQ/unified-markup-lsp/internal/config"
	"github.com/woxQAQ/unified-markup-lsp/internal/docs"
	"github.com/woxQAQ/unified-markup-lsp/internal/syntax"
	"github.com/woxQAQ/unified-markup-lsp/internal/wasm"
)

// Server holds the state shared by every connection: the Wasm runtime, the
// add-on catalog and the documentation renderer. Documents are per session.
type Server struct {
	cfg         *config.ServerConfig
	logger      *zap.Logger
	wasmRuntime *wasm.Runtime
	addons      *addon.Manager
	renderer    *docs.Renderer
	analyzer    *syntax.Analyzer
	selector    completion.DocumentFilter

	sessions sync.WaitGroup
	nextID   uint64
	mu       sync.Mutex
}

func NewServer(ctx context.Context, cfg *config.ServerConfig, logger *zap.Logger) (*Server, error) {
	// Initialize Wasm runtime.
	wasmConfig := &wasm.RuntimeConfig{
		MemoryPages:      cfg.Wasm.MemoryPages,
		DebugEnabled:     cfg.Wasm.Debug,
		CacheDir:         cfg.Wasm.CacheDir,
		MaxInstances:     cfg.Wasm.MaxInstances,
		ExecutionTimeout: time.Duration(cfg.Wasm.ExecutionTimeout) * time.Second,
	}

	wasmRuntime, err := wasm.NewRuntime(ctx, logger, wasmConfig)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize Wasm runtime: %w", err)
	}

	manager := addon.NewManager(cfg, wasmRuntime, wasm.NewHostFunctions(logger), logger)
	if err := manager.LoadAll(ctx); err != nil {
		_ = wasmRuntime.Close(ctx)
		return nil, fmt.Errorf("failed to load add-ons: %w", err)
	}

	renderer, err := docs.NewRenderer(cfg.Completion.DocumentationCacheSize)
	if err != nil {
		_ = wasmRuntime.Close(ctx)
		return nil, err
	}

	catalog := manager.Catalog()
	logger.Info("LSP server initialized",
		zap.Uint32("wasm_memory_pages", cfg.Wasm.MemoryPages),
		zap.String("wasm_cache_dir", cfg.Wasm.CacheDir),
		zap.Int("components", len(catalog.Components())),
		zap.Int("addon_directives", len(catalog.Directives())),
	)

	return &Server{
		cfg:         cfg,
		logger:      logger,
		wasmRuntime: wasmRuntime,
		addons:      manager,
		renderer:    renderer,
		analyzer:    syntax.NewAnalyzer(cfg.Completion.MaxDocumentSize),
		selector: completion.DocumentFilter{
			Language: cfg.DocumentSelector.Language,
			Pattern:  cfg.DocumentSelector.Pattern,
		},
	}, nil
}

// WatchAddons reloads add-ons whenever files under the add-on paths change.
// It blocks until ctx is done.
func (s *Server) WatchAddons(ctx context.Context) error {
	debounce := time.Duration(s.cfg.Addons.DebounceMS) * time.Millisecond
	return addon.NewWatcher(s.addons, s.cfg.AddonPaths, debounce, s.logger).Run(ctx)
}

// Addons returns the add-on manager.
func (s *Server) Addons() *addon.Manager {
	return s.addons
}

// Close gracefully shuts down the server.
func (s *Server) Close(ctx context.Context) error {
	s.logger.Info("Shutting down LSP server")

	s.sessions.Wait()

	// Shutdown add-ons and the Wasm runtime.
	if err := s.addons.Shutdown(ctx); err != nil {
		s.logger.Error("Failed to shutdown add-ons", zap.Error(err))
		return err
	}

	s.logger.Info("LSP server shutdown complete")
	return nil
}

// ServeStdio serves a single session over stdin/stdout.
func (s *Server) ServeStdio(ctx context.Context) error {
	return s.ServeStream(ctx, stdio{})
}

// ServeTCP accepts connections on addr and serves one session per
// connection until ctx is done.
func (s *Server) ServeTCP(ctx context.Context, addr string) error {
	var lc net.ListenConfig
	ln, err := lc.Listen(ctx, "tcp", addr)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", addr, err)
	}
	return s.Serve(ctx, ln)
}

// Serve accepts connections from ln until ctx is done or ln fails.
func (s *Server) Serve(ctx context.Context, ln net.Listener) error {
	s.logger.Info("Listening", zap.String("addr", ln.Addr().String()))

	go func() {
		<-ctx.Done()
		ln.Close()
	}()

	var wg sync.WaitGroup
	defer wg.Wait()

	for {
		conn, err := ln.Accept()
		if err != nil {
			if ctx.Err() != nil || errors.Is(err, net.ErrClosed) {
				return nil
			}
			return fmt.Errorf("accept failed: %w", err)
		}

		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := s.ServeStream(ctx, conn); err != nil {
				s.logger.Warn("Session failed", zap.Error(err))
			}
		}()
	}
}

// ServeStream serves one session over rwc and returns when the client exits,
// the stream closes or ctx is done.
func (s *Server) ServeStream(ctx context.Context, rwc io.ReadWriteCloser) error {
	s.sessions.Add(1)
	defer s.sessions.Done()

	s.mu.Lock()
	s.nextID++
	id := s.nextID
	s.mu.Unlock()

	sess := newSession(s, id, rwc)
	return sess.serve(ctx)
}

type stdio struct{}

func (stdio) Read(p []byte) (int, error)  { return os.Stdin.Read(p) }
func (stdio) Write(p []byte) (int, error) { return os.Stdout.Write(p) }

func (stdio) Close() error {
	if err := os.Stdin.Close(); err != nil {
		return err
	}
	return os.Stdout.Close()
}

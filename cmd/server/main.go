package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/pflag"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/woxQAQ/unified-markup-lsp/internal/config"
	"github.com/woxQAQ/unified-markup-lsp/internal/lsp"
)

var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

func main() {
	// Parse command-line flags
	flags := pflag.NewFlagSet("unified-markup-lsp", pflag.ExitOnError)
	configPath := flags.String("config", "", "Path to configuration file")
	flags.String("log-level", "info", "Log level (debug, info, warn, error)")
	flags.StringSlice("addon-paths", nil, "Directories to search for add-ons")
	addr := flags.String("tcp", "", "Serve over TCP on this address instead of stdio")
	showVersion := flags.Bool("version", false, "Print version and exit")
	_ = flags.Parse(os.Args[1:])

	if *showVersion {
		fmt.Printf("unified-markup-lsp %s (%s, %s)\n", version, commit, date)
		return
	}

	// Load configuration
	cfg, err := config.Load(*configPath, flags)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	logger, err := newLogger(cfg.LogLevel)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to create logger: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()

	logger.Info("Starting unified-markup-lsp",
		zap.String("version", version),
		zap.String("commit", commit),
		zap.String("date", date),
	)
	lsp.Version = version

	// Create context with cancellation
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Initialize LSP server
	server, err := lsp.NewServer(ctx, cfg, logger)
	if err != nil {
		logger.Fatal("Failed to create server", zap.Error(err))
	}

	// Handle shutdown signals
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		sig := <-sigChan
		logger.Info("Received shutdown signal", zap.String("signal", sig.String()))
		cancel()
	}()

	if cfg.Addons.Watch {
		go func() {
			if err := server.WatchAddons(ctx); err != nil {
				logger.Error("Add-on watcher stopped", zap.Error(err))
			}
		}()
	}

	// Start server (stdio or TCP)
	if *addr != "" {
		err = server.ServeTCP(ctx, *addr)
	} else {
		err = server.ServeStdio(ctx)
	}
	if err != nil {
		logger.Error("Server error", zap.Error(err))
	}
	cancel()

	if err := server.Close(context.Background()); err != nil {
		logger.Error("Failed to close server", zap.Error(err))
	}

	logger.Info("Server shutdown complete")
}

// newLogger writes to stderr; stdout carries the LSP stream.
func newLogger(level string) (*zap.Logger, error) {
	lvl, err := zapcore.ParseLevel(level)
	if err != nil {
		return nil, err
	}

	cfg := zap.NewProductionConfig()
	if lvl == zapcore.DebugLevel {
		cfg = zap.NewDevelopmentConfig()
	}
	cfg.Level = zap.NewAtomicLevelAt(lvl)
	cfg.OutputPaths = []string{"stderr"}
	cfg.ErrorOutputPaths = []string{"stderr"}
	return cfg.Build()
}

package wasm

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/tetratelabs/wazero"
	"go.uber.org/zap"
)

// Runtime manages the wazero runtime lifecycle.
// One Runtime is shared by every add-on module the server loads.
type Runtime struct {
	runtime wazero.Runtime
	cache   wazero.CompilationCache

	// Compiled module cache (key: module name/path -> value: *CompiledModule)
	modules sync.Map

	// Active module instances, closed on shutdown.
	// key: instance ID -> value: *Instance
	instances sync.Map
	active    atomic.Int32
	nextID    atomic.Uint64

	hostOnce sync.Once
	hostErr  error

	config *RuntimeConfig
	logger *zap.Logger

	closeOnce sync.Once
	closed    chan struct{}
}

// RuntimeConfig holds runtime configuration.
type RuntimeConfig struct {
	// Memory limit for Wasm modules (in pages, 64KB each)
	// Default: 256 pages = 16MB max memory per module
	MemoryPages uint32

	// Enable debug logging for Wasm execution
	DebugEnabled bool

	// Compilation cache directory (for persistent caching)
	// If empty, uses in-memory caching only
	CacheDir string

	// Maximum number of concurrent instances
	MaxInstances int

	// Upper bound on a single call into a module. Zero disables the limit.
	ExecutionTimeout time.Duration
}

// CompiledModule wraps a wazero.CompiledModule with metadata.
type CompiledModule struct {
	Module wazero.CompiledModule

	Name      string
	Source    string // File path or identifier
	SizeBytes int64
	Digest    [32]byte

	CompiledAt int64
}

// NewRuntime creates and initializes a new wazero runtime.
func NewRuntime(ctx context.Context, logger *zap.Logger, config *RuntimeConfig) (*Runtime, error) {
	if config == nil {
		config = DefaultRuntimeConfig()
	}

	rc := wazero.NewRuntimeConfig().
		WithMemoryLimitPages(config.MemoryPages).
		WithCloseOnContextDone(true)

	var cache wazero.CompilationCache
	if config.CacheDir != "" {
		c, err := wazero.NewCompilationCacheWithDir(config.CacheDir)
		if err != nil {
			return nil, &CacheError{Dir: config.CacheDir, Err: err}
		}
		cache = c
		rc = rc.WithCompilationCache(cache)
	}

	runtime := &Runtime{
		runtime: wazero.NewRuntimeWithConfig(ctx, rc),
		cache:   cache,
		config:  config,
		logger:  logger.With(zap.String("component", "wasm-runtime")),
		closed:  make(chan struct{}),
	}

	runtime.logger.Info("Wasm runtime initialized",
		zap.Uint32("memory_pages", config.MemoryPages),
		zap.Bool("debug_enabled", config.DebugEnabled),
		zap.String("cache_dir", config.CacheDir),
		zap.Int("max_instances", config.MaxInstances),
		zap.Duration("execution_timeout", config.ExecutionTimeout),
	)

	return runtime, nil
}

// DefaultRuntimeConfig returns sensible defaults.
func DefaultRuntimeConfig() *RuntimeConfig {
	return &RuntimeConfig{
		MemoryPages:      256, // 16MB
		DebugEnabled:     false,
		CacheDir:         "",
		MaxInstances:     100,
		ExecutionTimeout: 5 * time.Second,
	}
}

// Close gracefully shuts down the runtime.
// Safe to call multiple times (idempotent).
func (r *Runtime) Close(ctx context.Context) error {
	var err error
	r.closeOnce.Do(func() {
		r.logger.Info("Shutting down Wasm runtime")

		r.instances.Range(func(key, value interface{}) bool {
			if inst, ok := value.(*Instance); ok {
				if closeErr := inst.Close(ctx); closeErr != nil {
					r.logger.Warn("Failed to close instance",
						zap.String("instance_id", key.(string)),
						zap.Error(closeErr),
					)
				}
			}
			return true
		})

		// Closes compiled modules too.
		err = r.runtime.Close(ctx)

		if r.cache != nil {
			if cacheErr := r.cache.Close(ctx); cacheErr != nil && err == nil {
				err = cacheErr
			}
		}

		close(r.closed)
		r.logger.Info("Wasm runtime shutdown complete")
	})

	return err
}

// GetCompiledModule retrieves a compiled module from cache.
func (r *Runtime) GetCompiledModule(name string) (*CompiledModule, bool) {
	if val, ok := r.modules.Load(name); ok {
		if mod, ok := val.(*CompiledModule); ok {
			return mod, true
		}
	}
	return nil, false
}

// StoreCompiledModule stores a compiled module in cache.
func (r *Runtime) StoreCompiledModule(module *CompiledModule) {
	r.modules.Store(module.Name, module)
}

// ForgetCompiledModule drops a module from the cache and releases it.
func (r *Runtime) ForgetCompiledModule(ctx context.Context, name string) {
	val, ok := r.modules.LoadAndDelete(name)
	if !ok {
		return
	}
	if mod, ok := val.(*CompiledModule); ok {
		if err := mod.Module.Close(ctx); err != nil {
			r.logger.Warn("Failed to release compiled module",
				zap.String("module", name),
				zap.Error(err),
			)
		}
	}
}

// ActiveInstances returns the number of live instances.
func (r *Runtime) ActiveInstances() int {
	return int(r.active.Load())
}

// IsClosed returns whether the runtime has been closed.
func (r *Runtime) IsClosed() bool {
	select {
	case <-r.closed:
		return true
	default:
		return false
	}
}

// callContext bounds a single call into a module by the execution timeout.
func (r *Runtime) callContext(ctx context.Context) (context.Context, context.CancelFunc) {
	if r.config.ExecutionTimeout <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, r.config.ExecutionTimeout)
}

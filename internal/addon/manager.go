package addon

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"go.uber.org/zap"

	"github.com/woxQAQ/unified-markup-lsp/internal/config"
	"github.com/woxQAQ/unified-markup-lsp/internal/wasm"
)

// Manager manages add-on lifecycle.
type Manager struct {
	cfg      *config.ServerConfig
	runtime  *wasm.Runtime
	loader   *Loader
	registry *Registry
	logger   *zap.Logger

	mu     sync.Mutex
	loaded bool
}

// NewManager creates a new add-on manager.
func NewManager(
	cfg *config.ServerConfig,
	runtime *wasm.Runtime,
	hostFuncs *wasm.HostFunctionsImpl,
	logger *zap.Logger,
) *Manager {
	return &Manager{
		cfg:      cfg,
		runtime:  runtime,
		loader:   NewLoader(runtime, hostFuncs, logger),
		registry: NewRegistry(logger),
		logger:   logger.With(zap.String("component", "addon-manager")),
	}
}

// LoadAll discovers and loads all add-ons from configured paths.
func (m *Manager) LoadAll(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.loaded {
		return fmt.Errorf("add-ons already loaded")
	}

	if err := m.load(ctx); err != nil {
		return err
	}
	m.loaded = true
	return nil
}

// Reload rediscovers the configured paths and replaces the add-on set.
// Requests that already hold the previous catalog keep using it.
func (m *Manager) Reload(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.logger.Info("Reloading add-ons")
	if err := m.load(ctx); err != nil {
		return err
	}
	m.loaded = true
	return nil
}

func (m *Manager) load(ctx context.Context) error {
	m.logger.Info("Loading add-ons",
		zap.Strings("paths", m.cfg.AddonPaths),
	)

	addons, err := m.loader.DiscoverAddons(ctx, m.cfg.AddonPaths)
	if err != nil {
		// No add-ons is a valid setup: only built-in directives are offered.
		var none *NoAddonsFoundError
		if errors.As(err, &none) {
			m.logger.Warn("No add-ons found in configured paths",
				zap.Strings("paths", m.cfg.AddonPaths),
			)
			m.registry.Replace(nil)
			return nil
		}
		return err
	}

	m.registry.Replace(addons)

	m.logger.Info("Add-ons loaded successfully",
		zap.Int("count", len(addons)),
	)

	return nil
}

// Catalog returns the catalog of the currently loaded add-ons.
func (m *Manager) Catalog() *Catalog {
	return m.registry.Catalog()
}

// GetAddon retrieves an add-on by name.
func (m *Manager) GetAddon(name string) (*Addon, error) {
	addon, ok := m.registry.Get(name)
	if !ok {
		return nil, &AddonNotFoundError{AddonName: name}
	}

	return addon, nil
}

// Shutdown gracefully shuts down all add-ons.
func (m *Manager) Shutdown(ctx context.Context) error {
	m.logger.Info("Shutting down add-on manager")

	// Runtime close handles instance cleanup
	if err := m.runtime.Close(ctx); err != nil {
		m.logger.Error("Failed to shutdown runtime", zap.Error(err))
		return err
	}

	m.logger.Info("Add-on manager shutdown complete")
	return nil
}

// Registry returns the add-on registry (for testing/inspection).
func (m *Manager) Registry() *Registry {
	return m.registry
}

// IsLoaded returns whether add-ons have been loaded.
func (m *Manager) IsLoaded() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.loaded
}

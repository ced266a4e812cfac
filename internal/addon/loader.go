package addon

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"time"

	"github.com/sourcegraph/conc/pool"
	"go.uber.org/zap"

	"github.com/woxQAQ/unified-markup-lsp/internal/wasm"
)

// defaultLoadConcurrency bounds how many add-ons load at once.
const defaultLoadConcurrency = 4

// Loader handles loading add-ons from disk.
type Loader struct {
	moduleLoader *wasm.ModuleLoader
	instances    *wasm.InstanceManager
	concurrency  int
	logger       *zap.Logger
}

// NewLoader creates a new add-on loader.
func NewLoader(runtime *wasm.Runtime, hostFuncs *wasm.HostFunctionsImpl, logger *zap.Logger) *Loader {
	return &Loader{
		moduleLoader: wasm.NewModuleLoader(runtime, logger),
		instances:    wasm.NewInstanceManager(runtime, hostFuncs, logger),
		concurrency:  defaultLoadConcurrency,
		logger:       logger.With(zap.String("component", "addon-loader")),
	}
}

// LoadAddon loads a single add-on from a directory.
func (l *Loader) LoadAddon(ctx context.Context, dir string) (*Addon, error) {
	l.logger.Debug("Loading add-on", zap.String("dir", dir))

	manifest, err := ParseManifest(dir)
	if err != nil {
		return nil, err
	}

	addon := &Addon{
		Manifest:   manifest,
		Directives: append([]DirectiveSpec(nil), manifest.Directives...),
		LoadedAt:   time.Now(),
	}

	if manifest.Wasm != nil {
		compiled, directives, err := l.loadWasmDirectives(ctx, manifest.WasmPath())
		if err != nil {
			return nil, &AddonLoadError{
				AddonName: manifest.Name,
				Err:       err,
			}
		}
		addon.Compiled = compiled
		addon.Directives = append(addon.Directives, directives...)
	}

	l.logger.Info("Add-on loaded successfully",
		zap.String("name", manifest.Name),
		zap.String("version", manifest.Version),
		zap.Int("components", len(manifest.Components)),
		zap.Int("directives", len(addon.Directives)),
	)

	return addon, nil
}

// loadWasmDirectives compiles the module, runs its directives export once
// and releases the instance.
func (l *Loader) loadWasmDirectives(ctx context.Context, path string) (*wasm.CompiledModule, []DirectiveSpec, error) {
	compiled, err := l.moduleLoader.LoadModuleFromFile(ctx, path)
	if err != nil {
		return nil, nil, err
	}

	inst, err := l.instances.Instantiate(ctx, compiled.Name)
	if err != nil {
		return nil, nil, err
	}
	defer inst.Close(ctx)

	infos, err := inst.Directives(ctx)
	if err != nil {
		return nil, nil, err
	}

	directives := make([]DirectiveSpec, 0, len(infos))
	for _, info := range infos {
		if err := ValidateDirectiveName(info.Name); err != nil {
			l.logger.Warn("Skipping invalid directive from Wasm module",
				zap.String("module", path),
				zap.Error(err),
			)
			continue
		}
		directives = append(directives, DirectiveSpec{Name: info.Name, Summary: info.Summary})
	}
	return compiled, directives, nil
}

// DiscoverAddons scans directories for add-ons. Each subdirectory is loaded
// concurrently; one that fails to load is logged and skipped.
func (l *Loader) DiscoverAddons(ctx context.Context, paths []string) ([]*Addon, error) {
	var dirs []string

	for _, basePath := range paths {
		l.logger.Debug("Scanning add-on directory", zap.String("path", basePath))

		entries, err := os.ReadDir(basePath)
		if err != nil {
			if os.IsNotExist(err) {
				l.logger.Warn("Add-on path does not exist", zap.String("path", basePath))
				continue
			}
			return nil, fmt.Errorf("failed to read directory '%s': %w", basePath, err)
		}

		for _, entry := range entries {
			if entry.IsDir() {
				dirs = append(dirs, filepath.Join(basePath, entry.Name()))
			}
		}
	}

	p := pool.NewWithResults[*Addon]().WithMaxGoroutines(l.concurrency)
	for _, dir := range dirs {
		p.Go(func() *Addon {
			addon, err := l.LoadAddon(ctx, dir)
			if err != nil {
				l.logger.Error("Failed to load add-on",
					zap.String("dir", dir),
					zap.Error(err),
				)
				return nil
			}
			return addon
		})
	}

	var addons []*Addon
	for _, a := range p.Wait() {
		if a != nil {
			addons = append(addons, a)
		}
	}
	sort.Slice(addons, func(i, j int) bool { return addons[i].Name() < addons[j].Name() })

	if failed := len(dirs) - len(addons); len(addons) > 0 && failed > 0 {
		l.logger.Warn("Some add-ons failed to load",
			zap.Int("loaded", len(addons)),
			zap.Int("failed", failed),
		)
	}

	if len(addons) == 0 {
		return nil, &NoAddonsFoundError{Paths: paths}
	}

	return addons, nil
}

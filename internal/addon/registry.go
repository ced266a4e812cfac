package addon

import (
	"sort"
	"sync"
	"sync/atomic"

	"go.uber.org/zap"
)

// Registry manages loaded add-ons and publishes the catalog built from them.
type Registry struct {
	sync.RWMutex
	addons  map[string]*Addon // name -> addon
	catalog atomic.Pointer[Catalog]
	logger  *zap.Logger
}

// NewRegistry creates a new add-on registry.
func NewRegistry(logger *zap.Logger) *Registry {
	r := &Registry{
		addons: make(map[string]*Addon),
		logger: logger.With(zap.String("component", "addon-registry")),
	}
	r.catalog.Store(EmptyCatalog())
	return r
}

// Register adds an add-on to the registry.
func (r *Registry) Register(addon *Addon) error {
	r.Lock()
	defer r.Unlock()

	name := addon.Manifest.Name

	if _, exists := r.addons[name]; exists {
		return &AddonAlreadyRegisteredError{AddonName: name}
	}

	r.addons[name] = addon
	r.publish()

	r.logger.Info("Add-on registered",
		zap.String("name", name),
		zap.Int("components", len(addon.Components())),
		zap.Int("directives", len(addon.Directives)),
	)

	return nil
}

// Replace swaps the whole add-on set in one step. Duplicate names keep the
// first occurrence.
func (r *Registry) Replace(addons []*Addon) {
	next := make(map[string]*Addon, len(addons))
	for _, a := range addons {
		if _, exists := next[a.Name()]; exists {
			r.logger.Warn("Duplicate add-on ignored", zap.String("name", a.Name()))
			continue
		}
		next[a.Name()] = a
	}

	r.Lock()
	defer r.Unlock()

	r.addons = next
	r.publish()

	r.logger.Info("Add-on set replaced", zap.Int("count", len(next)))
}

// Get retrieves an add-on by name.
func (r *Registry) Get(name string) (*Addon, bool) {
	r.RLock()
	defer r.RUnlock()

	addon, ok := r.addons[name]
	return addon, ok
}

// List returns all registered add-ons sorted by name.
func (r *Registry) List() []*Addon {
	r.RLock()
	defer r.RUnlock()

	return r.sorted()
}

// Unregister removes an add-on from the registry.
func (r *Registry) Unregister(name string) {
	r.Lock()
	defer r.Unlock()

	if _, ok := r.addons[name]; !ok {
		return
	}

	delete(r.addons, name)
	r.publish()

	r.logger.Info("Add-on unregistered", zap.String("name", name))
}

// Count returns the number of registered add-ons.
func (r *Registry) Count() int {
	r.RLock()
	defer r.RUnlock()

	return len(r.addons)
}

// Catalog returns the current catalog. It never blocks.
func (r *Registry) Catalog() *Catalog {
	return r.catalog.Load()
}

// publish rebuilds the catalog. Caller holds the write lock.
func (r *Registry) publish() {
	r.catalog.Store(BuildCatalog(r.sorted(), r.logger))
}

func (r *Registry) sorted() []*Addon {
	result := make([]*Addon, 0, len(r.addons))
	for _, addon := range r.addons {
		result = append(result, addon)
	}
	sort.Slice(result, func(i, j int) bool { return result[i].Name() < result[j].Name() })
	return result
}

package addon

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func testAddon(name string, components []ComponentSpec, directives ...DirectiveSpec) *Addon {
	caps := []string{CapabilityComponents, CapabilityDirectives}
	return &Addon{
		Manifest: &Manifest{
			Name:         name,
			Version:      "1.0.0",
			Capabilities: caps,
			Components:   components,
		},
		Directives: directives,
	}
}

func TestRegistry_Register(t *testing.T) {
	registry := NewRegistry(zap.NewNop())

	require.NoError(t, registry.Register(testAddon("ui", nil)))
	assert.Equal(t, 1, registry.Count())

	got, ok := registry.Get("ui")
	require.True(t, ok)
	assert.Equal(t, "ui", got.Name())
}

func TestRegistry_RegisterDuplicate(t *testing.T) {
	registry := NewRegistry(zap.NewNop())

	require.NoError(t, registry.Register(testAddon("ui", nil)))

	err := registry.Register(testAddon("ui", nil))
	var dup *AddonAlreadyRegisteredError
	assert.ErrorAs(t, err, &dup)
}

func TestRegistry_Unregister(t *testing.T) {
	registry := NewRegistry(zap.NewNop())
	require.NoError(t, registry.Register(testAddon("ui", []ComponentSpec{{Name: "Button"}})))

	registry.Unregister("ui")
	registry.Unregister("missing")

	assert.Zero(t, registry.Count())
	assert.Empty(t, registry.Catalog().Components())
}

func TestRegistry_ListSorted(t *testing.T) {
	registry := NewRegistry(zap.NewNop())
	for _, name := range []string{"zeta", "alpha", "mid"} {
		require.NoError(t, registry.Register(testAddon(name, nil)))
	}

	var names []string
	for _, a := range registry.List() {
		names = append(names, a.Name())
	}
	assert.Equal(t, []string{"alpha", "mid", "zeta"}, names)
}

func TestRegistry_CatalogSwap(t *testing.T) {
	registry := NewRegistry(zap.NewNop())

	empty := registry.Catalog()
	require.NotNil(t, empty)
	require.Empty(t, empty.Components())

	registry.Replace([]*Addon{
		testAddon("ui", []ComponentSpec{{Name: "Button"}}, DirectiveSpec{Name: "theme"}),
	})

	next := registry.Catalog()
	assert.Len(t, next.Components(), 1)
	assert.Len(t, next.Directives(), 1)

	// Catalogs handed out earlier are unchanged.
	assert.Empty(t, empty.Components())
}

func TestRegistry_ConcurrentCatalogReads(t *testing.T) {
	registry := NewRegistry(zap.NewNop())

	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		for i := 0; i < 100; i++ {
			registry.Replace([]*Addon{testAddon("ui", []ComponentSpec{{Name: "Button"}})})
		}
	}()
	go func() {
		defer wg.Done()
		for i := 0; i < 100; i++ {
			_, _ = registry.Catalog().Component("Button")
		}
	}()
	wg.Wait()
}

func TestBuildCatalog(t *testing.T) {
	addons := []*Addon{
		testAddon("ui", []ComponentSpec{
			{Name: "Button", Namespace: "Ui", Summary: "A button.", Attributes: []AttributeSpec{
				{Name: "Text", Type: "string", Summary: "Caption."},
			}},
			{Name: "Card", Namespace: "Ui"},
		}, DirectiveSpec{Name: "theme", Summary: "Theme."}),
		testAddon("forms", []ComponentSpec{
			{Name: "Button", Namespace: "Forms"},
			{Name: "EditForm", Namespace: "Forms"},
		}, DirectiveSpec{Name: "theme", Summary: "Duplicate."}),
	}

	catalog := BuildCatalog(addons, zap.NewNop())

	// Add-ons are visited by name: forms before ui.
	var names []string
	for _, c := range catalog.Components() {
		names = append(names, c.QualifiedName())
	}
	assert.Equal(t, []string{"Forms.Button", "Forms.EditForm", "Ui.Button", "Ui.Card"}, names)

	// The unqualified name resolves to the first declaration.
	c, ok := catalog.Component("Button")
	require.True(t, ok)
	assert.Equal(t, "Forms", c.Namespace)

	c, ok = catalog.Component("Ui.Button")
	require.True(t, ok)
	require.Len(t, c.Attributes, 1)
	assert.Equal(t, "string", c.Attributes[0].Type)
	assert.Equal(t, "ui", c.Addon)

	_, ok = catalog.Component("Missing")
	assert.False(t, ok)

	directives := catalog.Directives()
	require.Len(t, directives, 1)
	assert.Equal(t, "forms", directives[0].Addon)
}

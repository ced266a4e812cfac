package addon

import (
	"time"

	"github.com/woxQAQ/unified-markup-lsp/internal/wasm"
)

// Addon represents a loaded add-on: its manifest plus everything it
// contributes to completion.
type Addon struct {
	// Manifest is the parsed add-on metadata
	Manifest *Manifest

	// Compiled is the compiled Wasm module, nil for manifest-only add-ons
	Compiled *wasm.CompiledModule

	// Directives lists manifest directives followed by Wasm-provided ones
	Directives []DirectiveSpec

	// LoadedAt is the timestamp when the add-on was loaded
	LoadedAt time.Time
}

// Name returns the add-on name.
func (a *Addon) Name() string {
	return a.Manifest.Name
}

// Version returns the add-on version.
func (a *Addon) Version() string {
	return a.Manifest.Version
}

// Capabilities returns the list of capabilities provided by this add-on.
func (a *Addon) Capabilities() []string {
	return a.Manifest.Capabilities
}

// Components returns the components the add-on declares.
func (a *Addon) Components() []ComponentSpec {
	return a.Manifest.Components
}

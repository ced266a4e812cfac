package addon

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

// Capabilities an add-on may declare.
const (
	CapabilityComponents = "components"
	CapabilityDirectives = "directives"
)

// Manifest represents the add-on manifest.yaml structure.
type Manifest struct {
	Name         string          `yaml:"name"`
	Version      string          `yaml:"version"`
	Description  string          `yaml:"description"`
	Capabilities []string        `yaml:"capabilities"`
	Components   []ComponentSpec `yaml:"components"`
	Directives   []DirectiveSpec `yaml:"directives"`
	Wasm         *WasmConfig     `yaml:"wasm"`
	Author       string          `yaml:"author"`
	License      string          `yaml:"license"`

	// Internal fields
	dir string // Directory containing manifest
}

// ComponentSpec declares a reusable component.
type ComponentSpec struct {
	Name       string          `yaml:"name"`
	Namespace  string          `yaml:"namespace"`
	Summary    string          `yaml:"summary"`
	Attributes []AttributeSpec `yaml:"attributes"`
}

// AttributeSpec declares a component attribute (parameter).
type AttributeSpec struct {
	Name    string `yaml:"name"`
	Type    string `yaml:"type"`
	Summary string `yaml:"summary"`
}

// DirectiveSpec declares a directive available after '@'.
type DirectiveSpec struct {
	Name    string `yaml:"name"`
	Summary string `yaml:"summary"`
}

// WasmConfig points at the add-on's Wasm module, which can contribute
// directives computed at load time.
type WasmConfig struct {
	File string `yaml:"file"`
}

// ParseManifest reads and parses manifest.yaml from a directory.
func ParseManifest(dir string) (*Manifest, error) {
	manifestPath := filepath.Join(dir, "manifest.yaml")

	data, err := os.ReadFile(manifestPath)
	if err != nil {
		return nil, &ManifestNotFoundError{
			Path: manifestPath,
			Err:  err,
		}
	}

	var m Manifest
	if err := yaml.Unmarshal(data, &m); err != nil {
		return nil, &ManifestParseError{
			Path: manifestPath,
			Err:  err,
		}
	}

	m.dir = dir

	if err := m.Validate(); err != nil {
		return nil, err
	}

	return &m, nil
}

// Validate checks manifest fields.
func (m *Manifest) Validate() error {
	if m.Name == "" {
		return m.invalid("name", "name is required")
	}

	if m.Version == "" {
		return m.invalid("version", "version is required")
	}

	if len(m.Capabilities) == 0 {
		return m.invalid("capabilities", "at least one capability is required")
	}

	for _, c := range m.Capabilities {
		if c != CapabilityComponents && c != CapabilityDirectives {
			return m.invalid("capabilities", fmt.Sprintf(
				"unknown capability: %s (must be one of: %s, %s)", c, CapabilityComponents, CapabilityDirectives))
		}
	}

	if len(m.Components) > 0 && !m.Provides(CapabilityComponents) {
		return m.invalid("components", "components declared without the components capability")
	}
	if (len(m.Directives) > 0 || m.Wasm != nil) && !m.Provides(CapabilityDirectives) {
		return m.invalid("directives", "directives declared without the directives capability")
	}

	seen := make(map[string]bool, len(m.Components))
	for i, c := range m.Components {
		field := fmt.Sprintf("components[%d]", i)
		if c.Name == "" {
			return m.invalid(field+".name", "component name is required")
		}
		if seen[c.Name] {
			return m.invalid(field+".name", fmt.Sprintf("duplicate component: %s", c.Name))
		}
		seen[c.Name] = true

		attrs := make(map[string]bool, len(c.Attributes))
		for j, a := range c.Attributes {
			afield := fmt.Sprintf("%s.attributes[%d].name", field, j)
			if a.Name == "" {
				return m.invalid(afield, "attribute name is required")
			}
			if attrs[a.Name] {
				return m.invalid(afield, fmt.Sprintf("duplicate attribute %s on %s", a.Name, c.Name))
			}
			attrs[a.Name] = true
		}
	}

	for i, d := range m.Directives {
		if err := ValidateDirectiveName(d.Name); err != nil {
			return m.invalid(fmt.Sprintf("directives[%d].name", i), err.Error())
		}
	}

	if m.Wasm != nil {
		if m.Wasm.File == "" {
			return m.invalid("wasm.file", "wasm.file is required when wasm is set")
		}
		if _, err := os.Stat(m.WasmPath()); os.IsNotExist(err) {
			return &WasmNotFoundError{
				ManifestPath: m.Path(),
				WasmFile:     m.Wasm.File,
			}
		}
	}

	return nil
}

func (m *Manifest) invalid(field, message string) error {
	return &ManifestValidationError{
		Path:    m.Path(),
		Field:   field,
		Message: message,
	}
}

// ValidateDirectiveName checks that name is a bare identifier.
func ValidateDirectiveName(name string) error {
	if name == "" {
		return fmt.Errorf("directive name is required")
	}
	if strings.HasPrefix(name, "@") {
		return fmt.Errorf("directive %q must not include '@'", name)
	}
	for _, r := range name {
		if !(r == '_' || r >= 'a' && r <= 'z' || r >= 'A' && r <= 'Z' || r >= '0' && r <= '9') {
			return fmt.Errorf("directive %q is not an identifier", name)
		}
	}
	return nil
}

// Provides reports whether the manifest declares capability c.
func (m *Manifest) Provides(c string) bool {
	for _, have := range m.Capabilities {
		if have == c {
			return true
		}
	}
	return false
}

// Path returns the manifest file path.
func (m *Manifest) Path() string {
	return filepath.Join(m.dir, "manifest.yaml")
}

// WasmPath returns the path to the Wasm file, or "" when there is none.
func (m *Manifest) WasmPath() string {
	if m.Wasm == nil {
		return ""
	}
	return filepath.Join(m.dir, m.Wasm.File)
}

// Dir returns the directory containing the manifest.
func (m *Manifest) Dir() string {
	return m.dir
}

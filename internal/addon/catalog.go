package addon

import (
	"sort"

	"go.uber.org/zap"
)

// Component is a reusable component available for completion.
type Component struct {
	Name       string
	Namespace  string
	Summary    string
	Attributes []Attribute
	Addon      string
}

// QualifiedName returns Namespace.Name, or Name without a namespace.
func (c Component) QualifiedName() string {
	if c.Namespace == "" {
		return c.Name
	}
	return c.Namespace + "." + c.Name
}

// Attribute is a component parameter.
type Attribute struct {
	Name    string
	Type    string
	Summary string
}

// Directive is an add-on directive available after '@'.
type Directive struct {
	Name    string
	Summary string
	Addon   string
}

// Catalog is an immutable view of everything the loaded add-ons contribute.
// A new Catalog is built whenever the add-on set changes; readers never
// need a lock.
type Catalog struct {
	components []Component
	byName     map[string]int
	directives []Directive
}

// EmptyCatalog returns a catalog with nothing in it.
func EmptyCatalog() *Catalog {
	return &Catalog{byName: map[string]int{}}
}

// BuildCatalog assembles a catalog from addons. Add-ons are visited in name
// order and declarations keep their manifest order. When two add-ons declare
// the same component or directive the first one wins.
func BuildCatalog(addons []*Addon, logger *zap.Logger) *Catalog {
	sorted := make([]*Addon, len(addons))
	copy(sorted, addons)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].Name() < sorted[j].Name() })

	c := EmptyCatalog()
	directiveSeen := map[string]string{}

	for _, a := range sorted {
		for _, spec := range a.Components() {
			comp := Component{
				Name:      spec.Name,
				Namespace: spec.Namespace,
				Summary:   spec.Summary,
				Addon:     a.Name(),
			}
			for _, attr := range spec.Attributes {
				comp.Attributes = append(comp.Attributes, Attribute(attr))
			}

			if _, dup := c.byName[comp.QualifiedName()]; dup {
				logger.Warn("Duplicate component ignored",
					zap.String("component", comp.QualifiedName()),
					zap.String("addon", a.Name()),
				)
				continue
			}
			c.byName[comp.QualifiedName()] = len(c.components)
			if _, taken := c.byName[comp.Name]; !taken {
				c.byName[comp.Name] = len(c.components)
			}
			c.components = append(c.components, comp)
		}

		for _, spec := range a.Directives {
			if owner, dup := directiveSeen[spec.Name]; dup {
				logger.Warn("Duplicate directive ignored",
					zap.String("directive", spec.Name),
					zap.String("addon", a.Name()),
					zap.String("declared_by", owner),
				)
				continue
			}
			directiveSeen[spec.Name] = a.Name()
			c.directives = append(c.directives, Directive{
				Name:    spec.Name,
				Summary: spec.Summary,
				Addon:   a.Name(),
			})
		}
	}

	return c
}

// Components returns all components in catalog order.
func (c *Catalog) Components() []Component {
	return c.components
}

// Component looks a component up by tag name, qualified or not.
func (c *Catalog) Component(tag string) (Component, bool) {
	i, ok := c.byName[tag]
	if !ok {
		return Component{}, false
	}
	return c.components[i], true
}

// Directives returns all add-on directives in catalog order.
func (c *Catalog) Directives() []Directive {
	return c.directives
}

package directive

// Info is a directive name with its one-line summary.
type Info struct {
	Name    string
	Summary string
}

// Builtins are the directives every document understands, in the order they
// are offered.
var Builtins = []Info{
	{"page", "Marks the document as a routable page and sets its route template."},
	{"using", "Imports a namespace into the document."},
	{"inject", "Injects a service from the service container into a property."},
	{"model", "Declares the type of the document's model."},
	{"layout", "Sets the layout the document renders inside."},
	{"code", "Opens a block of members for the component class."},
	{"functions", "Opens a block of members for the component class (legacy form of @code)."},
	{"namespace", "Sets the namespace of the generated component class."},
	{"implements", "Declares an interface the component class implements."},
	{"inherits", "Sets the base class of the component."},
	{"attribute", "Applies an attribute to the component class."},
	{"typeparam", "Declares a generic type parameter for the component."},
	{"preservewhitespace", "Controls whether insignificant whitespace is kept in the output."},
	{"rendermode", "Sets the render mode of the component."},
}

// Keywords are control-flow keywords valid after a transition. They are
// emitted as keyword candidates.
var Keywords = []string{"if", "for", "foreach", "while", "switch", "lock", "try"}

var builtinNames = func() map[string]bool {
	names := make(map[string]bool, len(Builtins))
	for _, b := range Builtins {
		names[b.Name] = true
	}
	return names
}()

// IsBuiltin reports whether name is a built-in directive.
func IsBuiltin(name string) bool {
	return builtinNames[name]
}

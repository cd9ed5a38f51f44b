package vexpr

import "vexpr/internal/grammar"

// Bindings resolves variable names to dense column indices at parse
// time. The id returned for a name is the index of that variable's
// column in the tables later passed to Evaluate. Real and string
// variables are separate namespaces; the same name may appear in both,
// disambiguated by how it is used.
type Bindings = grammar.Bindings

// MapBindings implements Bindings over two name-to-id maps. A nil map
// is an empty namespace.
type MapBindings struct {
	Reals   map[string]BindingID
	Strings map[string]BindingID
}

func (m MapBindings) RealVar(name string) (BindingID, bool) {
	id, ok := m.Reals[name]
	return id, ok
}

func (m MapBindings) StrVar(name string) (BindingID, bool) {
	id, ok := m.Strings[name]
	return id, ok
}

package mir

// Module is a compiled translation unit: a list of globals, a list of
// functions, and an optional entry-function name.
type Module struct {
	Globals []*Global
	Functions []*Function
	EntryName string
}

// EntryFunc returns the function named EntryName, if set and present.
func (m *Module) EntryFunc() (*Function, bool) {
	if m.EntryName == "" {
		return nil, false
	}
	for _, fn := range m.Functions {
		if fn.Name == m.EntryName {
			return fn, true
		}
	}
	return nil, false
}

// FuncByName looks up a function by name. Call instructions carry
// their callee directly, so neither call lowering nor inlining uses it.
func (m *Module) FuncByName(name string) (*Function, bool) {
	for _, fn := range m.Functions {
		if fn.Name == name {
			return fn, true
		}
	}
	return nil, false
}

package ir

// Module owns every procedure and global symbol of the program under
// analysis (spec.md §3: "A module owns procedures and global symbols.").
type Module struct {
	Name    string
	Procs   map[string]*Proc
	Globals map[string]*Global
}

// NewModule creates an empty module.
func NewModule(name string) *Module {
	return &Module{
		Name:    name,
		Procs:   make(map[string]*Proc),
		Globals: make(map[string]*Global),
	}
}

// NewProc creates a procedure owned by m.
func (m *Module) NewProc(name string) *Proc {
	p := &Proc{Name: name, Module: m}
	m.Procs[name] = p
	return p
}

// NewGlobal declares (or returns the existing) module-level symbol named
// name.
func (m *Module) NewGlobal(name string, typ Type) *Global {
	if g, ok := m.Globals[name]; ok {
		return g
	}
	g := &Global{Name: name, Typ: typ}
	m.Globals[name] = g
	return g
}

// FindFunc resolves a procedure by symbol name, the "symbol lookup" spec.md
// §6 requires for runtime-support functions. ok is false when the symbol is
// absent — callers treat that as the hard refusal of spec.md §7 category 2.
func (m *Module) FindFunc(name string) (*Proc, bool) {
	p, ok := m.Procs[name]
	return p, ok
}

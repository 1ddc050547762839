package modules

// Set is the flat name-keyed module mapping produced by a resolution pass.
// Names keep the position of their first discovery; the descriptor kept for
// a name depends on the Set's Precedence.
type Set struct {
	precedence Precedence
	order      []string
	byName     map[string]Descriptor
	// Errors holds resolution failures, one per failed subtree or dependency.
	Errors []error
}

// NewSet creates an empty set.
func NewSet(p Precedence) *Set {
	return &Set{
		precedence: p,
		byName:     make(map[string]Descriptor),
	}
}

// Fold adds discoveries in order, applying the set's precedence to repeated names.
func (s *Set) Fold(discoveries []Discovery) {
	for _, d := range discoveries {
		s.Put(d.Descriptor)
	}
}

// Put adds one descriptor.
func (s *Set) Put(d Descriptor) {
	if _, exists := s.byName[d.Name]; exists {
		if s.precedence == FirstWins {
			return
		}
		s.byName[d.Name] = d
		return
	}
	s.order = append(s.order, d.Name)
	s.byName[d.Name] = d
}

// Get returns the module registered under name.
func (s *Set) Get(name string) (Descriptor, bool) {
	d, ok := s.byName[name]
	return d, ok
}

// Len returns the number of distinct modules.
func (s *Set) Len() int {
	return len(s.order)
}

// Names returns module names in discovery order.
func (s *Set) Names() []string {
	return append([]string(nil), s.order...)
}

// Modules returns descriptors in discovery order.
func (s *Set) Modules() []Descriptor {
	out := make([]Descriptor, 0, len(s.order))
	for _, name := range s.order {
		out = append(out, s.byName[name])
	}
	return out
}

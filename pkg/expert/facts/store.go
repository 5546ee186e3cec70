package facts

import (
	"github.com/cognicore/expert/pkg/expert/rules"
)

// Provenance classifies where an attribute's value came from.
type Provenance int

const (
	Unknown Provenance = iota
	Given
	Derived
	Asked
)

func (p Provenance) String() string {
	switch p {
	case Given:
		return "given"
	case Derived:
		return "derived"
	case Asked:
		return "asked"
	default:
		return "unknown"
	}
}

// ParseProvenance is the inverse of Provenance.String.
func ParseProvenance(s string) Provenance {
	switch s {
	case "given":
		return Given
	case "derived":
		return Derived
	case "asked":
		return Asked
	default:
		return Unknown
	}
}

// Fact is one attribute=value pair with its provenance.
type Fact struct {
	Attribute  string
	Value      string
	Provenance Provenance
}

// Store maps attributes to values, remembering insertion order for display.
// Provenance lives in parallel derived/asked sets; anything in neither is given.
//
// Store is not safe for concurrent use.
type Store struct {
	values  map[string]string
	order   []string
	derived map[string]struct{}
	asked   map[string]struct{}
}

// NewStore creates an empty fact store.
func NewStore() *Store {
	return &Store{
		values:  make(map[string]string),
		derived: make(map[string]struct{}),
		asked:   make(map[string]struct{}),
	}
}

// Get returns the value for attr.
func (s *Store) Get(attr string) (string, bool) {
	v, ok := s.values[attr]
	return v, ok
}

// Has reports whether attr has a value.
func (s *Store) Has(attr string) bool {
	_, ok := s.values[attr]
	return ok
}

// Matches reports whether the store holds exactly c.Value for c.Attribute.
func (s *Store) Matches(c rules.Condition) bool {
	v, ok := s.values[c.Attribute]
	return ok && v == c.Value
}

// Set inserts or overwrites attr. The value is recorded as given.
func (s *Store) Set(attr, value string) {
	s.put(attr, value)
	delete(s.derived, attr)
	delete(s.asked, attr)
}

// Derive writes attr only when it has no value yet and marks it derived.
// It reports whether the write happened.
func (s *Store) Derive(attr, value string) bool {
	if s.Has(attr) {
		return false
	}
	s.put(attr, value)
	s.derived[attr] = struct{}{}
	return true
}

// Answer records a value supplied in response to a query and marks it asked.
func (s *Store) Answer(attr, value string) {
	s.put(attr, value)
	delete(s.derived, attr)
	s.asked[attr] = struct{}{}
}

func (s *Store) put(attr, value string) {
	if _, ok := s.values[attr]; !ok {
		s.order = append(s.order, attr)
	}
	s.values[attr] = value
}

// Provenance classifies attr.
func (s *Store) Provenance(attr string) Provenance {
	if !s.Has(attr) {
		return Unknown
	}
	if _, ok := s.derived[attr]; ok {
		return Derived
	}
	if _, ok := s.asked[attr]; ok {
		return Asked
	}
	return Given
}

// Len returns the number of known attributes.
func (s *Store) Len() int { return len(s.order) }

// Attributes returns attribute names in insertion order.
func (s *Store) Attributes() []string {
	return append([]string(nil), s.order...)
}

// Facts returns every fact in insertion order.
func (s *Store) Facts() []Fact {
	out := make([]Fact, len(s.order))
	for i, attr := range s.order {
		out[i] = Fact{Attribute: attr, Value: s.values[attr], Provenance: s.Provenance(attr)}
	}
	return out
}

// Snapshot copies the attribute→value mapping.
func (s *Store) Snapshot() map[string]string {
	out := make(map[string]string, len(s.values))
	for k, v := range s.values {
		out[k] = v
	}
	return out
}

// Clone deep-copies the store including provenance.
func (s *Store) Clone() *Store {
	c := NewStore()
	c.order = append(c.order, s.order...)
	for k, v := range s.values {
		c.values[k] = v
	}
	for k := range s.derived {
		c.derived[k] = struct{}{}
	}
	for k := range s.asked {
		c.asked[k] = struct{}{}
	}
	return c
}

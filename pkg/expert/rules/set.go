package rules

import (
	"fmt"

	"github.com/cognicore/expert/pkg/expert/internalerr"
)

// Set is an ordered rule collection with value semantics: every edit
// returns a new Set and leaves the receiver untouched.
type Set struct {
	rules []Rule
}

// NewSet builds a set from rules in declaration order.
func NewSet(rs ...Rule) Set {
	return Set{rules: append([]Rule(nil), rs...)}
}

// Len returns the number of rules.
func (s Set) Len() int { return len(s.rules) }

// At returns the rule at index i.
func (s Set) At(i int) Rule { return s.rules[i] }

// Rules returns a copy of the rules in declaration order.
func (s Set) Rules() []Rule { return append([]Rule(nil), s.rules...) }

// Texts returns the source text of every rule, in order.
func (s Set) Texts() []string {
	out := make([]string, len(s.rules))
	for i, r := range s.rules {
		out[i] = r.Text()
	}
	return out
}

// Add returns a new set with r appended.
func (s Set) Add(r Rule) Set {
	out := make([]Rule, len(s.rules), len(s.rules)+1)
	copy(out, s.rules)
	return Set{rules: append(out, r)}
}

// Extend returns a new set with other's rules appended.
func (s Set) Extend(other Set) Set {
	out := make([]Rule, 0, len(s.rules)+len(other.rules))
	out = append(out, s.rules...)
	return Set{rules: append(out, other.rules...)}
}

// Remove returns a new set without the rule at index i.
func (s Set) Remove(i int) (Set, error) {
	if i < 0 || i >= len(s.rules) {
		return s, fmt.Errorf("rule %d: %w", i, internalerr.ErrNotFound)
	}
	out := make([]Rule, 0, len(s.rules)-1)
	out = append(out, s.rules[:i]...)
	return Set{rules: append(out, s.rules[i+1:]...)}, nil
}

// Concluding returns the indexes of rules whose conclusion is exactly goal.
func (s Set) Concluding(goal Condition) []int {
	var idx []int
	for i, r := range s.rules {
		if r.Concludes(goal) {
			idx = append(idx, i)
		}
	}
	return idx
}

package rules

import (
	"fmt"
	"strings"

	"github.com/cognicore/expert/pkg/expert/internalerr"
)

// Condition is an attribute=value test against the fact store.
type Condition struct {
	Attribute string
	Value     string
}

// String renders the condition as "attribute=value".
func (c Condition) String() string {
	return c.Attribute + "=" + c.Value
}

// Rule is a conjunction of conditions implying one conclusion.
// A Rule is immutable once built; accessors hand out copies.
type Rule struct {
	conditions []Condition
	conclusion Condition
	text       string
}

// New builds a rule from already-structured parts.
// The text is kept for display only; when empty it is rendered from the parts.
func New(conditions []Condition, conclusion Condition, text string) (Rule, error) {
	if len(conditions) == 0 {
		return Rule{}, fmt.Errorf("%w: rule has no conditions", internalerr.ErrInvalidRule)
	}
	for _, c := range conditions {
		if c.Attribute == "" || c.Value == "" {
			return Rule{}, fmt.Errorf("%w: malformed condition %q", internalerr.ErrInvalidRule, c.String())
		}
	}
	if conclusion.Attribute == "" || conclusion.Value == "" {
		return Rule{}, fmt.Errorf("%w: malformed conclusion %q", internalerr.ErrInvalidRule, conclusion.String())
	}

	r := Rule{
		conditions: append([]Condition(nil), conditions...),
		conclusion: conclusion,
		text:       text,
	}
	if r.text == "" {
		r.text = r.render()
	}
	return r, nil
}

// Conditions returns a copy of the rule's conditions in declaration order.
func (r Rule) Conditions() []Condition {
	return append([]Condition(nil), r.conditions...)
}

// NumConditions reports how many conditions the rule has.
func (r Rule) NumConditions() int { return len(r.conditions) }

// Condition returns the i-th condition.
func (r Rule) Condition(i int) Condition { return r.conditions[i] }

// Conclusion returns the fact asserted when all conditions hold.
func (r Rule) Conclusion() Condition { return r.conclusion }

// Text returns the normalised source text of the rule.
func (r Rule) Text() string { return r.text }

// String implements fmt.Stringer.
func (r Rule) String() string { return r.text }

// Concludes reports whether the rule's conclusion is exactly the goal.
func (r Rule) Concludes(goal Condition) bool {
	return r.conclusion == goal
}

func (r Rule) render() string {
	parts := make([]string, len(r.conditions))
	for i, c := range r.conditions {
		parts[i] = c.String()
	}
	return "IF " + strings.Join(parts, " AND ") + " THEN " + r.conclusion.String()
}

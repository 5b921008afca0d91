// ABOUTME: Rule definitions and the ordered rule table
// ABOUTME: Registration order is the final firing tie-break
package engine

import (
	"fmt"

	"github.com/harper/dermacheck/internal/models"
)

// Action is executed when an instantiation fires
type Action func(ctx *Context) error

// Ref declares a fact a rule depends on outside its patterns, such as the
// disease a diagnosis action asserts. Consistency checks read it.
type Ref struct {
	Kind models.FactKind
	Key  string
}

// Rule is a (condition, action, salience) record
type Rule struct {
	Name     string
	Salience int
	When     []Element
	Then     Action
	Refs     []Ref
}

// RuleTable is an immutable, ordered collection of rules
type RuleTable struct {
	rules  []*Rule
	byName map[string]int
}

// NewRuleTable registers rules in order
func NewRuleTable(rules ...Rule) (*RuleTable, error) {
	t := &RuleTable{byName: make(map[string]int, len(rules))}
	for i := range rules {
		r := rules[i]
		if r.Name == "" {
			return nil, fmt.Errorf("rule %d has no name", i)
		}
		if r.Then == nil {
			return nil, fmt.Errorf("rule %s has no action", r.Name)
		}
		if _, dup := t.byName[r.Name]; dup {
			return nil, fmt.Errorf("duplicate rule name %s", r.Name)
		}
		for _, el := range r.When {
			if el == nil {
				return nil, fmt.Errorf("rule %s has a nil condition element", r.Name)
			}
		}
		t.byName[r.Name] = len(t.rules)
		t.rules = append(t.rules, &r)
	}
	return t, nil
}

// MustRuleTable is NewRuleTable for statically known rule sets
func MustRuleTable(rules ...Rule) *RuleTable {
	t, err := NewRuleTable(rules...)
	if err != nil {
		panic(err)
	}
	return t
}

// Rules returns the rules in registration order
func (t *RuleTable) Rules() []*Rule {
	if t == nil {
		return nil
	}
	return t.rules
}

// Len returns the number of registered rules
func (t *RuleTable) Len() int {
	if t == nil {
		return 0
	}
	return len(t.rules)
}

// Get looks up a rule by name
func (t *RuleTable) Get(name string) (*Rule, bool) {
	if t == nil {
		return nil, false
	}
	i, ok := t.byName[name]
	if !ok {
		return nil, false
	}
	return t.rules[i], true
}

func (t *RuleTable) position(r *Rule) int {
	return t.byName[r.Name]
}

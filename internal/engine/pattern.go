// ABOUTME: Rule condition elements: positive patterns, absence patterns and guards
// ABOUTME: Patterns constrain fact fields and bind shared variables across a rule
package engine

import (
	"fmt"
	"reflect"

	"github.com/harper/dermacheck/internal/models"
)

// Bindings maps variable names to values bound while matching one instantiation
type Bindings map[string]any

// String returns a bound variable as a string, or "" when unbound
func (b Bindings) String(name string) string {
	s, _ := b[name].(string)
	return s
}

func (b Bindings) clone() Bindings {
	out := make(Bindings, len(b)+1)
	for k, v := range b {
		out[k] = v
	}
	return out
}

type constraintOp int

const (
	opEq constraintOp = iota
	opBind
	opHas
)

// Constraint restricts one field of a candidate fact
type Constraint struct {
	Field string
	op    constraintOp
	value any
	name  string
}

// Eq requires field == value
func Eq(field string, value any) Constraint {
	return Constraint{Field: field, op: opEq, value: value}
}

// Bind binds field to variable, or requires equality if the variable is already bound
func Bind(field, variable string) Constraint {
	return Constraint{Field: field, op: opBind, name: variable}
}

// Has requires a []string field to contain value
func Has(field string, value string) Constraint {
	return Constraint{Field: field, op: opHas, value: value}
}

// EqValue returns the literal an Eq constraint tests, if it is one
func (c Constraint) EqValue() (any, bool) {
	if c.op != opEq {
		return nil, false
	}
	return c.value, true
}

// Element is one conjunct of a rule condition
type Element interface {
	element()
}

// Pattern matches facts of one kind
type Pattern struct {
	Kind        models.FactKind
	Constraints []Constraint
}

func (Pattern) element() {}

// Match builds a positive pattern
func Match(kind models.FactKind, cs ...Constraint) Pattern {
	return Pattern{Kind: kind, Constraints: cs}
}

// Absence is satisfied when no fact matches its pattern.
// Variables bound earlier in the rule constrain it; unbound ones act as wildcards.
type Absence struct {
	Pattern Pattern
}

func (Absence) element() {}

// Not builds an absence pattern
func Not(kind models.FactKind, cs ...Constraint) Absence {
	return Absence{Pattern: Match(kind, cs...)}
}

// Guard is a predicate over already-bound variables
type Guard struct {
	Name string
	Test func(Bindings) (bool, error)
}

func (Guard) element() {}

// Test builds a guard
func Test(name string, fn func(Bindings) (bool, error)) Guard {
	return Guard{Name: name, Test: fn}
}

// GuardError reports a guard that failed to evaluate; the guard counts as false
type GuardError struct {
	Rule  string
	Guard string
	Err   error
}

func (e *GuardError) Error() string {
	return fmt.Sprintf("guard %s in rule %s: %v", e.Guard, e.Rule, e.Err)
}

func (e *GuardError) Unwrap() error { return e.Err }

// unify tests a fact against a pattern, returning extended bindings on success
func (p Pattern) unify(f models.Fact, env Bindings) (Bindings, bool) {
	if f.Kind() != p.Kind {
		return nil, false
	}
	out := env
	copied := false
	for _, c := range p.Constraints {
		v, ok := f.Field(c.Field)
		if !ok {
			return nil, false
		}
		switch c.op {
		case opEq:
			if !reflect.DeepEqual(v, c.value) {
				return nil, false
			}
		case opHas:
			list, ok := v.([]string)
			if !ok || !containsString(list, c.value) {
				return nil, false
			}
		case opBind:
			if bound, ok := out[c.name]; ok {
				if !reflect.DeepEqual(bound, v) {
					return nil, false
				}
				continue
			}
			if !copied {
				out = env.clone()
				copied = true
			}
			out[c.name] = v
		}
	}
	return out, true
}

// eval runs the guard, converting errors and panics into false
func (g Guard) eval(env Bindings) (ok bool, err error) {
	defer func() {
		if r := recover(); r != nil {
			ok = false
			err = fmt.Errorf("panic: %v", r)
		}
	}()
	if g.Test == nil {
		return false, fmt.Errorf("guard has no test")
	}
	return g.Test(env)
}

func containsString(list []string, v any) bool {
	s, ok := v.(string)
	if !ok {
		return false
	}
	for _, item := range list {
		if item == s {
			return true
		}
	}
	return false
}

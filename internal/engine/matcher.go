// ABOUTME: Matcher computes every satisfied rule instantiation against working memory
// ABOUTME: Joins patterns left to right through an incrementally built binding environment
package engine

import (
	"fmt"
	"sort"
	"strings"

	"go.uber.org/zap"
)

// Instantiation is a rule paired with the bindings and facts that satisfy it
type Instantiation struct {
	Rule     *Rule
	Bindings Bindings
	Handles  []Handle
	position int
}

// Matcher evaluates rule conditions. It keeps no state about previous rounds
// beyond which guard failures were already reported.
type Matcher struct {
	logger   *zap.Logger
	reported map[string]struct{}
}

// NewMatcher creates a matcher that reports guard failures to logger
func NewMatcher(logger *zap.Logger) *Matcher {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Matcher{logger: logger, reported: make(map[string]struct{})}
}

// Instantiations returns all currently satisfied instantiations, rule by rule
// in registration order and within a rule in fact order
func (m *Matcher) Instantiations(wm *WorkingMemory, table *RuleTable) []Instantiation {
	var out []Instantiation
	for pos, r := range table.Rules() {
		m.join(wm, r, pos, 0, Bindings{}, nil, &out)
	}
	return out
}

func (m *Matcher) join(wm *WorkingMemory, r *Rule, pos, i int, env Bindings, handles []Handle, out *[]Instantiation) {
	if i == len(r.When) {
		*out = append(*out, Instantiation{
			Rule:     r,
			Bindings: env,
			Handles:  append([]Handle(nil), handles...),
			position: pos,
		})
		return
	}

	switch el := r.When[i].(type) {
	case Pattern:
		for _, e := range wm.Facts(el.Kind) {
			if next, ok := el.unify(e.Fact, env); ok {
				m.join(wm, r, pos, i+1, next, append(handles[:len(handles):len(handles)], e.Handle), out)
			}
		}
	case Absence:
		for _, e := range wm.Facts(el.Pattern.Kind) {
			if _, ok := el.Pattern.unify(e.Fact, env); ok {
				return
			}
		}
		m.join(wm, r, pos, i+1, env, handles, out)
	case Guard:
		ok, err := el.eval(env)
		if err != nil {
			m.reportGuard(&GuardError{Rule: r.Name, Guard: el.Name, Err: err}, env)
			return
		}
		if ok {
			m.join(wm, r, pos, i+1, env, handles, out)
		}
	}
}

func (m *Matcher) reportGuard(gerr *GuardError, env Bindings) {
	key := gerr.Rule + "/" + gerr.Guard + "/" + bindingsKey(env)
	if _, seen := m.reported[key]; seen {
		m.logger.Debug("guard evaluation failed", zap.Error(gerr))
		return
	}
	m.reported[key] = struct{}{}
	m.logger.Warn("guard evaluation failed, treating as false",
		zap.String("rule", gerr.Rule),
		zap.String("guard", gerr.Guard),
		zap.Error(gerr.Err))
}

func bindingsKey(b Bindings) string {
	names := make([]string, 0, len(b))
	for k := range b {
		names = append(names, k)
	}
	sort.Strings(names)
	parts := make([]string, len(names))
	for i, k := range names {
		parts[i] = fmt.Sprintf("%s=%v", k, b[k])
	}
	return strings.Join(parts, ",")
}

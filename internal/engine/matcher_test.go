// ABOUTME: Tests for the rule matcher
// ABOUTME: Covers variable joins, absence patterns, guards and fallback rules
package engine

import (
	"errors"
	"strconv"
	"testing"

	"github.com/harper/dermacheck/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
)

func noop(*Context) error { return nil }

func mustAssert(t *testing.T, wm *WorkingMemory, facts ...models.Fact) []Handle {
	t.Helper()
	var hs []Handle
	for _, f := range facts {
		h, err := wm.Assert(f)
		require.NoError(t, err)
		hs = append(hs, h)
	}
	return hs
}

func TestMatcher_SharedVariableJoin(t *testing.T) {
	wm := NewWorkingMemory()
	mustAssert(t, wm,
		models.NextQuestion{Ident: "age"},
		models.NextQuestion{Ident: "duration"},
		models.Answer{Ident: "duration", Text: "chronic", CF: 1},
		models.Answer{Ident: "severity", Text: "mild", CF: 1},
	)

	table := MustRuleTable(Rule{
		Name: "pending_and_answered",
		When: []Element{
			Match(models.KindNextQuestion, Bind("ident", "q")),
			Match(models.KindAnswer, Bind("ident", "q")),
		},
		Then: noop,
	})

	insts := NewMatcher(nil).Instantiations(wm, table)
	require.Len(t, insts, 1)
	assert.Equal(t, "duration", insts[0].Bindings.String("q"))
	assert.Len(t, insts[0].Handles, 2)
}

func TestMatcher_MultipleInstantiations(t *testing.T) {
	wm := NewWorkingMemory()
	mustAssert(t, wm,
		models.NextQuestion{Ident: "a"},
		models.NextQuestion{Ident: "b"},
	)

	table := MustRuleTable(Rule{
		Name: "each_pending",
		When: []Element{Match(models.KindNextQuestion, Bind("ident", "q"))},
		Then: noop,
	})

	insts := NewMatcher(nil).Instantiations(wm, table)
	require.Len(t, insts, 2)
	assert.Equal(t, "a", insts[0].Bindings.String("q"))
	assert.Equal(t, "b", insts[1].Bindings.String("q"))
}

func TestMatcher_Absence(t *testing.T) {
	wm := NewWorkingMemory()
	mustAssert(t, wm,
		models.NextQuestion{Ident: "age"},
		models.NextQuestion{Ident: "duration"},
		models.Answer{Ident: "age", Text: "25", CF: 1},
	)

	table := MustRuleTable(Rule{
		Name: "pending_unanswered",
		When: []Element{
			Match(models.KindNextQuestion, Bind("ident", "q")),
			Not(models.KindAnswer, Bind("ident", "q")),
		},
		Then: noop,
	})

	insts := NewMatcher(nil).Instantiations(wm, table)
	require.Len(t, insts, 1)
	assert.Equal(t, "duration", insts[0].Bindings.String("q"))
}

func TestMatcher_AbsenceWithUnboundVariableIsWildcard(t *testing.T) {
	wm := NewWorkingMemory()
	table := MustRuleTable(Rule{
		Name: "no_pending_question",
		When: []Element{Not(models.KindNextQuestion, Bind("ident", "any"))},
		Then: noop,
	})
	m := NewMatcher(nil)

	assert.Len(t, m.Instantiations(wm, table), 1)

	mustAssert(t, wm, models.NextQuestion{Ident: "age"})
	assert.Empty(t, m.Instantiations(wm, table))
}

func TestMatcher_HasConstraint(t *testing.T) {
	wm := NewWorkingMemory()
	mustAssert(t, wm, models.Answer{Ident: "locations", Text: "face,hands", CF: 1})

	hands := MustRuleTable(Rule{
		Name: "hands",
		When: []Element{Match(models.KindAnswer, Eq("ident", "locations"), Has("values", "hands"))},
		Then: noop,
	})
	feet := MustRuleTable(Rule{
		Name: "feet",
		When: []Element{Match(models.KindAnswer, Eq("ident", "locations"), Has("values", "feet"))},
		Then: noop,
	})

	m := NewMatcher(nil)
	assert.Len(t, m.Instantiations(wm, hands), 1)
	assert.Empty(t, m.Instantiations(wm, feet))
}

func TestMatcher_MissingFieldFailsPattern(t *testing.T) {
	wm := NewWorkingMemory()
	mustAssert(t, wm, models.Marker{Name: "start"})

	table := MustRuleTable(Rule{
		Name: "weird",
		When: []Element{Match(models.KindMarker, Eq("no_such_field", "x"))},
		Then: noop,
	})

	assert.Empty(t, NewMatcher(nil).Instantiations(wm, table))
}

func ageAbove(limit int) Guard {
	return Test("age_above", func(b Bindings) (bool, error) {
		n, err := strconv.Atoi(b.String("age"))
		if err != nil {
			return false, err
		}
		return n > limit, nil
	})
}

func TestMatcher_Guards(t *testing.T) {
	tests := []struct {
		name  string
		age   string
		guard Guard
		want  int
	}{
		{name: "guard true", age: "70", guard: ageAbove(50), want: 1},
		{name: "guard false", age: "25", guard: ageAbove(50), want: 0},
		{name: "guard error is false", age: "old", guard: ageAbove(50), want: 0},
		{
			name: "guard panic is false",
			age:  "70",
			guard: Test("boom", func(Bindings) (bool, error) {
				var m map[string]int
				m["x"] = 1
				return true, nil
			}),
			want: 0,
		},
		{name: "guard without test is false", age: "70", guard: Guard{Name: "empty"}, want: 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			wm := NewWorkingMemory()
			mustAssert(t, wm, models.Answer{Ident: "age", Text: tt.age, CF: 1})

			table := MustRuleTable(Rule{
				Name: "older_patient",
				When: []Element{
					Match(models.KindAnswer, Eq("ident", "age"), Bind("text", "age")),
					tt.guard,
				},
				Then: noop,
			})

			assert.Len(t, NewMatcher(nil).Instantiations(wm, table), tt.want)
		})
	}
}

func TestMatcher_GuardFailureLoggedOnce(t *testing.T) {
	core, logs := observer.New(zap.WarnLevel)
	m := NewMatcher(zap.New(core))

	wm := NewWorkingMemory()
	mustAssert(t, wm, models.Answer{Ident: "age", Text: "old", CF: 1})
	table := MustRuleTable(Rule{
		Name: "older_patient",
		When: []Element{
			Match(models.KindAnswer, Eq("ident", "age"), Bind("text", "age")),
			ageAbove(50),
		},
		Then: noop,
	})

	m.Instantiations(wm, table)
	m.Instantiations(wm, table)

	require.Equal(t, 1, logs.Len())
	entry := logs.All()[0]
	assert.Equal(t, "older_patient", entry.ContextMap()["rule"])
}

func TestMatcher_ZeroPatternRuleAlwaysCandidate(t *testing.T) {
	table := MustRuleTable(Rule{Name: "fallback", Then: noop})
	insts := NewMatcher(nil).Instantiations(NewWorkingMemory(), table)
	require.Len(t, insts, 1)
	assert.Empty(t, insts[0].Handles)
}

func TestGuardError_Unwrap(t *testing.T) {
	inner := errors.New("bad")
	err := &GuardError{Rule: "r", Guard: "g", Err: inner}
	assert.ErrorIs(t, err, inner)
	assert.Contains(t, err.Error(), "guard g in rule r")
}

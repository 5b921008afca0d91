// ABOUTME: Shared fixtures for core tests: a small catalog, diseases and rule set
// ABOUTME: Mirrors the triage opening of a consultation down to a single growth question
package core

import (
	"testing"

	"github.com/harper/dermacheck/internal/engine"
	"github.com/harper/dermacheck/internal/models"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

func intPtr(n int) *int { return &n }

func testCatalog(t *testing.T) QuestionSet {
	t.Helper()
	yesNo := []string{"yes", "no"}
	set, err := NewQuestionSet(
		models.Question{Ident: "age", Prompt: "What is your age?", InputKind: models.InputNumber},
		models.Question{Ident: "duration", Prompt: "How long?", InputKind: models.InputSingleChoice,
			AllowedValues: []string{"1-2 weeks", "2-4 weeks", "weeks to months", "chronic"}},
		models.Question{Ident: "severity", Prompt: "How severe?", InputKind: models.InputSingleChoice,
			AllowedValues: []string{"mild", "moderate", "severe"}},
		models.Question{Ident: "has_symptom_soft_lump", Prompt: "Soft lump?", InputKind: models.InputSingleChoice, AllowedValues: yesNo},
		models.Question{Ident: "has_symptom_itching", Prompt: "Itchy?", InputKind: models.InputSingleChoice, AllowedValues: yesNo},
		models.Question{Ident: "locations", Prompt: "Where?", InputKind: models.InputMultiChoice,
			AllowedValues: []string{"face", "hands", "feet"}},
	)
	require.NoError(t, err)
	return set
}

func testDiseases() []models.DiseaseInfo {
	return []models.DiseaseInfo{
		{Name: "Lipoma", CommonDuration: "chronic"},
		{Name: "Eczema", AgeMin: intPtr(1), AgeMax: intPtr(40), SeverityLevels: []string{"mild", "moderate"}, CommonDuration: "chronic with flares"},
		{Name: "X"},
	}
}

func mustRule(t *testing.T) func(engine.Rule, error) engine.Rule {
	return func(r engine.Rule, err error) engine.Rule {
		t.Helper()
		require.NoError(t, err)
		return r
	}
}

// testRules asks age, duration, severity then the soft-lump question; itching
// is asked only when there is no soft lump
func testRules(t *testing.T) *engine.RuleTable {
	t.Helper()
	must := mustRule(t)
	agg := NewAggregator(DefaultDurationPolicy())

	table, err := engine.NewRuleTable(
		PromptRule(),
		must(AskRule("ask_age", 103, "age", MarkerPresent(models.MarkerStart))),
		must(AskRule("ask_duration", 102, "duration", Answered("age"))),
		must(AskRule("ask_severity", 101, "severity", Answered("duration"))),
		must(AskRule("ask_soft_lump", 100, "has_symptom_soft_lump", Answered("severity"))),
		must(AskRule("ask_itching", 90, "has_symptom_itching", AnsweredWith("has_symptom_soft_lump", "no"))),
		must(agg.DiagnosisRule("diagnose_lipoma", 0,
			Evidence{Disease: "Lipoma", CF: 0.8, Reasoning: "Soft lump is characteristic of lipoma."},
			AnsweredWith("has_symptom_soft_lump", "yes"))),
		must(agg.DiagnosisRule("diagnose_eczema", 0,
			Evidence{Disease: "Eczema", CF: 0.7, Reasoning: "Itchy skin"},
			AnsweredWith("has_symptom_itching", "yes"))),
		agg.SelectionRule(),
	)
	require.NoError(t, err)
	return table
}

func newTestSession(t *testing.T, opts ...func(*Config)) *Session {
	t.Helper()
	cfg := Config{
		SessionID: "test-session",
		Catalog:   testCatalog(t),
		Diseases:  testDiseases(),
		Rules:     testRules(t),
	}
	for _, opt := range opts {
		opt(&cfg)
	}
	s, err := NewSession(cfg)
	require.NoError(t, err)
	return s
}

// drive answers each pending question from script until the session stops asking
func drive(t *testing.T, s *Session, script map[string]string) ([]string, EngineState) {
	t.Helper()
	var asked []string
	state := s.Run()
	for state.Kind == StateNeedInput {
		ident := state.Question.Ident
		asked = append(asked, ident)
		answer, ok := script[ident]
		require.Truef(t, ok, "unscripted question %s", ident)
		require.NoError(t, s.AssertAnswer(ident, answer))
		state = s.Run()
	}
	return asked, state
}

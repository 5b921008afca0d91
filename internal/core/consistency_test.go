// ABOUTME: Tests for the rule set consistency check
// ABOUTME: Unknown question idents and disease names must be reported at construction
package core

import (
	"errors"
	"testing"

	"github.com/harper/dermacheck/internal/engine"
	"github.com/harper/dermacheck/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func diseaseNames(infos []models.DiseaseInfo) map[string]struct{} {
	out := make(map[string]struct{}, len(infos))
	for _, d := range infos {
		out[d.Name] = struct{}{}
	}
	return out
}

func TestCheckConsistency_FixtureRulesAreClean(t *testing.T) {
	assert.NoError(t, CheckConsistency(testRules(t), testCatalog(t), diseaseNames(testDiseases())))
}

func TestCheckConsistency_ReportsEveryProblem(t *testing.T) {
	must := mustRule(t)
	agg := NewAggregator(DefaultDurationPolicy())
	table := engine.MustRuleTable(
		must(AskRule("ask_ghost", 10, "ghost_question", MarkerPresent(models.MarkerStart))),
		must(agg.DiagnosisRule("diagnose_unknown", 0,
			Evidence{Disease: "Dragon Pox", CF: 0.5, Reasoning: "scales"},
			AnsweredWith("has_symptom_scales", "yes"))),
	)

	err := CheckConsistency(table, testCatalog(t), diseaseNames(testDiseases()))
	var cerr *ConfigurationError
	require.True(t, errors.As(err, &cerr))
	assert.Len(t, cerr.Problems, 3)
	assert.Contains(t, err.Error(), "ghost_question")
	assert.Contains(t, err.Error(), "Dragon Pox")
	assert.Contains(t, err.Error(), "has_symptom_scales")
}

func TestCheckConsistency_ReportsRepeatedKeyOnce(t *testing.T) {
	must := mustRule(t)
	// an ask rule names its ident in both a negated answer pattern and a ref
	table := engine.MustRuleTable(
		must(AskRule("ask_ghost", 10, "ghost_question", MarkerPresent(models.MarkerStart))),
	)

	err := CheckConsistency(table, testCatalog(t), nil)
	var cerr *ConfigurationError
	require.True(t, errors.As(err, &cerr))
	assert.Equal(t, []string{`rule ask_ghost references unknown question "ghost_question"`}, cerr.Problems)
}

func TestCheckConsistency_IgnoresVariablePatterns(t *testing.T) {
	// The prompt rule binds idents rather than naming them
	table := engine.MustRuleTable(PromptRule())
	assert.NoError(t, CheckConsistency(table, QuestionSet{}, nil))
}

func TestNewSession_RejectsInconsistentRules(t *testing.T) {
	must := mustRule(t)
	_, err := NewSession(Config{
		Catalog:  testCatalog(t),
		Diseases: testDiseases(),
		Rules:    engine.MustRuleTable(must(AskRule("ask_ghost", 1, "ghost", MarkerPresent(models.MarkerStart)))),
	})
	var cerr *ConfigurationError
	assert.True(t, errors.As(err, &cerr))
}

func TestNewSession_RejectsBadDiseaseData(t *testing.T) {
	tests := []struct {
		name     string
		diseases []models.DiseaseInfo
	}{
		{name: "duplicate", diseases: []models.DiseaseInfo{{Name: "X"}, {Name: "X"}}},
		{name: "half age range", diseases: []models.DiseaseInfo{{Name: "X", AgeMin: intPtr(3)}}},
		{name: "inverted age range", diseases: []models.DiseaseInfo{{Name: "X", AgeMin: intPtr(30), AgeMax: intPtr(3)}}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewSession(Config{Catalog: testCatalog(t), Diseases: tt.diseases})
			var cerr *ConfigurationError
			assert.True(t, errors.As(err, &cerr), "got %v", err)
		})
	}
}

func TestNewSession_RequiresCatalog(t *testing.T) {
	_, err := NewSession(Config{})
	assert.Error(t, err)
}

// ABOUTME: Tests for the diagnosis aggregator
// ABOUTME: Covers contextual adjustments, merge-on-create and best-candidate selection
package core

import (
	"testing"

	"github.com/harper/dermacheck/internal/engine"
	"github.com/harper/dermacheck/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
)

func answers(m map[string]string) func(string) (string, bool) {
	return func(ident string) (string, bool) {
		v, ok := m[ident]
		return v, ok
	}
}

func TestAggregator_Adjustments(t *testing.T) {
	ranged := models.DiseaseInfo{
		Name: "Eczema", AgeMin: intPtr(1), AgeMax: intPtr(40),
		SeverityLevels: []string{"mild", "moderate"}, CommonDuration: "chronic with flares",
	}
	shortCourse := models.DiseaseInfo{Name: "Impetigo", CommonDuration: "1-2 weeks"}
	bare := models.DiseaseInfo{Name: "Lipoma", CommonDuration: "chronic"}

	tests := []struct {
		name    string
		info    models.DiseaseInfo
		answers map[string]string
		want    []float64
	}{
		{name: "age in range", info: ranged, answers: map[string]string{"age": "25"}, want: []float64{AgeMatchBonus}},
		{name: "age out of range", info: ranged, answers: map[string]string{"age": "70"}, want: []float64{AgeMismatchPenalty}},
		{name: "age boundary inclusive", info: ranged, answers: map[string]string{"age": "40"}, want: []float64{AgeMatchBonus}},
		{name: "age unparseable skipped", info: ranged, answers: map[string]string{"age": "forty"}},
		{name: "age without range skipped", info: bare, answers: map[string]string{"age": "25"}},
		{name: "long duration vs short course", info: shortCourse, answers: map[string]string{"duration": "chronic"}, want: []float64{DurationMismatchPenalty}},
		{name: "matching duration", info: bare, answers: map[string]string{"duration": "chronic"}, want: []float64{DurationMatchBonus}},
		{name: "equivalent duration", info: models.DiseaseInfo{Name: "Y", CommonDuration: "days to weeks"}, answers: map[string]string{"duration": "2-4 weeks"}, want: []float64{DurationMatchBonus}},
		{name: "unrelated duration", info: bare, answers: map[string]string{"duration": "1-2 weeks"}},
		{name: "severity typical", info: ranged, answers: map[string]string{"severity": "mild"}, want: []float64{SeverityMatchBonus}},
		{name: "severity atypical", info: ranged, answers: map[string]string{"severity": "severe"}, want: []float64{SeverityMismatchPenalty}},
		{name: "severity without levels skipped", info: bare, answers: map[string]string{"severity": "severe"}},
		{
			name:    "all three in order",
			info:    ranged,
			answers: map[string]string{"age": "25", "duration": "chronic with flares", "severity": "moderate"},
			want:    []float64{AgeMatchBonus, DurationMatchBonus, SeverityMatchBonus},
		},
	}

	agg := NewAggregator(DefaultDurationPolicy())
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			adjs := agg.Adjustments(tt.info, answers(tt.answers), zap.NewNop())
			var got []float64
			for _, a := range adjs {
				got = append(got, a.Delta)
				assert.NotEmpty(t, a.Note)
			}
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestAggregator_UnparseableAgeIsLogged(t *testing.T) {
	obsCore, logs := observer.New(zap.WarnLevel)
	agg := NewAggregator(DefaultDurationPolicy())
	info := models.DiseaseInfo{Name: "Eczema", AgeMin: intPtr(1), AgeMax: intPtr(40)}

	adjs := agg.Adjustments(info, answers(map[string]string{"age": "n/a"}), zap.New(obsCore))
	assert.Empty(t, adjs)
	require.Equal(t, 1, logs.Len())
	assert.Equal(t, "Eczema", logs.All()[0].ContextMap()["disease"])
}

func TestDurationPolicy_Delta(t *testing.T) {
	p := DefaultDurationPolicy()

	_, ok := p.Delta("", "chronic")
	assert.False(t, ok)
	_, ok = p.Delta("chronic", "")
	assert.False(t, ok)

	d, ok := p.Delta("months to years", "6-12 months")
	assert.True(t, ok)
	assert.Equal(t, DurationMatchBonus, d)

	d, ok = p.Delta("weeks to months", "days to weeks")
	assert.True(t, ok)
	assert.Equal(t, DurationMismatchPenalty, d)
}

func TestDefaultDurationPolicy_Table(t *testing.T) {
	p := DefaultDurationPolicy()

	tests := []struct {
		reported, course string
		want             float64
		applied          bool
	}{
		{"weeks to months", "1-4 weeks", DurationMatchBonus, true},
		{"chronic", "persistent", DurationMatchBonus, true},
		{"chronic", "persistent/chronic", DurationMatchBonus, true},
		{"chronic", "chronic until treated", DurationMatchBonus, true},
		{"2-4 weeks", "days to weeks", DurationMatchBonus, true},
		{"chronic", "days to weeks", DurationMismatchPenalty, true},
		{"months to years", "1-3 weeks", DurationMismatchPenalty, true},
		{"chronic", "chronic and slow-growing", 0, false},
		{"chronic", "chronic unless treated", 0, false},
		{"chronic with flares", "chronic with flare-ups", 0, false},
		{"1-3 weeks", "1-2 weeks", 0, false},
		{"days to weeks", "days to weeks", 0, false},
		{"weeks to months", "weeks to months (if untreated)", 0, false},
	}
	for _, tt := range tests {
		t.Run(tt.reported+"/"+tt.course, func(t *testing.T) {
			d, ok := p.Delta(tt.reported, tt.course)
			assert.Equal(t, tt.applied, ok)
			assert.Equal(t, tt.want, d)
		})
	}

	assert.Len(t, p.Equivalents, 7)
	assert.Equal(t, []string{"1-2 weeks", "1-3 weeks", "2-4 weeks", "days to weeks"}, p.ShortTermCourses)
}

// Two rules contributing to the same disease leave one merged fact
func TestAggregator_MergesEvidenceForSameDisease(t *testing.T) {
	must := mustRule(t)
	agg := NewAggregator(DefaultDurationPolicy())
	table := engine.MustRuleTable(
		must(agg.DiagnosisRule("rule_one", 0, Evidence{Disease: "X", CF: 0.5, Reasoning: "r1"})),
		must(agg.DiagnosisRule("rule_two", 0, Evidence{Disease: "X", CF: 0.3, Reasoning: "r2"})),
	)

	wm := engine.NewWorkingMemory()
	_, err := wm.Assert(models.DiseaseInfo{Name: "X"})
	require.NoError(t, err)

	var live []int
	e := engine.New(wm, table, engine.WithObserver(func(engine.Firing) {
		live = append(live, len(wm.Facts(models.KindDiagnosis)))
	}))
	res, err := e.Run()
	require.NoError(t, err)
	assert.Equal(t, 2, res.Fired)
	assert.Equal(t, []int{1, 1}, live)

	entry, ok := wm.Lookup(models.KindDiagnosis, "X")
	require.True(t, ok)
	d := entry.Fact.(models.Diagnosis)
	assert.InDelta(t, 0.65, d.CF, 1e-12)
	assert.Contains(t, d.Reasoning, "r1")
	assert.Contains(t, d.Reasoning, "r2")
	assert.Equal(t, 1, d.MergeCount)
	assert.Equal(t, 1, d.Order)
}

func TestAggregator_DiagnosisRuleFiresOnce(t *testing.T) {
	must := mustRule(t)
	agg := NewAggregator(DefaultDurationPolicy())
	table := engine.MustRuleTable(
		must(agg.DiagnosisRule("only", 0, Evidence{Disease: "X", CF: 0.4, Reasoning: "r"})),
	)
	wm := engine.NewWorkingMemory()

	e := engine.New(wm, table)
	for i := 0; i < 3; i++ {
		_, err := e.Run()
		require.NoError(t, err)
	}
	assert.Equal(t, 1, e.Cycle())

	entry, ok := wm.Lookup(models.KindDiagnosis, "X")
	require.True(t, ok)
	assert.InDelta(t, 0.4, entry.Fact.(models.Diagnosis).CF, 1e-12)
}

func TestAggregator_DiagnosisRuleRejectsBadEvidence(t *testing.T) {
	agg := NewAggregator(DefaultDurationPolicy())
	_, err := agg.DiagnosisRule("no_disease", 0, Evidence{CF: 0.5})
	assert.Error(t, err)
	_, err = agg.DiagnosisRule("too_sure", 0, Evidence{Disease: "X", CF: 1.5})
	assert.Error(t, err)
}

func TestRankDiagnoses_TiesGoToFirstCreated(t *testing.T) {
	entries := []engine.Entry{
		{Handle: 1, Fact: models.Diagnosis{Disease: "B", CF: 0.7, Order: 2}},
		{Handle: 2, Fact: models.Diagnosis{Disease: "A", CF: 0.7, Order: 1}},
		{Handle: 3, Fact: models.Diagnosis{Disease: "C", CF: 0.9, Order: 3}},
		{Handle: 4, Fact: models.Marker{Name: "ignored"}},
	}

	ranked := RankDiagnoses(entries)
	require.Len(t, ranked, 3)
	assert.Equal(t, []string{"C", "A", "B"}, []string{ranked[0].Disease, ranked[1].Disease, ranked[2].Disease})

	best, ok := BestDiagnosis(entries[:2])
	require.True(t, ok)
	assert.Equal(t, "A", best.Disease)

	_, ok = BestDiagnosis(nil)
	assert.False(t, ok)
}

func TestSelectionRule_NoDiagnosis(t *testing.T) {
	agg := NewAggregator(DefaultDurationPolicy())
	wm := engine.NewWorkingMemory()
	e := engine.New(wm, engine.MustRuleTable(agg.SelectionRule()))

	_, err := e.Run()
	require.NoError(t, err)
	_, err = e.Run()
	require.NoError(t, err)
	assert.Equal(t, 1, e.Cycle())

	m, ok := wm.Lookup(models.KindMarker, models.MarkerResultsProcessed)
	require.True(t, ok)
	assert.Empty(t, m.Fact.(models.Marker).Value)
}

func TestSelectionRule_WaitsForPendingQuestion(t *testing.T) {
	agg := NewAggregator(DefaultDurationPolicy())
	wm := engine.NewWorkingMemory()
	_, err := wm.Assert(models.NextQuestion{Ident: "age"})
	require.NoError(t, err)

	e := engine.New(wm, engine.MustRuleTable(agg.SelectionRule()))
	res, err := e.Run()
	require.NoError(t, err)
	assert.Zero(t, res.Fired)
}

func TestMergeReasoning(t *testing.T) {
	tests := []struct {
		prev, next, want string
	}{
		{"", "r1", "r1"},
		{"r1", "r2", "r1; r2"},
		{"r1; r2", "r2; r3", "r1; r2; r3"},
		{"r1", "r1", "r1"},
		{"", "", ""},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, MergeReasoning(tt.prev, tt.next))
	}
}

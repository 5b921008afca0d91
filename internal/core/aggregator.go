// ABOUTME: Diagnosis aggregator merging rule evidence into one Diagnosis per disease
// ABOUTME: Applies age, duration and severity adjustments before merging
package core

import (
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/harper/dermacheck/internal/engine"
	"github.com/harper/dermacheck/internal/models"
	"go.uber.org/zap"
)

// Question idents the contextual adjustments read
const (
	IdentAge      = "age"
	IdentDuration = "duration"
	IdentSeverity = "severity"
)

// Contextual adjustment deltas
const (
	AgeMatchBonus           = 0.15
	AgeMismatchPenalty      = -0.20
	DurationMatchBonus      = 0.1
	DurationMismatchPenalty = -0.4
	SeverityMatchBonus      = 0.15
	SeverityMismatchPenalty = -0.15
)

// Selection rule identity
const (
	SelectionRuleName = "select_best_diagnosis"
	SelectionSalience = -1000
)

// ReasonSeparator joins individual justifications in Diagnosis.Reasoning
const ReasonSeparator = "; "

// DurationPolicy decides how a reported symptom duration relates to a disease's usual course
type DurationPolicy struct {
	Equivalents      map[string][]string `json:"equivalents" yaml:"equivalents"`
	LongTermAnswers  []string            `json:"long_term_answers" yaml:"long_term_answers"`
	ShortTermCourses []string            `json:"short_term_courses" yaml:"short_term_courses"`
}

// DefaultDurationPolicy returns the standard duration vocabulary
func DefaultDurationPolicy() DurationPolicy {
	return DurationPolicy{
		Equivalents: map[string][]string{
			"1-2 weeks":           {"1-2 weeks"},
			"1-3 weeks":           {"1-3 weeks"},
			"2-4 weeks":           {"2-4 weeks", "days to weeks"},
			"weeks to months":     {"weeks to months", "1-4 weeks"},
			"months to years":     {"months to years", "6-12 months"},
			"chronic":             {"chronic", "persistent/chronic", "chronic until treated", "persistent"},
			"chronic with flares": {"chronic with flares"},
		},
		LongTermAnswers:  []string{"weeks to months", "months to years", "chronic", "chronic with flares"},
		ShortTermCourses: []string{"1-2 weeks", "1-3 weeks", "2-4 weeks", "days to weeks"},
	}
}

// Delta returns the duration adjustment for a reported duration against a disease course
func (p DurationPolicy) Delta(reported, course string) (float64, bool) {
	if reported == "" || course == "" {
		return 0, false
	}
	if contains(p.LongTermAnswers, reported) && contains(p.ShortTermCourses, course) {
		return DurationMismatchPenalty, true
	}
	if contains(p.Equivalents[reported], course) {
		return DurationMatchBonus, true
	}
	return 0, false
}

// Adjustment is one contextual delta applied to raw rule evidence
type Adjustment struct {
	Factor string
	Delta  float64
	Note   string
}

// Evidence is what a diagnosis rule contributes when it fires
type Evidence struct {
	Disease   string
	CF        float64
	Reasoning string
}

// Aggregator builds diagnosis and selection rules sharing one duration policy
type Aggregator struct {
	policy DurationPolicy
}

// NewAggregator creates an aggregator
func NewAggregator(policy DurationPolicy) *Aggregator {
	return &Aggregator{policy: policy}
}

// Adjustments computes the contextual deltas for info given the patient's answers.
// An age that does not parse is logged and skipped.
func (a *Aggregator) Adjustments(info models.DiseaseInfo, answer func(ident string) (string, bool), logger *zap.Logger) []Adjustment {
	var out []Adjustment

	if age, ok := answer(IdentAge); ok && info.HasAgeRange() {
		n, err := strconv.Atoi(strings.TrimSpace(age))
		if err != nil {
			logger.Warn("age guard could not be evaluated, skipping age adjustment",
				zap.String("disease", info.Name),
				zap.Error(&engine.GuardError{Rule: "age_adjustment", Guard: "age_in_range", Err: err}))
		} else if n >= *info.AgeMin && n <= *info.AgeMax {
			out = append(out, Adjustment{Factor: IdentAge, Delta: AgeMatchBonus,
				Note: fmt.Sprintf("age %d within typical range %d-%d", n, *info.AgeMin, *info.AgeMax)})
		} else {
			out = append(out, Adjustment{Factor: IdentAge, Delta: AgeMismatchPenalty,
				Note: fmt.Sprintf("age %d outside typical range %d-%d", n, *info.AgeMin, *info.AgeMax)})
		}
	}

	if reported, ok := answer(IdentDuration); ok {
		if delta, ok := a.policy.Delta(reported, info.CommonDuration); ok {
			verb := "matches"
			if delta < 0 {
				verb = "conflicts with"
			}
			out = append(out, Adjustment{Factor: IdentDuration, Delta: delta,
				Note: fmt.Sprintf("duration %s %s usual course %s", reported, verb, info.CommonDuration)})
		}
	}

	if severity, ok := answer(IdentSeverity); ok && len(info.SeverityLevels) > 0 {
		if contains(info.SeverityLevels, severity) {
			out = append(out, Adjustment{Factor: IdentSeverity, Delta: SeverityMatchBonus,
				Note: fmt.Sprintf("%s severity is typical", severity)})
		} else {
			out = append(out, Adjustment{Factor: IdentSeverity, Delta: SeverityMismatchPenalty,
				Note: fmt.Sprintf("%s severity is atypical", severity)})
		}
	}

	return out
}

// Contribute folds one piece of evidence into working memory, creating the
// disease's Diagnosis or retracting and replacing the existing one
func (a *Aggregator) Contribute(ctx *engine.Context, ev Evidence) (models.Diagnosis, error) {
	logger := ctx.Logger()
	cfs := []float64{ev.CF}
	reasons := []string{ev.Reasoning}

	if e, ok := ctx.Lookup(models.KindDiseaseInfo, ev.Disease); ok {
		info := e.Fact.(models.DiseaseInfo)
		for _, adj := range a.Adjustments(info, answerReader(ctx), logger) {
			cfs = append(cfs, adj.Delta)
			reasons = append(reasons, adj.Note)
		}
	} else {
		logger.Warn("no disease info for evidence, skipping adjustments", zap.String("disease", ev.Disease))
	}
	cf := CombineAll(cfs...)

	var next models.Diagnosis
	if e, ok := ctx.Lookup(models.KindDiagnosis, ev.Disease); ok {
		old := e.Fact.(models.Diagnosis)
		if err := ctx.Retract(e.Handle); err != nil {
			return models.Diagnosis{}, fmt.Errorf("failed to retract diagnosis %s: %w", ev.Disease, err)
		}
		next = models.Diagnosis{
			Disease:    ev.Disease,
			CF:         Combine(old.CF, cf),
			Reasoning:  MergeReasoning(old.Reasoning, strings.Join(reasons, ReasonSeparator)),
			MergeCount: old.MergeCount + 1,
			Order:      old.Order,
		}
	} else {
		d, err := models.NewDiagnosis(ev.Disease, cf, MergeReasoning("", strings.Join(reasons, ReasonSeparator)))
		if err != nil {
			return models.Diagnosis{}, err
		}
		d.Order = nextOrder(ctx.Facts(models.KindDiagnosis))
		next = d
	}

	if _, err := ctx.Assert(next); err != nil {
		return models.Diagnosis{}, err
	}
	logger.Debug("diagnosis updated",
		zap.String("disease", next.Disease),
		zap.Float64("raw_cf", ev.CF),
		zap.Float64("cf", next.CF),
		zap.Int("merge_count", next.MergeCount))
	return next, nil
}

// DiagnosisRule builds a rule that contributes ev once when its conditions hold
func (a *Aggregator) DiagnosisRule(name string, salience int, ev Evidence, when ...engine.Element) (engine.Rule, error) {
	if ev.Disease == "" {
		return engine.Rule{}, fmt.Errorf("diagnosis rule %s has no disease", name)
	}
	if ev.CF < -1 || ev.CF > 1 {
		return engine.Rule{}, fmt.Errorf("diagnosis rule %s has cf %v outside [-1,1]", name, ev.CF)
	}

	marker := models.EvidenceMarker(name)
	conds := append(append([]engine.Element(nil), when...),
		engine.Not(models.KindMarker, engine.Eq("name", marker)))

	return engine.Rule{
		Name:     name,
		Salience: salience,
		When:     conds,
		Refs:     []engine.Ref{{Kind: models.KindDiseaseInfo, Key: ev.Disease}},
		Then: func(ctx *engine.Context) error {
			if _, err := a.Contribute(ctx, ev); err != nil {
				return err
			}
			_, err := ctx.Assert(models.Marker{Name: marker})
			return err
		},
	}, nil
}

// SelectionRule picks the best diagnosis once no question is pending.
// It guards on its own marker so it fires at most once per session.
func (a *Aggregator) SelectionRule() engine.Rule {
	return engine.Rule{
		Name:     SelectionRuleName,
		Salience: SelectionSalience,
		When: []engine.Element{
			engine.Not(models.KindNextQuestion),
			engine.Not(models.KindMarker, engine.Eq("name", models.MarkerResultsProcessed)),
		},
		Then: func(ctx *engine.Context) error {
			marker := models.Marker{Name: models.MarkerResultsProcessed}
			if best, ok := BestDiagnosis(ctx.Facts(models.KindDiagnosis)); ok {
				marker.Value = best.Disease
				ctx.Logger().Info("diagnosis selected",
					zap.String("disease", best.Disease),
					zap.Float64("cf", best.CF))
			} else {
				ctx.Logger().Info("no diagnosis could be made")
			}
			_, err := ctx.Assert(marker)
			return err
		},
	}
}

// RankDiagnoses orders diagnoses by descending cf, earliest created first on ties
func RankDiagnoses(entries []engine.Entry) []models.Diagnosis {
	out := make([]models.Diagnosis, 0, len(entries))
	for _, e := range entries {
		if d, ok := e.Fact.(models.Diagnosis); ok {
			out = append(out, d)
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].CF != out[j].CF {
			return out[i].CF > out[j].CF
		}
		return out[i].Order < out[j].Order
	})
	return out
}

// BestDiagnosis returns the top-ranked diagnosis
func BestDiagnosis(entries []engine.Entry) (models.Diagnosis, bool) {
	ranked := RankDiagnoses(entries)
	if len(ranked) == 0 {
		return models.Diagnosis{}, false
	}
	return ranked[0], true
}

// MergeReasoning appends the reasons in next that are not already present in prev
func MergeReasoning(prev, next string) string {
	var out []string
	seen := make(map[string]struct{})
	for _, chunk := range []string{prev, next} {
		for _, r := range strings.Split(chunk, ReasonSeparator) {
			r = strings.TrimSpace(r)
			if r == "" {
				continue
			}
			if _, dup := seen[r]; dup {
				continue
			}
			seen[r] = struct{}{}
			out = append(out, r)
		}
	}
	return strings.Join(out, ReasonSeparator)
}

func answerReader(ctx *engine.Context) func(string) (string, bool) {
	return func(ident string) (string, bool) {
		e, ok := ctx.Lookup(models.KindAnswer, ident)
		if !ok {
			return "", false
		}
		return e.Fact.(models.Answer).Text, true
	}
}

func nextOrder(entries []engine.Entry) int {
	highest := 0
	for _, e := range entries {
		if d, ok := e.Fact.(models.Diagnosis); ok && d.Order > highest {
			highest = d.Order
		}
	}
	return highest + 1
}

func contains(list []string, v string) bool {
	for _, item := range list {
		if item == v {
			return true
		}
	}
	return false
}

// ABOUTME: Scoring for benchmark runs
// ABOUTME: Judges each run against its expectation and aggregates a summary
package scenarios

import (
	"fmt"
	"strings"
)

// Result statuses
const (
	StatusPass = "PASS"
	StatusFail = "FAIL"
)

// Result is the outcome of running one scenario
type Result struct {
	ScenarioID    string   `json:"scenario_id"`
	Name          string   `json:"name"`
	Disease       string   `json:"disease,omitempty"`
	CF            float64  `json:"cf,omitempty"`
	Questions     []string `json:"questions"`
	Firings       int      `json:"firings"`
	Correct       bool     `json:"correct"`
	Deterministic bool     `json:"deterministic"`
	Status        string   `json:"status"`
	Details       []string `json:"details,omitempty"`
	Error         string   `json:"error,omitempty"`
}

// Summary aggregates results
type Summary struct {
	Total         int     `json:"total"`
	Passed        int     `json:"passed"`
	Failed        int     `json:"failed"`
	Accuracy      float64 `json:"accuracy"`
	MeanCF        float64 `json:"mean_cf"`
	MeanQuestions float64 `json:"mean_questions"`
	Deterministic bool    `json:"deterministic"`
}

// run is what one pass over a scenario observed
type run struct {
	disease   string
	cf        float64
	questions []string
	firings   int
}

// same reports whether two passes over a scenario behaved identically
func (r run) same(o run) bool {
	if r.disease != o.disease || r.cf != o.cf || r.firings != o.firings || len(r.questions) != len(o.questions) {
		return false
	}
	for i := range r.questions {
		if r.questions[i] != o.questions[i] {
			return false
		}
	}
	return true
}

// Evaluate scores one run against the scenario's expectation
func Evaluate(s Scenario, first, second run) Result {
	res := Result{
		ScenarioID:    s.ID,
		Name:          s.Name,
		Disease:       first.disease,
		CF:            first.cf,
		Questions:     first.questions,
		Firings:       first.firings,
		Deterministic: first.same(second),
		Correct:       true,
	}

	if first.disease != s.Expect.Disease {
		res.Correct = false
		want := s.Expect.Disease
		if want == "" {
			want = "no diagnosis"
		}
		got := first.disease
		if got == "" {
			got = "no diagnosis"
		}
		res.Details = append(res.Details, fmt.Sprintf("expected %s, got %s", want, got))
	}
	if s.Expect.Disease != "" && first.cf < s.Expect.MinCF {
		res.Correct = false
		res.Details = append(res.Details, fmt.Sprintf("cf %.4f below minimum %.4f", first.cf, s.Expect.MinCF))
	}
	if len(s.Expect.Questions) > 0 && strings.Join(s.Expect.Questions, ",") != strings.Join(first.questions, ",") {
		res.Correct = false
		res.Details = append(res.Details, fmt.Sprintf("asked %v, expected %v", first.questions, s.Expect.Questions))
	}
	if !res.Deterministic {
		res.Details = append(res.Details, "second run differed from the first")
	}

	res.Status = StatusFail
	if res.Correct && res.Deterministic {
		res.Status = StatusPass
	}
	return res
}

// Failed builds the result of a scenario that could not run
func Failed(s Scenario, err error) Result {
	return Result{ScenarioID: s.ID, Name: s.Name, Status: StatusFail, Error: err.Error()}
}

// Summarize aggregates results. MeanCF covers runs that reached a diagnosis.
func Summarize(results []Result) Summary {
	sum := Summary{Total: len(results), Deterministic: true}
	var cfTotal, questionTotal float64
	diagnosed := 0
	for _, r := range results {
		if r.Status == StatusPass {
			sum.Passed++
		} else {
			sum.Failed++
		}
		if !r.Deterministic {
			sum.Deterministic = false
		}
		if r.Disease != "" {
			cfTotal += r.CF
			diagnosed++
		}
		questionTotal += float64(len(r.Questions))
	}
	if sum.Total > 0 {
		correct := 0
		for _, r := range results {
			if r.Correct {
				correct++
			}
		}
		sum.Accuracy = float64(correct) / float64(sum.Total)
		sum.MeanQuestions = questionTotal / float64(sum.Total)
	}
	if diagnosed > 0 {
		sum.MeanCF = cfTotal / float64(diagnosed)
	}
	return sum
}

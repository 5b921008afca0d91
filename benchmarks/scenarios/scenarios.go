// ABOUTME: Scripted consultation scenarios for the benchmark runner
// ABOUTME: Each scenario answers questions from a script and names the expected outcome
package scenarios

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Scenario is one scripted patient. Questions missing from Answers get
// Default, or "no" when Default is empty; multi-choice questions missing from
// Answers get "body".
type Scenario struct {
	ID          string            `yaml:"id" json:"id"`
	Name        string            `yaml:"name" json:"name"`
	Description string            `yaml:"description,omitempty" json:"description,omitempty"`
	Answers     map[string]string `yaml:"answers" json:"answers"`
	Default     string            `yaml:"default,omitempty" json:"default,omitempty"`
	Expect      Expectation       `yaml:"expect" json:"expect"`
}

// Expectation is the outcome a scenario should reach. An empty Disease
// expects the consultation to end without a diagnosis.
type Expectation struct {
	Disease   string   `yaml:"disease,omitempty" json:"disease,omitempty"`
	MinCF     float64  `yaml:"min_cf,omitempty" json:"min_cf,omitempty"`
	Questions []string `yaml:"questions,omitempty" json:"questions,omitempty"`
}

// answer returns the scripted answer for ident
func (s Scenario) answer(ident string, multiChoice bool) string {
	if a, ok := s.Answers[ident]; ok {
		return a
	}
	if multiChoice {
		return "body"
	}
	if s.Default != "" {
		return s.Default
	}
	return "no"
}

// Builtin returns the scenarios shipped with the benchmark
func Builtin() []Scenario {
	return []Scenario{
		{
			ID:          "soft-lump",
			Name:        "Soft painless lump",
			Description: "Middle-aged patient with a long-standing soft lump",
			Answers: map[string]string{
				"age": "45", "duration": "chronic", "severity": "mild",
				"has_symptom_lump_or_growth": "yes", "has_symptom_soft_lump": "yes",
			},
			Expect: Expectation{
				Disease:   "Lipoma",
				MinCF:     0.8,
				Questions: []string{"age", "duration", "severity", "has_symptom_lump_or_growth", "locations", "has_symptom_soft_lump"},
			},
		},
		{
			ID:          "itchy-dry-rash",
			Name:        "Itchy dry rash with flares",
			Description: "Young adult with a recurring itchy, dry rash",
			Answers: map[string]string{
				"age": "25", "duration": "chronic with flares", "severity": "moderate",
				"has_symptom_rash": "yes", "has_symptom_itching": "yes", "has_symptom_dryness": "yes",
			},
			Expect: Expectation{Disease: "Eczema (Atopic Dermatitis)", MinCF: 0.8},
		},
		{
			ID:          "nothing-matches",
			Name:        "No matching symptoms",
			Description: "Short, mild complaint denying every specific symptom",
			Answers:     map[string]string{"age": "30", "duration": "1-2 weeks", "severity": "mild"},
			Expect:      Expectation{},
		},
	}
}

// LoadFile reads scenarios from a YAML file holding a list of scenarios
func LoadFile(path string) ([]Scenario, error) {
	data, err := os.ReadFile(path) // #nosec G304
	if err != nil {
		return nil, fmt.Errorf("failed to read scenarios: %w", err)
	}
	var out []Scenario
	if err := yaml.Unmarshal(data, &out); err != nil {
		return nil, fmt.Errorf("failed to parse scenarios: %w", err)
	}
	seen := make(map[string]struct{}, len(out))
	for i, s := range out {
		if s.ID == "" {
			return nil, fmt.Errorf("scenario %d has no id", i+1)
		}
		if _, dup := seen[s.ID]; dup {
			return nil, fmt.Errorf("duplicate scenario id %q", s.ID)
		}
		seen[s.ID] = struct{}{}
	}
	return out, nil
}

// Find returns the scenario with the given ID
func Find(list []Scenario, id string) (Scenario, bool) {
	for _, s := range list {
		if s.ID == id {
			return s, true
		}
	}
	return Scenario{}, false
}

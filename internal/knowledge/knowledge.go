// ABOUTME: Knowledge base loader for questions, question flow, diagnosis evidence and disease data
// ABOUTME: Parses YAML (embedded default or override file) and compiles it into a rule table
package knowledge

import (
	_ "embed"
	"fmt"
	"os"
	"sort"

	"github.com/harper/dermacheck/internal/core"
	"github.com/harper/dermacheck/internal/engine"
	"github.com/harper/dermacheck/internal/models"
	"gopkg.in/yaml.v3"
)

// FormatVersion is the knowledge file layout this package reads
const FormatVersion = 1

//go:embed default.yaml
var defaultYAML []byte

// Condition is one entry of a rule's when list. Exactly one of Marker or
// Answer is set; Is, Includes and the numeric bounds narrow an Answer.
type Condition struct {
	Marker   string `yaml:"marker,omitempty"`
	Answer   string `yaml:"answer,omitempty"`
	Is       string `yaml:"is,omitempty"`
	Includes string `yaml:"includes,omitempty"`
	AtLeast  *int   `yaml:"at_least,omitempty"`
	AtMost   *int   `yaml:"at_most,omitempty"`
}

// FlowRule makes Ask the pending question when its conditions hold
type FlowRule struct {
	Name     string      `yaml:"name"`
	Salience int         `yaml:"salience"`
	Ask      string      `yaml:"ask"`
	When     []Condition `yaml:"when"`
}

// DiagnosisRule contributes evidence for Disease when its conditions hold
type DiagnosisRule struct {
	Name      string      `yaml:"name"`
	Salience  int         `yaml:"salience,omitempty"`
	Disease   string      `yaml:"disease"`
	CF        float64     `yaml:"cf"`
	Reasoning string      `yaml:"reasoning"`
	When      []Condition `yaml:"when"`
}

// Base is a loaded knowledge base. It implements core.Catalog.
type Base struct {
	Version   int                  `yaml:"version"`
	Questions []models.Question    `yaml:"questions"`
	Durations *core.DurationPolicy `yaml:"durations,omitempty"`
	Flow      []FlowRule           `yaml:"flow"`
	Diagnoses []DiagnosisRule      `yaml:"diagnoses"`
	Diseases  []models.DiseaseInfo `yaml:"diseases"`

	catalog  core.QuestionSet
	diseases map[string]int
	rules    *engine.RuleTable
}

// Summary counts the contents of a knowledge base
type Summary struct {
	Questions      int `json:"questions"`
	FlowRules      int `json:"flow_rules"`
	DiagnosisRules int `json:"diagnosis_rules"`
	Diseases       int `json:"diseases"`
}

// Default returns the built-in knowledge base
func Default() (*Base, error) {
	b, err := Parse(defaultYAML)
	if err != nil {
		return nil, fmt.Errorf("built-in knowledge base: %w", err)
	}
	return b, nil
}

// Load reads the knowledge file at path, or the built-in base when path is empty
func Load(path string) (*Base, error) {
	if path == "" {
		return Default()
	}
	return LoadFile(path)
}

// LoadFile reads and validates a knowledge file
func LoadFile(path string) (*Base, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read knowledge file: %w", err)
	}
	b, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("knowledge file %s: %w", path, err)
	}
	return b, nil
}

// Parse decodes and validates knowledge YAML
func Parse(data []byte) (*Base, error) {
	var b Base
	if err := yaml.Unmarshal(data, &b); err != nil {
		return nil, fmt.Errorf("failed to parse knowledge yaml: %w", err)
	}
	if err := b.Validate(); err != nil {
		return nil, err
	}
	return &b, nil
}

// Validate indexes the base and checks every cross reference. Rule conditions
// must name catalog questions and values those questions allow.
func (b *Base) Validate() error {
	if b.Version != FormatVersion {
		return fmt.Errorf("unsupported knowledge format version %d", b.Version)
	}

	catalog, err := core.NewQuestionSet(b.Questions...)
	if err != nil {
		return &core.ConfigurationError{Problems: []string{err.Error()}}
	}
	b.catalog = catalog

	var problems []string
	b.diseases = make(map[string]int, len(b.Diseases))
	for i, d := range b.Diseases {
		if err := d.Validate(); err != nil {
			problems = append(problems, err.Error())
			continue
		}
		if _, dup := b.diseases[d.Name]; dup {
			problems = append(problems, fmt.Sprintf("duplicate disease %q", d.Name))
			continue
		}
		b.diseases[d.Name] = i
	}

	for _, r := range b.Flow {
		problems = append(problems, b.checkConditions(r.Name, r.When)...)
	}
	for _, r := range b.Diagnoses {
		problems = append(problems, b.checkConditions(r.Name, r.When)...)
	}
	if len(problems) > 0 {
		return &core.ConfigurationError{Problems: problems}
	}

	rules, err := b.compile()
	if err != nil {
		return err
	}
	names := make(map[string]struct{}, len(b.diseases))
	for name := range b.diseases {
		names[name] = struct{}{}
	}
	if err := core.CheckConsistency(rules, b.catalog, names); err != nil {
		return err
	}
	b.rules = rules
	return nil
}

func (b *Base) checkConditions(rule string, conds []Condition) []string {
	var problems []string
	for i, c := range conds {
		where := fmt.Sprintf("rule %s condition %d", rule, i+1)
		switch {
		case c.Marker != "" && c.Answer != "":
			problems = append(problems, where+" sets both marker and answer")
			continue
		case c.Marker != "":
			if c.Is != "" || c.Includes != "" || c.AtLeast != nil || c.AtMost != nil {
				problems = append(problems, where+" narrows a marker")
			}
			continue
		case c.Answer == "":
			problems = append(problems, where+" names neither marker nor answer")
			continue
		}

		narrowers := 0
		if c.Is != "" {
			narrowers++
		}
		if c.Includes != "" {
			narrowers++
		}
		if c.AtLeast != nil || c.AtMost != nil {
			narrowers++
		}
		if narrowers > 1 {
			problems = append(problems, where+" mixes is, includes and numeric bounds")
			continue
		}

		q, ok := b.catalog.Question(c.Answer)
		if !ok {
			// reported by the consistency check
			continue
		}
		switch {
		case c.Is != "" && q.InputKind == models.InputSingleChoice && !q.Allows(c.Is):
			problems = append(problems, fmt.Sprintf("%s expects %s = %q which is not an allowed value", where, c.Answer, c.Is))
		case c.Includes != "" && q.InputKind != models.InputMultiChoice:
			problems = append(problems, fmt.Sprintf("%s uses includes on non multi-choice question %s", where, c.Answer))
		case c.Includes != "" && !q.Allows(c.Includes):
			problems = append(problems, fmt.Sprintf("%s expects %s to include %q which is not an allowed value", where, c.Answer, c.Includes))
		case (c.AtLeast != nil || c.AtMost != nil) && q.InputKind != models.InputNumber:
			problems = append(problems, fmt.Sprintf("%s uses numeric bounds on non-number question %s", where, c.Answer))
		}
	}
	return problems
}

// compile builds the rule table: prompt rule, flow rules, diagnosis rules, selection rule
func (b *Base) compile() (*engine.RuleTable, error) {
	agg := core.NewAggregator(b.Policy())
	rules := []engine.Rule{core.PromptRule()}

	for _, fr := range b.Flow {
		r, err := core.AskRule(fr.Name, fr.Salience, fr.Ask, elements(fr.When)...)
		if err != nil {
			return nil, &core.ConfigurationError{Problems: []string{err.Error()}}
		}
		rules = append(rules, r)
	}
	for _, dr := range b.Diagnoses {
		r, err := agg.DiagnosisRule(dr.Name, dr.Salience,
			core.Evidence{Disease: dr.Disease, CF: dr.CF, Reasoning: dr.Reasoning},
			elements(dr.When)...)
		if err != nil {
			return nil, &core.ConfigurationError{Problems: []string{err.Error()}}
		}
		rules = append(rules, r)
	}
	rules = append(rules, agg.SelectionRule())

	table, err := engine.NewRuleTable(rules...)
	if err != nil {
		return nil, &core.ConfigurationError{Problems: []string{err.Error()}}
	}
	return table, nil
}

func elements(conds []Condition) []engine.Element {
	var out []engine.Element
	for _, c := range conds {
		switch {
		case c.Marker != "":
			out = append(out, core.MarkerPresent(c.Marker))
		case c.Is != "":
			out = append(out, core.AnsweredWith(c.Answer, c.Is))
		case c.Includes != "":
			out = append(out, core.AnswerIncludes(c.Answer, c.Includes))
		case c.AtLeast != nil || c.AtMost != nil:
			out = append(out, core.NumericAnswer(c.Answer, c.AtLeast, c.AtMost)...)
		default:
			out = append(out, core.Answered(c.Answer))
		}
	}
	return out
}

// Question implements core.Catalog
func (b *Base) Question(ident string) (models.Question, bool) {
	return b.catalog.Question(ident)
}

// Rules returns the compiled rule table. Rule tables are immutable and may be
// shared between sessions.
func (b *Base) Rules() *engine.RuleTable {
	return b.rules
}

// Policy returns the duration policy, falling back to the built-in vocabulary
func (b *Base) Policy() core.DurationPolicy {
	if b.Durations == nil {
		return core.DefaultDurationPolicy()
	}
	return *b.Durations
}

// Disease looks up reference data by name
func (b *Base) Disease(name string) (models.DiseaseInfo, bool) {
	i, ok := b.diseases[name]
	if !ok {
		return models.DiseaseInfo{}, false
	}
	return b.Diseases[i], true
}

// DiseaseNames returns all disease names sorted
func (b *Base) DiseaseNames() []string {
	names := make([]string, 0, len(b.diseases))
	for name := range b.diseases {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Summary counts the base's contents
func (b *Base) Summary() Summary {
	return Summary{
		Questions:      len(b.Questions),
		FlowRules:      len(b.Flow),
		DiagnosisRules: len(b.Diagnoses),
		Diseases:       len(b.Diseases),
	}
}

// SessionConfig returns a session config wired to this base
func (b *Base) SessionConfig(sessionID string) core.Config {
	return core.Config{
		SessionID: sessionID,
		Catalog:   b,
		Diseases:  b.Diseases,
		Rules:     b.rules,
	}
}

// ABOUTME: Working-memory fact kinds used by the inference engine
// ABOUTME: Answers, pending questions, diagnoses, disease reference data and control markers
package models

import (
	"errors"
	"fmt"
	"strings"
)

// FactKind tags a concrete fact type
type FactKind string

const (
	KindAnswer       FactKind = "answer"
	KindNextQuestion FactKind = "next_question"
	KindDiagnosis    FactKind = "diagnosis"
	KindDiseaseInfo  FactKind = "disease_info"
	KindMarker       FactKind = "marker"
)

// Well-known control markers
const (
	MarkerStart            = "start"
	MarkerResultsProcessed = "results_processed"
	EvidenceMarkerPrefix   = "evidence:"
)

// DefaultAnswerCF is the certainty attached to externally supplied answers
const DefaultAnswerCF = 1.0

// Fact is a typed, immutable-once-asserted record of working memory.
// At most one live fact may exist per (Kind, Key) pair.
type Fact interface {
	Kind() FactKind
	Key() string
	// Field returns a named field value for pattern matching.
	Field(name string) (any, bool)
}

// Answer is an externally supplied response to a question
type Answer struct {
	Ident string  `json:"ident" yaml:"ident"`
	Text  string  `json:"text" yaml:"text"`
	CF    float64 `json:"cf" yaml:"cf"`
}

// NewAnswer builds an Answer with the default certainty
func NewAnswer(ident, text string) (Answer, error) {
	if ident == "" {
		return Answer{}, errors.New("answer ident cannot be empty")
	}
	if text == "" {
		return Answer{}, fmt.Errorf("answer text for %q cannot be empty", ident)
	}
	return Answer{Ident: ident, Text: text, CF: DefaultAnswerCF}, nil
}

func (a Answer) Kind() FactKind { return KindAnswer }
func (a Answer) Key() string    { return a.Ident }

// Values splits a multi-choice answer into its individual selections
func (a Answer) Values() []string {
	var out []string
	for _, part := range strings.Split(a.Text, ",") {
		if v := strings.TrimSpace(part); v != "" {
			out = append(out, v)
		}
	}
	return out
}

func (a Answer) Field(name string) (any, bool) {
	switch name {
	case "ident":
		return a.Ident, true
	case "text":
		return a.Text, true
	case "cf":
		return a.CF, true
	case "values":
		return a.Values(), true
	}
	return nil, false
}

// NextQuestion marks a question as pending
type NextQuestion struct {
	Ident string `json:"ident" yaml:"ident"`
}

// NewNextQuestion builds a pending-question fact
func NewNextQuestion(ident string) (NextQuestion, error) {
	if ident == "" {
		return NextQuestion{}, errors.New("next question ident cannot be empty")
	}
	return NextQuestion{Ident: ident}, nil
}

func (q NextQuestion) Kind() FactKind { return KindNextQuestion }
func (q NextQuestion) Key() string    { return q.Ident }

func (q NextQuestion) Field(name string) (any, bool) {
	if name == "ident" {
		return q.Ident, true
	}
	return nil, false
}

// Diagnosis is the merged belief in one disease.
// Order records creation sequence and survives merges.
type Diagnosis struct {
	Disease    string  `json:"disease" yaml:"disease"`
	CF         float64 `json:"cf" yaml:"cf"`
	Reasoning  string  `json:"reasoning" yaml:"reasoning"`
	MergeCount int     `json:"merge_count" yaml:"merge_count"`
	Order      int     `json:"order" yaml:"order"`
}

// NewDiagnosis builds a Diagnosis, rejecting empty diseases and out-of-range certainty
func NewDiagnosis(disease string, cf float64, reasoning string) (Diagnosis, error) {
	if disease == "" {
		return Diagnosis{}, errors.New("diagnosis disease cannot be empty")
	}
	if cf < -1 || cf > 1 {
		return Diagnosis{}, fmt.Errorf("diagnosis cf %v for %q outside [-1,1]", cf, disease)
	}
	return Diagnosis{Disease: disease, CF: cf, Reasoning: reasoning}, nil
}

func (d Diagnosis) Kind() FactKind { return KindDiagnosis }
func (d Diagnosis) Key() string    { return d.Disease }

func (d Diagnosis) Field(name string) (any, bool) {
	switch name {
	case "disease":
		return d.Disease, true
	case "cf":
		return d.CF, true
	case "reasoning":
		return d.Reasoning, true
	case "merge_count":
		return d.MergeCount, true
	case "order":
		return d.Order, true
	}
	return nil, false
}

// DiseaseInfo is read-only reference data for one disease
type DiseaseInfo struct {
	Name           string            `json:"name" yaml:"name"`
	SymptomWeights map[string]string `json:"symptoms,omitempty" yaml:"symptoms,omitempty"`
	AgeMin         *int              `json:"age_min,omitempty" yaml:"age_min,omitempty"`
	AgeMax         *int              `json:"age_max,omitempty" yaml:"age_max,omitempty"`
	Locations      []string          `json:"locations,omitempty" yaml:"locations,omitempty"`
	SeverityLevels []string          `json:"severity_levels,omitempty" yaml:"severity_levels,omitempty"`
	CommonDuration string            `json:"duration,omitempty" yaml:"duration,omitempty"`
	Triggers       []string          `json:"triggers,omitempty" yaml:"triggers,omitempty"`
	Treatments     []string          `json:"treatments,omitempty" yaml:"treatments,omitempty"`
	Notes          string            `json:"notes,omitempty" yaml:"notes,omitempty"`
}

// Validate checks mandatory fields and range consistency
func (d DiseaseInfo) Validate() error {
	if d.Name == "" {
		return errors.New("disease name cannot be empty")
	}
	if (d.AgeMin == nil) != (d.AgeMax == nil) {
		return fmt.Errorf("disease %q must set both age bounds or neither", d.Name)
	}
	if d.AgeMin != nil && *d.AgeMin > *d.AgeMax {
		return fmt.Errorf("disease %q has age_min %d above age_max %d", d.Name, *d.AgeMin, *d.AgeMax)
	}
	return nil
}

// HasAgeRange reports whether both age bounds are set
func (d DiseaseInfo) HasAgeRange() bool {
	return d.AgeMin != nil && d.AgeMax != nil
}

func (d DiseaseInfo) Kind() FactKind { return KindDiseaseInfo }
func (d DiseaseInfo) Key() string    { return d.Name }

func (d DiseaseInfo) Field(name string) (any, bool) {
	switch name {
	case "name":
		return d.Name, true
	case "locations":
		return d.Locations, true
	case "severity_levels":
		return d.SeverityLevels, true
	case "duration":
		return d.CommonDuration, true
	case "triggers":
		return d.Triggers, true
	}
	return nil, false
}

// Marker is a control fact used as an idempotency guard
type Marker struct {
	Name  string `json:"name" yaml:"name"`
	Value string `json:"value,omitempty" yaml:"value,omitempty"`
}

// NewMarker builds a control marker
func NewMarker(name, value string) (Marker, error) {
	if name == "" {
		return Marker{}, errors.New("marker name cannot be empty")
	}
	return Marker{Name: name, Value: value}, nil
}

// EvidenceMarker names the marker a diagnosis rule leaves behind once it has contributed
func EvidenceMarker(rule string) string {
	return EvidenceMarkerPrefix + rule
}

func (m Marker) Kind() FactKind { return KindMarker }
func (m Marker) Key() string    { return m.Name }

func (m Marker) Field(name string) (any, bool) {
	switch name {
	case "name":
		return m.Name, true
	case "value":
		return m.Value, true
	}
	return nil, false
}

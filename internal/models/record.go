// ABOUTME: FactRecord is the flat (kind, field-map) form of a fact
// ABOUTME: Used for snapshots, storage rows, sync payloads and export
package models

import (
	"encoding/json"
	"fmt"
)

// FactRecord is a serializable fact
type FactRecord struct {
	Kind   FactKind       `json:"kind" yaml:"kind"`
	Fields map[string]any `json:"fields" yaml:"fields"`
}

// EncodeFact flattens a fact into a record
func EncodeFact(f Fact) (FactRecord, error) {
	if f == nil {
		return FactRecord{}, fmt.Errorf("cannot encode nil fact")
	}
	data, err := json.Marshal(f)
	if err != nil {
		return FactRecord{}, fmt.Errorf("failed to encode %s fact: %w", f.Kind(), err)
	}
	var fields map[string]any
	if err := json.Unmarshal(data, &fields); err != nil {
		return FactRecord{}, fmt.Errorf("failed to encode %s fact: %w", f.Kind(), err)
	}
	return FactRecord{Kind: f.Kind(), Fields: fields}, nil
}

// DecodeFact rebuilds a typed fact and runs its construction checks
func DecodeFact(r FactRecord) (Fact, error) {
	data, err := json.Marshal(r.Fields)
	if err != nil {
		return nil, fmt.Errorf("failed to decode %s record: %w", r.Kind, err)
	}

	switch r.Kind {
	case KindAnswer:
		var a Answer
		if err := json.Unmarshal(data, &a); err != nil {
			return nil, fmt.Errorf("failed to decode answer: %w", err)
		}
		checked, err := NewAnswer(a.Ident, a.Text)
		if err != nil {
			return nil, err
		}
		checked.CF = a.CF
		return checked, nil
	case KindNextQuestion:
		var q NextQuestion
		if err := json.Unmarshal(data, &q); err != nil {
			return nil, fmt.Errorf("failed to decode next question: %w", err)
		}
		return NewNextQuestion(q.Ident)
	case KindDiagnosis:
		var d Diagnosis
		if err := json.Unmarshal(data, &d); err != nil {
			return nil, fmt.Errorf("failed to decode diagnosis: %w", err)
		}
		checked, err := NewDiagnosis(d.Disease, d.CF, d.Reasoning)
		if err != nil {
			return nil, err
		}
		checked.MergeCount = d.MergeCount
		checked.Order = d.Order
		return checked, nil
	case KindDiseaseInfo:
		var d DiseaseInfo
		if err := json.Unmarshal(data, &d); err != nil {
			return nil, fmt.Errorf("failed to decode disease info: %w", err)
		}
		if err := d.Validate(); err != nil {
			return nil, err
		}
		return d, nil
	case KindMarker:
		var m Marker
		if err := json.Unmarshal(data, &m); err != nil {
			return nil, fmt.Errorf("failed to decode marker: %w", err)
		}
		return NewMarker(m.Name, m.Value)
	}
	return nil, fmt.Errorf("unknown fact kind %q", r.Kind)
}

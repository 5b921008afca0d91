// ABOUTME: Construction-time consistency check between rules, catalog and knowledge base
// ABOUTME: Every referenced question ident and disease name must exist
package core

import (
	"fmt"

	"github.com/harper/dermacheck/internal/engine"
	"github.com/harper/dermacheck/internal/models"
)

// CheckConsistency walks every rule's patterns and declared refs. Question
// idents must be in the catalog; disease names must be in diseases. Each
// problem is reported once even when a rule names the key several times.
func CheckConsistency(rules *engine.RuleTable, catalog Catalog, diseases map[string]struct{}) error {
	var problems []string
	seen := make(map[string]struct{})
	report := func(msg string) {
		if _, dup := seen[msg]; dup {
			return
		}
		seen[msg] = struct{}{}
		problems = append(problems, msg)
	}
	check := func(rule string, kind models.FactKind, key string) {
		switch kind {
		case models.KindAnswer, models.KindNextQuestion:
			if _, ok := catalog.Question(key); !ok {
				report(fmt.Sprintf("rule %s references unknown question %q", rule, key))
			}
		case models.KindDiagnosis, models.KindDiseaseInfo:
			if _, ok := diseases[key]; !ok {
				report(fmt.Sprintf("rule %s references unknown disease %q", rule, key))
			}
		}
	}

	for _, r := range rules.Rules() {
		for _, el := range r.When {
			var p engine.Pattern
			switch e := el.(type) {
			case engine.Pattern:
				p = e
			case engine.Absence:
				p = e.Pattern
			default:
				continue
			}
			if key, ok := keyLiteral(p); ok {
				check(r.Name, p.Kind, key)
			}
		}
		for _, ref := range r.Refs {
			check(r.Name, ref.Kind, ref.Key)
		}
	}

	if len(problems) > 0 {
		return &ConfigurationError{Problems: problems}
	}
	return nil
}

// keyLiteral extracts the literal key a pattern pins, if any
func keyLiteral(p engine.Pattern) (string, bool) {
	var field string
	switch p.Kind {
	case models.KindAnswer, models.KindNextQuestion:
		field = "ident"
	case models.KindDiagnosis:
		field = "disease"
	case models.KindDiseaseInfo:
		field = "name"
	default:
		return "", false
	}
	for _, c := range p.Constraints {
		if c.Field != field {
			continue
		}
		if v, ok := c.EqValue(); ok {
			s, ok := v.(string)
			return s, ok
		}
	}
	return "", false
}

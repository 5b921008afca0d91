// ABOUTME: Question catalog lookup and boundary validation of supplied answers
// ABOUTME: Normalises choice answers and suggests the closest allowed value on rejection
package core

import (
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/agext/levenshtein"
	"github.com/harper/dermacheck/internal/models"
)

// maxSuggestionDistance bounds how far a typo may be from an allowed value
const maxSuggestionDistance = 3

// Catalog resolves question idents
type Catalog interface {
	Question(ident string) (models.Question, bool)
}

// QuestionSet is an in-memory Catalog
type QuestionSet map[string]models.Question

// NewQuestionSet validates and indexes questions
func NewQuestionSet(questions ...models.Question) (QuestionSet, error) {
	set := make(QuestionSet, len(questions))
	for _, q := range questions {
		if err := q.Validate(); err != nil {
			return nil, err
		}
		if _, dup := set[q.Ident]; dup {
			return nil, fmt.Errorf("duplicate question ident %q", q.Ident)
		}
		set[q.Ident] = q
	}
	return set, nil
}

// Question implements Catalog
func (s QuestionSet) Question(ident string) (models.Question, bool) {
	q, ok := s[ident]
	return q, ok
}

// NormalizeAnswer validates text against q and returns the canonical form stored in working memory
func NormalizeAnswer(q models.Question, text string) (string, error) {
	raw := strings.TrimSpace(text)
	reject := func(value, reason string) error {
		return &ValidationError{Ident: q.Ident, Value: value, Reason: reason, Suggestion: suggest(q.AllowedValues, value)}
	}
	if raw == "" {
		return "", &ValidationError{Ident: q.Ident, Value: text, Reason: "answer is empty"}
	}

	switch q.InputKind {
	case models.InputNumber:
		n, err := strconv.Atoi(raw)
		if err != nil {
			return "", &ValidationError{Ident: q.Ident, Value: raw, Reason: "expected a whole number"}
		}
		if n < 0 {
			return "", &ValidationError{Ident: q.Ident, Value: raw, Reason: "number cannot be negative"}
		}
		canonical := strconv.Itoa(n)
		if !q.Allows(canonical) {
			return "", reject(canonical, "value is not allowed")
		}
		return canonical, nil

	case models.InputSingleChoice:
		v := strings.ToLower(raw)
		if !q.Allows(v) {
			return "", reject(v, "value is not one of the allowed options")
		}
		return v, nil

	case models.InputMultiChoice:
		var picked []string
		seen := make(map[string]struct{})
		for _, part := range strings.Split(raw, ",") {
			v := strings.ToLower(strings.TrimSpace(part))
			if v == "" {
				continue
			}
			if !q.Allows(v) {
				return "", reject(v, "value is not one of the allowed options")
			}
			if _, dup := seen[v]; dup {
				continue
			}
			seen[v] = struct{}{}
			picked = append(picked, v)
		}
		if len(picked) == 0 {
			return "", &ValidationError{Ident: q.Ident, Value: text, Reason: "no option selected"}
		}
		return strings.Join(picked, ","), nil

	default:
		if !q.Allows(raw) {
			return "", reject(raw, "value is not allowed")
		}
		return raw, nil
	}
}

// suggest returns the closest allowed value within maxSuggestionDistance
func suggest(allowed []string, value string) string {
	if len(allowed) == 0 || value == "" {
		return ""
	}
	type candidate struct {
		value string
		dist  int
	}
	cands := make([]candidate, 0, len(allowed))
	for _, a := range allowed {
		cands = append(cands, candidate{value: a, dist: levenshtein.Distance(value, a, nil)})
	}
	sort.SliceStable(cands, func(i, j int) bool { return cands[i].dist < cands[j].dist })
	if cands[0].dist > maxSuggestionDistance {
		return ""
	}
	return cands[0].value
}

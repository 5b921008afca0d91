// ABOUTME: Condition builders for flow and diagnosis rules
// ABOUTME: Answer presence, exact value, multi-choice membership and numeric guards
package core

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/harper/dermacheck/internal/engine"
	"github.com/harper/dermacheck/internal/models"
)

// Answered matches any answer to ident
func Answered(ident string) engine.Pattern {
	return engine.Match(models.KindAnswer, engine.Eq("ident", ident))
}

// AnsweredWith matches an answer to ident with exactly text
func AnsweredWith(ident, text string) engine.Pattern {
	return engine.Match(models.KindAnswer, engine.Eq("ident", ident), engine.Eq("text", text))
}

// AnswerIncludes matches a multi-choice answer to ident that selected value
func AnswerIncludes(ident, value string) engine.Pattern {
	return engine.Match(models.KindAnswer, engine.Eq("ident", ident), engine.Has("values", value))
}

// MarkerPresent matches a control marker
func MarkerPresent(name string) engine.Pattern {
	return engine.Match(models.KindMarker, engine.Eq("name", name))
}

// NumericAnswer matches an answer to ident whose integer value lies within the
// given bounds. A nil bound is open. Non-numeric answers fail the guard.
func NumericAnswer(ident string, atLeast, atMost *int) []engine.Element {
	variable := "num_" + ident
	return []engine.Element{
		engine.Match(models.KindAnswer, engine.Eq("ident", ident), engine.Bind("text", variable)),
		engine.Test(ident+"_in_range", func(b engine.Bindings) (bool, error) {
			n, err := strconv.Atoi(strings.TrimSpace(b.String(variable)))
			if err != nil {
				return false, fmt.Errorf("%s is not a number: %w", ident, err)
			}
			if atLeast != nil && n < *atLeast {
				return false, nil
			}
			if atMost != nil && n > *atMost {
				return false, nil
			}
			return true, nil
		}),
	}
}

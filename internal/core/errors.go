// ABOUTME: Error taxonomy for consultation sessions
// ABOUTME: Validation, configuration and session-failure errors
package core

import (
	"errors"
	"fmt"
	"strings"
)

// ErrSessionFailed is returned by operations on a session aborted by an engine error
var ErrSessionFailed = errors.New("session failed")

// ValidationError rejects an externally supplied answer before it reaches working memory
type ValidationError struct {
	Ident      string
	Value      string
	Reason     string
	Suggestion string
}

func (e *ValidationError) Error() string {
	msg := fmt.Sprintf("invalid answer %q for %s: %s", e.Value, e.Ident, e.Reason)
	if e.Suggestion != "" {
		msg += fmt.Sprintf(" (did you mean %q?)", e.Suggestion)
	}
	return msg
}

// ConfigurationError reports rules that reference unknown questions or diseases
type ConfigurationError struct {
	Problems []string
}

func (e *ConfigurationError) Error() string {
	return "inconsistent rule set: " + strings.Join(e.Problems, "; ")
}

// ABOUTME: Shared helpers for CLI commands
// ABOUTME: App setup, status rendering and small formatting utilities
package commands

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/harper/dermacheck/internal/app"
	"github.com/harper/dermacheck/internal/config"
	"github.com/harper/dermacheck/internal/core"
	"github.com/harper/dermacheck/internal/llm"
	"github.com/harper/dermacheck/internal/service"
)

// openApp loads configuration from the environment and opens the application
func openApp() (*app.App, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return app.Open(cfg, logger)
}

// printJSON writes v as indented JSON
func printJSON(w io.Writer, v interface{}) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("marshaling JSON: %w", err)
	}
	fmt.Fprintf(w, "%s\n", data)
	return nil
}

// printState renders where a consultation stands
func printState(w io.Writer, st service.Status) {
	switch st.State.Kind {
	case core.StateNeedInput:
		q := st.State.Question
		fmt.Fprintf(w, "[%d%%] %s\n", st.Progress, q.Prompt)
		if len(q.AllowedValues) > 0 {
			fmt.Fprintf(w, "      options: %s\n", strings.Join(q.AllowedValues, ", "))
		}
	case core.StateCompleted:
		if st.State.Diagnosis == nil {
			fmt.Fprintln(w, llm.NoDiagnosisExplanation)
			return
		}
		fmt.Fprint(w, llm.FormatResult(st.State.Diagnosis))
	case core.StateError:
		fmt.Fprintf(w, "Consultation failed: %s\n", st.State.Reason)
	}
}

// describeRejection explains a rejected answer, or returns "" for other errors
func describeRejection(err error) string {
	var verr *core.ValidationError
	if !errors.As(err, &verr) {
		return ""
	}
	msg := fmt.Sprintf("%s, please re-answer", verr.Reason)
	if verr.Suggestion != "" {
		msg += fmt.Sprintf(" (did you mean %q?)", verr.Suggestion)
	}
	return msg
}

// truncate shortens a string to maxLen, adding "..." if truncated
func truncate(s string, maxLen int) string {
	runes := []rune(s)
	if len(runes) <= maxLen {
		return s
	}
	if maxLen <= 3 {
		return string(runes[:maxLen])
	}
	return string(runes[:maxLen-3]) + "..."
}

// formatTime formats a time for display
func formatTime(t time.Time) string {
	now := time.Now()
	diff := now.Sub(t)

	if diff < time.Minute {
		return "just now"
	} else if diff < time.Hour {
		mins := int(diff.Minutes())
		return fmt.Sprintf("%dm ago", mins)
	} else if diff < 24*time.Hour {
		hours := int(diff.Hours())
		return fmt.Sprintf("%dh ago", hours)
	} else if diff < 7*24*time.Hour {
		days := int(diff.Hours() / 24)
		return fmt.Sprintf("%dd ago", days)
	}
	return t.Format("2006-01-02")
}

// ABOUTME: Export functionality for consultation data
// ABOUTME: Supports YAML, JSON and Markdown export formats
package sqlite

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/harper/dermacheck/internal/models"
	"gopkg.in/yaml.v3"
)

// ExportVersion is the layout version written into every export
const ExportVersion = "1.0"

// ExportData represents the complete exportable data structure
type ExportData struct {
	Version    string          `yaml:"version" json:"version"`
	ExportedAt string          `yaml:"exported_at" json:"exported_at"`
	Tool       string          `yaml:"tool" json:"tool"`
	Sessions   []ExportSession `yaml:"sessions" json:"sessions"`
}

// ExportSession is one consultation with its snapshot and audit log
type ExportSession struct {
	Session models.SessionRecord  `yaml:"session" json:"session"`
	Facts   []models.FactRecord   `yaml:"facts,omitempty" json:"facts,omitempty"`
	Firings []models.FiringRecord `yaml:"firings,omitempty" json:"firings,omitempty"`
}

// Export collects the named sessions, or every session when none are named.
// Unknown session IDs are an error.
func (s *Storage) Export(sessionIDs ...string) (*ExportData, error) {
	data := &ExportData{
		Version:    ExportVersion,
		ExportedAt: time.Now().Format(time.RFC3339),
		Tool:       "dermacheck",
		Sessions:   []ExportSession{},
	}

	if len(sessionIDs) == 0 {
		records, err := s.ListSessions()
		if err != nil {
			return nil, fmt.Errorf("failed to list sessions: %w", err)
		}
		for _, rec := range records {
			sessionIDs = append(sessionIDs, rec.SessionID)
		}
	}

	for _, id := range sessionIDs {
		rec, facts, err := s.LoadSession(id)
		if err != nil {
			return nil, fmt.Errorf("failed to load session %s: %w", id, err)
		}
		if rec == nil {
			return nil, fmt.Errorf("session %s not found", id)
		}
		firings, err := s.GetFirings(id)
		if err != nil {
			return nil, fmt.Errorf("failed to load firings for %s: %w", id, err)
		}
		data.Sessions = append(data.Sessions, ExportSession{Session: *rec, Facts: facts, Firings: firings})
	}

	return data, nil
}

// ExportToYAML exports sessions to a YAML file
func (s *Storage) ExportToYAML(outputPath string, sessionIDs ...string) error {
	return s.exportToFile(outputPath, sessionIDs, func(w io.Writer, data *ExportData) error {
		encoder := yaml.NewEncoder(w)
		encoder.SetIndent(2)
		if err := encoder.Encode(data); err != nil {
			return fmt.Errorf("failed to encode YAML: %w", err)
		}
		return encoder.Close()
	})
}

// ExportToJSON exports sessions to a JSON file
func (s *Storage) ExportToJSON(outputPath string, sessionIDs ...string) error {
	return s.exportToFile(outputPath, sessionIDs, func(w io.Writer, data *ExportData) error {
		encoder := json.NewEncoder(w)
		encoder.SetIndent("", "  ")
		if err := encoder.Encode(data); err != nil {
			return fmt.Errorf("failed to encode JSON: %w", err)
		}
		return nil
	})
}

// ExportToMarkdown exports sessions to a Markdown report
func (s *Storage) ExportToMarkdown(outputPath string, sessionIDs ...string) error {
	return s.exportToFile(outputPath, sessionIDs, func(w io.Writer, data *ExportData) error {
		WriteMarkdown(w, data)
		return nil
	})
}

func (s *Storage) exportToFile(outputPath string, sessionIDs []string, write func(io.Writer, *ExportData) error) error {
	data, err := s.Export(sessionIDs...)
	if err != nil {
		return err
	}

	// Ensure directory exists
	if err := os.MkdirAll(filepath.Dir(outputPath), 0755); err != nil {
		return fmt.Errorf("failed to create output directory: %w", err)
	}

	file, err := os.Create(outputPath) // #nosec G304
	if err != nil {
		return fmt.Errorf("failed to create output file: %w", err)
	}
	defer func() { _ = file.Close() }()

	return write(file, data)
}

// WriteMarkdown renders an export as a human-readable report
func WriteMarkdown(w io.Writer, data *ExportData) {
	_, _ = fmt.Fprintf(w, "# Consultation Export - %s\n\n", time.Now().Format("2006-01-02"))
	_, _ = fmt.Fprintf(w, "Generated: %s\n\n", data.ExportedAt)

	for _, es := range data.Sessions {
		rec := es.Session
		_, _ = fmt.Fprintf(w, "## Session %s (%s)\n\n", rec.SessionID, rec.Status)
		switch {
		case rec.Status == models.StatusAwaitingInput:
			_, _ = fmt.Fprintf(w, "- **Waiting on:** %s\n", rec.PendingQuestion)
		case rec.Status == models.StatusFailed:
			_, _ = fmt.Fprintf(w, "- **Failure:** %s\n", rec.FailureReason)
		case rec.Result != "":
			_, _ = fmt.Fprintf(w, "- **Result:** %s (CF %.2f)\n", rec.Result, rec.ResultCF)
		default:
			_, _ = fmt.Fprintln(w, "- **Result:** no diagnosis")
		}
		_, _ = fmt.Fprintf(w, "- **Answers:** %d\n\n", rec.AnswerCount)

		answers, diagnoses := splitFacts(es.Facts)
		if len(answers) > 0 {
			_, _ = fmt.Fprintln(w, "### Answers")
			_, _ = fmt.Fprintln(w)
			_, _ = fmt.Fprintln(w, "| Question | Answer |")
			_, _ = fmt.Fprintln(w, "|----------|--------|")
			for _, a := range answers {
				_, _ = fmt.Fprintf(w, "| %s | %s |\n", a.Ident, a.Text)
			}
			_, _ = fmt.Fprintln(w)
		}

		if len(diagnoses) > 0 {
			_, _ = fmt.Fprintln(w, "### Diagnoses")
			_, _ = fmt.Fprintln(w)
			_, _ = fmt.Fprintln(w, "| Disease | CF | Reasoning |")
			_, _ = fmt.Fprintln(w, "|---------|----|-----------|")
			for _, d := range diagnoses {
				_, _ = fmt.Fprintf(w, "| %s | %.2f | %s |\n", d.Disease, d.CF, d.Reasoning)
			}
			_, _ = fmt.Fprintln(w)
		}

		if len(es.Firings) > 0 {
			_, _ = fmt.Fprintln(w, "### Rule Firings")
			_, _ = fmt.Fprintln(w)
			rules := make([]string, 0, len(es.Firings))
			for _, f := range es.Firings {
				rules = append(rules, f.Rule)
			}
			_, _ = fmt.Fprintf(w, "%s\n\n", strings.Join(rules, " → "))
		}

		_, _ = fmt.Fprintln(w, "---")
		_, _ = fmt.Fprintln(w)
	}
}

// splitFacts decodes the answers and diagnoses of a snapshot, diagnoses ranked by cf
func splitFacts(facts []models.FactRecord) ([]models.Answer, []models.Diagnosis) {
	var (
		answers   []models.Answer
		diagnoses []models.Diagnosis
	)
	for _, rec := range facts {
		f, err := models.DecodeFact(rec)
		if err != nil {
			continue
		}
		switch v := f.(type) {
		case models.Answer:
			answers = append(answers, v)
		case models.Diagnosis:
			diagnoses = append(diagnoses, v)
		}
	}
	sort.SliceStable(diagnoses, func(i, j int) bool {
		if diagnoses[i].CF != diagnoses[j].CF {
			return diagnoses[i].CF > diagnoses[j].CF
		}
		return diagnoses[i].Order < diagnoses[j].Order
	})
	return answers, diagnoses
}

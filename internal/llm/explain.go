// ABOUTME: Diagnosis explanations for patients
// ABOUTME: Formats the selected diagnosis and renders it through a template or an LLM
package llm

import (
	"context"
	"fmt"
	"strings"

	"github.com/harper/dermacheck/internal/models"
)

// NoDiagnosisExplanation is returned when the consultation ended without a diagnosis
const NoDiagnosisExplanation = "No diagnosis could be made from your answers. " +
	"If the problem persists or gets worse, please see a dermatologist."

// Explainer turns a finalized diagnosis into prose. d is nil when no
// diagnosis was reached; info is nil when the disease has no reference data.
type Explainer interface {
	Explain(ctx context.Context, d *models.Diagnosis, info *models.DiseaseInfo) (string, error)
}

// FormatResult renders a diagnosis as the structured text handed to explainers
func FormatResult(d *models.Diagnosis) string {
	if d == nil {
		return "Primary Diagnosis: none"
	}
	var b strings.Builder
	fmt.Fprintf(&b, "Primary Diagnosis: %s\n", d.Disease)
	fmt.Fprintf(&b, "Confidence: %s\n", Percent(d.CF))
	if d.Reasoning != "" {
		fmt.Fprintf(&b, "Reasoning: %s\n", d.Reasoning)
	}
	return b.String()
}

// Percent formats a certainty factor as a percentage with one decimal
func Percent(cf float64) string {
	return fmt.Sprintf("%.1f%%", cf*100)
}

// CleanExplanation drops any reasoning preamble that ends in a </think> tag
func CleanExplanation(raw string) string {
	if _, after, ok := strings.Cut(raw, "</think>"); ok {
		return strings.TrimSpace(after)
	}
	return strings.TrimSpace(raw)
}

// TemplateExplainer produces a deterministic explanation without any network access
type TemplateExplainer struct{}

// Explain implements Explainer
func (TemplateExplainer) Explain(_ context.Context, d *models.Diagnosis, info *models.DiseaseInfo) (string, error) {
	if d == nil {
		return NoDiagnosisExplanation, nil
	}

	var b strings.Builder
	fmt.Fprintf(&b, "Your answers are most consistent with %s, with a confidence of %s.", d.Disease, Percent(d.CF))
	if d.Reasoning != "" {
		fmt.Fprintf(&b, " This is based on: %s.", d.Reasoning)
	}
	if info != nil {
		if len(info.Treatments) > 0 {
			fmt.Fprintf(&b, " Commonly used treatments include %s.", joinList(info.Treatments))
		}
		if len(info.Triggers) > 0 {
			fmt.Fprintf(&b, " Known triggers include %s.", joinList(info.Triggers))
		}
	}
	b.WriteString(" This is not a medical diagnosis; please confirm with a dermatologist.")
	return b.String(), nil
}

func joinList(items []string) string {
	switch len(items) {
	case 0:
		return ""
	case 1:
		return items[0]
	}
	return strings.Join(items[:len(items)-1], ", ") + " and " + items[len(items)-1]
}

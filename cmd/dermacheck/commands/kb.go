// ABOUTME: Knowledge base inspection command
// ABOUTME: Validates a knowledge file and prints its questions and diseases
package commands

import (
	"fmt"
	"os"
	"strings"

	"github.com/harper/dermacheck/internal/knowledge"
	"github.com/spf13/cobra"
)

var (
	kbFile     string
	kbDiseases bool
	kbDisease  string
)

// NewKBCmd creates the kb command
func NewKBCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "kb",
		Short: "Inspect and validate the knowledge base",
		Long: `Inspect and validate the knowledge base.

Without --file the built-in knowledge base is used, or the file named
by DERMACHECK_KNOWLEDGE_FILE. Loading a file runs the full consistency
check, so this doubles as a validator for custom knowledge files.

Examples:
  dermacheck kb
  dermacheck kb --file my-kb.yaml
  dermacheck kb --diseases
  dermacheck kb --disease Lipoma`,
		RunE: runKB,
	}

	cmd.Flags().StringVar(&kbFile, "file", "", "Knowledge file to load")
	cmd.Flags().BoolVar(&kbDiseases, "diseases", false, "List disease names")
	cmd.Flags().StringVar(&kbDisease, "disease", "", "Show reference data for one disease")

	return cmd
}

func runKB(cmd *cobra.Command, args []string) error {
	path := kbFile
	if path == "" {
		path = strings.TrimSpace(os.Getenv("DERMACHECK_KNOWLEDGE_FILE"))
	}
	kb, err := knowledge.Load(path)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	if kbDisease != "" {
		info, ok := kb.Disease(kbDisease)
		if !ok {
			return fmt.Errorf("unknown disease %q", kbDisease)
		}
		if outputFormat == formatJSON {
			return printJSON(out, info)
		}
		fmt.Fprintf(out, "%s\n", info.Name)
		if info.HasAgeRange() {
			fmt.Fprintf(out, "  Typical age:   %d-%d\n", *info.AgeMin, *info.AgeMax)
		}
		if info.CommonDuration != "" {
			fmt.Fprintf(out, "  Usual course:  %s\n", info.CommonDuration)
		}
		if len(info.SeverityLevels) > 0 {
			fmt.Fprintf(out, "  Severity:      %s\n", strings.Join(info.SeverityLevels, ", "))
		}
		if len(info.Treatments) > 0 {
			fmt.Fprintf(out, "  Treatments:    %s\n", strings.Join(info.Treatments, ", "))
		}
		if len(info.Triggers) > 0 {
			fmt.Fprintf(out, "  Triggers:      %s\n", strings.Join(info.Triggers, ", "))
		}
		return nil
	}

	if outputFormat == formatJSON {
		payload := map[string]interface{}{"summary": kb.Summary()}
		if kbDiseases {
			payload["diseases"] = kb.DiseaseNames()
		}
		return printJSON(out, payload)
	}

	source := "built-in"
	if path != "" {
		source = path
	}
	s := kb.Summary()
	fmt.Fprintf(out, "Knowledge base: %s\n", source)
	fmt.Fprintf(out, "  Questions:        %d\n", s.Questions)
	fmt.Fprintf(out, "  Flow rules:       %d\n", s.FlowRules)
	fmt.Fprintf(out, "  Diagnosis rules:  %d\n", s.DiagnosisRules)
	fmt.Fprintf(out, "  Diseases:         %d\n", s.Diseases)

	if kbDiseases {
		fmt.Fprintln(out)
		for _, name := range kb.DiseaseNames() {
			fmt.Fprintf(out, "  - %s\n", name)
		}
	}
	return nil
}

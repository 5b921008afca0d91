// ABOUTME: Export and import commands for consultation data
// ABOUTME: Writes YAML, JSON or Markdown and reads YAML or JSON exports back
package commands

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/harper/dermacheck/internal/storage/sqlite"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"
)

// Export file types
const (
	exportYAML     = "yaml"
	exportJSON     = "json"
	exportMarkdown = "markdown"
)

var (
	exportOutput string
	exportType   string
)

// NewExportCmd creates the export command
func NewExportCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "export [session-id...]",
		Short: "Export consultations to a file",
		Long: `Export consultations with their saved answers and rule firings.

All consultations are exported when no session IDs are given. The
file type follows --type, or the output file's extension
(.yaml, .yml, .json, .md).

Examples:
  dermacheck export
  dermacheck export -o consultations.json
  dermacheck export sess_0b7c... -o report.md
  dermacheck export --type markdown -o report.txt`,
		RunE: runExport,
	}

	cmd.Flags().StringVarP(&exportOutput, "output", "o", "dermacheck-export.yaml", "Output file")
	cmd.Flags().StringVar(&exportType, "type", "", "File type: yaml, json or markdown (default: from extension)")

	return cmd
}

// exportTypeFor picks the file type from the flag or the path's extension
func exportTypeFor(flag, path string) (string, error) {
	switch strings.ToLower(flag) {
	case exportYAML, exportJSON, exportMarkdown:
		return strings.ToLower(flag), nil
	case "md":
		return exportMarkdown, nil
	case "":
	default:
		return "", fmt.Errorf("--type must be yaml, json or markdown, got %q", flag)
	}

	switch strings.ToLower(filepath.Ext(path)) {
	case ".json":
		return exportJSON, nil
	case ".md", ".markdown":
		return exportMarkdown, nil
	}
	return exportYAML, nil
}

func runExport(cmd *cobra.Command, args []string) error {
	kind, err := exportTypeFor(exportType, exportOutput)
	if err != nil {
		return err
	}

	a, err := openApp()
	if err != nil {
		return err
	}
	defer a.Close()

	switch kind {
	case exportJSON:
		err = a.Store.ExportToJSON(exportOutput, args...)
	case exportMarkdown:
		err = a.Store.ExportToMarkdown(exportOutput, args...)
	default:
		err = a.Store.ExportToYAML(exportOutput, args...)
	}
	if err != nil {
		return fmt.Errorf("export failed: %w", err)
	}

	if !quiet {
		fmt.Fprintf(cmd.OutOrStdout(), "Exported to %s (%s)\n", exportOutput, kind)
	}
	return nil
}

// NewImportCmd creates the import command
func NewImportCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "import <file>",
		Short: "Import consultations from a YAML or JSON export",
		Long: `Import consultations from a file written by 'dermacheck export'.

Each session must restore cleanly against the current knowledge base.
Imported sessions replace local sessions with the same ID. Rule firing
history is not imported.

Examples:
  dermacheck import dermacheck-export.yaml
  dermacheck import consultations.json`,
		Args: cobra.ExactArgs(1),
		RunE: runImport,
	}
	return cmd
}

// readExport parses a YAML or JSON export file
func readExport(path string) (*sqlite.ExportData, error) {
	raw, err := os.ReadFile(path) // #nosec G304
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", path, err)
	}
	var data sqlite.ExportData
	if strings.EqualFold(filepath.Ext(path), ".json") {
		err = json.Unmarshal(raw, &data)
	} else {
		err = yaml.Unmarshal(raw, &data)
	}
	if err != nil {
		return nil, fmt.Errorf("parsing %s: %w", path, err)
	}
	if data.Version != sqlite.ExportVersion {
		return nil, fmt.Errorf("unsupported export version %q", data.Version)
	}
	return &data, nil
}

func runImport(cmd *cobra.Command, args []string) error {
	data, err := readExport(args[0])
	if err != nil {
		return err
	}

	a, err := openApp()
	if err != nil {
		return err
	}
	defer a.Close()

	for _, sess := range data.Sessions {
		if err := a.Service.Import(cmd.Context(), sess.Session, sess.Facts); err != nil {
			return fmt.Errorf("import failed: %w", err)
		}
	}

	if !quiet {
		fmt.Fprintf(cmd.OutOrStdout(), "Imported %d consultation(s)\n", len(data.Sessions))
	}
	return nil
}

// ABOUTME: Firings command showing a consultation's rule audit log
// ABOUTME: Lists every rule activation in the order it happened
package commands

import (
	"fmt"
	"sort"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"
)

// NewFiringsCmd creates the firings command
func NewFiringsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "firings <session-id>",
		Short: "Show the rule firings of a consultation",
		Long: `Show every rule that fired during a consultation, in order, with
its salience and variable bindings.

Examples:
  dermacheck firings sess_0b7c...
  dermacheck firings sess_0b7c... --format json`,
		Args: cobra.ExactArgs(1),
		RunE: runFirings,
	}
	return cmd
}

func runFirings(cmd *cobra.Command, args []string) error {
	a, err := openApp()
	if err != nil {
		return err
	}
	defer a.Close()

	firings, err := a.Service.Firings(cmd.Context(), args[0])
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	if outputFormat == formatJSON {
		return printJSON(out, firings)
	}

	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	fmt.Fprintf(w, "#\tRULE\tSALIENCE\tBINDINGS\n")
	fmt.Fprintf(w, "-\t----\t--------\t--------\n")
	for i, f := range firings {
		fmt.Fprintf(w, "%d\t%s\t%d\t%s\n", i+1, f.Rule, f.Salience, formatBindings(f.Bindings))
	}
	return w.Flush()
}

// formatBindings renders bindings as sorted key=value pairs
func formatBindings(bindings map[string]any) string {
	if len(bindings) == 0 {
		return "-"
	}
	keys := make([]string, 0, len(bindings))
	for k := range bindings {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, fmt.Sprintf("%s=%v", k, bindings[k]))
	}
	return strings.Join(parts, " ")
}

// ABOUTME: Status command for a single consultation
// ABOUTME: Shows the pending question or result plus the answers given
package commands

import (
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"
)

// NewStatusCmd creates the status command
func NewStatusCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "status <session-id>",
		Short: "Show where a consultation stands",
		Long: `Show where a consultation stands: the pending question or the
result, the answers given so far and the progress estimate.

Examples:
  dermacheck status sess_0b7c...
  dermacheck status sess_0b7c... --format json`,
		Args: cobra.ExactArgs(1),
		RunE: runStatus,
	}
	return cmd
}

func runStatus(cmd *cobra.Command, args []string) error {
	a, err := openApp()
	if err != nil {
		return err
	}
	defer a.Close()

	st, err := a.Service.Status(cmd.Context(), args[0])
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	if outputFormat == formatJSON {
		return printJSON(out, st)
	}

	fmt.Fprintf(out, "Session: %s\n", st.SessionID)
	fmt.Fprintf(out, "Started: %s, updated %s\n\n", formatTime(st.CreatedAt), formatTime(st.UpdatedAt))
	printState(out, st)

	if len(st.Answers) == 0 {
		return nil
	}
	fmt.Fprintf(out, "\nAnswers (%d):\n", st.Answered)
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	for _, ans := range st.Answers {
		fmt.Fprintf(w, "  %s\t%s\n", ans.Ident, truncate(ans.Text, 50))
	}
	return w.Flush()
}

// ABOUTME: CLI command to list stored consultations
// ABOUTME: Shows status, answer count and result of each session
package commands

import (
	"fmt"
	"strings"
	"text/tabwriter"

	"github.com/harper/dermacheck/internal/models"
	"github.com/spf13/cobra"
)

var listStatus string

// NewListCmd creates list command
func NewListCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List stored consultations",
		Long: `List stored consultations, most recently updated first.

Each consultation is AWAITING_INPUT, COMPLETED or FAILED.

Examples:
  dermacheck list
  dermacheck list --status completed
  dermacheck list --format json`,
		RunE: runList,
	}

	cmd.Flags().StringVar(&listStatus, "status", "", "Only show sessions with this status")

	return cmd
}

func runList(cmd *cobra.Command, args []string) error {
	var want models.SessionStatus
	if listStatus != "" {
		want = models.SessionStatus(strings.ToUpper(listStatus))
		switch want {
		case models.StatusAwaitingInput, models.StatusCompleted, models.StatusFailed:
		default:
			return fmt.Errorf("--status must be awaiting_input, completed or failed, got %q", listStatus)
		}
	}

	a, err := openApp()
	if err != nil {
		return err
	}
	defer a.Close()

	all, err := a.Service.List(cmd.Context())
	if err != nil {
		return fmt.Errorf("listing sessions: %w", err)
	}
	records := make([]models.SessionRecord, 0, len(all))
	for _, rec := range all {
		if want == "" || rec.Status == want {
			records = append(records, rec)
		}
	}

	out := cmd.OutOrStdout()
	if outputFormat == formatJSON {
		return printJSON(out, records)
	}
	if len(records) == 0 {
		if !quiet {
			fmt.Fprintf(out, "No consultations found\n")
		}
		return nil
	}

	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	fmt.Fprintf(w, "SESSION ID\tSTATUS\tANSWERS\tRESULT\tUPDATED\n")
	fmt.Fprintf(w, "----------\t------\t-------\t------\t-------\n")
	for _, rec := range records {
		fmt.Fprintf(w, "%s\t%s\t%d\t%s\t%s\n",
			rec.SessionID,
			rec.Status,
			rec.AnswerCount,
			truncate(describeRecord(rec), 40),
			formatTime(rec.UpdatedAt))
	}
	if err := w.Flush(); err != nil {
		return err
	}

	if !quiet {
		fmt.Fprintf(out, "\nTotal: %d consultation(s)\n", len(records))
	}
	return nil
}

// describeRecord summarizes a session's outcome in one cell
func describeRecord(rec models.SessionRecord) string {
	switch rec.Status {
	case models.StatusAwaitingInput:
		return "waiting on " + rec.PendingQuestion
	case models.StatusFailed:
		return rec.FailureReason
	}
	if rec.Result == "" {
		return "no diagnosis"
	}
	return fmt.Sprintf("%s (CF %.2f)", rec.Result, rec.ResultCF)
}

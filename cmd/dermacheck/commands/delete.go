// ABOUTME: Delete command for stored consultations
// ABOUTME: Removes a session with its snapshot and audit log
package commands

import (
	"fmt"

	"github.com/spf13/cobra"
)

// NewDeleteCmd creates the delete command
func NewDeleteCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "delete <session-id>...",
		Short: "Delete consultations",
		Long: `Delete consultations together with their saved answers and rule
firing history. Synced copies in Charm are not touched.

Examples:
  dermacheck delete sess_0b7c...`,
		Args: cobra.MinimumNArgs(1),
		RunE: runDelete,
	}
	return cmd
}

func runDelete(cmd *cobra.Command, args []string) error {
	a, err := openApp()
	if err != nil {
		return err
	}
	defer a.Close()

	for _, id := range args {
		if err := a.Service.Delete(cmd.Context(), id); err != nil {
			return fmt.Errorf("deleting %s: %w", id, err)
		}
		if !quiet {
			fmt.Fprintf(cmd.OutOrStdout(), "Deleted %s\n", id)
		}
	}
	return nil
}

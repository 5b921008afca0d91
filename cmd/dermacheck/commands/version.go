// ABOUTME: Version command reporting the build and the built-in knowledge base
// ABOUTME: Shows version, commit, build date and the rule and disease counts consultations run against
package commands

import (
	"fmt"

	"github.com/harper/dermacheck/internal/knowledge"
	"github.com/spf13/cobra"
)

var versionInfo = VersionInfo{
	Version: "dev",
	Commit:  "none",
	Date:    "unknown",
}

// VersionInfo is stamped at release time
type VersionInfo struct {
	Version string
	Commit  string
	Date    string
}

// SetVersion records the build stamp (called from main)
func SetVersion(version, commit, date string) {
	versionInfo.Version = version
	versionInfo.Commit = commit
	versionInfo.Date = date
}

// NewVersionCmd creates the version command
func NewVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Show version information",
		Long: `Display the dermacheck build stamp and the built-in knowledge base it ships.

A knowledge file set through DERMACHECK_KNOWLEDGE_FILE is reported by
'dermacheck kb', not here.`,
		Run: func(cmd *cobra.Command, args []string) {
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Dermacheck %s\n", versionInfo.Version)
			fmt.Fprintf(out, "Commit: %s\n", versionInfo.Commit)
			fmt.Fprintf(out, "Built:  %s\n", versionInfo.Date)

			kb, err := knowledge.Default()
			if err != nil {
				fmt.Fprintf(out, "Knowledge base: unavailable (%v)\n", err)
				return
			}
			sum := kb.Summary()
			fmt.Fprintf(out, "Knowledge base: format %d, %d questions, %d rules, %d diseases\n",
				knowledge.FormatVersion, sum.Questions, sum.FlowRules+sum.DiagnosisRules, sum.Diseases)
		},
	}
}

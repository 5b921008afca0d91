// ABOUTME: Root command for the dermacheck CLI
// ABOUTME: Holds global flags, logger setup and subcommand registration
package commands

import (
	"fmt"
	"os"

	"github.com/harper/dermacheck/internal/logging"
	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

const banner = `
██████╗ ███████╗██████╗ ███╗   ███╗ █████╗
██╔══██╗██╔════╝██╔══██╗████╗ ████║██╔══██╗
██║  ██║█████╗  ██████╔╝██╔████╔██║███████║
██║  ██║██╔══╝  ██╔══██╗██║╚██╔╝██║██╔══██║
██████╔╝███████╗██║  ██║██║ ╚═╝ ██║██║  ██║
╚═════╝ ╚══════╝╚═╝  ╚═╝╚═╝     ╚═╝╚═╝  ╚═╝  check
`

// Output formats accepted by --format
const (
	formatAuto  = "auto"
	formatTable = "table"
	formatJSON  = "json"
)

var (
	verbose      bool
	quiet        bool
	outputFormat string

	logger = zap.NewNop()
)

// NewRootCmd creates the root command with all subcommands attached
func NewRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "dermacheck",
		Short: "Rule-based skin symptom checker",
		Long: banner + `
Dermacheck asks a short series of questions about a skin problem and
ranks likely conditions with certainty factors. Consultations are
stored locally in SQLite and can be resumed, exported or synced.

The result is not a medical diagnosis. Please confirm any finding
with a dermatologist.`,
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			// Load .env file if it exists (for API keys)
			_ = godotenv.Load()

			switch outputFormat {
			case formatAuto, formatTable, formatJSON:
			default:
				return fmt.Errorf("--format must be auto, table or json, got %q", outputFormat)
			}

			configured := os.Getenv("DERMACHECK_LOG_LEVEL")
			if configured == "" {
				configured = "warn"
			}
			l, err := logging.New(logging.Level(configured, verbose, quiet))
			if err != nil {
				return err
			}
			logger = l
			return nil
		},
		PersistentPostRun: func(cmd *cobra.Command, args []string) {
			_ = logger.Sync()
		},
	}

	cmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Show debug logs")
	cmd.PersistentFlags().BoolVarP(&quiet, "quiet", "q", false, "Only show errors")
	cmd.PersistentFlags().StringVar(&outputFormat, "format", formatAuto, "Output format: auto, table or json")
	cmd.MarkFlagsMutuallyExclusive("verbose", "quiet")

	cmd.AddCommand(
		NewConsultCmd(),
		NewAnswerCmd(),
		NewStatusCmd(),
		NewListCmd(),
		NewFiringsCmd(),
		NewExportCmd(),
		NewImportCmd(),
		NewDeleteCmd(),
		NewKBCmd(),
		NewServeCmd(),
		NewMCPCmd(),
		NewSyncCmd(),
		NewVersionCmd(),
	)

	return cmd
}

// Execute runs the root command
func Execute() error {
	return NewRootCmd().Execute()
}

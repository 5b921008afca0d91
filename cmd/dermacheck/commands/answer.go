// ABOUTME: Non-interactive answer command
// ABOUTME: Records one answer and prints the next question or the result
package commands

import (
	"errors"
	"fmt"

	"github.com/harper/dermacheck/internal/core"
	"github.com/spf13/cobra"
)

var answerIdent string

// NewAnswerCmd creates the answer command
func NewAnswerCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "answer <session-id> <value>",
		Short: "Answer the pending question of a consultation",
		Long: `Answer the pending question of a consultation and print what comes next.

Useful for scripting. The question answered defaults to the pending
one; --ident names it explicitly.

Examples:
  dermacheck answer sess_0b7c... 45
  dermacheck answer sess_0b7c... "face,hands" --ident locations
  dermacheck answer sess_0b7c... yes --format json`,
		Args: cobra.ExactArgs(2),
		RunE: runAnswer,
	}

	cmd.Flags().StringVar(&answerIdent, "ident", "", "Question ident being answered (default: pending question)")

	return cmd
}

func runAnswer(cmd *cobra.Command, args []string) error {
	a, err := openApp()
	if err != nil {
		return err
	}
	defer a.Close()

	ctx := cmd.Context()
	sessionID, value := args[0], args[1]

	ident := answerIdent
	if ident == "" {
		st, err := a.Service.Status(ctx, sessionID)
		if err != nil {
			return err
		}
		if st.State.Kind != core.StateNeedInput {
			return errors.New("no question is pending")
		}
		ident = st.State.Question.Ident
	}

	st, err := a.Service.Answer(ctx, sessionID, ident, value)
	if err != nil {
		if msg := describeRejection(err); msg != "" {
			return fmt.Errorf("answer for %s rejected: %s", ident, msg)
		}
		return err
	}

	if outputFormat == formatJSON {
		return printJSON(cmd.OutOrStdout(), st)
	}
	printState(cmd.OutOrStdout(), st)
	return nil
}

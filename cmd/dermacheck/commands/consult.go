// ABOUTME: Interactive consultation command
// ABOUTME: Asks questions on the terminal until a diagnosis is reached
package commands

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/harper/dermacheck/internal/core"
	"github.com/harper/dermacheck/internal/service"
	"github.com/spf13/cobra"
)

var (
	consultSession string
	consultExplain bool
)

// NewConsultCmd creates the consult command
func NewConsultCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "consult",
		Short: "Start or resume an interactive consultation",
		Long: `Start or resume an interactive consultation.

Questions are asked one at a time. Multi-choice questions accept a
comma separated list. A rejected answer is explained and the same
question is asked again. Every accepted answer is saved, so an
interrupted consultation can be resumed with --session.

Examples:
  dermacheck consult
  dermacheck consult --explain
  dermacheck consult --session sess_0b7c...`,
		RunE: runConsult,
	}

	cmd.Flags().StringVar(&consultSession, "session", "", "Resume an existing consultation")
	cmd.Flags().BoolVar(&consultExplain, "explain", false, "Explain the result in plain language")

	return cmd
}

func runConsult(cmd *cobra.Command, args []string) error {
	a, err := openApp()
	if err != nil {
		return err
	}
	defer a.Close()

	return consult(cmd.Context(), a.Service, consultSession, consultExplain, cmd.InOrStdin(), cmd.OutOrStdout())
}

// consult drives one consultation from in to out
func consult(ctx context.Context, svc *service.Service, sessionID string, explain bool, in io.Reader, out io.Writer) error {
	if ctx == nil {
		ctx = context.Background()
	}

	var st service.Status
	var err error
	if sessionID == "" {
		st, err = svc.Create(ctx)
	} else {
		st, err = svc.Status(ctx, sessionID)
	}
	if err != nil {
		return err
	}
	if !quiet {
		fmt.Fprintf(out, "Consultation %s\n\n", st.SessionID)
	}

	scanner := bufio.NewScanner(in)
	for st.State.Kind == core.StateNeedInput {
		printState(out, st)
		fmt.Fprint(out, "> ")
		if !scanner.Scan() {
			if err := scanner.Err(); err != nil {
				return fmt.Errorf("reading answer: %w", err)
			}
			fmt.Fprintln(out)
			return fmt.Errorf("input closed; resume with: dermacheck consult --session %s", st.SessionID)
		}
		answer := strings.TrimSpace(scanner.Text())
		if answer == "" {
			continue
		}

		next, err := svc.Answer(ctx, st.SessionID, st.State.Question.Ident, answer)
		if err != nil {
			if msg := describeRejection(err); msg != "" {
				fmt.Fprintf(out, "✗ %s\n", msg)
				continue
			}
			return err
		}
		st = next
	}

	fmt.Fprintln(out)
	printState(out, st)
	if st.State.Kind != core.StateCompleted || !explain {
		return nil
	}

	exp, err := svc.Explain(ctx, st.SessionID)
	if err != nil {
		return fmt.Errorf("explaining diagnosis: %w", err)
	}
	fmt.Fprintf(out, "\n%s\n", exp.Text)
	return nil
}

package cli

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"
)

const refactorLongDesc = `Propose a refactoring for a file in the indexed repository.

The target describes the goal; concerns are constraints the proposal
must respect. The answer includes a draft or final unified diff, a test
plan, and a risk assessment with rollback guidance.

Example:
  codenav refactor internal/auth/login.go -t "extract password checking into its own type"
  codenav refactor app/db.py -t "use a connection pool" -c "no API changes" -c "python 3.8"`

func newRefactorCmd() *cobra.Command {
	var (
		target   string
		concerns []string
	)

	cmd := &cobra.Command{
		Use:   "refactor <file>",
		Short: "Propose a refactoring for a file",
		Long:  refactorLongDesc,
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp(cmd)
			if err != nil {
				return err
			}
			defer a.close()

			ag, err := a.newAgent(a.cfg.RepoPath)
			if err != nil {
				return err
			}

			resp, err := ag.Query(cmd.Context(), refactorQuestion(args[0], target, concerns), nil)
			if resp != nil {
				renderResponse(cmd.OutOrStdout(), resp)
			}
			return err
		},
	}

	cmd.Flags().StringVarP(&target, "target", "t", "", "Refactoring goal (required)")
	cmd.Flags().StringArrayVarP(&concerns, "concern", "c", nil, "Constraint the proposal must respect (repeatable)")
	_ = cmd.MarkFlagRequired("target")

	return cmd
}

// refactorQuestion frames a refactoring request as a question with an
// explicit patch expectation.
func refactorQuestion(file, target string, concerns []string) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Refactor %s: %s.\n", file, strings.TrimSpace(target))
	if len(concerns) > 0 {
		b.WriteString("Constraints that must hold:\n")
		for _, c := range concerns {
			fmt.Fprintf(&b, "- %s\n", c)
		}
	}
	b.WriteString("Cite the code you are changing, include a unified diff, suggest tests, and assess the risk.")
	return b.String()
}

package cli

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"
)

const diagnoseLongDesc = `Diagnose an error message against the indexed repository.

The error text (and optionally the file it came from) is framed as a
root-cause question; the answer cites the code involved and proposes a
fix with a risk assessment.

Example:
  codenav diagnose -e "nil pointer dereference in handler.go:42"
  codenav diagnose -e "ImportError: no module named auth" -f app/main.py`

func newDiagnoseCmd() *cobra.Command {
	var (
		errText string
		file    string
	)

	cmd := &cobra.Command{
		Use:   "diagnose",
		Short: "Diagnose an error against the repository",
		Long:  diagnoseLongDesc,
		Args:  cobra.NoArgs,
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

			resp, err := ag.Query(cmd.Context(), diagnoseQuestion(errText, file), nil)
			if resp != nil {
				renderResponse(cmd.OutOrStdout(), resp)
			}
			return err
		},
	}

	cmd.Flags().StringVarP(&errText, "error", "e", "", "Error message to diagnose (required)")
	cmd.Flags().StringVarP(&file, "file", "f", "", "File where the error appeared")
	_ = cmd.MarkFlagRequired("error")

	return cmd
}

// diagnoseQuestion frames an error report as a root-cause question.
func diagnoseQuestion(errText, file string) string {
	var b strings.Builder
	fmt.Fprintf(&b, "I'm seeing this error:\n\n%s\n\n", strings.TrimSpace(errText))
	if file != "" {
		fmt.Fprintf(&b, "It appears to come from %s. ", file)
	}
	b.WriteString("Explain the most likely root cause in this codebase, cite the relevant code, and propose a fix.")
	return b.String()
}

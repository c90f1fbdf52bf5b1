package cli

import (
	"bufio"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/codenav/codenav/pkg/types"
)

const queryLongDesc = `Ask a question about the indexed repository.

The answer is grounded in retrieved code: every citation points at a file
and line range that was actually fed to the model. With TAVILY_API_KEY
set, questions that ask for outside knowledge also pull in web sources.

Interactive mode keeps the conversation history so follow-up questions
can refer to earlier answers. Type exit, quit, or q to leave.

Example:
  codenav query "where is authentication handled"
  codenav query --interactive`

// exitSentinels end an interactive session.
var exitSentinels = map[string]bool{"exit": true, "quit": true, "q": true}

func newQueryCmd() *cobra.Command {
	var interactive bool

	cmd := &cobra.Command{
		Use:   "query [question]",
		Short: "Ask a question about the repository",
		Long:  queryLongDesc,
		Args:  cobra.ArbitraryArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			question := strings.TrimSpace(strings.Join(args, " "))
			if question == "" && !interactive {
				return fmt.Errorf("provide a question or use --interactive")
			}

			a, err := newApp(cmd)
			if err != nil {
				return err
			}
			defer a.close()

			ag, err := a.newAgent(a.cfg.RepoPath)
			if err != nil {
				return err
			}

			if !interactive {
				resp, err := ag.Query(cmd.Context(), question, nil)
				if resp != nil {
					renderResponse(cmd.OutOrStdout(), resp)
				}
				return err
			}

			out := cmd.OutOrStdout()
			fmt.Fprintln(out, dimStyle.Render("Interactive session. Type exit, quit, or q to leave."))

			var history []types.Turn
			reader := bufio.NewScanner(cmd.InOrStdin())
			for {
				fmt.Fprint(out, headerStyle.Render("> "))
				if !reader.Scan() {
					return reader.Err()
				}
				question := strings.TrimSpace(reader.Text())
				if question == "" {
					continue
				}
				if exitSentinels[strings.ToLower(question)] {
					return nil
				}

				resp, err := ag.Query(cmd.Context(), question, history)
				if err != nil {
					// One failed question should not end the session.
					fmt.Fprintln(out, errorStyle.Render("error: ")+err.Error())
					if resp != nil {
						renderResponse(out, resp)
					}
					continue
				}
				renderResponse(out, resp)
				history = append(history, types.Turn{Question: question, Answer: resp.Answer})
			}
		},
	}

	cmd.Flags().BoolVarP(&interactive, "interactive", "i", false, "Start an interactive session")

	return cmd
}

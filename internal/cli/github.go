package cli

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/codenav/codenav/internal/github"
	"github.com/codenav/codenav/internal/index"
)

const githubLongDesc = `Fetch a GitHub repository, index it, and optionally ask a question.

The repository is downloaded as a zipball by default, trying the main
branch then master. --method clone shallow-clones with git instead,
which keeps the .git directory. Fetched trees land under the vector
store path so subsequent runs reuse them.

Example:
  codenav github https://github.com/spf13/cobra
  codenav github spf13/cobra --query "how are flags parsed"`

func newGitHubCmd() *cobra.Command {
	var (
		question string
		method   string
	)

	cmd := &cobra.Command{
		Use:   "github <url>",
		Short: "Fetch and index a GitHub repository",
		Long:  githubLongDesc,
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ref, err := github.ParseRepoURL(args[0])
			if err != nil {
				return err
			}

			a, err := newApp(cmd)
			if err != nil {
				return err
			}
			defer a.close()

			fetchDir := filepath.Join(a.cfg.VectorStorePath, "github", ref.Owner)
			if err := os.MkdirAll(fetchDir, 0o755); err != nil {
				return err
			}

			client := github.NewClient(a.cfg.GitHubToken)
			a.log.Info("fetching repository", "repo", ref.String(), "method", method)
			root, err := client.Fetch(cmd.Context(), ref, fetchDir, github.Method(method))
			if err != nil {
				return err
			}

			result, err := a.manager.IndexRepository(cmd.Context(), root, index.Options{})
			if err != nil {
				return err
			}
			a.search.InvalidateCache()

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "%s %s\n", sectionStyle.Render("Fetched:"), root)
			renderIndexResult(out, result)

			if question == "" {
				return nil
			}
			ag, err := a.newAgent(root)
			if err != nil {
				return err
			}
			resp, err := ag.Query(cmd.Context(), question, nil)
			if resp != nil {
				fmt.Fprintln(out)
				renderResponse(out, resp)
			}
			return err
		},
	}

	cmd.Flags().StringVarP(&question, "query", "q", "", "Question to ask once indexing completes")
	cmd.Flags().StringVarP(&method, "method", "m", "zip", "Fetch method: zip or clone")

	return cmd
}

const searchGitHubLongDesc = `Search the GitHub repository catalog.

Results are ordered by stars. GITHUB_TOKEN raises the API rate limit but
is not required.

Example:
  codenav search-github "vector database" --language go --stars 500`

func newSearchGitHubCmd() *cobra.Command {
	var (
		language string
		stars    int
		limit    int
	)

	cmd := &cobra.Command{
		Use:   "search-github <term>",
		Short: "Search GitHub repositories",
		Long:  searchGitHubLongDesc,
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp(cmd)
			if err != nil {
				return err
			}
			defer a.close()

			client := github.NewClient(a.cfg.GitHubToken)
			results, err := client.SearchRepositories(cmd.Context(), strings.Join(args, " "), github.SearchOptions{
				Language: language,
				MinStars: stars,
				Limit:    limit,
			})
			if err != nil {
				return err
			}

			renderSearchResults(cmd.OutOrStdout(), results)
			return nil
		},
	}

	cmd.Flags().StringVarP(&language, "language", "l", "", "Filter by primary language")
	cmd.Flags().IntVarP(&stars, "stars", "s", 0, "Minimum star count")
	cmd.Flags().IntVarP(&limit, "limit", "n", 10, "Maximum results (1-100)")

	return cmd
}

func renderSearchResults(w io.Writer, results []github.SearchResult) {
	if len(results) == 0 {
		fmt.Fprintln(w, dimStyle.Render("No repositories found."))
		return
	}
	for i, r := range results {
		fmt.Fprintf(w, "%s %s %s\n",
			headerStyle.Render(fmt.Sprintf("%2d.", i+1)),
			citeStyle.Render(r.FullName),
			dimStyle.Render(fmt.Sprintf("★ %d  %s", r.Stars, r.Language)))
		if r.Description != "" {
			fmt.Fprintf(w, "    %s\n", r.Description)
		}
		fmt.Fprintf(w, "    %s\n", dimStyle.Render(r.HTMLURL))
	}
}

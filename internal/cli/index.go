package cli

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/codenav/codenav/internal/index"
)

const indexLongDesc = `Build or refresh the search index for the repository.

Unchanged files are skipped by content hash, so repeat runs only pay for
what changed. Use --force to discard the existing index and rebuild from
scratch. Readers keep seeing the previous index until the new one commits.`

func newIndexCmd() *cobra.Command {
	var (
		force  bool
		ignore []string
	)

	cmd := &cobra.Command{
		Use:   "index",
		Short: "Index the repository for search",
		Long:  indexLongDesc,
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp(cmd)
			if err != nil {
				return err
			}
			defer a.close()

			if err := a.cfg.ValidateRepoPath(); err != nil {
				return err
			}

			a.log.Info("indexing repository", "root", a.cfg.RepoPath, "force", force)
			result, err := a.manager.IndexRepository(cmd.Context(), a.cfg.RepoPath, index.Options{
				Force:          force,
				IgnorePatterns: ignore,
			})
			if err != nil {
				return err
			}
			a.search.InvalidateCache()

			renderIndexResult(cmd.OutOrStdout(), result)
			return nil
		},
	}

	cmd.Flags().BoolVar(&force, "force", false, "Discard the existing index and rebuild from scratch")
	cmd.Flags().StringSliceVar(&ignore, "ignore", nil, "Extra glob patterns to skip (repeatable)")

	return cmd
}

func renderIndexResult(w io.Writer, result *index.Result) {
	fmt.Fprintf(w, "%s %d indexed, %d skipped, %d removed, %d chunks in %s\n",
		sectionStyle.Render("Indexed:"),
		result.FilesIndexed, result.FilesSkipped, result.FilesRemoved,
		result.ChunksCreated, result.Duration.Round(timeRound))

	for _, warning := range result.Warnings {
		fmt.Fprintf(w, "%s %s: %s\n", warnStyle.Render("warn"), warning.Path, warning.Reason)
	}
}

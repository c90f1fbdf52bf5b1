// Package cli wires the command tree. Commands build their dependencies
// from configuration at run time, keeping construction out of package
// init so tests can assemble the same pieces directly.
package cli

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/codenav/codenav/internal/agent"
	"github.com/codenav/codenav/internal/chunker"
	"github.com/codenav/codenav/internal/config"
	"github.com/codenav/codenav/internal/embedder"
	"github.com/codenav/codenav/internal/index"
	"github.com/codenav/codenav/internal/logger"
	"github.com/codenav/codenav/internal/searcher"
	"github.com/codenav/codenav/internal/storage"
	"github.com/codenav/codenav/internal/websearch"
)

const rootLongDesc = `codenav answers questions about a codebase with citations.

It scans a repository, chunks source files along definition boundaries,
embeds the chunks, and stores them in a local SQLite index. Questions run
retrieval over that index and hand the best matches to a language model
that must answer in a structured, cited form.

Typical flow:
  codenav index              Build or refresh the index for REPO_PATH
  codenav query "question"   Ask a one-off question
  codenav query -i           Start an interactive session`

// NewRootCmd builds the command tree.
func NewRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:           "codenav",
		Short:         "codenav - codebase navigation assistant",
		Long:          rootLongDesc,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	cmd.PersistentFlags().BoolP("debug", "d", false, "Enable debug logging")
	cmd.PersistentFlags().StringP("repo", "r", "", "Repository root (overrides REPO_PATH)")

	cmd.AddCommand(
		newInfoCmd(),
		newIndexCmd(),
		newQueryCmd(),
		newGitHubCmd(),
		newSearchGitHubCmd(),
		newDiagnoseCmd(),
		newRefactorCmd(),
		newMCPCmd(),
	)

	return cmd
}

// Execute runs the CLI and returns a process exit code.
func Execute() int {
	if err := NewRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, errorStyle.Render("error: ")+err.Error())
		return 1
	}
	return 0
}

// app holds the pipeline components a command needs. Built per run, torn
// down when the command finishes.
type app struct {
	cfg     *config.Config
	log     *slog.Logger
	store   storage.Storage
	embed   embedder.Embedder
	manager *index.Manager
	search  *searcher.Searcher
}

// newApp loads configuration and assembles the pipeline.
func newApp(cmd *cobra.Command) (*app, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}
	if repo, _ := cmd.Flags().GetString("repo"); repo != "" {
		cfg.RepoPath = repo
	}

	debug, _ := cmd.Flags().GetBool("debug")
	log := logger.New(logger.WithDebug(debug))

	if err := os.MkdirAll(cfg.VectorStorePath, 0o755); err != nil {
		return nil, fmt.Errorf("creating vector store directory: %w", err)
	}
	store, err := storage.New(filepath.Join(cfg.VectorStorePath, "index.db"))
	if err != nil {
		return nil, err
	}

	embed, err := embedder.FromConfig(cfg)
	if err != nil {
		_ = store.Close()
		return nil, err
	}

	chunk, err := chunker.New(cfg.ChunkSize, cfg.ChunkOverlap)
	if err != nil {
		_ = store.Close()
		return nil, err
	}

	return &app{
		cfg:     cfg,
		log:     log,
		store:   store,
		embed:   embed,
		manager: index.New(store, embed, chunk, log),
		search:  searcher.New(store, embed),
	}, nil
}

func (a *app) close() {
	_ = a.embed.Close()
	_ = a.store.Close()
}

// newAgent builds the question-answering agent for the given repository
// root. Requires the OpenAI credential; web search joins in when the
// Tavily credential is present.
func (a *app) newAgent(repoRoot string) (*agent.Agent, error) {
	if err := a.cfg.RequireOpenAI(); err != nil {
		return nil, err
	}
	capability, err := agent.NewOpenAICapability(a.cfg.OpenAIAPIKey, a.cfg.LLMModel)
	if err != nil {
		return nil, err
	}

	var web *websearch.Client
	if a.cfg.WebSearchEnabled() {
		if web, err = websearch.NewClient(a.cfg.TavilyAPIKey); err != nil {
			return nil, err
		}
	}

	return agent.New(a.search, web, capability, repoRoot, a.log), nil
}

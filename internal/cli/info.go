package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/spf13/cobra"

	"github.com/codenav/codenav/internal/scanner"
	"github.com/codenav/codenav/internal/storage"
	"github.com/codenav/codenav/pkg/types"
)

const infoLongDesc = `Summarize a repository: language breakdown, detected frameworks,
structure statistics, and index status.

The analysis never needs API credentials; it reads the tree directly.`

func newInfoCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "info",
		Short: "Summarize the repository and its index status",
		Long:  infoLongDesc,
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp(cmd)
			if err != nil {
				return err
			}
			defer a.close()

			info, err := analyzeRepo(cmd.Context(), a.cfg.RepoPath, a.log)
			if err != nil {
				return err
			}

			stats, err := a.manager.Status(cmd.Context(), a.cfg.RepoPath)
			if err != nil && !errors.Is(err, storage.ErrNotFound) {
				return err
			}

			renderInfo(cmd.OutOrStdout(), info, stats)
			return nil
		},
	}
}

// repoInfo is the result of a read-only repository analysis.
type repoInfo struct {
	Root       string
	Files      int
	Lines      int
	Languages  map[types.Language]int // file counts
	BuildFiles []string
	Frameworks []string
	TopDirs    []string
}

// buildFileNames are manifest files worth reporting and mining for
// framework hints.
var buildFileNames = map[string]bool{
	"go.mod":           true,
	"package.json":     true,
	"requirements.txt": true,
	"pyproject.toml":   true,
	"setup.py":         true,
	"Cargo.toml":       true,
	"pom.xml":          true,
	"build.gradle":     true,
	"Gemfile":          true,
	"composer.json":    true,
	"Makefile":         true,
	"Dockerfile":       true,
}

// frameworkHints maps a substring of a build file's content to a
// framework name.
var frameworkHints = []struct {
	needle string
	name   string
}{
	{"gin-gonic/gin", "Gin"},
	{"labstack/echo", "Echo"},
	{"gofiber/fiber", "Fiber"},
	{"spf13/cobra", "Cobra"},
	{"grpc", "gRPC"},
	{"django", "Django"},
	{"flask", "Flask"},
	{"fastapi", "FastAPI"},
	{"pytest", "pytest"},
	{"\"react\"", "React"},
	{"\"vue\"", "Vue"},
	{"\"next\"", "Next.js"},
	{"\"express\"", "Express"},
	{"\"svelte\"", "Svelte"},
	{"actix-web", "Actix Web"},
	{"tokio", "Tokio"},
	{"spring-boot", "Spring Boot"},
	{"rails", "Rails"},
	{"laravel", "Laravel"},
}

// analyzeRepo walks the tree once, tallying languages, lines, top-level
// layout, and framework hints from build files.
func analyzeRepo(ctx context.Context, root string, log *slog.Logger) (*repoInfo, error) {
	info := &repoInfo{
		Root:      root,
		Languages: make(map[types.Language]int),
	}

	frameworks := make(map[string]bool)
	scan := scanner.New(log)
	_, err := scan.Scan(ctx, root, nil, func(f types.SourceFile) error {
		info.Files++
		info.Lines += strings.Count(f.Content, "\n") + 1
		info.Languages[f.Language]++

		base := filepath.Base(f.Path)
		if buildFileNames[base] {
			info.BuildFiles = append(info.BuildFiles, f.Path)
			lower := strings.ToLower(f.Content)
			for _, hint := range frameworkHints {
				if strings.Contains(lower, strings.ToLower(hint.needle)) {
					frameworks[hint.name] = true
				}
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	for name := range frameworks {
		info.Frameworks = append(info.Frameworks, name)
	}
	sort.Strings(info.Frameworks)
	sort.Strings(info.BuildFiles)

	entries, err := os.ReadDir(root)
	if err == nil {
		for _, e := range entries {
			if e.IsDir() && !strings.HasPrefix(e.Name(), ".") {
				info.TopDirs = append(info.TopDirs, e.Name())
			}
		}
		sort.Strings(info.TopDirs)
	}

	return info, nil
}

// languagesByCount orders the histogram by descending file count, ties
// alphabetically.
func languagesByCount(langs map[types.Language]int) []types.Language {
	out := make([]types.Language, 0, len(langs))
	for lang := range langs {
		out = append(out, lang)
	}
	sort.Slice(out, func(i, j int) bool {
		if langs[out[i]] != langs[out[j]] {
			return langs[out[i]] > langs[out[j]]
		}
		return out[i] < out[j]
	})
	return out
}

func renderInfo(w io.Writer, info *repoInfo, stats *storage.Stats) {
	fmt.Fprintln(w, headerStyle.Render(info.Root))
	fmt.Fprintf(w, "%s %d files, %d lines\n", sectionStyle.Render("Size:"), info.Files, info.Lines)

	if len(info.Languages) > 0 {
		fmt.Fprintln(w, sectionStyle.Render("Languages:"))
		for _, lang := range languagesByCount(info.Languages) {
			count := info.Languages[lang]
			pct := float64(count) / float64(info.Files) * 100
			fmt.Fprintf(w, "  %-12s %4d files %s\n", lang, count, dimStyle.Render(fmt.Sprintf("(%.1f%%)", pct)))
		}
	}

	if len(info.Frameworks) > 0 {
		fmt.Fprintf(w, "%s %s\n", sectionStyle.Render("Frameworks:"), strings.Join(info.Frameworks, ", "))
	}
	if len(info.TopDirs) > 0 {
		fmt.Fprintf(w, "%s %s\n", sectionStyle.Render("Layout:"), strings.Join(info.TopDirs, "/ ")+"/")
	}
	if len(info.BuildFiles) > 0 {
		fmt.Fprintf(w, "%s %s\n", sectionStyle.Render("Build files:"), strings.Join(info.BuildFiles, ", "))
	}

	fmt.Fprintln(w)
	if stats == nil || stats.Repo == nil {
		fmt.Fprintln(w, dimStyle.Render("Not indexed. Run 'codenav index' to build the index."))
		return
	}
	fmt.Fprintf(w, "%s %s, %d files, %d chunks, %d embeddings, %.2f MB\n",
		sectionStyle.Render("Index:"),
		stats.Repo.State, stats.FilesCount, stats.ChunksCount, stats.EmbeddingsCount, stats.IndexSizeMB)
	if !stats.Repo.LastIndexedAt.IsZero() {
		fmt.Fprintf(w, "%s %s with %s\n",
			sectionStyle.Render("Last indexed:"),
			stats.Repo.LastIndexedAt.Format("2006-01-02 15:04:05"),
			stats.Repo.EmbeddingModel)
	}
}

// Package scanner walks a repository tree and yields source files for
// chunking. The walk is a pure read: it never writes, and unreadable files
// become recorded warnings instead of aborting the scan.
package scanner

import (
	"bytes"
	"context"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/bmatcuk/doublestar/v4"

	"github.com/codenav/codenav/pkg/types"
)

// DefaultIgnorePatterns are skipped on every scan in addition to any
// caller-supplied patterns.
var DefaultIgnorePatterns = []string{
	".git/",
	".hg/",
	".svn/",
	"node_modules/",
	"vendor/",
	"dist/",
	"build/",
	"target/",
	"__pycache__/",
	".venv/",
	"venv/",
	"*.min.js",
	"*.bundle.js",
	"*.lock",
	"*.log",
}

// sniffLen bounds how much of a file is examined for binary content.
const sniffLen = 8000

// Report summarizes one repository walk.
type Report struct {
	FilesScanned int
	Warnings     []types.ScanWarning
}

// Scanner yields (path, text, language) tuples for every indexable file
// under a root.
type Scanner struct {
	log *slog.Logger
}

// New creates a Scanner. A nil logger disables logging.
func New(log *slog.Logger) *Scanner {
	if log == nil {
		log = slog.New(slog.DiscardHandler)
	}
	return &Scanner{log: log}
}

// Scan walks root and invokes fn for each source file, lazily: files are
// read one at a time and never accumulated. Ignore patterns support *, **,
// and trailing-slash directory prefixes. Returning an error from fn aborts
// the walk with that error.
func (s *Scanner) Scan(ctx context.Context, root string, ignore []string, fn func(types.SourceFile) error) (*Report, error) {
	info, err := os.Stat(root)
	if err != nil {
		return nil, fmt.Errorf("repository root %q is not reachable: %w", root, err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("repository root %q is not a directory", root)
	}

	patterns := make([]string, 0, len(DefaultIgnorePatterns)+len(ignore))
	patterns = append(patterns, DefaultIgnorePatterns...)
	patterns = append(patterns, ignore...)

	report := &Report{}

	walkErr := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			// An unreadable directory is a warning, not a fatal abort.
			report.Warnings = append(report.Warnings, types.ScanWarning{
				Path:   path,
				Reason: err.Error(),
			})
			if d != nil && d.IsDir() {
				return filepath.SkipDir
			}
			return nil
		}

		if err := ctx.Err(); err != nil {
			return err
		}

		rel, err := filepath.Rel(root, path)
		if err != nil {
			return err
		}
		rel = filepath.ToSlash(rel)
		if rel == "." {
			return nil
		}

		if d.IsDir() {
			if strings.HasPrefix(d.Name(), ".") || matchesAny(patterns, rel, true) {
				return filepath.SkipDir
			}
			return nil
		}

		if matchesAny(patterns, rel, false) {
			return nil
		}

		lang, ok := DetectLanguage(rel)
		if !ok {
			return nil
		}

		content, err := os.ReadFile(path)
		if err != nil {
			s.log.Warn("skipping unreadable file", "path", rel, "error", err)
			report.Warnings = append(report.Warnings, types.ScanWarning{
				Path:   rel,
				Reason: err.Error(),
			})
			return nil
		}

		if isBinary(content) || len(bytes.TrimSpace(content)) == 0 {
			return nil
		}

		text := string(content)
		file := types.SourceFile{
			Path:        rel,
			Language:    lang,
			Content:     text,
			ContentHash: types.HashContent(text),
		}

		report.FilesScanned++
		return fn(file)
	})

	if walkErr != nil {
		return report, walkErr
	}
	return report, nil
}

// matchesAny checks a slash-relative path against the ignore patterns.
func matchesAny(patterns []string, rel string, isDir bool) bool {
	base := rel
	if i := strings.LastIndexByte(rel, '/'); i >= 0 {
		base = rel[i+1:]
	}

	for _, pattern := range patterns {
		// Trailing slash means "this directory anywhere in the tree".
		if dir, ok := strings.CutSuffix(pattern, "/"); ok {
			if isDir && (base == dir || rel == dir) {
				return true
			}
			for part := range strings.SplitSeq(rel, "/") {
				if part == dir {
					return true
				}
			}
			continue
		}

		if ok, _ := doublestar.Match(pattern, rel); ok {
			return true
		}
		if ok, _ := doublestar.Match(pattern, base); ok {
			return true
		}
	}
	return false
}

// isBinary reports whether content looks like a binary file, using the
// classic null-byte sniff over the leading bytes.
func isBinary(content []byte) bool {
	n := min(len(content), sniffLen)
	return bytes.IndexByte(content[:n], 0) >= 0
}

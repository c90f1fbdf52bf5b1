// Package patch validates model-proposed unified diffs. A diff that
// parses cleanly ships as FINAL; anything malformed is demoted to DRAFT
// rather than discarded, since a broken diff can still be useful prose.
package patch

import (
	"regexp"
	"strings"

	"github.com/codenav/codenav/pkg/types"
)

var hunkHeaderPattern = regexp.MustCompile(`^@@ -(\d+)(,(\d+))? \+(\d+)(,(\d+))? @@`)

// Classify wraps a diff in a ProposedPatch with the right status. Empty
// input yields nil, matching the wire contract's nullable field.
func Classify(diff string) *types.ProposedPatch {
	if strings.TrimSpace(diff) == "" {
		return nil
	}
	status := types.PatchDraft
	if Valid(diff) {
		status = types.PatchFinal
	}
	return &types.ProposedPatch{Status: status, Diff: diff}
}

// Valid reports whether diff is a well-formed unified diff: at least one
// file header pair (--- / +++) followed by at least one hunk, with every
// hunk body line carrying a valid prefix.
func Valid(diff string) bool {
	lines := strings.Split(strings.TrimRight(diff, "\n"), "\n")

	sawFileHeader := false
	sawHunk := false
	inHunk := false

	for i := 0; i < len(lines); i++ {
		line := lines[i]
		switch {
		case strings.HasPrefix(line, "--- "):
			if i+1 >= len(lines) || !strings.HasPrefix(lines[i+1], "+++ ") {
				return false
			}
			sawFileHeader = true
			inHunk = false
			i++ // consume the +++ line
		case strings.HasPrefix(line, "@@"):
			if !sawFileHeader || !hunkHeaderPattern.MatchString(line) {
				return false
			}
			sawHunk = true
			inHunk = true
		case inHunk:
			if strings.HasPrefix(line, "diff ") {
				// Next file section begins.
				inHunk = false
				continue
			}
			if !validHunkLine(line) {
				return false
			}
		default:
			// Preamble before headers (diff --git, index lines) is fine.
		}
	}

	return sawFileHeader && sawHunk
}

func validHunkLine(line string) bool {
	if line == "" {
		// Some generators emit empty lines for blank context.
		return true
	}
	switch line[0] {
	case ' ', '+', '-', '\\':
		return true
	default:
		return false
	}
}

package chunker

import (
	"regexp"

	"github.com/codenav/codenav/pkg/types"
)

// boundary marks a detected top-level definition start.
type boundary struct {
	line int // 0-based index into the file's lines
	kind types.ChunkKind
}

// boundaryRule pairs a line-anchored pattern with the chunk kind it opens.
// These are deliberately lightweight heuristics, not parsers: they only need
// to find plausible top-level split points, and the window fallback covers
// everything they miss.
type boundaryRule struct {
	pattern *regexp.Regexp
	kind    types.ChunkKind
}

var languageRules = map[types.Language][]boundaryRule{
	types.LangGo: {
		{regexp.MustCompile(`^func\s`), types.KindFunction},
		{regexp.MustCompile(`^type\s`), types.KindClass},
		{regexp.MustCompile(`^(var|const)\s*\(`), types.KindBlock},
	},
	types.LangPython: {
		{regexp.MustCompile(`^(async\s+)?def\s`), types.KindFunction},
		{regexp.MustCompile(`^class\s`), types.KindClass},
		{regexp.MustCompile(`^if\s+__name__\s*==`), types.KindBlock},
	},
	types.LangJavaScript: {
		{regexp.MustCompile(`^(export\s+)?(default\s+)?(async\s+)?function[\s*]`), types.KindFunction},
		{regexp.MustCompile(`^(export\s+)?(default\s+)?class\s`), types.KindClass},
		{regexp.MustCompile(`^(export\s+)?(const|let|var)\s+\w+\s*=`), types.KindBlock},
	},
	types.LangTypeScript: {
		{regexp.MustCompile(`^(export\s+)?(default\s+)?(async\s+)?function[\s*]`), types.KindFunction},
		{regexp.MustCompile(`^(export\s+)?(default\s+)?(abstract\s+)?class\s`), types.KindClass},
		{regexp.MustCompile(`^(export\s+)?(interface|type|enum)\s`), types.KindClass},
		{regexp.MustCompile(`^(export\s+)?(const|let|var)\s+\w+\s*=`), types.KindBlock},
	},
	types.LangJava: {
		{regexp.MustCompile(`^(public|private|protected)?\s*(static\s+)?(abstract\s+|final\s+)?(class|interface|enum|record)\s`), types.KindClass},
	},
	types.LangRust: {
		{regexp.MustCompile(`^(pub(\([^)]*\))?\s+)?(async\s+)?fn\s`), types.KindFunction},
		{regexp.MustCompile(`^(pub(\([^)]*\))?\s+)?(struct|enum|trait|union)\s`), types.KindClass},
		{regexp.MustCompile(`^impl\b`), types.KindClass},
		{regexp.MustCompile(`^(pub(\([^)]*\))?\s+)?mod\s`), types.KindBlock},
	},
	types.LangC: {
		{regexp.MustCompile(`^\w[\w\s*]*\s\**\w+\s*\([^;]*$`), types.KindFunction},
		{regexp.MustCompile(`^(typedef\s+)?(struct|enum|union)\s`), types.KindClass},
	},
	types.LangCPP: {
		{regexp.MustCompile(`^\w[\w\s:<>,*&]*\s\**\w+\s*\([^;]*$`), types.KindFunction},
		{regexp.MustCompile(`^(template\s*<|class\s|struct\s|namespace\s)`), types.KindClass},
	},
	types.LangRuby: {
		{regexp.MustCompile(`^def\s`), types.KindFunction},
		{regexp.MustCompile(`^(class|module)\s`), types.KindClass},
	},
	types.LangPHP: {
		{regexp.MustCompile(`^(abstract\s+|final\s+)?function\s`), types.KindFunction},
		{regexp.MustCompile(`^(abstract\s+|final\s+)?(class|interface|trait)\s`), types.KindClass},
	},
}

// HasBoundaryRules reports whether boundary-aligned chunking is attempted
// for a language. Config, markup, and plain text fall straight through to
// the sliding window.
func HasBoundaryRules(lang types.Language) bool {
	_, ok := languageRules[lang]
	return ok
}

// detectBoundaries scans lines for top-level definition starts, in order.
func detectBoundaries(lang types.Language, lines []string) []boundary {
	rules, ok := languageRules[lang]
	if !ok {
		return nil
	}

	var found []boundary
	for i, line := range lines {
		for _, rule := range rules {
			if rule.pattern.MatchString(line) {
				found = append(found, boundary{line: i, kind: rule.kind})
				break
			}
		}
	}
	return found
}

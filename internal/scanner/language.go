package scanner

import (
	"path/filepath"
	"strings"

	"github.com/codenav/codenav/pkg/types"
)

// extLanguages maps file extensions to the language tag stored with each
// chunk. Extensions absent from the map are not indexed.
var extLanguages = map[string]types.Language{
	".go":    types.LangGo,
	".py":    types.LangPython,
	".js":    types.LangJavaScript,
	".jsx":   types.LangJavaScript,
	".mjs":   types.LangJavaScript,
	".ts":    types.LangTypeScript,
	".tsx":   types.LangTypeScript,
	".java":  types.LangJava,
	".rs":    types.LangRust,
	".c":     types.LangC,
	".h":     types.LangC,
	".cpp":   types.LangCPP,
	".cc":    types.LangCPP,
	".cxx":   types.LangCPP,
	".hpp":   types.LangCPP,
	".rb":    types.LangRuby,
	".php":   types.LangPHP,
	".sh":    types.LangShell,
	".bash":  types.LangShell,
	".zsh":   types.LangShell,
	".sql":   types.LangSQL,
	".html":  types.LangHTML,
	".htm":   types.LangHTML,
	".css":   types.LangCSS,
	".scss":  types.LangCSS,
	".less":  types.LangCSS,
	".md":    types.LangMarkdown,
	".json":  types.LangJSON,
	".yaml":  types.LangYAML,
	".yml":   types.LangYAML,
	".xml":   types.LangXML,
	".txt":   types.LangText,
	".rst":   types.LangText,
	".toml":  types.LangText,
	".proto": types.LangText,
}

// nameLanguages maps well-known extensionless or manifest file names that
// carry no useful extension but are worth indexing.
var nameLanguages = map[string]types.Language{
	"go.mod":     types.LangText,
	"Makefile":   types.LangText,
	"makefile":   types.LangText,
	"Dockerfile": types.LangText,
	"Gemfile":    types.LangRuby,
	"Rakefile":   types.LangRuby,
}

// DetectLanguage returns the language for a path and whether the file is
// one the scanner indexes at all.
func DetectLanguage(path string) (types.Language, bool) {
	if lang, ok := nameLanguages[filepath.Base(path)]; ok {
		return lang, true
	}
	ext := strings.ToLower(filepath.Ext(path))
	lang, ok := extLanguages[ext]
	return lang, ok
}

package types

import (
	"crypto/sha256"
	"encoding/hex"
)

// Language identifies the programming or markup language of a source file.
type Language string

const (
	LangGo         Language = "go"
	LangPython     Language = "python"
	LangJavaScript Language = "javascript"
	LangTypeScript Language = "typescript"
	LangJava       Language = "java"
	LangRust       Language = "rust"
	LangC          Language = "c"
	LangCPP        Language = "cpp"
	LangRuby       Language = "ruby"
	LangPHP        Language = "php"
	LangShell      Language = "shell"
	LangSQL        Language = "sql"
	LangHTML       Language = "html"
	LangCSS        Language = "css"
	LangMarkdown   Language = "markdown"
	LangJSON       Language = "json"
	LangYAML       Language = "yaml"
	LangXML        Language = "xml"
	LangText       Language = "text"
)

// SourceFile is a scanned repository file. Never mutated after the scanner
// yields it; the content hash drives change detection across indexing runs.
type SourceFile struct {
	// Path is relative to the repository root, slash-separated.
	Path     string
	Language Language
	Content  string
	// ContentHash is the hex SHA-256 of Content.
	ContentHash string
}

// HashContent computes the content digest used for change detection.
func HashContent(content string) string {
	h := sha256.Sum256([]byte(content))
	return hex.EncodeToString(h[:])
}

// ScanWarning records a file the scanner had to skip without aborting the
// walk.
type ScanWarning struct {
	Path   string
	Reason string
}

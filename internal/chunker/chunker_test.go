package chunker

import (
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/codenav/codenav/pkg/types"
)

func sourceFile(path string, lang types.Language, content string) types.SourceFile {
	return types.SourceFile{
		Path:        path,
		Language:    lang,
		Content:     content,
		ContentHash: types.HashContent(content),
	}
}

func mustChunk(t *testing.T, c *Chunker, file types.SourceFile) []types.Chunk {
	t.Helper()
	chunks, err := c.Chunk(file)
	require.NoError(t, err)
	return chunks
}

func TestNew_Validation(t *testing.T) {
	_, err := New(0, 0)
	assert.Error(t, err)

	_, err = New(100, 100)
	assert.Error(t, err)

	_, err = New(100, -1)
	assert.Error(t, err)

	c, err := New(100, 20)
	require.NoError(t, err)
	assert.NotNil(t, c)
}

func TestChunk_EmptyFile(t *testing.T) {
	c, _ := New(512, 64)

	chunks, err := c.Chunk(sourceFile("empty.go", types.LangGo, ""))
	require.NoError(t, err)
	assert.Empty(t, chunks)

	chunks, err = c.Chunk(sourceFile("blank.go", types.LangGo, "\n\n\n"))
	require.NoError(t, err)
	assert.Empty(t, chunks)
}

func TestChunk_GoFunctions(t *testing.T) {
	content := `package auth

import "errors"

// Login checks the password against the stored hash.
func Login(user, password string) error {
	if password == "" {
		return errors.New("empty password")
	}
	return nil
}

func Logout(user string) {
	sessions.Delete(user)
}

type Session struct {
	User string
}
`
	c, _ := New(512, 64)
	chunks := mustChunk(t, c, sourceFile("auth.go", types.LangGo, content))

	require.GreaterOrEqual(t, len(chunks), 3)

	var kinds []types.ChunkKind
	for _, ch := range chunks {
		kinds = append(kinds, ch.Kind)
	}
	assert.Contains(t, kinds, types.KindFunction)
	assert.Contains(t, kinds, types.KindClass)

	// The Login function lands in a single function-aligned chunk.
	var login *types.Chunk
	for i := range chunks {
		if strings.Contains(chunks[i].Text, "func Login") {
			login = &chunks[i]
			break
		}
	}
	require.NotNil(t, login)
	assert.Equal(t, types.KindFunction, login.Kind)
	assert.Contains(t, login.Text, `errors.New("empty password")`)
}

func TestChunk_PythonBoundaries(t *testing.T) {
	content := `import os

class Config:
    def __init__(self):
        self.debug = False

def load_config(path):
    return Config()
`
	c, _ := New(512, 64)
	chunks := mustChunk(t, c, sourceFile("config.py", types.LangPython, content))

	var classChunk, funcChunk *types.Chunk
	for i := range chunks {
		switch {
		case strings.Contains(chunks[i].Text, "class Config"):
			classChunk = &chunks[i]
		case strings.Contains(chunks[i].Text, "def load_config"):
			funcChunk = &chunks[i]
		}
	}
	require.NotNil(t, classChunk)
	require.NotNil(t, funcChunk)
	assert.Equal(t, types.KindClass, classChunk.Kind)
	assert.Equal(t, types.KindFunction, funcChunk.Kind)
	// The indented method stays inside its class chunk.
	assert.Contains(t, classChunk.Text, "__init__")
}

func TestChunk_WindowFallback(t *testing.T) {
	var sb strings.Builder
	for i := range 200 {
		fmt.Fprintf(&sb, "key_%03d: value number %d\n", i, i)
	}

	c, _ := New(400, 80)
	chunks := mustChunk(t, c, sourceFile("config.yaml", types.LangYAML, sb.String()))

	require.Greater(t, len(chunks), 1)
	for _, ch := range chunks {
		assert.Equal(t, types.KindWindow, ch.Kind)
		assert.LessOrEqual(t, len(ch.Text), 400+80) // one long line of slack
	}
}

func TestChunk_OrderingAndCoverage(t *testing.T) {
	var sb strings.Builder
	for i := range 50 {
		fmt.Fprintf(&sb, "func F%d() int {\n\treturn %d\n}\n\n", i, i)
	}
	file := sourceFile("many.go", types.LangGo, sb.String())

	c, _ := New(256, 32)
	chunks := mustChunk(t, c, file)
	require.NotEmpty(t, chunks)

	lines := strings.Split(file.Content, "\n")
	for i, ch := range chunks {
		// Ordered by start line.
		if i > 0 {
			assert.GreaterOrEqual(t, ch.StartLine, chunks[i-1].StartLine)
		}
		// Text is the exact substring between the line bounds.
		want := strings.Join(lines[ch.StartLine-1:ch.EndLine], "\n")
		assert.Equal(t, want, ch.Text)
	}
}

func TestChunk_OversizedDefinitionIsWindowed(t *testing.T) {
	var body strings.Builder
	body.WriteString("func Huge() {\n")
	for i := range 100 {
		fmt.Fprintf(&body, "\tstep_%d := compute(%d)\n", i, i)
	}
	body.WriteString("}\n")

	c, _ := New(300, 50)
	chunks := mustChunk(t, c, sourceFile("huge.go", types.LangGo, body.String()))

	require.Greater(t, len(chunks), 1)
	// Consecutive windows share bounded context: each next window starts at
	// or before the previous end plus one.
	for i := 1; i < len(chunks); i++ {
		assert.LessOrEqual(t, chunks[i].StartLine, chunks[i-1].EndLine+1)
		assert.Greater(t, chunks[i].EndLine, chunks[i-1].EndLine)
	}
}

func TestChunk_DeterministicIDs(t *testing.T) {
	content := "func A() {}\n\nfunc B() {}\n"
	file := sourceFile("ab.go", types.LangGo, content)

	c, _ := New(512, 64)
	first := mustChunk(t, c, file)
	second := mustChunk(t, c, file)

	require.Equal(t, len(first), len(second))
	for i := range first {
		assert.Equal(t, first[i].ID, second[i].ID)
	}

	// Changed content yields different IDs even for identical line ranges.
	changed := sourceFile("ab.go", types.LangGo, "func A() {}\n\nfunc C() {}\n")
	third := mustChunk(t, c, changed)
	require.Equal(t, len(first), len(third))
	assert.NotEqual(t, first[0].ID, third[0].ID)
}

func TestChunk_SmallFileSingleChunk(t *testing.T) {
	c, _ := New(512, 64)

	chunks := mustChunk(t, c, sourceFile("tiny.txt", types.LangText, "just one line\n"))
	require.Len(t, chunks, 1)
	assert.Equal(t, types.KindWindow, chunks[0].Kind)
	assert.Equal(t, 1, chunks[0].StartLine)
	assert.Equal(t, 1, chunks[0].EndLine)
}

func TestEstimateTokens(t *testing.T) {
	assert.Zero(t, EstimateTokens(""))

	short := EstimateTokens("func main() {}")
	long := EstimateTokens(strings.Repeat("func main() {}\n", 50))
	assert.Positive(t, short)
	assert.Greater(t, long, short)
}

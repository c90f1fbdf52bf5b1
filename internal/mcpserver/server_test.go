package mcpserver

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/codenav/codenav/internal/chunker"
	"github.com/codenav/codenav/internal/embedder"
	"github.com/codenav/codenav/internal/index"
	"github.com/codenav/codenav/internal/searcher"
	"github.com/codenav/codenav/internal/storage"
)

func newTestServer(t *testing.T) *Server {
	t.Helper()
	store, err := storage.New(filepath.Join(t.TempDir(), "index.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })

	embed := embedder.NewLocal(nil)
	chunk, err := chunker.New(512, 64)
	require.NoError(t, err)

	return newServer(store, index.New(store, embed, chunk, nil), searcher.New(store, embed), nil)
}

func writeRepo(t *testing.T, files map[string]string) string {
	t.Helper()
	root := t.TempDir()
	for name, body := range files {
		path := filepath.Join(root, name)
		require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
		require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	}
	return root
}

func callTool(args map[string]interface{}) mcp.CallToolRequest {
	req := mcp.CallToolRequest{}
	req.Params.Arguments = args
	return req
}

func resultJSON(t *testing.T, result *mcp.CallToolResult) map[string]interface{} {
	t.Helper()
	require.NotEmpty(t, result.Content)
	text, ok := result.Content[0].(mcp.TextContent)
	require.True(t, ok, "expected text content")

	var payload map[string]interface{}
	require.NoError(t, json.Unmarshal([]byte(text.Text), &payload))
	return payload
}

func TestHandleIndexRepository(t *testing.T) {
	s := newTestServer(t)
	root := writeRepo(t, map[string]string{
		"auth.go": "package auth\n\nfunc Login(user, password string) bool {\n\treturn checkPassword(user, password)\n}\n",
		"util.py": "def helper():\n    return 42\n",
	})

	result, err := s.handleIndexRepository(context.Background(), callTool(map[string]interface{}{
		"path": root,
	}))
	require.NoError(t, err)

	payload := resultJSON(t, result)
	assert.Equal(t, true, payload["indexed"])
	assert.Equal(t, float64(2), payload["files_indexed"])
	assert.Greater(t, payload["chunks_created"], float64(0))
}

func TestHandleIndexRepository_PathValidation(t *testing.T) {
	s := newTestServer(t)

	_, err := s.handleIndexRepository(context.Background(), callTool(map[string]interface{}{}))
	var mcpErr *MCPError
	require.ErrorAs(t, err, &mcpErr)
	assert.Equal(t, ErrorCodeInvalidParams, mcpErr.Code)

	_, err = s.handleIndexRepository(context.Background(), callTool(map[string]interface{}{
		"path": "relative/path",
	}))
	require.ErrorAs(t, err, &mcpErr)
	assert.Equal(t, ErrorCodeInvalidParams, mcpErr.Code)

	_, err = s.handleIndexRepository(context.Background(), callTool(map[string]interface{}{
		"path": filepath.Join(t.TempDir(), "missing"),
	}))
	require.ErrorAs(t, err, &mcpErr)
	assert.Equal(t, ErrorCodeInvalidParams, mcpErr.Code)
}

func TestHandleSearchCode(t *testing.T) {
	s := newTestServer(t)
	root := writeRepo(t, map[string]string{
		"auth.go": "package auth\n\nfunc Login(user, password string) bool {\n\treturn checkPassword(user, password)\n}\n",
	})

	_, err := s.handleIndexRepository(context.Background(), callTool(map[string]interface{}{
		"path": root,
	}))
	require.NoError(t, err)

	result, err := s.handleSearchCode(context.Background(), callTool(map[string]interface{}{
		"path":  root,
		"query": "func Login(user, password string) bool {\n\treturn checkPassword(user, password)\n}",
	}))
	require.NoError(t, err)

	payload := resultJSON(t, result)
	assert.Equal(t, "vector", payload["mode"])
	results, ok := payload["results"].([]interface{})
	require.True(t, ok)
	require.NotEmpty(t, results)
	first := results[0].(map[string]interface{})
	assert.Equal(t, "auth.go", first["path"])
}

func TestHandleSearchCode_Validation(t *testing.T) {
	s := newTestServer(t)
	root := writeRepo(t, map[string]string{"a.go": "package a\n"})

	var mcpErr *MCPError

	_, err := s.handleSearchCode(context.Background(), callTool(map[string]interface{}{
		"path": root,
	}))
	require.ErrorAs(t, err, &mcpErr)
	assert.Equal(t, ErrorCodeEmptyQuery, mcpErr.Code)

	_, err = s.handleSearchCode(context.Background(), callTool(map[string]interface{}{
		"path":  root,
		"query": "anything",
		"limit": float64(999),
	}))
	require.ErrorAs(t, err, &mcpErr)
	assert.Equal(t, ErrorCodeInvalidParams, mcpErr.Code)

	_, err = s.handleSearchCode(context.Background(), callTool(map[string]interface{}{
		"path":        root,
		"query":       "anything",
		"search_mode": "hybrid",
	}))
	require.ErrorAs(t, err, &mcpErr)
	assert.Equal(t, ErrorCodeInvalidParams, mcpErr.Code)
}

func TestHandleSearchCode_NotIndexed(t *testing.T) {
	s := newTestServer(t)
	root := writeRepo(t, map[string]string{"a.go": "package a\n"})

	_, err := s.handleSearchCode(context.Background(), callTool(map[string]interface{}{
		"path":  root,
		"query": "anything",
	}))
	var mcpErr *MCPError
	require.ErrorAs(t, err, &mcpErr)
	assert.Equal(t, ErrorCodeNotIndexed, mcpErr.Code)
}

func TestHandleGetStatus(t *testing.T) {
	s := newTestServer(t)
	root := writeRepo(t, map[string]string{
		"main.go": "package main\n\nfunc main() {}\n",
	})

	// Unindexed repositories report indexed=false without an error.
	result, err := s.handleGetStatus(context.Background(), callTool(map[string]interface{}{
		"path": root,
	}))
	require.NoError(t, err)
	payload := resultJSON(t, result)
	assert.Equal(t, false, payload["indexed"])

	_, err = s.handleIndexRepository(context.Background(), callTool(map[string]interface{}{
		"path": root,
	}))
	require.NoError(t, err)

	result, err = s.handleGetStatus(context.Background(), callTool(map[string]interface{}{
		"path": root,
	}))
	require.NoError(t, err)
	payload = resultJSON(t, result)
	assert.Equal(t, true, payload["indexed"])

	stats, ok := payload["statistics"].(map[string]interface{})
	require.True(t, ok)
	assert.Equal(t, float64(1), stats["files_count"])
}

func TestParseFilters(t *testing.T) {
	assert.Nil(t, parseFilters(map[string]interface{}{}))
	assert.Nil(t, parseFilters(map[string]interface{}{
		"filters": map[string]interface{}{},
	}))

	filters := parseFilters(map[string]interface{}{
		"filters": map[string]interface{}{
			"language":  "go",
			"kind":      "function",
			"min_score": 0.5,
		},
	})
	require.NotNil(t, filters)
	assert.Equal(t, "go", string(filters.Language))
	assert.Equal(t, "function", string(filters.Kind))
	assert.Equal(t, 0.5, filters.MinScore)
}

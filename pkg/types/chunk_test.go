package types

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestChunkID_Deterministic(t *testing.T) {
	hash := HashContent("package main\n")

	a := ChunkID("main.go", 1, 10, hash)
	b := ChunkID("main.go", 1, 10, hash)
	assert.Equal(t, a, b)

	// Any component change produces a different ID
	assert.NotEqual(t, a, ChunkID("other.go", 1, 10, hash))
	assert.NotEqual(t, a, ChunkID("main.go", 2, 10, hash))
	assert.NotEqual(t, a, ChunkID("main.go", 1, 11, hash))
	assert.NotEqual(t, a, ChunkID("main.go", 1, 10, HashContent("changed")))
}

func TestChunkValidate(t *testing.T) {
	valid := Chunk{
		ID:        ChunkID("a.go", 1, 3, HashContent("x")),
		Path:      "a.go",
		Language:  LangGo,
		StartLine: 1,
		EndLine:   3,
		Kind:      KindFunction,
		Text:      "func a() {}",
	}
	require.NoError(t, valid.Validate())

	cases := []struct {
		name   string
		mutate func(*Chunk)
		want   error
	}{
		{"missing id", func(c *Chunk) { c.ID = "" }, ErrInvalidChunkID},
		{"missing path", func(c *Chunk) { c.Path = "" }, ErrMissingPath},
		{"zero start", func(c *Chunk) { c.StartLine = 0 }, ErrInvalidLineRange},
		{"inverted range", func(c *Chunk) { c.StartLine = 5 }, ErrInvalidLineRange},
		{"empty text", func(c *Chunk) { c.Text = "" }, ErrEmptyContent},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			c := valid
			tc.mutate(&c)
			assert.ErrorIs(t, c.Validate(), tc.want)
		})
	}

	t.Run("bad kind", func(t *testing.T) {
		c := valid
		c.Kind = "paragraph"
		assert.Error(t, c.Validate())
	})
}

func TestAgentResponse_WireShape(t *testing.T) {
	resp := AgentResponse{
		Answer:           "use the Store interface",
		Citations:        []Citation{{Path: "store.go", StartLine: 10, EndLine: 20}},
		RetrievedSources: []RetrievedSource{{Title: "docs", URL: "https://example.com"}},
		Tests: TestPlan{
			Suggested: true,
			Commands:  []string{"go test ./..."},
			NewTests:  []NewTest{{Path: "store_test.go", Purpose: "covers eviction"}},
		},
		Risk: Risk{Level: RiskLow, Concerns: []string{}, RollBack: "git revert"},
	}

	data, err := json.Marshal(resp)
	require.NoError(t, err)

	var decoded map[string]any
	require.NoError(t, json.Unmarshal(data, &decoded))

	for _, key := range []string{"answer", "citations", "retrieved_sources", "proposed_patch", "tests", "risk"} {
		assert.Contains(t, decoded, key)
	}
	// proposed_patch is nullable, not omitted
	assert.Nil(t, decoded["proposed_patch"])

	cite := decoded["citations"].([]any)[0].(map[string]any)
	assert.Equal(t, float64(10), cite["start_line"])
	assert.Equal(t, float64(20), cite["end_line"])

	risk := decoded["risk"].(map[string]any)
	assert.Equal(t, "low", risk["level"])
	assert.Contains(t, risk, "roll_back")
}

func TestChunkCitation(t *testing.T) {
	c := Chunk{Path: "auth.py", StartLine: 10, EndLine: 45}
	assert.Equal(t, Citation{Path: "auth.py", StartLine: 10, EndLine: 45}, c.Citation())
}

package logger

import (
	"bytes"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNew_PrettyDefault(t *testing.T) {
	var buf bytes.Buffer
	l := New(WithWriter(&buf))

	l.Info("hello", "key", "value")

	out := buf.String()
	assert.Contains(t, out, "hello")
	assert.Contains(t, out, "key")
	assert.Contains(t, out, "value")
}

func TestNew_DebugLevel(t *testing.T) {
	var buf bytes.Buffer

	l := New(WithWriter(&buf))
	l.Debug("hidden")
	assert.Empty(t, buf.String())

	l = New(WithWriter(&buf), WithDebug(true))
	l.Debug("visible")
	assert.Contains(t, buf.String(), "visible")
}

func TestNew_JSON(t *testing.T) {
	var buf bytes.Buffer
	l := New(WithWriter(&buf), WithJSON(true))

	l.Info("indexed", "files", 3)

	var record map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &record))
	assert.Equal(t, "indexed", record["msg"])
	assert.Equal(t, float64(3), record["files"])
}

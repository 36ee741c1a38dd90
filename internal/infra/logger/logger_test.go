package logger

import (
	"bytes"
	"encoding/json"
	"path/filepath"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseLevel(t *testing.T) {
	tests := []struct {
		input    string
		expected zerolog.Level
	}{
		{"debug", zerolog.DebugLevel},
		{"DEBUG", zerolog.DebugLevel},
		{"", zerolog.InfoLevel},
		{"warning", zerolog.WarnLevel},
		{"error", zerolog.ErrorLevel},
		{"verbose", zerolog.InfoLevel},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			assert.Equal(t, tt.expected, parseLevel(tt.input))
		})
	}
}

func TestNew_JSONOutput(t *testing.T) {
	var buf bytes.Buffer
	l := New(&buf, false, zerolog.InfoLevel)

	l.Debug().Msg("hidden")
	l.Info().Str("key", "shuffle/focus").Msg("persisted")

	var entry map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	assert.Equal(t, "persisted", entry["message"])
	assert.Equal(t, "shuffle/focus", entry["key"])
	assert.NotContains(t, entry, "caller")
}

func TestShortCaller(t *testing.T) {
	file := filepath.Join("root", "module", "internal", "domain", "shuffle", "iterator.go")
	assert.Equal(t, filepath.Join("shuffle", "iterator.go")+":42", shortCaller(0, file, 42))
	assert.Equal(t, "main.go:7", shortCaller(0, "main.go", 7))
}

func TestOpenOutput_File(t *testing.T) {
	path := filepath.Join(t.TempDir(), "server.log")

	w, console, err := openOutput(path)
	require.NoError(t, err)
	assert.False(t, console)
	assert.NotNil(t, w)

	_, _, err = openOutput(filepath.Join(t.TempDir(), "missing", "dir", "server.log"))
	assert.Error(t, err)
}

package logger

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseLevel(t *testing.T) {
	assert.Equal(t, slog.LevelDebug, ParseLevel("DEBUG"))
	assert.Equal(t, slog.LevelWarn, ParseLevel("warning"))
	assert.Equal(t, slog.LevelError, ParseLevel("error"))
	assert.Equal(t, slog.LevelInfo, ParseLevel(""))
	assert.Equal(t, slog.LevelInfo, ParseLevel("verbose"))
}

func TestNewWithWriter(t *testing.T) {
	t.Run("json by default", func(t *testing.T) {
		var buf bytes.Buffer
		NewWithWriter(&buf, "info", "").Info("appended", "case_id", 7)

		var line map[string]any
		require.NoError(t, json.Unmarshal(buf.Bytes(), &line))
		assert.Equal(t, "appended", line["msg"])
		assert.EqualValues(t, 7, line["case_id"])
	})

	t.Run("level filters", func(t *testing.T) {
		var buf bytes.Buffer
		NewWithWriter(&buf, "warn", "text").Info("hidden")
		assert.Empty(t, buf.String())
	})

	t.Run("text format", func(t *testing.T) {
		var buf bytes.Buffer
		NewWithWriter(&buf, "debug", "text").Debug("shown", "k", "v")
		assert.Contains(t, buf.String(), "msg=shown")
		assert.Contains(t, buf.String(), "k=v")
	})
}

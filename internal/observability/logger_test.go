package observability

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseLevel(t *testing.T) {
	assert.Equal(t, slog.LevelDebug, parseLevel("DEBUG"))
	assert.Equal(t, slog.LevelWarn, parseLevel("warning"))
	assert.Equal(t, slog.LevelError, parseLevel("error"))
	assert.Equal(t, slog.LevelInfo, parseLevel("bogus"))
}

func TestNewHandler_JSON(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(newHandler(&buf, "info", "json"))

	logger.Debug("hidden")
	logger.Info("photo saved", "request_id", "r1")

	var entry map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	assert.Equal(t, "photo saved", entry["msg"])
	assert.Equal(t, "r1", entry["request_id"])
}

func TestNewHandler_Text(t *testing.T) {
	var buf bytes.Buffer
	h := newHandler(&buf, "warn", "text")

	assert.False(t, h.Enabled(context.Background(), slog.LevelInfo))
	slog.New(h).Warn("analysis unavailable")
	assert.Contains(t, buf.String(), "msg=\"analysis unavailable\"")
}

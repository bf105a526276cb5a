package logging_test

import (
	"bytes"
	"errors"
	"log/slog"
	"testing"

	"github.com/goccy/go-json"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aretw0/topograph/internal/logging"
)

func TestParseLevel(t *testing.T) {
	tests := map[string]slog.Level{
		"debug":   slog.LevelDebug,
		"INFO":    slog.LevelInfo,
		"Warning": slog.LevelWarn,
		" error ": slog.LevelError,
		"verbose": slog.LevelInfo,
		"":        slog.LevelInfo,
	}
	for in, want := range tests {
		assert.Equal(t, want, logging.ParseLevel(in), in)
	}
}

func TestNewWriter_JSON(t *testing.T) {
	var buf bytes.Buffer
	logger := logging.NewWriter(&buf, slog.LevelInfo, "json")

	logger.Debug("hidden")
	logger.Warn("Commit failed", "error", errors.New("boom"))

	var entry map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	assert.Equal(t, "Commit failed", entry["msg"])
	assert.Equal(t, "boom", entry["err"])
	assert.NotContains(t, entry, "error")
}

func TestNewWriter_Text(t *testing.T) {
	var buf bytes.Buffer
	logging.NewWriter(&buf, slog.LevelDebug, "").Debug("Lock acquired", "channel_id", "ch-1")
	assert.Contains(t, buf.String(), "channel_id=ch-1")
}

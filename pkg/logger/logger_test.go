package logger

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestNewWithWriterJSON(t *testing.T) {
	var buf bytes.Buffer
	log := NewWithWriter(&buf, "debug", "")
	log.Debug("category load start", "category", "vegetables")

	var entry map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	require.Equal(t, "agri-market", entry["service"])
	require.Equal(t, "vegetables", entry["category"])
}

func TestNewWithWriterTextRespectsLevel(t *testing.T) {
	var buf bytes.Buffer
	log := NewWithWriter(&buf, "warn", "text")
	log.Info("hidden")
	require.Zero(t, buf.Len())
	log.Warn("shown")
	require.Contains(t, buf.String(), "msg=shown")
}

func TestParseLevel(t *testing.T) {
	require.Equal(t, slog.LevelError, parseLevel(" ERROR "))
	require.Equal(t, slog.LevelInfo, parseLevel("verbose"))
}

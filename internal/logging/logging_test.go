package logging_test

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/torosent/flightload/internal/logging"
)

func TestNewJSONFormat(t *testing.T) {
	var buf bytes.Buffer
	logger, err := logging.New("info", "json", &buf)
	require.NoError(t, err)

	logger.Info("progress", zap.Int64("total", 50), zap.Duration("latency", 12*time.Millisecond))
	require.NoError(t, logger.Sync())

	var entry map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	assert.Equal(t, "progress", entry["msg"])
	assert.Equal(t, "info", entry["level"])
	assert.EqualValues(t, 50, entry["total"])
	assert.Equal(t, "12ms", entry["latency"])
	assert.Contains(t, entry, "ts")
}

func TestNewConsoleFormat(t *testing.T) {
	var buf bytes.Buffer
	logger, err := logging.New("debug", "console", &buf)
	require.NoError(t, err)

	logger.Warn("server error", zap.Int("status", 503))
	out := buf.String()
	assert.Contains(t, out, "WARN")
	assert.Contains(t, out, "server error")
	assert.Contains(t, out, `"status": 503`)
}

func TestNewFiltersBelowLevel(t *testing.T) {
	var buf bytes.Buffer
	logger, err := logging.New("warn", "json", &buf)
	require.NoError(t, err)

	logger.Info("hidden")
	logger.Debug("hidden")
	logger.Error("shown")
	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	require.Len(t, lines, 1)
	assert.Contains(t, lines[0], "shown")
}

func TestNewRejectsBadInput(t *testing.T) {
	_, err := logging.New("loud", "json", nil)
	assert.Error(t, err)

	_, err = logging.New("info", "xml", nil)
	assert.Error(t, err)
}

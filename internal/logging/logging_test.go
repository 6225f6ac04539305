package logging

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSetOutput(t *testing.T) {
	var buf bytes.Buffer
	SetOutput(&buf)
	defer SetOutput(os.Stdout)

	Error("something failed", "cam_id", "supertubos-main")

	var entry map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	assert.Equal(t, "ERROR", entry["level"])
	assert.Equal(t, "something failed", entry["msg"])
	assert.Equal(t, "supertubos-main", entry["cam_id"])
}

func TestNewFileLogger(t *testing.T) {
	logPath := filepath.Join(t.TempDir(), "logs", "service.log")

	logger, closeFn, err := NewFileLogger(logPath, "forecast", slog.LevelInfo)
	require.NoError(t, err)

	logger.Info("refresh complete", "spot_id", "supertubos")
	require.NoError(t, closeFn())

	data, err := os.ReadFile(logPath)
	require.NoError(t, err)

	var entry map[string]any
	require.NoError(t, json.Unmarshal(data, &entry))
	assert.Equal(t, "forecast", entry["service"])
	assert.Equal(t, "refresh complete", entry["msg"])
	assert.Equal(t, "supertubos", entry["spot_id"])
}

func TestNewFileLoggerFiltersBelowLevel(t *testing.T) {
	logPath := filepath.Join(t.TempDir(), "service.log")

	logger, closeFn, err := NewFileLogger(logPath, "clip", slog.LevelInfo)
	require.NoError(t, err)

	logger.Debug("not recorded")
	require.NoError(t, closeFn())

	data, _ := os.ReadFile(logPath)
	assert.Empty(t, data)
}

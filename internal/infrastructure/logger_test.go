package infrastructure

import (
	"bytes"
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jihwanw/big-dragons-never-die/internal/config"
)

func decodeLines(t *testing.T, raw []byte) []map[string]any {
	t.Helper()
	var out []map[string]any
	for _, line := range strings.Split(strings.TrimSpace(string(raw)), "\n") {
		if line == "" {
			continue
		}
		var entry map[string]any
		require.NoError(t, json.Unmarshal([]byte(line), &entry), line)
		out = append(out, entry)
	}
	return out
}

func TestNewLogger_Both(t *testing.T) {
	logFile := filepath.Join(t.TempDir(), "logs", "megacap.log")
	var stdout bytes.Buffer

	logger, err := NewLogger(config.LoggingConfig{
		Level:    "info",
		Format:   "json",
		Output:   "both",
		FilePath: logFile,
	}, &stdout)
	require.NoError(t, err)

	logger.Info("stage-1 complete", "estimated", 198)
	logger.Debug("hidden")
	require.NoError(t, logger.Close())
	require.NoError(t, logger.Close())

	content, err := os.ReadFile(logFile)
	require.NoError(t, err)

	for _, raw := range [][]byte{stdout.Bytes(), content} {
		entries := decodeLines(t, raw)
		require.Len(t, entries, 1)
		assert.Equal(t, "stage-1 complete", entries[0]["msg"])
		assert.Equal(t, "INFO", entries[0]["level"])
		assert.EqualValues(t, 198, entries[0]["estimated"])
	}
}

func TestNewLogger_RunID(t *testing.T) {
	var stdout bytes.Buffer
	logger, err := NewLogger(config.LoggingConfig{Level: "debug", Format: "json", Output: "console"}, &stdout)
	require.NoError(t, err)

	ctx := WithRunID(context.Background(), "run-42")
	logger.With("methodology", "SMB_50").DebugContext(ctx, "cross-section skipped")
	logger.Info("no context")

	entries := decodeLines(t, stdout.Bytes())
	require.Len(t, entries, 2)
	assert.Equal(t, "run-42", entries[0]["run_id"])
	assert.Equal(t, "SMB_50", entries[0]["methodology"])
	assert.NotContains(t, entries[1], "run_id")
}

func TestNewLogger_Text(t *testing.T) {
	var stdout bytes.Buffer
	logger, err := NewLogger(config.LoggingConfig{Level: "warn", Format: "text", Output: "console"}, &stdout)
	require.NoError(t, err)

	logger.Info("dropped")
	logger.Warn("kept", "reason", "numerical_instability")

	out := stdout.String()
	assert.NotContains(t, out, "dropped")
	assert.Contains(t, out, "msg=kept")
	assert.Contains(t, out, "reason=numerical_instability")
}

func TestNewLogger_FileError(t *testing.T) {
	blocker := filepath.Join(t.TempDir(), "file")
	require.NoError(t, os.WriteFile(blocker, nil, 0644))

	_, err := NewLogger(config.LoggingConfig{Output: "file", FilePath: filepath.Join(blocker, "x.log")}, nil)
	assert.Error(t, err)

	_, err = NewLogger(config.LoggingConfig{Output: "file"}, nil)
	assert.Error(t, err)
}

func TestParseLogLevel(t *testing.T) {
	tests := map[string]string{
		"debug":   "DEBUG",
		"INFO":    "INFO",
		"warn":    "WARN",
		"warning": "WARN",
		"error":   "ERROR",
		"bogus":   "INFO",
	}
	for in, want := range tests {
		assert.Equal(t, want, parseLogLevel(in).String(), in)
	}
}

func TestRunIDContext(t *testing.T) {
	assert.Empty(t, GetRunID(context.Background()))

	ctx := EnsureRunID(context.Background())
	id := GetRunID(ctx)
	assert.Len(t, id, 36)
	assert.Equal(t, ctx, EnsureRunID(ctx))
	assert.NotEqual(t, id, GenerateRunID())
}

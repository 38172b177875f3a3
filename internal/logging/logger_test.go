package logging

import (
	"bytes"
	"encoding/json"
	"errors"
	"strings"
	"testing"

	"github.com/fadedpez/ebucks/internal/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func decodeLines(t *testing.T, buf *bytes.Buffer) []map[string]interface{} {
	t.Helper()
	var lines []map[string]interface{}
	for _, line := range strings.Split(strings.TrimSpace(buf.String()), "\n") {
		if line == "" {
			continue
		}
		var entry map[string]interface{}
		require.NoError(t, json.Unmarshal([]byte(line), &entry))
		lines = append(lines, entry)
	}
	return lines
}

func TestLevelFiltering(t *testing.T) {
	var buf bytes.Buffer
	logger := NewLoggerWithWriter(&buf, WARN)

	logger.Debug("debug %d", 1)
	logger.Info("info %d", 2)
	logger.Warn("warn %d", 3)
	logger.Error("error %d", 4)

	lines := decodeLines(t, &buf)
	require.Len(t, lines, 2)
	assert.Equal(t, "warn 3", lines[0]["message"])
	assert.Equal(t, "error 4", lines[1]["message"])
	assert.Equal(t, "ebucks", lines[0]["service"])
}

func TestWithComponentAndUser(t *testing.T) {
	var buf bytes.Buffer
	logger := NewLoggerWithWriter(&buf, DEBUG).WithComponent("wallet").WithUser("u-1")

	logger.Info("awarded %d", 10)

	lines := decodeLines(t, &buf)
	require.Len(t, lines, 1)
	assert.Equal(t, "wallet", lines[0]["component"])
	assert.Equal(t, "u-1", lines[0]["user_id"])
}

func TestLogError(t *testing.T) {
	var buf bytes.Buffer
	logger := NewLoggerWithWriter(&buf, INFO)

	logger.LogError(types.WrapError(types.ErrStorageError, "failed to save", errors.New("disk full")))
	logger.LogError(errors.New("plain"))
	logger.LogError(nil)

	lines := decodeLines(t, &buf)
	require.Len(t, lines, 2)
	assert.Equal(t, "STORAGE_ERROR", lines[0]["code"])
	assert.Equal(t, "disk full", lines[0]["cause"])
	assert.Equal(t, "plain", lines[1]["error"])
}

func TestParseLevel(t *testing.T) {
	assert.Equal(t, DEBUG, ParseLevel("DEBUG"))
	assert.Equal(t, WARN, ParseLevel("warning"))
	assert.Equal(t, ERROR, ParseLevel("error"))
	assert.Equal(t, INFO, ParseLevel("nonsense"))
}

package log

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"

	config "github.com/mwantia/imgtag/internal/config/server"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testLogConfig(level string, jsonOutput bool) config.LogServerConfig {
	cfg := config.GetServerDefault().Log
	cfg.Level = level
	cfg.JSON = jsonOutput
	cfg.NoColor = true
	return cfg
}

func TestLoggerService_FiltersByLevel(t *testing.T) {
	var buf bytes.Buffer
	logger := NewLoggerServiceTo("imgtag", testLogConfig("warn", false), &buf)

	logger.Debug("hidden %d", 1)
	logger.Info("hidden %d", 2)
	logger.Warn("shown %d", 3)
	logger.Error("shown %d", 4)

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	require.Len(t, lines, 2)
	assert.Contains(t, lines[0], "WARN  [imgtag] shown 3")
	assert.Contains(t, lines[1], "ERROR [imgtag] shown 4")
}

func TestLoggerService_JSONAndNamed(t *testing.T) {
	var buf bytes.Buffer
	logger := NewLoggerServiceTo("imgtag", testLogConfig("debug", true), &buf)

	logger.Named("store").Info("opened %s", "library.db")

	var entry logEntry
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	assert.Equal(t, "INFO", entry.Level)
	assert.Equal(t, "imgtag/store", entry.Service)
	assert.Equal(t, "opened library.db", entry.Message)
}

func TestParseLevel(t *testing.T) {
	for input, expected := range map[string]LogLevel{
		"debug":   Debug,
		"INFO":    Info,
		"Warning": Warn,
		"error":   Error,
		"fatal":   Fatal,
	} {
		level, err := ParseLevel(input)
		require.NoError(t, err, input)
		assert.Equal(t, expected, level, input)
	}

	_, err := ParseLevel("verbose")
	assert.Error(t, err)
	assert.Panics(t, func() { Parse("verbose") })
	assert.Equal(t, "UNKNOWN", LogLevel(42).String())
}

package logging

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"rcrx/internal/config"
)

func TestNew_JSONToStdout(t *testing.T) {
	var buf bytes.Buffer
	log, err := newLogger(config.LoggingConfig{Level: "info", Format: "json"}, &buf)
	require.NoError(t, err)

	log.Debug("hidden")
	log.Info("frame", zap.String("device", "/dev/serial0"))
	require.NoError(t, log.Sync())

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	require.Len(t, lines, 1)

	var rec map[string]any
	require.NoError(t, json.Unmarshal([]byte(lines[0]), &rec))
	assert.Equal(t, "info", rec["level"])
	assert.Equal(t, "frame", rec["msg"])
	assert.Equal(t, "/dev/serial0", rec["device"])
	assert.Contains(t, rec, "ts")
}

func TestNew_LevelAliases(t *testing.T) {
	var buf bytes.Buffer
	log, err := newLogger(config.LoggingConfig{Level: "WARNING", Format: "console"}, &buf)
	require.NoError(t, err)
	log.Info("info-line")
	log.Warn("warn-line")
	assert.NotContains(t, buf.String(), "info-line")
	assert.Contains(t, buf.String(), "warn-line")
}

func TestNew_BadLevel(t *testing.T) {
	_, err := newLogger(config.LoggingConfig{Level: "loud"}, &bytes.Buffer{})
	assert.Error(t, err)
}

func TestNew_WritesRotatedFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "rcrx.log")
	log, err := newLogger(config.LoggingConfig{
		Level:  "info",
		Format: "json",
		File:   config.LogFileConfig{Filename: path, MaxSizeMB: 1},
	}, &bytes.Buffer{})
	require.NoError(t, err)

	log.Info("to file")
	require.NoError(t, log.Sync())

	b, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(b), `"msg":"to file"`)
}

func TestLimited_SuppressesAndReports(t *testing.T) {
	var buf bytes.Buffer
	log, err := newLogger(config.LoggingConfig{Level: "info", Format: "json"}, &buf)
	require.NoError(t, err)

	// A near-zero rate leaves only the initial burst token.
	l := NewLimited(log, 1e-9, 1)
	for i := 0; i < 5; i++ {
		l.Warn("crc error")
	}
	assert.Equal(t, uint64(4), l.Suppressed())
	assert.Equal(t, 1, strings.Count(buf.String(), "crc error"))
}

func TestNew_TeesToExtraWriters(t *testing.T) {
	var stdout, extra bytes.Buffer
	log, err := newLogger(config.LoggingConfig{Level: "info", Format: "json"}, &stdout, &extra)
	require.NoError(t, err)
	log.Info("both")
	assert.Contains(t, stdout.String(), `"msg":"both"`)
	assert.Contains(t, extra.String(), `"msg":"both"`)
}

package logging

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	rerrors "parcel-rate/internal/errors"
)

func readLog(t *testing.T, l *zap.Logger, path string) string {
	t.Helper()
	_ = l.Sync()
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	return string(data)
}

func TestNewWritesJSONToFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "engine.log")

	logger, err := New(Config{Level: "debug", Format: "json", Output: path})
	require.NoError(t, err)

	logger.Info("zone fallback", zap.String("origin", "752"), zap.Int("zone", 8))

	got := readLog(t, logger, path)
	assert.Contains(t, got, `"msg":"zone fallback"`)
	assert.Contains(t, got, `"zone":8`)
	assert.Contains(t, got, `"timestamp":`)
}

func TestNewLevels(t *testing.T) {
	tests := []struct {
		level   string
		dropped string
		kept    string
	}{
		{"warn", "info line", "warn line"},
		{"error", "warn line", "error line"},
		{"loud", "info line", "warn line"},
	}

	for _, tt := range tests {
		t.Run(tt.level, func(t *testing.T) {
			path := filepath.Join(t.TempDir(), "engine.log")
			logger, err := New(Config{Level: tt.level, Format: "json", Output: path})
			require.NoError(t, err)

			logger.Info("info line")
			logger.Warn("warn line")
			logger.Error("error line")

			got := readLog(t, logger, path)
			assert.NotContains(t, got, tt.dropped)
			assert.Contains(t, got, tt.kept)
		})
	}
}

func TestConsoleFileIsUncolored(t *testing.T) {
	path := filepath.Join(t.TempDir(), "engine.log")
	logger, err := New(Config{Level: "info", Format: "console", Output: path})
	require.NoError(t, err)

	logger.Info("priced batch")

	got := readLog(t, logger, path)
	assert.Contains(t, got, "INFO")
	assert.NotContains(t, got, "\x1b[")
}

func TestNewBadOutput(t *testing.T) {
	_, err := New(Config{Output: filepath.Join(t.TempDir(), "missing", "dir", "x.log")})
	require.Error(t, err)
	assert.True(t, rerrors.IsType(err, rerrors.TypeConfig))
}

func TestInitializeReplacesGlobal(t *testing.T) {
	prev := L()
	defer global.Store(prev)

	path := filepath.Join(t.TempDir(), "global.log")
	require.NoError(t, Initialize(Config{Level: "debug", Format: "json", Output: path}))

	Named("zone").Debug("resolved")

	got := readLog(t, L(), path)
	assert.Contains(t, got, `"logger":"zone"`)
	assert.Contains(t, got, `"msg":"resolved"`)
}

func TestOrDefault(t *testing.T) {
	nop := zap.NewNop()
	assert.Same(t, nop, OrDefault(nop, "engine"))
	assert.NotNil(t, OrDefault(nil, "engine"))
}

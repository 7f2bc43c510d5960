package main

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/BaSui01/companion/config"
	"github.com/BaSui01/companion/testutil"
)

func TestParseLevel(t *testing.T) {
	tests := []struct {
		in   string
		want zapcore.Level
	}{
		{"debug", zapcore.DebugLevel},
		{"info", zapcore.InfoLevel},
		{"warn", zapcore.WarnLevel},
		{"error", zapcore.ErrorLevel},
		{"verbose", zapcore.InfoLevel},
		{"", zapcore.InfoLevel},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, parseLevel(tt.in), tt.in)
	}
}

func TestResolveFormat(t *testing.T) {
	assert.Equal(t, "json", resolveFormat("json", true))
	assert.Equal(t, "console", resolveFormat("console", false))
	assert.Equal(t, "console", resolveFormat("auto", true))
	assert.Equal(t, "json", resolveFormat("auto", false))
	assert.Equal(t, "json", resolveFormat("", false))
}

func TestInitLogger_WritesToFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "companion.log")
	logger, level := initLogger(config.LogConfig{
		Level:       "warn",
		Format:      "json",
		OutputPaths: []string{path},
	})
	assert.Equal(t, zapcore.WarnLevel, level.Level())

	logger.Info("hidden")
	logger.Warn("shown")
	_ = logger.Sync()

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.NotContains(t, string(data), "hidden")
	assert.Contains(t, string(data), `"msg":"shown"`)
}

func TestWatchLogLevel_AppliesReload(t *testing.T) {
	path := testutil.WriteFile(t, "companion.yaml", "log:\n  level: info\n")

	loader := config.NewLoader().WithConfigPath(path)
	w, err := config.NewWatcher(loader, config.WithPollInterval(10*time.Millisecond))
	require.NoError(t, err)

	level := zap.NewAtomicLevelAt(zapcore.InfoLevel)
	watchLogLevel(w, level, zap.NewNop())
	require.NoError(t, w.Start(t.Context()))
	t.Cleanup(w.Stop)

	testutil.RewriteFile(t, path, "log:\n  level: debug\n")

	assert.Eventually(t, func() bool {
		return level.Level() == zapcore.DebugLevel
	}, 2*time.Second, 10*time.Millisecond)
}

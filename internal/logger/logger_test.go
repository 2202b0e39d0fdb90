package logger

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zapcore"

	"stock_analysis/internal/config"
)

func TestNew_WritesFile(t *testing.T) {
	file := filepath.Join(t.TempDir(), "logs", "stock.log")

	log, err := New(config.LogConfig{Level: "debug", File: file, MaxSize: 1})
	require.NoError(t, err)

	log.Info("写入测试")
	_ = log.Sync()

	content, err := os.ReadFile(file)
	require.NoError(t, err)
	assert.Contains(t, string(content), "写入测试")
}

func TestParseLevel(t *testing.T) {
	assert.Equal(t, zapcore.DebugLevel, parseLevel("debug"))
	assert.Equal(t, zapcore.WarnLevel, parseLevel("warn"))
	assert.Equal(t, zapcore.ErrorLevel, parseLevel("error"))
	assert.Equal(t, zapcore.InfoLevel, parseLevel("verbose"))
}

package logger

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zapcore"
)

func TestNewLoggerInvalidLevelFallsBack(t *testing.T) {
	log, err := NewLogger(Config{Level: "verbose"})
	require.NoError(t, err)
	require.NotNil(t, log)

	// info 级别生效，debug 被过滤
	assert.False(t, log.Core().Enabled(zapcore.DebugLevel))
	assert.True(t, log.Core().Enabled(zapcore.InfoLevel))
}

func TestNewLoggerWritesToFile(t *testing.T) {
	logFile := filepath.Join(t.TempDir(), "logs", "app.log")

	log, err := NewLogger(Config{
		Level:   "info",
		LogFile: logFile,
		MaxSize: 1,
	})
	require.NoError(t, err)

	log.Info("日志文件写入测试")
	_ = log.Sync()

	content, err := os.ReadFile(logFile)
	require.NoError(t, err)
	assert.Contains(t, string(content), "日志文件写入测试")
}

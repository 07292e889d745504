package util

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zapcore"
)

func TestLoggerWritesLeveledEntries(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "log")

	var logger RatesLogger
	require.NoError(t, logger.Init(LoggerOptions{Dir: dir, FileName: "test.log", Level: "info"}))

	assert.NoError(t, logger.LogEvent(LOG_LEVEL_INFO, "collector started. interval -", "1m0s"))
	assert.NoError(t, logger.LogEvent(LOG_LEVEL_ERROR, "Failed to record tick"))
	assert.NoError(t, logger.LogEvent(LOG_LEVEL_DEBUG, "filtered out"))
	assert.NoError(t, logger.LogEvent("no level given"))
	logger.DeInit()

	data, err := os.ReadFile(filepath.Join(dir, "test.log"))
	require.NoError(t, err)
	out := string(data)

	assert.Contains(t, out, "INFO\tcollector started. interval - 1m0s")
	assert.Contains(t, out, "ERROR\tFailed to record tick")
	assert.Contains(t, out, "INFO\tno level given")
	assert.NotContains(t, out, "filtered out")
	assert.Equal(t, 3, strings.Count(out, "\n"))
}

func TestLoggerNotInitialized(t *testing.T) {
	var logger RatesLogger
	assert.ErrorIs(t, logger.LogEvent(LOG_LEVEL_INFO, "dropped"), ErrLogNotInitialized)

	var nilLogger *RatesLogger
	assert.ErrorIs(t, nilLogger.LogEvent("dropped"), ErrLogNotInitialized)
	nilLogger.DeInit()
}

func TestLoggerAfterDeInit(t *testing.T) {
	var logger RatesLogger
	require.NoError(t, logger.Init(LoggerOptions{Dir: t.TempDir(), FileName: "test.log"}))
	logger.DeInit()
	logger.DeInit()

	assert.ErrorIs(t, logger.LogEvent("late"), ErrLogNotInitialized)
}

func TestLoggerRewrite(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "test.log")
	require.NoError(t, os.WriteFile(path, []byte("stale line\n"), 0644))

	var logger RatesLogger
	require.NoError(t, logger.Init(LoggerOptions{Dir: dir, FileName: "test.log", Rewrite: true}))
	logger.LogEvent("fresh line")
	logger.DeInit()

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.NotContains(t, string(data), "stale line")
	assert.Contains(t, string(data), "fresh line")
}

func TestParseLevel(t *testing.T) {
	tests := []struct {
		name    string
		want    zapcore.Level
		wantErr bool
	}{
		{"", zapcore.InfoLevel, false},
		{"INFO", zapcore.InfoLevel, false},
		{"warning", zapcore.WarnLevel, false},
		{" debug ", zapcore.DebugLevel, false},
		{"error", zapcore.ErrorLevel, false},
		{"verbose", zapcore.InfoLevel, true},
	}

	for _, tc := range tests {
		got, err := ParseLevel(tc.name)
		if tc.wantErr {
			assert.Error(t, err, tc.name)
			continue
		}
		assert.NoError(t, err, tc.name)
		assert.Equal(t, tc.want, got, tc.name)
	}
}

func TestInitRejectsUnknownLevel(t *testing.T) {
	var logger RatesLogger
	assert.Error(t, logger.Init(LoggerOptions{Dir: t.TempDir(), FileName: "test.log", Level: "loud"}))
	assert.ErrorIs(t, logger.LogEvent("x"), ErrLogNotInitialized)
}

func TestEnsureFolder(t *testing.T) {
	path := filepath.Join(t.TempDir(), "a", "b")
	require.NoError(t, EnsureFolder(path))
	info, err := os.Stat(path)
	require.NoError(t, err)
	assert.True(t, info.IsDir())

	assert.NoError(t, EnsureFolder(path))
	assert.NoError(t, EnsureFolder(""))
}

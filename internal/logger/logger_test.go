package logger

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestConfigure_FileOutput(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "logs", "monitor.log")

	l := New()
	require.NoError(t, l.Configure(Options{Level: "debug", Format: "json", Output: path}))

	l.WithComponent("dispatch").WithFields(Fields{"identifier": "abc"}).Info("forwarded")

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.True(t, strings.Contains(string(data), `"component":"dispatch"`))
	assert.True(t, strings.Contains(string(data), `"message":"forwarded"`))
}

func TestConfigure_InvalidValues(t *testing.T) {
	l := New()
	assert.Error(t, l.Configure(Options{Level: "loud"}))
	assert.Error(t, l.Configure(Options{Format: "xml"}))
}

func TestDailyFile(t *testing.T) {
	got := DailyFile("logs", "monitor", time.Date(2025, 1, 5, 0, 0, 0, 0, time.UTC))
	assert.Equal(t, filepath.Join("logs", "monitor_20250105.log"), got)
}

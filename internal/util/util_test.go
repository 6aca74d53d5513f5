package util

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadConfigDefaults(t *testing.T) {
	dir := t.TempDir()
	t.Chdir(dir)
	t.Setenv("HOME", dir)

	cfg, err := LoadConfig(viper.New(), "")
	require.NoError(t, err)
	assert.Equal(t, 2*time.Second, cfg.Timeout)
	assert.Equal(t, 100, cfg.Concurrency)
	assert.Equal(t, 4, cfg.PingCount)
	assert.Equal(t, 30, cfg.MaxHops)
	assert.Equal(t, 32, cfg.TTLDelta)
	assert.True(t, cfg.SaveHistory)
	assert.Equal(t, filepath.Join(cfg.DataDir, "netrecon.db"), cfg.DBPath())
}

func TestLoadConfigFileAndEnv(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "netrecon.yaml")
	content := "timeout: 750ms\nconcurrency: 16\ndns_server: 9.9.9.9:53\nsave_history: false\n"
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	t.Setenv("NETRECON_PING_COUNT", "7")

	cfg, err := LoadConfig(viper.New(), path)
	require.NoError(t, err)
	assert.Equal(t, 750*time.Millisecond, cfg.Timeout)
	assert.Equal(t, 16, cfg.Concurrency)
	assert.Equal(t, "9.9.9.9:53", cfg.DNSServer)
	assert.False(t, cfg.SaveHistory)
	assert.Equal(t, 7, cfg.PingCount)
}

func TestLoadConfigRejectsInvalid(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "bad.yaml")
	require.NoError(t, os.WriteFile(path, []byte("concurrency: 0\nmax_hops: 300\n"), 0o644))

	_, err := LoadConfig(viper.New(), path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "concurrency")
	assert.Contains(t, err.Error(), "max_hops")

	_, err = LoadConfig(viper.New(), filepath.Join(dir, "missing.yaml"))
	assert.Error(t, err)
}

func TestParseLevel(t *testing.T) {
	assert.Equal(t, LevelDebug, ParseLevel("DEBUG"))
	assert.Equal(t, LevelWarn, ParseLevel("warning"))
	assert.Equal(t, LevelError, ParseLevel("error"))
	assert.Equal(t, LevelInfo, ParseLevel("bogus"))
}

func TestLoggerLevelsAndFields(t *testing.T) {
	l := NewLogger(LevelInfo, "")
	var buf bytes.Buffer
	l.SetOutput(&buf)

	l.Debug("hidden %d", 1)
	l.WithFields(map[string]interface{}{"target": "10.0.0.1"}).Info("probe %s", "sent")

	out := buf.String()
	assert.NotContains(t, out, "hidden")
	assert.Contains(t, out, "probe sent")
	assert.Contains(t, out, "target=10.0.0.1")
}

func TestLoggerWritesFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "logs", "netrecon.log")
	l := NewLogger(LevelDebug, path)
	l.SetOutput(&bytes.Buffer{})
	l.Warn("disk %s", "check")
	require.NoError(t, l.Close())

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), "disk check")
}

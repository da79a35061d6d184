package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

// chdir mirrors testing.T.Chdir (Go 1.24+) for older toolchains.
func chdir(t *testing.T, dir string) {
	t.Helper()
	prev, err := os.Getwd()
	require.NoError(t, err)
	require.NoError(t, os.Chdir(dir))
	t.Cleanup(func() { _ = os.Chdir(prev) })
}

func TestLoadDefaults(t *testing.T) {
	chdir(t, t.TempDir())

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, 8000, cfg.Server.Port)
	assert.Equal(t, 8001, cfg.Hub.Port)
	assert.Equal(t, "@every 30s", cfg.Hub.KeepAliveSpec)
	assert.Equal(t, 10*time.Second, cfg.Hub.WriteTimeout)
	assert.Equal(t, "purchase_events", cfg.Redis.Channel)
	assert.Equal(t, "ws://localhost:8001/ws", cfg.Notify.URL)
	assert.Equal(t, 24*time.Hour, cfg.Auth.TokenExpire)
	assert.Equal(t, "info", cfg.Log.Level)
	assert.Equal(t, int64(512*1024), cfg.Hub.MaxMessageSize)
	assert.Equal(t, int64(64*1024), cfg.Notify.MaxMessageSize)
}

func TestLoadFromFileWithEnvOverride(t *testing.T) {
	dir := t.TempDir()
	path := writeFile(t, dir, "config.yaml", `
hub:
  port: 9001
  keepalive_spec: "@every 10s"
notify:
  url: ws://hub.internal/ws
  role: manager
`)
	t.Setenv("NOTIFY_ROLE", "admin")
	t.Setenv("HUB_WRITE_TIMEOUT", "3s")
	t.Setenv("NOTIFY_MAX_MESSAGE_SIZE", "2048")

	cfg, err := LoadFromFile(path)
	require.NoError(t, err)

	assert.Equal(t, 9001, cfg.Hub.Port)
	assert.Equal(t, "@every 10s", cfg.Hub.KeepAliveSpec)
	assert.Equal(t, 3*time.Second, cfg.Hub.WriteTimeout)
	assert.Equal(t, "ws://hub.internal/ws", cfg.Notify.URL)
	assert.Equal(t, "admin", cfg.Notify.Role)
	assert.Equal(t, int64(2048), cfg.Notify.MaxMessageSize)
	assert.Equal(t, int64(512*1024), cfg.Hub.MaxMessageSize)
}

func TestLoadReadsDotEnv(t *testing.T) {
	dir := t.TempDir()
	chdir(t, dir)
	writeFile(t, dir, ".env", "NOTIFY_TOKEN=from-dotenv\n")
	t.Cleanup(func() { os.Unsetenv("NOTIFY_TOKEN") })

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, "from-dotenv", cfg.Notify.Token)
}

func TestLoadFromMissingFile(t *testing.T) {
	_, err := LoadFromFile(filepath.Join(t.TempDir(), "nope.yaml"))
	assert.Error(t, err)
}

package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadFirstRunWritesDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "etc", "config.yaml")

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, DefaultConfig(), cfg)

	info, err := os.Stat(path)
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0o600), info.Mode().Perm())
}

func TestLoadPartialFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	body := `
listen: ":9090"
log_level: DEBUG
storage:
  backend: redis
  key: my-events
snapshot:
  path: /tmp/calendar.ics
basic_auth:
  username: admin
  password: secret
`
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, ":9090", cfg.Listen)
	assert.Equal(t, "debug", cfg.LogLevel)
	assert.Equal(t, BackendRedis, cfg.Storage.Backend)
	assert.Equal(t, "my-events", cfg.Storage.Key)
	assert.Equal(t, "127.0.0.1:6379", cfg.Storage.RedisAddr)
	assert.Equal(t, "./data/calendar-events.json", cfg.Storage.Path)
	assert.Equal(t, "/tmp/calendar.ics", cfg.Snapshot.Path)
	assert.Equal(t, "*/15 * * * *", cfg.Snapshot.Cron)
	require.NotNil(t, cfg.BasicAuth)
	assert.Equal(t, "admin", cfg.BasicAuth.Username)
}

func TestLoadEnvOverrides(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("listen: \":9090\"\n"), 0o600))

	t.Setenv("EVENTCAL_LISTEN", ":7070")
	t.Setenv("EVENTCAL_STORAGE_PATH", "/var/lib/eventcal/events.json")
	t.Setenv("EVENTCAL_BASIC_AUTH_USERNAME", "admin")
	t.Setenv("EVENTCAL_BASIC_AUTH_PASSWORD", "secret")

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, ":7070", cfg.Listen)
	assert.Equal(t, "/var/lib/eventcal/events.json", cfg.Storage.Path)
	require.NotNil(t, cfg.BasicAuth)
	assert.Equal(t, "admin", cfg.BasicAuth.Username)
	assert.Equal(t, "secret", cfg.BasicAuth.Password)
}

func TestLoadInvalidYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("listen: [unclosed\n"), 0o600))

	_, err := Load(path)
	assert.Error(t, err)
}

func TestLoadEmptyPath(t *testing.T) {
	_, err := Load("")
	assert.Error(t, err)
}

func TestNormalize(t *testing.T) {
	cfg := &Config{
		LogLevel:  "loud",
		Storage:   StorageConfig{Backend: "sqlite"},
		BasicAuth: &BasicAuthConfig{},
	}
	cfg.Normalize()

	assert.Equal(t, "info", cfg.LogLevel)
	assert.Equal(t, BackendFile, cfg.Storage.Backend)
	assert.Equal(t, "calendar-events", cfg.Storage.Key)
	assert.Nil(t, cfg.BasicAuth)
}

func TestSaveRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	cfg := DefaultConfig()
	cfg.Listen = ":1234"
	cfg.BasicAuth = &BasicAuthConfig{Username: "u", Password: "p"}
	require.NoError(t, cfg.Save(path))

	loaded, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, cfg, loaded)
}

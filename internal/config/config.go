package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"
)

// EnvPrefix namespaces environment overrides: storage.path is read from
// EVENTCAL_STORAGE_PATH, listen from EVENTCAL_LISTEN, and so on.
const EnvPrefix = "EVENTCAL"

const (
	BackendFile  = "file"
	BackendRedis = "redis"
)

// StorageConfig selects where the event collection is persisted.
type StorageConfig struct {
	// Backend is "file" (default) or "redis".
	Backend string `yaml:"backend" mapstructure:"backend" json:"backend"`
	// Path is the JSON file used by the file backend.
	Path string `yaml:"path" mapstructure:"path" json:"path"`
	// Key is the blob name used by the redis backend.
	Key string `yaml:"key" mapstructure:"key" json:"key"`

	RedisAddr     string `yaml:"redis_addr" mapstructure:"redis_addr" json:"redis_addr"`
	RedisPassword string `yaml:"redis_password" mapstructure:"redis_password" json:"-"`
	RedisDB       int    `yaml:"redis_db" mapstructure:"redis_db" json:"redis_db"`
}

// SnapshotConfig controls periodic ICS publishing. Empty Path disables it.
type SnapshotConfig struct {
	// Cron is a cron-style schedule string (e.g. "*/15 * * * *").
	Cron string `yaml:"cron" mapstructure:"cron" json:"cron"`
	Path string `yaml:"path" mapstructure:"path" json:"path"`
}

// BasicAuthConfig holds HTTP Basic Auth credentials for the API.
type BasicAuthConfig struct {
	Username string `yaml:"username" mapstructure:"username" json:"username"`
	Password string `yaml:"password" mapstructure:"password" json:"password"`
}

// Config is the top-level application configuration.
type Config struct {
	// Listen is the HTTP listen address for the API.
	Listen string `yaml:"listen" mapstructure:"listen" json:"listen"`

	// LogLevel is one of debug, info, warn, error.
	LogLevel string `yaml:"log_level" mapstructure:"log_level" json:"log_level"`

	Storage  StorageConfig  `yaml:"storage" mapstructure:"storage" json:"storage"`
	Snapshot SnapshotConfig `yaml:"snapshot" mapstructure:"snapshot" json:"snapshot"`

	// FeedCacheDir holds cached bodies of remote ICS feeds imported by URL.
	FeedCacheDir string `yaml:"feed_cache_dir" mapstructure:"feed_cache_dir" json:"feed_cache_dir"`

	// BasicAuth, if non-nil, enables HTTP Basic Authentication on all
	// endpoints except /health.
	BasicAuth *BasicAuthConfig `yaml:"basic_auth,omitempty" mapstructure:"basic_auth" json:"basic_auth,omitempty"`
}

// DefaultConfig returns an in-memory default configuration.
func DefaultConfig() *Config {
	return &Config{
		Listen:   "127.0.0.1:8080",
		LogLevel: "info",
		Storage: StorageConfig{
			Backend:   BackendFile,
			Path:      "./data/calendar-events.json",
			Key:       "calendar-events",
			RedisAddr: "127.0.0.1:6379",
		},
		Snapshot: SnapshotConfig{
			Cron: "*/15 * * * *",
		},
		FeedCacheDir: "./data/feed-cache",
	}
}

// Normalize fills in missing/zero values so partially-filled configs still
// behave.
func (c *Config) Normalize() {
	def := DefaultConfig()
	if c.Listen == "" {
		c.Listen = def.Listen
	}
	switch strings.ToLower(c.LogLevel) {
	case "debug", "info", "warn", "error":
		c.LogLevel = strings.ToLower(c.LogLevel)
	default:
		c.LogLevel = def.LogLevel
	}

	switch c.Storage.Backend {
	case BackendFile, BackendRedis:
	default:
		c.Storage.Backend = BackendFile
	}
	if c.Storage.Path == "" {
		c.Storage.Path = def.Storage.Path
	}
	if c.Storage.Key == "" {
		c.Storage.Key = def.Storage.Key
	}
	if c.Storage.RedisAddr == "" {
		c.Storage.RedisAddr = def.Storage.RedisAddr
	}
	if c.Snapshot.Cron == "" {
		c.Snapshot.Cron = def.Snapshot.Cron
	}
	if c.FeedCacheDir == "" {
		c.FeedCacheDir = def.FeedCacheDir
	}
	if c.BasicAuth != nil && c.BasicAuth.Username == "" && c.BasicAuth.Password == "" {
		c.BasicAuth = nil
	}
}

// Load reads configuration from the YAML file at path, with EVENTCAL_*
// environment variables taking precedence over file values.
//
// Behavior:
//   - If the file does not exist, a default config is written there with
//     0600 perms (first run) and then loaded.
//   - Missing keys fall back to DefaultConfig.
func Load(path string) (*Config, error) {
	if path == "" {
		return nil, errors.New("config path is empty")
	}

	if _, err := os.Stat(path); err != nil {
		if !errors.Is(err, fs.ErrNotExist) {
			return nil, err
		}
		if err := Save(path, DefaultConfig()); err != nil {
			// Even if save fails, the defaults are usable; let the caller decide.
			return DefaultConfig(), err
		}
	}

	v := newViper()
	v.SetConfigFile(path)
	v.SetConfigType("yaml")
	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("read config %s: %w", path, err)
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("decode config %s: %w", path, err)
	}
	cfg.Normalize()
	return &cfg, nil
}

// newViper registers every key with its default so AutomaticEnv can see
// keys absent from the file.
func newViper() *viper.Viper {
	v := viper.New()
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	def := DefaultConfig()
	v.SetDefault("listen", def.Listen)
	v.SetDefault("log_level", def.LogLevel)
	v.SetDefault("storage.backend", def.Storage.Backend)
	v.SetDefault("storage.path", def.Storage.Path)
	v.SetDefault("storage.key", def.Storage.Key)
	v.SetDefault("storage.redis_addr", def.Storage.RedisAddr)
	v.SetDefault("storage.redis_password", "")
	v.SetDefault("storage.redis_db", 0)
	v.SetDefault("snapshot.cron", def.Snapshot.Cron)
	v.SetDefault("snapshot.path", "")
	v.SetDefault("feed_cache_dir", def.FeedCacheDir)
	// Empty credentials are dropped by Normalize; registering the keys is
	// what lets EVENTCAL_BASIC_AUTH_* reach Unmarshal.
	v.SetDefault("basic_auth.username", "")
	v.SetDefault("basic_auth.password", "")
	return v
}

// Save writes the given configuration to the specified path.
//
// Implementation details:
//   - Ensures parent directory exists (0700).
//   - Marshals cfg to YAML.
//   - Writes atomically via a temp file + rename.
//   - Ensures final file permissions are 0600.
func Save(path string, cfg *Config) error {
	if path == "" {
		return errors.New("config path is empty")
	}
	if cfg == nil {
		return errors.New("config is nil")
	}

	cfg.Normalize()

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return err
	}

	data, err := yaml.Marshal(cfg)
	if err != nil {
		return err
	}

	tmp, err := os.CreateTemp(dir, ".eventcal-config-*.tmp")
	if err != nil {
		return err
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName)

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	if err := os.Chmod(tmpName, 0o600); err != nil {
		return err
	}
	return os.Rename(tmpName, path)
}

// Save is a convenience method that delegates to the package-level Save.
func (c *Config) Save(path string) error {
	return Save(path, c)
}

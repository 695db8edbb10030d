// Package config loads the mxcache configuration file.
//
// The file is TOML:
//
//	[store]
//	dir = "~/.cache/mxcache"
//	map_size_mb = 512
//
//	[identity]
//	user_id = "@alice:example.org"
//
//	[log]
//	level = "info"
//	format = "console"
//
// Environment variables MXCACHE_DIR, MXCACHE_USER_ID and MXCACHE_LOG_LEVEL
// override the file.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/BurntSushi/toml"
)

// Config is the top-level configuration.
type Config struct {
	Store    StoreConfig    `toml:"store"`
	Identity IdentityConfig `toml:"identity"`
	Log      LogConfig      `toml:"log"`
}

type StoreConfig struct {
	Dir       string `toml:"dir"`
	MapSizeMB int64  `toml:"map_size_mb"`
}

type IdentityConfig struct {
	UserID string `toml:"user_id"`
}

type LogConfig struct {
	Level  string `toml:"level"`
	Format string `toml:"format"`
}

// DefaultMapSizeMB caps the on-disk store.
const DefaultMapSizeMB = 512

// Default returns the configuration used when no file is given.
func Default() *Config {
	return &Config{
		Store: StoreConfig{
			Dir:       defaultDir(),
			MapSizeMB: DefaultMapSizeMB,
		},
		Log: LogConfig{
			Level:  "info",
			Format: "console",
		},
	}
}

func defaultDir() string {
	if dir, err := os.UserCacheDir(); err == nil {
		return filepath.Join(dir, "mxcache")
	}
	return filepath.Join(os.TempDir(), "mxcache")
}

// Load reads path over the defaults. An empty path yields the defaults.
// Environment overrides are applied and the result validated.
func Load(path string) (*Config, error) {
	cfg := Default()

	if path != "" {
		md, err := toml.DecodeFile(path, cfg)
		if err != nil {
			return nil, fmt.Errorf("load config %s: %w", path, err)
		}
		if undecoded := md.Undecoded(); len(undecoded) > 0 {
			keys := make([]string, len(undecoded))
			for i, k := range undecoded {
				keys[i] = k.String()
			}
			return nil, fmt.Errorf("load config %s: unknown keys: %s", path, strings.Join(keys, ", "))
		}
	}

	cfg.ApplyEnvOverrides()
	cfg.Store.Dir = expandHome(cfg.Store.Dir)

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}
	return cfg, nil
}

// ApplyEnvOverrides applies MXCACHE_* environment variables.
func (c *Config) ApplyEnvOverrides() {
	if v := os.Getenv("MXCACHE_DIR"); v != "" {
		c.Store.Dir = v
	}
	if v := os.Getenv("MXCACHE_USER_ID"); v != "" {
		c.Identity.UserID = v
	}
	if v := os.Getenv("MXCACHE_LOG_LEVEL"); v != "" {
		c.Log.Level = v
	}
}

// Validate checks the fields that do not depend on the command being run.
// The user id is checked by RequireUser since some commands do not need it.
func (c *Config) Validate() error {
	var errs []error
	if c.Store.Dir == "" {
		errs = append(errs, errors.New("store.dir is empty"))
	}
	if c.Store.MapSizeMB <= 0 {
		errs = append(errs, fmt.Errorf("store.map_size_mb must be positive, got %d", c.Store.MapSizeMB))
	}
	switch c.Log.Format {
	case "", "json", "console":
	default:
		errs = append(errs, fmt.Errorf("log.format %q: must be json or console", c.Log.Format))
	}
	return errors.Join(errs...)
}

// RequireUser checks that a Matrix user id is configured.
func (c *Config) RequireUser() error {
	id := c.Identity.UserID
	if id == "" {
		return errors.New("identity.user_id is not set")
	}
	if !strings.HasPrefix(id, "@") || !strings.Contains(id, ":") {
		return fmt.Errorf("identity.user_id %q is not a Matrix user id", id)
	}
	return nil
}

// MapSize returns the store cap in bytes.
func (c *Config) MapSize() int64 {
	return c.Store.MapSizeMB * 1024 * 1024
}

func expandHome(path string) string {
	if path == "~" || strings.HasPrefix(path, "~/") {
		if home, err := os.UserHomeDir(); err == nil {
			return filepath.Join(home, strings.TrimPrefix(path, "~"))
		}
	}
	return path
}

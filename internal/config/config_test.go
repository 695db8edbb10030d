package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "mxcache.toml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, int64(DefaultMapSizeMB), cfg.Store.MapSizeMB)
	assert.NotEmpty(t, cfg.Store.Dir)
	assert.Equal(t, "info", cfg.Log.Level)
}

func TestLoad_File(t *testing.T) {
	path := writeConfig(t, `
[store]
dir = "/var/tmp/mx"
map_size_mb = 64

[identity]
user_id = "@alice:example.org"

[log]
level = "debug"
format = "json"
`)

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "/var/tmp/mx", cfg.Store.Dir)
	assert.Equal(t, int64(64*1024*1024), cfg.MapSize())
	assert.Equal(t, "@alice:example.org", cfg.Identity.UserID)
	assert.Equal(t, "json", cfg.Log.Format)
	assert.NoError(t, cfg.RequireUser())
}

func TestLoad_UnknownKey(t *testing.T) {
	path := writeConfig(t, `
[store]
directory = "/tmp"
`)
	_, err := Load(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "store.directory")
}

func TestLoad_InvalidValues(t *testing.T) {
	path := writeConfig(t, `
[store]
map_size_mb = 0

[log]
format = "xml"
`)
	_, err := Load(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "map_size_mb")
	assert.Contains(t, err.Error(), "log.format")
}

func TestLoad_EnvOverrides(t *testing.T) {
	t.Setenv("MXCACHE_DIR", "/env/dir")
	t.Setenv("MXCACHE_USER_ID", "@bob:example.org")
	t.Setenv("MXCACHE_LOG_LEVEL", "warn")

	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, "/env/dir", cfg.Store.Dir)
	assert.Equal(t, "@bob:example.org", cfg.Identity.UserID)
	assert.Equal(t, "warn", cfg.Log.Level)
}

func TestRequireUser(t *testing.T) {
	cfg := Default()
	assert.Error(t, cfg.RequireUser())

	cfg.Identity.UserID = "alice"
	assert.Error(t, cfg.RequireUser())

	cfg.Identity.UserID = "@alice:example.org"
	assert.NoError(t, cfg.RequireUser())
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "missing.toml"))
	assert.Error(t, err)
}

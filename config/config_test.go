package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSetDefaults(t *testing.T) {
	Reset()
	t.Cleanup(Reset)

	cfg, err := Load()
	require.NoError(t, err)

	assert.NotEmpty(t, cfg.Storage.Dir)
	assert.Positive(t, cfg.Storage.BackupRetention)
	assert.Equal(t, 8189, cfg.Server.Port)
	assert.NotEmpty(t, cfg.Server.AllowedOrigins)
	assert.Equal(t, "info", cfg.Log.Level)
}

func TestLoadFromFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.toml")
	content := `
[storage]
dir = "/tmp/loom-test"
backup_retention = 5

[server]
port = 9000

[log]
json = true
level = "debug"
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))

	cfg, err := LoadFromFile(path)
	require.NoError(t, err)

	assert.Equal(t, "/tmp/loom-test", cfg.Storage.Dir)
	assert.Equal(t, 5, cfg.Storage.BackupRetention)
	assert.Equal(t, 9000, cfg.Server.Port)
	assert.True(t, cfg.Log.JSON)
	assert.Equal(t, "debug", cfg.Log.Level)
	// Defaults fill in what the file omits
	assert.NotEmpty(t, cfg.Server.AllowedOrigins)
}

func TestLoadFromFile_Missing(t *testing.T) {
	_, err := LoadFromFile(filepath.Join(t.TempDir(), "nope.toml"))
	assert.Error(t, err)
}

func TestLoadCaches(t *testing.T) {
	Reset()
	t.Cleanup(Reset)

	first, err := Load()
	require.NoError(t, err)
	second, err := Load()
	require.NoError(t, err)
	assert.Same(t, first, second)
}

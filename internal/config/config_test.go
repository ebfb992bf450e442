package config

import (
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	t.Chdir(t.TempDir())
	t.Setenv("PORT", "")
	t.Setenv("DATABASE_URL", "")
	cfg, err := Load(New())
	require.NoError(t, err)

	assert.Equal(t, "8080", cfg.Port)
	assert.Equal(t, StorageInMemory, cfg.Storage)
	assert.Equal(t, 30, cfg.RatingsPerMinute)
	level, err := cfg.SlogLevel()
	require.NoError(t, err)
	assert.Equal(t, slog.LevelInfo, level)
}

func TestLoad_EnvironmentOverrides(t *testing.T) {
	t.Chdir(t.TempDir())
	t.Setenv("PORT", "9090")
	t.Setenv("DATABASE_URL", "postgres://localhost/fiction")
	t.Setenv("FICTION_RATINGS_PER_MINUTE", "5")
	t.Setenv("FICTION_LOG_LEVEL", "debug")

	cfg, err := Load(New())
	require.NoError(t, err)
	assert.Equal(t, "9090", cfg.Port)
	assert.Equal(t, StoragePostgres, cfg.Storage, "database_url selects postgres")
	assert.Equal(t, 5, cfg.RatingsPerMinute)
	assert.Equal(t, "debug", cfg.LogLevel)
}

func TestLoad_ConfigFile(t *testing.T) {
	dir := t.TempDir()
	t.Chdir(dir)
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.yaml"), []byte("storage: sqlite\nsqlite_path: test.db\nlog_format: json\n"), 0o600))

	cfg, err := Load(New())
	require.NoError(t, err)
	assert.Equal(t, StorageSQLite, cfg.Storage)
	assert.Equal(t, "test.db", cfg.SQLitePath)
	assert.Equal(t, "json", cfg.LogFormat)
}

func TestValidate(t *testing.T) {
	base := Config{Storage: StorageInMemory, LogLevel: "info", LogFormat: "text"}

	cases := map[string]func(c *Config){
		"unknown storage":      func(c *Config) { c.Storage = "mongo" },
		"postgres without dsn": func(c *Config) { c.Storage = StoragePostgres },
		"negative limit":       func(c *Config) { c.RatingsPerMinute = -1 },
		"bad level":            func(c *Config) { c.LogLevel = "loud" },
		"bad format":           func(c *Config) { c.LogFormat = "xml" },
	}
	require.NoError(t, base.Validate())
	for name, mutate := range cases {
		t.Run(name, func(t *testing.T) {
			cfg := base
			mutate(&cfg)
			assert.Error(t, cfg.Validate())
		})
	}
}

package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()

	assert.Equal(t, 8192, cfg.Context.MaxTokens)
	assert.Equal(t, 1000, cfg.Context.SystemReserve)
	assert.Equal(t, "hash", cfg.Embedding.Provider)
	assert.Equal(t, "word", cfg.Context.Encoder)
}

func TestLoadMissingFileReturnsDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	require.NoError(t, err)
	assert.Equal(t, "sigil", cfg.Name)
}

func TestLoadOverridesDefaults(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	body := `
store:
  database_path: /tmp/custom.db
context:
  max_tokens: 4096
logging:
  debug_mode: true
  level: debug
`
	require.NoError(t, os.WriteFile(path, []byte(body), 0644))

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "/tmp/custom.db", cfg.Store.DatabasePath)
	assert.Equal(t, 4096, cfg.Context.MaxTokens)
	assert.True(t, cfg.Logging.DebugMode)
	// Untouched sections keep their defaults.
	assert.Equal(t, 1000, cfg.Context.SystemReserve)
}

func TestEnvOverrides(t *testing.T) {
	t.Setenv("SIGIL_DB_PATH", "/tmp/env.db")
	t.Setenv("SIGIL_MODEL_PROVIDER", "genai")

	cfg, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	require.NoError(t, err)

	assert.Equal(t, "/tmp/env.db", cfg.Store.DatabasePath)
	assert.Equal(t, "genai", cfg.Model.Provider)
}

func TestSaveAndReload(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "config.yaml")

	cfg := DefaultConfig()
	cfg.Agency.SessionID = "trial"
	require.NoError(t, cfg.Save(path))

	loaded, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "trial", loaded.Agency.SessionID)
}

package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaults(t *testing.T) {
	cfg := Defaults()
	assert.Equal(t, "./data", cfg.DataDir)
	assert.Equal(t, "info", cfg.LogLevel)
	assert.False(t, cfg.LogJSON)
	assert.Empty(t, cfg.DebugAddr)
}

func TestLoadFileEmptyPathReturnsBase(t *testing.T) {
	base := Defaults()
	cfg, err := LoadFile(base, "")
	require.NoError(t, err)
	assert.Equal(t, base, cfg)
}

func TestLoadFileOverlaysOntoBase(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("data_dir: /var/lib/keyring\nlog_json: true\n"), 0o644))

	cfg, err := LoadFile(Defaults(), path)
	require.NoError(t, err)
	assert.Equal(t, "/var/lib/keyring", cfg.DataDir)
	assert.True(t, cfg.LogJSON)
	assert.Equal(t, "info", cfg.LogLevel) // untouched field keeps base value
}

func TestLoadFileMissingPathErrors(t *testing.T) {
	_, err := LoadFile(Defaults(), filepath.Join(t.TempDir(), "nope.yaml"))
	assert.Error(t, err)
}

func TestLoadFileInvalidYAMLErrors(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "bad.yaml")
	require.NoError(t, os.WriteFile(path, []byte("not: [valid"), 0o644))

	_, err := LoadFile(Defaults(), path)
	assert.Error(t, err)
}

func TestApplyEnvOverridesMatchingFields(t *testing.T) {
	t.Setenv("KEYRING_DATA_DIR", "/env/data")
	t.Setenv("KEYRING_LOG_LEVEL", "debug")
	t.Setenv("KEYRING_LOG_JSON", "true")
	t.Setenv("KEYRING_DEBUG_ADDR", "127.0.0.1:9100")

	cfg := ApplyEnv(Defaults())
	assert.Equal(t, "/env/data", cfg.DataDir)
	assert.Equal(t, "debug", cfg.LogLevel)
	assert.True(t, cfg.LogJSON)
	assert.Equal(t, "127.0.0.1:9100", cfg.DebugAddr)
}

func TestApplyEnvLeavesUnsetFieldsAlone(t *testing.T) {
	cfg := ApplyEnv(Defaults())
	assert.Equal(t, Defaults(), cfg)
}

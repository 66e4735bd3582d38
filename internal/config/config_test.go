package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func withHome(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	t.Setenv("WASMER_DIR", dir)
	return dir
}

func TestLoadDefaults(t *testing.T) {
	withHome(t)

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, DefaultRegistryURL, cfg.Registry.URL)
	assert.True(t, cfg.Telemetry.Enabled)
}

func TestSetRegistryURLResetsToken(t *testing.T) {
	home := withHome(t)

	cfg, err := Load()
	require.NoError(t, err)

	require.NoError(t, cfg.Set("registry.token", "sekret"))
	require.NoError(t, cfg.Save())

	require.NoError(t, cfg.Set("registry.url", "https://example.test/graphql"))
	require.NoError(t, cfg.Save())

	tok, err := cfg.Get("registry.token")
	require.NoError(t, err)
	assert.Empty(t, tok, "setting registry.url must reset registry.token")

	reloaded, err := Load()
	require.NoError(t, err)
	tok2, err := reloaded.Get("registry.token")
	require.NoError(t, err)
	assert.Empty(t, tok2)

	assert.FileExists(t, filepath.Join(home, "wapm.toml"))
}

func TestSetUnknownKey(t *testing.T) {
	withHome(t)
	cfg, err := Load()
	require.NoError(t, err)

	err = cfg.Set("nope.nope", "x")
	assert.Error(t, err)

	_, err = cfg.Get("nope.nope")
	assert.Error(t, err)
}

func TestLoadRejectsUnknownKeys(t *testing.T) {
	dir := withHome(t)
	require.NoError(t, os.WriteFile(filepath.Join(dir, "wapm.toml"), []byte("[registry]\nurl = \"x\"\nbogus = 1\n"), 0o600))

	_, err := Load()
	assert.Error(t, err)
}

func TestSetBooleanKeys(t *testing.T) {
	withHome(t)
	cfg, err := Load()
	require.NoError(t, err)

	require.NoError(t, cfg.Set("telemetry.enabled", "false"))
	v, err := cfg.Get("telemetry.enabled")
	require.NoError(t, err)
	assert.Equal(t, "false", v)

	assert.Error(t, cfg.Set("telemetry.enabled", "maybe"))
}

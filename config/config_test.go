package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadCreatesDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.json")

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "ctrl+shift+space", cfg.Hotkeys.PushToTalk)
	assert.Equal(t, 800, cfg.Sync.DebounceMs)
	assert.Equal(t, 1.0, cfg.TTS.Speed)

	// File written on first load
	_, err = os.Stat(path)
	assert.NoError(t, err)
}

func TestLoadRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.json")

	cfg, err := Load(path)
	require.NoError(t, err)

	cfg.TTS.Voice = "en-GB-SoniaNeural"
	cfg.Sync.ServerURL = "http://example.test:9999"
	require.NoError(t, cfg.Save())

	again, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "en-GB-SoniaNeural", again.TTS.Voice)
	assert.Equal(t, "http://example.test:9999", again.Sync.ServerURL)
}

func TestSetTokenPersists(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.json")

	cfg, err := Load(path)
	require.NoError(t, err)
	require.NoError(t, cfg.SetToken("secret-abc"))

	again, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "secret-abc", again.Sync.Token)

	// Token file should not be world-readable
	info, err := os.Stat(path)
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0600), info.Mode().Perm())
}

func TestEnvOverrides(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.json")
	t.Setenv("ORION_SERVER_URL", "http://env.test:1234")
	t.Setenv("ORION_API_TOKEN", "env-token")

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "http://env.test:1234", cfg.Sync.ServerURL)
	assert.Equal(t, "env-token", cfg.Sync.Token)
}

func TestLoadSanitizesZeroValues(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.json")
	require.NoError(t, os.WriteFile(path, []byte(`{"sync":{"debounce_ms":0,"page_size":0},"tts":{"speed":0}}`), 0600))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, 800, cfg.Sync.DebounceMs)
	assert.Equal(t, 100, cfg.Sync.PageSize)
	assert.Equal(t, 1.0, cfg.TTS.Speed)
}

package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/spf13/pflag"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadCreatesDefaultFile(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "galaxyd")
	m := NewManager(dir)

	require.NoError(t, m.Load())

	_, err := os.Stat(filepath.Join(dir, "config.yaml"))
	require.NoError(t, err, "config file should be written on first load")

	cfg := m.Get()
	assert.True(t, cfg.Discord.Enabled)
	assert.Equal(t, DefaultAppID, cfg.Discord.AppID)
	assert.Equal(t, "galaxy", cfg.Discord.LargeImage)
	assert.Equal(t, 10, cfg.Discord.RetryAttempts)
	assert.Equal(t, 2*time.Second, cfg.Discord.RetryInterval)
	assert.Equal(t, "info", cfg.Log.Level)
}

func TestLoadReadsExistingFile(t *testing.T) {
	dir := t.TempDir()
	content := `
libraryPaths:
  - /music/a
discord:
  largeImage: nebula
  retryAttempts: 3
  retryInterval: 500ms
log:
  level: debug
`
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.yaml"), []byte(content), 0600))

	m := NewManager(dir)
	require.NoError(t, m.Load())

	cfg := m.Get()
	assert.Equal(t, []string{"/music/a"}, cfg.LibraryPaths)
	assert.Equal(t, "nebula", cfg.Discord.LargeImage)
	assert.Equal(t, 3, cfg.Discord.RetryAttempts)
	assert.Equal(t, 500*time.Millisecond, cfg.Discord.RetryInterval)
	assert.Equal(t, "debug", cfg.Log.Level)
	// untouched keys keep their defaults
	assert.Equal(t, DefaultAppID, cfg.Discord.AppID)
	assert.Equal(t, 5*time.Second, cfg.Discord.CallTimeout)
}

func TestSaveRoundtrip(t *testing.T) {
	dir := t.TempDir()
	m := NewManager(dir)
	require.NoError(t, m.Load())

	require.NoError(t, m.Update(func(cfg *Config) {
		cfg.Server.HTTPAddr = "127.0.0.1:7870"
		cfg.MQTT.Broker = "tcp://localhost:1883"
	}))
	assert.Equal(t, "127.0.0.1:7870", m.Get().Server.HTTPAddr)

	m2 := NewManager(dir)
	require.NoError(t, m2.Load())
	got := m2.Get()
	assert.Equal(t, "127.0.0.1:7870", got.Server.HTTPAddr)
	assert.Equal(t, "tcp://localhost:1883", got.MQTT.Broker)
	assert.Equal(t, 2*time.Second, got.Discord.RetryInterval)
}

func TestEnvOverride(t *testing.T) {
	t.Setenv("GALAXYD_DISCORD_LARGEIMAGE", "from-env")

	m := NewManager(t.TempDir())
	require.NoError(t, m.Load())

	assert.Equal(t, "from-env", m.Get().Discord.LargeImage)
}

func TestBindFlag(t *testing.T) {
	fs := pflag.NewFlagSet("test", pflag.ContinueOnError)
	fs.String("log-level", "info", "")
	require.NoError(t, fs.Parse([]string{"--log-level", "warn"}))

	m := NewManager(t.TempDir())
	require.NoError(t, m.BindFlag("log.level", fs.Lookup("log-level")))
	require.NoError(t, m.BindFlag("ignored", nil))
	require.NoError(t, m.Load())

	assert.Equal(t, "warn", m.Get().Log.Level)
}

func TestLibraryPaths(t *testing.T) {
	m := NewManager(t.TempDir())
	require.NoError(t, m.Load())

	require.NoError(t, m.AddLibraryPath("/music/a"))
	require.NoError(t, m.AddLibraryPath("/music/b"))
	require.NoError(t, m.AddLibraryPath("/music/a"))
	assert.Equal(t, []string{"/music/a", "/music/b"}, m.Get().LibraryPaths)

	require.NoError(t, m.RemoveLibraryPath("/music/a"))
	assert.Equal(t, []string{"/music/b"}, m.Get().LibraryPaths)
}

func TestGetReturnsCopy(t *testing.T) {
	m := NewManager(t.TempDir())
	require.NoError(t, m.Load())
	require.NoError(t, m.AddLibraryPath("/music/a"))

	cfg := m.Get()
	cfg.LibraryPaths[0] = "/mutated"

	assert.Equal(t, "/music/a", m.Get().LibraryPaths[0])
}

func TestOverridesAreNotSaved(t *testing.T) {
	dir := t.TempDir()
	content := `
log:
  level: info
discord:
  largeImage: nebula
`
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.yaml"), []byte(content), 0600))
	t.Setenv("GALAXYD_DISCORD_ENABLED", "false")

	fs := pflag.NewFlagSet("test", pflag.ContinueOnError)
	fs.String("log-level", "", "")
	require.NoError(t, fs.Parse([]string{"--log-level", "trace"}))

	m := NewManager(dir)
	require.NoError(t, m.BindFlag("log.level", fs.Lookup("log-level")))
	require.NoError(t, m.Load())

	assert.Equal(t, "trace", m.Get().Log.Level)
	assert.False(t, m.Get().Discord.Enabled)

	require.NoError(t, m.AddLibraryPath("/music"))
	require.NoError(t, m.Update(func(cfg *Config) { cfg.MQTT.Broker = "tcp://broker:1883" }))

	data, err := os.ReadFile(filepath.Join(dir, "config.yaml"))
	require.NoError(t, err)
	assert.NotContains(t, string(data), "trace")

	os.Unsetenv("GALAXYD_DISCORD_ENABLED")
	reloaded := NewManager(dir)
	require.NoError(t, reloaded.Load())
	got := reloaded.Get()
	assert.Equal(t, "info", got.Log.Level)
	assert.True(t, got.Discord.Enabled)
	assert.Equal(t, "nebula", got.Discord.LargeImage)
	assert.Equal(t, []string{"/music"}, got.LibraryPaths)
	assert.Equal(t, "tcp://broker:1883", got.MQTT.Broker)
}

func TestFirstRunDoesNotSaveFlags(t *testing.T) {
	dir := t.TempDir()
	fs := pflag.NewFlagSet("test", pflag.ContinueOnError)
	fs.String("socket", "", "")
	require.NoError(t, fs.Parse([]string{"--socket", "/tmp/override.sock"}))

	m := NewManager(dir)
	require.NoError(t, m.BindFlag("server.socketPath", fs.Lookup("socket")))
	require.NoError(t, m.Load())
	assert.Equal(t, "/tmp/override.sock", m.Get().Server.SocketPath)

	data, err := os.ReadFile(filepath.Join(dir, "config.yaml"))
	require.NoError(t, err)
	assert.NotContains(t, string(data), "override.sock")
}

package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefault(t *testing.T) {
	cfg := Default()

	assert.Equal(t, "default", cfg.CurrentProfile)
	assert.NotNil(t, cfg.Profiles)
	assert.Empty(t, cfg.Profiles)
	require.NotNil(t, cfg.Defaults)
	assert.Equal(t, "http://localhost:8081", cfg.Defaults.EnrichURL)
	assert.Equal(t, "http://localhost:8083", cfg.Defaults.LatestURL)
	assert.Equal(t, "telemetry.raw.>", cfg.Defaults.RawSubject)
}

func TestLoad_NoConfigFile(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	require.NoError(t, err)

	assert.Equal(t, "default", cfg.CurrentProfile)
	assert.Equal(t, "http://localhost:8082", cfg.Defaults.WriterURL)
}

func TestLoad_WithConfigFile(t *testing.T) {
	configPath := filepath.Join(t.TempDir(), "config.yaml")
	content := `current_profile: plant-floor
profiles:
  plant-floor:
    latest_url: https://latest.example.com
    device_token: tok-123
`
	require.NoError(t, os.WriteFile(configPath, []byte(content), 0600))

	cfg, err := Load(configPath)
	require.NoError(t, err)

	assert.Equal(t, "plant-floor", cfg.CurrentProfile)
	require.NotNil(t, cfg.Defaults)

	p, err := cfg.Resolve("")
	require.NoError(t, err)
	assert.Equal(t, "https://latest.example.com", p.LatestURL)
	assert.Equal(t, "tok-123", p.DeviceToken)
	assert.Equal(t, "http://localhost:8081", p.EnrichURL)
}

func TestLoad_Malformed(t *testing.T) {
	configPath := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(configPath, []byte("profiles: [unclosed"), 0600))

	_, err := Load(configPath)
	assert.Error(t, err)
}

func TestLoad_WithEnvironmentOverrides(t *testing.T) {
	t.Setenv("PWCTL_ENRICH_URL", "http://env-enrich:9000")
	t.Setenv("PWCTL_NATS_URL", "nats://env-nats:4222")

	cfg, err := Load(filepath.Join(t.TempDir(), "config.yaml"))
	require.NoError(t, err)

	assert.Equal(t, "http://env-enrich:9000", cfg.Defaults.EnrichURL)
	assert.Equal(t, "nats://env-nats:4222", cfg.Defaults.NATSURL)
}

func TestSaveProfile(t *testing.T) {
	configPath := filepath.Join(t.TempDir(), "nested", "config.yaml")

	cfg, err := Load(configPath)
	require.NoError(t, err)
	require.NoError(t, cfg.SaveProfile("staging", &Profile{WriterURL: "http://writer.staging:8082"}))

	info, err := os.Stat(configPath)
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0600), info.Mode().Perm())

	reloaded, err := Load(configPath)
	require.NoError(t, err)
	assert.Equal(t, "staging", reloaded.CurrentProfile)

	p, err := reloaded.Resolve("staging")
	require.NoError(t, err)
	assert.Equal(t, "http://writer.staging:8082", p.WriterURL)
}

func TestResolve_UnknownProfile(t *testing.T) {
	_, err := Default().Resolve("nope")
	assert.Error(t, err)

	p, err := Default().Resolve("default")
	require.NoError(t, err)
	assert.Equal(t, "http://localhost:8084", p.ArchiveURL)
}

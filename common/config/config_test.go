package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/telhawk-systems/powerhawk/common/models"
)

func missingConfig(t *testing.T) string {
	return filepath.Join(t.TempDir(), "absent.yaml")
}

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load(missingConfig(t))
	require.NoError(t, err)

	assert.Equal(t, "derived", cfg.Pipeline.Policy)
	assert.Equal(t, 8, cfg.Pipeline.NumBuckets)
	assert.Equal(t, 48, cfg.Pipeline.TTLHours)
	assert.InDelta(t, 0.3, cfg.Pipeline.DefaultUtilThresholdKW, 1e-9)
	assert.Equal(t, 48*time.Hour, cfg.Pipeline.Retention())
	assert.Equal(t, "TELEMETRY", cfg.Stream.Name)
	assert.Equal(t, "telemetry_timeseries", cfg.Store.TimeSeriesTable)
	assert.Equal(t, "latest_state", cfg.Store.LatestTable)
	assert.Equal(t, 500*time.Millisecond, cfg.Registry.Timeout)
	assert.Equal(t, []string{"kw", "total_kw"}, cfg.Archive.RequiredFields)
	assert.Contains(t, cfg.Archive.NumericFields, "Total_KVAr")
	assert.Equal(t, 500, cfg.Archive.BatchSize)
	require.NoError(t, cfg.Validate())
}

func TestLoad_LegacyEnvironment(t *testing.T) {
	t.Setenv("PLANT_BUCKETS", "16")
	t.Setenv("TTL_HOURS", "24")
	t.Setenv("HOT_TABLE", "hot")
	t.Setenv("LATEST_TABLE", "latest")
	t.Setenv("KINESIS_STREAM_NAME", "ENRICHED")

	cfg, err := Load(missingConfig(t))
	require.NoError(t, err)

	assert.Equal(t, 16, cfg.Pipeline.NumBuckets)
	assert.Equal(t, 24, cfg.Pipeline.TTLHours)
	assert.Equal(t, "hot", cfg.Store.TimeSeriesTable)
	assert.Equal(t, "latest", cfg.Store.LatestTable)
	assert.Equal(t, "ENRICHED", cfg.Stream.Name)
}

func TestValidate_TableMustMatchMigrations(t *testing.T) {
	t.Setenv("HOT_TABLE", "hot_readings")

	cfg, err := Load(missingConfig(t))
	require.NoError(t, err)
	require.Equal(t, "hot_readings", cfg.Store.TimeSeriesTable)

	err = cfg.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "store.timeseries_table")
	assert.Contains(t, err.Error(), TimeSeriesTable)

	t.Setenv("HOT_TABLE", TimeSeriesTable)
	cfg, err = Load(missingConfig(t))
	require.NoError(t, err)
	assert.NoError(t, cfg.Validate())
}

func TestLoad_StructuredEnvironmentWins(t *testing.T) {
	t.Setenv("NUM_BUCKETS", "4")
	t.Setenv("PIPELINE_NUM_BUCKETS", "32")
	t.Setenv("PIPELINE_POLICY", "passthrough")

	cfg, err := Load(missingConfig(t))
	require.NoError(t, err)

	assert.Equal(t, 32, cfg.Pipeline.NumBuckets)
	assert.Equal(t, models.PolicyPassThrough, cfg.Pipeline.EnrichmentPolicy())
}

func TestLoad_File(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	content := `
pipeline:
  policy: passthrough
  num_buckets: 3
store:
  latest_backend: redis
writer:
  validation: accept-all
archive:
  required_fields: [kw]
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, 3, cfg.Pipeline.NumBuckets)
	assert.Equal(t, "redis", cfg.Store.LatestBackend)
	assert.False(t, cfg.Writer.RequireKW(cfg.Pipeline.EnrichmentPolicy()))
	assert.Equal(t, []string{"kw"}, cfg.Archive.RequiredFields)
}

func TestLoad_InvalidFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("pipeline: [unterminated"), 0o600))

	_, err := Load(path)
	assert.Error(t, err)
}

func TestValidate(t *testing.T) {
	base := func() *Config {
		cfg, err := Load(missingConfig(t))
		require.NoError(t, err)
		return cfg
	}

	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"zero buckets", func(c *Config) { c.Pipeline.NumBuckets = 0 }},
		{"zero ttl", func(c *Config) { c.Pipeline.TTLHours = 0 }},
		{"bad policy", func(c *Config) { c.Pipeline.Policy = "mystery" }},
		{"bad backend", func(c *Config) { c.Store.LatestBackend = "dynamo" }},
		{"bad validation", func(c *Config) { c.Writer.Validation = "strict" }},
		{"zero shards", func(c *Config) { c.Stream.Shards = 0 }},
		{"renamed timeseries table", func(c *Config) { c.Store.TimeSeriesTable = "hot_readings" }},
		{"renamed latest table", func(c *Config) { c.Store.LatestTable = "latest" }},
		{"renamed change channel", func(c *Config) { c.Store.ChangeChannel = "changes" }},
		{"renamed registry table", func(c *Config) { c.Registry.Table = "devices" }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := base()
			tt.mutate(cfg)
			assert.Error(t, cfg.Validate())
		})
	}
}

func TestWriterConfig_RequireKW(t *testing.T) {
	assert.True(t, WriterConfig{}.RequireKW(models.PolicyPassThrough))
	assert.False(t, WriterConfig{}.RequireKW(models.PolicyDerived))
	assert.True(t, WriterConfig{Validation: "require-kw"}.RequireKW(models.PolicyDerived))
	assert.False(t, WriterConfig{Validation: "accept-all"}.RequireKW(models.PolicyPassThrough))
}

func TestPostgresConfig_ConnString(t *testing.T) {
	p := PostgresConfig{Host: "db", Port: 5432, Database: "powerhawk", User: "ph", Password: "p@ss", SSLMode: "disable"}
	assert.Equal(t, "postgres://ph:p%40ss@db:5432/powerhawk?sslmode=disable", p.ConnString())
}

// Package config provides centralized configuration management for all PowerHawk services.
package config

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"
	"github.com/telhawk-systems/powerhawk/common/models"
)

// Config is the master configuration struct shared by every service.
type Config struct {
	Pipeline PipelineConfig `mapstructure:"pipeline"`
	Stream   StreamConfig   `mapstructure:"stream"`
	Store    StoreConfig    `mapstructure:"store"`
	Registry RegistryConfig `mapstructure:"registry"`
	Writer   WriterConfig   `mapstructure:"writer"`
	Reaper   ReaperConfig   `mapstructure:"reaper"`
	Latest   LatestConfig   `mapstructure:"latest"`
	Archive  ArchiveConfig  `mapstructure:"archive"`
	Auth     AuthConfig     `mapstructure:"auth"`

	// Shared infrastructure configurations
	Server     ServerConfig     `mapstructure:"server"`
	Database   DatabaseConfig   `mapstructure:"database"`
	OpenSearch OpenSearchConfig `mapstructure:"opensearch"`
	NATS       NATSConfig       `mapstructure:"nats"`
	Redis      RedisConfig      `mapstructure:"redis"`
	Logging    LoggingConfig    `mapstructure:"logging"`
}

// PipelineConfig holds the settings that must agree across enrich, writer and latest.
type PipelineConfig struct {
	Policy                 string  `mapstructure:"policy"`
	NumBuckets             int     `mapstructure:"num_buckets"`
	TTLHours               int     `mapstructure:"ttl_hours"`
	DefaultUtilThresholdKW float64 `mapstructure:"default_util_threshold_kw"`
}

// EnrichmentPolicy returns the parsed policy. Call Validate first.
func (p PipelineConfig) EnrichmentPolicy() models.EnrichmentPolicy {
	policy, err := models.ParsePolicy(p.Policy)
	if err != nil {
		return models.PolicyDerived
	}
	return policy
}

// Retention returns the TTL horizon applied to time-series rows.
func (p PipelineConfig) Retention() time.Duration {
	return time.Duration(p.TTLHours) * time.Hour
}

// StreamConfig describes the partitioned telemetry stream.
type StreamConfig struct {
	Name          string        `mapstructure:"name"`
	SubjectPrefix string        `mapstructure:"subject_prefix"`
	Shards        int           `mapstructure:"shards"`
	RawSubject    string        `mapstructure:"raw_subject"`
	MaxAge        time.Duration `mapstructure:"max_age"`
	BatchSize     int           `mapstructure:"batch_size"`
	FetchWait     time.Duration `mapstructure:"fetch_wait"`
	AckWait       time.Duration `mapstructure:"ack_wait"`
	MaxDeliver    int           `mapstructure:"max_deliver"`
}

// Schema names created by the embedded migrations. The table and channel
// settings must match them; Validate rejects anything else.
const (
	TimeSeriesTable = "telemetry_timeseries"
	LatestTable     = "latest_state"
	RegistryTable   = "device_registry"
	ChangeChannel   = "telemetry_changes"
)

// StoreConfig names the time-series and latest-state tables.
type StoreConfig struct {
	TimeSeriesTable string `mapstructure:"timeseries_table"`
	LatestTable     string `mapstructure:"latest_table"`
	LatestBackend   string `mapstructure:"latest_backend"` // "postgres" (default) or "redis"
	ChangeChannel   string `mapstructure:"change_channel"`
}

// RegistryConfig holds device registry lookup settings.
type RegistryConfig struct {
	Enabled  bool          `mapstructure:"enabled"`
	Table    string        `mapstructure:"table"`
	Timeout  time.Duration `mapstructure:"timeout"`
	CacheTTL time.Duration `mapstructure:"cache_ttl"`
}

// WriterConfig holds bucketed writer settings.
type WriterConfig struct {
	Consumer   string `mapstructure:"consumer"`
	Validation string `mapstructure:"validation"` // "", "require-kw" or "accept-all"
}

// RequireKW resolves the validation mode against the enrichment policy default.
func (w WriterConfig) RequireKW(policy models.EnrichmentPolicy) bool {
	switch w.Validation {
	case "require-kw":
		return true
	case "accept-all":
		return false
	default:
		return policy.RequiresKW()
	}
}

// ReaperConfig controls the TTL reaper of the time-series table.
type ReaperConfig struct {
	Enabled    bool          `mapstructure:"enabled"`
	Interval   time.Duration `mapstructure:"interval"`
	BatchLimit int           `mapstructure:"batch_limit"`
}

// LatestConfig holds change-feed batching for the latest-state maintainer.
type LatestConfig struct {
	MaxBatch int           `mapstructure:"max_batch"`
	MaxWait  time.Duration `mapstructure:"max_wait"`
}

// ArchiveConfig holds batch sanitizer and bulk delivery settings.
type ArchiveConfig struct {
	Consumer       string   `mapstructure:"consumer"`
	NumericFields  []string `mapstructure:"numeric_fields"`
	RequiredFields []string `mapstructure:"required_fields"`
	IndexPrefix    string   `mapstructure:"index_prefix"`
	BatchSize      int      `mapstructure:"batch_size"`
}

// AuthConfig holds device token settings for the HTTP packet endpoint.
type AuthConfig struct {
	DeviceJWTSecret string        `mapstructure:"device_jwt_secret"`
	DeviceTokenTTL  time.Duration `mapstructure:"device_token_ttl"`
}

// ServerConfig holds HTTP server configuration
type ServerConfig struct {
	Port         int           `mapstructure:"port"`
	ReadTimeout  time.Duration `mapstructure:"read_timeout"`
	WriteTimeout time.Duration `mapstructure:"write_timeout"`
	IdleTimeout  time.Duration `mapstructure:"idle_timeout"`
}

// DatabaseConfig holds database configuration
type DatabaseConfig struct {
	Postgres PostgresConfig `mapstructure:"postgres"`
}

// PostgresConfig holds PostgreSQL connection settings
type PostgresConfig struct {
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	Database string `mapstructure:"database"`
	User     string `mapstructure:"user"`
	Password string `mapstructure:"password"`
	SSLMode  string `mapstructure:"sslmode"`
}

// ConnString returns a postgres:// URL for pgx and golang-migrate.
func (p PostgresConfig) ConnString() string {
	u := url.URL{
		Scheme:   "postgres",
		User:     url.UserPassword(p.User, p.Password),
		Host:     fmt.Sprintf("%s:%d", p.Host, p.Port),
		Path:     "/" + p.Database,
		RawQuery: "sslmode=" + p.SSLMode,
	}
	return u.String()
}

// OpenSearchConfig holds OpenSearch connection settings
type OpenSearchConfig struct {
	URL           string `mapstructure:"url"`
	Username      string `mapstructure:"username"`
	Password      string `mapstructure:"password"`
	TLSSkipVerify bool   `mapstructure:"tls_skip_verify"`
	ShardCount    int    `mapstructure:"shard_count"`
	ReplicaCount  int    `mapstructure:"replica_count"`
}

// NATSConfig holds NATS message broker configuration
type NATSConfig struct {
	URL           string        `mapstructure:"url"`
	MaxReconnects int           `mapstructure:"max_reconnects"`
	ReconnectWait time.Duration `mapstructure:"reconnect_wait"`
}

// RedisConfig holds Redis configuration
type RedisConfig struct {
	URL     string `mapstructure:"url"`
	Enabled bool   `mapstructure:"enabled"`
}

// LoggingConfig holds logging configuration
type LoggingConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

// legacyEnv maps config keys to the flat environment names used by earlier
// deployments. The structured name (e.g. PIPELINE_NUM_BUCKETS) always wins.
var legacyEnv = map[string][]string{
	"stream.name":                        {"STREAM_NAME", "KINESIS_STREAM_NAME"},
	"store.timeseries_table":             {"HOT_TABLE"},
	"store.latest_table":                 {"LATEST_TABLE"},
	"registry.table":                     {"DEVICE_REGISTRY_TABLE"},
	"pipeline.num_buckets":               {"NUM_BUCKETS", "PLANT_BUCKETS"},
	"pipeline.ttl_hours":                 {"TTL_HOURS"},
	"pipeline.default_util_threshold_kw": {"UTIL_THRESHOLD_KW"},
}

// Load reads configuration from configPath (or $POWERHAWK_CONFIG_DIR/config.yaml
// when empty) and environment variables. A missing config file is not an error.
func Load(configPath string) (*Config, error) {
	v := viper.New()

	setDefaults(v)

	if configPath == "" {
		configDir := os.Getenv("POWERHAWK_CONFIG_DIR")
		if configDir == "" {
			configDir = "/etc/powerhawk"
		}
		configPath = filepath.Join(configDir, "config.yaml")
	}
	v.SetConfigFile(configPath)
	v.SetConfigType("yaml")

	// Environment variables override with NO prefix
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	for key, names := range legacyEnv {
		structured := strings.ToUpper(strings.ReplaceAll(key, ".", "_"))
		if err := v.BindEnv(append([]string{key, structured}, names...)...); err != nil {
			return nil, fmt.Errorf("failed to bind env for %s: %w", key, err)
		}
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) && !errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("failed to read config: %w", err)
		}
		// Config file not found - continue with defaults and env vars
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	return &cfg, nil
}

// Validate rejects settings that would break pipeline invariants.
func (c *Config) Validate() error {
	var errs []error

	if _, err := models.ParsePolicy(c.Pipeline.Policy); err != nil {
		errs = append(errs, err)
	}
	if c.Pipeline.NumBuckets < 1 {
		errs = append(errs, fmt.Errorf("pipeline.num_buckets must be >= 1, got %d", c.Pipeline.NumBuckets))
	}
	if c.Pipeline.TTLHours < 1 {
		errs = append(errs, fmt.Errorf("pipeline.ttl_hours must be >= 1, got %d", c.Pipeline.TTLHours))
	}
	if c.Stream.Shards < 1 {
		errs = append(errs, fmt.Errorf("stream.shards must be >= 1, got %d", c.Stream.Shards))
	}
	switch c.Store.LatestBackend {
	case "postgres", "redis":
	default:
		errs = append(errs, fmt.Errorf("unknown store.latest_backend %q (supported: postgres, redis)", c.Store.LatestBackend))
	}
	for _, name := range []struct{ key, got, want string }{
		{"store.timeseries_table", c.Store.TimeSeriesTable, TimeSeriesTable},
		{"store.latest_table", c.Store.LatestTable, LatestTable},
		{"store.change_channel", c.Store.ChangeChannel, ChangeChannel},
		{"registry.table", c.Registry.Table, RegistryTable},
	} {
		if name.got != name.want {
			errs = append(errs, fmt.Errorf("%s must be %q (the name created by the migrations), got %q", name.key, name.want, name.got))
		}
	}
	switch c.Writer.Validation {
	case "", "require-kw", "accept-all":
	default:
		errs = append(errs, fmt.Errorf("unknown writer.validation %q (supported: require-kw, accept-all)", c.Writer.Validation))
	}

	return errors.Join(errs...)
}

// setDefaults sets all default configuration values
func setDefaults(v *viper.Viper) {
	// Pipeline defaults
	v.SetDefault("pipeline.policy", string(models.PolicyDerived))
	v.SetDefault("pipeline.num_buckets", 8)
	v.SetDefault("pipeline.ttl_hours", 48)
	v.SetDefault("pipeline.default_util_threshold_kw", 0.3)

	// Stream defaults
	v.SetDefault("stream.name", "TELEMETRY")
	v.SetDefault("stream.subject_prefix", "telemetry.enriched")
	v.SetDefault("stream.shards", 16)
	v.SetDefault("stream.raw_subject", "telemetry.raw.>")
	v.SetDefault("stream.max_age", "72h")
	v.SetDefault("stream.batch_size", 100)
	v.SetDefault("stream.fetch_wait", "2s")
	v.SetDefault("stream.ack_wait", "30s")
	v.SetDefault("stream.max_deliver", -1)

	// Store defaults
	v.SetDefault("store.timeseries_table", TimeSeriesTable)
	v.SetDefault("store.latest_table", LatestTable)
	v.SetDefault("store.latest_backend", "postgres")
	v.SetDefault("store.change_channel", ChangeChannel)

	// Registry defaults
	v.SetDefault("registry.enabled", true)
	v.SetDefault("registry.table", RegistryTable)
	v.SetDefault("registry.timeout", "500ms")
	v.SetDefault("registry.cache_ttl", "5m")

	v.SetDefault("writer.consumer", "timeseries-writer")
	v.SetDefault("writer.validation", "")

	v.SetDefault("reaper.enabled", true)
	v.SetDefault("reaper.interval", "1m")
	v.SetDefault("reaper.batch_limit", 5000)

	v.SetDefault("latest.max_batch", 100)
	v.SetDefault("latest.max_wait", "250ms")

	// Archive defaults
	v.SetDefault("archive.consumer", "bulk-archive")
	v.SetDefault("archive.numeric_fields", []string{
		"kw", "kva", "kvar",
		"total_kw", "total_kva", "total_kvar",
		"Total_Kw", "Total_KVAr", "Total_kVA",
	})
	v.SetDefault("archive.required_fields", []string{"kw", "total_kw"})
	v.SetDefault("archive.index_prefix", "powerhawk-telemetry")
	v.SetDefault("archive.batch_size", 500)

	v.SetDefault("auth.device_jwt_secret", "")
	v.SetDefault("auth.device_token_ttl", "720h")

	// Server defaults
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.read_timeout", "15s")
	v.SetDefault("server.write_timeout", "15s")
	v.SetDefault("server.idle_timeout", "60s")

	// Database defaults
	v.SetDefault("database.postgres.host", "localhost")
	v.SetDefault("database.postgres.port", 5432)
	v.SetDefault("database.postgres.database", "powerhawk")
	v.SetDefault("database.postgres.user", "powerhawk")
	v.SetDefault("database.postgres.password", "")
	v.SetDefault("database.postgres.sslmode", "disable")

	// OpenSearch defaults
	v.SetDefault("opensearch.url", "https://localhost:9200")
	v.SetDefault("opensearch.username", "admin")
	v.SetDefault("opensearch.password", "admin")
	v.SetDefault("opensearch.tls_skip_verify", true)
	v.SetDefault("opensearch.shard_count", 1)
	v.SetDefault("opensearch.replica_count", 0)

	// NATS defaults
	v.SetDefault("nats.url", "nats://nats:4222")
	v.SetDefault("nats.max_reconnects", -1)
	v.SetDefault("nats.reconnect_wait", "2s")

	// Redis defaults
	v.SetDefault("redis.url", "redis://localhost:6379/0")
	v.SetDefault("redis.enabled", false)

	// Logging defaults
	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "json")
}

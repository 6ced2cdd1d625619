// Package config provides configuration management for the bibliographic
// sync service.
package config

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// SSL mode constants for database connections.
const (
	// SSLModeDisable disables SSL (use only for local development).
	SSLModeDisable = "disable"
	// SSLModeRequire requires SSL but does not verify certificates.
	SSLModeRequire = "require"
	// SSLModeVerifyCA verifies the server certificate against a CA.
	SSLModeVerifyCA = "verify-ca"
	// SSLModeVerifyFull verifies the server certificate and hostname.
	SSLModeVerifyFull = "verify-full"
)

// Config holds all configuration for the bibliographic sync service.
type Config struct {
	// Server contains HTTP server settings.
	Server ServerConfig `mapstructure:"server"`
	// Database contains PostgreSQL connection settings.
	Database DatabaseConfig `mapstructure:"database"`
	// Logging contains structured logging settings.
	Logging LoggingConfig `mapstructure:"logging"`
	// Metrics contains Prometheus metrics exposure settings.
	Metrics MetricsConfig `mapstructure:"metrics"`
	// ADS contains the remote bibliographic source settings.
	ADS ADSConfig `mapstructure:"ads"`
	// Inference contains the optional metadata-inference assist settings.
	Inference InferenceConfig `mapstructure:"inference"`
	// Sync contains reconciliation engine settings.
	Sync SyncConfig `mapstructure:"sync"`
	// Fulltext contains the cached full-text store settings.
	Fulltext FulltextConfig `mapstructure:"fulltext"`
	// Events contains Kafka publisher settings for terminal sync events.
	Events EventsConfig `mapstructure:"events"`
}

// ServerConfig holds server configuration.
type ServerConfig struct {
	// Host is the address to bind the server to (default: 0.0.0.0).
	Host string `mapstructure:"host"`
	// HTTPPort is the HTTP server port (default: 8080).
	HTTPPort int `mapstructure:"http_port"`
	// MetricsPort is the metrics server port (default: 9091).
	MetricsPort int `mapstructure:"metrics_port"`
	// ReadTimeout is the maximum duration for reading request body.
	ReadTimeout time.Duration `mapstructure:"read_timeout"`
	// WriteTimeout is the maximum duration for writing response.
	WriteTimeout time.Duration `mapstructure:"write_timeout"`
	// ShutdownTimeout is the maximum duration to wait for graceful shutdown.
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
}

// DatabaseConfig holds database connection configuration.
type DatabaseConfig struct {
	// Host is the PostgreSQL server hostname.
	Host string `mapstructure:"host"`
	// Port is the PostgreSQL server port (default: 5432).
	Port int `mapstructure:"port"`
	// User is the database username.
	User string `mapstructure:"user"`
	// Password is the database password (loaded from BIBSYNC_DATABASE_PASSWORD).
	Password string `mapstructure:"-"`
	// Name is the database name.
	Name string `mapstructure:"name"`
	// SSLMode controls SSL connection security (require, verify-ca, verify-full, disable).
	SSLMode string `mapstructure:"ssl_mode"`
	// MaxConns is the maximum number of connections in the pool.
	MaxConns int32 `mapstructure:"max_conns"`
	// MinConns is the minimum number of connections to keep open.
	MinConns int32 `mapstructure:"min_conns"`
	// MaxConnLifetime is the maximum lifetime of a connection before it's closed.
	MaxConnLifetime time.Duration `mapstructure:"max_conn_lifetime"`
	// MaxConnIdleTime is the maximum time a connection can be idle before it's closed.
	MaxConnIdleTime time.Duration `mapstructure:"max_conn_idle_time"`
	// HealthCheckPeriod is the interval between health checks of idle connections.
	HealthCheckPeriod time.Duration `mapstructure:"health_check_period"`
	// ConnectTimeout is the maximum time to wait for a connection.
	ConnectTimeout time.Duration `mapstructure:"connect_timeout"`
	// MigrationPath is the path to migration files (relative or absolute).
	MigrationPath string `mapstructure:"migration_path"`
	// MigrationAutoRun enables automatic migration on startup (default: false).
	MigrationAutoRun bool `mapstructure:"migration_auto_run"`
}

// LoggingConfig holds logging configuration.
type LoggingConfig struct {
	// Level is the log level (trace, debug, info, warn, error, fatal, panic).
	Level string `mapstructure:"level"`
	// Format is the log format (json, console).
	Format string `mapstructure:"format"`
	// Output is the log output destination (stdout, stderr).
	Output string `mapstructure:"output"`
	// AddSource adds source file and line to log output.
	AddSource bool `mapstructure:"add_source"`
	// TimeFormat is the timestamp format.
	TimeFormat string `mapstructure:"time_format"`
}

// MetricsConfig holds metrics configuration.
type MetricsConfig struct {
	// Enabled enables metrics collection and exposure.
	Enabled bool `mapstructure:"enabled"`
	// Path is the HTTP path for metrics endpoint.
	Path string `mapstructure:"path"`
}

// ADSConfig holds settings for the remote bibliographic source.
type ADSConfig struct {
	// BaseURL is the API base URL.
	BaseURL string `mapstructure:"base_url"`
	// Token is the API bearer token (loaded from BIBSYNC_ADS_TOKEN).
	Token string `mapstructure:"-"`
	// Timeout is the timeout for API calls.
	Timeout time.Duration `mapstructure:"timeout"`
	// RateLimit is the maximum requests per second.
	RateLimit float64 `mapstructure:"rate_limit"`
	// BurstSize is the maximum burst of requests allowed.
	BurstSize int `mapstructure:"burst_size"`
	// MaxResults is the maximum results per query.
	MaxResults int `mapstructure:"max_results"`
}

// InferenceConfig holds settings for the optional metadata-inference assist.
// When disabled or unreachable the sync engine treats inference as "no data".
type InferenceConfig struct {
	// Enabled controls whether metadata inference is attempted.
	Enabled bool `mapstructure:"enabled"`
	// BaseURL is the chat-completions API base URL.
	BaseURL string `mapstructure:"base_url"`
	// APIKey is the API key (loaded from BIBSYNC_INFERENCE_API_KEY).
	APIKey string `mapstructure:"-"`
	// Model is the model to use for inference.
	Model string `mapstructure:"model"`
	// Timeout is the timeout for inference calls.
	Timeout time.Duration `mapstructure:"timeout"`
}

// SyncConfig holds reconciliation engine settings.
type SyncConfig struct {
	// WindowWidth is the fixed concurrency window width for per-paper work.
	WindowWidth int `mapstructure:"window_width"`
	// WindowDelay is the fixed delay inserted between concurrency windows.
	WindowDelay time.Duration `mapstructure:"window_delay"`
	// BatchSize is the maximum bibcodes per batch remote call.
	BatchSize int `mapstructure:"batch_size"`
	// FreshnessWindow is the age after which cached citation graphs are stale.
	FreshnessWindow time.Duration `mapstructure:"freshness_window"`
	// SourcePriorities maps source names to selection priorities
	// (lower wins). Sources absent from the map default to 50.
	SourcePriorities map[string]int `mapstructure:"source_priorities"`
}

// FulltextConfig holds settings for the cached full-text store consulted
// by the identifier-less fallback chain.
type FulltextConfig struct {
	// Enabled controls whether the store is wired into the sync engine.
	Enabled bool `mapstructure:"enabled"`
	// Dir is the directory holding one text file per paper.
	Dir string `mapstructure:"dir"`
	// MaxSize is the maximum bytes returned per paper.
	MaxSize int64 `mapstructure:"max_size"`
}

// EventsConfig holds Kafka publisher settings for terminal sync events.
type EventsConfig struct {
	// Enabled controls whether Kafka publishing is active.
	Enabled bool `mapstructure:"enabled"`
	// Brokers is the list of Kafka broker addresses.
	Brokers []string `mapstructure:"brokers"`
	// Topic is the Kafka topic to publish sync events to.
	Topic string `mapstructure:"topic"`
	// BatchTimeout is the maximum time to wait for a batch to fill before sending.
	BatchTimeout time.Duration `mapstructure:"batch_timeout"`
}

// DSN returns the PostgreSQL connection string.
func (c *DatabaseConfig) DSN() string {
	params := url.Values{}
	params.Set("sslmode", c.SSLMode)
	if c.ConnectTimeout > 0 {
		params.Set("connect_timeout", fmt.Sprintf("%d", int(c.ConnectTimeout.Seconds())))
	}

	return fmt.Sprintf("postgres://%s:%s@%s:%d/%s?%s",
		url.QueryEscape(c.User),
		url.QueryEscape(c.Password),
		c.Host,
		c.Port,
		c.Name,
		params.Encode(),
	)
}

// HTTPAddress returns the HTTP server address.
func (c *ServerConfig) HTTPAddress() string {
	return fmt.Sprintf("%s:%d", c.Host, c.HTTPPort)
}

// MetricsAddress returns the metrics server address.
func (c *ServerConfig) MetricsAddress() string {
	return fmt.Sprintf("%s:%d", c.Host, c.MetricsPort)
}

// Load loads configuration from environment variables and config files.
func Load() (*Config, error) {
	v := viper.New()

	setDefaults(v)

	// Read from environment variables.
	v.SetEnvPrefix("BIBSYNC")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Read config file if present.
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	v.AddConfigPath("./config")
	v.AddConfigPath("/etc/bibsync-service")

	if err := v.ReadInConfig(); err != nil {
		var configNotFound viper.ConfigFileNotFoundError
		if !errors.As(err, &configNotFound) {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
		// Config file not found is OK, we'll use env vars and defaults.
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	// Secrets load exclusively from environment variables. These fields use
	// mapstructure:"-" to prevent loading from config files.
	loadSecrets(&cfg)

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return &cfg, nil
}

// loadSecrets populates secret fields exclusively from environment variables.
func loadSecrets(cfg *Config) {
	cfg.Database.Password = os.Getenv("BIBSYNC_DATABASE_PASSWORD")
	cfg.ADS.Token = os.Getenv("BIBSYNC_ADS_TOKEN")
	cfg.Inference.APIKey = os.Getenv("BIBSYNC_INFERENCE_API_KEY")
}

// setDefaults sets default configuration values.
func setDefaults(v *viper.Viper) {
	// Server defaults
	v.SetDefault("server.host", "0.0.0.0")
	v.SetDefault("server.http_port", 8080)
	v.SetDefault("server.metrics_port", 9091)
	v.SetDefault("server.read_timeout", "30s")
	v.SetDefault("server.write_timeout", "30s")
	v.SetDefault("server.shutdown_timeout", "30s")

	// Database defaults
	v.SetDefault("database.host", "localhost")
	v.SetDefault("database.port", 5432)
	v.SetDefault("database.user", "bibsync")
	v.SetDefault("database.name", "bibsync")
	// Default to "require" for production security. Use
	// BIBSYNC_DATABASE_SSL_MODE=disable for local development.
	v.SetDefault("database.ssl_mode", SSLModeRequire)
	v.SetDefault("database.max_conns", 20)
	v.SetDefault("database.min_conns", 2)
	v.SetDefault("database.max_conn_lifetime", "1h")
	v.SetDefault("database.max_conn_idle_time", "30m")
	v.SetDefault("database.health_check_period", "30s")
	v.SetDefault("database.connect_timeout", "10s")
	v.SetDefault("database.migration_path", "migrations")
	v.SetDefault("database.migration_auto_run", false)

	// Logging defaults
	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "json")
	v.SetDefault("logging.output", "stdout")
	v.SetDefault("logging.add_source", false)
	v.SetDefault("logging.time_format", time.RFC3339)

	// Metrics defaults
	v.SetDefault("metrics.enabled", true)
	v.SetDefault("metrics.path", "/metrics")

	// Remote source defaults
	v.SetDefault("ads.base_url", "https://api.adsabs.harvard.edu/v1")
	v.SetDefault("ads.timeout", "30s")
	v.SetDefault("ads.rate_limit", 5.0)
	v.SetDefault("ads.burst_size", 5)
	v.SetDefault("ads.max_results", 200)

	// Inference defaults (disabled unless configured)
	v.SetDefault("inference.enabled", false)
	v.SetDefault("inference.base_url", "https://api.openai.com/v1")
	v.SetDefault("inference.model", "gpt-4o-mini")
	v.SetDefault("inference.timeout", "30s")

	// Sync defaults
	v.SetDefault("sync.window_width", 10)
	v.SetDefault("sync.window_delay", "300ms")
	v.SetDefault("sync.batch_size", 100)
	v.SetDefault("sync.freshness_window", "168h")
	v.SetDefault("sync.source_priorities", map[string]int{})

	// Fulltext defaults
	v.SetDefault("fulltext.enabled", false)
	v.SetDefault("fulltext.dir", "fulltext")
	v.SetDefault("fulltext.max_size", 10<<20)

	// Events defaults
	v.SetDefault("events.enabled", false)
	v.SetDefault("events.brokers", []string{"localhost:9092"})
	v.SetDefault("events.topic", "events.bibsync.sync")
	v.SetDefault("events.batch_timeout", "10ms")
}

// Validate validates the configuration.
func (c *Config) Validate() error {
	if c.Server.HTTPPort <= 0 || c.Server.HTTPPort > 65535 {
		return fmt.Errorf("invalid HTTP port: %d", c.Server.HTTPPort)
	}
	if c.Server.MetricsPort <= 0 || c.Server.MetricsPort > 65535 {
		return fmt.Errorf("invalid metrics port: %d", c.Server.MetricsPort)
	}

	if c.Database.Host == "" {
		return fmt.Errorf("database host is required")
	}
	if c.Database.Port <= 0 || c.Database.Port > 65535 {
		return fmt.Errorf("invalid database port: %d", c.Database.Port)
	}
	if c.Database.Name == "" {
		return fmt.Errorf("database name is required")
	}
	if c.Database.MaxConns < c.Database.MinConns {
		return fmt.Errorf("max_conns (%d) must be >= min_conns (%d)", c.Database.MaxConns, c.Database.MinConns)
	}

	validLogLevels := map[string]bool{
		"trace": true, "debug": true, "info": true,
		"warn": true, "error": true, "fatal": true, "panic": true,
	}
	if !validLogLevels[strings.ToLower(c.Logging.Level)] {
		return fmt.Errorf("invalid log level: %s", c.Logging.Level)
	}

	if c.ADS.BaseURL == "" {
		return fmt.Errorf("ads base_url is required")
	}
	if c.ADS.RateLimit <= 0 {
		return fmt.Errorf("ads rate_limit must be positive")
	}

	if c.Inference.Enabled && c.Inference.APIKey == "" {
		return fmt.Errorf("inference requires BIBSYNC_INFERENCE_API_KEY when enabled")
	}

	if c.Sync.WindowWidth <= 0 {
		return fmt.Errorf("sync window_width must be positive")
	}
	if c.Sync.BatchSize <= 0 {
		return fmt.Errorf("sync batch_size must be positive")
	}
	if c.Sync.FreshnessWindow <= 0 {
		return fmt.Errorf("sync freshness_window must be positive")
	}
	for source, priority := range c.Sync.SourcePriorities {
		if priority < 0 {
			return fmt.Errorf("sync source priority for %q must be >= 0", source)
		}
	}

	if c.Fulltext.Enabled && c.Fulltext.Dir == "" {
		return fmt.Errorf("fulltext dir is required when the store is enabled")
	}

	if c.Events.Enabled && len(c.Events.Brokers) == 0 {
		return fmt.Errorf("events brokers are required when events are enabled")
	}

	return nil
}

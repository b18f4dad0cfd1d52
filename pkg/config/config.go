package config

import (
	"fmt"

	"github.com/ilyakaznacheev/cleanenv"
)

// Config holds all configuration for clearrate-engine.
// Configuration can come from YAML file (config.yaml) or environment variables.
// Environment variables always override YAML values for fields that support both.
// Secrets (passwords, keys) must only come from environment variables.
type Config struct {
	// Server configuration
	BindAddr string `yaml:"bind_addr" env:"BIND_ADDR" env-default:"127.0.0.1"`
	Port     string `yaml:"port" env:"PORT" env-default:"8080"`
	Env      string `yaml:"env" env:"ENVIRONMENT" env-default:"local"`
	Version  string `yaml:"-"` // Set at load time, not from config

	// Database configuration (PostgreSQL)
	Database DatabaseConfig `yaml:"database"`

	// Redis configuration (optional classification cache)
	Redis RedisConfig `yaml:"redis"`

	// LERG remote source configuration
	LERG LERGConfig `yaml:"lerg"`
}

// DatabaseConfig holds PostgreSQL database configuration.
type DatabaseConfig struct {
	Host           string `yaml:"host" env:"PGHOST" env-default:"localhost"`
	Port           int    `yaml:"port" env:"PGPORT" env-default:"5432"`
	User           string `yaml:"user" env:"PGUSER" env-default:"clearrate"`
	Password       string `yaml:"-" env:"PGPASSWORD"` // Secret - not in YAML
	Database       string `yaml:"database" env:"PGDATABASE" env-default:"clearrate_engine"`
	MaxConnections int32  `yaml:"max_connections" env:"PGMAX_CONNECTIONS" env-default:"25"`
	SSLMode        string `yaml:"ssl_mode" env:"PGSSLMODE" env-default:"disable"`
	MigrationsPath string `yaml:"migrations_path" env:"PGMIGRATIONS_PATH" env-default:"migrations"`
}

// RedisConfig holds Redis configuration. An empty host disables the
// classification cache entirely.
type RedisConfig struct {
	Host     string `yaml:"host" env:"REDIS_HOST" env-default:""`
	Port     int    `yaml:"port" env:"REDIS_PORT" env-default:"6379"`
	Password string `yaml:"-" env:"REDIS_PASSWORD"` // Secret - not in YAML
	DB       int    `yaml:"db" env:"REDIS_DB" env-default:"0"`
}

// LERGConfig holds settings for the canonical LERG dataset provider.
type LERGConfig struct {
	// BaseURL is the LERG provider API base URL.
	BaseURL string `yaml:"base_url" env:"LERG_BASE_URL" env-default:"https://lerg.clearrate.io"`

	// APIKey authenticates bulk and single-record fetches.
	APIKey string `yaml:"-" env:"LERG_API_KEY"` // Secret - not in YAML

	// TimeoutSeconds bounds every remote call so a hung fetch cannot
	// wedge a sync indefinitely.
	TimeoutSeconds int `yaml:"timeout_seconds" env:"LERG_TIMEOUT_SECONDS" env-default:"30"`

	// SyncFreshnessHours is how old the oldest synced record may get
	// before the local replica counts as stale.
	SyncFreshnessHours int `yaml:"sync_freshness_hours" env:"LERG_SYNC_FRESHNESS_HOURS" env-default:"24"`

	// SeedFallback enables the embedded seed dataset as the last
	// lookup resolver when both store and remote come up empty.
	SeedFallback bool `yaml:"seed_fallback" env:"LERG_SEED_FALLBACK" env-default:"true"`
}

// Load reads configuration from config.yaml with environment variable overrides.
// The version parameter is injected at build time and set on the returned Config.
// Secrets (PGPASSWORD, REDIS_PASSWORD, LERG_API_KEY) must come from environment
// variables (yaml:"-" fields).
func Load(version string) (*Config, error) {
	cfg := &Config{
		Version: version,
	}

	if err := cleanenv.ReadConfig("config.yaml", cfg); err != nil {
		return nil, fmt.Errorf("failed to read config.yaml: %w", err)
	}

	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}

func (c *Config) validate() error {
	if c.LERG.BaseURL == "" {
		return fmt.Errorf("lerg.base_url is required")
	}
	if c.LERG.TimeoutSeconds <= 0 {
		return fmt.Errorf("lerg.timeout_seconds must be positive")
	}
	if c.LERG.SyncFreshnessHours <= 0 {
		return fmt.Errorf("lerg.sync_freshness_hours must be positive")
	}
	return nil
}

// ConnectionString returns a PostgreSQL connection string.
func (c *DatabaseConfig) ConnectionString() string {
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		c.Host, c.Port, c.User, c.Password, c.Database, c.SSLMode,
	)
}

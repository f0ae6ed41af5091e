// Package config loads and validates pipeline configuration via Viper.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/JakeFAU/ec-listings-pipeline/internal/extract"
	"github.com/JakeFAU/ec-listings-pipeline/internal/listing"
)

// Config captures all configuration knobs loaded via Viper. Values come
// from a config file, environment variables (LISTINGS_ prefix), or
// defaults, in that order of precedence.
type Config struct {
	Run       RunConfig                 `mapstructure:"run"`
	HTTP      HTTPConfig                `mapstructure:"http"`
	DB        DBConfig                  `mapstructure:"db"`
	Server    ServerConfig              `mapstructure:"server"`
	Export    ExportConfig              `mapstructure:"export"`
	Logging   LoggingConfig             `mapstructure:"logging"`
	Selectors map[string][]extract.Rule `mapstructure:"selectors"`
}

// RunConfig lists the target URLs and orchestration bounds.
type RunConfig struct {
	TargetURLs  []string `mapstructure:"target_urls"`
	Concurrency int      `mapstructure:"concurrency"`
}

// HTTPConfig configures fetch timeout, retry, and rate-limit behavior.
type HTTPConfig struct {
	UserAgent        string `mapstructure:"user_agent"`
	TimeoutSeconds   int    `mapstructure:"timeout_seconds"`
	MaxRetries       int    `mapstructure:"max_retries"`
	BackoffInitialMs int    `mapstructure:"backoff_initial_ms"`
	BackoffMaxMs     int    `mapstructure:"backoff_max_ms"`
	MinIntervalMs    int    `mapstructure:"min_interval_ms"`
}

// DBConfig controls access to the relational database. An empty DSN
// selects the in-memory store.
type DBConfig struct {
	DSN      string `mapstructure:"dsn"`
	Table    string `mapstructure:"table"`
	MaxConns int32  `mapstructure:"max_conns"`
	MinConns int32  `mapstructure:"min_conns"`
}

// ServerConfig controls the read-only HTTP surface.
type ServerConfig struct {
	Enabled bool `mapstructure:"enabled"`
	Port    int  `mapstructure:"port"`
}

// ExportConfig sets where CSV/Excel exports are written.
type ExportConfig struct {
	Dir string `mapstructure:"dir"`
}

// LoggingConfig toggles zap development features.
type LoggingConfig struct {
	Development bool `mapstructure:"development"`
}

// Load builds a Config from disk/environment.
func Load(path string) (Config, error) {
	v := viper.New()
	v.SetEnvPrefix("LISTINGS")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return Config{}, fmt.Errorf("read config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}

	return cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("run.concurrency", 1)
	v.SetDefault("http.user_agent", "ec-listings-bot/0.1")
	v.SetDefault("http.timeout_seconds", 30)
	v.SetDefault("http.max_retries", 3)
	v.SetDefault("http.backoff_initial_ms", 500)
	v.SetDefault("http.backoff_max_ms", 30000)
	v.SetDefault("http.min_interval_ms", 1000)
	v.SetDefault("db.table", "business_records")
	v.SetDefault("server.enabled", false)
	v.SetDefault("server.port", 8080)
	v.SetDefault("export.dir", "exports")
	v.SetDefault("logging.development", true)
}

// Validate enforces required values and reasonable limits.
func (c Config) Validate() error {
	if c.Run.Concurrency <= 0 {
		return fmt.Errorf("run.concurrency must be > 0")
	}
	if c.HTTP.TimeoutSeconds <= 0 {
		return fmt.Errorf("http.timeout_seconds must be > 0")
	}
	if c.HTTP.MaxRetries < 0 {
		return fmt.Errorf("http.max_retries must be >= 0")
	}
	if c.HTTP.MinIntervalMs < 0 {
		return fmt.Errorf("http.min_interval_ms must be >= 0")
	}
	if c.Server.Enabled && c.Server.Port <= 0 {
		return fmt.Errorf("server.port must be > 0 when the server is enabled")
	}
	return nil
}

// Timeout returns the per-request timeout as a duration.
func (c HTTPConfig) Timeout() time.Duration {
	return time.Duration(c.TimeoutSeconds) * time.Second
}

// BackoffInitial returns the base backoff delay.
func (c HTTPConfig) BackoffInitial() time.Duration {
	return time.Duration(c.BackoffInitialMs) * time.Millisecond
}

// BackoffMax returns the backoff delay cap.
func (c HTTPConfig) BackoffMax() time.Duration {
	return time.Duration(c.BackoffMaxMs) * time.Millisecond
}

// MinInterval returns the minimum delay between any two requests.
func (c HTTPConfig) MinInterval() time.Duration {
	return time.Duration(c.MinIntervalMs) * time.Millisecond
}

// ExtractorConfig converts configured selector rules into the
// extractor's config, falling back to the built-in set when none are
// configured.
func (c Config) ExtractorConfig() extract.Config {
	if len(c.Selectors) == 0 {
		return extract.DefaultConfig()
	}
	out := make(extract.Config, len(c.Selectors))
	for kind, rules := range c.Selectors {
		out[listing.FieldKind(kind)] = rules
	}
	return out
}

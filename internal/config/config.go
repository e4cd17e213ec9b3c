// Package config loads and validates service configuration via Viper.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config captures all service configuration knobs loaded via Viper.
type Config struct {
	Server   ServerConfig   `mapstructure:"server"`
	DB       DBConfig       `mapstructure:"db"`
	Upstream UpstreamConfig `mapstructure:"upstream"`
	Scraper  ScraperConfig  `mapstructure:"scraper"`
	Resolver ResolverConfig `mapstructure:"resolver"`
	Logging  LoggingConfig  `mapstructure:"logging"`
}

// ServerConfig controls HTTP server behavior.
type ServerConfig struct {
	Port            int `mapstructure:"port"`
	RequestTimeout  int `mapstructure:"request_timeout_seconds"`
	ShutdownTimeout int `mapstructure:"shutdown_timeout_seconds"`
}

// DBConfig controls access to the relational database.
type DBConfig struct {
	DSN             string `mapstructure:"dsn"`
	MaxConns        int32  `mapstructure:"max_conns"`
	MinConns        int32  `mapstructure:"min_conns"`
	ConnLifetimeMin int    `mapstructure:"conn_lifetime_minutes"`
}

// UpstreamConfig governs the catalog API client.
type UpstreamConfig struct {
	BaseURL        string  `mapstructure:"base_url"`
	TimeoutSeconds int     `mapstructure:"timeout_seconds"`
	RequestsPerSec float64 `mapstructure:"requests_per_sec"`
}

// ScraperConfig governs the HTML detail scraper.
type ScraperConfig struct {
	BaseURL        string `mapstructure:"base_url"`
	UserAgent      string `mapstructure:"user_agent"`
	TimeoutSeconds int    `mapstructure:"timeout_seconds"`
}

// ResolverConfig tunes the cache-or-fetch engine.
type ResolverConfig struct {
	ChunkSize         int `mapstructure:"chunk_size"`
	ChunkStaggerMs    int `mapstructure:"chunk_stagger_ms"`
	MaxCommitAttempts int `mapstructure:"max_commit_attempts"`
	CommitBaseMs      int `mapstructure:"commit_base_ms"`
	CommitJitterMs    int `mapstructure:"commit_jitter_ms"`
}

// LoggingConfig toggles zap development features.
type LoggingConfig struct {
	Development bool `mapstructure:"development"`
}

// Load builds a Config from disk/environment.
func Load(path string) (Config, error) {
	v := viper.New()
	v.SetEnvPrefix("AUDIOBOOKDB")
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
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.request_timeout_seconds", 60)
	v.SetDefault("server.shutdown_timeout_seconds", 15)
	v.SetDefault("db.max_conns", 8)
	v.SetDefault("db.min_conns", 1)
	v.SetDefault("db.conn_lifetime_minutes", 30)
	v.SetDefault("upstream.timeout_seconds", 20)
	v.SetDefault("upstream.requests_per_sec", 10)
	v.SetDefault("scraper.timeout_seconds", 20)
	v.SetDefault("resolver.chunk_size", 50)
	v.SetDefault("resolver.chunk_stagger_ms", 200)
	v.SetDefault("resolver.max_commit_attempts", 10)
	v.SetDefault("resolver.commit_base_ms", 150)
	v.SetDefault("resolver.commit_jitter_ms", 100)
	v.SetDefault("logging.development", false)
}

// Validate enforces required values and reasonable limits.
func (c Config) Validate() error {
	if c.Server.Port <= 0 {
		return fmt.Errorf("server.port must be > 0")
	}
	if c.DB.DSN == "" {
		return fmt.Errorf("db.dsn is required")
	}
	if c.Resolver.ChunkSize <= 0 {
		return fmt.Errorf("resolver.chunk_size must be > 0")
	}
	if c.Resolver.MaxCommitAttempts <= 0 {
		return fmt.Errorf("resolver.max_commit_attempts must be > 0")
	}
	if c.Upstream.TimeoutSeconds <= 0 {
		return fmt.Errorf("upstream.timeout_seconds must be > 0")
	}
	return nil
}

// UpstreamTimeout converts the configured upstream timeout into a duration.
func (c Config) UpstreamTimeout() time.Duration {
	return time.Duration(c.Upstream.TimeoutSeconds) * time.Second
}

// ScraperTimeout converts the configured scraper timeout into a duration.
func (c Config) ScraperTimeout() time.Duration {
	return time.Duration(c.Scraper.TimeoutSeconds) * time.Second
}

// ChunkStagger converts the inter-chunk delay into a duration.
func (c Config) ChunkStagger() time.Duration {
	return time.Duration(c.Resolver.ChunkStaggerMs) * time.Millisecond
}

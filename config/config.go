// Package config loads transcache settings from defaults, an optional YAML
// file and TRANSCACHE_* environment variables.
package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Store backends.
const (
	BackendMemory   = "memory"
	BackendRedis    = "redis"
	BackendPostgres = "postgres"
)

// Config holds all configuration for transcache.
type Config struct {
	Store      StoreConfig      `mapstructure:"store"`
	OpenAI     OpenAIConfig     `mapstructure:"openai"`
	Retry      RetryConfig      `mapstructure:"retry"`
	RateLimit  RateLimitConfig  `mapstructure:"rate_limit"`
	Translator TranslatorConfig `mapstructure:"translator"`
	Log        LogConfig        `mapstructure:"log"`
}

// StoreConfig selects and configures the cache backend.
type StoreConfig struct {
	Backend  string         `mapstructure:"backend"`
	Memory   MemoryConfig   `mapstructure:"memory"`
	Redis    RedisConfig    `mapstructure:"redis"`
	Postgres PostgresConfig `mapstructure:"postgres"`
}

// MemoryConfig configures the in-process store.
type MemoryConfig struct {
	TTL time.Duration `mapstructure:"ttl"`
}

// RedisConfig configures the Redis store.
type RedisConfig struct {
	URL       string        `mapstructure:"url"`
	KeyPrefix string        `mapstructure:"key_prefix"`
	TTL       time.Duration `mapstructure:"ttl"`
}

// PostgresConfig configures the Postgres store.
type PostgresConfig struct {
	DSN         string `mapstructure:"dsn"`
	Table       string `mapstructure:"table"`
	AutoMigrate bool   `mapstructure:"auto_migrate"`
}

// OpenAIConfig configures the OpenAI provider.
type OpenAIConfig struct {
	APIKey      string  `mapstructure:"api_key"`
	Model       string  `mapstructure:"model"`
	BaseURL     string  `mapstructure:"base_url"`
	Temperature float32 `mapstructure:"temperature"`
}

// RetryConfig configures provider retries.
type RetryConfig struct {
	Enabled    bool          `mapstructure:"enabled"`
	MaxRetries int           `mapstructure:"max_retries"`
	BaseDelay  time.Duration `mapstructure:"base_delay"`
	MaxDelay   time.Duration `mapstructure:"max_delay"`
}

// RateLimitConfig configures the provider token bucket.
type RateLimitConfig struct {
	Enabled           bool `mapstructure:"enabled"`
	RequestsPerMinute int  `mapstructure:"requests_per_minute"`
	Burst             int  `mapstructure:"burst"`
}

// TranslatorConfig tunes the translator.
type TranslatorConfig struct {
	BatchConcurrency int `mapstructure:"batch_concurrency"`
}

// LogConfig configures the zerolog logger.
type LogConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"` // "console" or "json"
}

// Load reads configuration. configPath may name a YAML file; when empty,
// config.yaml is looked up in the working directory and
// $HOME/.config/transcache, and a missing file is not an error.
func Load(configPath string) (*Config, error) {
	v := viper.New()

	if configPath != "" {
		v.SetConfigFile(configPath)
	} else {
		v.AddConfigPath(".")
		v.AddConfigPath("$HOME/.config/transcache")
		v.SetConfigName("config")
		v.SetConfigType("yaml")
	}

	setDefaults(v)

	v.SetEnvPrefix("TRANSCACHE")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	// The bare OpenAI variable is honoured too.
	if err := v.BindEnv("openai.api_key", "TRANSCACHE_OPENAI_API_KEY", "OPENAI_API_KEY"); err != nil {
		return nil, fmt.Errorf("binding openai.api_key: %w", err)
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if configPath != "" || !errors.As(err, &notFound) {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unable to decode config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("store.backend", BackendMemory)
	v.SetDefault("store.memory.ttl", time.Duration(0))
	v.SetDefault("store.redis.url", "redis://localhost:6379/0")
	v.SetDefault("store.redis.key_prefix", "transcache:")
	v.SetDefault("store.redis.ttl", time.Duration(0))
	v.SetDefault("store.postgres.dsn", "")
	v.SetDefault("store.postgres.table", "translation_cache")
	v.SetDefault("store.postgres.auto_migrate", true)

	v.SetDefault("openai.api_key", "")
	v.SetDefault("openai.model", "gpt-4o-mini")
	v.SetDefault("openai.base_url", "")
	v.SetDefault("openai.temperature", 0.3)

	v.SetDefault("retry.enabled", true)
	v.SetDefault("retry.max_retries", 3)
	v.SetDefault("retry.base_delay", time.Second)
	v.SetDefault("retry.max_delay", 30*time.Second)

	v.SetDefault("rate_limit.enabled", false)
	v.SetDefault("rate_limit.requests_per_minute", 60)
	v.SetDefault("rate_limit.burst", 0)

	v.SetDefault("translator.batch_concurrency", 8)

	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "console")
}

// Validate checks the settings that would otherwise fail late.
func (c *Config) Validate() error {
	switch c.Store.Backend {
	case BackendMemory:
	case BackendRedis:
		if c.Store.Redis.URL == "" {
			return errors.New("store.redis.url is required for the redis backend")
		}
	case BackendPostgres:
		if c.Store.Postgres.DSN == "" {
			return errors.New("store.postgres.dsn is required for the postgres backend")
		}
	default:
		return fmt.Errorf("unknown store backend %q", c.Store.Backend)
	}

	if c.Translator.BatchConcurrency <= 0 {
		return fmt.Errorf("translator.batch_concurrency must be positive, got %d", c.Translator.BatchConcurrency)
	}
	if c.Retry.MaxRetries < 0 {
		return fmt.Errorf("retry.max_retries must not be negative, got %d", c.Retry.MaxRetries)
	}

	switch c.Log.Format {
	case "console", "json":
	default:
		return fmt.Errorf("unknown log format %q", c.Log.Format)
	}
	return nil
}

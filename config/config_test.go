package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"
)

type ConfigTestSuite struct {
	suite.Suite
	tempDir string
	origDir string
}

func TestConfigSuite(t *testing.T) {
	suite.Run(t, new(ConfigTestSuite))
}

func (s *ConfigTestSuite) SetupTest() {
	var err error
	s.origDir, err = os.Getwd()
	require.NoError(s.T(), err)

	s.tempDir = s.T().TempDir()
	require.NoError(s.T(), os.Chdir(s.tempDir))

	// Keep the host environment out of the results.
	s.T().Setenv("HOME", s.tempDir)
	for _, key := range []string{
		"OPENAI_API_KEY",
		"TRANSCACHE_OPENAI_API_KEY",
		"TRANSCACHE_STORE_BACKEND",
		"TRANSCACHE_STORE_REDIS_URL",
		"TRANSCACHE_STORE_REDIS_TTL",
		"TRANSCACHE_LOG_LEVEL",
	} {
		s.T().Setenv(key, "")
	}
}

func (s *ConfigTestSuite) TearDownTest() {
	if s.origDir != "" {
		os.Chdir(s.origDir)
	}
}

func (s *ConfigTestSuite) writeConfig(name, content string) string {
	path := filepath.Join(s.tempDir, name)
	require.NoError(s.T(), os.WriteFile(path, []byte(content), 0o644))
	return path
}

func (s *ConfigTestSuite) TestLoadDefaults() {
	cfg, err := Load("")
	require.NoError(s.T(), err)

	assert.Equal(s.T(), BackendMemory, cfg.Store.Backend)
	assert.Equal(s.T(), time.Duration(0), cfg.Store.Memory.TTL)
	assert.Equal(s.T(), "transcache:", cfg.Store.Redis.KeyPrefix)
	assert.Equal(s.T(), "translation_cache", cfg.Store.Postgres.Table)
	assert.True(s.T(), cfg.Store.Postgres.AutoMigrate)
	assert.Equal(s.T(), "gpt-4o-mini", cfg.OpenAI.Model)
	assert.InDelta(s.T(), 0.3, cfg.OpenAI.Temperature, 0.0001)
	assert.True(s.T(), cfg.Retry.Enabled)
	assert.Equal(s.T(), 3, cfg.Retry.MaxRetries)
	assert.Equal(s.T(), time.Second, cfg.Retry.BaseDelay)
	assert.Equal(s.T(), 30*time.Second, cfg.Retry.MaxDelay)
	assert.False(s.T(), cfg.RateLimit.Enabled)
	assert.Equal(s.T(), 60, cfg.RateLimit.RequestsPerMinute)
	assert.Equal(s.T(), 8, cfg.Translator.BatchConcurrency)
	assert.Equal(s.T(), "info", cfg.Log.Level)
	assert.Equal(s.T(), "console", cfg.Log.Format)
}

func (s *ConfigTestSuite) TestLoadFromWorkingDirectory() {
	s.writeConfig("config.yaml", `
store:
  backend: redis
  redis:
    url: redis://cache:6379/2
    key_prefix: "tc:"
    ttl: 24h
log:
  level: debug
  format: json
`)

	cfg, err := Load("")
	require.NoError(s.T(), err)

	assert.Equal(s.T(), BackendRedis, cfg.Store.Backend)
	assert.Equal(s.T(), "redis://cache:6379/2", cfg.Store.Redis.URL)
	assert.Equal(s.T(), "tc:", cfg.Store.Redis.KeyPrefix)
	assert.Equal(s.T(), 24*time.Hour, cfg.Store.Redis.TTL)
	assert.Equal(s.T(), "debug", cfg.Log.Level)
	assert.Equal(s.T(), "json", cfg.Log.Format)
	// Untouched sections keep their defaults.
	assert.Equal(s.T(), "gpt-4o-mini", cfg.OpenAI.Model)
}

func (s *ConfigTestSuite) TestLoadExplicitPath() {
	path := s.writeConfig("custom.yaml", `
store:
  backend: postgres
  postgres:
    dsn: postgres://localhost/transcache
    table: cache_entries
    auto_migrate: false
openai:
  model: gpt-4o
  base_url: http://localhost:8080/v1
retry:
  max_retries: 5
  base_delay: 250ms
rate_limit:
  enabled: true
  requests_per_minute: 120
  burst: 10
translator:
  batch_concurrency: 4
`)

	cfg, err := Load(path)
	require.NoError(s.T(), err)

	assert.Equal(s.T(), BackendPostgres, cfg.Store.Backend)
	assert.Equal(s.T(), "postgres://localhost/transcache", cfg.Store.Postgres.DSN)
	assert.Equal(s.T(), "cache_entries", cfg.Store.Postgres.Table)
	assert.False(s.T(), cfg.Store.Postgres.AutoMigrate)
	assert.Equal(s.T(), "gpt-4o", cfg.OpenAI.Model)
	assert.Equal(s.T(), "http://localhost:8080/v1", cfg.OpenAI.BaseURL)
	assert.Equal(s.T(), 5, cfg.Retry.MaxRetries)
	assert.Equal(s.T(), 250*time.Millisecond, cfg.Retry.BaseDelay)
	assert.True(s.T(), cfg.RateLimit.Enabled)
	assert.Equal(s.T(), 120, cfg.RateLimit.RequestsPerMinute)
	assert.Equal(s.T(), 10, cfg.RateLimit.Burst)
	assert.Equal(s.T(), 4, cfg.Translator.BatchConcurrency)
}

func (s *ConfigTestSuite) TestLoadMissingExplicitFile() {
	_, err := Load(filepath.Join(s.tempDir, "nope.yaml"))
	assert.Error(s.T(), err)
}

func (s *ConfigTestSuite) TestEnvironmentOverrides() {
	s.writeConfig("config.yaml", `
store:
  backend: memory
log:
  level: warn
`)
	s.T().Setenv("TRANSCACHE_STORE_BACKEND", "redis")
	s.T().Setenv("TRANSCACHE_STORE_REDIS_URL", "redis://env:6379/0")
	s.T().Setenv("TRANSCACHE_STORE_REDIS_TTL", "90m")
	s.T().Setenv("TRANSCACHE_LOG_LEVEL", "error")

	cfg, err := Load("")
	require.NoError(s.T(), err)

	assert.Equal(s.T(), BackendRedis, cfg.Store.Backend)
	assert.Equal(s.T(), "redis://env:6379/0", cfg.Store.Redis.URL)
	assert.Equal(s.T(), 90*time.Minute, cfg.Store.Redis.TTL)
	assert.Equal(s.T(), "error", cfg.Log.Level)
}

func (s *ConfigTestSuite) TestOpenAIKeyFromEnv() {
	s.T().Setenv("OPENAI_API_KEY", "sk-plain")
	cfg, err := Load("")
	require.NoError(s.T(), err)
	assert.Equal(s.T(), "sk-plain", cfg.OpenAI.APIKey)

	s.T().Setenv("TRANSCACHE_OPENAI_API_KEY", "sk-prefixed")
	cfg, err = Load("")
	require.NoError(s.T(), err)
	assert.Equal(s.T(), "sk-prefixed", cfg.OpenAI.APIKey)
}

func (s *ConfigTestSuite) TestLoadRejectsInvalid() {
	s.writeConfig("config.yaml", `
store:
  backend: sqlite
`)
	_, err := Load("")
	require.Error(s.T(), err)
	assert.Contains(s.T(), err.Error(), "sqlite")
}

func TestValidate(t *testing.T) {
	valid := func() Config {
		return Config{
			Store:      StoreConfig{Backend: BackendMemory},
			Translator: TranslatorConfig{BatchConcurrency: 1},
			Log:        LogConfig{Format: "console"},
		}
	}

	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{"valid", func(*Config) {}, ""},
		{"redis without url", func(c *Config) { c.Store.Backend = BackendRedis }, "store.redis.url"},
		{"redis with url", func(c *Config) {
			c.Store.Backend = BackendRedis
			c.Store.Redis.URL = "redis://localhost:6379"
		}, ""},
		{"postgres without dsn", func(c *Config) { c.Store.Backend = BackendPostgres }, "store.postgres.dsn"},
		{"unknown backend", func(c *Config) { c.Store.Backend = "etcd" }, "unknown store backend"},
		{"zero concurrency", func(c *Config) { c.Translator.BatchConcurrency = 0 }, "batch_concurrency"},
		{"negative retries", func(c *Config) { c.Retry.MaxRetries = -1 }, "max_retries"},
		{"unknown log format", func(c *Config) { c.Log.Format = "xml" }, "log format"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := valid()
			tt.mutate(&cfg)
			err := cfg.Validate()
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

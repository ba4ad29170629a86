package config

import (
	"fmt"
	"time"

	"github.com/mitchellh/go-homedir"
	"github.com/spf13/viper"
)

// Config holds the entire application configuration.
type Config struct {
	Logger  LoggerConfig  `mapstructure:"logger" yaml:"logger"`
	Cache   CacheConfig   `mapstructure:"cache" yaml:"cache"`
	Oracle  OracleConfig  `mapstructure:"oracle" yaml:"oracle"`
	Browser BrowserConfig `mapstructure:"browser" yaml:"browser"`
	Server  ServerConfig  `mapstructure:"server" yaml:"server"`
}

// LoggerConfig holds all the configuration for the logger.
type LoggerConfig struct {
	Level      string `mapstructure:"level" yaml:"level"`
	Format     string `mapstructure:"format" yaml:"format"`
	LogFile    string `mapstructure:"log_file" yaml:"log_file"`
	MaxSizeMB  int    `mapstructure:"max_size_mb" yaml:"max_size_mb"`
	MaxBackups int    `mapstructure:"max_backups" yaml:"max_backups"`
	MaxAgeDays int    `mapstructure:"max_age_days" yaml:"max_age_days"`
	Compress   bool   `mapstructure:"compress" yaml:"compress"`
	Colors     bool   `mapstructure:"colors" yaml:"colors"`
}

// CacheBackend names a persistence backend for the resolution cache.
type CacheBackend string

const (
	BackendSQLite   CacheBackend = "sqlite"
	BackendPostgres CacheBackend = "postgres"
	BackendRedis    CacheBackend = "redis"
	BackendMemory   CacheBackend = "memory"
)

// RedisConfig holds the connection details for a Redis cache backend.
type RedisConfig struct {
	Addr     string `mapstructure:"addr" yaml:"addr"`
	Password string `mapstructure:"password" yaml:"-"`
	DB       int    `mapstructure:"db" yaml:"db"`
}

// CacheConfig selects and configures the resolution cache. Disabling the
// cache routes every resolution through the oracle and makes writes no-ops.
type CacheConfig struct {
	Enabled bool         `mapstructure:"enabled" yaml:"enabled"`
	Backend CacheBackend `mapstructure:"backend" yaml:"backend"`
	// Path is the sqlite database file. Supports "~" expansion.
	Path string `mapstructure:"path" yaml:"path"`
	// DSN is the postgres connection string.
	DSN   string      `mapstructure:"dsn" yaml:"-"`
	Redis RedisConfig `mapstructure:"redis" yaml:"redis"`
}

// LLMProvider defines the supported reasoning model providers.
type LLMProvider string

const (
	ProviderGemini LLMProvider = "gemini"
	ProviderOpenAI LLMProvider = "openai"
	ProviderOllama LLMProvider = "ollama"
)

// OracleConfig configures the reasoning model the oracle queries.
type OracleConfig struct {
	Provider          LLMProvider   `mapstructure:"provider" yaml:"provider"`
	Model             string        `mapstructure:"model" yaml:"model"`
	APIKey            string        `mapstructure:"api_key" yaml:"-"`
	Endpoint          string        `mapstructure:"endpoint" yaml:"endpoint"`
	APITimeout        time.Duration `mapstructure:"timeout" yaml:"timeout"`
	Temperature       float64       `mapstructure:"temperature" yaml:"temperature"`
	MaxTokens         int           `mapstructure:"max_tokens" yaml:"max_tokens"`
	RequestsPerMinute int           `mapstructure:"requests_per_minute" yaml:"requests_per_minute"`
}

// SettleConfig tunes the document-quiescence wait that closes every action.
type SettleConfig struct {
	// Quiet is how long the document must go without mutations to count as
	// settled.
	Quiet time.Duration `mapstructure:"quiet" yaml:"quiet"`
	// Timeout bounds the whole wait; exceeding it is logged, never fatal.
	Timeout time.Duration `mapstructure:"timeout" yaml:"timeout"`
}

// BrowserConfig holds settings for the headless browser instances.
type BrowserConfig struct {
	Headless      bool          `mapstructure:"headless" yaml:"headless"`
	ChromePath    string        `mapstructure:"chrome_path" yaml:"chrome_path"`
	UserAgent     string        `mapstructure:"user_agent" yaml:"user_agent"`
	WindowWidth   int           `mapstructure:"window_width" yaml:"window_width"`
	WindowHeight  int           `mapstructure:"window_height" yaml:"window_height"`
	NavTimeout    time.Duration `mapstructure:"nav_timeout" yaml:"nav_timeout"`
	Settle        SettleConfig  `mapstructure:"settle" yaml:"settle"`
	SnapshotLimit int           `mapstructure:"snapshot_limit" yaml:"snapshot_limit"`
}

// ServerConfig configures the HTTP session server.
type ServerConfig struct {
	Addr string `mapstructure:"addr" yaml:"addr"`
}

// SetDefaults initializes default values for all configuration parameters.
func SetDefaults(v *viper.Viper) {
	// -- Logger --
	v.SetDefault("logger.level", "info")
	v.SetDefault("logger.format", "console")
	v.SetDefault("logger.log_file", "")
	v.SetDefault("logger.max_size_mb", 50)
	v.SetDefault("logger.max_backups", 3)
	v.SetDefault("logger.max_age_days", 14)
	v.SetDefault("logger.compress", true)
	v.SetDefault("logger.colors", true)

	// -- Cache --
	v.SetDefault("cache.enabled", true)
	v.SetDefault("cache.backend", string(BackendSQLite))
	v.SetDefault("cache.path", "~/.stagehand/cache.db")
	v.SetDefault("cache.dsn", "")
	v.SetDefault("cache.redis.addr", "127.0.0.1:6379")
	v.SetDefault("cache.redis.db", 0)

	// -- Oracle --
	v.SetDefault("oracle.provider", string(ProviderGemini))
	v.SetDefault("oracle.model", "gemini-2.5-flash")
	v.SetDefault("oracle.endpoint", "")
	v.SetDefault("oracle.timeout", "60s")
	v.SetDefault("oracle.temperature", 0.2)
	v.SetDefault("oracle.max_tokens", 2048)
	v.SetDefault("oracle.requests_per_minute", 30)

	// -- Browser --
	v.SetDefault("browser.headless", true)
	v.SetDefault("browser.window_width", 1280)
	v.SetDefault("browser.window_height", 900)
	v.SetDefault("browser.nav_timeout", "45s")
	v.SetDefault("browser.settle.quiet", "500ms")
	v.SetDefault("browser.settle.timeout", "10s")
	v.SetDefault("browser.snapshot_limit", 150)

	// -- Server --
	v.SetDefault("server.addr", "127.0.0.1:8123")
}

// NewDefaultConfig creates a configuration populated with default values.
func NewDefaultConfig() *Config {
	v := viper.New()
	SetDefaults(v)

	cfg, err := NewConfigFromViper(v)
	if err != nil {
		// Defaults are maintained to always validate.
		panic(fmt.Sprintf("default configuration is invalid: %v", err))
	}
	return cfg
}

// NewConfigFromViper builds and validates a configuration from a viper
// instance that already has defaults, file contents, and env bindings applied.
func NewConfigFromViper(v *viper.Viper) (*Config, error) {
	// Secrets are env-only; never read from a config file on disk.
	_ = v.BindEnv("oracle.api_key", "STAGEHAND_ORACLE_API_KEY")
	_ = v.BindEnv("cache.dsn", "STAGEHAND_CACHE_DSN")
	_ = v.BindEnv("cache.redis.password", "STAGEHAND_CACHE_REDIS_PASSWORD")

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("error unmarshaling config: %w", err)
	}

	if err := cfg.expandPaths(); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return &cfg, nil
}

// expandPaths resolves "~" in user-facing path fields.
func (c *Config) expandPaths() error {
	var err error
	if c.Cache.Path != "" {
		if c.Cache.Path, err = homedir.Expand(c.Cache.Path); err != nil {
			return fmt.Errorf("expanding cache.path: %w", err)
		}
	}
	if c.Logger.LogFile != "" {
		if c.Logger.LogFile, err = homedir.Expand(c.Logger.LogFile); err != nil {
			return fmt.Errorf("expanding logger.log_file: %w", err)
		}
	}
	return nil
}

// Validate checks the configuration for required fields and sane values.
func (c *Config) Validate() error {
	if c.Logger.Format != "console" && c.Logger.Format != "json" {
		return fmt.Errorf("logger.format must be \"console\" or \"json\", got %q", c.Logger.Format)
	}
	if err := c.Cache.Validate(); err != nil {
		return fmt.Errorf("cache configuration invalid: %w", err)
	}
	if err := c.Oracle.Validate(); err != nil {
		return fmt.Errorf("oracle configuration invalid: %w", err)
	}
	if err := c.Browser.Validate(); err != nil {
		return fmt.Errorf("browser configuration invalid: %w", err)
	}
	if c.Server.Addr == "" {
		return fmt.Errorf("server.addr must not be empty")
	}
	return nil
}

// Validate checks the cache backend selection. Connection details are only
// required for the backend actually chosen, and not at all when disabled.
func (c *CacheConfig) Validate() error {
	if !c.Enabled {
		return nil
	}
	switch c.Backend {
	case BackendSQLite:
		if c.Path == "" {
			return fmt.Errorf("cache.path is required for the sqlite backend")
		}
	case BackendPostgres:
		if c.DSN == "" {
			return fmt.Errorf("cache.dsn is required for the postgres backend (set STAGEHAND_CACHE_DSN)")
		}
	case BackendRedis:
		if c.Redis.Addr == "" {
			return fmt.Errorf("cache.redis.addr is required for the redis backend")
		}
	case BackendMemory:
		// Nothing to configure.
	default:
		return fmt.Errorf("unknown cache.backend %q", string(c.Backend))
	}
	return nil
}

// Validate checks the oracle settings. API key presence is checked when the
// client is constructed, not here, so cache-only commands work without one.
func (c *OracleConfig) Validate() error {
	switch c.Provider {
	case ProviderGemini, ProviderOpenAI, ProviderOllama:
	default:
		return fmt.Errorf("unknown oracle.provider %q", string(c.Provider))
	}
	if c.Model == "" {
		return fmt.Errorf("oracle.model must not be empty")
	}
	if c.APITimeout <= 0 {
		return fmt.Errorf("oracle.timeout must be a positive duration")
	}
	if c.Temperature < 0 || c.Temperature > 2 {
		return fmt.Errorf("oracle.temperature must be between 0 and 2")
	}
	if c.RequestsPerMinute < 0 {
		return fmt.Errorf("oracle.requests_per_minute must not be negative")
	}
	return nil
}

// Validate checks the browser and settle timings.
func (c *BrowserConfig) Validate() error {
	if c.WindowWidth <= 0 || c.WindowHeight <= 0 {
		return fmt.Errorf("browser window dimensions must be positive")
	}
	if c.NavTimeout <= 0 {
		return fmt.Errorf("browser.nav_timeout must be a positive duration")
	}
	if c.Settle.Quiet <= 0 {
		return fmt.Errorf("browser.settle.quiet must be a positive duration")
	}
	if c.Settle.Timeout < c.Settle.Quiet {
		return fmt.Errorf("browser.settle.timeout must be at least browser.settle.quiet")
	}
	if c.SnapshotLimit <= 0 {
		return fmt.Errorf("browser.snapshot_limit must be a positive integer")
	}
	return nil
}

// Package config provides configuration management for the curation gate.
// Settings come from defaults, an optional YAML config file, and environment
// variables with the CURATION_ prefix, in increasing order of precedence.
//
// Nested keys map to environment variables by upper-casing and replacing dots
// with underscores, so storage.engine is read from CURATION_STORAGE_ENGINE.
package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// EnvPrefix is prepended to every environment variable the loader reads.
const EnvPrefix = "CURATION"

// Config holds all configuration settings for the curation gate.
type Config struct {
	Storage     StorageConfig     `mapstructure:"storage"`
	LLM         LLMConfig         `mapstructure:"llm"`
	Redis       RedisConfig       `mapstructure:"redis"`
	Curation    CurationConfig    `mapstructure:"curation"`
	Logging     LoggingConfig     `mapstructure:"logging"`
	Maintenance MaintenanceConfig `mapstructure:"maintenance"`
	Backup      BackupConfig      `mapstructure:"backup"`
	Server      ServerConfig      `mapstructure:"server"`
}

// StorageConfig contains database and storage configuration.
type StorageConfig struct {
	Engine      string `mapstructure:"engine"`       // sqlite or postgres (default: sqlite)
	DataPath    string `mapstructure:"data_path"`    // Directory holding the sqlite file (default: ./data)
	PostgresDSN string `mapstructure:"postgres_dsn"` // Required when engine is postgres
}

// BackupDir returns the snapshot directory, defaulting to <data_path>/backups.
func (c *Config) BackupDir() string {
	if c.Backup.Dir != "" {
		return c.Backup.Dir
	}
	return strings.TrimRight(c.Storage.DataPath, "/") + "/backups"
}

// SQLitePath returns the sqlite database file under DataPath.
func (s StorageConfig) SQLitePath() string {
	return strings.TrimRight(s.DataPath, "/") + "/curation.db"
}

// LLMConfig contains LLM provider configuration.
type LLMConfig struct {
	Provider         string        `mapstructure:"provider"`          // Curator provider: ollama, openai, anthropic (default: ollama)
	FallbackProvider string        `mapstructure:"fallback_provider"` // General-purpose fallback provider, empty disables it
	OllamaURL        string        `mapstructure:"ollama_url"`
	OllamaModel      string        `mapstructure:"ollama_model"`
	EmbeddingModel   string        `mapstructure:"embedding_model"`
	OpenAIAPIKey     string        `mapstructure:"openai_api_key"`
	OpenAIModel      string        `mapstructure:"openai_model"`
	AnthropicAPIKey  string        `mapstructure:"anthropic_api_key"`
	AnthropicModel   string        `mapstructure:"anthropic_model"`
	RequestTimeout   time.Duration `mapstructure:"request_timeout"`   // Per external call
	RequestsPerSec   float64       `mapstructure:"requests_per_sec"`  // Gateway rate limit, 0 disables it
	Burst            int           `mapstructure:"burst"`
}

// RedisConfig configures the optional fingerprint cache.
type RedisConfig struct {
	Enabled bool          `mapstructure:"enabled"`
	URL     string        `mapstructure:"url"`
	TTL     time.Duration `mapstructure:"ttl"`
}

// CurationConfig contains queue and analysis settings.
type CurationConfig struct {
	AnalysisTimeout       time.Duration `mapstructure:"analysis_timeout"`        // Hard bound on auto-analysis (default: 30s)
	MaxConcurrentAnalyses int64         `mapstructure:"max_concurrent_analyses"` // Weighted semaphore size
	CuratorCacheTTL       time.Duration `mapstructure:"curator_cache_ttl"`       // How long a resolved curator profile is reused
	PolicyPath            string        `mapstructure:"policy_path"`             // Decision policy YAML, empty uses built-in defaults
	WatchPolicy           bool          `mapstructure:"watch_policy"`            // Reload the policy file when it changes
	CuratorProfilePath    string        `mapstructure:"curator_profile_path"`    // YAML curator profile, empty uses the built-in prompt
}

// LoggingConfig controls the logrus logger.
type LoggingConfig struct {
	Level  string `mapstructure:"level"`  // debug, info, warn, error (default: info)
	Format string `mapstructure:"format"` // json or text (default: json)
}

// MaintenanceConfig controls the scheduled maintenance loop.
type MaintenanceConfig struct {
	Interval       time.Duration `mapstructure:"interval"`
	BackupInterval time.Duration `mapstructure:"backup_interval"` // 0 disables snapshots in the loop
}

// BackupConfig controls sqlite snapshots.
type BackupConfig struct {
	Dir     string `mapstructure:"dir"` // Default: <data_path>/backups
	Verify  bool   `mapstructure:"verify"`
	Hourly  int    `mapstructure:"hourly"`
	Daily   int    `mapstructure:"daily"`
	Weekly  int    `mapstructure:"weekly"`
	Monthly int    `mapstructure:"monthly"`
}

// ServerConfig controls the HTTP API.
type ServerConfig struct {
	Addr            string        `mapstructure:"addr"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
	RequestsPerSec  float64       `mapstructure:"requests_per_sec"` // 0 disables API rate limiting
	Burst           int           `mapstructure:"burst"`
}

// LoadConfig loads configuration from defaults and environment variables.
func LoadConfig() (*Config, error) {
	return Load("")
}

// Load reads configuration. When configFile is empty the loader looks for an
// optional curation.yaml in the working directory; a missing file is not an error.
func Load(configFile string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	if configFile != "" {
		v.SetConfigFile(configFile)
	} else {
		v.SetConfigName("curation")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
	}

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("config: failed to read config file: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("config: failed to decode: %w", err)
	}

	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("storage.engine", "sqlite")
	v.SetDefault("storage.data_path", "./data")
	v.SetDefault("storage.postgres_dsn", "")

	v.SetDefault("llm.provider", "ollama")
	v.SetDefault("llm.fallback_provider", "")
	v.SetDefault("llm.ollama_url", "http://localhost:11434")
	v.SetDefault("llm.ollama_model", "qwen2.5:7b")
	v.SetDefault("llm.embedding_model", "nomic-embed-text")
	v.SetDefault("llm.openai_api_key", "")
	v.SetDefault("llm.openai_model", "gpt-4")
	v.SetDefault("llm.anthropic_api_key", "")
	v.SetDefault("llm.anthropic_model", "claude-3-5-sonnet-20241022")
	v.SetDefault("llm.request_timeout", "30s")
	v.SetDefault("llm.requests_per_sec", 0.0)
	v.SetDefault("llm.burst", 1)

	v.SetDefault("redis.enabled", false)
	v.SetDefault("redis.url", "redis://localhost:6379")
	v.SetDefault("redis.ttl", "24h")

	v.SetDefault("curation.analysis_timeout", "30s")
	v.SetDefault("curation.max_concurrent_analyses", 4)
	v.SetDefault("curation.curator_cache_ttl", "5m")
	v.SetDefault("curation.policy_path", "")
	v.SetDefault("curation.watch_policy", false)
	v.SetDefault("curation.curator_profile_path", "")

	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "json")

	v.SetDefault("maintenance.interval", "1h")
	v.SetDefault("maintenance.backup_interval", "0s")

	v.SetDefault("backup.dir", "")
	v.SetDefault("backup.verify", true)
	v.SetDefault("backup.hourly", 24)
	v.SetDefault("backup.daily", 7)
	v.SetDefault("backup.weekly", 4)
	v.SetDefault("backup.monthly", 12)

	v.SetDefault("server.addr", "127.0.0.1:8080")
	v.SetDefault("server.shutdown_timeout", "10s")
	v.SetDefault("server.requests_per_sec", 0.0)
	v.SetDefault("server.burst", 20)
}

// Validate checks that the configuration is usable.
func (c *Config) Validate() error {
	switch c.Storage.Engine {
	case "sqlite":
		if c.Storage.DataPath == "" {
			return errors.New("storage.data_path is required for sqlite")
		}
	case "postgres":
		if c.Storage.PostgresDSN == "" {
			return errors.New("storage.postgres_dsn is required for postgres")
		}
	default:
		return fmt.Errorf("unsupported storage engine %q", c.Storage.Engine)
	}

	for _, p := range []string{c.LLM.Provider, c.LLM.FallbackProvider} {
		switch p {
		case "", "ollama", "openai", "anthropic":
		default:
			return fmt.Errorf("unsupported llm provider %q", p)
		}
	}
	if c.LLM.Provider == "" {
		return errors.New("llm.provider is required")
	}
	if c.LLM.RequestTimeout <= 0 {
		return fmt.Errorf("llm.request_timeout must be positive (got %v)", c.LLM.RequestTimeout)
	}
	if c.LLM.RequestsPerSec < 0 {
		return fmt.Errorf("llm.requests_per_sec must be non-negative (got %v)", c.LLM.RequestsPerSec)
	}
	if c.Curation.AnalysisTimeout <= 0 {
		return fmt.Errorf("curation.analysis_timeout must be positive (got %v)", c.Curation.AnalysisTimeout)
	}
	if c.Curation.MaxConcurrentAnalyses < 1 {
		return fmt.Errorf("curation.max_concurrent_analyses must be at least 1 (got %d)", c.Curation.MaxConcurrentAnalyses)
	}
	if c.Maintenance.Interval <= 0 {
		return fmt.Errorf("maintenance.interval must be positive (got %v)", c.Maintenance.Interval)
	}
	if c.Curation.WatchPolicy && c.Curation.PolicyPath == "" {
		return errors.New("curation.policy_path is required when watch_policy is set")
	}
	if c.Server.RequestsPerSec < 0 {
		return fmt.Errorf("server.requests_per_sec must be non-negative (got %v)", c.Server.RequestsPerSec)
	}
	if c.Redis.Enabled && c.Redis.URL == "" {
		return errors.New("redis.url is required when redis is enabled")
	}
	return nil
}

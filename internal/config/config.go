// Package config loads application configuration from config.yaml and
// RXGUARD-prefixed environment variables, and owns the global logger.
package config

import (
	"strings"

	"github.com/rotisserie/eris"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Config holds the full application configuration.
type Config struct {
	Store     StoreConfig     `yaml:"store" mapstructure:"store"`
	Resolver  ResolverConfig  `yaml:"resolver" mapstructure:"resolver"`
	Cache     CacheConfig     `yaml:"cache" mapstructure:"cache"`
	OpenFDA   OpenFDAConfig   `yaml:"openfda" mapstructure:"openfda"`
	Anthropic AnthropicConfig `yaml:"anthropic" mapstructure:"anthropic"`
	Server    ServerConfig    `yaml:"server" mapstructure:"server"`
	Log       LogConfig       `yaml:"log" mapstructure:"log"`
}

// StoreConfig configures the knowledge base backend.
type StoreConfig struct {
	Driver      string `yaml:"driver" mapstructure:"driver"`
	Path        string `yaml:"path" mapstructure:"path"`
	DatabaseURL string `yaml:"database_url" mapstructure:"database_url"`
}

// ResolverConfig configures pair resolution.
type ResolverConfig struct {
	Concurrency int `yaml:"concurrency" mapstructure:"concurrency"`
}

// CacheConfig configures the lookup cache.
type CacheConfig struct {
	TTLHours         int `yaml:"ttl_hours" mapstructure:"ttl_hours"`
	NegativeTTLHours int `yaml:"negative_ttl_hours" mapstructure:"negative_ttl_hours"`
}

// OpenFDAConfig holds openFDA API settings.
type OpenFDAConfig struct {
	Enabled           bool   `yaml:"enabled" mapstructure:"enabled"`
	Key               string `yaml:"key" mapstructure:"key"`
	BaseURL           string `yaml:"base_url" mapstructure:"base_url"`
	RequestsPerMinute int    `yaml:"requests_per_minute" mapstructure:"requests_per_minute"`
}

// AnthropicConfig holds Anthropic API settings for pair adjudication.
type AnthropicConfig struct {
	Enabled bool   `yaml:"enabled" mapstructure:"enabled"`
	Key     string `yaml:"key" mapstructure:"key"`
	Model   string `yaml:"model" mapstructure:"model"`
}

// ServerConfig configures the HTTP API server.
type ServerConfig struct {
	Port              int `yaml:"port" mapstructure:"port"`
	RequestsPerSecond int `yaml:"requests_per_second" mapstructure:"requests_per_second"`
	PurgeIntervalMins int `yaml:"purge_interval_mins" mapstructure:"purge_interval_mins"`
}

// LogConfig configures logging.
type LogConfig struct {
	Level  string `yaml:"level" mapstructure:"level"`
	Format string `yaml:"format" mapstructure:"format"`
}

// Load reads configuration from file and environment.
func Load() (*Config, error) {
	v := viper.New()

	// Config file
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")

	// Environment
	v.SetEnvPrefix("RXGUARD")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Defaults
	v.SetDefault("store.driver", "sqlite")
	v.SetDefault("store.path", "rxguard.db")
	v.SetDefault("store.database_url", "")
	v.SetDefault("resolver.concurrency", 8)
	v.SetDefault("cache.ttl_hours", 720)
	v.SetDefault("cache.negative_ttl_hours", 168)
	v.SetDefault("openfda.enabled", true)
	v.SetDefault("openfda.key", "")
	v.SetDefault("openfda.base_url", "https://api.fda.gov")
	v.SetDefault("openfda.requests_per_minute", 240)
	v.SetDefault("anthropic.enabled", false)
	v.SetDefault("anthropic.key", "")
	v.SetDefault("anthropic.model", "claude-haiku-4-5-20251001")
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.requests_per_second", 20)
	v.SetDefault("server.purge_interval_mins", 60)
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")

	// Read config file (optional)
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, eris.Wrap(err, "config: read file")
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, eris.Wrap(err, "config: unmarshal")
	}

	return &cfg, nil
}

// InitLogger initializes the global zap logger.
func InitLogger(cfg LogConfig) error {
	var zapCfg zap.Config
	if cfg.Format == "console" {
		zapCfg = zap.NewDevelopmentConfig()
	} else {
		zapCfg = zap.NewProductionConfig()
	}

	level, err := zapcore.ParseLevel(cfg.Level)
	if err != nil {
		return eris.Wrap(err, "config: parse log level")
	}
	zapCfg.Level.SetLevel(level)

	logger, err := zapCfg.Build()
	if err != nil {
		return eris.Wrap(err, "config: build logger")
	}
	zap.ReplaceGlobals(logger)

	return nil
}

// Package config loads application configuration from config.yaml, LAKEHOUSE_
// environment variables, and defaults, and initializes the global logger.
package config

import (
	"strings"
	"time"

	"github.com/rotisserie/eris"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/moviedata/lakehouse/internal/layout"
)

// Config holds the full application configuration.
type Config struct {
	Home     HomeConfig     `yaml:"home" mapstructure:"home"`
	Catalog  CatalogConfig  `yaml:"catalog" mapstructure:"catalog"`
	Fetch    FetchConfig    `yaml:"fetch" mapstructure:"fetch"`
	Ingest   IngestConfig   `yaml:"ingest" mapstructure:"ingest"`
	Pipeline PipelineConfig `yaml:"pipeline" mapstructure:"pipeline"`
	Log      LogConfig      `yaml:"log" mapstructure:"log"`
}

// HomeConfig locates the dataset tree: parent/base/category. Changing parent
// relocates every stage directory at once.
type HomeConfig struct {
	Parent   string `yaml:"parent" mapstructure:"parent"`
	Base     string `yaml:"base" mapstructure:"base"`
	Category string `yaml:"category" mapstructure:"category"`
}

// CatalogConfig points at an optional YAML file with extra dataset
// definitions layered over the built-in catalog.
type CatalogConfig struct {
	File string `yaml:"file" mapstructure:"file"`
}

// FetchConfig configures the download capability.
type FetchConfig struct {
	UserAgent   string `yaml:"user_agent" mapstructure:"user_agent"`
	TimeoutSecs int    `yaml:"timeout_secs" mapstructure:"timeout_secs"`
	MaxRetries  int    `yaml:"max_retries" mapstructure:"max_retries"`
}

// Timeout returns the fetch timeout as a duration.
func (f FetchConfig) Timeout() time.Duration {
	return time.Duration(f.TimeoutSecs) * time.Second
}

// IngestConfig configures the bronze sink.
type IngestConfig struct {
	Driver      string `yaml:"driver" mapstructure:"driver"`             // "sqlite" or "postgres"
	DatabaseURL string `yaml:"database_url" mapstructure:"database_url"` // postgres only
	Schema      string `yaml:"schema" mapstructure:"schema"`             // postgres only
	BatchSize   int    `yaml:"batch_size" mapstructure:"batch_size"`
}

// PipelineConfig configures orchestration.
type PipelineConfig struct {
	Concurrency int  `yaml:"concurrency" mapstructure:"concurrency"`
	Strict      bool `yaml:"strict" mapstructure:"strict"`
}

// LogConfig configures logging.
type LogConfig struct {
	Level  string `yaml:"level" mapstructure:"level"`
	Format string `yaml:"format" mapstructure:"format"`
}

// HomeLayout converts the home config into a layout.Home, filling defaults
// for unset components.
func (c *Config) HomeLayout() layout.Home {
	h := layout.DefaultHome()
	if c.Home.Parent != "" {
		h.Parent = c.Home.Parent
	}
	if c.Home.Base != "" {
		h.Base = c.Home.Base
	}
	if c.Home.Category != "" {
		h.Category = c.Home.Category
	}
	return h
}

// Load reads configuration from file and environment.
func Load() (*Config, error) {
	v := viper.New()

	// Config file
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")

	// Environment
	v.SetEnvPrefix("LAKEHOUSE")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Defaults
	v.SetDefault("home.base", "data")
	v.SetDefault("home.category", "imdb")
	v.SetDefault("fetch.user_agent", "lakehouse/1.0")
	v.SetDefault("fetch.timeout_secs", 1800)
	v.SetDefault("fetch.max_retries", 3)
	v.SetDefault("ingest.driver", "sqlite")
	v.SetDefault("ingest.schema", "bronze")
	v.SetDefault("ingest.batch_size", 10000)
	v.SetDefault("pipeline.concurrency", 3)
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

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
	GIBS      GIBSConfig      `yaml:"gibs" mapstructure:"gibs"`
	Cache     CacheConfig     `yaml:"cache" mapstructure:"cache"`
	Anthropic AnthropicConfig `yaml:"anthropic" mapstructure:"anthropic"`
	Pricing   PricingConfig   `yaml:"pricing" mapstructure:"pricing"`
	Analysis  AnalysisConfig  `yaml:"analysis" mapstructure:"analysis"`
	Reports   ReportsConfig   `yaml:"reports" mapstructure:"reports"`
	History   HistoryConfig   `yaml:"history" mapstructure:"history"`
	Batch     BatchConfig     `yaml:"batch" mapstructure:"batch"`
	Log       LogConfig       `yaml:"log" mapstructure:"log"`
}

// GIBSConfig configures the NASA GIBS WMS endpoint.
type GIBSConfig struct {
	BaseURL     string  `yaml:"base_url" mapstructure:"base_url"`
	ImageWidth  int     `yaml:"image_width" mapstructure:"image_width"`
	ImageHeight int     `yaml:"image_height" mapstructure:"image_height"`
	TimeoutSecs int     `yaml:"timeout_secs" mapstructure:"timeout_secs"`
	RatePerSec  float64 `yaml:"rate_per_sec" mapstructure:"rate_per_sec"`
}

// CacheConfig configures the on-disk imagery cache.
type CacheConfig struct {
	Dir        string `yaml:"dir" mapstructure:"dir"`
	MaxAgeDays int    `yaml:"max_age_days" mapstructure:"max_age_days"`
}

// AnthropicConfig holds Anthropic API settings.
type AnthropicConfig struct {
	Key         string `yaml:"key" mapstructure:"key"`
	VisionModel string `yaml:"vision_model" mapstructure:"vision_model"`
}

// PricingConfig holds per-provider pricing rates.
type PricingConfig struct {
	Anthropic map[string]ModelPricing `yaml:"anthropic" mapstructure:"anthropic"`
}

// ModelPricing holds per-model token pricing (USD per million tokens).
type ModelPricing struct {
	Input  float64 `yaml:"input" mapstructure:"input"`
	Output float64 `yaml:"output" mapstructure:"output"`
}

// AnalysisConfig configures the change analysis defaults.
type AnalysisConfig struct {
	Layer            string  `yaml:"layer" mapstructure:"layer"`
	WindowKm         float64 `yaml:"window_km" mapstructure:"window_km"`
	FallbackDays     int     `yaml:"fallback_days" mapstructure:"fallback_days"`
	CarbonTonsPerKm2 float64 `yaml:"carbon_tons_per_km2" mapstructure:"carbon_tons_per_km2"`
}

// ReportsConfig configures report output.
type ReportsConfig struct {
	Dir string `yaml:"dir" mapstructure:"dir"`
}

// HistoryConfig configures run persistence.
type HistoryConfig struct {
	Enabled bool   `yaml:"enabled" mapstructure:"enabled"`
	Path    string `yaml:"path" mapstructure:"path"`
}

// BatchConfig configures batch processing.
type BatchConfig struct {
	MaxConcurrentRegions int `yaml:"max_concurrent_regions" mapstructure:"max_concurrent_regions"`
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
	v.SetEnvPrefix("ECOLENS")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Defaults
	v.SetDefault("gibs.base_url", "https://gibs.earthdata.nasa.gov/wms/epsg4326/best/wms.cgi")
	v.SetDefault("gibs.image_width", 1024)
	v.SetDefault("gibs.image_height", 1024)
	v.SetDefault("gibs.timeout_secs", 30)
	v.SetDefault("gibs.rate_per_sec", 5)
	v.SetDefault("cache.dir", "data/cache")
	v.SetDefault("cache.max_age_days", 30)
	// Registered empty so AutomaticEnv picks up ECOLENS_ANTHROPIC_KEY.
	v.SetDefault("anthropic.key", "")
	v.SetDefault("anthropic.vision_model", "claude-sonnet-4-5-20250929")
	// VIIRS revisits daily, so requested dates rarely need fallback.
	v.SetDefault("analysis.layer", "viirs")
	v.SetDefault("analysis.window_km", 11.0)
	v.SetDefault("analysis.fallback_days", 3)
	v.SetDefault("analysis.carbon_tons_per_km2", 200.0)
	v.SetDefault("reports.dir", "results")
	v.SetDefault("history.enabled", true)
	v.SetDefault("history.path", "data/ecolens.db")
	v.SetDefault("batch.max_concurrent_regions", 2)
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")
	v.SetDefault("pricing.anthropic", map[string]any{
		"claude-haiku-4-5-20251001":  map[string]any{"input": 0.80, "output": 4.00},
		"claude-sonnet-4-5-20250929": map[string]any{"input": 3.00, "output": 15.00},
		"claude-opus-4-6":            map[string]any{"input": 15.00, "output": 75.00},
	})

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

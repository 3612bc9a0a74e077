package config

import (
	"fmt"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
	"go.uber.org/zap"
)

type Config struct {
	Server struct {
		Port         string        `envconfig:"FIBER_PORT" default:"8080" validate:"required,numeric"`
		ReadTimeout  time.Duration `envconfig:"FIBER_READ_TIMEOUT" default:"10s" validate:"gt=0"`
		WriteTimeout time.Duration `envconfig:"FIBER_WRITE_TIMEOUT" default:"10s" validate:"gt=0"`
		LogLevel     string        `envconfig:"LOG_LEVEL" default:"info" validate:"oneof=debug info warn error"`
	}

	Dataset struct {
		Path        string `envconfig:"DATASET_PATH" default:"data/PRSA_Data_Wanliu_20130301-20170228.csv"`
		URL         string `envconfig:"DATASET_URL" validate:"omitempty,url"`
		PreviewRows int    `envconfig:"PREVIEW_ROWS" default:"5" validate:"gte=0,lte=100"`
	}

	Chart struct {
		Locale string `envconfig:"CHART_LOCALE" default:"en" validate:"required"`
		Width  int    `envconfig:"CHART_WIDTH" default:"800" validate:"gte=200,lte=4000"`
		Height int    `envconfig:"CHART_HEIGHT" default:"600" validate:"gte=200,lte=4000"`
	}

	Scheduler struct {
		FreshnessInterval time.Duration `envconfig:"FRESHNESS_INTERVAL" default:"5m" validate:"gt=0"`
		WatchDataset      bool          `envconfig:"WATCH_DATASET" default:"false"`
		ReloadMinInterval time.Duration `envconfig:"RELOAD_MIN_INTERVAL" default:"10s" validate:"gte=0"`
	}

	Cache struct {
		Duration        time.Duration `envconfig:"CACHE_DURATION" default:"10m" validate:"gt=0"`
		MaxSize         int           `envconfig:"MAX_CACHE_SIZE" default:"256" validate:"gt=0"`
		CleanupInterval time.Duration `envconfig:"CACHE_CLEANUP_INTERVAL" default:"1m" validate:"gt=0"`
	}

	CircuitBreaker struct {
		Threshold int           `envconfig:"CIRCUIT_BREAKER_THRESHOLD" default:"3" validate:"gt=0"`
		Timeout   time.Duration `envconfig:"CIRCUIT_BREAKER_TIMEOUT" default:"30s" validate:"gt=0"`
	}

	Retry struct {
		MaxRetries  int           `envconfig:"MAX_RETRIES" default:"3" validate:"gte=0"`
		Delay       time.Duration `envconfig:"RETRY_DELAY" default:"1s" validate:"gte=0"`
		Multiplier  float64       `envconfig:"RETRY_MULTIPLIER" default:"2" validate:"gte=1"`
		HTTPTimeout time.Duration `envconfig:"HTTP_TIMEOUT" default:"30s" validate:"gt=0"`
	}
}

// DatasetSource is the URL when one is configured, otherwise the local path.
func (c *Config) DatasetSource() string {
	if c.Dataset.URL != "" {
		return c.Dataset.URL
	}
	return c.Dataset.Path
}

func LoadConfig() (*Config, error) {
	// Load .env file if exists
	if err := godotenv.Load(); err != nil {
		zap.L().Info("No .env file found, using environment variables")
	}

	cfg := &Config{}
	if err := envconfig.Process("", cfg); err != nil {
		return nil, fmt.Errorf("failed to process environment configuration: %w", err)
	}

	if err := validator.New().Struct(cfg); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return cfg, nil
}

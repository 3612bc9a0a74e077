package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadConfig_Defaults(t *testing.T) {
	cfg, err := LoadConfig()
	require.NoError(t, err)

	assert.Equal(t, "8080", cfg.Server.Port)
	assert.Equal(t, 10*time.Second, cfg.Server.ReadTimeout)
	assert.Equal(t, "info", cfg.Server.LogLevel)
	assert.Equal(t, "data/PRSA_Data_Wanliu_20130301-20170228.csv", cfg.DatasetSource())
	assert.Equal(t, 5, cfg.Dataset.PreviewRows)
	assert.Equal(t, "en", cfg.Chart.Locale)
	assert.Equal(t, 800, cfg.Chart.Width)
	assert.Equal(t, 5*time.Minute, cfg.Scheduler.FreshnessInterval)
	assert.False(t, cfg.Scheduler.WatchDataset)
	assert.Equal(t, 256, cfg.Cache.MaxSize)
	assert.Equal(t, time.Minute, cfg.Cache.CleanupInterval)
	assert.Equal(t, 3, cfg.CircuitBreaker.Threshold)
	assert.Equal(t, 2.0, cfg.Retry.Multiplier)
	assert.Equal(t, 30*time.Second, cfg.Retry.HTTPTimeout)
}

func TestLoadConfig_Overrides(t *testing.T) {
	t.Setenv("FIBER_PORT", "9090")
	t.Setenv("DATASET_URL", "https://example.com/wanliu.csv")
	t.Setenv("WATCH_DATASET", "true")
	t.Setenv("CACHE_DURATION", "90s")
	t.Setenv("LOG_LEVEL", "debug")

	cfg, err := LoadConfig()
	require.NoError(t, err)

	assert.Equal(t, "9090", cfg.Server.Port)
	assert.Equal(t, "https://example.com/wanliu.csv", cfg.DatasetSource())
	assert.True(t, cfg.Scheduler.WatchDataset)
	assert.Equal(t, 90*time.Second, cfg.Cache.Duration)
	assert.Equal(t, "debug", cfg.Server.LogLevel)
}

func TestLoadConfig_Invalid(t *testing.T) {
	tests := []struct {
		name  string
		key   string
		value string
	}{
		{name: "unparsable duration", key: "CACHE_DURATION", value: "soon"},
		{name: "unknown log level", key: "LOG_LEVEL", value: "verbose"},
		{name: "preview too large", key: "PREVIEW_ROWS", value: "1000"},
		{name: "bad dataset url", key: "DATASET_URL", value: "not a url"},
		{name: "zero cache size", key: "MAX_CACHE_SIZE", value: "0"},
		{name: "shrinking retry multiplier", key: "RETRY_MULTIPLIER", value: "0.5"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Setenv(tt.key, tt.value)

			_, err := LoadConfig()
			assert.Error(t, err)
		})
	}
}

package config

import (
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "8081", cfg.Port)
	assert.Equal(t, 10, cfg.MaxConcurrentRequests)
	assert.Equal(t, 100, cfg.CacheMaxSize)
	assert.Equal(t, 16, cfg.CacheInitialCapacity)
	assert.Equal(t, 0.75, cfg.CacheLoadFactor)
	assert.Equal(t, 32, cfg.InventoryShards)
	assert.Equal(t, zerolog.InfoLevel, cfg.LogLevel)
	assert.Empty(t, cfg.OTLPEndpoint)
	assert.Empty(t, cfg.SeedDatabaseURL)
}

func TestLoadFromEnvironment(t *testing.T) {
	t.Setenv("PORT", "9000")
	t.Setenv("MAX_CONCURRENT_REQUESTS", "3")
	t.Setenv("CACHE_MAX_SIZE", "50")
	t.Setenv("CACHE_LOAD_FACTOR", "0.5")
	t.Setenv("LOG_LEVEL", "debug")
	t.Setenv("OTEL_EXPORTER_OTLP_ENDPOINT", "http://collector:4318")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "9000", cfg.Port)
	assert.Equal(t, 3, cfg.MaxConcurrentRequests)
	assert.Equal(t, 50, cfg.CacheMaxSize)
	assert.Equal(t, 0.5, cfg.CacheLoadFactor)
	assert.Equal(t, zerolog.DebugLevel, cfg.LogLevel)
	assert.Equal(t, "http://collector:4318", cfg.OTLPEndpoint)
}

func TestLoadRejectsMalformedValues(t *testing.T) {
	for key, value := range map[string]string{
		"MAX_CONCURRENT_REQUESTS": "ten",
		"CACHE_MAX_SIZE":          "1e3",
		"CACHE_LOAD_FACTOR":       "three quarters",
		"INVENTORY_SHARDS":        "",
		"LOG_LEVEL":               "loud",
	} {
		t.Run(key, func(t *testing.T) {
			t.Setenv(key, value)

			_, err := Load()
			require.Error(t, err)
			assert.Contains(t, err.Error(), key)
		})
	}
}

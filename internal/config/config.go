// Package config reads service settings from the environment.
package config

import (
	"fmt"
	"os"
	"strconv"

	"github.com/rs/zerolog"
)

// Config holds the settings of the inventory service.
type Config struct {
	Port                  string
	MaxConcurrentRequests int

	CacheMaxSize         int
	CacheInitialCapacity int
	CacheLoadFactor      float64

	InventoryShards int
	LogLevel        zerolog.Level

	OTLPEndpoint    string
	SeedDatabaseURL string
}

// Load builds a Config from environment variables, falling back to defaults
// for anything unset.
func Load() (*Config, error) {
	cfg := &Config{
		Port:            getEnv("PORT", "8081"),
		OTLPEndpoint:    getEnv("OTEL_EXPORTER_OTLP_ENDPOINT", ""),
		SeedDatabaseURL: getEnv("SEED_DATABASE_URL", ""),
	}

	var err error
	if cfg.MaxConcurrentRequests, err = getInt("MAX_CONCURRENT_REQUESTS", 10); err != nil {
		return nil, err
	}
	if cfg.CacheMaxSize, err = getInt("CACHE_MAX_SIZE", 100); err != nil {
		return nil, err
	}
	if cfg.CacheInitialCapacity, err = getInt("CACHE_INITIAL_CAPACITY", 16); err != nil {
		return nil, err
	}
	if cfg.CacheLoadFactor, err = getFloat("CACHE_LOAD_FACTOR", 0.75); err != nil {
		return nil, err
	}
	if cfg.InventoryShards, err = getInt("INVENTORY_SHARDS", 32); err != nil {
		return nil, err
	}

	cfg.LogLevel, err = zerolog.ParseLevel(getEnv("LOG_LEVEL", "info"))
	if err != nil {
		return nil, fmt.Errorf("parse LOG_LEVEL: %w", err)
	}

	return cfg, nil
}

func getEnv(key, defaultValue string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return defaultValue
}

func getInt(key string, defaultValue int) (int, error) {
	value, exists := os.LookupEnv(key)
	if !exists {
		return defaultValue, nil
	}
	n, err := strconv.Atoi(value)
	if err != nil {
		return 0, fmt.Errorf("parse %s: %w", key, err)
	}
	return n, nil
}

func getFloat(key string, defaultValue float64) (float64, error) {
	value, exists := os.LookupEnv(key)
	if !exists {
		return defaultValue, nil
	}
	f, err := strconv.ParseFloat(value, 64)
	if err != nil {
		return 0, fmt.Errorf("parse %s: %w", key, err)
	}
	return f, nil
}

package config

import (
	"fmt"
	"os"
	"strconv"
	"time"
)

// LoadFromEnv overlays STORM_* environment variables onto cfg.
func LoadFromEnv(cfg *Config) error {
	if token := os.Getenv("STORM_TOKEN"); token != "" {
		cfg.API.Token = token
	}

	if timeout := os.Getenv("STORM_TIMEOUT"); timeout != "" {
		d, err := time.ParseDuration(timeout)
		if err != nil {
			return fmt.Errorf("STORM_TIMEOUT: %w", err)
		}
		cfg.API.Timeout = d
	}

	if workers := os.Getenv("STORM_WORKERS"); workers != "" {
		n, err := strconv.Atoi(workers)
		if err != nil {
			return fmt.Errorf("STORM_WORKERS: %w", err)
		}
		cfg.Run.Workers = n
	}

	cfg.Log.Level = GetEnvOrDefault("STORM_LOG_LEVEL", cfg.Log.Level)
	cfg.Metrics.Addr = GetEnvOrDefault("STORM_METRICS_ADDR", cfg.Metrics.Addr)

	return nil
}

// GetEnvOrDefault returns environment variable or default value
func GetEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

package server

import (
	"fmt"
	"os"
	"time"
)

// Config holds the server settings read from the environment
type Config struct {
	Port            string
	DatabaseURL     string
	MaxOpenDuration time.Duration
	SweepInterval   time.Duration
}

// DefaultDatabaseURL is used when DATABASE_URL is unset
const DefaultDatabaseURL = "postgres://localhost:5432/irontrack?sslmode=disable"

// ConfigFromEnv reads PORT, DATABASE_URL, MAX_OPEN_DURATION and SWEEP_INTERVAL
func ConfigFromEnv() (Config, error) {
	cfg := Config{
		Port:            getEnv("PORT", "8080"),
		DatabaseURL:     getEnv("DATABASE_URL", DefaultDatabaseURL),
		MaxOpenDuration: 12 * time.Hour,
		SweepInterval:   time.Minute,
	}

	var err error
	if cfg.MaxOpenDuration, err = envDuration("MAX_OPEN_DURATION", cfg.MaxOpenDuration); err != nil {
		return cfg, err
	}
	if cfg.SweepInterval, err = envDuration("SWEEP_INTERVAL", cfg.SweepInterval); err != nil {
		return cfg, err
	}
	return cfg, nil
}

func getEnv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func envDuration(key string, def time.Duration) (time.Duration, error) {
	v := os.Getenv(key)
	if v == "" {
		return def, nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return def, fmt.Errorf("invalid %s %q: %w", key, v, err)
	}
	if d < 0 {
		return def, fmt.Errorf("invalid %s %q: must not be negative", key, v)
	}
	return d, nil
}

package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"
)

// Config holds user preferences
type Config struct {
	ServerURL         string        `yaml:"server_url" json:"server_url"`                 // Time-log service base URL
	UserID            string        `yaml:"user_id" json:"user_id"`                       // Sent as X-User-ID
	DBPath            string        `yaml:"db_path" json:"db_path"`                       // Local state database
	RequestTimeout    time.Duration `yaml:"request_timeout" json:"request_timeout"`       // Per remote call
	ReconcileInterval time.Duration `yaml:"reconcile_interval" json:"reconcile_interval"` // 0 disables periodic checks

	// Logging configuration
	LogLevel   string `yaml:"log_level" json:"log_level"`     // Log level: DEBUG, INFO, WARN, ERROR
	LogFile    string `yaml:"log_file" json:"log_file"`       // Path to log file
	LogConsole bool   `yaml:"log_console" json:"log_console"` // Enable console logging
}

// Dir returns ~/.irontrack
func Dir() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, ".irontrack"), nil
}

// DefaultConfig returns default settings
func DefaultConfig() *Config {
	dir, _ := Dir()
	logPath, dbPath := "", ""
	if dir != "" {
		logPath = filepath.Join(dir, "logs", "irontrack.log")
		dbPath = filepath.Join(dir, "state.db")
	}

	return &Config{
		ServerURL:         getEnv("IRONTRACK_SERVER", "http://localhost:8080"),
		UserID:            getEnv("IRONTRACK_USER", os.Getenv("USER")),
		DBPath:            getEnv("IRONTRACK_DB", dbPath),
		RequestTimeout:    getEnvDuration("IRONTRACK_REQUEST_TIMEOUT", 15*time.Second),
		ReconcileInterval: getEnvDuration("IRONTRACK_RECONCILE_INTERVAL", 30*time.Second),
		LogLevel:          getEnv("IRONTRACK_LOG_LEVEL", "INFO"),
		LogFile:           getEnv("IRONTRACK_LOG_FILE", logPath),
		LogConsole:        getEnv("IRONTRACK_LOG_CONSOLE", "false") == "true",
	}
}

// getEnv gets an environment variable or returns a default value
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return defaultValue
}

// Path returns ~/.irontrack/config.yaml
func Path() (string, error) {
	dir, err := Dir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "config.yaml"), nil
}

// Load loads config from ~/.irontrack/config.yaml
func Load() (*Config, error) {
	configPath, err := Path()
	if err != nil {
		return nil, err
	}
	return LoadFile(configPath)
}

// LoadFile loads config from path, returning defaults if it does not exist
func LoadFile(configPath string) (*Config, error) {
	data, err := os.ReadFile(configPath)
	if os.IsNotExist(err) {
		return DefaultConfig(), nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read config: %w", err)
	}

	cfg := DefaultConfig()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate rejects settings the client cannot run with
func (c *Config) Validate() error {
	if c.ServerURL == "" {
		return fmt.Errorf("server_url must not be empty")
	}
	if c.RequestTimeout <= 0 {
		return fmt.Errorf("request_timeout must be positive, got %s", c.RequestTimeout)
	}
	if c.ReconcileInterval < 0 {
		return fmt.Errorf("reconcile_interval must not be negative, got %s", c.ReconcileInterval)
	}
	return nil
}

// Save saves config to ~/.irontrack/config.yaml
func (c *Config) Save() error {
	configPath, err := Path()
	if err != nil {
		return err
	}
	return c.SaveFile(configPath)
}

// SaveFile writes config to path, creating its directory
func (c *Config) SaveFile(configPath string) error {
	if err := os.MkdirAll(filepath.Dir(configPath), 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	if err := os.WriteFile(configPath, data, 0644); err != nil {
		return fmt.Errorf("failed to write config: %w", err)
	}

	return nil
}

package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Storage backends.
const (
	StorageModePostgres = "postgres"
	StorageModeSQLite   = "sqlite"
)

// Config holds all application configuration.
type Config struct {
	// Application
	LogLevel string
	HTTPPort string

	// Ledger
	AdminIDs []string

	// Deadline scheduler
	SchedulerPollInterval time.Duration

	// Front ends
	FlowTimeout     time.Duration
	ProjectionTTL   time.Duration
	ProjectionItems int64
	EventBufferSize int

	// HTTP API rate limiting, per client IP
	APIRateLimit float64
	APIRateBurst int

	// Storage
	StorageMode  string // "postgres" or "sqlite"
	SQLitePath   string
	PostgresHost string
	PostgresPort string
	PostgresUser string
	PostgresPass string
	PostgresDB   string
	PostgresSSL  string
}

// LoadFromEnv loads configuration from environment variables with defaults.
func LoadFromEnv() (*Config, error) {
	cfg := &Config{
		// Application defaults
		LogLevel: getEnvOrDefault("LOG_LEVEL", "info"),
		HTTPPort: getEnvOrDefault("HTTP_PORT", "8080"),

		AdminIDs: getListOrDefault("ADMIN_IDS", nil),

		SchedulerPollInterval: getDurationOrDefault("SCHEDULER_POLL_INTERVAL", 5*time.Second),

		// Front end defaults
		FlowTimeout:     getDurationOrDefault("FLOW_TIMEOUT", 60*time.Second),
		ProjectionTTL:   getDurationOrDefault("PROJECTION_TTL", 10*time.Minute),
		ProjectionItems: int64(getIntOrDefault("PROJECTION_MAX_ITEMS", 10000)),
		EventBufferSize: getIntOrDefault("EVENT_BUFFER_SIZE", 256),

		APIRateLimit: getFloat64OrDefault("API_RATE_LIMIT", 20),
		APIRateBurst: getIntOrDefault("API_RATE_BURST", 40),

		// Storage defaults
		StorageMode:  getEnvOrDefault("STORAGE_MODE", StorageModeSQLite),
		SQLitePath:   getEnvOrDefault("SQLITE_PATH", "betledger.db"),
		PostgresHost: getEnvOrDefault("POSTGRES_HOST", "localhost"),
		PostgresPort: getEnvOrDefault("POSTGRES_PORT", "5432"),
		PostgresUser: getEnvOrDefault("POSTGRES_USER", "betledger"),
		PostgresPass: getEnvOrDefault("POSTGRES_PASSWORD", "betledger"),
		PostgresDB:   getEnvOrDefault("POSTGRES_DB", "betledger"),
		PostgresSSL:  getEnvOrDefault("POSTGRES_SSLMODE", "disable"),
	}

	err := cfg.Validate()
	if err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}

	return cfg, nil
}

// Validate checks that configuration values are valid.
func (c *Config) Validate() error {
	if c.HTTPPort == "" {
		return fmt.Errorf("HTTP_PORT cannot be empty")
	}

	switch c.StorageMode {
	case StorageModeSQLite:
		if c.SQLitePath == "" {
			return fmt.Errorf("SQLITE_PATH cannot be empty when STORAGE_MODE is sqlite")
		}
	case StorageModePostgres:
		if c.PostgresHost == "" || c.PostgresDB == "" {
			return fmt.Errorf("POSTGRES_HOST and POSTGRES_DB are required when STORAGE_MODE is postgres")
		}
	default:
		return fmt.Errorf("STORAGE_MODE must be 'postgres' or 'sqlite', got %q", c.StorageMode)
	}

	if c.SchedulerPollInterval <= 0 {
		return fmt.Errorf("SCHEDULER_POLL_INTERVAL must be positive, got %v", c.SchedulerPollInterval)
	}

	if c.FlowTimeout <= 0 {
		return fmt.Errorf("FLOW_TIMEOUT must be positive, got %v", c.FlowTimeout)
	}

	if c.ProjectionTTL <= 0 {
		return fmt.Errorf("PROJECTION_TTL must be positive, got %v", c.ProjectionTTL)
	}

	if c.ProjectionItems <= 0 {
		return fmt.Errorf("PROJECTION_MAX_ITEMS must be positive, got %d", c.ProjectionItems)
	}

	if c.EventBufferSize <= 0 {
		return fmt.Errorf("EVENT_BUFFER_SIZE must be positive, got %d", c.EventBufferSize)
	}

	if c.APIRateLimit <= 0 {
		return fmt.Errorf("API_RATE_LIMIT must be positive, got %f", c.APIRateLimit)
	}

	if c.APIRateBurst < 1 {
		return fmt.Errorf("API_RATE_BURST must be at least 1, got %d", c.APIRateBurst)
	}

	return nil
}

func getEnvOrDefault(key string, defaultValue string) string {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	return value
}

func getIntOrDefault(key string, defaultValue int) int {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}

	intVal, err := strconv.Atoi(value)
	if err != nil {
		return defaultValue
	}

	return intVal
}

func getFloat64OrDefault(key string, defaultValue float64) float64 {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}

	floatVal, err := strconv.ParseFloat(value, 64)
	if err != nil {
		return defaultValue
	}

	return floatVal
}

func getDurationOrDefault(key string, defaultValue time.Duration) time.Duration {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}

	duration, err := time.ParseDuration(value)
	if err != nil {
		return defaultValue
	}

	return duration
}

// getListOrDefault splits a comma-separated value, dropping blank entries.
func getListOrDefault(key string, defaultValue []string) []string {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}

	var out []string
	for _, part := range strings.Split(value, ",") {
		part = strings.TrimSpace(part)
		if part != "" {
			out = append(out, part)
		}
	}

	return out
}

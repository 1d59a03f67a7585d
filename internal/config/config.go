package config

import (
	"fmt"
	"os"
	"strconv"
	"time"
)

// Config holds the application configuration.
type Config struct {
	ServerPort       int
	DatabasePath     string
	BackendURL       string        // base URL of the device backend's command surface
	BackendWSURL     string        // websocket URL of its notification channel
	Timezone         *time.Location
	ExecutePerMinute int           // rate cap on device push calls
	GenerationGrace  time.Duration // re-poll delay after a generation request
}

// Load loads configuration from environment variables or sets defaults.
func Load() (*Config, error) {
	portStr := getEnv("PORT", "8081")
	port, err := strconv.Atoi(portStr)
	if err != nil {
		return nil, fmt.Errorf("invalid PORT: %w", err)
	}

	execStr := getEnv("EXECUTE_PER_MINUTE", "6")
	execPerMinute, err := strconv.Atoi(execStr)
	if err != nil {
		return nil, fmt.Errorf("invalid EXECUTE_PER_MINUTE: %w", err)
	}

	graceStr := getEnv("GENERATION_GRACE", "5s")
	grace, err := time.ParseDuration(graceStr)
	if err != nil {
		return nil, fmt.Errorf("invalid GENERATION_GRACE: %w", err)
	}

	tzName := getEnv("TIMEZONE", "Local")
	loc, err := time.LoadLocation(tzName)
	if err != nil {
		return nil, fmt.Errorf("invalid TIMEZONE %q: %w", tzName, err)
	}

	return &Config{
		ServerPort:       port,
		DatabasePath:     getEnv("DATABASE_PATH", "./dotflow.db"),
		BackendURL:       getEnv("BACKEND_URL", "http://127.0.0.1:8080"),
		BackendWSURL:     getEnv("BACKEND_WS_URL", "ws://127.0.0.1:8080/api/events"),
		Timezone:         loc,
		ExecutePerMinute: execPerMinute,
		GenerationGrace:  grace,
	}, nil
}

// Helper to get an environment variable with a default value.
func getEnv(key, fallback string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return fallback
}

package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"time"
)

type Config struct {
	ServerPort          string
	DatabaseURL         string
	RedisURL            string
	JWTSecret           string
	JWTExpiry           time.Duration
	LogLevel            string
	ReconnectAttempts   int
	ReconnectDelay      time.Duration
	ReconnectMaxDelay   time.Duration
	SessionPollInterval time.Duration
}

func LoadConfig() (*Config, error) {
	expiry, err := getDuration("JWT_EXPIRY", "24h")
	if err != nil {
		return nil, err
	}

	attempts, err := strconv.Atoi(getEnv("RECONNECT_ATTEMPTS", "5"))
	if err != nil || attempts < 1 {
		return nil, errors.New("RECONNECT_ATTEMPTS must be a positive integer")
	}

	delay, err := getDuration("RECONNECT_DELAY", "500ms")
	if err != nil {
		return nil, err
	}

	maxDelay, err := getDuration("RECONNECT_MAX_DELAY", "10s")
	if err != nil {
		return nil, err
	}
	if maxDelay < delay {
		return nil, errors.New("RECONNECT_MAX_DELAY must not be shorter than RECONNECT_DELAY")
	}

	pollInterval, err := getDuration("SESSION_POLL_INTERVAL", "30s")
	if err != nil {
		return nil, err
	}

	cfg := &Config{
		ServerPort:          getEnv("SERVER_PORT", "8080"),
		DatabaseURL:         os.Getenv("DATABASE_URL"),
		RedisURL:            os.Getenv("REDIS_URL"),
		JWTSecret:           os.Getenv("JWT_SECRET"),
		JWTExpiry:           expiry,
		LogLevel:            getEnv("LOG_LEVEL", "info"),
		ReconnectAttempts:   attempts,
		ReconnectDelay:      delay,
		ReconnectMaxDelay:   maxDelay,
		SessionPollInterval: pollInterval,
	}

	// Validate required fields
	if cfg.DatabaseURL == "" {
		return nil, errors.New("DATABASE_URL is required")
	}
	if cfg.RedisURL == "" {
		return nil, errors.New("REDIS_URL is required")
	}
	if cfg.JWTSecret == "" {
		return nil, errors.New("JWT_SECRET is required")
	}

	return cfg, nil
}

// Helper: get env with default value
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getDuration parses key as a duration that must be greater than zero.
func getDuration(key, defaultValue string) (time.Duration, error) {
	d, err := time.ParseDuration(getEnv(key, defaultValue))
	if err != nil {
		return 0, fmt.Errorf("invalid %s format", key)
	}
	if d <= 0 {
		return 0, fmt.Errorf("%s must be a positive duration", key)
	}
	return d, nil
}

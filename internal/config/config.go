package config

import (
	"fmt"
	"os"
	"strconv"
	"time"
)

// Config holds all configuration for the sync service.
type Config struct {
	Port        string
	DatabaseURL string
	RedisURL    string
	NumWorkers  int

	// Dependency waiter: how long a message may wait for a missing
	// foreign-key entity, and how often the predicate is polled.
	DependencyWaitMax          time.Duration
	DependencyWaitPollInterval time.Duration

	// Retry bounds before a message is dead-lettered.
	MaxRetryAttempts int
	MaxRetryElapsed  time.Duration
	RetryBackoffBase time.Duration
}

// Load reads configuration from environment variables.
func Load() (*Config, error) {
	port := getEnv("PORT", "8080")
	dbURL := getEnv("DATABASE_URL", "")
	redisURL := getEnv("REDIS_URL", "")
	numWorkers := getEnvInt("NUM_WORKERS", 50)

	waitMax := getEnvInt("DEPENDENCY_WAIT_MAX_SECONDS", 300)
	pollInterval := getEnvInt("DEPENDENCY_WAIT_POLL_INTERVAL_SECONDS", 2)
	maxAttempts := getEnvInt("MAX_RETRY_ATTEMPTS", 8)
	maxElapsed := getEnvInt("MAX_RETRY_ELAPSED_SECONDS", 3600)
	backoffBase := getEnvInt("RETRY_BACKOFF_BASE_MS", 500)

	if dbURL == "" {
		return nil, fmt.Errorf("DATABASE_URL is required")
	}
	if redisURL == "" {
		return nil, fmt.Errorf("REDIS_URL is required")
	}
	if pollInterval <= 0 {
		return nil, fmt.Errorf("DEPENDENCY_WAIT_POLL_INTERVAL_SECONDS must be positive")
	}

	return &Config{
		Port:                       port,
		DatabaseURL:                dbURL,
		RedisURL:                   redisURL,
		NumWorkers:                 numWorkers,
		DependencyWaitMax:          time.Duration(waitMax) * time.Second,
		DependencyWaitPollInterval: time.Duration(pollInterval) * time.Second,
		MaxRetryAttempts:           maxAttempts,
		MaxRetryElapsed:            time.Duration(maxElapsed) * time.Second,
		RetryBackoffBase:           time.Duration(backoffBase) * time.Millisecond,
	}, nil
}

func getEnv(key, fallback string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	if val := os.Getenv(key); val != "" {
		n, err := strconv.Atoi(val)
		if err == nil {
			return n
		}
	}
	return fallback
}

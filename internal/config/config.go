// Package config provides configuration for the session server.
package config

import (
	"os"
	"strconv"
	"strings"
	"time"
)

// Config holds the server configuration.
type Config struct {
	// Server settings
	HTTPPort int

	// Database
	DatabaseURL string

	// Sessions
	SessionMaxDuration    time.Duration
	SessionRetention      time.Duration
	RetentionSweep        time.Duration
	TournamentParallelism int
	MaxActiveSessions     int
	StrictInvariants      bool

	// Push stream keepalive
	StreamPing time.Duration

	// Admission policy file; empty means the built-in policy
	PolicyFile string

	// Logging
	LogLevel string
}

// Load loads configuration from environment variables.
func Load() *Config {
	cfg := &Config{
		HTTPPort:              getEnvInt("HTTP_PORT", 8080),
		DatabaseURL:           getEnv("DATABASE_URL", "file:negarena.db?cache=shared&mode=rwc"),
		SessionMaxDuration:    time.Duration(getEnvInt("SESSION_MAX_DURATION_MS", 3600000)) * time.Millisecond,
		SessionRetention:      time.Duration(getEnvInt("SESSION_RETENTION_MS", 900000)) * time.Millisecond,
		RetentionSweep:        time.Duration(getEnvInt("RETENTION_SWEEP_MS", 30000)) * time.Millisecond,
		TournamentParallelism: getEnvInt("TOURNAMENT_PARALLELISM", 4),
		MaxActiveSessions:     getEnvInt("MAX_ACTIVE_SESSIONS", 64),
		StrictInvariants:      getEnvBool("STRICT_INVARIANTS", false),
		StreamPing:            time.Duration(getEnvInt("STREAM_PING_MS", 15000)) * time.Millisecond,
		PolicyFile:            getEnv("POLICY_FILE", ""),
		LogLevel:              getEnv("LOG_LEVEL", "info"),
	}
	return cfg
}

func getEnv(key, defaultVal string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return defaultVal
}

func getEnvInt(key string, defaultVal int) int {
	if val := os.Getenv(key); val != "" {
		if intVal, err := strconv.Atoi(val); err == nil {
			return intVal
		}
	}
	return defaultVal
}

func getEnvBool(key string, defaultVal bool) bool {
	if val := os.Getenv(key); val != "" {
		if b, err := strconv.ParseBool(strings.TrimSpace(val)); err == nil {
			return b
		}
	}
	return defaultVal
}

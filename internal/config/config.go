package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
)

// Config holds the application configuration.
type Config struct {
	ServerPort    int
	DatabasePath  string
	SessionSecret string // Empty means a random per-process key
	SessionTTL    time.Duration
	SessionCookie string
	AppEnv        string
	LogLevel      zerolog.Level
	CORSOrigins   []string
}

// IsProduction reports whether cookies should be marked Secure.
func (c *Config) IsProduction() bool {
	return c.AppEnv == "production"
}

// Load loads configuration from environment variables or sets defaults.
// A .env file in the working directory is read first when present.
func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		return nil, fmt.Errorf("load .env: %w", err)
	}

	port, err := strconv.Atoi(getEnv("PORT", "8080"))
	if err != nil {
		return nil, fmt.Errorf("invalid PORT: %w", err)
	}

	ttl, err := time.ParseDuration(getEnv("SESSION_TTL", "24h"))
	if err != nil {
		return nil, fmt.Errorf("invalid SESSION_TTL: %w", err)
	}
	if ttl <= 0 {
		return nil, fmt.Errorf("invalid SESSION_TTL: must be positive")
	}

	level, err := zerolog.ParseLevel(getEnv("LOG_LEVEL", "info"))
	if err != nil {
		return nil, fmt.Errorf("invalid LOG_LEVEL: %w", err)
	}

	return &Config{
		ServerPort:    port,
		DatabasePath:  getEnv("DATABASE_PATH", "./library.db"),
		SessionSecret: os.Getenv("SESSION_SECRET"),
		SessionTTL:    ttl,
		SessionCookie: getEnv("SESSION_COOKIE", "library_session"),
		AppEnv:        getEnv("APP_ENV", "development"),
		LogLevel:      level,
		CORSOrigins:   splitList(getEnv("CORS_ORIGINS", "http://localhost:8080")),
	}, nil
}

// Helper to get an environment variable with a default value.
func getEnv(key, fallback string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return fallback
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

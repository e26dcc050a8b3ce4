// Package config loads server configuration from the environment, with an
// optional .env file for local development.
package config

import (
	"log/slog"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// Config holds everything the server needs to start.
type Config struct {
	Port      string
	JWTSecret string
	SeedFile  string

	// Rate limiting applied per client (API key, falling back to IP).
	RateLimit     int           // requests per window; 0 disables
	RateWindow    time.Duration // refill window
	DemoSeed      int64         // seed for the demo capability providers
	Deterministic bool          // disable provider jitter entirely
	ShutdownGrace time.Duration
}

// Load reads configuration from the environment. A .env file in the working
// directory is applied first if present; real environment variables win.
func Load() Config {
	if err := godotenv.Load(); err == nil {
		slog.Info("loaded .env file")
	}

	return Config{
		Port:          envOr("PORT", "8080"),
		JWTSecret:     envOr("JWT_SECRET", "dev-secret-change-me"),
		SeedFile:      envOr("SEED_FILE", "data/seed.json"),
		RateLimit:     envInt("RATE_LIMIT", 120),
		RateWindow:    envDuration("RATE_WINDOW", time.Minute),
		DemoSeed:      int64(envInt("DEMO_SEED", 42)),
		Deterministic: envBool("DETERMINISTIC", false),
		ShutdownGrace: envDuration("SHUTDOWN_GRACE", 10*time.Second),
	}
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envInt(key string, fallback int) int {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		slog.Warn("invalid integer in environment, using default", "key", key, "value", v)
		return fallback
	}
	return n
}

func envBool(key string, fallback bool) bool {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		slog.Warn("invalid boolean in environment, using default", "key", key, "value", v)
		return fallback
	}
	return b
}

func envDuration(key string, fallback time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		slog.Warn("invalid duration in environment, using default", "key", key, "value", v)
		return fallback
	}
	return d
}

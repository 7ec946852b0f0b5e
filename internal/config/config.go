package config

import (
	"log"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// Config holds application configuration values. All keys use the
// MEDICORE_ prefix.
type Config struct {
	Addr            string
	DatabaseDSN     string
	BackupDir       string
	TokenTTL        time.Duration
	RateLimitRPS    float64
	RateLimitBurst  int
	ShutdownTimeout time.Duration
}

// Load reads configuration from the environment with reasonable defaults.
// A .env file in the working directory is applied first without overriding
// variables already set.
func Load() Config {
	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		log.Printf("skipping .env: %v", err)
	}

	cfg := Config{
		Addr:            getString("MEDICORE_HTTP_ADDR", ":8080"),
		DatabaseDSN:     os.Getenv("MEDICORE_PG_DSN"),
		BackupDir:       getString("MEDICORE_BACKUP_DIR", "backups"),
		TokenTTL:        getDuration("MEDICORE_TOKEN_TTL", 12*time.Hour),
		RateLimitRPS:    getFloat("MEDICORE_RATE_LIMIT_RPS", 50),
		RateLimitBurst:  getInt("MEDICORE_RATE_LIMIT_BURST", 100),
		ShutdownTimeout: getDuration("MEDICORE_SHUTDOWN_TIMEOUT", 10*time.Second),
	}
	return cfg
}

func getString(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getInt(key string, fallback int) int {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		log.Printf("invalid %s value %q, using %d", key, v, fallback)
		return fallback
	}
	return n
}

func getFloat(key string, fallback float64) float64 {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		log.Printf("invalid %s value %q, using %g", key, v, fallback)
		return fallback
	}
	return f
}

func getDuration(key string, fallback time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		log.Printf("invalid %s value %q, using %s", key, v, fallback)
		return fallback
	}
	return d
}

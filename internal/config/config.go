// internal/config/config.go
package config

import (
	"fmt"
	"log"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	HTTPAddr string

	DBDriver    string // postgres | sqlite
	DatabaseURL string

	AMQPURL       string
	DispatchQueue string

	RedisAddr      string
	RedisPass      string
	ConfigCacheTTL time.Duration

	MaxAttempts int
	BackoffBase time.Duration
	BackoffMax  time.Duration

	WorkerID           string
	WorkerPollInterval time.Duration
	WorkerBurst        int
	MockFailureRate    float64

	LogLevel    string
	CORSOrigins []string
}

// Load reads .env (if present) and the process environment.
func Load() (Config, error) {
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, relying on OS environment variables")
	}
	return FromEnv()
}

// FromEnv builds a Config from the process environment only.
func FromEnv() (Config, error) {
	cfg := Config{
		HTTPAddr:      getEnv("HTTP_ADDR", ":8080"),
		DBDriver:      getEnv("DB_DRIVER", "postgres"),
		AMQPURL:       os.Getenv("AMQP_URL"),
		DispatchQueue: getEnv("DISPATCH_QUEUE", "notification_dispatch"),
		RedisAddr:     os.Getenv("REDIS_ADDR"),
		RedisPass:     os.Getenv("REDIS_PASS"),
		WorkerID:      getEnv("WORKER_ID", defaultWorkerID()),
		LogLevel:      getEnv("LOG_LEVEL", "info"),
		CORSOrigins:   splitList(getEnv("CORS_ORIGINS", "*")),
	}

	switch cfg.DBDriver {
	case "postgres", "sqlite":
	default:
		return Config{}, fmt.Errorf("DB_DRIVER must be postgres or sqlite, got %q", cfg.DBDriver)
	}
	cfg.DatabaseURL = os.Getenv("DATABASE_URL")
	if cfg.DatabaseURL == "" {
		cfg.DatabaseURL = defaultDSN(cfg.DBDriver)
	}

	var err error
	if cfg.ConfigCacheTTL, err = getDuration("CONFIG_CACHE_TTL", 5*time.Minute); err != nil {
		return Config{}, err
	}
	if cfg.MaxAttempts, err = getInt("MAX_ATTEMPTS", 5); err != nil {
		return Config{}, err
	}
	if cfg.MaxAttempts < 1 {
		return Config{}, fmt.Errorf("MAX_ATTEMPTS must be at least 1")
	}
	if cfg.BackoffBase, err = getDuration("BACKOFF_BASE", 30*time.Second); err != nil {
		return Config{}, err
	}
	if cfg.BackoffMax, err = getDuration("BACKOFF_MAX", 30*time.Minute); err != nil {
		return Config{}, err
	}
	if cfg.WorkerPollInterval, err = getDuration("WORKER_POLL_INTERVAL", 2*time.Second); err != nil {
		return Config{}, err
	}
	if cfg.WorkerBurst, err = getInt("WORKER_BURST", 10); err != nil {
		return Config{}, err
	}
	if cfg.MockFailureRate, err = getFloat("MOCK_FAILURE_RATE", 0); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// defaultDSN builds a DSN from the DB_* variables when DATABASE_URL is unset.
func defaultDSN(driver string) string {
	if driver == "sqlite" {
		return getEnv("SQLITE_PATH", "notifications.db")
	}
	return fmt.Sprintf(
		"postgres://%s:%s@%s:%s/%s?sslmode=disable",
		os.Getenv("DB_USER"), os.Getenv("DB_PASSWORD"),
		getEnv("DB_HOST", "localhost"), getEnv("DB_PORT", "5432"), os.Getenv("DB_NAME"),
	)
}

func defaultWorkerID() string {
	host, err := os.Hostname()
	if err != nil || host == "" {
		return "worker"
	}
	return fmt.Sprintf("%s-%d", host, os.Getpid())
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getInt(key string, fallback int) (int, error) {
	v := os.Getenv(key)
	if v == "" {
		return fallback, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", key, err)
	}
	return n, nil
}

func getFloat(key string, fallback float64) (float64, error) {
	v := os.Getenv(key)
	if v == "" {
		return fallback, nil
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", key, err)
	}
	return f, nil
}

func getDuration(key string, fallback time.Duration) (time.Duration, error) {
	v := os.Getenv(key)
	if v == "" {
		return fallback, nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", key, err)
	}
	return d, nil
}

func splitList(s string) []string {
	var out []string
	for _, p := range strings.Split(s, ",") {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

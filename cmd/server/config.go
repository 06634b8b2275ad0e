package main

import (
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"

	"stockflow/internal/app"
)

// Config is read from the environment, optionally seeded from .env.
type Config struct {
	Env      string
	LogLevel string
	Port     string

	App app.Config

	// JWTSecret enables bearer auth when set.
	JWTSecret string

	ShutdownTimeout time.Duration
}

func loadConfig() Config {
	// A missing .env is normal outside development.
	_ = godotenv.Load()

	return Config{
		Env:      getEnv("APP_ENV", "development"),
		LogLevel: getEnv("LOG_LEVEL", "info"),
		Port:     getEnv("APP_PORT", "8080"),
		App: app.Config{
			Driver:                 getEnv("STORAGE_DRIVER", app.DriverPostgres),
			DatabaseURL:            os.Getenv("DATABASE_URL"),
			MaxConns:               int32(getEnvInt("DB_MAX_CONNS", 25)),
			BaseCurrency:           getEnv("BASE_CURRENCY", "USD"),
			ReservationPolicy:      getEnv("RESERVATION_POLICY", "strict"),
			ReorderRule:            os.Getenv("REORDER_RULE"),
			AuditCompressThreshold: getEnvInt("AUDIT_COMPRESS_THRESHOLD", 0),
		},
		JWTSecret:       os.Getenv("JWT_SECRET"),
		ShutdownTimeout: getEnvDuration("SHUTDOWN_TIMEOUT", 30*time.Second),
	}
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if n, err := strconv.Atoi(value); err == nil {
			return n
		}
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

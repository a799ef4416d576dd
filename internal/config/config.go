// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

// Package config loads blockpress settings from the environment.
package config

import (
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
)

// knownWeakSecrets contains default/example secrets that must be rejected.
var knownWeakSecrets = []string{
	"change-me-to-32-byte-secret-key!",
	"REPLACE_WITH_YOUR_OWN_SECRET_KEY!",
}

// Database drivers.
const (
	DriverSQLite   = "sqlite"
	DriverPostgres = "postgres"
)

// Config holds the application configuration loaded from environment variables.
type Config struct {
	Env        string `env:"BLOCKPRESS_ENV" envDefault:"development"`
	ServerHost string `env:"BLOCKPRESS_SERVER_HOST" envDefault:"localhost"`
	ServerPort int    `env:"BLOCKPRESS_SERVER_PORT" envDefault:"8080"`
	LogLevel   string `env:"BLOCKPRESS_LOG_LEVEL" envDefault:"info"`

	// Storage
	DBDriver    string `env:"BLOCKPRESS_DB_DRIVER" envDefault:"sqlite"`
	DBPath      string `env:"BLOCKPRESS_DB_PATH" envDefault:"./data/blockpress.db"`
	DatabaseURL string `env:"BLOCKPRESS_DATABASE_URL"` // Postgres DSN when DBDriver is postgres

	// Authentication
	JWTSecret     string        `env:"BLOCKPRESS_JWT_SECRET,required"`
	TokenTTL      time.Duration `env:"BLOCKPRESS_TOKEN_TTL" envDefault:"24h"`
	AdminEmail    string        `env:"BLOCKPRESS_ADMIN_EMAIL"`
	AdminPassword string        `env:"BLOCKPRESS_ADMIN_PASSWORD"`

	// Uploads
	UploadDir     string `env:"BLOCKPRESS_UPLOAD_DIR" envDefault:"./uploads"`
	UploadBaseURL string `env:"BLOCKPRESS_UPLOAD_BASE_URL" envDefault:"http://localhost:8080/uploads"`
	MaxUploadSize int64  `env:"BLOCKPRESS_MAX_UPLOAD_SIZE" envDefault:"10485760"`

	// Cache
	RedisURL    string        `env:"BLOCKPRESS_REDIS_URL"`
	CachePrefix string        `env:"BLOCKPRESS_CACHE_PREFIX" envDefault:"blockpress:"`
	CacheTTL    time.Duration `env:"BLOCKPRESS_CACHE_TTL" envDefault:"5m"`

	// Events
	NATSURL       string   `env:"BLOCKPRESS_NATS_URL"`
	NATSSubject   string   `env:"BLOCKPRESS_NATS_SUBJECT" envDefault:"blockpress.events"`
	WebhookURLs   []string `env:"BLOCKPRESS_WEBHOOK_URLS" envSeparator:","`
	WebhookSecret string   `env:"BLOCKPRESS_WEBHOOK_SECRET"`

	// HTTP
	CORSOrigins  []string `env:"BLOCKPRESS_CORS_ORIGINS" envSeparator:"," envDefault:"http://localhost:3000"`
	APIRateLimit float64  `env:"BLOCKPRESS_API_RATE_LIMIT" envDefault:"10"` // requests per second per IP
	APIRateBurst int      `env:"BLOCKPRESS_API_RATE_BURST" envDefault:"30"`

	// Jobs
	CleanupSchedule string        `env:"BLOCKPRESS_CLEANUP_SCHEDULE" envDefault:"0 3 * * *"`
	DraftMaxAge     time.Duration `env:"BLOCKPRESS_DRAFT_MAX_AGE" envDefault:"168h"`
	EventRetention  time.Duration `env:"BLOCKPRESS_EVENT_RETENTION" envDefault:"720h"`
}

// IsDevelopment returns true if the application is running in development mode.
func (c Config) IsDevelopment() bool {
	return c.Env == "development"
}

// ServerAddr returns the full server address in host:port format.
func (c Config) ServerAddr() string {
	return fmt.Sprintf("%s:%d", c.ServerHost, c.ServerPort)
}

// UseRedisCache returns true if Redis caching is configured.
func (c Config) UseRedisCache() bool {
	return c.RedisURL != ""
}

// UsePostgres returns true if posts live in Postgres instead of SQLite.
func (c Config) UsePostgres() bool {
	return c.DBDriver == DriverPostgres
}

// MinJWTSecretLength is the minimum required length for the token signing secret.
const MinJWTSecretLength = 32

// Load parses environment variables and returns a Config struct.
func Load() (*Config, error) {
	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}

	if len(cfg.JWTSecret) < MinJWTSecretLength {
		return nil, fmt.Errorf("BLOCKPRESS_JWT_SECRET must be at least %d bytes long, got %d bytes; "+
			"generate a secure secret with: openssl rand -base64 32",
			MinJWTSecretLength, len(cfg.JWTSecret))
	}

	for _, weak := range knownWeakSecrets {
		if cfg.JWTSecret == weak {
			return nil, fmt.Errorf("BLOCKPRESS_JWT_SECRET is a known default value and must not be used")
		}
	}

	switch cfg.DBDriver {
	case DriverSQLite:
	case DriverPostgres:
		if cfg.DatabaseURL == "" {
			return nil, fmt.Errorf("BLOCKPRESS_DATABASE_URL is required when BLOCKPRESS_DB_DRIVER is %q", DriverPostgres)
		}
	default:
		return nil, fmt.Errorf("unsupported BLOCKPRESS_DB_DRIVER %q", cfg.DBDriver)
	}

	if cfg.MaxUploadSize <= 0 {
		return nil, fmt.Errorf("BLOCKPRESS_MAX_UPLOAD_SIZE must be positive")
	}

	if !hasMinimumEntropy(cfg.JWTSecret) {
		slog.Warn("BLOCKPRESS_JWT_SECRET has low character diversity; " +
			"consider generating a random secret with: openssl rand -base64 32")
	}

	return cfg, nil
}

// hasMinimumEntropy checks that a secret contains at least 3 character classes
// (lowercase, uppercase, digits, special characters).
func hasMinimumEntropy(s string) bool {
	charTypes := 0
	if strings.ContainsAny(s, "abcdefghijklmnopqrstuvwxyz") {
		charTypes++
	}
	if strings.ContainsAny(s, "ABCDEFGHIJKLMNOPQRSTUVWXYZ") {
		charTypes++
	}
	if strings.ContainsAny(s, "0123456789") {
		charTypes++
	}
	if strings.ContainsAny(s, "!@#$%^&*()-_=+[]{}|;:,.<>?/~`'\"\\") {
		charTypes++
	}
	return charTypes >= 3
}

package config

import (
	"fmt"
	"os"
	"strconv"
	"time"
)

// Config holds runtime settings loaded from env vars.
type Config struct {
	HTTPAddr    string
	Environment string

	Log struct {
		Level  string
		Format string
		Output string
	}

	DB struct {
		Host     string
		Port     string
		User     string
		Password string
		Name     string
		SSLMode  string
	}

	Redis struct {
		Host     string
		Port     int
		Password string
		DB       int
		PoolSize int
	}

	// Daily invite quotas per subscription tier.
	Invites struct {
		FreeDailyQuota    int
		PremiumDailyQuota int
	}

	// MatchRequestTTL is the window after which a pending request expires.
	MatchRequestTTL time.Duration

	// ScoreTTL is the forward expiry for cached compatibility scores.
	ScoreTTL time.Duration

	// ExclusionTTL bounds staleness of the cached exclusion set.
	ExclusionTTL time.Duration

	// ComputeBudget bounds a live compatibility computation before the
	// caller falls back to the neutral default.
	ComputeBudget time.Duration
}

// Load loads configuration from environment variables.
// Optional variables fall back to development defaults.
func Load() Config {
	cfg := Config{
		HTTPAddr:    envOr("HTTP_ADDR", ":8080"),
		Environment: envOr("ENVIRONMENT", "development"),
	}

	cfg.Log.Level = envOr("LOG_LEVEL", "info")
	cfg.Log.Format = envOr("LOG_FORMAT", "json")
	cfg.Log.Output = envOr("LOG_OUTPUT", "stdout")

	cfg.DB.Host = envOr("DB_HOST", "localhost")
	cfg.DB.Port = envOr("DB_PORT", "5432")
	cfg.DB.User = envOr("DB_USER", "postgres")
	cfg.DB.Password = envOr("DB_PASSWORD", "postgres")
	cfg.DB.Name = envOr("DB_NAME", "astromatch")
	cfg.DB.SSLMode = envOr("DB_SSLMODE", "disable")

	cfg.Redis.Host = envOr("REDIS_HOST", "localhost")
	cfg.Redis.Port = envIntOr("REDIS_PORT", 6379)
	cfg.Redis.Password = os.Getenv("REDIS_PASSWORD")
	cfg.Redis.DB = envIntOr("REDIS_DB", 0)
	cfg.Redis.PoolSize = envIntOr("REDIS_POOL_SIZE", 10)

	cfg.Invites.FreeDailyQuota = envIntOr("INVITE_QUOTA_FREE", 5)
	cfg.Invites.PremiumDailyQuota = envIntOr("INVITE_QUOTA_PREMIUM", 25)

	cfg.MatchRequestTTL = time.Duration(envIntOr("MATCH_REQUEST_TTL_HOURS", 72)) * time.Hour
	cfg.ScoreTTL = time.Duration(envIntOr("SCORE_TTL_HOURS", 168)) * time.Hour
	cfg.ExclusionTTL = time.Duration(envIntOr("EXCLUSION_TTL_SECONDS", 300)) * time.Second
	cfg.ComputeBudget = time.Duration(envIntOr("COMPUTE_BUDGET_MS", 500)) * time.Millisecond

	return cfg
}

// Validate checks that all required configuration is present and valid.
func (c Config) Validate() error {
	if c.DB.Host == "" || c.DB.Name == "" {
		return fmt.Errorf("database host and name are required")
	}
	if c.Invites.FreeDailyQuota < 0 || c.Invites.PremiumDailyQuota < 0 {
		return fmt.Errorf("invite quotas must not be negative")
	}
	if c.MatchRequestTTL <= 0 {
		return fmt.Errorf("match request TTL must be positive")
	}
	return nil
}

// IsDevelopment returns true if running in development mode.
func (c Config) IsDevelopment() bool {
	return c.Environment == "development" || c.Environment == "dev"
}

func envOr(key, fallback string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return fallback
}

func envIntOr(key string, fallback int) int {
	if value := os.Getenv(key); value != "" {
		if n, err := strconv.Atoi(value); err == nil {
			return n
		}
	}
	return fallback
}

// Package config loads and validates all environment variables at startup.
// Every other package receives typed values; nothing reads os.Getenv directly.
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config is the fully-parsed application configuration.
type Config struct {
	// ── Server ────────────────────────────────────────────────────────────────
	Port    string // default "8080", serves HTTP and gRPC
	Env     string // "development" | "staging" | "production"
	BaseURL string // used for links in emails

	// ── Storage ───────────────────────────────────────────────────────────────
	DatabaseURL string
	// RedisURL is optional. Empty means the in-memory result cache.
	RedisURL       string
	ResultCacheTTL time.Duration // default 10m

	// ── Survey ────────────────────────────────────────────────────────────────
	// SurveyCatalogPath points at a JSON catalog. Empty means the built-in one.
	SurveyCatalogPath string

	// ── Stripe ────────────────────────────────────────────────────────────────
	StripeSecretKey     string
	StripeWebhookSecret string

	// ── Coach notes ───────────────────────────────────────────────────────────
	// Both providers are optional. With neither key set the worker falls back
	// to the static note built from the level description.
	AnthropicAPIKey string
	AnthropicModel  string
	DeepSeekAPIKey  string
	DeepSeekModel   string
	DeepSeekBaseURL string

	// ── Resend ────────────────────────────────────────────────────────────────
	ResendAPIKey  string
	EmailFromAddr string
	EmailFromName string

	// ── Worker ────────────────────────────────────────────────────────────────
	WorkerCount  int           // default 3
	PollInterval time.Duration // default 30s
	JobTimeout   time.Duration // default 5m
	MaxRetries   int           // default 3

	// RateLimitPerMinute caps assessment submissions per client IP.
	RateLimitPerMinute int // default 10
}

// Load reads all environment variables and returns a validated Config.
// A .env file in the working directory is loaded first when present; real
// environment variables always take precedence over its values.
func Load() (*Config, error) {
	// godotenv.Load never overrides variables that are already set.
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("config: load .env: %w", err)
	}
	return fromEnv()
}

func fromEnv() (*Config, error) {
	c := &Config{
		Port:                getEnv("PORT", "8080"),
		Env:                 getEnv("ENV", "development"),
		BaseURL:             getEnv("BASE_URL", "http://localhost:8080"),
		DatabaseURL:         os.Getenv("DATABASE_URL"),
		RedisURL:            os.Getenv("REDIS_URL"),
		ResultCacheTTL:      getEnvAsDuration("RESULT_CACHE_TTL", 10*time.Minute),
		SurveyCatalogPath:   os.Getenv("SURVEY_CATALOG_PATH"),
		StripeSecretKey:     os.Getenv("STRIPE_SECRET_KEY"),
		StripeWebhookSecret: os.Getenv("STRIPE_WEBHOOK_SECRET"),
		AnthropicAPIKey:     os.Getenv("ANTHROPIC_API_KEY"),
		AnthropicModel:      os.Getenv("ANTHROPIC_MODEL"),
		DeepSeekAPIKey:      os.Getenv("DEEPSEEK_API_KEY"),
		DeepSeekModel:       os.Getenv("DEEPSEEK_MODEL"),
		DeepSeekBaseURL:     os.Getenv("DEEPSEEK_BASE_URL"),
		ResendAPIKey:        os.Getenv("RESEND_API_KEY"),
		EmailFromAddr:       getEnv("EMAIL_FROM_ADDR", "coach@smokefree.vn"),
		EmailFromName:       getEnv("EMAIL_FROM_NAME", "Smoke-free"),
		WorkerCount:         getEnvAsInt("WORKER_COUNT", 3),
		PollInterval:        getEnvAsDuration("POLL_INTERVAL", 30*time.Second),
		JobTimeout:          getEnvAsDuration("JOB_TIMEOUT", 5*time.Minute),
		MaxRetries:          getEnvAsInt("MAX_RETRIES", 3),
		RateLimitPerMinute:  getEnvAsInt("RATE_LIMIT_PER_MINUTE", 10),
	}

	return c, c.validate()
}

// IsProduction reports whether ENV is "production".
func (c *Config) IsProduction() bool {
	return c.Env == "production"
}

func (c *Config) validate() error {
	var errs []error

	required := []struct{ name, val string }{
		{"DATABASE_URL", c.DatabaseURL},
		{"STRIPE_SECRET_KEY", c.StripeSecretKey},
		{"STRIPE_WEBHOOK_SECRET", c.StripeWebhookSecret},
		{"RESEND_API_KEY", c.ResendAPIKey},
	}
	for _, r := range required {
		if r.val == "" {
			errs = append(errs, fmt.Errorf("missing required env var: %s", r.name))
		}
	}

	if c.WorkerCount < 1 {
		errs = append(errs, fmt.Errorf("WORKER_COUNT must be at least 1, got %d", c.WorkerCount))
	}
	if c.RateLimitPerMinute < 1 {
		errs = append(errs, fmt.Errorf("RATE_LIMIT_PER_MINUTE must be at least 1, got %d", c.RateLimitPerMinute))
	}

	return errors.Join(errs...)
}

// ─── HELPERS ─────────────────────────────────────────────────────────────────

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	if value, err := strconv.Atoi(os.Getenv(key)); err == nil {
		return value
	}
	return defaultValue
}

// getEnvAsDuration accepts Go duration syntax ("30s", "5m") or a plain
// integer, read as minutes for *_MINUTES keys and seconds otherwise.
func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	if value, err := strconv.Atoi(valueStr); err == nil {
		if strings.HasSuffix(key, "_MINUTES") {
			return time.Duration(value) * time.Minute
		}
		return time.Duration(value) * time.Second
	}
	if duration, err := time.ParseDuration(valueStr); err == nil {
		return duration
	}
	return defaultValue
}

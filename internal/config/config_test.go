package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var allKeys = []string{
	"PORT", "ENV", "BASE_URL", "DATABASE_URL", "REDIS_URL", "RESULT_CACHE_TTL",
	"SURVEY_CATALOG_PATH", "STRIPE_SECRET_KEY", "STRIPE_WEBHOOK_SECRET",
	"ANTHROPIC_API_KEY", "ANTHROPIC_MODEL", "DEEPSEEK_API_KEY", "DEEPSEEK_MODEL",
	"DEEPSEEK_BASE_URL", "RESEND_API_KEY", "EMAIL_FROM_ADDR", "EMAIL_FROM_NAME",
	"WORKER_COUNT", "POLL_INTERVAL", "JOB_TIMEOUT", "MAX_RETRIES",
	"RATE_LIMIT_PER_MINUTE",
}

// clearEnv blanks every key Load reads; t.Setenv restores them afterwards.
func clearEnv(t *testing.T) {
	t.Helper()
	for _, k := range allKeys {
		t.Setenv(k, "")
	}
}

func setRequired(t *testing.T) {
	t.Helper()
	t.Setenv("DATABASE_URL", "postgres://localhost/smokefree")
	t.Setenv("STRIPE_SECRET_KEY", "sk_test_1")
	t.Setenv("STRIPE_WEBHOOK_SECRET", "whsec_1")
	t.Setenv("RESEND_API_KEY", "re_1")
}

func TestFromEnv_Defaults(t *testing.T) {
	clearEnv(t)
	setRequired(t)

	c, err := fromEnv()
	require.NoError(t, err)

	assert.Equal(t, "8080", c.Port)
	assert.Equal(t, "development", c.Env)
	assert.False(t, c.IsProduction())
	assert.Equal(t, 10*time.Minute, c.ResultCacheTTL)
	assert.Equal(t, 3, c.WorkerCount)
	assert.Equal(t, 30*time.Second, c.PollInterval)
	assert.Equal(t, 5*time.Minute, c.JobTimeout)
	assert.Equal(t, 3, c.MaxRetries)
	assert.Equal(t, 10, c.RateLimitPerMinute)
	assert.Empty(t, c.RedisURL)
	assert.Empty(t, c.SurveyCatalogPath)
}

func TestFromEnv_Overrides(t *testing.T) {
	clearEnv(t)
	setRequired(t)
	t.Setenv("ENV", "production")
	t.Setenv("POLL_INTERVAL", "45")
	t.Setenv("JOB_TIMEOUT", "2m")
	t.Setenv("RESULT_CACHE_TTL", "bogus")
	t.Setenv("WORKER_COUNT", "8")
	t.Setenv("REDIS_URL", "redis://localhost:6379/0")

	c, err := fromEnv()
	require.NoError(t, err)

	assert.True(t, c.IsProduction())
	assert.Equal(t, 45*time.Second, c.PollInterval)
	assert.Equal(t, 2*time.Minute, c.JobTimeout)
	assert.Equal(t, 10*time.Minute, c.ResultCacheTTL, "unparseable value keeps the default")
	assert.Equal(t, 8, c.WorkerCount)
	assert.Equal(t, "redis://localhost:6379/0", c.RedisURL)
}

func TestFromEnv_ReportsEveryMissingVar(t *testing.T) {
	clearEnv(t)
	t.Setenv("WORKER_COUNT", "0")

	_, err := fromEnv()
	require.Error(t, err)

	for _, want := range []string{
		"DATABASE_URL",
		"STRIPE_SECRET_KEY",
		"STRIPE_WEBHOOK_SECRET",
		"RESEND_API_KEY",
		"WORKER_COUNT must be at least 1",
	} {
		assert.Contains(t, err.Error(), want)
	}
}

func TestLoad_DotEnvDoesNotOverrideRealEnv(t *testing.T) {
	clearEnv(t)
	setRequired(t)
	os.Unsetenv("PORT")
	os.Unsetenv("EMAIL_FROM_NAME")
	t.Cleanup(func() {
		os.Unsetenv("PORT")
		os.Unsetenv("EMAIL_FROM_NAME")
	})
	t.Setenv("DATABASE_URL", "postgres://real/db")

	dir := t.TempDir()
	envFile := "PORT=9090\nEMAIL_FROM_NAME=\"Coach Lan\"\nDATABASE_URL=postgres://file/db\n"
	require.NoError(t, os.WriteFile(filepath.Join(dir, ".env"), []byte(envFile), 0o600))
	wd, err := os.Getwd()
	require.NoError(t, err)
	require.NoError(t, os.Chdir(dir))
	t.Cleanup(func() { _ = os.Chdir(wd) })

	c, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "9090", c.Port)
	assert.Equal(t, "Coach Lan", c.EmailFromName)
	assert.Equal(t, "postgres://real/db", c.DatabaseURL)
}

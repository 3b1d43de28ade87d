package config_test

import (
	"log/slog"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Mindburn-Labs/golive/pkg/config"
)

// unsetenv clears keys for the duration of the test.
func unsetenv(t *testing.T, keys ...string) {
	t.Helper()
	for _, k := range keys {
		t.Setenv(k, "")
		require.NoError(t, os.Unsetenv(k))
	}
}

// TestLoad_Defaults verifies that Load() returns usable defaults when no
// environment variables are set.
func TestLoad_Defaults(t *testing.T) {
	unsetenv(t, "GOLIVE_LOG_LEVEL", "GOLIVE_LOG_FORMAT", "GOLIVE_AUDIT", "GOLIVE_ACTOR", "GOLIVE_EVIDENCE_PATTERN",
		"GOLIVE_DECISION_LOG_DSN", "GOLIVE_OTLP_ENDPOINT", "GOLIVE_NOTIFY_PROVIDER", "GOLIVE_NOTIFY_TO",
		"GOLIVE_NOTIFY_SUBJECT", "GOLIVE_NOTIFY_DEDUPE_TTL", "GOLIVE_ARTIFACT_STORAGE_TYPE")

	cfg, err := config.Load()
	require.NoError(t, err)

	assert.Equal(t, "INFO", cfg.LogLevel)
	assert.Equal(t, "json", cfg.LogFormat)
	assert.True(t, cfg.Audit)
	assert.Equal(t, "system", cfg.Actor)
	assert.Equal(t, "*.log", cfg.EvidencePattern)
	assert.Equal(t, "stdout", cfg.Notify.Provider)
	assert.Equal(t, "ceo@example.com", cfg.Notify.To)
	assert.Equal(t, "Go-Live Validation Result", cfg.Notify.Subject)
	assert.Equal(t, 24*time.Hour, cfg.Notify.DedupeTTL)
	assert.Equal(t, "fs", cfg.Artifacts.Type)
	assert.Empty(t, cfg.DecisionLogDSN)
	assert.Empty(t, cfg.OTLPEndpoint)
}

// TestLoad_Overrides verifies that environment variables override defaults,
// including prefixed nested sections.
func TestLoad_Overrides(t *testing.T) {
	t.Setenv("GOLIVE_LOG_LEVEL", "debug")
	t.Setenv("GOLIVE_AUDIT", "false")
	t.Setenv("GOLIVE_EVIDENCE_PATTERN", "*.txt")
	t.Setenv("GOLIVE_DECISION_LOG_DSN", "postgres://golive@db:5432/golive")
	t.Setenv("GOLIVE_NOTIFY_PROVIDER", "sendgrid")
	t.Setenv("GOLIVE_NOTIFY_SENDGRID_API_KEY", "sg-key")
	t.Setenv("GOLIVE_NOTIFY_REDIS_ADDR", "redis:6379")
	t.Setenv("GOLIVE_NOTIFY_DEDUPE_TTL", "90m")
	t.Setenv("GOLIVE_ARTIFACT_STORAGE_TYPE", "s3")
	t.Setenv("GOLIVE_ARTIFACT_S3_BUCKET", "evidence")

	cfg, err := config.Load()
	require.NoError(t, err)

	level, err := cfg.SlogLevel()
	require.NoError(t, err)
	assert.Equal(t, slog.LevelDebug, level)
	assert.False(t, cfg.Audit)
	assert.Equal(t, "*.txt", cfg.EvidencePattern)
	assert.Equal(t, "postgres://golive@db:5432/golive", cfg.DecisionLogDSN)
	assert.Equal(t, "sendgrid", cfg.Notify.Provider)
	assert.Equal(t, "sg-key", cfg.Notify.SendGridAPIKey)
	assert.Equal(t, "redis:6379", cfg.Notify.RedisAddr)
	assert.Equal(t, 90*time.Minute, cfg.Notify.DedupeTTL)
	assert.Equal(t, "s3", cfg.Artifacts.Type)
	assert.Equal(t, "evidence", cfg.Artifacts.S3Bucket)
}

func TestLoad_Invalid(t *testing.T) {
	t.Run("log level", func(t *testing.T) {
		t.Setenv("GOLIVE_LOG_LEVEL", "LOUD")
		_, err := config.Load()
		assert.Error(t, err)
	})
	t.Run("log format", func(t *testing.T) {
		t.Setenv("GOLIVE_LOG_FORMAT", "xml")
		_, err := config.Load()
		assert.Error(t, err)
	})
	t.Run("duration", func(t *testing.T) {
		t.Setenv("GOLIVE_NOTIFY_DEDUPE_TTL", "soon")
		_, err := config.Load()
		assert.Error(t, err)
	})
}

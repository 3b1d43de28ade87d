// Package config loads golive settings from GOLIVE_* environment variables
// and gate profiles from YAML.
package config

import (
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
)

// Config holds CLI configuration. Flags override these values.
type Config struct {
	LogLevel  string `env:"GOLIVE_LOG_LEVEL" envDefault:"INFO"`
	LogFormat string `env:"GOLIVE_LOG_FORMAT" envDefault:"json"`
	Audit     bool   `env:"GOLIVE_AUDIT" envDefault:"true"`
	Actor     string `env:"GOLIVE_ACTOR" envDefault:"system"`

	EvidenceDir     string `env:"GOLIVE_EVIDENCE_DIR" envDefault:"."`
	EvidencePattern string `env:"GOLIVE_EVIDENCE_PATTERN" envDefault:"*.log"`
	OutputDir       string `env:"GOLIVE_OUTPUT_DIR"`
	GatesFile       string `env:"GOLIVE_GATES_FILE"`
	GateProfile     string `env:"GOLIVE_GATE_PROFILE"`

	DecisionLogDSN string `env:"GOLIVE_DECISION_LOG_DSN"`

	Notify    NotifyConfig   `envPrefix:"GOLIVE_NOTIFY_"`
	Artifacts ArtifactConfig `envPrefix:"GOLIVE_ARTIFACT_"`

	OTLPEndpoint string `env:"GOLIVE_OTLP_ENDPOINT"`
	Environment  string `env:"GOLIVE_ENVIRONMENT" envDefault:"production"`
}

// NotifyConfig selects and configures the notification sender.
type NotifyConfig struct {
	// Provider is "sendgrid", "smtp" or "stdout".
	Provider       string        `env:"PROVIDER" envDefault:"stdout"`
	From           string        `env:"FROM" envDefault:"admin@example.com"`
	To             string        `env:"TO" envDefault:"ceo@example.com"`
	Subject        string        `env:"SUBJECT" envDefault:"Go-Live Validation Result"`
	SendGridAPIKey string        `env:"SENDGRID_API_KEY"`
	SendGridURL    string        `env:"SENDGRID_URL"`
	SMTPAddr       string        `env:"SMTP_ADDR" envDefault:"localhost:25"`
	SMTPUsername   string        `env:"SMTP_USERNAME"`
	SMTPPassword   string        `env:"SMTP_PASSWORD"`
	RedisAddr      string        `env:"REDIS_ADDR"`
	RedisPassword  string        `env:"REDIS_PASSWORD"`
	RedisDB        int           `env:"REDIS_DB" envDefault:"0"`
	DedupeTTL      time.Duration `env:"DEDUPE_TTL" envDefault:"24h"`
	RatePerSecond  float64       `env:"RATE_PER_SECOND" envDefault:"1"`
	Burst          int           `env:"BURST" envDefault:"1"`
}

// ArtifactConfig selects the content-addressed store used by publish.
type ArtifactConfig struct {
	// Type is "fs", "s3" or "gcs".
	Type       string `env:"STORAGE_TYPE" envDefault:"fs"`
	Dir        string `env:"DIR" envDefault:"data/artifacts"`
	S3Bucket   string `env:"S3_BUCKET"`
	S3Region   string `env:"S3_REGION" envDefault:"us-east-1"`
	S3Endpoint string `env:"S3_ENDPOINT"`
	S3Prefix   string `env:"S3_PREFIX"`
	GCSBucket  string `env:"GCS_BUCKET"`
	GCSPrefix  string `env:"GCS_PREFIX"`
}

// Load parses the environment.
func Load() (*Config, error) {
	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return nil, fmt.Errorf("parse env: %w", err)
	}
	if _, err := cfg.SlogLevel(); err != nil {
		return nil, err
	}
	switch cfg.LogFormat {
	case "json", "text":
	default:
		return nil, fmt.Errorf("GOLIVE_LOG_FORMAT: unsupported format %q", cfg.LogFormat)
	}
	return &cfg, nil
}

// SlogLevel maps LogLevel onto a slog.Level.
func (c *Config) SlogLevel() (slog.Level, error) {
	var level slog.Level
	if err := level.UnmarshalText([]byte(strings.ToUpper(c.LogLevel))); err != nil {
		return 0, fmt.Errorf("GOLIVE_LOG_LEVEL: %w", err)
	}
	return level, nil
}

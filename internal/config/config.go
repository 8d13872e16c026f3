// Package config loads and validates app config from env and an optional .env file using Viper.
package config

import (
	"errors"
	"time"

	"github.com/spf13/viper"
)

// Config holds application configuration loaded from the environment.
type Config struct {
	// HTTPAddr is the address the HTTP server listens on (e.g. :8080).
	HTTPAddr string `mapstructure:"HTTP_ADDR"`
	// DatabaseURL is the Postgres DSN; empty disables notification and audit persistence.
	DatabaseURL string `mapstructure:"DATABASE_URL"`
	// Env is the application environment (e.g. "development", "production").
	Env string `mapstructure:"APP_ENV"`

	// LogLevel is the zap log level: debug, info, warn, error (default info).
	LogLevel string `mapstructure:"LOG_LEVEL"`
	// LogFormat is "json" or "console" (default json).
	LogFormat string `mapstructure:"LOG_FORMAT"`

	// JWTPublicKey is the PEM-encoded public key (or path to a PEM file) of the
	// identity provider. When set, WebSocket clients must present a valid token on
	// connect and join-room identity must match the token claims. Empty disables
	// handshake auth; must not be empty when Env is production.
	JWTPublicKey string `mapstructure:"JWT_PUBLIC_KEY"`
	// JWTIssuer is the expected iss claim (e.g. "peoplepulse-auth").
	JWTIssuer string `mapstructure:"JWT_ISSUER"`
	// JWTAudience is the expected aud claim (e.g. "peoplepulse-realtime").
	JWTAudience string `mapstructure:"JWT_AUDIENCE"`

	// InternalAPIToken authorizes the collaborator-facing /internal/v1 endpoints.
	// Required when Env is production.
	InternalAPIToken string `mapstructure:"INTERNAL_API_TOKEN"`

	// LockTTL expires advisory action locks after this duration (e.g. "30m").
	// Empty or "0" keeps a lock until explicit release or holder disconnect.
	LockTTL string `mapstructure:"LOCK_TTL"`

	// NR1AlertThreshold is the nr1 risk score that triggers an alert notification.
	NR1AlertThreshold float64 `mapstructure:"NR1_ALERT_THRESHOLD"`

	// OTLPEndpoint is the OTLP gRPC endpoint for traces and metrics (e.g.
	// http://localhost:4317). Empty disables export (no-op providers).
	OTLPEndpoint string `mapstructure:"OTEL_EXPORTER_OTLP_ENDPOINT"`
	// OTLPInsecure forces plaintext OTLP export even for https endpoints
	// (standard OTEL_EXPORTER_OTLP_INSECURE behavior).
	OTLPInsecure bool `mapstructure:"OTEL_EXPORTER_OTLP_INSECURE"`
}

// Load reads .env (if present), then builds and validates Config from the environment via Viper.
// Missing .env is ignored (e.g. in CI). Env vars override .env. Returns an error if required fields are invalid.
func Load() (*Config, error) {
	v := viper.New()

	v.SetConfigFile(".env")
	v.SetConfigType("env")
	_ = v.ReadInConfig() // ignore ErrConfigFileNotFound

	v.AutomaticEnv()

	v.SetDefault("HTTP_ADDR", ":8080")
	v.SetDefault("DATABASE_URL", "")
	v.SetDefault("APP_ENV", "")
	v.SetDefault("LOG_LEVEL", "info")
	v.SetDefault("LOG_FORMAT", "json")
	v.SetDefault("JWT_PUBLIC_KEY", "")
	v.SetDefault("JWT_ISSUER", "peoplepulse-auth")
	v.SetDefault("JWT_AUDIENCE", "peoplepulse-realtime")
	v.SetDefault("INTERNAL_API_TOKEN", "")
	v.SetDefault("LOCK_TTL", "")
	v.SetDefault("NR1_ALERT_THRESHOLD", 3)
	v.SetDefault("OTEL_EXPORTER_OTLP_ENDPOINT", "")
	v.SetDefault("OTEL_EXPORTER_OTLP_INSECURE", false)

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, err
	}

	if cfg.HTTPAddr == "" {
		return nil, errors.New("config: HTTP_ADDR must be set")
	}
	if cfg.Env == "production" {
		if cfg.JWTPublicKey == "" {
			return nil, errors.New("config: JWT_PUBLIC_KEY must be set when APP_ENV=production")
		}
		if cfg.InternalAPIToken == "" {
			return nil, errors.New("config: INTERNAL_API_TOKEN must be set when APP_ENV=production")
		}
	}
	if cfg.LockTTL != "" {
		if _, err := time.ParseDuration(cfg.LockTTL); err != nil {
			return nil, errors.New("config: LOCK_TTL must be a duration (e.g. 30m) or empty")
		}
	}
	if cfg.NR1AlertThreshold < 0 {
		return nil, errors.New("config: NR1_ALERT_THRESHOLD must not be negative")
	}

	return &cfg, nil
}

// LockTTLDuration parses LockTTL as a time.Duration. Returns 0 (no expiry) if unset or invalid.
func (c *Config) LockTTLDuration() time.Duration {
	if c.LockTTL == "" {
		return 0
	}
	d, err := time.ParseDuration(c.LockTTL)
	if err != nil || d < 0 {
		return 0
	}
	return d
}

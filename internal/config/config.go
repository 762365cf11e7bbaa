// Package config provides the environment configuration shared by cmd/api,
// cmd/worker and geonotifyctl. Database and Redis settings are read by their
// own packages.
package config

import (
	"errors"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// ErrMissingSigningKey is returned in production without JWT_SIGNING_KEY.
var ErrMissingSigningKey = errors.New("JWT_SIGNING_KEY must be set in production")

// Config is populated from environment variables.
type Config struct {
	// HTTP server
	Port        string
	Environment string // development, staging, production
	RequireTLS  bool

	// Telemetry
	OTelEnabled     bool
	OTelEndpoint    string
	OTelSampleRatio float64

	// Auth
	JWTSigningKey string
	JWTIssuer     string
	JWTAudience   string

	CORSAllowOrigins []string

	// ZoneCacheTTL is the lifetime of the cached catalog snapshot.
	ZoneCacheTTL time.Duration

	// Pub/Sub
	PubSubProjectID           string
	PubSubSamplesSubscription string
	PubSubEscalationTopic     string

	// Push delivery
	PushGatewayURL    string
	PushRatePerSecond float64
	PushConcurrency   int
	PushSendTimeout   time.Duration

	// Escalation sweep
	SweepInterval    time.Duration
	SweepConcurrency int
}

// FromEnv loads .env if present and reads the configuration.
func FromEnv() (*Config, error) {
	_ = godotenv.Load(".env")

	cfg := &Config{
		Port:        envOr("APP_PORT", "8080"),
		Environment: envOr("APP_ENV", "development"),
		RequireTLS:  envBool("REQUIRE_TLS", false),

		OTelEnabled:     envBool("OTEL_ENABLED", false),
		OTelEndpoint:    envOr("OTEL_EXPORTER_OTLP_ENDPOINT", "localhost:4317"),
		OTelSampleRatio: envFloat("OTEL_TRACES_SAMPLER_ARG", 1),

		JWTSigningKey: os.Getenv("JWT_SIGNING_KEY"),
		JWTIssuer:     envOr("JWT_ISSUER", "https://api.geonotify.dev"),
		JWTAudience:   envOr("JWT_AUDIENCE", "geonotify-api"),

		CORSAllowOrigins: envList("CORS_ALLOW_ORIGINS", []string{
			"http://localhost:3000",
			"http://localhost:5173",
		}),

		ZoneCacheTTL: envDuration("ZONE_CACHE_TTL", 30*time.Second),

		PubSubProjectID:           os.Getenv("PUBSUB_PROJECT_ID"),
		PubSubSamplesSubscription: envOr("PUBSUB_SAMPLES_SUBSCRIPTION", "geonotify-samples"),
		PubSubEscalationTopic:     os.Getenv("PUBSUB_ESCALATION_TOPIC"),

		PushGatewayURL:    os.Getenv("PUSH_GATEWAY_URL"),
		PushRatePerSecond: envFloat("PUSH_RATE_PER_SECOND", 20),
		PushConcurrency:   envInt("PUSH_CONCURRENCY", 8),
		PushSendTimeout:   envDuration("PUSH_SEND_TIMEOUT", 5*time.Second),

		SweepInterval:    envDuration("SWEEP_INTERVAL", 2*time.Minute),
		SweepConcurrency: envInt("SWEEP_CONCURRENCY", 4),
	}

	if cfg.IsProduction() && cfg.JWTSigningKey == "" {
		return nil, ErrMissingSigningKey
	}
	if cfg.JWTSigningKey == "" {
		cfg.JWTSigningKey = "dev-signing-key-do-not-use-in-production"
	}
	return cfg, nil
}

// IsProduction returns true if running in production environment.
func (c *Config) IsProduction() bool {
	return c.Environment == "production"
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return fallback
}

func envFloat(key string, fallback float64) float64 {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil && f > 0 {
			return f
		}
	}
	return fallback
}

func envBool(key string, fallback bool) bool {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			return b
		}
	}
	return fallback
}

func envDuration(key string, fallback time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil && d > 0 {
			return d
		}
	}
	return fallback
}

func envList(key string, fallback []string) []string {
	if v := os.Getenv(key); v != "" {
		parts := strings.Split(v, ",")
		result := make([]string, 0, len(parts))
		for _, p := range parts {
			if trimmed := strings.TrimSpace(p); trimmed != "" {
				result = append(result, trimmed)
			}
		}
		if len(result) > 0 {
			return result
		}
	}
	return fallback
}

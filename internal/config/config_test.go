package config_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/geonotify/geonotify/internal/config"
)

func TestFromEnv_Defaults(t *testing.T) {
	for _, key := range []string{"APP_PORT", "APP_ENV", "JWT_SIGNING_KEY", "JWT_AUDIENCE", "ZONE_CACHE_TTL", "PUSH_RATE_PER_SECOND", "PUSH_CONCURRENCY", "PUSH_SEND_TIMEOUT", "SWEEP_INTERVAL", "SWEEP_CONCURRENCY"} {
		t.Setenv(key, "")
	}

	cfg, err := config.FromEnv()
	require.NoError(t, err)

	assert.Equal(t, "8080", cfg.Port)
	assert.Equal(t, "development", cfg.Environment)
	assert.False(t, cfg.IsProduction())
	assert.NotEmpty(t, cfg.JWTSigningKey)
	assert.Equal(t, "geonotify-api", cfg.JWTAudience)
	assert.Equal(t, 30*time.Second, cfg.ZoneCacheTTL)
	assert.Equal(t, 20.0, cfg.PushRatePerSecond)
	assert.Equal(t, 8, cfg.PushConcurrency)
	assert.Equal(t, 5*time.Second, cfg.PushSendTimeout)
	assert.Equal(t, 2*time.Minute, cfg.SweepInterval)
	assert.Equal(t, 4, cfg.SweepConcurrency)
}

func TestFromEnv_Overrides(t *testing.T) {
	t.Setenv("APP_PORT", "9090")
	t.Setenv("CORS_ALLOW_ORIGINS", "https://a.example, https://b.example,")
	t.Setenv("ZONE_CACHE_TTL", "1m")
	t.Setenv("SWEEP_CONCURRENCY", "8")
	t.Setenv("PUSH_RATE_PER_SECOND", "-3")
	t.Setenv("PUSH_SEND_TIMEOUT", "750ms")
	t.Setenv("REQUIRE_TLS", "true")
	t.Setenv("OTEL_TRACES_SAMPLER_ARG", "0.1")

	cfg, err := config.FromEnv()
	require.NoError(t, err)

	assert.Equal(t, "9090", cfg.Port)
	assert.Equal(t, []string{"https://a.example", "https://b.example"}, cfg.CORSAllowOrigins)
	assert.Equal(t, time.Minute, cfg.ZoneCacheTTL)
	assert.Equal(t, 8, cfg.SweepConcurrency)
	assert.Equal(t, 20.0, cfg.PushRatePerSecond, "invalid values fall back")
	assert.Equal(t, 750*time.Millisecond, cfg.PushSendTimeout)
	assert.True(t, cfg.RequireTLS)
	assert.Equal(t, 0.1, cfg.OTelSampleRatio)
}

func TestFromEnv_ProductionRequiresSigningKey(t *testing.T) {
	t.Setenv("APP_ENV", "production")
	t.Setenv("JWT_SIGNING_KEY", "")

	_, err := config.FromEnv()
	assert.ErrorIs(t, err, config.ErrMissingSigningKey)

	t.Setenv("JWT_SIGNING_KEY", "prod-key")
	cfg, err := config.FromEnv()
	require.NoError(t, err)
	assert.Equal(t, "prod-key", cfg.JWTSigningKey)
}

package database_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/geonotify/geonotify/internal/database"
)

func TestConfigFromEnv_Defaults(t *testing.T) {
	for _, key := range []string{"DB_HOST", "DB_PORT", "DB_USER", "DB_NAME", "DB_CONN_MAX_LIFETIME"} {
		t.Setenv(key, "")
	}

	cfg := database.ConfigFromEnv()
	assert.Equal(t, "localhost", cfg.Host)
	assert.Equal(t, 5432, cfg.Port)
	assert.Equal(t, "geonotify", cfg.User)
	assert.Equal(t, "geonotify", cfg.Database)
	assert.Equal(t, 5*time.Minute, cfg.ConnMaxLifetime)
}

func TestConnectionString(t *testing.T) {
	cfg := database.Config{
		Host:     "db.internal",
		Port:     6543,
		User:     "gn",
		Password: "pw",
		Database: "geo",
		SSLMode:  "require",
	}
	assert.Equal(t, "postgres://gn:pw@db.internal:6543/geo?sslmode=require", cfg.ConnectionString())
}

func TestMigrations_Ordered(t *testing.T) {
	names, err := database.Migrations()
	require.NoError(t, err)
	require.NotEmpty(t, names)
	assert.Equal(t, "migrations/001_init.sql", names[0])
	assert.IsNonDecreasing(t, names)
}

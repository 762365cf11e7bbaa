// Package cache opens the Redis client used for the zone catalog snapshot.
package cache

import (
	"context"
	"fmt"
	"os"
	"strconv"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

// Config holds Redis connection settings.
type Config struct {
	Host     string
	Port     string
	Password string
	DB       int
}

// Addr returns host:port.
func (c Config) Addr() string {
	return c.Host + ":" + c.Port
}

// ConfigFromEnv reads REDIS_HOST, REDIS_PORT, REDIS_PASS and REDIS_DB.
// An unparsable or negative REDIS_DB falls back to 0.
func ConfigFromEnv() Config {
	cfg := Config{
		Host:     os.Getenv("REDIS_HOST"),
		Port:     os.Getenv("REDIS_PORT"),
		Password: os.Getenv("REDIS_PASS"),
	}
	if cfg.Port == "" {
		cfg.Port = "6379"
	}
	if v := os.Getenv("REDIS_DB"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n >= 0 {
			cfg.DB = n
		}
	}
	return cfg
}

// Open creates a client and pings it. A config without host returns a nil
// client, which callers treat as caching disabled.
func Open(ctx context.Context, cfg Config, logger zerolog.Logger) (*redis.Client, error) {
	if cfg.Host == "" {
		logger.Info().Msg("redis not configured, zone cache disabled")
		return nil, nil
	}

	rdb := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr(),
		Password: cfg.Password,
		DB:       cfg.DB,
	})
	if err := rdb.Ping(ctx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("ping redis at %s: %w", cfg.Addr(), err)
	}

	logger.Info().Str("addr", cfg.Addr()).Int("db", cfg.DB).Msg("redis connected")
	return rdb, nil
}

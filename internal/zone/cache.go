package zone

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

// DefaultCatalogKey is the Redis key holding the catalog snapshot.
const DefaultCatalogKey = "geonotify:zones:snapshot"

// CacheRecorder receives snapshot hit and miss counts.
type CacheRecorder interface {
	RecordCacheHit(cache string)
	RecordCacheMiss(cache string)
}

// CacheConfig configures a CachedCatalog.
type CacheConfig struct {
	Key    string
	TTL    time.Duration
	Logger zerolog.Logger

	// Metrics may be nil.
	Metrics CacheRecorder
}

const cacheName = "zone-catalog"

// CachedCatalog serves ListAll from a Redis snapshot of the full catalog.
// The snapshot is stored as a single JSON value so every read observes one
// consistent version of the catalog. A nil Redis client disables caching.
type CachedCatalog struct {
	source  Catalog
	rdb     *redis.Client
	key     string
	ttl     time.Duration
	logger  zerolog.Logger
	metrics CacheRecorder
}

// NewCachedCatalog wraps source with a Redis snapshot cache.
func NewCachedCatalog(source Catalog, rdb *redis.Client, cfg CacheConfig) *CachedCatalog {
	if cfg.Key == "" {
		cfg.Key = DefaultCatalogKey
	}
	if cfg.TTL <= 0 {
		cfg.TTL = 30 * time.Second
	}
	return &CachedCatalog{
		source:  source,
		rdb:     rdb,
		key:     cfg.Key,
		ttl:     cfg.TTL,
		logger:  cfg.Logger,
		metrics: cfg.Metrics,
	}
}

// ListAll returns the cached snapshot, loading it from the source on a miss.
// Redis failures fall back to the source.
func (c *CachedCatalog) ListAll(ctx context.Context) ([]*Zone, error) {
	if c.rdb == nil {
		return c.source.ListAll(ctx)
	}

	raw, err := c.rdb.Get(ctx, c.key).Bytes()
	switch {
	case err == nil:
		var zones []*Zone
		jerr := json.Unmarshal(raw, &zones)
		if jerr == nil {
			c.recordHit()
			return zones, nil
		}
		c.logger.Warn().Err(jerr).Str("key", c.key).Msg("discarding undecodable zone snapshot")
	case errors.Is(err, redis.Nil):
	default:
		c.logger.Warn().Err(err).Msg("zone cache read failed, using source")
		return c.source.ListAll(ctx)
	}

	c.recordMiss()
	zones, err := c.source.ListAll(ctx)
	if err != nil {
		return nil, err
	}

	payload, err := json.Marshal(zones)
	if err != nil {
		c.logger.Warn().Err(err).Msg("encode zone snapshot")
		return zones, nil
	}
	if err := c.rdb.Set(ctx, c.key, payload, c.ttl).Err(); err != nil {
		c.logger.Warn().Err(err).Msg("zone cache write failed")
	}

	return zones, nil
}

// Invalidate drops the cached snapshot.
func (c *CachedCatalog) Invalidate(ctx context.Context) error {
	if c.rdb == nil {
		return nil
	}
	return c.rdb.Del(ctx, c.key).Err()
}

func (c *CachedCatalog) recordHit() {
	if c.metrics != nil {
		c.metrics.RecordCacheHit(cacheName)
	}
}

func (c *CachedCatalog) recordMiss() {
	if c.metrics != nil {
		c.metrics.RecordCacheMiss(cacheName)
	}
}

var _ Catalog = (*CachedCatalog)(nil)

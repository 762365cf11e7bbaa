package zone_test

import (
	"context"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/geonotify/geonotify/internal/geo"
	"github.com/geonotify/geonotify/internal/zone"
)

func seedRepo(t *testing.T) *zone.InMemoryRepository {
	t.Helper()
	repo := zone.NewInMemoryRepository()
	require.NoError(t, repo.Create(context.Background(), &zone.Zone{
		ID:       "zn_1",
		Name:     "Ridge",
		Boundary: []geo.Point{{Lat: 0, Lng: 0}, {Lat: 10, Lng: 0}, {Lat: 0, Lng: 10}},
	}))
	return repo
}

func TestCachedCatalog_NilClientPassesThrough(t *testing.T) {
	repo := seedRepo(t)
	catalog := zone.NewCachedCatalog(repo, nil, zone.CacheConfig{Logger: zerolog.Nop()})

	zones, err := catalog.ListAll(context.Background())
	require.NoError(t, err)
	require.Len(t, zones, 1)
	assert.Equal(t, "zn_1", zones[0].ID)

	assert.NoError(t, catalog.Invalidate(context.Background()))
}

func TestCachedCatalog_FallsBackWhenRedisUnavailable(t *testing.T) {
	repo := seedRepo(t)
	rdb := redis.NewClient(&redis.Options{
		Addr:        "127.0.0.1:1",
		DialTimeout: 50 * time.Millisecond,
		MaxRetries:  -1,
	})
	defer rdb.Close()

	catalog := zone.NewCachedCatalog(repo, rdb, zone.CacheConfig{TTL: time.Second, Logger: zerolog.Nop()})

	zones, err := catalog.ListAll(context.Background())
	require.NoError(t, err)
	require.Len(t, zones, 1)
	assert.Equal(t, "Ridge", zones[0].Name)
}

func TestInMemoryRepository_ReturnsCopies(t *testing.T) {
	repo := seedRepo(t)
	ctx := context.Background()

	z, err := repo.Get(ctx, "zn_1")
	require.NoError(t, err)
	z.Name = "mutated"
	z.Boundary[0].Lat = 45

	again, err := repo.Get(ctx, "zn_1")
	require.NoError(t, err)
	assert.Equal(t, "Ridge", again.Name)
	assert.Equal(t, 0.0, again.Boundary[0].Lat)
}

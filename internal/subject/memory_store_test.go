package subject_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/geonotify/geonotify/internal/subject"
)

func newSubject(id string, role subject.Role) *subject.Subject {
	return &subject.Subject{ID: id, Name: id, Role: role, Active: true}
}

func TestInMemoryStore_CompareAndSet(t *testing.T) {
	store := subject.NewInMemoryStore()
	ctx := context.Background()
	require.NoError(t, store.Create(ctx, newSubject("s1", subject.RoleTourist)))

	loc := subject.NewLocation(1, 1, time.Now())
	ok, err := store.CompareAndSet(ctx, "s1", subject.Snapshot{}, []string{"z2", "z1"}, loc)
	require.NoError(t, err)
	assert.True(t, ok)

	got, err := store.Get(ctx, "s1")
	require.NoError(t, err)
	assert.Equal(t, []string{"z1", "z2"}, got.LastContainedZoneIDs)
	assert.Equal(t, int64(1), got.StateVersion)
	require.NotNil(t, got.LastKnownLocation)
	assert.Equal(t, loc.Geohash, got.LastKnownLocation.Geohash)

	// Stale expectation loses.
	ok, err = store.CompareAndSet(ctx, "s1", subject.Snapshot{Version: 1}, []string{"z3"}, loc)
	require.NoError(t, err)
	assert.False(t, ok)

	// Order of the expected set does not matter.
	ok, err = store.CompareAndSet(ctx, "s1", subject.Snapshot{Version: 1, ContainedZoneIDs: []string{"z2", "z1"}}, []string{}, loc)
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestInMemoryStore_CompareAndSet_SameSetNewerVersion(t *testing.T) {
	store := subject.NewInMemoryStore()
	ctx := context.Background()
	require.NoError(t, store.Create(ctx, newSubject("s1", subject.RoleTourist)))

	first, err := store.Get(ctx, "s1")
	require.NoError(t, err)
	second := first.Clone()

	// Both readers computed "still inside z1" from the same state.
	ok, err := store.CompareAndSet(ctx, "s1", first.Snapshot(), []string{"z1"}, subject.NewLocation(1, 1, time.Now()))
	require.NoError(t, err)
	require.True(t, ok)

	ok, err = store.CompareAndSet(ctx, "s1", second.Snapshot(), []string{"z1"}, subject.NewLocation(1, 1, time.Now()))
	require.NoError(t, err)
	assert.False(t, ok, "a commit that kept the same set still invalidates older readers")

	fresh, err := store.Get(ctx, "s1")
	require.NoError(t, err)
	ok, err = store.CompareAndSet(ctx, "s1", fresh.Snapshot(), []string{"z1"}, subject.NewLocation(1, 1, time.Now()))
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestInMemoryStore_CompareAndSet_OneWinner(t *testing.T) {
	store := subject.NewInMemoryStore()
	ctx := context.Background()
	require.NoError(t, store.Create(ctx, newSubject("s1", subject.RoleTourist)))

	var (
		wg   sync.WaitGroup
		mu   sync.Mutex
		wins int
	)
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			ok, err := store.CompareAndSet(ctx, "s1", subject.Snapshot{}, []string{"z1"}, subject.NewLocation(0, 0, time.Now()))
			if err == nil && ok {
				mu.Lock()
				wins++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, 1, wins)
}

func TestInMemoryStore_CompareAndSet_NotFound(t *testing.T) {
	store := subject.NewInMemoryStore()

	_, err := store.CompareAndSet(context.Background(), "ghost", subject.Snapshot{}, nil, subject.Location{})
	assert.ErrorIs(t, err, subject.ErrSubjectNotFound)
}

func TestInMemoryStore_SubscribeUnsubscribeIdempotent(t *testing.T) {
	store := subject.NewInMemoryStore()
	ctx := context.Background()
	require.NoError(t, store.Create(ctx, newSubject("s1", subject.RoleTourist)))

	require.NoError(t, store.Subscribe(ctx, "s1", "z1"))
	require.NoError(t, store.Subscribe(ctx, "s1", "z1"))
	require.NoError(t, store.Subscribe(ctx, "s1", "z0"))

	got, _ := store.Get(ctx, "s1")
	assert.Equal(t, []string{"z0", "z1"}, got.SubscribedZoneIDs)

	_, err := store.CompareAndSet(ctx, "s1", subject.Snapshot{}, []string{"z1"}, subject.Location{})
	require.NoError(t, err)

	require.NoError(t, store.Unsubscribe(ctx, "s1", "z1"))
	require.NoError(t, store.Unsubscribe(ctx, "s1", "z1"))

	got, _ = store.Get(ctx, "s1")
	assert.Equal(t, []string{"z0"}, got.SubscribedZoneIDs)
	// Containment history survives unsubscribe.
	assert.Equal(t, []string{"z1"}, got.LastContainedZoneIDs)
}

func TestInMemoryStore_ListResponders(t *testing.T) {
	store := subject.NewInMemoryStore()
	ctx := context.Background()

	inactive := newSubject("r2", subject.RoleRescue)
	inactive.Active = false

	require.NoError(t, store.Create(ctx, newSubject("t1", subject.RoleTourist)))
	require.NoError(t, store.Create(ctx, newSubject("r1", subject.RoleRescue)))
	require.NoError(t, store.Create(ctx, inactive))
	require.NoError(t, store.Create(ctx, newSubject("a1", subject.RoleAdmin)))

	responders, err := store.ListResponders(ctx)
	require.NoError(t, err)
	require.Len(t, responders, 1)
	assert.Equal(t, "r1", responders[0].ID)

	all, err := store.List(ctx)
	require.NoError(t, err)
	assert.Len(t, all, 4)
}

func TestInMemoryStore_CreateDuplicate(t *testing.T) {
	store := subject.NewInMemoryStore()
	ctx := context.Background()

	require.NoError(t, store.Create(ctx, newSubject("s1", subject.RoleTourist)))
	assert.ErrorIs(t, store.Create(ctx, newSubject("s1", subject.RoleTourist)), subject.ErrSubjectExists)
}

func TestSameSet(t *testing.T) {
	assert.True(t, subject.SameSet(nil, []string{}))
	assert.True(t, subject.SameSet([]string{"b", "a", "a"}, []string{"a", "b"}))
	assert.False(t, subject.SameSet([]string{"a"}, []string{"a", "b"}))
}

func TestNewLocation_Geohash(t *testing.T) {
	loc := subject.NewLocation(52.3791, 4.9003, time.Now())
	assert.Len(t, loc.Geohash, subject.GeohashPrecision)
	assert.Equal(t, "u173z", loc.Geohash[:5])
}

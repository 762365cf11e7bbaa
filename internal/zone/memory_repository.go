package zone

import (
	"context"
	"sort"
	"sync"
)

// InMemoryRepository is an in-memory implementation of Repository.
// This is intended for testing. Production should use the PostgreSQL implementation.
type InMemoryRepository struct {
	mu    sync.RWMutex
	zones map[string]*Zone
}

// NewInMemoryRepository creates a new in-memory zone repository.
func NewInMemoryRepository() *InMemoryRepository {
	return &InMemoryRepository{
		zones: make(map[string]*Zone),
	}
}

// ListAll returns deep copies of all zones, newest first.
func (r *InMemoryRepository) ListAll(_ context.Context) ([]*Zone, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	items := make([]*Zone, 0, len(r.zones))
	for _, z := range r.zones {
		items = append(items, z.Clone())
	}
	sort.Slice(items, func(i, j int) bool {
		if items[i].CreatedAt.Equal(items[j].CreatedAt) {
			return items[i].ID < items[j].ID
		}
		return items[i].CreatedAt.After(items[j].CreatedAt)
	})
	return items, nil
}

// Get retrieves a zone by ID.
func (r *InMemoryRepository) Get(_ context.Context, id string) (*Zone, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	z, ok := r.zones[id]
	if !ok {
		return nil, ErrZoneNotFound
	}
	return z.Clone(), nil
}

// Create creates a new zone.
func (r *InMemoryRepository) Create(_ context.Context, zone *Zone) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.zones[zone.ID] = zone.Clone()
	return nil
}

// Update replaces an existing zone.
func (r *InMemoryRepository) Update(_ context.Context, zone *Zone) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.zones[zone.ID]; !ok {
		return ErrZoneNotFound
	}
	r.zones[zone.ID] = zone.Clone()
	return nil
}

// Delete deletes a zone.
func (r *InMemoryRepository) Delete(_ context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.zones[id]; !ok {
		return ErrZoneNotFound
	}
	delete(r.zones, id)
	return nil
}

// Ensure InMemoryRepository implements Repository interface.
var _ Repository = (*InMemoryRepository)(nil)

package subject

import (
	"context"
	"sort"
	"sync"
	"time"
)

// InMemoryStore is an in-memory implementation of Store.
// This is intended for testing. Production should use the PostgreSQL implementation.
type InMemoryStore struct {
	mu       sync.RWMutex
	subjects map[string]*Subject
}

// NewInMemoryStore creates a new in-memory subject store.
func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{
		subjects: make(map[string]*Subject),
	}
}

// Get retrieves a subject by ID.
func (r *InMemoryStore) Get(_ context.Context, id string) (*Subject, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	s, ok := r.subjects[id]
	if !ok {
		return nil, ErrSubjectNotFound
	}
	return s.Clone(), nil
}

// List returns every subject ordered by ID.
func (r *InMemoryStore) List(_ context.Context) ([]*Subject, error) {
	return r.filter(func(*Subject) bool { return true }), nil
}

// ListResponders returns active rescue subjects ordered by ID.
func (r *InMemoryStore) ListResponders(_ context.Context) ([]*Subject, error) {
	return r.filter((*Subject).Responder), nil
}

func (r *InMemoryStore) filter(keep func(*Subject) bool) []*Subject {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var items []*Subject
	for _, s := range r.subjects {
		if keep(s) {
			items = append(items, s.Clone())
		}
	}
	sort.Slice(items, func(i, j int) bool { return items[i].ID < items[j].ID })
	return items
}

// Create creates a new subject.
func (r *InMemoryStore) Create(_ context.Context, s *Subject) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.subjects[s.ID]; ok {
		return ErrSubjectExists
	}
	c := s.Clone()
	c.SubscribedZoneIDs = NormalizeIDs(c.SubscribedZoneIDs)
	c.LastContainedZoneIDs = NormalizeIDs(c.LastContainedZoneIDs)
	r.subjects[s.ID] = c
	return nil
}

// UpdateProfile updates the profile fields of a subject.
func (r *InMemoryStore) UpdateProfile(_ context.Context, s *Subject) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	stored, ok := r.subjects[s.ID]
	if !ok {
		return ErrSubjectNotFound
	}
	stored.Name = s.Name
	stored.Email = s.Email
	stored.Phone = s.Phone
	stored.Role = s.Role
	stored.Active = s.Active
	stored.UpdatedAt = time.Now()
	return nil
}

// CompareAndSet replaces the containment set if the stored state still matches expected.
func (r *InMemoryStore) CompareAndSet(_ context.Context, id string, expected Snapshot, next []string, loc Location) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	stored, ok := r.subjects[id]
	if !ok {
		return false, ErrSubjectNotFound
	}
	if stored.StateVersion != expected.Version || !SameSet(stored.LastContainedZoneIDs, expected.ContainedZoneIDs) {
		return false, nil
	}

	stored.StateVersion++
	stored.LastContainedZoneIDs = NormalizeIDs(next)
	stored.LastKnownLocation = &loc
	stored.UpdatedAt = time.Now()
	return true, nil
}

// Subscribe adds a zone subscription.
func (r *InMemoryStore) Subscribe(_ context.Context, id, zoneID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	stored, ok := r.subjects[id]
	if !ok {
		return ErrSubjectNotFound
	}
	stored.SubscribedZoneIDs = NormalizeIDs(append(stored.SubscribedZoneIDs, zoneID))
	return nil
}

// Unsubscribe removes a zone subscription.
func (r *InMemoryStore) Unsubscribe(_ context.Context, id, zoneID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	stored, ok := r.subjects[id]
	if !ok {
		return ErrSubjectNotFound
	}
	kept := stored.SubscribedZoneIDs[:0:0]
	for _, z := range stored.SubscribedZoneIDs {
		if z != zoneID {
			kept = append(kept, z)
		}
	}
	stored.SubscribedZoneIDs = NormalizeIDs(kept)
	return nil
}

// Ensure InMemoryStore implements Store interface.
var _ Store = (*InMemoryStore)(nil)

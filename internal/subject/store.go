package subject

import "context"

// Store defines the interface for subject persistence.
type Store interface {
	// Get retrieves a subject by ID.
	Get(ctx context.Context, id string) (*Subject, error)

	// List returns every subject.
	List(ctx context.Context) ([]*Subject, error)

	// ListResponders returns active subjects with the rescue role.
	ListResponders(ctx context.Context) ([]*Subject, error)

	// Create creates a new subject.
	Create(ctx context.Context, s *Subject) error

	// UpdateProfile updates name, email, phone, role and active flag.
	UpdateProfile(ctx context.Context, s *Subject) error

	// CompareAndSet atomically replaces the subject's containment set and last
	// known location, and bumps the state version, if the stored state still
	// matches expected. It returns false when another evaluation committed
	// first, even one that left the containment set unchanged.
	CompareAndSet(ctx context.Context, id string, expected Snapshot, next []string, loc Location) (bool, error)

	// Subscribe adds zoneID to the subject's subscriptions. Idempotent.
	Subscribe(ctx context.Context, id, zoneID string) error

	// Unsubscribe removes zoneID from the subject's subscriptions. Idempotent.
	// The containment history is left untouched.
	Unsubscribe(ctx context.Context, id, zoneID string) error
}

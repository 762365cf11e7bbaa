package zone

import "context"

// Catalog provides read-only snapshots of every zone definition.
type Catalog interface {
	// ListAll returns a fully materialized snapshot of all zones. Callers may
	// keep the returned zones for the duration of one evaluation; later
	// edits never show up in an already returned snapshot.
	ListAll(ctx context.Context) ([]*Zone, error)
}

// Repository defines the interface for zone persistence.
type Repository interface {
	Catalog

	// Get retrieves a zone by ID.
	Get(ctx context.Context, id string) (*Zone, error)

	// Create creates a new zone.
	Create(ctx context.Context, zone *Zone) error

	// Update replaces an existing zone.
	Update(ctx context.Context, zone *Zone) error

	// Delete deletes a zone.
	Delete(ctx context.Context, id string) error
}

package notification

import (
	"context"
	"time"
)

// DefaultListLimit is the number of entries returned by List when no limit is given.
const DefaultListLimit = 100

// Log is the append-only notification audit log.
type Log interface {
	// Append records an event.
	Append(ctx context.Context, event *Event) error

	// MostRecent returns the timestamp of the latest event of kind for the
	// subject and zone pair, or nil when there is none.
	MostRecent(ctx context.Context, subjectID, zoneID string, kind Kind) (*time.Time, error)

	// List returns the most recent events, newest first.
	List(ctx context.Context, limit int) ([]*Event, error)
}

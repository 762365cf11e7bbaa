package notification

import (
	"context"
	"sort"
	"sync"
	"time"
)

// InMemoryLog is an in-memory implementation of Log.
// This is intended for testing. Production should use the PostgreSQL implementation.
type InMemoryLog struct {
	mu     sync.RWMutex
	events []*Event
}

// NewInMemoryLog creates a new in-memory notification log.
func NewInMemoryLog() *InMemoryLog {
	return &InMemoryLog{}
}

// Append records an event.
func (l *InMemoryLog) Append(_ context.Context, event *Event) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	l.events = append(l.events, copyEvent(event))
	return nil
}

// MostRecent returns the latest timestamp for the subject, zone and kind.
func (l *InMemoryLog) MostRecent(_ context.Context, subjectID, zoneID string, kind Kind) (*time.Time, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()

	var latest *time.Time
	for _, e := range l.events {
		if e.SubjectID != subjectID || e.ZoneID != zoneID || e.Kind != kind {
			continue
		}
		if latest == nil || e.Timestamp.After(*latest) {
			ts := e.Timestamp
			latest = &ts
		}
	}
	return latest, nil
}

// List returns the most recent events, newest first.
func (l *InMemoryLog) List(_ context.Context, limit int) ([]*Event, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()

	if limit <= 0 {
		limit = DefaultListLimit
	}

	items := make([]*Event, 0, len(l.events))
	for _, e := range l.events {
		items = append(items, copyEvent(e))
	}
	sort.SliceStable(items, func(i, j int) bool { return items[i].Timestamp.After(items[j].Timestamp) })

	if len(items) > limit {
		items = items[:limit]
	}
	return items, nil
}

// Len returns the number of recorded events.
func (l *InMemoryLog) Len() int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return len(l.events)
}

func copyEvent(e *Event) *Event {
	c := *e
	c.Recipients = append([]string(nil), e.Recipients...)
	if e.DistanceMeters != nil {
		d := *e.DistanceMeters
		c.DistanceMeters = &d
	}
	return &c
}

// Ensure InMemoryLog implements Log interface.
var _ Log = (*InMemoryLog)(nil)

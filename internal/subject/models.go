// Package subject provides subject (tourist, admin, responder) records and the
// store holding each subject's subscriptions and last known containment.
package subject

import (
	"errors"
	"sort"
	"time"

	"github.com/mmcloughlin/geohash"
)

// Store errors.
var (
	ErrSubjectNotFound = errors.New("subject not found")
	ErrSubjectExists   = errors.New("subject already exists")

	// ErrStoreConflict is returned when a compare-and-set lost a race with a
	// concurrent evaluation. The caller must retry with fresh state.
	ErrStoreConflict = errors.New("subject state changed concurrently")
)

// GeohashPrecision is the number of characters stored with a location (~5m cells).
const GeohashPrecision = 9

// Role is a subject's role.
type Role string

const (
	RoleTourist Role = "tourist"
	RoleAdmin   Role = "admin"
	RoleRescue  Role = "rescue"
)

// Valid reports whether r is a known role.
func (r Role) Valid() bool {
	switch r {
	case RoleTourist, RoleAdmin, RoleRescue:
		return true
	}
	return false
}

// Location is a timestamped coordinate.
type Location struct {
	Lat       float64   `json:"lat"`
	Lng       float64   `json:"lng"`
	Timestamp time.Time `json:"timestamp"`
	Geohash   string    `json:"geohash,omitempty"`
}

// NewLocation builds a Location and fills in its geohash.
func NewLocation(lat, lng float64, ts time.Time) Location {
	return Location{
		Lat:       lat,
		Lng:       lng,
		Timestamp: ts,
		Geohash:   geohash.EncodeWithPrecision(lat, lng, GeohashPrecision),
	}
}

// Subject is a person whose location is evaluated against the zones.
type Subject struct {
	ID     string `json:"id"`
	Name   string `json:"name,omitempty"`
	Email  string `json:"email,omitempty"`
	Phone  string `json:"phone,omitempty"`
	Role   Role   `json:"role"`
	Active bool   `json:"active"`

	// SubscribedZoneIDs are the zones that produce subject-facing events.
	SubscribedZoneIDs []string `json:"subscribedZoneIds"`

	// LastContainedZoneIDs is the unfiltered containment set of the previous
	// evaluation. Only evaluation mutates it.
	LastContainedZoneIDs []string `json:"lastContainedZoneIds"`

	LastKnownLocation *Location `json:"lastKnownLocation,omitempty"`

	// StateVersion increases with every committed evaluation.
	StateVersion int64 `json:"stateVersion"`

	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// Snapshot identifies the evaluation state a transition was computed from.
type Snapshot struct {
	Version          int64
	ContainedZoneIDs []string
}

// Snapshot returns the subject's current evaluation state.
func (s *Subject) Snapshot() Snapshot {
	return Snapshot{Version: s.StateVersion, ContainedZoneIDs: s.LastContainedZoneIDs}
}

// IsSubscribed reports whether the subject is subscribed to zoneID.
func (s *Subject) IsSubscribed(zoneID string) bool {
	for _, id := range s.SubscribedZoneIDs {
		if id == zoneID {
			return true
		}
	}
	return false
}

// Responder reports whether the subject receives escalations.
func (s *Subject) Responder() bool {
	return s.Role == RoleRescue && s.Active
}

// Clone returns a deep copy of the subject.
func (s *Subject) Clone() *Subject {
	if s == nil {
		return nil
	}
	c := *s
	c.SubscribedZoneIDs = append([]string{}, s.SubscribedZoneIDs...)
	c.LastContainedZoneIDs = append([]string{}, s.LastContainedZoneIDs...)
	if s.LastKnownLocation != nil {
		loc := *s.LastKnownLocation
		c.LastKnownLocation = &loc
	}
	return &c
}

// NormalizeIDs returns a sorted, de-duplicated, non-nil copy of ids.
// Stored id sets are always kept in this form so they compare by value.
func NormalizeIDs(ids []string) []string {
	out := make([]string, 0, len(ids))
	seen := make(map[string]struct{}, len(ids))
	for _, id := range ids {
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	sort.Strings(out)
	return out
}

// SameSet reports whether a and b hold the same ids, ignoring order and duplicates.
func SameSet(a, b []string) bool {
	na, nb := NormalizeIDs(a), NormalizeIDs(b)
	if len(na) != len(nb) {
		return false
	}
	for i := range na {
		if na[i] != nb[i] {
			return false
		}
	}
	return true
}

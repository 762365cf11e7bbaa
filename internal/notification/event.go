// Package notification holds notification events, the append-only
// notification log and the dispatchers that deliver events to recipients.
package notification

import (
	"fmt"
	"time"

	"github.com/geonotify/geonotify/internal/geo"
	"github.com/geonotify/geonotify/internal/zone"
)

// Kind is the kind of a notification event.
type Kind string

const (
	KindEntered    Kind = "entered"
	KindExited     Kind = "exited"
	KindNear       Kind = "near"
	KindEscalation Kind = "escalation"
)

// Valid reports whether k is a known kind.
func (k Kind) Valid() bool {
	switch k {
	case KindEntered, KindExited, KindNear, KindEscalation:
		return true
	}
	return false
}

// Event is a single notification decision.
type Event struct {
	ID          string           `json:"id"`
	SubjectID   string           `json:"subjectId"`
	ZoneID      string           `json:"zoneId"`
	ZoneName    string           `json:"zoneName,omitempty"`
	Kind        Kind             `json:"kind"`
	DangerLevel zone.DangerLevel `json:"dangerLevel"`
	Location    geo.Point        `json:"location"`

	// DistanceMeters is set for near events.
	DistanceMeters *float64 `json:"distanceMeters,omitempty"`

	Title              string `json:"title"`
	Body               string `json:"body"`
	RequireInteraction bool   `json:"requireInteraction"`

	// Recipients are the subject ids the event was addressed to.
	Recipients []string `json:"recipients"`

	Timestamp time.Time `json:"timestamp"`
}

// DeliveryFailure is a non-fatal failure to deliver an event to one endpoint
// of one recipient.
type DeliveryFailure struct {
	RecipientID string `json:"recipientId"`
	Endpoint    string `json:"endpoint,omitempty"`
	Err         error  `json:"-"`
}

func (f *DeliveryFailure) Error() string {
	if f.Endpoint == "" {
		return fmt.Sprintf("deliver to %s: %v", f.RecipientID, f.Err)
	}
	return fmt.Sprintf("deliver to %s (%s): %v", f.RecipientID, f.Endpoint, f.Err)
}

func (f *DeliveryFailure) Unwrap() error {
	return f.Err
}

// DeliveryResult is the outcome of delivering one event to one recipient.
type DeliveryResult struct {
	RecipientID string
	Delivered   int
	Failures    []DeliveryFailure
}

// OK reports whether every attempted endpoint accepted the event.
func (r DeliveryResult) OK() bool {
	return len(r.Failures) == 0
}

// Failures flattens the failures of a set of delivery results.
func Failures(results []DeliveryResult) []DeliveryFailure {
	var out []DeliveryFailure
	for _, r := range results {
		out = append(out, r.Failures...)
	}
	return out
}

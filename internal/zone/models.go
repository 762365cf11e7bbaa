// Package zone provides risk zone (geofence) definitions and the zone catalog.
package zone

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/geonotify/geonotify/internal/geo"
)

// Repository errors.
var (
	ErrZoneNotFound       = errors.New("zone not found")
	ErrUnknownDangerLevel = errors.New("unknown danger level")
)

// DefaultNearThresholdMeters is used when a zone has no positive threshold.
const DefaultNearThresholdMeters = 100.0

// DangerLevel classifies a zone. Values are ordered by severity.
type DangerLevel int

const (
	DangerSafe DangerLevel = iota
	DangerCaution
	DangerWarning
	DangerDanger
	DangerCritical
)

var dangerLevelNames = [...]string{"safe", "caution", "warning", "danger", "critical"}

// ParseDangerLevel parses a case-insensitive danger level name.
func ParseDangerLevel(s string) (DangerLevel, error) {
	name := strings.ToLower(strings.TrimSpace(s))
	for i, n := range dangerLevelNames {
		if n == name {
			return DangerLevel(i), nil
		}
	}
	return DangerSafe, fmt.Errorf("%w: %q", ErrUnknownDangerLevel, s)
}

// String returns the lowercase name of the level.
func (d DangerLevel) String() string {
	if d < DangerSafe || d > DangerCritical {
		return fmt.Sprintf("DangerLevel(%d)", int(d))
	}
	return dangerLevelNames[d]
}

// Valid reports whether d is one of the defined levels.
func (d DangerLevel) Valid() bool {
	return d >= DangerSafe && d <= DangerCritical
}

// AtLeast reports whether d is as severe as other or more.
func (d DangerLevel) AtLeast(other DangerLevel) bool {
	return d >= other
}

// MarshalText implements encoding.TextMarshaler.
func (d DangerLevel) MarshalText() ([]byte, error) {
	if !d.Valid() {
		return nil, fmt.Errorf("%w: %d", ErrUnknownDangerLevel, int(d))
	}
	return []byte(d.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (d *DangerLevel) UnmarshalText(text []byte) error {
	level, err := ParseDangerLevel(string(text))
	if err != nil {
		return err
	}
	*d = level
	return nil
}

// Zone is a named polygonal risk area.
type Zone struct {
	ID          string      `json:"id"`
	Name        string      `json:"name"`
	Description string      `json:"description,omitempty"`
	Reminder    string      `json:"reminder,omitempty"`
	Boundary    []geo.Point `json:"boundary"`

	// NearThresholdMeters is the maximum boundary distance classified as near.
	NearThresholdMeters float64     `json:"nearThresholdMeters"`
	DangerLevel         DangerLevel `json:"dangerLevel"`
	AutoEscalate        bool        `json:"autoEscalate"`

	CreatedBy string    `json:"createdBy,omitempty"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// NearThreshold returns the effective near threshold in meters.
func (z *Zone) NearThreshold() float64 {
	if z.NearThresholdMeters <= 0 {
		return DefaultNearThresholdMeters
	}
	return z.NearThresholdMeters
}

// Escalates reports whether presence inside the zone is eligible for
// response-team escalation.
func (z *Zone) Escalates() bool {
	return z.AutoEscalate && z.DangerLevel.AtLeast(DangerDanger)
}

// Polygon builds the normalized boundary polygon. A malformed boundary
// returns a *geo.ConfigurationError tagged with the zone id.
func (z *Zone) Polygon() (*geo.Polygon, error) {
	p, err := geo.NewPolygon(z.Boundary)
	if err != nil {
		var cfgErr *geo.ConfigurationError
		if errors.As(err, &cfgErr) {
			return nil, &geo.ConfigurationError{ZoneID: z.ID, Err: cfgErr.Err}
		}
		return nil, err
	}
	return p, nil
}

// Clone returns a deep copy of the zone.
func (z *Zone) Clone() *Zone {
	if z == nil {
		return nil
	}
	c := *z
	c.Boundary = make([]geo.Point, len(z.Boundary))
	copy(c.Boundary, z.Boundary)
	return &c
}

// ValidationError represents validation errors.
type ValidationError struct {
	Errors []FieldError
}

// FieldError describes a single invalid field.
type FieldError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return "validation failed"
}

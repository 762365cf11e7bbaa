// Package device provides push endpoint registration for subjects.
package device

import (
	"errors"
	"time"
)

// Repository errors.
var (
	ErrDeviceNotFound = errors.New("device not found")
)

// Platform represents a push notification platform.
type Platform string

const (
	PlatformWebPush Platform = "WEBPUSH"
	PlatformFCM     Platform = "FCM"
	PlatformAPNS    Platform = "APNS"
)

// Valid reports whether p is a supported platform.
func (p Platform) Valid() bool {
	switch p {
	case PlatformWebPush, PlatformFCM, PlatformAPNS:
		return true
	}
	return false
}

// Device is a push endpoint owned by a subject. For web push Endpoint is the
// subscription URL and the key fields are set; for FCM and APNS it is the
// device token.
type Device struct {
	ID        string
	SubjectID string
	Platform  Platform
	Endpoint  string
	P256DH    *string
	Auth      *string
	UserAgent *string
	CreatedAt time.Time
	UpdatedAt time.Time
}

// EndpointLast4 returns the last 4 characters of the endpoint for display purposes.
func (d *Device) EndpointLast4() string {
	if len(d.Endpoint) < 4 {
		return d.Endpoint
	}
	return d.Endpoint[len(d.Endpoint)-4:]
}

package models

// LocationCheckRequest is the body of POST /v1/me/location.
// Lat and Lng are pointers so a missing coordinate is distinguishable from 0.
type LocationCheckRequest struct {
	Lat       *float64   `json:"lat"`
	Lng       *float64   `json:"lng"`
	Timestamp *Timestamp `json:"timestamp,omitempty"`
}

// ZoneHit is a zone the reported location is inside or near.
type ZoneHit struct {
	ZoneID         string   `json:"zoneId"`
	Name           string   `json:"name"`
	DangerLevel    string   `json:"dangerLevel"`
	Reminder       string   `json:"reminder,omitempty"`
	Subscribed     bool     `json:"subscribed"`
	DistanceMeters *float64 `json:"distanceMeters,omitempty"`
}

// LocationCheckResponse summarizes one evaluation.
type LocationCheckResponse struct {
	Inside  []ZoneHit `json:"inside"`
	Near    []ZoneHit `json:"near"`
	Entered []string  `json:"entered"`
	Exited  []string  `json:"exited"`

	Notifications         []Notification `json:"notifications"`
	SuppressedEscalations []string       `json:"suppressedEscalations,omitempty"`

	// ZoneWarnings lists zones skipped because their boundary is invalid.
	ZoneWarnings []ZoneWarning `json:"zoneWarnings"`

	// Degraded is true when a zone was skipped or a delivery failed.
	Degraded bool `json:"degraded"`
}

// ZoneWarning is a zone that could not be evaluated.
type ZoneWarning struct {
	ZoneID  string `json:"zoneId"`
	Message string `json:"message"`
}

package models

// ZoneCreateRequest is the request body for creating a zone.
type ZoneCreateRequest struct {
	Name                string   `json:"name"`
	Description         string   `json:"description,omitempty"`
	Reminder            string   `json:"reminder,omitempty"`
	Coordinates         []Point  `json:"coordinates,omitempty"`
	NearThresholdMeters *float64 `json:"nearThresholdMeters,omitempty"`
	DangerLevel         string   `json:"dangerLevel,omitempty"`
	AutoEscalate        bool     `json:"autoEscalate"`

	// EncodedBoundary is an encoded polyline, accepted instead of Coordinates.
	EncodedBoundary string `json:"encodedBoundary,omitempty"`
}

// ZoneUpdateRequest is the request body for updating a zone.
// Nil fields are left unchanged.
type ZoneUpdateRequest struct {
	Name                *string  `json:"name,omitempty"`
	Description         *string  `json:"description,omitempty"`
	Reminder            *string  `json:"reminder,omitempty"`
	Coordinates         []Point  `json:"coordinates,omitempty"`
	NearThresholdMeters *float64 `json:"nearThresholdMeters,omitempty"`
	DangerLevel         *string  `json:"dangerLevel,omitempty"`
	AutoEscalate        *bool    `json:"autoEscalate,omitempty"`
	EncodedBoundary     string   `json:"encodedBoundary,omitempty"`
}

// Zone is the public view of a zone.
type Zone struct {
	ID                  string    `json:"id"`
	Name                string    `json:"name"`
	Description         string    `json:"description,omitempty"`
	Reminder            string    `json:"reminder,omitempty"`
	Coordinates         []Point   `json:"coordinates"`
	EncodedBoundary     string    `json:"encodedBoundary"`
	NearThresholdMeters float64   `json:"nearThresholdMeters"`
	DangerLevel         string    `json:"dangerLevel"`
	AutoEscalate        bool      `json:"autoEscalate"`
	CreatedBy           string    `json:"createdBy,omitempty"`
	CreatedAt           Timestamp `json:"createdAt"`
	UpdatedAt           Timestamp `json:"updatedAt"`
}

// ZoneList is a list of zones.
type ZoneList struct {
	Items []Zone `json:"items"`
}

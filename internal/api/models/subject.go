package models

// SubjectRegisterRequest is the request body for registering or updating the
// authenticated subject's profile.
type SubjectRegisterRequest struct {
	Name  string `json:"name"`
	Email string `json:"email,omitempty"`
	Phone string `json:"phone,omitempty"`
}

// SubscriptionRequest is the request body for subscribing to a zone.
type SubscriptionRequest struct {
	ZoneID string `json:"zoneId"`
}

// Subject is the public view of a subject.
type Subject struct {
	ID                   string     `json:"id"`
	Name                 string     `json:"name"`
	Email                string     `json:"email,omitempty"`
	Phone                string     `json:"phone,omitempty"`
	Role                 string     `json:"role"`
	Active               bool       `json:"active"`
	SubscribedZoneIDs    []string   `json:"subscribedZoneIds"`
	LastContainedZoneIDs []string   `json:"lastContainedZoneIds"`
	LastKnownLocation    *Point     `json:"lastKnownLocation,omitempty"`
	LastSeenAt           *Timestamp `json:"lastSeenAt,omitempty"`
	CreatedAt            Timestamp  `json:"createdAt"`
}

// SubjectList is a list of subjects.
type SubjectList struct {
	Items []Subject `json:"items"`
}

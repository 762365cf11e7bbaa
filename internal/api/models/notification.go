package models

// Notification is one notification log entry.
type Notification struct {
	ID                 string    `json:"id"`
	SubjectID          string    `json:"subjectId"`
	ZoneID             string    `json:"zoneId"`
	ZoneName           string    `json:"zoneName,omitempty"`
	Kind               string    `json:"kind"`
	DangerLevel        string    `json:"dangerLevel"`
	Location           Point     `json:"location"`
	DistanceMeters     *float64  `json:"distanceMeters,omitempty"`
	Title              string    `json:"title"`
	Body               string    `json:"body"`
	RequireInteraction bool      `json:"requireInteraction"`
	Recipients         []string  `json:"recipients"`
	Timestamp          Timestamp `json:"timestamp"`
}

// NotificationList is a page of the notification log, newest first.
type NotificationList struct {
	Items []Notification    `json:"items"`
	Meta  PagedResponseMeta `json:"meta"`
}

// ActiveAlert is a subject currently inside a danger or critical zone.
type ActiveAlert struct {
	SubjectID   string     `json:"subjectId"`
	SubjectName string     `json:"subjectName,omitempty"`
	Phone       string     `json:"phone,omitempty"`
	ZoneID      string     `json:"zoneId"`
	ZoneName    string     `json:"zoneName"`
	DangerLevel string     `json:"dangerLevel"`
	Location    *Point     `json:"location,omitempty"`
	LastSeenAt  *Timestamp `json:"lastSeenAt,omitempty"`
}

// ActiveAlertList is the response of GET /v1/alerts/active.
type ActiveAlertList struct {
	Items []ActiveAlert `json:"items"`
}

package models

// Device represents a registered push endpoint.
type Device struct {
	ID            string       `json:"id"`
	Platform      PushPlatform `json:"platform"`
	EndpointLast4 string       `json:"endpointLast4"`
	UserAgent     *string      `json:"userAgent,omitempty"`
	CreatedAt     Timestamp    `json:"createdAt"`
	UpdatedAt     Timestamp    `json:"updatedAt"`
}

// DeviceRegisterRequest is the request body for registering a push endpoint.
// Keys is required for WEBPUSH subscriptions.
type DeviceRegisterRequest struct {
	DeviceID  string       `json:"deviceId"`
	Platform  PushPlatform `json:"platform"`
	Endpoint  string       `json:"endpoint"`
	Keys      *WebPushKeys `json:"keys,omitempty"`
	UserAgent *string      `json:"userAgent,omitempty"`
}

// WebPushKeys holds the client keys of a web push subscription.
type WebPushKeys struct {
	P256DH string `json:"p256dh"`
	Auth   string `json:"auth"`
}

// DeviceList is the list of a subject's push endpoints.
type DeviceList struct {
	Items []Device `json:"items"`
}

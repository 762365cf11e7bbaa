package device

import "context"

// Repository defines the interface for device persistence.
type Repository interface {
	// Get retrieves a device by subject ID and device ID.
	Get(ctx context.Context, subjectID, deviceID string) (*Device, error)

	// ListBySubject retrieves all devices of a subject, newest first.
	ListBySubject(ctx context.Context, subjectID string) ([]*Device, error)

	// Upsert creates or updates a device keyed by its endpoint.
	// Returns true if a new device was created, false if updated.
	Upsert(ctx context.Context, device *Device) (created bool, err error)

	// Delete deletes a device of a subject.
	Delete(ctx context.Context, subjectID, deviceID string) error

	// DeleteByEndpoint deletes the device registered for an endpoint.
	DeleteByEndpoint(ctx context.Context, endpoint string) error
}

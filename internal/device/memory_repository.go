package device

import (
	"context"
	"sort"
	"sync"
)

// InMemoryRepository is an in-memory implementation of Repository.
// This is intended for testing. Production should use the PostgreSQL implementation.
type InMemoryRepository struct {
	mu        sync.RWMutex
	devices   map[string]*Device // keyed by device ID
	endpoints map[string]string  // endpoint -> device ID mapping
}

// NewInMemoryRepository creates a new in-memory device repository.
func NewInMemoryRepository() *InMemoryRepository {
	return &InMemoryRepository{
		devices:   make(map[string]*Device),
		endpoints: make(map[string]string),
	}
}

// Get retrieves a device by subject ID and device ID.
func (r *InMemoryRepository) Get(_ context.Context, subjectID, deviceID string) (*Device, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	device, ok := r.devices[deviceID]
	if !ok || device.SubjectID != subjectID {
		return nil, ErrDeviceNotFound
	}

	return copyDevice(device), nil
}

// ListBySubject retrieves all devices of a subject.
func (r *InMemoryRepository) ListBySubject(_ context.Context, subjectID string) ([]*Device, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var items []*Device
	for _, device := range r.devices {
		if device.SubjectID == subjectID {
			items = append(items, copyDevice(device))
		}
	}
	sort.Slice(items, func(i, j int) bool { return items[i].CreatedAt.After(items[j].CreatedAt) })

	return items, nil
}

// Upsert creates or updates a device based on the endpoint.
func (r *InMemoryRepository) Upsert(_ context.Context, device *Device) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if existingID, ok := r.endpoints[device.Endpoint]; ok {
		existing := r.devices[existingID]
		updated := copyDevice(device)
		updated.CreatedAt = existing.CreatedAt
		delete(r.devices, existingID)
		r.devices[updated.ID] = updated
		r.endpoints[device.Endpoint] = updated.ID
		return false, nil
	}

	r.devices[device.ID] = copyDevice(device)
	r.endpoints[device.Endpoint] = device.ID
	return true, nil
}

// Delete deletes a device.
func (r *InMemoryRepository) Delete(_ context.Context, subjectID, deviceID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	device, ok := r.devices[deviceID]
	if !ok || device.SubjectID != subjectID {
		return ErrDeviceNotFound
	}

	delete(r.endpoints, device.Endpoint)
	delete(r.devices, deviceID)
	return nil
}

// DeleteByEndpoint deletes the device registered for an endpoint.
func (r *InMemoryRepository) DeleteByEndpoint(_ context.Context, endpoint string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	id, ok := r.endpoints[endpoint]
	if !ok {
		return ErrDeviceNotFound
	}
	delete(r.endpoints, endpoint)
	delete(r.devices, id)
	return nil
}

// copyDevice creates a deep copy of a device.
func copyDevice(d *Device) *Device {
	if d == nil {
		return nil
	}

	c := *d
	if d.P256DH != nil {
		val := *d.P256DH
		c.P256DH = &val
	}
	if d.Auth != nil {
		val := *d.Auth
		c.Auth = &val
	}
	if d.UserAgent != nil {
		val := *d.UserAgent
		c.UserAgent = &val
	}
	return &c
}

// Ensure InMemoryRepository implements Repository interface.
var _ Repository = (*InMemoryRepository)(nil)

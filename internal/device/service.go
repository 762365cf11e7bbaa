package device

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"

	"github.com/geonotify/geonotify/internal/api/models"
)

// Service errors.
var (
	ErrInvalidPlatform = errors.New("platform must be one of WEBPUSH, FCM, APNS")
	ErrInvalidEndpoint = errors.New("endpoint is required")
	ErrMissingKeys     = errors.New("web push subscriptions require p256dh and auth keys")
)

// Service provides device operations.
type Service struct {
	repo Repository
}

// NewService creates a new device service.
func NewService(repo Repository) *Service {
	return &Service{repo: repo}
}

// List retrieves all devices for a subject.
func (s *Service) List(ctx context.Context, subjectID string) (*models.DeviceList, error) {
	devices, err := s.repo.ListBySubject(ctx, subjectID)
	if err != nil {
		return nil, err
	}

	items := make([]models.Device, 0, len(devices))
	for _, d := range devices {
		items = append(items, toAPIDevice(d))
	}
	return &models.DeviceList{Items: items}, nil
}

// Register registers or updates a push endpoint.
// Returns the device and whether it was newly created.
func (s *Service) Register(ctx context.Context, subjectID string, input *models.DeviceRegisterRequest) (*models.Device, bool, error) {
	platform := Platform(input.Platform)
	if !platform.Valid() {
		return nil, false, ErrInvalidPlatform
	}
	if input.Endpoint == "" {
		return nil, false, ErrInvalidEndpoint
	}

	now := time.Now()
	device := &Device{
		ID:        input.DeviceID,
		SubjectID: subjectID,
		Platform:  platform,
		Endpoint:  input.Endpoint,
		UserAgent: input.UserAgent,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if device.ID == "" {
		device.ID = "dev_" + uuid.New().String()
	}

	if platform == PlatformWebPush {
		if input.Keys == nil || input.Keys.P256DH == "" || input.Keys.Auth == "" {
			return nil, false, ErrMissingKeys
		}
		device.P256DH = &input.Keys.P256DH
		device.Auth = &input.Keys.Auth
	}

	created, err := s.repo.Upsert(ctx, device)
	if err != nil {
		return nil, false, err
	}

	result := toAPIDevice(device)
	return &result, created, nil
}

// Unregister removes a device registration.
func (s *Service) Unregister(ctx context.Context, subjectID, deviceID string) error {
	return s.repo.Delete(ctx, subjectID, deviceID)
}

func toAPIDevice(d *Device) models.Device {
	return models.Device{
		ID:            d.ID,
		Platform:      models.PushPlatform(d.Platform),
		EndpointLast4: d.EndpointLast4(),
		UserAgent:     d.UserAgent,
		CreatedAt:     models.Timestamp(d.CreatedAt),
		UpdatedAt:     models.Timestamp(d.UpdatedAt),
	}
}

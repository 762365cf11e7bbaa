package subject

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/geonotify/geonotify/internal/api/models"
	"github.com/geonotify/geonotify/internal/zone"
)

// ZoneLookup resolves zone ids for subscription checks.
type ZoneLookup interface {
	Get(ctx context.Context, id string) (*zone.Zone, error)
}

// ValidationError reports an invalid profile field.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return e.Field + ": " + e.Message
}

// Service provides subject registration and subscription management.
type Service struct {
	store  Store
	zones  ZoneLookup
	logger zerolog.Logger
}

// NewService creates a new subject service.
func NewService(store Store, zones ZoneLookup, logger zerolog.Logger) *Service {
	return &Service{store: store, zones: zones, logger: logger}
}

// Get retrieves a subject by ID.
func (s *Service) Get(ctx context.Context, id string) (*Subject, error) {
	return s.store.Get(ctx, id)
}

// Register creates the subject on first call and updates its profile afterwards.
// The role is taken from the caller's credentials, never from the request body.
func (s *Service) Register(ctx context.Context, id string, role Role, input *models.SubjectRegisterRequest) (*Subject, bool, error) {
	name := strings.TrimSpace(input.Name)
	if name == "" {
		return nil, false, &ValidationError{Field: "name", Message: "name is required"}
	}
	if !role.Valid() {
		role = RoleTourist
	}

	existing, err := s.store.Get(ctx, id)
	switch {
	case err == nil:
		existing.Name = name
		existing.Email = input.Email
		existing.Phone = input.Phone
		existing.Role = role
		existing.Active = true
		if err := s.store.UpdateProfile(ctx, existing); err != nil {
			return nil, false, err
		}
		return existing, false, nil
	case !errors.Is(err, ErrSubjectNotFound):
		return nil, false, err
	}

	now := time.Now().UTC()
	subj := &Subject{
		ID:                   id,
		Name:                 name,
		Email:                input.Email,
		Phone:                input.Phone,
		Role:                 role,
		Active:               true,
		SubscribedZoneIDs:    []string{},
		LastContainedZoneIDs: []string{},
		CreatedAt:            now,
		UpdatedAt:            now,
	}
	if err := s.store.Create(ctx, subj); err != nil {
		return nil, false, err
	}

	s.logger.Info().Str("subject_id", id).Str("role", string(role)).Msg("subject registered")
	return subj, true, nil
}

// Subscribe subscribes a subject to an existing zone.
func (s *Service) Subscribe(ctx context.Context, id, zoneID string) (*Subject, error) {
	if _, err := s.zones.Get(ctx, zoneID); err != nil {
		return nil, err
	}
	if err := s.store.Subscribe(ctx, id, zoneID); err != nil {
		return nil, err
	}
	return s.store.Get(ctx, id)
}

// Unsubscribe removes a subscription. Unknown zones are accepted so stale
// subscriptions to deleted zones can be cleaned up.
func (s *Service) Unsubscribe(ctx context.Context, id, zoneID string) (*Subject, error) {
	if err := s.store.Unsubscribe(ctx, id, zoneID); err != nil {
		return nil, err
	}
	return s.store.Get(ctx, id)
}

// List returns every subject, or only those with role when it is set.
func (s *Service) List(ctx context.Context, role Role) ([]*Subject, error) {
	all, err := s.store.List(ctx)
	if err != nil {
		return nil, err
	}
	if role == "" {
		return all, nil
	}
	out := make([]*Subject, 0, len(all))
	for _, subj := range all {
		if subj.Role == role {
			out = append(out, subj)
		}
	}
	return out, nil
}

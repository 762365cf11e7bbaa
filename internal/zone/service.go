package zone

import (
	"context"
	"errors"
	"math"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/geonotify/geonotify/internal/api/models"
	"github.com/geonotify/geonotify/internal/geo"
	"github.com/geonotify/geonotify/pkg/polyline"
)

// Validation constants.
const (
	MaxNameLength     = 120
	MaxReminderLength = 500
)

// Invalidator drops cached catalog snapshots after a write.
type Invalidator interface {
	Invalidate(ctx context.Context) error
}

// ServiceConfig configures the zone admin service.
type ServiceConfig struct {
	Logger      zerolog.Logger
	Invalidator Invalidator
	Now         func() time.Time
}

// Service provides zone administration.
type Service struct {
	repo        Repository
	invalidator Invalidator
	logger      zerolog.Logger
	now         func() time.Time
}

// NewService creates a new zone service.
func NewService(repo Repository, cfg ServiceConfig) *Service {
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	return &Service{
		repo:        repo,
		invalidator: cfg.Invalidator,
		logger:      cfg.Logger,
		now:         cfg.Now,
	}
}

// List returns all zones, newest first.
func (s *Service) List(ctx context.Context) ([]*Zone, error) {
	return s.repo.ListAll(ctx)
}

// Get retrieves a zone by ID.
func (s *Service) Get(ctx context.Context, id string) (*Zone, error) {
	return s.repo.Get(ctx, id)
}

// Create validates and stores a new zone.
func (s *Service) Create(ctx context.Context, createdBy string, input *models.ZoneCreateRequest) (*Zone, error) {
	var fieldErrors []FieldError

	name := strings.TrimSpace(input.Name)
	fieldErrors = append(fieldErrors, validateName(name)...)
	fieldErrors = append(fieldErrors, validateReminder(input.Reminder)...)

	level := DangerSafe
	if input.DangerLevel != "" {
		parsed, err := ParseDangerLevel(input.DangerLevel)
		if err != nil {
			fieldErrors = append(fieldErrors, FieldError{Field: "dangerLevel", Message: "must be one of safe, caution, warning, danger, critical"})
		}
		level = parsed
	}

	threshold := DefaultNearThresholdMeters
	if input.NearThresholdMeters != nil {
		threshold = *input.NearThresholdMeters
		fieldErrors = append(fieldErrors, validateThreshold(threshold)...)
	}

	boundary, errs := boundaryFrom(input.Coordinates, input.EncodedBoundary)
	fieldErrors = append(fieldErrors, errs...)

	if len(fieldErrors) > 0 {
		return nil, &ValidationError{Errors: fieldErrors}
	}

	now := s.now().UTC()
	z := &Zone{
		ID:                  "zn_" + uuid.New().String(),
		Name:                name,
		Description:         input.Description,
		Reminder:            input.Reminder,
		Boundary:            boundary,
		NearThresholdMeters: threshold,
		DangerLevel:         level,
		AutoEscalate:        input.AutoEscalate,
		CreatedBy:           createdBy,
		CreatedAt:           now,
		UpdatedAt:           now,
	}

	if err := s.repo.Create(ctx, z); err != nil {
		return nil, err
	}
	s.invalidate(ctx, z.ID)

	s.logger.Info().Str("zone_id", z.ID).Str("danger_level", z.DangerLevel.String()).Msg("zone created")
	return z, nil
}

// Update applies a partial update to an existing zone.
func (s *Service) Update(ctx context.Context, id string, input *models.ZoneUpdateRequest) (*Zone, error) {
	z, err := s.repo.Get(ctx, id)
	if err != nil {
		return nil, err
	}

	var fieldErrors []FieldError

	if input.Name != nil {
		name := strings.TrimSpace(*input.Name)
		if errs := validateName(name); len(errs) > 0 {
			fieldErrors = append(fieldErrors, errs...)
		}
		z.Name = name
	}
	if input.Description != nil {
		z.Description = *input.Description
	}
	if input.Reminder != nil {
		fieldErrors = append(fieldErrors, validateReminder(*input.Reminder)...)
		z.Reminder = *input.Reminder
	}
	if input.Coordinates != nil || input.EncodedBoundary != "" {
		boundary, errs := boundaryFrom(input.Coordinates, input.EncodedBoundary)
		fieldErrors = append(fieldErrors, errs...)
		z.Boundary = boundary
	}
	if input.NearThresholdMeters != nil {
		fieldErrors = append(fieldErrors, validateThreshold(*input.NearThresholdMeters)...)
		z.NearThresholdMeters = *input.NearThresholdMeters
	}
	if input.DangerLevel != nil {
		level, err := ParseDangerLevel(*input.DangerLevel)
		if err != nil {
			fieldErrors = append(fieldErrors, FieldError{Field: "dangerLevel", Message: "must be one of safe, caution, warning, danger, critical"})
		}
		z.DangerLevel = level
	}
	if input.AutoEscalate != nil {
		z.AutoEscalate = *input.AutoEscalate
	}

	if len(fieldErrors) > 0 {
		return nil, &ValidationError{Errors: fieldErrors}
	}

	z.UpdatedAt = s.now().UTC()
	if err := s.repo.Update(ctx, z); err != nil {
		return nil, err
	}
	s.invalidate(ctx, z.ID)

	return z, nil
}

// Delete removes a zone.
func (s *Service) Delete(ctx context.Context, id string) error {
	if err := s.repo.Delete(ctx, id); err != nil {
		return err
	}
	s.invalidate(ctx, id)
	return nil
}

// invalidate is best effort; a stale snapshot expires with its TTL.
func (s *Service) invalidate(ctx context.Context, zoneID string) {
	if s.invalidator == nil {
		return
	}
	if err := s.invalidator.Invalidate(ctx); err != nil {
		s.logger.Error().Err(err).Str("zone_id", zoneID).Msg("failed to invalidate zone cache")
	}
}

// boundaryFrom builds a validated boundary from exactly one of the two inputs.
func boundaryFrom(points []models.Point, encoded string) ([]geo.Point, []FieldError) {
	if encoded == "" {
		boundary := toBoundary(points)
		return boundary, validateBoundary(boundary)
	}
	if len(points) > 0 {
		return nil, []FieldError{{Field: "encodedBoundary", Message: "give either coordinates or encodedBoundary, not both"}}
	}

	coords, err := polyline.DecodeRing(encoded)
	if err != nil {
		return nil, []FieldError{{Field: "encodedBoundary", Message: err.Error()}}
	}
	boundary := make([]geo.Point, 0, len(coords))
	for _, c := range coords {
		boundary = append(boundary, geo.Point{Lat: c.Lat, Lng: c.Lng})
	}
	errs := validateBoundary(boundary)
	for i := range errs {
		errs[i].Field = "encodedBoundary"
	}
	return boundary, errs
}

func toBoundary(points []models.Point) []geo.Point {
	boundary := make([]geo.Point, 0, len(points))
	for _, p := range points {
		boundary = append(boundary, geo.Point{Lat: p.Lat, Lng: p.Lng})
	}
	return boundary
}

func validateName(name string) []FieldError {
	switch {
	case name == "":
		return []FieldError{{Field: "name", Message: "name is required"}}
	case len(name) > MaxNameLength:
		return []FieldError{{Field: "name", Message: "name must be at most 120 characters"}}
	}
	return nil
}

func validateReminder(reminder string) []FieldError {
	if len(reminder) > MaxReminderLength {
		return []FieldError{{Field: "reminder", Message: "reminder must be at most 500 characters"}}
	}
	return nil
}

func validateThreshold(v float64) []FieldError {
	if math.IsNaN(v) || math.IsInf(v, 0) || v <= 0 {
		return []FieldError{{Field: "nearThresholdMeters", Message: "must be a positive number"}}
	}
	return nil
}

func validateBoundary(boundary []geo.Point) []FieldError {
	if len(boundary) < 3 {
		return []FieldError{{Field: "coordinates", Message: "at least 3 coordinates are required"}}
	}
	if _, err := geo.NewPolygon(boundary); err != nil {
		var cfgErr *geo.ConfigurationError
		if errors.As(err, &cfgErr) {
			return []FieldError{{Field: "coordinates", Message: cfgErr.Err.Error()}}
		}
		return []FieldError{{Field: "coordinates", Message: err.Error()}}
	}
	return nil
}

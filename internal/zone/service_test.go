package zone_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/geonotify/geonotify/internal/api/models"
	"github.com/geonotify/geonotify/internal/zone"
	"github.com/geonotify/geonotify/pkg/polyline"
)

type countingInvalidator struct {
	calls int
	err   error
}

func (c *countingInvalidator) Invalidate(context.Context) error {
	c.calls++
	return c.err
}

func newService(inv zone.Invalidator) (*zone.Service, *zone.InMemoryRepository) {
	repo := zone.NewInMemoryRepository()
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	svc := zone.NewService(repo, zone.ServiceConfig{
		Logger:      zerolog.Nop(),
		Invalidator: inv,
		Now:         func() time.Time { return now },
	})
	return svc, repo
}

func triangleCoords() []models.Point {
	return []models.Point{
		{Lat: 0, Lng: 0},
		{Lat: 10, Lng: 0},
		{Lat: 0, Lng: 10},
	}
}

func TestService_Create(t *testing.T) {
	inv := &countingInvalidator{}
	svc, repo := newService(inv)
	ctx := context.Background()

	z, err := svc.Create(ctx, "admin-1", &models.ZoneCreateRequest{
		Name:         "  Cliff edge ",
		Reminder:     "Stay behind the fence",
		Coordinates:  triangleCoords(),
		DangerLevel:  "critical",
		AutoEscalate: true,
	})
	require.NoError(t, err)

	assert.Contains(t, z.ID, "zn_")
	assert.Equal(t, "Cliff edge", z.Name)
	assert.Equal(t, zone.DangerCritical, z.DangerLevel)
	assert.Equal(t, zone.DefaultNearThresholdMeters, z.NearThresholdMeters)
	assert.Equal(t, "admin-1", z.CreatedBy)
	assert.True(t, z.Escalates())
	assert.Equal(t, 1, inv.calls)

	stored, err := repo.Get(ctx, z.ID)
	require.NoError(t, err)
	assert.Equal(t, z.Boundary, stored.Boundary)
}

func TestService_Create_Defaults(t *testing.T) {
	svc, _ := newService(nil)

	z, err := svc.Create(context.Background(), "admin-1", &models.ZoneCreateRequest{
		Name:        "Beach",
		Coordinates: triangleCoords(),
	})
	require.NoError(t, err)
	assert.Equal(t, zone.DangerSafe, z.DangerLevel)
	assert.False(t, z.AutoEscalate)
}

func TestService_Create_ValidationErrors(t *testing.T) {
	negative := -5.0

	tests := []struct {
		name      string
		input     *models.ZoneCreateRequest
		wantField string
	}{
		{
			name:      "missing name",
			input:     &models.ZoneCreateRequest{Coordinates: triangleCoords()},
			wantField: "name",
		},
		{
			name:      "too few coordinates",
			input:     &models.ZoneCreateRequest{Name: "x", Coordinates: triangleCoords()[:2]},
			wantField: "coordinates",
		},
		{
			name: "collinear coordinates",
			input: &models.ZoneCreateRequest{Name: "x", Coordinates: []models.Point{
				{Lat: 0, Lng: 0}, {Lat: 1, Lng: 1}, {Lat: 2, Lng: 2},
			}},
			wantField: "coordinates",
		},
		{
			name:      "unknown danger level",
			input:     &models.ZoneCreateRequest{Name: "x", Coordinates: triangleCoords(), DangerLevel: "apocalyptic"},
			wantField: "dangerLevel",
		},
		{
			name:      "negative threshold",
			input:     &models.ZoneCreateRequest{Name: "x", Coordinates: triangleCoords(), NearThresholdMeters: &negative},
			wantField: "nearThresholdMeters",
		},
		{
			name:      "malformed encoded boundary",
			input:     &models.ZoneCreateRequest{Name: "x", EncodedBoundary: "_p~iF"},
			wantField: "encodedBoundary",
		},
		{
			name:      "encoded boundary with too few points",
			input:     &models.ZoneCreateRequest{Name: "x", EncodedBoundary: "_p~iF~ps|U_ulLnnqC"},
			wantField: "encodedBoundary",
		},
		{
			name:      "both boundary forms",
			input:     &models.ZoneCreateRequest{Name: "x", Coordinates: triangleCoords(), EncodedBoundary: "_p~iF~ps|U_ulLnnqC_mqNvxq`@"},
			wantField: "encodedBoundary",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc, repo := newService(nil)

			_, err := svc.Create(context.Background(), "admin-1", tt.input)

			var valErr *zone.ValidationError
			require.True(t, errors.As(err, &valErr), "expected ValidationError, got %v", err)

			fields := make([]string, 0, len(valErr.Errors))
			for _, fe := range valErr.Errors {
				fields = append(fields, fe.Field)
			}
			assert.Contains(t, fields, tt.wantField)

			all, _ := repo.ListAll(context.Background())
			assert.Empty(t, all)
		})
	}
}

func TestService_Create_EncodedBoundary(t *testing.T) {
	svc, _ := newService(nil)

	// The Google reference polyline, closed back onto its first point.
	z, err := svc.Create(context.Background(), "admin-1", &models.ZoneCreateRequest{
		Name:            "Sierra",
		EncodedBoundary: polyline.EncodeRing([]polyline.Coordinate{{Lat: 38.5, Lng: -120.2}, {Lat: 40.7, Lng: -120.95}, {Lat: 43.252, Lng: -126.453}}),
	})
	require.NoError(t, err)

	require.Len(t, z.Boundary, 3)
	assert.InDelta(t, 38.5, z.Boundary[0].Lat, 1e-9)
	assert.InDelta(t, -126.453, z.Boundary[2].Lng, 1e-9)
}

func TestService_Update(t *testing.T) {
	inv := &countingInvalidator{}
	svc, _ := newService(inv)
	ctx := context.Background()

	z, err := svc.Create(ctx, "admin-1", &models.ZoneCreateRequest{Name: "Cave", Coordinates: triangleCoords()})
	require.NoError(t, err)

	level := "danger"
	escalate := true
	threshold := 250.0
	updated, err := svc.Update(ctx, z.ID, &models.ZoneUpdateRequest{
		DangerLevel:         &level,
		AutoEscalate:        &escalate,
		NearThresholdMeters: &threshold,
	})
	require.NoError(t, err)

	assert.Equal(t, "Cave", updated.Name)
	assert.Equal(t, zone.DangerDanger, updated.DangerLevel)
	assert.Equal(t, 250.0, updated.NearThresholdMeters)
	assert.True(t, updated.Escalates())
	assert.Equal(t, 2, inv.calls)
}

func TestService_Update_InvalidBoundaryNotPersisted(t *testing.T) {
	svc, repo := newService(nil)
	ctx := context.Background()

	z, err := svc.Create(ctx, "admin-1", &models.ZoneCreateRequest{Name: "Cave", Coordinates: triangleCoords()})
	require.NoError(t, err)

	_, err = svc.Update(ctx, z.ID, &models.ZoneUpdateRequest{Coordinates: []models.Point{
		{Lat: 0, Lng: 0}, {Lat: 1, Lng: 1}, {Lat: 0, Lng: 1}, {Lat: 1, Lng: 0},
	}})
	var valErr *zone.ValidationError
	require.True(t, errors.As(err, &valErr))

	stored, err := repo.Get(ctx, z.ID)
	require.NoError(t, err)
	assert.Len(t, stored.Boundary, 3)
}

func TestService_Update_NotFound(t *testing.T) {
	svc, _ := newService(nil)

	_, err := svc.Update(context.Background(), "zn_missing", &models.ZoneUpdateRequest{})
	assert.ErrorIs(t, err, zone.ErrZoneNotFound)
}

func TestService_Delete(t *testing.T) {
	inv := &countingInvalidator{err: errors.New("redis down")}
	svc, repo := newService(inv)
	ctx := context.Background()

	z, err := svc.Create(ctx, "admin-1", &models.ZoneCreateRequest{Name: "Cave", Coordinates: triangleCoords()})
	require.NoError(t, err)

	// Invalidation failures do not fail the write.
	require.NoError(t, svc.Delete(ctx, z.ID))
	assert.Equal(t, 2, inv.calls)

	_, err = repo.Get(ctx, z.ID)
	assert.ErrorIs(t, err, zone.ErrZoneNotFound)

	assert.ErrorIs(t, svc.Delete(ctx, z.ID), zone.ErrZoneNotFound)
}

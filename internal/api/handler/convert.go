package handler

import (
	"github.com/geonotify/geonotify/internal/api/models"
	"github.com/geonotify/geonotify/internal/notification"
	"github.com/geonotify/geonotify/internal/subject"
	"github.com/geonotify/geonotify/internal/tracking"
	"github.com/geonotify/geonotify/internal/zone"
	"github.com/geonotify/geonotify/pkg/polyline"
)

func toAPIZone(z *zone.Zone) models.Zone {
	coords := make([]models.Point, 0, len(z.Boundary))
	ring := make([]polyline.Coordinate, 0, len(z.Boundary))
	for _, p := range z.Boundary {
		coords = append(coords, models.Point{Lat: p.Lat, Lng: p.Lng})
		ring = append(ring, polyline.Coordinate{Lat: p.Lat, Lng: p.Lng})
	}
	return models.Zone{
		ID:                  z.ID,
		Name:                z.Name,
		Description:         z.Description,
		Reminder:            z.Reminder,
		Coordinates:         coords,
		EncodedBoundary:     polyline.EncodeRing(ring),
		NearThresholdMeters: z.NearThreshold(),
		DangerLevel:         z.DangerLevel.String(),
		AutoEscalate:        z.AutoEscalate,
		CreatedBy:           z.CreatedBy,
		CreatedAt:           models.Timestamp(z.CreatedAt),
		UpdatedAt:           models.Timestamp(z.UpdatedAt),
	}
}

func toAPISubject(s *subject.Subject) models.Subject {
	out := models.Subject{
		ID:                   s.ID,
		Name:                 s.Name,
		Email:                s.Email,
		Phone:                s.Phone,
		Role:                 string(s.Role),
		Active:               s.Active,
		SubscribedZoneIDs:    nonNil(s.SubscribedZoneIDs),
		LastContainedZoneIDs: nonNil(s.LastContainedZoneIDs),
		CreatedAt:            models.Timestamp(s.CreatedAt),
	}
	if loc := s.LastKnownLocation; loc != nil {
		out.LastKnownLocation = &models.Point{Lat: loc.Lat, Lng: loc.Lng}
		seen := models.Timestamp(loc.Timestamp)
		out.LastSeenAt = &seen
	}
	return out
}

func toAPINotification(e *notification.Event) models.Notification {
	return models.Notification{
		ID:                 e.ID,
		SubjectID:          e.SubjectID,
		ZoneID:             e.ZoneID,
		ZoneName:           e.ZoneName,
		Kind:               string(e.Kind),
		DangerLevel:        e.DangerLevel.String(),
		Location:           models.Point{Lat: e.Location.Lat, Lng: e.Location.Lng},
		DistanceMeters:     e.DistanceMeters,
		Title:              e.Title,
		Body:               e.Body,
		RequireInteraction: e.RequireInteraction,
		Recipients:         nonNil(e.Recipients),
		Timestamp:          models.Timestamp(e.Timestamp),
	}
}

func toAPIHits(hits []tracking.ZoneHit) []models.ZoneHit {
	out := make([]models.ZoneHit, 0, len(hits))
	for _, h := range hits {
		out = append(out, models.ZoneHit{
			ZoneID:         h.ZoneID,
			Name:           h.Name,
			DangerLevel:    h.DangerLevel.String(),
			Reminder:       h.Reminder,
			Subscribed:     h.Subscribed,
			DistanceMeters: h.DistanceMeters,
		})
	}
	return out
}

func toAPIActiveAlert(a tracking.ActiveAlert) models.ActiveAlert {
	out := models.ActiveAlert{
		SubjectID:   a.SubjectID,
		SubjectName: a.SubjectName,
		Phone:       a.Phone,
		ZoneID:      a.ZoneID,
		ZoneName:    a.ZoneName,
		DangerLevel: a.DangerLevel.String(),
	}
	if a.Location != nil {
		out.Location = &models.Point{Lat: a.Location.Lat, Lng: a.Location.Lng}
		seen := models.Timestamp(a.Location.Timestamp)
		out.LastSeenAt = &seen
	}
	return out
}

func nonNil(ids []string) []string {
	if ids == nil {
		return []string{}
	}
	return ids
}

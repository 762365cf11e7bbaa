package tracking

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/geonotify/geonotify/internal/geo"
	"github.com/geonotify/geonotify/internal/notification"
	"github.com/geonotify/geonotify/internal/subject"
	"github.com/geonotify/geonotify/internal/zone"
)

// EscalationCooldown is the minimum time between two escalations for the
// same subject and zone.
const EscalationCooldown = 5 * time.Minute

// Policy turns transitions into notification events.
type Policy struct {
	log    notification.Log
	logger zerolog.Logger
}

// NewPolicy creates an alert policy reading cooldown anchors from log.
func NewPolicy(log notification.Log, logger zerolog.Logger) *Policy {
	return &Policy{log: log, logger: logger}
}

// Decision is everything the policy needs for one evaluation.
type Decision struct {
	Subject     *subject.Subject
	Diff        Diff
	Containment *Containment
	Location    geo.Point
	Now         time.Time
}

// Transitions returns the entered, near and exited events of a decision,
// addressed to the subject. zones resolves exited zone ids, which are no
// longer in the containment result.
func (p *Policy) Transitions(d Decision, zones map[string]*zone.Zone) []*notification.Event {
	var events []*notification.Event

	inside := make(map[string]*zone.Zone, len(d.Containment.Inside))
	for _, z := range d.Containment.Inside {
		inside[z.ID] = z
	}

	for _, id := range d.Diff.Entered {
		events = append(events, p.event(d, inside[id], notification.KindEntered, nil))
	}

	for _, nz := range d.Containment.Near {
		if !d.Subject.IsSubscribed(nz.Zone.ID) {
			continue
		}
		dist := nz.DistanceMeters
		events = append(events, p.event(d, nz.Zone, notification.KindNear, &dist))
	}

	for _, id := range d.Diff.Exited {
		z, ok := zones[id]
		if !ok {
			// The zone was deleted since the previous evaluation.
			z = &zone.Zone{ID: id, Name: id}
		}
		events = append(events, p.event(d, z, notification.KindExited, nil))
	}

	for _, e := range events {
		e.Recipients = []string{d.Subject.ID}
	}
	return events
}

// Escalations returns at most one escalation per subscribed, eligible zone
// containing the subject, skipping pairs escalated within the cooldown.
// Suppressed zone ids are returned separately. A failed cooldown lookup does
// not suppress.
func (p *Policy) Escalations(ctx context.Context, d Decision) (events []*notification.Event, suppressed []string) {
	subscribedInside := toSet(d.Diff.SubscribedInside)

	for _, z := range d.Containment.Inside {
		if _, ok := subscribedInside[z.ID]; !ok || !z.Escalates() {
			continue
		}

		last, err := p.log.MostRecent(ctx, d.Subject.ID, z.ID, notification.KindEscalation)
		if err != nil {
			p.logger.Warn().Err(err).
				Str("subject_id", d.Subject.ID).
				Str("zone_id", z.ID).
				Msg("cooldown lookup failed, escalating anyway")
		} else if last != nil && d.Now.Sub(*last) < EscalationCooldown {
			p.logger.Debug().
				Str("subject_id", d.Subject.ID).
				Str("zone_id", z.ID).
				Time("last_escalation", *last).
				Msg("escalation suppressed by cooldown")
			suppressed = append(suppressed, z.ID)
			continue
		}

		events = append(events, p.event(d, z, notification.KindEscalation, nil))
	}

	return events, suppressed
}

func (p *Policy) event(d Decision, z *zone.Zone, kind notification.Kind, distance *float64) *notification.Event {
	var dist float64
	if distance != nil {
		dist = *distance
	}
	content := notification.Compose(kind, z, d.Subject.Name, dist)

	return &notification.Event{
		ID:                 "evt_" + uuid.New().String(),
		SubjectID:          d.Subject.ID,
		ZoneID:             z.ID,
		ZoneName:           z.Name,
		Kind:               kind,
		DangerLevel:        z.DangerLevel,
		Location:           d.Location,
		DistanceMeters:     distance,
		Title:              content.Title,
		Body:               content.Body,
		RequireInteraction: content.RequireInteraction,
		Timestamp:          d.Now,
	}
}

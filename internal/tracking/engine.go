package tracking

import (
	"context"
	"errors"
	"fmt"
	"math"
	"sort"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/geonotify/geonotify/internal/geo"
	"github.com/geonotify/geonotify/internal/notification"
	"github.com/geonotify/geonotify/internal/subject"
	"github.com/geonotify/geonotify/internal/zone"
)

// respondersRecipient tags delivery failures of the responder lookup.
const respondersRecipient = "responders"

// Sample is one reported location of a subject.
type Sample struct {
	SubjectID string    `json:"subjectId"`
	Lat       float64   `json:"lat"`
	Lng       float64   `json:"lng"`
	Timestamp time.Time `json:"timestamp"`
}

// ZoneHit is a zone in an evaluation result.
type ZoneHit struct {
	ZoneID         string           `json:"zoneId"`
	Name           string           `json:"name"`
	DangerLevel    zone.DangerLevel `json:"dangerLevel"`
	Reminder       string           `json:"reminder,omitempty"`
	Subscribed     bool             `json:"subscribed"`
	DistanceMeters *float64         `json:"distanceMeters,omitempty"`
}

// Result is the outcome of one evaluation.
type Result struct {
	SubjectID string           `json:"subjectId"`
	Location  subject.Location `json:"location"`

	// Inside and Near are unfiltered by subscription.
	Inside []ZoneHit `json:"inside"`
	Near   []ZoneHit `json:"near"`

	Entered []string `json:"entered"`
	Exited  []string `json:"exited"`

	Events                []*notification.Event `json:"events"`
	SuppressedEscalations []string              `json:"suppressedEscalations,omitempty"`

	ZoneErrors       []error                        `json:"-"`
	DeliveryFailures []notification.DeliveryFailure `json:"-"`
	LogFailures      int                            `json:"-"`
}

// ActiveAlert is a subject whose last evaluation placed them inside a
// danger or critical zone.
type ActiveAlert struct {
	SubjectID   string            `json:"subjectId"`
	SubjectName string            `json:"subjectName,omitempty"`
	Phone       string            `json:"phone,omitempty"`
	ZoneID      string            `json:"zoneId"`
	ZoneName    string            `json:"zoneName"`
	DangerLevel zone.DangerLevel  `json:"dangerLevel"`
	Location    *subject.Location `json:"location,omitempty"`
}

// Config configures an Engine.
type Config struct {
	Zones      zone.Catalog
	Subjects   subject.Store
	Log        notification.Log
	Dispatcher notification.Dispatcher

	// Metrics may be nil.
	Metrics *Metrics
	Logger  zerolog.Logger

	// Now is the clock used for event timestamps and the cooldown. Default: time.Now
	Now func() time.Time

	// MaxConflictRetries bounds EvaluateWithRetry. Default: 3
	MaxConflictRetries uint64
}

// Engine evaluates location samples. Evaluations of one subject are
// serialized in-process and committed with a compare-and-set, so concurrent
// processes never apply a transition computed from stale state.
type Engine struct {
	zones      zone.Catalog
	subjects   subject.Store
	log        notification.Log
	dispatcher notification.Dispatcher
	policy     *Policy
	metrics    *Metrics
	tracer     trace.Tracer
	logger     zerolog.Logger
	now        func() time.Time
	maxRetries uint64
	locks      *keyedMutex
}

// NewEngine creates an evaluation engine.
func NewEngine(cfg Config) *Engine {
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	if cfg.MaxConflictRetries == 0 {
		cfg.MaxConflictRetries = 3
	}

	return &Engine{
		zones:      cfg.Zones,
		subjects:   cfg.Subjects,
		log:        cfg.Log,
		dispatcher: cfg.Dispatcher,
		policy:     NewPolicy(cfg.Log, cfg.Logger),
		metrics:    cfg.Metrics,
		tracer:     otel.Tracer(instrumentationName),
		logger:     cfg.Logger,
		now:        cfg.Now,
		maxRetries: cfg.MaxConflictRetries,
		locks:      newKeyedMutex(),
	}
}

// Evaluate runs one sample through containment, transition tracking and the
// alert policy. The new containment set is committed before any event is
// emitted; a lost commit returns ErrStoreConflict with nothing emitted.
// A sample older than the subject's last known location returns
// ErrStaleSample. Log and delivery failures are reported in the result, not
// as errors.
func (e *Engine) Evaluate(ctx context.Context, s Sample) (res *Result, err error) {
	start := time.Now()
	ctx, span := e.tracer.Start(ctx, "tracking.Evaluate",
		trace.WithAttributes(attribute.String("subject.id", s.SubjectID)))
	defer func() {
		e.finish(ctx, span, start, err)
	}()

	if err := validateSample(s); err != nil {
		return nil, err
	}

	now := e.now()
	if s.Timestamp.IsZero() {
		s.Timestamp = now
	}

	release := e.locks.Lock(s.SubjectID)
	defer release()

	subj, err := e.subjects.Get(ctx, s.SubjectID)
	if err != nil {
		return nil, fmt.Errorf("load subject: %w", err)
	}
	if last := subj.LastKnownLocation; last != nil && s.Timestamp.Before(last.Timestamp) {
		return nil, fmt.Errorf("%w: sample at %s, last known at %s",
			ErrStaleSample, s.Timestamp.Format(time.RFC3339), last.Timestamp.Format(time.RFC3339))
	}

	zones, err := e.zones.ListAll(ctx)
	if err != nil {
		return nil, fmt.Errorf("load zones: %w", err)
	}

	return e.evaluate(ctx, span, subj, zones, s, now)
}

// Sweep re-evaluates a subject at its stored last known location if that
// location still lies inside a subscribed zone eligible for escalation. The
// subject is read under its evaluation lock, so a location reported after the
// candidate was listed is never rolled back. Sweep returns nil, nil when the
// subject no longer qualifies. Conflicts are retried like EvaluateWithRetry.
func (e *Engine) Sweep(ctx context.Context, subjectID string) (*Result, error) {
	return e.retryConflicts(ctx, subjectID, func() (*Result, error) {
		return e.sweepOnce(ctx, subjectID)
	})
}

func (e *Engine) sweepOnce(ctx context.Context, subjectID string) (res *Result, err error) {
	start := time.Now()
	ctx, span := e.tracer.Start(ctx, "tracking.Sweep",
		trace.WithAttributes(attribute.String("subject.id", subjectID)))
	defer func() {
		e.finish(ctx, span, start, err)
	}()

	release := e.locks.Lock(subjectID)
	defer release()

	subj, err := e.subjects.Get(ctx, subjectID)
	if err != nil {
		return nil, fmt.Errorf("load subject: %w", err)
	}
	zones, err := e.zones.ListAll(ctx)
	if err != nil {
		return nil, fmt.Errorf("load zones: %w", err)
	}
	if !sweepable(subj, indexZones(zones)) {
		span.SetAttributes(attribute.Bool("sweep.skipped", true))
		return nil, nil
	}

	loc := subj.LastKnownLocation
	s := Sample{SubjectID: subj.ID, Lat: loc.Lat, Lng: loc.Lng, Timestamp: loc.Timestamp}
	return e.evaluate(ctx, span, subj, zones, s, e.now())
}

// evaluate runs the pipeline for a sample against subj, which must have been
// read under the subject's lock.
func (e *Engine) evaluate(ctx context.Context, span trace.Span, subj *subject.Subject, zones []*zone.Zone, s Sample, now time.Time) (*Result, error) {
	pt := geo.Point{Lat: s.Lat, Lng: s.Lng}
	containment := Evaluate(pt, zones)
	for _, zerr := range containment.ZoneErrors {
		e.logger.Warn().Err(zerr).Str("subject_id", subj.ID).Msg("skipping zone with invalid boundary")
	}
	e.metrics.recordZoneErrors(ctx, len(containment.ZoneErrors))

	diff := Track(subj.LastContainedZoneIDs, subj.SubscribedZoneIDs, containment.InsideIDs())
	loc := subject.NewLocation(s.Lat, s.Lng, s.Timestamp)

	committed, err := e.subjects.CompareAndSet(ctx, subj.ID, subj.Snapshot(), diff.Next, loc)
	if err != nil {
		return nil, fmt.Errorf("commit containment: %w", err)
	}
	if !committed {
		return nil, ErrStoreConflict
	}

	result := newResult(subj, loc, containment, diff)

	decision := Decision{
		Subject:     subj,
		Diff:        diff,
		Containment: containment,
		Location:    pt,
		Now:         now,
	}
	events := e.policy.Transitions(decision, indexZones(zones))

	escalations, suppressed := e.policy.Escalations(ctx, decision)
	result.SuppressedEscalations = suppressed
	e.metrics.recordSuppressed(ctx, len(suppressed))

	if len(escalations) > 0 {
		responders, rerr := e.responderIDs(ctx)
		if rerr != nil {
			// Not logged, so the next evaluation is not suppressed.
			e.logger.Error().Err(rerr).Str("subject_id", subj.ID).Msg("failed to resolve responders, escalation not sent")
			for range escalations {
				result.DeliveryFailures = append(result.DeliveryFailures, notification.DeliveryFailure{
					RecipientID: respondersRecipient,
					Err:         rerr,
				})
			}
			escalations = nil
		}
		for _, ev := range escalations {
			ev.Recipients = responders
		}
	}

	for _, ev := range append(events, escalations...) {
		e.emit(ctx, ev, result)
	}

	span.SetAttributes(
		attribute.Int("zones.inside", len(result.Inside)),
		attribute.Int("events", len(result.Events)),
	)
	e.logger.Debug().
		Str("subject_id", subj.ID).
		Strs("entered", diff.Entered).
		Strs("exited", diff.Exited).
		Int("events", len(result.Events)).
		Msg("evaluation completed")

	return result, nil
}

func (e *Engine) finish(ctx context.Context, span trace.Span, start time.Time, err error) {
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	e.metrics.recordEvaluation(ctx, outcome(err), float64(time.Since(start).Microseconds())/1000)
	span.End()
}

// EvaluateWithRetry retries Evaluate with backoff while it loses the
// compare-and-set race. Other errors are returned immediately.
func (e *Engine) EvaluateWithRetry(ctx context.Context, s Sample) (*Result, error) {
	return e.retryConflicts(ctx, s.SubjectID, func() (*Result, error) {
		return e.Evaluate(ctx, s)
	})
}

func (e *Engine) retryConflicts(ctx context.Context, subjectID string, fn func() (*Result, error)) (*Result, error) {
	bo := backoff.NewExponentialBackOff()
	bo.InitialInterval = 10 * time.Millisecond
	bo.MaxInterval = 200 * time.Millisecond
	bo.MaxElapsedTime = 0
	policy := backoff.WithContext(backoff.WithMaxRetries(bo, e.maxRetries), ctx)

	var result *Result
	err := backoff.Retry(func() error {
		r, err := fn()
		if err != nil {
			if errors.Is(err, ErrStoreConflict) {
				e.logger.Debug().Str("subject_id", subjectID).Msg("containment commit conflict, retrying")
				return err
			}
			return backoff.Permanent(err)
		}
		result = r
		return nil
	}, policy)
	if err != nil {
		return nil, err
	}
	return result, nil
}

// ActiveAlerts lists subjects whose last containment includes a danger or
// critical zone, most severe first.
func (e *Engine) ActiveAlerts(ctx context.Context) ([]ActiveAlert, error) {
	zones, err := e.zones.ListAll(ctx)
	if err != nil {
		return nil, fmt.Errorf("load zones: %w", err)
	}
	subjects, err := e.subjects.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("load subjects: %w", err)
	}

	byID := indexZones(zones)
	alerts := []ActiveAlert{}
	for _, s := range subjects {
		for _, id := range s.LastContainedZoneIDs {
			z, ok := byID[id]
			if !ok || !z.DangerLevel.AtLeast(zone.DangerDanger) {
				continue
			}
			alerts = append(alerts, ActiveAlert{
				SubjectID:   s.ID,
				SubjectName: s.Name,
				Phone:       s.Phone,
				ZoneID:      z.ID,
				ZoneName:    z.Name,
				DangerLevel: z.DangerLevel,
				Location:    s.LastKnownLocation,
			})
		}
	}

	sort.SliceStable(alerts, func(i, j int) bool {
		if alerts[i].DangerLevel != alerts[j].DangerLevel {
			return alerts[i].DangerLevel > alerts[j].DangerLevel
		}
		if alerts[i].SubjectID != alerts[j].SubjectID {
			return alerts[i].SubjectID < alerts[j].SubjectID
		}
		return alerts[i].ZoneID < alerts[j].ZoneID
	})
	return alerts, nil
}

// SweepCandidates lists subjects whose last containment includes a
// subscribed zone eligible for escalation. The list is advisory: Sweep
// re-checks each subject under its lock.
func (e *Engine) SweepCandidates(ctx context.Context) ([]string, error) {
	zones, err := e.zones.ListAll(ctx)
	if err != nil {
		return nil, fmt.Errorf("load zones: %w", err)
	}
	subjects, err := e.subjects.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("load subjects: %w", err)
	}

	byID := indexZones(zones)
	var ids []string
	for _, s := range subjects {
		if sweepable(s, byID) {
			ids = append(ids, s.ID)
		}
	}
	return ids, nil
}

func sweepable(s *subject.Subject, zones map[string]*zone.Zone) bool {
	if s.LastKnownLocation == nil {
		return false
	}
	for _, id := range s.LastContainedZoneIDs {
		if z, ok := zones[id]; ok && z.Escalates() && s.IsSubscribed(id) {
			return true
		}
	}
	return false
}

func (e *Engine) emit(ctx context.Context, ev *notification.Event, result *Result) {
	logger := e.logger.With().
		Str("event_id", ev.ID).
		Str("subject_id", ev.SubjectID).
		Str("zone_id", ev.ZoneID).
		Str("kind", string(ev.Kind)).
		Logger()

	if err := e.log.Append(ctx, ev); err != nil {
		result.LogFailures++
		logger.Error().Err(err).Msg("failed to append notification log")
	}

	if e.dispatcher != nil && len(ev.Recipients) > 0 {
		failures := notification.Failures(e.dispatcher.Deliver(ctx, ev.Recipients, ev))
		for _, f := range failures {
			logger.Warn().Err(f.Err).Str("recipient_id", f.RecipientID).Str("endpoint", f.Endpoint).Msg("delivery failed")
		}
		result.DeliveryFailures = append(result.DeliveryFailures, failures...)
		e.metrics.recordDeliveryFailures(ctx, string(ev.Kind), len(failures))
	}

	e.metrics.recordNotification(ctx, string(ev.Kind))
	result.Events = append(result.Events, ev)
}

func (e *Engine) responderIDs(ctx context.Context) ([]string, error) {
	responders, err := e.subjects.ListResponders(ctx)
	if err != nil {
		return nil, err
	}
	ids := make([]string, 0, len(responders))
	for _, r := range responders {
		ids = append(ids, r.ID)
	}
	return ids, nil
}

func newResult(subj *subject.Subject, loc subject.Location, c *Containment, d Diff) *Result {
	r := &Result{
		SubjectID:  subj.ID,
		Location:   loc,
		Inside:     []ZoneHit{},
		Near:       []ZoneHit{},
		Entered:    d.Entered,
		Exited:     d.Exited,
		Events:     []*notification.Event{},
		ZoneErrors: c.ZoneErrors,
	}
	for _, z := range c.Inside {
		r.Inside = append(r.Inside, ZoneHit{
			ZoneID:      z.ID,
			Name:        z.Name,
			DangerLevel: z.DangerLevel,
			Reminder:    z.Reminder,
			Subscribed:  subj.IsSubscribed(z.ID),
		})
	}
	for _, nz := range c.Near {
		dist := nz.DistanceMeters
		r.Near = append(r.Near, ZoneHit{
			ZoneID:         nz.Zone.ID,
			Name:           nz.Zone.Name,
			DangerLevel:    nz.Zone.DangerLevel,
			Subscribed:     subj.IsSubscribed(nz.Zone.ID),
			DistanceMeters: &dist,
		})
	}
	if r.Entered == nil {
		r.Entered = []string{}
	}
	if r.Exited == nil {
		r.Exited = []string{}
	}
	return r
}

func indexZones(zones []*zone.Zone) map[string]*zone.Zone {
	byID := make(map[string]*zone.Zone, len(zones))
	for _, z := range zones {
		byID[z.ID] = z
	}
	return byID
}

func validateSample(s Sample) error {
	switch {
	case s.SubjectID == "":
		return &InputError{Field: "subjectId", Value: s.SubjectID, Reason: "required"}
	case math.IsNaN(s.Lat) || math.IsInf(s.Lat, 0) || s.Lat < -90 || s.Lat > 90:
		return &InputError{Field: "lat", Value: s.Lat, Reason: "must be a finite number between -90 and 90"}
	case math.IsNaN(s.Lng) || math.IsInf(s.Lng, 0) || s.Lng < -180 || s.Lng > 180:
		return &InputError{Field: "lng", Value: s.Lng, Reason: "must be a finite number between -180 and 180"}
	}
	return nil
}

func outcome(err error) string {
	switch {
	case err == nil:
		return "ok"
	case errors.Is(err, ErrInvalidInput):
		return "invalid_input"
	case errors.Is(err, ErrStoreConflict):
		return "conflict"
	case errors.Is(err, ErrStaleSample):
		return "stale"
	case errors.Is(err, subject.ErrSubjectNotFound):
		return "unknown_subject"
	}
	return "error"
}

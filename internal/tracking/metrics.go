package tracking

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

const instrumentationName = "github.com/geonotify/geonotify/internal/tracking"

// Metrics holds the engine's OpenTelemetry instruments.
type Metrics struct {
	evaluations          metric.Int64Counter
	notifications        metric.Int64Counter
	suppressed           metric.Int64Counter
	deliveryFailures     metric.Int64Counter
	zoneConfigErrors     metric.Int64Counter
	evaluationDurationMs metric.Float64Histogram
}

// NewMetrics creates the engine instruments on the global meter provider.
func NewMetrics() (*Metrics, error) {
	meter := otel.Meter(instrumentationName)

	evaluations, err := meter.Int64Counter(
		"geonotify.evaluations",
		metric.WithDescription("Location evaluations by outcome"),
		metric.WithUnit("{evaluation}"),
	)
	if err != nil {
		return nil, err
	}

	notifications, err := meter.Int64Counter(
		"geonotify.notifications",
		metric.WithDescription("Notification events emitted by kind"),
		metric.WithUnit("{event}"),
	)
	if err != nil {
		return nil, err
	}

	suppressed, err := meter.Int64Counter(
		"geonotify.escalations.suppressed",
		metric.WithDescription("Escalations suppressed by the cooldown"),
		metric.WithUnit("{event}"),
	)
	if err != nil {
		return nil, err
	}

	deliveryFailures, err := meter.Int64Counter(
		"geonotify.delivery.failures",
		metric.WithDescription("Per-endpoint delivery failures"),
		metric.WithUnit("{failure}"),
	)
	if err != nil {
		return nil, err
	}

	zoneConfigErrors, err := meter.Int64Counter(
		"geonotify.zone.config_errors",
		metric.WithDescription("Zones skipped because of a malformed boundary"),
		metric.WithUnit("{zone}"),
	)
	if err != nil {
		return nil, err
	}

	duration, err := meter.Float64Histogram(
		"geonotify.evaluation.duration",
		metric.WithDescription("Duration of location evaluations"),
		metric.WithUnit("ms"),
	)
	if err != nil {
		return nil, err
	}

	return &Metrics{
		evaluations:          evaluations,
		notifications:        notifications,
		suppressed:           suppressed,
		deliveryFailures:     deliveryFailures,
		zoneConfigErrors:     zoneConfigErrors,
		evaluationDurationMs: duration,
	}, nil
}

// The recorders below accept a nil receiver so the engine runs without metrics.

func (m *Metrics) recordEvaluation(ctx context.Context, outcome string, ms float64) {
	if m == nil {
		return
	}
	attrs := metric.WithAttributes(attribute.String("outcome", outcome))
	m.evaluations.Add(ctx, 1, attrs)
	m.evaluationDurationMs.Record(ctx, ms, attrs)
}

func (m *Metrics) recordNotification(ctx context.Context, kind string) {
	if m == nil {
		return
	}
	m.notifications.Add(ctx, 1, metric.WithAttributes(attribute.String("kind", kind)))
}

func (m *Metrics) recordSuppressed(ctx context.Context, n int) {
	if m == nil || n == 0 {
		return
	}
	m.suppressed.Add(ctx, int64(n))
}

func (m *Metrics) recordDeliveryFailures(ctx context.Context, kind string, n int) {
	if m == nil || n == 0 {
		return
	}
	m.deliveryFailures.Add(ctx, int64(n), metric.WithAttributes(attribute.String("kind", kind)))
}

func (m *Metrics) recordZoneErrors(ctx context.Context, n int) {
	if m == nil || n == 0 {
		return
	}
	m.zoneConfigErrors.Add(ctx, int64(n))
}

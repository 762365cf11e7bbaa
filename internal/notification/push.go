package notification

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/geonotify/geonotify/internal/device"
)

// ErrEndpointGone is returned by a Sender when the push service reports the
// endpoint as expired or unsubscribed.
var ErrEndpointGone = errors.New("push endpoint gone")

// PushMessage is the payload handed to a push Sender.
type PushMessage struct {
	Title              string            `json:"title"`
	Body               string            `json:"body"`
	RequireInteraction bool              `json:"requireInteraction"`
	Data               map[string]string `json:"data,omitempty"`
}

// Sender delivers a message to a single push endpoint.
type Sender interface {
	Send(ctx context.Context, d *device.Device, msg PushMessage) error
}

// EndpointRegistry lists and prunes the push endpoints of subjects.
type EndpointRegistry interface {
	ListBySubject(ctx context.Context, subjectID string) ([]*device.Device, error)
	DeleteByEndpoint(ctx context.Context, endpoint string) error
}

// ErrDeliveryTimeout marks a send abandoned after PushConfig.SendTimeout.
var ErrDeliveryTimeout = errors.New("push delivery timed out")

// PushConfig tunes a PushDispatcher.
type PushConfig struct {
	// Concurrency caps in-flight sends for one event. Default: 8
	Concurrency int

	// SendTimeout bounds each endpoint's send, retries included. Default: 5s
	SendTimeout time.Duration

	Logger zerolog.Logger
}

// PushDispatcher delivers events to every registered endpoint of each
// recipient. Endpoints are sent to concurrently so a slow gateway call does
// not hold up the rest of the fan-out.
type PushDispatcher struct {
	registry    EndpointRegistry
	sender      Sender
	concurrency int
	sendTimeout time.Duration
	logger      zerolog.Logger
}

// NewPushDispatcher creates a push dispatcher.
func NewPushDispatcher(registry EndpointRegistry, sender Sender, cfg PushConfig) *PushDispatcher {
	if cfg.Concurrency <= 0 {
		cfg.Concurrency = 8
	}
	if cfg.SendTimeout <= 0 {
		cfg.SendTimeout = 5 * time.Second
	}
	return &PushDispatcher{
		registry:    registry,
		sender:      sender,
		concurrency: cfg.Concurrency,
		sendTimeout: cfg.SendTimeout,
		logger:      cfg.Logger,
	}
}

type pushTarget struct {
	result int
	device *device.Device
}

// Deliver implements Dispatcher. It returns once every send has finished or
// hit its deadline. Endpoints reported gone are removed from the registry.
func (p *PushDispatcher) Deliver(ctx context.Context, recipientIDs []string, event *Event) []DeliveryResult {
	msg := PushMessage{
		Title:              event.Title,
		Body:               event.Body,
		RequireInteraction: event.RequireInteraction,
		Data: map[string]string{
			"eventId":     event.ID,
			"kind":        string(event.Kind),
			"zoneId":      event.ZoneID,
			"subjectId":   event.SubjectID,
			"dangerLevel": event.DangerLevel.String(),
		},
	}

	results := make([]DeliveryResult, len(recipientIDs))
	var targets []pushTarget
	for i, recipientID := range recipientIDs {
		results[i].RecipientID = recipientID

		devices, err := p.registry.ListBySubject(ctx, recipientID)
		if err != nil {
			results[i].Failures = append(results[i].Failures, DeliveryFailure{RecipientID: recipientID, Err: err})
			continue
		}
		if len(devices) == 0 {
			p.logger.Debug().Str("recipient_id", recipientID).Msg("no push endpoints registered")
			continue
		}
		for _, d := range devices {
			targets = append(targets, pushTarget{result: i, device: d})
		}
	}

	var (
		mu sync.Mutex
		g  errgroup.Group
	)
	g.SetLimit(p.concurrency)
	for _, t := range targets {
		g.Go(func() error {
			recipientID := recipientIDs[t.result]
			err := p.send(ctx, t.device, msg)
			if errors.Is(err, ErrEndpointGone) {
				p.prune(ctx, recipientID, t.device)
			}

			mu.Lock()
			defer mu.Unlock()
			r := &results[t.result]
			if err != nil {
				r.Failures = append(r.Failures, DeliveryFailure{
					RecipientID: recipientID,
					Endpoint:    t.device.ID,
					Err:         err,
				})
				return nil
			}
			r.Delivered++
			return nil
		})
	}
	_ = g.Wait()

	return results
}

func (p *PushDispatcher) send(ctx context.Context, d *device.Device, msg PushMessage) error {
	sendCtx, cancel := context.WithTimeout(ctx, p.sendTimeout)
	defer cancel()

	err := p.sender.Send(sendCtx, d, msg)
	if err != nil && ctx.Err() == nil && errors.Is(sendCtx.Err(), context.DeadlineExceeded) {
		p.logger.Warn().Str("device_id", d.ID).Dur("timeout", p.sendTimeout).Msg("push send timed out")
		return fmt.Errorf("%w: %w", ErrDeliveryTimeout, err)
	}
	return err
}

func (p *PushDispatcher) prune(ctx context.Context, recipientID string, d *device.Device) {
	err := p.registry.DeleteByEndpoint(ctx, d.Endpoint)
	switch {
	case err == nil:
		p.logger.Info().Str("device_id", d.ID).Str("recipient_id", recipientID).Msg("pruned expired push endpoint")
	case !errors.Is(err, device.ErrDeviceNotFound):
		p.logger.Warn().Err(err).Str("device_id", d.ID).Msg("failed to prune expired endpoint")
	}
}

var _ Dispatcher = (*PushDispatcher)(nil)

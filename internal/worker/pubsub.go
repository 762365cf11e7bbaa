package worker

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"cloud.google.com/go/pubsub/v2"
	"github.com/rs/zerolog"

	"github.com/geonotify/geonotify/internal/subject"
	"github.com/geonotify/geonotify/internal/tracking"
)

// Job types carried by worker messages.
const (
	JobLocationSample  = "location_sample"
	JobEscalationSweep = "escalation_sweep"
)

// ErrPoisonMessage marks a message that can never be processed. Such
// messages are acked so they are not redelivered.
var ErrPoisonMessage = errors.New("unprocessable message")

// Message is a worker job message.
type Message struct {
	JobType   string    `json:"job_type"`
	SubjectID string    `json:"subject_id,omitempty"`
	Lat       float64   `json:"lat,omitempty"`
	Lng       float64   `json:"lng,omitempty"`
	Timestamp time.Time `json:"timestamp,omitempty"`
}

// Processor runs the job carried by a message.
type Processor struct {
	evaluator Evaluator
	sweep     *SweepJob
	logger    zerolog.Logger
}

// NewProcessor creates a message processor. sweep may be nil.
func NewProcessor(evaluator Evaluator, sweep *SweepJob, logger zerolog.Logger) *Processor {
	return &Processor{evaluator: evaluator, sweep: sweep, logger: logger}
}

// Process handles one message body. A nil error or an error wrapping
// ErrPoisonMessage means the message should be acked.
func (p *Processor) Process(ctx context.Context, data []byte) error {
	var msg Message
	if err := json.Unmarshal(data, &msg); err != nil {
		return fmt.Errorf("%w: %v", ErrPoisonMessage, err)
	}

	switch msg.JobType {
	case JobLocationSample, "":
		return p.processSample(ctx, msg)
	case JobEscalationSweep:
		if p.sweep == nil {
			return fmt.Errorf("%w: sweep not configured", ErrPoisonMessage)
		}
		result := p.sweep.Run(ctx)
		if result.Failed > result.Evaluated {
			return fmt.Errorf("too many sweep failures: %d/%d", result.Failed, result.Candidates)
		}
		return nil
	default:
		return fmt.Errorf("%w: unknown job type %q", ErrPoisonMessage, msg.JobType)
	}
}

func (p *Processor) processSample(ctx context.Context, msg Message) error {
	res, err := p.evaluator.EvaluateWithRetry(ctx, tracking.Sample{
		SubjectID: msg.SubjectID,
		Lat:       msg.Lat,
		Lng:       msg.Lng,
		Timestamp: msg.Timestamp,
	})
	switch {
	case errors.Is(err, tracking.ErrInvalidInput),
		errors.Is(err, tracking.ErrStaleSample),
		errors.Is(err, subject.ErrSubjectNotFound):
		return fmt.Errorf("%w: %v", ErrPoisonMessage, err)
	case err != nil:
		return err
	}

	p.logger.Debug().
		Str("subject_id", msg.SubjectID).
		Int("events", len(res.Events)).
		Int("delivery_failures", len(res.DeliveryFailures)).
		Msg("location sample evaluated")
	return nil
}

// PubSubHandler consumes worker messages from a Pub/Sub subscription.
type PubSubHandler struct {
	subscriber       *pubsub.Subscriber
	subscriptionName string
	processor        *Processor
	logger           zerolog.Logger
}

// PubSubConfig holds configuration for the Pub/Sub handler. The caller owns
// Client and closes it after Start returns.
type PubSubConfig struct {
	Client           *pubsub.Client
	SubscriptionName string
	Processor        *Processor
	Logger           zerolog.Logger
}

// NewPubSubHandler creates a new Pub/Sub handler.
func NewPubSubHandler(cfg PubSubConfig) *PubSubHandler {
	subscriber := cfg.Client.Subscriber(cfg.SubscriptionName)

	// Samples of one subject are serialized by the engine, so a wide window is fine.
	subscriber.ReceiveSettings.MaxOutstandingMessages = 100
	subscriber.ReceiveSettings.MaxExtension = 2 * time.Minute

	return &PubSubHandler{
		subscriber:       subscriber,
		subscriptionName: cfg.SubscriptionName,
		processor:        cfg.Processor,
		logger:           cfg.Logger,
	}
}

// Start begins processing Pub/Sub messages. It blocks until ctx is done.
func (h *PubSubHandler) Start(ctx context.Context) error {
	h.logger.Info().
		Str("subscription", h.subscriptionName).
		Msg("starting pubsub handler")

	return h.subscriber.Receive(ctx, func(ctx context.Context, msg *pubsub.Message) {
		h.handleMessage(ctx, msg)
	})
}

func (h *PubSubHandler) handleMessage(ctx context.Context, msg *pubsub.Message) {
	startTime := time.Now()

	logger := h.logger.With().
		Str("message_id", msg.ID).
		Str("publish_time", msg.PublishTime.Format(time.RFC3339)).
		Logger()

	err := h.processor.Process(ctx, msg.Data)
	switch {
	case errors.Is(err, ErrPoisonMessage):
		logger.Warn().Err(err).Msg("dropping unprocessable message")
		msg.Ack()
	case err != nil:
		logger.Error().Err(err).Msg("job failed")
		msg.Nack()
	default:
		logger.Debug().Dur("duration", time.Since(startTime)).Msg("job completed")
		msg.Ack()
	}
}

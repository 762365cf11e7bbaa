package notification

import (
	"context"
	"encoding/json"

	"cloud.google.com/go/pubsub/v2"
	"github.com/rs/zerolog"
)

// PublishFunc publishes one message and waits for the server acknowledgement.
type PublishFunc func(ctx context.Context, data []byte, attrs map[string]string) error

// PubSubDispatcher publishes events to a Pub/Sub topic consumed by the
// response-team paging integration. One message is published per event and
// every recipient shares its outcome.
type PubSubDispatcher struct {
	publish PublishFunc
	logger  zerolog.Logger
}

// NewPubSubDispatcher creates a dispatcher publishing through pub.
func NewPubSubDispatcher(pub *pubsub.Publisher, logger zerolog.Logger) *PubSubDispatcher {
	return NewPubSubDispatcherFunc(func(ctx context.Context, data []byte, attrs map[string]string) error {
		res := pub.Publish(ctx, &pubsub.Message{Data: data, Attributes: attrs})
		_, err := res.Get(ctx)
		return err
	}, logger)
}

// NewPubSubDispatcherFunc creates a dispatcher over an arbitrary publish function.
func NewPubSubDispatcherFunc(publish PublishFunc, logger zerolog.Logger) *PubSubDispatcher {
	return &PubSubDispatcher{publish: publish, logger: logger}
}

// Deliver implements Dispatcher.
func (p *PubSubDispatcher) Deliver(ctx context.Context, recipientIDs []string, event *Event) []DeliveryResult {
	results := make([]DeliveryResult, len(recipientIDs))
	for i, id := range recipientIDs {
		results[i].RecipientID = id
	}
	if len(recipientIDs) == 0 {
		return results
	}

	msg := *event
	msg.Recipients = recipientIDs

	data, err := json.Marshal(&msg)
	if err == nil {
		err = p.publish(ctx, data, map[string]string{
			"kind":         string(event.Kind),
			"zone_id":      event.ZoneID,
			"subject_id":   event.SubjectID,
			"danger_level": event.DangerLevel.String(),
		})
	}

	for i := range results {
		if err != nil {
			results[i].Failures = []DeliveryFailure{{RecipientID: results[i].RecipientID, Endpoint: "pubsub", Err: err}}
			continue
		}
		results[i].Delivered = 1
	}

	if err != nil {
		p.logger.Warn().Err(err).Str("event_id", event.ID).Msg("failed to publish event")
	}
	return results
}

var _ Dispatcher = (*PubSubDispatcher)(nil)

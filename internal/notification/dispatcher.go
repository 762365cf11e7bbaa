package notification

import (
	"context"
)

// Dispatcher delivers an event to recipients on a best-effort basis. A
// failure for one recipient never prevents delivery to the others; Deliver
// returns one result per recipient in input order.
type Dispatcher interface {
	Deliver(ctx context.Context, recipientIDs []string, event *Event) []DeliveryResult
}

// Route sends events of the listed kinds to a dispatcher. An empty Kinds
// list matches every kind.
type Route struct {
	Dispatcher Dispatcher
	Kinds      []Kind

	// Enabled is checked per event; nil means always on.
	Enabled func(ctx context.Context) bool
}

func (r Route) matches(k Kind) bool {
	if len(r.Kinds) == 0 {
		return true
	}
	for _, kind := range r.Kinds {
		if kind == k {
			return true
		}
	}
	return false
}

// MultiDispatcher fans an event out to every matching route and merges the
// per-recipient results.
type MultiDispatcher struct {
	routes []Route
}

// NewMultiDispatcher creates a dispatcher over routes.
func NewMultiDispatcher(routes ...Route) *MultiDispatcher {
	return &MultiDispatcher{routes: routes}
}

// Deliver implements Dispatcher.
func (m *MultiDispatcher) Deliver(ctx context.Context, recipientIDs []string, event *Event) []DeliveryResult {
	merged := make([]DeliveryResult, len(recipientIDs))
	index := make(map[string]int, len(recipientIDs))
	for i, id := range recipientIDs {
		merged[i].RecipientID = id
		index[id] = i
	}

	for _, route := range m.routes {
		if !route.matches(event.Kind) {
			continue
		}
		if route.Enabled != nil && !route.Enabled(ctx) {
			continue
		}
		for _, r := range route.Dispatcher.Deliver(ctx, recipientIDs, event) {
			i, ok := index[r.RecipientID]
			if !ok {
				continue
			}
			merged[i].Delivered += r.Delivered
			merged[i].Failures = append(merged[i].Failures, r.Failures...)
		}
	}

	return merged
}

var _ Dispatcher = (*MultiDispatcher)(nil)

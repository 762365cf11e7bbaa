// Package featureflags holds the runtime kill switches operators flip while
// the service is running, such as pausing push delivery during a gateway
// incident.
package featureflags

import (
	"time"
)

// Kill switches. All default to false.
const (
	// FlagDisablePushDelivery stops the push route. Events are still logged,
	// so cooldowns keep running while delivery is off.
	FlagDisablePushDelivery = "disable_push_delivery"

	// FlagDisableEscalationPublish stops publishing escalations to Pub/Sub.
	FlagDisableEscalationPublish = "disable_escalation_publish"

	// FlagDisableEscalationSweep pauses the periodic escalation sweep.
	FlagDisableEscalationSweep = "disable_escalation_sweep"
)

// Flag is a feature flag with its current value.
type Flag struct {
	Key       string      `json:"key"`
	Value     interface{} `json:"value"`
	UpdatedAt time.Time   `json:"updatedAt"`
}

// BoolValue returns the flag value as a boolean, or defaultValue when the
// flag is nil or not a boolean.
func (f *Flag) BoolValue(defaultValue bool) bool {
	if f == nil {
		return defaultValue
	}
	switch v := f.Value.(type) {
	case bool:
		return v
	case float64:
		// JSON unmarshals numbers as float64
		return v != 0
	default:
		return defaultValue
	}
}

// Known reports whether key is one of the declared switches.
func Known(key string) bool {
	_, ok := DefaultFlags()[key]
	return ok
}

// DefaultFlags returns the value of every switch before anyone flips it.
func DefaultFlags() map[string]*Flag {
	var epoch time.Time
	return map[string]*Flag{
		FlagDisablePushDelivery:      {Key: FlagDisablePushDelivery, Value: false, UpdatedAt: epoch},
		FlagDisableEscalationPublish: {Key: FlagDisableEscalationPublish, Value: false, UpdatedAt: epoch},
		FlagDisableEscalationSweep:   {Key: FlagDisableEscalationSweep, Value: false, UpdatedAt: epoch},
	}
}

// Package worker provides the background jobs of GeoNotify: the location
// sample consumer and the escalation sweep.
package worker

import (
	"time"
)

// SweepConfig holds configuration for the escalation sweep job.
type SweepConfig struct {
	// Interval is the time between two sweeps.
	// Default: 2 minutes
	Interval time.Duration

	// Concurrency is the number of concurrent evaluations.
	// Default: 4
	Concurrency int

	// Timeout is the timeout for each evaluation.
	// Default: 30 seconds
	Timeout time.Duration
}

// DefaultSweepConfig returns the default sweep configuration.
func DefaultSweepConfig() SweepConfig {
	return SweepConfig{
		Interval:    2 * time.Minute,
		Concurrency: 4,
		Timeout:     30 * time.Second,
	}
}

func (c SweepConfig) withDefaults() SweepConfig {
	d := DefaultSweepConfig()
	if c.Interval <= 0 {
		c.Interval = d.Interval
	}
	if c.Concurrency <= 0 {
		c.Concurrency = d.Concurrency
	}
	if c.Timeout <= 0 {
		c.Timeout = d.Timeout
	}
	return c
}

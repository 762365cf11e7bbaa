package worker

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/geonotify/geonotify/internal/notification"
	"github.com/geonotify/geonotify/internal/tracking"
)

// Evaluator is the part of the tracking engine the jobs use.
type Evaluator interface {
	EvaluateWithRetry(ctx context.Context, s tracking.Sample) (*tracking.Result, error)
	SweepCandidates(ctx context.Context) ([]string, error)
	Sweep(ctx context.Context, subjectID string) (*tracking.Result, error)
}

// SweepJob re-evaluates subjects last seen inside an escalating zone, so a
// subject who stops reporting keeps producing cooldown-limited escalations.
type SweepJob struct {
	config    SweepConfig
	evaluator Evaluator
	paused    func(ctx context.Context) bool
	logger    zerolog.Logger

	metrics *SweepMetrics
}

// SweepMetrics tracks sweep job statistics.
type SweepMetrics struct {
	mu sync.RWMutex

	TotalSweeps     int64
	Evaluated       int64
	Skipped         int64
	Failed          int64
	Escalations     int64
	LastSweepAt     time.Time
	LastSweepLength time.Duration
}

// SweepJobConfig holds configuration for creating a SweepJob.
type SweepJobConfig struct {
	Config    SweepConfig
	Evaluator Evaluator
	Logger    zerolog.Logger

	// Paused, when set, is checked before each scheduled sweep. Run ignores it.
	Paused func(ctx context.Context) bool
}

// NewSweepJob creates a new sweep job.
func NewSweepJob(cfg SweepJobConfig) *SweepJob {
	return &SweepJob{
		config:    cfg.Config.withDefaults(),
		evaluator: cfg.Evaluator,
		paused:    cfg.Paused,
		logger:    cfg.Logger,
		metrics:   &SweepMetrics{},
	}
}

// SweepResult contains the result of one sweep.
type SweepResult struct {
	StartTime   time.Time
	EndTime     time.Time
	Duration    time.Duration
	Candidates  int
	Evaluated   int
	Skipped     int // no longer eligible when swept
	Failed      int
	Escalations int
	Errors      []SweepError
}

// SweepError is a failed evaluation of one subject.
type SweepError struct {
	SubjectID string
	Error     string
}

// Start runs a sweep every interval until ctx is done.
func (j *SweepJob) Start(ctx context.Context) {
	ticker := time.NewTicker(j.config.Interval)
	defer ticker.Stop()

	j.logger.Info().Dur("interval", j.config.Interval).Msg("escalation sweep started")

	for {
		select {
		case <-ctx.Done():
			j.logger.Info().Msg("escalation sweep stopped")
			return
		case <-ticker.C:
			if j.paused != nil && j.paused(ctx) {
				j.logger.Debug().Msg("escalation sweep paused, skipping")
				continue
			}
			j.Run(ctx)
		}
	}
}

// Run executes one sweep.
func (j *SweepJob) Run(ctx context.Context) *SweepResult {
	startTime := time.Now()
	result := &SweepResult{StartTime: startTime}

	ids, err := j.evaluator.SweepCandidates(ctx)
	if err != nil {
		j.logger.Error().Err(err).Msg("failed to list sweep candidates")
		result.Failed = 1
		result.Errors = append(result.Errors, SweepError{Error: err.Error()})
		result.EndTime = time.Now()
		result.Duration = result.EndTime.Sub(startTime)
		j.updateMetrics(result)
		return result
	}
	result.Candidates = len(ids)

	idsChan := make(chan string, len(ids))
	resultsChan := make(chan sampleResult, len(ids))

	var wg sync.WaitGroup
	for i := 0; i < j.config.Concurrency; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			j.sweepWorker(ctx, idsChan, resultsChan)
		}()
	}

	for _, id := range ids {
		idsChan <- id
	}
	close(idsChan)

	go func() {
		wg.Wait()
		close(resultsChan)
	}()

	for sr := range resultsChan {
		if sr.err != nil {
			result.Failed++
			result.Errors = append(result.Errors, SweepError{SubjectID: sr.subjectID, Error: sr.err.Error()})
			continue
		}
		if sr.skipped {
			result.Skipped++
			continue
		}
		result.Evaluated++
		result.Escalations += sr.escalations
	}

	result.EndTime = time.Now()
	result.Duration = result.EndTime.Sub(startTime)
	j.updateMetrics(result)

	j.logger.Info().
		Dur("duration", result.Duration).
		Int("candidates", result.Candidates).
		Int("evaluated", result.Evaluated).
		Int("skipped", result.Skipped).
		Int("failed", result.Failed).
		Int("escalations", result.Escalations).
		Msg("escalation sweep completed")

	return result
}

type sampleResult struct {
	subjectID   string
	skipped     bool
	escalations int
	err         error
}

func (j *SweepJob) sweepWorker(ctx context.Context, ids <-chan string, results chan<- sampleResult) {
	for id := range ids {
		select {
		case <-ctx.Done():
			results <- sampleResult{subjectID: id, err: ctx.Err()}
		default:
			results <- j.sweepOne(ctx, id)
		}
	}
}

func (j *SweepJob) sweepOne(ctx context.Context, subjectID string) sampleResult {
	evalCtx, cancel := context.WithTimeout(ctx, j.config.Timeout)
	defer cancel()

	res, err := j.evaluator.Sweep(evalCtx, subjectID)
	if err != nil {
		j.logger.Warn().Err(err).Str("subject_id", subjectID).Msg("sweep evaluation failed")
		return sampleResult{subjectID: subjectID, err: err}
	}
	if res == nil {
		j.logger.Debug().Str("subject_id", subjectID).Msg("subject left escalating zones, skipped")
		return sampleResult{subjectID: subjectID, skipped: true}
	}

	var escalations int
	for _, ev := range res.Events {
		if ev.Kind == notification.KindEscalation {
			escalations++
		}
	}
	return sampleResult{subjectID: subjectID, escalations: escalations}
}

func (j *SweepJob) updateMetrics(result *SweepResult) {
	j.metrics.mu.Lock()
	defer j.metrics.mu.Unlock()

	j.metrics.TotalSweeps++
	j.metrics.Evaluated += int64(result.Evaluated)
	j.metrics.Skipped += int64(result.Skipped)
	j.metrics.Failed += int64(result.Failed)
	j.metrics.Escalations += int64(result.Escalations)
	j.metrics.LastSweepAt = result.EndTime
	j.metrics.LastSweepLength = result.Duration
}

// GetMetrics returns a copy of the current metrics.
func (j *SweepJob) GetMetrics() SweepMetrics {
	j.metrics.mu.RLock()
	defer j.metrics.mu.RUnlock()

	return SweepMetrics{
		TotalSweeps:     j.metrics.TotalSweeps,
		Evaluated:       j.metrics.Evaluated,
		Skipped:         j.metrics.Skipped,
		Failed:          j.metrics.Failed,
		Escalations:     j.metrics.Escalations,
		LastSweepAt:     j.metrics.LastSweepAt,
		LastSweepLength: j.metrics.LastSweepLength,
	}
}

// MetricsSnapshot returns a snapshot of the current metrics as a map.
func (j *SweepJob) MetricsSnapshot() map[string]interface{} {
	m := j.GetMetrics()
	return map[string]interface{}{
		"total_sweeps":      m.TotalSweeps,
		"evaluated":         m.Evaluated,
		"skipped":           m.Skipped,
		"failed":            m.Failed,
		"escalations":       m.Escalations,
		"last_sweep_at":     m.LastSweepAt,
		"last_sweep_length": m.LastSweepLength.String(),
	}
}

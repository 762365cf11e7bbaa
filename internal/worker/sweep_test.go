package worker_test

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/geonotify/geonotify/internal/notification"
	"github.com/geonotify/geonotify/internal/subject"
	"github.com/geonotify/geonotify/internal/tracking"
	"github.com/geonotify/geonotify/internal/worker"
)

type fakeEvaluator struct {
	mu         sync.Mutex
	candidates []string
	listErr    error
	fail       map[string]error
	gone       map[string]bool
	evaluated  []tracking.Sample
	swept      []string
}

func (f *fakeEvaluator) SweepCandidates(context.Context) ([]string, error) {
	return f.candidates, f.listErr
}

func (f *fakeEvaluator) Sweep(_ context.Context, subjectID string) (*tracking.Result, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.swept = append(f.swept, subjectID)
	if err, ok := f.fail[subjectID]; ok {
		return nil, err
	}
	if f.gone[subjectID] {
		return nil, nil
	}
	return &tracking.Result{
		SubjectID: subjectID,
		Events:    []*notification.Event{{Kind: notification.KindEscalation, SubjectID: subjectID}},
	}, nil
}

func (f *fakeEvaluator) Swept() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.swept...)
}

func (f *fakeEvaluator) EvaluateWithRetry(_ context.Context, s tracking.Sample) (*tracking.Result, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.evaluated = append(f.evaluated, s)
	if err, ok := f.fail[s.SubjectID]; ok {
		return nil, err
	}
	return &tracking.Result{
		SubjectID: s.SubjectID,
		Events:    []*notification.Event{{Kind: notification.KindEscalation, SubjectID: s.SubjectID}},
	}, nil
}

func (f *fakeEvaluator) Evaluated() []tracking.Sample {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]tracking.Sample(nil), f.evaluated...)
}

func TestDefaultSweepConfig(t *testing.T) {
	cfg := worker.DefaultSweepConfig()

	assert.Equal(t, 2*time.Minute, cfg.Interval)
	assert.Equal(t, 4, cfg.Concurrency)
	assert.Equal(t, 30*time.Second, cfg.Timeout)
}

func TestSweepJob_Run(t *testing.T) {
	var candidates []string
	for i := 0; i < 10; i++ {
		candidates = append(candidates, fmt.Sprintf("s%d", i))
	}
	eval := &fakeEvaluator{
		candidates: candidates,
		fail:       map[string]error{"s3": errors.New("db unavailable")},
		gone:       map[string]bool{"s7": true},
	}

	job := worker.NewSweepJob(worker.SweepJobConfig{
		Config:    worker.SweepConfig{Concurrency: 3, Timeout: time.Second},
		Evaluator: eval,
		Logger:    zerolog.Nop(),
	})

	result := job.Run(context.Background())

	assert.Equal(t, 10, result.Candidates)
	assert.Equal(t, 8, result.Evaluated)
	assert.Equal(t, 1, result.Skipped)
	assert.Equal(t, 1, result.Failed)
	assert.Equal(t, 8, result.Escalations)
	require.Len(t, result.Errors, 1)
	assert.Equal(t, "s3", result.Errors[0].SubjectID)
	assert.Len(t, eval.Swept(), 10)
	assert.Empty(t, eval.Evaluated(), "sweeps never replay a listed location")
}

func TestSweepJob_Run_NoCandidates(t *testing.T) {
	job := worker.NewSweepJob(worker.SweepJobConfig{
		Evaluator: &fakeEvaluator{},
		Logger:    zerolog.Nop(),
	})

	result := job.Run(context.Background())
	assert.Zero(t, result.Candidates)
	assert.Zero(t, result.Failed)
}

func TestSweepJob_Run_ListFailure(t *testing.T) {
	job := worker.NewSweepJob(worker.SweepJobConfig{
		Evaluator: &fakeEvaluator{listErr: errors.New("catalog unavailable")},
		Logger:    zerolog.Nop(),
	})

	result := job.Run(context.Background())
	assert.Equal(t, 1, result.Failed)
	require.Len(t, result.Errors, 1)
	assert.Empty(t, result.Errors[0].SubjectID)
}

func TestSweepJob_Run_ContextCancellation(t *testing.T) {
	candidates := make([]string, 50)
	for i := range candidates {
		candidates[i] = fmt.Sprintf("s%d", i)
	}
	eval := &fakeEvaluator{candidates: candidates}

	job := worker.NewSweepJob(worker.SweepJobConfig{
		Config:    worker.SweepConfig{Concurrency: 2},
		Evaluator: eval,
		Logger:    zerolog.Nop(),
	})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	result := job.Run(ctx)
	assert.Equal(t, 50, result.Evaluated+result.Failed)
	assert.Empty(t, eval.Swept())
}

func TestSweepJob_Metrics(t *testing.T) {
	job := worker.NewSweepJob(worker.SweepJobConfig{
		Evaluator: &fakeEvaluator{candidates: []string{"s1"}},
		Logger:    zerolog.Nop(),
	})

	_ = job.Run(context.Background())
	_ = job.Run(context.Background())

	metrics := job.GetMetrics()
	assert.Equal(t, int64(2), metrics.TotalSweeps)
	assert.Equal(t, int64(2), metrics.Evaluated)
	assert.Equal(t, int64(2), metrics.Escalations)
	assert.NotZero(t, metrics.LastSweepAt)

	snapshot := job.MetricsSnapshot()
	assert.Contains(t, snapshot, "total_sweeps")
	assert.Contains(t, snapshot, "escalations")
	assert.Contains(t, snapshot, "skipped")
	assert.Contains(t, snapshot, "last_sweep_length")
}

func TestSweepJob_Start_Paused(t *testing.T) {
	eval := &fakeEvaluator{candidates: []string{"s1"}}
	var paused atomic.Bool
	paused.Store(true)

	job := worker.NewSweepJob(worker.SweepJobConfig{
		Config:    worker.SweepConfig{Interval: 5 * time.Millisecond},
		Evaluator: eval,
		Logger:    zerolog.Nop(),
		Paused:    func(context.Context) bool { return paused.Load() },
	})

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		job.Start(ctx)
		close(done)
	}()

	time.Sleep(30 * time.Millisecond)
	assert.Empty(t, eval.Swept())
	assert.Zero(t, job.GetMetrics().TotalSweeps)

	paused.Store(false)
	require.Eventually(t, func() bool { return len(eval.Swept()) > 0 }, time.Second, 5*time.Millisecond)

	cancel()
	<-done
}

func TestProcessor_Process(t *testing.T) {
	tests := []struct {
		name   string
		data   string
		fail   error
		poison bool
		retry  bool
	}{
		{
			name: "location sample",
			data: `{"job_type":"location_sample","subject_id":"s1","lat":10.005,"lng":20.005}`,
		},
		{
			name: "job type defaults to location sample",
			data: `{"subject_id":"s1","lat":10.005,"lng":20.005}`,
		},
		{
			name:   "malformed json",
			data:   `{"subject_id":`,
			poison: true,
		},
		{
			name:   "unknown job",
			data:   `{"job_type":"provider_refresh"}`,
			poison: true,
		},
		{
			name:   "invalid input is dropped",
			data:   `{"subject_id":"s1","lat":91}`,
			fail:   &tracking.InputError{Field: "lat", Value: 91.0, Reason: "out of range"},
			poison: true,
		},
		{
			name:   "unknown subject is dropped",
			data:   `{"subject_id":"ghost"}`,
			fail:   fmt.Errorf("load subject: %w", subject.ErrSubjectNotFound),
			poison: true,
		},
		{
			name:   "out of order sample is dropped",
			data:   `{"subject_id":"s1","lat":10,"lng":20,"timestamp":"2026-03-14T08:00:00Z"}`,
			fail:   fmt.Errorf("%w: older", tracking.ErrStaleSample),
			poison: true,
		},
		{
			name:  "conflicts are redelivered",
			data:  `{"subject_id":"s1"}`,
			fail:  tracking.ErrStoreConflict,
			retry: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			eval := &fakeEvaluator{fail: map[string]error{}}
			if tt.fail != nil {
				eval.fail["s1"] = tt.fail
				eval.fail["ghost"] = tt.fail
			}
			p := worker.NewProcessor(eval, nil, zerolog.Nop())

			err := p.Process(context.Background(), []byte(tt.data))
			switch {
			case tt.poison:
				assert.ErrorIs(t, err, worker.ErrPoisonMessage)
			case tt.retry:
				require.Error(t, err)
				assert.NotErrorIs(t, err, worker.ErrPoisonMessage)
			default:
				require.NoError(t, err)
				require.Len(t, eval.Evaluated(), 1)
				assert.Equal(t, "s1", eval.Evaluated()[0].SubjectID)
				assert.Equal(t, 10.005, eval.Evaluated()[0].Lat)
			}
		})
	}
}

func TestProcessor_Sweep(t *testing.T) {
	eval := &fakeEvaluator{candidates: []string{"s1", "s2"}}
	sweep := worker.NewSweepJob(worker.SweepJobConfig{Evaluator: eval, Logger: zerolog.Nop()})
	p := worker.NewProcessor(eval, sweep, zerolog.Nop())

	require.NoError(t, p.Process(context.Background(), []byte(`{"job_type":"escalation_sweep"}`)))
	assert.ElementsMatch(t, []string{"s1", "s2"}, eval.Swept())

	withoutSweep := worker.NewProcessor(eval, nil, zerolog.Nop())
	err := withoutSweep.Process(context.Background(), []byte(`{"job_type":"escalation_sweep"}`))
	assert.ErrorIs(t, err, worker.ErrPoisonMessage)
}

package featureflags

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

// ErrUnknownFlag is returned when setting a key that is not a declared switch.
var ErrUnknownFlag = errors.New("unknown feature flag")

// ServiceConfig holds configuration for the feature flag service.
type ServiceConfig struct {
	Repository Repository
	Logger     zerolog.Logger

	// CacheTTL bounds how stale a switch read can be on other instances.
	// Default: 30s
	CacheTTL time.Duration
}

// Service evaluates switches from a cached snapshot of the repository,
// falling back to the last snapshot (or the defaults) when the repository
// is unreachable. A nil *Service reports every switch as off.
type Service struct {
	repo     Repository
	logger   zerolog.Logger
	cacheTTL time.Duration
	now      func() time.Time

	mu          sync.RWMutex
	snapshot    map[string]*Flag
	cacheExpiry time.Time
}

// NewService creates a new feature flag service.
func NewService(cfg ServiceConfig) *Service {
	cacheTTL := cfg.CacheTTL
	if cacheTTL == 0 {
		cacheTTL = 30 * time.Second
	}
	return &Service{
		repo:     cfg.Repository,
		logger:   cfg.Logger,
		cacheTTL: cacheTTL,
		now:      time.Now,
		snapshot: DefaultFlags(),
	}
}

// GetFlag returns the current value of key, or nil for an undeclared key.
func (s *Service) GetFlag(ctx context.Context, key string) *Flag {
	if s == nil {
		return DefaultFlags()[key]
	}
	return s.current(ctx)[key]
}

// GetAllFlags returns every switch sorted by key.
func (s *Service) GetAllFlags(ctx context.Context) []Flag {
	flags := DefaultFlags()
	if s != nil {
		flags = s.current(ctx)
	}

	out := make([]Flag, 0, len(flags))
	for _, f := range flags {
		out = append(out, *f)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Key < out[j].Key })
	return out
}

// SetFlags stores the updates atomically and refreshes this instance's
// snapshot. Other instances pick the change up within CacheTTL.
func (s *Service) SetFlags(ctx context.Context, updates []*Flag, reason string) error {
	for _, f := range updates {
		if !Known(f.Key) {
			return fmt.Errorf("%w: %s", ErrUnknownFlag, f.Key)
		}
	}

	if err := s.repo.SetFlags(ctx, updates); err != nil {
		return err
	}

	for _, f := range updates {
		s.logger.Info().
			Str("flag", f.Key).
			Interface("value", f.Value).
			Str("reason", reason).
			Msg("feature flag updated")
	}

	s.InvalidateCache()
	return nil
}

// InvalidateCache forces a refresh on the next read.
func (s *Service) InvalidateCache() {
	s.mu.Lock()
	s.cacheExpiry = time.Time{}
	s.mu.Unlock()
}

// IsEnabled reports whether the switch key is on.
func (s *Service) IsEnabled(ctx context.Context, key string) bool {
	return s.GetFlag(ctx, key).BoolValue(false)
}

// Active returns the keys of every switch that is on, sorted. The ops
// status endpoint reports these as degradations.
func (s *Service) Active(ctx context.Context) []string {
	var keys []string
	for _, f := range s.GetAllFlags(ctx) {
		if f.BoolValue(false) {
			keys = append(keys, f.Key)
		}
	}
	return keys
}

func (s *Service) current(ctx context.Context) map[string]*Flag {
	s.mu.RLock()
	if s.now().Before(s.cacheExpiry) {
		snap := s.snapshot
		s.mu.RUnlock()
		return snap
	}
	s.mu.RUnlock()

	stored, err := s.repo.GetAllFlags(ctx)

	s.mu.Lock()
	defer s.mu.Unlock()
	if err != nil {
		s.logger.Warn().Err(err).Msg("failed to load feature flags, keeping previous values")
		// Retry on the next read rather than hammering a failing store.
		s.cacheExpiry = s.now().Add(s.cacheTTL / 2)
		return s.snapshot
	}

	snap := DefaultFlags()
	for k, v := range stored {
		if _, ok := snap[k]; ok {
			snap[k] = v
		}
	}
	s.snapshot = snap
	s.cacheExpiry = s.now().Add(s.cacheTTL)
	return snap
}

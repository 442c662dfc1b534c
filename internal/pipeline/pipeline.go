package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/jonboulle/clockwork"

	"github.com/couchcryptid/checkpoint-status-service/internal/domain"
	"github.com/couchcryptid/checkpoint-status-service/internal/observability"
)

// Mode selects how a refresh cycle reacts to failure.
type Mode string

const (
	// ModeForeground shows a loading state and falls back to the offline
	// dataset when the store is unreachable.
	ModeForeground Mode = "foreground"
	// ModeBackground is silent; failure keeps the current view.
	ModeBackground Mode = "background"
	// ModeReconcile follows a mutation; failure restores the last published
	// snapshot, discarding any speculative patch.
	ModeReconcile Mode = "reconcile"
)

// Sink receives every live snapshot after it is published.
type Sink interface {
	Name() string
	PublishSnapshot(ctx context.Context, snap domain.Snapshot) error
}

// Fallback provides the offline snapshot used when a foreground load fails.
type Fallback interface {
	Snapshot(publishedAt time.Time) domain.Snapshot
}

// Pinger reports whether a dependency is reachable. postgres.Store implements it.
type Pinger interface {
	Ping(ctx context.Context) error
}

// SchedulerOption configures a Scheduler.
type SchedulerOption func(*Scheduler)

// WithClock sets the clock driving the refresh ticker and publish times.
func WithClock(c clockwork.Clock) SchedulerOption {
	return func(s *Scheduler) { s.clock = c }
}

// WithStorePing makes readiness also require the report store to answer p.
func WithStorePing(p Pinger) SchedulerOption {
	return func(s *Scheduler) { s.pinger = p }
}

// WithSinks adds snapshot sinks.
func WithSinks(sinks ...Sink) SchedulerOption {
	return func(s *Scheduler) { s.sinks = append(s.sinks, sinks...) }
}

// Scheduler runs the build pipeline periodically and on demand, and owns the
// published snapshot. At most one cycle is in flight at a time.
type Scheduler struct {
	builder  *Builder
	fallback Fallback
	sinks    []Sink
	pinger   Pinger
	interval time.Duration
	clock    clockwork.Clock
	logger   *slog.Logger
	metrics  *observability.Metrics

	current atomic.Pointer[domain.Snapshot]
	// base is the last snapshot published by a cycle, without speculative patches.
	base   atomic.Pointer[domain.Snapshot]
	cycles atomic.Uint64
	ready  atomic.Bool

	mu       sync.Mutex
	busy     bool
	followUp bool
	wg       sync.WaitGroup
}

// NewScheduler creates a Scheduler. The initial snapshot is empty and loading.
func NewScheduler(b *Builder, fallback Fallback, interval time.Duration, logger *slog.Logger, metrics *observability.Metrics, opts ...SchedulerOption) *Scheduler {
	s := &Scheduler{
		builder:  b,
		fallback: fallback,
		interval: interval,
		clock:    clockwork.NewRealClock(),
		logger:   logger,
		metrics:  metrics,
	}
	for _, opt := range opts {
		opt(s)
	}
	initial := &domain.Snapshot{Loading: true}
	s.current.Store(initial)
	s.base.Store(initial)
	return s
}

// Current returns the published snapshot. Callers must not modify its slices.
func (s *Scheduler) Current() domain.Snapshot {
	return *s.current.Load()
}

// CheckReadiness returns nil once a snapshot has been published and, when a
// store ping is configured, the store answers it.
func (s *Scheduler) CheckReadiness(ctx context.Context) error {
	if !s.ready.Load() {
		return errors.New("no snapshot has been published yet")
	}
	if s.pinger != nil {
		if err := s.pinger.Ping(ctx); err != nil {
			return fmt.Errorf("report store unreachable: %w", err)
		}
	}
	return nil
}

// Patch applies fn to the current snapshot and swaps in the result. It
// reports false, leaving the snapshot unchanged, when fn does.
func (s *Scheduler) Patch(fn func(domain.Snapshot) (domain.Snapshot, bool)) bool {
	for {
		old := s.current.Load()
		next, ok := fn(*old)
		if !ok {
			return false
		}
		if s.current.CompareAndSwap(old, &next) {
			return true
		}
	}
}

// Run performs a foreground load and then a background refresh every
// interval until ctx is cancelled. Ticks that find a cycle in flight are
// skipped.
func (s *Scheduler) Run(ctx context.Context) error {
	s.logger.Info("refresh scheduler started", "interval", s.interval)
	s.metrics.SchedulerRunning.Set(1)
	defer s.metrics.SchedulerRunning.Set(0)

	s.Refresh(ctx, ModeForeground)

	ticker := s.clock.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			s.logger.Info("refresh scheduler stopping", "reason", ctx.Err())
			s.wg.Wait()
			return nil
		case <-ticker.Chan():
			s.wg.Add(1)
			go func() {
				defer s.wg.Done()
				s.Refresh(ctx, ModeBackground)
			}()
		}
	}
}

// Refresh runs one cycle in the given mode unless a cycle is already in
// flight, in which case it returns false without waiting.
func (s *Scheduler) Refresh(ctx context.Context, mode Mode) bool {
	return s.run(ctx, mode, false)
}

// Reconcile replaces speculative state with authoritative state. If a cycle
// is in flight, a single reconcile pass is queued behind it instead.
func (s *Scheduler) Reconcile(ctx context.Context) {
	s.run(ctx, ModeReconcile, true)
}

func (s *Scheduler) run(ctx context.Context, mode Mode, coalesce bool) bool {
	s.mu.Lock()
	if s.busy {
		if coalesce {
			s.followUp = true
		}
		s.mu.Unlock()
		if !coalesce {
			s.metrics.RefreshSkipped.Inc()
			s.logger.Debug("refresh skipped, cycle in flight", "mode", mode)
		}
		return false
	}
	s.busy = true
	s.mu.Unlock()

	for {
		s.cycle(ctx, mode)

		s.mu.Lock()
		if !s.followUp {
			s.busy = false
			s.mu.Unlock()
			return true
		}
		s.followUp = false
		s.mu.Unlock()
		mode = ModeReconcile
	}
}

func (s *Scheduler) cycle(ctx context.Context, mode Mode) {
	start := s.clock.Now()
	defer func() {
		s.metrics.RefreshDuration.Observe(s.clock.Since(start).Seconds())
	}()

	if mode == ModeForeground {
		s.Patch(func(snap domain.Snapshot) (domain.Snapshot, bool) {
			snap.Loading = true
			return snap, true
		})
	}

	build, err := s.builder.Build(ctx)
	switch {
	case err != nil:
		s.fail(mode, err)
	case len(build.Checkpoints) == 0:
		s.logger.Warn("store returned no checkpoints, keeping previous view", "mode", mode)
		s.keep(mode, "empty")
	default:
		s.publish(ctx, mode, build)
	}
}

func (s *Scheduler) fail(mode Mode, err error) {
	if mode == ModeForeground {
		s.logger.Warn("foreground load failed, publishing offline data", "error", err)
		snap := s.fallback.Snapshot(s.clock.Now())
		snap.Cycle = s.cycles.Add(1)
		s.store(&snap)
		s.metrics.RefreshCycles.WithLabelValues(string(mode), "offline").Inc()
		return
	}
	s.logger.Warn("refresh failed, keeping previous view", "mode", mode, "error", err)
	s.keep(mode, "kept")
}

// keep leaves the published view in place. Background cycles do not touch
// the current snapshot at all; the other modes drop loading and speculative
// state by restoring the base snapshot.
func (s *Scheduler) keep(mode Mode, outcome string) {
	if mode != ModeBackground {
		base := *s.base.Load()
		base.Loading = false
		s.current.Store(&base)
	}
	s.metrics.RefreshCycles.WithLabelValues(string(mode), outcome).Inc()
}

func (s *Scheduler) publish(ctx context.Context, mode Mode, build Build) {
	blacklist := build.Blacklist
	if build.BlacklistErr != nil {
		s.logger.Warn("blacklist refresh failed, keeping previous list", "error", build.BlacklistErr)
		blacklist = s.base.Load().Blacklist
	}

	snap := &domain.Snapshot{
		Checkpoints: build.Checkpoints,
		Blacklist:   blacklist,
		PublishedAt: s.clock.Now(),
		Cycle:       s.cycles.Add(1),
	}
	s.store(snap)
	s.metrics.RefreshCycles.WithLabelValues(string(mode), "published").Inc()
	s.logger.Debug("snapshot published", "mode", mode, "cycle", snap.Cycle, "checkpoints", len(snap.Checkpoints))

	for _, sink := range s.sinks {
		if err := sink.PublishSnapshot(ctx, *snap); err != nil {
			s.logger.Warn("snapshot sink failed", "sink", sink.Name(), "cycle", snap.Cycle, "error", err)
			s.metrics.SinkFailures.WithLabelValues(sink.Name()).Inc()
		}
	}
}

func (s *Scheduler) store(snap *domain.Snapshot) {
	s.base.Store(snap)
	s.current.Store(snap)
	s.ready.Store(true)
	s.metrics.PublishedCheckpoints.Set(float64(len(snap.Checkpoints)))
}

// Package memstore implements domain.ReportStore in memory. It backs demo
// mode and tests, and aggregates reports the same way the Postgres store does.
package memstore

import (
	"context"
	"errors"
	"fmt"
	"math"
	"slices"
	"strconv"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"

	"github.com/couchcryptid/checkpoint-status-service/internal/domain"
	"github.com/couchcryptid/checkpoint-status-service/internal/offline"
)

// Op names a store operation for failure injection.
type Op string

const (
	OpListCheckpoints Op = "list-checkpoints"
	OpInsertReport    Op = "insert-report"
	OpInsertVote      Op = "insert-vote"
	OpListBlacklist   Op = "list-blacklist"
	OpInsertItem      Op = "insert-item"
)

type report struct {
	severity domain.Severity
	wait     int
	at       time.Time
}

// Store is an in-memory ReportStore safe for concurrent use.
type Store struct {
	clock  clockwork.Clock
	window time.Duration

	mu          sync.RWMutex
	checkpoints []domain.Checkpoint
	reports     map[string][]report
	blacklist   []domain.BlacklistItem
	nextItemID  int
	failures    map[Op]error
}

// Compile-time check that Store implements domain.ReportStore.
var _ domain.ReportStore = (*Store)(nil)

// New creates an empty store that aggregates reports newer than window.
func New(clock clockwork.Clock, window time.Duration) *Store {
	return &Store{
		clock:      clock,
		window:     window,
		reports:    make(map[string][]report),
		nextItemID: 1,
		failures:   make(map[Op]error),
	}
}

// NewFromDataset creates a store seeded with the offline dataset's
// checkpoints, seed reports and blacklist.
func NewFromDataset(ds offline.Dataset, clock clockwork.Clock, window time.Duration) *Store {
	s := New(clock, window)
	now := clock.Now()
	for _, cp := range ds.Checkpoints {
		s.AddCheckpoint(domain.Checkpoint{
			ID:         cp.ID,
			Name:       cp.Name,
			Location:   cp.Location,
			Coordinate: cp.Coordinate,
		})
		for _, r := range cp.SeedReports {
			s.reports[cp.ID] = append(s.reports[cp.ID], report{severity: r.Severity, wait: r.WaitMinutes, at: now.Add(-r.Age)})
		}
	}
	for _, it := range ds.Blacklist {
		s.AddBlacklistItem(it)
	}
	return s
}

// AddCheckpoint registers reference data for a checkpoint.
func (s *Store) AddCheckpoint(cp domain.Checkpoint) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.checkpoints = append(s.checkpoints, cp)
}

// AddBlacklistItem stores an item as-is, keeping generated ids ahead of it.
func (s *Store) AddBlacklistItem(it domain.BlacklistItem) {
	s.mu.Lock()
	defer s.mu.Unlock()
	it.Rank = 0
	s.blacklist = append(s.blacklist, it)
	if n, err := strconv.Atoi(it.ID); err == nil && n >= s.nextItemID {
		s.nextItemID = n + 1
	}
}

// SetFailure makes op fail with err until cleared with a nil err.
func (s *Store) SetFailure(op Op, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err == nil {
		delete(s.failures, op)
		return
	}
	s.failures[op] = err
}

// ListCheckpointsWithAggregates implements domain.ReportStore.
func (s *Store) ListCheckpointsWithAggregates(ctx context.Context) ([]domain.CheckpointRecord, error) {
	if err := s.readErr(ctx, OpListCheckpoints); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()

	since := s.clock.Now().Add(-s.window)
	out := make([]domain.CheckpointRecord, 0, len(s.checkpoints))
	for _, cp := range s.checkpoints {
		out = append(out, domain.CheckpointRecord{
			Checkpoint: cp,
			Aggregate:  aggregate(cp.ID, s.reports[cp.ID], since),
		})
	}
	return out, nil
}

// InsertReport implements domain.ReportStore.
func (s *Store) InsertReport(ctx context.Context, r domain.Report) error {
	if err := s.writeErr(ctx, OpInsertReport); err != nil {
		return err
	}
	if err := r.Validate(); err != nil {
		return fmt.Errorf("%w: %w", domain.ErrWriteRejected, err)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if !slices.ContainsFunc(s.checkpoints, func(cp domain.Checkpoint) bool { return cp.ID == r.CheckpointID }) {
		return fmt.Errorf("checkpoint %s: %w", r.CheckpointID, domain.ErrNotFound)
	}
	s.reports[r.CheckpointID] = append(s.reports[r.CheckpointID], report{
		severity: r.Severity,
		wait:     r.WaitMinutes,
		at:       s.clock.Now(),
	})
	return nil
}

// InsertVote implements domain.ReportStore.
func (s *Store) InsertVote(ctx context.Context, itemID string) error {
	if err := s.writeErr(ctx, OpInsertVote); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	i := slices.IndexFunc(s.blacklist, func(it domain.BlacklistItem) bool { return it.ID == itemID })
	if i < 0 {
		return fmt.Errorf("blacklist item %s: %w", itemID, domain.ErrNotFound)
	}
	s.blacklist[i].ConfiscatedToday++
	return nil
}

// ListBlacklist implements domain.ReportStore.
func (s *Store) ListBlacklist(ctx context.Context) ([]domain.BlacklistItem, error) {
	if err := s.readErr(ctx, OpListBlacklist); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	return slices.Clone(s.blacklist), nil
}

// InsertBlacklistItem implements domain.ReportStore.
func (s *Store) InsertBlacklistItem(ctx context.Context, n domain.NewBlacklistItem) (domain.BlacklistItem, error) {
	if err := s.writeErr(ctx, OpInsertItem); err != nil {
		return domain.BlacklistItem{}, err
	}
	n, err := n.Normalize()
	if err != nil {
		return domain.BlacklistItem{}, fmt.Errorf("%w: %w", domain.ErrWriteRejected, err)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	it := domain.BlacklistItem{
		ID:               strconv.Itoa(s.nextItemID),
		Name:             n.Name,
		Category:         n.Category,
		Reason:           n.Reason,
		ConfiscatedToday: 1,
	}
	s.nextItemID++
	s.blacklist = append(s.blacklist, it)
	return it, nil
}

func (s *Store) readErr(ctx context.Context, op Op) error {
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("%w: %w", domain.ErrStoreUnavailable, err)
	}
	if err := s.failure(op); err != nil {
		return fmt.Errorf("%w: %w", domain.ErrStoreUnavailable, err)
	}
	return nil
}

func (s *Store) writeErr(ctx context.Context, op Op) error {
	if err := ctx.Err(); err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			return fmt.Errorf("%w: %w", domain.ErrWriteTimeout, err)
		}
		return fmt.Errorf("%w: %w", domain.ErrStoreUnavailable, err)
	}
	return s.failure(op)
}

func (s *Store) failure(op Op) error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.failures[op]
}

// aggregate reduces the reports newer than since. The most frequent severity
// wins, ties go to the more severe color.
func aggregate(checkpointID string, reports []report, since time.Time) domain.ReportAggregate {
	agg := domain.ReportAggregate{CheckpointID: checkpointID}
	counts := make(map[domain.Severity]int, 3)
	total := 0
	for _, r := range reports {
		if !r.at.After(since) {
			continue
		}
		counts[r.severity]++
		total += r.wait
		agg.ReportCount++
		if r.at.After(agg.LastReportAt) {
			agg.LastReportAt = r.at
		}
	}
	if agg.ReportCount == 0 {
		return agg
	}
	best := 0
	for _, sev := range []domain.Severity{domain.SeverityRed, domain.SeverityYellow, domain.SeverityGreen} {
		if counts[sev] > best {
			best = counts[sev]
			agg.ReportedSeverity = sev
		}
	}
	agg.AvgWaitMinutes = int(math.Round(float64(total) / float64(agg.ReportCount)))
	return agg
}

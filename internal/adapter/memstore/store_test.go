package memstore

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/couchcryptid/checkpoint-status-service/internal/domain"
	"github.com/couchcryptid/checkpoint-status-service/internal/offline"
)

var t0 = time.Date(2026, time.March, 1, 8, 0, 0, 0, time.UTC)

func newTestStore(t *testing.T) (*Store, *clockwork.FakeClock) {
	t.Helper()
	fc := clockwork.NewFakeClockAt(t0)
	s := New(fc, time.Hour)
	s.AddCheckpoint(domain.Checkpoint{ID: "a", Name: "A"})
	s.AddCheckpoint(domain.Checkpoint{ID: "b", Name: "B"})
	return s, fc
}

func TestAggregate_ModeAverageAndWindow(t *testing.T) {
	s, fc := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, s.InsertReport(ctx, domain.Report{CheckpointID: "a", Severity: domain.SeverityGreen, WaitMinutes: 90}))
	fc.Advance(61 * time.Minute) // first report leaves the window
	require.NoError(t, s.InsertReport(ctx, domain.Report{CheckpointID: "a", Severity: domain.SeverityYellow, WaitMinutes: 10}))
	require.NoError(t, s.InsertReport(ctx, domain.Report{CheckpointID: "a", Severity: domain.SeverityYellow, WaitMinutes: 15}))
	fc.Advance(time.Minute)
	require.NoError(t, s.InsertReport(ctx, domain.Report{CheckpointID: "a", Severity: domain.SeverityRed, WaitMinutes: 20}))

	records, err := s.ListCheckpointsWithAggregates(ctx)
	require.NoError(t, err)
	require.Len(t, records, 2)

	a := records[0].Aggregate
	assert.Equal(t, domain.SeverityYellow, a.ReportedSeverity)
	assert.Equal(t, 15, a.AvgWaitMinutes)
	assert.Equal(t, 3, a.ReportCount)
	assert.Equal(t, fc.Now(), a.LastReportAt)

	b := records[1].Aggregate
	assert.Equal(t, "b", b.CheckpointID)
	assert.Zero(t, b.ReportCount)
	assert.Empty(t, b.ReportedSeverity)
	assert.True(t, b.LastReportAt.IsZero())
}

func TestAggregate_TieGoesToMoreSevere(t *testing.T) {
	agg := aggregate("a", []report{
		{severity: domain.SeverityGreen, wait: 1, at: t0},
		{severity: domain.SeverityRed, wait: 2, at: t0},
		{severity: domain.SeverityYellow, wait: 2, at: t0},
	}, t0.Add(-time.Minute))

	assert.Equal(t, domain.SeverityRed, agg.ReportedSeverity)
	assert.Equal(t, 2, agg.AvgWaitMinutes) // 5/3 rounds to 2
}

func TestInsertReport_UnknownCheckpoint(t *testing.T) {
	s, _ := newTestStore(t)
	err := s.InsertReport(context.Background(), domain.Report{CheckpointID: "zzz", Severity: domain.SeverityRed})
	require.ErrorIs(t, err, domain.ErrNotFound)
	assert.Equal(t, domain.ReasonRejected, domain.ClassifyWriteError(err))
}

func TestVoteAndBlacklist(t *testing.T) {
	s, _ := newTestStore(t)
	ctx := context.Background()
	s.AddBlacklistItem(domain.BlacklistItem{ID: "7", Name: "drone", ConfiscatedToday: 2})

	require.NoError(t, s.InsertVote(ctx, "7"))
	require.ErrorIs(t, s.InsertVote(ctx, "missing"), domain.ErrNotFound)

	created, err := s.InsertBlacklistItem(ctx, domain.NewBlacklistItem{Name: "  perfume  "})
	require.NoError(t, err)
	assert.Equal(t, "8", created.ID)
	assert.Equal(t, "perfume", created.Name)
	assert.Equal(t, 1, created.ConfiscatedToday)

	items, err := s.ListBlacklist(ctx)
	require.NoError(t, err)
	require.Len(t, items, 2)
	assert.Equal(t, 3, items[0].ConfiscatedToday)

	_, err = s.InsertBlacklistItem(ctx, domain.NewBlacklistItem{Name: " "})
	require.ErrorIs(t, err, domain.ErrWriteRejected)
}

func TestFailureInjection(t *testing.T) {
	s, _ := newTestStore(t)
	ctx := context.Background()

	s.SetFailure(OpListCheckpoints, errors.New("connection refused"))
	_, err := s.ListCheckpointsWithAggregates(ctx)
	require.ErrorIs(t, err, domain.ErrStoreUnavailable)

	s.SetFailure(OpInsertVote, domain.ErrWriteTimeout)
	assert.Equal(t, domain.ReasonTimeout, domain.ClassifyWriteError(s.InsertVote(ctx, "x")))

	s.SetFailure(OpListCheckpoints, nil)
	_, err = s.ListCheckpointsWithAggregates(ctx)
	require.NoError(t, err)
}

func TestCancelledContext(t *testing.T) {
	s, _ := newTestStore(t)
	ctx, cancel := context.WithTimeout(context.Background(), -time.Second)
	defer cancel()

	err := s.InsertReport(ctx, domain.Report{CheckpointID: "a", Severity: domain.SeverityRed})
	require.ErrorIs(t, err, domain.ErrWriteTimeout)
	_, err = s.ListBlacklist(ctx)
	require.ErrorIs(t, err, domain.ErrStoreUnavailable)
}

func TestNewFromDataset(t *testing.T) {
	fc := clockwork.NewFakeClockAt(t0)
	s := NewFromDataset(offline.MustLoad(), fc, time.Hour)

	records, err := s.ListCheckpointsWithAggregates(context.Background())
	require.NoError(t, err)
	require.Len(t, records, 3)
	meilan := records[0]
	assert.NotNil(t, meilan.Checkpoint.Coordinate)
	assert.Equal(t, domain.SeverityRed, meilan.Aggregate.ReportedSeverity)
	assert.Equal(t, 45, meilan.Aggregate.AvgWaitMinutes)
	assert.Equal(t, t0.Add(-time.Minute), meilan.Aggregate.LastReportAt)

	created, err := s.InsertBlacklistItem(context.Background(), domain.NewBlacklistItem{Name: "perfume"})
	require.NoError(t, err)
	assert.Equal(t, "6", created.ID)
}

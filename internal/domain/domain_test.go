package domain

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseSeverity(t *testing.T) {
	for in, want := range map[string]Severity{
		"RED":     SeverityRed,
		"yellow":  SeverityYellow,
		" Green ": SeverityGreen,
	} {
		got, err := ParseSeverity(in)
		require.NoError(t, err, in)
		assert.Equal(t, want, got)
	}

	_, err := ParseSeverity("blue")
	require.ErrorIs(t, err, ErrInvalidReport)
}

func TestSeverityWeight(t *testing.T) {
	assert.Equal(t, 3, SeverityRed.Weight())
	assert.Equal(t, 2, SeverityYellow.Weight())
	assert.Equal(t, 1, SeverityGreen.Weight())
	assert.Equal(t, 0, Severity("").Weight())
}

func TestReportValidate(t *testing.T) {
	valid := Report{CheckpointID: "cp-1", Severity: SeverityRed, WaitMinutes: 45}
	require.NoError(t, valid.Validate())

	cases := map[string]Report{
		"missing checkpoint": {Severity: SeverityRed},
		"bad severity":       {CheckpointID: "cp-1", Severity: "BLUE"},
		"negative wait":      {CheckpointID: "cp-1", Severity: SeverityRed, WaitMinutes: -1},
		"wait too long":      {CheckpointID: "cp-1", Severity: SeverityRed, WaitMinutes: MaxWaitMinutes + 1},
	}
	for name, r := range cases {
		t.Run(name, func(t *testing.T) {
			assert.ErrorIs(t, r.Validate(), ErrInvalidReport)
		})
	}
}

func TestNewBlacklistItemNormalize(t *testing.T) {
	n, err := NewBlacklistItem{Name: "  Hair dryer  "}.Normalize()
	require.NoError(t, err)
	assert.Equal(t, "Hair dryer", n.Name)
	assert.Equal(t, defaultBlacklistCategory, n.Category)
	assert.Equal(t, defaultBlacklistReason, n.Reason)

	_, err = NewBlacklistItem{Name: "   "}.Normalize()
	assert.ErrorIs(t, err, ErrInvalidReport)
}

func TestFallbackSample(t *testing.T) {
	timeout := FallbackSample("cp-1", TrafficTimeout)
	assert.Equal(t, SeverityGreen, timeout.Severity)
	assert.Equal(t, TrafficTimeoutText, timeout.Description)

	failed := FallbackSample("cp-1", TrafficError)
	assert.Equal(t, TrafficUnavailableText, failed.Description)

	skipped := FallbackSample("cp-1", TrafficNoCoordinate)
	assert.Equal(t, SeverityGreen, skipped.Severity)
	assert.Empty(t, skipped.Description)
}

func TestClassifyWriteError(t *testing.T) {
	assert.Equal(t, ReasonTimeout, ClassifyWriteError(fmt.Errorf("insert: %w", ErrWriteTimeout)))
	assert.Equal(t, ReasonTimeout, ClassifyWriteError(context.DeadlineExceeded))
	assert.Equal(t, ReasonRejected, ClassifyWriteError(fmt.Errorf("insert: %w", ErrWriteRejected)))
	assert.Equal(t, ReasonRejected, ClassifyWriteError(ErrNotFound))
	assert.Equal(t, ReasonUnavailable, ClassifyWriteError(errors.New("connection refused")))
}

func TestPendingMutationTransitions(t *testing.T) {
	at := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)

	m := &PendingMutation{ID: "m-1", State: SettlementInFlight}
	require.NoError(t, m.Commit(at))
	assert.Equal(t, SettlementCommitted, m.State)
	assert.True(t, m.Settled())
	assert.ErrorIs(t, m.Fail(at, ErrWriteRejected), ErrInvalidTransition)

	f := &PendingMutation{ID: "m-2", State: SettlementInFlight}
	require.NoError(t, f.Fail(at, ErrWriteTimeout))
	assert.Equal(t, SettlementFailed, f.State)
	assert.Equal(t, ReasonTimeout, f.Reason)
	assert.ErrorIs(t, f.Commit(at), ErrInvalidTransition)
}

func TestSnapshotPatchCheckpoint(t *testing.T) {
	s := Snapshot{Checkpoints: []CheckpointView{
		{ID: "a", Status: SeverityRed, ReportCount: 3},
		{ID: "b", Status: SeverityGreen, ReportCount: 1},
	}}

	patched, ok := s.PatchCheckpoint("b", func(v *CheckpointView) {
		v.ReportCount++
		v.Status = SeverityRed
	})
	require.True(t, ok)

	b, _ := patched.Checkpoint("b")
	assert.Equal(t, 2, b.ReportCount)
	orig, _ := s.Checkpoint("b")
	assert.Equal(t, 1, orig.ReportCount, "original snapshot must stay untouched")

	_, ok = s.PatchCheckpoint("missing", func(*CheckpointView) {})
	assert.False(t, ok)
}

func TestSnapshotPatchBlacklistItemReranks(t *testing.T) {
	s := Snapshot{Blacklist: RankBlacklist([]BlacklistItem{
		{ID: "1", ConfiscatedToday: 10},
		{ID: "2", ConfiscatedToday: 10},
	})}

	patched, ok := s.PatchBlacklistItem("2", func(it *BlacklistItem) { it.ConfiscatedToday++ })
	require.True(t, ok)

	assert.Equal(t, "2", patched.Blacklist[0].ID)
	assert.Equal(t, 1, patched.Blacklist[0].Rank)
	assert.Equal(t, 11, patched.Blacklist[0].ConfiscatedToday)
	assert.Equal(t, "1", s.Blacklist[0].ID)
}

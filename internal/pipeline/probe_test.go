package pipeline_test

import (
	"context"
	"errors"
	"log/slog"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/couchcryptid/checkpoint-status-service/internal/domain"
	"github.com/couchcryptid/checkpoint-status-service/internal/observability"
	"github.com/couchcryptid/checkpoint-status-service/internal/pipeline"
)

func TestProber_OK(t *testing.T) {
	src := &mockSource{readings: map[float64]domain.TrafficReading{
		1: {Severity: domain.SeverityYellow, Description: "slow traffic"},
	}}
	metrics := observability.NewMetricsForTesting()
	p := pipeline.NewProber(src, time.Second, slog.Default(), metrics)

	got := p.Probe(context.Background(), "cp-1", coord(1, 1))

	assert.Equal(t, domain.TrafficSample{
		CheckpointID: "cp-1",
		Severity:     domain.SeverityYellow,
		Description:  "slow traffic",
		Outcome:      domain.TrafficOK,
	}, got)
	assert.InDelta(t, 1, testutil.ToFloat64(metrics.ProbeOutcomes.WithLabelValues("ok")), 0)
	assert.InDelta(t, 1, testutil.ToFloat64(metrics.TrafficEnabled), 0)
}

func TestProber_TimeoutCancelsLookup(t *testing.T) {
	src := &mockSource{delays: map[float64]time.Duration{1: 10 * time.Second}}
	metrics := observability.NewMetricsForTesting()
	p := pipeline.NewProber(src, 30*time.Millisecond, slog.Default(), metrics)

	start := time.Now()
	got := p.Probe(context.Background(), "cp-1", coord(1, 1))

	assert.Less(t, time.Since(start), 2*time.Second)
	assert.Equal(t, domain.TrafficTimeout, got.Outcome)
	assert.Equal(t, domain.SeverityGreen, got.Severity)
	assert.Equal(t, domain.TrafficTimeoutText, got.Description)
	assert.InDelta(t, 1, testutil.ToFloat64(metrics.ProbeOutcomes.WithLabelValues("timeout")), 0)
}

func TestProber_ErrorFallsBack(t *testing.T) {
	src := &mockSource{errs: map[float64]error{1: errors.New("status 503")}}
	p := pipeline.NewProber(src, time.Second, slog.Default(), observability.NewMetricsForTesting())

	got := p.Probe(context.Background(), "cp-1", coord(1, 1))

	assert.Equal(t, domain.FallbackSample("cp-1", domain.TrafficError), got)
	assert.Equal(t, domain.TrafficUnavailableText, got.Description)
}

func TestProber_MalformedSeverityFallsBack(t *testing.T) {
	src := &mockSource{readings: map[float64]domain.TrafficReading{
		1: {Severity: "PURPLE", Description: "??"},
	}}
	p := pipeline.NewProber(src, time.Second, slog.Default(), observability.NewMetricsForTesting())

	got := p.Probe(context.Background(), "cp-1", coord(1, 1))
	assert.Equal(t, domain.TrafficError, got.Outcome)
	assert.Equal(t, domain.SeverityGreen, got.Severity)
}

func TestProber_Skips(t *testing.T) {
	metrics := observability.NewMetricsForTesting()
	enabled := pipeline.NewProber(&mockSource{}, time.Second, slog.Default(), metrics)
	got := enabled.Probe(context.Background(), "cp-1", nil)
	assert.Equal(t, domain.FallbackSample("cp-1", domain.TrafficNoCoordinate), got)

	disabled := pipeline.NewProber(nil, time.Second, slog.Default(), metrics)
	got = disabled.Probe(context.Background(), "cp-2", coord(1, 1))
	assert.Equal(t, domain.FallbackSample("cp-2", domain.TrafficDisabled), got)
	assert.InDelta(t, 0, testutil.ToFloat64(metrics.TrafficEnabled), 0)
}

func TestEnricher_PreservesOrderWithSlowProbe(t *testing.T) {
	src := &mockSource{
		readings: map[float64]domain.TrafficReading{
			1: {Severity: domain.SeverityRed, Description: "congested"},
			3: {Severity: domain.SeverityYellow, Description: "slow traffic"},
			4: {Severity: domain.SeverityGreen, Description: "road clear"},
		},
		delays: map[float64]time.Duration{
			2: 10 * time.Second,
			3: 20 * time.Millisecond,
		},
	}
	p := pipeline.NewProber(src, 100*time.Millisecond, slog.Default(), observability.NewMetricsForTesting())
	e := pipeline.NewEnricher(p, 8)

	checkpoints := []domain.Checkpoint{
		{ID: "a", Coordinate: coord(1, 0)},
		{ID: "b", Coordinate: coord(2, 0)},
		{ID: "c", Coordinate: coord(3, 0)},
		{ID: "d", Coordinate: coord(4, 0)},
		{ID: "e"},
	}

	start := time.Now()
	got := e.Enrich(context.Background(), checkpoints)
	elapsed := time.Since(start)

	want := []domain.TrafficSample{
		{CheckpointID: "a", Severity: domain.SeverityRed, Description: "congested", Outcome: domain.TrafficOK},
		domain.FallbackSample("b", domain.TrafficTimeout),
		{CheckpointID: "c", Severity: domain.SeverityYellow, Description: "slow traffic", Outcome: domain.TrafficOK},
		{CheckpointID: "d", Severity: domain.SeverityGreen, Description: "road clear", Outcome: domain.TrafficOK},
		domain.FallbackSample("e", domain.TrafficNoCoordinate),
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Fatalf("samples mismatch (-want +got):\n%s", diff)
	}
	// Bounded by the slowest allowed probe, not the sum.
	assert.Less(t, elapsed, 2*time.Second)
}

func TestEnricher_Empty(t *testing.T) {
	e := pipeline.NewEnricher(pipeline.NewProber(nil, time.Second, slog.Default(), observability.NewMetricsForTesting()), 0)
	require.Empty(t, e.Enrich(context.Background(), nil))
}

func TestEnricher_UnboundedRunsWholeBatchInOneWindow(t *testing.T) {
	const n = 17
	src := &mockSource{delays: map[float64]time.Duration{}}
	checkpoints := make([]domain.Checkpoint, n)
	for i := range checkpoints {
		lat := float64(i + 1)
		src.delays[lat] = 10 * time.Second
		checkpoints[i] = domain.Checkpoint{ID: string(rune('a' + i)), Coordinate: coord(lat, 0)}
	}
	timeout := 200 * time.Millisecond
	p := pipeline.NewProber(src, timeout, slog.Default(), observability.NewMetricsForTesting())
	e := pipeline.NewEnricher(p, 0)

	start := time.Now()
	got := e.Enrich(context.Background(), checkpoints)
	elapsed := time.Since(start)

	require.Len(t, got, n)
	for i, s := range got {
		assert.Equal(t, checkpoints[i].ID, s.CheckpointID)
		assert.Equal(t, domain.TrafficTimeout, s.Outcome)
	}
	assert.Less(t, elapsed, 2*timeout, "enrichment took %s, more than one timeout window", elapsed)
}

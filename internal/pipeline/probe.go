package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/couchcryptid/checkpoint-status-service/internal/domain"
	"github.com/couchcryptid/checkpoint-status-service/internal/observability"
)

// Prober bounds a single traffic lookup with a timeout and maps every failure
// to a fallback sample.
type Prober struct {
	source  domain.TrafficSource
	timeout time.Duration
	logger  *slog.Logger
	metrics *observability.Metrics
}

// NewProber creates a Prober. Pass a nil source to disable traffic lookups.
func NewProber(source domain.TrafficSource, timeout time.Duration, logger *slog.Logger, metrics *observability.Metrics) *Prober {
	if source == nil {
		metrics.TrafficEnabled.Set(0)
	} else {
		metrics.TrafficEnabled.Set(1)
	}
	return &Prober{
		source:  source,
		timeout: timeout,
		logger:  logger,
		metrics: metrics,
	}
}

// Probe looks up congestion near at. It always returns a sample.
func (p *Prober) Probe(ctx context.Context, checkpointID string, at *domain.Coordinate) domain.TrafficSample {
	if at == nil {
		return p.record(domain.FallbackSample(checkpointID, domain.TrafficNoCoordinate))
	}
	if p.source == nil {
		return p.record(domain.FallbackSample(checkpointID, domain.TrafficDisabled))
	}

	ctx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()

	start := time.Now()
	reading, err := p.source.Congestion(ctx, *at)
	p.metrics.ProbeDuration.Observe(time.Since(start).Seconds())

	if err == nil && !reading.Severity.Valid() {
		err = fmt.Errorf("unexpected traffic severity %q", reading.Severity)
	}
	if err != nil {
		outcome := domain.TrafficError
		if errors.Is(err, context.DeadlineExceeded) || errors.Is(ctx.Err(), context.DeadlineExceeded) {
			outcome = domain.TrafficTimeout
		}
		p.logger.Warn("traffic probe failed, using fallback",
			"checkpoint_id", checkpointID,
			"outcome", outcome,
			"error", err,
		)
		return p.record(domain.FallbackSample(checkpointID, outcome))
	}

	return p.record(domain.TrafficSample{
		CheckpointID: checkpointID,
		Severity:     reading.Severity,
		Description:  reading.Description,
		Outcome:      domain.TrafficOK,
	})
}

func (p *Prober) record(s domain.TrafficSample) domain.TrafficSample {
	p.metrics.ProbeOutcomes.WithLabelValues(string(s.Outcome)).Inc()
	return s
}

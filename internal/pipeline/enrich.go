package pipeline

import (
	"context"

	"golang.org/x/sync/errgroup"

	"github.com/couchcryptid/checkpoint-status-service/internal/domain"
)

// Enricher fans traffic probes out over a batch of checkpoints.
type Enricher struct {
	prober *Prober
	limit  int
}

// NewEnricher creates an Enricher running at most limit probes at once.
// A limit below one means unbounded.
func NewEnricher(prober *Prober, limit int) *Enricher {
	return &Enricher{prober: prober, limit: limit}
}

// Enrich returns one sample per checkpoint, in input order regardless of
// completion order. Probes never fail, so neither does Enrich.
func (e *Enricher) Enrich(ctx context.Context, checkpoints []domain.Checkpoint) []domain.TrafficSample {
	samples := make([]domain.TrafficSample, len(checkpoints))

	var g errgroup.Group
	if e.limit > 0 {
		g.SetLimit(e.limit)
	}
	for i, cp := range checkpoints {
		g.Go(func() error {
			samples[i] = e.prober.Probe(ctx, cp.ID, cp.Coordinate)
			return nil
		})
	}
	_ = g.Wait()

	return samples
}

package pipeline

import (
	"context"
	"fmt"

	"github.com/couchcryptid/checkpoint-status-service/internal/domain"
)

// Build is the result of one read-enrich-score pass.
type Build struct {
	Checkpoints []domain.CheckpointView
	Blacklist   []domain.BlacklistItem
	// BlacklistErr is set when the blacklist could not be listed. The
	// checkpoint views are still valid.
	BlacklistErr error
}

// Builder turns store records into ordered checkpoint views.
type Builder struct {
	store    domain.ReportStore
	enricher *Enricher
}

// NewBuilder creates a Builder over the given store and enricher.
func NewBuilder(store domain.ReportStore, enricher *Enricher) *Builder {
	return &Builder{store: store, enricher: enricher}
}

// Build reads the store, probes traffic for every checkpoint, scores and
// sorts the views. Only a failed checkpoint listing is returned as an error.
func (b *Builder) Build(ctx context.Context) (Build, error) {
	records, err := b.store.ListCheckpointsWithAggregates(ctx)
	if err != nil {
		return Build{}, fmt.Errorf("list checkpoints: %w", err)
	}

	checkpoints := make([]domain.Checkpoint, len(records))
	for i, rec := range records {
		checkpoints[i] = rec.Checkpoint
	}
	samples := b.enricher.Enrich(ctx, checkpoints)

	views := make([]domain.CheckpointView, len(records))
	for i, rec := range records {
		views[i] = domain.BuildView(rec.Checkpoint, rec.Aggregate, samples[i])
	}

	out := Build{Checkpoints: domain.SortBySeverity(views)}
	items, err := b.store.ListBlacklist(ctx)
	if err != nil {
		out.BlacklistErr = fmt.Errorf("list blacklist: %w", err)
		return out, nil
	}
	out.Blacklist = domain.RankBlacklist(items)
	return out, nil
}

package domain

import "context"

// ReportStore is the persistent report and vote store. Implementations wrap
// read failures in ErrStoreUnavailable and classify write failures as
// ErrWriteRejected, ErrWriteTimeout, ErrNotFound or ErrStoreUnavailable.
type ReportStore interface {
	// ListCheckpointsWithAggregates returns every checkpoint with its recent
	// report aggregate. A failure is a single error the caller can fall back from.
	ListCheckpointsWithAggregates(ctx context.Context) ([]CheckpointRecord, error)

	// InsertReport persists one crowd report.
	InsertReport(ctx context.Context, r Report) error

	// InsertVote atomically increments the witness counter of a blacklist item.
	InsertVote(ctx context.Context, itemID string) error

	// ListBlacklist returns all blacklist items in store order.
	ListBlacklist(ctx context.Context) ([]BlacklistItem, error)

	// InsertBlacklistItem adds a new item with a starting count of 1.
	InsertBlacklistItem(ctx context.Context, item NewBlacklistItem) (BlacklistItem, error)
}

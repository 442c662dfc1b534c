// Package postgres implements domain.ReportStore backed by PostgreSQL.
package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/lib/pq"

	"github.com/couchcryptid/checkpoint-status-service/internal/domain"
)

// Store implements domain.ReportStore. The schema is managed outside the
// service.
type Store struct {
	db     *sql.DB
	window time.Duration
	clock  clockwork.Clock
}

// Compile-time check that Store implements domain.ReportStore.
var _ domain.ReportStore = (*Store)(nil)

// New opens a connection pool to databaseURL and verifies it. Reports older
// than window are ignored when aggregating.
func New(ctx context.Context, databaseURL string, window time.Duration) (*Store, error) {
	db, err := sql.Open("postgres", databaseURL)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(5 * time.Minute)

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}
	return NewWithDB(db, window, clockwork.NewRealClock()), nil
}

// NewWithDB wraps an existing handle.
func NewWithDB(db *sql.DB, window time.Duration, clock clockwork.Clock) *Store {
	return &Store{db: db, window: window, clock: clock}
}

// Close closes the underlying database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// Ping reports whether the database is reachable.
func (s *Store) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// ListCheckpointsWithAggregates implements domain.ReportStore.
func (s *Store) ListCheckpointsWithAggregates(ctx context.Context) ([]domain.CheckpointRecord, error) {
	since := s.clock.Now().Add(-s.window)
	rows, err := s.db.QueryContext(ctx, queryCheckpointAggregates, since)
	if err != nil {
		return nil, fmt.Errorf("%w: list checkpoints: %w", domain.ErrStoreUnavailable, err)
	}
	defer rows.Close()

	var out []domain.CheckpointRecord
	for rows.Next() {
		rec, err := scanCheckpointRecord(rows)
		if err != nil {
			return nil, fmt.Errorf("%w: scan checkpoint: %w", domain.ErrStoreUnavailable, err)
		}
		out = append(out, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%w: list checkpoints: %w", domain.ErrStoreUnavailable, err)
	}
	return out, nil
}

// InsertReport implements domain.ReportStore.
func (s *Store) InsertReport(ctx context.Context, r domain.Report) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO reports (checkpoint_id, severity, wait_minutes, created_at)
		VALUES ($1, $2, $3, $4)`,
		r.CheckpointID, string(r.Severity), r.WaitMinutes, s.clock.Now(),
	)
	if err != nil {
		return classifyWriteError("insert report", err)
	}
	return nil
}

// InsertVote implements domain.ReportStore. The increment happens in a single
// statement so concurrent votes never lose updates.
func (s *Store) InsertVote(ctx context.Context, itemID string) error {
	res, err := s.db.ExecContext(ctx, `
		UPDATE blacklist_items
		SET confiscated_count_today = confiscated_count_today + 1
		WHERE id = $1`,
		itemID,
	)
	if err != nil {
		return classifyWriteError("insert vote", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return classifyWriteError("insert vote", err)
	}
	if n == 0 {
		return fmt.Errorf("blacklist item %s: %w", itemID, domain.ErrNotFound)
	}
	return nil
}

// ListBlacklist implements domain.ReportStore.
func (s *Store) ListBlacklist(ctx context.Context) ([]domain.BlacklistItem, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, name, category, reason, confiscated_count_today
		FROM blacklist_items
		ORDER BY confiscated_count_today DESC, id`)
	if err != nil {
		return nil, fmt.Errorf("%w: list blacklist: %w", domain.ErrStoreUnavailable, err)
	}
	defer rows.Close()

	var out []domain.BlacklistItem
	for rows.Next() {
		var it domain.BlacklistItem
		if err := rows.Scan(&it.ID, &it.Name, &it.Category, &it.Reason, &it.ConfiscatedToday); err != nil {
			return nil, fmt.Errorf("%w: scan blacklist item: %w", domain.ErrStoreUnavailable, err)
		}
		out = append(out, it)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%w: list blacklist: %w", domain.ErrStoreUnavailable, err)
	}
	return out, nil
}

// InsertBlacklistItem implements domain.ReportStore.
func (s *Store) InsertBlacklistItem(ctx context.Context, n domain.NewBlacklistItem) (domain.BlacklistItem, error) {
	var it domain.BlacklistItem
	err := s.db.QueryRowContext(ctx, `
		INSERT INTO blacklist_items (name, category, reason, confiscated_count_today)
		VALUES ($1, $2, $3, 1)
		RETURNING id, name, category, reason, confiscated_count_today`,
		n.Name, n.Category, n.Reason,
	).Scan(&it.ID, &it.Name, &it.Category, &it.Reason, &it.ConfiscatedToday)
	if err != nil {
		return domain.BlacklistItem{}, classifyWriteError("insert blacklist item", err)
	}
	return it, nil
}

// classifyWriteError wraps err with the domain write taxonomy.
func classifyWriteError(op string, err error) error {
	var pqErr *pq.Error
	switch {
	case errors.Is(err, context.DeadlineExceeded):
		return fmt.Errorf("%s: %w: %w", op, domain.ErrWriteTimeout, err)
	case errors.As(err, &pqErr):
		switch {
		case pqErr.Code == "23503":
			return fmt.Errorf("%s: %w: %w", op, domain.ErrNotFound, err)
		case pqErr.Code == "57014":
			return fmt.Errorf("%s: %w: %w", op, domain.ErrWriteTimeout, err)
		case pqErr.Code.Class() == "22", pqErr.Code.Class() == "23":
			return fmt.Errorf("%s: %w: %w", op, domain.ErrWriteRejected, err)
		}
	}
	return fmt.Errorf("%s: %w: %w", op, domain.ErrStoreUnavailable, err)
}

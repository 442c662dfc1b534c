package postgres

import (
	"database/sql"

	"github.com/couchcryptid/checkpoint-status-service/internal/domain"
)

// queryCheckpointAggregates lists every checkpoint with the aggregate of its
// reports newer than $1. The most frequent severity wins; ties go to the more
// severe color. The average wait is rounded half away from zero.
const queryCheckpointAggregates = `
	SELECT c.id, c.name, c.location, c.lat, c.lng,
	       m.severity,
	       COALESCE(ROUND(a.avg_wait)::int, 0),
	       COALESCE(a.report_count, 0),
	       a.last_report_at
	FROM checkpoints c
	LEFT JOIN (
		SELECT checkpoint_id,
		       AVG(wait_minutes) AS avg_wait,
		       COUNT(*) AS report_count,
		       MAX(created_at) AS last_report_at
		FROM reports
		WHERE created_at > $1
		GROUP BY checkpoint_id
	) a ON a.checkpoint_id = c.id
	LEFT JOIN LATERAL (
		SELECT r.severity
		FROM reports r
		WHERE r.checkpoint_id = c.id AND r.created_at > $1
		GROUP BY r.severity
		ORDER BY COUNT(*) DESC,
		         CASE r.severity WHEN 'RED' THEN 3 WHEN 'YELLOW' THEN 2 WHEN 'GREEN' THEN 1 ELSE 0 END DESC
		LIMIT 1
	) m ON true
	ORDER BY c.id`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanCheckpointRecord(row rowScanner) (domain.CheckpointRecord, error) {
	var (
		rec      domain.CheckpointRecord
		lat, lng sql.NullFloat64
		severity sql.NullString
		lastAt   sql.NullTime
	)
	err := row.Scan(
		&rec.Checkpoint.ID, &rec.Checkpoint.Name, &rec.Checkpoint.Location, &lat, &lng,
		&severity, &rec.Aggregate.AvgWaitMinutes, &rec.Aggregate.ReportCount, &lastAt,
	)
	if err != nil {
		return domain.CheckpointRecord{}, err
	}

	if lat.Valid && lng.Valid {
		rec.Checkpoint.Coordinate = &domain.Coordinate{Lat: lat.Float64, Lng: lng.Float64}
	}
	rec.Aggregate.CheckpointID = rec.Checkpoint.ID
	if severity.Valid {
		rec.Aggregate.ReportedSeverity = domain.Severity(severity.String)
	}
	if lastAt.Valid {
		rec.Aggregate.LastReportAt = lastAt.Time
	}
	return rec, nil
}

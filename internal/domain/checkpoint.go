package domain

import (
	"fmt"
	"strings"
	"time"
)

// MaxWaitMinutes bounds a single submitted wait time.
const MaxWaitMinutes = 300

// Coordinate is a WGS-84 latitude/longitude pair.
type Coordinate struct {
	Lat float64 `json:"lat" yaml:"lat"`
	Lng float64 `json:"lng" yaml:"lng"`
}

// Checkpoint is reference data owned by the report store.
type Checkpoint struct {
	ID       string
	Name     string
	Location string
	// Coordinate is nil when the store has no position for the checkpoint;
	// such checkpoints are never probed for traffic.
	Coordinate *Coordinate
}

// ReportAggregate summarizes recent crowd reports for one checkpoint.
// It is recomputed by the store on every read and never persisted here.
type ReportAggregate struct {
	CheckpointID     string
	ReportedSeverity Severity
	AvgWaitMinutes   int
	ReportCount      int
	// LastReportAt is zero when the checkpoint has no reports.
	LastReportAt time.Time
}

// CheckpointRecord pairs a checkpoint with its aggregate as returned by the
// bulk store read.
type CheckpointRecord struct {
	Checkpoint Checkpoint
	Aggregate  ReportAggregate
}

// CheckpointView is the published, display-ready status of one checkpoint.
type CheckpointView struct {
	ID                 string      `json:"id"`
	Name               string      `json:"name"`
	Location           string      `json:"location"`
	Status             Severity    `json:"status"`
	StrictnessScore    int         `json:"strictness_score"`
	WaitTimeMinutes    int         `json:"wait_time_minutes"`
	ReportCount        int         `json:"report_count"`
	LastUpdated        string      `json:"last_updated"`
	TrafficStatus      Severity    `json:"traffic_status"`
	TrafficDescription string      `json:"traffic_description,omitempty"`
	Coordinate         *Coordinate `json:"coordinate,omitempty"`
}

// Report is a single crowd observation submitted for a checkpoint.
type Report struct {
	CheckpointID string
	Severity     Severity
	WaitMinutes  int
}

// Validate checks the report before it is sent to the store.
func (r Report) Validate() error {
	if strings.TrimSpace(r.CheckpointID) == "" {
		return fmt.Errorf("%w: checkpoint id is required", ErrInvalidReport)
	}
	if !r.Severity.Valid() {
		return fmt.Errorf("%w: unknown severity %q", ErrInvalidReport, r.Severity)
	}
	if r.WaitMinutes < 0 || r.WaitMinutes > MaxWaitMinutes {
		return fmt.Errorf("%w: wait minutes must be between 0 and %d", ErrInvalidReport, MaxWaitMinutes)
	}
	return nil
}

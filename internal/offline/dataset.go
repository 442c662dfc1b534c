// Package offline embeds the clearly-labeled fallback dataset shown when live
// data cannot be fetched.
package offline

import (
	_ "embed"
	"errors"
	"fmt"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/couchcryptid/checkpoint-status-service/internal/domain"
)

//go:embed dataset.yaml
var embedded []byte

// Dataset is the decoded offline dataset.
type Dataset struct {
	Checkpoints []Checkpoint           `yaml:"checkpoints"`
	Blacklist   []domain.BlacklistItem `yaml:"blacklist"`
}

// Checkpoint carries the fixed offline view of one checkpoint and the reports
// used to seed the in-memory store.
type Checkpoint struct {
	ID                 string             `yaml:"id"`
	Name               string             `yaml:"name"`
	Location           string             `yaml:"location"`
	Coordinate         *domain.Coordinate `yaml:"coordinate"`
	Status             domain.Severity    `yaml:"status"`
	WaitMinutes        int                `yaml:"wait_minutes"`
	Strictness         int                `yaml:"strictness"`
	ReportCount        int                `yaml:"report_count"`
	LastUpdated        string             `yaml:"last_updated"`
	TrafficStatus      domain.Severity    `yaml:"traffic_status"`
	TrafficDescription string             `yaml:"traffic_description"`
	SeedReports        []SeedReport       `yaml:"seed_reports"`
}

// SeedReport is a report placed Age before store construction.
type SeedReport struct {
	Severity    domain.Severity `yaml:"severity"`
	WaitMinutes int             `yaml:"wait_minutes"`
	Age         time.Duration   `yaml:"age"`
}

// Load decodes and validates the embedded dataset.
func Load() (Dataset, error) {
	return Parse(embedded)
}

// MustLoad is Load for callers that cannot proceed without the dataset.
func MustLoad() Dataset {
	ds, err := Load()
	if err != nil {
		panic(err)
	}
	return ds
}

// Parse decodes and validates a dataset document.
func Parse(data []byte) (Dataset, error) {
	var ds Dataset
	if err := yaml.Unmarshal(data, &ds); err != nil {
		return Dataset{}, fmt.Errorf("decode offline dataset: %w", err)
	}
	if err := ds.Validate(); err != nil {
		return Dataset{}, err
	}
	return ds, nil
}

// Validate checks identifiers, colors and score ranges.
func (ds Dataset) Validate() error {
	var errs []error
	seen := make(map[string]bool, len(ds.Checkpoints))
	for i, cp := range ds.Checkpoints {
		switch {
		case cp.ID == "":
			errs = append(errs, fmt.Errorf("checkpoint %d: missing id", i))
		case seen[cp.ID]:
			errs = append(errs, fmt.Errorf("checkpoint %s: duplicate id", cp.ID))
		}
		seen[cp.ID] = true
		if !cp.Status.Valid() || !cp.TrafficStatus.Valid() {
			errs = append(errs, fmt.Errorf("checkpoint %s: invalid status", cp.ID))
		}
		if cp.Strictness < domain.MinStrictness || cp.Strictness > domain.MaxStrictness {
			errs = append(errs, fmt.Errorf("checkpoint %s: strictness %d out of range", cp.ID, cp.Strictness))
		}
		for _, r := range cp.SeedReports {
			if !r.Severity.Valid() || r.WaitMinutes < 0 || r.Age < 0 {
				errs = append(errs, fmt.Errorf("checkpoint %s: invalid seed report", cp.ID))
			}
		}
	}
	items := make(map[string]bool, len(ds.Blacklist))
	for i, it := range ds.Blacklist {
		if it.ID == "" || items[it.ID] {
			errs = append(errs, fmt.Errorf("blacklist item %d: missing or duplicate id", i))
		}
		items[it.ID] = true
	}
	return errors.Join(errs...)
}

// Snapshot renders the dataset as an offline-labeled snapshot.
func (ds Dataset) Snapshot(publishedAt time.Time) domain.Snapshot {
	views := make([]domain.CheckpointView, 0, len(ds.Checkpoints))
	for _, cp := range ds.Checkpoints {
		views = append(views, domain.CheckpointView{
			ID:                 cp.ID,
			Name:               cp.Name,
			Location:           cp.Location,
			Status:             cp.Status,
			StrictnessScore:    cp.Strictness,
			WaitTimeMinutes:    cp.WaitMinutes,
			ReportCount:        cp.ReportCount,
			LastUpdated:        cp.LastUpdated,
			TrafficStatus:      cp.TrafficStatus,
			TrafficDescription: cp.TrafficDescription,
			Coordinate:         cp.Coordinate,
		})
	}
	return domain.Snapshot{
		Checkpoints: domain.SortBySeverity(views),
		Blacklist:   domain.RankBlacklist(ds.Blacklist),
		Offline:     true,
		Notice:      domain.OfflineNotice,
		PublishedAt: publishedAt,
	}
}

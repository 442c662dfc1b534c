package pipeline_test

import (
	"context"
	"sync"
	"time"

	"github.com/couchcryptid/checkpoint-status-service/internal/domain"
)

// --- mocks ---

type mockStore struct {
	mu           sync.Mutex
	records      []domain.CheckpointRecord
	blacklist    []domain.BlacklistItem
	listErr      error
	blacklistErr error
	listCalls    int

	// gate, when set, blocks every listing until it is closed.
	gate    chan struct{}
	entered chan struct{}
}

func (m *mockStore) ListCheckpointsWithAggregates(_ context.Context) ([]domain.CheckpointRecord, error) {
	m.mu.Lock()
	m.listCalls++
	records, err, gate, entered := m.records, m.listErr, m.gate, m.entered
	m.mu.Unlock()

	if entered != nil {
		select {
		case entered <- struct{}{}:
		default:
		}
	}
	if gate != nil {
		<-gate
	}
	if err != nil {
		return nil, err
	}
	return records, nil
}

func (m *mockStore) ListBlacklist(_ context.Context) ([]domain.BlacklistItem, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.blacklistErr != nil {
		return nil, m.blacklistErr
	}
	return m.blacklist, nil
}

func (m *mockStore) InsertReport(_ context.Context, _ domain.Report) error { return nil }

func (m *mockStore) InsertVote(_ context.Context, _ string) error { return nil }

func (m *mockStore) InsertBlacklistItem(_ context.Context, n domain.NewBlacklistItem) (domain.BlacklistItem, error) {
	return domain.BlacklistItem{ID: "new", Name: n.Name, ConfiscatedToday: 1}, nil
}

func (m *mockStore) set(fn func(m *mockStore)) {
	m.mu.Lock()
	defer m.mu.Unlock()
	fn(m)
}

func (m *mockStore) calls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.listCalls
}

// mockSource answers by latitude. The maps are read-only once a test starts.
type mockSource struct {
	readings map[float64]domain.TrafficReading
	errs     map[float64]error
	delays   map[float64]time.Duration
}

func (m *mockSource) Congestion(ctx context.Context, at domain.Coordinate) (domain.TrafficReading, error) {
	if d, ok := m.delays[at.Lat]; ok {
		timer := time.NewTimer(d)
		defer timer.Stop()
		select {
		case <-timer.C:
		case <-ctx.Done():
			return domain.TrafficReading{}, ctx.Err()
		}
	}
	if err := m.errs[at.Lat]; err != nil {
		return domain.TrafficReading{}, err
	}
	return m.readings[at.Lat], nil
}

type mockSink struct {
	name string
	err  error

	mu  sync.Mutex
	got []domain.Snapshot
}

func (m *mockSink) Name() string { return m.name }

func (m *mockSink) PublishSnapshot(_ context.Context, snap domain.Snapshot) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.got = append(m.got, snap)
	return m.err
}

func (m *mockSink) published() []domain.Snapshot {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]domain.Snapshot(nil), m.got...)
}

// --- helpers ---

func coord(lat, lng float64) *domain.Coordinate {
	return &domain.Coordinate{Lat: lat, Lng: lng}
}

func record(id string, reported domain.Severity, wait, count int, at *domain.Coordinate) domain.CheckpointRecord {
	return domain.CheckpointRecord{
		Checkpoint: domain.Checkpoint{ID: id, Name: "checkpoint " + id, Location: "lane " + id, Coordinate: at},
		Aggregate: domain.ReportAggregate{
			CheckpointID:     id,
			ReportedSeverity: reported,
			AvgWaitMinutes:   wait,
			ReportCount:      count,
		},
	}
}

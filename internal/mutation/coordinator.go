// Package mutation applies user writes optimistically to the published
// snapshot and reconciles them against the report store.
package mutation

import (
	"context"
	"fmt"
	"log/slog"
	"slices"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"
	nanoid "github.com/matoous/go-nanoid/v2"

	"github.com/couchcryptid/checkpoint-status-service/internal/domain"
	"github.com/couchcryptid/checkpoint-status-service/internal/observability"
)

const (
	idPrefix   = "mut-"
	idAlphabet = "abcdefghijklmnopqrstuvwxyzABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"
	idLength   = 12
)

// View is the published snapshot owner the coordinator patches and
// reconciles. pipeline.Scheduler implements it.
type View interface {
	Patch(fn func(domain.Snapshot) (domain.Snapshot, bool)) bool
	Reconcile(ctx context.Context)
}

// Notifier announces committed mutations to other instances.
type Notifier interface {
	Notify(ctx context.Context, m domain.PendingMutation) error
}

type guardKey struct {
	actor string
	kind  domain.MutationKind
}

// Coordinator runs optimistic mutations. Each actor may have at most one
// unsettled mutation per kind, and the guard stays closed for the cooldown
// after settlement.
type Coordinator struct {
	store    domain.ReportStore
	view     View
	notifier Notifier
	cooldown time.Duration
	clock    clockwork.Clock
	logger   *slog.Logger
	metrics  *observability.Metrics

	mu     sync.Mutex
	guards map[guardKey]time.Time // zero while in flight, else reopen time
}

// Option configures a Coordinator.
type Option func(*Coordinator)

// WithClock sets the clock used for settlement times and cooldowns.
func WithClock(clk clockwork.Clock) Option {
	return func(c *Coordinator) { c.clock = clk }
}

// WithNotifier publishes committed mutations through n.
func WithNotifier(n Notifier) Option {
	return func(c *Coordinator) { c.notifier = n }
}

// New creates a Coordinator.
func New(store domain.ReportStore, view View, cooldown time.Duration, logger *slog.Logger, metrics *observability.Metrics, opts ...Option) *Coordinator {
	c := &Coordinator{
		store:    store,
		view:     view,
		cooldown: cooldown,
		clock:    clockwork.NewRealClock(),
		logger:   logger,
		metrics:  metrics,
		guards:   make(map[guardKey]time.Time),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// SubmitReport shows the report on its checkpoint immediately and writes it.
func (c *Coordinator) SubmitReport(ctx context.Context, actor string, r domain.Report) (domain.PendingMutation, error) {
	if err := r.Validate(); err != nil {
		return domain.PendingMutation{}, err
	}
	patch := func(_ domain.PendingMutation, snap domain.Snapshot) (domain.Snapshot, bool) {
		now := c.clock.Now()
		return snap.PatchCheckpoint(r.CheckpointID, func(v *domain.CheckpointView) {
			v.Status, v.StrictnessScore = domain.Derive(r.Severity, r.WaitMinutes, domain.TrafficSample{Severity: v.TrafficStatus})
			v.WaitTimeMinutes = r.WaitMinutes
			v.ReportCount++
			v.LastUpdated = domain.LastUpdatedLabel(now)
		})
	}
	return c.execute(ctx, actor, domain.MutationReport, r.CheckpointID, patch, func(ctx context.Context) error {
		return c.store.InsertReport(ctx, r)
	})
}

// Vote increments a blacklist item's witness count immediately and writes it.
func (c *Coordinator) Vote(ctx context.Context, actor, itemID string) (domain.PendingMutation, error) {
	if itemID == "" {
		return domain.PendingMutation{}, fmt.Errorf("%w: item id is required", domain.ErrInvalidReport)
	}
	patch := func(_ domain.PendingMutation, snap domain.Snapshot) (domain.Snapshot, bool) {
		return snap.PatchBlacklistItem(itemID, func(it *domain.BlacklistItem) {
			it.ConfiscatedToday++
		})
	}
	return c.execute(ctx, actor, domain.MutationVote, itemID, patch, func(ctx context.Context) error {
		return c.store.InsertVote(ctx, itemID)
	})
}

// AddBlacklistItem shows a provisional entry with a count of one and writes
// the new item. The returned item is the store's copy when the write commits.
func (c *Coordinator) AddBlacklistItem(ctx context.Context, actor string, n domain.NewBlacklistItem) (domain.PendingMutation, domain.BlacklistItem, error) {
	n, err := n.Normalize()
	if err != nil {
		return domain.PendingMutation{}, domain.BlacklistItem{}, err
	}

	var created domain.BlacklistItem
	patch := func(m domain.PendingMutation, snap domain.Snapshot) (domain.Snapshot, bool) {
		items := append(slices.Clone(snap.Blacklist), domain.BlacklistItem{
			ID:               m.ID,
			Name:             n.Name,
			Category:         n.Category,
			Reason:           n.Reason,
			ConfiscatedToday: 1,
		})
		snap.Blacklist = domain.RankBlacklist(items)
		return snap, true
	}
	m, err := c.execute(ctx, actor, domain.MutationBlacklistItem, "", patch, func(ctx context.Context) error {
		var err error
		created, err = c.store.InsertBlacklistItem(ctx, n)
		return err
	})
	return m, created, err
}

// execute guards, patches, writes, settles and reconciles one mutation. An
// empty target means the mutation creates its target and is keyed by its id.
func (c *Coordinator) execute(ctx context.Context, actor string, kind domain.MutationKind, target string,
	patch func(domain.PendingMutation, domain.Snapshot) (domain.Snapshot, bool), write func(context.Context) error,
) (domain.PendingMutation, error) {
	key := guardKey{actor: actor, kind: kind}
	if !c.acquire(key) {
		c.metrics.Mutations.WithLabelValues(string(kind), "rejected-in-flight").Inc()
		return domain.PendingMutation{}, fmt.Errorf("%s by %q: %w", kind, actor, domain.ErrMutationInFlight)
	}

	id, err := newID()
	if err != nil {
		c.release(key)
		return domain.PendingMutation{}, err
	}
	if target == "" {
		target = id
	}
	m := domain.PendingMutation{
		ID:        id,
		Kind:      kind,
		ActorID:   actor,
		TargetID:  target,
		State:     domain.SettlementInFlight,
		CreatedAt: c.clock.Now(),
	}

	if !c.view.Patch(func(snap domain.Snapshot) (domain.Snapshot, bool) { return patch(m, snap) }) {
		c.logger.Debug("mutation target not in current view, skipping speculative patch",
			"mutation_id", m.ID, "kind", kind, "target_id", target)
	}

	// The write and the reconcile outlive a cancelled caller.
	bg := context.WithoutCancel(ctx)
	writeErr := write(bg)
	c.settle(&m, writeErr)
	c.release(key)

	c.view.Reconcile(bg)

	if writeErr != nil {
		return m, fmt.Errorf("%s %s: %w", kind, m.TargetID, writeErr)
	}
	if c.notifier != nil {
		if err := c.notifier.Notify(bg, m); err != nil {
			c.logger.Warn("mutation notification failed", "mutation_id", m.ID, "error", err)
		}
	}
	return m, nil
}

// settle moves m out of in-flight exactly once and records the outcome.
func (c *Coordinator) settle(m *domain.PendingMutation, writeErr error) {
	if m.Settled() {
		c.logger.Error("mutation already settled", "mutation_id", m.ID, "state", m.State)
		return
	}
	at := c.clock.Now()
	var err error
	if writeErr != nil {
		err = m.Fail(at, writeErr)
	} else {
		err = m.Commit(at)
	}
	if err != nil {
		c.logger.Error("mutation settlement failed", "mutation_id", m.ID, "error", err)
		return
	}

	if m.State == domain.SettlementFailed {
		c.logger.Warn("mutation failed, reverting",
			"mutation_id", m.ID, "kind", m.Kind, "target_id", m.TargetID,
			"reason", m.Reason, "error", writeErr)
	}
	c.metrics.Mutations.WithLabelValues(string(m.Kind), string(m.State)).Inc()
}

func (c *Coordinator) acquire(key guardKey) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := c.clock.Now()
	for k, reopen := range c.guards {
		if !reopen.IsZero() && !now.Before(reopen) {
			delete(c.guards, k)
		}
	}
	if _, held := c.guards[key]; held {
		return false
	}
	c.guards[key] = time.Time{}
	return true
}

func (c *Coordinator) release(key guardKey) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.cooldown <= 0 {
		delete(c.guards, key)
		return
	}
	c.guards[key] = c.clock.Now().Add(c.cooldown)
}

func newID() (string, error) {
	id, err := nanoid.Generate(idAlphabet, idLength)
	if err != nil {
		return "", fmt.Errorf("generate mutation id: %w", err)
	}
	return idPrefix + id, nil
}

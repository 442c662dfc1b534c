package natsbus

import (
	"context"
	"encoding/json"
	"log/slog"
	"sync/atomic"
	"testing"
	"time"

	natsserver "github.com/nats-io/nats-server/v2/server"
	"github.com/nats-io/nats.go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/couchcryptid/checkpoint-status-service/internal/domain"
)

const subject = "checkpoint.mutations"

// startTestNATS starts an embedded NATS server and returns its client URL.
func startTestNATS(t *testing.T) string {
	t.Helper()
	srv, err := natsserver.NewServer(&natsserver.Options{Host: "127.0.0.1", Port: -1})
	require.NoError(t, err)
	srv.Start()
	t.Cleanup(srv.Shutdown)
	require.True(t, srv.ReadyForConnections(5*time.Second), "embedded NATS not ready")
	return srv.ClientURL()
}

func connect(t *testing.T, url string) *Bus {
	t.Helper()
	b, err := Connect(url, subject, slog.Default())
	require.NoError(t, err)
	t.Cleanup(func() { _ = b.Close() })
	return b
}

type countingReconciler struct {
	calls atomic.Int32
	ch    chan struct{}
}

func newCountingReconciler() *countingReconciler {
	return &countingReconciler{ch: make(chan struct{}, 16)}
}

func (r *countingReconciler) Reconcile(context.Context) {
	r.calls.Add(1)
	r.ch <- struct{}{}
}

func committed(kind domain.MutationKind, target string) domain.PendingMutation {
	return domain.PendingMutation{
		ID:        "mut-abc123def456",
		Kind:      kind,
		ActorID:   "alice",
		TargetID:  target,
		State:     domain.SettlementCommitted,
		CreatedAt: time.Date(2026, 3, 1, 8, 0, 0, 0, time.UTC),
		SettledAt: time.Date(2026, 3, 1, 8, 0, 1, 0, time.UTC),
	}
}

func TestNotify_PublishesToKindSubject(t *testing.T) {
	url := startTestNATS(t)
	pub := connect(t, url)

	nc, err := nats.Connect(url)
	require.NoError(t, err)
	defer nc.Close()
	sub, err := nc.SubscribeSync(subject + ".>")
	require.NoError(t, err)
	require.NoError(t, nc.Flush())

	require.NoError(t, pub.Notify(context.Background(), committed(domain.MutationVote, "5")))

	msg, err := sub.NextMsg(2 * time.Second)
	require.NoError(t, err)
	assert.Equal(t, "checkpoint.mutations.vote", msg.Subject)

	var ev Event
	require.NoError(t, json.Unmarshal(msg.Data, &ev))
	assert.Equal(t, "mut-abc123def456", ev.ID)
	assert.Equal(t, domain.MutationVote, ev.Kind)
	assert.Equal(t, "5", ev.TargetID)
	assert.True(t, ev.CommittedAt.Equal(time.Date(2026, 3, 1, 8, 0, 1, 0, time.UTC)))
	assert.NotContains(t, string(msg.Data), "alice")
}

func TestListen_ReconcilesOnPeerEvent(t *testing.T) {
	url := startTestNATS(t)
	a := connect(t, url)
	b := connect(t, url)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	ra, rb := newCountingReconciler(), newCountingReconciler()
	require.NoError(t, a.Listen(ctx, ra))
	require.NoError(t, b.Listen(ctx, rb))

	require.NoError(t, a.Notify(ctx, committed(domain.MutationReport, "3")))

	select {
	case <-rb.ch:
	case <-time.After(2 * time.Second):
		t.Fatal("peer did not reconcile")
	}

	// The publisher never hears its own announcement.
	time.Sleep(100 * time.Millisecond)
	assert.Equal(t, int32(0), ra.calls.Load())
}

func TestListen_MalformedPayloadStillReconciles(t *testing.T) {
	url := startTestNATS(t)
	b := connect(t, url)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	r := newCountingReconciler()
	require.NoError(t, b.Listen(ctx, r))

	nc, err := nats.Connect(url)
	require.NoError(t, err)
	defer nc.Close()
	require.NoError(t, nc.Publish(subject+".vote", []byte("not json")))
	require.NoError(t, nc.Flush())

	select {
	case <-r.ch:
	case <-time.After(2 * time.Second):
		t.Fatal("no reconcile for malformed event")
	}
}

func TestClose_StopsListener(t *testing.T) {
	url := startTestNATS(t)
	b, err := Connect(url, subject, slog.Default())
	require.NoError(t, err)

	require.NoError(t, b.Listen(context.Background(), newCountingReconciler()))
	require.NoError(t, b.Close())
	require.NoError(t, b.Close())
	assert.True(t, b.conn.IsClosed())
}

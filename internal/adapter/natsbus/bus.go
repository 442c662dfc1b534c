// Package natsbus announces committed mutations to other instances and turns
// their announcements into reconciling refreshes.
package natsbus

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/nats-io/nats.go"

	"github.com/couchcryptid/checkpoint-status-service/internal/domain"
)

// Reconciler requests a reconciling refresh. pipeline.Scheduler implements it.
type Reconciler interface {
	Reconcile(ctx context.Context)
}

// Event is the payload published for every committed mutation.
type Event struct {
	ID          string              `json:"id"`
	Kind        domain.MutationKind `json:"kind"`
	TargetID    string              `json:"target_id"`
	CommittedAt time.Time           `json:"committed_at"`
}

// Bus publishes to and listens on subject.<kind>. The connection is opened
// without echo so an instance never reacts to its own announcements.
type Bus struct {
	conn    *nats.Conn
	subject string
	logger  *slog.Logger

	mu   sync.Mutex
	sub  *nats.Subscription
	done chan struct{}
	wg   sync.WaitGroup
}

// Connect dials url with automatic reconnection. Extra options are appended
// to the defaults.
func Connect(url, subject string, logger *slog.Logger, opts ...nats.Option) (*Bus, error) {
	defaults := []nats.Option{
		nats.Name("checkpoint-status-service"),
		nats.NoEcho(),
		nats.MaxReconnects(-1),
		nats.ReconnectWait(time.Second),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			if err != nil {
				logger.Warn("nats disconnected", "error", err)
			}
		}),
		nats.ReconnectHandler(func(nc *nats.Conn) {
			logger.Info("nats reconnected", "url", nc.ConnectedUrl())
		}),
	}
	nc, err := nats.Connect(url, append(defaults, opts...)...)
	if err != nil {
		return nil, fmt.Errorf("connecting to NATS at %s: %w", url, err)
	}
	return &Bus{conn: nc, subject: subject, logger: logger, done: make(chan struct{})}, nil
}

// Notify publishes a committed mutation. It implements mutation.Notifier.
func (b *Bus) Notify(_ context.Context, m domain.PendingMutation) error {
	data, err := json.Marshal(Event{
		ID:          m.ID,
		Kind:        m.Kind,
		TargetID:    m.TargetID,
		CommittedAt: m.SettledAt,
	})
	if err != nil {
		return fmt.Errorf("marshaling mutation event: %w", err)
	}
	subject := b.subject + "." + string(m.Kind)
	if err := b.conn.Publish(subject, data); err != nil {
		return fmt.Errorf("publishing to %s: %w", subject, err)
	}
	return nil
}

// Listen subscribes to every mutation kind and calls r.Reconcile for each
// announcement until ctx is cancelled or the bus is closed. Announcements
// that arrive while a reconcile is pending collapse into it. The
// subscription is registered on the server before Listen returns.
func (b *Bus) Listen(ctx context.Context, r Reconciler) error {
	pending := make(chan struct{}, 1)
	topic := b.subject + ".>"

	sub, err := b.conn.Subscribe(topic, func(msg *nats.Msg) {
		var ev Event
		if err := json.Unmarshal(msg.Data, &ev); err != nil {
			b.logger.Warn("malformed mutation event", "subject", msg.Subject, "error", err)
		} else {
			b.logger.Debug("mutation event received", "subject", msg.Subject, "mutation_id", ev.ID, "target_id", ev.TargetID)
		}
		select {
		case pending <- struct{}{}:
		default:
		}
	})
	if err != nil {
		return fmt.Errorf("subscribing to %s: %w", topic, err)
	}
	if err := b.conn.Flush(); err != nil {
		_ = sub.Unsubscribe()
		return fmt.Errorf("flushing subscription: %w", err)
	}

	b.mu.Lock()
	b.sub = sub
	b.mu.Unlock()

	b.wg.Add(1)
	go func() {
		defer b.wg.Done()
		for {
			select {
			case <-ctx.Done():
				return
			case <-b.done:
				return
			case <-pending:
				r.Reconcile(ctx)
			}
		}
	}()
	b.logger.Info("listening for mutation events", "subject", topic)
	return nil
}

// Close stops the listener and closes the connection.
func (b *Bus) Close() error {
	b.mu.Lock()
	select {
	case <-b.done:
	default:
		close(b.done)
	}
	sub := b.sub
	b.sub = nil
	b.mu.Unlock()

	if sub != nil {
		_ = sub.Unsubscribe()
	}
	b.wg.Wait()
	b.conn.Close()
	return nil
}

package domain

import (
	"errors"
	"fmt"
	"time"
)

// MutationKind identifies what a user action writes to the store.
type MutationKind string

const (
	MutationReport        MutationKind = "report"
	MutationVote          MutationKind = "vote"
	MutationBlacklistItem MutationKind = "blacklist-item"
)

// Settlement is the lifecycle state of a pending mutation.
type Settlement string

const (
	SettlementInFlight  Settlement = "in-flight"
	SettlementCommitted Settlement = "committed"
	SettlementFailed    Settlement = "failed"
)

// ErrInvalidTransition is returned when settling a mutation twice.
var ErrInvalidTransition = errors.New("invalid mutation transition")

// PendingMutation tracks one speculative write from issue to settlement.
// Transitions: in-flight -> committed | failed.
type PendingMutation struct {
	ID        string       `json:"id"`
	Kind      MutationKind `json:"kind"`
	ActorID   string       `json:"-"`
	TargetID  string       `json:"target_id"`
	State     Settlement   `json:"state"`
	Reason    string       `json:"reason,omitempty"`
	CreatedAt time.Time    `json:"created_at"`
	SettledAt time.Time    `json:"settled_at,omitzero"`
}

// Commit marks the mutation as accepted by the store.
func (m *PendingMutation) Commit(at time.Time) error {
	if m.State != SettlementInFlight {
		return fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, m.State, SettlementCommitted)
	}
	m.State = SettlementCommitted
	m.SettledAt = at
	return nil
}

// Fail marks the mutation as failed and records the user-facing reason.
func (m *PendingMutation) Fail(at time.Time, err error) error {
	if m.State != SettlementInFlight {
		return fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, m.State, SettlementFailed)
	}
	m.State = SettlementFailed
	m.Reason = ClassifyWriteError(err)
	m.SettledAt = at
	return nil
}

// Settled reports whether the mutation left the in-flight state.
func (m *PendingMutation) Settled() bool {
	return m.State != SettlementInFlight
}

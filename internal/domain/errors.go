package domain

import (
	"context"
	"errors"
)

var (
	// ErrStoreUnavailable means the report store could not be reached or
	// failed while serving a request.
	ErrStoreUnavailable = errors.New("report store unavailable")
	// ErrWriteRejected means the store received a write and refused it.
	ErrWriteRejected = errors.New("write rejected by report store")
	// ErrWriteTimeout means a write did not settle within its deadline.
	ErrWriteTimeout = errors.New("write timed out")
	// ErrNotFound means the write targeted an unknown checkpoint or item.
	ErrNotFound = errors.New("not found")
	// ErrInvalidReport means user input failed validation before any write.
	ErrInvalidReport = errors.New("invalid report")
	// ErrMutationInFlight means the actor already has an unsettled mutation of
	// the same kind.
	ErrMutationInFlight = errors.New("mutation already in flight")
)

// Write failure reasons exposed to users.
const (
	ReasonRejected    = "rejected"
	ReasonTimeout     = "timeout"
	ReasonUnavailable = "unavailable"
)

// ClassifyWriteError maps a failed write to a stable user-facing reason.
// Every reason means "failed, please retry"; the distinction only changes
// the message.
func ClassifyWriteError(err error) string {
	switch {
	case errors.Is(err, ErrWriteTimeout), errors.Is(err, context.DeadlineExceeded):
		return ReasonTimeout
	case errors.Is(err, ErrWriteRejected), errors.Is(err, ErrNotFound):
		return ReasonRejected
	default:
		return ReasonUnavailable
	}
}

package eventsource

import (
	"context"
	"errors"
)

// ErrTransient marks an error as retry-worthy: a protocol, response, or
// socket-level failure rather than a programming error. The engine's retry
// policy checks for this with errors.Is (see IsTransient) to decide whether to keep the cursor intact
// and retry, per the original's ProtocolError/ResponseError/socket.timeout
// handling.
var ErrTransient = errors.New("transient event source error")

// TransientError wraps an underlying cause and marks it retryable.
type TransientError struct {
	Cause error
}

func (e *TransientError) Error() string { return "transient: " + e.Cause.Error() }
func (e *TransientError) Unwrap() error { return e.Cause }
func (e *TransientError) Is(target error) bool {
	return target == ErrTransient
}

// IsTransient reports whether err (or anything it wraps) is retry-worthy.
func IsTransient(err error) bool {
	return errors.Is(err, ErrTransient)
}

// Client queries the remote event log. Implementations must return events
// strictly ordered by ascending ID.
type Client interface {
	// FetchSince returns events with ID >= sinceID, ascending, bounded by
	// an implementation-defined batch size.
	FetchSince(ctx context.Context, sinceID int64) ([]Event, error)

	// MostRecentID returns the highest ID currently known to the source.
	// Used only during fresh-install bootstrap (see engine package).
	MostRecentID(ctx context.Context) (int64, error)
}

package domain

import (
	"errors"
	"fmt"
)

// Common domain errors
var (
	ErrLoanNotFound       = errors.New("loan not found in local store")
	ErrQueueItemNotFound  = errors.New("queue item not found")
	ErrQueueItemNotFailed = errors.New("queue item is not in failed status")
	ErrPayloadCorrupt     = errors.New("queued payload is corrupted")
	ErrUnknownEventKind   = errors.New("unknown event kind")
)

// RecordErrors (validation of incoming events)
var (
	ErrAmountInvalid      = errors.New("amount must be greater than zero")
	ErrInvalidPaymentMode = errors.New("invalid payment mode")
	ErrPromiseDatePast    = errors.New("promise date cannot be in the past")
	ErrNoteEmpty          = errors.New("note text is required")
	ErrAgentRequired      = errors.New("agent id is required")
)

// TransportError wraps a network-level failure (unreachable host, timeout).
// Always retryable: the request may never have reached the backend.
type TransportError struct {
	Err error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("transport error: %v", e.Err)
}

func (e *TransportError) Unwrap() error {
	return e.Err
}

// ServerError wraps a non-2xx backend response
type ServerError struct {
	StatusCode int
	Body       string
}

func (e *ServerError) Error() string {
	return fmt.Sprintf("server returned %d: %s", e.StatusCode, e.Body)
}

// IsRetryable classifies a sync failure. Network errors, 5xx and 429 are
// transient; other 4xx mean the payload was permanently rejected. Errors
// with no recognizable shape default to retryable, which only delays a
// terminal failure until the retry budget runs out.
func IsRetryable(err error) bool {
	if errors.Is(err, ErrPayloadCorrupt) || errors.Is(err, ErrUnknownEventKind) {
		return false
	}

	var serverErr *ServerError
	if errors.As(err, &serverErr) {
		return serverErr.StatusCode >= 500 || serverErr.StatusCode == 429
	}

	return true
}

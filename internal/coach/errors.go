package coach

import (
	"errors"
	"fmt"

	"github.com/ashureev/horizon-coach/internal/microcheck"
)

var (
	// ErrEmptyMessage rejects a turn with no text before any state changes.
	ErrEmptyMessage = errors.New("message text is empty")

	// ErrMissingSessionID rejects a request without a session id.
	ErrMissingSessionID = errors.New("session id is required")

	// ErrPendingMicrocheck matches any *PendingMicrocheckError.
	ErrPendingMicrocheck = errors.New("microcheck pending")

	// ErrMicrocheckMismatch is returned when a submission names a microcheck
	// that is not the one pending. Nothing changes.
	ErrMicrocheckMismatch = microcheck.ErrMismatch

	// ErrPersistence matches any *PersistenceError.
	ErrPersistence = errors.New("persistence failure")

	// ErrUpstream matches any *UpstreamError.
	ErrUpstream = errors.New("upstream stream failure")
)

// PendingMicrocheckError blocks chat until the named microcheck is submitted.
type PendingMicrocheckError struct {
	MicrocheckID string
}

func (e *PendingMicrocheckError) Error() string {
	return fmt.Sprintf("microcheck %s must be submitted before chatting", e.MicrocheckID)
}

// Is matches ErrPendingMicrocheck.
func (e *PendingMicrocheckError) Is(target error) bool { return target == ErrPendingMicrocheck }

// PersistenceError reports a failed load, save or delete. In-memory state is
// left as it was when the call failed.
type PersistenceError struct {
	Op  string
	Err error
}

func (e *PersistenceError) Error() string { return fmt.Sprintf("%s session: %v", e.Op, e.Err) }

// Unwrap returns the store error.
func (e *PersistenceError) Unwrap() error { return e.Err }

// Is matches ErrPersistence.
func (e *PersistenceError) Is(target error) bool { return target == ErrPersistence }

// UpstreamError reports a model stream that failed mid-turn. Tokens already
// delivered stay delivered.
type UpstreamError struct {
	Err error
}

func (e *UpstreamError) Error() string { return fmt.Sprintf("model stream: %v", e.Err) }

// Unwrap returns the provider error.
func (e *UpstreamError) Unwrap() error { return e.Err }

// Is matches ErrUpstream.
func (e *UpstreamError) Is(target error) bool { return target == ErrUpstream }

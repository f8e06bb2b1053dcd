package engine

import (
	"errors"
	"fmt"
)

// ErrForbidden is returned when the actor is not the party a guard
// requires (wrong side of the engagement, or not a participant at all).
var ErrForbidden = errors.New("engine: actor not permitted")

// ErrConflict is returned for out-of-order transitions: the order or
// milestone is not in the state the operation requires, or a concurrent
// writer got there first (the conditional store update matched no row).
var ErrConflict = errors.New("engine: invalid state transition")

// ValidationError aborts an operation before any side effect runs.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("engine: invalid %s: %s", e.Field, e.Reason)
}

// UploadError wraps a durable-storage write failure. The order status
// is left unchanged so the user can retry.
type UploadError struct {
	Err error
}

func (e *UploadError) Error() string { return "engine: deliverable upload failed: " + e.Err.Error() }
func (e *UploadError) Unwrap() error { return e.Err }

// PersistError wraps a ledger write failure after the preceding durable
// side effect (upload or payment release) already succeeded.
type PersistError struct {
	Op  string
	Err error
}

func (e *PersistError) Error() string {
	return fmt.Sprintf("engine: %s: ledger write failed: %v", e.Op, e.Err)
}
func (e *PersistError) Unwrap() error { return e.Err }

// PaymentReleaseError wraps a gateway rejection or failure. The order
// stays Submitted and the approval is user-retryable.
type PaymentReleaseError struct {
	Err error
}

func (e *PaymentReleaseError) Error() string {
	return "engine: payment release failed: " + e.Err.Error()
}
func (e *PaymentReleaseError) Unwrap() error { return e.Err }

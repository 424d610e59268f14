package errors

import (
	stderrors "errors"
	"fmt"
	"time"
)

/*
ValidationError signals that a request was rejected before it was ever
dispatched: a missing required scope identifier, a blank memory id, or a
filter expression that does not parse to a valid boolean tree.
*/
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("validation failed for %s: %s", e.Field, e.Reason)
}

// NewValidation builds a ValidationError for a single offending field.
func NewValidation(field, reason string) *ValidationError {
	return &ValidationError{Field: field, Reason: reason}
}

/*
ClientError wraps a failure that originated inside the memory store or on the
wire between us and it. NotFound marks the special case of an id-scoped
operation targeting a memory that no longer exists, which dispatch policy
turns into a clean empty result instead of a fault.
*/
type ClientError struct {
	Op       string
	Cause    error
	NotFound bool
}

func (e *ClientError) Error() string {
	if e.NotFound {
		return fmt.Sprintf("%s: memory not found: %v", e.Op, e.Cause)
	}
	return fmt.Sprintf("%s: client error: %v", e.Op, e.Cause)
}

func (e *ClientError) Unwrap() error {
	return e.Cause
}

// NewClient wraps a store-level failure for the given operation.
func NewClient(op string, cause error) *ClientError {
	return &ClientError{Op: op, Cause: cause}
}

// NewNotFound wraps a missing-memory failure for the given operation.
func NewNotFound(op string, cause error) *ClientError {
	return &ClientError{Op: op, Cause: cause, NotFound: true}
}

/*
TimeoutError is raised to the caller of a waited submission when the task did
not complete in time. The task itself has been requested to cancel, but
cancellation is cooperative and side effects may still land afterwards.
*/
type TimeoutError struct {
	Op    string
	After time.Duration
}

func (e *TimeoutError) Error() string {
	return fmt.Sprintf("%s: timed out after %s", e.Op, e.After)
}

/*
LoopUnavailableError means the background loop is not in a state that accepts
submissions. Callers fail fast instead of hanging on a dead loop.
*/
type LoopUnavailableError struct {
	State string
}

func (e *LoopUnavailableError) Error() string {
	return fmt.Sprintf("background loop unavailable (state: %s)", e.State)
}

// IsNotFound reports whether err is a ClientError for a missing memory.
func IsNotFound(err error) bool {
	var ce *ClientError
	return stderrors.As(err, &ce) && ce.NotFound
}

// IsTimeout reports whether err is a TimeoutError.
func IsTimeout(err error) bool {
	var te *TimeoutError
	return stderrors.As(err, &te)
}

// IsValidation reports whether err is a ValidationError.
func IsValidation(err error) bool {
	var ve *ValidationError
	return stderrors.As(err, &ve)
}

// IsLoopUnavailable reports whether err is a LoopUnavailableError.
func IsLoopUnavailable(err error) bool {
	var le *LoopUnavailableError
	return stderrors.As(err, &le)
}

// Package agenterr defines the error taxonomy the agent graph and its
// collaborators use. Kinds map 1:1 to the error table the core's design
// specifies; every user-visible failure is eventually converted into a
// well-formed assistant message rather than escaping as a raw error.
package agenterr

import (
	"errors"
	"fmt"
)

// Sentinel errors for conditions with no extra payload.
var (
	// ErrNotFound marks a read miss that Repository callers must treat as an
	// empty/absent sentinel, never as a user-visible failure.
	ErrNotFound = errors.New("agenterr: not found")

	// ErrRateLimited indicates a rate limiter blocked a caller; this is
	// transparent to the end user (the caller simply waited).
	ErrRateLimited = errors.New("agenterr: rate limited")

	// ErrCancelled indicates the caller's context was cancelled mid-operation.
	ErrCancelled = errors.New("agenterr: cancelled")

	// ErrNotAuthenticated marks a request with no resolvable principal.
	ErrNotAuthenticated = errors.New("agenterr: not authenticated")
)

// AllProvidersExhaustedError is returned by the provider multiplexer when
// every candidate provider failed or was unavailable.
type AllProvidersExhaustedError struct {
	Tried    []string
	LastErr  error
}

func (e *AllProvidersExhaustedError) Error() string {
	return fmt.Sprintf("agenterr: all providers exhausted (tried %v): %v", e.Tried, e.LastErr)
}

func (e *AllProvidersExhaustedError) Unwrap() error { return e.LastErr }

// RecursionLimitError is returned when the agent graph's tool loop would
// exceed its configured depth cap.
type RecursionLimitError struct {
	Cap   int
	Depth int
}

func (e *RecursionLimitError) Error() string {
	return fmt.Sprintf("agenterr: tool loop depth %d exceeds cap %d", e.Depth, e.Cap)
}

// RepositoryError wraps a failure surfaced by the Repository. Per the design,
// writes propagate this error; reads instead return an empty/absent value
// and never construct one of these.
type RepositoryError struct {
	Op  string
	Err error
}

func (e *RepositoryError) Error() string {
	return fmt.Sprintf("agenterr: repository %s: %v", e.Op, e.Err)
}

func (e *RepositoryError) Unwrap() error { return e.Err }

// ValidationError marks a tool-argument or preference-input validation
// failure. It is always recovered locally as a ToolResult error string; it
// never escapes as a raw error to AgentService callers.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("agenterr: validation failed for %q: %s", e.Field, e.Reason)
}

// DecryptFailureError marks a crypto box decrypt failure. Per the design this
// is never surfaced to the user: the caller treats it as "memory absent" and
// starts from a fresh MemoryView.
type DecryptFailureError struct {
	Err error
}

func (e *DecryptFailureError) Error() string {
	return fmt.Sprintf("agenterr: decrypt failure: %v", e.Err)
}

func (e *DecryptFailureError) Unwrap() error { return e.Err }

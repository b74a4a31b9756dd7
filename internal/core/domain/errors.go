package domain

import (
	"errors"
	"fmt"
)

// Domain errors represent ingestion failures.
// These are distinct from infrastructure errors.
var (
	// ErrNotFound indicates a requested entity does not exist.
	ErrNotFound = errors.New("not found")

	// ErrInvalidInput indicates malformed or invalid input.
	ErrInvalidInput = errors.New("invalid input")

	// ErrBreakerOpen indicates a source's circuit breaker is rejecting
	// calls. The caller should treat the source as yielding no data for
	// this run.
	ErrBreakerOpen = errors.New("circuit breaker open")

	// ErrMissingCredential indicates a source requires a credential that
	// is not configured. Adapters self-skip on this; it is never raised
	// past the adapter boundary.
	ErrMissingCredential = errors.New("missing credential")

	// ErrBudgetExhausted indicates the retry attempt budget ran out.
	ErrBudgetExhausted = errors.New("retry budget exhausted")

	// ErrRequestCeiling indicates a single logical request exceeded its
	// overall wall-clock ceiling, throttle waits included.
	ErrRequestCeiling = errors.New("request ceiling exceeded")
)

// TerminalSourceError is the final outcome of a failed retry sequence.
// It is the only failure the circuit breaker ever observes; individual
// throttling or transient events never surface as one.
type TerminalSourceError struct {
	// Source is the adapter name.
	Source string

	// Attempts is how many budgeted attempts were consumed.
	Attempts int

	// Err is the last underlying error.
	Err error
}

func (e *TerminalSourceError) Error() string {
	return fmt.Sprintf("source %s failed after %d attempts: %v", e.Source, e.Attempts, e.Err)
}

func (e *TerminalSourceError) Unwrap() error {
	return e.Err
}

// IsTerminal reports whether err is (or wraps) a TerminalSourceError.
func IsTerminal(err error) bool {
	var terminal *TerminalSourceError
	return errors.As(err, &terminal)
}

// APIError represents an upstream API error response.
type APIError struct {
	Source     string
	StatusCode int
	URL        string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("%s: API error %d (URL: %s)", e.Source, e.StatusCode, e.URL)
}

package domain

import (
	"context"
	"time"
)

// AttemptClass classifies the outcome of one HTTP attempt. Representing the
// outcome as an explicit value, rather than error-type sniffing at each call
// site, keeps the "throttling never consumes a retry" rule in one place.
type AttemptClass int

const (
	// AttemptSuccess is a usable response.
	AttemptSuccess AttemptClass = iota

	// AttemptThrottled is a server rate-limit signal (HTTP 429). Retried
	// without consuming the attempt budget.
	AttemptThrottled

	// AttemptTransient is a retryable failure (timeout, connection reset,
	// 5xx). Consumes one attempt.
	AttemptTransient

	// AttemptTerminal is a non-retryable failure (persistent 4xx other
	// than 429, malformed response).
	AttemptTerminal
)

// String returns the class name for logs.
func (c AttemptClass) String() string {
	switch c {
	case AttemptSuccess:
		return "success"
	case AttemptThrottled:
		return "throttled"
	case AttemptTransient:
		return "transient"
	case AttemptTerminal:
		return "terminal"
	default:
		return "unknown"
	}
}

// Attempt is the outcome of executing one HTTP attempt.
type Attempt struct {
	// Class tags the outcome.
	Class AttemptClass

	// RetryAfter is the server-requested wait. Only meaningful when
	// Class == AttemptThrottled; zero means the server sent no Retry-After.
	RetryAfter time.Duration

	// Err carries the underlying error for Transient and Terminal
	// outcomes.
	Err error
}

// Operation executes one HTTP attempt and classifies its outcome.
// The closure captures any decoded payload itself; retry policy only sees
// the classification.
type Operation func(ctx context.Context) Attempt

// Succeed builds a success outcome.
func Succeed() Attempt {
	return Attempt{Class: AttemptSuccess}
}

// Throttle builds a throttled outcome with the server-requested wait.
func Throttle(retryAfter time.Duration) Attempt {
	return Attempt{Class: AttemptThrottled, RetryAfter: retryAfter}
}

// Retryable builds a transient failure outcome.
func Retryable(err error) Attempt {
	return Attempt{Class: AttemptTransient, Err: err}
}

// Fail builds a terminal failure outcome.
func Fail(err error) Attempt {
	return Attempt{Class: AttemptTerminal, Err: err}
}

// ClassifyStatus maps an HTTP status code to an attempt class.
// 2xx success, 429 throttled, 408/5xx transient, remaining 4xx terminal.
func ClassifyStatus(code int) AttemptClass {
	switch {
	case code >= 200 && code < 300:
		return AttemptSuccess
	case code == 429:
		return AttemptThrottled
	case code == 408 || code >= 500:
		return AttemptTransient
	default:
		return AttemptTerminal
	}
}

package resilience

import (
	"context"
	"time"

	"github.com/custodia-labs/fundscan-cli/internal/core/domain"
	"github.com/custodia-labs/fundscan-cli/internal/logger"
)

// BreakerState is the circuit breaker state.
type BreakerState int

const (
	// StateClosed passes calls through normally.
	StateClosed BreakerState = iota

	// StateOpen rejects calls without touching the network.
	StateOpen

	// StateHalfOpen allows exactly one probe call through.
	StateHalfOpen
)

// String returns the state name for logs.
func (s BreakerState) String() string {
	switch s {
	case StateClosed:
		return "closed"
	case StateOpen:
		return "open"
	case StateHalfOpen:
		return "half-open"
	default:
		return "unknown"
	}
}

const (
	// DefaultFailureThreshold is the consecutive terminal failures that
	// open a breaker. Placeholder pending validation against real
	// upstream failure patterns; override per source in config.
	DefaultFailureThreshold = 3

	// DefaultCooldown is how long an open breaker rejects calls before
	// permitting a probe. Same placeholder caveat.
	DefaultCooldown = 60 * time.Second
)

// Breaker is a per-source circuit breaker. It counts consecutive terminal
// failures while closed, rejects calls while open, and permits a single
// probe once the cooldown has elapsed.
//
// A breaker is owned exclusively by its source's task for the lifetime of
// one run; no other task reads or writes it, so it carries no lock. State
// does not persist across runs.
type Breaker struct {
	source    string
	threshold int
	cooldown  time.Duration

	state    BreakerState
	failures int
	openedAt time.Time

	now func() time.Time
}

// NewBreaker creates a closed breaker for a source.
// Zero tunables fall back to the package defaults.
func NewBreaker(source string, threshold int, cooldown time.Duration) *Breaker {
	if threshold <= 0 {
		threshold = DefaultFailureThreshold
	}
	if cooldown <= 0 {
		cooldown = DefaultCooldown
	}
	return &Breaker{
		source:    source,
		threshold: threshold,
		cooldown:  cooldown,
		state:     StateClosed,
		now:       time.Now,
	}
}

// Allow reports whether a call may proceed. While open it returns
// domain.ErrBreakerOpen until the cooldown elapses, at which point the
// breaker moves to half-open and admits one probe.
func (b *Breaker) Allow() error {
	switch b.state {
	case StateClosed, StateHalfOpen:
		return nil
	case StateOpen:
		if b.now().Sub(b.openedAt) < b.cooldown {
			return domain.ErrBreakerOpen
		}
		b.transition(StateHalfOpen)
		return nil
	}
	return nil
}

// RecordSuccess notes a successful retry sequence. In half-open state the
// probe succeeded and the breaker closes; in any state the consecutive
// failure count resets to zero.
func (b *Breaker) RecordSuccess() {
	b.failures = 0
	if b.state != StateClosed {
		b.transition(StateClosed)
	}
}

// RecordFailure notes a terminal retry-sequence failure. A half-open probe
// failure reopens the breaker and restarts the cooldown; while closed, the
// threshold'th consecutive failure opens it.
func (b *Breaker) RecordFailure() {
	switch b.state {
	case StateHalfOpen:
		b.openedAt = b.now()
		b.transition(StateOpen)
	case StateClosed:
		b.failures++
		if b.failures >= b.threshold {
			b.openedAt = b.now()
			b.transition(StateOpen)
		}
	case StateOpen:
		// Nothing to do; calls are not reaching the network.
	}
}

// State returns the current breaker state.
func (b *Breaker) State() BreakerState {
	return b.state
}

// Failures returns the consecutive terminal failure count.
func (b *Breaker) Failures() int {
	return b.failures
}

func (b *Breaker) transition(to BreakerState) {
	from := b.state
	b.state = to
	logger.Info("circuit breaker %s: %s -> %s (failures=%d)", b.source, from, to, b.failures)
}

// Executor routes one logical request through a breaker-guarded retrier.
// The breaker observes only final outcomes: an entire retry sequence
// resolves to exactly one RecordSuccess or RecordFailure, and throttling
// events inside the sequence are invisible to it.
type Executor struct {
	breaker *Breaker
	retrier *Retrier
}

// NewExecutor pairs a breaker with a retrier for one source.
func NewExecutor(breaker *Breaker, retrier *Retrier) *Executor {
	return &Executor{breaker: breaker, retrier: retrier}
}

// Execute runs op if the breaker admits it, and records the sequence's
// final outcome.
func (e *Executor) Execute(ctx context.Context, op domain.Operation) error {
	if err := e.breaker.Allow(); err != nil {
		return err
	}
	if err := e.retrier.Do(ctx, op); err != nil {
		e.breaker.RecordFailure()
		return err
	}
	e.breaker.RecordSuccess()
	return nil
}

// Breaker exposes the underlying breaker, mainly for run summaries.
func (e *Executor) Breaker() *Breaker {
	return e.breaker
}

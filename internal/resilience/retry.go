// Package resilience implements the per-request retry policy and the
// per-source circuit breaker that guard every upstream call.
//
// The two layers are deliberately separated: the retrier absorbs transient
// errors and throttling inside one logical request, and the breaker only
// ever observes the final outcome of a full retry sequence. Normal
// rate-limited operation therefore can never trip a breaker.
package resilience

import (
	"context"
	"fmt"
	"math"
	"math/rand"
	"time"

	"github.com/custodia-labs/fundscan-cli/internal/core/domain"
	"github.com/custodia-labs/fundscan-cli/internal/logger"
)

const (
	// DefaultMaxAttempts is the budget of attempts per logical request.
	DefaultMaxAttempts = 3

	// DefaultBaseDelay is the base for exponential backoff.
	DefaultBaseDelay = 500 * time.Millisecond

	// DefaultJitterBound caps the random jitter added to each backoff.
	DefaultJitterBound = 250 * time.Millisecond

	// DefaultThrottleDelay is the wait after a 429 without Retry-After.
	DefaultThrottleDelay = 30 * time.Second

	// DefaultRequestCeiling bounds one logical request's total wall clock,
	// throttle waits included.
	DefaultRequestCeiling = 2 * time.Minute
)

// Retrier executes one logical request with bounded attempts.
//
// Transient failures consume one attempt each and back off exponentially
// with jitter. Throttled outcomes never consume an attempt: the retrier
// sleeps for the server's Retry-After (or ThrottleDelay) and reissues the
// identical request. Both paths are bounded by RequestCeiling, after which
// the request surfaces as a TerminalSourceError.
type Retrier struct {
	Source         string
	MaxAttempts    int
	BaseDelay      time.Duration
	JitterBound    time.Duration
	ThrottleDelay  time.Duration
	RequestCeiling time.Duration

	// sleep and now are injectable for tests.
	sleep func(ctx context.Context, d time.Duration) error
	now   func() time.Time
}

// NewRetrier creates a retrier for a source with the given tunables.
// Zero tunables fall back to the package defaults.
func NewRetrier(source string, maxAttempts int, baseDelay, jitterBound, throttleDelay, ceiling time.Duration) *Retrier {
	r := &Retrier{
		Source:         source,
		MaxAttempts:    maxAttempts,
		BaseDelay:      baseDelay,
		JitterBound:    jitterBound,
		ThrottleDelay:  throttleDelay,
		RequestCeiling: ceiling,
		sleep:          sleepCtx,
		now:            time.Now,
	}
	if r.MaxAttempts <= 0 {
		r.MaxAttempts = DefaultMaxAttempts
	}
	if r.BaseDelay <= 0 {
		r.BaseDelay = DefaultBaseDelay
	}
	if r.JitterBound < 0 {
		r.JitterBound = DefaultJitterBound
	}
	if r.ThrottleDelay <= 0 {
		r.ThrottleDelay = DefaultThrottleDelay
	}
	if r.RequestCeiling <= 0 {
		r.RequestCeiling = DefaultRequestCeiling
	}
	return r
}

// Do runs op until it succeeds, the attempt budget is exhausted, a terminal
// outcome is returned, or the request ceiling elapses. The returned error is
// nil or a *domain.TerminalSourceError.
func (r *Retrier) Do(ctx context.Context, op domain.Operation) error {
	start := r.now()
	attempts := 0
	var lastErr error

	for {
		if r.now().Sub(start) > r.RequestCeiling {
			return &domain.TerminalSourceError{
				Source:   r.Source,
				Attempts: attempts,
				Err:      domain.ErrRequestCeiling,
			}
		}

		attempt := op(ctx)
		switch attempt.Class {
		case domain.AttemptSuccess:
			return nil

		case domain.AttemptThrottled:
			// Off-budget by design: a 429 signals backpressure, not
			// unavailability.
			wait := attempt.RetryAfter
			if wait <= 0 {
				wait = r.ThrottleDelay
			}
			logger.Debug("%s: throttled, waiting %s before reissuing", r.Source, wait)
			if err := r.sleep(ctx, wait); err != nil {
				return &domain.TerminalSourceError{Source: r.Source, Attempts: attempts, Err: err}
			}

		case domain.AttemptTransient:
			attempts++
			lastErr = attempt.Err
			if attempts >= r.MaxAttempts {
				return &domain.TerminalSourceError{
					Source:   r.Source,
					Attempts: attempts,
					Err:      fmt.Errorf("%w: %w", domain.ErrBudgetExhausted, lastErr),
				}
			}
			wait := r.backoff(attempts)
			logger.Debug("%s: transient error (%v), attempt %d/%d, backing off %s",
				r.Source, attempt.Err, attempts, r.MaxAttempts, wait)
			if err := r.sleep(ctx, wait); err != nil {
				return &domain.TerminalSourceError{Source: r.Source, Attempts: attempts, Err: err}
			}

		case domain.AttemptTerminal:
			return &domain.TerminalSourceError{
				Source:   r.Source,
				Attempts: attempts,
				Err:      attempt.Err,
			}
		}
	}
}

// backoff returns base*2^(n-1) plus random jitter for the nth failure.
func (r *Retrier) backoff(n int) time.Duration {
	d := time.Duration(float64(r.BaseDelay) * math.Pow(2, float64(n-1)))
	if r.JitterBound > 0 {
		d += time.Duration(rand.Int63n(int64(r.JitterBound)))
	}
	return d
}

// sleepCtx sleeps for d, returning early with the context error if the
// context is cancelled first.
func sleepCtx(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

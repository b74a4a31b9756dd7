package resilience

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/custodia-labs/fundscan-cli/internal/core/domain"
)

func newTestBreaker(clock *testClock) *Breaker {
	b := NewBreaker("test", 3, 30*time.Second)
	b.now = clock.Now
	return b
}

func TestBreakerStaysClosedBelowThreshold(t *testing.T) {
	clock := newTestClock()
	b := newTestBreaker(clock)

	b.RecordFailure()
	b.RecordFailure()

	assert.Equal(t, StateClosed, b.State())
	assert.Equal(t, 2, b.Failures())
	assert.NoError(t, b.Allow())
}

func TestBreakerOpensAtThreshold(t *testing.T) {
	clock := newTestClock()
	b := newTestBreaker(clock)

	b.RecordFailure()
	b.RecordFailure()
	b.RecordFailure()

	assert.Equal(t, StateOpen, b.State())
	assert.ErrorIs(t, b.Allow(), domain.ErrBreakerOpen)
}

func TestBreakerSuccessResetsFailureCount(t *testing.T) {
	clock := newTestClock()
	b := newTestBreaker(clock)

	b.RecordFailure()
	b.RecordFailure()
	b.RecordSuccess()
	b.RecordFailure()
	b.RecordFailure()

	// The count is of consecutive failures; a success in between means
	// the breaker is still two short of the threshold.
	assert.Equal(t, StateClosed, b.State())
}

func TestBreakerHalfOpenProbeSuccessCloses(t *testing.T) {
	clock := newTestClock()
	b := newTestBreaker(clock)

	for i := 0; i < 3; i++ {
		b.RecordFailure()
	}
	require.Equal(t, StateOpen, b.State())

	// Before cooldown: still rejecting.
	clock.now = clock.now.Add(10 * time.Second)
	assert.ErrorIs(t, b.Allow(), domain.ErrBreakerOpen)

	// After cooldown: one probe allowed.
	clock.now = clock.now.Add(25 * time.Second)
	require.NoError(t, b.Allow())
	assert.Equal(t, StateHalfOpen, b.State())

	b.RecordSuccess()
	assert.Equal(t, StateClosed, b.State())
	assert.Equal(t, 0, b.Failures())
}

func TestBreakerHalfOpenProbeFailureReopens(t *testing.T) {
	clock := newTestClock()
	b := newTestBreaker(clock)

	for i := 0; i < 3; i++ {
		b.RecordFailure()
	}
	clock.now = clock.now.Add(31 * time.Second)
	require.NoError(t, b.Allow())
	require.Equal(t, StateHalfOpen, b.State())

	b.RecordFailure()
	assert.Equal(t, StateOpen, b.State())

	// Cooldown restarted from the probe failure.
	clock.now = clock.now.Add(20 * time.Second)
	assert.ErrorIs(t, b.Allow(), domain.ErrBreakerOpen)
	clock.now = clock.now.Add(11 * time.Second)
	assert.NoError(t, b.Allow())
}

func TestExecutorOpenBreakerSkipsNetwork(t *testing.T) {
	clock := newTestClock()
	b := newTestBreaker(clock)
	r := newTestRetrier(clock)
	e := NewExecutor(b, r)

	for i := 0; i < 3; i++ {
		b.RecordFailure()
	}

	calls := 0
	err := e.Execute(context.Background(), func(_ context.Context) domain.Attempt {
		calls++
		return domain.Succeed()
	})

	assert.ErrorIs(t, err, domain.ErrBreakerOpen)
	assert.Equal(t, 0, calls, "open breaker must not issue calls")
}

func TestExecutorThrottlingInvisibleToBreaker(t *testing.T) {
	clock := newTestClock()
	b := newTestBreaker(clock)
	r := newTestRetrier(clock)
	e := NewExecutor(b, r)

	// A long throttled stretch that eventually succeeds is a single
	// successful outcome from the breaker's point of view.
	calls := 0
	err := e.Execute(context.Background(), func(_ context.Context) domain.Attempt {
		calls++
		if calls <= 10 {
			return domain.Throttle(time.Second)
		}
		return domain.Succeed()
	})

	require.NoError(t, err)
	assert.Equal(t, StateClosed, b.State())
	assert.Equal(t, 0, b.Failures())
}

func TestExecutorRecordsOnlyFinalOutcome(t *testing.T) {
	clock := newTestClock()
	b := newTestBreaker(clock)
	r := newTestRetrier(clock)
	e := NewExecutor(b, r)

	// Three transient attempts inside one request exhaust the budget but
	// count as exactly one terminal failure on the breaker.
	err := e.Execute(context.Background(), func(_ context.Context) domain.Attempt {
		return domain.Retryable(errors.New("timeout"))
	})

	require.Error(t, err)
	assert.True(t, domain.IsTerminal(err))
	assert.Equal(t, 1, b.Failures())
	assert.Equal(t, StateClosed, b.State())
}

func TestExecutorTripsAfterRepeatedTerminalOutcomes(t *testing.T) {
	clock := newTestClock()
	b := newTestBreaker(clock)
	r := newTestRetrier(clock)
	e := NewExecutor(b, r)

	op := func(_ context.Context) domain.Attempt {
		return domain.Fail(errors.New("403 forbidden"))
	}

	for i := 0; i < 3; i++ {
		err := e.Execute(context.Background(), op)
		require.Error(t, err)
	}
	assert.Equal(t, StateOpen, b.State())

	// Subsequent calls short-circuit.
	err := e.Execute(context.Background(), op)
	assert.ErrorIs(t, err, domain.ErrBreakerOpen)
}

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

// testClock drives a retrier without real sleeps. Sleeps advance the
// clock and are recorded for assertions.
type testClock struct {
	now    time.Time
	sleeps []time.Duration
}

func newTestClock() *testClock {
	return &testClock{now: time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)}
}

func (c *testClock) Now() time.Time {
	return c.now
}

func (c *testClock) Sleep(_ context.Context, d time.Duration) error {
	c.sleeps = append(c.sleeps, d)
	c.now = c.now.Add(d)
	return nil
}

func newTestRetrier(clock *testClock) *Retrier {
	r := NewRetrier("test", 3, 100*time.Millisecond, 0, 5*time.Second, time.Minute)
	r.now = clock.Now
	r.sleep = clock.Sleep
	return r
}

func TestRetrierSuccessFirstAttempt(t *testing.T) {
	clock := newTestClock()
	r := newTestRetrier(clock)

	calls := 0
	err := r.Do(context.Background(), func(_ context.Context) domain.Attempt {
		calls++
		return domain.Succeed()
	})

	require.NoError(t, err)
	assert.Equal(t, 1, calls)
	assert.Empty(t, clock.sleeps)
}

func TestRetrierTransientConsumesBudget(t *testing.T) {
	clock := newTestClock()
	r := newTestRetrier(clock)

	calls := 0
	err := r.Do(context.Background(), func(_ context.Context) domain.Attempt {
		calls++
		return domain.Retryable(errors.New("connection reset"))
	})

	require.Error(t, err)
	var terminal *domain.TerminalSourceError
	require.ErrorAs(t, err, &terminal)
	assert.Equal(t, 3, terminal.Attempts)
	assert.ErrorIs(t, err, domain.ErrBudgetExhausted)
	assert.Equal(t, 3, calls)

	// Backoff doubles per consumed attempt; the final failure does not
	// sleep.
	require.Len(t, clock.sleeps, 2)
	assert.Equal(t, 100*time.Millisecond, clock.sleeps[0])
	assert.Equal(t, 200*time.Millisecond, clock.sleeps[1])
}

func TestRetrierRecoversWithinBudget(t *testing.T) {
	clock := newTestClock()
	r := newTestRetrier(clock)

	calls := 0
	err := r.Do(context.Background(), func(_ context.Context) domain.Attempt {
		calls++
		if calls < 3 {
			return domain.Retryable(errors.New("timeout"))
		}
		return domain.Succeed()
	})

	require.NoError(t, err)
	assert.Equal(t, 3, calls)
}

func TestRetrierThrottleDoesNotConsumeBudget(t *testing.T) {
	clock := newTestClock()
	r := newTestRetrier(clock)

	// Far more 429s than the 3-attempt budget; each uses the server's
	// Retry-After and the request still succeeds.
	calls := 0
	err := r.Do(context.Background(), func(_ context.Context) domain.Attempt {
		calls++
		if calls <= 5 {
			return domain.Throttle(2 * time.Second)
		}
		return domain.Succeed()
	})

	require.NoError(t, err)
	assert.Equal(t, 6, calls)
	require.Len(t, clock.sleeps, 5)
	for _, d := range clock.sleeps {
		assert.Equal(t, 2*time.Second, d)
	}
}

func TestRetrierThrottleFallsBackToDefault(t *testing.T) {
	clock := newTestClock()
	r := newTestRetrier(clock)

	calls := 0
	err := r.Do(context.Background(), func(_ context.Context) domain.Attempt {
		calls++
		if calls == 1 {
			return domain.Throttle(0) // 429 without Retry-After
		}
		return domain.Succeed()
	})

	require.NoError(t, err)
	require.Len(t, clock.sleeps, 1)
	assert.Equal(t, 5*time.Second, clock.sleeps[0])
}

func TestRetrierRetryAfterHonoured(t *testing.T) {
	clock := newTestClock()
	r := newTestRetrier(clock)

	calls := 0
	err := r.Do(context.Background(), func(_ context.Context) domain.Attempt {
		calls++
		if calls == 1 {
			return domain.Throttle(5 * time.Second)
		}
		return domain.Succeed()
	})

	require.NoError(t, err)
	assert.Equal(t, 2, calls)
	require.Len(t, clock.sleeps, 1)
	assert.Equal(t, 5*time.Second, clock.sleeps[0])
}

func TestRetrierCeilingBoundsThrottling(t *testing.T) {
	clock := newTestClock()
	r := newTestRetrier(clock)
	r.RequestCeiling = 10 * time.Second

	// Endless throttling must not stall forever: the wall-clock ceiling
	// converts it into a terminal failure.
	err := r.Do(context.Background(), func(_ context.Context) domain.Attempt {
		return domain.Throttle(4 * time.Second)
	})

	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrRequestCeiling)
	assert.True(t, domain.IsTerminal(err))
}

func TestRetrierTerminalFailsImmediately(t *testing.T) {
	clock := newTestClock()
	r := newTestRetrier(clock)

	calls := 0
	err := r.Do(context.Background(), func(_ context.Context) domain.Attempt {
		calls++
		return domain.Fail(errors.New("404 not found"))
	})

	require.Error(t, err)
	assert.True(t, domain.IsTerminal(err))
	assert.Equal(t, 1, calls)
	assert.Empty(t, clock.sleeps)
}

func TestRetrierCancelledDuringBackoff(t *testing.T) {
	clock := newTestClock()
	r := newTestRetrier(clock)
	r.sleep = func(ctx context.Context, _ time.Duration) error {
		return context.Canceled
	}

	err := r.Do(context.Background(), func(_ context.Context) domain.Attempt {
		return domain.Retryable(errors.New("timeout"))
	})

	require.Error(t, err)
	assert.ErrorIs(t, err, context.Canceled)
}

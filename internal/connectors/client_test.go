package connectors

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/custodia-labs/fundscan-cli/internal/core/domain"
	"github.com/custodia-labs/fundscan-cli/internal/resilience"
)

// fastGuard builds a real breaker-plus-retrier guard with millisecond
// delays so tests exercise the genuine policy without real waits.
func fastGuard(source string) *resilience.Executor {
	return resilience.NewExecutor(
		resilience.NewBreaker(source, 3, time.Second),
		resilience.NewRetrier(source, 3, time.Millisecond, 0, time.Millisecond, time.Minute),
	)
}

func get(url string) RequestFunc {
	return func(ctx context.Context) (*http.Request, error) {
		return http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	}
}

func TestDoRetriesServerErrors(t *testing.T) {
	requests := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		requests++
		if requests < 3 {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		w.Write([]byte(`ok`))
	}))
	defer srv.Close()

	c := NewClient("test", 1000, time.Second)
	var body string
	err := c.Do(context.Background(), fastGuard("test"), get(srv.URL), func(b []byte) error {
		body = string(b)
		return nil
	})

	require.NoError(t, err)
	assert.Equal(t, 3, requests)
	assert.Equal(t, "ok", body)
}

func TestDoThrottledThenSuccess(t *testing.T) {
	guard := fastGuard("test")
	requests := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		requests++
		if requests == 1 {
			w.WriteHeader(http.StatusTooManyRequests)
			return
		}
		w.Write([]byte(`ok`))
	}))
	defer srv.Close()

	c := NewClient("test", 1000, time.Second)
	err := c.Do(context.Background(), guard, get(srv.URL), func([]byte) error { return nil })

	require.NoError(t, err)
	assert.Equal(t, 2, requests)
	// Rate limiting is backpressure, not failure.
	assert.Equal(t, resilience.StateClosed, guard.Breaker().State())
	assert.Equal(t, 0, guard.Breaker().Failures())
}

func TestDoClientErrorIsTerminal(t *testing.T) {
	requests := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		requests++
		w.WriteHeader(http.StatusNotFound)
	}))
	defer srv.Close()

	c := NewClient("test", 1000, time.Second)
	err := c.Do(context.Background(), fastGuard("test"), get(srv.URL), func([]byte) error { return nil })

	require.Error(t, err)
	assert.True(t, domain.IsTerminal(err))
	assert.Equal(t, 1, requests, "4xx is not retried")

	var apiErr *domain.APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, http.StatusNotFound, apiErr.StatusCode)
}

func TestDoExhaustedBudgetSurfacesTerminal(t *testing.T) {
	requests := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		requests++
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	guard := fastGuard("test")
	c := NewClient("test", 1000, time.Second)
	err := c.Do(context.Background(), guard, get(srv.URL), func([]byte) error { return nil })

	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrBudgetExhausted)
	assert.Equal(t, 3, requests)
	assert.Equal(t, 1, guard.Breaker().Failures(), "one sequence, one breaker failure")
}

func TestParseRetryAfter(t *testing.T) {
	assert.Equal(t, time.Duration(0), ParseRetryAfter(""))
	assert.Equal(t, 5*time.Second, ParseRetryAfter("5"))
	assert.Equal(t, time.Duration(0), ParseRetryAfter("garbage"))

	// HTTP-date form.
	at := time.Now().Add(90 * time.Second).UTC().Format(http.TimeFormat)
	d := ParseRetryAfter(at)
	assert.InDelta(t, (90 * time.Second).Seconds(), d.Seconds(), 5)

	// Dates in the past clamp to zero.
	past := time.Now().Add(-time.Minute).UTC().Format(http.TimeFormat)
	assert.Equal(t, time.Duration(0), ParseRetryAfter(past))
}

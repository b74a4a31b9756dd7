package connectors

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"time"

	"golang.org/x/time/rate"

	"github.com/custodia-labs/fundscan-cli/internal/core/domain"
	"github.com/custodia-labs/fundscan-cli/internal/core/ports/driven"
)

const (
	// DefaultTimeout is the default HTTP request timeout.
	DefaultTimeout = 30 * time.Second

	// DefaultRate is the default proactive throttle (requests/second).
	DefaultRate = 2.0

	// HeaderRetryAfter is the retry-after header (seconds or HTTP date).
	HeaderRetryAfter = "Retry-After"

	// userAgent identifies fundscan to upstream APIs.
	userAgent = "fundscan-cli/1.0"

	// maxBodyBytes caps how much of a response body is read.
	maxBodyBytes = 8 << 20
)

// RequestFunc builds one HTTP request. It is invoked per attempt so a
// retried request is always freshly built.
type RequestFunc func(ctx context.Context) (*http.Request, error)

// DecodeFunc consumes a successful response body. A decode error is
// terminal: the payload is malformed, retrying will not help.
type DecodeFunc func(body []byte) error

// Client is the HTTP execution helper shared by source adapters. It pairs
// a proactive token-bucket throttle with outcome classification: every
// attempt resolves to exactly one domain.Attempt, and the caller's guard
// applies retry and breaker policy on top.
type Client struct {
	source string
	http   *http.Client
	bucket *rate.Limiter
}

// NewClient creates a client for a source. rps <= 0 and timeout <= 0 fall
// back to the defaults.
func NewClient(source string, rps float64, timeout time.Duration) *Client {
	if rps <= 0 {
		rps = DefaultRate
	}
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &Client{
		source: source,
		http:   &http.Client{Timeout: timeout},
		bucket: rate.NewLimiter(rate.Limit(rps), 1),
	}
}

// Do executes one logical request through guard. build is re-invoked on
// every attempt; decode runs once, on the successful response.
func (c *Client) Do(ctx context.Context, guard driven.CallGuard, build RequestFunc, decode DecodeFunc) error {
	op := func(ctx context.Context) domain.Attempt {
		if err := c.bucket.Wait(ctx); err != nil {
			return domain.Retryable(fmt.Errorf("rate limit wait: %w", err))
		}

		req, err := build(ctx)
		if err != nil {
			return domain.Fail(fmt.Errorf("build request: %w", err))
		}
		if req.Header.Get("User-Agent") == "" {
			req.Header.Set("User-Agent", userAgent)
		}

		resp, err := c.http.Do(req)
		if err != nil {
			// Timeouts and connection resets are transient.
			return domain.Retryable(err)
		}
		defer resp.Body.Close()

		switch domain.ClassifyStatus(resp.StatusCode) {
		case domain.AttemptSuccess:
			body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
			if err != nil {
				return domain.Retryable(fmt.Errorf("read body: %w", err))
			}
			if err := decode(body); err != nil {
				return domain.Fail(fmt.Errorf("decode response: %w", err))
			}
			return domain.Succeed()

		case domain.AttemptThrottled:
			return domain.Throttle(ParseRetryAfter(resp.Header.Get(HeaderRetryAfter)))

		case domain.AttemptTransient:
			return domain.Retryable(&domain.APIError{
				Source:     c.source,
				StatusCode: resp.StatusCode,
				URL:        req.URL.String(),
			})

		default:
			return domain.Fail(&domain.APIError{
				Source:     c.source,
				StatusCode: resp.StatusCode,
				URL:        req.URL.String(),
			})
		}
	}

	return guard.Execute(ctx, op)
}

// ParseRetryAfter parses a Retry-After header value, either delay-seconds
// or an HTTP date. Returns 0 when the header is absent or unparseable, in
// which case the retrier falls back to its configured default.
func ParseRetryAfter(value string) time.Duration {
	if value == "" {
		return 0
	}
	if seconds, err := strconv.Atoi(value); err == nil && seconds >= 0 {
		return time.Duration(seconds) * time.Second
	}
	if at, err := http.ParseTime(value); err == nil {
		if d := time.Until(at); d > 0 {
			return d
		}
	}
	return 0
}

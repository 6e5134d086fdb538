// Package transport provides HTTP round trippers shared by the upstream platform clients.
package transport

import (
	"bytes"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"time"
)

// DefaultMaxWait bounds a single Retry-After wait. Longer waits are not honoured and the 429 is returned as-is.
const DefaultMaxWait = 2 * time.Minute

// RateLimitedTransport retries requests answered with 429 Too Many Requests after the delay named by the Retry-After
// header
type RateLimitedTransport struct {
	base       http.RoundTripper
	maxWait    time.Duration
	maxRetries int
	logger     *slog.Logger
}

// Option configures a RateLimitedTransport
type Option func(*RateLimitedTransport)

// WithMaxWait sets the longest Retry-After delay that will be waited out
func WithMaxWait(d time.Duration) Option {
	return func(t *RateLimitedTransport) { t.maxWait = d }
}

// WithMaxRetries sets how many times one request is retried after a 429. Zero means unlimited
func WithMaxRetries(n int) Option {
	return func(t *RateLimitedTransport) { t.maxRetries = n }
}

// WithLogger sets the logger used to report rate limiting
func WithLogger(l *slog.Logger) Option {
	return func(t *RateLimitedTransport) { t.logger = l }
}

func WithRateLimiting(base http.RoundTripper, opts ...Option) *RateLimitedTransport {
	if base == nil {
		base = http.DefaultTransport
	}
	t := &RateLimitedTransport{base: base, maxWait: DefaultMaxWait, maxRetries: 5, logger: slog.Default()}
	for _, opt := range opts {
		opt(t)
	}
	return t
}

func (t *RateLimitedTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	// Preserve the original request body for retries
	var bodyBytes []byte
	if req.Body != nil {
		var err error
		bodyBytes, err = io.ReadAll(req.Body)
		if err != nil {
			return nil, fmt.Errorf("failed to read request body: %w", err)
		}
		err = req.Body.Close()
		if err != nil {
			return nil, fmt.Errorf("failed to close request body: %w", err)
		}
	}

	for attempt := 0; ; attempt++ {
		// Restore the request body for each attempt
		if bodyBytes != nil {
			req.Body = io.NopCloser(bytes.NewReader(bodyBytes))
		}

		resp, err := t.base.RoundTrip(req)
		if err != nil {
			return resp, err
		}

		if resp.StatusCode != http.StatusTooManyRequests {
			return resp, nil
		}
		if t.maxRetries > 0 && attempt >= t.maxRetries {
			return resp, nil
		}

		waitDuration := parseRetryAfter(resp.Header.Get("Retry-After"), time.Now())
		if waitDuration <= 0 || waitDuration > t.maxWait {
			return resp, nil
		}

		// Close the response body to free resources
		err = resp.Body.Close()
		if err != nil {
			return nil, fmt.Errorf("failed to close response body: %w", err)
		}

		t.logger.Warn("rate limited, waiting before retry",
			"host", req.URL.Host,
			"wait", waitDuration,
			"attempt", attempt+1,
		)
		timer := time.NewTimer(waitDuration)
		select {
		case <-req.Context().Done():
			timer.Stop()
			return nil, req.Context().Err()
		case <-timer.C:
		}
	}
}

// parseRetryAfter understands both the delay-seconds and HTTP-date forms of Retry-After
func parseRetryAfter(value string, now time.Time) time.Duration {
	if value == "" {
		return 0
	}
	if seconds, err := strconv.Atoi(value); err == nil {
		return time.Duration(seconds) * time.Second
	}
	if retryTime, err := http.ParseTime(value); err == nil {
		return retryTime.Sub(now)
	}
	return 0
}

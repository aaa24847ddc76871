// Package httputil provides the retrying HTTP client used for outbound
// webhook delivery.
package httputil

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/banshee-data/occupancy.report/internal/timeutil"
)

// Defaults applied by NewRetryingClient for zero config fields.
const (
	DefaultAttempts = 3
	DefaultBackoff  = 500 * time.Millisecond
	DefaultTimeout  = 10 * time.Second
)

// RetryConfig bounds delivery attempts. Backoff doubles after each failure.
type RetryConfig struct {
	Attempts int
	Backoff  time.Duration
}

// RetryingClient wraps an http.Client with bounded retries on transport
// errors and 5xx responses. 4xx responses fail immediately since resending
// the same payload cannot fix them.
type RetryingClient struct {
	client   *http.Client
	attempts int
	backoff  time.Duration
	clock    timeutil.Clock
}

// NewRetryingClient builds a client around the given http.Client. A nil
// client gets a fresh one with DefaultTimeout; a nil clock gets the real one.
func NewRetryingClient(client *http.Client, config RetryConfig, clock timeutil.Clock) *RetryingClient {
	if client == nil {
		client = &http.Client{Timeout: DefaultTimeout}
	}
	if config.Attempts <= 0 {
		config.Attempts = DefaultAttempts
	}
	if config.Backoff <= 0 {
		config.Backoff = DefaultBackoff
	}
	if clock == nil {
		clock = timeutil.RealClock{}
	}
	return &RetryingClient{
		client:   client,
		attempts: config.Attempts,
		backoff:  config.Backoff,
		clock:    clock,
	}
}

// PostJSON marshals payload once and POSTs it until a 2xx lands or the
// attempt budget runs out.
func (c *RetryingClient) PostJSON(ctx context.Context, url string, payload interface{}) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("failed to marshal payload: %w", err)
	}

	backoff := c.backoff
	var lastErr error
	for attempt := 1; attempt <= c.attempts; attempt++ {
		if attempt > 1 {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			c.clock.Sleep(backoff)
			backoff *= 2
		}

		req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
		if err != nil {
			return fmt.Errorf("failed to build request: %w", err)
		}
		req.Header.Set("Content-Type", "application/json")

		resp, err := c.client.Do(req)
		if err != nil {
			lastErr = err
			continue
		}
		io.Copy(io.Discard, resp.Body)
		resp.Body.Close()

		switch {
		case resp.StatusCode >= 200 && resp.StatusCode < 300:
			return nil
		case resp.StatusCode >= 500:
			lastErr = fmt.Errorf("server returned %d", resp.StatusCode)
		default:
			return fmt.Errorf("server returned %d", resp.StatusCode)
		}
	}
	return fmt.Errorf("gave up after %d attempts: %w", c.attempts, lastErr)
}

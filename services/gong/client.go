// Package gong is the authenticated REST client for the Gong web API. Every
// request reads the current session from the store, so a refresh that swaps
// the session is picked up by the very next call.
package gong

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"sync"
	"time"

	"github.com/avast/retry-go/v4"

	"gongbridge/models"
	"gongbridge/services/auth"
)

var (
	// ErrUnauthorized is returned for 401 responses. The text mirrors what
	// Gong's web tier reports when a session has gone stale.
	ErrUnauthorized = errors.New("authentication failed - session may be expired")

	// ErrRateLimited is returned when the API still refuses with 429 after
	// transport-level retries. The caller decides whether to back off.
	ErrRateLimited = errors.New("rate limit exceeded")
)

const (
	requestTimeout    = 30 * time.Second
	transportAttempts = 3
)

// statusError carries a non-2xx response through the retry loop.
type statusError struct {
	code int
	body string
}

func (e *statusError) Error() string {
	return fmt.Sprintf("gong api request failed: %d - %s", e.code, e.body)
}

// transient reports whether the status is worth retrying at the transport
// level. 401 is deliberately not transient; re-auth is the executor's job.
func (e *statusError) transient() bool {
	return e.code == http.StatusTooManyRequests || e.code >= 500
}

// Client makes authenticated requests against the session's Gong cell.
type Client struct {
	httpClient *http.Client
	store      *auth.Store
	limiter    *Limiter
	baseURL    string // overrides the session cell URL when set

	mu            sync.Mutex
	rateRemaining int
	rateReset     time.Time
}

// NewClient creates a client reading sessions from store and pacing requests
// through limiter.
func NewClient(store *auth.Store, limiter *Limiter) *Client {
	return &Client{
		httpClient:    &http.Client{Timeout: requestTimeout},
		store:         store,
		limiter:       limiter,
		rateRemaining: 1000,
	}
}

// SetBaseURL overrides the cell-derived base URL. Used for tests and for
// pinning a non-standard cell host.
func (c *Client) SetBaseURL(u string) {
	c.baseURL = u
}

// do executes one authenticated request. Transient failures (429, 5xx) are
// retried with backoff up to transportAttempts; a 401 surfaces immediately as
// ErrUnauthorized so the resilient layer can refresh and retry instead.
func (c *Client) do(ctx context.Context, method, endpoint string, query url.Values, body, out interface{}) error {
	if err := c.limiter.Acquire(ctx); err != nil {
		return fmt.Errorf("rate limiter: %w", err)
	}

	sess, ok := c.store.Current()
	if !ok {
		return fmt.Errorf("%w: no active session", auth.ErrAuthentication)
	}

	var payload []byte
	if body != nil {
		var err error
		payload, err = json.Marshal(body)
		if err != nil {
			return fmt.Errorf("marshal request: %w", err)
		}
	}

	err := retry.Do(
		func() error {
			return c.attempt(ctx, sess, method, endpoint, query, payload, out)
		},
		retry.Context(ctx),
		retry.Attempts(transportAttempts),
		retry.Delay(time.Second),
		retry.DelayType(retry.BackOffDelay),
		retry.LastErrorOnly(true),
		retry.RetryIf(func(err error) bool {
			var se *statusError
			return errors.As(err, &se) && se.transient()
		}),
	)
	if err != nil {
		var se *statusError
		if errors.As(err, &se) && se.code == http.StatusTooManyRequests {
			return fmt.Errorf("%w: %v", ErrRateLimited, err)
		}
		return err
	}
	return nil
}

func (c *Client) attempt(ctx context.Context, sess models.Session, method, endpoint string, query url.Values, payload []byte, out interface{}) error {
	base := c.baseURL
	if base == "" {
		base = auth.BaseURL(sess)
	}
	fullURL := base + endpoint
	if len(query) > 0 {
		fullURL += "?" + query.Encode()
	}

	var reqBody io.Reader
	if payload != nil {
		reqBody = bytes.NewReader(payload)
	}
	req, err := http.NewRequestWithContext(ctx, method, fullURL, reqBody)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}

	for name, value := range auth.RequestHeaders(sess, time.Now()) {
		req.Header.Set(name, value)
	}
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("gong api request: %w", err)
	}
	defer resp.Body.Close()

	c.updateRateInfo(resp)

	if resp.StatusCode == http.StatusUnauthorized {
		return fmt.Errorf("%w (status 401)", ErrUnauthorized)
	}
	if resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500 {
		respBody, _ := io.ReadAll(resp.Body)
		return &statusError{code: resp.StatusCode, body: string(respBody)}
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		respBody, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("gong api request failed: %s - %s", resp.Status, string(respBody))
	}

	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}

// updateRateInfo records the server's rate-limit headers for status reporting.
func (c *Client) updateRateInfo(resp *http.Response) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if v := resp.Header.Get("X-RateLimit-Remaining"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			c.rateRemaining = n
		}
	}
	if v := resp.Header.Get("X-RateLimit-Reset"); v != "" {
		if ts, err := strconv.ParseInt(v, 10, 64); err == nil {
			c.rateReset = time.Unix(ts, 0)
		}
	}
}

// RateLimitStatus is a snapshot of the server-reported rate limit state.
type RateLimitStatus struct {
	Remaining int       `json:"remaining"`
	ResetAt   time.Time `json:"resetAt,omitzero"`
}

// RateLimit returns the latest server-reported rate limit state.
func (c *Client) RateLimit() RateLimitStatus {
	c.mu.Lock()
	defer c.mu.Unlock()
	return RateLimitStatus{Remaining: c.rateRemaining, ResetAt: c.rateReset}
}

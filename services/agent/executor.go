package agent

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"
	"time"

	"gongbridge/models"
	"gongbridge/services/auth"
	"gongbridge/services/gong"
)

// DefaultMaxRetries bounds re-authentication: one refresh, one retried
// attempt. Worst case latency is one attempt + one capture + one attempt.
const DefaultMaxRetries = 1

// authSubstrings is the fallback classifier for unstructured transport text.
// Structured errors are classified by sentinel first; this list only catches
// prose from layers that lost the error tag.
var authSubstrings = []string{
	"authentication failed",
	"session may be expired",
	"unauthorized",
	"401",
}

// Refresher obtains and installs a fresh session. Satisfied by
// refresh.Coordinator.
type Refresher interface {
	Refresh(ctx context.Context, target string) (models.Session, error)
}

// Operation is one unit of work against the Gong API, reading the current
// session from the store it was built with.
type Operation func(ctx context.Context) error

// AuthClass reports whether the error looks like it would be fixed by
// re-authenticating. Tagged errors are checked first; the substring match is
// a boundary adapter for untagged text. Refresh timeouts are never
// auth-class: refreshing again is exactly the wrong response.
func AuthClass(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, gong.ErrUnauthorized) ||
		errors.Is(err, auth.ErrAuthentication) ||
		errors.Is(err, auth.ErrSessionExpired) {
		return true
	}
	msg := strings.ToLower(err.Error())
	for _, s := range authSubstrings {
		if strings.Contains(msg, s) {
			return true
		}
	}
	return false
}

// Executor wraps operations with refresh-and-retry on auth-class failures.
type Executor struct {
	store      *auth.Store
	refresher  Refresher
	target     string
	maxRetries int
}

// NewExecutor creates an executor refreshing through refresher when needed.
// target names the app the capture provider logs into.
func NewExecutor(store *auth.Store, refresher Refresher, target string) *Executor {
	return &Executor{
		store:      store,
		refresher:  refresher,
		target:     target,
		maxRetries: DefaultMaxRetries,
	}
}

// WithMaxRetries widens (or narrows) the refresh-and-retry bound. Values
// below zero are clamped to zero, meaning no refresh at all.
func (e *Executor) WithMaxRetries(n int) *Executor {
	if n < 0 {
		n = 0
	}
	e.maxRetries = n
	return e
}

// Run executes op, refreshing the session and retrying once when the failure
// is auth-class. Non-auth failures surface immediately. The caller's context
// bounds the whole attempt+refresh+retry sequence.
func (e *Executor) Run(ctx context.Context, name string, op Operation) error {
	var lastErr error

	for attempt := 0; attempt <= e.maxRetries; attempt++ {
		err := op(ctx)
		if err == nil {
			e.store.Touch(time.Now().UTC())
			return nil
		}
		lastErr = err

		if !AuthClass(err) {
			return err
		}
		if attempt >= e.maxRetries {
			break
		}

		log.Printf("%s: auth failure on attempt %d/%d, refreshing session: %v",
			name, attempt+1, e.maxRetries+1, err)
		if _, rerr := e.refresher.Refresh(ctx, e.target); rerr != nil {
			return fmt.Errorf("%s: %w (session refresh failed: %w)", name, err, rerr)
		}
	}

	return fmt.Errorf("%s failed after %d attempts: %w", name, e.maxRetries+1, lastErr)
}

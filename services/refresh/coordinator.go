// Package refresh obtains a fresh session through the external capture
// provider when the current one stops being usable.
//
// The capture flow may drive a browser through a full login ceremony and take
// minutes. The coordinator always runs it on its own goroutine and blocks the
// caller on the result with a hard timeout; the sync/async boundary is
// structural, never detected at runtime.
package refresh

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"golang.org/x/sync/singleflight"

	"gongbridge/models"
	"gongbridge/services/auth"
)

// ErrRefreshTimeout means the capture provider did not finish within the
// configured bound. Distinct from authentication failures on purpose: a
// timeout must not trigger another refresh attempt.
var ErrRefreshTimeout = errors.New("session refresh timed out")

// DefaultCaptureTimeout bounds the interactive capture flow.
const DefaultCaptureTimeout = 5 * time.Minute

// CaptureProvider is the external subsystem that performs interactive
// re-authentication and returns fresh artifacts. Implementations must honor
// context cancellation; captures can take minutes.
type CaptureProvider interface {
	CaptureFreshSession(ctx context.Context, target string) ([]models.Artifact, error)
}

// ProviderFunc adapts a function to the CaptureProvider interface.
type ProviderFunc func(ctx context.Context, target string) ([]models.Artifact, error)

func (f ProviderFunc) CaptureFreshSession(ctx context.Context, target string) ([]models.Artifact, error) {
	return f(ctx, target)
}

// Coordinator swaps in a fresh session when asked. Concurrent refreshes for
// the same target are coalesced into one in-flight capture.
type Coordinator struct {
	provider CaptureProvider
	auth     *auth.Service
	timeout  time.Duration
	group    singleflight.Group
	log      *slog.Logger
}

// NewCoordinator creates a coordinator. A non-positive timeout falls back to
// DefaultCaptureTimeout.
func NewCoordinator(provider CaptureProvider, authSvc *auth.Service, timeout time.Duration) *Coordinator {
	if timeout <= 0 {
		timeout = DefaultCaptureTimeout
	}
	return &Coordinator{
		provider: provider,
		auth:     authSvc,
		timeout:  timeout,
		log:      slog.Default().With("component", "refresh-coordinator"),
	}
}

// Refresh runs the capture provider, rebuilds a session from whatever it
// returns and installs it as current. Failures are terminal for this refresh
// cycle; the coordinator never re-retries internally.
//
// On timeout the in-flight capture is abandoned (its context is cancelled at
// the same bound) and ErrRefreshTimeout is returned with the store untouched.
func (c *Coordinator) Refresh(ctx context.Context, target string) (models.Session, error) {
	c.log.Info("refreshing session", "target", target, "timeout", c.timeout)

	ch := c.group.DoChan(target, func() (interface{}, error) {
		return c.capture(target)
	})

	timer := time.NewTimer(c.timeout)
	defer timer.Stop()

	select {
	case res := <-ch:
		if res.Err != nil {
			return models.Session{}, res.Err
		}
		sess := res.Val.(models.Session)
		c.log.Info("session refreshed", "session_id", sess.ID, "user", sess.UserEmail, "shared", res.Shared)
		return sess, nil
	case <-timer.C:
		return models.Session{}, fmt.Errorf("%w: capture provider did not finish within %s", ErrRefreshTimeout, c.timeout)
	case <-ctx.Done():
		return models.Session{}, fmt.Errorf("%w: %v", ErrRefreshTimeout, ctx.Err())
	}
}

// capture drives one capture flow end to end. Runs detached from the caller;
// its own context enforces the capture bound.
func (c *Coordinator) capture(target string) (interface{}, error) {
	ctx, cancel := context.WithTimeout(context.Background(), c.timeout)
	defer cancel()

	artifacts, err := c.provider.CaptureFreshSession(ctx, target)
	if err != nil {
		return nil, fmt.Errorf("capture fresh session: %w", err)
	}
	if len(artifacts) == 0 {
		return nil, fmt.Errorf("%w: refresh produced no artifacts", auth.ErrAuthentication)
	}

	// Build failures (no identity, already expired) propagate unchanged.
	return c.auth.BuildSession(artifacts)
}

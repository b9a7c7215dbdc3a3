package agent

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"gongbridge/models"
	"gongbridge/services/auth"
	"gongbridge/services/gong"
	"gongbridge/services/refresh"
)

type refresherFunc func(ctx context.Context, target string) (models.Session, error)

func (f refresherFunc) Refresh(ctx context.Context, target string) (models.Session, error) {
	return f(ctx, target)
}

func liveSession(t *testing.T) models.Session {
	t.Helper()
	now := time.Now().UTC()
	return models.Session{
		ID:        "sess-1",
		UserEmail: "a@b.com",
		CellID:    "t-123",
		Tokens: []models.Token{{
			Kind:      models.TokenLastLogin,
			Raw:       "raw-live",
			IssuedAt:  now.Add(-time.Hour),
			ExpiresAt: now.Add(time.Hour),
		}},
		CreatedAt: now,
		Active:    true,
	}
}

func TestExecutor_RefreshesOnceThenGivesUp(t *testing.T) {
	store := auth.NewStore()
	refreshes := 0
	exec := NewExecutor(store, refresherFunc(func(ctx context.Context, target string) (models.Session, error) {
		refreshes++
		return liveSession(t), nil
	}), DefaultTarget)

	attempts := 0
	err := exec.Run(context.Background(), "extract_calls", func(ctx context.Context) error {
		attempts++
		return fmt.Errorf("list calls: %w", gong.ErrUnauthorized)
	})

	require.Error(t, err)
	assert.Equal(t, 2, attempts)
	assert.Equal(t, 1, refreshes)
	assert.Contains(t, err.Error(), "after 2 attempts")
	assert.ErrorIs(t, err, gong.ErrUnauthorized)
}

func TestExecutor_WidenedRetryBound(t *testing.T) {
	store := auth.NewStore()
	refreshes := 0
	exec := NewExecutor(store, refresherFunc(func(ctx context.Context, target string) (models.Session, error) {
		refreshes++
		return liveSession(t), nil
	}), DefaultTarget).WithMaxRetries(2)

	attempts := 0
	err := exec.Run(context.Background(), "extract_calls", func(ctx context.Context) error {
		attempts++
		return gong.ErrUnauthorized
	})

	require.Error(t, err)
	assert.Equal(t, 3, attempts)
	assert.Equal(t, 2, refreshes)
	assert.Contains(t, err.Error(), "after 3 attempts")
}

func TestExecutor_ZeroRetriesNeverRefreshes(t *testing.T) {
	store := auth.NewStore()
	refreshes := 0
	exec := NewExecutor(store, refresherFunc(func(ctx context.Context, target string) (models.Session, error) {
		refreshes++
		return liveSession(t), nil
	}), DefaultTarget).WithMaxRetries(0)

	err := exec.Run(context.Background(), "extract_calls", func(ctx context.Context) error {
		return gong.ErrUnauthorized
	})

	require.Error(t, err)
	assert.Equal(t, 0, refreshes)
	assert.Contains(t, err.Error(), "after 1 attempts")
}

func TestExecutor_NonAuthErrorSurfacesImmediately(t *testing.T) {
	store := auth.NewStore()
	refreshes := 0
	exec := NewExecutor(store, refresherFunc(func(ctx context.Context, target string) (models.Session, error) {
		refreshes++
		return models.Session{}, nil
	}), DefaultTarget)

	boom := errors.New("connection reset by peer")
	attempts := 0
	err := exec.Run(context.Background(), "extract_users", func(ctx context.Context) error {
		attempts++
		return boom
	})

	require.ErrorIs(t, err, boom)
	assert.Equal(t, 1, attempts)
	assert.Equal(t, 0, refreshes)
	assert.NotContains(t, err.Error(), "after")
}

func TestExecutor_RecoversAfterRefresh(t *testing.T) {
	store := auth.NewStore()
	store.Replace(liveSession(t))

	refreshes := 0
	exec := NewExecutor(store, refresherFunc(func(ctx context.Context, target string) (models.Session, error) {
		refreshes++
		assert.Equal(t, DefaultTarget, target)
		return liveSession(t), nil
	}), DefaultTarget)

	attempts := 0
	err := exec.Run(context.Background(), "extract_deals", func(ctx context.Context) error {
		attempts++
		if attempts == 1 {
			// Untagged text from a layer that lost the sentinel.
			return errors.New("request rejected: 401 unauthorized")
		}
		return nil
	})

	require.NoError(t, err)
	assert.Equal(t, 2, attempts)
	assert.Equal(t, 1, refreshes)

	sess, ok := store.Current()
	require.True(t, ok)
	assert.False(t, sess.LastActivity.IsZero(), "success should touch the session")
}

func TestExecutor_RefreshFailureWrapsBothErrors(t *testing.T) {
	store := auth.NewStore()
	exec := NewExecutor(store, refresherFunc(func(ctx context.Context, target string) (models.Session, error) {
		return models.Session{}, fmt.Errorf("capture: %w", refresh.ErrRefreshTimeout)
	}), DefaultTarget)

	err := exec.Run(context.Background(), "extract_calls", func(ctx context.Context) error {
		return gong.ErrUnauthorized
	})

	require.Error(t, err)
	assert.ErrorIs(t, err, gong.ErrUnauthorized)
	assert.ErrorIs(t, err, refresh.ErrRefreshTimeout)
}

func TestAuthClass(t *testing.T) {
	cases := []struct {
		name string
		err  error
		want bool
	}{
		{"nil", nil, false},
		{"unauthorized sentinel", fmt.Errorf("get users: %w", gong.ErrUnauthorized), true},
		{"auth sentinel", fmt.Errorf("build: %w", auth.ErrAuthentication), true},
		{"expired sentinel", fmt.Errorf("validate: %w", auth.ErrSessionExpired), true},
		{"plain 401 text", errors.New("server said 401"), true},
		{"session may be expired text", errors.New("Session May Be Expired"), true},
		{"rate limit", fmt.Errorf("get calls: %w", gong.ErrRateLimited), false},
		{"refresh timeout", fmt.Errorf("refresh: %w", refresh.ErrRefreshTimeout), false},
		{"network", errors.New("dial tcp: connection refused"), false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, AuthClass(tc.err))
		})
	}
}

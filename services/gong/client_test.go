package gong

import (
	"compress/gzip"
	"context"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"gongbridge/models"
	"gongbridge/services/auth"
)

func testStore(t *testing.T) *auth.Store {
	t.Helper()
	now := time.Now()
	store := auth.NewStore()
	store.Replace(models.Session{
		ID:        "s-test",
		UserEmail: "a@b.com",
		CellID:    "us-14496",
		Tokens: []models.Token{{
			Kind:      models.TokenLastLogin,
			Raw:       "raw-live",
			IssuedAt:  now.Add(-time.Hour),
			ExpiresAt: now.Add(time.Hour),
		}},
		Cookies:   map[string]string{"g-session": "x"},
		CreatedAt: now,
		Active:    true,
	})
	return store
}

func testClient(t *testing.T, handler http.HandlerFunc) *Client {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	client := NewClient(testStore(t), NewLimiter(time.Millisecond))
	client.SetBaseURL(srv.URL)
	return client
}

func TestClient_AuthenticatedRequest(t *testing.T) {
	var gotCookie string
	client := testClient(t, func(w http.ResponseWriter, r *http.Request) {
		gotCookie = r.Header.Get("Cookie")
		assert.Equal(t, "/ajax/home/calls/my-calls", r.URL.Path)
		assert.Equal(t, "10", r.URL.Query().Get("limit"))
		w.Write([]byte(`{"calls": [{"id": "c-1"}, {"id": "c-2"}]}`))
	})

	calls, err := client.GetMyCalls(context.Background(), 10, 0)
	require.NoError(t, err)
	assert.Len(t, calls, 2)
	assert.Contains(t, gotCookie, "last_login_jwt=raw-live")
	assert.Contains(t, gotCookie, "g-session=x")
}

func TestClient_Unauthorized(t *testing.T) {
	var attempts atomic.Int32
	client := testClient(t, func(w http.ResponseWriter, r *http.Request) {
		attempts.Add(1)
		w.WriteHeader(http.StatusUnauthorized)
	})

	_, err := client.GetUsers(context.Background())
	assert.ErrorIs(t, err, ErrUnauthorized)
	assert.Equal(t, int32(1), attempts.Load(), "401 must not be retried at the transport level")
}

func TestClient_RetriesServerErrors(t *testing.T) {
	var attempts atomic.Int32
	client := testClient(t, func(w http.ResponseWriter, r *http.Request) {
		if attempts.Add(1) == 1 {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		w.Write([]byte(`{"users": [{"id": "u-1"}]}`))
	})

	users, err := client.GetUsers(context.Background())
	require.NoError(t, err)
	assert.Len(t, users, 1)
	assert.Equal(t, int32(2), attempts.Load())
}

func TestClient_RateLimitedAfterRetries(t *testing.T) {
	var attempts atomic.Int32
	client := testClient(t, func(w http.ResponseWriter, r *http.Request) {
		attempts.Add(1)
		w.WriteHeader(http.StatusTooManyRequests)
	})

	_, err := client.GetUsers(context.Background())
	assert.ErrorIs(t, err, ErrRateLimited)
	assert.Equal(t, int32(transportAttempts), attempts.Load())
}

func TestClient_NoSession(t *testing.T) {
	client := NewClient(auth.NewStore(), NewLimiter(time.Millisecond))
	client.SetBaseURL("http://127.0.0.1:0")

	_, err := client.GetUsers(context.Background())
	assert.ErrorIs(t, err, auth.ErrAuthentication)
}

func TestClient_OtherClientErrorsNotRetried(t *testing.T) {
	var attempts atomic.Int32
	client := testClient(t, func(w http.ResponseWriter, r *http.Request) {
		attempts.Add(1)
		http.Error(w, "bad request", http.StatusBadRequest)
	})

	_, err := client.GetUsers(context.Background())
	require.Error(t, err)
	assert.NotErrorIs(t, err, ErrUnauthorized)
	assert.Equal(t, int32(1), attempts.Load())
}

func TestClient_TracksRateHeaders(t *testing.T) {
	client := testClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("X-RateLimit-Remaining", "42")
		w.Header().Set("X-RateLimit-Reset", "1234567890")
		w.Write([]byte(`{}`))
	})

	_, err := client.GetLibraryData(context.Background(), "")
	require.NoError(t, err)

	status := client.RateLimit()
	assert.Equal(t, 42, status.Remaining)
	assert.Equal(t, time.Unix(1234567890, 0), status.ResetAt)
}

func TestLimiter_SpacesAcquires(t *testing.T) {
	const interval = 50 * time.Millisecond
	limiter := NewLimiter(interval)
	ctx := context.Background()

	start := time.Now()
	require.NoError(t, limiter.Acquire(ctx))
	first := time.Since(start)
	require.NoError(t, limiter.Acquire(ctx))
	second := time.Since(start)

	assert.Less(t, first, interval, "first acquire should not block")
	assert.GreaterOrEqual(t, second, interval, "second acquire must wait out the interval")
}

func TestLimiter_NoDelayAfterIdleGap(t *testing.T) {
	limiter := NewLimiter(20 * time.Millisecond)
	ctx := context.Background()

	require.NoError(t, limiter.Acquire(ctx))
	time.Sleep(30 * time.Millisecond)

	start := time.Now()
	require.NoError(t, limiter.Acquire(ctx))
	assert.Less(t, time.Since(start), 10*time.Millisecond)
}

func TestClient_GzipResponse(t *testing.T) {
	client := testClient(t, func(w http.ResponseWriter, r *http.Request) {
		// The Gong edge compresses when the request advertises gzip; the
		// transport must be the one advertising it so it also decompresses.
		require.Contains(t, r.Header.Get("Accept-Encoding"), "gzip")

		w.Header().Set("Content-Encoding", "gzip")
		w.Header().Set("Content-Type", "application/json")
		gz := gzip.NewWriter(w)
		gz.Write([]byte(`{"users": [{"id": "u-1"}]}`))
		gz.Close()
	})

	users, err := client.GetUsers(context.Background())
	require.NoError(t, err)
	assert.Len(t, users, 1)
}

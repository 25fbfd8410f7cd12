package providers

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/sony/gobreaker"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/yourorg/vetting-worker/internal/config"
)

func testProviderConfig(baseURL string) config.ProviderConfig {
	return config.ProviderConfig{
		BaseURL:   baseURL,
		RPS:       1000,
		Burst:     100,
		Timeout:   2 * time.Second,
		Retries:   3,
		RetryBase: time.Millisecond,
		Breaker:   config.BreakerConfig{ConsecutiveFailures: 50, OpenTimeout: time.Minute},
	}
}

func TestClient_RetriesServerErrors(t *testing.T) {
	t.Parallel()

	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) < 3 {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		_, _ = w.Write([]byte(`{"ok":true}`))
	}))
	defer srv.Close()

	c := NewClient("test", testProviderConfig(srv.URL))
	body, err := c.Get(context.Background(), "/x", nil)
	require.NoError(t, err)
	assert.JSONEq(t, `{"ok":true}`, string(body))
	assert.Equal(t, int32(3), calls.Load())
}

func TestClient_DoesNotRetryClientErrors(t *testing.T) {
	t.Parallel()

	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		http.Error(w, "bad address", http.StatusBadRequest)
	}))
	defer srv.Close()

	c := NewClient("test", testProviderConfig(srv.URL))
	_, err := c.Get(context.Background(), "/x", nil)
	require.Error(t, err)

	var se *StatusError
	require.True(t, errors.As(err, &se))
	assert.Equal(t, http.StatusBadRequest, se.Code)
	assert.Equal(t, int32(1), calls.Load())
}

func TestClient_BreakerOpens(t *testing.T) {
	t.Parallel()

	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	pc := testProviderConfig(srv.URL)
	pc.Retries = 1
	pc.Breaker.ConsecutiveFailures = 2
	c := NewClient("test", pc)

	for i := 0; i < 2; i++ {
		_, err := c.Get(context.Background(), "/x", nil)
		require.Error(t, err)
	}
	_, err := c.Get(context.Background(), "/x", nil)
	require.Error(t, err)
	assert.ErrorIs(t, err, gobreaker.ErrOpenState)
	assert.Equal(t, int32(2), calls.Load())
}

func TestClient_SendsHeadersAndJSON(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
		assert.Equal(t, "secret", r.Header.Get("Authorization"))
		_, _ = w.Write([]byte(`{}`))
	}))
	defer srv.Close()

	c := NewClient("test", testProviderConfig(srv.URL))
	c.header.Set("Authorization", "secret")
	_, err := c.Post(context.Background(), "", map[string]string{"a": "b"})
	require.NoError(t, err)
}

func TestRetryable(t *testing.T) {
	t.Parallel()

	assert.True(t, retryable(&StatusError{Code: 503}))
	assert.True(t, retryable(&StatusError{Code: 429}))
	assert.False(t, retryable(&StatusError{Code: 404}))
	assert.False(t, retryable(context.Canceled))
	assert.False(t, retryable(permanent("nope")))
	assert.True(t, retryable(errors.New("connection reset by peer")))
}

func TestRetry_StopsOnCancel(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithCancel(context.Background())
	calls := 0
	err := retry(ctx, 5, 50*time.Millisecond, func() error {
		calls++
		cancel()
		return errors.New("boom")
	})
	require.Error(t, err)
	assert.Equal(t, 1, calls)
}

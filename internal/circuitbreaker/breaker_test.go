package circuitbreaker

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func testConfig() Config {
	return Config{
		MaxRequests:      2,
		Interval:         time.Minute,
		Timeout:          50 * time.Millisecond,
		FailureThreshold: 3,
		SuccessThreshold: 2,
	}
}

func TestBreaker_OpensAfterConsecutiveFailures(t *testing.T) {
	cb := New("test", testConfig(), zap.NewNop())
	ctx := context.Background()
	boom := errors.New("boom")

	for i := 0; i < 3; i++ {
		err := cb.Execute(ctx, func() error { return boom })
		assert.ErrorIs(t, err, boom)
	}
	assert.Equal(t, StateOpen, cb.State())

	err := cb.Execute(ctx, func() error { return nil })
	assert.ErrorIs(t, err, ErrOpen, "an open breaker rejects without calling through")
}

func TestBreaker_SuccessResetsFailureStreak(t *testing.T) {
	cb := New("test", testConfig(), zap.NewNop())
	ctx := context.Background()
	boom := errors.New("boom")

	for i := 0; i < 2; i++ {
		_ = cb.Execute(ctx, func() error { return boom })
	}
	require.NoError(t, cb.Execute(ctx, func() error { return nil }))
	for i := 0; i < 2; i++ {
		_ = cb.Execute(ctx, func() error { return boom })
	}
	assert.Equal(t, StateClosed, cb.State(), "non-consecutive failures must not trip the breaker")
}

func TestBreaker_RecoversThroughHalfOpen(t *testing.T) {
	cb := New("test", testConfig(), zap.NewNop())
	ctx := context.Background()
	boom := errors.New("boom")

	for i := 0; i < 3; i++ {
		_ = cb.Execute(ctx, func() error { return boom })
	}
	require.Equal(t, StateOpen, cb.State())

	time.Sleep(60 * time.Millisecond)
	require.Equal(t, StateHalfOpen, cb.State())

	require.NoError(t, cb.Execute(ctx, func() error { return nil }))
	require.NoError(t, cb.Execute(ctx, func() error { return nil }))
	assert.Equal(t, StateClosed, cb.State())
}

func TestBreaker_HalfOpenFailureReopens(t *testing.T) {
	cb := New("test", testConfig(), zap.NewNop())
	ctx := context.Background()
	boom := errors.New("boom")

	for i := 0; i < 3; i++ {
		_ = cb.Execute(ctx, func() error { return boom })
	}
	time.Sleep(60 * time.Millisecond)
	require.Equal(t, StateHalfOpen, cb.State())

	_ = cb.Execute(ctx, func() error { return boom })
	assert.Equal(t, StateOpen, cb.State())
}

func TestHTTPWrapper_ServerErrorsTripBreaker(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "down", http.StatusInternalServerError)
	}))
	defer srv.Close()

	hw := WrapHTTP(srv.Client(), "llm-test", zap.NewNop())

	for i := 0; i < 5; i++ {
		req, err := http.NewRequest(http.MethodGet, srv.URL, nil)
		require.NoError(t, err)
		resp, err := hw.Do(req)
		require.NoError(t, err, "5xx is returned to the caller, not surfaced as a breaker error")
		require.Equal(t, http.StatusInternalServerError, resp.StatusCode)
		resp.Body.Close()
	}
	assert.Equal(t, StateOpen, hw.State())
}

func TestHTTPWrapper_ClientErrorsDoNotTrip(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "bad request", http.StatusBadRequest)
	}))
	defer srv.Close()

	hw := WrapHTTP(srv.Client(), "search-test", zap.NewNop())

	for i := 0; i < 10; i++ {
		req, err := http.NewRequest(http.MethodGet, srv.URL, nil)
		require.NoError(t, err)
		resp, err := hw.Do(req)
		require.NoError(t, err)
		resp.Body.Close()
	}
	assert.Equal(t, StateClosed, hw.State())
}

package fetcher_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/JakeFAU/ec-listings-pipeline/internal/fetcher"
	"github.com/JakeFAU/ec-listings-pipeline/internal/listing"
	"github.com/JakeFAU/ec-listings-pipeline/internal/ratelimit"
)

func newTestFetcher(maxRetries int) *fetcher.Fetcher {
	return fetcher.New(fetcher.Policy{
		UserAgent:   "listings-test/1.0",
		Timeout:     5 * time.Second,
		MaxRetries:  maxRetries,
		BackoffBase: time.Millisecond,
		BackoffMax:  5 * time.Millisecond,
	}, ratelimit.New(0), zap.NewNop())
}

func TestFetchSuccess(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		_, _ = w.Write([]byte("<html><body>ok</body></html>"))
	}))
	defer srv.Close()

	result, err := newTestFetcher(3).Fetch(context.Background(), srv.URL)
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, result.StatusCode)
	assert.Equal(t, 1, result.Attempts)
	assert.Contains(t, result.ContentType, "text/html")
	assert.Contains(t, string(result.Body), "ok")
}

func TestFetchRecoversFromServerErrors(t *testing.T) {
	t.Parallel()

	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) <= 3 {
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		_, _ = w.Write([]byte("<html>finally</html>"))
	}))
	defer srv.Close()

	result, err := newTestFetcher(3).Fetch(context.Background(), srv.URL)
	require.NoError(t, err)
	assert.Equal(t, 4, result.Attempts)
	assert.EqualValues(t, 4, calls.Load())
}

func TestFetchClientErrorIsTerminal(t *testing.T) {
	t.Parallel()

	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		http.NotFound(w, r)
	}))
	defer srv.Close()

	_, err := newTestFetcher(3).Fetch(context.Background(), srv.URL)
	require.Error(t, err)

	fe, ok := listing.AsFetchError(err)
	require.True(t, ok)
	assert.Equal(t, listing.FetchHTTPError, fe.Kind)
	assert.Equal(t, http.StatusNotFound, fe.StatusCode)
	assert.Equal(t, 1, fe.Attempts)
	assert.EqualValues(t, 1, calls.Load(), "client errors must not be retried")
}

func TestFetchTooManyRequestsIsRetried(t *testing.T) {
	t.Parallel()

	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) == 1 {
			w.Header().Set("Retry-After", "1")
			w.WriteHeader(http.StatusTooManyRequests)
			return
		}
		_, _ = w.Write([]byte("<html>welcome back</html>"))
	}))
	defer srv.Close()

	start := time.Now()
	result, err := newTestFetcher(2).Fetch(context.Background(), srv.URL)
	require.NoError(t, err)
	assert.Equal(t, 2, result.Attempts)
	// Retry-After of 1s is capped at the policy's 5ms backoff maximum.
	assert.Less(t, time.Since(start), time.Second)
}

func TestFetchRetriesExhausted(t *testing.T) {
	t.Parallel()

	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()

	_, err := newTestFetcher(2).Fetch(context.Background(), srv.URL)
	require.Error(t, err)

	fe, ok := listing.AsFetchError(err)
	require.True(t, ok)
	assert.Equal(t, listing.FetchRetriesExhausted, fe.Kind)
	assert.Equal(t, 3, fe.Attempts)
	assert.EqualValues(t, 3, calls.Load())

	cause, ok := listing.AsFetchError(fe.Cause)
	require.True(t, ok)
	assert.Equal(t, http.StatusBadGateway, cause.StatusCode)
}

func TestFetchNetworkError(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	srv.Close()

	_, err := newTestFetcher(1).Fetch(context.Background(), srv.URL)
	require.Error(t, err)

	fe, ok := listing.AsFetchError(err)
	require.True(t, ok)
	assert.Equal(t, listing.FetchRetriesExhausted, fe.Kind)
	assert.Equal(t, 2, fe.Attempts)
}

func TestFetchCancelledContext(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("<html>too late</html>"))
	}))
	defer srv.Close()

	_, err := newTestFetcher(0).Fetch(ctx, srv.URL)
	require.ErrorIs(t, err, context.Canceled)
}

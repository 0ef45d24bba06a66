package httpclient

import (
	"bytes"
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/sony/gobreaker/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/utafrali/storefront/pkg/logger"
)

func testBreakerConfig(name string) BreakerConfig {
	return BreakerConfig{
		Name:         name,
		MaxRequests:  1,
		Interval:     time.Minute,
		Timeout:      100 * time.Millisecond,
		FailureRatio: 0.5,
		MinRequests:  3,
	}
}

func post(t *testing.T, cb *BreakerClient, url string) (*http.Response, error) {
	t.Helper()
	return cb.Post(context.Background(), url, "application/json", strings.NewReader(`{}`))
}

func TestBreaker_ClosedPassesThrough(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusCreated)
	}))
	defer srv.Close()

	cb := NewBreakerClient(New(fastConfig(0)), testBreakerConfig("closed"), logger.Discard())
	resp, err := post(t, cb, srv.URL)
	require.NoError(t, err)
	_ = resp.Body.Close()

	assert.Equal(t, http.StatusCreated, resp.StatusCode)
	assert.Equal(t, gobreaker.StateClosed, cb.State())
	assert.Equal(t, "closed", cb.Name())
}

func TestBreaker_5xxBecomesStatusError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
		_, _ = w.Write([]byte("db down"))
	}))
	defer srv.Close()

	cb := NewBreakerClient(New(fastConfig(0)), testBreakerConfig("status"), logger.Discard())
	_, err := post(t, cb, srv.URL)

	var se *StatusError
	require.ErrorAs(t, err, &se)
	assert.Equal(t, http.StatusInternalServerError, se.StatusCode)
	assert.Equal(t, "db down", string(se.Body))
}

func TestBreaker_TripsAndRecovers(t *testing.T) {
	var healthy atomic.Bool
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if healthy.Load() {
			w.WriteHeader(http.StatusCreated)
			return
		}
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	cb := NewBreakerClient(New(fastConfig(0)), testBreakerConfig("trip"), logger.Discard())
	for i := 0; i < 3; i++ {
		_, err := post(t, cb, srv.URL)
		require.Error(t, err)
	}
	assert.Equal(t, gobreaker.StateOpen, cb.State())

	_, err := post(t, cb, srv.URL)
	assert.ErrorIs(t, err, ErrCircuitOpen)

	healthy.Store(true)
	time.Sleep(150 * time.Millisecond)
	assert.Equal(t, gobreaker.StateHalfOpen, cb.State())

	resp, err := post(t, cb, srv.URL)
	require.NoError(t, err)
	_ = resp.Body.Close()
	assert.Equal(t, gobreaker.StateClosed, cb.State())
}

func TestBreaker_4xxDoesNotTrip(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
	}))
	defer srv.Close()

	cb := NewBreakerClient(New(fastConfig(0)), testBreakerConfig("client-errors"), logger.Discard())
	for i := 0; i < 5; i++ {
		resp, err := post(t, cb, srv.URL)
		require.NoError(t, err)
		_ = resp.Body.Close()
		assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	}
	assert.Equal(t, gobreaker.StateClosed, cb.State())
}

func TestBreaker_FallbackWhenOpen(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()

	var invoked int32
	cb := NewBreakerClient(New(fastConfig(0)), testBreakerConfig("fallback"), logger.Discard()).
		WithFallback(func(ctx context.Context, err error) (*http.Response, error) {
			atomic.AddInt32(&invoked, 1)
			assert.True(t, errors.Is(err, ErrCircuitOpen))
			return &http.Response{
				StatusCode: http.StatusAccepted,
				Body:       io.NopCloser(bytes.NewReader(nil)),
			}, nil
		})

	for i := 0; i < 3; i++ {
		_, _ = post(t, cb, srv.URL)
	}

	resp, err := post(t, cb, srv.URL)
	require.NoError(t, err)
	assert.Equal(t, http.StatusAccepted, resp.StatusCode)
	assert.Equal(t, int32(1), atomic.LoadInt32(&invoked))
}

func TestBreaker_CancelledContextNotCounted(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(200 * time.Millisecond)
		w.WriteHeader(http.StatusCreated)
	}))
	defer srv.Close()

	cb := NewBreakerClient(New(fastConfig(0)), testBreakerConfig("cancel"), logger.Discard())
	for i := 0; i < 4; i++ {
		ctx, cancel := context.WithCancel(context.Background())
		go func() {
			time.Sleep(10 * time.Millisecond)
			cancel()
		}()
		_, err := cb.Post(ctx, srv.URL, "application/json", strings.NewReader(`{}`))
		require.Error(t, err)
	}
	assert.Equal(t, gobreaker.StateClosed, cb.State())
}

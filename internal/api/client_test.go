package api

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/mikesvoboda/nemotron-v3-home-security-intelligence-sub002/internal/retry"
	"github.com/mikesvoboda/nemotron-v3-home-security-intelligence-sub002/pkg/exception"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type healthResponse struct {
	Status   string            `json:"status"`
	Services map[string]string `json:"services"`
}

func TestGetJSON(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/system/health", r.URL.Path)
		assert.Equal(t, "verbose=1", r.URL.RawQuery)
		assert.Equal(t, "secret", r.Header.Get(APIKeyHeader))
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"status":"healthy","services":{"db":"healthy"}}`))
	}))
	defer srv.Close()

	c, err := NewClient(Options{BaseURL: srv.URL + "/api", APIKey: "secret"})
	require.NoError(t, err)

	var out healthResponse
	require.NoError(t, c.GetJSON(context.Background(), "/system/health?verbose=1", &out))
	assert.Equal(t, "healthy", out.Status)
	assert.Equal(t, map[string]string{"db": "healthy"}, out.Services)
}

func TestStatusError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
		_, _ = w.Write([]byte(`{"detail":"camera not found"}`))
	}))
	defer srv.Close()

	c, err := NewClient(Options{BaseURL: srv.URL})
	require.NoError(t, err)

	err = c.GetJSON(context.Background(), "/api/cameras/x", nil)
	se, ok := err.(*StatusError)
	require.True(t, ok, "%T", err)
	assert.Equal(t, http.StatusNotFound, se.Code)
	assert.Equal(t, "camera not found", se.Message)
	assert.False(t, se.RateLimited())
	assert.Contains(t, se.Error(), "404 camera not found")
	assert.ErrorIs(t, err, exception.ErrAPIUnexpected)
	assert.NotErrorIs(t, err, exception.ErrAPIRateLimited)
}

func TestRateLimitedWithoutQueue(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Retry-After", "7")
		w.WriteHeader(http.StatusTooManyRequests)
	}))
	defer srv.Close()

	c, err := NewClient(Options{BaseURL: srv.URL})
	require.NoError(t, err)

	err = c.GetJSON(context.Background(), "/api/events", nil)
	se, ok := err.(*StatusError)
	require.True(t, ok)
	assert.True(t, se.RateLimited())
	assert.Equal(t, 7*time.Second, se.RetryAfter)
	assert.ErrorIs(t, err, exception.ErrAPIRateLimited)
}

func TestRateLimitedGoesThroughRetryQueue(t *testing.T) {
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if hits.Add(1) <= 2 {
			w.WriteHeader(http.StatusTooManyRequests)
			return
		}
		_, _ = w.Write([]byte(`{"status":"degraded"}`))
	}))
	defer srv.Close()

	q := retry.NewQueue(retry.Options{
		MaxRetries: 3,
		BaseDelay:  time.Millisecond,
		Rand:       func() float64 { return 0 },
	})
	defer q.Close()
	c, err := NewClient(Options{BaseURL: srv.URL, Retry: q})
	require.NoError(t, err)

	var out healthResponse
	require.NoError(t, c.GetJSON(context.Background(), "/api/system/health", &out))
	assert.Equal(t, "degraded", out.Status)
	assert.Equal(t, int32(3), hits.Load())
	assert.Empty(t, q.Pending())
}

func TestDecodeFailure(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`not json`))
	}))
	defer srv.Close()

	c, err := NewClient(Options{BaseURL: srv.URL})
	require.NoError(t, err)
	var out healthResponse
	assert.Error(t, c.GetJSON(context.Background(), "/x", &out))

	_, err = NewClient(Options{})
	assert.Error(t, err)
}

func TestParseRetryAfter(t *testing.T) {
	now := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
	assert.Equal(t, 120*time.Second, ParseRetryAfter("120", now))
	assert.Equal(t, 30*time.Second, ParseRetryAfter(" 30 ", now))
	assert.Equal(t, 90*time.Second, ParseRetryAfter(now.Add(90*time.Second).Format(http.TimeFormat), now))
	assert.Zero(t, ParseRetryAfter(now.Add(-time.Minute).Format(http.TimeFormat), now))
	assert.Zero(t, ParseRetryAfter("", now))
	assert.Zero(t, ParseRetryAfter("-5", now))
	assert.Zero(t, ParseRetryAfter("soon", now))
	assert.Equal(t, 10*time.Second, ParseRetryAfter("010", now))
	assert.Zero(t, ParseRetryAfter("0x10", now))
}

func TestSystemHealth(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, EndpointSystemHealth, r.URL.Path)
		_, _ = w.Write([]byte(`{"status":"degraded","services":{"db":{"status":"healthy"},"detector":{"status":"unhealthy","message":"timeout"}},"timestamp":"2026-01-01T00:00:00Z"}`))
	}))
	defer srv.Close()

	c, err := NewClient(Options{BaseURL: srv.URL})
	require.NoError(t, err)
	h, err := c.SystemHealth(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "degraded", h.Status)
	assert.Equal(t, []string{"detector"}, h.Unhealthy())
	require.NotNil(t, h.Services["detector"].Message)
	assert.Equal(t, "timeout", *h.Services["detector"].Message)
}

func TestErrorMessage(t *testing.T) {
	assert.Equal(t, "camera not found", errorMessage([]byte(`{"detail":"camera not found"}`)))
	assert.Equal(t, "bad input", errorMessage([]byte(`{"detail":[{"loc":["query"]}],"message":"bad input"}`)))
	assert.Equal(t, "upstream down", errorMessage([]byte(" upstream down\n")))
}

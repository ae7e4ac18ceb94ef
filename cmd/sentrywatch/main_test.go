package main

import (
	"bytes"
	"context"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"sync/atomic"
	"testing"

	"github.com/mikesvoboda/nemotron-v3-home-security-intelligence-sub002/internal/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestVersion(t *testing.T) {
	var out bytes.Buffer
	root := newRootCmd()
	root.SetOut(&out)
	root.SetArgs([]string{"version"})
	require.NoError(t, root.Execute())
	assert.Equal(t, version+"\n", out.String())
}

func TestStatusCommand(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "k1", r.Header.Get("X-API-Key"))
		_, _ = w.Write([]byte(`{"status":"degraded","services":{"detector":{"status":"unhealthy"}}}`))
	}))
	defer srv.Close()
	t.Setenv("SENTRY_WATCH_SERVER_BASE_URL", srv.URL)
	t.Setenv("SENTRY_WATCH_SERVER_API_KEY", "k1")

	var out bytes.Buffer
	root := newRootCmd()
	root.SetOut(&out)
	root.SetArgs([]string{"status", "--env-file", filepath.Join(t.TempDir(), "none.env")})
	require.NoError(t, root.Execute())
	assert.Equal(t, "degraded (unhealthy: detector)\n", out.String())
}

func TestRunStatusReportsError(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusServiceUnavailable)
		_, _ = w.Write([]byte(`{"detail":"backend starting"}`))
	}))
	defer srv.Close()

	a := &app{cfg: config.Loaded{
		Server: config.ServerConfig{BaseURL: srv.URL},
		Poll:   config.PollConfig{RetryAttempts: -1},
	}}
	var out bytes.Buffer
	err := runStatus(context.Background(), a, false, &out)
	require.Error(t, err)
	assert.Contains(t, out.String(), "error:")
	assert.Equal(t, int32(1), calls.Load())
}

func TestRootRejectsInvalidConfig(t *testing.T) {
	t.Setenv("SENTRY_WATCH_PROFILE", "turbo")
	root := newRootCmd()
	root.SetOut(&bytes.Buffer{})
	root.SetArgs([]string{"status", "--env-file", filepath.Join(t.TempDir(), "none.env")})
	assert.Error(t, root.Execute())
}

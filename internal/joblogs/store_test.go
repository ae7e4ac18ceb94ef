package joblogs

import (
	"testing"
	"time"

	"github.com/mikesvoboda/nemotron-v3-home-security-intelligence-sub002/internal/dispatch"
	"github.com/mikesvoboda/nemotron-v3-home-security-intelligence-sub002/pkg/exception"
	"github.com/mikesvoboda/nemotron-v3-home-security-intelligence-sub002/pkg/websocket"
	"github.com/mikesvoboda/nemotron-v3-home-security-intelligence-sub002/pkg/websocket/wstest"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

func line(level, message string) websocket.Message {
	return websocket.JSONMessage{Value: map[string]any{
		"type": EventLog,
		"data": map[string]any{"level": level, "message": message, "timestamp": "2026-01-01T00:00:00Z"},
	}}
}

func TestLinesBoundedAndCounted(t *testing.T) {
	s := New(nil, Options{JobID: "j1", MaxLines: 2})
	require.True(t, s.Handle(line("INFO", "starting")))
	require.True(t, s.Handle(line("warning", "slow disk")))
	require.True(t, s.Handle(line("info", "done")))
	assert.False(t, s.Handle(websocket.JSONMessage{Value: map[string]any{"type": EventLog, "data": map[string]any{"level": "info"}}}))

	lines := s.Lines()
	require.Len(t, lines, 2)
	assert.Equal(t, "done", lines[0].Message)
	assert.Equal(t, map[string]int{"info": 2, "warning": 1}, s.CountsByLevel())
	assert.Equal(t, "j1", s.JobID())

	s.Clear()
	assert.Empty(t, s.Lines())
	assert.Empty(t, s.CountsByLevel())
}

func TestJobStatus(t *testing.T) {
	s := New(nil, Options{JobID: "j1"})
	var got []string
	s.SetCallbacks(Callbacks{OnStatus: func(j JobStatus) { got = append(got, j.Status) }})

	require.True(t, s.Handle(websocket.JSONMessage{Value: map[string]any{
		"type": EventStatus, "data": map[string]any{"status": StatusRunning, "progress": 0.5},
	}}))
	assert.False(t, s.Job().Terminal())
	require.NotNil(t, s.Job().Progress)
	assert.Equal(t, 0.5, *s.Job().Progress)

	require.True(t, s.Handle(websocket.JSONMessage{Value: map[string]any{
		"type": EventStatus, "data": map[string]any{"status": StatusFailed, "error": "boom"},
	}}))
	assert.True(t, s.Job().Terminal())
	assert.Equal(t, []string{StatusRunning, StatusFailed}, got)
}

func TestStreamsOverJobPath(t *testing.T) {
	dialer := wstest.NewDialer()
	m := websocket.NewManager(websocket.Options{Dialer: dialer})
	defer m.Close()

	key, err := Key("http://nvr.local", "job-9", "")
	require.NoError(t, err)
	assert.Equal(t, "ws://nvr.local/ws/jobs/job-9/logs", key.URL)

	_, err = Key("http://nvr.local", " ", "")
	assert.ErrorIs(t, err, exception.ErrInvalidArgument)

	s := New(m, Options{JobID: "job-9"})
	s.Start()
	assert.Zero(t, dialer.Dials.Load(), "disabled by default")

	s = New(m, Options{
		Options: dispatch.Options{Key: key, Config: wstest.FastConfig(), Enabled: true},
		JobID:   "job-9",
	})
	s.Start()
	defer s.Stop()

	conn := dialer.Next(t)
	assert.Equal(t, key, conn.Key)
	conn.Event(t, EventLog, map[string]any{"level": "info", "message": "hello"})
	require.Eventually(t, func() bool { return len(s.Lines()) == 1 }, 2*time.Second, time.Millisecond)
}

func TestNoJobIDNeverConnects(t *testing.T) {
	dialer := wstest.NewDialer()
	m := websocket.NewManager(websocket.Options{Dialer: dialer})
	defer m.Close()

	s := New(m, Options{Options: dispatch.Options{Key: websocket.Key{URL: "ws://nvr.local/ws/jobs//logs"}, Enabled: true}})
	s.Start()
	assert.Zero(t, dialer.Dials.Load())
}

package pipeline

import (
	"testing"

	"github.com/mikesvoboda/nemotron-v3-home-security-intelligence-sub002/internal/notify"
	"github.com/mikesvoboda/nemotron-v3-home-security-intelligence-sub002/pkg/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func queueStatus(depths map[string]float64, overall string) websocket.Message {
	queues := make([]any, 0, len(depths))
	for _, name := range []string{"detection", "analysis"} {
		if d, ok := depths[name]; ok {
			queues = append(queues, map[string]any{"name": name, "depth": d, "workers": 2.0})
		}
	}
	return websocket.JSONMessage{Value: map[string]any{
		"type": EventQueueStatus,
		"data": map[string]any{"queues": queues, "overall_status": overall},
	}}
}

func throughput(dpm float64) websocket.Message {
	return websocket.JSONMessage{Value: map[string]any{
		"type": EventThroughput,
		"data": map[string]any{"detections_per_minute": dpm, "events_per_minute": 1.0},
	}}
}

func TestQueueStatusIsSingleton(t *testing.T) {
	s := New(nil, Options{})
	assert.False(t, s.Queue().HasReceived)

	require.True(t, s.Handle(queueStatus(map[string]float64{"detection": 3, "analysis": 12}, HealthHealthy)))
	sum := s.Queue()
	assert.True(t, sum.HasReceived)
	assert.Equal(t, 15, sum.TotalDepth)
	assert.Equal(t, "analysis", sum.Longest.Name)
	assert.True(t, sum.HasBacklog)
	assert.False(t, sum.IsCritical)

	require.True(t, s.Handle(queueStatus(map[string]float64{"detection": 1}, HealthHealthy)))
	sum = s.Queue()
	assert.Equal(t, 1, sum.TotalDepth)
	assert.False(t, sum.HasBacklog)
	assert.Empty(t, s.Throughput())
}

func TestSubStreamsAreIndependent(t *testing.T) {
	s := New(nil, Options{MaxHistory: 2})
	var queueCalls, throughputCalls int
	s.SetCallbacks(Callbacks{
		OnQueueStatus: func(QueueStatus) { queueCalls++ },
		OnThroughput:  func(Throughput) { throughputCalls++ },
	})

	require.True(t, s.Handle(throughput(10)))
	require.True(t, s.Handle(throughput(20)))
	require.True(t, s.Handle(throughput(30)))
	assert.False(t, s.Handle(websocket.JSONMessage{Value: map[string]any{
		"type": EventThroughput, "data": map[string]any{"detections_per_minute": 5.0},
	}}))

	samples := s.Throughput()
	require.Len(t, samples, 2)
	assert.Equal(t, 30.0, samples[0].DetectionsPerMinute)
	assert.InDelta(t, 25.0, s.AverageDetectionsPerMinute(), 1e-9)
	assert.False(t, s.Queue().HasReceived)
	assert.Equal(t, 0, queueCalls)
	assert.Equal(t, 3, throughputCalls)

	s.Clear()
	assert.Zero(t, s.AverageDetectionsPerMinute())
}

func TestCriticalToasts(t *testing.T) {
	var toasts []notify.Toast
	s := New(nil, Options{Effects: notify.Effects{
		ShowToasts: true,
		Notifier:   notify.NotifierFunc(func(t notify.Toast) { toasts = append(toasts, t) }),
	}})

	require.True(t, s.Handle(queueStatus(map[string]float64{"detection": 60}, HealthHealthy)))
	require.True(t, s.Handle(queueStatus(map[string]float64{"detection": 70}, HealthHealthy)))
	require.True(t, s.Handle(queueStatus(map[string]float64{"detection": 2}, HealthCritical)))
	require.True(t, s.Handle(queueStatus(map[string]float64{"detection": 2}, HealthHealthy)))

	require.Len(t, toasts, 2)
	assert.Equal(t, "Pipeline backlog critical", toasts[0].Title)
	assert.Equal(t, "60 items queued, detection is the longest queue", toasts[0].Description)
	assert.Equal(t, "Pipeline backlog cleared", toasts[1].Title)
}

func TestQueueStatusRequiresQueues(t *testing.T) {
	s := New(nil, Options{})
	assert.False(t, s.Handle(websocket.JSONMessage{Value: map[string]any{
		"type": EventQueueStatus, "data": map[string]any{"overall_status": "healthy"},
	}}))
	assert.False(t, s.Queue().HasReceived)
}

package cameras

import (
	"testing"

	"github.com/mikesvoboda/nemotron-v3-home-security-intelligence-sub002/internal/notify"
	"github.com/mikesvoboda/nemotron-v3-home-security-intelligence-sub002/pkg/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func event(typ string, data map[string]any) websocket.Message {
	return websocket.JSONMessage{Value: map[string]any{"type": typ, "data": data}}
}

func TestStatusTransitions(t *testing.T) {
	s := New(nil, Options{})
	require.True(t, s.Handle(event(EventOnline, map[string]any{"camera_id": "front", "camera_name": "Front Door"})))
	require.True(t, s.Handle(event(EventOnline, map[string]any{"camera_id": "yard"})))
	require.True(t, s.Handle(event(EventOffline, map[string]any{"camera_id": "yard"})))
	require.True(t, s.Handle(event(EventError, map[string]any{"camera_id": "garage", "reason": "rtsp timeout"})))
	require.True(t, s.Handle(event(EventDisabled, map[string]any{"camera_id": "attic"})))

	front, ok := s.Camera("front")
	require.True(t, ok)
	assert.Equal(t, "Front Door", front.Name)
	assert.Equal(t, StatusOnline, front.Status)

	garage, _ := s.Camera("garage")
	assert.Equal(t, StatusError, garage.Status)
	assert.Equal(t, "rtsp timeout", garage.Reason)

	attic, _ := s.Camera("attic")
	assert.False(t, attic.Enabled)
	assert.Equal(t, StatusDisabled, attic.Status)

	assert.Equal(t, Counts{Online: 1, Offline: 1, Error: 1, Disabled: 1, Total: 4}, s.Counts())

	require.True(t, s.Handle(event(EventConfigUpdated, map[string]any{
		"camera_id": "front", "updated_fields": []any{"fps", "zones"},
	})))
	front, _ = s.Camera("front")
	assert.Equal(t, StatusOnline, front.Status)
	assert.Equal(t, EventConfigUpdated, front.LastEvent)

	cams := s.Cameras()
	require.Len(t, cams, 4)
	assert.Equal(t, "attic", cams[0].ID)
	assert.Len(t, s.History(), 6)
}

func TestCallbacksOrder(t *testing.T) {
	s := New(nil, Options{})
	var order []string
	var fields []string
	s.SetCallbacks(Callbacks{
		OnCameraEvent:   func(eventType string, e Event) { order = append(order, "any:"+eventType) },
		OnOffline:       func(e Event) { order = append(order, "offline") },
		OnConfigUpdated: func(e Event) { fields = e.UpdatedFields },
	})

	require.True(t, s.Handle(event(EventOffline, map[string]any{"camera_id": "yard"})))
	require.True(t, s.Handle(event(EventConfigUpdated, map[string]any{"camera_id": "yard", "updated_fields": []any{"name"}})))
	assert.Equal(t, []string{"any:camera.offline", "offline", "any:camera.config_updated"}, order)
	assert.Equal(t, []string{"name"}, fields)
}

func TestInvalidPayloadIgnored(t *testing.T) {
	s := New(nil, Options{})
	assert.False(t, s.Handle(event(EventOnline, map[string]any{"camera_name": "no id"})))
	assert.False(t, s.Handle(event(EventOnline, map[string]any{"camera_id": 12.0})))
	assert.Empty(t, s.Cameras())
}

func TestToastsAndInvalidation(t *testing.T) {
	var toasts []notify.Toast
	var keys []string
	s := New(nil, Options{Effects: notify.Effects{
		ShowToasts: true,
		Notifier:   notify.NotifierFunc(func(t notify.Toast) { toasts = append(toasts, t) }),
		Invalidator: notify.InvalidatorFunc(func(ks ...notify.QueryKey) {
			for _, k := range ks {
				keys = append(keys, k.String())
			}
		}),
	}})

	require.True(t, s.Handle(event(EventOnline, map[string]any{"camera_id": "yard"})))
	assert.Empty(t, toasts)
	require.True(t, s.Handle(event(EventOffline, map[string]any{"camera_id": "yard", "camera_name": "Yard"})))
	require.True(t, s.Handle(event(EventOnline, map[string]any{"camera_id": "yard"})))
	require.True(t, s.Handle(event(EventError, map[string]any{"camera_id": "door", "reason": "no signal"})))
	require.True(t, s.Handle(event(EventOnline, map[string]any{"camera_id": "porch", "previous_status": "offline"})))

	require.Len(t, toasts, 4)
	assert.Equal(t, notify.SeverityWarning, toasts[0].Severity)
	assert.Equal(t, "Yard went offline", toasts[0].Description)
	assert.Equal(t, "Camera back online", toasts[1].Title)
	assert.Equal(t, "door reported an error: no signal", toasts[2].Description)
	assert.Equal(t, "Camera back online", toasts[3].Title)

	assert.Equal(t, []string{"cameras", "cameras/yard"}, keys[:2])
	assert.Len(t, keys, 10)
}

package websocket

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGorillaDialerEndToEnd(t *testing.T) {
	protocols := make(chan string, 1)
	upgrader := websocket.Upgrader{
		Subprotocols: []string{APIKeyProtocol("secret")},
	}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()
		protocols <- conn.Subprotocol()

		_ = conn.WriteMessage(websocket.TextMessage, []byte(`{"type":"ping"}`))
		_ = conn.WriteMessage(websocket.TextMessage, []byte(`{"type":"system.health_changed","data":{"health":"healthy"}}`))
		for {
			mt, payload, err := conn.ReadMessage()
			if err != nil {
				return
			}
			if err := conn.WriteMessage(mt, payload); err != nil {
				return
			}
		}
	}))
	defer srv.Close()

	url, err := ResolveURL(srv.URL, "/ws/system")
	require.NoError(t, err)
	require.True(t, strings.HasPrefix(url, "ws://"))

	m := NewManager(Options{})
	defer m.Close()

	key := Key{URL: url, Protocols: []string{APIKeyProtocol("secret")}}
	cfg := DefaultConfig()
	cfg.AutoRespondToHeartbeat = true
	var r recorder
	unsub := m.Subscribe(key, r.subscriber(), cfg)
	defer unsub()

	select {
	case p := <-protocols:
		assert.Equal(t, "api-key.secret", p)
	case <-time.After(2 * time.Second):
		t.Fatal("server never accepted the connection")
	}

	// Either the server ping or our echoed automatic pong.
	require.Eventually(t, func() bool { return r.heartbeats.Load() >= 1 }, 2*time.Second, 5*time.Millisecond)
	assert.False(t, m.State(key).LastHeartbeat.IsZero())

	require.True(t, m.Send(key, map[string]string{"type": "hello"}))
	require.Eventually(t, func() bool {
		for _, msg := range r.received() {
			if jm, ok := msg.(JSONMessage); ok && jm.Value.(map[string]any)["type"] == "hello" {
				return true
			}
		}
		return false
	}, 2*time.Second, 5*time.Millisecond)
}

func TestResolveURL(t *testing.T) {
	cases := []struct {
		base, endpoint, want string
	}{
		{"http://example.com", "/ws/events", "ws://example.com/ws/events"},
		{"https://example.com/app/", "/ws/jobs/42/logs", "wss://example.com/app/ws/jobs/42/logs"},
		{"https://example.com", "/ws/events?token=x", "wss://example.com/ws/events?token=x"},
		{"wss://example.com", "ws/system", "wss://example.com/ws/system"},
	}
	for _, c := range cases {
		got, err := ResolveURL(c.base, c.endpoint)
		require.NoError(t, err)
		assert.Equal(t, c.want, got)
	}

	_, err := ResolveURL("ftp://example.com", "/ws")
	assert.Error(t, err)
}

func TestDecode(t *testing.T) {
	msg := Decode([]byte(`{"type":"alert_created","data":{"id":"a1"}}`))
	jm, ok := msg.(JSONMessage)
	require.True(t, ok)
	assert.Equal(t, "alert_created", jm.Value.(map[string]any)["type"])

	assert.Equal(t, TextMessage{Text: "hello"}, Decode([]byte("hello")))
	assert.IsType(t, JSONMessage{}, Decode([]byte(`"quoted"`)))
	assert.IsType(t, JSONMessage{}, Decode([]byte(`[1,2]`)))
}

func TestHeartbeatType(t *testing.T) {
	hb, ok := heartbeatType([]byte(`{"type":"ping","ts":1}`))
	assert.True(t, ok)
	assert.Equal(t, HeartbeatPing, hb)

	_, ok = heartbeatType([]byte(`{"type":"alert_created"}`))
	assert.False(t, ok)
	_, ok = heartbeatType([]byte(`{"type":1}`))
	assert.False(t, ok)
	_, ok = heartbeatType([]byte(`ping`))
	assert.False(t, ok)
}

func TestKeyString(t *testing.T) {
	assert.Equal(t, "ws://h/ws", Key{URL: "ws://h/ws"}.String())
	assert.Equal(t, "ws://h/ws#a,b", Key{URL: "ws://h/ws", Protocols: []string{"a", "b"}}.String())
	assert.Equal(t, "failed", StatusFailed.String())
}

package dispatch

import "github.com/mikesvoboda/nemotron-v3-home-security-intelligence-sub002/pkg/websocket"

// Envelope is the discriminated wire message {type, data?, timestamp?}.
type Envelope struct {
	Type      string
	Data      any
	Timestamp string
}

// ParseEnvelope narrows a decoded frame to an Envelope. Anything that is not a
// JSON object with a string type is rejected.
func ParseEnvelope(msg websocket.Message) (Envelope, bool) {
	jm, ok := msg.(websocket.JSONMessage)
	if !ok {
		return Envelope{}, false
	}
	obj, ok := jm.Value.(map[string]any)
	if !ok {
		return Envelope{}, false
	}
	typ, ok := obj["type"].(string)
	if !ok || typ == "" {
		return Envelope{}, false
	}
	env := Envelope{Type: typ, Data: obj["data"]}
	if ts, ok := obj["timestamp"].(string); ok {
		env.Timestamp = ts
	}
	return env, true
}

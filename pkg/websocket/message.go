package websocket

import (
	"github.com/bytedance/sonic"
	"github.com/tidwall/gjson"
)

// Message is an inbound frame, either JSONMessage or TextMessage.
type Message interface {
	isMessage()
}

// JSONMessage is a frame that parsed as JSON.
type JSONMessage struct {
	// Value is the decoded document (map[string]any, []any, string, float64, bool or nil).
	Value any
	// Raw is the original payload.
	Raw []byte
}

// TextMessage is a frame that did not parse as JSON and is delivered unchanged.
type TextMessage struct {
	Text string
}

func (JSONMessage) isMessage() {}
func (TextMessage) isMessage() {}

// Decode parses payload. A parse failure is not an error: the raw text is returned.
func Decode(payload []byte) Message {
	var v any
	if err := sonic.Unmarshal(payload, &v); err != nil {
		return TextMessage{Text: string(payload)}
	}
	return JSONMessage{Value: v, Raw: payload}
}

// Heartbeat frame types.
const (
	HeartbeatPing = "ping"
	HeartbeatPong = "pong"
)

var (
	pingPayload = []byte(`{"type":"ping"}`)
	pongPayload = []byte(`{"type":"pong"}`)
)

// heartbeatType returns "ping" or "pong" when payload is a heartbeat frame.
func heartbeatType(payload []byte) (string, bool) {
	if !gjson.ValidBytes(payload) {
		return "", false
	}
	t := gjson.GetBytes(payload, "type")
	if t.Type != gjson.String {
		return "", false
	}
	switch t.Str {
	case HeartbeatPing, HeartbeatPong:
		return t.Str, true
	default:
		return "", false
	}
}

// encode turns Send input into a text payload. Strings and byte slices are sent as-is.
func encode(data any) ([]byte, error) {
	switch v := data.(type) {
	case string:
		return []byte(v), nil
	case []byte:
		return v, nil
	default:
		return sonic.Marshal(v)
	}
}

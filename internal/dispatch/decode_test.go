package dispatch

import (
	"errors"
	"testing"

	"github.com/mikesvoboda/nemotron-v3-home-security-intelligence-sub002/pkg/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type reading struct {
	ID      string            `json:"id"`
	Level   string            `json:"level"`
	Count   int               `json:"count"`
	Note    *string           `json:"note"`
	Details map[string]string `json:"details"`
}

func (reading) RequiredFields() []string { return []string{"id", "level"} }

func (r reading) Validate() error {
	switch r.Level {
	case "low", "high":
		return nil
	}
	return errors.New("unknown level")
}

func TestDecode(t *testing.T) {
	got, err := Decode[reading](map[string]any{
		"id":      "r1",
		"level":   "high",
		"count":   3,
		"note":    nil,
		"details": map[string]any{"zone": "front"},
		"extra":   true,
	})
	require.NoError(t, err)
	assert.Equal(t, "r1", got.ID)
	assert.Equal(t, 3, got.Count)
	assert.Nil(t, got.Note)
	assert.Equal(t, map[string]string{"zone": "front"}, got.Details)

	whole, err := Decode[reading](map[string]any{"id": "r2", "level": "low", "count": 4.0})
	require.NoError(t, err)
	assert.Equal(t, 4, whole.Count)
}

func TestDecodeRejects(t *testing.T) {
	cases := map[string]any{
		"nil data":        nil,
		"not an object":   []any{"r1"},
		"missing level":   map[string]any{"id": "r1"},
		"null id":         map[string]any{"id": nil, "level": "low"},
		"wrong primitive": map[string]any{"id": 7, "level": "low"},
		"failed validate": map[string]any{"id": "r1", "level": "medium"},
		"fractional int":  map[string]any{"id": "r1", "level": "low", "count": 1.9},
	}
	for name, data := range cases {
		_, err := Decode[reading](data)
		assert.Error(t, err, name)
	}
}

func TestParseEnvelope(t *testing.T) {
	env, ok := ParseEnvelope(websocket.JSONMessage{Value: map[string]any{
		"type":      "queue.status",
		"data":      map[string]any{"pending": 1.0},
		"timestamp": "2026-01-02T03:04:05Z",
	}})
	require.True(t, ok)
	assert.Equal(t, "queue.status", env.Type)
	assert.Equal(t, "2026-01-02T03:04:05Z", env.Timestamp)
	assert.NotNil(t, env.Data)

	_, ok = ParseEnvelope(websocket.TextMessage{Text: "hello"})
	assert.False(t, ok)
	_, ok = ParseEnvelope(websocket.JSONMessage{Value: []any{1.0}})
	assert.False(t, ok)
	_, ok = ParseEnvelope(websocket.JSONMessage{Value: map[string]any{"type": 1.0}})
	assert.False(t, ok)
	_, ok = ParseEnvelope(websocket.JSONMessage{Value: map[string]any{"type": ""}})
	assert.False(t, ok)
}

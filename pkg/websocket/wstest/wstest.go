// Package wstest provides an in-memory Dialer for tests of code built on the
// websocket manager.
package wstest

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/bytedance/sonic"
	"github.com/mikesvoboda/nemotron-v3-home-security-intelligence-sub002/pkg/websocket"
)

var ErrRefused = errors.New("wstest: dial refused")

// Conn is an in-memory websocket.Conn.
type Conn struct {
	Key     websocket.Key
	Written chan []byte
	inbound chan []byte
	closed  chan struct{}
	once    sync.Once
}

func newConn(key websocket.Key) *Conn {
	return &Conn{
		Key:     key,
		Written: make(chan []byte, 256),
		inbound: make(chan []byte, 256),
		closed:  make(chan struct{}),
	}
}

func (c *Conn) Read(ctx context.Context) (websocket.MessageType, []byte, error) {
	select {
	case p := <-c.inbound:
		return websocket.MessageText, p, nil
	case <-c.closed:
		return 0, nil, &websocket.CloseError{Code: websocket.CloseAbnormal, Reason: "closed"}
	}
}

func (c *Conn) Write(ctx context.Context, msgType websocket.MessageType, payload []byte) error {
	select {
	case c.Written <- payload:
		return nil
	case <-c.closed:
		return &websocket.CloseError{Code: websocket.CloseAbnormal, Reason: "closed"}
	}
}

func (c *Conn) Close(code websocket.CloseCode, reason string) error {
	c.once.Do(func() { close(c.closed) })
	return nil
}

// Closed reports whether either side closed the connection.
func (c *Conn) Closed() bool {
	select {
	case <-c.closed:
		return true
	default:
		return false
	}
}

// Push delivers a frame to the client. Strings and byte slices are sent as-is,
// anything else is JSON encoded.
func (c *Conn) Push(t testing.TB, v any) {
	t.Helper()
	var payload []byte
	switch x := v.(type) {
	case string:
		payload = []byte(x)
	case []byte:
		payload = x
	default:
		b, err := sonic.Marshal(x)
		if err != nil {
			t.Fatalf("wstest: marshal push: %v", err)
		}
		payload = b
	}
	c.inbound <- payload
}

// Event pushes {"type": typ, "data": data}.
func (c *Conn) Event(t testing.TB, typ string, data any) {
	t.Helper()
	c.Push(t, map[string]any{"type": typ, "data": data})
}

// Dialer is an in-memory websocket.Dialer.
type Dialer struct {
	Dials atomic.Int32
	Fail  atomic.Bool
	conns chan *Conn
}

// NewDialer returns a dialer that succeeds until Fail is set.
func NewDialer() *Dialer {
	return &Dialer{conns: make(chan *Conn, 64)}
}

func (d *Dialer) Dial(ctx context.Context, key websocket.Key) (websocket.Conn, error) {
	d.Dials.Add(1)
	if d.Fail.Load() {
		return nil, ErrRefused
	}
	c := newConn(key)
	select {
	case d.conns <- c:
		return c, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// Next returns the next dialed connection.
func (d *Dialer) Next(t testing.TB) *Conn {
	t.Helper()
	select {
	case c := <-d.conns:
		return c
	case <-time.After(2 * time.Second):
		t.Fatal("wstest: no connection dialed")
		return nil
	}
}

// FastConfig reconnects within milliseconds and has no handshake timeout.
func FastConfig() websocket.Config {
	return websocket.Config{
		ReconnectInterval:    time.Millisecond,
		MaxReconnectInterval: 5 * time.Millisecond,
		ConnectionTimeout:    websocket.NoTimeout,
	}
}

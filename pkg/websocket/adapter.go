package websocket

import (
	"context"
	"fmt"
	"time"
)

// Conn is a minimal interface for a WebSocket connection.
// Close must unblock a pending Read.
type Conn interface {
	Read(ctx context.Context) (msgType MessageType, payload []byte, err error)
	Write(ctx context.Context, msgType MessageType, payload []byte) error
	Close(code CloseCode, reason string) error
}

// Dialer creates new connections for a Key. Dial must honour ctx cancellation,
// which is how the connection timeout aborts a stalled handshake.
type Dialer interface {
	Dial(ctx context.Context, key Key) (Conn, error)
}

// DialerFunc adapts a function to Dialer.
type DialerFunc func(ctx context.Context, key Key) (Conn, error)

// Dial calls f.
func (f DialerFunc) Dial(ctx context.Context, key Key) (Conn, error) {
	return f(ctx, key)
}

// CloseError reports a close frame received from the peer.
type CloseError struct {
	Code   CloseCode
	Reason string
}

func (e *CloseError) Error() string {
	return fmt.Sprintf("websocket: closed with code %d: %s", e.Code, e.Reason)
}

// Observer receives lifecycle signals from the manager. Implementations must be
// safe for concurrent use.
type Observer interface {
	Connected(key Key)
	Disconnected(key Key, err error)
	ReconnectScheduled(key Key, attempt int, delay time.Duration)
	RetriesExhausted(key Key)
	MessageReceived(key Key, heartbeat bool)
	SubscribersChanged(key Key, count int)
}

type nopObserver struct{}

func (nopObserver) Connected(Key) {}
func (nopObserver) Disconnected(Key, error) {}
func (nopObserver) ReconnectScheduled(Key, int, time.Duration) {}
func (nopObserver) RetriesExhausted(Key) {}
func (nopObserver) MessageReceived(Key, bool) {}
func (nopObserver) SubscribersChanged(Key, int) {}

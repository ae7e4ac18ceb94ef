package websocket

import (
	"sync/atomic"
)

type outbound struct {
	msgType MessageType
	payload []byte
}

// writer is a bounded outbound queue drained by the session loop.
type writer struct {
	queue     chan outbound
	connected atomic.Bool
}

func newWriter(capacity int) *writer {
	if capacity <= 0 {
		capacity = 1
	}
	return &writer{
		queue: make(chan outbound, capacity),
	}
}

// setConnected toggles whether the writer accepts frames.
func (w *writer) setConnected(connected bool) {
	w.connected.Store(connected)
}

// send copies payload and enqueues it without blocking.
func (w *writer) send(msgType MessageType, payload []byte) bool {
	if !w.connected.Load() {
		return false
	}
	buf := make([]byte, len(payload))
	copy(buf, payload)
	select {
	case w.queue <- outbound{msgType: msgType, payload: buf}:
		return true
	default:
		return false
	}
}

// drain discards queued frames.
func (w *writer) drain() {
	for {
		select {
		case <-w.queue:
		default:
			return
		}
	}
}

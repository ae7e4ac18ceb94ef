package notify

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"

	"github.com/yanun0323/logs"
)

var (
	ErrQueueFull   = errors.New("notify: toast queue full")
	ErrQueueClosed = errors.New("notify: toast queue closed")
)

// Queue is a bounded, non-blocking toast queue. Producers never wait on the
// presenter.
type Queue struct {
	ch      chan Toast
	dropped atomic.Uint64

	mu     sync.RWMutex
	closed bool
}

// NewQueue allocates a queue with the given capacity.
func NewQueue(capacity int) *Queue {
	if capacity <= 0 {
		capacity = 1
	}
	return &Queue{ch: make(chan Toast, capacity)}
}

// TryPublish enqueues a toast without blocking.
func (q *Queue) TryPublish(t Toast) error {
	q.mu.RLock()
	defer q.mu.RUnlock()
	if q.closed {
		return ErrQueueClosed
	}
	select {
	case q.ch <- t:
		return nil
	default:
		q.dropped.Add(1)
		return ErrQueueFull
	}
}

// Notify implements Notifier. A full or closed queue drops the toast.
func (q *Queue) Notify(t Toast) {
	if err := q.TryPublish(t); err != nil {
		logs.Errorf("notify: drop toast %q, err: %+v", t.Title, err)
	}
}

// Dropped returns how many toasts were rejected because the queue was full.
func (q *Queue) Dropped() uint64 {
	return q.dropped.Load()
}

// Close stops the queue from accepting new toasts.
func (q *Queue) Close() {
	q.mu.Lock()
	defer q.mu.Unlock()
	if !q.closed {
		q.closed = true
		close(q.ch)
	}
}

// Run consumes toasts until the context is done or the queue is closed.
func (q *Queue) Run(ctx context.Context, handler func(Toast)) {
	for {
		select {
		case <-ctx.Done():
			return
		case t, ok := <-q.ch:
			if !ok {
				return
			}
			handler(t)
		}
	}
}

package ringbuf

import "sync"

// Buffer is a fixed-capacity ring that evicts the oldest entry on overflow.
// Snapshots are newest-first.
type Buffer[T any] struct {
	mu   sync.RWMutex
	buf  []T
	head int
	size int
}

// New creates a buffer. Capacity below 1 is raised to 1.
func New[T any](capacity int) *Buffer[T] {
	if capacity <= 0 {
		capacity = 1
	}
	return &Buffer[T]{buf: make([]T, capacity)}
}

// Push appends v, evicting the oldest entry when full. It reports whether an entry was evicted.
func (b *Buffer[T]) Push(v T) bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	tail := (b.head + b.size) % len(b.buf)
	b.buf[tail] = v
	if b.size < len(b.buf) {
		b.size++
		return false
	}
	b.head = (b.head + 1) % len(b.buf)
	return true
}

// Snapshot returns a copy of the entries, newest first.
func (b *Buffer[T]) Snapshot() []T {
	b.mu.RLock()
	defer b.mu.RUnlock()
	out := make([]T, b.size)
	for i := 0; i < b.size; i++ {
		idx := (b.head + b.size - 1 - i) % len(b.buf)
		out[i] = b.buf[idx]
	}
	return out
}

// Latest returns the newest entry.
func (b *Buffer[T]) Latest() (T, bool) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	var zero T
	if b.size == 0 {
		return zero, false
	}
	return b.buf[(b.head+b.size-1)%len(b.buf)], true
}

// Len returns the number of stored entries.
func (b *Buffer[T]) Len() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.size
}

// Cap returns the configured capacity.
func (b *Buffer[T]) Cap() int {
	return len(b.buf)
}

// Clear drops all entries.
func (b *Buffer[T]) Clear() {
	b.mu.Lock()
	defer b.mu.Unlock()
	var zero T
	for i := range b.buf {
		b.buf[i] = zero
	}
	b.head = 0
	b.size = 0
}

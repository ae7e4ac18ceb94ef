package dispatch

import "sync/atomic"

// Cell holds a value that is replaced wholesale and read at the moment of use.
// Stores keep their callback sets in one so a swapped callback is never missed.
type Cell[T any] struct {
	p atomic.Pointer[T]
}

// Store replaces the value.
func (c *Cell[T]) Store(v T) {
	c.p.Store(&v)
}

// Load returns the latest value, or the zero value if none was stored.
func (c *Cell[T]) Load() T {
	if p := c.p.Load(); p != nil {
		return *p
	}
	var zero T
	return zero
}

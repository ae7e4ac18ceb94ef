package websocket

import (
	"sync"

	"github.com/google/uuid"
)

type subscription struct {
	id     string
	sub    Subscriber
	active bool
}

// subscriptions is the ordered subscriber registry of one connection.
type subscriptions struct {
	mu      sync.RWMutex
	entries []subscription
}

func newSubscriptions() *subscriptions {
	return &subscriptions{}
}

// Add registers sub and returns its id. The subscriber receives nothing until
// Activate is called.
func (s *subscriptions) Add(sub Subscriber) string {
	id := uuid.New().String()
	s.mu.Lock()
	s.entries = append(s.entries, subscription{id: id, sub: sub})
	s.mu.Unlock()
	return id
}

// Remove deletes the subscriber with id.
// Returns the remaining count and true if it was present.
func (s *subscriptions) Remove(id string) (int, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i, e := range s.entries {
		if e.id != id {
			continue
		}
		s.entries = append(s.entries[:i:i], s.entries[i+1:]...)
		return len(s.entries), true
	}
	return len(s.entries), false
}

// Activate marks id as ready for delivery. Returns false if id was removed.
func (s *subscriptions) Activate(id string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i := range s.entries {
		if s.entries[i].id == id {
			s.entries[i].active = true
			return true
		}
	}
	return false
}

// Snapshot returns the active subscribers in registration order.
func (s *subscriptions) Snapshot() []Subscriber {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]Subscriber, 0, len(s.entries))
	for _, e := range s.entries {
		if e.active {
			out = append(out, e.sub)
		}
	}
	return out
}

// Count returns the number of subscribers.
func (s *subscriptions) Count() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.entries)
}

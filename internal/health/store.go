// Package health tracks overall system health transitions.
package health

import (
	"strings"
	"sync"

	"github.com/mikesvoboda/nemotron-v3-home-security-intelligence-sub002/internal/dispatch"
	"github.com/mikesvoboda/nemotron-v3-home-security-intelligence-sub002/internal/notify"
	"github.com/mikesvoboda/nemotron-v3-home-security-intelligence-sub002/pkg/ringbuf"
	"github.com/mikesvoboda/nemotron-v3-home-security-intelligence-sub002/pkg/websocket"
)

// DefaultMaxHistory bounds the transition history when Options.MaxHistory is zero.
const DefaultMaxHistory = 20

// QueryKey is invalidated after every health change.
var QueryKey = notify.QueryKey{"system", "health"}

// Callbacks are optional. OnDegraded, OnUnhealthy and OnRecovered fire on
// transitions only.
type Callbacks struct {
	// OnHealthChange receives every accepted event, even when the health value
	// did not change.
	OnHealthChange func(t Transition)
	OnDegraded     func(t Transition)
	OnUnhealthy    func(t Transition)
	OnRecovered    func(t Transition)
}

// Options configures a health store.
type Options struct {
	dispatch.Options
	notify.Effects
	MaxHistory int
}

// Store tracks overall system health and its components.
type Store struct {
	*dispatch.Dispatcher
	opt       Options
	callbacks dispatch.Cell[Callbacks]

	mu         sync.RWMutex
	current    string
	previous   string
	components map[string]string
	history    *ringbuf.Buffer[Transition]
}

// New builds a health store. Nothing connects until Start.
func New(manager *websocket.Manager, opt Options) *Store {
	if opt.MaxHistory <= 0 {
		opt.MaxHistory = DefaultMaxHistory
	}
	if opt.Name == "" {
		opt.Name = "health"
	}
	s := &Store{
		opt:     opt,
		history: ringbuf.New[Transition](opt.MaxHistory),
	}
	s.Dispatcher = dispatch.New(manager, opt.Options,
		dispatch.On(s.apply, EventHealthChanged),
	)
	return s
}

// SetCallbacks replaces the event callbacks.
func (s *Store) SetCallbacks(cb Callbacks) {
	s.callbacks.Store(cb)
}

func (s *Store) apply(_ string, c Changed) {
	s.mu.Lock()
	prev := s.current
	if c.PreviousHealth != nil {
		prev = *c.PreviousHealth
	}
	tr := Transition{Health: c.Health, Previous: prev, Components: c.Components}
	s.previous = prev
	s.current = c.Health
	s.components = c.Components
	s.history.Push(tr)
	s.mu.Unlock()

	cb := s.callbacks.Load()
	if cb.OnHealthChange != nil {
		cb.OnHealthChange(tr)
	}
	if tr.Health == tr.Previous {
		return
	}

	switch tr.Health {
	case Degraded:
		if cb.OnDegraded != nil {
			cb.OnDegraded(tr)
		}
		s.opt.Toast(notify.Toast{
			Severity:    notify.SeverityWarning,
			Title:       "System degraded",
			Description: describe(tr),
		})
	case Unhealthy:
		if cb.OnUnhealthy != nil {
			cb.OnUnhealthy(tr)
		}
		s.opt.Toast(notify.Toast{
			Severity:    notify.SeverityError,
			Title:       "System unhealthy",
			Description: describe(tr),
		})
	case Healthy:
		if tr.Previous == "" {
			break
		}
		if cb.OnRecovered != nil {
			cb.OnRecovered(tr)
		}
		s.opt.Toast(notify.Toast{
			Severity:    notify.SeveritySuccess,
			Title:       "System recovered",
			Description: "All components are healthy",
		})
	}
	s.opt.Invalidate(QueryKey)
}

func describe(tr Transition) string {
	bad := unhealthyComponents(tr.Components)
	if len(bad) == 0 {
		return "System health is " + tr.Health
	}
	return "Affected: " + strings.Join(bad, ", ")
}

// Current returns the latest health, or "" before any event.
func (s *Store) Current() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.current
}

// Previous returns the health before the latest event.
func (s *Store) Previous() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.previous
}

// Components returns a copy of the per-service status.
func (s *Store) Components() map[string]string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make(map[string]string, len(s.components))
	for k, v := range s.components {
		out[k] = v
	}
	return out
}

// UnhealthyComponents lists components not reporting healthy.
func (s *Store) UnhealthyComponents() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return unhealthyComponents(s.components)
}

// IsHealthy reports whether the current health is healthy.
func (s *Store) IsHealthy() bool {
	return s.Current() == Healthy
}

// History returns transitions, newest first.
func (s *Store) History() []Transition {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.history.Snapshot()
}

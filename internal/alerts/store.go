// Package alerts tracks alert lifecycle events from the events stream.
package alerts

import (
	"fmt"
	"sort"
	"sync"

	"github.com/mikesvoboda/nemotron-v3-home-security-intelligence-sub002/internal/dispatch"
	"github.com/mikesvoboda/nemotron-v3-home-security-intelligence-sub002/internal/notify"
	"github.com/mikesvoboda/nemotron-v3-home-security-intelligence-sub002/pkg/ringbuf"
	"github.com/mikesvoboda/nemotron-v3-home-security-intelligence-sub002/pkg/websocket"
)

// DefaultMaxHistory bounds the recent-event history when Options.MaxHistory is zero.
const DefaultMaxHistory = 50

// QueryKey is invalidated after every alert event.
var QueryKey = notify.QueryKey{"alerts"}

// Callbacks are optional. OnAlertEvent fires before the specific callback and
// never for deletions, whose payload has a different shape.
type Callbacks struct {
	OnAlertEvent        func(eventType string, a Alert)
	OnAlertCreated      func(a Alert)
	OnAlertUpdated      func(a Alert)
	OnAlertAcknowledged func(a Alert)
	OnAlertResolved     func(a Alert)
	OnAlertDeleted      func(d Deleted)
}

// Options configures an alert store.
type Options struct {
	dispatch.Options
	notify.Effects
	MaxHistory int
}

// Event is one history entry. Deleted is set only for alert_deleted.
type Event struct {
	Type    string
	Alert   Alert
	Deleted *Deleted
}

// Store tracks alert lifecycle events from the events stream.
type Store struct {
	*dispatch.Dispatcher
	opt       Options
	callbacks dispatch.Cell[Callbacks]

	mu      sync.RWMutex
	history *ringbuf.Buffer[Event]
	active  map[string]Alert
}

// New builds an alert store. Nothing connects until Start.
func New(manager *websocket.Manager, opt Options) *Store {
	if opt.MaxHistory <= 0 {
		opt.MaxHistory = DefaultMaxHistory
	}
	if opt.Name == "" {
		opt.Name = "alerts"
	}
	s := &Store{
		opt:     opt,
		history: ringbuf.New[Event](opt.MaxHistory),
		active:  make(map[string]Alert),
	}
	s.Dispatcher = dispatch.New(manager, opt.Options,
		dispatch.On(s.applyAlert, EventCreated, EventUpdated, EventAcknowledged, EventResolved),
		dispatch.On(s.applyDeleted, EventDeleted),
	)
	return s
}

// SetCallbacks replaces the event callbacks.
func (s *Store) SetCallbacks(cb Callbacks) {
	s.callbacks.Store(cb)
}

func (s *Store) applyAlert(eventType string, a Alert) {
	s.mu.Lock()
	s.history.Push(Event{Type: eventType, Alert: a})
	if eventType == EventResolved || a.Closed() {
		delete(s.active, a.ID)
	} else {
		s.active[a.ID] = a
	}
	s.mu.Unlock()

	cb := s.callbacks.Load()
	if cb.OnAlertEvent != nil {
		cb.OnAlertEvent(eventType, a)
	}
	var specific func(Alert)
	switch eventType {
	case EventCreated:
		specific = cb.OnAlertCreated
	case EventUpdated:
		specific = cb.OnAlertUpdated
	case EventAcknowledged:
		specific = cb.OnAlertAcknowledged
	case EventResolved:
		specific = cb.OnAlertResolved
	}
	if specific != nil {
		specific(a)
	}

	if eventType == EventCreated {
		s.toastCreated(a)
	}
	s.opt.Invalidate(QueryKey)
}

func (s *Store) applyDeleted(eventType string, d Deleted) {
	s.mu.Lock()
	s.history.Push(Event{Type: eventType, Deleted: &d})
	delete(s.active, d.ID)
	s.mu.Unlock()

	if cb := s.callbacks.Load(); cb.OnAlertDeleted != nil {
		cb.OnAlertDeleted(d)
	}
	s.opt.Invalidate(QueryKey)
}

func (s *Store) toastCreated(a Alert) {
	switch a.Severity {
	case SeverityCritical:
		s.opt.Toast(notify.Toast{
			Severity:    notify.SeverityError,
			Title:       "Critical alert",
			Description: fmt.Sprintf("Alert %s raised for event %d", a.ID, a.EventID),
		})
	case SeverityHigh:
		s.opt.Toast(notify.Toast{
			Severity:    notify.SeverityWarning,
			Title:       "High severity alert",
			Description: fmt.Sprintf("Alert %s raised for event %d", a.ID, a.EventID),
		})
	}
}

// History returns received events, newest first.
func (s *Store) History() []Event {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.history.Snapshot()
}

// Latest returns the most recent event.
func (s *Store) Latest() (Event, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.history.Latest()
}

// Active returns open alerts, newest created first.
func (s *Store) Active() []Alert {
	s.mu.RLock()
	out := make([]Alert, 0, len(s.active))
	for _, a := range s.active {
		out = append(out, a)
	}
	s.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool {
		if out[i].CreatedAt != out[j].CreatedAt {
			return out[i].CreatedAt > out[j].CreatedAt
		}
		return out[i].ID < out[j].ID
	})
	return out
}

// CountsBySeverity counts open alerts per severity.
func (s *Store) CountsBySeverity() map[string]int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	counts := make(map[string]int, 4)
	for _, a := range s.active {
		counts[a.Severity]++
	}
	return counts
}

// Clear drops history and open alerts.
func (s *Store) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.history.Clear()
	s.active = make(map[string]Alert)
}

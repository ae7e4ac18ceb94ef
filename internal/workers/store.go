// Package workers folds worker lifecycle events into one status store.
package workers

import (
	"fmt"
	"sort"
	"sync"

	"github.com/mikesvoboda/nemotron-v3-home-security-intelligence-sub002/internal/dispatch"
	"github.com/mikesvoboda/nemotron-v3-home-security-intelligence-sub002/internal/notify"
	"github.com/mikesvoboda/nemotron-v3-home-security-intelligence-sub002/pkg/ringbuf"
	"github.com/mikesvoboda/nemotron-v3-home-security-intelligence-sub002/pkg/websocket"
)

const (
	DefaultMaxHistory            = 50
	DefaultFailureToastThreshold = 3
)

// QueryKey is invalidated after every worker event.
var QueryKey = notify.QueryKey{"system", "workers"}

// Callbacks are optional. OnWorkerEvent fires before the specific callback.
type Callbacks struct {
	OnWorkerEvent       func(eventType string, e Event)
	OnStarted           func(e Event)
	OnStopped           func(e Event)
	OnError             func(e Event)
	OnHealthCheckFailed func(e Event)
	OnRestarting        func(e Event)
	OnRecovered         func(e Event)
}

// Options configures a worker store.
type Options struct {
	dispatch.Options
	notify.Effects
	MaxHistory int
	// FailureToastThreshold is the consecutive health-check failure count at
	// which a toast is shown.
	FailureToastThreshold int
}

// Record is one history entry.
type Record struct {
	Type  string
	Event Event
}

// Counts tallies workers by state.
type Counts struct {
	Running    int
	Stopped    int
	Failing    int
	Restarting int
	Total      int
}

// Store tracks the pipeline workers by name.
type Store struct {
	*dispatch.Dispatcher
	opt       Options
	callbacks dispatch.Cell[Callbacks]

	mu      sync.RWMutex
	workers map[string]Worker
	history *ringbuf.Buffer[Record]
}

// New builds a worker store. Nothing connects until Start.
func New(manager *websocket.Manager, opt Options) *Store {
	if opt.MaxHistory <= 0 {
		opt.MaxHistory = DefaultMaxHistory
	}
	if opt.FailureToastThreshold <= 0 {
		opt.FailureToastThreshold = DefaultFailureToastThreshold
	}
	if opt.Name == "" {
		opt.Name = "workers"
	}
	s := &Store{
		opt:     opt,
		workers: make(map[string]Worker),
		history: ringbuf.New[Record](opt.MaxHistory),
	}
	s.Dispatcher = dispatch.New(manager, opt.Options,
		dispatch.On(s.apply,
			EventStarted, EventStopped, EventError, EventHealthCheckFailed, EventRestarting, EventRecovered),
	)
	return s
}

// SetCallbacks replaces the event callbacks.
func (s *Store) SetCallbacks(cb Callbacks) {
	s.callbacks.Store(cb)
}

func (s *Store) apply(eventType string, e Event) {
	s.mu.Lock()
	w, ok := s.workers[e.WorkerName]
	if !ok {
		w = Worker{Name: e.WorkerName}
	}
	if e.WorkerType != "" {
		w.Type = e.WorkerType
	}
	w.State = stateFor(eventType)
	w.LastEvent = eventType
	w.UpdatedAt = e.Timestamp
	switch eventType {
	case EventError:
		if e.Error != nil {
			w.LastError = *e.Error
		}
	case EventHealthCheckFailed:
		w.FailureCount = e.FailureCount
		if w.FailureCount == 0 {
			w.FailureCount = 1
		}
		if e.Error != nil {
			w.LastError = *e.Error
		}
	case EventRestarting:
		w.Attempt = e.Attempt
	case EventStarted, EventRecovered:
		w.FailureCount = 0
		w.Attempt = 0
		w.LastError = ""
	}
	s.workers[e.WorkerName] = w
	s.history.Push(Record{Type: eventType, Event: e})
	s.mu.Unlock()

	cb := s.callbacks.Load()
	if cb.OnWorkerEvent != nil {
		cb.OnWorkerEvent(eventType, e)
	}
	var specific func(Event)
	switch eventType {
	case EventStarted:
		specific = cb.OnStarted
	case EventStopped:
		specific = cb.OnStopped
	case EventError:
		specific = cb.OnError
	case EventHealthCheckFailed:
		specific = cb.OnHealthCheckFailed
	case EventRestarting:
		specific = cb.OnRestarting
	case EventRecovered:
		specific = cb.OnRecovered
	}
	if specific != nil {
		specific(e)
	}

	s.toast(eventType, e, w)
	s.opt.Invalidate(QueryKey)
}

func (s *Store) toast(eventType string, e Event, w Worker) {
	switch eventType {
	case EventError:
		desc := w.Name + " failed"
		if w.LastError != "" {
			desc += ": " + w.LastError
		}
		s.opt.Toast(notify.Toast{Severity: notify.SeverityError, Title: "Worker error", Description: desc})
	case EventHealthCheckFailed:
		if w.FailureCount < s.opt.FailureToastThreshold {
			return
		}
		s.opt.Toast(notify.Toast{
			Severity:    notify.SeverityWarning,
			Title:       "Worker health check failing",
			Description: fmt.Sprintf("%s failed %d consecutive health checks", w.Name, w.FailureCount),
		})
	case EventRestarting:
		desc := "Restarting " + w.Name
		if e.Attempt > 0 && e.MaxAttempts > 0 {
			desc = fmt.Sprintf("Restarting %s (attempt %d/%d)", w.Name, e.Attempt, e.MaxAttempts)
		}
		s.opt.Toast(notify.Toast{Severity: notify.SeverityInfo, Title: "Worker restarting", Description: desc})
	case EventRecovered:
		s.opt.Toast(notify.Toast{Severity: notify.SeveritySuccess, Title: "Worker recovered", Description: w.Name + " is running again"})
	}
}

// Worker returns the named worker, if known.
func (s *Store) Worker(name string) (Worker, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	w, ok := s.workers[name]
	return w, ok
}

// Workers returns every known worker ordered by name.
func (s *Store) Workers() []Worker {
	s.mu.RLock()
	out := make([]Worker, 0, len(s.workers))
	for _, w := range s.workers {
		out = append(out, w)
	}
	s.mu.RUnlock()
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// Counts tallies the known workers.
func (s *Store) Counts() Counts {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var c Counts
	for _, w := range s.workers {
		c.Total++
		switch w.State {
		case StateRunning:
			c.Running++
		case StateStopped:
			c.Stopped++
		case StateError, StateUnhealthy:
			c.Failing++
		case StateRestarting:
			c.Restarting++
		}
	}
	return c
}

// History returns received events, newest first.
func (s *Store) History() []Record {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.history.Snapshot()
}

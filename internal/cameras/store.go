// Package cameras tracks camera status events from the events stream.
package cameras

import (
	"sort"
	"sync"

	"github.com/mikesvoboda/nemotron-v3-home-security-intelligence-sub002/internal/dispatch"
	"github.com/mikesvoboda/nemotron-v3-home-security-intelligence-sub002/internal/notify"
	"github.com/mikesvoboda/nemotron-v3-home-security-intelligence-sub002/pkg/ringbuf"
	"github.com/mikesvoboda/nemotron-v3-home-security-intelligence-sub002/pkg/websocket"
)

// DefaultMaxHistory bounds the status-change history when Options.MaxHistory is zero.
const DefaultMaxHistory = 50

// QueryKey is invalidated after every camera status change.
var QueryKey = notify.QueryKey{"cameras"}

// Callbacks are optional. OnCameraEvent fires before the specific callback.
type Callbacks struct {
	OnCameraEvent   func(eventType string, e Event)
	OnOnline        func(e Event)
	OnOffline       func(e Event)
	OnError         func(e Event)
	OnEnabled       func(e Event)
	OnDisabled      func(e Event)
	OnConfigUpdated func(e Event)
}

// Options configures a camera store.
type Options struct {
	dispatch.Options
	notify.Effects
	MaxHistory int
}

// Record is one history entry.
type Record struct {
	Type  string
	Event Event
}

// Counts summarizes cameras by status.
type Counts struct {
	Online   int
	Offline  int
	Error    int
	Disabled int
	Total    int
}

// Store tracks the latest status of every camera.
type Store struct {
	*dispatch.Dispatcher
	opt       Options
	callbacks dispatch.Cell[Callbacks]

	mu      sync.RWMutex
	history *ringbuf.Buffer[Record]
	cameras map[string]Camera
}

// New builds a camera store. Nothing connects until Start.
func New(manager *websocket.Manager, opt Options) *Store {
	if opt.MaxHistory <= 0 {
		opt.MaxHistory = DefaultMaxHistory
	}
	if opt.Name == "" {
		opt.Name = "cameras"
	}
	s := &Store{
		opt:     opt,
		history: ringbuf.New[Record](opt.MaxHistory),
		cameras: make(map[string]Camera),
	}
	s.Dispatcher = dispatch.New(manager, opt.Options,
		dispatch.On(s.apply,
			EventOnline, EventOffline, EventError, EventEnabled, EventDisabled, EventConfigUpdated),
	)
	return s
}

// SetCallbacks replaces the event callbacks.
func (s *Store) SetCallbacks(cb Callbacks) {
	s.callbacks.Store(cb)
}

func (s *Store) apply(eventType string, e Event) {
	s.mu.Lock()
	s.history.Push(Record{Type: eventType, Event: e})
	prev, seen := s.cameras[e.CameraID]
	if !seen {
		prev = Camera{ID: e.CameraID, Status: StatusUnknown, Enabled: true}
	}
	next := prev
	if e.CameraName != "" {
		next.Name = e.CameraName
	}
	next.Status = statusFor(eventType, e, prev.Status)
	next.LastEvent = eventType
	next.Reason = ""
	if e.Reason != nil {
		next.Reason = *e.Reason
	}
	switch eventType {
	case EventEnabled:
		next.Enabled = true
	case EventDisabled:
		next.Enabled = false
	}
	s.cameras[e.CameraID] = next
	s.mu.Unlock()

	cb := s.callbacks.Load()
	if cb.OnCameraEvent != nil {
		cb.OnCameraEvent(eventType, e)
	}
	var specific func(Event)
	switch eventType {
	case EventOnline:
		specific = cb.OnOnline
	case EventOffline:
		specific = cb.OnOffline
	case EventError:
		specific = cb.OnError
	case EventEnabled:
		specific = cb.OnEnabled
	case EventDisabled:
		specific = cb.OnDisabled
	case EventConfigUpdated:
		specific = cb.OnConfigUpdated
	}
	if specific != nil {
		specific(e)
	}

	s.toast(eventType, e, previousStatus(e, prev.Status))
	s.opt.Invalidate(QueryKey, notify.QueryKey{"cameras", e.CameraID})
}

// previousStatus prefers the server's view of the prior status.
func previousStatus(e Event, tracked string) string {
	if e.PreviousStatus != nil && *e.PreviousStatus != "" {
		return *e.PreviousStatus
	}
	return tracked
}

func (s *Store) toast(eventType string, e Event, prev string) {
	name := e.displayName()
	switch eventType {
	case EventOffline:
		s.opt.Toast(notify.Toast{
			Severity:    notify.SeverityWarning,
			Title:       "Camera offline",
			Description: name + " went offline",
		})
	case EventError:
		desc := name + " reported an error"
		if e.Reason != nil && *e.Reason != "" {
			desc += ": " + *e.Reason
		}
		s.opt.Toast(notify.Toast{
			Severity:    notify.SeverityError,
			Title:       "Camera error",
			Description: desc,
		})
	case EventOnline:
		if prev == StatusOffline || prev == StatusError {
			s.opt.Toast(notify.Toast{
				Severity:    notify.SeveritySuccess,
				Title:       "Camera back online",
				Description: name + " recovered",
			})
		}
	}
}

// Camera returns the last known state of id.
func (s *Store) Camera(id string) (Camera, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	c, ok := s.cameras[id]
	return c, ok
}

// Cameras returns every known camera ordered by id.
func (s *Store) Cameras() []Camera {
	s.mu.RLock()
	out := make([]Camera, 0, len(s.cameras))
	for _, c := range s.cameras {
		out = append(out, c)
	}
	s.mu.RUnlock()
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// Counts tallies cameras by status.
func (s *Store) Counts() Counts {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var c Counts
	for _, cam := range s.cameras {
		c.Total++
		switch cam.Status {
		case StatusOnline:
			c.Online++
		case StatusOffline:
			c.Offline++
		case StatusError:
			c.Error++
		case StatusDisabled:
			c.Disabled++
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

// Clear forgets every camera and the history.
func (s *Store) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.history.Clear()
	s.cameras = make(map[string]Camera)
}

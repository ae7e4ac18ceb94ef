// Package pipeline follows queue depth and throughput from the system stream.
// The two sub-streams share one connection but are stored independently.
package pipeline

import (
	"fmt"
	"sync"

	"github.com/mikesvoboda/nemotron-v3-home-security-intelligence-sub002/internal/dispatch"
	"github.com/mikesvoboda/nemotron-v3-home-security-intelligence-sub002/internal/notify"
	"github.com/mikesvoboda/nemotron-v3-home-security-intelligence-sub002/pkg/ringbuf"
	"github.com/mikesvoboda/nemotron-v3-home-security-intelligence-sub002/pkg/websocket"
)

const (
	DefaultMaxHistory        = 60
	DefaultBacklogThreshold  = 10
	DefaultCriticalThreshold = 50
)

// Callbacks are optional.
type Callbacks struct {
	OnQueueStatus func(qs QueueStatus)
	OnThroughput  func(t Throughput)
}

// Options configures a pipeline store.
type Options struct {
	dispatch.Options
	notify.Effects
	// MaxHistory bounds the throughput history.
	MaxHistory        int
	BacklogThreshold  int
	CriticalThreshold int
}

// Store holds the latest queue status and throughput history.
type Store struct {
	*dispatch.Dispatcher
	opt       Options
	callbacks dispatch.Cell[Callbacks]

	mu         sync.RWMutex
	queue      QueueSummary
	throughput *ringbuf.Buffer[Throughput]
}

// New builds a pipeline store. Nothing connects until Start.
func New(manager *websocket.Manager, opt Options) *Store {
	if opt.MaxHistory <= 0 {
		opt.MaxHistory = DefaultMaxHistory
	}
	if opt.BacklogThreshold <= 0 {
		opt.BacklogThreshold = DefaultBacklogThreshold
	}
	if opt.CriticalThreshold <= 0 {
		opt.CriticalThreshold = DefaultCriticalThreshold
	}
	if opt.Name == "" {
		opt.Name = "pipeline"
	}
	s := &Store{
		opt:        opt,
		throughput: ringbuf.New[Throughput](opt.MaxHistory),
	}
	s.Dispatcher = dispatch.New(manager, opt.Options,
		dispatch.On(s.applyQueueStatus, EventQueueStatus),
		dispatch.On(s.applyThroughput, EventThroughput),
	)
	return s
}

// SetCallbacks replaces the event callbacks.
func (s *Store) SetCallbacks(cb Callbacks) {
	s.callbacks.Store(cb)
}

func (s *Store) applyQueueStatus(_ string, qs QueueStatus) {
	s.mu.Lock()
	wasCritical := s.queue.IsCritical
	s.queue = summarize(qs, s.opt.BacklogThreshold, s.opt.CriticalThreshold)
	sum := s.queue
	s.mu.Unlock()

	if cb := s.callbacks.Load(); cb.OnQueueStatus != nil {
		cb.OnQueueStatus(qs)
	}

	switch {
	case sum.IsCritical && !wasCritical:
		s.opt.Toast(notify.Toast{
			Severity:    notify.SeverityError,
			Title:       "Pipeline backlog critical",
			Description: fmt.Sprintf("%d items queued, %s is the longest queue", sum.TotalDepth, sum.Longest.Name),
		})
	case !sum.IsCritical && wasCritical:
		s.opt.Toast(notify.Toast{
			Severity:    notify.SeveritySuccess,
			Title:       "Pipeline backlog cleared",
			Description: fmt.Sprintf("%d items queued", sum.TotalDepth),
		})
	}
}

func (s *Store) applyThroughput(_ string, t Throughput) {
	s.mu.Lock()
	s.throughput.Push(t)
	s.mu.Unlock()

	if cb := s.callbacks.Load(); cb.OnThroughput != nil {
		cb.OnThroughput(t)
	}
}

// Queue returns the latest queue status and what it implies.
func (s *Store) Queue() QueueSummary {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.queue
}

// Throughput returns throughput samples, newest first.
func (s *Store) Throughput() []Throughput {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.throughput.Snapshot()
}

// AverageDetectionsPerMinute averages the stored samples.
func (s *Store) AverageDetectionsPerMinute() float64 {
	samples := s.Throughput()
	if len(samples) == 0 {
		return 0
	}
	var sum float64
	for _, t := range samples {
		sum += t.DetectionsPerMinute
	}
	return sum / float64(len(samples))
}

// Clear forgets the queue status and history.
func (s *Store) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.queue = QueueSummary{}
	s.throughput.Clear()
}

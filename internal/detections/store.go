// Package detections keeps bounded streams of detections and batches.
package detections

import (
	"sync"

	"github.com/mikesvoboda/nemotron-v3-home-security-intelligence-sub002/internal/dispatch"
	"github.com/mikesvoboda/nemotron-v3-home-security-intelligence-sub002/pkg/ringbuf"
	"github.com/mikesvoboda/nemotron-v3-home-security-intelligence-sub002/pkg/websocket"
)

const (
	DefaultMaxDetections = 100
	DefaultMaxBatches    = 50
)

// Callbacks are optional and run after the history is updated.
type Callbacks struct {
	OnDetection func(d Detection)
	OnBatch     func(b Batch)
}

// Options configures a detection store.
type Options struct {
	dispatch.Options
	MaxDetections int
	MaxBatches    int
	// FilterCameraID drops events from other cameras before they are stored.
	FilterCameraID string
}

// Store keeps recent detections and batches.
type Store struct {
	*dispatch.Dispatcher
	callbacks dispatch.Cell[Callbacks]

	mu         sync.RWMutex
	filter     string
	detections *ringbuf.Buffer[Detection]
	batches    *ringbuf.Buffer[Batch]
	total      int
}

// New builds a detection store. Nothing connects until Start.
func New(manager *websocket.Manager, opt Options) *Store {
	if opt.MaxDetections <= 0 {
		opt.MaxDetections = DefaultMaxDetections
	}
	if opt.MaxBatches <= 0 {
		opt.MaxBatches = DefaultMaxBatches
	}
	if opt.Name == "" {
		opt.Name = "detections"
	}
	s := &Store{
		filter:     opt.FilterCameraID,
		detections: ringbuf.New[Detection](opt.MaxDetections),
		batches:    ringbuf.New[Batch](opt.MaxBatches),
	}
	s.Dispatcher = dispatch.New(manager, opt.Options,
		dispatch.On(s.applyDetection, EventDetection),
		dispatch.On(s.applyBatch, EventBatch),
	)
	return s
}

// SetCallbacks replaces the event callbacks.
func (s *Store) SetCallbacks(cb Callbacks) {
	s.callbacks.Store(cb)
}

// SetCameraFilter changes the camera filter. An empty id accepts every camera.
// Already stored entries are kept.
func (s *Store) SetCameraFilter(cameraID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.filter = cameraID
}

func (s *Store) applyDetection(_ string, d Detection) {
	s.mu.Lock()
	if s.filter != "" && d.CameraID != s.filter {
		s.mu.Unlock()
		return
	}
	s.detections.Push(d)
	s.total++
	s.mu.Unlock()

	if cb := s.callbacks.Load(); cb.OnDetection != nil {
		cb.OnDetection(d)
	}
}

func (s *Store) applyBatch(_ string, b Batch) {
	s.mu.Lock()
	if s.filter != "" && b.CameraID != s.filter {
		s.mu.Unlock()
		return
	}
	s.batches.Push(b)
	s.mu.Unlock()

	if cb := s.callbacks.Load(); cb.OnBatch != nil {
		cb.OnBatch(b)
	}
}

// Detections returns stored detections, newest first.
func (s *Store) Detections() []Detection {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.detections.Snapshot()
}

// Batches returns stored batches, newest first.
func (s *Store) Batches() []Batch {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.batches.Snapshot()
}

// LatestDetection returns the newest detection, if any.
func (s *Store) LatestDetection() (Detection, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.detections.Latest()
}

// Total counts accepted detections, including evicted ones.
func (s *Store) Total() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.total
}

// CountsByObjectType counts the stored detections per object type.
func (s *Store) CountsByObjectType() map[string]int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	counts := make(map[string]int)
	for _, d := range s.detections.Snapshot() {
		counts[d.ObjectType]++
	}
	return counts
}

// Clear empties both histories.
func (s *Store) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.detections.Clear()
	s.batches.Clear()
	s.total = 0
}

// Package joblogs streams the log lines of one background job. The job id is
// part of the connection path, so every job has its own connection.
package joblogs

import (
	"strings"
	"sync"

	"github.com/mikesvoboda/nemotron-v3-home-security-intelligence-sub002/internal/dispatch"
	"github.com/mikesvoboda/nemotron-v3-home-security-intelligence-sub002/pkg/exception"
	"github.com/mikesvoboda/nemotron-v3-home-security-intelligence-sub002/pkg/ringbuf"
	"github.com/mikesvoboda/nemotron-v3-home-security-intelligence-sub002/pkg/websocket"
	"github.com/yanun0323/errors"
)

const (
	EventLog    = "log"
	EventStatus = "status"
)

// DefaultMaxLines bounds the kept log lines when Options.MaxLines is zero.
const DefaultMaxLines = 500

const (
	StatusPending   = "pending"
	StatusRunning   = "running"
	StatusCompleted = "completed"
	StatusFailed    = "failed"
	StatusCancelled = "cancelled"
)

// Line is the log payload.
type Line struct {
	Timestamp string         `json:"timestamp"`
	Level     string         `json:"level"`
	Message   string         `json:"message"`
	Context   map[string]any `json:"context"`
}

func (Line) RequiredFields() []string { return []string{"level", "message"} }

// JobStatus is the status payload.
type JobStatus struct {
	Status   string   `json:"status"`
	Progress *float64 `json:"progress"`
	Error    *string  `json:"error"`
}

func (JobStatus) RequiredFields() []string { return []string{"status"} }

// Terminal reports whether the job can no longer produce logs.
func (j JobStatus) Terminal() bool {
	switch j.Status {
	case StatusCompleted, StatusFailed, StatusCancelled:
		return true
	}
	return false
}

// Callbacks are optional.
type Callbacks struct {
	OnLog    func(l Line)
	OnStatus func(j JobStatus)
}

// Options configures a job log store.
type Options struct {
	dispatch.Options
	JobID    string
	MaxLines int
}

// Key resolves the log stream connection key for jobID.
func Key(baseURL string, jobID string, apiKey string) (websocket.Key, error) {
	if strings.TrimSpace(jobID) == "" {
		return websocket.Key{}, errors.Wrap(exception.ErrInvalidArgument, "empty job id")
	}
	return dispatch.ResolveKey(baseURL, dispatch.JobLogsEndpoint(jobID), apiKey)
}

// Store keeps the recent log lines and status of one job.
type Store struct {
	*dispatch.Dispatcher
	jobID     string
	callbacks dispatch.Cell[Callbacks]

	mu     sync.RWMutex
	lines  *ringbuf.Buffer[Line]
	levels map[string]int
	status JobStatus
}

// New builds a store for one job. Without a job id it never connects.
func New(manager *websocket.Manager, opt Options) *Store {
	if opt.MaxLines <= 0 {
		opt.MaxLines = DefaultMaxLines
	}
	if opt.Name == "" {
		opt.Name = "joblogs"
	}
	if opt.JobID == "" {
		opt.Enabled = false
	}
	s := &Store{
		jobID:  opt.JobID,
		lines:  ringbuf.New[Line](opt.MaxLines),
		levels: make(map[string]int),
	}
	s.Dispatcher = dispatch.New(manager, opt.Options,
		dispatch.On(s.applyLine, EventLog),
		dispatch.On(s.applyStatus, EventStatus),
	)
	return s
}

// SetCallbacks replaces the event callbacks.
func (s *Store) SetCallbacks(cb Callbacks) {
	s.callbacks.Store(cb)
}

func (s *Store) applyLine(_ string, l Line) {
	l.Level = strings.ToLower(l.Level)
	s.mu.Lock()
	s.lines.Push(l)
	s.levels[l.Level]++
	s.mu.Unlock()

	if cb := s.callbacks.Load(); cb.OnLog != nil {
		cb.OnLog(l)
	}
}

func (s *Store) applyStatus(_ string, j JobStatus) {
	s.mu.Lock()
	s.status = j
	s.mu.Unlock()

	if cb := s.callbacks.Load(); cb.OnStatus != nil {
		cb.OnStatus(j)
	}
}

// JobID returns the job this store follows.
func (s *Store) JobID() string {
	return s.jobID
}

// Lines returns stored lines, newest first.
func (s *Store) Lines() []Line {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.lines.Snapshot()
}

// CountsByLevel counts every received line per lower-cased level, including
// lines already evicted.
func (s *Store) CountsByLevel() map[string]int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make(map[string]int, len(s.levels))
	for k, v := range s.levels {
		out[k] = v
	}
	return out
}

// Job returns the last reported job status.
func (s *Store) Job() JobStatus {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.status
}

// Clear drops the kept lines and level counts.
func (s *Store) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.lines.Clear()
	s.levels = make(map[string]int)
}

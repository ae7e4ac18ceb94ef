// Package poll fetches a resource with retries and optional interval polling.
package poll

import (
	"context"
	"sync"
	"time"

	"github.com/avast/retry-go/v4"
	"github.com/jonboulle/clockwork"
	"github.com/mikesvoboda/nemotron-v3-home-security-intelligence-sub002/pkg/backoff"
	"github.com/mikesvoboda/nemotron-v3-home-security-intelligence-sub002/pkg/exception"
	"github.com/yanun0323/logs"
)

const (
	DefaultRetryAttempts = 3
	DefaultRetryDelay    = time.Second
)

// Status is the fetch lifecycle of a Fetcher.
type Status uint8

const (
	StatusIdle Status = iota
	StatusLoading
	StatusSuccess
	StatusError
)

func (s Status) String() string {
	switch s {
	case StatusIdle:
		return "idle"
	case StatusLoading:
		return "loading"
	case StatusSuccess:
		return "success"
	case StatusError:
		return "error"
	default:
		return "unknown"
	}
}

// Options configures a Fetcher.
type Options[T any] struct {
	Fetch   func(ctx context.Context) (T, error)
	Enabled bool
	// RetryAttempts is the number of retries after a failed fetch. Zero
	// disables retrying.
	RetryAttempts int
	RetryDelay    time.Duration
	MaxRetryDelay time.Duration
	// PollingInterval re-fetches after each settle when positive.
	PollingInterval     time.Duration
	PausePollingOnError bool
	Clock               clockwork.Clock
	Rand                func() float64
	// OnChange receives the state after every settled fetch.
	OnChange func(State[T])
}

func (o *Options[T]) init() {
	if o.RetryAttempts < 0 {
		o.RetryAttempts = 0
	}
	if o.RetryDelay <= 0 {
		o.RetryDelay = DefaultRetryDelay
	}
	if o.Clock == nil {
		o.Clock = clockwork.NewRealClock()
	}
}

// State is a snapshot. Data survives failed fetches.
type State[T any] struct {
	Data       T
	HasData    bool
	Err        error
	Status     Status
	IsFetching bool
	UpdatedAt  time.Time
}

// Fetcher keeps the latest result of Fetch, retrying and polling as configured.
type Fetcher[T any] struct {
	opt     Options[T]
	backoff backoff.Backoff
	wg      sync.WaitGroup

	mu       sync.Mutex
	ctx      context.Context
	cancel   context.CancelFunc
	state    State[T]
	gen      uint64
	enabled  bool
	started  bool
	stopped  bool
	paused   bool
	inflight context.CancelFunc
	timer    clockwork.Timer
}

// New validates opt and builds a fetcher. Nothing runs until Start.
func New[T any](opt Options[T]) (*Fetcher[T], error) {
	if opt.Fetch == nil {
		return nil, exception.ErrPollNilFetchFunc
	}
	opt.init()
	return &Fetcher[T]{
		opt:     opt,
		backoff: backoff.Backoff{Base: opt.RetryDelay, Max: opt.MaxRetryDelay, Rand: opt.Rand},
		enabled: opt.Enabled,
	}, nil
}

// Start fetches once when enabled. Later calls are no-ops.
func (f *Fetcher[T]) Start() {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.started || f.stopped {
		return
	}
	f.started = true
	f.ctx, f.cancel = context.WithCancel(context.Background())
	if f.enabled {
		f.launchLocked()
	}
}

// Stop aborts everything and waits. No state changes or callbacks happen
// after it returns.
func (f *Fetcher[T]) Stop() {
	f.mu.Lock()
	if f.stopped {
		f.mu.Unlock()
		return
	}
	f.stopped = true
	f.gen++
	f.clearLocked()
	if f.cancel != nil {
		f.cancel()
	}
	f.mu.Unlock()

	f.wg.Wait()
}

// Refetch aborts any in-flight fetch and starts a new one, resuming polling
// that was paused by an error.
func (f *Fetcher[T]) Refetch() {
	f.mu.Lock()
	defer f.mu.Unlock()
	if !f.started || f.stopped {
		return
	}
	f.paused = false
	f.launchLocked()
}

// SetEnabled toggles fetching. Disabling stops polling but lets an in-flight
// fetch settle; enabling fetches immediately.
func (f *Fetcher[T]) SetEnabled(enabled bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.enabled == enabled {
		return
	}
	f.enabled = enabled
	if f.stopped || !f.started {
		return
	}
	if !enabled {
		if f.timer != nil {
			f.timer.Stop()
			f.timer = nil
		}
		return
	}
	f.paused = false
	f.launchLocked()
}

// State returns a snapshot.
func (f *Fetcher[T]) State() State[T] {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.state
}

func (f *Fetcher[T]) clearLocked() {
	if f.inflight != nil {
		f.inflight()
		f.inflight = nil
	}
	if f.timer != nil {
		f.timer.Stop()
		f.timer = nil
	}
}

func (f *Fetcher[T]) launchLocked() {
	f.clearLocked()
	f.gen++
	gen := f.gen
	ctx, cancel := context.WithCancel(f.ctx)
	f.inflight = cancel
	f.state.IsFetching = true
	if !f.state.HasData {
		f.state.Status = StatusLoading
	}

	f.wg.Add(1)
	go func() {
		defer f.wg.Done()
		defer cancel()
		f.fetch(ctx, gen)
	}()
}

func (f *Fetcher[T]) fetch(ctx context.Context, gen uint64) {
	v, err := retry.DoWithData(
		func() (T, error) {
			return f.opt.Fetch(ctx)
		},
		retry.Attempts(uint(f.opt.RetryAttempts+1)),
		retry.DelayType(f.backoff.DelayType(0)),
		retry.Context(ctx),
		retry.WithTimer(backoff.Timer{Clock: f.opt.Clock}),
		retry.LastErrorOnly(true),
	)

	f.mu.Lock()
	if gen != f.gen || f.stopped {
		f.mu.Unlock()
		return
	}
	f.inflight = nil
	f.state.IsFetching = false
	f.state.UpdatedAt = f.opt.Clock.Now()
	if err != nil {
		logs.Debugf("poll: fetch failed, err: %+v", err)
		f.state.Err = err
		f.state.Status = StatusError
		f.paused = f.opt.PausePollingOnError
	} else {
		f.state.Data = v
		f.state.HasData = true
		f.state.Err = nil
		f.state.Status = StatusSuccess
	}
	if f.enabled && !f.paused && f.opt.PollingInterval > 0 {
		f.timer = f.opt.Clock.AfterFunc(f.opt.PollingInterval, func() { f.tick(gen) })
	}
	st := f.state
	f.mu.Unlock()

	if f.opt.OnChange != nil {
		f.opt.OnChange(st)
	}
}

func (f *Fetcher[T]) tick(gen uint64) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if gen != f.gen || f.stopped || !f.enabled || f.paused {
		return
	}
	f.timer = nil
	f.launchLocked()
}

// Package retry queues client-side retries of rate-limited requests.
package retry

import (
	"context"
	"errors"
	"math"
	"sort"
	"sync"
	"time"

	"github.com/avast/retry-go/v4"
	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
	"github.com/mikesvoboda/nemotron-v3-home-security-intelligence-sub002/pkg/backoff"
	"github.com/mikesvoboda/nemotron-v3-home-security-intelligence-sub002/pkg/exception"
	"github.com/yanun0323/logs"
)

const (
	DefaultMaxRetries = 3
	DefaultBaseDelay  = time.Second
	DefaultMaxDelay   = 30 * time.Second
)

// ErrCancelled is returned by a handle whose retry was cancelled.
var ErrCancelled = exception.ErrRetryCancelled

// IsCancelled reports whether err is a cancellation rather than a failure.
func IsCancelled(err error) bool {
	return errors.Is(err, ErrCancelled)
}

// Options configures a Queue.
type Options struct {
	// MaxRetries bounds the invocations to 1 + MaxRetries. Zero runs execute
	// once.
	MaxRetries int
	BaseDelay  time.Duration
	MaxDelay   time.Duration
	// IgnoreRetryAfter disables honoring the server delay on the first attempt.
	IgnoreRetryAfter bool
	Clock            clockwork.Clock
	// Rand overrides the jitter source.
	Rand func() float64
	// OnChange receives the pending retries whenever they change and once per
	// second while any are pending.
	OnChange func(pending []State)
}

func (o *Options) init() {
	if o.MaxRetries < 0 {
		o.MaxRetries = 0
	}
	if o.BaseDelay <= 0 {
		o.BaseDelay = DefaultBaseDelay
	}
	if o.MaxDelay <= 0 {
		o.MaxDelay = DefaultMaxDelay
	}
	if o.Clock == nil {
		o.Clock = clockwork.NewRealClock()
	}
}

// State describes one pending retry.
type State struct {
	ID  string
	URL string
	// Attempt is the 1-based invocation the retry is waiting for.
	Attempt          int
	MaxAttempts      int
	RetryAt          time.Time
	SecondsRemaining int
	Cancelled        bool
}

type entry struct {
	state     State
	seq       uint64
	cancel    context.CancelFunc
	cancelled bool
}

// Queue runs delayed retries and exposes their countdowns.
type Queue struct {
	opt     Options
	backoff backoff.Backoff
	wg      sync.WaitGroup

	mu      sync.Mutex
	seq     uint64
	pending map[string]*entry
	ticking bool
	closed  bool
	stop    chan struct{}
}

// NewQueue builds a queue. Call Close to cancel everything pending.
func NewQueue(opt Options) *Queue {
	opt.init()
	return &Queue{
		opt:     opt,
		backoff: backoff.Backoff{Base: opt.BaseDelay, Max: opt.MaxDelay, Rand: opt.Rand},
		pending: make(map[string]*entry),
		stop:    make(chan struct{}),
	}
}

// Handle is the caller's side of a queued retry.
type Handle[T any] struct {
	id   string
	q    *Queue
	done chan struct{}
	val  T
	err  error
}

// ID identifies the retry for Queue.Cancel.
func (h *Handle[T]) ID() string {
	return h.id
}

// Done is closed once the retry settles.
func (h *Handle[T]) Done() <-chan struct{} {
	return h.done
}

// Wait blocks until the retry settles or ctx is done. Leaving early does not
// cancel the retry.
func (h *Handle[T]) Wait(ctx context.Context) (T, error) {
	select {
	case <-h.done:
		return h.val, h.err
	case <-ctx.Done():
		var zero T
		return zero, ctx.Err()
	}
}

// Cancel cancels this retry. It reports false once settled.
func (h *Handle[T]) Cancel() bool {
	return h.q.Cancel(h.id)
}

// Enqueue schedules execute after the first-attempt delay: retryAfter when the
// server sent one, otherwise the backoff for attempt 0. Failures are retried
// with the shared backoff up to MaxRetries times. The handle fails with
// ErrCancelled when cancelled, and execute is never called after that.
func Enqueue[T any](ctx context.Context, q *Queue, url string, retryAfter time.Duration, execute func(ctx context.Context) (T, error)) *Handle[T] {
	h := &Handle[T]{id: uuid.NewString(), q: q, done: make(chan struct{})}
	if execute == nil {
		h.err = exception.ErrRetryNilFunc
		close(h.done)
		return h
	}

	ctx, cancel := context.WithCancel(ctx)
	first := q.backoff.WithRetryAfter(0, retryAfter, !q.opt.IgnoreRetryAfter)

	q.mu.Lock()
	if q.closed {
		q.mu.Unlock()
		cancel()
		h.err = ErrCancelled
		close(h.done)
		return h
	}
	q.seq++
	e := &entry{
		seq:    q.seq,
		cancel: cancel,
		state: State{
			ID:          h.id,
			URL:         url,
			Attempt:     1,
			MaxAttempts: q.opt.MaxRetries + 1,
			RetryAt:     q.opt.Clock.Now().Add(first),
		},
	}
	q.pending[h.id] = e
	q.startTickerLocked()
	q.wg.Add(1)
	q.mu.Unlock()
	q.changed()

	go func() {
		defer q.wg.Done()
		defer cancel()
		h.val, h.err = run(q, ctx, e, first, execute)
		q.finish(h.id)
		if h.err != nil && !IsCancelled(h.err) {
			logs.Warnf("retry: %s gave up after %d attempts, err: %+v", url, q.opt.MaxRetries+1, h.err)
		}
		close(h.done)
	}()
	return h
}

func run[T any](q *Queue, ctx context.Context, e *entry, first time.Duration, execute func(ctx context.Context) (T, error)) (T, error) {
	var zero T
	select {
	case <-q.opt.Clock.After(first):
	case <-ctx.Done():
		return zero, q.cause(e, ctx.Err())
	}

	v, err := retry.DoWithData(
		func() (T, error) {
			if err := ctx.Err(); err != nil {
				return zero, retry.Unrecoverable(err)
			}
			return execute(ctx)
		},
		retry.Attempts(uint(q.opt.MaxRetries+1)),
		retry.DelayType(q.backoff.DelayType(1, func(attempt int, d time.Duration) {
			q.mu.Lock()
			e.state.Attempt = attempt + 1
			e.state.RetryAt = q.opt.Clock.Now().Add(d)
			q.mu.Unlock()
			q.changed()
		})),
		retry.Context(ctx),
		retry.WithTimer(backoff.Timer{Clock: q.opt.Clock}),
		retry.LastErrorOnly(true),
	)
	if err != nil {
		return zero, q.cause(e, err)
	}
	return v, nil
}

// cause maps any error seen after a cancellation to ErrCancelled.
func (q *Queue) cause(e *entry, err error) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	if e.cancelled {
		return ErrCancelled
	}
	return err
}

// Cancel cancels the pending retry id.
func (q *Queue) Cancel(id string) bool {
	q.mu.Lock()
	e, ok := q.pending[id]
	if ok {
		e.cancelled = true
		e.state.Cancelled = true
		e.cancel()
	}
	q.mu.Unlock()
	if ok {
		q.changed()
	}
	return ok
}

// CancelAll cancels every pending retry and returns how many there were.
func (q *Queue) CancelAll() int {
	q.mu.Lock()
	n := 0
	for _, e := range q.pending {
		if !e.cancelled {
			e.cancelled = true
			e.state.Cancelled = true
			e.cancel()
			n++
		}
	}
	q.mu.Unlock()
	if n > 0 {
		q.changed()
	}
	return n
}

// Pending returns the pending retries in enqueue order.
func (q *Queue) Pending() []State {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.pendingLocked()
}

func (q *Queue) pendingLocked() []State {
	now := q.opt.Clock.Now()
	entries := make([]*entry, 0, len(q.pending))
	for _, e := range q.pending {
		entries = append(entries, e)
	}
	sort.Slice(entries, func(i, j int) bool { return entries[i].seq < entries[j].seq })

	out := make([]State, len(entries))
	for i, e := range entries {
		st := e.state
		if remaining := st.RetryAt.Sub(now); remaining > 0 {
			st.SecondsRemaining = int(math.Ceil(remaining.Seconds()))
		}
		out[i] = st
	}
	return out
}

// Close cancels everything and waits for the retry goroutines to exit.
func (q *Queue) Close() {
	q.mu.Lock()
	if q.closed {
		q.mu.Unlock()
		return
	}
	q.closed = true
	close(q.stop)
	q.mu.Unlock()

	q.CancelAll()
	q.wg.Wait()
}

func (q *Queue) finish(id string) {
	q.mu.Lock()
	delete(q.pending, id)
	q.mu.Unlock()
	q.changed()
}

func (q *Queue) changed() {
	if q.opt.OnChange == nil {
		return
	}
	q.opt.OnChange(q.Pending())
}

// startTickerLocked runs the countdown ticker while anything is pending.
func (q *Queue) startTickerLocked() {
	if q.ticking || q.opt.OnChange == nil {
		return
	}
	q.ticking = true
	q.wg.Add(1)
	go func() {
		defer q.wg.Done()
		ticker := q.opt.Clock.NewTicker(time.Second)
		defer ticker.Stop()
		for {
			select {
			case <-q.stop:
				q.mu.Lock()
				q.ticking = false
				q.mu.Unlock()
				return
			case <-ticker.Chan():
			}
			q.mu.Lock()
			if len(q.pending) == 0 {
				q.ticking = false
				q.mu.Unlock()
				return
			}
			states := q.pendingLocked()
			q.mu.Unlock()
			q.opt.OnChange(states)
		}
	}()
}

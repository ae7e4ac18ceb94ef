package poll

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

var errUnavailable = errors.New("503 service unavailable")

func noJitter() float64 { return 0 }

func newFetcher[T any](t *testing.T, opt Options[T]) *Fetcher[T] {
	t.Helper()
	opt.Rand = noJitter
	f, err := New(opt)
	require.NoError(t, err)
	t.Cleanup(f.Stop)
	return f
}

func waitCalls(t *testing.T, calls *atomic.Int32, want int32) {
	t.Helper()
	require.Eventually(t, func() bool { return calls.Load() == want }, 2*time.Second, time.Millisecond,
		"want %d calls, have %d", want, calls.Load())
}

func waitSettled[T any](t *testing.T, f *Fetcher[T]) State[T] {
	t.Helper()
	require.Eventually(t, func() bool { return !f.State().IsFetching }, 2*time.Second, time.Millisecond)
	return f.State()
}

func TestPollingCadence(t *testing.T) {
	clock := clockwork.NewFakeClock()
	var calls atomic.Int32
	f := newFetcher(t, Options[int32]{
		Fetch:           func(context.Context) (int32, error) { return calls.Add(1), nil },
		Enabled:         true,
		PollingInterval: 5 * time.Second,
		Clock:           clock,
	})
	f.Start()
	waitCalls(t, &calls, 1)

	clock.BlockUntil(1)
	clock.Advance(5 * time.Second)
	waitCalls(t, &calls, 2)

	clock.BlockUntil(1)
	clock.Advance(5 * time.Second)
	waitCalls(t, &calls, 3)

	st := waitSettled(t, f)
	assert.Equal(t, StatusSuccess, st.Status)
	assert.Equal(t, int32(3), st.Data)
}

func TestDisablingBeforeFirstPollStopsPolling(t *testing.T) {
	clock := clockwork.NewFakeClock()
	var calls atomic.Int32
	f := newFetcher(t, Options[int32]{
		Fetch:           func(context.Context) (int32, error) { return calls.Add(1), nil },
		Enabled:         true,
		PollingInterval: 5 * time.Second,
		Clock:           clock,
	})
	f.Start()
	waitCalls(t, &calls, 1)
	clock.BlockUntil(1)

	f.SetEnabled(false)
	clock.Advance(10 * time.Second)
	time.Sleep(20 * time.Millisecond)
	assert.Equal(t, int32(1), calls.Load())

	f.SetEnabled(true)
	waitCalls(t, &calls, 2)
}

func TestDisabledFetchesOnlyOnRefetch(t *testing.T) {
	var calls atomic.Int32
	f := newFetcher(t, Options[int]{
		Fetch: func(context.Context) (int, error) { calls.Add(1); return 0, nil },
		Clock: clockwork.NewFakeClock(),
	})
	f.Start()
	assert.Equal(t, StatusIdle, f.State().Status)
	assert.Zero(t, calls.Load())

	f.Refetch()
	waitCalls(t, &calls, 1)
	assert.Equal(t, StatusSuccess, waitSettled(t, f).Status)
}

func TestRetriesKeepStaleData(t *testing.T) {
	clock := clockwork.NewFakeClock()
	var fail atomic.Bool
	var calls atomic.Int32
	f := newFetcher(t, Options[string]{
		Fetch: func(context.Context) (string, error) {
			calls.Add(1)
			if fail.Load() {
				return "", errUnavailable
			}
			return "healthy", nil
		},
		Enabled:       true,
		RetryAttempts: 2,
		Clock:         clock,
	})
	f.Start()
	st := waitSettled(t, f)
	require.Equal(t, StatusSuccess, st.Status)

	fail.Store(true)
	f.Refetch()
	waitCalls(t, &calls, 2)
	clock.BlockUntil(1)
	clock.Advance(time.Second)
	waitCalls(t, &calls, 3)
	clock.BlockUntil(1)
	clock.Advance(2 * time.Second)
	waitCalls(t, &calls, 4)

	st = waitSettled(t, f)
	assert.Equal(t, StatusError, st.Status)
	assert.ErrorIs(t, st.Err, errUnavailable)
	assert.True(t, st.HasData)
	assert.Equal(t, "healthy", st.Data)
}

func TestZeroRetryAttemptsFetchesOnce(t *testing.T) {
	var calls atomic.Int32
	f := newFetcher(t, Options[int]{
		Fetch: func(context.Context) (int, error) {
			calls.Add(1)
			return 0, errUnavailable
		},
		Enabled: true,
		Clock:   clockwork.NewFakeClock(),
	})
	f.Start()
	require.Eventually(t, func() bool { return f.State().Status == StatusError }, 2*time.Second, time.Millisecond)
	assert.ErrorIs(t, f.State().Err, errUnavailable)
	assert.Equal(t, int32(1), calls.Load())
}

func TestPausePollingOnError(t *testing.T) {
	clock := clockwork.NewFakeClock()
	var calls atomic.Int32
	var fail atomic.Bool
	fail.Store(true)
	f := newFetcher(t, Options[int]{
		Fetch: func(context.Context) (int, error) {
			calls.Add(1)
			if fail.Load() {
				return 0, errUnavailable
			}
			return 1, nil
		},
		Enabled:             true,
		RetryAttempts:       -1,
		PollingInterval:     time.Second,
		PausePollingOnError: true,
		Clock:               clock,
	})
	f.Start()
	st := waitSettled(t, f)
	assert.Equal(t, StatusError, st.Status)

	clock.Advance(time.Minute)
	time.Sleep(20 * time.Millisecond)
	assert.Equal(t, int32(1), calls.Load())

	fail.Store(false)
	f.Refetch()
	waitCalls(t, &calls, 2)
	clock.BlockUntil(1)
	clock.Advance(time.Second)
	waitCalls(t, &calls, 3)
}

func TestRefetchAbortsInFlight(t *testing.T) {
	var calls atomic.Int32
	aborted := make(chan struct{})
	f := newFetcher(t, Options[string]{
		Fetch: func(ctx context.Context) (string, error) {
			if calls.Add(1) == 1 {
				<-ctx.Done()
				close(aborted)
				return "stale", ctx.Err()
			}
			return "fresh", nil
		},
		Enabled: true,
		Clock:   clockwork.NewFakeClock(),
	})
	f.Start()
	waitCalls(t, &calls, 1)
	f.Refetch()

	select {
	case <-aborted:
	case <-time.After(2 * time.Second):
		t.Fatal("in-flight fetch was not aborted")
	}
	require.Eventually(t, func() bool { return f.State().Status == StatusSuccess }, 2*time.Second, time.Millisecond)
	assert.Equal(t, "fresh", f.State().Data)
}

func TestStopPreventsFurtherUpdates(t *testing.T) {
	release := make(chan struct{})
	var changes atomic.Int32
	f, err := New(Options[int]{
		Fetch: func(ctx context.Context) (int, error) {
			select {
			case <-release:
				return 1, nil
			case <-ctx.Done():
				return 0, ctx.Err()
			}
		},
		Enabled:  true,
		Clock:    clockwork.NewFakeClock(),
		OnChange: func(State[int]) { changes.Add(1) },
	})
	require.NoError(t, err)
	f.Start()
	f.Stop()
	close(release)
	f.Refetch()
	f.Stop()

	assert.Zero(t, changes.Load())
	assert.False(t, f.State().HasData)
}

func TestNewRequiresFetch(t *testing.T) {
	_, err := New(Options[int]{})
	assert.Error(t, err)
	assert.Equal(t, "error", StatusError.String())
}

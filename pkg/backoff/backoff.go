package backoff

import (
	"math"
	"math/rand"
	"time"
)

const (
	// DefaultMax caps the exponential delay when no max is supplied.
	DefaultMax = 30 * time.Second
	// JitterRatio is the upper bound of the random jitter as a fraction of the capped delay.
	JitterRatio = 0.25
)

// Backoff computes exponential delays with jitter.
type Backoff struct {
	// Base is the delay for attempt 0.
	Base time.Duration
	// Max caps the exponential growth before jitter is applied.
	Max time.Duration
	// Rand returns a value in [0,1). Defaults to math/rand.
	Rand func() float64
}

// Default returns the reconnect defaults: 1s base, 30s cap.
func Default() Backoff {
	return Backoff{
		Base: time.Second,
		Max:  DefaultMax,
	}
}

// Delay returns the jittered delay for attempt using the shared formula.
func Delay(attempt int, base, max time.Duration) time.Duration {
	return Backoff{Base: base, Max: max}.Next(attempt)
}

// Next returns floor(capped + rand*0.25*capped) truncated to whole milliseconds.
func (b Backoff) Next(attempt int) time.Duration {
	capped := b.Capped(attempt)
	random := b.Rand
	if random == nil {
		random = rand.Float64
	}
	r := random()
	if r < 0 || r >= 1 {
		r = 0
	}
	ms := float64(capped) / float64(time.Millisecond)
	return time.Duration(math.Floor(ms+r*JitterRatio*ms)) * time.Millisecond
}

// Capped returns min(base*2^attempt, max) without jitter.
func (b Backoff) Capped(attempt int) time.Duration {
	if attempt < 0 {
		attempt = 0
	}
	max := b.Max
	if max <= 0 {
		max = DefaultMax
	}
	base := b.Base
	if base <= 0 {
		return 0
	}

	wait := base
	for i := 0; i < attempt; i++ {
		if wait >= max/2 {
			wait = max
			break
		}
		wait *= 2
	}
	if wait > max {
		wait = max
	}
	return wait
}

// WithRetryAfter is the rate-limit variant: on attempt 0, a positive server
// supplied retryAfter is used as-is (capped at Max) when use is set.
// Any other attempt falls back to Next.
func (b Backoff) WithRetryAfter(attempt int, retryAfter time.Duration, use bool) time.Duration {
	if attempt == 0 && use && retryAfter > 0 {
		max := b.Max
		if max <= 0 {
			max = DefaultMax
		}
		if retryAfter > max {
			return max
		}
		return retryAfter
	}
	return b.Next(attempt)
}

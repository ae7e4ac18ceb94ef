package backoff

import (
	"time"

	"github.com/avast/retry-go/v4"
	"github.com/jonboulle/clockwork"
)

// Timer drives retry-go waits from a clock, so fake clocks control retries.
type Timer struct {
	Clock clockwork.Clock
}

// After implements retry-go's timer on the wrapped clock.
func (t Timer) After(d time.Duration) <-chan time.Time {
	if t.Clock == nil {
		return time.After(d)
	}
	return t.Clock.After(d)
}

// DelayType adapts b to retry-go. retry-go numbers its first wait 0; offset
// shifts that onto the attempt index fed to Next.
func (b Backoff) DelayType(offset int, observe ...func(attempt int, d time.Duration)) retry.DelayTypeFunc {
	return func(n uint, _ error, _ *retry.Config) time.Duration {
		attempt := int(n) + offset
		d := b.Next(attempt)
		for _, f := range observe {
			f(attempt, d)
		}
		return d
	}
}

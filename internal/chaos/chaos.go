// Package chaos wraps a websocket.Dialer with fault injection for exercising
// reconnect and dispatch paths against a live backend.
package chaos

import (
	"context"
	"fmt"
	"math/rand"
	"sync"
	"time"

	"github.com/mikesvoboda/nemotron-v3-home-security-intelligence-sub002/pkg/exception"
	"github.com/mikesvoboda/nemotron-v3-home-security-intelligence-sub002/pkg/websocket"
)

// Config controls chaos injection behavior.
type Config struct {
	Seed         int64   `mapstructure:"seed"`
	DialFailRate float64 `mapstructure:"dial_fail_rate"`
	// StallRate holds a dial open until its context ends.
	StallRate     float64       `mapstructure:"stall_rate"`
	DropRate      float64       `mapstructure:"drop_rate"`
	DuplicateRate float64       `mapstructure:"duplicate_rate"`
	MaxDelay      time.Duration `mapstructure:"max_delay"`
}

// Enabled reports whether any fault is configured.
func (c Config) Enabled() bool {
	return c.DialFailRate > 0 || c.StallRate > 0 || c.DropRate > 0 || c.DuplicateRate > 0 || c.MaxDelay > 0
}

// Validate ensures the config is within supported ranges.
func (c Config) Validate() error {
	rates := []struct {
		name string
		v    float64
	}{
		{"dial_fail_rate", c.DialFailRate},
		{"stall_rate", c.StallRate},
		{"drop_rate", c.DropRate},
		{"duplicate_rate", c.DuplicateRate},
	}
	for _, r := range rates {
		if r.v < 0 || r.v > 1 {
			return fmt.Errorf("%w: %s=%v", exception.ErrChaosRateRange, r.name, r.v)
		}
	}
	if c.MaxDelay < 0 {
		return fmt.Errorf("%w: max_delay must be >= 0", exception.ErrConfigInvalid)
	}
	return nil
}

// Dialer injects faults into connections opened by an underlying dialer.
type Dialer struct {
	base websocket.Dialer
	cfg  Config

	mu  sync.Mutex
	rng *rand.Rand
}

// NewDialer wraps base. A zero Seed picks one from the clock.
func NewDialer(base websocket.Dialer, cfg Config) (*Dialer, error) {
	if base == nil {
		return nil, exception.ErrNilInstance
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if cfg.Seed == 0 {
		cfg.Seed = time.Now().UTC().UnixNano()
	}
	return &Dialer{
		base: base,
		cfg:  cfg,
		rng:  rand.New(rand.NewSource(cfg.Seed)),
	}, nil
}

func (d *Dialer) Dial(ctx context.Context, key websocket.Key) (websocket.Conn, error) {
	if d.roll(d.cfg.DialFailRate) {
		return nil, exception.ErrChaosDialFailed
	}
	if d.roll(d.cfg.StallRate) {
		<-ctx.Done()
		return nil, ctx.Err()
	}
	c, err := d.base.Dial(ctx, key)
	if err != nil {
		return nil, err
	}
	return &conn{Conn: c, d: d}, nil
}

func (d *Dialer) roll(rate float64) bool {
	if rate <= 0 {
		return false
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.rng.Float64() < rate
}

func (d *Dialer) delay() time.Duration {
	if d.cfg.MaxDelay <= 0 {
		return 0
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	return time.Duration(d.rng.Int63n(int64(d.cfg.MaxDelay) + 1))
}

type conn struct {
	websocket.Conn
	d *Dialer

	// pending holds a duplicated frame. Read is only called from one
	// goroutine per connection.
	pending []byte
	pendTyp websocket.MessageType
}

func (c *conn) Read(ctx context.Context) (websocket.MessageType, []byte, error) {
	if c.pending != nil {
		p, typ := c.pending, c.pendTyp
		c.pending = nil
		return typ, p, nil
	}
	for {
		typ, payload, err := c.Conn.Read(ctx)
		if err != nil {
			return typ, payload, err
		}
		if c.d.roll(c.d.cfg.DropRate) {
			continue
		}
		if wait := c.d.delay(); wait > 0 {
			t := time.NewTimer(wait)
			select {
			case <-t.C:
			case <-ctx.Done():
				t.Stop()
				return 0, nil, ctx.Err()
			}
		}
		if c.d.roll(c.d.cfg.DuplicateRate) {
			c.pending = append([]byte(nil), payload...)
			c.pendTyp = typ
		}
		return typ, payload, nil
	}
}

package websocket

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"github.com/mikesvoboda/nemotron-v3-home-security-intelligence-sub002/pkg/backoff"
	"github.com/mikesvoboda/nemotron-v3-home-security-intelligence-sub002/pkg/exception"
	"github.com/yanun0323/logs"
)

// connection is the record for one Key: one physical socket at a time, its
// subscribers, and the reconnect state machine.
type connection struct {
	key    Key
	opt    *Options
	subs   *subscriptions
	router router
	writer *writer

	// dispatch serializes subscriber callbacks. open is the dispatcher's view of
	// whether OnOpen has been delivered for the current socket.
	dispatch sync.Mutex
	open     bool

	mu            sync.Mutex
	cfg           Config
	status        Status
	attempts      int
	exhausted     bool
	lastHeartbeat time.Time
	lastSeen      time.Time
	shouldConnect bool
	running       bool
	gen           uint64
	cancel        context.CancelFunc
	done          chan struct{}
}

// newConnection builds a record. prev, when set, is the run loop of an earlier
// record for the same key; the first dial waits for it to exit.
func newConnection(key Key, cfg Config, opt *Options, prev chan struct{}) *connection {
	cfg.init()
	subs := newSubscriptions()
	return &connection{
		key:    key,
		opt:    opt,
		subs:   subs,
		router: router{subs: subs},
		writer: newWriter(cfg.WriteQueueSize),
		cfg:    cfg,
		done:   prev,
	}
}

// ensureStarted starts the run loop unless it is already running or failed.
func (c *connection) ensureStarted(parent context.Context, wg *sync.WaitGroup) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.running || c.status == StatusFailed {
		return
	}
	c.startLocked(parent, wg)
}

// reconnect resets the retry bookkeeping and restarts the run loop.
func (c *connection) reconnect(parent context.Context, wg *sync.WaitGroup, cfg *Config) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if cfg != nil {
		next := *cfg
		next.init()
		c.cfg = next
	}
	c.attempts = 0
	c.exhausted = false
	c.startLocked(parent, wg)
}

// disconnect stops the run loop and suppresses automatic reconnection. The
// returned channel closes once the loop has exited, or is nil if it never ran.
func (c *connection) disconnect() chan struct{} {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.shouldConnect = false
	c.status = StatusDisconnected
	c.running = false
	c.gen++
	if c.cancel != nil {
		c.cancel()
		c.cancel = nil
	}
	return c.done
}

// startLocked launches a new generation of the run loop. The new loop waits for
// the previous one to exit, so at most one socket is open per record.
func (c *connection) startLocked(parent context.Context, wg *sync.WaitGroup) {
	if c.cancel != nil {
		c.cancel()
	}
	prev := c.done
	ctx, cancel := context.WithCancel(parent)
	c.gen++
	gen := c.gen
	c.cancel = cancel
	c.done = make(chan struct{})
	done := c.done
	c.running = true
	c.shouldConnect = true
	c.status = StatusConnecting

	wg.Add(1)
	go func() {
		defer wg.Done()
		defer close(done)
		defer cancel()
		if prev != nil {
			<-prev
		}
		c.run(ctx, gen)
		c.mu.Lock()
		if c.gen == gen {
			c.running = false
		}
		c.mu.Unlock()
	}()
}

func (c *connection) run(ctx context.Context, gen uint64) {
	for {
		if ctx.Err() != nil {
			return
		}
		conn, err := c.dial(ctx, gen)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			logs.Errorf("websocket: dial %s, err: %+v", c.key.URL, err)
			c.opt.Observer.Disconnected(c.key, err)
			c.deliver(func() {
				c.router.error(err)
				c.router.close(err)
			})
			if !c.backoff(ctx, gen) {
				return
			}
			continue
		}

		if !c.opened(gen) {
			_ = conn.Close(CloseNormal, "superseded")
			return
		}

		err = c.runSession(ctx, gen, conn)
		c.closed(gen, err)

		if ctx.Err() != nil {
			return
		}
		if !c.backoff(ctx, gen) {
			return
		}
	}
}

func (c *connection) dial(ctx context.Context, gen uint64) (Conn, error) {
	c.mu.Lock()
	if c.gen != gen {
		c.mu.Unlock()
		return nil, context.Canceled
	}
	c.status = StatusConnecting
	timeout := c.cfg.ConnectionTimeout
	c.mu.Unlock()

	dialCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	var timedOut atomic.Bool
	if timeout > 0 {
		timer := c.opt.Clock.AfterFunc(timeout, func() {
			timedOut.Store(true)
			cancel()
		})
		defer timer.Stop()
	}

	conn, err := c.opt.Dialer.Dial(dialCtx, c.key)
	if err != nil {
		if timedOut.Load() && ctx.Err() == nil {
			return nil, exception.ErrWebSocketConnectionTimeout
		}
		return nil, err
	}
	return conn, nil
}

func (c *connection) opened(gen uint64) bool {
	c.dispatch.Lock()
	defer c.dispatch.Unlock()

	c.mu.Lock()
	if c.gen != gen {
		c.mu.Unlock()
		return false
	}
	c.status = StatusConnected
	c.attempts = 0
	c.exhausted = false
	c.lastSeen = c.opt.Clock.Now()
	c.writer.setConnected(true)
	c.mu.Unlock()

	c.opt.Observer.Connected(c.key)
	c.open = true
	c.router.open()
	return true
}

func (c *connection) closed(gen uint64, cause error) {
	c.writer.setConnected(false)
	c.writer.drain()
	if errors.Is(cause, context.Canceled) {
		cause = nil
	}

	c.mu.Lock()
	if c.gen == gen && c.status == StatusConnected {
		c.status = StatusDisconnected
	}
	c.mu.Unlock()

	c.opt.Observer.Disconnected(c.key, cause)
	var closeErr *CloseError
	c.deliver(func() {
		c.open = false
		if cause != nil && !errors.As(cause, &closeErr) {
			c.router.error(cause)
		}
		c.router.close(cause)
	})
}

// backoff decides what follows a close: wait and retry, fail, or stop.
func (c *connection) backoff(ctx context.Context, gen uint64) bool {
	c.mu.Lock()
	if c.gen != gen || !c.shouldConnect {
		c.mu.Unlock()
		return false
	}
	if c.cfg.DisableReconnect {
		c.status = StatusDisconnected
		c.mu.Unlock()
		return false
	}
	if c.attempts >= c.cfg.MaxReconnectAttempts {
		c.status = StatusFailed
		c.exhausted = true
		attempts := c.attempts
		c.mu.Unlock()

		logs.Errorf("websocket: %s gave up after %d reconnect attempts", c.key.URL, attempts)
		c.opt.Observer.RetriesExhausted(c.key)
		c.deliver(c.router.exhausted)
		return false
	}
	wait := backoff.Delay(c.attempts, c.cfg.ReconnectInterval, c.cfg.MaxReconnectInterval)
	c.status = StatusReconnecting
	c.attempts++
	attempt := c.attempts
	c.mu.Unlock()

	c.opt.Observer.ReconnectScheduled(c.key, attempt, wait)
	if wait <= 0 {
		return ctx.Err() == nil
	}
	timer := c.opt.Clock.NewTimer(wait)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-timer.Chan():
		return true
	}
}

func (c *connection) runSession(ctx context.Context, gen uint64, conn Conn) error {
	sessionCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	errCh := make(chan error, 1)
	readDone := make(chan struct{})
	go func() {
		defer close(readDone)
		c.readLoop(sessionCtx, conn, errCh)
	}()

	reason := "session_end"
	defer func() {
		_ = conn.Close(CloseNormal, reason)
		<-readDone
	}()

	c.mu.Lock()
	pingInterval := c.cfg.PingInterval
	heartbeatTimeout := c.cfg.HeartbeatTimeout
	c.mu.Unlock()

	var ping <-chan time.Time
	if pingInterval > 0 {
		ticker := c.opt.Clock.NewTicker(pingInterval)
		defer ticker.Stop()
		ping = ticker.Chan()
	}
	var liveness <-chan time.Time
	if heartbeatTimeout > 0 {
		ticker := c.opt.Clock.NewTicker(heartbeatTimeout / 2)
		defer ticker.Stop()
		liveness = ticker.Chan()
	}

	for {
		select {
		case <-ctx.Done():
			reason = "disconnect"
			return ctx.Err()
		case err := <-errCh:
			return err
		case frame := <-c.writer.queue:
			if err := conn.Write(sessionCtx, frame.msgType, frame.payload); err != nil {
				return err
			}
		case <-ping:
			c.writer.send(MessageText, pingPayload)
		case <-liveness:
			c.mu.Lock()
			silent := c.opt.Clock.Since(c.lastSeen)
			c.mu.Unlock()
			if silent > heartbeatTimeout {
				logs.Errorf("websocket: %s silent for %s, closing", c.key.URL, silent)
				reason = "heartbeat_timeout"
				return exception.ErrWebSocketHeartbeatTimeout
			}
		}
	}
}

func (c *connection) readLoop(ctx context.Context, conn Conn, errCh chan<- error) {
	for {
		msgType, payload, err := conn.Read(ctx)
		if err != nil {
			errCh <- err
			return
		}
		if msgType != MessageText && msgType != MessageBinary {
			continue
		}
		c.handleFrame(payload)
	}
}

func (c *connection) handleFrame(payload []byte) {
	if hb, ok := heartbeatType(payload); ok {
		now := c.opt.Clock.Now()
		c.mu.Lock()
		c.lastHeartbeat = now
		c.lastSeen = now
		autoRespond := c.cfg.AutoRespondToHeartbeat
		c.mu.Unlock()

		if hb == HeartbeatPing && autoRespond {
			c.writer.send(MessageText, pongPayload)
		}
		c.opt.Observer.MessageReceived(c.key, true)
		c.deliver(c.router.heartbeat)
		return
	}

	msg := Decode(payload)
	c.opt.Observer.MessageReceived(c.key, false)
	c.deliver(func() {
		c.router.message(msg)
	})
}

// activate delivers a synthesized OnOpen to a late subscriber when the socket is
// already open, then lets messages reach it.
func (c *connection) activate(id string, sub Subscriber) {
	c.dispatch.Lock()
	defer c.dispatch.Unlock()
	if !c.subs.Activate(id) {
		return
	}
	if c.open && sub.OnOpen != nil {
		sub.OnOpen()
	}
}

func (c *connection) deliver(f func()) {
	c.dispatch.Lock()
	defer c.dispatch.Unlock()
	f()
}

func (c *connection) send(data any) bool {
	c.mu.Lock()
	connected := c.status == StatusConnected
	c.mu.Unlock()
	if !connected {
		return false
	}
	payload, err := encode(data)
	if err != nil {
		logs.Errorf("websocket: encode outbound message, err: %+v", err)
		return false
	}
	return c.writer.send(MessageText, payload)
}

func (c *connection) state() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return State{
		Status:              c.status,
		IsConnected:         c.status == StatusConnected,
		ReconnectCount:      c.attempts,
		HasExhaustedRetries: c.exhausted,
		LastHeartbeat:       c.lastHeartbeat,
	}
}

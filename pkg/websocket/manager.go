package websocket

import (
	"context"
	"sync"

	"github.com/jonboulle/clockwork"
	"github.com/mikesvoboda/nemotron-v3-home-security-intelligence-sub002/pkg/exception"
	"github.com/yanun0323/logs"
)

// Options configures a Manager.
type Options struct {
	// Dialer opens physical connections. Defaults to a gorilla/websocket dialer.
	Dialer Dialer
	// Clock drives timers. Defaults to the real clock.
	Clock clockwork.Clock
	// Observer receives lifecycle signals. Defaults to a no-op.
	Observer Observer
	// KeepIdle keeps a connection open after its last subscriber leaves.
	KeepIdle bool
}

func (o *Options) init() {
	if o.Dialer == nil {
		o.Dialer = NewDialer(nil)
	}
	if o.Clock == nil {
		o.Clock = clockwork.NewRealClock()
	}
	if o.Observer == nil {
		o.Observer = nopObserver{}
	}
}

// Manager multiplexes subscribers over one physical connection per Key.
// Construct one per application and pass it to whoever needs it.
type Manager struct {
	opt    Options
	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	mu     sync.Mutex
	conns  map[string]*connection
	closed bool
	// closing holds the run loops of torn-down records until they exit, so a
	// new record for the same key dials only after the old socket is closed.
	closing map[string]chan struct{}
}

// NewManager builds a manager. Call Close to release every connection.
func NewManager(opt Options) *Manager {
	opt.init()
	ctx, cancel := context.WithCancel(context.Background())
	return &Manager{
		opt:     opt,
		ctx:     ctx,
		cancel:  cancel,
		conns:   make(map[string]*connection),
		closing: make(map[string]chan struct{}),
	}
}

// Subscribe attaches sub to the connection for key, opening it with cfg if no
// connection exists. cfg is ignored when the connection already exists.
//
// A subscriber joining an already open connection receives a synthesized OnOpen
// before any message. The returned function detaches sub and is safe to call
// more than once. On a closed manager sub.OnError receives
// exception.ErrWebSocketManagerClosed and nothing is dialed.
func (m *Manager) Subscribe(key Key, sub Subscriber, cfg Config) (unsubscribe func()) {
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		logs.Errorf("websocket: subscribe %s, err: %+v", key.URL, exception.ErrWebSocketManagerClosed)
		if sub.OnError != nil {
			sub.OnError(exception.ErrWebSocketManagerClosed)
		}
		return func() {}
	}
	name := key.String()
	c, ok := m.conns[name]
	if !ok {
		c = newConnection(key, cfg, &m.opt, m.closing[name])
		delete(m.closing, name)
		m.conns[name] = c
	}
	id := c.subs.Add(sub)
	count := c.subs.Count()
	m.wg.Add(1)
	go func() {
		defer m.wg.Done()
		c.activate(id, sub)
	}()
	c.ensureStarted(m.ctx, &m.wg)
	m.mu.Unlock()

	m.opt.Observer.SubscribersChanged(key, count)

	var once sync.Once
	return func() {
		once.Do(func() {
			m.unsubscribe(name, c, id)
		})
	}
}

func (m *Manager) unsubscribe(name string, c *connection, id string) {
	m.mu.Lock()
	remaining, ok := c.subs.Remove(id)
	if ok && remaining == 0 && !m.opt.KeepIdle && m.conns[name] == c {
		delete(m.conns, name)
		if done := c.disconnect(); done != nil {
			m.closing[name] = done
			m.wg.Add(1)
			go func() {
				defer m.wg.Done()
				<-done
				m.mu.Lock()
				if m.closing[name] == done {
					delete(m.closing, name)
				}
				m.mu.Unlock()
			}()
		}
	}
	m.mu.Unlock()

	if ok {
		m.opt.Observer.SubscribersChanged(c.key, remaining)
	}
}

// Send writes data to the connection for key. Strings and byte slices are sent
// as-is, anything else is JSON encoded. It returns false without writing when
// the connection is not open.
func (m *Manager) Send(key Key, data any) bool {
	c := m.lookup(key)
	if c == nil {
		return false
	}
	return c.send(data)
}

// State returns a snapshot of the connection for key.
func (m *Manager) State(key Key) State {
	c := m.lookup(key)
	if c == nil {
		return State{Status: StatusDisconnected}
	}
	return c.state()
}

// SubscriberCount returns the number of subscribers attached to key.
func (m *Manager) SubscriberCount(key Key) int {
	c := m.lookup(key)
	if c == nil {
		return 0
	}
	return c.subs.Count()
}

// Reconnect forces a new connection attempt for key, clearing the reconnect
// count and exhaustion flag. An optional cfg replaces the connection config.
func (m *Manager) Reconnect(key Key, cfg ...Config) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return
	}
	c := m.conns[key.String()]
	if c == nil {
		return
	}
	var next *Config
	if len(cfg) > 0 {
		next = &cfg[0]
	}
	c.reconnect(m.ctx, &m.wg, next)
}

// Disconnect closes the socket for key and stops automatic reconnection.
// Subscribers stay attached; a later Subscribe or Reconnect opens it again.
func (m *Manager) Disconnect(key Key) {
	c := m.lookup(key)
	if c == nil {
		return
	}
	c.disconnect()
}

// Keys returns the keys of every tracked connection.
func (m *Manager) Keys() []Key {
	m.mu.Lock()
	defer m.mu.Unlock()
	keys := make([]Key, 0, len(m.conns))
	for _, c := range m.conns {
		keys = append(keys, c.key)
	}
	return keys
}

// Close disconnects everything and waits for all connection goroutines to exit.
// It must not be called from a subscriber callback.
func (m *Manager) Close() {
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return
	}
	m.closed = true
	for name, c := range m.conns {
		c.disconnect()
		delete(m.conns, name)
	}
	m.mu.Unlock()

	m.cancel()
	m.wg.Wait()
}

func (m *Manager) lookup(key Key) *connection {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.conns[key.String()]
}

package dispatch

import (
	"sync"
	"time"

	"github.com/mikesvoboda/nemotron-v3-home-security-intelligence-sub002/pkg/websocket"
)

// ConnectionCallbacks are optional connection-level hooks.
type ConnectionCallbacks struct {
	OnConnect             func()
	OnDisconnect          func(err error)
	OnError               func(err error)
	OnMaxRetriesExhausted func()
}

// Observer counts dispatch outcomes.
type Observer interface {
	Dispatched(feature string, eventType string)
	Dropped(feature string, eventType string)
}

// Options configures a Dispatcher.
type Options struct {
	// Name labels the feature in logs and metrics.
	Name    string
	Key     websocket.Key
	Config  websocket.Config
	Profile Profile
	// Enabled gates connecting at all.
	Enabled  bool
	Observer Observer
}

// ConnectionStatus is the connection state as seen through a Profile.
type ConnectionStatus struct {
	Status              websocket.Status
	IsConnected         bool
	ReconnectCount      int
	HasExhaustedRetries bool
	LastHeartbeat       time.Time
}

// Dispatcher binds one manager subscription to a set of typed routes.
type Dispatcher struct {
	manager   *websocket.Manager
	opt       Options
	routes    map[string]Route
	callbacks Cell[ConnectionCallbacks]

	mu          sync.Mutex
	unsubscribe func()
}

// New builds a dispatcher. Nothing connects until Start.
func New(manager *websocket.Manager, opt Options, routes ...Route) *Dispatcher {
	if opt.Profile.Name == "" {
		opt.Profile = ProfileFull
	}
	if opt.Config.MaxReconnectAttempts <= 0 {
		opt.Config.MaxReconnectAttempts = opt.Profile.MaxReconnectAttempts
	}
	d := &Dispatcher{
		manager: manager,
		opt:     opt,
		routes:  make(map[string]Route),
	}
	for _, r := range routes {
		for _, t := range r.Types {
			d.routes[t] = r
		}
	}
	return d
}

// SetConnectionCallbacks replaces the connection hooks. The latest value is
// read on every invocation.
func (d *Dispatcher) SetConnectionCallbacks(cb ConnectionCallbacks) {
	d.callbacks.Store(cb)
}

// Start subscribes to the connection. It is a no-op when disabled or started.
func (d *Dispatcher) Start() {
	if !d.opt.Enabled || d.manager == nil {
		return
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.unsubscribe != nil {
		return
	}
	d.unsubscribe = d.manager.Subscribe(d.opt.Key, websocket.Subscriber{
		OnMessage: func(msg websocket.Message) { d.Handle(msg) },
		OnOpen: func() {
			if cb := d.callbacks.Load(); cb.OnConnect != nil {
				cb.OnConnect()
			}
		},
		OnClose: func(err error) {
			if cb := d.callbacks.Load(); cb.OnDisconnect != nil {
				cb.OnDisconnect(err)
			}
		},
		OnError: func(err error) {
			if cb := d.callbacks.Load(); cb.OnError != nil {
				cb.OnError(err)
			}
		},
		OnMaxRetriesExhausted: func() {
			if !d.opt.Profile.ReportExhaustion {
				return
			}
			if cb := d.callbacks.Load(); cb.OnMaxRetriesExhausted != nil {
				cb.OnMaxRetriesExhausted()
			}
		},
	}, d.opt.Config)
}

// Stop unsubscribes. Safe to call more than once.
func (d *Dispatcher) Stop() {
	d.mu.Lock()
	unsubscribe := d.unsubscribe
	d.unsubscribe = nil
	d.mu.Unlock()
	if unsubscribe != nil {
		unsubscribe()
	}
}

// Handle routes one message. It reports whether a route accepted it; unknown
// types and malformed payloads are dropped without error.
func (d *Dispatcher) Handle(msg websocket.Message) bool {
	env, ok := ParseEnvelope(msg)
	if !ok {
		return false
	}
	route, ok := d.routes[env.Type]
	if !ok {
		return false
	}
	if !route.handle(env) {
		if d.opt.Observer != nil {
			d.opt.Observer.Dropped(d.opt.Name, env.Type)
		}
		return false
	}
	if d.opt.Observer != nil {
		d.opt.Observer.Dispatched(d.opt.Name, env.Type)
	}
	return true
}

// Status returns the connection status shaped by the profile.
func (d *Dispatcher) Status() ConnectionStatus {
	if d.manager == nil {
		return ConnectionStatus{}
	}
	st := d.manager.State(d.opt.Key)
	status := ConnectionStatus{
		Status:         st.Status,
		IsConnected:    st.IsConnected,
		ReconnectCount: st.ReconnectCount,
		LastHeartbeat:  st.LastHeartbeat,
	}
	if d.opt.Profile.ReportExhaustion {
		status.HasExhaustedRetries = st.HasExhaustedRetries
	}
	return status
}

// Send writes data on the shared connection.
func (d *Dispatcher) Send(data any) bool {
	if d.manager == nil {
		return false
	}
	return d.manager.Send(d.opt.Key, data)
}

// Reconnect forces a new connection attempt.
func (d *Dispatcher) Reconnect() {
	if d.manager == nil {
		return
	}
	d.manager.Reconnect(d.opt.Key)
}

// Key returns the connection key.
func (d *Dispatcher) Key() websocket.Key {
	return d.opt.Key
}

// Name returns the feature label.
func (d *Dispatcher) Name() string {
	return d.opt.Name
}

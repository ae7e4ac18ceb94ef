package websocket

import (
	"strings"
	"time"
)

// MessageType represents a WebSocket message type.
// Values match RFC 6455 opcodes where applicable.
type MessageType uint8

const (
	// MessageText is a text data frame.
	MessageText MessageType = 1
	// MessageBinary is a binary data frame.
	MessageBinary MessageType = 2
	// MessageClose is a close control frame.
	MessageClose MessageType = 8
	// MessagePing is a ping control frame.
	MessagePing MessageType = 9
	// MessagePong is a pong control frame.
	MessagePong MessageType = 10
)

// CloseCode is a WebSocket close code.
type CloseCode uint16

const (
	// CloseNormal indicates a normal closure.
	CloseNormal CloseCode = 1000
	// CloseGoingAway indicates the endpoint is going away.
	CloseGoingAway CloseCode = 1001
	// CloseAbnormal indicates the connection dropped without a close frame.
	CloseAbnormal CloseCode = 1006
)

// Status is the lifecycle state of a shared connection.
type Status uint8

const (
	StatusDisconnected Status = iota
	StatusConnecting
	StatusConnected
	StatusReconnecting
	// StatusFailed is terminal until Manager.Reconnect is called.
	StatusFailed
)

func (s Status) String() string {
	switch s {
	case StatusDisconnected:
		return "disconnected"
	case StatusConnecting:
		return "connecting"
	case StatusConnected:
		return "connected"
	case StatusReconnecting:
		return "reconnecting"
	case StatusFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// Key identifies a logical endpoint. Subscribers sharing a Key share one socket.
type Key struct {
	// URL is the ws:// or wss:// endpoint.
	URL string
	// Protocols are offered as Sec-WebSocket-Protocol values.
	Protocols []string
}

// String returns the registry key.
func (k Key) String() string {
	if len(k.Protocols) == 0 {
		return k.URL
	}
	return k.URL + "#" + strings.Join(k.Protocols, ",")
}

// State is a read-only snapshot of a shared connection.
type State struct {
	Status              Status
	IsConnected         bool
	ReconnectCount      int
	HasExhaustedRetries bool
	// LastHeartbeat is zero until the first heartbeat frame arrives.
	LastHeartbeat time.Time
}

// Subscriber is one caller's callback set. All callbacks are optional and are
// invoked serially per connection, in delivery order.
type Subscriber struct {
	OnMessage             func(msg Message)
	OnOpen                func()
	OnClose               func(err error)
	OnError               func(err error)
	OnHeartbeat           func()
	OnMaxRetriesExhausted func()
}

// NoTimeout disables the connection-establishment timeout. Zero does too.
const NoTimeout time.Duration = -1

// DefaultConnectionTimeout is the handshake bound set by DefaultConfig.
const DefaultConnectionTimeout = 10 * time.Second

// Config tunes one shared connection. It is fixed by the first subscriber of a
// Key and replaced only through Manager.Reconnect.
type Config struct {
	// DisableReconnect turns off automatic reconnection after a close.
	DisableReconnect bool `mapstructure:"disable_reconnect"`
	// ReconnectInterval is the backoff base.
	ReconnectInterval time.Duration `mapstructure:"reconnect_interval"`
	// MaxReconnectInterval caps the exponential part of the backoff.
	MaxReconnectInterval time.Duration `mapstructure:"max_reconnect_interval"`
	// MaxReconnectAttempts is the number of reconnects allowed before the
	// connection fails.
	MaxReconnectAttempts int `mapstructure:"max_reconnect_attempts"`
	// ConnectionTimeout bounds the handshake. Zero or NoTimeout disables it.
	ConnectionTimeout time.Duration `mapstructure:"connection_timeout"`
	// AutoRespondToHeartbeat replies {"type":"pong"} to server pings.
	AutoRespondToHeartbeat bool `mapstructure:"auto_respond_to_heartbeat"`
	// HeartbeatTimeout force-closes a connection that has been silent for
	// longer than this. Zero disables liveness checks.
	HeartbeatTimeout time.Duration `mapstructure:"heartbeat_timeout"`
	// PingInterval sends {"type":"ping"} probes. Zero disables probing.
	PingInterval time.Duration `mapstructure:"ping_interval"`
	// WriteQueueSize bounds the outbound queue.
	WriteQueueSize int `mapstructure:"write_queue_size"`
}

// DefaultConfig returns the connection defaults.
func DefaultConfig() Config {
	cfg := Config{ConnectionTimeout: DefaultConnectionTimeout}
	cfg.init()
	return cfg
}

func (c *Config) init() {
	if c.ReconnectInterval <= 0 {
		c.ReconnectInterval = time.Second
	}
	if c.MaxReconnectInterval <= 0 {
		c.MaxReconnectInterval = 30 * time.Second
	}
	if c.MaxReconnectAttempts <= 0 {
		c.MaxReconnectAttempts = 15
	}
	if c.WriteQueueSize <= 0 {
		c.WriteQueueSize = 256
	}
}

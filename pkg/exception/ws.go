package exception

import "github.com/yanun0323/errors"

// WS errors
var (
	ErrWebSocketConnectionTimeout = errors.New("websocket: connection timeout")
	ErrWebSocketHeartbeatTimeout  = errors.New("websocket: heartbeat timeout")
	ErrWebSocketManagerClosed     = errors.New("websocket: manager closed")
	ErrWebSocketEmptyURL          = errors.New("websocket: empty url")
	ErrWebSocketUnsupportedScheme = errors.New("websocket: unsupported url scheme")
)

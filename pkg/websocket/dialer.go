package websocket

import (
	"context"
	"errors"
	"net/http"
	"net/url"
	"path"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/mikesvoboda/nemotron-v3-home-security-intelligence-sub002/pkg/exception"
)

const (
	DefaultHandshakeTimeout = 45 * time.Second
	DefaultCloseGracePeriod = time.Second
	DefaultMaxMessageSize   = 1 << 20
)

type dialer struct {
	base   *websocket.Dialer
	header http.Header
}

// NewDialer returns a Dialer backed by gorilla/websocket. base may be nil.
// Key.Protocols are offered as Sec-WebSocket-Protocol values.
func NewDialer(base *websocket.Dialer, header ...http.Header) Dialer {
	if base == nil {
		base = &websocket.Dialer{
			Proxy:            http.ProxyFromEnvironment,
			HandshakeTimeout: DefaultHandshakeTimeout,
		}
	}
	d := &dialer{base: base}
	if len(header) > 0 {
		d.header = header[0]
	}
	return d
}

func (d *dialer) Dial(ctx context.Context, key Key) (Conn, error) {
	if key.URL == "" {
		return nil, exception.ErrWebSocketEmptyURL
	}
	wd := *d.base
	wd.Subprotocols = key.Protocols
	raw, resp, err := wd.DialContext(ctx, key.URL, d.header)
	if err != nil {
		if resp != nil && resp.Body != nil {
			_ = resp.Body.Close()
		}
		return nil, err
	}
	raw.SetReadLimit(DefaultMaxMessageSize)
	return &gorillaConn{raw: raw}, nil
}

type gorillaConn struct {
	raw     *websocket.Conn
	writeMu sync.Mutex
	once    sync.Once
}

func (c *gorillaConn) Read(ctx context.Context) (MessageType, []byte, error) {
	msgType, payload, err := c.raw.ReadMessage()
	if err != nil {
		var ce *websocket.CloseError
		if errors.As(err, &ce) {
			return 0, nil, &CloseError{Code: CloseCode(ce.Code), Reason: ce.Text}
		}
		return 0, nil, err
	}
	return MessageType(msgType), payload, nil
}

func (c *gorillaConn) Write(ctx context.Context, msgType MessageType, payload []byte) error {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	deadline, ok := ctx.Deadline()
	if !ok {
		deadline = time.Now().Add(10 * time.Second)
	}
	_ = c.raw.SetWriteDeadline(deadline)
	return c.raw.WriteMessage(int(msgType), payload)
}

func (c *gorillaConn) Close(code CloseCode, reason string) error {
	var err error
	c.once.Do(func() {
		c.writeMu.Lock()
		msg := websocket.FormatCloseMessage(int(code), reason)
		_ = c.raw.WriteControl(websocket.CloseMessage, msg, time.Now().Add(DefaultCloseGracePeriod))
		c.writeMu.Unlock()
		err = c.raw.Close()
	})
	return err
}

// APIKeyProtocol returns the Sec-WebSocket-Protocol value carrying an API key.
func APIKeyProtocol(apiKey string) string {
	return "api-key." + apiKey
}

// ResolveURL builds a websocket URL from a page or API base URL and an
// endpoint path. http maps to ws and https maps to wss.
func ResolveURL(base string, endpoint string) (string, error) {
	u, err := url.Parse(base)
	if err != nil {
		return "", err
	}
	switch strings.ToLower(u.Scheme) {
	case "http", "ws":
		u.Scheme = "ws"
	case "https", "wss":
		u.Scheme = "wss"
	default:
		return "", exception.ErrWebSocketUnsupportedScheme
	}
	ep, err := url.Parse(endpoint)
	if err != nil {
		return "", err
	}
	u.Path = path.Join("/", u.Path, ep.Path)
	if ep.RawQuery != "" {
		u.RawQuery = ep.RawQuery
	}
	u.Fragment = ""
	return u.String(), nil
}

package deriv

import (
	"context"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

const (
	defaultHandshakeTimeout = 10 * time.Second
	defaultPingInterval     = 30 * time.Second
	defaultPongWait         = 60 * time.Second
	defaultWriteWait        = 10 * time.Second
	defaultReadLimit        = 1 << 20
)

// Dialer opens WebSocket connections to a Deriv-compatible endpoint.
type Dialer struct {
	url              string
	handshakeTimeout time.Duration
	pingInterval     time.Duration
	pongWait         time.Duration
	readLimit        int64
	logger           *zap.Logger
}

type DialerOption func(*Dialer)

func WithHandshakeTimeout(d time.Duration) DialerOption {
	return func(dl *Dialer) { dl.handshakeTimeout = d }
}

// WithKeepalive sets the control ping interval and how long to wait for any frame before giving up.
func WithKeepalive(pingInterval, pongWait time.Duration) DialerOption {
	return func(dl *Dialer) {
		dl.pingInterval = pingInterval
		dl.pongWait = pongWait
	}
}

func WithReadLimit(n int64) DialerOption {
	return func(dl *Dialer) { dl.readLimit = n }
}

// NewDialer creates a dialer for the given URL and logger.
func NewDialer(url string, logger *zap.Logger, opts ...DialerOption) *Dialer {
	d := &Dialer{
		url:              url,
		handshakeTimeout: defaultHandshakeTimeout,
		pingInterval:     defaultPingInterval,
		pongWait:         defaultPongWait,
		readLimit:        defaultReadLimit,
		logger:           logger,
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// Dial establishes the WebSocket connection and starts the keepalive pinger.
func (d *Dialer) Dial(ctx context.Context) (*Conn, error) {
	dialer := websocket.Dialer{
		Proxy:            http.ProxyFromEnvironment,
		HandshakeTimeout: d.handshakeTimeout,
	}

	ws, _, err := dialer.DialContext(ctx, d.url, nil)
	if err != nil {
		d.logger.Error("Failed to connect to WebSocket", zap.String("url", d.url), zap.Error(err))
		return nil, fmt.Errorf("dial %s: %w", d.url, err)
	}
	d.logger.Info("WebSocket connected", zap.String("url", d.url))

	ws.SetReadLimit(d.readLimit)
	_ = ws.SetReadDeadline(time.Now().Add(d.pongWait))
	ws.SetPongHandler(func(string) error {
		return ws.SetReadDeadline(time.Now().Add(d.pongWait))
	})

	c := &Conn{
		ws:       ws,
		pongWait: d.pongWait,
		done:     make(chan struct{}),
		logger:   d.logger,
	}
	go c.keepalive(d.pingInterval)
	return c, nil
}

// Conn is a single WebSocket session. ReadMessage must be called from one goroutine;
// WriteMessage and Close may be called concurrently.
type Conn struct {
	ws       *websocket.Conn
	pongWait time.Duration
	writeMu  sync.Mutex
	done     chan struct{}
	once     sync.Once
	logger   *zap.Logger
}

func (c *Conn) ReadMessage() ([]byte, error) {
	_, msg, err := c.ws.ReadMessage()
	if err != nil {
		return nil, err
	}
	// Any data frame proves the peer is alive
	_ = c.ws.SetReadDeadline(time.Now().Add(c.pongWait))
	return msg, nil
}

func (c *Conn) WriteMessage(data []byte) error {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()

	_ = c.ws.SetWriteDeadline(time.Now().Add(defaultWriteWait))
	return c.ws.WriteMessage(websocket.TextMessage, data)
}

func (c *Conn) Close() error {
	var err error
	c.once.Do(func() {
		close(c.done)
		_ = c.ws.WriteControl(
			websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
			time.Now().Add(time.Second),
		)
		err = c.ws.Close()
	})
	return err
}

func (c *Conn) keepalive(interval time.Duration) {
	if interval <= 0 {
		return
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-c.done:
			return
		case <-ticker.C:
			if err := c.ws.WriteControl(websocket.PingMessage, nil, time.Now().Add(defaultWriteWait)); err != nil {
				c.logger.Warn("WebSocket ping failed", zap.Error(err))
				return
			}
		}
	}
}

package dashboard

import (
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"digitdash/internal/events"

	"github.com/gorilla/websocket"
	"github.com/labstack/echo/v4"
	"go.uber.org/zap"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxMessageSize = 512
	clientBuffer   = 256
)

// Message is the frame sent to browser clients.
type Message struct {
	Type string `json:"type"`
	Data any    `json:"data"`
}

type client struct {
	conn *websocket.Conn
	send chan []byte
	once sync.Once
}

func (c *client) close() {
	c.once.Do(func() { close(c.send) })
}

// Hub fans bus events out to the connected /ws clients. A client that
// cannot keep up is disconnected.
type Hub struct {
	clients   map[*client]struct{}
	clientsMu sync.Mutex
	closed    bool
	upgrader  websocket.Upgrader
	hello     func() any
	logger    *zap.Logger
}

// NewHub creates a hub. hello, if set, builds the first message each client receives.
func NewHub(logger *zap.Logger, hello func() any) *Hub {
	return &Hub{
		clients: make(map[*client]struct{}),
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool { return true },
		},
		hello:  hello,
		logger: logger,
	}
}

// Attach broadcasts every bus event until the returned func is called.
func (h *Hub) Attach(bus *events.Bus) (detach func()) {
	return bus.SubscribeAll(func(e events.Event) {
		h.Broadcast(Message{Type: e.Kind().String(), Data: e})
	})
}

// HandleWebSocket manages the websocket connection lifecycle.
func (h *Hub) HandleWebSocket(c echo.Context) error {
	conn, err := h.upgrader.Upgrade(c.Response(), c.Request(), nil)
	if err != nil {
		h.logger.Warn("WebSocket upgrade failed", zap.Error(err))
		return nil
	}

	cl := &client{conn: conn, send: make(chan []byte, clientBuffer)}
	if h.hello != nil {
		if data, err := json.Marshal(Message{Type: "connection_init", Data: h.hello()}); err == nil {
			cl.send <- data
		}
	}
	if !h.register(cl) {
		conn.Close()
		return nil
	}

	go h.writeLoop(cl)

	// Incoming frames are ignored; reading detects disconnects and pongs.
	conn.SetReadLimit(maxMessageSize)
	conn.SetReadDeadline(time.Now().Add(pongWait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(pongWait))
	})
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			break
		}
	}

	h.unregister(cl)
	return nil
}

func (h *Hub) writeLoop(cl *client) {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		cl.conn.Close()
	}()

	for {
		select {
		case data, ok := <-cl.send:
			cl.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				cl.conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
				return
			}
			if err := cl.conn.WriteMessage(websocket.TextMessage, data); err != nil {
				h.unregister(cl)
				return
			}
		case <-ticker.C:
			if err := cl.conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(writeWait)); err != nil {
				h.unregister(cl)
				return
			}
		}
	}
}

func (h *Hub) register(cl *client) bool {
	h.clientsMu.Lock()
	defer h.clientsMu.Unlock()
	if h.closed {
		return false
	}
	h.clients[cl] = struct{}{}
	h.logger.Info("Dashboard client connected", zap.Int("clients", len(h.clients)))
	return true
}

func (h *Hub) unregister(cl *client) {
	h.clientsMu.Lock()
	defer h.clientsMu.Unlock()
	if _, ok := h.clients[cl]; ok {
		delete(h.clients, cl)
		cl.close()
		h.logger.Info("Dashboard client disconnected", zap.Int("clients", len(h.clients)))
	}
}

// Broadcast sends msg to all connected clients without blocking.
func (h *Hub) Broadcast(msg any) {
	data, err := json.Marshal(msg)
	if err != nil {
		h.logger.Error("Broadcast marshal error", zap.Error(err))
		return
	}

	h.clientsMu.Lock()
	defer h.clientsMu.Unlock()

	for cl := range h.clients {
		select {
		case cl.send <- data:
		default:
			h.logger.Warn("Dashboard client too slow, dropping")
			delete(h.clients, cl)
			cl.close()
		}
	}
}

func (h *Hub) Clients() int {
	h.clientsMu.Lock()
	defer h.clientsMu.Unlock()
	return len(h.clients)
}

// Close disconnects every client and refuses new ones.
func (h *Hub) Close() {
	h.clientsMu.Lock()
	defer h.clientsMu.Unlock()
	h.closed = true
	for cl := range h.clients {
		delete(h.clients, cl)
		cl.close()
	}
}

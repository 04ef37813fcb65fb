package feed

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"digitdash/internal/market"
	"digitdash/pkg/deriv"

	"github.com/jpillora/backoff"
	"go.uber.org/zap"
)

// TickHandler receives ticks for one symbol in arrival order.
type TickHandler func(market.Tick)

// Manager owns the feed connection: handshake, tick subscriptions, request
// correlation and reconnection.
type Manager struct {
	transport Transport
	opts      Options
	logger    *zap.Logger
	metrics   Metrics
	events    *EventLog

	// connectMu serializes Connect, Disconnect and reconnect attempts.
	connectMu sync.Mutex

	mu        sync.Mutex
	status    Status
	conn      *connection
	stopRetry chan struct{}
	subs      map[string]*subscription
	orphans   map[string]struct{} // forgotten locally, feed id not seen yet
	seq       map[string]uint64
	pending   map[int]chan reply
	nextReqID int
	nextID    uint64
	watchers  []statusWatcher
}

type connection struct {
	conn   Conn
	outbox chan []byte
	done   chan struct{}
	once   sync.Once
}

func (c *connection) close() {
	c.once.Do(func() {
		close(c.done)
		_ = c.conn.Close()
	})
}

type subscription struct {
	symbol   string
	feedID   string
	handlers map[uint64]*tickHandler
}

type tickHandler struct {
	id     uint64
	fn     TickHandler
	active atomic.Bool
}

type statusWatcher struct {
	id uint64
	fn func(Status)
}

type reply struct {
	raw json.RawMessage
	err error
}

type Option func(*Manager)

func WithMetrics(m Metrics) Option {
	return func(mgr *Manager) {
		if m != nil {
			mgr.metrics = m
		}
	}
}

// NewManager creates a disconnected manager. Call Connect to start streaming.
func NewManager(transport Transport, opts Options, logger *zap.Logger, options ...Option) *Manager {
	opts = opts.withDefaults()
	m := &Manager{
		transport: transport,
		opts:      opts,
		logger:    logger.Named("feed"),
		metrics:   nopMetrics{},
		events:    NewEventLog(opts.EventLogSize),
		status:    StatusDisconnected,
		subs:      make(map[string]*subscription),
		orphans:   make(map[string]struct{}),
		seq:       make(map[string]uint64),
		pending:   make(map[int]chan reply),
	}
	for _, o := range options {
		o(m)
	}
	return m
}

// Connect dials the feed and completes the ping handshake. It is a no-op when
// already connected. Local subscriptions are (re)sent once the handshake succeeds.
func (m *Manager) Connect(ctx context.Context) error {
	m.connectMu.Lock()
	defer m.connectMu.Unlock()

	m.mu.Lock()
	if m.status == StatusConnected {
		m.mu.Unlock()
		return nil
	}
	m.stopReconnectLocked()
	notify := m.setStatusLocked(StatusConnecting, "connect requested")
	m.mu.Unlock()
	notify()

	if err := m.establish(ctx); err != nil {
		m.mu.Lock()
		notify := m.setStatusLocked(StatusDisconnected, err.Error())
		m.mu.Unlock()
		notify()
		return err
	}
	return nil
}

// Disconnect closes the connection and stops any reconnect loop.
// Subscriptions stay registered and are restored by the next Connect.
func (m *Manager) Disconnect() error {
	m.connectMu.Lock()
	defer m.connectMu.Unlock()

	m.mu.Lock()
	c := m.conn
	m.conn = nil
	m.stopReconnectLocked()
	pending := m.takePendingLocked()
	clear(m.orphans)
	notify := m.setStatusLocked(StatusDisconnected, "disconnect requested")
	m.mu.Unlock()

	if c != nil {
		c.close()
	}
	failPending(pending, ErrConnectionClosed)
	notify()
	return nil
}

func (m *Manager) Status() Status {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.status
}

func (m *Manager) IsConnected() bool {
	return m.Status() == StatusConnected
}

// OnConnectionStatus registers fn for every status transition.
func (m *Manager) OnConnectionStatus(fn func(Status)) (unsubscribe func()) {
	m.mu.Lock()
	m.nextID++
	id := m.nextID
	m.watchers = append(m.watchers, statusWatcher{id: id, fn: fn})
	m.mu.Unlock()

	return func() {
		m.mu.Lock()
		defer m.mu.Unlock()
		for i, w := range m.watchers {
			if w.id == id {
				m.watchers = append(m.watchers[:i:i], m.watchers[i+1:]...)
				return
			}
		}
	}
}

// Events returns the connection event log, oldest first.
func (m *Manager) Events() []Event {
	return m.events.Events()
}

// SubscribeTicks registers handler for symbol. Only the first local subscriber
// sends a subscribe request; the last unsubscribe sends a forget.
func (m *Manager) SubscribeTicks(symbol string, handler TickHandler) (unsubscribe func()) {
	m.mu.Lock()
	sub, ok := m.subs[symbol]
	if !ok {
		sub = &subscription{symbol: symbol, handlers: make(map[uint64]*tickHandler)}
		m.subs[symbol] = sub
	}
	first := len(sub.handlers) == 0

	m.nextID++
	h := &tickHandler{id: m.nextID, fn: handler}
	h.active.Store(true)
	sub.handlers[h.id] = h

	if first && m.status == StatusConnected {
		if _, orphan := m.orphans[symbol]; orphan {
			// The feed stream is still open; adopt it instead of subscribing twice.
			delete(m.orphans, symbol)
		} else {
			m.enqueueLocked(m.conn, &deriv.TicksRequest{Ticks: symbol, Subscribe: 1})
		}
	}
	m.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() { m.unsubscribe(symbol, h) })
	}
}

func (m *Manager) unsubscribe(symbol string, h *tickHandler) {
	h.active.Store(false)

	m.mu.Lock()
	defer m.mu.Unlock()

	sub, ok := m.subs[symbol]
	if !ok {
		return
	}
	delete(sub.handlers, h.id)
	if len(sub.handlers) > 0 {
		return
	}
	delete(m.subs, symbol)

	if m.status != StatusConnected {
		return
	}
	if sub.feedID != "" {
		m.enqueueLocked(m.conn, &deriv.ForgetRequest{Forget: sub.feedID})
	} else {
		m.orphans[symbol] = struct{}{}
	}
}

// Send encodes req and queues it for the writer goroutine.
func (m *Manager) Send(req any) error {
	data, err := json.Marshal(req)
	if err != nil {
		return fmt.Errorf("feed: encode request: %w", err)
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if m.status != StatusConnected || m.conn == nil {
		return &NotConnectedError{Op: "send"}
	}
	return m.pushLocked(m.conn, data)
}

// Call sends req with a fresh req_id and waits for the matching response.
func (m *Manager) Call(ctx context.Context, req deriv.Request) (json.RawMessage, error) {
	m.mu.Lock()
	c := m.conn
	connected := m.status == StatusConnected
	m.mu.Unlock()

	if !connected || c == nil {
		return nil, &NotConnectedError{Op: "call"}
	}
	return m.callOn(ctx, c, req)
}

// ActiveSymbols fetches the list of tradable symbols.
func (m *Manager) ActiveSymbols(ctx context.Context) ([]deriv.ActiveSymbol, error) {
	raw, err := m.Call(ctx, &deriv.ActiveSymbolsRequest{ActiveSymbols: "brief", ProductType: "basic"})
	if err != nil {
		return nil, err
	}
	var resp deriv.ActiveSymbolsResponse
	if err := json.Unmarshal(raw, &resp); err != nil {
		return nil, &MalformedMessageError{Payload: raw, Err: err}
	}
	return resp.ActiveSymbols, nil
}

func (m *Manager) callOn(ctx context.Context, c *connection, req deriv.Request) (json.RawMessage, error) {
	ch := make(chan reply, 1)

	m.mu.Lock()
	m.nextReqID++
	id := m.nextReqID
	req.SetReqID(id)
	data, err := json.Marshal(req)
	if err != nil {
		m.mu.Unlock()
		return nil, fmt.Errorf("feed: encode request: %w", err)
	}
	m.pending[id] = ch
	if err := m.pushLocked(c, data); err != nil {
		delete(m.pending, id)
		m.mu.Unlock()
		return nil, err
	}
	m.mu.Unlock()

	select {
	case r := <-ch:
		return r.raw, r.err
	case <-ctx.Done():
		m.mu.Lock()
		delete(m.pending, id)
		m.mu.Unlock()
		return nil, ctx.Err()
	}
}

// establish dials, starts the reader and writer, and runs the handshake.
// Callers hold connectMu.
func (m *Manager) establish(ctx context.Context) error {
	conn, err := m.transport.Dial(ctx)
	if err != nil {
		return &ConnectionError{Op: "dial", Err: err}
	}

	c := &connection{
		conn:   conn,
		outbox: make(chan []byte, m.opts.SendQueue),
		done:   make(chan struct{}),
	}
	m.mu.Lock()
	m.conn = c
	m.mu.Unlock()

	go m.readLoop(c)
	go m.writeLoop(c)

	hctx, cancel := context.WithTimeout(ctx, m.opts.HandshakeTimeout)
	defer cancel()
	if _, err := m.callOn(hctx, c, &deriv.PingRequest{Ping: 1}); err != nil {
		m.mu.Lock()
		if m.conn == c {
			m.conn = nil
		}
		m.mu.Unlock()
		c.close()
		return &ConnectionError{Op: "handshake", Err: err}
	}

	m.mu.Lock()
	m.stopRetry = nil
	clear(m.orphans)
	for _, sub := range m.subs {
		if len(sub.handlers) == 0 {
			continue
		}
		sub.feedID = ""
		m.enqueueLocked(c, &deriv.TicksRequest{Ticks: sub.symbol, Subscribe: 1})
	}
	n := len(m.subs)
	notify := m.setStatusLocked(StatusConnected, fmt.Sprintf("handshake complete, %d subscriptions", n))
	m.mu.Unlock()
	notify()

	m.logger.Info("Feed connected", zap.Int("subscriptions", n))
	return nil
}

func (m *Manager) readLoop(c *connection) {
	for {
		msg, err := c.conn.ReadMessage()
		if err != nil {
			m.handleClosed(c, err)
			return
		}
		m.dispatch(c, msg)
	}
}

func (m *Manager) writeLoop(c *connection) {
	for {
		select {
		case <-c.done:
			return
		case data := <-c.outbox:
			if err := c.conn.WriteMessage(data); err != nil {
				m.logger.Warn("Feed write failed", zap.Error(err))
				// Closing makes the reader fail and drive the reconnect.
				c.close()
				return
			}
		}
	}
}

func (m *Manager) handleClosed(c *connection, err error) {
	m.mu.Lock()
	if m.conn != c {
		// Stale reader of a connection that was replaced or closed on purpose.
		m.mu.Unlock()
		return
	}
	m.conn = nil
	pending := m.takePendingLocked()
	clear(m.orphans)

	notify := func() {}
	if m.status == StatusConnected {
		m.logger.Warn("Feed connection lost", zap.Error(err))
		notify = m.setStatusLocked(StatusReconnecting, err.Error())
		stop := make(chan struct{})
		m.stopRetry = stop
		go m.reconnectLoop(stop)
	}
	m.mu.Unlock()

	c.close()
	failPending(pending, ErrConnectionClosed)
	notify()
}

func (m *Manager) reconnectLoop(stop chan struct{}) {
	b := &backoff.Backoff{
		Min:    m.opts.ReconnectMin,
		Max:    m.opts.ReconnectMax,
		Factor: m.opts.ReconnectFactor,
		Jitter: m.opts.ReconnectJitter,
	}

	for {
		wait := b.Duration()
		attempt := int(b.Attempt())

		timer := time.NewTimer(wait)
		select {
		case <-stop:
			timer.Stop()
			return
		case <-timer.C:
		}

		m.metrics.RecordReconnect()
		done, err := m.reconnectOnce(stop)
		if done {
			return
		}

		m.logger.Warn("Reconnect attempt failed",
			zap.Int("attempt", attempt),
			zap.Duration("waited", wait),
			zap.Error(err),
		)
		m.events.Add(Event{At: time.Now(), Kind: EventAttempt, Status: StatusReconnecting,
			Detail: fmt.Sprintf("attempt %d: %v", attempt, err)})

		if m.opts.MaxAttempts > 0 && attempt >= m.opts.MaxAttempts {
			m.mu.Lock()
			if m.stopRetry != stop {
				m.mu.Unlock()
				return
			}
			m.stopRetry = nil
			notify := m.setStatusLocked(StatusDisconnected, fmt.Sprintf("gave up after %d attempts", attempt))
			m.mu.Unlock()
			notify()
			m.logger.Error("Feed reconnect exhausted", zap.Int("attempts", attempt))
			return
		}
	}
}

func (m *Manager) reconnectOnce(stop chan struct{}) (bool, error) {
	m.connectMu.Lock()
	defer m.connectMu.Unlock()

	select {
	case <-stop:
		return true, nil
	default:
	}

	ctx, cancel := context.WithTimeout(context.Background(), m.opts.HandshakeTimeout)
	defer cancel()
	if err := m.establish(ctx); err != nil {
		return false, err
	}
	m.logger.Info("Reconnected successfully")
	return true, nil
}

func (m *Manager) dispatch(c *connection, msg []byte) {
	var env deriv.Envelope
	if err := json.Unmarshal(msg, &env); err != nil {
		m.malformed(msg, err)
		return
	}
	if env.MsgType == "" && env.Error == nil {
		m.malformed(msg, errors.New("missing msg_type"))
		return
	}

	if env.ReqID != 0 && m.resolve(env, msg) {
		return
	}
	if env.Error != nil {
		m.logger.Warn("Feed error", zap.String("code", env.Error.Code), zap.String("message", env.Error.Message))
		m.events.Add(Event{At: time.Now(), Kind: EventFeedError, Status: m.Status(), Detail: env.Error.Error()})
		return
	}

	switch env.MsgType {
	case deriv.MsgTypeTick:
		m.handleTick(c, msg)
	default:
		m.logger.Debug("Ignoring message", zap.String("msg_type", env.MsgType))
	}
}

func (m *Manager) resolve(env deriv.Envelope, msg []byte) bool {
	m.mu.Lock()
	ch, ok := m.pending[env.ReqID]
	delete(m.pending, env.ReqID)
	m.mu.Unlock()
	if !ok {
		return false
	}

	if env.Error != nil {
		ch <- reply{err: env.Error}
	} else {
		ch <- reply{raw: json.RawMessage(msg)}
	}
	return true
}

func (m *Manager) handleTick(c *connection, msg []byte) {
	var tm deriv.TickMessage
	if err := json.Unmarshal(msg, &tm); err != nil {
		m.malformed(msg, err)
		return
	}
	tick, err := deriv.ToMarketTick(tm.Tick)
	if err != nil {
		m.malformed(msg, err)
		return
	}

	feedID := tm.Tick.ID
	if tm.Subscription != nil && tm.Subscription.ID != "" {
		feedID = tm.Subscription.ID
	}

	m.mu.Lock()
	sub, ok := m.subs[tick.Symbol]
	if !ok {
		if _, orphan := m.orphans[tick.Symbol]; orphan && feedID != "" && m.conn == c {
			delete(m.orphans, tick.Symbol)
			m.enqueueLocked(c, &deriv.ForgetRequest{Forget: feedID})
		}
		m.mu.Unlock()
		return
	}
	if feedID != "" {
		sub.feedID = feedID
	}
	m.seq[tick.Symbol]++
	tick.Sequence = m.seq[tick.Symbol]

	handlers := make([]*tickHandler, 0, len(sub.handlers))
	for _, h := range sub.handlers {
		handlers = append(handlers, h)
	}
	m.mu.Unlock()

	sort.Slice(handlers, func(i, j int) bool { return handlers[i].id < handlers[j].id })
	m.metrics.RecordTick(tick.Symbol)
	for _, h := range handlers {
		if h.active.Load() {
			h.fn(tick)
		}
	}
}

func (m *Manager) malformed(msg []byte, err error) {
	merr := &MalformedMessageError{Payload: msg, Err: err}
	m.logger.Warn("Dropping malformed message", zap.Error(merr))
	m.metrics.RecordMalformed()
	m.events.Add(Event{At: time.Now(), Kind: EventMalformed, Status: m.Status(), Detail: merr.Error()})
}

// enqueueLocked queues a protocol request; failures are logged since the
// caller has no one to report to.
func (m *Manager) enqueueLocked(c *connection, req any) {
	if c == nil {
		return
	}
	data, err := json.Marshal(req)
	if err != nil {
		m.logger.Error("Failed to encode request", zap.Error(err))
		return
	}
	if err := m.pushLocked(c, data); err != nil {
		m.logger.Warn("Failed to queue request", zap.ByteString("request", data), zap.Error(err))
	}
}

func (m *Manager) pushLocked(c *connection, data []byte) error {
	select {
	case <-c.done:
		return &NotConnectedError{Op: "send"}
	default:
	}
	select {
	case c.outbox <- data:
		return nil
	default:
		return ErrSendQueueFull
	}
}

func (m *Manager) stopReconnectLocked() {
	if m.stopRetry != nil {
		close(m.stopRetry)
		m.stopRetry = nil
	}
}

func (m *Manager) takePendingLocked() map[int]chan reply {
	pending := m.pending
	m.pending = make(map[int]chan reply)
	return pending
}

func failPending(pending map[int]chan reply, err error) {
	for _, ch := range pending {
		ch <- reply{err: err}
	}
}

// setStatusLocked records the transition and returns a function that notifies
// watchers. It must be called after m.mu is released.
func (m *Manager) setStatusLocked(s Status, detail string) func() {
	if m.status == s {
		return func() {}
	}
	m.status = s
	m.events.Add(Event{At: time.Now(), Kind: EventStatus, Status: s, Detail: detail})
	m.metrics.RecordStatus(s.String())

	watchers := make([]func(Status), len(m.watchers))
	for i, w := range m.watchers {
		watchers[i] = w.fn
	}
	return func() {
		for _, fn := range watchers {
			fn(s)
		}
	}
}

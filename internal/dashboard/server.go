package dashboard

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"digitdash/internal/analysis"
	"digitdash/internal/bots"
	"digitdash/internal/events"
	"digitdash/internal/feed"
	"digitdash/internal/market"
	"digitdash/internal/memorystore"
	"digitdash/internal/session"
	"digitdash/internal/trading"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// Backend is the read and control surface the dashboard serves.
// session.Session implements it.
type Backend interface {
	Symbols() []string
	Snapshot(symbol string) (analysis.Snapshot, bool)
	RecentTicks(symbol string) []market.Tick
	Trades() []trading.Trade
	Risk() trading.RiskMetrics
	Bots() []bots.State
	ConnectionStatus() feed.Status
	LoadStrategy(req session.LoadRequest) error
	SetBotActive(name string, active bool) error
	RecordTradeResult(id string, won bool, profit decimal.Decimal) bool
	LatestSignals(symbol string) []bots.Signal
	ExecuteLatest(bot, symbol string) (trading.Trade, error)
}

// ServerOption configures Server.
type ServerOption func(*ServerConfig)

// ServerConfig holds server configuration.
type ServerConfig struct {
	Host            string
	Port            int
	ShutdownTimeout time.Duration
	CORS            bool

	// ConnectionEvents returns the feed's diagnostic log, feed.Manager.Events.
	ConnectionEvents func() []feed.Event
	SymbolStore      *memorystore.SymbolStore
}

// Server wraps the Echo HTTP server and the browser event hub.
type Server struct {
	echo    *echo.Echo
	config  *ServerConfig
	backend Backend
	hub     *Hub
	logger  *zap.Logger
	unsub   func()
}

// NewServer creates the dashboard server. Bus events are streamed to /ws
// clients from the moment it is created.
func NewServer(backend Backend, bus *events.Bus, gatherer prometheus.Gatherer, logger *zap.Logger, opts ...ServerOption) *Server {
	cfg := &ServerConfig{
		Host:            "0.0.0.0",
		Port:            8080,
		ShutdownTimeout: 10 * time.Second,
	}

	for _, opt := range opts {
		opt(cfg)
	}

	e := echo.New()
	e.HideBanner = true
	e.HidePort = true

	logger = logger.Named("dashboard")

	e.Use(middleware.Recover())
	e.Use(requestLogging(logger))

	if cfg.CORS {
		e.Use(middleware.CORSWithConfig(middleware.CORSConfig{
			AllowOrigins: []string{"*"},
			AllowMethods: []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodOptions},
			AllowHeaders: []string{echo.HeaderOrigin, echo.HeaderContentType, echo.HeaderAccept},
		}))
	}

	s := &Server{
		echo:    e,
		config:  cfg,
		backend: backend,
		logger:  logger,
	}
	s.hub = NewHub(logger, s.hello)
	if bus != nil {
		s.unsub = s.hub.Attach(bus)
	}

	s.registerRoutes(e)

	if gatherer != nil {
		e.GET("/metrics", echo.WrapHandler(promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})))
	}

	return s
}

// Start starts the HTTP server in the background.
func (s *Server) Start() error {
	addr := fmt.Sprintf("%s:%d", s.config.Host, s.config.Port)

	go func() {
		s.logger.Info("Dashboard listening", zap.String("addr", addr))
		if err := s.echo.Start(addr); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.logger.Error("Dashboard server failed", zap.Error(err))
		}
	}()

	return nil
}

// Shutdown stops streaming events, closes the /ws clients and gracefully
// shuts down the HTTP server.
func (s *Server) Shutdown(ctx context.Context) error {
	if s.unsub != nil {
		s.unsub()
	}
	s.hub.Close()

	ctx, cancel := context.WithTimeout(ctx, s.config.ShutdownTimeout)
	defer cancel()
	if err := s.echo.Shutdown(ctx); err != nil {
		return fmt.Errorf("shutdown error: %w", err)
	}
	s.logger.Info("Dashboard stopped")
	return nil
}

// Echo returns the underlying Echo instance.
func (s *Server) Echo() *echo.Echo {
	return s.echo
}

func (s *Server) Hub() *Hub {
	return s.hub
}

func (s *Server) hello() any {
	return map[string]any{
		"status":  s.backend.ConnectionStatus(),
		"symbols": s.backend.Symbols(),
		"bots":    s.backend.Bots(),
		"risk":    s.backend.Risk(),
	}
}

// WithHost sets server host.
func WithHost(host string) ServerOption {
	return func(c *ServerConfig) {
		c.Host = host
	}
}

// WithPort sets server port.
func WithPort(port int) ServerOption {
	return func(c *ServerConfig) {
		c.Port = port
	}
}

func WithShutdownTimeout(d time.Duration) ServerOption {
	return func(c *ServerConfig) {
		if d > 0 {
			c.ShutdownTimeout = d
		}
	}
}

// WithCORS enables/disables CORS.
func WithCORS(enabled bool) ServerOption {
	return func(c *ServerConfig) {
		c.CORS = enabled
	}
}

func WithConnectionEvents(fn func() []feed.Event) ServerOption {
	return func(c *ServerConfig) {
		c.ConnectionEvents = fn
	}
}

func WithSymbolStore(store *memorystore.SymbolStore) ServerOption {
	return func(c *ServerConfig) {
		c.SymbolStore = store
	}
}

// requestLogging logs HTTP requests.
func requestLogging(logger *zap.Logger) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			req := c.Request()
			start := time.Now()

			err := next(c)
			if err != nil {
				c.Error(err)
			}

			logger.Debug("HTTP request",
				zap.String("method", req.Method),
				zap.String("uri", req.RequestURI),
				zap.Int("status", c.Response().Status),
				zap.Duration("latency", time.Since(start)),
			)
			return nil
		}
	}
}

package dashboard

import (
	"errors"
	"fmt"
	"net/http"
	"strconv"

	"digitdash/internal/feed"
	"digitdash/internal/memorystore"
	"digitdash/internal/session"
	"digitdash/internal/trading"

	"github.com/labstack/echo/v4"
	"github.com/shopspring/decimal"
)

type botActiveRequest struct {
	Active *bool `json:"active" validate:"required"`
}

type executeRequest struct {
	Bot    string `json:"bot" validate:"required"`
	Symbol string `json:"symbol" validate:"required"`
}

type tradeResultRequest struct {
	Won    *bool  `json:"won" validate:"required"`
	Profit string `json:"profit" validate:"required,numeric"`
}

type symbolsResponse struct {
	Watched []string                 `json:"watched"`
	Known   []memorystore.SymbolInfo `json:"known,omitempty"`
}

func (s *Server) registerRoutes(e *echo.Echo) {
	e.GET("/healthz", s.health)
	e.GET("/ws", s.hub.HandleWebSocket)

	api := e.Group("/api")
	api.GET("/symbols", s.symbols)
	api.GET("/snapshot/:symbol", s.snapshot)
	api.GET("/ticks/:symbol", s.ticks)
	api.GET("/signals/:symbol", s.signals)
	api.GET("/trades", s.trades)
	api.POST("/trades", s.executeTrade)
	api.POST("/trades/:id/result", s.tradeResult)
	api.GET("/risk", s.risk)
	api.GET("/bots", s.bots)
	api.PUT("/bots/:name", s.botActive)
	api.POST("/strategies/load", s.loadStrategy)
	api.GET("/connection/events", s.connectionEvents)
}

// health reports 503 while the feed is not connected.
func (s *Server) health(c echo.Context) error {
	status := s.backend.ConnectionStatus()
	code := http.StatusOK
	if status != feed.StatusConnected {
		code = http.StatusServiceUnavailable
	}
	return c.JSON(code, map[string]any{
		"feed":    status,
		"clients": s.hub.Clients(),
	})
}

func (s *Server) symbols(c echo.Context) error {
	resp := symbolsResponse{Watched: s.backend.Symbols()}
	if s.config.SymbolStore != nil {
		resp.Known = s.config.SymbolStore.GetAll()
	}
	return SuccessResponse(c, resp)
}

func (s *Server) snapshot(c echo.Context) error {
	symbol := c.Param("symbol")
	snap, ok := s.backend.Snapshot(symbol)
	if !ok {
		return NotFoundResponse(c, errorData(fmt.Errorf("symbol %q is not watched", symbol)))
	}
	return SuccessResponse(c, snap)
}

// ticks returns the recent ticks of a symbol, optionally only the last ?limit.
func (s *Server) ticks(c echo.Context) error {
	ticks := s.backend.RecentTicks(c.Param("symbol"))
	if raw := c.QueryParam("limit"); raw != "" {
		limit, err := strconv.Atoi(raw)
		if err != nil || limit < 0 {
			return BadRequestResponse(c, []ValidationError{{Code: "ERR_NUMERIC", Field: "limit", Message: "limit must be a non-negative integer"}})
		}
		if limit < len(ticks) {
			ticks = ticks[len(ticks)-limit:]
		}
	}
	return SuccessResponse(c, ticks)
}

// trades lists retained trades, filtered by ?status=open|closed.
func (s *Server) trades(c echo.Context) error {
	trades := s.backend.Trades()
	status := trading.Status(c.QueryParam("status"))
	if status == "" {
		return SuccessResponse(c, trades)
	}
	if status != trading.StatusOpen && status != trading.StatusClosed {
		return BadRequestResponse(c, []ValidationError{{Code: "ERR_ONEOF", Field: "status", Message: "status must be one of: open, closed"}})
	}
	out := make([]trading.Trade, 0, len(trades))
	for _, t := range trades {
		if t.Status == status {
			out = append(out, t)
		}
	}
	return SuccessResponse(c, out)
}

func (s *Server) signals(c echo.Context) error {
	return SuccessResponse(c, s.backend.LatestSignals(c.Param("symbol")))
}

// executeTrade trades the bot's signal from the latest tick of the symbol.
// A risk limit answers 409.
func (s *Server) executeTrade(c echo.Context) error {
	var req executeRequest
	if errs := readAndValidateRequest(c, &req); errs != nil {
		return BadRequestResponse(c, errs)
	}
	trade, err := s.backend.ExecuteLatest(req.Bot, req.Symbol)
	switch {
	case err == nil:
		return DataResponse(c, http.StatusCreated, trade)
	case errors.Is(err, session.ErrNoSignal):
		return NotFoundResponse(c, errorData(err))
	case errors.Is(err, trading.ErrExposureLimit),
		errors.Is(err, trading.ErrTooManyOpenTrades),
		errors.Is(err, trading.ErrLossLimit),
		errors.Is(err, trading.ErrInvalidStake):
		return DataResponse(c, http.StatusConflict, errorData(err))
	}
	return BadRequestResponse(c, errorData(err))
}

func (s *Server) tradeResult(c echo.Context) error {
	var req tradeResultRequest
	if errs := readAndValidateRequest(c, &req); errs != nil {
		return BadRequestResponse(c, errs)
	}
	profit, err := decimal.NewFromString(req.Profit)
	if err != nil {
		return BadRequestResponse(c, errorData(err))
	}

	id := c.Param("id")
	if !s.backend.RecordTradeResult(id, *req.Won, profit) {
		return NotFoundResponse(c, errorData(fmt.Errorf("trade %q is unknown or already closed", id)))
	}
	return SuccessResponse(c, s.backend.Risk())
}

func (s *Server) risk(c echo.Context) error {
	return SuccessResponse(c, s.backend.Risk())
}

func (s *Server) bots(c echo.Context) error {
	return SuccessResponse(c, s.backend.Bots())
}

func (s *Server) botActive(c echo.Context) error {
	var req botActiveRequest
	if errs := readAndValidateRequest(c, &req); errs != nil {
		return BadRequestResponse(c, errs)
	}
	if err := s.backend.SetBotActive(c.Param("name"), *req.Active); err != nil {
		return NotFoundResponse(c, errorData(err))
	}
	return SuccessResponse(c, s.backend.Bots())
}

// loadStrategy applies the known bot names even when some are rejected.
func (s *Server) loadStrategy(c echo.Context) error {
	var req session.LoadRequest
	if errs := readAndValidateRequest(c, &req); errs != nil {
		return BadRequestResponse(c, errs)
	}
	if err := s.backend.LoadStrategy(req); err != nil {
		return BadRequestResponse(c, map[string]any{
			"errors": errorData(err),
			"bots":   s.backend.Bots(),
		})
	}
	return SuccessResponse(c, s.backend.Bots())
}

func (s *Server) connectionEvents(c echo.Context) error {
	if s.config.ConnectionEvents == nil {
		return SuccessResponse(c, []feed.Event{})
	}
	return SuccessResponse(c, s.config.ConnectionEvents())
}

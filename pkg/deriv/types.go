package deriv

import (
	"encoding/json"
	"fmt"
)

// Request is implemented by every outgoing message that can be correlated by req_id.
type Request interface {
	SetReqID(id int)
}

type TicksRequest struct {
	Ticks     string `json:"ticks"`               // symbol, e.g. "R_100"
	Subscribe int    `json:"subscribe,omitempty"` // 1 keeps the stream open
	ReqID     int    `json:"req_id,omitempty"`
}

func (r *TicksRequest) SetReqID(id int) { r.ReqID = id }

type ForgetRequest struct {
	Forget string `json:"forget"` // subscription id
	ReqID  int    `json:"req_id,omitempty"`
}

func (r *ForgetRequest) SetReqID(id int) { r.ReqID = id }

type PingRequest struct {
	Ping  int `json:"ping"`
	ReqID int `json:"req_id,omitempty"`
}

func (r *PingRequest) SetReqID(id int) { r.ReqID = id }

type ActiveSymbolsRequest struct {
	ActiveSymbols string `json:"active_symbols"`         // "brief" or "full"
	ProductType   string `json:"product_type,omitempty"` // "basic"
	ReqID         int    `json:"req_id,omitempty"`
}

func (r *ActiveSymbolsRequest) SetReqID(id int) { r.ReqID = id }

// Envelope holds the fields shared by every response.
type Envelope struct {
	MsgType      string          `json:"msg_type"`
	ReqID        int             `json:"req_id,omitempty"`
	EchoReq      json.RawMessage `json:"echo_req,omitempty"`
	Error        *APIError       `json:"error,omitempty"`
	Subscription *Subscription   `json:"subscription,omitempty"`
}

// APIError is the error object returned by the feed in place of a result.
type APIError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

func (e *APIError) Error() string {
	return fmt.Sprintf("deriv: %s: %s", e.Code, e.Message)
}

type Subscription struct {
	ID string `json:"id"`
}

type TickMessage struct {
	Envelope
	Tick Tick `json:"tick"`
}

type Tick struct {
	Symbol  string      `json:"symbol"`
	Quote   json.Number `json:"quote"`              // kept as quoted text to preserve decimals
	Epoch   int64       `json:"epoch"`              // seconds since epoch
	PipSize *int        `json:"pip_size,omitempty"` // decimals of the quote
	ID      string      `json:"id"`                 // subscription id
}

type PingResponse struct {
	Envelope
	Ping string `json:"ping"` // "pong"
}

type ActiveSymbolsResponse struct {
	Envelope
	ActiveSymbols []ActiveSymbol `json:"active_symbols"`
}

type ActiveSymbol struct {
	Symbol             string      `json:"symbol"`
	DisplayName        string      `json:"display_name"`
	Market             string      `json:"market"`
	Submarket          string      `json:"submarket"`
	Pip                json.Number `json:"pip"` // pip size, e.g. 0.01
	ExchangeIsOpen     int         `json:"exchange_is_open"`
	IsTradingSuspended int         `json:"is_trading_suspended"`
}

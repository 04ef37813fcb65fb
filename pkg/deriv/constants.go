package deriv

// DefaultURL is the public Deriv WebSocket endpoint with the demo app id.
const DefaultURL = "wss://ws.derivws.com/websockets/v3?app_id=1089"

// Message types carried in the msg_type field of every response.
const (
	MsgTypeTick          = "tick"
	MsgTypePing          = "ping"
	MsgTypeForget        = "forget"
	MsgTypeActiveSymbols = "active_symbols"
)

// Error codes that the feed reports and the client reacts to.
const (
	ErrCodeAlreadySubscribed = "AlreadySubscribed"
	ErrCodeInvalidSymbol     = "InvalidSymbol"
	ErrCodeRateLimit         = "RateLimit"
)

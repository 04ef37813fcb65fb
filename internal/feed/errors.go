package feed

import (
	"errors"
	"fmt"
)

var (
	ErrNotConnected     = errors.New("feed: not connected")
	ErrSendQueueFull    = errors.New("feed: send queue full")
	ErrConnectionClosed = errors.New("feed: connection closed")
)

// NotConnectedError is returned synchronously by operations that need a live connection.
type NotConnectedError struct {
	Op string
}

func (e *NotConnectedError) Error() string {
	return fmt.Sprintf("feed: %s: not connected", e.Op)
}

func (e *NotConnectedError) Is(target error) bool {
	return target == ErrNotConnected
}

// ConnectionError reports a failed dial or handshake.
type ConnectionError struct {
	Op  string // "dial" or "handshake"
	Err error
}

func (e *ConnectionError) Error() string {
	return fmt.Sprintf("feed: %s failed: %v", e.Op, e.Err)
}

func (e *ConnectionError) Unwrap() error { return e.Err }

// MalformedMessageError describes an inbound frame that could not be decoded.
// Such frames are logged and dropped; the connection stays up.
type MalformedMessageError struct {
	Payload []byte
	Err     error
}

func (e *MalformedMessageError) Error() string {
	const limit = 128
	p := e.Payload
	if len(p) > limit {
		p = p[:limit]
	}
	return fmt.Sprintf("feed: malformed message %q: %v", p, e.Err)
}

func (e *MalformedMessageError) Unwrap() error { return e.Err }

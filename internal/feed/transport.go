package feed

import (
	"context"

	"digitdash/pkg/deriv"
)

// Conn is one bidirectional message stream. ReadMessage is only called from
// the connection's reader goroutine and must return an error once Close is called.
type Conn interface {
	ReadMessage() ([]byte, error)
	WriteMessage(data []byte) error
	Close() error
}

// Transport opens connections to the feed.
type Transport interface {
	Dial(ctx context.Context) (Conn, error)
}

type TransportFunc func(ctx context.Context) (Conn, error)

func (f TransportFunc) Dial(ctx context.Context) (Conn, error) { return f(ctx) }

// WebSocket adapts a deriv.Dialer to Transport.
func WebSocket(d *deriv.Dialer) Transport {
	return TransportFunc(func(ctx context.Context) (Conn, error) {
		c, err := d.Dial(ctx)
		if err != nil {
			return nil, err
		}
		return c, nil
	})
}

package pool

import (
	"context"
	"time"

	"github.com/gorilla/websocket"
)

// Socket is the minimal surface the connection needs from a websocket.
// *websocket.Conn implements it directly; tests substitute a scripted fake.
type Socket interface {
	ReadMessage() (messageType int, p []byte, err error)
	WriteMessage(messageType int, data []byte) error
	SetWriteDeadline(t time.Time) error
	Close() error
}

// Dialer establishes a Socket to a relay URL.
type Dialer interface {
	Dial(ctx context.Context, url string) (Socket, error)
}

type wsDialer struct {
	timeout time.Duration
}

// NewWebsocketDialer returns the production dialer backed by gorilla.
func NewWebsocketDialer(timeout time.Duration) Dialer {
	return &wsDialer{timeout: timeout}
}

func (d *wsDialer) Dial(ctx context.Context, url string) (Socket, error) {
	dialCtx, cancel := context.WithTimeout(ctx, d.timeout)
	defer cancel()

	conn, _, err := websocket.DefaultDialer.DialContext(dialCtx, url, nil)
	if err != nil {
		return nil, err
	}
	return conn, nil
}

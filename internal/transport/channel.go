package transport

import (
	"context"
	"sync"
	"time"

	"nhooyr.io/websocket"
	"nhooyr.io/websocket/wsjson"

	"github.com/dhkim-dev/chessmate/pkg/wire"
)

const sendTimeout = 5 * time.Second

// Channel is one end of the bidirectional ordered message stream between the
// two peers of a room. Send is fire-and-forget; delivery failure surfaces
// through the read loop's close callback.
type Channel struct {
	conn *websocket.Conn

	closeOnce sync.Once
}

func newChannel(conn *websocket.Conn) *Channel {
	return &Channel{conn: conn}
}

// Send writes one message. Errors are returned for logging only; the session
// learns about a dead channel from the close event.
func (c *Channel) Send(ctx context.Context, msg wire.Message) error {
	ctx, cancel := context.WithTimeout(ctx, sendTimeout)
	defer cancel()
	return wsjson.Write(ctx, c.conn, msg)
}

// ReadLoop delivers inbound messages until the channel dies, then reports the
// terminal error exactly once. Runs on the caller's goroutine.
func (c *Channel) ReadLoop(ctx context.Context, onMsg func(wire.Message), onClose func(error)) {
	for {
		var msg wire.Message
		if err := wsjson.Read(ctx, c.conn, &msg); err != nil {
			onClose(err)
			return
		}
		onMsg(msg)
	}
}

// Close closes the underlying connection with a normal status. Safe to call
// more than once.
func (c *Channel) Close(reason string) {
	c.closeOnce.Do(func() {
		_ = c.conn.Close(websocket.StatusNormalClosure, reason)
	})
}

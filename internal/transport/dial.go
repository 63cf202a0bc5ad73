package transport

import (
	"context"
	"fmt"
	"net/url"
	"strings"
	"time"

	"nhooyr.io/websocket"
)

const dialTimeout = 10 * time.Second

// Dial connects the guest to a host's room. A refused connection (room
// occupied or unknown) surfaces as a plain error to the joining user; the
// existing session is unaffected.
func Dial(ctx context.Context, serverURL, roomCode string) (*Channel, error) {
	u, err := url.Parse(strings.TrimSpace(serverURL))
	if err != nil {
		return nil, fmt.Errorf("parse server url: %w", err)
	}
	if u.Path == "" || u.Path == "/" {
		u.Path = "/ws"
	}
	q := u.Query()
	q.Set("room", strings.TrimSpace(roomCode))
	u.RawQuery = q.Encode()

	dialCtx, cancel := context.WithTimeout(ctx, dialTimeout)
	defer cancel()
	conn, _, err := websocket.Dial(dialCtx, u.String(), &websocket.DialOptions{
		CompressionMode: websocket.CompressionNoContextTakeover,
	})
	if err != nil {
		return nil, fmt.Errorf("dial room %s: %w", roomCode, err)
	}
	return newChannel(conn), nil
}

// Package session binds the room state machine to a peer channel. The host
// owns the only writable snapshot; the guest keeps a verbatim replica and
// only sends intent. Each coordinator serializes network messages, local
// intents, clock ticks and channel closure onto one event loop, so no two
// handlers ever observe overlapping intermediate snapshots.
package session

import (
	"context"

	"github.com/dhkim-dev/chessmate/pkg/wire"
)

// Link is the outbound half of the transport channel. Send is
// fire-and-forget: a failed delivery surfaces later as a close event.
type Link interface {
	Send(ctx context.Context, msg wire.Message) error
	Close(reason string)
}

// event is one unit of work for a coordinator loop. Exactly one field is
// set. Local intents are closures so they run on the loop goroutine with the
// same serialization as network messages.
type event struct {
	msg      *wire.Message
	closed   bool
	closeErr error
	act      func()
}

const eventQueueSize = 64

package session

import (
	"context"
	"strings"

	"github.com/jonboulle/clockwork"
	"go.uber.org/zap"

	"github.com/dhkim-dev/chessmate/internal/obslog"
	"github.com/dhkim-dev/chessmate/internal/room"
	"github.com/dhkim-dev/chessmate/pkg/wire"
)

// Guest is the non-authoritative side of a room. It never mutates its
// replica except for two optimistic cases that cannot diverge from the host:
// the chat it just sent (deduplicated by id when echoed back) and its own
// resignation (the host always terminates on resign).
type Guest struct {
	name string
	side wire.Side
	snap *wire.Snapshot
	link Link
	clk  clockwork.Clock

	events chan event

	chat []wire.ChatMessage
	seen map[string]struct{}

	// Optional observers, invoked on the loop goroutine.
	OnSnapshot func(wire.Snapshot)
	OnChat     func(wire.ChatMessage)
	OnError    func(string)
}

func NewGuest(name string, link Link) *Guest {
	return &Guest{
		name:   strings.TrimSpace(name),
		link:   link,
		clk:    clockwork.NewRealClock(),
		events: make(chan event, eventQueueSize),
		seen:   make(map[string]struct{}),
	}
}

// Side returns the side assigned at join time; empty before RoomStart.
func (g *Guest) Side() wire.Side { return g.side }

// Snapshot returns the replica as of the last processed event; nil before
// RoomStart.
func (g *Guest) Snapshot() *wire.Snapshot {
	if g.snap == nil {
		return nil
	}
	c := g.snap.Clone()
	return &c
}

func (g *Guest) Chat() []wire.ChatMessage {
	return append([]wire.ChatMessage(nil), g.chat...)
}

// Run sends the join request and processes events until ctx is cancelled.
func (g *Guest) Run(ctx context.Context) {
	g.send(wire.JoinMsg(g.name))
	for {
		select {
		case <-ctx.Done():
			if g.link != nil {
				g.link.Close("session closed")
				g.link = nil
			}
			return
		case ev := <-g.events:
			g.handleEvent(ev)
		}
	}
}

// Deliver enqueues an inbound network message.
func (g *Guest) Deliver(msg wire.Message) {
	g.events <- event{msg: &msg}
}

// ConnClosed enqueues the transport close event.
func (g *Guest) ConnClosed(err error) {
	g.events <- event{closed: true, closeErr: err}
}

// Local intents.

func (g *Guest) Move(moveStr string) {
	g.events <- event{act: func() { g.send(wire.MoveMsg(moveStr)) }}
}

func (g *Guest) OfferDraw() {
	g.events <- event{act: func() { g.send(wire.DrawOfferMsg()) }}
}

func (g *Guest) RespondDraw(accepted bool) {
	g.events <- event{act: func() { g.send(wire.DrawResponseMsg(accepted)) }}
}

// Resign sends the intent and ends the local view immediately. The host is
// guaranteed to terminate on resign, so this optimistic update cannot
// diverge from the eventual authoritative snapshot.
func (g *Guest) Resign() {
	g.events <- event{act: func() {
		if g.snap != nil && g.side.Valid() {
			if s, err := room.Resign(*g.snap, g.side, g.clk.Now()); err == nil {
				g.replace(s)
			}
		}
		g.send(wire.ResignMsg())
	}}
}

// SendChat echoes locally first; the host's rebroadcast is deduplicated by
// id.
func (g *Guest) SendChat(text string) {
	g.events <- event{act: func() {
		m := wire.NewChat(g.name, text, g.side)
		g.addChat(m)
		g.send(wire.ChatMsg(m))
	}}
}

func (g *Guest) handleEvent(ev event) {
	switch {
	case ev.act != nil:
		ev.act()
	case ev.closed:
		g.handleClosed(ev.closeErr)
	case ev.msg != nil:
		g.handleNet(*ev.msg)
	}
}

func (g *Guest) handleNet(msg wire.Message) {
	switch msg.Kind {
	case wire.KindRoomStart:
		if msg.Snapshot == nil || !msg.AssignedSide.Valid() {
			return
		}
		g.side = msg.AssignedSide
		g.replace(*msg.Snapshot)
		obslog.L().Info("guest_joined",
			zap.String("room", msg.Snapshot.RoomCode),
			zap.String("side", string(g.side)),
		)
	case wire.KindSnapshot:
		if msg.Snapshot == nil {
			return
		}
		// verbatim replacement: the host is the sole writer, so there is
		// nothing to merge and re-applying the same snapshot is idempotent
		g.replace(*msg.Snapshot)
	case wire.KindChat:
		if msg.Chat != nil {
			g.addChat(*msg.Chat)
		}
	case wire.KindError:
		obslog.L().Debug("guest_rejected_by_host", zap.String("text", msg.Text))
		if g.OnError != nil {
			g.OnError(msg.Text)
		}
	default:
		// join/move/draw/resign flow guest→host only; unknown kinds are
		// ignored for forward compatibility
		obslog.L().Debug("guest_ignored_message", zap.String("kind", string(msg.Kind)))
	}
}

// handleClosed applies the symmetric disconnection rule: the survivor wins.
// Both peers converge on the same result without further communication.
func (g *Guest) handleClosed(err error) {
	g.link = nil
	if g.snap == nil || g.snap.Status != wire.StatusPlaying || !g.side.Valid() {
		obslog.L().Info("guest_connection_closed", zap.Error(err))
		return
	}
	obslog.L().Info("guest_host_disconnected", zap.Error(err))
	if s, derr := room.PeerDisconnected(*g.snap, g.side, g.clk.Now()); derr == nil {
		g.replace(s)
	}
}

func (g *Guest) replace(s wire.Snapshot) {
	c := s.Clone()
	g.snap = &c
	if g.OnSnapshot != nil {
		g.OnSnapshot(c.Clone())
	}
}

func (g *Guest) addChat(m wire.ChatMessage) {
	if strings.TrimSpace(m.ID) == "" {
		return
	}
	if _, dup := g.seen[m.ID]; dup {
		return
	}
	g.seen[m.ID] = struct{}{}
	g.chat = append(g.chat, m)
	if g.OnChat != nil {
		g.OnChat(m)
	}
}

func (g *Guest) send(msg wire.Message) {
	if g.link == nil {
		return
	}
	if err := g.link.Send(context.Background(), msg); err != nil {
		obslog.L().Debug("guest_send_error", zap.String("kind", string(msg.Kind)), zap.Error(err))
	}
}

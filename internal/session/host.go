package session

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/jonboulle/clockwork"
	"go.uber.org/zap"

	"github.com/dhkim-dev/chessmate/internal/msgcat"
	"github.com/dhkim-dev/chessmate/internal/obslog"
	"github.com/dhkim-dev/chessmate/internal/record"
	"github.com/dhkim-dev/chessmate/internal/room"
	"github.com/dhkim-dev/chessmate/pkg/wire"
)

const defaultTickInterval = 250 * time.Millisecond

// HostConfig wires a host coordinator.
type HostConfig struct {
	RoomCode string
	GameID   string
	HostName string
	HostSide wire.Side
	Clock    wire.ClockConfig

	TickInterval time.Duration   // defaults to 250ms
	Clk          clockwork.Clock // defaults to the real clock
	Sink         record.Sink     // defaults to record.Discard
	Catalog      *msgcat.Catalog // optional system-message templates
}

// Host runs the authoritative side of a room: it owns the only writable
// snapshot, applies every event against it, and pushes a fresh snapshot to
// the guest after each change. All guest-sent actions are applied with the
// guest's fixed side; side fields from the wire are never trusted.
type Host struct {
	cfg  HostConfig
	clk  clockwork.Clock
	sink record.Sink

	snap      wire.Snapshot
	guestSide wire.Side
	link      Link

	events chan event

	chat []wire.ChatMessage
	seen map[string]struct{}

	recordSaved bool

	// Optional observers, invoked on the loop goroutine.
	OnSnapshot func(wire.Snapshot)
	OnChat     func(wire.ChatMessage)
	OnStarted  func(wire.Snapshot)
}

func NewHost(cfg HostConfig) *Host {
	if cfg.TickInterval <= 0 {
		cfg.TickInterval = defaultTickInterval
	}
	if cfg.Clk == nil {
		cfg.Clk = clockwork.NewRealClock()
	}
	if cfg.Sink == nil {
		cfg.Sink = record.Discard{}
	}
	h := &Host{
		cfg:    cfg,
		clk:    cfg.Clk,
		sink:   cfg.Sink,
		events: make(chan event, eventQueueSize),
		seen:   make(map[string]struct{}),
	}
	h.snap = room.New(cfg.RoomCode, cfg.GameID, cfg.HostName, cfg.HostSide, cfg.Clock, h.clk.Now())
	return h
}

// Snapshot returns the snapshot as of the last processed event. Read it from
// the loop goroutine (callbacks) or after Run returns.
func (h *Host) Snapshot() wire.Snapshot { return h.snap.Clone() }

// Chat returns the accumulated transcript.
func (h *Host) Chat() []wire.ChatMessage {
	return append([]wire.ChatMessage(nil), h.chat...)
}

// Run processes events until ctx is cancelled. The periodic tick keeps
// clocks honest between moves and detects flag-fall.
func (h *Host) Run(ctx context.Context) {
	ticker := h.clk.NewTicker(h.cfg.TickInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			h.teardown()
			return
		case <-ticker.Chan():
			h.handleTick()
		case ev := <-h.events:
			h.handleEvent(ev)
		}
	}
}

// Attach hands the accepted guest channel to the loop. The transport layer
// guarantees at most one channel per room lifetime.
func (h *Host) Attach(link Link) {
	h.events <- event{act: func() { h.link = link }}
}

// Deliver enqueues an inbound network message.
func (h *Host) Deliver(msg wire.Message) {
	h.events <- event{msg: &msg}
}

// ConnClosed enqueues the transport close event.
func (h *Host) ConnClosed(err error) {
	h.events <- event{closed: true, closeErr: err}
}

// Local intents. Each runs on the loop goroutine.

func (h *Host) Move(moveStr string) {
	h.events <- event{act: func() {
		h.apply(room.ApplyMove(h.snap, h.hostSide(), moveStr, h.clk.Now()))
	}}
}

func (h *Host) OfferDraw() {
	h.events <- event{act: func() {
		s, err := room.OfferDraw(h.snap, h.hostSide(), h.clk.Now())
		if err == nil {
			h.systemChat("draw.offered", map[string]any{"Name": h.cfg.HostName})
		}
		h.apply(s, err)
	}}
}

func (h *Host) RespondDraw(accepted bool) {
	h.events <- event{act: func() {
		s, err := room.RespondDraw(h.snap, h.hostSide(), accepted, h.clk.Now())
		if err == nil && !accepted {
			h.systemChat("draw.declined", map[string]any{"Name": h.cfg.HostName})
		}
		h.apply(s, err)
	}}
}

func (h *Host) Resign() {
	h.events <- event{act: func() {
		h.apply(room.Resign(h.snap, h.hostSide(), h.clk.Now()))
	}}
}

func (h *Host) SendChat(text string) {
	h.events <- event{act: func() {
		h.addChat(wire.NewChat(h.cfg.HostName, text, h.hostSide()))
	}}
}

func (h *Host) hostSide() wire.Side { return h.cfg.HostSide }

func (h *Host) handleEvent(ev event) {
	switch {
	case ev.act != nil:
		ev.act()
	case ev.closed:
		h.handleClosed(ev.closeErr)
	case ev.msg != nil:
		h.handleNet(*ev.msg)
	}
}

func (h *Host) handleNet(msg wire.Message) {
	if !msg.Known() {
		obslog.L().Debug("host_unknown_message", zap.String("kind", string(msg.Kind)))
		return
	}
	if msg.Kind == wire.KindJoin {
		h.handleJoin(msg.Name)
		return
	}
	if !h.guestSide.Valid() {
		obslog.L().Warn("host_message_before_join", zap.String("kind", string(msg.Kind)))
		return
	}
	now := h.clk.Now()
	switch msg.Kind {
	case wire.KindMove:
		h.apply(room.ApplyMove(h.snap, h.guestSide, msg.Move, now))
	case wire.KindChat:
		if msg.Chat != nil {
			h.addChat(*msg.Chat)
		}
	case wire.KindDrawOffer:
		s, err := room.OfferDraw(h.snap, h.guestSide, now)
		if err == nil {
			h.systemChat("draw.offered", map[string]any{"Name": h.snap.Names[h.guestSide]})
		}
		h.apply(s, err)
	case wire.KindDrawResponse:
		s, err := room.RespondDraw(h.snap, h.guestSide, msg.Accepted, now)
		if err == nil && !msg.Accepted {
			h.systemChat("draw.declined", map[string]any{"Name": h.snap.Names[h.guestSide]})
		}
		h.apply(s, err)
	case wire.KindResign:
		h.apply(room.Resign(h.snap, h.guestSide, now))
	default:
		// snapshot/room_start/error from a guest: protocol violation, absorbed
		obslog.L().Warn("host_protocol_violation", zap.String("kind", string(msg.Kind)))
	}
}

func (h *Host) handleJoin(name string) {
	s, side, err := room.Join(h.snap, name, h.clk.Now())
	if err != nil {
		obslog.L().Warn("host_join_rejected", zap.Error(err))
		h.send(wire.ErrorMsg(err.Error()))
		return
	}
	h.snap = s
	h.guestSide = side
	obslog.L().Info("host_game_start",
		zap.String("room", s.RoomCode),
		zap.String("game_id", s.GameID),
		zap.String("white", s.Names[wire.SideWhite]),
		zap.String("black", s.Names[wire.SideBlack]),
	)
	h.send(wire.RoomStartMsg(s, side))
	h.systemChat("game.start", map[string]any{
		"White": s.Names[wire.SideWhite],
		"Black": s.Names[wire.SideBlack],
	})
	if h.OnStarted != nil {
		h.OnStarted(s.Clone())
	}
	h.notifySnapshot()
}

func (h *Host) handleTick() {
	s := room.Advance(h.snap, h.clk.Now())
	if s.LastTick.Equal(h.snap.LastTick) && s.Status == h.snap.Status {
		return
	}
	h.commit(s)
}

func (h *Host) handleClosed(err error) {
	h.link = nil
	if h.snap.Status != wire.StatusPlaying {
		obslog.L().Info("host_room_abandoned", zap.String("room", h.snap.RoomCode), zap.Error(err))
		return
	}
	obslog.L().Info("host_guest_disconnected", zap.String("room", h.snap.RoomCode), zap.Error(err))
	s, derr := room.PeerDisconnected(h.snap, h.hostSide(), h.clk.Now())
	if derr != nil {
		// the advance inside the handler may already have flagged the game
		h.commit(s)
		return
	}
	h.commit(s)
}

// apply commits a handler's outcome. Handlers return the (possibly advanced)
// snapshot even on rejection, so a flag detected during a rejected event is
// still committed. Protocol violations and illegal moves are absorbed; the
// offending peer gets an error message for its optimistic UI.
func (h *Host) apply(s wire.Snapshot, err error) {
	h.commit(s)
	if err == nil {
		return
	}
	obslog.L().Debug("host_event_rejected", zap.Error(err))
	if errors.Is(err, room.ErrIllegalMove) || errors.Is(err, room.ErrNotYourTurn) {
		h.send(wire.ErrorMsg(err.Error()))
	}
}

func (h *Host) commit(s wire.Snapshot) {
	changed := snapshotChanged(h.snap, s)
	h.snap = s
	if !changed {
		return
	}
	h.send(wire.SnapshotMsg(s))
	h.notifySnapshot()
	if s.Status == wire.StatusEnded {
		h.finish()
	}
}

// finish hands exactly one immutable record to the persistence sink.
func (h *Host) finish() {
	if h.recordSaved || h.snap.Result == nil {
		return
	}
	h.recordSaved = true
	h.systemChat("game.end", map[string]any{
		"Reason":  h.snap.Result.Reason,
		"Outcome": h.outcomeText(),
	})
	rec := record.FromSnapshot(h.snap, record.ModeNetwork, h.chat, h.clk.Now())
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := h.sink.Save(ctx, rec); err != nil {
		obslog.L().Error("host_record_save_error", zap.String("game_id", rec.GameID), zap.Error(err))
		return
	}
	obslog.L().Info("host_record_saved",
		zap.String("game_id", rec.GameID),
		zap.String("winner", string(rec.Result.Winner)),
		zap.String("reason", rec.Result.Reason),
	)
}

// addChat appends a message once (by id) and rebroadcasts it so both logs
// stay equal. The sender's own echo is deduplicated on its side the same way.
func (h *Host) addChat(m wire.ChatMessage) {
	if strings.TrimSpace(m.ID) == "" {
		return
	}
	if _, dup := h.seen[m.ID]; dup {
		return
	}
	h.seen[m.ID] = struct{}{}
	h.chat = append(h.chat, m)
	h.send(wire.ChatMsg(m))
	if h.OnChat != nil {
		h.OnChat(m)
	}
}

func (h *Host) systemChat(key string, data map[string]any) {
	text := key
	if h.cfg.Catalog != nil {
		if rendered, err := h.cfg.Catalog.Render(key, data); err == nil {
			text = rendered
		}
	}
	h.addChat(wire.NewSystemChat(text))
}

func (h *Host) outcomeText() string {
	res := h.snap.Result
	if res == nil {
		return ""
	}
	if res.Winner == wire.WinnerDraw {
		if h.cfg.Catalog != nil {
			if s, err := h.cfg.Catalog.Render("outcome.draw", nil); err == nil {
				return s
			}
		}
		return "draw"
	}
	winner := h.snap.Names[wire.SideWhite]
	if res.Winner == wire.WinnerBlack {
		winner = h.snap.Names[wire.SideBlack]
	}
	if h.cfg.Catalog != nil {
		if s, err := h.cfg.Catalog.Render("outcome.win", map[string]any{"Winner": winner}); err == nil {
			return s
		}
	}
	return winner + " wins"
}

func (h *Host) send(msg wire.Message) {
	if h.link == nil {
		return
	}
	if err := h.link.Send(context.Background(), msg); err != nil {
		// delivery failure surfaces as a close event; log only
		obslog.L().Debug("host_send_error", zap.String("kind", string(msg.Kind)), zap.Error(err))
	}
}

func (h *Host) notifySnapshot() {
	if h.OnSnapshot != nil {
		h.OnSnapshot(h.snap.Clone())
	}
}

func (h *Host) teardown() {
	if h.link != nil {
		h.link.Close("session closed")
		h.link = nil
	}
}

// snapshotChanged reports whether a commit must be broadcast.
func snapshotChanged(old, next wire.Snapshot) bool {
	if old.Status != next.Status ||
		old.Turn != next.Turn ||
		len(old.History) != len(next.History) ||
		old.PendingDrawOfferBy != next.PendingDrawOfferBy ||
		old.ActiveClockSide != next.ActiveClockSide ||
		!old.LastTick.Equal(next.LastTick) {
		return true
	}
	for side, d := range next.Clocks {
		if old.Clocks[side] != d {
			return true
		}
	}
	return false
}

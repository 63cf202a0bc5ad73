package session

import (
	"reflect"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"

	"github.com/dhkim-dev/chessmate/internal/room"
	"github.com/dhkim-dev/chessmate/pkg/wire"
)

func drainGuest(t *testing.T, g *Guest) {
	t.Helper()
	for {
		select {
		case ev := <-g.events:
			g.handleEvent(ev)
		default:
			return
		}
	}
}

func playingSnapshot(t *testing.T) wire.Snapshot {
	t.Helper()
	s := room.New("ROOM1", "game-1", "Alice", wire.SideWhite,
		wire.ClockConfig{Initial: 5 * time.Minute, Increment: 3 * time.Second}, t0)
	s, _, err := room.Join(s, "Bob", t0)
	if err != nil {
		t.Fatalf("Join: %v", err)
	}
	return s
}

func newTestGuest(t *testing.T) (*Guest, *fakeLink, *clockwork.FakeClock) {
	t.Helper()
	link := &fakeLink{}
	g := NewGuest("Bob", link)
	fc := clockwork.NewFakeClockAt(t0)
	g.clk = fc
	return g, link, fc
}

func startGuest(t *testing.T, g *Guest) wire.Snapshot {
	t.Helper()
	s := playingSnapshot(t)
	g.Deliver(wire.RoomStartMsg(s, wire.SideBlack))
	drainGuest(t, g)
	if g.Side() != wire.SideBlack || g.Snapshot() == nil {
		t.Fatalf("room_start not applied")
	}
	return s
}

func TestGuestSnapshotApplicationIsIdempotent(t *testing.T) {
	g, _, _ := newTestGuest(t)
	s := startGuest(t, g)

	s2, err := room.ApplyMove(s, wire.SideWhite, "e2e4", t0)
	if err != nil {
		t.Fatalf("ApplyMove: %v", err)
	}
	g.Deliver(wire.SnapshotMsg(s2))
	drainGuest(t, g)
	once := g.Snapshot()

	g.Deliver(wire.SnapshotMsg(s2))
	drainGuest(t, g)
	twice := g.Snapshot()

	if !reflect.DeepEqual(once, twice) {
		t.Fatalf("re-applying the same snapshot changed state")
	}
	if len(twice.History) != 1 || twice.Turn != wire.SideBlack {
		t.Fatalf("snapshot not applied verbatim: %+v", twice)
	}
}

func TestGuestMoveSendsIntentWithoutLocalMutation(t *testing.T) {
	g, link, _ := newTestGuest(t)
	startGuest(t, g)

	g.Move("e7e5")
	drainGuest(t, g)

	if len(g.Snapshot().History) != 0 {
		t.Fatalf("guest mutated its replica on move intent")
	}
	moves := link.byKind(wire.KindMove)
	if len(moves) != 1 || moves[0].Move != "e7e5" {
		t.Fatalf("move intent not sent: %+v", moves)
	}
}

func TestGuestOptimisticResign(t *testing.T) {
	g, link, _ := newTestGuest(t)
	startGuest(t, g)

	g.Resign()
	drainGuest(t, g)

	snap := g.Snapshot()
	if snap.Status != wire.StatusEnded {
		t.Fatalf("optimistic resign not reflected locally")
	}
	if snap.Result.Winner != wire.WinnerWhite || snap.Result.Reason != wire.ReasonResign {
		t.Fatalf("unexpected local result: %+v", snap.Result)
	}
	if len(link.byKind(wire.KindResign)) != 1 {
		t.Fatalf("resign intent not sent")
	}

	// the authoritative confirmation carries the identical result
	s := playingSnapshot(t)
	confirmed, err := room.Resign(s, wire.SideBlack, t0)
	if err != nil {
		t.Fatalf("Resign: %v", err)
	}
	g.Deliver(wire.SnapshotMsg(confirmed))
	drainGuest(t, g)
	if got := g.Snapshot().Result; *got != *snap.Result {
		t.Fatalf("host confirmation diverged: %+v vs %+v", got, snap.Result)
	}
}

func TestGuestChatOptimisticEchoDeduplicated(t *testing.T) {
	g, link, _ := newTestGuest(t)
	startGuest(t, g)

	g.SendChat("hello")
	drainGuest(t, g)
	if len(g.Chat()) != 1 {
		t.Fatalf("optimistic chat missing")
	}
	sent := link.byKind(wire.KindChat)
	if len(sent) != 1 {
		t.Fatalf("chat not sent")
	}

	// host echoes the same message back
	g.Deliver(sent[0])
	drainGuest(t, g)
	if len(g.Chat()) != 1 {
		t.Fatalf("echo displayed twice")
	}

	// a host-side message is appended normally
	g.Deliver(wire.ChatMsg(wire.NewChat("Alice", "hi", wire.SideWhite)))
	drainGuest(t, g)
	if len(g.Chat()) != 2 {
		t.Fatalf("peer chat not applied")
	}
}

func TestGuestHostDisconnectWinsLocally(t *testing.T) {
	g, _, _ := newTestGuest(t)
	startGuest(t, g)

	g.ConnClosed(errContext("websocket: close 1006"))
	drainGuest(t, g)

	snap := g.Snapshot()
	if snap.Status != wire.StatusEnded {
		t.Fatalf("close did not end the local view")
	}
	if snap.Result.Winner != wire.WinnerBlack || snap.Result.Reason != wire.ReasonDisconnected {
		t.Fatalf("unexpected result: %+v", snap.Result)
	}
}

func TestGuestDisconnectReconcilesClocksDeterministically(t *testing.T) {
	g, _, fc := newTestGuest(t)
	startGuest(t, g)

	// 30s of white's time burns before the channel dies; the injected clock
	// makes the reconciliation exact
	fc.Advance(30 * time.Second)
	g.ConnClosed(errContext("read: connection reset"))
	drainGuest(t, g)

	snap := g.Snapshot()
	if snap.Status != wire.StatusEnded ||
		snap.Result.Winner != wire.WinnerBlack ||
		snap.Result.Reason != wire.ReasonDisconnected {
		t.Fatalf("unexpected result: %+v", snap.Result)
	}
	if got := snap.Clocks[wire.SideWhite]; got != 4*time.Minute+30*time.Second {
		t.Fatalf("white clock = %s, want 4m30s", got)
	}
}

func TestGuestCloseBeforeStartIsQuiet(t *testing.T) {
	g, _, _ := newTestGuest(t)
	g.ConnClosed(nil)
	drainGuest(t, g)
	if g.Snapshot() != nil {
		t.Fatalf("no snapshot should exist before room_start")
	}
}

func TestGuestIgnoresUnknownKinds(t *testing.T) {
	g, _, _ := newTestGuest(t)
	before := startGuest(t, g)

	g.Deliver(wire.Message{Kind: "hologram"})
	g.Deliver(wire.MoveMsg("e2e4")) // host never sends moves
	drainGuest(t, g)

	if !reflect.DeepEqual(g.Snapshot().History, before.History) {
		t.Fatalf("unknown message mutated replica")
	}
}

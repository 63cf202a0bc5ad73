package local

import (
	"context"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"

	"github.com/dhkim-dev/chessmate/internal/autoplay"
	"github.com/dhkim-dev/chessmate/internal/record"
	"github.com/dhkim-dev/chessmate/pkg/wire"
)

var t0 = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

type memSink struct {
	records []*record.Record
}

func (s *memSink) Save(_ context.Context, rec *record.Record) error {
	s.records = append(s.records, rec)
	return nil
}

func newTestMatch(t *testing.T, humanSide wire.Side) (*Match, *memSink, *clockwork.FakeClock) {
	t.Helper()
	fc := clockwork.NewFakeClockAt(t0)
	sink := &memSink{}
	m := NewMatch(MatchConfig{
		GameID:    "local-1",
		HumanName: "Alice",
		HumanSide: humanSide,
		Clock:     wire.ClockConfig{Initial: 5 * time.Minute, Increment: 3 * time.Second},
		Clk:       fc,
		Picker:    autoplay.NewSeeded(42),
		Sink:      sink,
	})
	m.Start()
	return m, sink, fc
}

func TestHumanMoveGetsReply(t *testing.T) {
	m, _, _ := newTestMatch(t, wire.SideWhite)

	if err := m.Move("e2e4"); err != nil {
		t.Fatalf("Move: %v", err)
	}
	snap := m.Snapshot()
	if len(snap.History) != 2 {
		t.Fatalf("expected human move plus reply, got %d moves", len(snap.History))
	}
	if snap.History[0].Side != wire.SideWhite || snap.History[1].Side != wire.SideBlack {
		t.Fatalf("move attribution wrong: %+v", snap.History)
	}
	if snap.Turn != wire.SideWhite {
		t.Fatalf("turn should be back with the human, got %s", snap.Turn)
	}
}

func TestAutomatonOpensWhenHumanIsBlack(t *testing.T) {
	m, _, _ := newTestMatch(t, wire.SideBlack)

	snap := m.Snapshot()
	if len(snap.History) != 1 || snap.History[0].Side != wire.SideWhite {
		t.Fatalf("automaton should have opened: %+v", snap.History)
	}
	if snap.Turn != wire.SideBlack {
		t.Fatalf("turn should be with the human, got %s", snap.Turn)
	}
}

func TestIllegalHumanMoveGetsNoReply(t *testing.T) {
	m, _, _ := newTestMatch(t, wire.SideWhite)

	if err := m.Move("e2e5"); err == nil {
		t.Fatalf("illegal move accepted")
	}
	if len(m.Snapshot().History) != 0 {
		t.Fatalf("rejected move must not trigger a reply")
	}
}

func TestDrawOfferIsDeclined(t *testing.T) {
	m, sink, _ := newTestMatch(t, wire.SideWhite)

	if err := m.OfferDraw(); err != nil {
		t.Fatalf("OfferDraw: %v", err)
	}
	snap := m.Snapshot()
	if snap.PendingDrawOfferBy != "" {
		t.Fatalf("offer should be resolved immediately")
	}
	if snap.Status != wire.StatusPlaying {
		t.Fatalf("declined draw must not end the game")
	}
	if len(sink.records) != 0 {
		t.Fatalf("no record before the game ends")
	}
}

func TestResignEndsAndRecords(t *testing.T) {
	m, sink, _ := newTestMatch(t, wire.SideWhite)
	if err := m.Move("e2e4"); err != nil {
		t.Fatalf("Move: %v", err)
	}

	if err := m.Resign(); err != nil {
		t.Fatalf("Resign: %v", err)
	}
	snap := m.Snapshot()
	if snap.Status != wire.StatusEnded ||
		snap.Result.Winner != wire.WinnerBlack ||
		snap.Result.Reason != wire.ReasonResign {
		t.Fatalf("unexpected result: %+v", snap.Result)
	}
	if len(sink.records) != 1 {
		t.Fatalf("expected one record, got %d", len(sink.records))
	}
	rec := sink.records[0]
	if rec.Mode != record.ModeLocal || rec.WhiteName != "Alice" || len(rec.Moves) != 2 {
		t.Fatalf("record incomplete: %+v", rec)
	}

	// nothing works after the end
	if err := m.Move("d2d4"); err == nil {
		t.Fatalf("move accepted after the game ended")
	}
	if len(sink.records) != 1 {
		t.Fatalf("record duplicated")
	}
}

func TestFlagFallOnTick(t *testing.T) {
	m, sink, fc := newTestMatch(t, wire.SideWhite)

	fc.Advance(6 * time.Minute)
	m.Tick()

	snap := m.Snapshot()
	if snap.Status != wire.StatusEnded ||
		snap.Result.Winner != wire.WinnerBlack ||
		snap.Result.Reason != wire.ReasonFlag {
		t.Fatalf("unexpected result: %+v", snap.Result)
	}
	if snap.Clocks[wire.SideWhite] != 0 {
		t.Fatalf("flagged clock = %s", snap.Clocks[wire.SideWhite])
	}
	if len(sink.records) != 1 {
		t.Fatalf("expected one record")
	}

	// further ticks are no-ops
	fc.Advance(time.Minute)
	m.Tick()
	if len(sink.records) != 1 {
		t.Fatalf("tick after end produced another record")
	}
}

func TestReplyIsAlwaysLegal(t *testing.T) {
	// play ten human moves drawn from the oracle; every automaton reply in
	// between must pass ApplyMove, which re-validates against the rebuilt game
	m, _, _ := newTestMatch(t, wire.SideWhite)
	human := autoplay.NewSeeded(7)
	for i := 0; i < 10; i++ {
		snap := m.Snapshot()
		if snap.Status != wire.StatusPlaying {
			break
		}
		mv, err := human.Pick(snap.History)
		if err != nil {
			t.Fatalf("pick %d: %v", i, err)
		}
		if err := m.Move(mv); err != nil {
			t.Fatalf("move %d (%s) rejected: %v", i, mv, err)
		}
	}
}

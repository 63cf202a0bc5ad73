package room

import (
	"testing"
	"time"

	"github.com/dhkim-dev/chessmate/pkg/wire"
)

var t0 = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

func newPlaying(t *testing.T, cfg wire.ClockConfig) wire.Snapshot {
	t.Helper()
	s := New("ROOM1", "game-1", "Alice", wire.SideWhite, cfg, t0)
	s, side, err := Join(s, "Bob", t0)
	if err != nil {
		t.Fatalf("Join: %v", err)
	}
	if side != wire.SideBlack {
		t.Fatalf("expected guest to get black, got %s", side)
	}
	return s
}

func fiveMin() wire.ClockConfig {
	return wire.ClockConfig{Initial: 5 * time.Minute, Increment: 3 * time.Second}
}

func TestJoinStartsGameOnce(t *testing.T) {
	s := New("ROOM1", "game-1", "Alice", wire.SideWhite, fiveMin(), t0)
	if s.Status != wire.StatusWaiting {
		t.Fatalf("expected WAITING, got %s", s.Status)
	}
	s, _, err := Join(s, "Bob", t0)
	if err != nil {
		t.Fatalf("Join: %v", err)
	}
	if s.Status != wire.StatusPlaying || s.ActiveClockSide != wire.SideWhite {
		t.Fatalf("unexpected state after join: status=%s active=%s", s.Status, s.ActiveClockSide)
	}
	if s.Names[wire.SideWhite] != "Alice" || s.Names[wire.SideBlack] != "Bob" {
		t.Fatalf("names not populated: %v", s.Names)
	}
	if _, _, err := Join(s, "Carol", t0); err != ErrNotWaiting {
		t.Fatalf("expected ErrNotWaiting on second join, got %v", err)
	}
}

func TestTurnAlternatesAndHistoryGrows(t *testing.T) {
	s := newPlaying(t, fiveMin())
	moves := []struct {
		side wire.Side
		uci  string
	}{
		{wire.SideWhite, "e2e4"},
		{wire.SideBlack, "e7e5"},
		{wire.SideWhite, "g1f3"},
		{wire.SideBlack, "b8c6"},
	}
	for i, mv := range moves {
		if s.Turn != mv.side {
			t.Fatalf("ply %d: expected turn %s, got %s", i+1, mv.side, s.Turn)
		}
		var err error
		s, err = ApplyMove(s, mv.side, mv.uci, t0)
		if err != nil {
			t.Fatalf("ApplyMove %s: %v", mv.uci, err)
		}
		if len(s.History) != i+1 {
			t.Fatalf("history length %d after %d moves", len(s.History), i+1)
		}
		if s.LastMove == nil || s.LastMove.UCI != mv.uci || s.LastMove.Ply != i+1 {
			t.Fatalf("lastMove inconsistent after %s: %+v", mv.uci, s.LastMove)
		}
	}
	if s.Turn != wire.SideWhite || s.ActiveClockSide != wire.SideWhite {
		t.Fatalf("expected white to move, got turn=%s active=%s", s.Turn, s.ActiveClockSide)
	}
}

func TestOutOfTurnMoveRejected(t *testing.T) {
	s := newPlaying(t, fiveMin())
	if _, err := ApplyMove(s, wire.SideBlack, "e7e5", t0); err != ErrNotYourTurn {
		t.Fatalf("expected ErrNotYourTurn, got %v", err)
	}
	if len(s.History) != 0 {
		t.Fatalf("rejected move mutated history")
	}
}

func TestIllegalMoveRejected(t *testing.T) {
	s := newPlaying(t, fiveMin())
	for _, bad := range []string{"e2e5", "zz9", ""} {
		s2, err := ApplyMove(s, wire.SideWhite, bad, t0)
		if err != ErrIllegalMove {
			t.Fatalf("move %q: expected ErrIllegalMove, got %v", bad, err)
		}
		if len(s2.History) != 0 || s2.Turn != wire.SideWhite {
			t.Fatalf("move %q mutated state", bad)
		}
	}
}

func TestSANMoveAccepted(t *testing.T) {
	s := newPlaying(t, fiveMin())
	s, err := ApplyMove(s, wire.SideWhite, "Nf3", t0)
	if err != nil {
		t.Fatalf("ApplyMove SAN: %v", err)
	}
	if s.LastMove.UCI != "g1f3" || s.LastMove.SAN != "Nf3" {
		t.Fatalf("unexpected notations: %+v", s.LastMove)
	}
}

func TestIncrementCreditedToMoverOnly(t *testing.T) {
	s := newPlaying(t, fiveMin())
	s, err := ApplyMove(s, wire.SideWhite, "e2e4", t0)
	if err != nil {
		t.Fatalf("ApplyMove: %v", err)
	}
	if got := s.Clocks[wire.SideWhite]; got != 5*time.Minute+3*time.Second {
		t.Fatalf("white clock = %s, want 5m3s", got)
	}
	if got := s.Clocks[wire.SideBlack]; got != 5*time.Minute {
		t.Fatalf("black clock = %s, want 5m", got)
	}
	if s.Turn != wire.SideBlack || s.ActiveClockSide != wire.SideBlack {
		t.Fatalf("turn did not flip to black")
	}
}

func TestMoveClearsPendingDrawOffer(t *testing.T) {
	s := newPlaying(t, fiveMin())
	s, err := OfferDraw(s, wire.SideBlack, t0)
	if err != nil {
		t.Fatalf("OfferDraw: %v", err)
	}
	s, err = ApplyMove(s, wire.SideWhite, "e2e4", t0)
	if err != nil {
		t.Fatalf("ApplyMove: %v", err)
	}
	if s.PendingDrawOfferBy != "" {
		t.Fatalf("draw offer not cleared by move")
	}
}

func TestDrawOfferAcceptAndDecline(t *testing.T) {
	s := newPlaying(t, fiveMin())
	s, err := OfferDraw(s, wire.SideWhite, t0)
	if err != nil {
		t.Fatalf("OfferDraw: %v", err)
	}
	// second offer loses: first processed wins
	if _, err := OfferDraw(s, wire.SideBlack, t0); err != ErrDrawPending {
		t.Fatalf("expected ErrDrawPending on second offer, got %v", err)
	}
	// the offering side cannot respond to its own offer
	if _, err := RespondDraw(s, wire.SideWhite, true, t0); err != ErrOwnDrawOffer {
		t.Fatalf("expected ErrOwnDrawOffer, got %v", err)
	}
	declined, err := RespondDraw(s, wire.SideBlack, false, t0)
	if err != nil {
		t.Fatalf("RespondDraw decline: %v", err)
	}
	if declined.Status != wire.StatusPlaying || declined.PendingDrawOfferBy != "" {
		t.Fatalf("decline should only clear the offer: %+v", declined)
	}
	accepted, err := RespondDraw(s, wire.SideBlack, true, t0)
	if err != nil {
		t.Fatalf("RespondDraw accept: %v", err)
	}
	if accepted.Status != wire.StatusEnded || accepted.Result == nil ||
		accepted.Result.Winner != wire.WinnerDraw || accepted.Result.Reason != wire.ReasonAgreement {
		t.Fatalf("unexpected accepted result: %+v", accepted.Result)
	}
}

func TestResignSupersedesPendingDraw(t *testing.T) {
	s := newPlaying(t, fiveMin())
	s, err := OfferDraw(s, wire.SideWhite, t0)
	if err != nil {
		t.Fatalf("OfferDraw: %v", err)
	}
	s, err = Resign(s, wire.SideWhite, t0)
	if err != nil {
		t.Fatalf("Resign: %v", err)
	}
	if s.Result == nil || s.Result.Winner != wire.WinnerBlack || s.Result.Reason != wire.ReasonResign {
		t.Fatalf("expected black win by resignation, got %+v", s.Result)
	}
}

func TestNoEventAfterEnded(t *testing.T) {
	s := newPlaying(t, fiveMin())
	s, err := Resign(s, wire.SideBlack, t0)
	if err != nil {
		t.Fatalf("Resign: %v", err)
	}
	if _, err := ApplyMove(s, wire.SideWhite, "e2e4", t0); err != ErrNotPlaying {
		t.Fatalf("move after end: expected ErrNotPlaying, got %v", err)
	}
	if _, err := OfferDraw(s, wire.SideWhite, t0); err != ErrNotPlaying {
		t.Fatalf("offer after end: expected ErrNotPlaying, got %v", err)
	}
	if _, err := Resign(s, wire.SideWhite, t0); err != ErrNotPlaying {
		t.Fatalf("resign after end: expected ErrNotPlaying, got %v", err)
	}
	if s.Result.Reason != wire.ReasonResign {
		t.Fatalf("result mutated after end: %+v", s.Result)
	}
}

func TestCheckmateEndsGame(t *testing.T) {
	s := newPlaying(t, fiveMin())
	seq := []struct {
		side wire.Side
		uci  string
	}{
		{wire.SideWhite, "f2f3"},
		{wire.SideBlack, "e7e5"},
		{wire.SideWhite, "g2g4"},
		{wire.SideBlack, "d8h4"},
	}
	var err error
	for _, mv := range seq {
		s, err = ApplyMove(s, mv.side, mv.uci, t0)
		if err != nil {
			t.Fatalf("ApplyMove %s: %v", mv.uci, err)
		}
	}
	if s.Status != wire.StatusEnded || s.Result == nil {
		t.Fatalf("expected game over, got status=%s", s.Status)
	}
	if s.Result.Winner != wire.WinnerBlack || s.Result.Reason != wire.ReasonCheckmate {
		t.Fatalf("expected black wins by checkmate, got %+v", s.Result)
	}
	if s.ActiveClockSide != "" {
		t.Fatalf("clock still active after mate")
	}
}

func TestPeerDisconnected(t *testing.T) {
	waiting := New("ROOM1", "game-1", "Alice", wire.SideWhite, fiveMin(), t0)
	if _, err := PeerDisconnected(waiting, wire.SideWhite, t0); err != ErrNotPlaying {
		t.Fatalf("waiting room should be abandoned without a result, got %v", err)
	}

	s := newPlaying(t, fiveMin())
	s, err := PeerDisconnected(s, wire.SideWhite, t0)
	if err != nil {
		t.Fatalf("PeerDisconnected: %v", err)
	}
	if s.Result == nil || s.Result.Winner != wire.WinnerWhite || s.Result.Reason != wire.ReasonDisconnected {
		t.Fatalf("unexpected result: %+v", s.Result)
	}
}

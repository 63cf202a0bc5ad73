package room

import (
	"strings"
	"time"

	nchess "github.com/corentings/chess/v2"

	"github.com/dhkim-dev/chessmate/pkg/wire"
)

// Errors returned by the handlers. Protocol violations are sentinels so the
// coordinator can absorb them as no-ops.
var (
	ErrNotWaiting    = errf("room is not waiting for a guest")
	ErrNotPlaying    = errf("game is not in progress")
	ErrNotYourTurn   = errf("not your turn")
	ErrIllegalMove   = errf("illegal move")
	ErrDrawPending   = errf("a draw offer is already pending")
	ErrNoDrawPending = errf("no draw offer pending")
	ErrOwnDrawOffer  = errf("cannot respond to own draw offer")
	ErrBadSnapshot   = errf("snapshot history does not replay")
)

type staticErr string

func (e staticErr) Error() string { return string(e) }
func errf(s string) error         { return staticErr(s) }

// New creates a WAITING snapshot owned by the host. The host occupies
// hostSide; the guest gets the opposite side at Join.
func New(roomCode, gameID, hostName string, hostSide wire.Side, cfg wire.ClockConfig, now time.Time) wire.Snapshot {
	if !hostSide.Valid() {
		hostSide = wire.SideWhite
	}
	return wire.Snapshot{
		RoomCode:  strings.TrimSpace(roomCode),
		GameID:    strings.TrimSpace(gameID),
		StartedAt: now,
		FEN:       nchess.NewGame().FEN(),
		Turn:      wire.SideWhite,
		Status:    wire.StatusWaiting,
		History:   []wire.MoveRecord{},
		Names:     map[wire.Side]string{hostSide: strings.TrimSpace(hostName)},
		Clocks: map[wire.Side]time.Duration{
			wire.SideWhite: cfg.Initial,
			wire.SideBlack: cfg.Initial,
		},
		Clock:    cfg,
		LastTick: now,
	}
}

// Join admits the single guest and starts the game. White's clock becomes
// active regardless of which side the guest holds.
func Join(s wire.Snapshot, guestName string, now time.Time) (wire.Snapshot, wire.Side, error) {
	if s.Status != wire.StatusWaiting {
		return s, "", ErrNotWaiting
	}
	s = s.Clone()
	guestSide := wire.SideWhite
	if _, taken := s.Names[wire.SideWhite]; taken {
		guestSide = wire.SideBlack
	}
	s.Names[guestSide] = strings.TrimSpace(guestName)
	s.Status = wire.StatusPlaying
	s.StartedAt = now
	s.ActiveClockSide = s.Turn
	s.LastTick = now
	return s, guestSide, nil
}

// ApplyMove validates and applies a move for side. Clocks are reconciled
// first so a stale tick can never un-expire a flag; the mover's increment is
// credited only after a successful application.
func ApplyMove(s wire.Snapshot, side wire.Side, moveStr string, now time.Time) (wire.Snapshot, error) {
	s = Advance(s, now)
	if s.Status != wire.StatusPlaying {
		return s, ErrNotPlaying
	}
	if side != s.Turn {
		return s, ErrNotYourTurn
	}

	game := rebuild(s.History)
	if game == nil {
		return s, ErrBadSnapshot
	}
	pos := game.Position()

	raw := strings.TrimSpace(moveStr)
	if raw == "" {
		return s, ErrIllegalMove
	}
	var san, uci string
	if mv, derr := (nchess.UCINotation{}).Decode(pos, strings.ToLower(raw)); derr == nil {
		if err := game.Move(mv, nil); err != nil {
			return s, ErrIllegalMove
		}
		san = nchess.AlgebraicNotation{}.Encode(pos, mv)
		uci = strings.ToLower(raw)
	} else {
		if err := game.PushNotationMove(raw, nchess.AlgebraicNotation{}, nil); err != nil {
			return s, ErrIllegalMove
		}
		last := lastMove(game)
		if last == nil {
			return s, ErrIllegalMove
		}
		san = nchess.AlgebraicNotation{}.Encode(pos, last)
		uci = last.String()
	}
	claimEligibleDraw(game)

	s = s.Clone()
	rec := wire.MoveRecord{
		Ply:  len(s.History) + 1,
		Side: side,
		SAN:  san,
		UCI:  uci,
		FEN:  game.FEN(),
	}
	s.History = append(s.History, rec)
	s.LastMove = &rec
	s.FEN = rec.FEN
	s.Turn = sideFrom(game.Position().Turn())
	s.PendingDrawOfferBy = ""
	s.Clocks[side] += s.Clock.Increment

	if res := resolveOutcome(game, side); res != nil {
		end(&s, *res)
		return s, nil
	}
	s.ActiveClockSide = s.Turn
	s.LastTick = now
	return s, nil
}

// OfferDraw records a pending offer. First processed wins: any already
// pending offer rejects the new one.
func OfferDraw(s wire.Snapshot, side wire.Side, now time.Time) (wire.Snapshot, error) {
	s = Advance(s, now)
	if s.Status != wire.StatusPlaying {
		return s, ErrNotPlaying
	}
	if s.PendingDrawOfferBy != "" {
		return s, ErrDrawPending
	}
	s = s.Clone()
	s.PendingDrawOfferBy = side
	return s, nil
}

// RespondDraw resolves a pending offer. Only the non-offering side may
// respond.
func RespondDraw(s wire.Snapshot, side wire.Side, accepted bool, now time.Time) (wire.Snapshot, error) {
	s = Advance(s, now)
	if s.Status != wire.StatusPlaying {
		return s, ErrNotPlaying
	}
	if s.PendingDrawOfferBy == "" {
		return s, ErrNoDrawPending
	}
	if s.PendingDrawOfferBy == side {
		return s, ErrOwnDrawOffer
	}
	s = s.Clone()
	if accepted {
		end(&s, wire.Result{Winner: wire.WinnerDraw, Reason: wire.ReasonAgreement})
		return s, nil
	}
	s.PendingDrawOfferBy = ""
	return s, nil
}

// Resign terminates immediately in favor of the opponent, superseding any
// pending draw offer.
func Resign(s wire.Snapshot, side wire.Side, now time.Time) (wire.Snapshot, error) {
	s = Advance(s, now)
	if s.Status != wire.StatusPlaying {
		return s, ErrNotPlaying
	}
	s = s.Clone()
	end(&s, wire.Result{Winner: wire.WinnerOf(side.Opposite()), Reason: wire.ReasonResign})
	return s, nil
}

// PeerDisconnected terminates a live game in favor of the side that stayed
// connected. A WAITING room is simply abandoned; the caller tears it down
// without producing a record.
func PeerDisconnected(s wire.Snapshot, remaining wire.Side, now time.Time) (wire.Snapshot, error) {
	s = Advance(s, now)
	if s.Status != wire.StatusPlaying {
		return s, ErrNotPlaying
	}
	s = s.Clone()
	end(&s, wire.Result{Winner: wire.WinnerOf(remaining), Reason: wire.ReasonDisconnected})
	return s, nil
}

func end(s *wire.Snapshot, r wire.Result) {
	s.Status = wire.StatusEnded
	s.Result = &r
	s.ActiveClockSide = ""
	s.PendingDrawOfferBy = ""
}

func sideFrom(c nchess.Color) wire.Side {
	if c == nchess.White {
		return wire.SideWhite
	}
	return wire.SideBlack
}

func lastMove(game *nchess.Game) *nchess.Move {
	moves := game.Moves()
	if len(moves) == 0 {
		return nil
	}
	return moves[len(moves)-1]
}

// rebuild replays the stored UCI history from the start position. The FEN on
// the snapshot is presentation state; replaying it here could double-apply
// moves.
func rebuild(history []wire.MoveRecord) *nchess.Game {
	game := nchess.NewGame()
	for _, rec := range history {
		if err := game.PushNotationMove(rec.UCI, nchess.UCINotation{}, nil); err != nil {
			return nil
		}
	}
	return game
}

package room

import (
	nchess "github.com/corentings/chess/v2"

	"github.com/dhkim-dev/chessmate/pkg/wire"
)

// claimEligibleDraw claims rule-based draws the engine only offers
// (threefold repetition is claimable, not automatic).
func claimEligibleDraw(game *nchess.Game) {
	for _, m := range game.EligibleDraws() {
		if m == nchess.ThreefoldRepetition || m == nchess.FiftyMoveRule {
			_ = game.Draw(m)
			return
		}
	}
}

// resolveOutcome maps the oracle's terminal report to a result, or nil while
// the position is live. mover is the side whose move produced the position;
// on checkmate it is the winner.
func resolveOutcome(game *nchess.Game, mover wire.Side) *wire.Result {
	if game.Outcome() == nchess.NoOutcome {
		return nil
	}
	switch game.Method() {
	case nchess.Checkmate:
		return &wire.Result{Winner: wire.WinnerOf(mover), Reason: wire.ReasonCheckmate}
	case nchess.Stalemate:
		return &wire.Result{Winner: wire.WinnerDraw, Reason: wire.ReasonStalemate}
	case nchess.ThreefoldRepetition, nchess.FivefoldRepetition:
		return &wire.Result{Winner: wire.WinnerDraw, Reason: wire.ReasonThreefoldRepetition}
	case nchess.InsufficientMaterial:
		return &wire.Result{Winner: wire.WinnerDraw, Reason: wire.ReasonInsufficientMaterial}
	default:
		return &wire.Result{Winner: wire.WinnerDraw, Reason: wire.ReasonDraw}
	}
}

package room

import (
	"time"

	"github.com/dhkim-dev/chessmate/pkg/wire"
)

// Advance reconciles the active clock against wall time. It is a no-op when
// the game is not in progress, when no clock runs, or when now is not after
// the last reconciliation (non-monotonic clocks). Remaining time floors at
// zero; reaching zero is a flag-fall that ends the game in favor of the
// opponent.
//
// Callers must Advance before reading clocks for display and before applying
// any state-changing event.
func Advance(s wire.Snapshot, now time.Time) wire.Snapshot {
	if s.Status != wire.StatusPlaying || !s.ActiveClockSide.Valid() {
		return s
	}
	elapsed := now.Sub(s.LastTick)
	if elapsed <= 0 {
		return s
	}
	s = s.Clone()
	active := s.ActiveClockSide
	remaining := s.Clocks[active] - elapsed
	if remaining < 0 {
		remaining = 0
	}
	s.Clocks[active] = remaining
	s.LastTick = now
	if remaining == 0 {
		end(&s, wire.Result{Winner: wire.WinnerOf(active.Opposite()), Reason: wire.ReasonFlag})
	}
	return s
}

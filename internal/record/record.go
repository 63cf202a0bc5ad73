package record

import (
	"fmt"
	"strings"
	"time"

	"github.com/dhkim-dev/chessmate/pkg/wire"
)

// Mode tags how the game was played.
type Mode string

const (
	ModeNetwork Mode = "network"
	ModeLocal   Mode = "local"
)

// Record is the immutable finished-game artifact handed to persistence
// exactly once per room lifecycle. It is never mutated after hand-off.
type Record struct {
	GameID   string
	RoomCode string
	Mode     Mode

	StartedAt time.Time
	EndedAt   time.Time

	WhiteName string
	BlackName string

	Result      wire.Result
	TimeControl wire.ClockConfig

	Moves []wire.MoveRecord
	Chat  []wire.ChatMessage
}

// FromSnapshot builds the record for an ENDED snapshot.
func FromSnapshot(s wire.Snapshot, mode Mode, chat []wire.ChatMessage, endedAt time.Time) *Record {
	rec := &Record{
		GameID:      s.GameID,
		RoomCode:    s.RoomCode,
		Mode:        mode,
		StartedAt:   s.StartedAt,
		EndedAt:     endedAt,
		WhiteName:   s.Names[wire.SideWhite],
		BlackName:   s.Names[wire.SideBlack],
		TimeControl: s.Clock,
		Moves:       append([]wire.MoveRecord(nil), s.History...),
		Chat:        append([]wire.ChatMessage(nil), chat...),
	}
	if s.Result != nil {
		rec.Result = *s.Result
	}
	return rec
}

// PGN renders the move history with standard headers.
func (r *Record) PGN() string {
	var b strings.Builder
	date := r.EndedAt
	if date.IsZero() {
		date = time.Now()
	}
	result := pgnResult(r.Result.Winner)
	b.WriteString("[Event \"chessmate\"]\n")
	b.WriteString(fmt.Sprintf("[Site \"%s\"]\n", sanitizePGN(r.RoomCode)))
	b.WriteString(fmt.Sprintf("[Date \"%04d.%02d.%02d\"]\n", date.Year(), int(date.Month()), date.Day()))
	b.WriteString(fmt.Sprintf("[White \"%s\"]\n", sanitizePGN(r.WhiteName)))
	b.WriteString(fmt.Sprintf("[Black \"%s\"]\n", sanitizePGN(r.BlackName)))
	b.WriteString(fmt.Sprintf("[TimeControl \"%s\"]\n", timeControlTag(r.TimeControl)))
	if strings.TrimSpace(r.Result.Reason) != "" {
		b.WriteString(fmt.Sprintf("[Termination \"%s\"]\n", sanitizePGN(strings.ToLower(r.Result.Reason))))
	}
	b.WriteString(fmt.Sprintf("[Result \"%s\"]\n\n", result))

	for i := 0; i < len(r.Moves); i += 2 {
		b.WriteString(fmt.Sprintf("%d. %s", i/2+1, strings.TrimSpace(r.Moves[i].SAN)))
		if i+1 < len(r.Moves) {
			b.WriteString(" ")
			b.WriteString(strings.TrimSpace(r.Moves[i+1].SAN))
		}
		b.WriteString(" ")
	}
	b.WriteString(result)
	return b.String()
}

func pgnResult(w wire.Winner) string {
	switch w {
	case wire.WinnerWhite:
		return "1-0"
	case wire.WinnerBlack:
		return "0-1"
	case wire.WinnerDraw:
		return "1/2-1/2"
	default:
		return "*"
	}
}

// timeControlTag formats PGN's seconds+increment notation, e.g. "300+3".
func timeControlTag(cfg wire.ClockConfig) string {
	if cfg.Initial <= 0 {
		return "-"
	}
	return fmt.Sprintf("%d+%d", int(cfg.Initial.Seconds()), int(cfg.Increment.Seconds()))
}

func sanitizePGN(s string) string {
	s = strings.ReplaceAll(s, "\\", " ")
	s = strings.ReplaceAll(s, "\"", "'")
	return strings.TrimSpace(s)
}

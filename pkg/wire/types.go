package wire

import "time"

// Side identifies a chess side.
type Side string

const (
	SideWhite Side = "white"
	SideBlack Side = "black"
)

// Opposite returns the other side. Undefined input returns the empty side.
func (s Side) Opposite() Side {
	switch s {
	case SideWhite:
		return SideBlack
	case SideBlack:
		return SideWhite
	}
	return ""
}

func (s Side) Valid() bool { return s == SideWhite || s == SideBlack }

// Status represents the room lifecycle state. Transitions are strictly
// forward: WAITING → PLAYING → ENDED.
type Status string

const (
	StatusWaiting Status = "WAITING"
	StatusPlaying Status = "PLAYING"
	StatusEnded   Status = "ENDED"
)

// Winner is the result holder: a side, a draw, or empty while undecided.
type Winner string

const (
	WinnerNone  Winner = ""
	WinnerWhite Winner = "white"
	WinnerBlack Winner = "black"
	WinnerDraw  Winner = "draw"
)

// WinnerOf maps a side to its winner token.
func WinnerOf(s Side) Winner {
	if s == SideBlack {
		return WinnerBlack
	}
	return WinnerWhite
}

// Termination reason tags recorded alongside a winner.
const (
	ReasonCheckmate            = "Checkmate"
	ReasonStalemate            = "Stalemate"
	ReasonThreefoldRepetition  = "Threefold repetition"
	ReasonInsufficientMaterial = "Insufficient material"
	ReasonDraw                 = "Draw"
	ReasonAgreement            = "Agreement"
	ReasonResign               = "Resign"
	ReasonFlag                 = "Flag"
	ReasonDisconnected         = "Opponent disconnected"
)

// Result is non-nil on a Snapshot exactly when Status is ENDED.
type Result struct {
	Winner Winner `json:"winner"`
	Reason string `json:"reason"`
}

// MoveRecord is one applied move; history is append-only.
type MoveRecord struct {
	Ply  int    `json:"ply"`
	Side Side   `json:"side"`
	SAN  string `json:"san"`
	UCI  string `json:"uci"`
	FEN  string `json:"fen"` // position after the move
}

// ClockConfig is fixed for the room's lifetime.
type ClockConfig struct {
	Initial   time.Duration `json:"initial"`
	Increment time.Duration `json:"increment"`
}

// Snapshot is the complete replicated state of one game room. The host owns
// the only writable copy; guests hold verbatim replicas.
type Snapshot struct {
	RoomCode  string    `json:"room_code"`
	GameID    string    `json:"game_id"`
	StartedAt time.Time `json:"started_at"`

	FEN     string  `json:"fen"`
	Turn    Side    `json:"turn"`
	Status  Status  `json:"status"`
	Result  *Result `json:"result,omitempty"`

	History  []MoveRecord `json:"history"`
	LastMove *MoveRecord  `json:"last_move,omitempty"`

	Names map[Side]string `json:"names"`

	PendingDrawOfferBy Side `json:"pending_draw_offer_by,omitempty"`

	Clocks          map[Side]time.Duration `json:"clocks"`
	Clock           ClockConfig            `json:"clock_config"`
	ActiveClockSide Side                   `json:"active_clock_side,omitempty"`
	LastTick        time.Time              `json:"last_tick"`
}

// Clone returns a deep copy so handlers never alias a published snapshot.
func (s Snapshot) Clone() Snapshot {
	out := s
	out.History = make([]MoveRecord, len(s.History))
	copy(out.History, s.History)
	if s.LastMove != nil {
		lm := *s.LastMove
		out.LastMove = &lm
	}
	if s.Result != nil {
		r := *s.Result
		out.Result = &r
	}
	out.Names = make(map[Side]string, len(s.Names))
	for k, v := range s.Names {
		out.Names[k] = v
	}
	out.Clocks = make(map[Side]time.Duration, len(s.Clocks))
	for k, v := range s.Clocks {
		out.Clocks[k] = v
	}
	return out
}

// Package autoplay picks moves for the automated opponent in local matches.
package autoplay

import (
	"math/rand"
	"strings"
	"sync"
	"time"

	nchess "github.com/corentings/chess/v2"

	"github.com/dhkim-dev/chessmate/pkg/wire"
)

type staticErr string

func (e staticErr) Error() string { return string(e) }

// ErrNoMoves is returned when the position has no legal continuation.
const ErrNoMoves = staticErr("autoplay: no legal moves")

// Picker selects a uniformly random legal move for the side to move.
type Picker struct {
	mu   sync.Mutex
	rand *rand.Rand
}

func New() *Picker {
	return NewSeeded(time.Now().UnixNano())
}

// NewSeeded returns a deterministic picker for tests.
func NewSeeded(seed int64) *Picker {
	return &Picker{rand: rand.New(rand.NewSource(seed))}
}

// Pick rebuilds the game from the UCI history and returns a random legal
// move in UCI notation.
func (p *Picker) Pick(history []wire.MoveRecord) (string, error) {
	game := nchess.NewGame()
	for _, rec := range history {
		if err := game.PushNotationMove(rec.UCI, nchess.UCINotation{}, nil); err != nil {
			return "", err
		}
	}
	moves := game.ValidMoves()
	if len(moves) == 0 {
		return "", ErrNoMoves
	}
	p.mu.Lock()
	idx := p.rand.Intn(len(moves))
	p.mu.Unlock()
	mv := moves[idx]
	return strings.TrimSpace(mv.String()), nil
}

// Package local runs a single-process match against an automated opponent,
// reusing the same snapshot, clock, and outcome rules as networked rooms.
package local

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
	"go.uber.org/zap"

	"github.com/dhkim-dev/chessmate/internal/autoplay"
	"github.com/dhkim-dev/chessmate/internal/msgcat"
	"github.com/dhkim-dev/chessmate/internal/obslog"
	"github.com/dhkim-dev/chessmate/internal/record"
	"github.com/dhkim-dev/chessmate/internal/room"
	"github.com/dhkim-dev/chessmate/pkg/wire"
)

const defaultBotName = "Automaton"

type staticErr string

func (e staticErr) Error() string { return string(e) }

const errNoCatalog = staticErr("local: no message catalog")

type MatchConfig struct {
	GameID    string
	HumanName string
	HumanSide wire.Side
	BotName   string
	Clock     wire.ClockConfig

	Clk     clockwork.Clock
	Picker  *autoplay.Picker
	Sink    record.Sink
	Catalog *msgcat.Catalog
}

// Match is a human-vs-automaton game. All methods are safe for concurrent
// use; the ticker goroutine and the input reader share one mutex instead of
// an event loop since there is no second peer to serialize.
type Match struct {
	mu          sync.Mutex
	snap        wire.Snapshot
	humanSide   wire.Side
	botSide     wire.Side
	picker      *autoplay.Picker
	sink        record.Sink
	catalog     *msgcat.Catalog
	clk         clockwork.Clock
	chat        []wire.ChatMessage
	recordSaved bool

	OnSnapshot func(wire.Snapshot)
	OnChat     func(wire.ChatMessage)
}

func NewMatch(cfg MatchConfig) *Match {
	if cfg.Clk == nil {
		cfg.Clk = clockwork.NewRealClock()
	}
	if cfg.Picker == nil {
		cfg.Picker = autoplay.New()
	}
	if cfg.Sink == nil {
		cfg.Sink = record.Discard{}
	}
	if strings.TrimSpace(cfg.BotName) == "" {
		cfg.BotName = defaultBotName
	}
	if strings.TrimSpace(cfg.GameID) == "" {
		cfg.GameID = uuid.NewString()
	}
	if !cfg.HumanSide.Valid() {
		cfg.HumanSide = wire.SideWhite
	}
	now := cfg.Clk.Now()
	snap := room.New("local", cfg.GameID, cfg.HumanName, cfg.HumanSide, cfg.Clock, now)
	snap, botSide, err := room.Join(snap, cfg.BotName, now)
	if err != nil {
		// New always yields a waiting room, Join on it cannot fail
		obslog.L().Error("local_join_failed", zap.Error(err))
	}
	return &Match{
		snap:      snap,
		humanSide: cfg.HumanSide,
		botSide:   botSide,
		picker:    cfg.Picker,
		sink:      cfg.Sink,
		catalog:   cfg.Catalog,
		clk:       cfg.Clk,
	}
}

// Start announces the game and lets the automaton open when it has white.
func (m *Match) Start() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.systemChat("game.start", map[string]any{
		"White": m.snap.Names[wire.SideWhite],
		"Black": m.snap.Names[wire.SideBlack],
	}, "game on")
	if m.snap.Status == wire.StatusPlaying && m.snap.Turn == m.botSide {
		m.botMove()
	}
	m.notify()
}

func (m *Match) Snapshot() wire.Snapshot {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.snap.Clone()
}

func (m *Match) Chat() []wire.ChatMessage {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]wire.ChatMessage(nil), m.chat...)
}

// Move applies the human move and, when the game survives it, answers with
// the automaton's reply in the same call.
func (m *Match) Move(moveStr string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, err := room.ApplyMove(m.snap, m.humanSide, moveStr, m.clk.Now())
	m.commit(s)
	if err != nil {
		return err
	}
	if m.snap.Status == wire.StatusPlaying && m.snap.Turn == m.botSide {
		m.botMove()
	}
	m.notify()
	return nil
}

// OfferDraw registers the offer; the automaton has no draw judgment and
// declines immediately.
func (m *Match) OfferDraw() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, err := room.OfferDraw(m.snap, m.humanSide, m.clk.Now())
	m.commit(s)
	if err != nil {
		return err
	}
	s, err = room.RespondDraw(m.snap, m.botSide, false, m.clk.Now())
	m.commit(s)
	if err == nil {
		m.systemChat("draw.declined", map[string]any{"Name": m.snap.Names[m.botSide]}, "draw declined")
	}
	m.notify()
	return nil
}

func (m *Match) Resign() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, err := room.Resign(m.snap, m.humanSide, m.clk.Now())
	m.commit(s)
	m.notify()
	return err
}

// Tick advances the active clock; call it from a ticker goroutine.
func (m *Match) Tick() {
	m.mu.Lock()
	defer m.mu.Unlock()
	before := m.snap
	m.commit(room.Advance(m.snap, m.clk.Now()))
	if before.Status != m.snap.Status || !before.LastTick.Equal(m.snap.LastTick) {
		m.notify()
	}
}

func (m *Match) botMove() {
	mv, err := m.picker.Pick(m.snap.History)
	if err != nil {
		obslog.L().Error("local_bot_no_move", zap.Error(err))
		return
	}
	s, err := room.ApplyMove(m.snap, m.botSide, mv, m.clk.Now())
	m.commit(s)
	if err != nil {
		obslog.L().Error("local_bot_move_rejected", zap.String("move", mv), zap.Error(err))
	}
}

// commit adopts the returned snapshot unconditionally so a flag detected
// during a rejected action still lands, then persists once on game end.
func (m *Match) commit(s wire.Snapshot) {
	m.snap = s
	if m.snap.Status == wire.StatusEnded {
		m.finish()
	}
}

func (m *Match) finish() {
	if m.recordSaved || m.snap.Result == nil {
		return
	}
	m.recordSaved = true
	m.systemChat("game.end", map[string]any{
		"Reason":  m.snap.Result.Reason,
		"Outcome": m.outcomeText(),
	}, m.outcomeText())
	rec := record.FromSnapshot(m.snap, record.ModeLocal, m.chat, m.clk.Now())
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := m.sink.Save(ctx, rec); err != nil {
		obslog.L().Error("local_record_save_failed", zap.String("game_id", rec.GameID), zap.Error(err))
	}
	obslog.L().Info("local_game_ended",
		zap.String("game_id", m.snap.GameID),
		zap.String("winner", string(m.snap.Result.Winner)),
		zap.String("reason", m.snap.Result.Reason),
	)
}

func (m *Match) outcomeText() string {
	res := m.snap.Result
	if res == nil {
		return ""
	}
	if res.Winner == wire.WinnerDraw {
		if out, err := m.render("outcome.draw", nil); err == nil {
			return out
		}
		return "draw: " + res.Reason
	}
	name := m.snap.Names[wire.Side(res.Winner)]
	if out, err := m.render("outcome.win", map[string]any{"Winner": name}); err == nil {
		return out
	}
	return name + " wins: " + res.Reason
}

func (m *Match) systemChat(key string, data map[string]any, fallback string) {
	text := fallback
	if out, err := m.render(key, data); err == nil {
		text = out
	}
	msg := wire.NewSystemChat(text)
	m.chat = append(m.chat, msg)
	if m.OnChat != nil {
		m.OnChat(msg)
	}
}

func (m *Match) render(key string, data map[string]any) (string, error) {
	if m.catalog == nil {
		return "", errNoCatalog
	}
	return m.catalog.Render(key, data)
}

func (m *Match) notify() {
	if m.OnSnapshot != nil {
		m.OnSnapshot(m.snap.Clone())
	}
}

package record

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	_ "github.com/lib/pq"
)

// Sink accepts one finished-game record per room lifecycle.
type Sink interface {
	Save(ctx context.Context, rec *Record) error
}

// Discard is the sink used when no database is configured.
type Discard struct{}

func (Discard) Save(context.Context, *Record) error { return nil }

// Repository persists finished games to Postgres.
type Repository struct {
	db *sql.DB
}

func NewRepository(databaseURL string) (*Repository, error) {
	if strings.TrimSpace(databaseURL) == "" {
		return nil, fmt.Errorf("DATABASE_URL is required")
	}
	db, err := sql.Open("postgres", databaseURL)
	if err != nil {
		return nil, err
	}
	db.SetMaxOpenConns(8)
	db.SetMaxIdleConns(4)
	db.SetConnMaxLifetime(30 * time.Minute)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := db.PingContext(ctx); err != nil {
		return nil, err
	}
	return &Repository{db: db}, nil
}

func (r *Repository) Close() error {
	if r == nil || r.db == nil {
		return nil
	}
	return r.db.Close()
}

// Save upserts the record; replays of the same game id overwrite instead of
// duplicating.
func (r *Repository) Save(ctx context.Context, rec *Record) error {
	if r == nil || r.db == nil || rec == nil {
		return nil
	}
	movesRaw, _ := json.Marshal(rec.Moves)
	chatRaw, _ := json.Marshal(rec.Chat)
	duration := rec.EndedAt.Sub(rec.StartedAt).Milliseconds()
	if duration < 0 {
		duration = 0
	}

	q := `INSERT INTO games (
	    game_id, room_code, mode, white_name, black_name,
	    winner, reason, time_initial_ms, time_increment_ms,
	    moves, chat, pgn, started_at, ended_at, duration_ms
	  ) VALUES (
	    $1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15
	  ) ON CONFLICT (game_id) DO UPDATE SET
	    room_code=EXCLUDED.room_code,
	    mode=EXCLUDED.mode,
	    white_name=EXCLUDED.white_name,
	    black_name=EXCLUDED.black_name,
	    winner=EXCLUDED.winner,
	    reason=EXCLUDED.reason,
	    time_initial_ms=EXCLUDED.time_initial_ms,
	    time_increment_ms=EXCLUDED.time_increment_ms,
	    moves=EXCLUDED.moves,
	    chat=EXCLUDED.chat,
	    pgn=EXCLUDED.pgn,
	    started_at=EXCLUDED.started_at,
	    ended_at=EXCLUDED.ended_at,
	    duration_ms=EXCLUDED.duration_ms`

	_, err := r.db.ExecContext(ctx, q,
		rec.GameID, rec.RoomCode, string(rec.Mode),
		rec.WhiteName, rec.BlackName,
		string(rec.Result.Winner), rec.Result.Reason,
		rec.TimeControl.Initial.Milliseconds(), rec.TimeControl.Increment.Milliseconds(),
		string(movesRaw), string(chatRaw), rec.PGN(),
		rec.StartedAt, rec.EndedAt, duration,
	)
	return err
}

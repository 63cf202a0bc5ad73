package config

import (
	"errors"
	"os"
	"strings"
	"time"

	"github.com/dhkim-dev/chessmate/pkg/wire"
)

type AppConfig struct {
	ListenAddr string
	ServerURL  string

	RoomCode   string
	PlayerName string
	HostSide   wire.Side

	ClockInitial   time.Duration
	ClockIncrement time.Duration
	TickInterval   time.Duration

	RedisURL    string
	DatabaseURL string

	MsgCatalogDir string
}

func Load() (*AppConfig, error) {
	cfg := &AppConfig{
		ListenAddr:   ":8080",
		PlayerName:   "Anonymous",
		HostSide:     wire.SideWhite,
		ClockInitial: 5 * time.Minute,
		TickInterval: 250 * time.Millisecond,
	}

	if v := strings.TrimSpace(os.Getenv("LISTEN_ADDR")); v != "" {
		cfg.ListenAddr = v
	}
	cfg.ServerURL = strings.TrimSpace(os.Getenv("SERVER_URL"))
	cfg.RoomCode = strings.ToUpper(strings.TrimSpace(os.Getenv("ROOM_CODE")))
	if v := strings.TrimSpace(os.Getenv("PLAYER_NAME")); v != "" {
		cfg.PlayerName = v
	}

	if v := strings.ToLower(strings.TrimSpace(os.Getenv("HOST_SIDE"))); v != "" {
		side := wire.Side(v)
		if !side.Valid() {
			return nil, errors.New("HOST_SIDE must be white or black")
		}
		cfg.HostSide = side
	}

	if v := strings.TrimSpace(os.Getenv("CLOCK_INITIAL")); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil || d <= 0 {
			return nil, errors.New("CLOCK_INITIAL must be a positive duration like 5m")
		}
		cfg.ClockInitial = d
	}
	if v := strings.TrimSpace(os.Getenv("CLOCK_INCREMENT")); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil || d < 0 {
			return nil, errors.New("CLOCK_INCREMENT must be a non-negative duration like 3s")
		}
		cfg.ClockIncrement = d
	}
	if v := strings.TrimSpace(os.Getenv("TICK_INTERVAL")); v != "" {
		if d, err := time.ParseDuration(v); err == nil && d > 0 {
			cfg.TickInterval = d
		}
	}

	cfg.RedisURL = strings.TrimSpace(os.Getenv("REDIS_URL"))
	cfg.DatabaseURL = strings.TrimSpace(os.Getenv("DATABASE_URL"))
	cfg.MsgCatalogDir = strings.TrimSpace(os.Getenv("MSG_CATALOG_DIR"))

	return cfg, nil
}

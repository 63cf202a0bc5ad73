package main

import (
	"bufio"
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"

	appcfg "github.com/dhkim-dev/chessmate/internal/config"
	"github.com/dhkim-dev/chessmate/internal/local"
	"github.com/dhkim-dev/chessmate/internal/msgcat"
	"github.com/dhkim-dev/chessmate/internal/obslog"
	"github.com/dhkim-dev/chessmate/internal/record"
	"github.com/dhkim-dev/chessmate/internal/registry"
	"github.com/dhkim-dev/chessmate/internal/session"
	"github.com/dhkim-dev/chessmate/internal/transport"
	"github.com/dhkim-dev/chessmate/pkg/wire"
)

func main() {
	if err := obslog.InitFromEnv(); err != nil {
		log.Fatalf("log init error: %v", err)
	}
	cfg, err := appcfg.Load()
	if err != nil {
		log.Fatalf("config error: %v", err)
	}

	mode := "local"
	if len(os.Args) > 1 {
		mode = strings.ToLower(strings.TrimSpace(os.Args[1]))
	}

	catalog, err := msgcat.New(cfg.MsgCatalogDir)
	if err != nil {
		log.Fatalf("message catalog error: %v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	switch mode {
	case "host":
		runHost(ctx, cfg, catalog)
	case "join":
		runJoin(ctx, cfg)
	case "local":
		runLocal(ctx, cfg, catalog)
	case "lobby":
		runLobby(ctx, cfg)
	default:
		fmt.Println(usage())
		os.Exit(2)
	}
}

func usage() string {
	return strings.Join([]string{
		"chessmate <mode>",
		"",
		"  host   open a room and wait for a guest (LISTEN_ADDR, ROOM_CODE optional)",
		"  join   connect to a room (SERVER_URL, ROOM_CODE)",
		"  local  play against the automaton",
		"  lobby  list open rooms (REDIS_URL)",
		"",
		"in-game input: a move (e2e4 or Nf3), /chat <text>, /draw, /accept, /decline, /resign",
	}, "\n")
}

func openSink(databaseURL string) (record.Sink, func()) {
	if strings.TrimSpace(databaseURL) == "" {
		return record.Discard{}, func() {}
	}
	repo, err := record.NewRepository(databaseURL)
	if err != nil {
		log.Fatalf("game repository error: %v", err)
	}
	return repo, func() { _ = repo.Close() }
}

func runHost(ctx context.Context, cfg *appcfg.AppConfig, catalog *msgcat.Catalog) {
	roomCode := cfg.RoomCode
	if roomCode == "" {
		code, err := registry.GenerateCode()
		if err != nil {
			log.Fatalf("room code error: %v", err)
		}
		roomCode = code
	}

	sink, closeSink := openSink(cfg.DatabaseURL)
	defer closeSink()

	var reg *registry.Registry
	if cfg.RedisURL != "" {
		r, err := registry.New(cfg.RedisURL)
		if err != nil {
			log.Fatalf("registry error: %v", err)
		}
		reg = r
		defer reg.Close()
		if _, err := reg.Claim(ctx, roomCode, cfg.PlayerName); err != nil {
			log.Fatalf("room claim error: %v", err)
		}
		defer func() {
			rctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
			defer cancel()
			_ = reg.Release(rctx, roomCode)
		}()
	}

	host := session.NewHost(session.HostConfig{
		RoomCode:     roomCode,
		GameID:       uuid.NewString(),
		HostName:     cfg.PlayerName,
		HostSide:     cfg.HostSide,
		Clock:        wire.ClockConfig{Initial: cfg.ClockInitial, Increment: cfg.ClockIncrement},
		TickInterval: cfg.TickInterval,
		Sink:         sink,
		Catalog:      catalog,
	})
	host.OnSnapshot = printSnapshot
	host.OnChat = printChat
	host.OnStarted = func(s wire.Snapshot) {
		if reg != nil {
			actx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
			defer cancel()
			_ = reg.Activate(actx, roomCode)
		}
	}

	srv := transport.NewServer(cfg.ListenAddr, roomCode, func(ch *transport.Channel) {
		host.Attach(ch)
		go ch.ReadLoop(ctx, host.Deliver, host.ConnClosed)
	})
	go func() {
		if err := srv.ListenAndServe(); err != nil {
			log.Fatalf("listen error: %v", err)
		}
	}()
	defer func() {
		sctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
		defer cancel()
		_ = srv.Shutdown(sctx)
	}()

	waiting := fmt.Sprintf("room %s is open, waiting for an opponent", roomCode)
	if text, err := catalog.Render("room.waiting", map[string]any{"Code": roomCode}); err == nil {
		waiting = text
	}
	fmt.Printf("%s (listening on %s)\n", waiting, cfg.ListenAddr)
	go host.Run(ctx)
	readInput(ctx, host)
}

func runJoin(ctx context.Context, cfg *appcfg.AppConfig) {
	if cfg.ServerURL == "" || cfg.RoomCode == "" {
		log.Fatalf("SERVER_URL and ROOM_CODE are required to join")
	}
	ch, err := transport.Dial(ctx, cfg.ServerURL, cfg.RoomCode)
	if err != nil {
		log.Fatalf("dial error: %v", err)
	}

	guest := session.NewGuest(cfg.PlayerName, ch)
	guest.OnSnapshot = printSnapshot
	guest.OnChat = printChat
	guest.OnError = func(text string) { fmt.Printf("rejected: %s\n", text) }

	go ch.ReadLoop(ctx, guest.Deliver, guest.ConnClosed)
	go guest.Run(ctx)
	fmt.Printf("joined room %s as %s\n", cfg.RoomCode, cfg.PlayerName)
	readInput(ctx, guest)
}

func runLocal(ctx context.Context, cfg *appcfg.AppConfig, catalog *msgcat.Catalog) {
	sink, closeSink := openSink(cfg.DatabaseURL)
	defer closeSink()

	match := local.NewMatch(local.MatchConfig{
		HumanName: cfg.PlayerName,
		HumanSide: cfg.HostSide,
		Clock:     wire.ClockConfig{Initial: cfg.ClockInitial, Increment: cfg.ClockIncrement},
		Sink:      sink,
		Catalog:   catalog,
	})
	match.OnSnapshot = printSnapshot
	match.OnChat = printChat
	match.Start()

	ticker := clockwork.NewRealClock().NewTicker(cfg.TickInterval)
	defer ticker.Stop()
	go func() {
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.Chan():
				match.Tick()
			}
		}
	}()

	readInput(ctx, localPlayer{match})
}

func runLobby(ctx context.Context, cfg *appcfg.AppConfig) {
	reg, err := registry.New(cfg.RedisURL)
	if err != nil {
		log.Fatalf("registry error: %v", err)
	}
	defer reg.Close()
	rooms, err := reg.ListOpen(ctx)
	if err != nil {
		log.Fatalf("lobby error: %v", err)
	}
	if len(rooms) == 0 {
		fmt.Println("no open rooms")
		return
	}
	for _, r := range rooms {
		fmt.Printf("%s  host=%s  opened=%s\n", r.Code, r.HostName, r.CreatedAt.Format(time.RFC3339))
	}
}

// player is the common intent surface of host, guest, and local match.
type player interface {
	Move(string)
	OfferDraw()
	RespondDraw(bool)
	Resign()
	SendChat(string)
}

type localPlayer struct{ m *local.Match }

func (p localPlayer) Move(mv string) {
	if err := p.m.Move(mv); err != nil {
		fmt.Printf("rejected: %v\n", err)
	}
}

func (p localPlayer) OfferDraw() {
	if err := p.m.OfferDraw(); err != nil {
		fmt.Printf("rejected: %v\n", err)
	}
}

func (p localPlayer) RespondDraw(bool) {
	fmt.Println("the automaton never offers a draw")
}

func (p localPlayer) Resign() {
	if err := p.m.Resign(); err != nil {
		fmt.Printf("rejected: %v\n", err)
	}
}

func (p localPlayer) SendChat(string) {
	fmt.Println("no chat in local games")
}

// readInput turns stdin lines into intents until EOF or shutdown.
func readInput(ctx context.Context, p player) {
	scanner := bufio.NewScanner(os.Stdin)
	lines := make(chan string)
	go func() {
		defer close(lines)
		for scanner.Scan() {
			lines <- scanner.Text()
		}
	}()
	for {
		select {
		case <-ctx.Done():
			return
		case line, ok := <-lines:
			if !ok {
				<-ctx.Done()
				return
			}
			dispatch(p, line)
		}
	}
}

func dispatch(p player, line string) {
	line = strings.TrimSpace(line)
	if line == "" {
		return
	}
	cmd, rest, _ := strings.Cut(line, " ")
	switch strings.ToLower(cmd) {
	case "/chat":
		if strings.TrimSpace(rest) != "" {
			p.SendChat(strings.TrimSpace(rest))
		}
	case "/draw":
		p.OfferDraw()
	case "/accept":
		p.RespondDraw(true)
	case "/decline":
		p.RespondDraw(false)
	case "/resign":
		p.Resign()
	case "/help":
		fmt.Println(usage())
	default:
		p.Move(line)
	}
}

func printSnapshot(s wire.Snapshot) {
	switch s.Status {
	case wire.StatusWaiting:
		fmt.Printf("[%s] waiting for opponent\n", s.RoomCode)
	case wire.StatusPlaying:
		last := ""
		if s.LastMove != nil {
			last = fmt.Sprintf("  last %s", s.LastMove.SAN)
		}
		fmt.Printf("[%s] %s to move%s  W %s  B %s\n",
			s.RoomCode, s.Turn, last,
			fmtClock(s.Clocks[wire.SideWhite]), fmtClock(s.Clocks[wire.SideBlack]))
	case wire.StatusEnded:
		if s.Result != nil {
			fmt.Printf("[%s] game over: %s (%s)\n", s.RoomCode, s.Result.Winner, s.Result.Reason)
		}
	}
}

func printChat(m wire.ChatMessage) {
	if m.System {
		fmt.Printf("* %s\n", m.Text)
		return
	}
	fmt.Printf("<%s> %s\n", m.Sender, m.Text)
}

func fmtClock(d time.Duration) string {
	d = d.Round(time.Second)
	m := int(d.Minutes())
	s := int(d.Seconds()) % 60
	return fmt.Sprintf("%d:%02d", m, s)
}

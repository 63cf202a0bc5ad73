package transport

import (
	"context"
	"net/http"
	"strings"
	"sync/atomic"
	"time"

	"go.uber.org/zap"
	"nhooyr.io/websocket"

	"github.com/dhkim-dev/chessmate/internal/obslog"
)

// StatusRoomOccupied is sent when a second guest attempts to join an
// already-occupied room. The connection is refused before any message
// reaches the session.
const StatusRoomOccupied = websocket.StatusPolicyViolation

// Server accepts exactly one guest channel for a single room code. Any
// further connection attempt, concurrent or later, is closed immediately so
// the state machine never sees a second Join.
type Server struct {
	roomCode string
	onGuest  func(*Channel)

	occupied atomic.Bool
	httpSrv  *http.Server
}

func NewServer(addr, roomCode string, onGuest func(*Channel)) *Server {
	s := &Server{
		roomCode: strings.TrimSpace(roomCode),
		onGuest:  onGuest,
	}
	mux := http.NewServeMux()
	mux.HandleFunc("/ws", s.handleWS)
	s.httpSrv = &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 10 * time.Second,
	}
	return s
}

// ListenAndServe blocks until Shutdown or a listener error.
func (s *Server) ListenAndServe() error {
	err := s.httpSrv.ListenAndServe()
	if err == http.ErrServerClosed {
		return nil
	}
	return err
}

func (s *Server) Shutdown(ctx context.Context) error {
	return s.httpSrv.Shutdown(ctx)
}

func (s *Server) handleWS(w http.ResponseWriter, r *http.Request) {
	if r.URL.Query().Get("room") != s.roomCode {
		http.Error(w, "unknown room", http.StatusNotFound)
		return
	}
	conn, err := websocket.Accept(w, r, &websocket.AcceptOptions{
		CompressionMode: websocket.CompressionNoContextTakeover,
	})
	if err != nil {
		obslog.L().Warn("ws_accept_error", zap.Error(err))
		return
	}
	if !s.occupied.CompareAndSwap(false, true) {
		obslog.L().Info("ws_join_refused", zap.String("room", s.roomCode), zap.String("reason", "occupied"))
		_ = conn.Close(StatusRoomOccupied, "room occupied")
		return
	}
	obslog.L().Info("ws_guest_accepted", zap.String("room", s.roomCode))
	s.onGuest(newChannel(conn))
}

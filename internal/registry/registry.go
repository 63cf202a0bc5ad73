package registry

import (
	"context"
	"crypto/rand"
	"encoding/json"
	"fmt"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/dhkim-dev/chessmate/internal/obslog"
)

// Sentinel errors.
var (
	ErrInvalidArgs = errf("invalid arguments")
	ErrRoomTaken   = errf("room code already in use")
)

type staticErr string

func (e staticErr) Error() string { return string(e) }
func errf(s string) error         { return staticErr(s) }

const ttlRoom = 6 * time.Hour

// RoomState is the registry-side lifecycle of a room code.
type RoomState string

const (
	StateOpen   RoomState = "OPEN"
	StateActive RoomState = "ACTIVE"
)

// RoomInfo is the claim stored under room:<code>.
type RoomInfo struct {
	Code      string    `json:"code"`
	HostName  string    `json:"host_name"`
	State     RoomState `json:"state"`
	CreatedAt time.Time `json:"created_at"`
}

// Registry claims room codes in Redis so two hosts can never open the same
// room, and keeps an index of open rooms for discovery.
type Registry struct {
	rdb *redis.Client
}

func New(redisURL string) (*Registry, error) {
	if strings.TrimSpace(redisURL) == "" {
		return nil, fmt.Errorf("REDIS_URL required for room registry")
	}
	opts, err := parseRedisURL(redisURL)
	if err != nil {
		return nil, err
	}
	rdb := redis.NewClient(opts)
	if err := rdb.Ping(context.Background()).Err(); err != nil {
		return nil, fmt.Errorf("redis ping: %w", err)
	}
	return &Registry{rdb: rdb}, nil
}

// NewWithClient wires an existing client; used by tests.
func NewWithClient(rdb *redis.Client) *Registry { return &Registry{rdb: rdb} }

func (r *Registry) Close() error {
	if r == nil || r.rdb == nil {
		return nil
	}
	return r.rdb.Close()
}

// Claim reserves a room code for the host. A code already claimed by any
// process returns ErrRoomTaken; the existing room is unaffected.
func (r *Registry) Claim(ctx context.Context, code, hostName string) (*RoomInfo, error) {
	code = strings.TrimSpace(code)
	if code == "" || strings.TrimSpace(hostName) == "" {
		return nil, ErrInvalidArgs
	}
	info := &RoomInfo{
		Code:      code,
		HostName:  strings.TrimSpace(hostName),
		State:     StateOpen,
		CreatedAt: time.Now(),
	}
	raw, err := json.Marshal(info)
	if err != nil {
		return nil, err
	}
	ok, err := r.rdb.SetNX(ctx, keyRoom(code), raw, ttlRoom).Result()
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, ErrRoomTaken
	}
	if err := r.rdb.SAdd(ctx, keyOpenIdx(), code).Err(); err != nil {
		return nil, err
	}
	_ = r.rdb.Expire(ctx, keyOpenIdx(), ttlRoom).Err()
	obslog.L().Info("registry_claim", zap.String("code", code), zap.String("host", info.HostName))
	return info, nil
}

// Activate marks the room as playing and removes it from the open index.
func (r *Registry) Activate(ctx context.Context, code string) error {
	code = strings.TrimSpace(code)
	if code == "" {
		return ErrInvalidArgs
	}
	info, err := r.load(ctx, code)
	if err != nil || info == nil {
		return err
	}
	info.State = StateActive
	raw, _ := json.Marshal(info)
	if err := r.rdb.Set(ctx, keyRoom(code), raw, ttlRoom).Err(); err != nil {
		return err
	}
	return r.rdb.SRem(ctx, keyOpenIdx(), code).Err()
}

// Release drops the claim, usually at session teardown.
func (r *Registry) Release(ctx context.Context, code string) error {
	code = strings.TrimSpace(code)
	if code == "" {
		return ErrInvalidArgs
	}
	if err := r.rdb.Del(ctx, keyRoom(code)).Err(); err != nil {
		return err
	}
	if err := r.rdb.SRem(ctx, keyOpenIdx(), code).Err(); err != nil {
		return err
	}
	obslog.L().Info("registry_release", zap.String("code", code))
	return nil
}

// ListOpen returns rooms still waiting for a guest.
func (r *Registry) ListOpen(ctx context.Context) ([]*RoomInfo, error) {
	codes, err := r.rdb.SMembers(ctx, keyOpenIdx()).Result()
	if err != nil {
		return nil, err
	}
	var out []*RoomInfo
	for _, c := range codes {
		info, err := r.load(ctx, c)
		if err != nil {
			return nil, err
		}
		if info == nil || info.State != StateOpen {
			// stale index entry; drop it
			_ = r.rdb.SRem(ctx, keyOpenIdx(), c).Err()
			continue
		}
		out = append(out, info)
	}
	return out, nil
}

func (r *Registry) load(ctx context.Context, code string) (*RoomInfo, error) {
	raw, err := r.rdb.Get(ctx, keyRoom(code)).Bytes()
	if err == redis.Nil {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	var info RoomInfo
	if err := json.Unmarshal(raw, &info); err != nil {
		return nil, err
	}
	return &info, nil
}

// GenerateCode returns "CM-" + 6 upper alnum.
func GenerateCode() (string, error) {
	const letters = "ABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"
	b := make([]byte, 6)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	for i := range b {
		b[i] = letters[int(b[i])%len(letters)]
	}
	return "CM-" + string(b), nil
}

func keyRoom(code string) string { return "room:" + code }
func keyOpenIdx() string         { return "room:index:open" }

func parseRedisURL(raw string) (*redis.Options, error) {
	u, err := url.Parse(raw)
	if err != nil {
		return nil, err
	}
	if u.Scheme != "redis" && u.Scheme != "rediss" {
		return nil, fmt.Errorf("unsupported scheme: %s", u.Scheme)
	}
	db := 0
	if p := strings.TrimPrefix(u.Path, "/"); p != "" {
		if n, err := strconv.Atoi(p); err == nil {
			db = n
		}
	}
	pass, _ := u.User.Password()
	return &redis.Options{Addr: u.Host, Password: pass, DB: db}, nil
}

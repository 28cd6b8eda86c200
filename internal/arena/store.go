package arena

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
)

// Sentinel errors surfaced by the store and the rules adapter. The
// coordinator matches these with errors.Is to pick the dispatch path.
var (
	ErrGameNotFound    = errors.New("game not found")
	ErrGameNotJoinable = errors.New("game not available to join")
	ErrGameNotActive   = errors.New("game not in progress")
	ErrNotYourTurn     = errors.New("not your turn")
	ErrIllegalMove     = errors.New("illegal move")
	ErrNotInGame       = errors.New("sender not in game")
	ErrConflict        = errors.New("concurrent update")
)

// Store persists one GameRecord per game ID in Redis. Records are JSON blobs
// under arena:game:<id> with a rolling TTL.
type Store struct {
	rdb *redis.Client
	ttl time.Duration
}

func NewStore(redisURL string, ttl time.Duration) (*Store, error) {
	if strings.TrimSpace(redisURL) == "" {
		return nil, fmt.Errorf("redis URL required")
	}
	opts, err := parseRedisURL(redisURL)
	if err != nil {
		return nil, err
	}
	rdb := redis.NewClient(opts)
	if err := rdb.Ping(context.Background()).Err(); err != nil {
		return nil, fmt.Errorf("redis ping: %w", err)
	}
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}
	return &Store{rdb: rdb, ttl: ttl}, nil
}

func (s *Store) Close() error {
	if s == nil || s.rdb == nil {
		return nil
	}
	return s.rdb.Close()
}

// Get loads a record by game ID. Returns ErrGameNotFound when absent.
func (s *Store) Get(ctx context.Context, gameID string) (*GameRecord, error) {
	raw, err := s.rdb.Get(ctx, gameKey(gameID)).Bytes()
	if err == redis.Nil {
		return nil, ErrGameNotFound
	}
	if err != nil {
		return nil, err
	}
	var g GameRecord
	if err := json.Unmarshal(raw, &g); err != nil {
		return nil, err
	}
	return &g, nil
}

// Put persists a record, refreshing its TTL.
func (s *Store) Put(ctx context.Context, g *GameRecord) error {
	raw, err := json.Marshal(g)
	if err != nil {
		return err
	}
	return s.rdb.Set(ctx, gameKey(g.ID), raw, s.ttl).Err()
}

// Update runs a read-modify-write cycle under an optimistic WATCH on the game
// key, so two writers racing on the same game cannot silently overwrite each
// other. mutate sees the freshly loaded record and may return a sentinel
// error to abort without persisting. A concurrent write between load and
// persist yields ErrConflict.
func (s *Store) Update(ctx context.Context, gameID string, mutate func(*GameRecord) error) (*GameRecord, error) {
	var out *GameRecord
	err := s.rdb.Watch(ctx, func(tx *redis.Tx) error {
		raw, err := tx.Get(ctx, gameKey(gameID)).Bytes()
		if err == redis.Nil {
			return ErrGameNotFound
		}
		if err != nil {
			return err
		}
		var cur GameRecord
		if err := json.Unmarshal(raw, &cur); err != nil {
			return err
		}
		if err := mutate(&cur); err != nil {
			return err
		}
		cur.UpdatedAt = time.Now().UTC()

		pipe := tx.TxPipeline()
		newRaw, err := json.Marshal(&cur)
		if err != nil {
			return err
		}
		pipe.Set(ctx, gameKey(gameID), newRaw, s.ttl)
		if _, err := pipe.Exec(ctx); err != nil {
			return err
		}
		out = &cur
		return nil
	}, gameKey(gameID))
	if errors.Is(err, redis.TxFailedErr) {
		return nil, ErrConflict
	}
	if err != nil {
		return nil, err
	}
	return out, nil
}

func gameKey(id string) string { return "arena:game:" + strings.TrimSpace(id) }

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

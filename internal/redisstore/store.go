// Package redisstore keeps the real-time tree in Redis: one hash per
// collection path, one field per child key.
package redisstore

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"strings"

	"github.com/matheus3301/friendzone/internal/logging"
	"github.com/matheus3301/friendzone/internal/rtstore"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// Store is an rtstore.Store over Redis hashes. Redis has no per-field change
// feed, so writes are announced through a Notifier. A write that reached Redis
// succeeds even if its announcement fails.
type Store struct {
	rdb      *redis.Client
	prefix   string
	notifier rtstore.Notifier
	logger   *zap.Logger
}

var _ rtstore.Store = (*Store)(nil)

// New creates a store whose hash keys are prefix+collection path.
func New(rdb *redis.Client, prefix string, n rtstore.Notifier, logger *zap.Logger) *Store {
	return &Store{rdb: rdb, prefix: prefix, notifier: n, logger: logging.OrNop(logger)}
}

// Dial parses a redis:// URL and verifies the server answers.
func Dial(ctx context.Context, url string) (*redis.Client, error) {
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}
	rdb := redis.NewClient(opts)
	if err := rdb.Ping(ctx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("redis ping: %w", err)
	}
	return rdb, nil
}

func (s *Store) hashKey(parent string) string {
	return s.prefix + parent
}

func (s *Store) Get(ctx context.Context, path string) ([]byte, bool, error) {
	parent, key, err := rtstore.SplitLeaf(path)
	if err != nil {
		return nil, false, err
	}
	v, err := s.rdb.HGet(ctx, s.hashKey(parent), key).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("hget %s: %w", path, err)
	}
	return v, true, nil
}

func (s *Store) Children(ctx context.Context, path string) ([]rtstore.Child, error) {
	p, err := rtstore.Clean(path)
	if err != nil {
		return nil, err
	}
	fields, err := s.rdb.HGetAll(ctx, s.hashKey(p)).Result()
	if err != nil {
		return nil, fmt.Errorf("hgetall %s: %w", p, err)
	}
	out := make([]rtstore.Child, 0, len(fields))
	for k, v := range fields {
		out = append(out, rtstore.Child{Key: k, Value: []byte(v)})
	}
	slices.SortFunc(out, func(a, b rtstore.Child) int { return strings.Compare(a.Key, b.Key) })
	return out, nil
}

func (s *Store) Set(ctx context.Context, path string, value []byte) error {
	parent, key, err := rtstore.SplitLeaf(path)
	if err != nil {
		return err
	}
	added, err := s.rdb.HSet(ctx, s.hashKey(parent), key, value).Result()
	if err != nil {
		return fmt.Errorf("hset %s: %w", path, err)
	}
	kind := rtstore.ChildChanged
	if added == 1 {
		kind = rtstore.ChildAdded
	}
	// The write has landed; a lost notification only delays listeners, and
	// subscribers refetch on their next event.
	if err := s.notifier.Notify(ctx, rtstore.Event{Kind: kind, Parent: parent, Key: key, Value: value}); err != nil {
		s.logger.Warn("change notification failed", zap.String("path", path), zap.Error(err))
	}
	return nil
}

func (s *Store) Push(ctx context.Context, path string, value []byte) (string, error) {
	p, err := rtstore.Clean(path)
	if err != nil {
		return "", err
	}
	key := rtstore.NewKey()
	if err := s.Set(ctx, rtstore.Join(p, key), value); err != nil {
		return "", err
	}
	return key, nil
}

func (s *Store) Subscribe(ctx context.Context, path string, h rtstore.Handler) (func(), error) {
	return rtstore.SubscribeVia(ctx, s.notifier, path, h)
}

// Ping checks the Redis connection.
func (s *Store) Ping(ctx context.Context) error {
	return s.rdb.Ping(ctx).Err()
}

package daemon

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/matheus3301/friendzone/internal/config"
	"github.com/matheus3301/friendzone/internal/natsfeed"
	"github.com/matheus3301/friendzone/internal/redisstore"
	"github.com/matheus3301/friendzone/internal/rtstore"
	"github.com/matheus3301/friendzone/internal/store"
	"github.com/matheus3301/friendzone/internal/store/migrations"
	"go.uber.org/zap"
)

type pinger interface {
	Ping(context.Context) error
}

// Backend is the configured real-time store plus whatever it needs running.
type Backend struct {
	Name    string
	Store   rtstore.Store
	pingers []pinger
	start   func(context.Context) error
	closers []func()
}

// Ping checks every component the backend depends on.
func (b *Backend) Ping(ctx context.Context) error {
	for _, p := range b.pingers {
		if err := p.Ping(ctx); err != nil {
			return err
		}
	}
	return nil
}

// Start launches background work such as change polling.
func (b *Backend) Start(ctx context.Context) error {
	if b.start == nil {
		return nil
	}
	return b.start(ctx)
}

// Close releases connections in reverse order of acquisition.
func (b *Backend) Close() {
	for i := len(b.closers) - 1; i >= 0; i-- {
		b.closers[i]()
	}
}

// OpenBackend connects the store selected by cfg.
func OpenBackend(ctx context.Context, cfg *config.Config, logger *zap.Logger) (*Backend, error) {
	switch cfg.Store.Backend {
	case config.BackendSQLite, "":
		return openSQLite(cfg, logger)
	case config.BackendRedis:
		return openRedis(ctx, cfg, logger)
	case config.BackendMemory:
		mem := rtstore.NewMemory()
		return &Backend{Name: config.BackendMemory, Store: mem, pingers: []pinger{mem}}, nil
	default:
		return nil, fmt.Errorf("unknown store backend %q", cfg.Store.Backend)
	}
}

func openSQLite(cfg *config.Config, logger *zap.Logger) (*Backend, error) {
	path := cfg.Store.SQLitePath
	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		return nil, err
	}
	db, err := store.Open(path)
	if err != nil {
		return nil, err
	}
	result, err := db.Migrate(migrations.Hub)
	if err != nil {
		_ = db.Close()
		return nil, err
	}
	if result.Changed {
		logger.Info("hub migrations applied", zap.Uint("version", result.Version))
	}
	tree := store.NewTree(db, cfg.Store.PollInterval.Duration, logger)
	logger.Info("store initialized", zap.String("backend", config.BackendSQLite), zap.String("path", path))
	return &Backend{
		Name:    config.BackendSQLite,
		Store:   tree,
		pingers: []pinger{tree},
		start:   tree.Start,
		closers: []func(){func() { _ = db.Close() }, tree.Stop},
	}, nil
}

func openRedis(ctx context.Context, cfg *config.Config, logger *zap.Logger) (*Backend, error) {
	rdb, err := redisstore.Dial(ctx, cfg.Store.RedisURL)
	if err != nil {
		return nil, err
	}
	b := &Backend{Name: config.BackendRedis, closers: []func(){func() { _ = rdb.Close() }}}

	var notifier rtstore.Notifier
	switch cfg.Feed.Backend {
	case config.FeedNATS:
		feed, err := natsfeed.Connect(cfg.Feed.NATSURL, "fzd", logger)
		if err != nil {
			b.Close()
			return nil, err
		}
		b.closers = append(b.closers, feed.Close)
		b.pingers = append(b.pingers, feed)
		notifier = feed
	case config.FeedLocal, "":
		notifier = rtstore.NewFeed()
	default:
		b.Close()
		return nil, fmt.Errorf("unknown feed backend %q", cfg.Feed.Backend)
	}

	rs := redisstore.New(rdb, cfg.Store.RedisPrefix, notifier, logger)
	b.Store = rs
	b.pingers = append([]pinger{rs}, b.pingers...)
	logger.Info("store initialized",
		zap.String("backend", config.BackendRedis),
		zap.String("feed", cfg.Feed.Backend))
	return b, nil
}

package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/matheus3301/friendzone/internal/logging"
	"github.com/matheus3301/friendzone/internal/rtstore"
	"go.uber.org/zap"
)

// Tree is an rtstore.Store over a SQLite file that several daemons may
// share. Every write allocates a revision; a poller turns rows with a newer
// revision into child events, so listeners see writes from other processes.
// Several writes to one child between polls surface as a single event.
type Tree struct {
	db       *DB
	feed     *rtstore.Feed
	interval time.Duration
	logger   *zap.Logger

	mu      sync.Mutex
	lastRev int64
	kick    chan struct{}
	cancel  context.CancelFunc
	done    chan struct{}
}

var _ rtstore.Store = (*Tree)(nil)

// NewTree wraps a migrated hub database. interval <= 0 defaults to 250ms.
func NewTree(db *DB, interval time.Duration, logger *zap.Logger) *Tree {
	if interval <= 0 {
		interval = 250 * time.Millisecond
	}
	return &Tree{
		db:       db,
		feed:     rtstore.NewFeed(),
		interval: interval,
		logger:   logging.OrNop(logger),
		kick:     make(chan struct{}, 1),
	}
}

// Start begins polling for changes committed after this call.
func (t *Tree) Start(ctx context.Context) error {
	var rev sql.NullInt64
	if err := t.db.QueryRowContext(ctx, `SELECT MAX(id) FROM revisions`).Scan(&rev); err != nil {
		return fmt.Errorf("read head revision: %w", err)
	}
	t.mu.Lock()
	t.lastRev = rev.Int64
	t.mu.Unlock()

	ctx, t.cancel = context.WithCancel(ctx)
	t.done = make(chan struct{})
	go t.loop(ctx)
	return nil
}

// Stop halts the poller and waits for it.
func (t *Tree) Stop() {
	if t.cancel == nil {
		return
	}
	t.cancel()
	<-t.done
}

// Ping checks the underlying database.
func (t *Tree) Ping(ctx context.Context) error {
	return t.db.Ping(ctx)
}

func (t *Tree) loop(ctx context.Context) {
	defer close(t.done)
	ticker := time.NewTicker(t.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		case <-t.kick:
		}
		if err := t.Poll(ctx); err != nil && ctx.Err() == nil {
			t.logger.Warn("tree poll failed", zap.Error(err))
		}
	}
}

// Poll emits events for every row written since the previous poll.
func (t *Tree) Poll(ctx context.Context) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	rows, err := t.db.QueryContext(ctx, `
		SELECT parent, key, value, rev, created_rev
		FROM nodes WHERE rev > ? ORDER BY rev`, t.lastRev)
	if err != nil {
		return fmt.Errorf("poll nodes: %w", err)
	}
	var events []rtstore.Event
	last := t.lastRev
	for rows.Next() {
		var (
			evt             rtstore.Event
			rev, createdRev int64
		)
		if err := rows.Scan(&evt.Parent, &evt.Key, &evt.Value, &rev, &createdRev); err != nil {
			_ = rows.Close()
			return fmt.Errorf("scan node: %w", err)
		}
		evt.Kind = rtstore.ChildChanged
		if createdRev == rev {
			evt.Kind = rtstore.ChildAdded
		}
		events = append(events, evt)
		last = rev
	}
	if err := rows.Close(); err != nil {
		return err
	}
	if err := rows.Err(); err != nil {
		return err
	}
	t.lastRev = last

	for _, evt := range events {
		_ = t.feed.Notify(ctx, evt)
	}
	return nil
}

func (t *Tree) Get(ctx context.Context, path string) ([]byte, bool, error) {
	parent, key, err := rtstore.SplitLeaf(path)
	if err != nil {
		return nil, false, err
	}
	var v []byte
	err = t.db.QueryRowContext(ctx,
		`SELECT value FROM nodes WHERE parent = ? AND key = ?`, parent, key).Scan(&v)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("get %s: %w", path, err)
	}
	return v, true, nil
}

func (t *Tree) Children(ctx context.Context, path string) ([]rtstore.Child, error) {
	p, err := rtstore.Clean(path)
	if err != nil {
		return nil, err
	}
	rows, err := t.db.QueryContext(ctx,
		`SELECT key, value FROM nodes WHERE parent = ? ORDER BY key`, p)
	if err != nil {
		return nil, fmt.Errorf("children %s: %w", p, err)
	}
	defer func() { _ = rows.Close() }()

	out := []rtstore.Child{}
	for rows.Next() {
		var c rtstore.Child
		if err := rows.Scan(&c.Key, &c.Value); err != nil {
			return nil, fmt.Errorf("scan child: %w", err)
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

func (t *Tree) Set(ctx context.Context, path string, value []byte) error {
	parent, key, err := rtstore.SplitLeaf(path)
	if err != nil {
		return err
	}
	if value == nil {
		value = []byte{}
	}

	tx, err := t.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	now := time.Now().UnixMilli()
	res, err := tx.ExecContext(ctx, `INSERT INTO revisions (at) VALUES (?)`, now)
	if err != nil {
		return fmt.Errorf("allocate revision: %w", err)
	}
	rev, err := res.LastInsertId()
	if err != nil {
		return fmt.Errorf("allocate revision: %w", err)
	}
	if _, err := tx.ExecContext(ctx, `
		INSERT INTO nodes (parent, key, value, rev, created_rev, updated_at)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(parent, key) DO UPDATE SET
			value = excluded.value,
			rev = excluded.rev,
			updated_at = excluded.updated_at`,
		parent, key, value, rev, rev, now); err != nil {
		return fmt.Errorf("write %s: %w", path, err)
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit: %w", err)
	}

	select {
	case t.kick <- struct{}{}:
	default:
	}
	return nil
}

func (t *Tree) Push(ctx context.Context, path string, value []byte) (string, error) {
	p, err := rtstore.Clean(path)
	if err != nil {
		return "", err
	}
	key := rtstore.NewKey()
	if err := t.Set(ctx, rtstore.Join(p, key), value); err != nil {
		return "", err
	}
	return key, nil
}

func (t *Tree) Subscribe(ctx context.Context, path string, h rtstore.Handler) (func(), error) {
	return rtstore.SubscribeVia(ctx, t.feed, path, h)
}

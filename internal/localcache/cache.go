// Package localcache persists device-local state, chiefly the chat the user
// last had open.
package localcache

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/matheus3301/friendzone/internal/chat"
	"github.com/matheus3301/friendzone/internal/logging"
	"github.com/matheus3301/friendzone/internal/store"
	"github.com/matheus3301/friendzone/internal/store/migrations"
	"go.uber.org/zap"
)

// ActiveChatKey holds the pinned session.
const ActiveChatKey = "chat"

// Cache is a synchronous key/value store in the profile's local.db.
type Cache struct {
	db     *store.DB
	logger *zap.Logger
}

// Open opens and migrates the local database at path.
func Open(path string, logger *zap.Logger) (*Cache, error) {
	db, err := store.Open(path)
	if err != nil {
		return nil, err
	}
	if _, err := db.Migrate(migrations.Local); err != nil {
		_ = db.Close()
		return nil, err
	}
	return New(db, logger), nil
}

// New wraps an already migrated database.
func New(db *store.DB, logger *zap.Logger) *Cache {
	return &Cache{db: db, logger: logging.OrNop(logger)}
}

func (c *Cache) Close() error {
	return c.db.Close()
}

func (c *Cache) Get(key string) ([]byte, bool, error) {
	var v []byte
	err := c.db.QueryRow(`SELECT value FROM local_kv WHERE key = ?`, key).Scan(&v)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("read %s: %w", key, err)
	}
	return v, true, nil
}

func (c *Cache) Set(key string, value []byte) error {
	_, err := c.db.Exec(`
		INSERT INTO local_kv (key, value, updated_at)
		VALUES (?, ?, ?)
		ON CONFLICT(key) DO UPDATE SET value = excluded.value, updated_at = excluded.updated_at`,
		key, value, time.Now().UnixMilli())
	if err != nil {
		return fmt.Errorf("write %s: %w", key, err)
	}
	return nil
}

func (c *Cache) Remove(key string) error {
	if _, err := c.db.Exec(`DELETE FROM local_kv WHERE key = ?`, key); err != nil {
		return fmt.Errorf("remove %s: %w", key, err)
	}
	return nil
}

// Pin records s as the active chat.
func (c *Cache) Pin(s chat.Session) error {
	data, err := json.Marshal(s)
	if err != nil {
		return fmt.Errorf("encode session: %w", err)
	}
	return c.Set(ActiveChatKey, data)
}

// Restore returns the pinned session, or nil when nothing usable is pinned.
// The result is only a hint and may be stale.
func (c *Cache) Restore() (*chat.Session, error) {
	data, found, err := c.Get(ActiveChatKey)
	if err != nil || !found {
		return nil, err
	}
	var s chat.Session
	if err := json.Unmarshal(data, &s); err != nil || s.ChatID == "" {
		c.logger.Warn("discarding unreadable pinned chat", zap.Error(err))
		return nil, nil
	}
	return &s, nil
}

// Clear unpins the active chat.
func (c *Cache) Clear() error {
	return c.Remove(ActiveChatKey)
}

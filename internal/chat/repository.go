package chat

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/matheus3301/friendzone/internal/logging"
	"github.com/matheus3301/friendzone/internal/rtstore"
	"go.uber.org/zap"
)

// Collection roots in the real-time store.
const (
	UsersRoot    = "users"
	ChatsRoot    = "chats"
	MessagesRoot = "messages"
)

func userPath(id string) string        { return rtstore.Join(UsersRoot, id) }
func sessionPath(chatID string) string { return rtstore.Join(ChatsRoot, chatID) }
func messagesPath(chatID string) string {
	return rtstore.Join(MessagesRoot, chatID)
}

// Repository reads and writes typed records. Lookups of missing records
// return nil with no error. Malformed records met while listing are logged
// and skipped.
type Repository struct {
	store  rtstore.Store
	logger *zap.Logger
}

func NewRepository(s rtstore.Store, logger *zap.Logger) *Repository {
	return &Repository{store: s, logger: logging.OrNop(logger)}
}

func (r *Repository) User(ctx context.Context, id string) (*User, error) {
	var u User
	found, err := r.get(ctx, userPath(id), &u)
	if err != nil || !found {
		return nil, err
	}
	if u.ID == "" {
		u.ID = id
	}
	return &u, nil
}

func (r *Repository) Users(ctx context.Context) ([]User, error) {
	children, err := r.store.Children(ctx, UsersRoot)
	if err != nil {
		return nil, fmt.Errorf("list users: %w", err)
	}
	out := make([]User, 0, len(children))
	for _, c := range children {
		var u User
		if err := json.Unmarshal(c.Value, &u); err != nil {
			r.logger.Warn("skipping malformed user record", zap.String("key", c.Key), zap.Error(err))
			continue
		}
		if u.ID == "" {
			u.ID = c.Key
		}
		out = append(out, u)
	}
	return out, nil
}

func (r *Repository) PutUser(ctx context.Context, u User) error {
	return r.put(ctx, userPath(u.ID), u)
}

func (r *Repository) Session(ctx context.Context, chatID string) (*Session, error) {
	var s Session
	found, err := r.get(ctx, sessionPath(chatID), &s)
	if err != nil || !found {
		return nil, err
	}
	if s.ChatID == "" {
		s.ChatID = chatID
	}
	return &s, nil
}

func (r *Repository) Sessions(ctx context.Context) ([]Session, error) {
	children, err := r.store.Children(ctx, ChatsRoot)
	if err != nil {
		return nil, fmt.Errorf("list sessions: %w", err)
	}
	out := make([]Session, 0, len(children))
	for _, c := range children {
		var s Session
		if err := json.Unmarshal(c.Value, &s); err != nil {
			r.logger.Warn("skipping malformed session record", zap.String("chat_id", c.Key), zap.Error(err))
			continue
		}
		if s.ChatID == "" {
			s.ChatID = c.Key
		}
		out = append(out, s)
	}
	return out, nil
}

// PutSession replaces chats/<chatId> wholesale.
func (r *Repository) PutSession(ctx context.Context, s Session) error {
	return r.put(ctx, sessionPath(s.ChatID), s)
}

// AppendMessage pushes m onto its chat log and returns the assigned key.
func (r *Repository) AppendMessage(ctx context.Context, m Message) (string, error) {
	data, err := json.Marshal(m)
	if err != nil {
		return "", fmt.Errorf("encode message: %w", err)
	}
	key, err := r.store.Push(ctx, messagesPath(m.ChatID), data)
	if err != nil {
		return "", fmt.Errorf("append message: %w", err)
	}
	return key, nil
}

// Messages returns the chat log in push-key order. An empty log is an empty
// slice.
func (r *Repository) Messages(ctx context.Context, chatID string) ([]Message, error) {
	children, err := r.store.Children(ctx, messagesPath(chatID))
	if err != nil {
		return nil, fmt.Errorf("list messages: %w", err)
	}
	out := make([]Message, 0, len(children))
	for _, c := range children {
		var m Message
		if err := json.Unmarshal(c.Value, &m); err != nil {
			r.logger.Warn("skipping malformed message", zap.String("chat_id", chatID), zap.String("key", c.Key), zap.Error(err))
			continue
		}
		m.Key = c.Key
		out = append(out, m)
	}
	return out, nil
}

// WatchSessions fires on sessions added or changed.
func (r *Repository) WatchSessions(ctx context.Context, fn func(rtstore.Event)) (func(), error) {
	return r.store.Subscribe(ctx, ChatsRoot, fn)
}

// WatchMessages fires on messages added to chatID.
func (r *Repository) WatchMessages(ctx context.Context, chatID string, fn func(rtstore.Event)) (func(), error) {
	return r.store.Subscribe(ctx, messagesPath(chatID), func(evt rtstore.Event) {
		if evt.Kind == rtstore.ChildAdded {
			fn(evt)
		}
	})
}

func (r *Repository) get(ctx context.Context, path string, v any) (bool, error) {
	data, found, err := r.store.Get(ctx, path)
	if err != nil {
		return false, fmt.Errorf("read %s: %w", path, err)
	}
	if !found {
		return false, nil
	}
	if err := json.Unmarshal(data, v); err != nil {
		return false, fmt.Errorf("decode %s: %w", path, err)
	}
	return true, nil
}

func (r *Repository) put(ctx context.Context, path string, v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("encode %s: %w", path, err)
	}
	if err := r.store.Set(ctx, path, data); err != nil {
		return fmt.Errorf("write %s: %w", path, err)
	}
	return nil
}

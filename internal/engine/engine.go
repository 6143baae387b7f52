// Package engine exposes chat sessions to a front end: opening or resuming
// a chat with a friend, sending and reading messages, and the chat list.
package engine

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"strings"
	"sync"

	"github.com/matheus3301/friendzone/internal/bus"
	"github.com/matheus3301/friendzone/internal/channel"
	"github.com/matheus3301/friendzone/internal/chat"
	"github.com/matheus3301/friendzone/internal/chatlist"
	"github.com/matheus3301/friendzone/internal/identity"
	"github.com/matheus3301/friendzone/internal/logging"
	"github.com/matheus3301/friendzone/internal/metrics"
	"go.uber.org/zap"
)

var (
	ErrUnknownUser  = errors.New("user does not exist")
	ErrNoActiveChat = errors.New("no active chat")
	ErrChatClosed   = errors.New("chat is no longer active")
)

// SessionCache is the device-local pin of the active chat.
type SessionCache interface {
	Pin(chat.Session) error
	Restore() (*chat.Session, error)
	Clear() error
}

// Engine serves one signed-in user.
type Engine struct {
	me      chat.User
	repo    *chat.Repository
	channel *channel.Channel
	list    *chatlist.Synchronizer
	cache   SessionCache
	bus     *bus.Bus
	logger  *zap.Logger

	mu     sync.Mutex
	active *Conversation
}

// Deps groups the engine's collaborators.
type Deps struct {
	Repo    *chat.Repository
	Channel *channel.Channel
	List    *chatlist.Synchronizer
	Cache   SessionCache
	Bus     *bus.Bus
	Logger  *zap.Logger
}

func New(me chat.User, d Deps) *Engine {
	return &Engine{
		me:      me,
		repo:    d.Repo,
		channel: d.Channel,
		list:    d.List,
		cache:   d.Cache,
		bus:     d.Bus,
		logger:  logging.OrNop(d.Logger).With(zap.String("user_id", me.ID)),
	}
}

// Me returns the signed-in user.
func (e *Engine) Me() chat.User { return e.me }

// StartOrResumeChat opens the chat with friendID, creating it only when
// neither ordering of the chat id exists. Both candidates are probed before
// anything is written; a failed probe creates nothing.
func (e *Engine) StartOrResumeChat(ctx context.Context, friendID string) (*Conversation, error) {
	cands, err := identity.Resolve(e.me.ID, friendID)
	if err != nil {
		return nil, err
	}
	primary, err := e.repo.Session(ctx, cands.Primary)
	if err != nil {
		return nil, fmt.Errorf("probe %s: %w", cands.Primary, err)
	}
	reversed, err := e.repo.Session(ctx, cands.Reversed)
	if err != nil {
		return nil, fmt.Errorf("probe %s: %w", cands.Reversed, err)
	}

	var sess chat.Session
	outcome := "resumed"
	switch identity.Pick(cands, primary != nil, reversed != nil) {
	case cands.Primary:
		sess = *primary
	case cands.Reversed:
		sess = *reversed
	default:
		sess, err = e.create(ctx, cands.Primary, friendID)
		if err != nil {
			return nil, err
		}
		outcome = "created"
		sess = e.settle(ctx, cands, sess)
	}
	metrics.Sessions.WithLabelValues(outcome).Inc()
	e.logger.Info("chat opened", zap.String("chat_id", sess.ChatID), zap.String("outcome", outcome))

	return e.open(sess), nil
}

func (e *Engine) create(ctx context.Context, chatID, friendID string) (chat.Session, error) {
	peer, err := e.repo.User(ctx, friendID)
	if err != nil {
		return chat.Session{}, fmt.Errorf("load %s: %w", friendID, err)
	}
	if peer == nil {
		return chat.Session{}, fmt.Errorf("%w: %s", ErrUnknownUser, friendID)
	}
	self, err := e.repo.User(ctx, e.me.ID)
	if err != nil {
		return chat.Session{}, fmt.Errorf("load %s: %w", e.me.ID, err)
	}
	if self == nil {
		self = &e.me
	}
	sess := chat.NewSession(chatID, *self, *peer)
	if err := e.repo.PutSession(ctx, sess); err != nil {
		return chat.Session{}, fmt.Errorf("create chat: %w", err)
	}
	return sess, nil
}

// settle re-probes the reversed id after a create. If the peer created it
// concurrently, both sides switch to the id Pick chooses.
func (e *Engine) settle(ctx context.Context, cands identity.Candidates, created chat.Session) chat.Session {
	rival, err := e.repo.Session(ctx, cands.Reversed)
	if err != nil {
		e.logger.Warn("could not re-probe chat after create",
			zap.String("chat_id", cands.Reversed), zap.Error(err))
		return created
	}
	if rival == nil || identity.Pick(cands, true, true) != cands.Reversed {
		return created
	}
	e.logger.Info("peer created the chat concurrently",
		zap.String("created", created.ChatID), zap.String("kept", rival.ChatID))
	return *rival
}

// open pins sess and makes it the active conversation, closing the
// previous one.
func (e *Engine) open(sess chat.Session) *Conversation {
	if err := e.cache.Pin(sess); err != nil {
		e.logger.Warn("could not pin active chat", zap.Error(err))
	}
	conv := &Conversation{engine: e, session: sess}

	e.mu.Lock()
	prev := e.active
	e.active = conv
	e.mu.Unlock()

	if prev != nil {
		prev.shutdown()
	}
	e.bus.Emit(bus.KindChatOpened, sess.ChatID, "")
	return conv
}

// Active returns the open conversation, or nil.
func (e *Engine) Active() *Conversation {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.active
}

// Restore reopens the pinned chat after checking that it still exists and
// that the user still belongs to it. A stale pin is cleared.
func (e *Engine) Restore(ctx context.Context) (*Conversation, error) {
	if conv := e.Active(); conv != nil {
		return conv, nil
	}
	hint, err := e.cache.Restore()
	if err != nil {
		return nil, fmt.Errorf("read pinned chat: %w", err)
	}
	if hint == nil {
		return nil, ErrNoActiveChat
	}
	sess, err := e.repo.Session(ctx, hint.ChatID)
	if err != nil {
		return nil, fmt.Errorf("validate pinned chat: %w", err)
	}
	if sess == nil || !sess.Involves(e.me.ID) {
		e.logger.Info("dropping stale pinned chat", zap.String("chat_id", hint.ChatID))
		if err := e.cache.Clear(); err != nil {
			e.logger.Warn("could not clear pinned chat", zap.Error(err))
		}
		return nil, ErrNoActiveChat
	}
	return e.open(*sess), nil
}

// CachedChat returns the pinned chat without validating it.
func (e *Engine) CachedChat() (*chat.Session, error) {
	return e.cache.Restore()
}

// CloseChat closes the active conversation and unpins it.
func (e *Engine) CloseChat() error {
	e.mu.Lock()
	prev := e.active
	e.active = nil
	e.mu.Unlock()

	if prev != nil {
		prev.shutdown()
	}
	return e.unpin(prev)
}

func (e *Engine) unpin(closed *Conversation) error {
	if closed != nil {
		e.bus.Emit(bus.KindChatClosed, closed.session.ChatID, "")
	}
	if err := e.cache.Clear(); err != nil {
		return fmt.Errorf("unpin chat: %w", err)
	}
	return nil
}

// Logout tears down per-user state.
func (e *Engine) Logout() error {
	return e.CloseChat()
}

// SendMessage sends out to chatID as senderID.
func (e *Engine) SendMessage(ctx context.Context, chatID, senderID string, out chat.Outgoing) ([]chat.Message, error) {
	return e.channel.Send(ctx, chatID, senderID, out)
}

// FetchMessages returns the chat log in send order.
func (e *Engine) FetchMessages(ctx context.Context, chatID string) ([]chat.Message, error) {
	return e.channel.FetchAll(ctx, chatID)
}

// ListChats returns userID's chats, newest activity first.
func (e *Engine) ListChats(ctx context.Context, userID string) ([]chat.Session, error) {
	return e.list.Refresh(ctx, userID)
}

// WatchChats delivers the signed-in user's chat list now and on change.
func (e *Engine) WatchChats(ctx context.Context, fn func([]chat.Session)) (func(), error) {
	return e.list.Subscribe(ctx, e.me.ID, fn)
}

// WatchMessages delivers chatID's log now and on every new message.
func (e *Engine) WatchMessages(ctx context.Context, chatID string, fn func([]chat.Message)) (func(), error) {
	return e.channel.Subscribe(ctx, chatID, fn)
}

// SearchUsers lists other users whose username contains query, ignoring
// case. An empty query matches everyone.
func (e *Engine) SearchUsers(ctx context.Context, query string) ([]chat.User, error) {
	users, err := e.repo.Users(ctx)
	if err != nil {
		return nil, fmt.Errorf("search users: %w", err)
	}
	q := strings.ToLower(query)
	out := make([]chat.User, 0, len(users))
	for _, u := range users {
		if u.ID == e.me.ID {
			continue
		}
		if strings.Contains(strings.ToLower(u.Username), q) {
			out = append(out, u)
		}
	}
	slices.SortFunc(out, func(a, b chat.User) int {
		return strings.Compare(strings.ToLower(a.Username), strings.ToLower(b.Username))
	})
	return out, nil
}

// AnnounceProfile publishes the signed-in user's directory record so that
// peers can find and open chats with them.
func (e *Engine) AnnounceProfile(ctx context.Context) error {
	if err := identity.ValidateID(e.me.ID); err != nil {
		return err
	}
	if err := e.repo.PutUser(ctx, e.me); err != nil {
		return fmt.Errorf("announce profile: %w", err)
	}
	return nil
}

package engine

import (
	"context"
	"sync"

	"github.com/matheus3301/friendzone/internal/chat"
)

// Conversation is one opened chat. It stops working once closed or once
// another chat is opened; watchers registered through it stop receiving
// updates at that point.
type Conversation struct {
	engine  *Engine
	session chat.Session

	mu      sync.Mutex
	closed  bool
	cancels []func()
}

// Session returns the session as it was when the conversation opened.
func (c *Conversation) Session() chat.Session { return c.session }

func (c *Conversation) ChatID() string { return c.session.ChatID }

// Active reports whether the conversation is still the open one.
func (c *Conversation) Active() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return !c.closed
}

// Send sends out as the signed-in user.
func (c *Conversation) Send(ctx context.Context, out chat.Outgoing) ([]chat.Message, error) {
	if !c.Active() {
		return nil, ErrChatClosed
	}
	return c.engine.SendMessage(ctx, c.session.ChatID, c.engine.me.ID, out)
}

// Messages returns the chat log.
func (c *Conversation) Messages(ctx context.Context) ([]chat.Message, error) {
	if !c.Active() {
		return nil, ErrChatClosed
	}
	return c.engine.FetchMessages(ctx, c.session.ChatID)
}

// Watch delivers the log now and on every new message until the
// conversation ends or the returned cancel is called.
func (c *Conversation) Watch(ctx context.Context, fn func([]chat.Message)) (func(), error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return nil, ErrChatClosed
	}
	cancel, err := c.engine.channel.Subscribe(ctx, c.session.ChatID, func(msgs []chat.Message) {
		if c.Active() {
			fn(msgs)
		}
	})
	if err != nil {
		return nil, err
	}
	var once sync.Once
	stop := func() { once.Do(cancel) }
	c.cancels = append(c.cancels, stop)
	return stop, nil
}

// Close ends the conversation. If it is the engine's active chat, the chat
// is also unpinned.
func (c *Conversation) Close() error {
	e := c.engine
	e.mu.Lock()
	wasActive := e.active == c
	if wasActive {
		e.active = nil
	}
	e.mu.Unlock()

	c.shutdown()
	if !wasActive {
		return nil
	}
	return e.unpin(c)
}

func (c *Conversation) shutdown() {
	c.mu.Lock()
	c.closed = true
	cancels := c.cancels
	c.cancels = nil
	c.mu.Unlock()

	for _, cancel := range cancels {
		cancel()
	}
}

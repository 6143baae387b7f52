// Package channel sends messages into a chat log and keeps readers of that
// log up to date.
package channel

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/matheus3301/friendzone/internal/blob"
	"github.com/matheus3301/friendzone/internal/bus"
	"github.com/matheus3301/friendzone/internal/chat"
	"github.com/matheus3301/friendzone/internal/logging"
	"github.com/matheus3301/friendzone/internal/metrics"
	"github.com/matheus3301/friendzone/internal/refresh"
	"github.com/matheus3301/friendzone/internal/rtstore"
	"go.uber.org/zap"
)

var (
	ErrUnknownChat    = errors.New("chat does not exist")
	ErrNotParticipant = errors.New("sender is not a participant of this chat")
)

// Stage names the step of a send that failed.
type Stage string

const (
	StageUpload  Stage = "upload"
	StageAppend  Stage = "append"
	StageSummary Stage = "summary"
)

// SendError reports which step of a send failed. Only a summary failure
// leaves a message record behind.
type SendError struct {
	Stage  Stage
	ChatID string
	Err    error
}

func (e *SendError) Error() string {
	return fmt.Sprintf("send to %s: %s: %v", e.ChatID, e.Stage, e.Err)
}

func (e *SendError) Unwrap() error { return e.Err }

// MessageWritten reports whether the message record exists despite the error.
func (e *SendError) MessageWritten() bool { return e.Stage == StageSummary }

// Channel is the message path for all chats.
type Channel struct {
	repo   *chat.Repository
	blobs  blob.Store
	bus    *bus.Bus
	logger *zap.Logger
	now    func() time.Time
}

// New creates a channel. blobs may be nil when attachments are unsupported.
func New(repo *chat.Repository, blobs blob.Store, b *bus.Bus, logger *zap.Logger) *Channel {
	return &Channel{
		repo:   repo,
		blobs:  blobs,
		bus:    b,
		logger: logging.OrNop(logger),
		now:    time.Now,
	}
}

// Send uploads the attachment if any, appends the message, overwrites the
// session summary and returns the refetched log. Nothing is written when
// the upload fails. A refetch failure after both writes succeeded is
// logged and yields a nil log with a nil error.
func (c *Channel) Send(ctx context.Context, chatID, senderID string, out chat.Outgoing) ([]chat.Message, error) {
	if err := out.Validate(); err != nil {
		return nil, err
	}
	sess, err := c.repo.Session(ctx, chatID)
	if err != nil {
		return nil, fmt.Errorf("load session: %w", err)
	}
	if sess == nil {
		return nil, fmt.Errorf("%w: %s", ErrUnknownChat, chatID)
	}
	if !sess.Involves(senderID) {
		return nil, fmt.Errorf("%w: %s in %s", ErrNotParticipant, senderID, chatID)
	}

	start := c.now()
	msg := chat.Message{ChatID: chatID, SenderID: senderID, Text: out.Text}

	if out.Attachment != nil {
		url, err := c.upload(ctx, chatID, out.Attachment)
		if err != nil {
			return nil, c.fail(StageUpload, chatID, err)
		}
		msg.File = &url
	}

	key, err := c.repo.AppendMessage(ctx, msg)
	if err != nil {
		return nil, c.fail(StageAppend, chatID, err)
	}

	summary := chat.NewSummary(out.Text, out.Attachment != nil, c.now())
	sess.LastMessage = &summary
	if err := c.repo.PutSession(ctx, *sess); err != nil {
		return nil, c.fail(StageSummary, chatID, err)
	}

	metrics.MessagesSent.Inc()
	c.bus.Emit(bus.KindMessageSent, chatID, key)
	c.logger.Debug("message sent",
		zap.String("chat_id", chatID),
		zap.String("key", key),
		zap.Stringer("kind", out.Kind()))

	msgs, err := c.FetchAll(ctx, chatID)
	metrics.SendLatency.Observe(time.Since(start).Seconds())
	if err != nil {
		c.logger.Warn("refetch after send failed", zap.String("chat_id", chatID), zap.Error(err))
		return nil, nil
	}
	return msgs, nil
}

func (c *Channel) upload(ctx context.Context, chatID string, att *chat.Attachment) (string, error) {
	if c.blobs == nil {
		return "", errors.New("no blob store configured")
	}
	name := blob.ObjectName(chatID, att.Name)
	if err := c.blobs.Upload(ctx, name, att.Body); err != nil {
		return "", err
	}
	return c.blobs.URL(ctx, name)
}

func (c *Channel) fail(stage Stage, chatID string, err error) error {
	metrics.SendFailures.WithLabelValues(string(stage)).Inc()
	c.bus.Emit(bus.KindMessageSendFailed, chatID, string(stage))
	c.logger.Error("send failed",
		zap.String("chat_id", chatID),
		zap.String("stage", string(stage)),
		zap.Error(err))
	return &SendError{Stage: stage, ChatID: chatID, Err: err}
}

// FetchAll returns every message of chatID in push order.
func (c *Channel) FetchAll(ctx context.Context, chatID string) ([]chat.Message, error) {
	return c.repo.Messages(ctx, chatID)
}

// Subscribe delivers the full log to fn now and after every new message.
// Messages arriving during a refetch are folded into one more refetch.
// fn runs on a single goroutine and must not call the returned cancel.
func (c *Channel) Subscribe(ctx context.Context, chatID string, fn func([]chat.Message)) (func(), error) {
	loop := refresh.Start(ctx, func(ctx context.Context) {
		msgs, err := c.FetchAll(ctx, chatID)
		if err != nil {
			if ctx.Err() == nil {
				c.logger.Warn("message refresh failed", zap.String("chat_id", chatID), zap.Error(err))
			}
			return
		}
		metrics.Refreshes.WithLabelValues("messages").Inc()
		c.bus.Emit(bus.KindMessagesRefreshed, chatID, "")
		fn(msgs)
	})

	stopWatch, err := c.repo.WatchMessages(ctx, chatID, func(rtstore.Event) { loop.Trigger() })
	if err != nil {
		loop.Stop()
		return nil, fmt.Errorf("watch messages: %w", err)
	}
	loop.Trigger()

	return func() {
		stopWatch()
		loop.Stop()
	}, nil
}

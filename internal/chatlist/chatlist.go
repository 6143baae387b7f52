// Package chatlist keeps a user's list of chats, newest activity first.
package chatlist

import (
	"cmp"
	"context"
	"fmt"
	"slices"

	"github.com/matheus3301/friendzone/internal/bus"
	"github.com/matheus3301/friendzone/internal/chat"
	"github.com/matheus3301/friendzone/internal/identity"
	"github.com/matheus3301/friendzone/internal/logging"
	"github.com/matheus3301/friendzone/internal/metrics"
	"github.com/matheus3301/friendzone/internal/refresh"
	"github.com/matheus3301/friendzone/internal/rtstore"
	"go.uber.org/zap"
)

// Synchronizer derives per-user chat lists from the shared session records.
type Synchronizer struct {
	repo   *chat.Repository
	bus    *bus.Bus
	logger *zap.Logger
}

func New(repo *chat.Repository, b *bus.Bus, logger *zap.Logger) *Synchronizer {
	return &Synchronizer{repo: repo, bus: b, logger: logging.OrNop(logger)}
}

// Refresh returns the sessions userID participates in.
func (s *Synchronizer) Refresh(ctx context.Context, userID string) ([]chat.Session, error) {
	all, err := s.repo.Sessions(ctx)
	if err != nil {
		return nil, fmt.Errorf("refresh chat list: %w", err)
	}
	out := make([]chat.Session, 0, len(all))
	seen := make(map[[2]string]int, len(all))
	for _, sess := range all {
		if !sess.Involves(userID) {
			continue
		}
		// Both orderings exist only after a concurrent create; keep the one
		// identity.Pick resumes.
		key := pair(sess.ChatID)
		if i, ok := seen[key]; ok {
			if sess.ChatID < out[i].ChatID {
				out[i] = sess
			}
			continue
		}
		seen[key] = len(out)
		out = append(out, sess)
	}
	Sort(out)
	return out, nil
}

func pair(chatID string) [2]string {
	a, b, _ := identity.Split(chatID)
	return [2]string{min(a, b), max(a, b)}
}

// Sort orders sessions by last message time, newest first. Sessions with
// no message yet come last; ties fall back to chat id.
func Sort(sessions []chat.Session) {
	slices.SortStableFunc(sessions, func(a, b chat.Session) int {
		at, bt := sentAt(a), sentAt(b)
		if at != bt {
			return cmp.Compare(bt, at)
		}
		return cmp.Compare(a.ChatID, b.ChatID)
	})
}

func sentAt(s chat.Session) int64 {
	if s.LastMessage == nil {
		return -1
	}
	return s.LastMessage.SentAt
}

// Subscribe delivers userID's list now and after every session change.
// A failed refresh is logged and that firing is skipped. fn runs on a
// single goroutine and must not call the returned cancel.
func (s *Synchronizer) Subscribe(ctx context.Context, userID string, fn func([]chat.Session)) (func(), error) {
	loop := refresh.Start(ctx, func(ctx context.Context) {
		list, err := s.Refresh(ctx, userID)
		if err != nil {
			if ctx.Err() == nil {
				s.logger.Warn("chat list refresh failed", zap.String("user_id", userID), zap.Error(err))
			}
			return
		}
		metrics.Refreshes.WithLabelValues("chatlist").Inc()
		s.bus.Emit(bus.KindChatListUpdated, "", userID)
		fn(list)
	})

	stopWatch, err := s.repo.WatchSessions(ctx, func(rtstore.Event) { loop.Trigger() })
	if err != nil {
		loop.Stop()
		return nil, fmt.Errorf("watch sessions: %w", err)
	}
	loop.Trigger()

	return func() {
		stopWatch()
		loop.Stop()
	}, nil
}

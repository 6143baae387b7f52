package api

import (
	"context"

	"github.com/matheus3301/friendzone/internal/chat"
	"github.com/matheus3301/friendzone/internal/engine"
	"google.golang.org/grpc/codes"
	grpcstatus "google.golang.org/grpc/status"
)

// ChatService opens, lists and closes chats.
type ChatService struct {
	engine *engine.Engine
}

func NewChatService(e *engine.Engine) *ChatService {
	return &ChatService{engine: e}
}

func (s *ChatService) StartOrResumeChat(ctx context.Context, req *StartOrResumeChatRequest) (*ChatResponse, error) {
	if req.FriendID == "" {
		return nil, grpcstatus.Error(codes.InvalidArgument, "friendId is required")
	}
	conv, err := s.engine.StartOrResumeChat(ctx, req.FriendID)
	if err != nil {
		return nil, toStatus(err)
	}
	return &ChatResponse{Chat: conv.Session()}, nil
}

func (s *ChatService) ListChats(ctx context.Context, req *ListChatsRequest) (*ListChatsResponse, error) {
	userID := req.UserID
	if userID == "" {
		userID = s.engine.Me().ID
	}
	chats, err := s.engine.ListChats(ctx, userID)
	if err != nil {
		return nil, toStatus(err)
	}
	return &ListChatsResponse{Chats: chats}, nil
}

func (s *ChatService) RestoreChat(ctx context.Context, req *RestoreChatRequest) (*ChatResponse, error) {
	if req.CachedOnly {
		hint, err := s.engine.CachedChat()
		if err != nil {
			return nil, toStatus(err)
		}
		if hint == nil {
			return nil, toStatus(engine.ErrNoActiveChat)
		}
		return &ChatResponse{Chat: *hint}, nil
	}
	conv, err := s.engine.Restore(ctx)
	if err != nil {
		return nil, toStatus(err)
	}
	return &ChatResponse{Chat: conv.Session()}, nil
}

func (s *ChatService) CloseChat(_ context.Context, _ *CloseChatRequest) (*CloseChatResponse, error) {
	if err := s.engine.CloseChat(); err != nil {
		return nil, toStatus(err)
	}
	return &CloseChatResponse{}, nil
}

func (s *ChatService) WatchChats(_ *WatchChatsRequest, stream Stream[ChatListUpdate]) error {
	ctx := stream.Context()
	updates := newLatest[[]chat.Session]()
	cancel, err := s.engine.WatchChats(ctx, updates.put)
	if err != nil {
		return toStatus(err)
	}
	defer cancel()

	for {
		select {
		case <-ctx.Done():
			return nil
		case chats := <-updates.ch:
			if err := stream.Send(&ChatListUpdate{Chats: chats}); err != nil {
				return err
			}
		}
	}
}

package api

import (
	"bytes"
	"context"

	"github.com/matheus3301/friendzone/internal/chat"
	"github.com/matheus3301/friendzone/internal/engine"
	"google.golang.org/grpc/codes"
	grpcstatus "google.golang.org/grpc/status"
)

// MessageService sends and reads chat logs.
type MessageService struct {
	engine *engine.Engine
}

func NewMessageService(e *engine.Engine) *MessageService {
	return &MessageService{engine: e}
}

// chatID falls back to the active conversation.
func (s *MessageService) chatID(requested string) (string, error) {
	if requested != "" {
		return requested, nil
	}
	if conv := s.engine.Active(); conv != nil {
		return conv.ChatID(), nil
	}
	return "", grpcstatus.Error(codes.FailedPrecondition, "no chatId given and no chat is open")
}

func (s *MessageService) SendMessage(ctx context.Context, req *SendMessageRequest) (*MessagesResponse, error) {
	chatID, err := s.chatID(req.ChatID)
	if err != nil {
		return nil, err
	}
	sender := req.SenderID
	if sender == "" {
		sender = s.engine.Me().ID
	}
	out := chat.Outgoing{Text: req.Text}
	if req.Attachment != nil {
		out.Attachment = &chat.Attachment{Name: req.Attachment.Name, Body: bytes.NewReader(req.Attachment.Data)}
	}

	msgs, err := s.engine.SendMessage(ctx, chatID, sender, out)
	if err != nil {
		return nil, toStatus(err)
	}
	return &MessagesResponse{ChatID: chatID, Messages: toMessages(msgs)}, nil
}

func (s *MessageService) FetchMessages(ctx context.Context, req *FetchMessagesRequest) (*MessagesResponse, error) {
	chatID, err := s.chatID(req.ChatID)
	if err != nil {
		return nil, err
	}
	msgs, err := s.engine.FetchMessages(ctx, chatID)
	if err != nil {
		return nil, toStatus(err)
	}
	return &MessagesResponse{ChatID: chatID, Messages: toMessages(msgs)}, nil
}

func (s *MessageService) WatchMessages(req *WatchMessagesRequest, stream Stream[MessagesResponse]) error {
	ctx := stream.Context()
	chatID, err := s.chatID(req.ChatID)
	if err != nil {
		return err
	}
	updates := newLatest[[]chat.Message]()
	cancel, err := s.engine.WatchMessages(ctx, chatID, updates.put)
	if err != nil {
		return toStatus(err)
	}
	defer cancel()

	for {
		select {
		case <-ctx.Done():
			return nil
		case msgs := <-updates.ch:
			if err := stream.Send(&MessagesResponse{ChatID: chatID, Messages: toMessages(msgs)}); err != nil {
				return err
			}
		}
	}
}

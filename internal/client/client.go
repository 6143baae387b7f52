// Package client dials a profile daemon's control socket.
package client

import (
	"context"
	"fmt"

	"github.com/matheus3301/friendzone/internal/api"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
)

// Client wraps the gRPC connection to the daemon.
type Client struct {
	conn *grpc.ClientConn
}

// New dials the daemon's Unix domain socket.
func New(socketPath string) (*Client, error) {
	conn, err := grpc.NewClient(
		"unix://"+socketPath,
		grpc.WithTransportCredentials(insecure.NewCredentials()),
		grpc.WithDefaultCallOptions(api.CallOption()),
	)
	if err != nil {
		return nil, fmt.Errorf("dial daemon: %w", err)
	}
	return &Client{conn: conn}, nil
}

// Close closes the gRPC connection.
func (c *Client) Close() error {
	return c.conn.Close()
}

func invoke[Resp any](ctx context.Context, c *Client, service, method string, req any) (*Resp, error) {
	out := new(Resp)
	if err := c.conn.Invoke(ctx, api.FullMethod(service, method), req, out); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *Client) GetStatus(ctx context.Context) (*api.GetStatusResponse, error) {
	return invoke[api.GetStatusResponse](ctx, c, api.SessionServiceName, "GetStatus", &api.GetStatusRequest{})
}

func (c *Client) Logout(ctx context.Context) (*api.LogoutResponse, error) {
	return invoke[api.LogoutResponse](ctx, c, api.SessionServiceName, "Logout", &api.LogoutRequest{})
}

func (c *Client) StartOrResumeChat(ctx context.Context, friendID string) (*api.ChatResponse, error) {
	return invoke[api.ChatResponse](ctx, c, api.ChatServiceName, "StartOrResumeChat", &api.StartOrResumeChatRequest{FriendID: friendID})
}

func (c *Client) ListChats(ctx context.Context, userID string) (*api.ListChatsResponse, error) {
	return invoke[api.ListChatsResponse](ctx, c, api.ChatServiceName, "ListChats", &api.ListChatsRequest{UserID: userID})
}

func (c *Client) RestoreChat(ctx context.Context, cachedOnly bool) (*api.ChatResponse, error) {
	return invoke[api.ChatResponse](ctx, c, api.ChatServiceName, "RestoreChat", &api.RestoreChatRequest{CachedOnly: cachedOnly})
}

func (c *Client) CloseChat(ctx context.Context) error {
	_, err := invoke[api.CloseChatResponse](ctx, c, api.ChatServiceName, "CloseChat", &api.CloseChatRequest{})
	return err
}

func (c *Client) SendMessage(ctx context.Context, req *api.SendMessageRequest) (*api.MessagesResponse, error) {
	return invoke[api.MessagesResponse](ctx, c, api.MessageServiceName, "SendMessage", req)
}

func (c *Client) FetchMessages(ctx context.Context, chatID string) (*api.MessagesResponse, error) {
	return invoke[api.MessagesResponse](ctx, c, api.MessageServiceName, "FetchMessages", &api.FetchMessagesRequest{ChatID: chatID})
}

func (c *Client) SearchUsers(ctx context.Context, query string) (*api.SearchUsersResponse, error) {
	return invoke[api.SearchUsersResponse](ctx, c, api.UserServiceName, "SearchUsers", &api.SearchUsersRequest{Query: query})
}

// Stream receives server-streamed updates until the context ends.
type Stream[T any] struct {
	stream grpc.ClientStream
}

// Recv blocks for the next update.
func (s *Stream[T]) Recv() (*T, error) {
	out := new(T)
	if err := s.stream.RecvMsg(out); err != nil {
		return nil, err
	}
	return out, nil
}

func watch[T any](ctx context.Context, c *Client, desc *grpc.ServiceDesc, req any) (*Stream[T], error) {
	sd := &desc.Streams[0]
	cs, err := c.conn.NewStream(ctx, sd, api.FullMethod(desc.ServiceName, sd.StreamName))
	if err != nil {
		return nil, err
	}
	if err := cs.SendMsg(req); err != nil {
		return nil, err
	}
	if err := cs.CloseSend(); err != nil {
		return nil, err
	}
	return &Stream[T]{stream: cs}, nil
}

func (c *Client) WatchChats(ctx context.Context) (*Stream[api.ChatListUpdate], error) {
	return watch[api.ChatListUpdate](ctx, c, &api.ChatServiceDesc, &api.WatchChatsRequest{})
}

func (c *Client) WatchMessages(ctx context.Context, chatID string) (*Stream[api.MessagesResponse], error) {
	return watch[api.MessagesResponse](ctx, c, &api.MessageServiceDesc, &api.WatchMessagesRequest{ChatID: chatID})
}

package api

import (
	"context"

	"google.golang.org/grpc"
)

// Service names on the control socket.
const (
	SessionServiceName = "friendzone.v1.SessionService"
	ChatServiceName    = "friendzone.v1.ChatService"
	MessageServiceName = "friendzone.v1.MessageService"
	UserServiceName    = "friendzone.v1.UserService"
)

// Stream is the server side of a server-streaming call.
type Stream[T any] interface {
	Send(*T) error
	Context() context.Context
}

type SessionServer interface {
	GetStatus(context.Context, *GetStatusRequest) (*GetStatusResponse, error)
	Logout(context.Context, *LogoutRequest) (*LogoutResponse, error)
}

type ChatServer interface {
	StartOrResumeChat(context.Context, *StartOrResumeChatRequest) (*ChatResponse, error)
	ListChats(context.Context, *ListChatsRequest) (*ListChatsResponse, error)
	RestoreChat(context.Context, *RestoreChatRequest) (*ChatResponse, error)
	CloseChat(context.Context, *CloseChatRequest) (*CloseChatResponse, error)
	WatchChats(*WatchChatsRequest, Stream[ChatListUpdate]) error
}

type MessageServer interface {
	SendMessage(context.Context, *SendMessageRequest) (*MessagesResponse, error)
	FetchMessages(context.Context, *FetchMessagesRequest) (*MessagesResponse, error)
	WatchMessages(*WatchMessagesRequest, Stream[MessagesResponse]) error
}

type UserServer interface {
	SearchUsers(context.Context, *SearchUsersRequest) (*SearchUsersResponse, error)
}

// FullMethod returns the gRPC method path.
func FullMethod(service, method string) string {
	return "/" + service + "/" + method
}

func unary[S any, Req any, Resp any](service, method string, call func(S, context.Context, *Req) (*Resp, error)) grpc.MethodDesc {
	return grpc.MethodDesc{
		MethodName: method,
		Handler: func(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
			in := new(Req)
			if err := dec(in); err != nil {
				return nil, err
			}
			if interceptor == nil {
				return call(srv.(S), ctx, in)
			}
			info := &grpc.UnaryServerInfo{Server: srv, FullMethod: FullMethod(service, method)}
			handler := func(ctx context.Context, req any) (any, error) {
				return call(srv.(S), ctx, req.(*Req))
			}
			return interceptor(ctx, in, info, handler)
		},
	}
}

type serverStream[T any] struct {
	grpc.ServerStream
}

func (s serverStream[T]) Send(m *T) error { return s.SendMsg(m) }

func serverStreaming[S any, Req any, Resp any](method string, call func(S, *Req, Stream[Resp]) error) grpc.StreamDesc {
	return grpc.StreamDesc{
		StreamName:    method,
		ServerStreams: true,
		Handler: func(srv any, stream grpc.ServerStream) error {
			in := new(Req)
			if err := stream.RecvMsg(in); err != nil {
				return err
			}
			return call(srv.(S), in, serverStream[Resp]{stream})
		},
	}
}

var SessionServiceDesc = grpc.ServiceDesc{
	ServiceName: SessionServiceName,
	HandlerType: (*SessionServer)(nil),
	Methods: []grpc.MethodDesc{
		unary(SessionServiceName, "GetStatus", SessionServer.GetStatus),
		unary(SessionServiceName, "Logout", SessionServer.Logout),
	},
}

var ChatServiceDesc = grpc.ServiceDesc{
	ServiceName: ChatServiceName,
	HandlerType: (*ChatServer)(nil),
	Methods: []grpc.MethodDesc{
		unary(ChatServiceName, "StartOrResumeChat", ChatServer.StartOrResumeChat),
		unary(ChatServiceName, "ListChats", ChatServer.ListChats),
		unary(ChatServiceName, "RestoreChat", ChatServer.RestoreChat),
		unary(ChatServiceName, "CloseChat", ChatServer.CloseChat),
	},
	Streams: []grpc.StreamDesc{
		serverStreaming("WatchChats", ChatServer.WatchChats),
	},
}

var MessageServiceDesc = grpc.ServiceDesc{
	ServiceName: MessageServiceName,
	HandlerType: (*MessageServer)(nil),
	Methods: []grpc.MethodDesc{
		unary(MessageServiceName, "SendMessage", MessageServer.SendMessage),
		unary(MessageServiceName, "FetchMessages", MessageServer.FetchMessages),
	},
	Streams: []grpc.StreamDesc{
		serverStreaming("WatchMessages", MessageServer.WatchMessages),
	},
}

var UserServiceDesc = grpc.ServiceDesc{
	ServiceName: UserServiceName,
	HandlerType: (*UserServer)(nil),
	Methods: []grpc.MethodDesc{
		unary(UserServiceName, "SearchUsers", UserServer.SearchUsers),
	},
}

// Register installs every service on s.
func Register(s grpc.ServiceRegistrar, sess SessionServer, chats ChatServer, msgs MessageServer, users UserServer) {
	s.RegisterService(&SessionServiceDesc, sess)
	s.RegisterService(&ChatServiceDesc, chats)
	s.RegisterService(&MessageServiceDesc, msgs)
	s.RegisterService(&UserServiceDesc, users)
}

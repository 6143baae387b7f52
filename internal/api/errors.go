package api

import (
	"context"
	"errors"

	"github.com/matheus3301/friendzone/internal/channel"
	"github.com/matheus3301/friendzone/internal/chat"
	"github.com/matheus3301/friendzone/internal/engine"
	"github.com/matheus3301/friendzone/internal/identity"
	"google.golang.org/grpc/codes"
	grpcstatus "google.golang.org/grpc/status"
)

// toStatus maps engine errors onto gRPC status codes.
func toStatus(err error) error {
	if err == nil {
		return nil
	}
	var se *channel.SendError
	switch {
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return grpcstatus.FromContextError(err).Err()
	case errors.Is(err, identity.ErrInvalidID),
		errors.Is(err, identity.ErrSelfChat),
		errors.Is(err, chat.ErrEmptyMessage):
		return grpcstatus.Error(codes.InvalidArgument, err.Error())
	case errors.Is(err, engine.ErrUnknownUser),
		errors.Is(err, engine.ErrNoActiveChat),
		errors.Is(err, channel.ErrUnknownChat):
		return grpcstatus.Error(codes.NotFound, err.Error())
	case errors.Is(err, channel.ErrNotParticipant),
		errors.Is(err, engine.ErrChatClosed):
		return grpcstatus.Error(codes.FailedPrecondition, err.Error())
	case errors.As(err, &se):
		return grpcstatus.Error(codes.Unavailable, err.Error())
	default:
		return grpcstatus.Error(codes.Internal, err.Error())
	}
}

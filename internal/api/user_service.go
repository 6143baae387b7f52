package api

import (
	"context"

	"github.com/matheus3301/friendzone/internal/engine"
)

// UserService finds people to chat with.
type UserService struct {
	engine *engine.Engine
}

func NewUserService(e *engine.Engine) *UserService {
	return &UserService{engine: e}
}

func (s *UserService) SearchUsers(ctx context.Context, req *SearchUsersRequest) (*SearchUsersResponse, error) {
	users, err := s.engine.SearchUsers(ctx, req.Query)
	if err != nil {
		return nil, toStatus(err)
	}
	return &SearchUsersResponse{Users: users}, nil
}

package api

import (
	"context"
	"time"

	"github.com/matheus3301/friendzone/internal/engine"
	"github.com/matheus3301/friendzone/internal/status"
)

// SessionService reports daemon health and handles logout.
type SessionService struct {
	profile   string
	backend   string
	startedAt time.Time
	machine   *status.Machine
	engine    *engine.Engine
}

func NewSessionService(profile, backend string, machine *status.Machine, e *engine.Engine) *SessionService {
	return &SessionService{
		profile:   profile,
		backend:   backend,
		startedAt: time.Now(),
		machine:   machine,
		engine:    e,
	}
}

func (s *SessionService) GetStatus(_ context.Context, _ *GetStatusRequest) (*GetStatusResponse, error) {
	me := s.engine.Me()
	resp := &GetStatusResponse{
		Profile:       s.profile,
		UserID:        me.ID,
		Username:      me.Username,
		Status:        string(s.machine.Current()),
		StatusMessage: s.machine.Reason(),
		Backend:       s.backend,
		UptimeMs:      time.Since(s.startedAt).Milliseconds(),
	}
	if conv := s.engine.Active(); conv != nil {
		resp.ActiveChatID = conv.ChatID()
	}
	return resp, nil
}

func (s *SessionService) Logout(_ context.Context, _ *LogoutRequest) (*LogoutResponse, error) {
	if err := s.engine.Logout(); err != nil {
		return nil, toStatus(err)
	}
	return &LogoutResponse{Success: true, Message: "logged out"}, nil
}

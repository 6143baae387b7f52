package daemon

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/matheus3301/friendzone/internal/api"
	"github.com/matheus3301/friendzone/internal/blob"
	"github.com/matheus3301/friendzone/internal/bus"
	"github.com/matheus3301/friendzone/internal/channel"
	"github.com/matheus3301/friendzone/internal/chat"
	"github.com/matheus3301/friendzone/internal/chatlist"
	"github.com/matheus3301/friendzone/internal/config"
	"github.com/matheus3301/friendzone/internal/engine"
	"github.com/matheus3301/friendzone/internal/identity"
	"github.com/matheus3301/friendzone/internal/localcache"
	"github.com/matheus3301/friendzone/internal/lock"
	"github.com/matheus3301/friendzone/internal/logging"
	"github.com/matheus3301/friendzone/internal/profile"
	"github.com/matheus3301/friendzone/internal/status"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// HealthInterval is how often the store is pinged once the daemon is up.
const HealthInterval = 5 * time.Second

// Params holds the resolved profile configuration passed to the fx module.
type Params struct {
	ProfileName string
	SocketPath  string // optional override for testing; empty = use default
	LogLevel    zapcore.Level
}

func (p Params) socketPath() string {
	if p.SocketPath != "" {
		return p.SocketPath
	}
	return profile.SocketPath(p.ProfileName)
}

// Module returns the fx module for the daemon, composing all providers and lifecycle hooks.
func Module(p Params) fx.Option {
	return fx.Module("daemon",
		fx.Supply(p),
		fx.Provide(
			provideConfig,
			provideProfile,
			provideLogger,
			provideBus,
			provideStateMachine,
			provideLock,
			provideBackend,
			provideMonitor,
			NewEventLog,
			provideRepository,
			provideBlobs,
			provideCache,
			provideChannel,
			provideChatList,
			provideEngine,
			provideSessionService,
			api.NewChatService,
			api.NewMessageService,
			api.NewUserService,
			provideServer,
			provideHTTPServer,
		),
		fx.Invoke(registerLifecycle),
	)
}

func provideConfig() (*config.Config, error) {
	return config.LoadOrDefault(profile.ConfigPath())
}

func provideProfile(p Params) (*config.Profile, error) {
	prof, err := config.LoadProfile(profile.ProfilePath(p.ProfileName))
	if err != nil {
		return nil, fmt.Errorf("load profile %q (run fzctl init first): %w", p.ProfileName, err)
	}
	if err := identity.ValidateID(prof.User.ID); err != nil {
		return nil, fmt.Errorf("profile %q user id: %w", p.ProfileName, err)
	}
	return prof, nil
}

func provideLogger(p Params) (*zap.Logger, error) {
	return logging.New(profile.LogPath(p.ProfileName), p.ProfileName, p.LogLevel)
}

func provideBus() *bus.Bus {
	return bus.New()
}

func provideStateMachine(b *bus.Bus) *status.Machine {
	return status.NewMachine(b)
}

func provideLock(p Params, logger *zap.Logger) (*lock.Lock, error) {
	if err := profile.EnsureDir(p.ProfileName); err != nil {
		return nil, err
	}
	logger.Info("acquiring profile lock", zap.String("profile", p.ProfileName))
	l, err := lock.Acquire(profile.Dir(p.ProfileName))
	if err != nil {
		return nil, err
	}
	logger.Info("profile lock acquired")
	return l, nil
}

func provideBackend(cfg *config.Config, logger *zap.Logger) (*Backend, error) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return OpenBackend(ctx, cfg, logger)
}

func provideMonitor(m *status.Machine, b *Backend, logger *zap.Logger) *status.Monitor {
	return status.NewMonitor(m, b, HealthInterval, logger)
}

func provideRepository(b *Backend, logger *zap.Logger) *chat.Repository {
	return chat.NewRepository(b.Store, logger)
}

func provideBlobs(cfg *config.Config, prof *config.Profile) (*blob.FileStore, error) {
	_, baseURL := prof.HTTPEndpoint(cfg)
	return blob.NewFileStore(cfg.Blob.Dir, baseURL)
}

func provideCache(p Params, logger *zap.Logger) (*localcache.Cache, error) {
	return localcache.Open(profile.LocalDBPath(p.ProfileName), logger)
}

func provideChannel(repo *chat.Repository, blobs *blob.FileStore, b *bus.Bus, logger *zap.Logger) *channel.Channel {
	return channel.New(repo, blobs, b, logger)
}

func provideChatList(repo *chat.Repository, b *bus.Bus, logger *zap.Logger) *chatlist.Synchronizer {
	return chatlist.New(repo, b, logger)
}

func provideEngine(prof *config.Profile, repo *chat.Repository, ch *channel.Channel, list *chatlist.Synchronizer, cache *localcache.Cache, b *bus.Bus, logger *zap.Logger) *engine.Engine {
	me := chat.User{
		ID:        prof.User.ID,
		Username:  prof.User.Username,
		Avatar:    prof.User.Avatar,
		Email:     prof.User.Email,
		AuthToken: prof.User.Token,
	}
	return engine.New(me, engine.Deps{
		Repo:    repo,
		Channel: ch,
		List:    list,
		Cache:   cache,
		Bus:     b,
		Logger:  logger,
	})
}

func provideSessionService(p Params, b *Backend, m *status.Machine, e *engine.Engine) *api.SessionService {
	return api.NewSessionService(p.ProfileName, b.Name, m, e)
}

// provideServer takes the lock so a second daemon fails before it can unlink
// the running daemon's socket.
func provideServer(
	p Params,
	_ *lock.Lock,
	cfg *config.Config,
	logger *zap.Logger,
	sessionSvc *api.SessionService,
	chatSvc *api.ChatService,
	messageSvc *api.MessageService,
	userSvc *api.UserService,
) (*Server, error) {
	return NewServer(p.socketPath(), cfg.GRPC.MaxMessageBytes, logger, sessionSvc, chatSvc, messageSvc, userSvc)
}

func provideHTTPServer(cfg *config.Config, prof *config.Profile, blobs *blob.FileStore, m *status.Machine, logger *zap.Logger) *HTTPServer {
	listen, _ := prof.HTTPEndpoint(cfg)
	return NewHTTPServer(listen, NewRouter(blobs, m), logger)
}

func registerLifecycle(
	lc fx.Lifecycle,
	srv *Server,
	httpSrv *HTTPServer,
	lk *lock.Lock,
	backend *Backend,
	machine *status.Machine,
	mon *status.Monitor,
	events *EventLog,
	cache *localcache.Cache,
	e *engine.Engine,
	logger *zap.Logger,
) {
	runCtx, cancel := context.WithCancel(context.Background())

	// shutdown tolerates parts that never started; a failed OnStart runs it
	// too, since fx only stops hooks that started successfully.
	shutdown := func(ctx context.Context) {
		srv.Stop(ctx)
		httpSrv.Stop(ctx)
		mon.Stop()
		events.Stop()
		cancel()
		backend.Close()
		if err := cache.Close(); err != nil {
			logger.Warn("error closing local cache", zap.Error(err))
		}
		if err := lk.Release(); err != nil {
			logger.Warn("error releasing lock", zap.Error(err))
		}
	}

	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			events.Start()
			if err := httpSrv.Start(); err != nil {
				shutdown(ctx)
				return err
			}
			if err := backend.Start(runCtx); err != nil {
				_ = machine.Transition(status.Error, err.Error())
				shutdown(ctx)
				return err
			}
			mon.Start(runCtx)

			if err := e.AnnounceProfile(ctx); err != nil {
				logger.Warn("could not publish profile", zap.Error(err))
			}
			conv, err := e.Restore(ctx)
			switch {
			case err == nil && conv != nil:
				logger.Info("restored active chat", zap.String("chat_id", conv.ChatID()))
			case err != nil && !errors.Is(err, engine.ErrNoActiveChat):
				logger.Warn("could not restore active chat", zap.Error(err))
			}

			// Start gRPC server in background.
			go func() {
				if err := srv.Start(); err != nil {
					logger.Error("gRPC server error", zap.Error(err))
				}
			}()
			return nil
		},
		OnStop: func(ctx context.Context) error {
			shutdown(ctx)
			logger.Info("daemon stopped")
			return nil
		},
	})
}

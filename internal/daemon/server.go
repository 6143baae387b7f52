package daemon

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/matheus3301/friendzone/internal/api"
	"github.com/matheus3301/friendzone/internal/blob"
	"github.com/matheus3301/friendzone/internal/metrics"
	"github.com/matheus3301/friendzone/internal/status"
	"go.uber.org/zap"
	"google.golang.org/grpc"
)

// Server manages the gRPC server lifecycle for a profile daemon.
type Server struct {
	grpcServer *grpc.Server
	listener   net.Listener
	socketPath string
	logger     *zap.Logger
}

// NewServer creates a gRPC server bound to the profile's Unix domain socket.
func NewServer(
	socketPath string,
	maxMessageBytes int,
	logger *zap.Logger,
	sessionSvc *api.SessionService,
	chatSvc *api.ChatService,
	messageSvc *api.MessageService,
	userSvc *api.UserService,
) (*Server, error) {
	// Clean stale socket if it exists.
	if _, err := os.Stat(socketPath); err == nil {
		_ = os.Remove(socketPath)
	}

	listener, err := net.Listen("unix", socketPath)
	if err != nil {
		return nil, fmt.Errorf("listen unix socket: %w", err)
	}
	if err := os.Chmod(socketPath, 0600); err != nil {
		_ = listener.Close()
		return nil, fmt.Errorf("chmod socket: %w", err)
	}

	var opts []grpc.ServerOption
	if maxMessageBytes > 0 {
		opts = append(opts, grpc.MaxRecvMsgSize(maxMessageBytes), grpc.MaxSendMsgSize(maxMessageBytes))
	}
	srv := grpc.NewServer(opts...)
	api.Register(srv, sessionSvc, chatSvc, messageSvc, userSvc)

	return &Server{
		grpcServer: srv,
		listener:   listener,
		socketPath: socketPath,
		logger:     logger,
	}, nil
}

// Start begins serving gRPC requests. Blocks until stopped.
func (s *Server) Start() error {
	s.logger.Info("gRPC server starting", zap.String("socket", s.socketPath))
	return s.grpcServer.Serve(s.listener)
}

// Stop performs a graceful shutdown and removes the socket file. Open watch
// streams are cut when ctx expires.
func (s *Server) Stop(ctx context.Context) {
	s.logger.Info("gRPC server stopping")
	done := make(chan struct{})
	go func() {
		s.grpcServer.GracefulStop()
		close(done)
	}()
	select {
	case <-done:
	case <-ctx.Done():
		s.grpcServer.Stop()
	}
	// Serve closes the listener on stop; close it here in case Serve never ran.
	_ = s.listener.Close()
	_ = os.Remove(s.socketPath)
}

// HTTPServer serves attachments, metrics and a health probe.
type HTTPServer struct {
	srv    *http.Server
	logger *zap.Logger
	addr   string
}

// NewRouter builds the HTTP routes.
func NewRouter(blobs *blob.FileStore, machine *status.Machine) http.Handler {
	r := chi.NewRouter()
	r.Mount("/blobs", blobs.Handler())
	r.Handle("/metrics", metrics.Handler())
	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		state := machine.Current()
		if state != status.Ready {
			w.WriteHeader(http.StatusServiceUnavailable)
		}
		_, _ = w.Write([]byte(state))
	})
	return r
}

// NewHTTPServer wraps handler in a server for addr.
func NewHTTPServer(addr string, handler http.Handler, logger *zap.Logger) *HTTPServer {
	return &HTTPServer{
		srv:    &http.Server{Addr: addr, Handler: handler, ReadHeaderTimeout: 5 * time.Second},
		logger: logger,
	}
}

// Start listens in the background. Listen errors are returned synchronously.
// An empty address disables the listener.
func (h *HTTPServer) Start() error {
	if h.srv.Addr == "" {
		h.logger.Info("http server disabled")
		return nil
	}
	ln, err := net.Listen("tcp", h.srv.Addr)
	if err != nil {
		return fmt.Errorf("listen http: %w", err)
	}
	h.addr = ln.Addr().String()
	h.logger.Info("http server starting", zap.String("addr", h.addr))
	go func() {
		if err := h.srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			h.logger.Error("http server error", zap.Error(err))
		}
	}()
	return nil
}

// Addr is the bound address once started.
func (h *HTTPServer) Addr() string { return h.addr }

func (h *HTTPServer) Stop(ctx context.Context) {
	_ = h.srv.Shutdown(ctx)
}

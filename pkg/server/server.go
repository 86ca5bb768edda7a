package server

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/gorilla/websocket"

	"github.com/vango-dev/ion/pkg/pipeline"
	"github.com/vango-dev/ion/pkg/protocol"
)

// UnaryFunc handles a unary call. args reads the encoded argument
// tuple; the return value is written to out, which stays empty for a
// void method. Returning a *protocol.ProtocolError sends it to the
// caller as is; any other error is reported as an internal error.
type UnaryFunc func(ctx context.Context, args *protocol.Reader, out *protocol.Writer) error

// StreamFunc handles a streaming call. args reads the setup message.
// Returning nil ends the stream with END; returning an error ends it
// with ERROR.
type StreamFunc func(ctx context.Context, args *protocol.Reader, stream *ServerStream) error

// Server serves unary, streaming and ticket exchange endpoints.
type Server struct {
	config   *ServerConfig
	router   chi.Router
	upgrader websocket.Upgrader
	pipeline *pipeline.Pipeline
	idem     *idempotencyCache

	mu      sync.RWMutex
	unary   map[string]UnaryFunc
	streams map[string]StreamFunc
	active  sync.WaitGroup

	// base is canceled by Shutdown to end hijacked stream connections.
	base     context.Context
	stopBase context.CancelFunc

	httpServer *http.Server
	logger     *slog.Logger
}

// New creates a new Server with the given configuration. Unset fields
// are filled from DefaultServerConfig.
func New(config *ServerConfig) *Server {
	if config == nil {
		config = DefaultServerConfig()
	} else {
		config = config.Clone()
	}
	config.applyDefaults()

	logger := slog.Default().With("component", "server")
	if err := config.ValidateConfig(); err != nil {
		logger.Error("config validation failed", "error", err)
	}

	base, stop := context.WithCancel(context.Background())
	s := &Server{
		config:   config,
		base:     base,
		stopBase: stop,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  config.ReadBufferSize,
			WriteBufferSize: config.WriteBufferSize,
			CheckOrigin:     config.CheckOrigin,
		},
		pipeline: pipeline.New(config.Interceptors...),
		idem:     newIdempotencyCache(config.IdempotencyTTL),
		unary:    make(map[string]UnaryFunc),
		streams:  make(map[string]StreamFunc),
		logger:   logger,
	}

	r := chi.NewRouter()
	r.Use(chimw.RequestID)
	r.Post(protocol.ExchangePath, s.handleExchange)
	r.Post("/ion/{interface}/{method}", s.handleUnary)
	r.Get("/ion/{interface}/{method}", s.handleStream)
	s.router = r

	return s
}

func methodKey(iface, method string) string {
	return iface + "/" + method
}

// HandleUnary registers a unary method.
func (s *Server) HandleUnary(iface, method string, fn UnaryFunc) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	key := methodKey(iface, method)
	if _, dup := s.unary[key]; dup {
		return fmt.Errorf("%w: %s", ErrDuplicateMethod, key)
	}
	s.unary[key] = fn
	return nil
}

// HandleStream registers a streaming method.
func (s *Server) HandleStream(iface, method string, fn StreamFunc) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	key := methodKey(iface, method)
	if _, dup := s.streams[key]; dup {
		return fmt.Errorf("%w: %s", ErrDuplicateMethod, key)
	}
	s.streams[key] = fn
	return nil
}

func (s *Server) lookupUnary(iface, method string) UnaryFunc {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.unary[methodKey(iface, method)]
}

func (s *Server) lookupStream(iface, method string) StreamFunc {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.streams[methodKey(iface, method)]
}

// Router returns the chi router so callers can mount extra routes, such
// as a metrics endpoint, next to the ion endpoints.
func (s *Server) Router() chi.Router {
	return s.router
}

// Handler returns the HTTP handler serving all endpoints.
func (s *Server) Handler() http.Handler {
	return s.router
}

// ServeHTTP implements http.Handler.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

// Run starts the server and blocks until an interrupt or a listen
// error.
func (s *Server) Run() error {
	if err := s.config.ValidateConfig(); err != nil {
		return err
	}

	s.httpServer = &http.Server{
		Addr:              s.config.Address,
		Handler:           s,
		ReadHeaderTimeout: s.config.ReadHeaderTimeout,
		ReadTimeout:       s.config.ReadTimeout,
		WriteTimeout:      s.config.WriteTimeout,
		IdleTimeout:       s.config.IdleTimeout,
	}

	shutdown := make(chan os.Signal, 1)
	signal.Notify(shutdown, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(shutdown)

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("server starting", "address", s.config.Address)
		errCh <- s.httpServer.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if err != http.ErrServerClosed {
			return err
		}
		return nil

	case <-shutdown:
		s.logger.Info("shutting down...")
		return s.Shutdown(context.Background())
	}
}

// Shutdown gracefully shuts down the server and waits for open streams.
func (s *Server) Shutdown(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, s.config.ShutdownTimeout)
	defer cancel()

	if s.httpServer != nil {
		if err := s.httpServer.Shutdown(ctx); err != nil {
			s.logger.Error("shutdown error", "error", err)
			return err
		}
	}

	s.stopBase()
	done := make(chan struct{})
	go func() {
		s.active.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-ctx.Done():
		s.logger.Warn("streams still open at shutdown", "error", ctx.Err())
	}

	s.logger.Info("server shutdown complete")
	return nil
}

// Config returns the server configuration.
func (s *Server) Config() *ServerConfig {
	return s.config
}

// Logger returns the server logger.
func (s *Server) Logger() *slog.Logger {
	return s.logger
}

// SetLogger sets the server logger.
func (s *Server) SetLogger(logger *slog.Logger) {
	s.logger = logger
}

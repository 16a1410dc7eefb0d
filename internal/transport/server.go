package transport

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/blockbattle/server/internal/config"
	"github.com/blockbattle/server/internal/relay"
)

// SessionHandler processes a connected client. Implementations run the
// protocol loop for a single connection.
type SessionHandler interface {
	HandleSession(ctx context.Context, conn relay.Conn) error
}

// Server listens for HTTP traffic, upgrades /ws requests to WebSocket
// connections, and dispatches each to a SessionHandler. It also serves the
// client asset bundle and a liveness endpoint.
type Server struct {
	cfg          config.ServerConfig
	transportCfg config.TransportConfig
	handler      SessionHandler
	logger       *zap.Logger
	upgrader     websocket.Upgrader

	ctx    context.Context
	cancel context.CancelFunc

	mu       sync.Mutex
	listener net.Listener
	httpSrv  *http.Server
	sockets  map[string]*Socket
	running  bool
	wg       sync.WaitGroup
}

// NewServer creates a transport server with the given configuration.
//
// Precondition: handler and logger must be non-nil.
// Postcondition: Returns a Server ready to be started with ListenAndServe.
func NewServer(cfg config.ServerConfig, transportCfg config.TransportConfig, handler SessionHandler, logger *zap.Logger) *Server {
	ctx, cancel := context.WithCancel(context.Background())
	return &Server{
		cfg:          cfg,
		transportCfg: transportCfg,
		handler:      handler,
		logger:       logger,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  4096,
			WriteBufferSize: 4096,
			// The client bundle is served from this same origin; games are
			// joinable by short code, so no origin allowlist is enforced.
			CheckOrigin: func(*http.Request) bool { return true },
		},
		ctx:     ctx,
		cancel:  cancel,
		sockets: make(map[string]*Socket),
	}
}

// ListenAndServe starts the listener and serves until Stop is called.
// This method blocks and returns nil on graceful shutdown.
//
// Precondition: The server must not already be running.
func (s *Server) ListenAndServe() error {
	mux := http.NewServeMux()
	mux.HandleFunc("/ws", s.handleUpgrade)
	mux.HandleFunc("/health", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	if s.cfg.PublicDir != "" {
		mux.Handle("/", http.FileServer(http.Dir(s.cfg.PublicDir)))
	}

	listener, err := net.Listen("tcp", s.cfg.Addr())
	if err != nil {
		return fmt.Errorf("listening on %s: %w", s.cfg.Addr(), err)
	}

	httpSrv := &http.Server{Handler: mux}

	s.mu.Lock()
	s.listener = listener
	s.httpSrv = httpSrv
	s.running = true
	s.mu.Unlock()

	s.logger.Info("transport listening",
		zap.String("addr", listener.Addr().String()),
		zap.String("public_dir", s.cfg.PublicDir),
	)

	if err := httpSrv.Serve(listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("serving: %w", err)
	}
	return nil
}

// handleUpgrade promotes an HTTP request to a WebSocket session.
func (s *Server) handleUpgrade(w http.ResponseWriter, r *http.Request) {
	ws, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		// Upgrade already wrote the HTTP error response.
		s.logger.Warn("websocket upgrade failed",
			zap.String("remote_addr", r.RemoteAddr),
			zap.Error(err),
		)
		return
	}

	sock := newSocket(ws, s.transportCfg)

	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		_ = sock.Close()
		return
	}
	s.sockets[sock.ID()] = sock
	s.wg.Add(1)
	s.mu.Unlock()

	s.logger.Info("client connected",
		zap.String("conn_id", sock.ID()),
		zap.String("remote_addr", sock.RemoteAddr()),
	)

	go s.runSession(sock)
}

// runSession drives one session to completion and releases the socket.
func (s *Server) runSession(sock *Socket) {
	start := time.Now()
	defer s.wg.Done()
	defer func() {
		_ = sock.Close()
		s.mu.Lock()
		delete(s.sockets, sock.ID())
		s.mu.Unlock()

		s.logger.Info("client disconnected",
			zap.String("conn_id", sock.ID()),
			zap.Duration("duration", time.Since(start)),
		)
	}()

	_ = s.handler.HandleSession(s.ctx, sock)
}

// Stop gracefully stops the server: no new connections are accepted, all
// live sockets are closed (which unblocks their session loops and runs
// their cleanup), and all session goroutines are joined.
//
// Postcondition: All connections are closed and goroutines have exited.
func (s *Server) Stop() {
	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		return
	}
	s.running = false
	httpSrv := s.httpSrv
	open := make([]*Socket, 0, len(s.sockets))
	for _, sock := range s.sockets {
		open = append(open, sock)
	}
	s.mu.Unlock()

	s.cancel()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if httpSrv != nil {
		_ = httpSrv.Shutdown(shutdownCtx)
	}

	// Shutdown does not touch hijacked connections; close them explicitly.
	for _, sock := range open {
		_ = sock.Close()
	}
	s.wg.Wait()

	s.logger.Info("transport stopped")
}

// Addr returns the actual listening address, or empty string if not yet listening.
func (s *Server) Addr() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.listener != nil {
		return s.listener.Addr().String()
	}
	return ""
}

// IsRunning returns whether the server is currently accepting connections.
func (s *Server) IsRunning() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.running
}

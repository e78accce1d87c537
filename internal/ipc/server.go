package ipc

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"time"
)

// ConnSetup prepares a newly accepted connection before it is served,
// registering handlers on it. The returned teardown, if any, runs after
// the connection closes.
type ConnSetup func(c *Conn) (teardown func())

// ServerConfig configures the IPC server.
type ServerConfig struct {
	SocketPath      string // Unix socket path
	RequireSameUser bool   // Reject peers running as another user
	MaxConnections  int    // Zero selects the default
}

// DefaultServerConfig returns sensible defaults
func DefaultServerConfig(runtimeDir string) ServerConfig {
	return ServerConfig{
		SocketPath:      filepath.Join(runtimeDir, "textbridge.sock"),
		RequireSameUser: true,
		MaxConnections:  8,
	}
}

// Server accepts engine connections on a unix socket.
type Server struct {
	mu       sync.Mutex
	listener net.Listener
	cfg      ServerConfig
	setup    ConnSetup
	logger   *slog.Logger
	conns    map[*Conn]struct{}

	// Shutdown coordination
	ctx     context.Context
	cancel  context.CancelFunc
	wg      sync.WaitGroup
	running atomic.Bool
}

// NewServer creates a new IPC server
func NewServer(cfg ServerConfig, setup ConnSetup, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.MaxConnections <= 0 {
		cfg.MaxConnections = DefaultServerConfig("").MaxConnections
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Server{
		cfg:    cfg,
		setup:  setup,
		logger: logger,
		conns:  make(map[*Conn]struct{}),
		ctx:    ctx,
		cancel: cancel,
	}
}

// Start begins listening for connections
func (s *Server) Start() error {
	socketDir := filepath.Dir(s.cfg.SocketPath)
	if err := os.MkdirAll(socketDir, 0700); err != nil {
		return fmt.Errorf("create socket directory: %w", err)
	}
	if IsSocketListening(s.cfg.SocketPath) {
		return fmt.Errorf("socket %s is already in use", s.cfg.SocketPath)
	}
	if err := CleanupSocket(s.cfg.SocketPath); err != nil {
		return fmt.Errorf("remove stale socket: %w", err)
	}

	listener, err := net.Listen("unix", s.cfg.SocketPath)
	if err != nil {
		return fmt.Errorf("listen on socket: %w", err)
	}
	if err := os.Chmod(s.cfg.SocketPath, 0600); err != nil {
		listener.Close()
		return fmt.Errorf("set socket permissions: %w", err)
	}

	s.listener = listener
	s.running.Store(true)

	s.wg.Add(1)
	go s.acceptLoop()

	s.logger.Info("listening", "socket", s.cfg.SocketPath)
	return nil
}

// Stop closes the listener and every connection, then waits for them to
// finish.
func (s *Server) Stop() error {
	if !s.running.CompareAndSwap(true, false) {
		return nil
	}
	s.cancel()
	if s.listener != nil {
		s.listener.Close()
	}

	s.mu.Lock()
	for c := range s.conns {
		c.Close()
	}
	s.mu.Unlock()

	done := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(5 * time.Second):
		s.logger.Warn("timed out waiting for connections to close")
	}

	os.Remove(s.cfg.SocketPath)
	return nil
}

// SocketPath returns the socket path
func (s *Server) SocketPath() string {
	return s.cfg.SocketPath
}

// ConnCount returns the number of connected peers.
func (s *Server) ConnCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.conns)
}

func (s *Server) acceptLoop() {
	defer s.wg.Done()

	for {
		nc, err := s.listener.Accept()
		if err != nil {
			if s.ctx.Err() != nil || errors.Is(err, net.ErrClosed) {
				return
			}
			s.logger.Warn("accept failed", "error", err)
			continue
		}

		if s.ConnCount() >= s.cfg.MaxConnections {
			s.logger.Warn("connection limit reached", "max", s.cfg.MaxConnections)
			nc.Close()
			continue
		}
		if s.cfg.RequireSameUser && !s.peerAllowed(nc) {
			nc.Close()
			continue
		}

		c := NewConn(nc, s.logger)
		s.mu.Lock()
		s.conns[c] = struct{}{}
		s.mu.Unlock()

		s.wg.Add(1)
		go s.handleConnection(c)
	}
}

func (s *Server) peerAllowed(nc net.Conn) bool {
	ok, err := PeerIsCurrentUser(nc)
	switch {
	case errors.Is(err, ErrPeerCredentialsUnsupported):
		return true
	case err != nil:
		s.logger.Warn("peer credentials unavailable", "error", err)
		return false
	case !ok:
		s.logger.Warn("rejected connection from another user")
		return false
	}
	return true
}

func (s *Server) handleConnection(c *Conn) {
	defer s.wg.Done()
	defer func() {
		s.mu.Lock()
		delete(s.conns, c)
		s.mu.Unlock()
		c.Close()
	}()

	var teardown func()
	if s.setup != nil {
		teardown = s.setup(c)
	}
	if err := c.Serve(s.ctx); err != nil {
		s.logger.Warn("connection ended", "error", err)
	}
	if teardown != nil {
		teardown()
	}
}

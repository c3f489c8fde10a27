package control

import (
	"context"
	"errors"
	"fmt"
	"net"
	"os"
	"runtime/debug"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/msageha/contentbook/internal/logging"
)

// HandlerFunc answers one request. ctx is cancelled when the server stops
// or the connection deadline passes.
type HandlerFunc func(ctx context.Context, req *Request) *Response

type Server struct {
	socketPath  string
	logger      *zap.Logger
	connTimeout time.Duration

	mu       sync.RWMutex
	handlers map[string]HandlerFunc

	listener net.Listener
	ctx      context.Context
	cancel   context.CancelFunc
	wg       sync.WaitGroup
}

func NewServer(socketPath string, logger *zap.Logger) *Server {
	ctx, cancel := context.WithCancel(context.Background())
	return &Server{
		socketPath:  socketPath,
		logger:      logging.OrNop(logger),
		connTimeout: 60 * time.Second,
		handlers:    make(map[string]HandlerFunc),
		ctx:         ctx,
		cancel:      cancel,
	}
}

func (s *Server) SetConnTimeout(d time.Duration) {
	s.connTimeout = d
}

func (s *Server) Handle(command string, h HandlerFunc) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.handlers[command] = h
}

func (s *Server) Path() string { return s.socketPath }

// Start listens on the socket, replacing a stale one left by a crashed
// client. The caller is expected to hold the data directory lock.
func (s *Server) Start() error {
	_ = os.Remove(s.socketPath)

	listener, err := net.Listen("unix", s.socketPath)
	if err != nil {
		return fmt.Errorf("listen on %s: %w", s.socketPath, err)
	}
	if err := os.Chmod(s.socketPath, 0o600); err != nil {
		_ = listener.Close()
		return fmt.Errorf("chmod socket: %w", err)
	}
	s.listener = listener

	s.wg.Add(1)
	go s.acceptLoop()
	return nil
}

// Stop closes the listener, cancels running handlers and waits for them.
func (s *Server) Stop() {
	s.cancel()
	if s.listener != nil {
		_ = s.listener.Close()
	}
	s.wg.Wait()
	_ = os.Remove(s.socketPath)
}

func (s *Server) acceptLoop() {
	defer s.wg.Done()
	for {
		conn, err := s.listener.Accept()
		if err != nil {
			if s.ctx.Err() != nil || errors.Is(err, net.ErrClosed) {
				return
			}
			s.logger.Warn("accept failed", zap.Error(err))
			continue
		}
		s.wg.Add(1)
		go s.handleConn(conn)
	}
}

func (s *Server) handleConn(conn net.Conn) {
	defer s.wg.Done()
	defer func() { _ = conn.Close() }()
	defer func() {
		if r := recover(); r != nil {
			s.logger.Error("panic in control handler", zap.Any("panic", r), zap.ByteString("stack", debug.Stack()))
		}
	}()

	deadline := time.Now().Add(s.connTimeout)
	_ = conn.SetDeadline(deadline)

	var req Request
	if err := ReadFrame(conn, &req); err != nil {
		s.logger.Debug("read request failed", zap.Error(err))
		return
	}

	ctx, cancel := context.WithDeadline(s.ctx, deadline)
	defer cancel()
	resp := s.process(ctx, &req)

	if err := WriteFrame(conn, resp); err != nil {
		s.logger.Debug("write response failed", zap.String("command", req.Command), zap.Error(err))
	}
}

func (s *Server) process(ctx context.Context, req *Request) *Response {
	if req.ProtocolVersion != ProtocolVersion {
		return ErrorResponse(CodeProtocolMismatch,
			fmt.Sprintf("protocol version mismatch: got %d, expected %d", req.ProtocolVersion, ProtocolVersion))
	}

	s.mu.RLock()
	h, ok := s.handlers[req.Command]
	s.mu.RUnlock()
	if !ok {
		return ErrorResponse(CodeUnknownCommand, fmt.Sprintf("unknown command: %q", req.Command))
	}
	s.logger.Debug("control request", zap.String("command", req.Command))
	return h(ctx, req)
}

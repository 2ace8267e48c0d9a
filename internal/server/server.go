package server

import (
	"context"
	"errors"
	"fmt"
	"net"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"github.com/muurk/softap/internal/logging"
	"github.com/muurk/softap/internal/netmode"
)

// BufferSize is the single read limit. Longer requests are truncated.
const BufferSize = 4096

// acceptRetryDelay throttles the loop after a failed Accept.
const acceptRetryDelay = 50 * time.Millisecond

// Provisioner runs a station join with AP fallback as one serialized unit.
// *netmode.Controller implements it.
type Provisioner interface {
	Provision(ctx context.Context, creds netmode.StationCredentials, fallback netmode.AccessPointConfig) *netmode.ProvisionResult
}

// Config holds the server configuration
type Config struct {
	Host        string
	Port        int
	PagePath    string        // HTML page served for GET /index.html
	ReadTimeout time.Duration // 0 means no deadline on the request read

	// Fallback is the access point re-entered when a join fails.
	Fallback netmode.AccessPointConfig
}

// State is where the accept loop currently is.
type State int32

const (
	StateStopped State = iota
	StateListening
	StateAwaitingRequest
	StateDispatching
)

func (s State) String() string {
	switch s {
	case StateListening:
		return "listening"
	case StateAwaitingRequest:
		return "awaiting-request"
	case StateDispatching:
		return "dispatching"
	default:
		return "stopped"
	}
}

// Outcome is why Serve returned.
type Outcome int

const (
	// OutcomeShutdown means the server was stopped from outside.
	OutcomeShutdown Outcome = iota
	// OutcomeProvisioned means the device joined a network. Provisioning
	// is finished and the runner decides what happens to the process.
	OutcomeProvisioned
	// OutcomeFailed means serving stopped on a fatal error.
	OutcomeFailed
)

func (o Outcome) String() string {
	switch o {
	case OutcomeProvisioned:
		return "provisioned"
	case OutcomeFailed:
		return "failed"
	default:
		return "shutdown"
	}
}

// Server is the provisioning HTTP endpoint. Connections are handled one at a
// time: read, dispatch, respond, close.
type Server struct {
	config      *Config
	provisioner Provisioner

	mu       sync.Mutex
	listener net.Listener
	stopping bool
	serving  bool

	state   atomic.Int32
	done    chan struct{}
	outcome Outcome
}

// New creates a new Server instance
func New(config *Config, provisioner Provisioner) *Server {
	return &Server{
		config:      config,
		provisioner: provisioner,
		done:        make(chan struct{}),
	}
}

// Start binds the listening socket.
func (s *Server) Start() error {
	addr := net.JoinHostPort(s.config.Host, fmt.Sprintf("%d", s.config.Port))

	listener, err := net.Listen("tcp", addr)
	if err != nil {
		return &BindError{Addr: addr, Err: err}
	}

	s.mu.Lock()
	s.listener = listener
	s.mu.Unlock()
	s.state.Store(int32(StateListening))

	logging.Info("Provisioning server listening",
		zap.String("addr", listener.Addr().String()),
		zap.String("page", s.config.PagePath),
	)
	return nil
}

// Addr returns the bound address, or nil before Start.
func (s *Server) Addr() net.Addr {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.listener == nil {
		return nil
	}
	return s.listener.Addr()
}

// State returns the current accept loop state.
func (s *Server) State() State {
	return State(s.state.Load())
}

// Done is closed when Serve returns.
func (s *Server) Done() <-chan struct{} {
	return s.done
}

// Outcome returns why Serve returned. Valid once Done is closed.
func (s *Server) Outcome() Outcome {
	<-s.done
	return s.outcome
}

// Serve accepts connections until the context is cancelled, Shutdown is
// called, a join succeeds or a fatal error occurs. Transitions already in
// progress are not cancelled by ctx.
func (s *Server) Serve(ctx context.Context) (outcome Outcome, err error) {
	s.mu.Lock()
	listener := s.listener
	if listener != nil {
		s.serving = true
	}
	s.mu.Unlock()
	if listener == nil {
		return OutcomeFailed, ErrNotStarted
	}

	defer func() {
		s.closeListener()
		s.state.Store(int32(StateStopped))
		s.outcome = outcome
		close(s.done)
		logging.Info("Provisioning server stopped", zap.Stringer("outcome", outcome))
	}()

	stop := context.AfterFunc(ctx, s.closeListener)
	defer stop()

	for {
		s.state.Store(int32(StateListening))

		conn, err := listener.Accept()
		if err != nil {
			if s.isStopping() || errors.Is(err, net.ErrClosed) {
				return OutcomeShutdown, nil
			}
			logging.Error("Failed to accept connection", zap.Error(err))
			time.Sleep(acceptRetryDelay)
			continue
		}

		outcome, err := s.handleConnection(context.WithoutCancel(ctx), conn)
		if err != nil {
			return OutcomeFailed, err
		}
		if outcome == OutcomeProvisioned {
			return OutcomeProvisioned, nil
		}
	}
}

// handleConnection reads one request, dispatches it and closes conn. The
// returned Outcome is OutcomeShutdown unless the connection ended
// provisioning.
func (s *Server) handleConnection(ctx context.Context, conn net.Conn) (Outcome, error) {
	remoteAddr := conn.RemoteAddr().String()
	defer func() {
		_ = conn.Close()
		logging.LogConnection(remoteAddr, "connection_closed")
	}()
	logging.LogConnection(remoteAddr, "connection_accepted")

	s.state.Store(int32(StateAwaitingRequest))

	if s.config.ReadTimeout > 0 {
		_ = conn.SetReadDeadline(time.Now().Add(s.config.ReadTimeout))
	}

	buf := make([]byte, BufferSize)
	n, err := conn.Read(buf)
	if err != nil {
		logging.Warn("Failed to read request",
			zap.String("remote_addr", remoteAddr),
			zap.Error(err),
		)
		return OutcomeShutdown, nil
	}
	raw := buf[:n]
	logging.LogRawBytes("HTTP request", raw)

	s.state.Store(int32(StateDispatching))

	req := ParseRequest(raw)
	route := Classify(raw)
	logging.LogHTTPRequest(remoteAddr, req.Method, req.Path, len(req.Body))
	logging.Debug("Dispatching request",
		zap.String("remote_addr", remoteAddr),
		zap.Stringer("route", route),
		zap.Bool("truncated", n == BufferSize),
	)

	switch route {
	case RouteIndex:
		return OutcomeShutdown, s.serveIndex(conn, remoteAddr)
	case RouteSave:
		return s.handleSave(ctx, conn, remoteAddr, req), nil
	default:
		writeResponse(conn, remoteAddr, 404, notFoundResponse)
		return OutcomeShutdown, nil
	}
}

// Shutdown stops accepting connections and waits for Serve to return. A
// request being handled runs to completion first. It returns at once when
// Serve was never called.
func (s *Server) Shutdown(ctx context.Context) error {
	logging.Info("Shutting down provisioning server...")
	s.closeListener()

	s.mu.Lock()
	serving := s.serving
	s.mu.Unlock()
	if !serving {
		return nil
	}

	select {
	case <-s.done:
		return nil
	case <-ctx.Done():
		logging.Warn("Shutdown timeout, a transition is still running")
		return ctx.Err()
	}
}

func (s *Server) closeListener() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.stopping || s.listener == nil {
		return
	}
	s.stopping = true
	if err := s.listener.Close(); err != nil {
		logging.Debug("Error closing listener", zap.Error(err))
	}
}

func (s *Server) isStopping() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.stopping
}

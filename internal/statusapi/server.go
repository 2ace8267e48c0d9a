package statusapi

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/muurk/softap/internal/netmode"
)

const (
	// StatusPath serves the current status as JSON.
	StatusPath = "/status"
	// WatchPath upgrades to a websocket stream of transition events.
	WatchPath = "/status/ws"

	DefaultPingInterval = 30 * time.Second
	writeWait           = 10 * time.Second
	maxReadSize         = 512
)

// Source is what the API reports on. *netmode.Controller implements it.
type Source interface {
	Status() netmode.Status
	Subscribe() (<-chan netmode.Event, func())
}

// Config holds the status API configuration
type Config struct {
	Host         string
	Port         int
	Version      string
	PingInterval time.Duration
}

// Server is a read-only HTTP view of the mode controller. It never changes
// the mode.
type Server struct {
	config   *Config
	source   Source
	logger   *zap.Logger
	upgrader websocket.Upgrader

	httpServer *http.Server

	mu       sync.Mutex
	listener net.Listener
	quit     chan struct{}
	quitOnce sync.Once
	streams  sync.WaitGroup
}

// New creates a status API server.
func New(config *Config, source Source, logger *zap.Logger) *Server {
	if logger == nil {
		logger = zap.NewNop()
	}
	if config.PingInterval <= 0 {
		config.PingInterval = DefaultPingInterval
	}

	s := &Server{
		config: config,
		source: source,
		logger: logger,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			// Operators connect from whatever network the device is on.
			CheckOrigin: func(r *http.Request) bool { return true },
		},
		quit: make(chan struct{}),
	}
	s.httpServer = &http.Server{
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	return s
}

// Handler returns the API routes.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc(StatusPath, s.handleStatus)
	mux.HandleFunc(WatchPath, s.handleWatch)
	return mux
}

// Start binds the listening socket.
func (s *Server) Start() error {
	addr := net.JoinHostPort(s.config.Host, fmt.Sprintf("%d", s.config.Port))
	listener, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", addr, err)
	}

	s.mu.Lock()
	s.listener = listener
	s.mu.Unlock()

	s.logger.Info("Status API listening", zap.String("addr", listener.Addr().String()))
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

// Serve handles requests until Shutdown.
func (s *Server) Serve() error {
	s.mu.Lock()
	listener := s.listener
	s.mu.Unlock()
	if listener == nil {
		return errors.New("status API not started")
	}

	err := s.httpServer.Serve(listener)
	if errors.Is(err, http.ErrServerClosed) {
		return nil
	}
	return err
}

// Shutdown closes open streams and stops the HTTP server.
func (s *Server) Shutdown(ctx context.Context) error {
	s.mu.Lock()
	s.quitOnce.Do(func() { close(s.quit) })
	s.mu.Unlock()
	err := s.httpServer.Shutdown(ctx)

	done := make(chan struct{})
	go func() {
		s.streams.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-ctx.Done():
		s.logger.Warn("Status streams did not close in time")
	}
	return err
}

// addStream registers a stream with Shutdown. It reports false once
// Shutdown has begun.
func (s *Server) addStream() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	select {
	case <-s.quit:
		return false
	default:
	}
	s.streams.Add(1)
	return true
}

func (s *Server) snapshot() StatusResponse {
	return StatusResponse{Status: s.source.Status(), Version: s.config.Version}
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet && r.Method != http.MethodHead {
		w.Header().Set("Allow", "GET, HEAD")
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Cache-Control", "no-store")
	if err := json.NewEncoder(w).Encode(s.snapshot()); err != nil {
		s.logger.Debug("Failed to write status", zap.Error(err))
	}
}

// handleWatch streams a status snapshot followed by every transition event.
func (s *Server) handleWatch(w http.ResponseWriter, r *http.Request) {
	if !s.addStream() {
		http.Error(w, "shutting down", http.StatusServiceUnavailable)
		return
	}
	defer s.streams.Done()

	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Warn("Failed to upgrade status stream", zap.Error(err))
		return
	}
	defer conn.Close()

	remoteAddr := conn.RemoteAddr().String()
	s.logger.Debug("Status stream opened", zap.String("remote_addr", remoteAddr))

	// Subscribe before the snapshot so no event between the two is lost.
	events, cancel := s.source.Subscribe()
	defer cancel()

	snapshot := s.snapshot()
	if err := s.writeMessage(conn, Message{Type: MessageStatus, Status: &snapshot}); err != nil {
		return
	}

	closed := make(chan struct{})
	go s.readPump(conn, closed)

	ticker := time.NewTicker(s.config.PingInterval)
	defer ticker.Stop()

	for {
		select {
		case ev, ok := <-events:
			if !ok {
				return
			}
			if err := s.writeMessage(conn, Message{Type: MessageEvent, Event: &ev}); err != nil {
				s.logger.Debug("Status stream write failed",
					zap.String("remote_addr", remoteAddr),
					zap.Error(err),
				)
				return
			}
		case <-ticker.C:
			_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		case <-closed:
			s.logger.Debug("Status stream closed by client", zap.String("remote_addr", remoteAddr))
			return
		case <-s.quit:
			_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
			_ = conn.WriteMessage(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseGoingAway, "server shutting down"))
			return
		}
	}
}

// readPump discards client messages and answers the ping/pong keepalive.
// It closes closed when the connection goes away.
func (s *Server) readPump(conn *websocket.Conn, closed chan<- struct{}) {
	defer close(closed)

	pongWait := 2 * s.config.PingInterval
	conn.SetReadLimit(maxReadSize)
	_ = conn.SetReadDeadline(time.Now().Add(pongWait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				s.logger.Debug("Status stream read error", zap.Error(err))
			}
			return
		}
	}
}

func (s *Server) writeMessage(conn *websocket.Conn, msg Message) error {
	_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
	return conn.WriteJSON(msg)
}

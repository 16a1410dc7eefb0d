// Package transport owns the HTTP surface and the WebSocket sockets that
// feed the relay. It upgrades connections, enforces per-socket limits, and
// adapts gorilla websockets to the relay.Conn contract.
package transport

import (
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"golang.org/x/time/rate"

	"github.com/blockbattle/server/internal/config"
)

// ErrSocketClosed is returned by Send and Next once the socket is down.
var ErrSocketClosed = errors.New("socket closed")

// ErrRateLimited ends a session whose client floods the server.
var ErrRateLimited = errors.New("message rate limit exceeded")

// Socket adapts one gorilla websocket to relay.Conn. Writes are serialized
// by a mutex; reads happen from the single session goroutine. A background
// ping loop keeps idle but live clients connected indefinitely.
type Socket struct {
	id         string
	remoteAddr string
	conn       *websocket.Conn
	limiter    *rate.Limiter

	writeTimeout time.Duration
	pongTimeout  time.Duration

	writeMu  sync.Mutex
	closed   atomic.Bool
	stopPing chan struct{}
}

// newSocket wraps an upgraded websocket connection.
//
// Precondition: ws must be a freshly upgraded connection nobody else reads from.
func newSocket(ws *websocket.Conn, cfg config.TransportConfig) *Socket {
	s := &Socket{
		id:           uuid.NewString(),
		remoteAddr:   ws.RemoteAddr().String(),
		conn:         ws,
		limiter:      rate.NewLimiter(rate.Limit(cfg.MessagesPerSecond), cfg.MessageBurst),
		writeTimeout: cfg.WriteTimeout,
		pongTimeout:  cfg.PongTimeout,
		stopPing:     make(chan struct{}),
	}

	ws.SetReadLimit(cfg.MaxMessageSize)
	_ = ws.SetReadDeadline(time.Now().Add(s.pongTimeout))
	ws.SetPongHandler(func(string) error {
		return ws.SetReadDeadline(time.Now().Add(s.pongTimeout))
	})

	go s.pingLoop()
	return s
}

// ID returns the socket's unique identifier.
func (s *Socket) ID() string { return s.id }

// RemoteAddr returns the client's network address.
func (s *Socket) RemoteAddr() string { return s.remoteAddr }

// Send marshals v and writes it as a single text frame.
func (s *Socket) Send(v any) error {
	if s.closed.Load() {
		return ErrSocketClosed
	}

	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("marshalling frame: %w", err)
	}

	s.writeMu.Lock()
	defer s.writeMu.Unlock()
	_ = s.conn.SetWriteDeadline(time.Now().Add(s.writeTimeout))
	return s.conn.WriteMessage(websocket.TextMessage, data)
}

// Next blocks until the next inbound text frame. Non-text frames are
// skipped. A client exceeding the rate limit is disconnected with a policy
// violation close code.
func (s *Socket) Next() ([]byte, error) {
	for {
		messageType, data, err := s.conn.ReadMessage()
		if err != nil {
			return nil, err
		}
		if messageType != websocket.TextMessage {
			continue
		}

		if !s.limiter.Allow() {
			s.closeWith(websocket.ClosePolicyViolation, "rate limit exceeded")
			return nil, ErrRateLimited
		}

		_ = s.conn.SetReadDeadline(time.Now().Add(s.pongTimeout))
		return data, nil
	}
}

// IsAlive reports whether the socket is still open.
func (s *Socket) IsAlive() bool { return !s.closed.Load() }

// Close tears the socket down; pending reads unblock with an error and
// later sends fail. Safe to call more than once.
func (s *Socket) Close() error {
	return s.closeWith(websocket.CloseNormalClosure, "")
}

func (s *Socket) closeWith(code int, reason string) error {
	if !s.closed.CompareAndSwap(false, true) {
		return nil
	}
	close(s.stopPing)

	// Best effort: tell the client why before dropping the TCP connection.
	deadline := time.Now().Add(s.writeTimeout)
	_ = s.conn.WriteControl(websocket.CloseMessage,
		websocket.FormatCloseMessage(code, reason), deadline)

	return s.conn.Close()
}

// pingLoop keeps the read deadline fed for idle clients. The pong handler
// extends the deadline when the client answers.
func (s *Socket) pingLoop() {
	interval := s.pongTimeout * 9 / 10
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			deadline := time.Now().Add(s.writeTimeout)
			if err := s.conn.WriteControl(websocket.PingMessage, nil, deadline); err != nil {
				return
			}
		case <-s.stopPing:
			return
		}
	}
}

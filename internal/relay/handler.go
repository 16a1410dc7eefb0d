package relay

import (
	"context"
	"errors"
	"math/rand/v2"
	"strings"
	"time"

	"go.uber.org/zap"
)

// User-facing rejection texts for join_room and create_room failures.
const (
	msgRoomNotFound   = "Room not found!"
	msgRoomFull       = "Room is full!"
	msgAlreadyStarted = "Game already started!"
	msgNoFreeCodes    = "No room codes available!"
)

// fallbackWinnerName stands in for the opponent's name when game_over
// arrives before an opponent ever joined.
const fallbackWinnerName = "Opponent"

// Handler runs the per-connection protocol loop. One Handler instance is
// shared by all connections; per-connection state lives in a session.
type Handler struct {
	registry   *Registry
	logger     *zap.Logger
	startDelay time.Duration

	// seed draws the shared piece-sequence seed; swappable in tests.
	seed func() int64
}

// NewHandler creates a protocol handler bound to a room registry.
//
// Precondition: registry and logger must be non-nil; startDelay must be >= 0.
func NewHandler(registry *Registry, startDelay time.Duration, logger *zap.Logger) *Handler {
	return &Handler{
		registry:   registry,
		logger:     logger,
		startDelay: startDelay,
		seed:       func() int64 { return rand.Int64N(1_000_000) },
	}
}

// session is the per-connection ephemeral state. It lives exactly as long
// as the connection and is never persisted.
type session struct {
	conn Conn
	name string
	room *Room
}

// HandleSession drives the protocol loop for one connection until the
// transport closes or faults. Messages from a single connection are
// processed strictly in arrival order.
//
// Cleanup (leave room, notify opponent, drop empty room) runs exactly once
// for every exit path: clean close, read fault, handler panic, or server
// shutdown cancelling ctx.
func (h *Handler) HandleSession(ctx context.Context, conn Conn) error {
	sess := &session{conn: conn}

	defer func() {
		if rec := recover(); rec != nil {
			// A fault in one session must not take down the process;
			// treat it as a disconnect.
			h.logger.Error("session fault",
				zap.String("conn_id", conn.ID()),
				zap.Any("panic", rec),
			)
		}
	}()
	defer h.cleanup(sess)

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		data, err := conn.Next()
		if err != nil {
			// Transport close or fault; either way the session is over.
			return nil
		}

		h.dispatch(sess, data)
	}
}

// dispatch decodes one frame and applies the protocol transition table.
func (h *Handler) dispatch(sess *session, data []byte) {
	msg, err := DecodeClientMessage(data)
	if err != nil {
		// Bad frames are dropped; only a dead transport ends the session.
		h.logger.Debug("ignoring frame",
			zap.String("conn_id", sess.conn.ID()),
			zap.Error(err),
		)
		return
	}

	switch m := msg.(type) {
	case CreateRoom:
		h.handleCreateRoom(sess, m)
	case JoinRoom:
		h.handleJoinRoom(sess, m)
	case GameUpdate:
		h.handleGameUpdate(sess, m)
	case SendGarbage:
		h.handleSendGarbage(sess, m)
	case GameOver:
		h.handleGameOver(sess)
	case RequestRematch:
		h.handleRequestRematch(sess)
	}
}

func (h *Handler) handleCreateRoom(sess *session, m CreateRoom) {
	if sess.room != nil {
		// Already seated; a connection never returns to the unjoined state.
		return
	}

	name := cleanName(m.Name)
	room, err := h.registry.CreateRoom(sess.conn, name)
	if err != nil {
		_ = sess.conn.Send(newError(msgNoFreeCodes))
		return
	}

	sess.room = room
	sess.name = name
	_ = sess.conn.Send(newRoomCreated(room.Code(), name))

	h.logger.Info("room created",
		zap.String("code", room.Code()),
		zap.String("host", name),
		zap.String("conn_id", sess.conn.ID()),
	)
}

func (h *Handler) handleJoinRoom(sess *session, m JoinRoom) {
	if sess.room != nil {
		return
	}

	name := cleanName(m.Name)
	code := strings.TrimSpace(m.Code)

	room, ok := h.registry.Lookup(code)
	if !ok {
		_ = sess.conn.Send(newError(msgRoomNotFound))
		return
	}

	host, guest, err := room.Join(sess.conn, name)
	switch {
	case errors.Is(err, ErrRoomFull):
		_ = sess.conn.Send(newError(msgRoomFull))
		return
	case errors.Is(err, ErrRoomClosed):
		// The host disconnected between lookup and seating; to the guest
		// the room no longer exists.
		_ = sess.conn.Send(newError(msgRoomNotFound))
		return
	case errors.Is(err, ErrRoomStarted):
		_ = sess.conn.Send(newError(msgAlreadyStarted))
		return
	}

	sess.room = room
	sess.name = name

	_ = sess.conn.Send(newRoomJoined(code, name))
	_ = host.Conn.Send(newOpponentJoined(guest.Name, host.Name, SeatHost))
	_ = guest.Conn.Send(newOpponentJoined(host.Name, guest.Name, SeatGuest))

	h.logger.Info("match paired",
		zap.String("code", code),
		zap.String("host", host.Name),
		zap.String("guest", guest.Name),
	)

	// Fixed pause so both clients render the pairing before pieces drop.
	// No acknowledgment protocol behind it.
	seed := h.seed()
	time.Sleep(h.startDelay)
	room.Broadcast(newGameStart(seed), nil)
}

func (h *Handler) handleGameUpdate(sess *session, m GameUpdate) {
	if sess.room == nil {
		return
	}
	if opp := sess.room.Opponent(sess.conn); opp != nil && opp.Conn.IsAlive() {
		_ = opp.Conn.Send(newOpponentUpdate(m))
	}
}

func (h *Handler) handleSendGarbage(sess *session, m SendGarbage) {
	if sess.room == nil {
		return
	}
	if opp := sess.room.Opponent(sess.conn); opp != nil && opp.Conn.IsAlive() {
		_ = opp.Conn.Send(newReceiveGarbage(m.Count))
	}
}

func (h *Handler) handleGameOver(sess *session) {
	if sess.room == nil {
		return
	}

	// The sender lost, so the surviving opponent is the winner in both
	// notifications. With no opponent present, degrade to a placeholder.
	opp := sess.room.Opponent(sess.conn)
	winner := fallbackWinnerName
	if opp != nil {
		winner = opp.Name
		if opp.Conn.IsAlive() {
			_ = opp.Conn.Send(newOpponentLost(winner))
		}
	}
	_ = sess.conn.Send(newYouLost(winner))
}

func (h *Handler) handleRequestRematch(sess *session) {
	if sess.room == nil {
		return
	}

	ready, recorded := sess.room.VoteRematch(sess.conn)
	if ready {
		sess.room.Broadcast(newGameStart(h.seed()), nil)
		h.logger.Info("rematch starting", zap.String("code", sess.room.Code()))
		return
	}
	if !recorded {
		// Duplicate vote; the opponent was already notified.
		return
	}
	if opp := sess.room.Opponent(sess.conn); opp != nil && opp.Conn.IsAlive() {
		_ = opp.Conn.Send(newOpponentWantsRematch())
	}
}

// cleanup removes the connection from its room, notifies the remaining
// opponent, and drops the room from the registry once empty.
func (h *Handler) cleanup(sess *session) {
	if sess.room == nil {
		return
	}

	opp := sess.room.Opponent(sess.conn)
	sess.room.RemovePlayer(sess.conn)
	if opp != nil && opp.Conn.IsAlive() {
		_ = opp.Conn.Send(newOpponentDisconnected())
	}
	h.registry.DeleteIfEmpty(sess.room.Code())

	h.logger.Info("session ended",
		zap.String("code", sess.room.Code()),
		zap.String("conn_id", sess.conn.ID()),
		zap.Int("rooms", h.registry.Len()),
	)
}

// cleanName applies the display-name rules: default when absent, truncated
// to MaxNameLength.
func cleanName(name string) string {
	if name == "" {
		return DefaultPlayerName
	}
	if runes := []rune(name); len(runes) > MaxNameLength {
		return string(runes[:MaxNameLength])
	}
	return name
}

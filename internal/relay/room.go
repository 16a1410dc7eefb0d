package relay

import (
	"errors"
	"sync"
)

// MaxNameLength is the display-name cap applied when a player is seated.
const MaxNameLength = 20

// DefaultPlayerName is used when a client supplies no name.
const DefaultPlayerName = "Player"

// Seat indices are fixed by join order.
const (
	SeatHost  = 0
	SeatGuest = 1
)

// Rejection reasons for seating a guest.
var (
	ErrRoomFull    = errors.New("room is full")
	ErrRoomStarted = errors.New("game already started")
	// ErrRoomClosed rejects a join racing the host's disconnect: the room
	// is empty and pending removal from the registry.
	ErrRoomClosed = errors.New("room closed")
)

// Participant is one seated player. The Room holds a non-owning reference
// to the connection; the transport layer manages its lifecycle.
type Participant struct {
	Conn Conn
	// Name is the display name, truncated to MaxNameLength.
	Name string
	// Ready is reserved; no transition reads or writes it.
	Ready bool
}

// Room pairs up to two connections into one match. A mutex serializes all
// membership and vote mutation; handler goroutines for both participants
// call into the same Room concurrently.
type Room struct {
	code string

	mu           sync.Mutex
	players      []*Participant
	started      bool
	rematchVotes map[string]struct{} // conn ID → voted
}

// NewRoom creates a room with the host in seat 0.
//
// Precondition: code must be a registry-reserved code; host must be non-nil.
func NewRoom(code string, host Conn, hostName string) *Room {
	return &Room{
		code:         code,
		players:      []*Participant{{Conn: host, Name: hostName}},
		rematchVotes: make(map[string]struct{}),
	}
}

// Code returns the room's registry key. Immutable after creation.
func (r *Room) Code() string {
	return r.code
}

// Join atomically validates and seats a guest, marking the room started.
// Validation order is fixed: capacity before start state, so a full room is
// always reported as full even though it is also started.
//
// A room must hold exactly one member for a join to succeed. An empty room
// means the host left after the caller's registry lookup; seating the
// guest there would pair them with themself in a room the registry is
// about to reap.
//
// Postcondition: On success returns the host and guest participants and the
// room is started; on ErrRoomFull, ErrRoomClosed or ErrRoomStarted nothing
// changed.
func (r *Room) Join(conn Conn, name string) (host, guest *Participant, err error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if len(r.players) >= 2 {
		return nil, nil, ErrRoomFull
	}
	if len(r.players) == 0 {
		return nil, nil, ErrRoomClosed
	}
	if r.started {
		return nil, nil, ErrRoomStarted
	}

	guest = &Participant{Conn: conn, Name: name}
	r.players = append(r.players, guest)
	r.started = true

	return r.players[SeatHost], guest, nil
}

// IsFull reports whether both seats are taken.
func (r *Room) IsFull() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.players) >= 2
}

// Started reports whether the second player has ever joined.
func (r *Room) Started() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.started
}

// Opponent returns the participant other than conn, or nil if the room
// currently has only one member.
func (r *Room) Opponent(conn Conn) *Participant {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, p := range r.players {
		if p.Conn.ID() != conn.ID() {
			return p
		}
	}
	return nil
}

// RemovePlayer drops conn from the member list and discards its rematch
// vote. No-op if conn is not a member.
func (r *Room) RemovePlayer(conn Conn) {
	r.mu.Lock()
	defer r.mu.Unlock()

	kept := r.players[:0]
	for _, p := range r.players {
		if p.Conn.ID() != conn.ID() {
			kept = append(kept, p)
		}
	}
	r.players = kept
	delete(r.rematchVotes, conn.ID())
}

// Len returns the current member count.
func (r *Room) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.players)
}

// Broadcast sends message to every member whose connection is open,
// skipping excluding if non-nil. Best-effort fan-out: send failures to
// closing connections are dropped.
func (r *Room) Broadcast(message any, excluding Conn) {
	r.mu.Lock()
	members := make([]*Participant, len(r.players))
	copy(members, r.players)
	r.mu.Unlock()

	for _, p := range members {
		if excluding != nil && p.Conn.ID() == excluding.ID() {
			continue
		}
		if p.Conn.IsAlive() {
			_ = p.Conn.Send(message)
		}
	}
}

// VoteRematch records conn's rematch vote. A duplicate vote from the same
// connection is a no-op and never counts toward the threshold.
//
// Postcondition: ready is true exactly when this vote completed the pair,
// in which case the vote set has been cleared; recorded is false for
// duplicate votes.
func (r *Room) VoteRematch(conn Conn) (ready, recorded bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, dup := r.rematchVotes[conn.ID()]; dup {
		return false, false
	}
	r.rematchVotes[conn.ID()] = struct{}{}

	if len(r.rematchVotes) == 2 {
		r.rematchVotes = make(map[string]struct{})
		return true, true
	}
	return false, true
}

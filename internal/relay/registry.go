package relay

import (
	"errors"
	"fmt"
	"math/rand/v2"
	"sync"
)

// codeSpace is the number of distinct 4-digit room codes.
const codeSpace = 10000

// maxCodeAttempts bounds code generation so a nearly exhausted code space
// surfaces as an error instead of a silent spin.
const maxCodeAttempts = 10000

// ErrNoFreeCodes is returned when code generation gives up.
var ErrNoFreeCodes = errors.New("no room codes available")

// Registry is the process-wide table of live rooms, keyed by 4-digit code.
// Code allocation is atomic with respect to the existence check, so the
// same code is never handed out twice. All methods are safe for concurrent
// use.
type Registry struct {
	mu    sync.Mutex
	rooms map[string]*Room

	// intn draws a random int in [0, n); swappable in tests.
	intn func(n int) int
}

// NewRegistry creates an empty Registry.
func NewRegistry() *Registry {
	return &Registry{
		rooms: make(map[string]*Room),
		intn:  rand.IntN,
	}
}

// CreateRoom allocates a free code, creates a Room with host as its sole
// participant, and registers it.
//
// Postcondition: Returns a registered Room with a unique 4-digit code, or
// ErrNoFreeCodes if the code space is exhausted.
func (g *Registry) CreateRoom(host Conn, hostName string) (*Room, error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	code, err := g.generateCode()
	if err != nil {
		return nil, err
	}

	room := NewRoom(code, host, hostName)
	g.rooms[code] = room
	return room, nil
}

// generateCode draws random 4-digit codes until a free one is found.
// Must be called with g.mu held.
func (g *Registry) generateCode() (string, error) {
	for range maxCodeAttempts {
		code := fmt.Sprintf("%04d", g.intn(codeSpace))
		if _, taken := g.rooms[code]; !taken {
			return code, nil
		}
	}
	return "", ErrNoFreeCodes
}

// Lookup returns the room registered under code.
func (g *Registry) Lookup(code string) (*Room, bool) {
	g.mu.Lock()
	defer g.mu.Unlock()
	room, ok := g.rooms[code]
	return room, ok
}

// DeleteIfEmpty removes the registry entry for code once its room has no
// members. No-op if the code is unknown or the room is still occupied.
func (g *Registry) DeleteIfEmpty(code string) {
	g.mu.Lock()
	defer g.mu.Unlock()

	room, ok := g.rooms[code]
	if !ok {
		return
	}
	if room.Len() == 0 {
		delete(g.rooms, code)
	}
}

// Len returns the number of live rooms.
func (g *Registry) Len() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return len(g.rooms)
}

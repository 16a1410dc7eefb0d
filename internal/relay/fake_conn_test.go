package relay

import (
	"encoding/json"
	"errors"
	"sync"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
)

// fakeConn is an in-memory Conn for driving the handler without a socket.
type fakeConn struct {
	id     string
	frames chan []byte
	done   chan struct{}
	once   sync.Once

	mu   sync.Mutex
	sent []any
}

func newFakeConn() *fakeConn {
	return &fakeConn{
		id:     uuid.NewString(),
		frames: make(chan []byte, 16),
		done:   make(chan struct{}),
	}
}

func (c *fakeConn) ID() string { return c.id }

func (c *fakeConn) Send(v any) error {
	if !c.IsAlive() {
		return errors.New("connection closed")
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.sent = append(c.sent, v)
	return nil
}

func (c *fakeConn) Next() ([]byte, error) {
	select {
	case frame := <-c.frames:
		return frame, nil
	case <-c.done:
		return nil, errors.New("connection closed")
	}
}

func (c *fakeConn) IsAlive() bool {
	select {
	case <-c.done:
		return false
	default:
		return true
	}
}

func (c *fakeConn) Close() error {
	c.once.Do(func() { close(c.done) })
	return nil
}

// push queues one inbound frame.
func (c *fakeConn) push(frame string) {
	c.frames <- []byte(frame)
}

// received returns the wire form of every message sent to this connection.
func (c *fakeConn) received(t *testing.T) []map[string]any {
	t.Helper()
	c.mu.Lock()
	defer c.mu.Unlock()

	out := make([]map[string]any, 0, len(c.sent))
	for _, msg := range c.sent {
		data, err := json.Marshal(msg)
		require.NoError(t, err)
		var m map[string]any
		require.NoError(t, json.Unmarshal(data, &m))
		out = append(out, m)
	}
	return out
}

// countAction returns how many sent messages carry the given action.
func (c *fakeConn) countAction(t *testing.T, action string) int {
	t.Helper()
	n := 0
	for _, m := range c.received(t) {
		if m["action"] == action {
			n++
		}
	}
	return n
}

// Package testutil provides test helpers including a WebSocket test client
// for integration testing.
package testutil

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/gorilla/websocket"
)

// WSClient is a WebSocket test client speaking the JSON action protocol.
type WSClient struct {
	conn *websocket.Conn
	t    *testing.T
}

// NewWSClient dials the given ws:// URL and returns a connected client.
//
// Precondition: url must point at a listening WebSocket endpoint.
// Postcondition: Returns a connected WSClient or fails the test.
func NewWSClient(t *testing.T, url string) *WSClient {
	t.Helper()
	start := time.Now()

	dialer := websocket.Dialer{HandshakeTimeout: 5 * time.Second}
	conn, _, err := dialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("dialing %s: %v", url, err)
	}

	t.Cleanup(func() {
		conn.Close()
	})

	t.Logf("websocket client connected to %s [%s]", url, time.Since(start))
	return &WSClient{conn: conn, t: t}
}

// Send marshals msg and writes it as one text frame.
//
// Postcondition: The frame is written, or the test fails.
func (c *WSClient) Send(msg map[string]any) {
	c.t.Helper()
	_ = c.conn.SetWriteDeadline(time.Now().Add(5 * time.Second))
	if err := c.conn.WriteJSON(msg); err != nil {
		c.t.Fatalf("sending %v: %v", msg, err)
	}
}

// SendRaw writes a raw text frame without JSON validation.
func (c *WSClient) SendRaw(frame string) {
	c.t.Helper()
	_ = c.conn.SetWriteDeadline(time.Now().Add(5 * time.Second))
	if err := c.conn.WriteMessage(websocket.TextMessage, []byte(frame)); err != nil {
		c.t.Fatalf("sending raw frame %q: %v", frame, err)
	}
}

// TrySendRaw writes a raw text frame and returns the write error, if any.
// Useful when flooding a connection the server is expected to close.
func (c *WSClient) TrySendRaw(frame string) error {
	_ = c.conn.SetWriteDeadline(time.Now().Add(5 * time.Second))
	return c.conn.WriteMessage(websocket.TextMessage, []byte(frame))
}

// Expect reads frames until one with the given action arrives and returns
// it decoded. Intervening frames with other actions are discarded.
//
// Postcondition: Returns the matching frame, or fails on timeout.
func (c *WSClient) Expect(action string, timeout time.Duration) map[string]any {
	c.t.Helper()
	_ = c.conn.SetReadDeadline(time.Now().Add(timeout))

	for {
		_, data, err := c.conn.ReadMessage()
		if err != nil {
			c.t.Fatalf("reading while waiting for %q: %v", action, err)
		}
		var msg map[string]any
		if err := json.Unmarshal(data, &msg); err != nil {
			c.t.Fatalf("decoding frame %q: %v", data, err)
		}
		if msg["action"] == action {
			return msg
		}
	}
}

// ExpectClosed asserts that the server closes the connection within timeout.
func (c *WSClient) ExpectClosed(timeout time.Duration) {
	c.t.Helper()
	_ = c.conn.SetReadDeadline(time.Now().Add(timeout))
	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			return
		}
	}
}

// Close closes the underlying connection.
func (c *WSClient) Close() {
	c.conn.Close()
}

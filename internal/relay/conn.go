// Package relay implements the room lifecycle and message-relay protocol
// that pairs two clients into a match and forwards game state between them.
package relay

// Conn is one bidirectional message channel to a client. The transport
// layer owns the underlying socket; the relay only consumes frames and
// emits messages through this interface.
//
// Liveness is part of the contract: Send on a closed connection returns an
// error instead of requiring callers to pre-check, but IsAlive remains
// available for best-effort fan-out paths that skip dead peers silently.
type Conn interface {
	// ID returns a stable unique identifier for the connection.
	ID() string

	// Send marshals v as a JSON text frame and writes it to the client.
	// Returns an error if the connection is closed or the write fails.
	Send(v any) error

	// Next blocks until the next inbound text frame arrives. It returns an
	// error once the connection is closed or faulted; closing the
	// connection from another goroutine unblocks a pending Next.
	Next() ([]byte, error)

	// IsAlive reports whether the connection is still open.
	IsAlive() bool

	// Close tears down the connection. Safe to call more than once.
	Close() error
}

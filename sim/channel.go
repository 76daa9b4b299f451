package sim

import (
	"errors"

	"github.com/ossim/ossim/sim/wire"
)

// ErrWouldBlock is returned by Channel.Recv when no complete message is pending.
// It is retried on the next tick, never treated as a failure.
var ErrWouldBlock = errors.New("would block")

// Channel is the connection to one client application.
// All methods are called from the coordinator's goroutine and must not block
// for longer than a bounded write timeout.
type Channel interface {
	// ID identifies the connection in logs and snapshots.
	ID() string
	// Recv returns the next pending message, ErrWouldBlock if there is none,
	// or any other error once the connection is closed or unreadable.
	Recv() (wire.Message, error)
	// Send delivers a message to the client.
	Send(wire.Message) error
	// Closed reports whether the peer is gone or Close was called.
	Closed() bool
	Close() error
}

// Listener hands newly connected clients to the coordinator without blocking.
type Listener interface {
	// Accept returns at most max connections that arrived since the last call.
	Accept(max int) []Channel
	// Pending returns the number of connections waiting to be accepted.
	Pending() int
	Close() error
}

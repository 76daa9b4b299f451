package transport

import (
	"fmt"
	"net"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/ossim/ossim/sim"
	"github.com/ossim/ossim/sim/wire"
)

// Conn is one client connection. A reader goroutine decodes records into an
// inbox; Recv drains it without blocking. It implements sim.Channel.
type Conn struct {
	id           string
	uc           *net.UnixConn
	writeTimeout time.Duration
	peer         Peer
	hasPeer      bool

	inbox chan wire.Message
	done  chan struct{} // closed when the reader exits
	err   error         // reader's terminal error, valid once done is closed

	quit   chan struct{}
	closed atomic.Bool
}

func newConn(uc *net.UnixConn, opts Options) *Conn {
	c := &Conn{
		id:           uuid.New().String(),
		uc:           uc,
		writeTimeout: opts.WriteTimeout,
		inbox:        make(chan wire.Message, opts.InboxSize),
		done:         make(chan struct{}),
		quit:         make(chan struct{}),
	}
	peer, err := peerCredentials(uc)
	if err == nil {
		c.peer, c.hasPeer = peer, true
	} else {
		logrus.Debugf("conn %s: peer credentials unavailable: %v", c.id, err)
	}
	go c.readLoop()
	return c
}

func (c *Conn) readLoop() {
	defer close(c.done)
	for {
		m, err := wire.Read(c.uc)
		if err != nil {
			c.err = err
			return
		}
		select {
		case c.inbox <- m:
		case <-c.quit:
			c.err = net.ErrClosed
			return
		}
	}
}

// ID returns the connection's unique id.
func (c *Conn) ID() string { return c.id }

// Peer returns the connecting process's credentials when the platform reports them.
func (c *Conn) Peer() (Peer, bool) { return c.peer, c.hasPeer }

// Recv returns the next decoded message, sim.ErrWouldBlock when none is
// buffered, or the reader's error once the peer is gone and the inbox is empty.
func (c *Conn) Recv() (wire.Message, error) {
	if c.closed.Load() {
		return wire.Message{}, net.ErrClosed
	}
	select {
	case m := <-c.inbox:
		return m, nil
	default:
	}
	select {
	case <-c.done:
		// the reader may have queued a last record before exiting
		select {
		case m := <-c.inbox:
			return m, nil
		default:
		}
		return wire.Message{}, c.err
	default:
		return wire.Message{}, sim.ErrWouldBlock
	}
}

// Send writes m with the configured deadline.
func (c *Conn) Send(m wire.Message) error {
	if c.closed.Load() {
		return net.ErrClosed
	}
	if c.writeTimeout > 0 {
		if err := c.uc.SetWriteDeadline(time.Now().Add(c.writeTimeout)); err != nil {
			return fmt.Errorf("set write deadline: %w", err)
		}
	}
	return wire.Write(c.uc, m)
}

// Closed reports whether Close was called or the peer went away.
func (c *Conn) Closed() bool {
	if c.closed.Load() {
		return true
	}
	select {
	case <-c.done:
		return true
	default:
		return false
	}
}

// Close shuts the socket and stops the reader. Safe to call more than once.
func (c *Conn) Close() error {
	if !c.closed.CompareAndSwap(false, true) {
		return nil
	}
	close(c.quit)
	return c.uc.Close()
}

var _ sim.Channel = (*Conn)(nil)

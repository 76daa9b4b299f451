package transport

import (
	"context"
	"fmt"
	"net"

	"github.com/ossim/ossim/sim/wire"
)

// Client is the application side of a scheduler connection.
type Client struct {
	conn *net.UnixConn
}

// Dial connects to the scheduler socket at path.
func Dial(ctx context.Context, path string) (*Client, error) {
	var d net.Dialer
	c, err := d.DialContext(ctx, "unix", path)
	if err != nil {
		return nil, fmt.Errorf("connect to %s: %w", path, err)
	}
	return &Client{conn: c.(*net.UnixConn)}, nil
}

// Send writes one record.
func (c *Client) Send(m wire.Message) error {
	return wire.Write(c.conn, m)
}

// Recv blocks for one record.
func (c *Client) Recv() (wire.Message, error) {
	return wire.Read(c.conn)
}

// Close closes the connection.
func (c *Client) Close() error {
	return c.conn.Close()
}

// Do sends a RUN or BLOCK request and waits for its ACK and DONE. The wait is
// bounded by ctx's deadline, if any.
func (c *Client) Do(ctx context.Context, req wire.Request, pid int32, timeMs uint32) (ackMsg, doneMsg wire.Message, err error) {
	if req != wire.RequestRun && req != wire.RequestBlock {
		return ackMsg, doneMsg, fmt.Errorf("%w: clients may only send RUN or BLOCK, got %s", wire.ErrUnknownRequest, req)
	}
	// a zero deadline clears any previous one
	deadline, _ := ctx.Deadline()
	if err := c.conn.SetDeadline(deadline); err != nil {
		return ackMsg, doneMsg, err
	}

	if err := c.Send(wire.Message{PID: pid, Request: req, TimeMs: timeMs}); err != nil {
		return ackMsg, doneMsg, fmt.Errorf("send %s: %w", req, err)
	}
	if ackMsg, err = c.expect(wire.RequestAck); err != nil {
		return ackMsg, doneMsg, err
	}
	doneMsg, err = c.expect(wire.RequestDone)
	return ackMsg, doneMsg, err
}

func (c *Client) expect(want wire.Request) (wire.Message, error) {
	m, err := c.Recv()
	if err != nil {
		return m, fmt.Errorf("waiting for %s: %w", want, err)
	}
	if m.Request != want {
		return m, fmt.Errorf("expected %s, got %s", want, m)
	}
	return m, nil
}

// Package transport connects client applications to the scheduler over a
// Unix-domain stream socket. Blocking socket I/O happens on per-connection
// goroutines; the coordinator only ever sees non-blocking sim.Channel and
// sim.Listener calls.
package transport

import (
	"errors"
	"fmt"
	"io/fs"
	"net"
	"os"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
	"golang.org/x/sys/unix"

	"github.com/ossim/ossim/sim"
)

// DefaultSocketPath is where the scheduler listens unless configured otherwise.
const DefaultSocketPath = "/tmp/scheduler.sock"

// Options tunes the socket server.
type Options struct {
	// WriteTimeout bounds every ACK/DONE write so a stalled client cannot hold up a tick.
	WriteTimeout time.Duration
	// Backlog is how many accepted connections may wait for the coordinator.
	Backlog int
	// InboxSize is how many decoded messages a connection buffers before its
	// reader stops pulling from the socket.
	InboxSize int
}

// DefaultOptions returns the settings used by the ossim command.
func DefaultOptions() Options {
	return Options{
		WriteTimeout: 100 * time.Millisecond,
		Backlog:      sim.DefaultMaxClients,
		InboxSize:    16,
	}
}

// Listener accepts clients on a Unix socket and queues them until the
// coordinator asks for them. It implements sim.Listener.
type Listener struct {
	path    string
	opts    Options
	ln      *net.UnixListener
	pending chan *Conn

	quit      chan struct{}
	wg        sync.WaitGroup
	closeOnce sync.Once
}

// Listen removes a stale socket file at path, binds a new one and starts
// accepting connections in the background.
func Listen(path string, opts Options) (*Listener, error) {
	if opts.Backlog <= 0 {
		return nil, fmt.Errorf("backlog must be > 0, got %d", opts.Backlog)
	}
	if opts.InboxSize <= 0 {
		opts.InboxSize = DefaultOptions().InboxSize
	}
	if err := removeStale(path); err != nil {
		return nil, err
	}
	ln, err := net.ListenUnix("unix", &net.UnixAddr{Name: path, Net: "unix"})
	if err != nil {
		return nil, fmt.Errorf("listen on %s: %w", path, err)
	}
	ln.SetUnlinkOnClose(true)

	l := &Listener{
		path:    path,
		opts:    opts,
		ln:      ln,
		pending: make(chan *Conn, opts.Backlog),
		quit:    make(chan struct{}),
	}
	l.wg.Add(1)
	go l.acceptLoop()
	logrus.Infof("Scheduler server listening on %s", path)
	return l, nil
}

// removeStale deletes a leftover socket file. Anything else at path is left
// alone and reported.
func removeStale(path string) error {
	info, err := os.Lstat(path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("stat %s: %w", path, err)
	}
	if info.Mode()&fs.ModeSocket == 0 {
		return fmt.Errorf("%s exists and is not a socket", path)
	}
	if err := os.Remove(path); err != nil {
		return fmt.Errorf("removing stale socket %s: %w", path, err)
	}
	logrus.Debugf("Removed stale socket %s", path)
	return nil
}

// Path returns the socket file path.
func (l *Listener) Path() string { return l.path }

func (l *Listener) acceptLoop() {
	defer l.wg.Done()
	backoff := 5 * time.Millisecond
	for {
		uc, err := l.ln.AcceptUnix()
		if err != nil {
			if errors.Is(err, net.ErrClosed) {
				return
			}
			if errors.Is(err, unix.EMFILE) || errors.Is(err, unix.ENFILE) {
				logrus.Warnf("accept on %s: %v; retrying in %v", l.path, err, backoff)
				select {
				case <-time.After(backoff):
				case <-l.quit:
					return
				}
				if backoff < time.Second {
					backoff *= 2
				}
				continue
			}
			logrus.Warnf("accept on %s: %v", l.path, err)
			continue
		}
		backoff = 5 * time.Millisecond

		c := newConn(uc, l.opts)
		if peer, ok := c.Peer(); ok {
			logrus.Debugf("Accepted conn %s from pid %d (uid %d)", c.ID(), peer.PID, peer.UID)
		}
		select {
		case l.pending <- c:
		case <-l.quit:
			_ = c.Close()
			return
		}
	}
}

// Accept returns up to max connections without blocking.
func (l *Listener) Accept(max int) []sim.Channel {
	var out []sim.Channel
	for len(out) < max {
		select {
		case c := <-l.pending:
			out = append(out, c)
		default:
			return out
		}
	}
	return out
}

// Pending returns the number of accepted connections not yet handed out.
func (l *Listener) Pending() int { return len(l.pending) }

// Close stops accepting, removes the socket file and closes connections that
// were never handed to the coordinator.
func (l *Listener) Close() error {
	var err error
	l.closeOnce.Do(func() {
		close(l.quit)
		err = l.ln.Close()
		l.wg.Wait()
		for {
			select {
			case c := <-l.pending:
				_ = c.Close()
			default:
				logrus.Infof("Stopped listening on %s", l.path)
				return
			}
		}
	})
	return err
}

var _ sim.Listener = (*Listener)(nil)

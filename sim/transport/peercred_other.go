//go:build !linux

package transport

import (
	"errors"
	"net"
)

// Peer identifies the process on the other end of a Unix socket.
type Peer struct {
	PID int32
	UID uint32
	GID uint32
}

func peerCredentials(*net.UnixConn) (Peer, error) {
	return Peer{}, errors.New("peer credentials not supported on this platform")
}

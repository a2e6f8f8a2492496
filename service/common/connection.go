package common

import (
	"io"
)

// Connection is one accepted client stream.
// The peer address is captured at accept time and never changes afterwards.
// A Connection is owned by exactly one handler.
type Connection struct {
	// Conn is the I/O handle of the connection
	Conn io.ReadWriteCloser
	// Host is the numeric host of the peer (empty if unformattable)
	Host string
	// Port is the port of the peer (0 if unformattable)
	Port int
	// Peer is the printable "host:port" form used for logging
	Peer string
}

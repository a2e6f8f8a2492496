// Package tcp implements the TCP listener of the echo service and the address
// formatter used to render peer addresses for logging.
//
// Key Components:
//
//   - BindAndListen: creates, binds and listens on a TCP socket with an exact
//     backlog (socket(2), bind(2), listen(2) via golang.org/x/sys/unix). The
//     reference backlog of 2 is deliberately tiny, bursts beyond it are refused
//     by the OS, not queued by the service.
//
//   - Listener.Accept: blocks until a client connects and returns a
//     common.Connection with the peer address captured at accept time.
//
//   - FormatPeer / PeerString: pure functions turning an IPv4 or IPv6 peer
//     address into "host:port". Other address families are reported as
//     common.ErrUnformattable, never as a panic.
//
// Every setup or accept failure is returned as *common.SocketError carrying the
// OS error number. None of them is retried.
package tcp

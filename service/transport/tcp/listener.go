package tcp

import (
	"fmt"
	"github.com/ValentinKolb/dEcho/service/common"
	"github.com/lni/dragonboat/v4/logger"
	"golang.org/x/sys/unix"
	"net"
	"net/netip"
	"os"
)

var Logger = logger.GetLogger("transport/tcp")

// Listener owns one listening socket and hands out accepted connections
type Listener struct {
	ln net.Listener
}

// NewListener wraps an already listening net.Listener
func NewListener(ln net.Listener) *Listener {
	return &Listener{ln: ln}
}

// --------------------------------------------------------------------------
// Setup
// --------------------------------------------------------------------------

// BindAndListen creates a TCP socket bound to address:port and starts listening on it.
//
// address must be an IPv4 or IPv6 literal or "" / "*" for all interfaces.
// Port 0 selects common.DefaultPort. A backlog < 1 selects common.DefaultBacklog.
//
// The socket is created with raw syscalls because net.Listen always uses the
// system maximum as backlog. All errors are *common.SocketError values of kind
// ErrInvalidAddress, ErrSocketCreateFailed, ErrBindFailed or ErrListenFailed.
func BindAndListen(address string, port int, backlog int) (*Listener, error) {
	sa, domain, err := resolveSockaddr(address, port)
	if err != nil {
		return nil, err
	}
	if backlog < 1 {
		backlog = common.DefaultBacklog
	}

	// Create socket
	fd, err := unix.Socket(domain, unix.SOCK_STREAM, unix.IPPROTO_TCP)
	if err != nil {
		return nil, common.NewSocketError(common.ErrSocketCreateFailed, err)
	}
	unix.CloseOnExec(fd)

	// From here on the fd must be closed on every failure path
	fail := func(kind error, cause error) (*Listener, error) {
		_ = unix.Close(fd)
		return nil, common.NewSocketError(kind, cause)
	}

	if err := unix.SetsockoptInt(fd, unix.SOL_SOCKET, unix.SO_REUSEADDR, 1); err != nil {
		return fail(common.ErrSocketCreateFailed, err)
	}

	if err := unix.Bind(fd, sa); err != nil {
		return fail(common.ErrBindFailed, err)
	}

	if err := unix.Listen(fd, backlog); err != nil {
		return fail(common.ErrListenFailed, err)
	}

	// Hand the socket over to the runtime poller. FileListener dups the fd,
	// so our copy is closed in any case.
	f := os.NewFile(uintptr(fd), fmt.Sprintf("tcp-listener-%d", port))
	ln, err := net.FileListener(f)
	_ = f.Close()
	if err != nil {
		return nil, common.NewSocketError(common.ErrListenFailed, err)
	}

	Logger.Infof("Listening on %s (backlog %d)", ln.Addr(), backlog)

	return NewListener(ln), nil
}

// resolveSockaddr validates address and port and converts them to a socket address
func resolveSockaddr(address string, port int) (unix.Sockaddr, int, error) {
	if port < 0 || port > 65535 {
		return nil, 0, common.NewSocketError(common.ErrInvalidAddress, fmt.Errorf("port %d out of range", port))
	}
	if port == 0 {
		port = common.DefaultPort
	}

	if address == "" || address == "*" {
		address = common.WildcardAddress
	}

	ip, err := netip.ParseAddr(address)
	if err != nil {
		return nil, 0, common.NewSocketError(common.ErrInvalidAddress, err)
	}

	if ip.Is4() {
		return &unix.SockaddrInet4{Port: port, Addr: ip.As4()}, unix.AF_INET, nil
	}

	sa := &unix.SockaddrInet6{Port: port, Addr: ip.As16()}
	if zone := ip.Zone(); zone != "" {
		iface, err := net.InterfaceByName(zone)
		if err != nil {
			return nil, 0, common.NewSocketError(common.ErrInvalidAddress, err)
		}
		sa.ZoneId = uint32(iface.Index)
	}
	return sa, unix.AF_INET6, nil
}

// --------------------------------------------------------------------------
// Accept
// --------------------------------------------------------------------------

// Accept blocks until a client connects. The peer address is captured once.
// Errors are *common.SocketError values of kind ErrAcceptFailed.
func (l *Listener) Accept() (*common.Connection, error) {
	conn, err := l.ln.Accept()
	if err != nil {
		return nil, common.NewSocketError(common.ErrAcceptFailed, err)
	}

	c := &common.Connection{
		Conn: conn,
		Peer: unknownPeer,
	}
	if host, port, err := FormatPeer(conn.RemoteAddr()); err == nil {
		c.Host = host
		c.Port = port
		c.Peer = PeerString(conn.RemoteAddr())
	} else {
		Logger.Debugf("cannot format peer address %v: %v", conn.RemoteAddr(), err)
	}

	return c, nil
}

// Addr returns the address the listener is bound to
func (l *Listener) Addr() net.Addr {
	return l.ln.Addr()
}

// Close closes the listening socket. Blocked Accept calls return with an error.
func (l *Listener) Close() error {
	return l.ln.Close()
}

package tcp

import (
	"errors"
	"net"
	"syscall"
	"testing"
	"time"

	"github.com/ValentinKolb/dEcho/service/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/sys/unix"
)

// freePort returns a port that was free a moment ago
func freePort(t *testing.T, network, address string) int {
	t.Helper()
	ln, err := net.Listen(network, address)
	if err != nil {
		t.Skipf("cannot listen on %s %s: %v", network, address, err)
	}
	port := ln.Addr().(*net.TCPAddr).Port
	require.NoError(t, ln.Close())
	return port
}

func TestBindAndListenInvalidAddress(t *testing.T) {
	for _, address := range []string{"999.999.999.999", "localhost", "1.2.3", "::g", "fe80::1%no-such-iface0"} {
		t.Run(address, func(t *testing.T) {
			l, err := BindAndListen(address, 9000, common.DefaultBacklog)
			require.Error(t, err)
			assert.Nil(t, l)
			assert.True(t, errors.Is(err, common.ErrInvalidAddress), "got %v", err)

			var sockErr *common.SocketError
			require.True(t, errors.As(err, &sockErr))
			assert.Equal(t, common.ErrInvalidAddress, sockErr.Kind)
		})
	}
}

func TestBindAndListenInvalidPort(t *testing.T) {
	for _, port := range []int{-1, 65536, 100000} {
		_, err := BindAndListen("127.0.0.1", port, common.DefaultBacklog)
		assert.True(t, errors.Is(err, common.ErrInvalidAddress), "port %d: got %v", port, err)
	}
}

func TestResolveSockaddrDefaults(t *testing.T) {
	for _, address := range []string{"", "*", "0.0.0.0"} {
		sa, domain, err := resolveSockaddr(address, 0)
		require.NoError(t, err)
		assert.Equal(t, unix.AF_INET, domain)

		in4, ok := sa.(*unix.SockaddrInet4)
		require.True(t, ok)
		assert.Equal(t, common.DefaultPort, in4.Port)
		assert.Equal(t, [4]byte{0, 0, 0, 0}, in4.Addr)
	}

	sa, domain, err := resolveSockaddr("::1", 1234)
	require.NoError(t, err)
	assert.Equal(t, unix.AF_INET6, domain)
	in6, ok := sa.(*unix.SockaddrInet6)
	require.True(t, ok)
	assert.Equal(t, 1234, in6.Port)
	assert.Equal(t, byte(1), in6.Addr[15])
}

func TestBindAndListenAccept(t *testing.T) {
	port := freePort(t, "tcp4", "127.0.0.1:0")

	l, err := BindAndListen("127.0.0.1", port, common.DefaultBacklog)
	require.NoError(t, err)
	defer l.Close()

	assert.Equal(t, port, l.Addr().(*net.TCPAddr).Port)

	accepted := make(chan *common.Connection, 1)
	go func() {
		c, err := l.Accept()
		assert.NoError(t, err)
		accepted <- c
	}()

	client, err := net.Dial("tcp", l.Addr().String())
	require.NoError(t, err)
	defer client.Close()

	select {
	case c := <-accepted:
		require.NotNil(t, c)
		defer c.Conn.Close()
		local := client.LocalAddr().(*net.TCPAddr)
		assert.Equal(t, "127.0.0.1", c.Host)
		assert.Equal(t, local.Port, c.Port)
		assert.Equal(t, local.String(), c.Peer)
	case <-time.After(2 * time.Second):
		t.Fatal("accept did not return")
	}
}

func TestBindAndListenIPv6(t *testing.T) {
	port := freePort(t, "tcp6", "[::1]:0")

	l, err := BindAndListen("::1", port, common.DefaultBacklog)
	require.NoError(t, err)
	defer l.Close()

	go func() {
		if c, err := net.Dial("tcp6", l.Addr().String()); err == nil {
			_ = c.Close()
		}
	}()

	c, err := l.Accept()
	require.NoError(t, err)
	defer c.Conn.Close()
	assert.Equal(t, "::1", c.Host)
	assert.Contains(t, c.Peer, "[::1]:")
}

func TestBindAndListenAddressInUse(t *testing.T) {
	port := freePort(t, "tcp4", "127.0.0.1:0")

	first, err := BindAndListen("127.0.0.1", port, common.DefaultBacklog)
	require.NoError(t, err)
	defer first.Close()

	second, err := BindAndListen("127.0.0.1", port, common.DefaultBacklog)
	require.Error(t, err)
	assert.Nil(t, second)
	assert.True(t, errors.Is(err, common.ErrBindFailed), "got %v", err)
	assert.True(t, errors.Is(err, syscall.EADDRINUSE), "got %v", err)

	var sockErr *common.SocketError
	require.True(t, errors.As(err, &sockErr))
	assert.Equal(t, int(syscall.EADDRINUSE), sockErr.Code)
}

func TestBindAndListenNonLocalAddress(t *testing.T) {
	// TEST-NET-1, never assigned to a local interface
	_, err := BindAndListen("192.0.2.1", 0, common.DefaultBacklog)
	require.Error(t, err)
	assert.True(t, errors.Is(err, common.ErrBindFailed), "got %v", err)
	assert.NotZero(t, common.ErrnoOf(err))
}

func TestAcceptAfterClose(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)

	l := NewListener(ln)
	require.NoError(t, l.Close())

	c, err := l.Accept()
	assert.Nil(t, c)
	require.Error(t, err)
	assert.True(t, errors.Is(err, common.ErrAcceptFailed))
	assert.True(t, errors.Is(err, net.ErrClosed))
}

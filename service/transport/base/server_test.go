package base_test

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"net"
	"sync"
	"sync/atomic"
	"syscall"
	"testing"
	"time"

	"github.com/ValentinKolb/dEcho/lib/sink"
	"github.com/ValentinKolb/dEcho/service/common"
	"github.com/ValentinKolb/dEcho/service/transport/base"
	"github.com/ValentinKolb/dEcho/service/transport/tcp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// --------------------------------------------------------------------------
// Helpers
// --------------------------------------------------------------------------

// observer records connection lifecycle events
type observer struct {
	opened  atomic.Int32
	read    atomic.Int64
	written atomic.Int64
	closed  chan error
}

func newObserver() *observer {
	return &observer{closed: make(chan error, 64)}
}

func (o *observer) Opened()            { o.opened.Add(1) }
func (o *observer) BytesRead(n int)    { o.read.Add(int64(n)) }
func (o *observer) BytesWritten(n int) { o.written.Add(int64(n)) }
func (o *observer) Closed(err error)   { o.closed <- err }

func (o *observer) waitClosed(t *testing.T) error {
	t.Helper()
	select {
	case err := <-o.closed:
		return err
	case <-time.After(3 * time.Second):
		t.Fatal("connection was not closed")
		return nil
	}
}

// startServer starts a dispatcher on a loopback port and returns its address
func startServer(t *testing.T, out sink.ISink, obs base.IConnObserver) (string, chan error) {
	t.Helper()
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)

	l := tcp.NewListener(ln)
	t.Cleanup(func() { _ = l.Close() })

	d := base.NewDispatcher(l, base.NewEchoHandler(common.ReadBufferSize, out, obs))
	errCh := make(chan error, 1)
	go func() { errCh <- d.Serve() }()

	return ln.Addr().String(), errCh
}

func dial(t *testing.T, addr string) *net.TCPConn {
	t.Helper()
	c, err := net.Dial("tcp", addr)
	require.NoError(t, err)
	_ = c.SetDeadline(time.Now().Add(5 * time.Second))
	return c.(*net.TCPConn)
}

// roundTrip sends msg and reads back exactly len(msg) bytes
func roundTrip(t *testing.T, c net.Conn, msg []byte) []byte {
	t.Helper()
	_, err := c.Write(msg)
	require.NoError(t, err)
	got := make([]byte, len(msg))
	_, err = io.ReadFull(c, got)
	require.NoError(t, err)
	return got
}

// --------------------------------------------------------------------------
// Tests
// --------------------------------------------------------------------------

func TestHelloWorld(t *testing.T) {
	obs := newObserver()
	addr, _ := startServer(t, nil, obs)

	c := dial(t, addr)
	assert.Equal(t, "hello", string(roundTrip(t, c, []byte("hello"))))
	assert.Equal(t, "world", string(roundTrip(t, c, []byte("world"))))
	require.NoError(t, c.Close())

	assert.NoError(t, obs.waitClosed(t))
	assert.Equal(t, int64(10), obs.read.Load())
	assert.Equal(t, int64(10), obs.written.Load())

	// the server keeps accepting
	c2 := dial(t, addr)
	defer c2.Close()
	assert.Equal(t, "again", string(roundTrip(t, c2, []byte("again"))))
}

func TestChunkBoundaryIndependence(t *testing.T) {
	addr, _ := startServer(t, nil, nil)

	payload := make([]byte, 10*1024)
	for i := range payload {
		payload[i] = byte(i * 7)
	}

	send := func(chunkSize int) []byte {
		c := dial(t, addr)
		defer c.Close()

		received := make(chan []byte, 1)
		go func() {
			got := make([]byte, len(payload))
			_, err := io.ReadFull(c, got)
			assert.NoError(t, err)
			received <- got
		}()

		for off := 0; off < len(payload); off += chunkSize {
			end := off + chunkSize
			if end > len(payload) {
				end = len(payload)
			}
			_, err := c.Write(payload[off:end])
			require.NoError(t, err)
		}
		return <-received
	}

	assert.Equal(t, payload, send(len(payload)))
	assert.Equal(t, payload, send(1))
	assert.Equal(t, payload, send(13))
}

// lockedBuffer is a bytes.Buffer that may be read while the server writes to it
type lockedBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *lockedBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *lockedBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}

func TestMirrorToSink(t *testing.T) {
	buf := &lockedBuffer{}
	addr, _ := startServer(t, sink.NewSerializedSink(buf), newObserver())

	c := dial(t, addr)
	msg := []byte("mirror me please, this is longer than one buffer")
	assert.Equal(t, msg, roundTrip(t, c, msg))
	require.NoError(t, c.Close())

	// the echo was received, so the sink was written before
	assert.Equal(t, string(msg), buf.String())
}

func TestConcurrentClients(t *testing.T) {
	addr, _ := startServer(t, nil, nil)

	const clients = 10
	var wg sync.WaitGroup
	for i := 0; i < clients; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()

			// the backlog may refuse bursts, retry a few times
			var c net.Conn
			var err error
			for attempt := 0; attempt < 20; attempt++ {
				if c, err = net.Dial("tcp", addr); err == nil {
					break
				}
				time.Sleep(20 * time.Millisecond)
			}
			if !assert.NoError(t, err) {
				return
			}
			defer c.Close()
			_ = c.SetDeadline(time.Now().Add(5 * time.Second))

			for round := 0; round < 5; round++ {
				msg := []byte(fmt.Sprintf("client %d round %d", i, round))
				_, err := c.Write(msg)
				if !assert.NoError(t, err) {
					return
				}
				got := make([]byte, len(msg))
				_, err = io.ReadFull(c, got)
				if !assert.NoError(t, err) {
					return
				}
				assert.Equal(t, msg, got)
			}
		}(i)
	}
	wg.Wait()
}

func TestIsolationOnReset(t *testing.T) {
	obs := newObserver()
	addr, _ := startServer(t, nil, obs)

	healthy := dial(t, addr)
	defer healthy.Close()
	assert.Equal(t, "before", string(roundTrip(t, healthy, []byte("before"))))

	// abort a second connection with RST
	broken := dial(t, addr)
	assert.Equal(t, "x", string(roundTrip(t, broken, []byte("x"))))
	require.NoError(t, broken.SetLinger(0))
	require.NoError(t, broken.Close())

	err := obs.waitClosed(t)
	if err != nil {
		assert.True(t, errors.Is(err, common.ErrReadError) || errors.Is(err, common.ErrWriteError), "got %v", err)
	}

	assert.Equal(t, "after", string(roundTrip(t, healthy, []byte("after"))))
}

func TestServeReturnsAcceptError(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	l := tcp.NewListener(ln)

	d := base.NewDispatcher(l, base.NewEchoHandler(common.ReadBufferSize, nil, nil))
	errCh := make(chan error, 1)
	go func() { errCh <- d.Serve() }()

	time.Sleep(50 * time.Millisecond)
	require.NoError(t, ln.Close())

	select {
	case err := <-errCh:
		require.Error(t, err)
		assert.True(t, errors.Is(err, common.ErrAcceptFailed))
	case <-time.After(3 * time.Second):
		t.Fatal("Serve did not return after the listener was closed")
	}
}

// --------------------------------------------------------------------------
// Close accounting with scripted connections
// --------------------------------------------------------------------------

// scriptedConn fails or ends as configured and counts Close calls
type scriptedConn struct {
	readErr  error
	writeErr error
	data     []byte
	closes   atomic.Int32
}

func (c *scriptedConn) Read(p []byte) (int, error) {
	if len(c.data) > 0 {
		n := copy(p, c.data)
		c.data = c.data[n:]
		return n, nil
	}
	return 0, c.readErr
}

func (c *scriptedConn) Write(p []byte) (int, error) {
	if c.writeErr != nil {
		return 0, c.writeErr
	}
	return len(p), nil
}

func (c *scriptedConn) Close() error {
	c.closes.Add(1)
	return nil
}

// sliceListener hands out the given connections, then fails
type sliceListener struct {
	mu    sync.Mutex
	conns []*common.Connection
}

func (l *sliceListener) Accept() (*common.Connection, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if len(l.conns) == 0 {
		return nil, common.NewSocketError(common.ErrAcceptFailed, syscall.EMFILE)
	}
	c := l.conns[0]
	l.conns = l.conns[1:]
	return c, nil
}

func (l *sliceListener) Addr() net.Addr { return &net.TCPAddr{IP: net.IPv4zero} }
func (l *sliceListener) Close() error   { return nil }

func TestCloseExactlyOncePerExitPath(t *testing.T) {
	eof := &scriptedConn{data: []byte("bye"), readErr: io.EOF}
	readFail := &scriptedConn{data: []byte("oops"), readErr: syscall.ECONNRESET}
	writeFail := &scriptedConn{data: []byte("nope"), readErr: io.EOF, writeErr: syscall.EPIPE}

	l := &sliceListener{conns: []*common.Connection{
		{Conn: eof, Peer: "eof"},
		{Conn: readFail, Peer: "read"},
		{Conn: writeFail, Peer: "write"},
	}}

	obs := newObserver()
	d := base.NewDispatcher(l, base.NewEchoHandler(common.ReadBufferSize, nil, obs))

	err := d.Serve()
	require.Error(t, err)
	assert.True(t, errors.Is(err, common.ErrAcceptFailed))
	assert.Equal(t, int(syscall.EMFILE), common.ErrnoOf(err))

	var results []error
	for i := 0; i < 3; i++ {
		results = append(results, obs.waitClosed(t))
	}

	var nilCount, readCount, writeCount int
	for _, r := range results {
		switch {
		case r == nil:
			nilCount++
		case errors.Is(r, common.ErrReadError):
			readCount++
		case errors.Is(r, common.ErrWriteError):
			writeCount++
		}
	}
	assert.Equal(t, 1, nilCount)
	assert.Equal(t, 1, readCount)
	assert.Equal(t, 1, writeCount)

	for _, c := range []*scriptedConn{eof, readFail, writeFail} {
		assert.Equal(t, int32(1), c.closes.Load())
	}
}

func TestPanickingHandlerIsContained(t *testing.T) {
	first := &scriptedConn{readErr: io.EOF}
	second := &scriptedConn{readErr: io.EOF}
	l := &sliceListener{conns: []*common.Connection{
		{Conn: first, Peer: "first"},
		{Conn: second, Peer: "second"},
	}}

	var handled atomic.Int32
	done := make(chan struct{}, 2)
	d := base.NewDispatcher(l, func(conn *common.Connection) {
		defer func() { done <- struct{}{} }()
		defer conn.Conn.Close()
		if handled.Add(1) == 1 {
			panic("boom")
		}
	})

	err := d.Serve()
	assert.True(t, errors.Is(err, common.ErrAcceptFailed))

	for i := 0; i < 2; i++ {
		select {
		case <-done:
		case <-time.After(3 * time.Second):
			t.Fatal("handler did not finish")
		}
	}
	assert.Equal(t, int32(2), handled.Load())
	assert.Equal(t, int32(1), first.closes.Load())
	assert.Equal(t, int32(1), second.closes.Load())
}

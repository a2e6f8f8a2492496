package base

import (
	"errors"
	"github.com/ValentinKolb/dEcho/lib/sink"
	"github.com/ValentinKolb/dEcho/service/common"
	"github.com/lni/dragonboat/v4/logger"
	"net"
)

var Logger = logger.GetLogger("transport")

// -----------------------------------------------------------
// Interface Definitions for dependency injection
// -----------------------------------------------------------

// IListener is the listening side of a transport (see tcp.Listener)
type IListener interface {
	// Accept blocks until a client connects
	Accept() (*common.Connection, error)
	// Addr returns the bound address
	Addr() net.Addr
	// Close closes the listener
	Close() error
}

// ConnHandleFunc handles one connection. It owns the connection and must close it.
type ConnHandleFunc func(conn *common.Connection)

// -----------------------------------------------------------
// Dispatcher
// -----------------------------------------------------------

// Dispatcher runs the accept loop of a listener and starts one goroutine per connection
type Dispatcher struct {
	listener IListener
	handle   ConnHandleFunc
}

// NewDispatcher creates a dispatcher that hands every accepted connection to handle
func NewDispatcher(listener IListener, handle ConnHandleFunc) *Dispatcher {
	return &Dispatcher{
		listener: listener,
		handle:   handle,
	}
}

// Serve accepts connections until Accept fails. Each connection is handled in
// its own goroutine which is neither awaited nor tracked, there is no limit on
// the number of concurrent connections.
//
// An accept error is fatal: the listener is closed and the error is returned.
func (d *Dispatcher) Serve() error {
	Logger.Infof("Accepting connections on %s", d.listener.Addr())

	for {
		conn, err := d.listener.Accept()
		if err != nil {
			Logger.Errorf("Accept failed. errno=%d: %v", common.ErrnoOf(err), err)
			_ = d.listener.Close()
			return err
		}

		go d.run(conn)
	}
}

// run executes the handler and keeps a panicking handler from taking down the process
func (d *Dispatcher) run(conn *common.Connection) {
	defer func() {
		if r := recover(); r != nil {
			Logger.Errorf("Handler for %s panicked: %v", conn.Peer, r)
		}
	}()
	d.handle(conn)
}

// -----------------------------------------------------------
// Echo Handler
// -----------------------------------------------------------

// IConnObserver is notified about the lifecycle of connections (e.g. for metrics).
// One instance is shared by all handlers and must be safe for concurrent use.
type IConnObserver interface {
	IConnStats
	// Opened is called when a handler starts
	Opened()
	// Closed is called once after the connection was closed, err is the result of EchoLoop
	Closed(err error)
}

// NewEchoHandler returns a ConnHandleFunc running EchoLoop with a private read buffer
// of bufferSize bytes. out and observer may be nil.
//
// The connection is closed exactly once on every exit path.
func NewEchoHandler(bufferSize int, out sink.ISink, observer IConnObserver) ConnHandleFunc {
	if bufferSize < 1 {
		bufferSize = common.ReadBufferSize
	}

	return func(conn *common.Connection) {
		var stats IConnStats
		if observer != nil {
			observer.Opened()
			stats = observer
		}

		Logger.Infof("Accepted a connection from %s", conn.Peer)

		var err error
		defer func() {
			if cErr := conn.Conn.Close(); cErr != nil {
				Logger.Debugf("Close of %s failed: %v", conn.Peer, cErr)
			}
			if observer != nil {
				observer.Closed(err)
			}
			Logger.Infof("Connection closed %s", conn.Peer)
		}()

		// the buffer is private to this connection
		buf := make([]byte, bufferSize)

		err = EchoLoop(conn.Conn, buf, out, stats)

		switch {
		case err == nil:
		case errors.Is(err, common.ErrReadError):
			Logger.Errorf("Read error: errno=%d client %s: %v", common.ErrnoOf(err), conn.Peer, err)
		case errors.Is(err, common.ErrWriteError):
			Logger.Errorf("Write error: errno=%d client %s: %v", common.ErrnoOf(err), conn.Peer, err)
		default:
			Logger.Errorf("Connection error client %s: %v", conn.Peer, err)
		}
	}
}

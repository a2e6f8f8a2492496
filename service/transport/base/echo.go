package base

import (
	"errors"
	"github.com/ValentinKolb/dEcho/lib/sink"
	"github.com/ValentinKolb/dEcho/service/common"
	"io"
)

// IConnStats receives byte counts of one connection. It must be safe for concurrent use,
// as one instance is shared by all handlers.
type IConnStats interface {
	// BytesRead is called after every successful read
	BytesRead(n int)
	// BytesWritten is called after every successful write
	BytesWritten(n int)
}

// EchoLoop reads from conn into buf and writes every chunk back until the peer
// closes the stream (nil is returned) or an I/O error occurs (a *common.SocketError
// of kind ErrReadError or ErrWriteError is returned).
//
// buf is reused for every read and never resized. If out is not nil, every chunk
// is mirrored to it before it is written back, errors of out are ignored.
// stats may be nil.
//
// EchoLoop does not close conn, this is up to the caller.
func EchoLoop(conn io.ReadWriter, buf []byte, out sink.ISink, stats IConnStats) error {
	if len(buf) == 0 {
		return common.NewSocketError(common.ErrReadError, io.ErrShortBuffer)
	}

	for {
		n, readErr := conn.Read(buf)

		if n > 0 {
			if stats != nil {
				stats.BytesRead(n)
			}

			// mirroring is best effort and must never abort the echo
			if out != nil {
				_, _ = out.Write(buf[:n])
			}

			if err := writeAll(conn, buf[:n], stats); err != nil {
				return common.NewSocketError(common.ErrWriteError, err)
			}
		}

		if readErr != nil {
			if errors.Is(readErr, io.EOF) {
				return nil
			}
			return common.NewSocketError(common.ErrReadError, readErr)
		}
	}
}

// writeAll writes p completely, a single Write may transfer fewer bytes than requested
func writeAll(w io.Writer, p []byte, stats IConnStats) error {
	for sent := 0; sent < len(p); {
		n, err := w.Write(p[sent:])
		if n > 0 {
			sent += n
			if stats != nil {
				stats.BytesWritten(n)
			}
		}
		if err != nil {
			return err
		}
		if n <= 0 {
			// no progress and no error would loop forever
			return io.ErrShortWrite
		}
	}
	return nil
}

// Package base implements the transport independent core of the echo service:
// the accept loop (Dispatcher) and the per connection echo loop (EchoLoop).
//
// Concurrency model:
//
//   - Dispatcher.Serve runs a single sequential accept loop. Accept calls are
//     never concurrent with each other.
//
//   - Every accepted connection is handled by its own goroutine. The goroutine
//     is fire and forget: it is not joined, not tracked and not limited. Its only
//     externally observable completion signal is the closed connection.
//
//   - There are no timeouts. A silent client keeps its goroutine and socket for
//     as long as it stays connected.
//
// Echo loop:
//
//	read up to len(buf) bytes
//	  0 bytes / EOF  -> done, no error
//	  error          -> ErrReadError
//	  n bytes        -> mirror buf[:n] to the sink (best effort)
//	                    write buf[:n] back, repeating short writes until all n
//	                    bytes are sent; any write error -> ErrWriteError
//	repeat
//
// The read buffer is private to one connection and is deliberately small
// (common.ReadBufferSize), so partial reads and writes are the normal case.
//
// Errors:
//
//	Connection errors are logged with the peer address and the errno and never
//	leave the handler goroutine. An accept error ends Serve and is returned to
//	the caller, it is not retried.
package base

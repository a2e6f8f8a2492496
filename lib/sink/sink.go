// Package sink provides the local output sinks the echo service mirrors received bytes to.
//
// A sink receives every chunk a connection reads, exactly len(p) bytes, no
// terminator. Sinks are shared by all connection handlers and therefore must be
// safe for concurrent use. Whatever serialization is needed lives inside the
// sink, never in the caller. Errors returned by a sink are ignored by the echo
// path, mirroring is best effort.
//
// Implementations:
//
//   - NewSerializedSink: writes through to an io.Writer under a mutex. Chunks of
//     different connections never interleave within one chunk.
//
//   - NewAsyncSink: copies the chunk onto a lock-free MPSC queue, a single writer
//     goroutine drains it. Write never blocks on the underlying writer.
package sink

import (
	"github.com/lni/dragonboat/v4/logger"
	"io"
	"sync"
)

var Logger = logger.GetLogger("sink")

// ISink is the local output sink of the echo service
type ISink interface {
	io.Writer
}

// --------------------------------------------------------------------------
// Serialized Sink
// --------------------------------------------------------------------------

type serializedSink struct {
	mu sync.Mutex
	w  io.Writer
}

// NewSerializedSink wraps w so it can be written to from many goroutines
func NewSerializedSink(w io.Writer) ISink {
	return &serializedSink{w: w}
}

func (s *serializedSink) Write(p []byte) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.w.Write(p)
}

package sink

import (
	"io"
	"sync/atomic"
)

// AsyncSink decouples the echo path from a possibly slow writer.
// Write copies the chunk and returns immediately, a single goroutine writes
// the chunks to the underlying writer.
type AsyncSink struct {
	w       io.Writer
	queue   *mpscQueue[[]byte]
	dropped atomic.Uint64
	failed  atomic.Uint64
}

// NewAsyncSink creates the sink and starts its writer goroutine.
// Close must be called to stop the goroutine.
func NewAsyncSink(w io.Writer) *AsyncSink {
	s := &AsyncSink{w: w}
	s.queue = newMPSCQueue[[]byte](s.deliver)
	return s
}

// Write enqueues a copy of p. The buffer of the caller is reused, so the copy is mandatory.
// Writes after Close are dropped.
func (s *AsyncSink) Write(p []byte) (int, error) {
	if len(p) == 0 {
		return 0, nil
	}
	chunk := make([]byte, len(p))
	copy(chunk, p)
	if !s.queue.push(&chunk) {
		s.dropped.Add(1)
		return 0, io.ErrClosedPipe
	}
	return len(p), nil
}

// deliver runs on the writer goroutine
func (s *AsyncSink) deliver(chunk *[]byte) {
	if _, err := s.w.Write(*chunk); err != nil {
		// only log the first failure, a broken stdout would otherwise flood the log
		if s.failed.Add(1) == 1 {
			Logger.Warningf("failed to write to sink: %v", err)
		}
	}
}

// Pending returns the approximate number of chunks not yet written
func (s *AsyncSink) Pending() int {
	return s.queue.size()
}

// Dropped returns the number of chunks rejected because the sink was closed
func (s *AsyncSink) Dropped() uint64 {
	return s.dropped.Load()
}

// Close flushes all queued chunks and stops the writer goroutine
func (s *AsyncSink) Close() error {
	s.queue.close()
	return nil
}

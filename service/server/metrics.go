package server

import (
	"errors"
	"github.com/ValentinKolb/dEcho/lib/sink"
	"github.com/ValentinKolb/dEcho/service/common"
	"github.com/VictoriaMetrics/metrics"
	"github.com/puzpuzpuz/xsync/v3"
	"io"
	"net"
	"net/http"
	"time"
)

// serverMetrics implements base.IConnObserver and exposes the counters in Prometheus format
type serverMetrics struct {
	set *metrics.Set

	accepted     *metrics.Counter
	closed       *metrics.Counter
	bytesRead    *metrics.Counter
	bytesWritten *metrics.Counter
	readErrors   *metrics.Counter
	writeErrors  *metrics.Counter

	// active is updated by every handler, xsync.Counter avoids contention on a single word
	active *xsync.Counter
}

func newServerMetrics() *serverMetrics {
	set := metrics.NewSet()
	m := &serverMetrics{
		set:          set,
		accepted:     set.NewCounter("decho_connections_accepted_total"),
		closed:       set.NewCounter("decho_connections_closed_total"),
		bytesRead:    set.NewCounter("decho_bytes_read_total"),
		bytesWritten: set.NewCounter("decho_bytes_written_total"),
		readErrors:   set.NewCounter(`decho_connection_errors_total{kind="read"}`),
		writeErrors:  set.NewCounter(`decho_connection_errors_total{kind="write"}`),
		active:       xsync.NewCounter(),
	}
	set.NewGauge("decho_connections_active", func() float64 {
		return float64(m.active.Value())
	})
	return m
}

// --------------------------------------------------------------------------
// Interface Methods (docu see base.IConnObserver)
// --------------------------------------------------------------------------

func (m *serverMetrics) Opened() {
	m.accepted.Inc()
	m.active.Inc()
}

func (m *serverMetrics) BytesRead(n int) {
	m.bytesRead.Add(n)
}

func (m *serverMetrics) BytesWritten(n int) {
	m.bytesWritten.Add(n)
}

func (m *serverMetrics) Closed(err error) {
	switch {
	case errors.Is(err, common.ErrReadError):
		m.readErrors.Inc()
	case errors.Is(err, common.ErrWriteError):
		m.writeErrors.Inc()
	}
	m.closed.Inc()
	// last, so an observed active count of 0 implies all counters are final
	m.active.Dec()
}

// --------------------------------------------------------------------------
// Exposition
// --------------------------------------------------------------------------

// Active returns the number of currently open connections
func (m *serverMetrics) Active() int64 {
	return m.active.Value()
}

// WritePrometheus writes all server metrics plus the process metrics to w
func (m *serverMetrics) WritePrometheus(w io.Writer) {
	m.set.WritePrometheus(w)
	metrics.WriteProcessMetrics(w)
}

// registerSink exposes the queue state of an async sink
func (m *serverMetrics) registerSink(s *sink.AsyncSink) {
	m.set.NewGauge("decho_sink_pending_chunks", func() float64 {
		return float64(s.Pending())
	})
	m.set.NewGauge("decho_sink_dropped_chunks", func() float64 {
		return float64(s.Dropped())
	})
}

// listenAndServe binds endpoint and serves the metrics under /metrics in the background.
// Bind errors are returned, the returned server must be shut down by the caller.
func (m *serverMetrics) listenAndServe(endpoint string) (*http.Server, error) {
	ln, err := net.Listen("tcp", endpoint)
	if err != nil {
		return nil, err
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/metrics", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "text/plain; version=0.0.4")
		m.WritePrometheus(w)
	})

	srv := &http.Server{
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	Logger.Infof("Serving metrics on http://%s/metrics", ln.Addr())

	go func() {
		if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			Logger.Errorf("Metrics server stopped: %v", err)
		}
	}()
	return srv, nil
}

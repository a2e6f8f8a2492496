package server

import (
	"context"
	"fmt"
	"github.com/ValentinKolb/dEcho/lib/sink"
	"github.com/ValentinKolb/dEcho/service/common"
	"github.com/ValentinKolb/dEcho/service/transport/base"
	"github.com/ValentinKolb/dEcho/service/transport/tcp"
	"github.com/lni/dragonboat/v4/logger"
	"io"
	"net/http"
	"time"
)

var Logger = logger.GetLogger("server")

// shutdownTimeout bounds the shutdown of the metrics endpoint
const shutdownTimeout = 5 * time.Second

// EchoServer wires listener, dispatcher, echo handler, sink and metrics together
type EchoServer struct {
	config  common.ServerConfig
	mirror  io.Writer
	sink    sink.ISink
	closers []io.Closer
	metrics *serverMetrics

	// metricsServer is set while the metrics endpoint is running
	metricsServer *http.Server
}

// NewEchoServer creates a new echo server.
// If config.EchoLocal is set, received bytes are mirrored to mirror (usually os.Stdout).
//
// Usage:
//
//	s := server.NewEchoServer(common.DefaultServerConfig(), os.Stdout)
//
//	if err := s.Serve(); err != nil {
//		os.Exit(1)
//	}
func NewEchoServer(config common.ServerConfig, mirror io.Writer) *EchoServer {
	return &EchoServer{
		config:  config,
		mirror:  mirror,
		metrics: newServerMetrics(),
	}
}

// init validates the config, initializes the loggers and creates the sink.
// It has no side effects outside the process.
func (s *EchoServer) init() error {
	if err := s.config.Validate(); err != nil {
		return err
	}

	if err := common.InitLoggers(s.config.LogLevel); err != nil {
		return err
	}

	Logger.Infof("Created echo server")
	Logger.Infof("%s", s.config.String())

	if s.config.EchoLocal && s.mirror != nil {
		switch s.config.SinkMode {
		case common.SinkModeAsync:
			async := sink.NewAsyncSink(s.mirror)
			s.metrics.registerSink(async)
			s.sink = async
			s.closers = append(s.closers, async)
		default:
			s.sink = sink.NewSerializedSink(s.mirror)
		}
	}

	return nil
}

// Serve binds the configured address and runs the accept loop.
// It only returns on a fatal setup or accept error and must be called at most once.
func (s *EchoServer) Serve() error {
	if err := s.init(); err != nil {
		return err
	}
	defer s.close()

	listener, err := tcp.BindAndListen(s.config.BindAddress, s.config.Port, s.config.Backlog)
	if err != nil {
		Logger.Errorf("Listener setup failed. errno=%d: %v", common.ErrnoOf(err), err)
		return fmt.Errorf("failed to create listener: %w", err)
	}

	return s.serve(listener)
}

// ServeListener runs the accept loop on an existing listener.
// Like Serve it must be called at most once.
func (s *EchoServer) ServeListener(listener base.IListener) error {
	if err := s.init(); err != nil {
		return err
	}
	defer s.close()

	return s.serve(listener)
}

// serve starts the metrics endpoint (if configured) and runs the accept loop.
// The metrics endpoint is only bound once the echo listener exists.
func (s *EchoServer) serve(listener base.IListener) error {
	if s.config.MetricsEndpoint != "" {
		srv, err := s.metrics.listenAndServe(s.config.MetricsEndpoint)
		if err != nil {
			_ = listener.Close()
			Logger.Errorf("Metrics endpoint setup failed: %v", err)
			return fmt.Errorf("failed to start metrics endpoint: %w", err)
		}
		s.metricsServer = srv
	}

	handler := base.NewEchoHandler(s.config.ReadBufferSize, s.sink, s.metrics)
	return base.NewDispatcher(listener, handler).Serve()
}

// close stops the metrics endpoint and releases the sink.
// Handlers still running may lose their last chunks.
func (s *EchoServer) close() {
	if s.metricsServer != nil {
		ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		if err := s.metricsServer.Shutdown(ctx); err != nil {
			Logger.Warningf("failed to stop metrics server: %v", err)
		}
		cancel()
		s.metricsServer = nil
	}

	for _, c := range s.closers {
		if err := c.Close(); err != nil {
			Logger.Warningf("failed to close: %v", err)
		}
	}
}

// ActiveConnections returns the number of currently open connections
func (s *EchoServer) ActiveConnections() int64 {
	return s.metrics.Active()
}

// WriteMetrics writes the server metrics in Prometheus text format
func (s *EchoServer) WriteMetrics(w io.Writer) {
	s.metrics.WritePrometheus(w)
}

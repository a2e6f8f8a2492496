// Package server wires the echo service together: listener setup, the accept
// loop, the per connection echo handler, the optional local output sink and the
// server metrics.
//
// Usage Example:
//
//	config := common.DefaultServerConfig()
//	config.Port = 9000
//	config.EchoLocal = true
//
//	s := server.NewEchoServer(config, os.Stdout)
//	if err := s.Serve(); err != nil {
//	  log.Fatalf("Server error: %v", err)
//	}
//
// Serve only returns on fatal errors: listener setup (invalid address, socket,
// bind or listen failure) or a failed accept. There is no graceful shutdown.
//
// Metrics:
//
//	decho_connections_accepted_total          accepted connections
//	decho_connections_closed_total            closed connections
//	decho_connections_active                  currently open connections
//	decho_bytes_read_total                    bytes received from clients
//	decho_bytes_written_total                 bytes echoed back
//	decho_connection_errors_total{kind=...}   read / write errors
//	decho_sink_pending_chunks                 chunks queued in the async sink
//	decho_sink_dropped_chunks                 chunks the async sink rejected after close
//
// If ServerConfig.MetricsEndpoint is set, the metrics are served in Prometheus
// text format under /metrics on that address. The endpoint is bound after the
// echo listener and shut down when Serve returns.
package server

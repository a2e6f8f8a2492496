// Package client implements a simple client for the echo service
package client

import (
	"fmt"
	"github.com/ValentinKolb/dEcho/service/common"
	"github.com/lni/dragonboat/v4/logger"
	"io"
	"net"
	"time"
)

var Logger = logger.GetLogger("client")

// EchoClient is a single connection to an echo server. It is not safe for concurrent use.
type EchoClient struct {
	conn    net.Conn
	timeout time.Duration
}

// NewEchoClient connects to config.Endpoint
func NewEchoClient(config common.ClientConfig) (*EchoClient, error) {
	dialer := net.Dialer{Timeout: config.Timeout()}
	conn, err := dialer.Dial("tcp", config.Endpoint)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to %s: %w", config.Endpoint, err)
	}

	Logger.Debugf("connected to %s from %s", conn.RemoteAddr(), conn.LocalAddr())

	return &EchoClient{
		conn:    conn,
		timeout: config.Timeout(),
	}, nil
}

// Echo sends payload and waits until the same number of bytes was received back.
// The returned bytes are what the server sent, they are not compared to payload.
func (c *EchoClient) Echo(payload []byte) ([]byte, error) {
	if c.timeout > 0 {
		if err := c.conn.SetDeadline(time.Now().Add(c.timeout)); err != nil {
			return nil, fmt.Errorf("failed to set deadline: %w", err)
		}
	}

	// read concurrently, large payloads would otherwise fill both socket buffers
	type result struct {
		data []byte
		err  error
	}
	resCh := make(chan result, 1)
	go func() {
		buf := make([]byte, len(payload))
		_, err := io.ReadFull(c.conn, buf)
		resCh <- result{data: buf, err: err}
	}()

	if _, err := c.conn.Write(payload); err != nil {
		// unblock the reader
		_ = c.conn.SetReadDeadline(time.Now())
		<-resCh
		return nil, fmt.Errorf("failed to send: %w", err)
	}

	res := <-resCh
	if res.err != nil {
		return nil, fmt.Errorf("failed to receive echo: %w", res.err)
	}
	return res.data, nil
}

// LocalAddr returns the local address of the connection
func (c *EchoClient) LocalAddr() net.Addr {
	return c.conn.LocalAddr()
}

// Close closes the connection
func (c *EchoClient) Close() error {
	return c.conn.Close()
}

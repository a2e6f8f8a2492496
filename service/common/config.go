package common

import (
	"fmt"
	"net/netip"
	"strings"
	"time"
)

// --------------------------------------------------------------------------
// Defaults
// --------------------------------------------------------------------------

const (
	// DefaultPort is used when no port (or port 0) is configured
	DefaultPort = 8001

	// DefaultBacklog is the listen backlog. It is deliberately tiny, bursts of more
	// than DefaultBacklog pending connections are refused by the OS.
	DefaultBacklog = 2

	// ReadBufferSize is the capacity of the per connection read buffer. It is kept
	// small on purpose so that partial reads and writes actually happen.
	ReadBufferSize = 32

	// WildcardAddress is the bind address meaning "all interfaces"
	WildcardAddress = "0.0.0.0"
)

// --------------------------------------------------------------------------
// Server configuration struct
// --------------------------------------------------------------------------

// SinkMode selects how received bytes are mirrored locally
type SinkMode string

const (
	SinkModeSerialized SinkMode = "serialized"
	SinkModeAsync      SinkMode = "async"
)

// ServerConfig holds all configuration parameters of the echo server
type ServerConfig struct {
	// Listener settings
	BindAddress string
	Port        int
	Backlog     int

	// Echo settings
	ReadBufferSize int
	EchoLocal      bool
	SinkMode       SinkMode

	// Metrics endpoint (disabled if empty)
	MetricsEndpoint string

	// Logging configuration
	LogLevel string
}

// DefaultServerConfig returns the reference configuration
func DefaultServerConfig() ServerConfig {
	return ServerConfig{
		BindAddress:    "",
		Port:           DefaultPort,
		Backlog:        DefaultBacklog,
		ReadBufferSize: ReadBufferSize,
		SinkMode:       SinkModeSerialized,
		LogLevel:       "info",
	}
}

// Validate checks the configuration for values the listener or the handler cannot work with
func (c *ServerConfig) Validate() error {
	if c.BindAddress != "" && c.BindAddress != "*" {
		if _, err := netip.ParseAddr(c.BindAddress); err != nil {
			return fmt.Errorf("%w: %v", ErrInvalidAddress, err)
		}
	}
	if c.Port < 0 || c.Port > 65535 {
		return fmt.Errorf("%w: port %d out of range [0, 65535]", ErrInvalidAddress, c.Port)
	}
	if c.ReadBufferSize < 1 {
		return fmt.Errorf("read buffer size must be positive, got %d", c.ReadBufferSize)
	}
	switch c.SinkMode {
	case SinkModeSerialized, SinkModeAsync:
	default:
		return fmt.Errorf("invalid sink mode: %s (expected one of: serialized, async)", c.SinkMode)
	}
	if _, err := ParseLogLevel(c.LogLevel); err != nil {
		return err
	}
	return nil
}

// String returns a formatted string representation of the configuration
func (c *ServerConfig) String() string {
	var sb strings.Builder

	// Create helper functions for consistent formatting
	addSection := func(title string) {
		sb.WriteString("\n")
		sb.WriteString(fmt.Sprintf("%s\n", strings.ToUpper(title)))
	}

	addField := func(name, value string) {
		sb.WriteString(fmt.Sprintf("  %-22s: %s\n", name, value))
	}

	bindAddress := c.BindAddress
	if bindAddress == "" {
		bindAddress = WildcardAddress + " (any)"
	}

	// Listener settings
	addSection("Listener")
	addField("Bind Address", bindAddress)
	addField("Port", fmt.Sprintf("%d", c.Port))
	addField("Backlog", fmt.Sprintf("%d", c.Backlog))

	// Echo settings
	addSection("Echo")
	addField("Read Buffer", fmt.Sprintf("%d bytes", c.ReadBufferSize))
	addField("Echo Local", fmt.Sprintf("%t", c.EchoLocal))
	if c.EchoLocal {
		addField("Sink Mode", string(c.SinkMode))
	}

	// Metrics
	addSection("Metrics")
	if c.MetricsEndpoint == "" {
		addField("Endpoint", "disabled")
	} else {
		addField("Endpoint", c.MetricsEndpoint)
	}

	// Logging configuration
	addSection("Logging")
	addField("Log Level", c.LogLevel)

	return sb.String()
}

// --------------------------------------------------------------------------
// Client configuration struct
// --------------------------------------------------------------------------

type ClientConfig struct {
	Endpoint      string
	TimeoutSecond int
	LogLevel      string
}

// Timeout returns the configured timeout as duration (0 means no timeout)
func (c *ClientConfig) Timeout() time.Duration {
	return time.Duration(c.TimeoutSecond) * time.Second
}

// String returns a formatted string representation of the client configuration
func (c *ClientConfig) String() string {
	var sb strings.Builder

	addSection := func(title string) {
		sb.WriteString("\n")
		sb.WriteString(fmt.Sprintf("%s\n", strings.ToUpper(title)))
	}

	addField := func(name, value string) {
		sb.WriteString(fmt.Sprintf("  %-22s: %s\n", name, value))
	}

	addSection("Client Configuration")
	addField("Endpoint", c.Endpoint)
	addField("Timeout", fmt.Sprintf("%d sec", c.TimeoutSecond))
	addField("Log Level", c.LogLevel)

	return sb.String()
}

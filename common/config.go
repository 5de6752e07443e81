package common

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// --------------------------------------------------------------------------
// Client configuration struct
// --------------------------------------------------------------------------

// Defaults applied by NewClientConfig
const (
	DefaultHost          = "localhost"
	DefaultPort          = 2424
	DefaultSerialization = "csv"
	DefaultLogLevel      = "info"

	// DefaultConnectTimeout bounds the TCP dial plus the protocol handshake
	DefaultConnectTimeout = 10 * time.Second
	// DefaultWriteTimeout bounds one frame write on the socket
	DefaultWriteTimeout = 1 * time.Second
	// DefaultReadTimeout bounds one read poll; reads retry on timeout as
	// long as the socket stays healthy, so this is not a response deadline
	DefaultReadTimeout = 30 * time.Second
)

// ClientConfig holds all connection parameters for one server endpoint.
type ClientConfig struct {
	// Server endpoint
	Host string
	Port int

	// Serialization is the record format negotiated on db open
	// ("csv" or "binary")
	Serialization string

	// StrictProtocol refuses the handshake when the server reports a
	// newer protocol version than this client supports. When false the
	// mismatch is logged and the session continues on a best-effort basis.
	StrictProtocol bool

	// Socket deadlines
	ConnectTimeout time.Duration
	WriteTimeout   time.Duration
	ReadTimeout    time.Duration

	// Logging configuration
	LogLevel string
}

// NewClientConfig creates a configuration with all defaults applied
func NewClientConfig() ClientConfig {
	return ClientConfig{
		Host:           DefaultHost,
		Port:           DefaultPort,
		Serialization:  DefaultSerialization,
		ConnectTimeout: DefaultConnectTimeout,
		WriteTimeout:   DefaultWriteTimeout,
		ReadTimeout:    DefaultReadTimeout,
		LogLevel:       DefaultLogLevel,
	}
}

// Address returns the host:port dial target
func (c *ClientConfig) Address() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

// String returns a formatted string representation of the configuration
func (c *ClientConfig) String() string {
	var sb strings.Builder

	// Create helper functions for consistent formatting
	addSection := func(title string) {
		sb.WriteString("\n")
		sb.WriteString(fmt.Sprintf("%s\n", strings.ToUpper(title)))
	}

	addField := func(name, value string) {
		sb.WriteString(fmt.Sprintf("  %-22s: %s\n", name, value))
	}

	addSection("Server")
	addField("Host", c.Host)
	addField("Port", strconv.Itoa(c.Port))

	addSection("Session")
	addField("Serialization", c.Serialization)
	addField("Strict Protocol", strconv.FormatBool(c.StrictProtocol))

	addSection("Timeouts")
	addField("Connect", c.ConnectTimeout.String())
	addField("Write", c.WriteTimeout.String())
	addField("Read Poll", c.ReadTimeout.String())

	addSection("Logging")
	addField("Log Level", c.LogLevel)

	return sb.String()
}

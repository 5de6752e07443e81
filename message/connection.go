package message

import (
	"github.com/gorient/gorient/oerror"
	"github.com/gorient/gorient/proto"
	"github.com/gorient/gorient/serializer"
	"github.com/gorient/gorient/transport"
)

// Driver identification sent during connect and db open
const (
	DriverName    = "gorient"
	DriverVersion = "1.0.0"
)

// --------------------------------------------------------------------------
// Connect
// --------------------------------------------------------------------------

// ConnectParams are the parameters of a server-level authentication.
// ClientID is optional and reported to the server for its own logs.
type ConnectParams struct {
	User     string
	Password string
	ClientID string

	// Serialization is the record format announced for the session
	Serialization serializer.Format
	// UseToken requests token-based session auth
	UseToken bool
}

// Validate checks the parameters before any byte is sent
func (p *ConnectParams) Validate() error {
	if p.User == "" {
		return oerror.NewUsageError("connect requires a user name")
	}
	return nil
}

// Connect authenticates against the server itself (no database opened).
// On success the fresh session id and token are stored on the connection.
type Connect struct {
	msg    *Message
	params ConnectParams
}

// NewConnect creates a connect request
func NewConnect(conn *transport.Connection, params ConnectParams) *Connect {
	return &Connect{msg: NewMessage(conn, proto.OpConnect), params: params}
}

// Execute runs the full request/response round trip
func (c *Connect) Execute() error {
	if err := c.Send(); err != nil {
		return err
	}
	return c.FetchResponse()
}

// Send validates the parameters and writes the request
func (c *Connect) Send() error {
	if err := c.params.Validate(); err != nil {
		return err
	}
	c.msg.Append(
		proto.NewString(DriverName),
		proto.NewString(DriverVersion),
		proto.NewShort(proto.SupportedProtocol),
		proto.NewString(c.params.ClientID),
		proto.NewString(c.params.Serialization.WireName()),
		proto.NewBoolean(c.params.UseToken),
		proto.NewString(c.params.User),
		proto.NewString(c.params.Password),
	)
	return c.msg.Send()
}

// FetchResponse reads the response; the session id and token are
// consumed by the response header handling.
func (c *Connect) FetchResponse() error {
	_, err := c.msg.BeginResponse()
	return err
}

// --------------------------------------------------------------------------
// Shutdown
// --------------------------------------------------------------------------

// ShutdownParams carry the server-level credentials required to stop
// the remote server.
type ShutdownParams struct {
	User     string
	Password string
}

// Validate checks the parameters before any byte is sent
func (p *ShutdownParams) Validate() error {
	if p.User == "" {
		return oerror.NewUsageError("shutdown requires a user name")
	}
	return nil
}

// Shutdown asks the remote server process to stop. Requires server-level
// credentials regardless of the session's own authentication.
type Shutdown struct {
	msg    *Message
	params ShutdownParams
}

// NewShutdown creates a shutdown request
func NewShutdown(conn *transport.Connection, params ShutdownParams) *Shutdown {
	return &Shutdown{msg: NewMessage(conn, proto.OpShutdown), params: params}
}

// Execute runs the full request/response round trip
func (s *Shutdown) Execute() error {
	if err := s.params.Validate(); err != nil {
		return err
	}
	s.msg.Append(
		proto.NewString(s.params.User),
		proto.NewString(s.params.Password),
	)
	if err := s.msg.Send(); err != nil {
		return err
	}
	_, err := s.msg.BeginResponse()
	return err
}

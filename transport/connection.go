// Package transport owns the TCP socket to the server: dialing, the
// version handshake, framed reads and writes, and the session state
// that lives for exactly as long as the socket does.
//
// Every fatal I/O error closes the socket and resets the session, so a
// failed connection is never half-alive: the next operation fails fast
// with a state error instead of hanging on a dead peer.
package transport

import (
	"encoding/binary"
	"errors"
	"io"
	"net"
	"sync"
	"time"

	"github.com/lni/dragonboat/v4/logger"

	"github.com/gorient/gorient/common"
	"github.com/gorient/gorient/oerror"
	"github.com/gorient/gorient/proto"
)

var log = logger.GetLogger("transport")

// --------------------------------------------------------------------------
// Connection
// --------------------------------------------------------------------------

// Connection is one TCP connection to a server, plus the protocol and
// session state negotiated over it. It implements proto.ByteSource so
// response decoders can read typed fields straight off the socket.
//
// A Connection is not safe for concurrent use: the wire protocol is
// strictly request/response on a single stream, so callers serialize.
type Connection struct {
	mu   sync.Mutex
	conn net.Conn
	cfg  common.ClientConfig

	connected bool
	protocol  int16

	// session state, assigned by connect/db_open responses
	sessionID int32
	token     []byte
	dbName    string

	// inTransaction suppresses response reads for buffered record ops
	inTransaction bool
}

// Dial opens a TCP connection to the configured endpoint and performs
// the protocol handshake.
func Dial(cfg common.ClientConfig) (*Connection, error) {
	conn, err := net.DialTimeout("tcp", cfg.Address(), cfg.ConnectTimeout)
	if err != nil {
		return nil, oerror.NewConnectionError("dial", cfg.Address(), err)
	}
	log.Debugf("connected to %s", cfg.Address())

	c := NewConnection(conn, cfg)
	if err := c.Handshake(); err != nil {
		return nil, err
	}
	return c, nil
}

// NewConnection wraps an already-established stream (used by tests to
// inject a net.Pipe end). The handshake has not been performed yet.
func NewConnection(conn net.Conn, cfg common.ClientConfig) *Connection {
	return &Connection{
		conn:      conn,
		cfg:       cfg,
		connected: true,
		protocol:  -1,
		sessionID: proto.NoSessionID,
	}
}

// Handshake reads the server's 2-byte protocol version announcement.
// A server version above the supported one fails the handshake in
// strict mode and is logged otherwise.
func (c *Connection) Handshake() error {
	buf, err := c.Read(2)
	if err != nil {
		return oerror.NewConnectionError("handshake", "reading protocol version", err)
	}
	version := int16(binary.BigEndian.Uint16(buf))
	if version <= 0 {
		c.shutdown()
		return oerror.NewProtocolError("server announced invalid protocol version %d", version)
	}

	if version > proto.SupportedProtocol {
		if c.cfg.StrictProtocol {
			c.shutdown()
			return &oerror.UnsupportedProtocolError{Server: version, Supported: proto.SupportedProtocol}
		}
		log.Warningf("server protocol %d is newer than supported %d, continuing anyway",
			version, proto.SupportedProtocol)
	}

	c.mu.Lock()
	c.protocol = version
	c.mu.Unlock()
	log.Debugf("handshake complete, protocol version %d", version)
	return nil
}

// --------------------------------------------------------------------------
// I/O
// --------------------------------------------------------------------------

// Write sends buf on the socket under the configured write deadline.
// Any write failure is fatal for the connection.
func (c *Connection) Write(buf []byte) error {
	if !c.Connected() {
		return oerror.NewStateError("not connected")
	}

	if c.cfg.WriteTimeout > 0 {
		if err := c.conn.SetWriteDeadline(deadline(c.cfg.WriteTimeout)); err != nil {
			c.shutdown()
			return oerror.NewConnectionError("write", "setting deadline", err)
		}
	}
	if _, err := c.conn.Write(buf); err != nil {
		c.shutdown()
		return oerror.NewConnectionError("write", "socket send failed", err)
	}
	return nil
}

// Read returns exactly n bytes from the socket, implementing
// proto.ByteSource. Read polls in bounded intervals: a poll timeout is
// not an error (the server may legitimately take long to answer), it
// just starts the next poll. A closed peer or any other socket error
// is fatal.
func (c *Connection) Read(n int) ([]byte, error) {
	if !c.Connected() {
		return nil, oerror.NewStateError("not connected")
	}
	if n < 0 {
		return nil, oerror.NewProtocolError("negative read of %d bytes", n)
	}

	buf := make([]byte, n)
	got := 0
	for got < n {
		if c.cfg.ReadTimeout > 0 {
			if err := c.conn.SetReadDeadline(deadline(c.cfg.ReadTimeout)); err != nil {
				c.shutdown()
				return nil, oerror.NewConnectionError("read", "setting deadline", err)
			}
		}
		m, err := c.conn.Read(buf[got:])
		got += m
		if err != nil {
			var nerr net.Error
			if errors.As(err, &nerr) && nerr.Timeout() {
				log.Debugf("read poll timed out after %d of %d bytes, retrying", got, n)
				continue
			}
			c.shutdown()
			if errors.Is(err, io.EOF) {
				return nil, oerror.NewConnectionError("read", "peer closed the connection", nil)
			}
			return nil, oerror.NewConnectionError("read", "socket receive failed", err)
		}
		if m == 0 {
			// readable socket yielding zero bytes means the peer is gone
			c.shutdown()
			return nil, oerror.NewConnectionError("read", "peer closed the connection", nil)
		}
	}
	return buf, nil
}

// Close shuts the socket down and resets all session state. Closing an
// already-closed connection is a no-op.
func (c *Connection) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.connected {
		return nil
	}
	return c.closeLocked()
}

func (c *Connection) shutdown() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.connected {
		_ = c.closeLocked()
	}
}

func (c *Connection) closeLocked() error {
	c.connected = false
	c.protocol = -1
	c.sessionID = proto.NoSessionID
	c.token = nil
	c.dbName = ""
	c.inTransaction = false
	err := c.conn.Close()
	log.Debugf("connection closed")
	return err
}

func deadline(d time.Duration) time.Time { return time.Now().Add(d) }

// --------------------------------------------------------------------------
// Session State
// --------------------------------------------------------------------------

// Connected reports whether the socket is usable
func (c *Connection) Connected() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.connected
}

// Protocol returns the negotiated protocol version, -1 before the handshake
func (c *Connection) Protocol() int16 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.protocol
}

// SessionID returns the current session id, NoSessionID when unauthenticated
func (c *Connection) SessionID() int32 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.sessionID
}

// Token returns the session token, nil when token auth is not in use
func (c *Connection) Token() []byte {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.token
}

// SetSession stores the session id and token assigned by a
// session-establishing response. An empty token keeps the previous one
// (the server only resends it when it rotates).
func (c *Connection) SetSession(id int32, token []byte) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.sessionID = id
	if len(token) > 0 {
		c.token = token
	}
}

// HasSession reports whether an authenticated session exists
func (c *Connection) HasSession() bool {
	return c.SessionID() != proto.NoSessionID
}

// DBName returns the name of the open database, empty when none is open
func (c *Connection) DBName() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.dbName
}

// SetDBName records which database the session has open
func (c *Connection) SetDBName(name string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.dbName = name
}

// DBOpen reports whether a database is open on this session
func (c *Connection) DBOpen() bool {
	return c.DBName() != ""
}

// InTransaction reports whether record operations are being buffered
func (c *Connection) InTransaction() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.inTransaction
}

// SetInTransaction toggles transaction buffering mode
func (c *Connection) SetInTransaction(v bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.inTransaction = v
}

// Config returns the configuration the connection was dialed with
func (c *Connection) Config() common.ClientConfig {
	return c.cfg
}

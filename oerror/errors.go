package oerror

import (
	"fmt"
	"strings"
)

// --------------------------------------------------------------------------
// Connection Errors
// --------------------------------------------------------------------------

// ConnectionError reports a socket-level failure. The transport closes
// the underlying socket before returning one of these, so every
// subsequent call on the same connection fails fast.
type ConnectionError struct {
	Op  string // the socket operation that failed ("dial", "handshake", "read", "write")
	Err error  // underlying cause, may be nil (e.g. peer closed)
	Msg string
}

func (e *ConnectionError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("connection error during %s: %s: %v", e.Op, e.Msg, e.Err)
	}
	return fmt.Sprintf("connection error during %s: %s", e.Op, e.Msg)
}

func (e *ConnectionError) Unwrap() error { return e.Err }

// NewConnectionError creates a new ConnectionError
func NewConnectionError(op, msg string, err error) *ConnectionError {
	return &ConnectionError{Op: op, Msg: msg, Err: err}
}

// --------------------------------------------------------------------------
// Protocol Errors
// --------------------------------------------------------------------------

// ProtocolError reports a wire-grammar violation: a declared length out
// of bounds, a truncated stream or an unknown discriminator. Once raised
// the stream is permanently desynchronized and the connection is closed.
type ProtocolError struct {
	Msg string
}

func (e *ProtocolError) Error() string {
	return fmt.Sprintf("protocol error: %s", e.Msg)
}

// NewProtocolError creates a new ProtocolError with a formatted message
func NewProtocolError(format string, args ...interface{}) *ProtocolError {
	return &ProtocolError{Msg: fmt.Sprintf(format, args...)}
}

// UnsupportedProtocolError is raised during the handshake when the
// server speaks a newer protocol version than this client supports and
// strict version checking is enabled.
type UnsupportedProtocolError struct {
	Server    int16
	Supported int16
}

func (e *UnsupportedProtocolError) Error() string {
	return fmt.Sprintf("server protocol version %d is newer than the highest supported version %d",
		e.Server, e.Supported)
}

// --------------------------------------------------------------------------
// Local Errors (raised before any byte is sent)
// --------------------------------------------------------------------------

// UsageError reports invalid parameters passed by the caller, e.g. an
// unknown record type or a missing async callback. It is raised during
// request validation, before anything is written to the socket.
type UsageError struct {
	Msg string
}

func (e *UsageError) Error() string {
	return fmt.Sprintf("usage error: %s", e.Msg)
}

// NewUsageError creates a new UsageError with a formatted message
func NewUsageError(format string, args ...interface{}) *UsageError {
	return &UsageError{Msg: fmt.Sprintf(format, args...)}
}

// StateError reports that the connection is in the wrong state for the
// requested operation (not connected, or no database open). Like
// UsageError it is raised before any byte is sent.
type StateError struct {
	Msg string
}

func (e *StateError) Error() string {
	return fmt.Sprintf("state error: %s", e.Msg)
}

// NewStateError creates a new StateError with a formatted message
func NewStateError(format string, args ...interface{}) *StateError {
	return &StateError{Msg: fmt.Sprintf(format, args...)}
}

// --------------------------------------------------------------------------
// Server Errors
// --------------------------------------------------------------------------

// ServerException is one element of the exception chain the server
// sends on an error response.
type ServerException struct {
	Class   string // server-side exception class name
	Message string
}

// ServerError is an error reported by the server through the response
// status byte. The connection remains usable afterwards.
type ServerError struct {
	Exceptions []ServerException
}

func (e *ServerError) Error() string {
	if len(e.Exceptions) == 0 {
		return "server error"
	}
	parts := make([]string, len(e.Exceptions))
	for i, ex := range e.Exceptions {
		parts[i] = fmt.Sprintf("%s: %s", ex.Class, ex.Message)
	}
	return "server error: " + strings.Join(parts, "; caused by ")
}

// First returns the outermost exception of the chain
func (e *ServerError) First() ServerException {
	if len(e.Exceptions) == 0 {
		return ServerException{}
	}
	return e.Exceptions[0]
}

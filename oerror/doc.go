// Package oerror defines the error kinds surfaced by the client.
//
// The protocol distinguishes failures that kill the connection from
// failures that leave it usable, and local misuse from errors reported
// by the server. Each kind gets its own type so callers can match with
// errors.As instead of inspecting message strings:
//
//   - ConnectionError: socket-level failure. Always fatal, the
//     connection is closed and marked disconnected before it propagates.
//   - ProtocolError: the byte stream violated the wire grammar. Fatal
//     for the same reason - the stream cannot be re-synchronized.
//   - UnsupportedProtocolError: the server negotiated a newer protocol
//     version than this client understands (raised only in strict mode).
//   - UsageError: invalid arguments detected before any byte is sent.
//     Fully recoverable, the connection is untouched.
//   - StateError: the operation requires an active connection or an
//     open database and neither holds. Connection untouched.
//   - ServerError: the server answered with an error status. Carries
//     the decoded exception chain. The connection remains usable.
package oerror

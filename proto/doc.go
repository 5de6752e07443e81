// Package proto implements the primitive layer of the binary wire
// protocol: the fixed set of typed fields every message is composed of,
// plus the operation codes and wire-level enums.
//
// The protocol has no self-describing framing beyond per-field lengths.
// Fixed-width integers are big-endian, strings and byte blobs carry a
// 4-byte signed length prefix where -1 encodes null and 0 encodes
// empty. Encoding is pure (Field values in, bytes out); decoding pulls
// exact byte counts from a ByteSource, so the same Decoder works over a
// live connection and over an in-memory buffer in tests.
package proto

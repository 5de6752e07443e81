// Package serializer defines the record serialization contract the
// protocol core depends on, plus the formats a session can negotiate.
//
// The wire protocol itself never looks inside record content: it ships
// the encoded bytes opaquely. Which codec produced them is negotiated
// once at connect time and fixed for the lifetime of the session.
package serializer

import (
	"github.com/gorient/gorient/oerror"
	"github.com/gorient/gorient/otypes"
)

// --------------------------------------------------------------------------
// Formats
// --------------------------------------------------------------------------

// Format identifies a record serialization format
type Format uint8

const (
	// FormatCSV is the server's compact textual document encoding
	FormatCSV Format = iota
	// FormatBinary is the server's binary document encoding
	FormatBinary
)

// WireName returns the serialization implementation name sent to the
// server during db open.
func (f Format) WireName() string {
	switch f {
	case FormatCSV:
		return "ORecordDocument2csv"
	case FormatBinary:
		return "ORecordSerializerBinary"
	default:
		return "unknown"
	}
}

// ParseFormat resolves a format by its short configuration name
func ParseFormat(name string) (Format, error) {
	switch name {
	case "csv":
		return FormatCSV, nil
	case "binary":
		return FormatBinary, nil
	default:
		return 0, oerror.NewUsageError("invalid serialization format %q (must be csv or binary)", name)
	}
}

// --------------------------------------------------------------------------
// Codec Contract
// --------------------------------------------------------------------------

// ICodec is the contract between the protocol core and a record
// serialization implementation.
type ICodec interface {
	// Encode serializes a record's class name and field map into the
	// content bytes shipped on the wire
	Encode(rec *otypes.Record) ([]byte, error)
	// Decode parses content bytes into the class name (empty when the
	// record carries none) and the field map
	Decode(content []byte) (class string, fields map[string]interface{}, err error)
}

// ByFormat resolves the codec implementing a format. The binary format
// is negotiable on the wire but has no codec in this client yet, so
// selecting it fails up front rather than on the first record.
func ByFormat(f Format) (ICodec, error) {
	switch f {
	case FormatCSV:
		return &csvCodec{}, nil
	case FormatBinary:
		return nil, oerror.NewUsageError("the binary record format has no codec implementation")
	default:
		return nil, oerror.NewUsageError("unknown serialization format %d", f)
	}
}

package proto

import (
	"encoding/binary"

	"github.com/gorient/gorient/oerror"
)

// --------------------------------------------------------------------------
// Byte Sources
// --------------------------------------------------------------------------

// ByteSource supplies exact-length reads. The transport connection
// implements it over the socket; Buffer implements it over a slice so
// decoding is unit-testable without I/O.
type ByteSource interface {
	// Read returns exactly n bytes or an error, never a short result
	Read(n int) ([]byte, error)
}

// Buffer is an in-memory ByteSource over a byte slice
type Buffer struct {
	data []byte
	off  int
}

// NewBuffer creates a Buffer reading from data
func NewBuffer(data []byte) *Buffer { return &Buffer{data: data} }

// Read returns the next n bytes of the buffer. Reading past the end
// fails with a protocol error, mirroring a truncated stream.
func (b *Buffer) Read(n int) ([]byte, error) {
	if n < 0 {
		return nil, oerror.NewProtocolError("negative read of %d bytes", n)
	}
	if b.off+n > len(b.data) {
		return nil, oerror.NewProtocolError("stream ended after %d of %d expected bytes", len(b.data)-b.off, n)
	}
	out := b.data[b.off : b.off+n]
	b.off += n
	return out, nil
}

// Remaining returns the number of unconsumed bytes
func (b *Buffer) Remaining() int { return len(b.data) - b.off }

// --------------------------------------------------------------------------
// Decoder
// --------------------------------------------------------------------------

// Decoder reads typed fields from a ByteSource in the exact order the
// response grammar declares them. There is no lookahead and no recovery:
// a single mis-ordered read desynchronizes the stream for good.
type Decoder struct {
	src      ByteSource
	consumed int
}

// NewDecoder creates a Decoder over src
func NewDecoder(src ByteSource) *Decoder { return &Decoder{src: src} }

// Consumed returns the total number of bytes read so far
func (d *Decoder) Consumed() int { return d.consumed }

func (d *Decoder) read(n int) ([]byte, error) {
	buf, err := d.src.Read(n)
	if err != nil {
		return nil, err
	}
	d.consumed += n
	return buf, nil
}

// ReadByte reads a single byte
func (d *Decoder) ReadByte() (byte, error) {
	buf, err := d.read(1)
	if err != nil {
		return 0, err
	}
	return buf[0], nil
}

// ReadChar reads a single character byte
func (d *Decoder) ReadChar() (byte, error) { return d.ReadByte() }

// ReadBoolean reads a 1-byte boolean and rejects values other than 0 and 1
func (d *Decoder) ReadBoolean() (bool, error) {
	b, err := d.ReadByte()
	if err != nil {
		return false, err
	}
	switch b {
	case 0:
		return false, nil
	case 1:
		return true, nil
	default:
		return false, oerror.NewProtocolError("invalid boolean value 0x%02x", b)
	}
}

// ReadShort reads a big-endian signed 16-bit integer
func (d *Decoder) ReadShort() (int16, error) {
	buf, err := d.read(2)
	if err != nil {
		return 0, err
	}
	return int16(binary.BigEndian.Uint16(buf)), nil
}

// ReadInt reads a big-endian signed 32-bit integer
func (d *Decoder) ReadInt() (int32, error) {
	buf, err := d.read(4)
	if err != nil {
		return 0, err
	}
	return int32(binary.BigEndian.Uint32(buf)), nil
}

// ReadLong reads a big-endian signed 64-bit integer
func (d *Decoder) ReadLong() (int64, error) {
	buf, err := d.read(8)
	if err != nil {
		return 0, err
	}
	return int64(binary.BigEndian.Uint64(buf)), nil
}

// ReadBytes reads a length-prefixed byte blob. The null sentinel (-1)
// yields a nil slice, length 0 an empty one.
func (d *Decoder) ReadBytes() ([]byte, error) {
	n, err := d.ReadInt()
	if err != nil {
		return nil, err
	}
	switch {
	case n == -1:
		return nil, nil
	case n < -1:
		return nil, oerror.NewProtocolError("illegal negative field length %d", n)
	case n > MaxVarLength:
		return nil, oerror.NewProtocolError("field length %d exceeds the %d byte limit", n, MaxVarLength)
	case n == 0:
		return []byte{}, nil
	}
	buf, err := d.read(int(n))
	if err != nil {
		return nil, err
	}
	out := make([]byte, n)
	copy(out, buf)
	return out, nil
}

// ReadString reads a length-prefixed UTF-8 string. Both the null
// sentinel and length 0 yield the empty string.
func (d *Decoder) ReadString() (string, error) {
	buf, err := d.ReadBytes()
	if err != nil {
		return "", err
	}
	return string(buf), nil
}

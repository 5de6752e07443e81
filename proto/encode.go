package proto

import (
	"encoding/binary"

	"github.com/gorient/gorient/oerror"
)

// --------------------------------------------------------------------------
// Field Construction
// --------------------------------------------------------------------------

// Field is one pending encode directive: a type tag plus the value to
// write. Messages collect fields in declaration order and the encoder
// emits them back to back, exactly as declared.
type Field struct {
	Tag   Tag
	Value interface{}
}

// NewBoolean creates a boolean field (encoded as a single 0/1 byte)
func NewBoolean(v bool) Field { return Field{Tag: TagBoolean, Value: v} }

// NewByte creates a single-byte field
func NewByte(v byte) Field { return Field{Tag: TagByte, Value: v} }

// NewChar creates a single-character field
func NewChar(v byte) Field { return Field{Tag: TagChar, Value: v} }

// NewShort creates a 16-bit big-endian signed integer field
func NewShort(v int16) Field { return Field{Tag: TagShort, Value: v} }

// NewInt creates a 32-bit big-endian signed integer field
func NewInt(v int32) Field { return Field{Tag: TagInt, Value: v} }

// NewLong creates a 64-bit big-endian signed integer field
func NewLong(v int64) Field { return Field{Tag: TagLong, Value: v} }

// NewString creates a length-prefixed UTF-8 string field
func NewString(v string) Field { return Field{Tag: TagString, Value: v} }

// NewBytes creates a length-prefixed byte blob field. A nil slice
// encodes the null sentinel (-1 length), an empty one encodes length 0.
func NewBytes(v []byte) Field { return Field{Tag: TagBytes, Value: v} }

// NewNullBytes creates the null byte blob field (-1 length, no payload)
func NewNullBytes() Field { return Field{Tag: TagBytes, Value: []byte(nil)} }

// --------------------------------------------------------------------------
// Encoding
// --------------------------------------------------------------------------

// Encode appends the wire representation of f to dst and returns the
// extended slice. The only legal negative length is the null sentinel,
// which is produced automatically for nil byte slices.
func Encode(dst []byte, f Field) ([]byte, error) {
	switch f.Tag {
	case TagBoolean:
		v, ok := f.Value.(bool)
		if !ok {
			return nil, encodeTypeError(f)
		}
		if v {
			return append(dst, 1), nil
		}
		return append(dst, 0), nil

	case TagByte, TagChar:
		v, ok := f.Value.(byte)
		if !ok {
			return nil, encodeTypeError(f)
		}
		return append(dst, v), nil

	case TagShort:
		v, ok := f.Value.(int16)
		if !ok {
			return nil, encodeTypeError(f)
		}
		return binary.BigEndian.AppendUint16(dst, uint16(v)), nil

	case TagInt:
		v, ok := f.Value.(int32)
		if !ok {
			return nil, encodeTypeError(f)
		}
		return binary.BigEndian.AppendUint32(dst, uint32(v)), nil

	case TagLong:
		v, ok := f.Value.(int64)
		if !ok {
			return nil, encodeTypeError(f)
		}
		return binary.BigEndian.AppendUint64(dst, uint64(v)), nil

	case TagString:
		v, ok := f.Value.(string)
		if !ok {
			return nil, encodeTypeError(f)
		}
		if len(v) > MaxVarLength {
			return nil, oerror.NewUsageError("string field of %d bytes exceeds the %d byte limit", len(v), MaxVarLength)
		}
		dst = binary.BigEndian.AppendUint32(dst, uint32(len(v)))
		return append(dst, v...), nil

	case TagBytes:
		v, ok := f.Value.([]byte)
		if !ok {
			return nil, encodeTypeError(f)
		}
		if v == nil {
			// null sentinel
			return binary.BigEndian.AppendUint32(dst, uint32(0xFFFFFFFF)), nil
		}
		if len(v) > MaxVarLength {
			return nil, oerror.NewUsageError("bytes field of %d bytes exceeds the %d byte limit", len(v), MaxVarLength)
		}
		dst = binary.BigEndian.AppendUint32(dst, uint32(len(v)))
		return append(dst, v...), nil

	default:
		return nil, oerror.NewUsageError("cannot encode unknown field tag %d", f.Tag)
	}
}

// EncodeAll appends every field in order and returns the extended slice
func EncodeAll(dst []byte, fields []Field) ([]byte, error) {
	var err error
	for _, f := range fields {
		if dst, err = Encode(dst, f); err != nil {
			return nil, err
		}
	}
	return dst, nil
}

func encodeTypeError(f Field) error {
	return oerror.NewUsageError("field tag %s cannot encode value of type %T", f.Tag, f.Value)
}

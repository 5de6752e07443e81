package otypes

import (
	"fmt"
	"sort"
	"strings"
)

// Reserved field keys hoisted into dedicated attributes when a record
// is built from a plain map (e.g. query projections like "select @rid,
// @version from v").
const (
	KeyRID     = "@rid"
	KeyVersion = "@version"
	KeyClass   = "@class"
)

// VersionUnset is the sentinel for a record whose version the server
// has not assigned yet.
const VersionUnset int32 = -1

// Record is one stored document/row: identity, version, optional class
// name and the field map. The field map never contains the reserved
// metadata keys - those are hoisted at construction time.
type Record struct {
	RID     RID
	Version int32
	Class   string
	Fields  map[string]interface{}
}

// NewEmptyRecord creates a record with no identity, no class and an
// empty field map.
func NewEmptyRecord() *Record {
	return &Record{
		RID:     NewRID(),
		Version: VersionUnset,
		Fields:  map[string]interface{}{},
	}
}

// NewRecord creates a record from a plain field map, hoisting the
// reserved metadata keys into the dedicated attributes.
func NewRecord(fields map[string]interface{}) *Record {
	rec := NewEmptyRecord()
	for key, value := range fields {
		switch key {
		case KeyRID:
			switch v := value.(type) {
			case RID:
				rec.RID = v
			case string:
				if rid, err := ParseRID(v); err == nil {
					rec.RID = rid
				}
			}
		case KeyVersion:
			switch v := value.(type) {
			case int32:
				rec.Version = v
			case int:
				rec.Version = int32(v)
			case int64:
				rec.Version = int32(v)
			}
		case KeyClass:
			if v, ok := value.(string); ok {
				rec.Class = v
			}
		default:
			rec.Fields[key] = value
		}
	}
	return rec
}

// NewRecordOfClass creates a record of the given class from a plain
// field map.
func NewRecordOfClass(class string, fields map[string]interface{}) *Record {
	rec := NewRecord(fields)
	rec.Class = class
	return rec
}

// SetIdentity assigns the server-provided identity and version after a
// create/update round trip. Called by the response handlers.
func (r *Record) SetIdentity(rid RID, version int32) {
	r.RID = rid
	r.Version = version
}

// String renders the record for logs and the CLI
func (r *Record) String() string {
	var sb strings.Builder
	sb.WriteByte('{')
	if r.Class != "" {
		fmt.Fprintf(&sb, "'@%s':", r.Class)
	}

	// deterministic field order
	keys := make([]string, 0, len(r.Fields))
	for k := range r.Fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	sb.WriteByte('{')
	for i, k := range keys {
		if i > 0 {
			sb.WriteByte(',')
		}
		fmt.Fprintf(&sb, "%s:%v", k, r.Fields[k])
	}
	sb.WriteByte('}')

	if r.Version != VersionUnset {
		fmt.Fprintf(&sb, ",'version':%d", r.Version)
	}
	if r.RID.IsValid() {
		fmt.Fprintf(&sb, ",'rid':'%s'", r.RID)
	}
	sb.WriteByte('}')
	return sb.String()
}

// CollectionChange is one entry of the out-of-band trailer returned by
// record create/update: an index/collection page that was touched as a
// side effect of the operation.
type CollectionChange struct {
	UUIDMostSig  int64
	UUIDLeastSig int64
	FileID       int64
	PageIndex    int64
	PageOffset   int32
}

// Cluster describes one storage partition of the open database. Type
// and segment are only populated by legacy protocol versions.
type Cluster struct {
	Name string
	ID   int16
	Type string
}

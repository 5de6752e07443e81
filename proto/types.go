package proto

// --------------------------------------------------------------------------
// Field Tags
// --------------------------------------------------------------------------

// Tag identifies one of the primitive wire types a field can have.
type Tag uint8

const (
	TagBoolean Tag = iota + 1 // 1 byte, 0 or 1
	TagByte                   // 1 byte, signed
	TagShort                  // 2 bytes, big-endian signed
	TagInt                    // 4 bytes, big-endian signed
	TagLong                   // 8 bytes, big-endian signed
	TagBytes                  // 4-byte signed length prefix + payload, -1 = null
	TagString                 // same convention as TagBytes, UTF-8 payload
	TagChar                   // 1 byte, printable
)

// String returns the name of a tag for error messages and logging.
func (t Tag) String() string {
	switch t {
	case TagBoolean:
		return "boolean"
	case TagByte:
		return "byte"
	case TagShort:
		return "short"
	case TagInt:
		return "int"
	case TagLong:
		return "long"
	case TagBytes:
		return "bytes"
	case TagString:
		return "string"
	case TagChar:
		return "char"
	default:
		return "unknown"
	}
}

// MaxVarLength is the sanity bound for length-prefixed fields. A decoded
// length above this is treated as stream desynchronization, not data.
const MaxVarLength = 64 * 1024 * 1024

// --------------------------------------------------------------------------
// Operation Codes
// --------------------------------------------------------------------------

// Op is the 1-byte operation code leading every request.
type Op byte

const (
	OpShutdown             Op = 1
	OpConnect              Op = 2
	OpDbOpen               Op = 3
	OpDbCreate             Op = 4
	OpDbClose              Op = 5
	OpDbExists             Op = 6
	OpDbDrop               Op = 7
	OpDbSize               Op = 8
	OpDbCountRecords       Op = 9
	OpClusterAdd           Op = 10
	OpClusterDrop          Op = 11
	OpClusterCount         Op = 12
	OpClusterDataRange     Op = 13
	OpRecordLoad           Op = 30
	OpRecordCreate         Op = 31
	OpRecordUpdate         Op = 32
	OpRecordDelete         Op = 33
	OpCommand              Op = 41
	OpTxCommit             Op = 60
	OpDbReload             Op = 73
	OpDbList               Op = 74
)

// String returns the verb-style name of an operation.
func (o Op) String() string {
	if info, ok := Operations[o]; ok {
		return info.Name
	}
	return "unknown"
}

// OpInfo describes one protocol operation. The table below is the
// explicit operation registry: every supported op appears here and
// nowhere is an operation resolved by name at runtime.
type OpInfo struct {
	Name string
	// RequiresDB marks operations valid only against an open database.
	RequiresDB bool
	// RequiresSession marks operations valid only on an authenticated session.
	RequiresSession bool
	// EstablishesSession marks operations whose response carries a fresh
	// session id and token in the response header.
	EstablishesSession bool
}

// Operations is the fixed registry of every operation this client speaks.
var Operations = map[Op]OpInfo{
	OpShutdown:         {Name: "shutdown", RequiresSession: true},
	OpConnect:          {Name: "connect", EstablishesSession: true},
	OpDbOpen:           {Name: "db_open", EstablishesSession: true},
	OpDbCreate:         {Name: "db_create", RequiresSession: true},
	OpDbClose:          {Name: "db_close", RequiresSession: true},
	OpDbExists:         {Name: "db_exists", RequiresSession: true},
	OpDbDrop:           {Name: "db_drop", RequiresSession: true},
	OpDbSize:           {Name: "db_size", RequiresDB: true, RequiresSession: true},
	OpDbCountRecords:   {Name: "db_count_records", RequiresDB: true, RequiresSession: true},
	OpClusterAdd:       {Name: "data_cluster_add", RequiresDB: true, RequiresSession: true},
	OpClusterDrop:      {Name: "data_cluster_drop", RequiresDB: true, RequiresSession: true},
	OpClusterCount:     {Name: "data_cluster_count", RequiresDB: true, RequiresSession: true},
	OpClusterDataRange: {Name: "data_cluster_data_range", RequiresDB: true, RequiresSession: true},
	OpRecordLoad:       {Name: "record_load", RequiresDB: true, RequiresSession: true},
	OpRecordCreate:     {Name: "record_create", RequiresDB: true, RequiresSession: true},
	OpRecordUpdate:     {Name: "record_update", RequiresDB: true, RequiresSession: true},
	OpRecordDelete:     {Name: "record_delete", RequiresDB: true, RequiresSession: true},
	OpCommand:          {Name: "command", RequiresDB: true, RequiresSession: true},
	OpTxCommit:         {Name: "tx_commit", RequiresDB: true, RequiresSession: true},
	OpDbReload:         {Name: "db_reload", RequiresDB: true, RequiresSession: true},
	OpDbList:           {Name: "db_list", RequiresSession: true},
}

// --------------------------------------------------------------------------
// Wire-Level Constants
// --------------------------------------------------------------------------

const (
	// SupportedProtocol is the highest protocol version this client understands.
	SupportedProtocol int16 = 38

	// Response status bytes
	StatusOK    byte = 0
	StatusError byte = 1

	// NoSessionID is the session id sent before one has been assigned.
	NoSessionID int32 = -1
)

// Command execution modes
const (
	ModeSync  byte = 's'
	ModeAsync byte = 'a'
)

// Record operation modes (synchronous waits for the answer)
const (
	RecordModeSync  byte = 0
	RecordModeAsync byte = 1
)

// Synchronous command result discriminators
const (
	ResultNull       byte = 'n'
	ResultRecord     byte = 'r'
	ResultWrapped    byte = 'w' // single record wrapping a scalar in its "result" field
	ResultSerialized byte = 'a'
	ResultList       byte = 'l'
)

// Asynchronous command stream discriminators
const (
	AsyncDone     byte = 0
	AsyncRecord   byte = 1
	AsyncPrefetch byte = 2
)

// Record markers inside result payloads
const (
	RecordMarkerFull int16 = 0
	RecordMarkerNull int16 = -2
	RecordMarkerRID  int16 = -3
)

// Record types
const (
	RecordTypeBytes    byte = 'b'
	RecordTypeDocument byte = 'd'
	RecordTypeFlat     byte = 'f'
)

// ValidRecordType reports whether b names a known record type.
func ValidRecordType(b byte) bool {
	return b == RecordTypeBytes || b == RecordTypeDocument || b == RecordTypeFlat
}

// Database types
const (
	DbTypeDocument = "document"
	DbTypeGraph    = "graph"
)

// ValidDbType reports whether s names a known database type.
func ValidDbType(s string) bool {
	return s == DbTypeDocument || s == DbTypeGraph
}

// Storage types
const (
	StoragePLocal = "plocal"
	StorageMemory = "memory"
)

// ValidStorageType reports whether s names a known storage type.
func ValidStorageType(s string) bool {
	return s == StoragePLocal || s == StorageMemory
}

// Cluster types
const (
	ClusterPhysical = "PHYSICAL"
	ClusterMemory   = "MEMORY"
)

// ValidClusterType reports whether s names a known cluster type.
func ValidClusterType(s string) bool {
	return s == ClusterPhysical || s == ClusterMemory
}

// Command implementation class names carried in the command payload.
const (
	QuerySync    = "com.orientechnologies.orient.core.sql.query.OSQLSynchQuery"
	QueryAsync   = "com.orientechnologies.orient.core.sql.query.OSQLAsynchQuery"
	QueryCommand = "com.orientechnologies.orient.core.sql.OCommandSQL"
	QueryGremlin = "com.orientechnologies.orient.graph.gremlin.OCommandGremlin"
	QueryScript  = "com.orientechnologies.orient.core.command.script.OCommandScript"
)

// ValidQueryClass reports whether s names a known command class.
func ValidQueryClass(s string) bool {
	switch s {
	case QuerySync, QueryAsync, QueryCommand, QueryGremlin, QueryScript:
		return true
	}
	return false
}

// Record update version policies
const (
	// VersionPolicyIncrement updates the document and increments the
	// version without any version check.
	VersionPolicyIncrement int32 = -1
	// VersionPolicyNone updates the document without version check or increment.
	VersionPolicyNone int32 = -2
	// VersionPolicyRollback is used internally for transaction rollback
	// (version decrement).
	VersionPolicyRollback int32 = -3
	// Policies >= 0 request an optimistic check against that exact version.
)

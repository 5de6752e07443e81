package message

import (
	"github.com/gorient/gorient/oerror"
	"github.com/gorient/gorient/otypes"
	"github.com/gorient/gorient/proto"
	"github.com/gorient/gorient/serializer"
	"github.com/gorient/gorient/transport"
)

// The three mutating record operations share one transaction rule:
// while the connection is flagged in-transaction the server sends no
// individual response, so Send skips the wire entirely and
// FetchResponse returns without consuming a single byte. The buffered
// operation is replayed by the transaction commit message later.

// --------------------------------------------------------------------------
// Record Load
// --------------------------------------------------------------------------

// RecordLoadParams address the record to load and control the fetch.
type RecordLoadParams struct {
	RID otypes.RID
	// FetchPlan directs the server to eagerly send related records;
	// they arrive as prefetch entries after the primary one
	FetchPlan string
	// IgnoreCache bypasses the server-side record cache
	IgnoreCache bool
	// LoadTombstones also reports deleted record stubs
	LoadTombstones bool
}

// Validate checks the parameters before any byte is sent
func (p *RecordLoadParams) Validate() error {
	if !p.RID.IsValid() {
		return oerror.NewUsageError("record load requires a valid record id, got %s", p.RID)
	}
	return nil
}

// RecordLoadResult is the primary record (nil when absent) plus any
// prefetched records the fetch plan produced.
type RecordLoadResult struct {
	Record     *otypes.Record
	Prefetched []*otypes.Record
}

// RecordLoad reads one record by id.
type RecordLoad struct {
	msg    *Message
	codec  serializer.ICodec
	params RecordLoadParams
}

// NewRecordLoad creates a record load request
func NewRecordLoad(conn *transport.Connection, codec serializer.ICodec, params RecordLoadParams) *RecordLoad {
	return &RecordLoad{msg: NewMessage(conn, proto.OpRecordLoad), codec: codec, params: params}
}

// Execute runs the full request/response round trip
func (r *RecordLoad) Execute() (*RecordLoadResult, error) {
	if err := r.params.Validate(); err != nil {
		return nil, err
	}
	r.msg.Append(
		proto.NewShort(r.params.RID.Cluster),
		proto.NewLong(r.params.RID.Position),
		proto.NewString(r.params.FetchPlan),
		proto.NewBoolean(r.params.IgnoreCache),
		proto.NewBoolean(r.params.LoadTombstones),
	)
	if err := r.msg.Send(); err != nil {
		return nil, err
	}

	dec, err := r.msg.BeginResponse()
	if err != nil {
		return nil, err
	}

	result := &RecordLoadResult{}
	present, err := dec.ReadByte()
	if err != nil {
		return nil, err
	}
	if present == 0 {
		return result, nil
	}
	if present != 1 {
		return nil, oerror.NewProtocolError("invalid record presence byte 0x%02x", present)
	}

	recordType, err := dec.ReadChar()
	if err != nil {
		return nil, err
	}
	if !proto.ValidRecordType(recordType) {
		return nil, oerror.NewProtocolError("invalid record type 0x%02x", recordType)
	}
	version, err := dec.ReadInt()
	if err != nil {
		return nil, err
	}
	content, err := dec.ReadBytes()
	if err != nil {
		return nil, err
	}
	rec, err := decodeContent(r.codec, content)
	if err != nil {
		return nil, err
	}
	rec.SetIdentity(r.params.RID, version)
	result.Record = rec

	// fetch-plan prefetch stream: 2 = one more record, 0 = done
	for {
		status, err := dec.ReadByte()
		if err != nil {
			return nil, err
		}
		switch status {
		case 0:
			return result, nil
		case 2:
			prefetched, err := readRecord(dec, r.codec)
			if err != nil {
				return nil, err
			}
			if prefetched != nil {
				result.Prefetched = append(result.Prefetched, prefetched)
			}
		default:
			return nil, oerror.NewProtocolError("invalid prefetch status byte 0x%02x", status)
		}
	}
}

// --------------------------------------------------------------------------
// Record Create
// --------------------------------------------------------------------------

// RecordCreateParams describe the record to create.
type RecordCreateParams struct {
	// ClusterID selects the target cluster, -1 lets the server pick
	// the class default
	ClusterID int16
	Record    *otypes.Record
	// RecordType defaults to document
	RecordType byte
	// Async requests fire-and-forget mode on the server side
	Async bool
}

// Validate checks the parameters before any byte is sent
func (p *RecordCreateParams) Validate() error {
	if p.Record == nil {
		return oerror.NewUsageError("record create requires a record")
	}
	if p.RecordType != 0 && !proto.ValidRecordType(p.RecordType) {
		return oerror.NewUsageError("invalid record type 0x%02x", p.RecordType)
	}
	return nil
}

// RecordCreateResult is the identity the server assigned plus the
// collection-change trailer.
type RecordCreateResult struct {
	RID     otypes.RID
	Version int32
	Changes []otypes.CollectionChange
}

// RecordCreate stores a new record. The assigned identity and version
// are also written back onto the record passed in.
type RecordCreate struct {
	msg    *Message
	codec  serializer.ICodec
	params RecordCreateParams
}

// NewRecordCreate creates a record create request
func NewRecordCreate(conn *transport.Connection, codec serializer.ICodec, params RecordCreateParams) *RecordCreate {
	return &RecordCreate{msg: NewMessage(conn, proto.OpRecordCreate), codec: codec, params: params}
}

// Execute runs the full request/response round trip. Inside a
// transaction nothing touches the wire and a zero result is returned.
func (r *RecordCreate) Execute() (*RecordCreateResult, error) {
	if err := r.Send(); err != nil {
		return nil, err
	}
	return r.FetchResponse()
}

// Send validates the parameters and writes the request
func (r *RecordCreate) Send() error {
	if err := r.params.Validate(); err != nil {
		return err
	}
	if r.msg.Conn().InTransaction() {
		return nil
	}

	content, err := r.codec.Encode(r.params.Record)
	if err != nil {
		return err
	}
	recordType := r.params.RecordType
	if recordType == 0 {
		recordType = proto.RecordTypeDocument
	}
	r.msg.Append(
		proto.NewShort(r.params.ClusterID),
		proto.NewBytes(content),
		proto.NewChar(recordType),
		proto.NewByte(recordMode(r.params.Async)),
	)
	return r.msg.Send()
}

// FetchResponse reads the assigned identity, or nothing in a transaction
func (r *RecordCreate) FetchResponse() (*RecordCreateResult, error) {
	if r.msg.Conn().InTransaction() {
		return &RecordCreateResult{}, nil
	}

	dec, err := r.msg.BeginResponse()
	if err != nil {
		return nil, err
	}
	cluster, err := dec.ReadShort()
	if err != nil {
		return nil, err
	}
	position, err := dec.ReadLong()
	if err != nil {
		return nil, err
	}
	version, err := dec.ReadInt()
	if err != nil {
		return nil, err
	}

	result := &RecordCreateResult{
		RID:     otypes.RID{Cluster: cluster, Position: position},
		Version: version,
		Changes: readCollectionChanges(dec),
	}
	r.params.Record.SetIdentity(result.RID, result.Version)
	return result, nil
}

// --------------------------------------------------------------------------
// Record Update
// --------------------------------------------------------------------------

// RecordUpdateParams describe the record state to store.
type RecordUpdateParams struct {
	RID    otypes.RID
	Record *otypes.Record
	// VersionPolicy selects the optimistic-concurrency semantics: a
	// value >= 0 demands that exact stored version, the negative
	// policies skip the check (see proto.VersionPolicy*)
	VersionPolicy int32
	// UpdateContent false marks a delta update (the content carries
	// only changed fields)
	UpdateContent bool
	// RecordType defaults to document
	RecordType byte
	Async      bool
}

// Validate checks the parameters before any byte is sent
func (p *RecordUpdateParams) Validate() error {
	if p.Record == nil {
		return oerror.NewUsageError("record update requires a record")
	}
	if !p.RID.IsValid() {
		return oerror.NewUsageError("record update requires a valid record id, got %s", p.RID)
	}
	if p.VersionPolicy < proto.VersionPolicyRollback {
		return oerror.NewUsageError("invalid version policy %d", p.VersionPolicy)
	}
	if p.RecordType != 0 && !proto.ValidRecordType(p.RecordType) {
		return oerror.NewUsageError("invalid record type 0x%02x", p.RecordType)
	}
	return nil
}

// RecordUpdateResult is the stored version after the update plus the
// collection-change trailer.
type RecordUpdateResult struct {
	Version int32
	Changes []otypes.CollectionChange
}

// RecordUpdate stores new content for an existing record.
type RecordUpdate struct {
	msg    *Message
	codec  serializer.ICodec
	params RecordUpdateParams
}

// NewRecordUpdate creates a record update request
func NewRecordUpdate(conn *transport.Connection, codec serializer.ICodec, params RecordUpdateParams) *RecordUpdate {
	return &RecordUpdate{msg: NewMessage(conn, proto.OpRecordUpdate), codec: codec, params: params}
}

// Execute runs the full request/response round trip. Inside a
// transaction nothing touches the wire and a zero result is returned.
func (r *RecordUpdate) Execute() (*RecordUpdateResult, error) {
	if err := r.Send(); err != nil {
		return nil, err
	}
	return r.FetchResponse()
}

// Send validates the parameters and writes the request
func (r *RecordUpdate) Send() error {
	if err := r.params.Validate(); err != nil {
		return err
	}
	if r.msg.Conn().InTransaction() {
		return nil
	}

	content, err := r.codec.Encode(r.params.Record)
	if err != nil {
		return err
	}
	recordType := r.params.RecordType
	if recordType == 0 {
		recordType = proto.RecordTypeDocument
	}
	r.msg.Append(
		proto.NewShort(r.params.RID.Cluster),
		proto.NewLong(r.params.RID.Position),
		proto.NewBoolean(r.params.UpdateContent),
		proto.NewBytes(content),
		proto.NewInt(r.params.VersionPolicy),
		proto.NewChar(recordType),
		proto.NewByte(recordMode(r.params.Async)),
	)
	return r.msg.Send()
}

// FetchResponse reads the new version, or nothing in a transaction
func (r *RecordUpdate) FetchResponse() (*RecordUpdateResult, error) {
	if r.msg.Conn().InTransaction() {
		return &RecordUpdateResult{}, nil
	}

	dec, err := r.msg.BeginResponse()
	if err != nil {
		return nil, err
	}
	version, err := dec.ReadInt()
	if err != nil {
		return nil, err
	}

	result := &RecordUpdateResult{
		Version: version,
		Changes: readCollectionChanges(dec),
	}
	r.params.Record.SetIdentity(r.params.RID, version)
	return result, nil
}

// --------------------------------------------------------------------------
// Record Delete
// --------------------------------------------------------------------------

// RecordDeleteParams address the record to delete. Version -1 skips
// the optimistic check.
type RecordDeleteParams struct {
	RID     otypes.RID
	Version int32
	Async   bool
}

// Validate checks the parameters before any byte is sent
func (p *RecordDeleteParams) Validate() error {
	if !p.RID.IsValid() {
		return oerror.NewUsageError("record delete requires a valid record id, got %s", p.RID)
	}
	return nil
}

// RecordDelete removes a record.
type RecordDelete struct {
	msg    *Message
	params RecordDeleteParams
}

// NewRecordDelete creates a record delete request
func NewRecordDelete(conn *transport.Connection, params RecordDeleteParams) *RecordDelete {
	return &RecordDelete{msg: NewMessage(conn, proto.OpRecordDelete), params: params}
}

// Execute runs the full request/response round trip and reports whether
// the record was actually deleted. Inside a transaction nothing touches
// the wire and false is returned.
func (r *RecordDelete) Execute() (bool, error) {
	if err := r.Send(); err != nil {
		return false, err
	}
	return r.FetchResponse()
}

// Send validates the parameters and writes the request
func (r *RecordDelete) Send() error {
	if err := r.params.Validate(); err != nil {
		return err
	}
	if r.msg.Conn().InTransaction() {
		return nil
	}
	r.msg.Append(
		proto.NewShort(r.params.RID.Cluster),
		proto.NewLong(r.params.RID.Position),
		proto.NewInt(r.params.Version),
		proto.NewByte(recordMode(r.params.Async)),
	)
	return r.msg.Send()
}

// FetchResponse reads the deleted flag, or nothing in a transaction
func (r *RecordDelete) FetchResponse() (bool, error) {
	if r.msg.Conn().InTransaction() {
		return false, nil
	}
	dec, err := r.msg.BeginResponse()
	if err != nil {
		return false, err
	}
	return dec.ReadBoolean()
}

func recordMode(async bool) byte {
	if async {
		return proto.RecordModeAsync
	}
	return proto.RecordModeSync
}

package message

import (
	"github.com/gorient/gorient/oerror"
	"github.com/gorient/gorient/otypes"
	"github.com/gorient/gorient/proto"
	"github.com/gorient/gorient/serializer"
	"github.com/gorient/gorient/transport"
)

// Transaction entry operation bytes, as replayed on commit
const (
	TxOpUpdate byte = 1
	TxOpDelete byte = 2
	TxOpCreate byte = 3
)

// TxEntry is one buffered record operation awaiting commit. Creates
// carry a temporary RID with a negative position; the commit response
// maps it to the identity the server actually assigned.
type TxEntry struct {
	Op  byte
	RID otypes.RID
	// Record carries the content for creates and updates, nil for deletes
	Record *otypes.Record
	// RecordType defaults to document
	RecordType byte
	// Version is the optimistic-check version for updates and deletes
	Version int32
	// UpdateContent false marks a delta update
	UpdateContent bool
}

// Validate checks one entry before any byte is sent
func (e *TxEntry) Validate() error {
	switch e.Op {
	case TxOpCreate, TxOpUpdate:
		if e.Record == nil {
			return oerror.NewUsageError("transaction entry %s needs a record", txOpName(e.Op))
		}
	case TxOpDelete:
	default:
		return oerror.NewUsageError("invalid transaction entry operation %d", e.Op)
	}
	if e.RecordType != 0 && !proto.ValidRecordType(e.RecordType) {
		return oerror.NewUsageError("invalid record type 0x%02x", e.RecordType)
	}
	return nil
}

func txOpName(op byte) string {
	switch op {
	case TxOpCreate:
		return "create"
	case TxOpUpdate:
		return "update"
	case TxOpDelete:
		return "delete"
	default:
		return "unknown"
	}
}

// TxCommitParams carry the batched operations of one transaction.
type TxCommitParams struct {
	TxID int32
	// UsingLog asks the server to write the tx journal, trading speed
	// for recoverability
	UsingLog bool
	Entries  []TxEntry
}

// Validate checks the parameters before any byte is sent
func (p *TxCommitParams) Validate() error {
	if p.TxID <= 0 {
		return oerror.NewUsageError("transaction commit requires a positive tx id, got %d", p.TxID)
	}
	for i := range p.Entries {
		if err := p.Entries[i].Validate(); err != nil {
			return err
		}
	}
	return nil
}

// TxCommitResult reports the identities and versions the server
// assigned while applying the batch.
type TxCommitResult struct {
	// CreatedRIDs maps each temporary client-side RID to the permanent
	// one the server assigned
	CreatedRIDs map[otypes.RID]otypes.RID
	// UpdatedVersions maps updated RIDs to their new stored version
	UpdatedVersions map[otypes.RID]int32
	Changes         []otypes.CollectionChange
}

// TxCommit replays a batch of buffered record operations as one atomic
// transaction.
type TxCommit struct {
	msg    *Message
	codec  serializer.ICodec
	params TxCommitParams
}

// NewTxCommit creates a transaction commit request
func NewTxCommit(conn *transport.Connection, codec serializer.ICodec, params TxCommitParams) *TxCommit {
	return &TxCommit{msg: NewMessage(conn, proto.OpTxCommit), codec: codec, params: params}
}

// Execute runs the full request/response round trip
func (t *TxCommit) Execute() (*TxCommitResult, error) {
	if err := t.Send(); err != nil {
		return nil, err
	}
	return t.FetchResponse()
}

// Send validates the batch and writes the request. Each entry is framed
// with a leading 1-byte continuation flag; a zero flag ends the list.
func (t *TxCommit) Send() error {
	if err := t.params.Validate(); err != nil {
		return err
	}

	t.msg.Append(
		proto.NewInt(t.params.TxID),
		proto.NewBoolean(t.params.UsingLog),
	)

	for i := range t.params.Entries {
		entry := &t.params.Entries[i]
		recordType := entry.RecordType
		if recordType == 0 {
			recordType = proto.RecordTypeDocument
		}
		t.msg.Append(
			proto.NewByte(1),
			proto.NewByte(entry.Op),
			proto.NewShort(entry.RID.Cluster),
			proto.NewLong(entry.RID.Position),
			proto.NewChar(recordType),
		)

		switch entry.Op {
		case TxOpCreate:
			content, err := t.codec.Encode(entry.Record)
			if err != nil {
				return err
			}
			t.msg.Append(proto.NewBytes(content))

		case TxOpUpdate:
			content, err := t.codec.Encode(entry.Record)
			if err != nil {
				return err
			}
			t.msg.Append(
				proto.NewInt(entry.Version),
				proto.NewBytes(content),
				proto.NewBoolean(entry.UpdateContent),
			)

		case TxOpDelete:
			t.msg.Append(proto.NewInt(entry.Version))
		}
	}

	t.msg.Append(
		proto.NewByte(0),
		// index key changes, unused by this client
		proto.NewString(""),
	)
	return t.msg.Send()
}

// FetchResponse reads the created-RID map, the updated-version map and
// the collection-change trailer.
func (t *TxCommit) FetchResponse() (*TxCommitResult, error) {
	dec, err := t.msg.BeginResponse()
	if err != nil {
		return nil, err
	}

	result := &TxCommitResult{
		CreatedRIDs:     map[otypes.RID]otypes.RID{},
		UpdatedVersions: map[otypes.RID]int32{},
	}

	createdCount, err := dec.ReadInt()
	if err != nil {
		return nil, err
	}
	for i := int32(0); i < createdCount; i++ {
		tempCluster, err := dec.ReadShort()
		if err != nil {
			return nil, err
		}
		tempPosition, err := dec.ReadLong()
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
		temp := otypes.RID{Cluster: tempCluster, Position: tempPosition}
		result.CreatedRIDs[temp] = otypes.RID{Cluster: cluster, Position: position}
	}

	updatedCount, err := dec.ReadInt()
	if err != nil {
		return nil, err
	}
	for i := int32(0); i < updatedCount; i++ {
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
		result.UpdatedVersions[otypes.RID{Cluster: cluster, Position: position}] = version
	}

	result.Changes = readCollectionChanges(dec)
	return result, nil
}

package client

import (
	"sync/atomic"

	"github.com/gorient/gorient/message"
	"github.com/gorient/gorient/oerror"
	"github.com/gorient/gorient/otypes"
)

// txCounter hands out client-wide unique transaction ids
var txCounter atomic.Int32

// --------------------------------------------------------------------------
// Transaction
// --------------------------------------------------------------------------

// Transaction buffers record operations until Commit replays them as
// one atomic batch. While it is open the connection is flagged
// in-transaction, so the individual record operations never touch the
// wire.
//
// Created records receive a temporary identity with a negative
// position; Commit rewrites it to the identity the server assigned.
type Transaction struct {
	client  *Client
	id      int32
	entries []message.TxEntry

	// created records by their temporary RID, for identity rewriting
	created map[otypes.RID]*otypes.Record

	// nextTempPos counts down from -2 (-1 is the unset sentinel)
	nextTempPos int64
	done        bool
}

func newTransaction(c *Client) *Transaction {
	return &Transaction{
		client:      c,
		id:          txCounter.Add(1),
		created:     map[otypes.RID]*otypes.Record{},
		nextTempPos: -2,
	}
}

// ID returns the transaction id sent on commit
func (t *Transaction) ID() int32 { return t.id }

// Pending returns the number of buffered operations
func (t *Transaction) Pending() int { return len(t.entries) }

func (t *Transaction) guard() error {
	if t.done {
		return oerror.NewStateError("transaction %d is already finished", t.id)
	}
	return nil
}

// Create buffers a record creation and assigns a temporary identity to
// the record.
func (t *Transaction) Create(clusterID int16, rec *otypes.Record) error {
	if err := t.guard(); err != nil {
		return err
	}
	if rec == nil {
		return oerror.NewUsageError("transaction create requires a record")
	}

	temp := otypes.RID{Cluster: clusterID, Position: t.nextTempPos}
	t.nextTempPos--
	rec.RID = temp
	t.created[temp] = rec

	t.entries = append(t.entries, message.TxEntry{
		Op:     message.TxOpCreate,
		RID:    temp,
		Record: rec,
	})
	return nil
}

// Update buffers a record update under the given version policy
func (t *Transaction) Update(rec *otypes.Record, versionPolicy int32) error {
	if err := t.guard(); err != nil {
		return err
	}
	if rec == nil {
		return oerror.NewUsageError("transaction update requires a record")
	}
	if !rec.RID.IsValid() {
		return oerror.NewUsageError("transaction update requires a record with identity")
	}

	t.entries = append(t.entries, message.TxEntry{
		Op:            message.TxOpUpdate,
		RID:           rec.RID,
		Record:        rec,
		Version:       versionPolicy,
		UpdateContent: true,
	})
	return nil
}

// Delete buffers a record deletion. Version -1 skips the optimistic
// check.
func (t *Transaction) Delete(rid otypes.RID, version int32) error {
	if err := t.guard(); err != nil {
		return err
	}
	if !rid.IsValid() {
		return oerror.NewUsageError("transaction delete requires a valid record id, got %s", rid)
	}

	t.entries = append(t.entries, message.TxEntry{
		Op:      message.TxOpDelete,
		RID:     rid,
		Version: version,
	})
	return nil
}

// Commit replays the buffered batch on the server. On success the
// temporary identities of created records are rewritten to the
// server-assigned ones and their versions updated.
func (t *Transaction) Commit() (*message.TxCommitResult, error) {
	if err := t.guard(); err != nil {
		return nil, err
	}
	t.finish()

	if len(t.entries) == 0 {
		return &message.TxCommitResult{
			CreatedRIDs:     map[otypes.RID]otypes.RID{},
			UpdatedVersions: map[otypes.RID]int32{},
		}, nil
	}

	result, err := message.NewTxCommit(t.client.conn, t.client.codec, message.TxCommitParams{
		TxID:     t.id,
		UsingLog: true,
		Entries:  t.entries,
	}).Execute()
	track("tx_commit", err)
	if err != nil {
		return nil, err
	}

	for temp, assigned := range result.CreatedRIDs {
		if rec, ok := t.created[temp]; ok {
			version := rec.Version
			if v, ok := result.UpdatedVersions[assigned]; ok {
				version = v
			} else if version == otypes.VersionUnset {
				version = 0
			}
			rec.SetIdentity(assigned, version)
		}
	}
	for rid, version := range result.UpdatedVersions {
		for i := range t.entries {
			entry := &t.entries[i]
			if entry.Op == message.TxOpUpdate && entry.RID == rid && entry.Record != nil {
				entry.Record.Version = version
			}
		}
	}
	log.Infof("transaction %d committed (%d operations)", t.id, len(t.entries))
	return result, nil
}

// Rollback discards the buffered batch without touching the server.
// Created records lose their temporary identity again.
func (t *Transaction) Rollback() error {
	if err := t.guard(); err != nil {
		return err
	}
	t.finish()

	for _, rec := range t.created {
		rec.RID = otypes.NewRID()
		rec.Version = otypes.VersionUnset
	}
	t.entries = nil
	log.Debugf("transaction %d rolled back", t.id)
	return nil
}

// finish detaches the transaction from the client and re-enables
// direct record operations.
func (t *Transaction) finish() {
	t.done = true
	t.client.endTx()
}

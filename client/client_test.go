package client

import (
	"bytes"
	"encoding/binary"
	"errors"
	"io"
	"net"
	"testing"
	"time"

	"github.com/gorient/gorient/common"
	"github.com/gorient/gorient/oerror"
	"github.com/gorient/gorient/otypes"
	"github.com/gorient/gorient/proto"
	"github.com/gorient/gorient/transport"
)

// --------------------------------------------------------------------------
// Stub Server Harness
// --------------------------------------------------------------------------

type wire struct {
	buf bytes.Buffer
}

func (w *wire) byte1(b byte) *wire {
	w.buf.WriteByte(b)
	return w
}

func (w *wire) short(v int16) *wire {
	_ = binary.Write(&w.buf, binary.BigEndian, v)
	return w
}

func (w *wire) int4(v int32) *wire {
	_ = binary.Write(&w.buf, binary.BigEndian, v)
	return w
}

func (w *wire) long(v int64) *wire {
	_ = binary.Write(&w.buf, binary.BigEndian, v)
	return w
}

func (w *wire) str(s string) *wire {
	w.int4(int32(len(s)))
	w.buf.WriteString(s)
	return w
}

func (w *wire) blob(b []byte) *wire {
	if b == nil {
		return w.int4(-1)
	}
	w.int4(int32(len(b)))
	w.buf.Write(b)
	return w
}

func (w *wire) bytes() []byte { return w.buf.Bytes() }

type harness struct {
	client   *Client
	server   net.Conn
	requests chan []byte
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	clientEnd, serverEnd := net.Pipe()
	cfg := common.NewClientConfig()
	cfg.ReadTimeout = 200 * time.Millisecond
	cfg.WriteTimeout = 200 * time.Millisecond

	conn := transport.NewConnection(clientEnd, cfg)
	c, err := NewClientOn(conn, cfg)
	if err != nil {
		t.Fatalf("creating client: %v", err)
	}

	h := &harness{client: c, server: serverEnd, requests: make(chan []byte, 8)}
	t.Cleanup(func() {
		_ = clientEnd.Close()
		_ = serverEnd.Close()
	})
	return h
}

func (h *harness) serve(response []byte) {
	go func() {
		var lenBuf [4]byte
		if _, err := io.ReadFull(h.server, lenBuf[:]); err != nil {
			return
		}
		payload := make([]byte, binary.BigEndian.Uint32(lenBuf[:]))
		if _, err := io.ReadFull(h.server, payload); err != nil {
			return
		}
		h.requests <- payload
		if len(response) > 0 {
			_, _ = h.server.Write(response)
		}
	}()
}

func (h *harness) request(t *testing.T) []byte {
	t.Helper()
	select {
	case payload := <-h.requests:
		return payload
	case <-time.After(time.Second):
		t.Fatal("no request arrived at the stub server")
		return nil
	}
}

func (h *harness) noRequest(t *testing.T) {
	t.Helper()
	select {
	case payload := <-h.requests:
		t.Fatalf("unexpected request of %d bytes hit the wire", len(payload))
	case <-time.After(50 * time.Millisecond):
	}
}

// openDemo scripts a db open response with the given clusters and runs
// Open on the client.
func (h *harness) openDemo(t *testing.T, clusters ...otypes.Cluster) {
	t.Helper()
	w := (&wire{}).byte1(proto.StatusOK).int4(7).str("tok").short(int16(len(clusters)))
	for _, cluster := range clusters {
		w.str(cluster.Name).short(cluster.ID)
	}
	w.blob(nil).str("2.2.37")
	h.serve(w.bytes())

	if _, err := h.client.Open("demo", "admin", "admin"); err != nil {
		t.Fatalf("open failed: %v", err)
	}
	h.request(t) // drain the captured open request
}

// --------------------------------------------------------------------------
// Session & Cluster Cache
// --------------------------------------------------------------------------

// TestConnectSessionContinuity runs the end-to-end scenario: connect
// against a stub returning session 7 and a token, then verify the next
// request carries both in its header.
func TestConnectSessionContinuity(t *testing.T) {
	h := newHarness(t)
	h.serve((&wire{}).byte1(proto.StatusOK).int4(7).str("tok").bytes())

	if err := h.client.Connect("root", "root"); err != nil {
		t.Fatalf("connect failed: %v", err)
	}
	if h.client.Conn().SessionID() != 7 {
		t.Errorf("session id: got %d, want 7", h.client.Conn().SessionID())
	}
	h.request(t)

	h.serve((&wire{}).byte1(proto.StatusOK).byte1(1).bytes())
	if _, err := h.client.DbExists("demo", ""); err != nil {
		t.Fatalf("db exists failed: %v", err)
	}

	payload := h.request(t)
	session := int32(binary.BigEndian.Uint32(payload[1:5]))
	tokenLen := int32(binary.BigEndian.Uint32(payload[5:9]))
	if session != 7 {
		t.Errorf("request session: got %d, want 7", session)
	}
	if tokenLen != 3 || string(payload[9:12]) != "tok" {
		t.Errorf("request token: got %q", payload[9:9+tokenLen])
	}
}

func TestOpenRebuildsClusterCache(t *testing.T) {
	h := newHarness(t)
	h.openDemo(t,
		otypes.Cluster{Name: "default", ID: 0},
		otypes.Cluster{Name: "v", ID: 1},
	)

	// lookups are case-insensitive
	if id, ok := h.client.ClusterIDByName("DEFAULT"); !ok || id != 0 {
		t.Errorf("ClusterIDByName(DEFAULT): got %d, %t", id, ok)
	}
	if name, ok := h.client.ClusterNameByID(1); !ok || name != "v" {
		t.Errorf("ClusterNameByID(1): got %q, %t", name, ok)
	}
	if _, ok := h.client.ClusterIDByName("missing"); ok {
		t.Error("unexpected hit for unknown cluster")
	}

	// a reload replaces the cache wholesale
	h.serve((&wire{}).byte1(proto.StatusOK).
		short(1).str("e").short(2).bytes())
	if _, err := h.client.DbReload(); err != nil {
		t.Fatalf("reload failed: %v", err)
	}
	if _, ok := h.client.ClusterIDByName("default"); ok {
		t.Error("stale cluster survived the reload")
	}
	if id, ok := h.client.ClusterIDByName("E"); !ok || id != 2 {
		t.Errorf("ClusterIDByName(E): got %d, %t", id, ok)
	}
}

// --------------------------------------------------------------------------
// Transactions
// --------------------------------------------------------------------------

func TestTransactionCommit(t *testing.T) {
	h := newHarness(t)
	h.openDemo(t, otypes.Cluster{Name: "person", ID: 9})

	tx, err := h.client.Begin()
	if err != nil {
		t.Fatalf("begin failed: %v", err)
	}
	if !h.client.Conn().InTransaction() {
		t.Fatal("connection not flagged in-transaction")
	}

	rec := otypes.NewRecordOfClass("Person", map[string]interface{}{"name": "ada"})
	if err := h.client.RecordCreate(9, rec); err != nil {
		t.Fatalf("buffered create failed: %v", err)
	}
	if !rec.RID.IsTemporary() {
		t.Fatalf("expected a temporary identity, got %s", rec.RID)
	}
	if tx.Pending() != 1 {
		t.Fatalf("pending: got %d, want 1", tx.Pending())
	}
	h.noRequest(t) // nothing hit the wire yet

	temp := rec.RID
	h.serve((&wire{}).
		byte1(proto.StatusOK).
		int4(1).
		short(temp.Cluster).long(temp.Position).
		short(9).long(42).
		int4(0).
		int4(0).
		bytes())

	result, err := tx.Commit()
	if err != nil {
		t.Fatalf("commit failed: %v", err)
	}
	if rec.RID.String() != "#9:42" {
		t.Errorf("identity not rewritten: %s", rec.RID)
	}
	if len(result.CreatedRIDs) != 1 {
		t.Errorf("created map: %v", result.CreatedRIDs)
	}
	if h.client.Conn().InTransaction() {
		t.Error("connection still flagged in-transaction after commit")
	}

	// the commit must be the only request after the open
	h.request(t)
	h.noRequest(t)
}

func TestTransactionRollback(t *testing.T) {
	h := newHarness(t)
	h.openDemo(t, otypes.Cluster{Name: "person", ID: 9})

	tx, err := h.client.Begin()
	if err != nil {
		t.Fatalf("begin failed: %v", err)
	}

	rec := otypes.NewRecordOfClass("Person", map[string]interface{}{"name": "ada"})
	if err := h.client.RecordCreate(9, rec); err != nil {
		t.Fatalf("buffered create failed: %v", err)
	}

	if err := tx.Rollback(); err != nil {
		t.Fatalf("rollback failed: %v", err)
	}
	if rec.RID.IsValid() {
		t.Errorf("temporary identity survived the rollback: %s", rec.RID)
	}
	if h.client.Conn().InTransaction() {
		t.Error("connection still flagged in-transaction after rollback")
	}
	h.noRequest(t)

	if _, err := tx.Commit(); err == nil {
		t.Error("commit on a finished transaction must fail")
	}
}

func TestBeginTwice(t *testing.T) {
	h := newHarness(t)
	h.openDemo(t, otypes.Cluster{Name: "person", ID: 9})

	if _, err := h.client.Begin(); err != nil {
		t.Fatalf("begin failed: %v", err)
	}
	_, err := h.client.Begin()
	var stateErr *oerror.StateError
	if !errors.As(err, &stateErr) {
		t.Fatalf("expected StateError, got %v", err)
	}
}

// --------------------------------------------------------------------------
// Prefetch Cache
// --------------------------------------------------------------------------

// TestRecordLoadFillsPrefetchCache loads a record under a fetch plan
// and expects the joined record to become available via the cache.
func TestRecordLoadFillsPrefetchCache(t *testing.T) {
	h := newHarness(t)
	h.openDemo(t, otypes.Cluster{Name: "person", ID: 9})

	h.serve((&wire{}).
		byte1(proto.StatusOK).
		byte1(1).
		byte1(proto.RecordTypeDocument).
		int4(3).
		blob([]byte(`Person@name:"ada",boss:#9:2`)).
		byte1(2).
		short(proto.RecordMarkerFull).
		byte1(proto.RecordTypeDocument).
		short(9).long(2).int4(1).
		blob([]byte(`Person@name:"grace"`)).
		byte1(0).
		bytes())

	rec, err := h.client.RecordLoad(otypes.RID{Cluster: 9, Position: 1}, "*:1")
	if err != nil {
		t.Fatalf("record load failed: %v", err)
	}
	if rec == nil || rec.Fields["name"] != "ada" {
		t.Fatalf("primary record: %v", rec)
	}

	cached, ok := h.client.CachedRecord(otypes.RID{Cluster: 9, Position: 2})
	if !ok || cached.Fields["name"] != "grace" {
		t.Errorf("prefetch cache miss after load: %v, %t", cached, ok)
	}
}

func TestAsyncPrefetchCache(t *testing.T) {
	h := newHarness(t)
	h.openDemo(t, otypes.Cluster{Name: "person", ID: 9})

	record := func(w *wire, position int64, name string) *wire {
		return w.short(proto.RecordMarkerFull).
			byte1(proto.RecordTypeDocument).
			short(9).long(position).int4(1).
			blob([]byte(`Person@name:"` + name + `"`))
	}
	w := (&wire{}).byte1(proto.StatusOK)
	record(w.byte1(proto.AsyncRecord), 1, "ada")
	record(w.byte1(proto.AsyncPrefetch), 3, "linus")
	w.byte1(proto.AsyncDone)
	h.serve(w.bytes())

	var streamed int
	err := h.client.QueryAsync("select from Person", "*:-1",
		func(rec *otypes.Record) { streamed++ })
	if err != nil {
		t.Fatalf("async query failed: %v", err)
	}
	if streamed != 1 {
		t.Errorf("streamed records: got %d, want 1", streamed)
	}

	cached, ok := h.client.CachedRecord(otypes.RID{Cluster: 9, Position: 3})
	if !ok || cached.Fields["name"] != "linus" {
		t.Errorf("prefetch cache miss: %v, %t", cached, ok)
	}

	h.client.EvictCache()
	if _, ok := h.client.CachedRecord(otypes.RID{Cluster: 9, Position: 3}); ok {
		t.Error("record survived the cache eviction")
	}
}

package message

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
	"github.com/gorient/gorient/serializer"
	"github.com/gorient/gorient/transport"
)

// --------------------------------------------------------------------------
// Stub Server Harness
// --------------------------------------------------------------------------

// wire builds scripted server responses byte by byte
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

// harness wires a connection to an in-memory stub server that answers
// each request frame with a canned response.
type harness struct {
	conn     *transport.Connection
	server   net.Conn
	requests chan []byte
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	clientEnd, serverEnd := net.Pipe()
	cfg := common.NewClientConfig()
	cfg.ReadTimeout = 200 * time.Millisecond
	cfg.WriteTimeout = 200 * time.Millisecond

	h := &harness{
		conn:     transport.NewConnection(clientEnd, cfg),
		server:   serverEnd,
		requests: make(chan []byte, 8),
	}
	t.Cleanup(func() {
		_ = clientEnd.Close()
		_ = serverEnd.Close()
	})
	return h
}

// serve consumes one request frame and answers with response
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

// serveAndClose answers one request and then closes the server end, so
// the client observes end-of-stream after the scripted bytes.
func (h *harness) serveAndClose(response []byte) {
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
		_ = h.server.Close()
	}()
}

// request returns the next captured request payload (after the length
// prefix) or fails the test.
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

// noRequest asserts that nothing was written to the server
func (h *harness) noRequest(t *testing.T) {
	t.Helper()
	select {
	case payload := <-h.requests:
		t.Fatalf("unexpected request of %d bytes hit the wire", len(payload))
	case <-time.After(50 * time.Millisecond):
	}
}

// openSession marks the connection authenticated with a database open,
// without a wire round trip.
func (h *harness) openSession(sessionID int32, token []byte, db string) {
	h.conn.SetSession(sessionID, token)
	h.conn.SetDBName(db)
}

func csvCodec(t *testing.T) serializer.ICodec {
	t.Helper()
	codec, err := serializer.ByFormat(serializer.FormatCSV)
	if err != nil {
		t.Fatalf("resolving codec: %v", err)
	}
	return codec
}

// header fields of a captured request payload
func requestOp(payload []byte) byte { return payload[0] }

func requestSession(payload []byte) int32 {
	return int32(binary.BigEndian.Uint32(payload[1:5]))
}

func requestToken(payload []byte) []byte {
	n := int32(binary.BigEndian.Uint32(payload[5:9]))
	if n <= 0 {
		return nil
	}
	return payload[9 : 9+n]
}

// --------------------------------------------------------------------------
// Session Establishment
// --------------------------------------------------------------------------

func TestConnectEstablishesSession(t *testing.T) {
	h := newHarness(t)
	h.serve((&wire{}).byte1(proto.StatusOK).int4(7).str("tok").bytes())

	err := NewConnect(h.conn, ConnectParams{User: "root", Password: "root"}).Execute()
	if err != nil {
		t.Fatalf("connect failed: %v", err)
	}

	if h.conn.SessionID() != 7 {
		t.Errorf("session id: got %d, want 7", h.conn.SessionID())
	}
	if string(h.conn.Token()) != "tok" {
		t.Errorf("token: got %q, want %q", h.conn.Token(), "tok")
	}

	payload := h.request(t)
	if requestOp(payload) != byte(proto.OpConnect) {
		t.Errorf("op byte: got %d", requestOp(payload))
	}
	if requestSession(payload) != proto.NoSessionID {
		t.Errorf("first request should carry no session, got %d", requestSession(payload))
	}

	// every subsequent request carries the fresh session id and token
	h.conn.SetDBName("db")
	h.serve((&wire{}).byte1(proto.StatusOK).long(99).bytes())
	size, err := NewDbSize(h.conn).Execute()
	if err != nil {
		t.Fatalf("db size failed: %v", err)
	}
	if size != 99 {
		t.Errorf("db size: got %d, want 99", size)
	}

	payload = h.request(t)
	if requestSession(payload) != 7 {
		t.Errorf("second request session: got %d, want 7", requestSession(payload))
	}
	if string(requestToken(payload)) != "tok" {
		t.Errorf("second request token: got %q", requestToken(payload))
	}
}

func TestConnectRejectsMissingUser(t *testing.T) {
	h := newHarness(t)
	err := NewConnect(h.conn, ConnectParams{}).Execute()
	var usage *oerror.UsageError
	if !errors.As(err, &usage) {
		t.Fatalf("expected UsageError, got %v", err)
	}
	h.noRequest(t)
}

func TestServerErrorChain(t *testing.T) {
	h := newHarness(t)
	h.serve((&wire{}).
		byte1(proto.StatusError).
		byte1(1).str("com.orientechnologies.OSecurityAccessException").str("bad credentials").
		byte1(1).str("java.lang.SecurityException").str("denied").
		byte1(0).
		bytes())

	err := NewConnect(h.conn, ConnectParams{User: "root", Password: "wrong"}).Execute()
	var srvErr *oerror.ServerError
	if !errors.As(err, &srvErr) {
		t.Fatalf("expected ServerError, got %T: %v", err, err)
	}
	if len(srvErr.Exceptions) != 2 {
		t.Fatalf("exception chain length: got %d, want 2", len(srvErr.Exceptions))
	}
	if srvErr.First().Class != "com.orientechnologies.OSecurityAccessException" {
		t.Errorf("outermost class: got %q", srvErr.First().Class)
	}
	if h.conn.HasSession() {
		t.Error("failed connect must not establish a session")
	}
	if !h.conn.Connected() {
		t.Error("a server error must leave the connection usable")
	}
}

// --------------------------------------------------------------------------
// Database Operations
// --------------------------------------------------------------------------

func TestDbOpen(t *testing.T) {
	h := newHarness(t)
	h.serve((&wire{}).
		byte1(proto.StatusOK).
		int4(7).str("tok").
		short(2).
		str("default").short(0).
		str("v").short(1).
		blob(nil).
		str("2.2.37 (build deadbeef)").
		bytes())

	result, err := NewDbOpen(h.conn, DbOpenParams{
		Name: "demo", User: "admin", Password: "admin",
	}).Execute()
	if err != nil {
		t.Fatalf("db open failed: %v", err)
	}

	if h.conn.SessionID() != 7 || h.conn.DBName() != "demo" {
		t.Errorf("session state: id=%d db=%q", h.conn.SessionID(), h.conn.DBName())
	}
	if len(result.Clusters) != 2 {
		t.Fatalf("clusters: got %d, want 2", len(result.Clusters))
	}
	if result.Clusters[0].Name != "default" || result.Clusters[0].ID != 0 {
		t.Errorf("cluster 0: %+v", result.Clusters[0])
	}
	if result.Clusters[1].Name != "v" || result.Clusters[1].ID != 1 {
		t.Errorf("cluster 1: %+v", result.Clusters[1])
	}
	if result.Version.Major != 2 || result.Version.Minor != 2 || result.Version.Build != 37 {
		t.Errorf("version: %+v", result.Version)
	}
}

func TestDbExists(t *testing.T) {
	h := newHarness(t)
	h.openSession(7, nil, "")
	h.serve((&wire{}).byte1(proto.StatusOK).byte1(1).bytes())

	exists, err := NewDbExists(h.conn, "demo", "").Execute()
	if err != nil {
		t.Fatalf("db exists failed: %v", err)
	}
	if !exists {
		t.Error("expected true")
	}
}

func TestDbList(t *testing.T) {
	h := newHarness(t)
	h.openSession(7, nil, "")
	h.serve((&wire{}).
		byte1(proto.StatusOK).
		blob([]byte(`databases:(demo:"plocal:/data/demo")`)).
		bytes())

	databases, err := NewDbList(h.conn, csvCodec(t)).Execute()
	if err != nil {
		t.Fatalf("db list failed: %v", err)
	}
	if databases["demo"] != "plocal:/data/demo" {
		t.Errorf("unexpected databases map: %v", databases)
	}
}

func TestGuardRequiresSession(t *testing.T) {
	h := newHarness(t)

	_, err := NewDbSize(h.conn).Execute()
	var stateErr *oerror.StateError
	if !errors.As(err, &stateErr) {
		t.Fatalf("expected StateError, got %v", err)
	}
	h.noRequest(t)
}

func TestGuardRequiresOpenDB(t *testing.T) {
	h := newHarness(t)
	h.conn.SetSession(7, nil) // authenticated, but no db open

	_, err := NewDbSize(h.conn).Execute()
	var stateErr *oerror.StateError
	if !errors.As(err, &stateErr) {
		t.Fatalf("expected StateError, got %v", err)
	}
	h.noRequest(t)
}

// --------------------------------------------------------------------------
// Record Operations
// --------------------------------------------------------------------------

func TestRecordLoad(t *testing.T) {
	h := newHarness(t)
	h.openSession(7, nil, "demo")
	h.serve((&wire{}).
		byte1(proto.StatusOK).
		byte1(1).
		byte1(proto.RecordTypeDocument).
		int4(3).
		blob([]byte(`Person@name:"ada"`)).
		byte1(0).
		bytes())

	result, err := NewRecordLoad(h.conn, csvCodec(t), RecordLoadParams{
		RID: otypes.RID{Cluster: 9, Position: 1},
	}).Execute()
	if err != nil {
		t.Fatalf("record load failed: %v", err)
	}

	rec := result.Record
	if rec == nil {
		t.Fatal("expected a record")
	}
	if rec.RID.String() != "#9:1" || rec.Version != 3 {
		t.Errorf("identity: %s v%d", rec.RID, rec.Version)
	}
	if rec.Class != "Person" || rec.Fields["name"] != "ada" {
		t.Errorf("content: class=%q fields=%v", rec.Class, rec.Fields)
	}
}

// TestRecordLoadWithPrefetch drives the fetch-plan stream behind the
// primary record: one prefetched record (status 2), then the zero
// terminator.
func TestRecordLoadWithPrefetch(t *testing.T) {
	h := newHarness(t)
	h.openSession(7, nil, "demo")
	h.serve((&wire{}).
		byte1(proto.StatusOK).
		byte1(1).
		byte1(proto.RecordTypeDocument).
		int4(3).
		blob([]byte(`Person@name:"ada",boss:#9:2`)).
		byte1(2). // one prefetched record follows
		short(proto.RecordMarkerFull).
		byte1(proto.RecordTypeDocument).
		short(9).long(2).int4(1).
		blob([]byte(`Person@name:"grace"`)).
		byte1(0).
		bytes())

	result, err := NewRecordLoad(h.conn, csvCodec(t), RecordLoadParams{
		RID:       otypes.RID{Cluster: 9, Position: 1},
		FetchPlan: "*:1",
	}).Execute()
	if err != nil {
		t.Fatalf("record load failed: %v", err)
	}

	if result.Record == nil || result.Record.Fields["name"] != "ada" {
		t.Fatalf("primary record: %v", result.Record)
	}
	if len(result.Prefetched) != 1 {
		t.Fatalf("prefetched: got %d records, want 1", len(result.Prefetched))
	}
	pre := result.Prefetched[0]
	if pre.RID.String() != "#9:2" || pre.Fields["name"] != "grace" {
		t.Errorf("prefetched record: %s %v", pre.RID, pre.Fields)
	}
}

func TestRecordLoadAbsent(t *testing.T) {
	h := newHarness(t)
	h.openSession(7, nil, "demo")
	h.serve((&wire{}).byte1(proto.StatusOK).byte1(0).bytes())

	result, err := NewRecordLoad(h.conn, csvCodec(t), RecordLoadParams{
		RID: otypes.RID{Cluster: 9, Position: 404},
	}).Execute()
	if err != nil {
		t.Fatalf("record load failed: %v", err)
	}
	if result.Record != nil {
		t.Errorf("expected no record, got %v", result.Record)
	}
}

func TestRecordCreate(t *testing.T) {
	h := newHarness(t)
	h.openSession(7, nil, "demo")
	h.serve((&wire{}).
		byte1(proto.StatusOK).
		short(9).long(12).int4(1).
		int4(0). // empty collection-change trailer
		bytes())

	rec := otypes.NewRecordOfClass("Person", map[string]interface{}{"name": "ada"})
	result, err := NewRecordCreate(h.conn, csvCodec(t), RecordCreateParams{
		ClusterID: -1,
		Record:    rec,
	}).Execute()
	if err != nil {
		t.Fatalf("record create failed: %v", err)
	}

	if result.RID.String() != "#9:12" || result.Version != 1 {
		t.Errorf("assigned identity: %s v%d", result.RID, result.Version)
	}
	// identity also lands on the record itself
	if rec.RID != result.RID || rec.Version != 1 {
		t.Errorf("record identity not updated: %s v%d", rec.RID, rec.Version)
	}
}

func TestRecordCreateTolerantTrailer(t *testing.T) {
	h := newHarness(t)
	h.openSession(7, nil, "demo")
	// stream ends right after the primary fields, no trailer at all
	h.serveAndClose((&wire{}).
		byte1(proto.StatusOK).
		short(9).long(12).int4(1).
		bytes())

	rec := otypes.NewRecordOfClass("Person", map[string]interface{}{"name": "ada"})
	result, err := NewRecordCreate(h.conn, csvCodec(t), RecordCreateParams{
		ClusterID: -1,
		Record:    rec,
	}).Execute()
	if err != nil {
		t.Fatalf("a missing trailer must not fail the operation: %v", err)
	}
	if len(result.Changes) != 0 {
		t.Errorf("expected zero collection changes, got %d", len(result.Changes))
	}
}

func TestRecordUpdate(t *testing.T) {
	h := newHarness(t)
	h.openSession(7, nil, "demo")
	h.serve((&wire{}).
		byte1(proto.StatusOK).
		int4(5).
		int4(1).long(1).long(2).long(3).long(4).int4(5). // one collection change
		bytes())

	rec := otypes.NewRecordOfClass("Person", map[string]interface{}{"name": "ada"})
	result, err := NewRecordUpdate(h.conn, csvCodec(t), RecordUpdateParams{
		RID:           otypes.RID{Cluster: 9, Position: 12},
		Record:        rec,
		VersionPolicy: proto.VersionPolicyIncrement,
		UpdateContent: true,
	}).Execute()
	if err != nil {
		t.Fatalf("record update failed: %v", err)
	}

	if result.Version != 5 {
		t.Errorf("version: got %d, want 5", result.Version)
	}
	if len(result.Changes) != 1 || result.Changes[0].PageOffset != 5 {
		t.Errorf("collection changes: %+v", result.Changes)
	}
}

func TestRecordUpdateOptimisticMismatch(t *testing.T) {
	h := newHarness(t)
	h.openSession(7, nil, "demo")
	h.serve((&wire{}).
		byte1(proto.StatusError).
		byte1(1).
		str("com.orientechnologies.orient.core.exception.OConcurrentModificationException").
		str("version mismatch").
		byte1(0).
		bytes())

	rec := otypes.NewRecordOfClass("Person", map[string]interface{}{"name": "ada"})
	_, err := NewRecordUpdate(h.conn, csvCodec(t), RecordUpdateParams{
		RID:           otypes.RID{Cluster: 9, Position: 12},
		Record:        rec,
		VersionPolicy: 3, // demand exact stored version 3
	}).Execute()

	var srvErr *oerror.ServerError
	if !errors.As(err, &srvErr) {
		t.Fatalf("expected ServerError, got %v", err)
	}
}

func TestRecordDelete(t *testing.T) {
	h := newHarness(t)
	h.openSession(7, nil, "demo")
	h.serve((&wire{}).byte1(proto.StatusOK).byte1(1).bytes())

	deleted, err := NewRecordDelete(h.conn, RecordDeleteParams{
		RID:     otypes.RID{Cluster: 9, Position: 12},
		Version: -1,
	}).Execute()
	if err != nil {
		t.Fatalf("record delete failed: %v", err)
	}
	if !deleted {
		t.Error("expected deleted=true")
	}
}

// TestTransactionSuppression verifies that while the connection is in
// transaction mode, the mutating record operations neither write nor
// read a single byte.
func TestTransactionSuppression(t *testing.T) {
	h := newHarness(t)
	h.openSession(7, nil, "demo")
	h.conn.SetInTransaction(true)

	rec := otypes.NewRecordOfClass("Person", map[string]interface{}{"name": "ada"})

	if _, err := NewRecordCreate(h.conn, csvCodec(t), RecordCreateParams{
		ClusterID: -1, Record: rec,
	}).Execute(); err != nil {
		t.Fatalf("suppressed create failed: %v", err)
	}

	if _, err := NewRecordUpdate(h.conn, csvCodec(t), RecordUpdateParams{
		RID: otypes.RID{Cluster: 9, Position: 1}, Record: rec,
		VersionPolicy: proto.VersionPolicyIncrement,
	}).Execute(); err != nil {
		t.Fatalf("suppressed update failed: %v", err)
	}

	if _, err := NewRecordDelete(h.conn, RecordDeleteParams{
		RID: otypes.RID{Cluster: 9, Position: 1}, Version: -1,
	}).Execute(); err != nil {
		t.Fatalf("suppressed delete failed: %v", err)
	}

	h.noRequest(t)
}

// --------------------------------------------------------------------------
// Commands
// --------------------------------------------------------------------------

func TestCommandSyncList(t *testing.T) {
	h := newHarness(t)
	h.openSession(7, nil, "demo")

	record := func(w *wire, position int64, name string) *wire {
		return w.short(proto.RecordMarkerFull).
			byte1(proto.RecordTypeDocument).
			short(9).long(position).int4(1).
			blob([]byte(`Person@name:"` + name + `"`))
	}
	w := (&wire{}).byte1(proto.StatusOK).byte1(proto.ResultList).int4(2)
	record(w, 1, "ada")
	record(w, 2, "grace")
	h.serve(w.bytes())

	result, err := NewCommand(h.conn, csvCodec(t), CommandParams{
		Query: "select from Person",
	}).Execute()
	if err != nil {
		t.Fatalf("command failed: %v", err)
	}

	if len(result.Records) != 2 {
		t.Fatalf("records: got %d, want 2", len(result.Records))
	}
	if result.Records[0].Fields["name"] != "ada" || result.Records[1].Fields["name"] != "grace" {
		t.Errorf("unexpected records: %v", result.Records)
	}
	if result.Records[1].RID.String() != "#9:2" {
		t.Errorf("record identity: %s", result.Records[1].RID)
	}
}

func TestCommandSyncNull(t *testing.T) {
	h := newHarness(t)
	h.openSession(7, nil, "demo")
	h.serve((&wire{}).byte1(proto.StatusOK).byte1(proto.ResultNull).byte1(0).bytes())

	result, err := NewCommand(h.conn, csvCodec(t), CommandParams{
		Query:      "update Person set x = 1 where 1 = 0",
		QueryClass: proto.QueryCommand,
	}).Execute()
	if err != nil {
		t.Fatalf("command failed: %v", err)
	}
	if len(result.Records) != 0 || result.Scalar != nil {
		t.Errorf("expected empty result, got %+v", result)
	}
}

// TestCommandAsyncLoop feeds the discriminator sequence 1,1,2,0 and
// expects two result records, one prefetch-only record and loop
// termination on the zero byte.
func TestCommandAsyncLoop(t *testing.T) {
	h := newHarness(t)
	h.openSession(7, nil, "demo")

	record := func(w *wire, position int64, name string) *wire {
		return w.short(proto.RecordMarkerFull).
			byte1(proto.RecordTypeDocument).
			short(9).long(position).int4(1).
			blob([]byte(`Person@name:"` + name + `"`))
	}
	w := (&wire{}).byte1(proto.StatusOK)
	record(w.byte1(proto.AsyncRecord), 1, "ada")
	record(w.byte1(proto.AsyncRecord), 2, "grace")
	record(w.byte1(proto.AsyncPrefetch), 3, "linus")
	w.byte1(proto.AsyncDone)
	h.serve(w.bytes())

	var streamed, prefetched []*otypes.Record
	result, err := NewCommand(h.conn, csvCodec(t), CommandParams{
		Query:            "select from Person",
		Async:            true,
		Callback:         func(r *otypes.Record) { streamed = append(streamed, r) },
		PrefetchCallback: func(r *otypes.Record) { prefetched = append(prefetched, r) },
	}).Execute()
	if err != nil {
		t.Fatalf("async command failed: %v", err)
	}

	if len(result.Records) != 2 || len(streamed) != 2 {
		t.Errorf("result records: got %d (callback %d), want 2", len(result.Records), len(streamed))
	}
	if len(prefetched) != 1 || prefetched[0].Fields["name"] != "linus" {
		t.Errorf("prefetched: %v", prefetched)
	}
	for _, rec := range result.Records {
		if rec.Fields["name"] == "linus" {
			t.Error("prefetch-only record leaked into the result set")
		}
	}
}

// TestCommandPayloadShape captures the embedded command payload and
// checks which fields each query class carries: limit and fetch plan
// belong to the query classes only, scripts additionally name their
// language, and every payload ends with a zero int.
func TestCommandPayloadShape(t *testing.T) {
	testCases := []struct {
		name         string
		params       CommandParams
		class        string
		wantLanguage bool
		wantLimit    int32
		carriesLimit bool
	}{
		{
			name:         "sync query",
			params:       CommandParams{Query: "select from Person", Limit: 5, FetchPlan: "*:0"},
			class:        proto.QuerySync,
			wantLimit:    5,
			carriesLimit: true,
		},
		{
			name:         "sync query with limit clause",
			params:       CommandParams{Query: "select from Person LIMIT 3", Limit: 5, FetchPlan: "*:0"},
			class:        proto.QuerySync,
			wantLimit:    -1,
			carriesLimit: true,
		},
		{
			name: "gremlin keeps the numeric limit",
			params: CommandParams{
				Query:      "g.V().has(' limit ', 1)",
				QueryClass: proto.QueryGremlin,
				Limit:      7,
			},
			class:        proto.QueryGremlin,
			wantLimit:    7,
			carriesLimit: true,
		},
		{
			name:   "plain command",
			params: CommandParams{Query: "insert into Person set name = 'ada'", QueryClass: proto.QueryCommand},
			class:  proto.QueryCommand,
		},
		{
			name:         "script",
			params:       CommandParams{Query: "begin; commit;", QueryClass: proto.QueryScript},
			class:        proto.QueryScript,
			wantLanguage: true,
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			h := newHarness(t)
			h.openSession(7, nil, "demo")
			h.serve((&wire{}).byte1(proto.StatusOK).byte1(proto.ResultNull).byte1(0).bytes())

			if _, err := NewCommand(h.conn, csvCodec(t), tc.params).Execute(); err != nil {
				t.Fatalf("command failed: %v", err)
			}

			payload := h.request(t)
			dec := proto.NewDecoder(proto.NewBuffer(payload[1:]))
			if _, err := dec.ReadInt(); err != nil { // session
				t.Fatal(err)
			}
			if _, err := dec.ReadBytes(); err != nil { // token
				t.Fatal(err)
			}
			if mode, _ := dec.ReadChar(); mode != proto.ModeSync {
				t.Fatalf("mode: got %q", mode)
			}
			embedded, err := dec.ReadBytes()
			if err != nil {
				t.Fatal(err)
			}

			body := proto.NewDecoder(proto.NewBuffer(embedded))
			if class, _ := body.ReadString(); class != tc.class {
				t.Errorf("class: got %q, want %q", class, tc.class)
			}
			if tc.wantLanguage {
				if language, _ := body.ReadString(); language != "sql" {
					t.Errorf("script language: got %q", language)
				}
			}
			if query, _ := body.ReadString(); query != tc.params.Query {
				t.Errorf("query: got %q", query)
			}
			if tc.carriesLimit {
				if limit, _ := body.ReadInt(); limit != tc.wantLimit {
					t.Errorf("limit: got %d, want %d", limit, tc.wantLimit)
				}
				if plan, _ := body.ReadString(); plan != tc.params.FetchPlan {
					t.Errorf("fetch plan: got %q, want %q", plan, tc.params.FetchPlan)
				}
			}
			if end, err := body.ReadInt(); err != nil || end != 0 {
				t.Errorf("terminator: got (%d, %v), want (0, nil)", end, err)
			}
			if remaining := len(embedded) - body.Consumed(); remaining != 0 {
				t.Errorf("%d unexpected trailing payload bytes", remaining)
			}
		})
	}
}

func TestCommandAsyncRequiresCallback(t *testing.T) {
	h := newHarness(t)
	h.openSession(7, nil, "demo")

	_, err := NewCommand(h.conn, csvCodec(t), CommandParams{
		Query: "select from Person",
		Async: true,
	}).Execute()
	var usage *oerror.UsageError
	if !errors.As(err, &usage) {
		t.Fatalf("expected UsageError, got %v", err)
	}
	h.noRequest(t)
}

// --------------------------------------------------------------------------
// Transaction Commit
// --------------------------------------------------------------------------

func TestTxCommit(t *testing.T) {
	h := newHarness(t)
	h.openSession(7, nil, "demo")
	h.serve((&wire{}).
		byte1(proto.StatusOK).
		int4(1). // one created record
		short(-1).long(-2).
		short(9).long(42).
		int4(1). // one updated record
		short(9).long(7).int4(6).
		int4(0). // no collection changes
		bytes())

	temp := otypes.RID{Cluster: -1, Position: -2}
	result, err := NewTxCommit(h.conn, csvCodec(t), TxCommitParams{
		TxID:     1,
		UsingLog: true,
		Entries: []TxEntry{
			{
				Op:     TxOpCreate,
				RID:    temp,
				Record: otypes.NewRecordOfClass("Person", map[string]interface{}{"name": "ada"}),
			},
			{
				Op:      TxOpUpdate,
				RID:     otypes.RID{Cluster: 9, Position: 7},
				Record:  otypes.NewRecordOfClass("Person", map[string]interface{}{"name": "grace"}),
				Version: 5,
			},
		},
	}).Execute()
	if err != nil {
		t.Fatalf("tx commit failed: %v", err)
	}

	assigned, ok := result.CreatedRIDs[temp]
	if !ok || assigned.String() != "#9:42" {
		t.Errorf("created rid remap: %v", result.CreatedRIDs)
	}
	if result.UpdatedVersions[otypes.RID{Cluster: 9, Position: 7}] != 6 {
		t.Errorf("updated versions: %v", result.UpdatedVersions)
	}
}

func TestTxCommitRejectsBadEntry(t *testing.T) {
	h := newHarness(t)
	h.openSession(7, nil, "demo")

	_, err := NewTxCommit(h.conn, csvCodec(t), TxCommitParams{
		TxID:    1,
		Entries: []TxEntry{{Op: TxOpCreate}}, // create without record
	}).Execute()
	var usage *oerror.UsageError
	if !errors.As(err, &usage) {
		t.Fatalf("expected UsageError, got %v", err)
	}
	h.noRequest(t)
}

// --------------------------------------------------------------------------
// Framing
// --------------------------------------------------------------------------

// TestRequestFraming rebuilds the captured frame and checks the length
// prefix covers exactly the payload behind it.
func TestRequestFraming(t *testing.T) {
	h := newHarness(t)
	h.serve((&wire{}).byte1(proto.StatusOK).int4(7).blob(nil).bytes())

	if err := NewConnect(h.conn, ConnectParams{User: "root", Password: "root"}).Execute(); err != nil {
		t.Fatalf("connect failed: %v", err)
	}

	payload := h.request(t)
	if requestOp(payload) != byte(proto.OpConnect) {
		t.Fatalf("op byte: got %d", requestOp(payload))
	}

	// header is op + session + token, then driver name as first body field
	dec := proto.NewDecoder(proto.NewBuffer(payload[1:]))
	if _, err := dec.ReadInt(); err != nil { // session
		t.Fatal(err)
	}
	if _, err := dec.ReadBytes(); err != nil { // token
		t.Fatal(err)
	}
	driver, err := dec.ReadString()
	if err != nil {
		t.Fatal(err)
	}
	if driver != DriverName {
		t.Errorf("first body field: got %q, want %q", driver, DriverName)
	}
}

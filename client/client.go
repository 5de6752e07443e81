// Package client is the public façade of the driver: one Client per
// server connection, with typed methods for every protocol operation.
//
// A Client owns exactly one transport connection and therefore allows
// exactly one in-flight request: the wire protocol is strictly
// half-duplex. Callers wanting concurrency open one Client per logical
// session.
package client

import (
	"fmt"
	"strings"

	"github.com/VictoriaMetrics/metrics"
	"github.com/lni/dragonboat/v4/logger"
	"github.com/puzpuzpuz/xsync/v3"

	"github.com/gorient/gorient/common"
	"github.com/gorient/gorient/message"
	"github.com/gorient/gorient/oerror"
	"github.com/gorient/gorient/otypes"
	"github.com/gorient/gorient/proto"
	"github.com/gorient/gorient/serializer"
	"github.com/gorient/gorient/transport"
)

var log = logger.GetLogger("client")

// countOp bumps the per-operation request counter
func countOp(name string) {
	metrics.GetOrCreateCounter(fmt.Sprintf(`gorient_requests_total{op=%q}`, name)).Inc()
}

// countErr bumps the per-operation failure counter
func countErr(name string) {
	metrics.GetOrCreateCounter(fmt.Sprintf(`gorient_request_errors_total{op=%q}`, name)).Inc()
}

func track(name string, err error) {
	countOp(name)
	if err != nil {
		countErr(name)
	}
}

// --------------------------------------------------------------------------
// Client
// --------------------------------------------------------------------------

// Client is one session against one server. Not safe for concurrent
// use; see the package comment.
type Client struct {
	cfg    common.ClientConfig
	conn   *transport.Connection
	format serializer.Format
	codec  serializer.ICodec

	// cluster name/id caches, rebuilt on open and reload. Names are
	// case-folded: the server treats cluster names case-insensitively.
	clusterByName *xsync.MapOf[string, int16]
	clusterByID   *xsync.MapOf[int16, string]

	// prefetch holds records the server pushed alongside primary
	// results (fetch plans, async prefetch stream)
	prefetch *xsync.MapOf[otypes.RID, *otypes.Record]

	tx *Transaction
}

// NewClient dials the configured server and performs the protocol
// handshake. No authentication happens yet; follow up with Connect or
// Open.
func NewClient(cfg common.ClientConfig) (*Client, error) {
	format, err := serializer.ParseFormat(cfg.Serialization)
	if err != nil {
		return nil, err
	}
	codec, err := serializer.ByFormat(format)
	if err != nil {
		return nil, err
	}

	conn, err := transport.Dial(cfg)
	if err != nil {
		return nil, err
	}
	return newClient(conn, cfg, format, codec), nil
}

// NewClientOn wraps an existing connection (the handshake must already
// have happened). Used by tests and callers with custom dialing needs.
func NewClientOn(conn *transport.Connection, cfg common.ClientConfig) (*Client, error) {
	format, err := serializer.ParseFormat(cfg.Serialization)
	if err != nil {
		return nil, err
	}
	codec, err := serializer.ByFormat(format)
	if err != nil {
		return nil, err
	}
	return newClient(conn, cfg, format, codec), nil
}

func newClient(conn *transport.Connection, cfg common.ClientConfig, format serializer.Format, codec serializer.ICodec) *Client {
	return &Client{
		cfg:           cfg,
		conn:          conn,
		format:        format,
		codec:         codec,
		clusterByName: xsync.NewMapOf[string, int16](),
		clusterByID:   xsync.NewMapOf[int16, string](),
		prefetch:      xsync.NewMapOf[otypes.RID, *otypes.Record](),
	}
}

// Conn exposes the underlying connection state (session id, protocol
// version, liveness).
func (c *Client) Conn() *transport.Connection { return c.conn }

// Close shuts the connection down. Safe to call twice.
func (c *Client) Close() error {
	c.clusterByName.Clear()
	c.clusterByID.Clear()
	c.prefetch.Clear()
	c.tx = nil
	return c.conn.Close()
}

// --------------------------------------------------------------------------
// Session
// --------------------------------------------------------------------------

// Connect authenticates at the server level (no database opened).
// Needed before server-scoped operations like DbCreate or DbList.
func (c *Client) Connect(user, password string) error {
	err := message.NewConnect(c.conn, message.ConnectParams{
		User:          user,
		Password:      password,
		Serialization: c.format,
		UseToken:      true,
	}).Execute()
	track("connect", err)
	if err == nil {
		log.Infof("connected to %s as %s (session %d)", c.cfg.Address(), user, c.conn.SessionID())
	}
	return err
}

// Open authenticates and opens a database in one round trip. The
// reported cluster list seeds the name/id caches.
func (c *Client) Open(name, user, password string) (*message.DbOpenResult, error) {
	result, err := message.NewDbOpen(c.conn, message.DbOpenParams{
		Name:          name,
		User:          user,
		Password:      password,
		Serialization: c.format,
		UseToken:      true,
	}).Execute()
	track("db_open", err)
	if err != nil {
		return nil, err
	}

	c.rebuildClusterCache(result.Clusters)
	log.Infof("opened database %q (server %s, %d clusters)",
		name, result.Version.Release, len(result.Clusters))
	return result, nil
}

// Shutdown stops the remote server process. Requires server-level
// credentials.
func (c *Client) Shutdown(user, password string) error {
	err := message.NewShutdown(c.conn, message.ShutdownParams{User: user, Password: password}).Execute()
	track("shutdown", err)
	return err
}

// --------------------------------------------------------------------------
// Database Administration
// --------------------------------------------------------------------------

// DbCreate creates a database on the server
func (c *Client) DbCreate(name, dbType, storageType string) error {
	err := message.NewDbCreate(c.conn, message.DbCreateParams{
		Name: name, DbType: dbType, StorageType: storageType,
	}).Execute()
	track("db_create", err)
	return err
}

// DbDrop removes a database from the server
func (c *Client) DbDrop(name, storageType string) error {
	err := message.NewDbDrop(c.conn, name, storageType).Execute()
	track("db_drop", err)
	return err
}

// DbExists reports whether the named database exists
func (c *Client) DbExists(name, storageType string) (bool, error) {
	exists, err := message.NewDbExists(c.conn, name, storageType).Execute()
	track("db_exists", err)
	return exists, err
}

// DbClose releases the open database and closes the connection
func (c *Client) DbClose() error {
	err := message.NewDbClose(c.conn).Execute()
	track("db_close", err)
	return err
}

// DbSize returns the size of the open database in bytes
func (c *Client) DbSize() (int64, error) {
	size, err := message.NewDbSize(c.conn).Execute()
	track("db_size", err)
	return size, err
}

// DbCountRecords returns the number of records in the open database
func (c *Client) DbCountRecords() (int64, error) {
	count, err := message.NewDbCountRecords(c.conn).Execute()
	track("db_count_records", err)
	return count, err
}

// DbReload re-fetches the cluster list and rebuilds the caches
func (c *Client) DbReload() ([]otypes.Cluster, error) {
	clusters, err := message.NewDbReload(c.conn).Execute()
	track("db_reload", err)
	if err != nil {
		return nil, err
	}
	c.rebuildClusterCache(clusters)
	return clusters, nil
}

// DbList returns the databases the server hosts, mapped to their
// storage locations.
func (c *Client) DbList() (map[string]interface{}, error) {
	databases, err := message.NewDbList(c.conn, c.codec).Execute()
	track("db_list", err)
	return databases, err
}

// --------------------------------------------------------------------------
// Cluster Cache & Operations
// --------------------------------------------------------------------------

func (c *Client) rebuildClusterCache(clusters []otypes.Cluster) {
	c.clusterByName.Clear()
	c.clusterByID.Clear()
	for _, cluster := range clusters {
		c.clusterByName.Store(strings.ToLower(cluster.Name), cluster.ID)
		c.clusterByID.Store(cluster.ID, strings.ToLower(cluster.Name))
	}
}

// ClusterIDByName resolves a cluster name (case-insensitive) to its id
func (c *Client) ClusterIDByName(name string) (int16, bool) {
	return c.clusterByName.Load(strings.ToLower(name))
}

// ClusterNameByID resolves a cluster id to its (lower-cased) name
func (c *Client) ClusterNameByID(id int16) (string, bool) {
	return c.clusterByID.Load(id)
}

// ClusterAdd creates a storage cluster and registers it in the cache
func (c *Client) ClusterAdd(name string) (int16, error) {
	id, err := message.NewClusterAdd(c.conn, message.ClusterAddParams{Name: name, ID: -1}).Execute()
	track("data_cluster_add", err)
	if err != nil {
		return 0, err
	}
	c.clusterByName.Store(strings.ToLower(name), id)
	c.clusterByID.Store(id, strings.ToLower(name))
	return id, nil
}

// ClusterDrop removes a storage cluster and evicts it from the cache
func (c *Client) ClusterDrop(id int16) (bool, error) {
	dropped, err := message.NewClusterDrop(c.conn, id).Execute()
	track("data_cluster_drop", err)
	if err != nil {
		return false, err
	}
	if dropped {
		if name, ok := c.clusterByID.Load(id); ok {
			c.clusterByName.Delete(name)
		}
		c.clusterByID.Delete(id)
	}
	return dropped, nil
}

// ClusterCount counts the records in a set of clusters
func (c *Client) ClusterCount(ids []int16, countTombstones bool) (int64, error) {
	count, err := message.NewClusterCount(c.conn, message.ClusterCountParams{
		IDs: ids, CountTombstones: countTombstones,
	}).Execute()
	track("data_cluster_count", err)
	return count, err
}

// ClusterDataRange returns the first and last record position in use
// within one cluster.
func (c *Client) ClusterDataRange(id int16) (int64, int64, error) {
	begin, end, err := message.NewClusterDataRange(c.conn, id).Execute()
	track("data_cluster_data_range", err)
	return begin, end, err
}

// --------------------------------------------------------------------------
// Records
// --------------------------------------------------------------------------

// RecordLoad reads one record by id. Records the fetch plan prefetched
// arrive in the prefetch cache (see CachedRecord).
func (c *Client) RecordLoad(rid otypes.RID, fetchPlan string) (*otypes.Record, error) {
	result, err := message.NewRecordLoad(c.conn, c.codec, message.RecordLoadParams{
		RID: rid, FetchPlan: fetchPlan,
	}).Execute()
	track("record_load", err)
	if err != nil {
		return nil, err
	}
	for _, rec := range result.Prefetched {
		c.prefetch.Store(rec.RID, rec)
	}
	return result.Record, nil
}

// RecordCreate stores a new record. Inside a transaction the operation
// is buffered and the record receives a temporary identity instead.
func (c *Client) RecordCreate(clusterID int16, rec *otypes.Record) error {
	if c.tx != nil {
		return c.tx.Create(clusterID, rec)
	}
	_, err := message.NewRecordCreate(c.conn, c.codec, message.RecordCreateParams{
		ClusterID: clusterID, Record: rec,
	}).Execute()
	track("record_create", err)
	return err
}

// RecordUpdate stores new content for an existing record. Inside a
// transaction the operation is buffered.
func (c *Client) RecordUpdate(rec *otypes.Record, versionPolicy int32) error {
	if c.tx != nil {
		return c.tx.Update(rec, versionPolicy)
	}
	_, err := message.NewRecordUpdate(c.conn, c.codec, message.RecordUpdateParams{
		RID: rec.RID, Record: rec, VersionPolicy: versionPolicy, UpdateContent: true,
	}).Execute()
	track("record_update", err)
	return err
}

// RecordDelete removes a record. Version -1 skips the optimistic
// check. Inside a transaction the operation is buffered and true is
// returned optimistically.
func (c *Client) RecordDelete(rid otypes.RID, version int32) (bool, error) {
	if c.tx != nil {
		return true, c.tx.Delete(rid, version)
	}
	deleted, err := message.NewRecordDelete(c.conn, message.RecordDeleteParams{
		RID: rid, Version: version,
	}).Execute()
	track("record_delete", err)
	return deleted, err
}

// CachedRecord returns a record previously delivered through a fetch
// plan or async prefetch, if still cached.
func (c *Client) CachedRecord(rid otypes.RID) (*otypes.Record, bool) {
	return c.prefetch.Load(rid)
}

// EvictCache drops all prefetched records
func (c *Client) EvictCache() {
	c.prefetch.Clear()
}

// --------------------------------------------------------------------------
// Commands & Queries
// --------------------------------------------------------------------------

// Query runs a synchronous SQL query and returns the matching records.
// Limit 0 means unlimited; an explicit LIMIT clause in the query wins.
func (c *Client) Query(query string, limit int32) ([]*otypes.Record, error) {
	result, err := message.NewCommand(c.conn, c.codec, message.CommandParams{
		Query: query, Limit: limit, FetchPlan: "*:0",
	}).Execute()
	track("command", err)
	if err != nil {
		return nil, err
	}
	return result.Records, nil
}

// QueryAsync streams query results record by record through cb.
// Prefetch-only records land in the prefetch cache.
func (c *Client) QueryAsync(query string, fetchPlan string, cb message.RecordCallback) error {
	_, err := message.NewCommand(c.conn, c.codec, message.CommandParams{
		Query:     query,
		FetchPlan: fetchPlan,
		Async:     true,
		Callback:  cb,
		PrefetchCallback: func(rec *otypes.Record) {
			c.prefetch.Store(rec.RID, rec)
		},
	}).Execute()
	track("command", err)
	return err
}

// Command runs a non-idempotent SQL statement (INSERT, UPDATE, ...)
// and returns the full result (records, or a scalar for statements
// reporting a count).
func (c *Client) Command(statement string) (*message.CommandResult, error) {
	result, err := message.NewCommand(c.conn, c.codec, message.CommandParams{
		Query: statement, QueryClass: proto.QueryCommand,
	}).Execute()
	track("command", err)
	return result, err
}

// Script runs a server-side SQL script
func (c *Client) Script(script string) (*message.CommandResult, error) {
	result, err := message.NewCommand(c.conn, c.codec, message.CommandParams{
		Query: script, QueryClass: proto.QueryScript,
	}).Execute()
	track("command", err)
	return result, err
}

// Gremlin runs a Gremlin traversal (requires the server-side Gremlin
// command support).
func (c *Client) Gremlin(traversal string) (*message.CommandResult, error) {
	result, err := message.NewCommand(c.conn, c.codec, message.CommandParams{
		Query: traversal, QueryClass: proto.QueryGremlin,
	}).Execute()
	track("command", err)
	return result, err
}

// --------------------------------------------------------------------------
// Transactions
// --------------------------------------------------------------------------

// Begin starts buffering record operations into a client-side
// transaction. Only one transaction can be open per client.
func (c *Client) Begin() (*Transaction, error) {
	if c.tx != nil {
		return nil, oerror.NewStateError("a transaction is already open")
	}
	if !c.conn.DBOpen() {
		return nil, oerror.NewStateError("transactions require an open database")
	}
	c.tx = newTransaction(c)
	c.conn.SetInTransaction(true)
	return c.tx, nil
}

// endTx is called by the transaction on commit or rollback
func (c *Client) endTx() {
	c.tx = nil
	c.conn.SetInTransaction(false)
}

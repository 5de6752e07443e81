package message

import (
	"github.com/gorient/gorient/oerror"
	"github.com/gorient/gorient/otypes"
	"github.com/gorient/gorient/proto"
	"github.com/gorient/gorient/serializer"
	"github.com/gorient/gorient/transport"
)

// --------------------------------------------------------------------------
// Db Open
// --------------------------------------------------------------------------

// DbOpenParams are the parameters for opening a database on a session.
type DbOpenParams struct {
	Name     string
	User     string
	Password string
	// DbType is "document" or "graph"
	DbType   string
	ClientID string

	Serialization serializer.Format
	UseToken      bool
}

// Validate checks the parameters before any byte is sent
func (p *DbOpenParams) Validate() error {
	if p.Name == "" {
		return oerror.NewUsageError("db open requires a database name")
	}
	if p.User == "" {
		return oerror.NewUsageError("db open requires a user name")
	}
	if p.DbType != "" && !proto.ValidDbType(p.DbType) {
		return oerror.NewUsageError("invalid database type %q (must be %s or %s)",
			p.DbType, proto.DbTypeDocument, proto.DbTypeGraph)
	}
	return nil
}

// DbOpenResult carries what the server reports about the opened
// database: its release version and the storage cluster list.
type DbOpenResult struct {
	Version  otypes.Version
	Clusters []otypes.Cluster
}

// DbOpen authenticates and opens a database in a single round trip,
// establishing the session.
type DbOpen struct {
	msg    *Message
	params DbOpenParams
}

// NewDbOpen creates a db open request
func NewDbOpen(conn *transport.Connection, params DbOpenParams) *DbOpen {
	return &DbOpen{msg: NewMessage(conn, proto.OpDbOpen), params: params}
}

// Execute runs the full request/response round trip
func (d *DbOpen) Execute() (*DbOpenResult, error) {
	if err := d.Send(); err != nil {
		return nil, err
	}
	return d.FetchResponse()
}

// Send validates the parameters and writes the request
func (d *DbOpen) Send() error {
	if err := d.params.Validate(); err != nil {
		return err
	}
	dbType := d.params.DbType
	if dbType == "" {
		dbType = proto.DbTypeDocument
	}
	d.msg.Append(
		proto.NewString(DriverName),
		proto.NewString(DriverVersion),
		proto.NewShort(proto.SupportedProtocol),
		proto.NewString(d.params.ClientID),
		proto.NewString(d.params.Serialization.WireName()),
		proto.NewBoolean(d.params.UseToken),
		proto.NewString(d.params.Name),
		proto.NewString(d.params.User),
		proto.NewString(d.params.Password),
	)
	return d.msg.Send()
}

// FetchResponse reads the session header, the cluster list, the opaque
// cluster configuration blob and the server release string.
func (d *DbOpen) FetchResponse() (*DbOpenResult, error) {
	dec, err := d.msg.BeginResponse()
	if err != nil {
		return nil, err
	}

	clusters, err := readClusters(dec)
	if err != nil {
		return nil, err
	}
	// distributed cluster configuration, opaque to this client
	if _, err := dec.ReadBytes(); err != nil {
		return nil, err
	}
	release, err := dec.ReadString()
	if err != nil {
		return nil, err
	}

	d.msg.Conn().SetDBName(d.params.Name)
	return &DbOpenResult{
		Version:  otypes.ParseVersion(release),
		Clusters: clusters,
	}, nil
}

// --------------------------------------------------------------------------
// Db Close
// --------------------------------------------------------------------------

// DbClose tells the server to release the open database and closes the
// socket. The server sends no response; the session is gone afterwards.
type DbClose struct {
	msg *Message
}

// NewDbClose creates a db close request
func NewDbClose(conn *transport.Connection) *DbClose {
	return &DbClose{msg: NewMessage(conn, proto.OpDbClose)}
}

// Execute sends the request and closes the connection locally
func (d *DbClose) Execute() error {
	if err := d.msg.Send(); err != nil {
		return err
	}
	return d.msg.Conn().Close()
}

// --------------------------------------------------------------------------
// Db Create
// --------------------------------------------------------------------------

// DbCreateParams describe the database to create.
type DbCreateParams struct {
	Name string
	// DbType is "document" or "graph"
	DbType string
	// StorageType is "plocal" or "memory"
	StorageType string
}

// Validate checks the parameters before any byte is sent
func (p *DbCreateParams) Validate() error {
	if p.Name == "" {
		return oerror.NewUsageError("db create requires a database name")
	}
	if !proto.ValidDbType(p.DbType) {
		return oerror.NewUsageError("invalid database type %q (must be %s or %s)",
			p.DbType, proto.DbTypeDocument, proto.DbTypeGraph)
	}
	if !proto.ValidStorageType(p.StorageType) {
		return oerror.NewUsageError("invalid storage type %q (must be %s or %s)",
			p.StorageType, proto.StoragePLocal, proto.StorageMemory)
	}
	return nil
}

// DbCreate creates a database on the server. Requires a connect-level
// session, not an open database.
type DbCreate struct {
	msg    *Message
	params DbCreateParams
}

// NewDbCreate creates a db create request
func NewDbCreate(conn *transport.Connection, params DbCreateParams) *DbCreate {
	return &DbCreate{msg: NewMessage(conn, proto.OpDbCreate), params: params}
}

// Execute runs the full request/response round trip
func (d *DbCreate) Execute() error {
	if err := d.params.Validate(); err != nil {
		return err
	}
	d.msg.Append(
		proto.NewString(d.params.Name),
		proto.NewString(d.params.DbType),
		proto.NewString(d.params.StorageType),
	)
	if err := d.msg.Send(); err != nil {
		return err
	}
	_, err := d.msg.BeginResponse()
	return err
}

// --------------------------------------------------------------------------
// Db Exists / Drop
// --------------------------------------------------------------------------

// DbExists asks whether a database of the given name and storage type
// exists on the server.
type DbExists struct {
	msg         *Message
	name        string
	storageType string
}

// NewDbExists creates a db exists request. An empty storage type
// defaults to plocal.
func NewDbExists(conn *transport.Connection, name, storageType string) *DbExists {
	return &DbExists{msg: NewMessage(conn, proto.OpDbExists), name: name, storageType: storageType}
}

// Execute runs the full request/response round trip
func (d *DbExists) Execute() (bool, error) {
	if d.name == "" {
		return false, oerror.NewUsageError("db exists requires a database name")
	}
	storageType := d.storageType
	if storageType == "" {
		storageType = proto.StoragePLocal
	}
	if !proto.ValidStorageType(storageType) {
		return false, oerror.NewUsageError("invalid storage type %q", storageType)
	}
	d.msg.Append(proto.NewString(d.name), proto.NewString(storageType))
	if err := d.msg.Send(); err != nil {
		return false, err
	}
	dec, err := d.msg.BeginResponse()
	if err != nil {
		return false, err
	}
	return dec.ReadBoolean()
}

// DbDrop removes a database from the server.
type DbDrop struct {
	msg         *Message
	name        string
	storageType string
}

// NewDbDrop creates a db drop request. An empty storage type defaults
// to plocal.
func NewDbDrop(conn *transport.Connection, name, storageType string) *DbDrop {
	return &DbDrop{msg: NewMessage(conn, proto.OpDbDrop), name: name, storageType: storageType}
}

// Execute runs the full request/response round trip
func (d *DbDrop) Execute() error {
	if d.name == "" {
		return oerror.NewUsageError("db drop requires a database name")
	}
	storageType := d.storageType
	if storageType == "" {
		storageType = proto.StoragePLocal
	}
	if !proto.ValidStorageType(storageType) {
		return oerror.NewUsageError("invalid storage type %q", storageType)
	}
	d.msg.Append(proto.NewString(d.name), proto.NewString(storageType))
	if err := d.msg.Send(); err != nil {
		return err
	}
	_, err := d.msg.BeginResponse()
	return err
}

// --------------------------------------------------------------------------
// Db Size / Count Records
// --------------------------------------------------------------------------

// DbSize returns the size of the open database in bytes.
type DbSize struct {
	msg *Message
}

// NewDbSize creates a db size request
func NewDbSize(conn *transport.Connection) *DbSize {
	return &DbSize{msg: NewMessage(conn, proto.OpDbSize)}
}

// Execute runs the full request/response round trip
func (d *DbSize) Execute() (int64, error) {
	if err := d.msg.Send(); err != nil {
		return 0, err
	}
	dec, err := d.msg.BeginResponse()
	if err != nil {
		return 0, err
	}
	return dec.ReadLong()
}

// DbCountRecords returns the number of records in the open database.
type DbCountRecords struct {
	msg *Message
}

// NewDbCountRecords creates a record count request
func NewDbCountRecords(conn *transport.Connection) *DbCountRecords {
	return &DbCountRecords{msg: NewMessage(conn, proto.OpDbCountRecords)}
}

// Execute runs the full request/response round trip
func (d *DbCountRecords) Execute() (int64, error) {
	if err := d.msg.Send(); err != nil {
		return 0, err
	}
	dec, err := d.msg.BeginResponse()
	if err != nil {
		return 0, err
	}
	return dec.ReadLong()
}

// --------------------------------------------------------------------------
// Db Reload
// --------------------------------------------------------------------------

// DbReload re-fetches the cluster list of the open database, e.g. after
// another client added or dropped clusters.
type DbReload struct {
	msg *Message
}

// NewDbReload creates a db reload request
func NewDbReload(conn *transport.Connection) *DbReload {
	return &DbReload{msg: NewMessage(conn, proto.OpDbReload)}
}

// Execute runs the full request/response round trip
func (d *DbReload) Execute() ([]otypes.Cluster, error) {
	if err := d.msg.Send(); err != nil {
		return nil, err
	}
	dec, err := d.msg.BeginResponse()
	if err != nil {
		return nil, err
	}
	return readClusters(dec)
}

// --------------------------------------------------------------------------
// Db List
// --------------------------------------------------------------------------

// DbList returns the databases the server hosts, as a map from database
// name to its storage path.
type DbList struct {
	msg   *Message
	codec serializer.ICodec
}

// NewDbList creates a db list request
func NewDbList(conn *transport.Connection, codec serializer.ICodec) *DbList {
	return &DbList{msg: NewMessage(conn, proto.OpDbList), codec: codec}
}

// Execute runs the full request/response round trip. The server answers
// with one serialized document whose "databases" field maps names to
// storage locations.
func (d *DbList) Execute() (map[string]interface{}, error) {
	if err := d.msg.Send(); err != nil {
		return nil, err
	}
	dec, err := d.msg.BeginResponse()
	if err != nil {
		return nil, err
	}
	content, err := dec.ReadBytes()
	if err != nil {
		return nil, err
	}

	rec, err := decodeContent(d.codec, content)
	if err != nil {
		return nil, err
	}
	if databases, ok := rec.Fields["databases"].(map[string]interface{}); ok {
		return databases, nil
	}
	return rec.Fields, nil
}

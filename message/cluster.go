package message

import (
	"github.com/gorient/gorient/oerror"
	"github.com/gorient/gorient/proto"
	"github.com/gorient/gorient/transport"
)

// --------------------------------------------------------------------------
// Cluster Add
// --------------------------------------------------------------------------

// ClusterAddParams name the cluster to create. ID -1 lets the server
// assign the next free one.
type ClusterAddParams struct {
	Name string
	ID   int16
}

// Validate checks the parameters before any byte is sent
func (p *ClusterAddParams) Validate() error {
	if p.Name == "" {
		return oerror.NewUsageError("cluster add requires a cluster name")
	}
	return nil
}

// ClusterAdd creates a storage cluster on the open database.
type ClusterAdd struct {
	msg    *Message
	params ClusterAddParams
}

// NewClusterAdd creates a cluster add request
func NewClusterAdd(conn *transport.Connection, params ClusterAddParams) *ClusterAdd {
	return &ClusterAdd{msg: NewMessage(conn, proto.OpClusterAdd), params: params}
}

// Execute runs the full round trip and returns the new cluster id
func (c *ClusterAdd) Execute() (int16, error) {
	if err := c.params.Validate(); err != nil {
		return 0, err
	}
	id := c.params.ID
	if id == 0 {
		id = -1
	}
	c.msg.Append(proto.NewString(c.params.Name), proto.NewShort(id))
	if err := c.msg.Send(); err != nil {
		return 0, err
	}
	dec, err := c.msg.BeginResponse()
	if err != nil {
		return 0, err
	}
	return dec.ReadShort()
}

// --------------------------------------------------------------------------
// Cluster Drop
// --------------------------------------------------------------------------

// ClusterDrop removes a storage cluster and reports whether it was
// actually deleted.
type ClusterDrop struct {
	msg *Message
	id  int16
}

// NewClusterDrop creates a cluster drop request
func NewClusterDrop(conn *transport.Connection, id int16) *ClusterDrop {
	return &ClusterDrop{msg: NewMessage(conn, proto.OpClusterDrop), id: id}
}

// Execute runs the full request/response round trip
func (c *ClusterDrop) Execute() (bool, error) {
	if c.id < 0 {
		return false, oerror.NewUsageError("cluster drop requires a non-negative cluster id, got %d", c.id)
	}
	c.msg.Append(proto.NewShort(c.id))
	if err := c.msg.Send(); err != nil {
		return false, err
	}
	dec, err := c.msg.BeginResponse()
	if err != nil {
		return false, err
	}
	return dec.ReadBoolean()
}

// --------------------------------------------------------------------------
// Cluster Count
// --------------------------------------------------------------------------

// ClusterCountParams select the clusters to count records in.
// CountTombstones only matters on sharded storage and is ignored
// otherwise.
type ClusterCountParams struct {
	IDs             []int16
	CountTombstones bool
}

// Validate checks the parameters before any byte is sent
func (p *ClusterCountParams) Validate() error {
	if len(p.IDs) == 0 {
		return oerror.NewUsageError("cluster count requires at least one cluster id")
	}
	for _, id := range p.IDs {
		if id < 0 {
			return oerror.NewUsageError("cluster count got negative cluster id %d", id)
		}
	}
	return nil
}

// ClusterCount counts the records stored in a set of clusters.
type ClusterCount struct {
	msg    *Message
	params ClusterCountParams
}

// NewClusterCount creates a cluster count request
func NewClusterCount(conn *transport.Connection, params ClusterCountParams) *ClusterCount {
	return &ClusterCount{msg: NewMessage(conn, proto.OpClusterCount), params: params}
}

// Execute runs the full request/response round trip
func (c *ClusterCount) Execute() (int64, error) {
	if err := c.params.Validate(); err != nil {
		return 0, err
	}
	c.msg.Append(proto.NewShort(int16(len(c.params.IDs))))
	for _, id := range c.params.IDs {
		c.msg.Append(proto.NewShort(id))
	}
	c.msg.Append(proto.NewBoolean(c.params.CountTombstones))
	if err := c.msg.Send(); err != nil {
		return 0, err
	}
	dec, err := c.msg.BeginResponse()
	if err != nil {
		return 0, err
	}
	return dec.ReadLong()
}

// --------------------------------------------------------------------------
// Cluster Data Range
// --------------------------------------------------------------------------

// ClusterDataRange returns the first and last record position in use
// within one cluster.
type ClusterDataRange struct {
	msg *Message
	id  int16
}

// NewClusterDataRange creates a data range request
func NewClusterDataRange(conn *transport.Connection, id int16) *ClusterDataRange {
	return &ClusterDataRange{msg: NewMessage(conn, proto.OpClusterDataRange), id: id}
}

// Execute runs the full round trip and returns (begin, end)
func (c *ClusterDataRange) Execute() (int64, int64, error) {
	if c.id < 0 {
		return 0, 0, oerror.NewUsageError("cluster data range requires a non-negative cluster id, got %d", c.id)
	}
	c.msg.Append(proto.NewShort(c.id))
	if err := c.msg.Send(); err != nil {
		return 0, 0, err
	}
	dec, err := c.msg.BeginResponse()
	if err != nil {
		return 0, 0, err
	}
	begin, err := dec.ReadLong()
	if err != nil {
		return 0, 0, err
	}
	end, err := dec.ReadLong()
	if err != nil {
		return 0, 0, err
	}
	return begin, end, nil
}

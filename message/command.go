package message

import (
	"strings"

	"github.com/gorient/gorient/oerror"
	"github.com/gorient/gorient/otypes"
	"github.com/gorient/gorient/proto"
	"github.com/gorient/gorient/serializer"
	"github.com/gorient/gorient/transport"
)

// --------------------------------------------------------------------------
// Command
// --------------------------------------------------------------------------

// RecordCallback receives one asynchronously delivered record. It runs
// on the read loop, so it must not block indefinitely.
type RecordCallback func(*otypes.Record)

// CommandParams describe one SQL command or query execution.
type CommandParams struct {
	Query string
	// QueryClass is the server-side command implementation
	// (proto.QuerySync and friends). Empty selects the synchronous
	// query class, or the asynchronous one when Async is set.
	QueryClass string
	// Limit bounds the result set; 0 means unlimited. An explicit
	// LIMIT clause inside the query text wins. Only sent for the
	// query classes (sync, async, gremlin).
	Limit int32
	// FetchPlan directs eager loading of related records, e.g. "*:-1".
	// Like Limit it is only part of the query-class payloads.
	FetchPlan string

	// Async streams results record by record through Callback instead
	// of collecting them
	Async    bool
	Callback RecordCallback
	// PrefetchCallback receives fetch-plan records that are not part
	// of the result set. Optional; without it prefetches are dropped.
	PrefetchCallback RecordCallback
}

// Validate checks the parameters before any byte is sent
func (p *CommandParams) Validate() error {
	if p.Query == "" {
		return oerror.NewUsageError("command requires a query text")
	}
	if p.QueryClass != "" && !proto.ValidQueryClass(p.QueryClass) {
		return oerror.NewUsageError("invalid command class %q", p.QueryClass)
	}
	if p.Async && p.Callback == nil {
		return oerror.NewUsageError("asynchronous command requires a callback")
	}
	return nil
}

// CommandResult is the decoded outcome of a synchronous command. The
// discriminator the server sent decides which members are populated.
type CommandResult struct {
	// Records holds the result set ('r' and 'l' responses, and async
	// result records)
	Records []*otypes.Record
	// Scalar is the unwrapped value of a 'w' response (e.g. the count
	// of an UPDATE statement)
	Scalar interface{}
	// Serialized is the opaque payload of an 'a' response
	Serialized string
}

// Command executes a SQL command, script or query on the open database.
type Command struct {
	msg    *Message
	codec  serializer.ICodec
	params CommandParams
}

// NewCommand creates a command request
func NewCommand(conn *transport.Connection, codec serializer.ICodec, params CommandParams) *Command {
	return &Command{msg: NewMessage(conn, proto.OpCommand), codec: codec, params: params}
}

// Execute runs the full request/response round trip
func (c *Command) Execute() (*CommandResult, error) {
	if err := c.Send(); err != nil {
		return nil, err
	}
	return c.FetchResponse()
}

// Send validates the parameters, serializes the command payload and
// writes the request.
func (c *Command) Send() error {
	if err := c.params.Validate(); err != nil {
		return err
	}

	queryClass := c.params.QueryClass
	if queryClass == "" {
		if c.params.Async {
			queryClass = proto.QueryAsync
		} else {
			queryClass = proto.QuerySync
		}
	}

	// the command payload is itself a length-prefixed field sequence.
	// Only the query classes carry limit and fetch plan; plain commands
	// and scripts are just class, query and the terminator.
	payload := []proto.Field{proto.NewString(queryClass)}
	if queryClass == proto.QueryScript {
		payload = append(payload, proto.NewString("sql"))
	}
	payload = append(payload, proto.NewString(c.params.Query))

	switch queryClass {
	case proto.QuerySync, proto.QueryAsync, proto.QueryGremlin:
		limit := c.params.Limit
		if limit == 0 {
			limit = -1
		}
		// an explicit limit clause in the query text overrides the
		// parameter, except for gremlin which has no such clause
		if queryClass != proto.QueryGremlin &&
			strings.Contains(strings.ToLower(c.params.Query), " limit ") {
			limit = -1
		}
		payload = append(payload, proto.NewInt(limit), proto.NewString(c.params.FetchPlan))
	}

	payload = append(payload, proto.NewInt(0))
	encoded, err := proto.EncodeAll(nil, payload)
	if err != nil {
		return err
	}

	mode := proto.ModeSync
	if c.params.Async {
		mode = proto.ModeAsync
	}
	c.msg.Append(proto.NewChar(mode), proto.NewBytes(encoded))
	return c.msg.Send()
}

// FetchResponse decodes the sync or async response shape
func (c *Command) FetchResponse() (*CommandResult, error) {
	dec, err := c.msg.BeginResponse()
	if err != nil {
		return nil, err
	}
	if c.params.Async {
		return c.fetchAsync(dec)
	}
	return c.fetchSync(dec)
}

// fetchSync decodes a synchronous result, discriminated by a leading
// result-type character.
func (c *Command) fetchSync(dec *proto.Decoder) (*CommandResult, error) {
	kind, err := dec.ReadChar()
	if err != nil {
		return nil, err
	}

	result := &CommandResult{}
	switch kind {
	case proto.ResultNull:
		return result, c.readResultEnd(dec)

	case proto.ResultRecord:
		rec, err := readRecord(dec, c.codec)
		if err != nil {
			return nil, err
		}
		if rec != nil {
			result.Records = append(result.Records, rec)
		}
		return result, c.readResultEnd(dec)

	case proto.ResultWrapped:
		rec, err := readRecord(dec, c.codec)
		if err != nil {
			return nil, err
		}
		if rec != nil {
			result.Scalar = rec.Fields["result"]
		}
		return result, c.readResultEnd(dec)

	case proto.ResultSerialized:
		serialized, err := dec.ReadString()
		if err != nil {
			return nil, err
		}
		result.Serialized = serialized
		return result, c.readResultEnd(dec)

	case proto.ResultList:
		count, err := dec.ReadInt()
		if err != nil {
			return nil, err
		}
		if count < 0 {
			return nil, oerror.NewProtocolError("negative result list count %d", count)
		}
		for i := int32(0); i < count; i++ {
			rec, err := readRecord(dec, c.codec)
			if err != nil {
				return nil, err
			}
			result.Records = append(result.Records, rec)
		}
		return result, nil

	default:
		return nil, oerror.NewProtocolError("invalid command result type 0x%02x", kind)
	}
}

// readResultEnd consumes the terminating zero byte the server sends
// after every non-list result.
func (c *Command) readResultEnd(dec *proto.Decoder) error {
	end, err := dec.ReadByte()
	if err != nil {
		return err
	}
	if end != 0 {
		return oerror.NewProtocolError("invalid command result terminator 0x%02x", end)
	}
	return nil
}

// fetchAsync runs the asynchronous read loop: per-record discriminators
// until the terminating zero. Result records go to the callback and the
// result set, prefetch records only to the prefetch callback.
func (c *Command) fetchAsync(dec *proto.Decoder) (*CommandResult, error) {
	result := &CommandResult{}
	for {
		status, err := dec.ReadByte()
		if err != nil {
			return nil, err
		}
		switch status {
		case proto.AsyncDone:
			return result, nil

		case proto.AsyncRecord:
			rec, err := readRecord(dec, c.codec)
			if err != nil {
				return nil, err
			}
			if rec != nil {
				result.Records = append(result.Records, rec)
				c.params.Callback(rec)
			}

		case proto.AsyncPrefetch:
			rec, err := readRecord(dec, c.codec)
			if err != nil {
				return nil, err
			}
			if rec != nil && c.params.PrefetchCallback != nil {
				c.params.PrefetchCallback(rec)
			}

		default:
			return nil, oerror.NewProtocolError("invalid async status byte 0x%02x", status)
		}
	}
}

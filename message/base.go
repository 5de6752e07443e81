// Package message implements the protocol operations: one request type
// per operation code, each owning its exact wire grammar.
//
// Every operation follows the same life cycle: a params value struct is
// validated, the request is framed and written, and the response fields
// are decoded in the exact order the grammar declares them. There is no
// lookahead and no resynchronization - a single mis-read field kills
// the stream, which is why all the field plumbing lives here and the
// callers only ever see typed results.
package message

import (
	"github.com/lni/dragonboat/v4/logger"

	"github.com/gorient/gorient/oerror"
	"github.com/gorient/gorient/otypes"
	"github.com/gorient/gorient/proto"
	"github.com/gorient/gorient/serializer"
	"github.com/gorient/gorient/transport"
)

var log = logger.GetLogger("message")

// --------------------------------------------------------------------------
// Request Assembly
// --------------------------------------------------------------------------

// Message is the shared request/response machinery every operation
// builds on: state guards, header framing and response header decoding.
type Message struct {
	conn   *transport.Connection
	op     proto.Op
	fields []proto.Field
	dec    *proto.Decoder
}

// NewMessage creates the base message for an operation. The operation
// must be in the registry; state guards run at send time.
func NewMessage(conn *transport.Connection, op proto.Op) *Message {
	return &Message{conn: conn, op: op}
}

// Conn returns the connection the message operates on
func (m *Message) Conn() *transport.Connection { return m.conn }

// Append queues fields for the operation body, in wire order
func (m *Message) Append(fields ...proto.Field) {
	m.fields = append(m.fields, fields...)
}

// guard verifies the connection state the registry demands for the
// operation. Runs before any byte is written.
func (m *Message) guard() error {
	info, ok := proto.Operations[m.op]
	if !ok {
		return oerror.NewUsageError("unknown operation code %d", m.op)
	}
	if !m.conn.Connected() {
		return oerror.NewStateError("%s requires an open connection", info.Name)
	}
	if info.RequiresSession && !m.conn.HasSession() {
		return oerror.NewStateError("%s requires an authenticated session", info.Name)
	}
	if info.RequiresDB && !m.conn.DBOpen() {
		return oerror.NewStateError("%s requires an open database", info.Name)
	}
	return nil
}

// Send frames and writes the request: a 4-byte big-endian length over
// the whole payload, then op code, session id, token and the body.
func (m *Message) Send() error {
	if err := m.guard(); err != nil {
		return err
	}

	token := m.conn.Token()
	if token == nil {
		token = []byte{}
	}

	payload := []byte{byte(m.op)}
	payload, err := proto.EncodeAll(payload, []proto.Field{
		proto.NewInt(m.conn.SessionID()),
		proto.NewBytes(token),
	})
	if err != nil {
		return err
	}
	if payload, err = proto.EncodeAll(payload, m.fields); err != nil {
		return err
	}

	frame, err := proto.Encode(nil, proto.NewBytes(payload))
	if err != nil {
		return err
	}

	log.Debugf("-> %s (%d byte payload, session %d)", m.op, len(payload), m.conn.SessionID())
	return m.conn.Write(frame)
}

// --------------------------------------------------------------------------
// Response Decoding
// --------------------------------------------------------------------------

// BeginResponse reads the response header and returns the decoder
// positioned at the first operation-specific field. On an error status
// the server's exception chain is decoded and returned as *ServerError.
// Session-establishing operations additionally consume the fresh
// session id and token and store them on the connection.
func (m *Message) BeginResponse() (*proto.Decoder, error) {
	dec := proto.NewDecoder(m.conn)
	m.dec = dec

	status, err := dec.ReadByte()
	if err != nil {
		return nil, err
	}

	switch status {
	case proto.StatusOK:
		if proto.Operations[m.op].EstablishesSession {
			sessionID, err := dec.ReadInt()
			if err != nil {
				return nil, err
			}
			token, err := dec.ReadBytes()
			if err != nil {
				return nil, err
			}
			m.conn.SetSession(sessionID, token)
			log.Debugf("<- %s established session %d (%d byte token)",
				m.op, sessionID, len(token))
		}
		return dec, nil

	case proto.StatusError:
		return nil, m.readErrorChain(dec)

	default:
		return nil, oerror.NewProtocolError("invalid response status byte 0x%02x", status)
	}
}

// readErrorChain decodes the server exception chain: a 1-byte
// continuation flag, then class and message strings, repeated until the
// flag reads zero.
func (m *Message) readErrorChain(dec *proto.Decoder) error {
	srvErr := &oerror.ServerError{}
	for {
		more, err := dec.ReadByte()
		if err != nil {
			return err
		}
		switch more {
		case 0:
			log.Warningf("<- %s failed: %v", m.op, srvErr)
			return srvErr
		case 1:
			class, err := dec.ReadString()
			if err != nil {
				return err
			}
			msg, err := dec.ReadString()
			if err != nil {
				return err
			}
			srvErr.Exceptions = append(srvErr.Exceptions, oerror.ServerException{
				Class:   class,
				Message: msg,
			})
		default:
			return oerror.NewProtocolError("invalid error chain flag 0x%02x", more)
		}
	}
}

// --------------------------------------------------------------------------
// Shared Payload Readers
// --------------------------------------------------------------------------

// readRecord decodes one record in the marker-short form used by
// command results and prefetch streams: marker 0 is a full record,
// -2 null, -3 a bare record id.
func readRecord(dec *proto.Decoder, codec serializer.ICodec) (*otypes.Record, error) {
	marker, err := dec.ReadShort()
	if err != nil {
		return nil, err
	}

	switch marker {
	case proto.RecordMarkerNull:
		return nil, nil

	case proto.RecordMarkerRID:
		cluster, err := dec.ReadShort()
		if err != nil {
			return nil, err
		}
		position, err := dec.ReadLong()
		if err != nil {
			return nil, err
		}
		rec := otypes.NewEmptyRecord()
		rec.RID = otypes.RID{Cluster: cluster, Position: position}
		return rec, nil

	case proto.RecordMarkerFull:
		recordType, err := dec.ReadChar()
		if err != nil {
			return nil, err
		}
		if !proto.ValidRecordType(recordType) {
			return nil, oerror.NewProtocolError("invalid record type 0x%02x", recordType)
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
		content, err := dec.ReadBytes()
		if err != nil {
			return nil, err
		}

		rec, err := decodeContent(codec, content)
		if err != nil {
			return nil, err
		}
		rec.SetIdentity(otypes.RID{Cluster: cluster, Position: position}, version)
		return rec, nil

	default:
		return nil, oerror.NewProtocolError("invalid record marker %d", marker)
	}
}

// decodeContent turns raw record content into a Record via the
// session's codec. Documents with no class name decode fine; a nil
// codec only ever happens on operations that never see record content.
func decodeContent(codec serializer.ICodec, content []byte) (*otypes.Record, error) {
	rec := otypes.NewEmptyRecord()
	if len(content) == 0 {
		return rec, nil
	}
	if codec == nil {
		return nil, oerror.NewUsageError("no record codec configured")
	}
	class, fields, err := codec.Decode(content)
	if err != nil {
		return nil, err
	}
	rec.Class = class
	rec.Fields = fields
	return rec, nil
}

// readCollectionChanges decodes the optional trailer of create/update
// responses. Servers that do not populate it simply end the stream, so
// a failed count read is tolerated and reported as zero changes.
func readCollectionChanges(dec *proto.Decoder) []otypes.CollectionChange {
	count, err := dec.ReadInt()
	if err != nil {
		log.Debugf("no collection-change trailer (%v), assuming zero changes", err)
		return nil
	}
	if count < 0 || count > 1<<20 {
		log.Debugf("implausible collection-change count %d, assuming zero changes", count)
		return nil
	}

	changes := make([]otypes.CollectionChange, 0, count)
	for i := int32(0); i < count; i++ {
		var c otypes.CollectionChange
		var err error
		if c.UUIDMostSig, err = dec.ReadLong(); err != nil {
			return nil
		}
		if c.UUIDLeastSig, err = dec.ReadLong(); err != nil {
			return nil
		}
		if c.FileID, err = dec.ReadLong(); err != nil {
			return nil
		}
		if c.PageIndex, err = dec.ReadLong(); err != nil {
			return nil
		}
		if c.PageOffset, err = dec.ReadInt(); err != nil {
			return nil
		}
		changes = append(changes, c)
	}
	return changes
}

// readClusters decodes the cluster list of open/reload responses:
// a short count, then name and id per cluster.
func readClusters(dec *proto.Decoder) ([]otypes.Cluster, error) {
	count, err := dec.ReadShort()
	if err != nil {
		return nil, err
	}
	if count < 0 {
		return nil, oerror.NewProtocolError("negative cluster count %d", count)
	}

	clusters := make([]otypes.Cluster, 0, count)
	for i := int16(0); i < count; i++ {
		name, err := dec.ReadString()
		if err != nil {
			return nil, err
		}
		id, err := dec.ReadShort()
		if err != nil {
			return nil, err
		}
		clusters = append(clusters, otypes.Cluster{Name: name, ID: id})
	}
	return clusters, nil
}

package serializer

import (
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/gorient/gorient/oerror"
	"github.com/gorient/gorient/otypes"
)

// csvCodec implements the server's compact textual document encoding:
//
//	ClassName@field:value,other:"text",link:#3:7,nested:(a:1),list:[1,2]
//
// Strings are double-quoted with backslash escapes, longs carry an 'l'
// suffix, doubles a 'd' suffix, links are rendered as RIDs and null is
// the empty value.
type csvCodec struct{}

// --------------------------------------------------------------------------
// Encoding
// --------------------------------------------------------------------------

func (c *csvCodec) Encode(rec *otypes.Record) ([]byte, error) {
	var sb strings.Builder
	if rec.Class != "" {
		sb.WriteString(rec.Class)
		sb.WriteByte('@')
	}

	// deterministic output, simplifies testing and debugging
	keys := make([]string, 0, len(rec.Fields))
	for k := range rec.Fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	for i, key := range keys {
		if i > 0 {
			sb.WriteByte(',')
		}
		sb.WriteString(key)
		sb.WriteByte(':')
		if err := encodeValue(&sb, rec.Fields[key]); err != nil {
			return nil, err
		}
	}

	return []byte(sb.String()), nil
}

func encodeValue(sb *strings.Builder, value interface{}) error {
	switch v := value.(type) {
	case nil:
		// null encodes as the empty value
	case string:
		sb.WriteByte('"')
		sb.WriteString(escapeString(v))
		sb.WriteByte('"')
	case bool:
		sb.WriteString(strconv.FormatBool(v))
	case int:
		return encodeValue(sb, int64(v))
	case int32:
		sb.WriteString(strconv.FormatInt(int64(v), 10))
	case int64:
		sb.WriteString(strconv.FormatInt(v, 10))
		sb.WriteByte('l')
	case float64:
		sb.WriteString(strconv.FormatFloat(v, 'g', -1, 64))
		sb.WriteByte('d')
	case otypes.RID:
		sb.WriteString(v.String())
	case otypes.Link:
		sb.WriteString(v.String())
	case []interface{}:
		sb.WriteByte('[')
		for i, item := range v {
			if i > 0 {
				sb.WriteByte(',')
			}
			if err := encodeValue(sb, item); err != nil {
				return err
			}
		}
		sb.WriteByte(']')
	case map[string]interface{}:
		keys := make([]string, 0, len(v))
		for k := range v {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		sb.WriteByte('(')
		for i, k := range keys {
			if i > 0 {
				sb.WriteByte(',')
			}
			sb.WriteString(k)
			sb.WriteByte(':')
			if err := encodeValue(sb, v[k]); err != nil {
				return err
			}
		}
		sb.WriteByte(')')
	default:
		return oerror.NewUsageError("cannot serialize field value of type %T", value)
	}
	return nil
}

func escapeString(s string) string {
	s = strings.ReplaceAll(s, `\`, `\\`)
	return strings.ReplaceAll(s, `"`, `\"`)
}

// --------------------------------------------------------------------------
// Decoding
// --------------------------------------------------------------------------

func (c *csvCodec) Decode(content []byte) (string, map[string]interface{}, error) {
	p := &csvParser{input: strings.TrimRight(string(content), " \x00")}
	return p.parseDocument()
}

type csvParser struct {
	input string
	pos   int
}

func (p *csvParser) parseDocument() (string, map[string]interface{}, error) {
	class := ""
	fields := map[string]interface{}{}

	// optional class name prefix, terminated by '@' before the first ':'
	if at := strings.IndexByte(p.input, '@'); at >= 0 {
		colon := strings.IndexByte(p.input, ':')
		if colon == -1 || at < colon {
			class = p.input[:at]
			p.pos = at + 1
		}
	}

	for p.pos < len(p.input) {
		key, err := p.readKey()
		if err != nil {
			return "", nil, err
		}
		value, err := p.readValue()
		if err != nil {
			return "", nil, err
		}
		fields[key] = value

		if p.pos < len(p.input) {
			if p.input[p.pos] != ',' {
				return "", nil, p.errorf("expected ',' after field %q", key)
			}
			p.pos++
		}
	}

	return class, fields, nil
}

func (p *csvParser) readKey() (string, error) {
	start := p.pos
	for p.pos < len(p.input) && p.input[p.pos] != ':' {
		p.pos++
	}
	if p.pos >= len(p.input) {
		return "", p.errorf("field key without value")
	}
	key := p.input[start:p.pos]
	p.pos++ // skip ':'
	if key == "" {
		return "", p.errorf("empty field key")
	}
	return key, nil
}

func (p *csvParser) readValue() (interface{}, error) {
	if p.pos >= len(p.input) {
		return nil, nil // trailing null value
	}

	switch ch := p.input[p.pos]; {
	case ch == ',':
		return nil, nil // null value
	case ch == '"':
		return p.readString()
	case ch == '[':
		return p.readList()
	case ch == '(':
		return p.readEmbedded()
	case ch == '#':
		return p.readLink()
	default:
		return p.readScalar()
	}
}

func (p *csvParser) readString() (string, error) {
	p.pos++ // skip opening quote
	var sb strings.Builder
	for p.pos < len(p.input) {
		ch := p.input[p.pos]
		switch ch {
		case '\\':
			if p.pos+1 >= len(p.input) {
				return "", p.errorf("dangling escape")
			}
			sb.WriteByte(p.input[p.pos+1])
			p.pos += 2
		case '"':
			p.pos++
			return sb.String(), nil
		default:
			sb.WriteByte(ch)
			p.pos++
		}
	}
	return "", p.errorf("unterminated string")
}

func (p *csvParser) readList() ([]interface{}, error) {
	p.pos++ // skip '['
	list := []interface{}{}
	for {
		if p.pos >= len(p.input) {
			return nil, p.errorf("unterminated list")
		}
		if p.input[p.pos] == ']' {
			p.pos++
			return list, nil
		}
		item, err := p.readValue()
		if err != nil {
			return nil, err
		}
		list = append(list, item)
		if p.pos < len(p.input) && p.input[p.pos] == ',' {
			p.pos++
		}
	}
}

func (p *csvParser) readEmbedded() (map[string]interface{}, error) {
	p.pos++ // skip '('
	doc := map[string]interface{}{}
	for {
		if p.pos >= len(p.input) {
			return nil, p.errorf("unterminated embedded document")
		}
		if p.input[p.pos] == ')' {
			p.pos++
			return doc, nil
		}
		key, err := p.readKey()
		if err != nil {
			return nil, err
		}
		value, err := p.readValue()
		if err != nil {
			return nil, err
		}
		doc[key] = value
		if p.pos < len(p.input) && p.input[p.pos] == ',' {
			p.pos++
		}
	}
}

func (p *csvParser) readLink() (otypes.Link, error) {
	start := p.pos
	p.pos++ // skip '#'
	for p.pos < len(p.input) && (p.input[p.pos] == ':' || p.input[p.pos] == '-' ||
		(p.input[p.pos] >= '0' && p.input[p.pos] <= '9')) {
		p.pos++
	}
	rid, err := otypes.ParseRID(p.input[start:p.pos])
	if err != nil {
		return otypes.Link{}, p.errorf("invalid link %q", p.input[start:p.pos])
	}
	return otypes.Link{RID: rid}, nil
}

func (p *csvParser) readScalar() (interface{}, error) {
	start := p.pos
	for p.pos < len(p.input) && p.input[p.pos] != ',' &&
		p.input[p.pos] != ']' && p.input[p.pos] != ')' {
		p.pos++
	}
	token := p.input[start:p.pos]

	switch {
	case token == "":
		return nil, nil
	case token == "true":
		return true, nil
	case token == "false":
		return false, nil
	case strings.HasSuffix(token, "l"):
		v, err := strconv.ParseInt(token[:len(token)-1], 10, 64)
		if err != nil {
			return nil, p.errorf("invalid long %q", token)
		}
		return v, nil
	case strings.HasSuffix(token, "d") || strings.HasSuffix(token, "f"):
		v, err := strconv.ParseFloat(token[:len(token)-1], 64)
		if err != nil {
			return nil, p.errorf("invalid float %q", token)
		}
		return v, nil
	default:
		v, err := strconv.ParseInt(token, 10, 32)
		if err != nil {
			return nil, p.errorf("unrecognized value %q", token)
		}
		return int32(v), nil
	}
}

func (p *csvParser) errorf(format string, args ...interface{}) error {
	return oerror.NewProtocolError("record deserialization failed at offset %d: %s",
		p.pos, fmt.Sprintf(format, args...))
}

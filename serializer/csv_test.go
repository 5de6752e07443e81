package serializer

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gorient/gorient/otypes"
)

func TestCSVRoundTrip(t *testing.T) {
	codec, err := ByFormat(FormatCSV)
	require.NoError(t, err)

	rec := otypes.NewRecordOfClass("Person", map[string]interface{}{
		"name":    "ada \"the countess\"",
		"path":    `C:\temp`,
		"age":     int32(36),
		"balance": int64(1000000),
		"ratio":   0.5,
		"active":  true,
		"boss":    otypes.Link{RID: otypes.RID{Cluster: 9, Position: 4}},
		"tags":    []interface{}{"math", "engines"},
		"note":    nil,
	})

	content, err := codec.Encode(rec)
	require.NoError(t, err)

	class, fields, err := codec.Decode(content)
	require.NoError(t, err, "decoding %q", content)
	assert.Equal(t, "Person", class)
	assert.Equal(t, rec.Fields, fields)
}

func TestCSVDecode(t *testing.T) {
	testCases := []struct {
		name    string
		content string
		class   string
		fields  map[string]interface{}
		wantErr bool
	}{
		{
			name:    "class and fields",
			content: `V@name:"n",out:#9:3,n:7`,
			class:   "V",
			fields: map[string]interface{}{
				"name": "n",
				"out":  otypes.Link{RID: otypes.RID{Cluster: 9, Position: 3}},
				"n":    int32(7),
			},
		},
		{
			name:    "no class",
			content: `size:42l,ok:false`,
			fields:  map[string]interface{}{"size": int64(42), "ok": false},
		},
		{
			name:    "null values",
			content: `a:,b:"x"`,
			fields:  map[string]interface{}{"a": nil, "b": "x"},
		},
		{
			name:    "float suffixes",
			content: `d:1.5d,f:2.5f`,
			fields:  map[string]interface{}{"d": 1.5, "f": 2.5},
		},
		{
			name:    "escaped string",
			content: `s:"say \"hi\" \\ bye"`,
			fields:  map[string]interface{}{"s": `say "hi" \ bye`},
		},
		{
			name:    "list of links",
			content: `out:[#9:1,#9:2]`,
			fields: map[string]interface{}{
				"out": []interface{}{
					otypes.Link{RID: otypes.RID{Cluster: 9, Position: 1}},
					otypes.Link{RID: otypes.RID{Cluster: 9, Position: 2}},
				},
			},
		},
		{
			name:    "embedded document",
			content: `databases:(db1:"plocal:/data/db1",db2:"memory:db2")`,
			fields: map[string]interface{}{
				"databases": map[string]interface{}{
					"db1": "plocal:/data/db1",
					"db2": "memory:db2",
				},
			},
		},
		{name: "unterminated string", content: `s:"oops`, wantErr: true},
		{name: "missing value", content: `key`, wantErr: true},
		{name: "garbage scalar", content: `n:12x34`, wantErr: true},
	}

	codec := &csvCodec{}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			class, fields, err := codec.Decode([]byte(tc.content))
			if tc.wantErr {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tc.class, class)
			assert.Equal(t, tc.fields, fields)
		})
	}
}

func TestParseFormat(t *testing.T) {
	format, err := ParseFormat("csv")
	require.NoError(t, err)
	assert.Equal(t, FormatCSV, format)
	assert.Equal(t, "ORecordDocument2csv", format.WireName())

	format, err = ParseFormat("binary")
	require.NoError(t, err)
	assert.Equal(t, FormatBinary, format)
	assert.Equal(t, "ORecordSerializerBinary", format.WireName())

	_, err = ParseFormat("xml")
	assert.Error(t, err)
}

func TestBinaryFormatHasNoCodec(t *testing.T) {
	_, err := ByFormat(FormatBinary)
	assert.Error(t, err)
}

package anyvalue

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/zclconf/go-cty/cty"
)

func TestMarshalKeepsType(t *testing.T) {
	values := map[string]cty.Value{
		"number": cty.NumberIntVal(42),
		"string": cty.StringVal("hello"),
		"object": cty.ObjectVal(map[string]cty.Value{
			"execStatus": cty.NumberIntVal(2),
			"breakpoint": cty.True,
		}),
		"list":  cty.ListVal([]cty.Value{cty.StringVal("a"), cty.StringVal("b")}),
		"tuple": cty.TupleVal([]cty.Value{cty.StringVal("a"), cty.NumberIntVal(1)}),
		"null":  cty.NullVal(cty.String),
	}

	for name, v := range values {
		t.Run(name, func(t *testing.T) {
			data, err := Marshal(v)
			require.NoError(t, err)

			got, err := Unmarshal(data)
			require.NoError(t, err)
			assert.True(t, Equal(v, got), "got %#v", got)
		})
	}
}

func TestMarshalEmpty(t *testing.T) {
	data, err := Marshal(Empty)
	require.NoError(t, err)

	got, err := Unmarshal(data)
	require.NoError(t, err)
	assert.True(t, IsEmpty(got))
	assert.False(t, Equal(got, cty.NullVal(cty.String)))
}

func TestMarshalRejectsUnknown(t *testing.T) {
	_, err := Marshal(cty.UnknownVal(cty.String))
	assert.Error(t, err)
}

func TestUnmarshalGarbage(t *testing.T) {
	_, err := Unmarshal([]byte{0xff, 0x00, 0x13})
	assert.Error(t, err)
}

func TestFromNative(t *testing.T) {
	v, err := FromNative(map[string]interface{}{"count": 3, "name": "x"})
	require.NoError(t, err)

	n, ok := Int64Field(v, "count")
	require.True(t, ok)
	assert.Equal(t, int64(3), n)

	s, ok := StringField(v, "name")
	require.True(t, ok)
	assert.Equal(t, "x", s)

	native, err := ToNative(v)
	require.NoError(t, err)
	assert.Equal(t, map[string]interface{}{"count": float64(3), "name": "x"}, native)
}

func TestNumberFields(t *testing.T) {
	v := cty.ObjectVal(map[string]cty.Value{
		"ok":       cty.NumberIntVal(7),
		"negative": cty.NumberIntVal(-1),
		"fraction": cty.NumberFloatVal(1.5),
		"big":      cty.NumberUIntVal(1 << 33),
		"text":     cty.StringVal("7"),
	})

	got, ok := Uint32Field(v, "ok")
	assert.True(t, ok)
	assert.Equal(t, uint32(7), got)

	for _, name := range []string{"negative", "fraction", "big", "text", "missing"} {
		_, ok := Uint32Field(v, name)
		assert.False(t, ok, name)
	}

	big, ok := Uint64Field(v, "big")
	assert.True(t, ok)
	assert.Equal(t, uint64(1<<33), big)

	_, ok = BoolField(v, "ok")
	assert.False(t, ok)
	_, ok = Uint32Field(cty.StringVal("x"), "ok")
	assert.False(t, ok)
}

func TestEmbeddedEmptyRoundTrip(t *testing.T) {
	obj := cty.ObjectVal(map[string]cty.Value{
		"result": cty.NumberIntVal(0),
		"value":  Embed(Empty),
	})
	data, err := Marshal(obj)
	require.NoError(t, err)

	got, err := Unmarshal(data)
	require.NoError(t, err)
	field, ok := Field(got, "value")
	require.True(t, ok)
	assert.True(t, IsEmpty(Extract(field)))
	assert.True(t, Extract(cty.StringVal("x")).RawEquals(cty.StringVal("x")))
}

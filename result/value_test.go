package result

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMarshalJSON_Scalars(t *testing.T) {
	cases := map[string]Value{
		"null":    Null,
		"true":    Bool(true),
		"false":   Bool(false),
		"1.5":     Number(1.5),
		`"hello"`: String("hello"),
	}
	for want, v := range cases {
		b, err := json.Marshal(v)
		require.NoError(t, err)
		assert.JSONEq(t, want, string(b))
	}
}

func TestMarshalJSON_Array(t *testing.T) {
	v := StringSlice([]string{"web1", "web2", "web3"})
	b, err := json.Marshal(v)
	require.NoError(t, err)
	assert.JSONEq(t, `["web1","web2","web3"]`, string(b))
}

func TestMarshalJSON_PreservesObjectOrder(t *testing.T) {
	obj := NewObject().
		Set("zeta", String("last-inserted-but-not-last-alpha")).
		Set("alpha", Number(1)).
		Set("mid", Bool(true))

	b, err := json.Marshal(obj.Value())
	require.NoError(t, err)
	assert.Equal(t, `{"zeta":"last-inserted-but-not-last-alpha","alpha":1,"mid":true}`, string(b))
}

func TestObject_SetOverwritesInPlace(t *testing.T) {
	obj := NewObject().Set("a", Number(1)).Set("b", Number(2)).Set("a", Number(3))
	assert.Equal(t, []string{"a", "b"}, obj.Value().Keys())
	v, ok := obj.Value().Field("a")
	require.True(t, ok)
	assert.Equal(t, float64(3), v.Number())
}

func TestObject_SortKeys(t *testing.T) {
	obj := NewObject().Set("zeta", Number(1)).Set("alpha", Number(2)).SortKeys()
	assert.Equal(t, []string{"alpha", "zeta"}, obj.Value().Keys())
}

func TestUnmarshalJSON_RoundTrip(t *testing.T) {
	input := `{"name":"web1","tags":["a","b"],"nested":{"x":1,"y":null}}`
	var v Value
	require.NoError(t, json.Unmarshal([]byte(input), &v))

	name, ok := v.Field("name")
	require.True(t, ok)
	assert.Equal(t, "web1", name.String())

	tags, ok := v.Field("tags")
	require.True(t, ok)
	require.Len(t, tags.Items(), 2)

	nested, ok := v.Field("nested")
	require.True(t, ok)
	assert.Equal(t, []string{"x", "y"}, nested.Keys())

	out, err := json.Marshal(v)
	require.NoError(t, err)
	assert.JSONEq(t, input, string(out))
}

func TestTuple_EncodesAsArray(t *testing.T) {
	v := Tuple(String("a"), Number(1))
	b, err := json.Marshal(v)
	require.NoError(t, err)
	assert.JSONEq(t, `["a",1]`, string(b))
}

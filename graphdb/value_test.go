package graphdb

import (
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValueOf(t *testing.T) {
	tests := []struct {
		in   interface{}
		kind Kind
		str  string
	}{
		{nil, KindNull, "null"},
		{true, KindBool, "true"},
		{42, KindInt64, "42"},
		{int32(-7), KindInt64, "-7"},
		{"alice", KindString, "alice"},
		{List, KindCardinality, "list"},
		{TermVertex, KindTerminator, "terminator(Vertex)"},
		{[]interface{}{1, "a"}, KindList, "[1, a]"},
		{Vertex{ID: "1", Label: "person"}, KindVertex, "v[1]"},
	}
	for _, tt := range tests {
		v, err := ValueOf(tt.in)
		require.NoError(t, err, "%#v", tt.in)
		assert.Equal(t, tt.kind, v.Kind())
		assert.Equal(t, tt.str, v.String())
	}

	_, err := ValueOf(3.14)
	assert.True(t, errors.Is(err, ErrTypeConversion))
	_, err = ValueOf([]interface{}{struct{}{}})
	assert.True(t, errors.Is(err, ErrTypeConversion))
}

func TestConversionsAreExplicit(t *testing.T) {
	s := StringValue("30")

	_, err := s.AsInt64()
	assert.True(t, errors.Is(err, ErrTypeConversion))
	_, err = s.AsList()
	assert.True(t, errors.Is(err, ErrTypeConversion))
	_, err = s.AsVertex()
	assert.True(t, errors.Is(err, ErrTypeConversion))
	_, err = Null.AsString()
	assert.True(t, errors.Is(err, ErrTypeConversion))
	_, err = Int64Value(1).AsCardinality()
	assert.True(t, errors.Is(err, ErrTypeConversion))

	str, err := s.AsString()
	require.NoError(t, err)
	assert.Equal(t, "30", str)
}

func TestListCopyOnWrite(t *testing.T) {
	base := ListValue(Int64Value(1))
	grown, err := base.Append(Int64Value(2))
	require.NoError(t, err)

	assert.Equal(t, 1, base.Len())
	assert.Equal(t, 2, grown.Len())

	items, err := grown.AsList()
	require.NoError(t, err)
	items[0] = StringValue("changed")
	again, _ := grown.AsList()
	assert.Equal(t, Int64Value(1), again[0])

	fromNull, err := Null.Append(Int64Value(1))
	require.NoError(t, err)
	assert.Equal(t, 1, fromNull.Len())

	_, err = StringValue("x").Append(Int64Value(1))
	assert.True(t, errors.Is(err, ErrTypeConversion))
}

func TestVertexValueIsImmutable(t *testing.T) {
	v := Vertex{ID: "1", Label: "person", Properties: map[string][]Value{"name": {StringValue("alice")}}}
	value := VertexValue(v)
	v.Properties["name"][0] = StringValue("bob")

	got, err := value.AsVertex()
	require.NoError(t, err)
	assert.Equal(t, StringValue("alice"), got.Properties["name"][0])

	got.Properties["age"] = []Value{Int64Value(3)}
	again, _ := value.AsVertex()
	assert.NotContains(t, again.Properties, "age")
}

func TestEqual(t *testing.T) {
	assert.True(t, Null.Equal(Value{}))
	assert.True(t, ListValue(Int64Value(1), StringValue("a")).Equal(ListValue(Int64Value(1), StringValue("a"))))
	assert.False(t, Int64Value(1).Equal(StringValue("1")))
	assert.True(t, VertexValue(Vertex{ID: "1", Label: "a"}).Equal(VertexValue(Vertex{ID: "1", Label: "b"})))
	assert.False(t, VertexPropertyValue("k", Int64Value(1)).Equal(VertexPropertyValue("k", Int64Value(2))))
}

func TestParseCardinality(t *testing.T) {
	card, err := ParseCardinality("LIST")
	require.NoError(t, err)
	assert.Equal(t, List, card)

	_, err = ParseCardinality("bag")
	assert.True(t, errors.Is(err, ErrTypeConversion))
}

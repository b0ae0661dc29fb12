package graphdb

import (
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/pkg/errors"
)

// Kind tags the variant held by a Value
type Kind int

const (
	KindNull Kind = iota
	KindBool
	KindInt64
	KindString
	KindList
	KindVertex
	KindEdge
	KindVertexProperty
	KindCardinality
	KindTerminator
)

func (k Kind) String() string {
	switch k {
	case KindNull:
		return "Null"
	case KindBool:
		return "Bool"
	case KindInt64:
		return "Int64"
	case KindString:
		return "String"
	case KindList:
		return "List"
	case KindVertex:
		return "Vertex"
	case KindEdge:
		return "Edge"
	case KindVertexProperty:
		return "VertexProperty"
	case KindCardinality:
		return "Cardinality"
	case KindTerminator:
		return "Terminator"
	default:
		return "Unknown"
	}
}

// Cardinality is the multiplicity policy of a property key
type Cardinality int

const (
	Single Cardinality = iota
	List
	Set
)

func (c Cardinality) String() string {
	switch c {
	case Single:
		return "single"
	case List:
		return "list"
	case Set:
		return "set"
	default:
		return "unknown"
	}
}

// ParseCardinality maps a Gremlin cardinality name to its marker
func ParseCardinality(name string) (Cardinality, error) {
	switch strings.ToLower(name) {
	case "single":
		return Single, nil
	case "list":
		return List, nil
	case "set":
		return Set, nil
	default:
		return Single, errors.Wrapf(ErrTypeConversion, "unknown cardinality %q", name)
	}
}

// TerminatorToken denotes the shape a traversal currently yields
type TerminatorToken int

const (
	TermNull TerminatorToken = iota
	TermVertex
	TermEdge
	TermVertexProperty
	TermInt64
)

func (t TerminatorToken) String() string {
	switch t {
	case TermNull:
		return "Null"
	case TermVertex:
		return "Vertex"
	case TermEdge:
		return "Edge"
	case TermVertexProperty:
		return "VertexProperty"
	case TermInt64:
		return "Int64"
	default:
		return "Unknown"
	}
}

// Vertex is a stored graph element. ID is a time-ordered UUID string.
type Vertex struct {
	ID         string
	Label      string
	Properties map[string][]Value
}

// PropertyKeys returns the vertex's property keys in sorted order
func (v Vertex) PropertyKeys() []string {
	keys := make([]string, 0, len(v.Properties))
	for k := range v.Properties {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

func (v Vertex) clone() Vertex {
	props := make(map[string][]Value, len(v.Properties))
	for k, vals := range v.Properties {
		props[k] = append([]Value(nil), vals...)
	}
	return Vertex{ID: v.ID, Label: v.Label, Properties: props}
}

// Edge is a data-model placeholder; nothing persists edges yet
type Edge struct {
	ID         string
	Label      string
	OutV       string
	InV        string
	Properties map[string][]Value
}

// VertexProperty is one key/value pair of a vertex
type VertexProperty struct {
	Key   string
	Value Value
}

// Value is an immutable tagged union flowing between steps.
// The zero Value is Null.
type Value struct {
	kind Kind
	b    bool
	i    int64
	s    string
	list []Value
	v    *Vertex
	e    *Edge
	vp   *VertexProperty
	card Cardinality
	term TerminatorToken
}

var Null = Value{}

func BoolValue(b bool) Value { return Value{kind: KindBool, b: b} }
func Int64Value(i int64) Value { return Value{kind: KindInt64, i: i} }
func StringValue(s string) Value { return Value{kind: KindString, s: s} }
func CardinalityValue(c Cardinality) Value {
	return Value{kind: KindCardinality, card: c}
}
func TerminatorValue(t TerminatorToken) Value {
	return Value{kind: KindTerminator, term: t}
}

// ListValue copies items into a new list value
func ListValue(items ...Value) Value {
	return Value{kind: KindList, list: append([]Value{}, items...)}
}

// VertexValue stores a deep copy of v
func VertexValue(v Vertex) Value {
	c := v.clone()
	return Value{kind: KindVertex, v: &c}
}

func EdgeValue(e Edge) Value {
	c := e
	return Value{kind: KindEdge, e: &c}
}

func VertexPropertyValue(key string, value Value) Value {
	return Value{kind: KindVertexProperty, vp: &VertexProperty{Key: key, Value: value}}
}

// ValueOf converts a native Go value into a Value
func ValueOf(x interface{}) (Value, error) {
	switch t := x.(type) {
	case nil:
		return Null, nil
	case Value:
		return t, nil
	case bool:
		return BoolValue(t), nil
	case int:
		return Int64Value(int64(t)), nil
	case int8:
		return Int64Value(int64(t)), nil
	case int16:
		return Int64Value(int64(t)), nil
	case int32:
		return Int64Value(int64(t)), nil
	case int64:
		return Int64Value(t), nil
	case uint8:
		return Int64Value(int64(t)), nil
	case uint16:
		return Int64Value(int64(t)), nil
	case uint32:
		return Int64Value(int64(t)), nil
	case string:
		return StringValue(t), nil
	case Cardinality:
		return CardinalityValue(t), nil
	case TerminatorToken:
		return TerminatorValue(t), nil
	case Vertex:
		return VertexValue(t), nil
	case Edge:
		return EdgeValue(t), nil
	case VertexProperty:
		return VertexPropertyValue(t.Key, t.Value), nil
	case []Value:
		return ListValue(t...), nil
	case []interface{}:
		items := make([]Value, 0, len(t))
		for _, item := range t {
			v, err := ValueOf(item)
			if err != nil {
				return Null, err
			}
			items = append(items, v)
		}
		return ListValue(items...), nil
	default:
		return Null, errors.Wrapf(ErrTypeConversion, "cannot convert %T to a value", x)
	}
}

func (v Value) Kind() Kind   { return v.kind }
func (v Value) IsNull() bool { return v.kind == KindNull }

func (v Value) conversionError(want Kind) error {
	return errors.Wrapf(ErrTypeConversion, "expected %s, got %s", want, v.kind)
}

func (v Value) AsBool() (bool, error) {
	if v.kind != KindBool {
		return false, v.conversionError(KindBool)
	}
	return v.b, nil
}

func (v Value) AsInt64() (int64, error) {
	if v.kind != KindInt64 {
		return 0, v.conversionError(KindInt64)
	}
	return v.i, nil
}

func (v Value) AsString() (string, error) {
	if v.kind != KindString {
		return "", v.conversionError(KindString)
	}
	return v.s, nil
}

// AsList returns a copy of the list items
func (v Value) AsList() ([]Value, error) {
	if v.kind != KindList {
		return nil, v.conversionError(KindList)
	}
	return append([]Value{}, v.list...), nil
}

// AsVertex returns a deep copy of the vertex
func (v Value) AsVertex() (Vertex, error) {
	if v.kind != KindVertex {
		return Vertex{}, v.conversionError(KindVertex)
	}
	return v.v.clone(), nil
}

func (v Value) AsEdge() (Edge, error) {
	if v.kind != KindEdge {
		return Edge{}, v.conversionError(KindEdge)
	}
	return *v.e, nil
}

func (v Value) AsVertexProperty() (VertexProperty, error) {
	if v.kind != KindVertexProperty {
		return VertexProperty{}, v.conversionError(KindVertexProperty)
	}
	return *v.vp, nil
}

func (v Value) AsCardinality() (Cardinality, error) {
	if v.kind != KindCardinality {
		return Single, v.conversionError(KindCardinality)
	}
	return v.card, nil
}

func (v Value) AsTerminator() (TerminatorToken, error) {
	if v.kind != KindTerminator {
		return TermNull, v.conversionError(KindTerminator)
	}
	return v.term, nil
}

// Len is the number of items of a list value, zero for anything else
func (v Value) Len() int {
	if v.kind != KindList {
		return 0
	}
	return len(v.list)
}

// Append returns a new list with item added; the receiver is unchanged.
// Null is treated as the empty list.
func (v Value) Append(item Value) (Value, error) {
	switch v.kind {
	case KindNull:
		return ListValue(item), nil
	case KindList:
		items := make([]Value, len(v.list), len(v.list)+1)
		copy(items, v.list)
		return Value{kind: KindList, list: append(items, item)}, nil
	default:
		return Null, v.conversionError(KindList)
	}
}

// Equal reports structural equality. Vertices compare by identity.
func (v Value) Equal(o Value) bool {
	if v.kind != o.kind {
		return false
	}
	switch v.kind {
	case KindNull:
		return true
	case KindBool:
		return v.b == o.b
	case KindInt64:
		return v.i == o.i
	case KindString:
		return v.s == o.s
	case KindList:
		if len(v.list) != len(o.list) {
			return false
		}
		for i := range v.list {
			if !v.list[i].Equal(o.list[i]) {
				return false
			}
		}
		return true
	case KindVertex:
		return v.v.ID == o.v.ID
	case KindEdge:
		return v.e.ID == o.e.ID
	case KindVertexProperty:
		return v.vp.Key == o.vp.Key && v.vp.Value.Equal(o.vp.Value)
	case KindCardinality:
		return v.card == o.card
	case KindTerminator:
		return v.term == o.term
	}
	return false
}

// Interface returns the native Go form of the value
func (v Value) Interface() interface{} {
	switch v.kind {
	case KindBool:
		return v.b
	case KindInt64:
		return v.i
	case KindString:
		return v.s
	case KindList:
		out := make([]interface{}, len(v.list))
		for i, item := range v.list {
			out[i] = item.Interface()
		}
		return out
	case KindVertex:
		return v.v.clone()
	case KindEdge:
		return *v.e
	case KindVertexProperty:
		return *v.vp
	case KindCardinality:
		return v.card
	case KindTerminator:
		return v.term
	default:
		return nil
	}
}

func (v Value) String() string {
	switch v.kind {
	case KindNull:
		return "null"
	case KindBool:
		return strconv.FormatBool(v.b)
	case KindInt64:
		return strconv.FormatInt(v.i, 10)
	case KindString:
		return v.s
	case KindList:
		parts := make([]string, len(v.list))
		for i, item := range v.list {
			parts[i] = item.String()
		}
		return "[" + strings.Join(parts, ", ") + "]"
	case KindVertex:
		return fmt.Sprintf("v[%s]", v.v.ID)
	case KindEdge:
		return fmt.Sprintf("e[%s]", v.e.ID)
	case KindVertexProperty:
		return fmt.Sprintf("vp[%s->%s]", v.vp.Key, v.vp.Value)
	case KindCardinality:
		return v.card.String()
	case KindTerminator:
		return "terminator(" + v.term.String() + ")"
	default:
		return "unknown"
	}
}

package graphdb

import (
	"github.com/pkg/errors"
)

// Collect turns the accumulator into the value the live terminator describes.
// source is the operator that established the active stream.
func Collect(result ExecutionResult, terminator TerminatorToken, source string) (Value, error) {
	switch terminator {
	case TermNull:
		return Null, nil

	case TermVertex:
		slot := result.FromSource(source)
		if !slot.Filled() || (source != "V" && source != "addV") {
			return Null, mismatch(terminator, source)
		}
		if slot.Value.IsNull() {
			return ListValue(), nil
		}
		return slot.Value, nil

	case TermEdge:
		slot := result.FromSource(source)
		if !slot.Filled() || (source != "E" && source != "addE") {
			return Null, mismatch(terminator, source)
		}
		if slot.Value.IsNull() {
			return ListValue(), nil
		}
		return slot.Value, nil

	case TermVertexProperty:
		slot := result.FromSource("properties")
		if !slot.Filled() {
			return Null, mismatch(terminator, "properties")
		}
		return slot.Value, nil

	case TermInt64:
		slot := result.FromSource("count")
		if !slot.Filled() {
			return Null, mismatch(terminator, "count")
		}
		return Int64Value(int64(slot.Value.Len())), nil
	}
	return Null, errors.Wrapf(ErrTerminatorMismatch, "unknown terminator %d", terminator)
}

func mismatch(terminator TerminatorToken, source string) error {
	return errors.Wrapf(ErrTerminatorMismatch, "no %s result from %q", terminator, source)
}

// flattenProperties lists every property value of vertices as VertexProperty
// values, keys in sorted order per vertex
func flattenProperties(vertices []Vertex) Value {
	var items []Value
	for _, v := range vertices {
		for _, key := range v.PropertyKeys() {
			for _, value := range v.Properties[key] {
				items = append(items, VertexPropertyValue(key, value))
			}
		}
	}
	return ListValue(items...)
}

package graphdb

import (
	"bytes"
	"encoding/binary"

	"github.com/pkg/errors"
)

const recordVersion byte = 1

// property value type tags on disk
const (
	tagNull byte = iota
	tagBool
	tagInt64
	tagString
)

// encodeVertex converts a Vertex to its stored record
func encodeVertex(v Vertex) ([]byte, error) {
	var buf bytes.Buffer
	buf.Grow(64)

	buf.WriteByte(recordVersion)
	writeString(&buf, v.ID)
	writeString(&buf, v.Label)

	keys := v.PropertyKeys()
	if err := binary.Write(&buf, binary.LittleEndian, uint32(len(keys))); err != nil {
		return nil, errors.Wrap(err, "failed to write property count")
	}
	for _, key := range keys {
		values := v.Properties[key]
		writeString(&buf, key)
		if err := binary.Write(&buf, binary.LittleEndian, uint32(len(values))); err != nil {
			return nil, errors.Wrapf(err, "failed to write value count for %q", key)
		}
		for _, value := range values {
			if err := writeValue(&buf, value); err != nil {
				return nil, errors.Wrapf(err, "failed to serialize property %q", key)
			}
		}
	}
	return buf.Bytes(), nil
}

// decodeVertex converts a stored record back to a Vertex
func decodeVertex(data []byte) (Vertex, error) {
	if len(data) == 0 {
		return Vertex{}, errors.New("empty vertex record")
	}
	buf := bytes.NewReader(data)

	version, _ := buf.ReadByte()
	if version != recordVersion {
		return Vertex{}, errors.Errorf("unsupported record version: %d", version)
	}

	var v Vertex
	var err error
	if v.ID, err = readString(buf); err != nil {
		return Vertex{}, errors.Wrap(err, "failed to read vertex id")
	}
	if v.Label, err = readString(buf); err != nil {
		return Vertex{}, errors.Wrap(err, "failed to read vertex label")
	}

	var propCount uint32
	if err := binary.Read(buf, binary.LittleEndian, &propCount); err != nil {
		return Vertex{}, errors.Wrap(err, "failed to read property count")
	}
	// every property needs at least its key length prefix
	if int64(propCount)*4 > int64(buf.Len()) {
		return Vertex{}, errors.Errorf("property count %d exceeds remaining buffer %d", propCount, buf.Len())
	}
	v.Properties = make(map[string][]Value, propCount)
	for i := uint32(0); i < propCount; i++ {
		key, err := readString(buf)
		if err != nil {
			return Vertex{}, errors.Wrapf(err, "failed to read property key at index %d", i)
		}
		var valueCount uint32
		if err := binary.Read(buf, binary.LittleEndian, &valueCount); err != nil {
			return Vertex{}, errors.Wrapf(err, "failed to read value count for %q", key)
		}
		// every value needs at least its type tag
		if int64(valueCount) > int64(buf.Len()) {
			return Vertex{}, errors.Errorf("value count %d for %q exceeds remaining buffer %d", valueCount, key, buf.Len())
		}
		values := make([]Value, 0, valueCount)
		for j := uint32(0); j < valueCount; j++ {
			value, err := readValue(buf)
			if err != nil {
				return Vertex{}, errors.Wrapf(err, "failed to deserialize property %q", key)
			}
			values = append(values, value)
		}
		v.Properties[key] = values
	}
	return v, nil
}

func writeString(buf *bytes.Buffer, s string) {
	var size [4]byte
	binary.LittleEndian.PutUint32(size[:], uint32(len(s)))
	buf.Write(size[:])
	buf.WriteString(s)
}

func readString(buf *bytes.Reader) (string, error) {
	var size uint32
	if err := binary.Read(buf, binary.LittleEndian, &size); err != nil {
		return "", err
	}
	if int(size) > buf.Len() {
		return "", errors.Errorf("string length %d exceeds remaining buffer %d", size, buf.Len())
	}
	b := make([]byte, size)
	if _, err := buf.Read(b); err != nil && size > 0 {
		return "", err
	}
	return string(b), nil
}

// writeValue serializes a single property value; only scalars are storable
func writeValue(buf *bytes.Buffer, v Value) error {
	switch v.Kind() {
	case KindNull:
		buf.WriteByte(tagNull)
	case KindBool:
		buf.WriteByte(tagBool)
		buf.WriteByte(btoi(v.b))
	case KindInt64:
		buf.WriteByte(tagInt64)
		return binary.Write(buf, binary.LittleEndian, v.i)
	case KindString:
		buf.WriteByte(tagString)
		writeString(buf, v.s)
	default:
		return errors.Wrapf(ErrTypeConversion, "%s is not a storable property value", v.Kind())
	}
	return nil
}

func readValue(buf *bytes.Reader) (Value, error) {
	tag, err := buf.ReadByte()
	if err != nil {
		return Null, errors.Wrap(err, "failed to read value type")
	}
	switch tag {
	case tagNull:
		return Null, nil
	case tagBool:
		b, err := buf.ReadByte()
		if err != nil {
			return Null, errors.Wrap(err, "failed to read bool value")
		}
		return BoolValue(b != 0), nil
	case tagInt64:
		var i int64
		if err := binary.Read(buf, binary.LittleEndian, &i); err != nil {
			return Null, errors.Wrap(err, "failed to read int64 value")
		}
		return Int64Value(i), nil
	case tagString:
		s, err := readString(buf)
		if err != nil {
			return Null, errors.Wrap(err, "failed to read string value")
		}
		return StringValue(s), nil
	default:
		return Null, errors.Errorf("unsupported value type %d", tag)
	}
}

func btoi(b bool) byte {
	if b {
		return 1
	}
	return 0
}

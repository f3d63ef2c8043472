package fgb

import (
	"bytes"
	"encoding/binary"
	"math"

	"github.com/flatgeobuf/flatgeobuf/src/go/flattypes"
	"github.com/pkg/errors"

	"github.com/b2gm/lodmap/element"
)

func columnType(v element.Value) (flattypes.ColumnType, bool) {
	switch v.Kind {
	case element.Number:
		return flattypes.ColumnTypeDouble, true
	case element.String:
		return flattypes.ColumnTypeString, true
	case element.Bool:
		return flattypes.ColumnTypeBool, true
	}
	return 0, false
}

// encodeProperties writes [uint16 column][value] pairs in column order.
// Null values are omitted.
func encodeProperties(attrs *element.Attributes, columns []Column, colIndex map[string]int) []byte {
	if attrs.Len() == 0 || len(columns) == 0 {
		return nil
	}
	values := make([]*element.Value, len(columns))
	for _, k := range attrs.Keys() {
		i, ok := colIndex[k]
		if !ok {
			continue
		}
		v, _ := attrs.Get(k)
		if v.Kind == element.Null {
			continue
		}
		values[i] = &v
	}

	var buf bytes.Buffer
	var scratch [8]byte
	for i, v := range values {
		if v == nil {
			continue
		}
		binary.LittleEndian.PutUint16(scratch[:2], uint16(i))
		buf.Write(scratch[:2])

		switch columns[i].Type {
		case flattypes.ColumnTypeBool:
			if v.Bool {
				buf.WriteByte(1)
			} else {
				buf.WriteByte(0)
			}
		case flattypes.ColumnTypeDouble:
			binary.LittleEndian.PutUint64(scratch[:], math.Float64bits(v.Num))
			buf.Write(scratch[:])
		default:
			s := v.String()
			binary.LittleEndian.PutUint32(scratch[:4], uint32(len(s)))
			buf.Write(scratch[:4])
			buf.WriteString(s)
		}
	}
	return buf.Bytes()
}

// decodeProperties returns the attributes ordered by column, not by their
// order in data.
func decodeProperties(data []byte, columns []Column) (*element.Attributes, error) {
	values := make([]*element.Value, len(columns))
	for off := 0; off < len(data); {
		if off+2 > len(data) {
			return nil, errors.New("fgb: truncated property column index")
		}
		i := int(binary.LittleEndian.Uint16(data[off:]))
		off += 2
		if i >= len(columns) {
			return nil, errors.Errorf("fgb: property references unknown column %d", i)
		}
		v, n, err := readValue(data[off:], columns[i].Type)
		if err != nil {
			return nil, errors.Wrapf(err, "column %s", columns[i].Name)
		}
		off += n
		values[i] = &v
	}

	attrs := element.NewAttributes()
	for i, v := range values {
		if v != nil {
			attrs.Set(columns[i].Name, *v)
		}
	}
	return attrs, nil
}

var errTruncated = errors.New("fgb: truncated property value")

func readValue(data []byte, t flattypes.ColumnType) (element.Value, int, error) {
	need := func(n int) error {
		if len(data) < n {
			return errTruncated
		}
		return nil
	}
	le := binary.LittleEndian

	switch t {
	case flattypes.ColumnTypeBool:
		if err := need(1); err != nil {
			return element.Value{}, 0, err
		}
		return element.BoolValue(data[0] != 0), 1, nil
	case flattypes.ColumnTypeByte:
		if err := need(1); err != nil {
			return element.Value{}, 0, err
		}
		return element.NumberValue(float64(int8(data[0]))), 1, nil
	case flattypes.ColumnTypeUByte:
		if err := need(1); err != nil {
			return element.Value{}, 0, err
		}
		return element.NumberValue(float64(data[0])), 1, nil
	case flattypes.ColumnTypeShort:
		if err := need(2); err != nil {
			return element.Value{}, 0, err
		}
		return element.NumberValue(float64(int16(le.Uint16(data)))), 2, nil
	case flattypes.ColumnTypeUShort:
		if err := need(2); err != nil {
			return element.Value{}, 0, err
		}
		return element.NumberValue(float64(le.Uint16(data))), 2, nil
	case flattypes.ColumnTypeInt:
		if err := need(4); err != nil {
			return element.Value{}, 0, err
		}
		return element.NumberValue(float64(int32(le.Uint32(data)))), 4, nil
	case flattypes.ColumnTypeUInt:
		if err := need(4); err != nil {
			return element.Value{}, 0, err
		}
		return element.NumberValue(float64(le.Uint32(data))), 4, nil
	case flattypes.ColumnTypeLong:
		if err := need(8); err != nil {
			return element.Value{}, 0, err
		}
		return element.NumberValue(float64(int64(le.Uint64(data)))), 8, nil
	case flattypes.ColumnTypeULong:
		if err := need(8); err != nil {
			return element.Value{}, 0, err
		}
		return element.NumberValue(float64(le.Uint64(data))), 8, nil
	case flattypes.ColumnTypeFloat:
		if err := need(4); err != nil {
			return element.Value{}, 0, err
		}
		return element.NumberValue(float64(math.Float32frombits(le.Uint32(data)))), 4, nil
	case flattypes.ColumnTypeDouble:
		if err := need(8); err != nil {
			return element.Value{}, 0, err
		}
		return element.NumberValue(math.Float64frombits(le.Uint64(data))), 8, nil
	case flattypes.ColumnTypeString, flattypes.ColumnTypeJson, flattypes.ColumnTypeDateTime, flattypes.ColumnTypeBinary:
		// length prefixed
		if err := need(4); err != nil {
			return element.Value{}, 0, err
		}
		n := int(le.Uint32(data))
		if err := need(4 + n); err != nil {
			return element.Value{}, 0, err
		}
		return element.StringValue(string(data[4 : 4+n])), 4 + n, nil
	}
	return element.Value{}, 0, errors.Errorf("fgb: unsupported column type %d", t)
}

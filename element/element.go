package element

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"github.com/paulmach/orb"
)

type Kind int

const (
	Null Kind = iota
	Number
	String
	Bool
)

func (k Kind) String() string {
	switch k {
	case Number:
		return "number"
	case String:
		return "string"
	case Bool:
		return "bool"
	default:
		return "null"
	}
}

// Value is a scalar attribute value of a footprint.
type Value struct {
	Kind Kind
	Num  float64
	Str  string
	Bool bool
}

func NumberValue(v float64) Value { return Value{Kind: Number, Num: v} }
func StringValue(v string) Value  { return Value{Kind: String, Str: v} }
func BoolValue(v bool) Value      { return Value{Kind: Bool, Bool: v} }
func NullValue() Value            { return Value{} }

// ValueOf converts decoded values (JSON, FlatGeobuf, DBF) into a Value.
// Nested values are stored as their JSON encoding.
func ValueOf(v interface{}) Value {
	switch val := v.(type) {
	case nil:
		return NullValue()
	case Value:
		return val
	case bool:
		return BoolValue(val)
	case string:
		return StringValue(val)
	case float64:
		return NumberValue(val)
	case float32:
		return NumberValue(float64(val))
	case int:
		return NumberValue(float64(val))
	case int8:
		return NumberValue(float64(val))
	case int16:
		return NumberValue(float64(val))
	case int32:
		return NumberValue(float64(val))
	case int64:
		return NumberValue(float64(val))
	case uint8:
		return NumberValue(float64(val))
	case uint16:
		return NumberValue(float64(val))
	case uint32:
		return NumberValue(float64(val))
	case uint64:
		return NumberValue(float64(val))
	case json.Number:
		if f, err := val.Float64(); err == nil {
			return NumberValue(f)
		}
		return StringValue(val.String())
	case []byte:
		return StringValue(string(val))
	default:
		b, err := json.Marshal(val)
		if err != nil {
			return StringValue(fmt.Sprint(val))
		}
		return StringValue(string(b))
	}
}

// Float returns the numeric value. Strings are parsed, so that storey
// counts from text columns (DBF, OSM tags) can be used.
func (v Value) Float() (float64, bool) {
	switch v.Kind {
	case Number:
		return v.Num, true
	case String:
		f, err := strconv.ParseFloat(strings.TrimSpace(v.Str), 64)
		if err != nil {
			return 0, false
		}
		return f, true
	}
	return 0, false
}

// String formats the value for text outputs. Null is the empty string.
func (v Value) String() string {
	switch v.Kind {
	case Number:
		return strconv.FormatFloat(v.Num, 'f', -1, 64)
	case String:
		return v.Str
	case Bool:
		return strconv.FormatBool(v.Bool)
	default:
		return ""
	}
}

// Interface returns the plain Go value (nil, float64, string or bool).
func (v Value) Interface() interface{} {
	switch v.Kind {
	case Number:
		return v.Num
	case String:
		return v.Str
	case Bool:
		return v.Bool
	default:
		return nil
	}
}

// Attributes is an ordered mapping of attribute keys to values. Keys keep
// the order of their first Set.
type Attributes struct {
	keys   []string
	values map[string]Value
}

func NewAttributes() *Attributes {
	return &Attributes{values: make(map[string]Value)}
}

func (a *Attributes) Set(key string, v Value) {
	if a.values == nil {
		a.values = make(map[string]Value)
	}
	if _, ok := a.values[key]; !ok {
		a.keys = append(a.keys, key)
	}
	a.values[key] = v
}

func (a *Attributes) Get(key string) (Value, bool) {
	if a == nil {
		return Value{}, false
	}
	v, ok := a.values[key]
	return v, ok
}

// Keys returns the keys in insertion order. The slice must not be modified.
func (a *Attributes) Keys() []string {
	if a == nil {
		return nil
	}
	return a.keys
}

func (a *Attributes) Len() int {
	if a == nil {
		return 0
	}
	return len(a.keys)
}

// Map returns the attributes as plain Go values, e.g. for JSON encoding.
func (a *Attributes) Map() map[string]interface{} {
	m := make(map[string]interface{}, a.Len())
	for _, k := range a.Keys() {
		m[k] = a.values[k].Interface()
	}
	return m
}

// MarshalJSON writes the attributes as JSON object in key order.
func (a *Attributes) MarshalJSON() ([]byte, error) {
	var b strings.Builder
	b.WriteByte('{')
	for i, k := range a.Keys() {
		if i > 0 {
			b.WriteByte(',')
		}
		key, err := json.Marshal(k)
		if err != nil {
			return nil, err
		}
		val, err := json.Marshal(a.values[k].Interface())
		if err != nil {
			return nil, err
		}
		b.Write(key)
		b.WriteByte(':')
		b.Write(val)
	}
	b.WriteByte('}')
	return []byte(b.String()), nil
}

// Clone returns a copy that shares no state with a.
func (a *Attributes) Clone() *Attributes {
	c := &Attributes{
		keys:   make([]string, len(a.Keys())),
		values: make(map[string]Value, a.Len()),
	}
	copy(c.keys, a.Keys())
	for _, k := range a.Keys() {
		c.values[k] = a.values[k]
	}
	return c
}

// Feature is a single footprint as read from a source.
// Geometry is an orb.Polygon or orb.MultiPolygon for all supported
// footprints. Other geometries (or nil) are passed on and rejected by the
// processor.
type Feature struct {
	// Index is the 0-based position of the feature in its source.
	Index      int
	ID         string
	Geometry   orb.Geometry
	Attributes *Attributes
}

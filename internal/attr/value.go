package attr

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"math"
	"net/http"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/teemow/telepipe/internal/codec"
)

// Kind identifies the variant held by a Value.
type Kind int

const (
	KindEmpty Kind = iota
	KindBool
	KindInt64
	KindFloat64
	KindString
	KindMap
)

// String returns the lowercase name of the kind.
func (k Kind) String() string {
	switch k {
	case KindBool:
		return "bool"
	case KindInt64:
		return "int64"
	case KindFloat64:
		return "float64"
	case KindString:
		return "string"
	case KindMap:
		return "map"
	default:
		return "empty"
	}
}

// Value is a tagged union of the payload types allowed in log data and span
// attributes. The zero Value is empty.
type Value struct {
	kind Kind
	num  uint64
	str  string
	m    Map
}

// Map is a set of named values. Nested maps are allowed.
type Map map[string]Value

// BoolValue returns a Value holding b.
func BoolValue(b bool) Value {
	var n uint64
	if b {
		n = 1
	}
	return Value{kind: KindBool, num: n}
}

// Int64Value returns a Value holding n.
func Int64Value(n int64) Value {
	return Value{kind: KindInt64, num: uint64(n)}
}

// IntValue returns a Value holding n as an int64.
func IntValue(n int) Value {
	return Int64Value(int64(n))
}

// Float64Value returns a Value holding f.
func Float64Value(f float64) Value {
	return Value{kind: KindFloat64, num: math.Float64bits(f)}
}

// StringValue returns a Value holding s.
func StringValue(s string) Value {
	return Value{kind: KindString, str: s}
}

// MapValue returns a Value holding a copy of m.
func MapValue(m Map) Value {
	return Value{kind: KindMap, m: m.Clone()}
}

// Kind returns the variant held by v.
func (v Value) Kind() Kind { return v.kind }

// IsEmpty reports whether v holds nothing.
func (v Value) IsEmpty() bool { return v.kind == KindEmpty }

// AsBool returns the bool held by v, or false for other kinds.
func (v Value) AsBool() bool { return v.kind == KindBool && v.num == 1 }

// AsInt64 returns the int64 held by v, or 0 for other kinds.
func (v Value) AsInt64() int64 {
	if v.kind != KindInt64 {
		return 0
	}
	return int64(v.num)
}

// AsFloat64 returns the float64 held by v, or 0 for other kinds.
func (v Value) AsFloat64() float64 {
	if v.kind != KindFloat64 {
		return 0
	}
	return math.Float64frombits(v.num)
}

// AsString returns the string held by v, or "" for other kinds.
// Use String for a rendering of any kind.
func (v Value) AsString() string {
	if v.kind != KindString {
		return ""
	}
	return v.str
}

// AsMap returns the map held by v, or nil for other kinds. The returned map
// must not be modified.
func (v Value) AsMap() Map {
	if v.kind != KindMap {
		return nil
	}
	return v.m
}

// String renders v for human consumption.
func (v Value) String() string {
	switch v.kind {
	case KindBool:
		return strconv.FormatBool(v.AsBool())
	case KindInt64:
		return strconv.FormatInt(v.AsInt64(), 10)
	case KindFloat64:
		return strconv.FormatFloat(v.AsFloat64(), 'g', -1, 64)
	case KindString:
		return v.str
	case KindMap:
		return v.m.String()
	default:
		return ""
	}
}

// Interface returns v as a plain Go value: bool, int64, float64, string,
// map[string]any or nil.
func (v Value) Interface() any {
	switch v.kind {
	case KindBool:
		return v.AsBool()
	case KindInt64:
		return v.AsInt64()
	case KindFloat64:
		return v.AsFloat64()
	case KindString:
		return v.str
	case KindMap:
		return v.m.Interface()
	default:
		return nil
	}
}

// Equal reports whether v and o hold the same kind and content.
func (v Value) Equal(o Value) bool {
	if v.kind != o.kind {
		return false
	}
	if v.kind == KindMap {
		return v.m.Equal(o.m)
	}
	return v.num == o.num && v.str == o.str
}

// LogValue implements slog.LogValuer. Maps become groups.
func (v Value) LogValue() slog.Value {
	switch v.kind {
	case KindBool:
		return slog.BoolValue(v.AsBool())
	case KindInt64:
		return slog.Int64Value(v.AsInt64())
	case KindFloat64:
		return slog.Float64Value(v.AsFloat64())
	case KindString:
		return slog.StringValue(v.str)
	case KindMap:
		return slog.GroupValue(v.m.SlogAttrs()...)
	default:
		return slog.AnyValue(nil)
	}
}

// MarshalJSON implements json.Marshaler.
func (v Value) MarshalJSON() ([]byte, error) {
	return json.Marshal(v.Interface())
}

// MarshalCBOR implements cbor.Marshaler.
func (v Value) MarshalCBOR() ([]byte, error) {
	return codec.Marshal(v.Interface())
}

// Any converts an arbitrary Go value into a Value. Unknown types are rendered
// with fmt.
func Any(x any) Value {
	switch t := x.(type) {
	case nil:
		return Value{}
	case Value:
		return t
	case Map:
		return MapValue(t)
	case bool:
		return BoolValue(t)
	case int:
		return Int64Value(int64(t))
	case int8:
		return Int64Value(int64(t))
	case int16:
		return Int64Value(int64(t))
	case int32:
		return Int64Value(int64(t))
	case int64:
		return Int64Value(t)
	case uint:
		return uintValue(uint64(t))
	case uint8:
		return Int64Value(int64(t))
	case uint16:
		return Int64Value(int64(t))
	case uint32:
		return Int64Value(int64(t))
	case uint64:
		return uintValue(t)
	case float32:
		return Float64Value(float64(t))
	case float64:
		return Float64Value(t)
	case string:
		return StringValue(t)
	case []byte:
		return StringValue(string(t))
	case time.Duration:
		return StringValue(t.String())
	case time.Time:
		return StringValue(t.Format(time.RFC3339Nano))
	case error:
		return StringValue(t.Error())
	case map[string]Value:
		return MapValue(Map(t))
	case map[string]any:
		return MapValue(FromMap(t))
	case map[string]string:
		m := make(Map, len(t))
		for k, s := range t {
			m[k] = StringValue(s)
		}
		return Value{kind: KindMap, m: m}
	case http.Header:
		return headerValue(t)
	case map[string][]string:
		return headerValue(t)
	case fmt.Stringer:
		return StringValue(t.String())
	default:
		return StringValue(fmt.Sprintf("%+v", t))
	}
}

func uintValue(n uint64) Value {
	if n > math.MaxInt64 {
		return StringValue(strconv.FormatUint(n, 10))
	}
	return Int64Value(int64(n))
}

func headerValue(h map[string][]string) Value {
	m := make(Map, len(h))
	for k, vals := range h {
		m[k] = StringValue(strings.Join(vals, ", "))
	}
	return Value{kind: KindMap, m: m}
}

// FromMap converts a map of arbitrary values.
func FromMap(src map[string]any) Map {
	if src == nil {
		return nil
	}
	m := make(Map, len(src))
	for k, x := range src {
		m[k] = Any(x)
	}
	return m
}

// Clone returns a deep copy of m. Nil stays nil.
func (m Map) Clone() Map {
	if m == nil {
		return nil
	}
	out := make(Map, len(m))
	for k, v := range m {
		if v.kind == KindMap {
			v.m = v.m.Clone()
		}
		out[k] = v
	}
	return out
}

// Merge returns a new map holding m overlaid with other. Keys in other win.
func (m Map) Merge(other Map) Map {
	out := make(Map, len(m)+len(other))
	for k, v := range m {
		out[k] = v
	}
	for k, v := range other {
		out[k] = v
	}
	return out
}

// Keys returns the keys of m in sorted order.
func (m Map) Keys() []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// Equal reports whether m and o hold the same keys and values.
func (m Map) Equal(o Map) bool {
	if len(m) != len(o) {
		return false
	}
	for k, v := range m {
		ov, ok := o[k]
		if !ok || !v.Equal(ov) {
			return false
		}
	}
	return true
}

// Interface returns m as a map[string]any.
func (m Map) Interface() map[string]any {
	if m == nil {
		return nil
	}
	out := make(map[string]any, len(m))
	for k, v := range m {
		out[k] = v.Interface()
	}
	return out
}

// SlogAttrs returns m as slog attributes in key order.
func (m Map) SlogAttrs() []slog.Attr {
	attrs := make([]slog.Attr, 0, len(m))
	for _, k := range m.Keys() {
		attrs = append(attrs, slog.Attr{Key: k, Value: m[k].LogValue()})
	}
	return attrs
}

// String renders m as {k=v, ...} in key order.
func (m Map) String() string {
	var b strings.Builder
	b.WriteByte('{')
	for i, k := range m.Keys() {
		if i > 0 {
			b.WriteString(", ")
		}
		b.WriteString(k)
		b.WriteByte('=')
		b.WriteString(m[k].String())
	}
	b.WriteByte('}')
	return b.String()
}

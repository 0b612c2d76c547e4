package attr

import (
	"go.opentelemetry.io/otel/attribute"
)

// ToOTel converts m into OpenTelemetry attributes. Nested maps are flattened
// into dotted keys and empty values are skipped. The result is sorted by key.
func ToOTel(m Map) []attribute.KeyValue {
	if len(m) == 0 {
		return nil
	}
	out := make([]attribute.KeyValue, 0, len(m))
	return appendOTel(out, "", m)
}

func appendOTel(out []attribute.KeyValue, prefix string, m Map) []attribute.KeyValue {
	for _, k := range m.Keys() {
		key := k
		if prefix != "" {
			key = prefix + "." + k
		}
		v := m[k]
		switch v.kind {
		case KindBool:
			out = append(out, attribute.Bool(key, v.AsBool()))
		case KindInt64:
			out = append(out, attribute.Int64(key, v.AsInt64()))
		case KindFloat64:
			out = append(out, attribute.Float64(key, v.AsFloat64()))
		case KindString:
			out = append(out, attribute.String(key, v.str))
		case KindMap:
			out = appendOTel(out, key, v.m)
		}
	}
	return out
}

// FromOTel converts OpenTelemetry attributes into a Map. Slice values are
// rendered as strings.
func FromOTel(kvs ...attribute.KeyValue) Map {
	m := make(Map, len(kvs))
	for _, kv := range kvs {
		switch kv.Value.Type() {
		case attribute.BOOL:
			m[string(kv.Key)] = BoolValue(kv.Value.AsBool())
		case attribute.INT64:
			m[string(kv.Key)] = Int64Value(kv.Value.AsInt64())
		case attribute.FLOAT64:
			m[string(kv.Key)] = Float64Value(kv.Value.AsFloat64())
		case attribute.STRING:
			m[string(kv.Key)] = StringValue(kv.Value.AsString())
		default:
			m[string(kv.Key)] = StringValue(kv.Value.Emit())
		}
	}
	return m
}

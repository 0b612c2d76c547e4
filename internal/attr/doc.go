// Package attr provides the typed payload used for log data and span
// attributes.
//
// A Value is a tagged union of bool, int64, float64, string and nested Map.
// Keeping payloads typed (instead of passing interface{} around) makes their
// conversion to the export formats well defined:
//
//   - ToOTel flattens a Map into OpenTelemetry attributes (nested keys are
//     joined with ".")
//   - Value implements slog.LogValuer, so a Map logs as a group
//   - Value implements json.Marshaler and cbor.Marshaler
//
// Use Any to convert arbitrary Go values at the boundary:
//
//	data := attr.Map{
//		"method":  attr.StringValue(req.Method),
//		"headers": attr.Any(req.Header),
//	}
package attr

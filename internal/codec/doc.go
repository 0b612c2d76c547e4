// Package codec wraps the CBOR encoder used to size telemetry batches.
//
// The export pipeline estimates how large a pending batch is by encoding
// each span with deterministic CBOR; the estimate drives the size-based
// flush threshold.
package codec

package export

import (
	"context"
	"errors"

	"github.com/teemow/telepipe/internal/metrics"
	"github.com/teemow/telepipe/internal/tracing"
)

// Batch is one export unit. A span is part of exactly one batch.
type Batch struct {
	Sequence uint64                `json:"sequence"`
	Spans    []tracing.SpanData    `json:"spans,omitempty"`
	Metrics  []metrics.MetricPoint `json:"metrics,omitempty"`
}

// Empty reports whether the batch carries nothing.
func (b *Batch) Empty() bool {
	return b == nil || (len(b.Spans) == 0 && len(b.Metrics) == 0)
}

// Exporter ships batches to a collector. Export may be called from several
// goroutines but a Pipeline never calls it concurrently.
type Exporter interface {
	Export(ctx context.Context, batch *Batch) error
	Shutdown(ctx context.Context) error
}

// ExporterFunc adapts a function to the Exporter interface. Shutdown is a
// no-op.
type ExporterFunc func(ctx context.Context, batch *Batch) error

// Export implements Exporter.
func (f ExporterFunc) Export(ctx context.Context, batch *Batch) error {
	return f(ctx, batch)
}

// Shutdown implements Exporter.
func (ExporterFunc) Shutdown(context.Context) error { return nil }

// NopExporter accepts and discards every batch.
type NopExporter struct{}

// Export implements Exporter.
func (NopExporter) Export(context.Context, *Batch) error { return nil }

// Shutdown implements Exporter.
func (NopExporter) Shutdown(context.Context) error { return nil }

// MultiExporter sends every batch to each exporter in order.
type MultiExporter []Exporter

// Export implements Exporter. All exporters are called; their errors are
// joined.
func (m MultiExporter) Export(ctx context.Context, batch *Batch) error {
	var errs []error
	for _, e := range m {
		if err := e.Export(ctx, batch); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Shutdown implements Exporter.
func (m MultiExporter) Shutdown(ctx context.Context) error {
	var errs []error
	for _, e := range m {
		if err := e.Shutdown(ctx); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

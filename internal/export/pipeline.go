package export

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"github.com/teemow/telepipe/internal/attr"
	"github.com/teemow/telepipe/internal/codec"
	"github.com/teemow/telepipe/internal/metrics"
	"github.com/teemow/telepipe/internal/tracing"
)

// pipelineSource is the source recorded on export failure entries.
const pipelineSource = "TelemetryExportPipeline"

// Pipeline defaults.
const (
	DefaultInterval      = 60 * time.Second
	DefaultMaxQueueSpans = 512
	DefaultQueueCapacity = 2048
	DefaultMaxBatchBytes = 1 << 20
	DefaultExportTimeout = 30 * time.Second
)

// ErrPipelineClosed is returned by operations on a shut down pipeline.
var ErrPipelineClosed = errors.New("export pipeline is closed")

// MetricsSource produces metric snapshots. *metrics.Aggregator implements it.
type MetricsSource interface {
	Collect() []metrics.MetricPoint
}

// Logger is the subset of the structured logger the pipeline reports export
// failures to.
type Logger interface {
	Warn(ctx context.Context, message string, data attr.Map, source string)
}

// Options tunes a Pipeline. Zero values select the defaults.
type Options struct {
	// Interval between metric snapshots. Every tick also flushes spans.
	Interval time.Duration
	// MaxQueueSpans queued spans trigger an early flush.
	MaxQueueSpans int
	// QueueCapacity bounds the span queue; spans ended while it is full are
	// dropped.
	QueueCapacity int
	// MaxBatchBytes is the approximate CBOR size of queued spans that
	// triggers an early flush. Negative disables the size threshold.
	MaxBatchBytes int
	// ExportTimeout bounds a single Export call.
	ExportTimeout time.Duration
}

func (o Options) withDefaults() Options {
	if o.Interval <= 0 {
		o.Interval = DefaultInterval
	}
	if o.MaxQueueSpans <= 0 {
		o.MaxQueueSpans = DefaultMaxQueueSpans
	}
	if o.QueueCapacity <= 0 {
		o.QueueCapacity = DefaultQueueCapacity
	}
	if o.QueueCapacity < o.MaxQueueSpans {
		o.QueueCapacity = o.MaxQueueSpans
	}
	if o.MaxBatchBytes == 0 {
		o.MaxBatchBytes = DefaultMaxBatchBytes
	}
	if o.ExportTimeout <= 0 {
		o.ExportTimeout = DefaultExportTimeout
	}
	return o
}

// Stats are cumulative pipeline counters. A batch counts as exported when
// any part of it was delivered and as dropped when none was. Spans and
// metrics are counted per part, so a batch whose metrics failed still adds
// its spans to ExportedSpans.
type Stats struct {
	ExportedBatches uint64 `json:"exported_batches"`
	ExportedSpans   uint64 `json:"exported_spans"`
	ExportedMetrics uint64 `json:"exported_metrics"`
	DroppedBatches  uint64 `json:"dropped_batches"`
	DroppedSpans    uint64 `json:"dropped_spans"`
	DroppedMetrics  uint64 `json:"dropped_metrics"`
	QueuedSpans     int    `json:"queued_spans"`
}

// Pipeline queues ended spans and exports them with metric snapshots.
type Pipeline struct {
	exporter Exporter
	source   MetricsSource
	logger   Logger
	opts     Options

	mu        sync.Mutex
	spans     []tracing.SpanData
	metrics   []metrics.MetricPoint
	sizeBytes int
	sequence  uint64
	closed    bool
	running   bool
	// stopped is set once the loop exited on context cancellation.
	stopped bool

	// inflight tracks threshold flushes started after the loop stopped.
	inflight sync.WaitGroup

	// exportMu keeps batches in sequence order.
	exportMu sync.Mutex

	flushCh chan struct{}
	stopCh  chan struct{}
	doneCh  chan struct{}

	exportedBatches atomic.Uint64
	exportedSpans   atomic.Uint64
	exportedMetrics atomic.Uint64
	droppedBatches  atomic.Uint64
	droppedSpans    atomic.Uint64
	droppedMetrics  atomic.Uint64
}

// NewPipeline creates a Pipeline. source and logger may be nil.
func NewPipeline(exporter Exporter, source MetricsSource, logger Logger, opts Options) *Pipeline {
	if exporter == nil {
		exporter = NopExporter{}
	}
	return &Pipeline{
		exporter: exporter,
		source:   source,
		logger:   logger,
		opts:     opts.withDefaults(),
		flushCh:  make(chan struct{}, 1),
		stopCh:   make(chan struct{}),
		doneCh:   make(chan struct{}),
	}
}

// Options returns the effective options.
func (p *Pipeline) Options() Options {
	return p.opts
}

// OnEnd implements tracing.SpanProcessor. It never blocks on export.
func (p *Pipeline) OnEnd(d tracing.SpanData) {
	size := 0
	if p.opts.MaxBatchBytes > 0 {
		// A span that cannot be encoded still ships; it just does not
		// count towards the size threshold.
		size, _ = codec.Size(d)
	}

	p.mu.Lock()
	if p.closed || len(p.spans) >= p.opts.QueueCapacity {
		p.mu.Unlock()
		p.droppedSpans.Add(1)
		return
	}
	p.spans = append(p.spans, d)
	p.sizeBytes += size
	full := len(p.spans) >= p.opts.MaxQueueSpans ||
		(p.opts.MaxBatchBytes > 0 && p.sizeBytes >= p.opts.MaxBatchBytes)
	detached := full && p.stopped
	if detached {
		p.inflight.Add(1)
	}
	p.mu.Unlock()

	if detached {
		// Nobody reads flushCh any more.
		go func() {
			defer p.inflight.Done()
			p.flush(context.Background())
		}()
		return
	}
	if full {
		select {
		case p.flushCh <- struct{}{}:
		default:
		}
	}
}

// Start launches the export loop. The loop flushes on every interval tick
// and whenever a threshold is crossed, and performs a final flush when ctx
// is cancelled or the pipeline is shut down. After ctx is cancelled there
// are no more interval flushes, but crossing a threshold still exports
// until Shutdown.
func (p *Pipeline) Start(ctx context.Context) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return ErrPipelineClosed
	}
	if p.running {
		return errors.New("export pipeline already started")
	}
	p.running = true
	go p.run(ctx)
	return nil
}

func (p *Pipeline) run(ctx context.Context) {
	defer close(p.doneCh)

	ticker := time.NewTicker(p.opts.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			p.collectMetrics()
			p.flush(ctx)
		case <-p.flushCh:
			p.flush(ctx)
		case <-ctx.Done():
			p.mu.Lock()
			p.stopped = true
			p.mu.Unlock()
			// The caller's context is gone; give the final export its own.
			p.collectMetrics()
			p.flush(context.Background())
			return
		case <-p.stopCh:
			return
		}
	}
}

// Flush takes a metrics snapshot and synchronously exports everything
// queued. Export failures are logged, not returned.
func (p *Pipeline) Flush(ctx context.Context) error {
	p.mu.Lock()
	closed := p.closed
	p.mu.Unlock()
	if closed {
		return ErrPipelineClosed
	}
	p.collectMetrics()
	p.flush(ctx)
	return nil
}

// Shutdown stops the loop, exports what is left including a last metrics
// snapshot, and shuts the exporter down. Spans ended afterwards are
// dropped.
func (p *Pipeline) Shutdown(ctx context.Context) error {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return ErrPipelineClosed
	}
	p.closed = true
	running := p.running
	p.mu.Unlock()

	if running {
		close(p.stopCh)
		select {
		case <-p.doneCh:
		case <-ctx.Done():
			return ctx.Err()
		}
	}

	p.inflight.Wait()

	p.collectMetrics()
	p.flush(ctx)
	return p.exporter.Shutdown(ctx)
}

// Stats returns a snapshot of the pipeline counters.
func (p *Pipeline) Stats() Stats {
	p.mu.Lock()
	queued := len(p.spans)
	p.mu.Unlock()
	return Stats{
		ExportedBatches: p.exportedBatches.Load(),
		ExportedSpans:   p.exportedSpans.Load(),
		ExportedMetrics: p.exportedMetrics.Load(),
		DroppedBatches:  p.droppedBatches.Load(),
		DroppedSpans:    p.droppedSpans.Load(),
		DroppedMetrics:  p.droppedMetrics.Load(),
		QueuedSpans:     queued,
	}
}

func (p *Pipeline) collectMetrics() {
	if p.source == nil {
		return
	}
	points := p.source.Collect()
	if len(points) == 0 {
		return
	}
	p.mu.Lock()
	p.metrics = append(p.metrics, points...)
	p.mu.Unlock()
}

// drain moves everything queued into a batch. Returns nil when there is
// nothing to export.
func (p *Pipeline) drain() *Batch {
	p.mu.Lock()
	defer p.mu.Unlock()

	if len(p.spans) == 0 && len(p.metrics) == 0 {
		return nil
	}
	batch := &Batch{
		Sequence: p.sequence,
		Spans:    p.spans,
		Metrics:  p.metrics,
	}
	p.spans = nil
	p.metrics = nil
	p.sizeBytes = 0
	p.sequence++
	return batch
}

func (p *Pipeline) flush(ctx context.Context) {
	p.exportMu.Lock()
	defer p.exportMu.Unlock()

	batch := p.drain()
	if batch == nil {
		return
	}

	exportCtx, cancel := context.WithTimeout(ctx, p.opts.ExportTimeout)
	defer cancel()

	err := p.exporter.Export(exportCtx, batch)
	if err == nil {
		p.exportedBatches.Add(1)
		p.exportedSpans.Add(uint64(len(batch.Spans)))
		p.exportedMetrics.Add(uint64(len(batch.Metrics)))
		return
	}

	spansFailed, metricsFailed := failedParts(err)
	droppedSpans, droppedMetrics := 0, 0
	if spansFailed {
		droppedSpans = len(batch.Spans)
		p.droppedSpans.Add(uint64(droppedSpans))
	} else {
		p.exportedSpans.Add(uint64(len(batch.Spans)))
	}
	if metricsFailed {
		droppedMetrics = len(batch.Metrics)
		p.droppedMetrics.Add(uint64(droppedMetrics))
	} else {
		p.exportedMetrics.Add(uint64(len(batch.Metrics)))
	}
	if droppedSpans+droppedMetrics == len(batch.Spans)+len(batch.Metrics) {
		p.droppedBatches.Add(1)
	} else {
		p.exportedBatches.Add(1)
	}

	if p.logger != nil {
		p.logger.Warn(context.Background(), "Telemetry export failed", attr.Map{
			"error":           attr.StringValue(err.Error()),
			"sequence":        attr.Int64Value(int64(batch.Sequence)),
			"spans":           attr.IntValue(len(batch.Spans)),
			"metrics":         attr.IntValue(len(batch.Metrics)),
			"dropped_spans":   attr.IntValue(droppedSpans),
			"dropped_metrics": attr.IntValue(droppedMetrics),
		}, pipelineSource)
	}
}

// failedParts reports which parts of a batch an export error covers. An
// error that names neither part fails the whole batch.
func failedParts(err error) (spanPart, metricPart bool) {
	spanPart = errors.Is(err, ErrSpanExport)
	metricPart = errors.Is(err, ErrMetricExport)
	if !spanPart && !metricPart {
		return true, true
	}
	return spanPart, metricPart
}

package export

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/teemow/telepipe/internal/attr"
	"github.com/teemow/telepipe/internal/metrics"
	"github.com/teemow/telepipe/internal/tracing"
)

type recordingExporter struct {
	mu       sync.Mutex
	batches  []*Batch
	err      error
	shutdown atomic.Int32
}

func (r *recordingExporter) Export(_ context.Context, b *Batch) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.err != nil {
		return r.err
	}
	r.batches = append(r.batches, b)
	return nil
}

func (r *recordingExporter) Shutdown(context.Context) error {
	r.shutdown.Add(1)
	return nil
}

func (r *recordingExporter) Batches() []*Batch {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]*Batch, len(r.batches))
	copy(out, r.batches)
	return out
}

func (r *recordingExporter) SpanCount() int {
	n := 0
	for _, b := range r.Batches() {
		n += len(b.Spans)
	}
	return n
}

type warnEntry struct {
	message string
	data    attr.Map
	source  string
}

type warnLogger struct {
	mu      sync.Mutex
	entries []warnEntry
}

func (w *warnLogger) Warn(_ context.Context, message string, data attr.Map, source string) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.entries = append(w.entries, warnEntry{message, data, source})
}

func (w *warnLogger) Entries() []warnEntry {
	w.mu.Lock()
	defer w.mu.Unlock()
	return append([]warnEntry(nil), w.entries...)
}

func endSpans(t *testing.T, tracer *tracing.Tracer, n int) {
	t.Helper()
	for i := 0; i < n; i++ {
		_, span := tracer.Start(context.Background(), fmt.Sprintf("op-%d", i), nil)
		span.End()
	}
}

func TestOptions_Defaults(t *testing.T) {
	p := NewPipeline(nil, nil, nil, Options{})
	opts := p.Options()
	assert.Equal(t, DefaultInterval, opts.Interval)
	assert.Equal(t, DefaultMaxQueueSpans, opts.MaxQueueSpans)
	assert.Equal(t, DefaultQueueCapacity, opts.QueueCapacity)
	assert.Equal(t, DefaultMaxBatchBytes, opts.MaxBatchBytes)
	assert.Equal(t, DefaultExportTimeout, opts.ExportTimeout)

	p = NewPipeline(nil, nil, nil, Options{MaxQueueSpans: 100, QueueCapacity: 10})
	assert.Equal(t, 100, p.Options().QueueCapacity)
}

func TestPipeline_FlushesOnSpanThreshold(t *testing.T) {
	exp := &recordingExporter{}
	p := NewPipeline(exp, nil, nil, Options{Interval: time.Hour, MaxQueueSpans: 3, MaxBatchBytes: -1})
	tracer := tracing.NewTracer(p)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	require.NoError(t, p.Start(ctx))

	endSpans(t, tracer, 2)
	time.Sleep(20 * time.Millisecond)
	assert.Empty(t, exp.Batches(), "below threshold nothing is exported")

	endSpans(t, tracer, 1)
	require.Eventually(t, func() bool { return exp.SpanCount() == 3 }, time.Second, 5*time.Millisecond)
	assert.Len(t, exp.Batches(), 1)
}

func TestPipeline_FlushesOnSizeThreshold(t *testing.T) {
	exp := &recordingExporter{}
	p := NewPipeline(exp, nil, nil, Options{Interval: time.Hour, MaxQueueSpans: 1000, MaxBatchBytes: 1})
	tracer := tracing.NewTracer(p)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	require.NoError(t, p.Start(ctx))

	endSpans(t, tracer, 1)
	require.Eventually(t, func() bool { return exp.SpanCount() == 1 }, time.Second, 5*time.Millisecond)
}

func TestPipeline_IntervalExportsMetrics(t *testing.T) {
	exp := &recordingExporter{}
	agg := metrics.NewAggregator()
	agg.Counter("ticks").Inc(nil)

	p := NewPipeline(exp, agg, nil, Options{Interval: 10 * time.Millisecond})
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	require.NoError(t, p.Start(ctx))

	require.Eventually(t, func() bool { return len(exp.Batches()) >= 2 }, time.Second, 5*time.Millisecond)
	b := exp.Batches()[0]
	require.Len(t, b.Metrics, 1)
	assert.Equal(t, "ticks", b.Metrics[0].Name)
	assert.Empty(t, b.Spans)
}

func TestPipeline_GaugeSampledAtFlush(t *testing.T) {
	exp := &recordingExporter{}
	agg := metrics.NewAggregator()
	value := 1.0
	calls := 0
	agg.RegisterGauge("queue", func() float64 { calls++; return value })

	p := NewPipeline(exp, agg, nil, Options{})
	assert.Equal(t, 0, calls)

	value = 42
	require.NoError(t, p.Flush(context.Background()))
	assert.Equal(t, 1, calls)
	require.Len(t, exp.Batches(), 1)
	assert.Equal(t, 42.0, exp.Batches()[0].Metrics[0].Value)
}

func TestPipeline_ExportFailureLogsOnceAndDrops(t *testing.T) {
	exp := &recordingExporter{err: errors.New("collector unreachable")}
	logger := &warnLogger{}
	p := NewPipeline(exp, nil, logger, Options{})
	tracer := tracing.NewTracer(p)

	endSpans(t, tracer, 4)
	require.NoError(t, p.Flush(context.Background()))

	entries := logger.Entries()
	require.Len(t, entries, 1)
	assert.Equal(t, "Telemetry export failed", entries[0].message)
	assert.Equal(t, "TelemetryExportPipeline", entries[0].source)
	assert.Equal(t, "collector unreachable", entries[0].data["error"].AsString())
	assert.EqualValues(t, 4, entries[0].data["spans"].AsInt64())

	stats := p.Stats()
	assert.EqualValues(t, 1, stats.DroppedBatches)
	assert.EqualValues(t, 4, stats.DroppedSpans)
	assert.Zero(t, stats.QueuedSpans)

	// The dropped batch is not retried.
	exp.mu.Lock()
	exp.err = nil
	exp.mu.Unlock()
	require.NoError(t, p.Flush(context.Background()))
	assert.Empty(t, exp.Batches())
}

func TestPipeline_PartialExportFailure(t *testing.T) {
	exp := ExporterFunc(func(context.Context, *Batch) error {
		return fmt.Errorf("%w: %w", ErrMetricExport, errors.New("metrics endpoint returned 503"))
	})
	agg := metrics.NewAggregator()
	agg.Counter("c").Inc(nil)
	agg.Counter("d").Inc(nil)
	logger := &warnLogger{}
	p := NewPipeline(exp, agg, logger, Options{})
	tracer := tracing.NewTracer(p)

	endSpans(t, tracer, 3)
	require.NoError(t, p.Flush(context.Background()))

	stats := p.Stats()
	assert.EqualValues(t, 3, stats.ExportedSpans)
	assert.Zero(t, stats.DroppedSpans)
	assert.EqualValues(t, 2, stats.DroppedMetrics)
	assert.Zero(t, stats.ExportedMetrics)
	assert.EqualValues(t, 1, stats.ExportedBatches, "spans of the batch were delivered")
	assert.Zero(t, stats.DroppedBatches)

	entries := logger.Entries()
	require.Len(t, entries, 1)
	assert.Zero(t, entries[0].data["dropped_spans"].AsInt64())
	assert.EqualValues(t, 2, entries[0].data["dropped_metrics"].AsInt64())
}

func TestPipeline_BothPartsFailed(t *testing.T) {
	exp := ExporterFunc(func(context.Context, *Batch) error {
		return errors.Join(
			fmt.Errorf("%w: %w", ErrSpanExport, errors.New("timeout")),
			fmt.Errorf("%w: %w", ErrMetricExport, errors.New("timeout")),
		)
	})
	agg := metrics.NewAggregator()
	agg.Counter("c").Inc(nil)
	p := NewPipeline(exp, agg, nil, Options{})
	tracer := tracing.NewTracer(p)

	endSpans(t, tracer, 2)
	require.NoError(t, p.Flush(context.Background()))

	stats := p.Stats()
	assert.EqualValues(t, 1, stats.DroppedBatches)
	assert.EqualValues(t, 2, stats.DroppedSpans)
	assert.EqualValues(t, 1, stats.DroppedMetrics)
	assert.Zero(t, stats.ExportedBatches)
	assert.Zero(t, stats.ExportedSpans)
}

func TestPipeline_SpanInExactlyOneBatch(t *testing.T) {
	exp := &recordingExporter{}
	p := NewPipeline(exp, nil, nil, Options{Interval: 5 * time.Millisecond, MaxQueueSpans: 7, MaxBatchBytes: -1})
	tracer := tracing.NewTracer(p)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	require.NoError(t, p.Start(ctx))

	var wg sync.WaitGroup
	for g := 0; g < 8; g++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := 0; i < 50; i++ {
				_, span := tracer.Start(context.Background(), "concurrent", nil)
				span.End()
			}
		}()
	}
	wg.Wait()
	require.NoError(t, p.Shutdown(context.Background()))

	seen := map[string]int{}
	var lastSeq uint64
	for i, b := range exp.Batches() {
		if i > 0 {
			assert.Greater(t, b.Sequence, lastSeq)
		}
		lastSeq = b.Sequence
		for _, s := range b.Spans {
			seen[s.SpanID.String()]++
		}
	}
	assert.Len(t, seen, 400)
	for id, n := range seen {
		assert.Equal(t, 1, n, "span %s exported %d times", id, n)
	}
}

func TestPipeline_QueueCapacityDrops(t *testing.T) {
	exp := &recordingExporter{}
	p := NewPipeline(exp, nil, nil, Options{MaxQueueSpans: 2, QueueCapacity: 3, MaxBatchBytes: -1})
	tracer := tracing.NewTracer(p)

	endSpans(t, tracer, 5)
	stats := p.Stats()
	assert.Equal(t, 3, stats.QueuedSpans)
	assert.EqualValues(t, 2, stats.DroppedSpans)
}

func TestPipeline_Shutdown(t *testing.T) {
	exp := &recordingExporter{}
	agg := metrics.NewAggregator()
	agg.Counter("c").Inc(nil)

	p := NewPipeline(exp, agg, nil, Options{Interval: time.Hour})
	tracer := tracing.NewTracer(p)
	require.NoError(t, p.Start(context.Background()))

	endSpans(t, tracer, 2)
	require.NoError(t, p.Shutdown(context.Background()))

	require.Len(t, exp.Batches(), 1)
	assert.Len(t, exp.Batches()[0].Spans, 2)
	assert.Len(t, exp.Batches()[0].Metrics, 1)
	assert.EqualValues(t, 1, exp.shutdown.Load())

	endSpans(t, tracer, 1)
	assert.EqualValues(t, 1, p.Stats().DroppedSpans)

	assert.ErrorIs(t, p.Shutdown(context.Background()), ErrPipelineClosed)
	assert.ErrorIs(t, p.Flush(context.Background()), ErrPipelineClosed)
	assert.ErrorIs(t, p.Start(context.Background()), ErrPipelineClosed)
}

func TestPipeline_StartTwice(t *testing.T) {
	p := NewPipeline(nil, nil, nil, Options{})
	require.NoError(t, p.Start(context.Background()))
	assert.Error(t, p.Start(context.Background()))
	require.NoError(t, p.Shutdown(context.Background()))
}

func TestPipeline_ContextCancelFinalFlush(t *testing.T) {
	exp := &recordingExporter{}
	p := NewPipeline(exp, nil, nil, Options{Interval: time.Hour})
	tracer := tracing.NewTracer(p)

	ctx, cancel := context.WithCancel(context.Background())
	require.NoError(t, p.Start(ctx))
	endSpans(t, tracer, 3)
	cancel()

	require.Eventually(t, func() bool { return exp.SpanCount() == 3 }, time.Second, 5*time.Millisecond)
	require.NoError(t, p.Shutdown(context.Background()))
}

func TestPipeline_ThresholdAfterContextCancel(t *testing.T) {
	exp := &recordingExporter{}
	p := NewPipeline(exp, nil, nil, Options{Interval: time.Hour, MaxQueueSpans: 2, MaxBatchBytes: -1})
	tracer := tracing.NewTracer(p)

	ctx, cancel := context.WithCancel(context.Background())
	require.NoError(t, p.Start(ctx))
	cancel()
	select {
	case <-p.doneCh:
	case <-time.After(time.Second):
		t.Fatal("export loop did not exit")
	}

	endSpans(t, tracer, 1)
	time.Sleep(20 * time.Millisecond)
	assert.Empty(t, exp.Batches(), "below threshold nothing is exported")

	endSpans(t, tracer, 1)
	require.Eventually(t, func() bool { return exp.SpanCount() == 2 }, time.Second, 5*time.Millisecond)
	assert.Zero(t, p.Stats().QueuedSpans)

	endSpans(t, tracer, 1)
	require.NoError(t, p.Shutdown(context.Background()))
	assert.Equal(t, 3, exp.SpanCount())
	assert.Zero(t, p.Stats().DroppedSpans)
}

func TestPipeline_EmptyFlushExportsNothing(t *testing.T) {
	exp := &recordingExporter{}
	p := NewPipeline(exp, metrics.NewAggregator(), nil, Options{})
	require.NoError(t, p.Flush(context.Background()))
	assert.Empty(t, exp.Batches())
}

func TestMultiExporter(t *testing.T) {
	a := &recordingExporter{}
	b := &recordingExporter{err: errors.New("b failed")}
	c := &recordingExporter{}

	m := MultiExporter{a, b, c}
	err := m.Export(context.Background(), &Batch{Spans: []tracing.SpanData{{Name: "x"}}})
	assert.EqualError(t, err, "b failed")
	assert.Len(t, a.Batches(), 1)
	assert.Len(t, c.Batches(), 1)

	require.NoError(t, m.Shutdown(context.Background()))
	assert.EqualValues(t, 1, a.shutdown.Load())
	assert.EqualValues(t, 1, c.shutdown.Load())
}

func TestExporterFuncAndNop(t *testing.T) {
	called := false
	f := ExporterFunc(func(context.Context, *Batch) error { called = true; return nil })
	require.NoError(t, f.Export(context.Background(), &Batch{}))
	require.NoError(t, f.Shutdown(context.Background()))
	assert.True(t, called)

	require.NoError(t, NopExporter{}.Export(context.Background(), &Batch{}))
	require.NoError(t, NopExporter{}.Shutdown(context.Background()))

	var nilBatch *Batch
	assert.True(t, nilBatch.Empty())
}

package export

import (
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/sdk/instrumentation"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
	semconv "go.opentelemetry.io/otel/semconv/v1.26.0"
	"go.opentelemetry.io/otel/trace"

	"github.com/teemow/telepipe/internal/attr"
	"github.com/teemow/telepipe/internal/metrics"
	"github.com/teemow/telepipe/internal/tracing"
)

// ScopeName is the instrumentation scope stamped on exported telemetry.
const ScopeName = "github.com/teemow/telepipe"

// SpanStub converts an ended span into an OpenTelemetry span stub.
// Exceptions become "exception" events.
func SpanStub(d tracing.SpanData, res *resource.Resource, scope instrumentation.Scope) tracetest.SpanStub {
	sc := trace.NewSpanContext(trace.SpanContextConfig{
		TraceID:    d.TraceID,
		SpanID:     d.SpanID,
		TraceFlags: trace.FlagsSampled,
	})
	var parent trace.SpanContext
	if d.HasParent() {
		parent = trace.NewSpanContext(trace.SpanContextConfig{
			TraceID:    d.TraceID,
			SpanID:     d.ParentSpanID,
			TraceFlags: trace.FlagsSampled,
			Remote:     d.RemoteParent,
		})
	}

	var events []sdktrace.Event
	for _, exc := range d.Exceptions {
		events = append(events, sdktrace.Event{
			Name: semconv.ExceptionEventName,
			Attributes: []attribute.KeyValue{
				semconv.ExceptionTypeKey.String(exc.Type),
				semconv.ExceptionMessageKey.String(exc.Message),
			},
			Time: exc.Time,
		})
	}

	return tracetest.SpanStub{
		Name:                 d.Name,
		SpanContext:          sc,
		Parent:               parent,
		SpanKind:             d.Kind,
		StartTime:            d.StartTime,
		EndTime:              d.EndTime,
		Attributes:           attr.ToOTel(d.Attributes),
		Events:               events,
		Status:               sdktrace.Status{Code: d.Status.Code, Description: d.Status.Description},
		Resource:             res,
		InstrumentationScope: scope,
	}
}

// ReadOnlySpans converts ended spans for an sdktrace.SpanExporter.
func ReadOnlySpans(spans []tracing.SpanData, res *resource.Resource, scope instrumentation.Scope) []sdktrace.ReadOnlySpan {
	stubs := make(tracetest.SpanStubs, len(spans))
	for i, d := range spans {
		stubs[i] = SpanStub(d, res, scope)
	}
	return stubs.Snapshots()
}

// ResourceMetrics converts metric points for an sdkmetric.Exporter. Points
// sharing a name become data points of one metric. Counters are cumulative
// monotonic sums.
func ResourceMetrics(points []metrics.MetricPoint, res *resource.Resource, scope instrumentation.Scope) *metricdata.ResourceMetrics {
	var (
		out   []metricdata.Metrics
		index = make(map[string]int)
	)
	for _, p := range points {
		i, ok := index[p.Name]
		if !ok {
			i = len(out)
			index[p.Name] = i
			out = append(out, metricdata.Metrics{
				Name:        p.Name,
				Description: p.Description,
				Unit:        p.Unit,
			})
		}
		out[i].Data = appendPoint(out[i].Data, p)
	}

	return &metricdata.ResourceMetrics{
		Resource: res,
		ScopeMetrics: []metricdata.ScopeMetrics{{
			Scope:   scope,
			Metrics: out,
		}},
	}
}

func appendPoint(data metricdata.Aggregation, p metrics.MetricPoint) metricdata.Aggregation {
	attrs := labelSet(p.Labels)

	switch p.Kind {
	case metrics.KindCounter:
		sum, _ := data.(metricdata.Sum[float64])
		sum.Temporality = metricdata.CumulativeTemporality
		sum.IsMonotonic = true
		sum.DataPoints = append(sum.DataPoints, metricdata.DataPoint[float64]{
			Attributes: attrs,
			StartTime:  p.StartTime,
			Time:       p.Time,
			Value:      p.Value,
		})
		return sum

	case metrics.KindGauge:
		g, _ := data.(metricdata.Gauge[float64])
		g.DataPoints = append(g.DataPoints, metricdata.DataPoint[float64]{
			Attributes: attrs,
			StartTime:  p.StartTime,
			Time:       p.Time,
			Value:      p.Value,
		})
		return g

	case metrics.KindHistogram:
		h, _ := data.(metricdata.Histogram[float64])
		h.Temporality = metricdata.CumulativeTemporality
		if hp := p.Histogram; hp != nil {
			h.DataPoints = append(h.DataPoints, metricdata.HistogramDataPoint[float64]{
				Attributes:   attrs,
				StartTime:    p.StartTime,
				Time:         p.Time,
				Count:        hp.Count,
				Bounds:       hp.Bounds,
				BucketCounts: hp.BucketCounts,
				Min:          metricdata.NewExtrema(hp.Min),
				Max:          metricdata.NewExtrema(hp.Max),
				Sum:          hp.Sum,
			})
		}
		return h
	}
	return data
}

func labelSet(l metrics.Labels) attribute.Set {
	kvs := make([]attribute.KeyValue, 0, len(l))
	for _, k := range l.Keys() {
		kvs = append(kvs, attribute.String(k, l[k]))
	}
	return attribute.NewSet(kvs...)
}

func instrumentationScope(version string) instrumentation.Scope {
	return instrumentation.Scope{Name: ScopeName, Version: version}
}

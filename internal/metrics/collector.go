package metrics

import (
	"strings"

	"github.com/prometheus/client_golang/prometheus"
)

// Collector exposes an Aggregator as a prometheus.Collector. Every scrape
// collects a fresh snapshot, so gauge callbacks run once per scrape.
//
// Collector is unchecked: Describe sends nothing because the set of series
// is only known at collection time.
type Collector struct {
	agg       *Aggregator
	namespace string
}

// NewCollector creates a Collector. namespace prefixes every metric name and
// may be empty.
func NewCollector(agg *Aggregator, namespace string) *Collector {
	return &Collector{agg: agg, namespace: namespace}
}

// Describe implements prometheus.Collector.
func (c *Collector) Describe(chan<- *prometheus.Desc) {}

// Collect implements prometheus.Collector.
func (c *Collector) Collect(ch chan<- prometheus.Metric) {
	for _, p := range c.agg.Collect() {
		keys := p.Labels.Keys()
		names := make([]string, len(keys))
		values := make([]string, len(keys))
		for i, k := range keys {
			names[i] = PrometheusName(k)
			values[i] = p.Labels[k]
		}

		desc := prometheus.NewDesc(c.metricName(p.Descriptor), helpText(p.Descriptor), names, nil)

		var (
			m   prometheus.Metric
			err error
		)
		switch p.Kind {
		case KindCounter:
			m, err = prometheus.NewConstMetricWithCreatedTimestamp(desc, prometheus.CounterValue, p.Value, p.StartTime, values...)
		case KindGauge:
			m, err = prometheus.NewConstMetric(desc, prometheus.GaugeValue, p.Value, values...)
		case KindHistogram:
			m, err = prometheus.NewConstHistogram(desc, p.Histogram.Count, p.Histogram.Sum, cumulativeBuckets(p.Histogram), values...)
		default:
			continue
		}
		if err != nil {
			m = prometheus.NewInvalidMetric(desc, err)
		}
		ch <- m
	}
}

func (c *Collector) metricName(d Descriptor) string {
	name := PrometheusName(d.Name)
	if d.Kind == KindCounter && !strings.HasSuffix(name, "_total") {
		name += "_total"
	}
	if c.namespace == "" {
		return name
	}
	return PrometheusName(c.namespace) + "_" + name
}

func helpText(d Descriptor) string {
	if d.Description != "" {
		return d.Description
	}
	return d.Name
}

// cumulativeBuckets converts per-bucket counts into Prometheus' cumulative
// upper-bound form. The +Inf bucket is implied by the total count.
func cumulativeBuckets(h *HistogramPoint) map[float64]uint64 {
	out := make(map[float64]uint64, len(h.Bounds))
	var running uint64
	for i, bound := range h.Bounds {
		running += h.BucketCounts[i]
		out[bound] = running
	}
	return out
}

// PrometheusName maps a dotted metric or label name onto the Prometheus
// character set: anything outside [a-zA-Z0-9_] becomes '_', and a leading
// digit is prefixed with '_'.
func PrometheusName(name string) string {
	var b strings.Builder
	b.Grow(len(name) + 1)
	for i, r := range name {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r == '_':
			b.WriteRune(r)
		case r >= '0' && r <= '9':
			if i == 0 {
				b.WriteByte('_')
			}
			b.WriteRune(r)
		default:
			b.WriteByte('_')
		}
	}
	return b.String()
}

// Package metrics aggregates counters, histograms and gauges in memory.
//
// Instruments are keyed by name and label set. Counters only grow: negative
// or non-finite deltas are ignored. Histograms reject NaN and infinities.
// Gauges are callbacks sampled when a snapshot is collected, never before:
//
//	agg := metrics.NewAggregator()
//	requests := agg.Counter("http.client.requests", metrics.WithUnit("1"))
//	requests.Add(1, metrics.Labels{"http.method": "GET"})
//	agg.RegisterGauge("app.log_history.size", func() float64 { return float64(logger.Len()) })
//
//	points := agg.Collect()
//
// Counter totals are cumulative across collections until Reset is called.
// NewCollector exposes an Aggregator to Prometheus.
package metrics

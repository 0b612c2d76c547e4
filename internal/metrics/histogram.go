package metrics

import (
	"math"
	"sort"
	"sync"
	"time"
)

// Histogram is an explicit-bucket distribution per label set.
type Histogram struct {
	agg    *Aggregator
	desc   Descriptor
	bounds []float64

	mu     sync.Mutex
	series map[string]*histogramSeries
}

type histogramSeries struct {
	labels Labels
	count  uint64
	sum    float64
	min    float64
	max    float64
	counts []uint64
}

// Descriptor returns the histogram's descriptor.
func (h *Histogram) Descriptor() Descriptor {
	return h.desc
}

// Bounds returns a copy of the bucket upper bounds.
func (h *Histogram) Bounds() []float64 {
	out := make([]float64, len(h.bounds))
	copy(out, h.bounds)
	return out
}

// Record adds v to the distribution for labels. NaN and infinities are
// ignored.
func (h *Histogram) Record(v float64, labels Labels) {
	if !h.agg.Enabled() {
		return
	}
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return
	}

	key := labels.key()
	h.mu.Lock()
	defer h.mu.Unlock()
	s, ok := h.series[key]
	if !ok {
		s = &histogramSeries{
			labels: labels.Clone(),
			min:    v,
			max:    v,
			counts: make([]uint64, len(h.bounds)+1),
		}
		h.series[key] = s
	}
	s.count++
	s.sum += v
	s.min = math.Min(s.min, v)
	s.max = math.Max(s.max, v)
	// Buckets are upper-inclusive: bucket i holds bounds[i-1] < v <= bounds[i].
	s.counts[sort.SearchFloat64s(h.bounds, v)]++
}

// Snapshot returns the distribution for labels and whether anything was
// recorded for them.
func (h *Histogram) Snapshot(labels Labels) (HistogramPoint, bool) {
	h.mu.Lock()
	defer h.mu.Unlock()
	s, ok := h.series[labels.key()]
	if !ok {
		return HistogramPoint{}, false
	}
	return h.pointLocked(s), true
}

func (h *Histogram) pointLocked(s *histogramSeries) HistogramPoint {
	counts := make([]uint64, len(s.counts))
	copy(counts, s.counts)
	return HistogramPoint{
		Count:        s.count,
		Sum:          s.sum,
		Min:          s.min,
		Max:          s.max,
		Bounds:       h.Bounds(),
		BucketCounts: counts,
	}
}

func (h *Histogram) collect(points []MetricPoint, start, now time.Time) []MetricPoint {
	h.mu.Lock()
	defer h.mu.Unlock()
	for _, s := range h.series {
		hp := h.pointLocked(s)
		points = append(points, MetricPoint{
			Descriptor: h.desc,
			Labels:     s.labels.Clone(),
			Value:      hp.Sum,
			Histogram:  &hp,
			StartTime:  start,
			Time:       now,
		})
	}
	return points
}

func (h *Histogram) reset() {
	h.mu.Lock()
	h.series = make(map[string]*histogramSeries)
	h.mu.Unlock()
}

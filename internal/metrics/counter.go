package metrics

import (
	"math"
	"sync"
	"time"
)

// Counter is a monotonic sum per label set.
type Counter struct {
	agg  *Aggregator
	desc Descriptor

	mu     sync.Mutex
	series map[string]*counterSeries
}

type counterSeries struct {
	labels Labels
	value  float64
}

// Descriptor returns the counter's descriptor.
func (c *Counter) Descriptor() Descriptor {
	return c.desc
}

// Add increases the series for labels by delta. Negative and non-finite
// deltas are ignored.
func (c *Counter) Add(delta float64, labels Labels) {
	if !c.agg.Enabled() {
		return
	}
	if delta < 0 || math.IsNaN(delta) || math.IsInf(delta, 0) {
		return
	}

	key := labels.key()
	c.mu.Lock()
	defer c.mu.Unlock()
	s, ok := c.series[key]
	if !ok {
		s = &counterSeries{labels: labels.Clone()}
		c.series[key] = s
	}
	s.value += delta
}

// Inc adds 1.
func (c *Counter) Inc(labels Labels) {
	c.Add(1, labels)
}

// Value returns the accumulated total for labels, 0 when never recorded.
func (c *Counter) Value(labels Labels) float64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	if s, ok := c.series[labels.key()]; ok {
		return s.value
	}
	return 0
}

func (c *Counter) collect(points []MetricPoint, start, now time.Time) []MetricPoint {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, s := range c.series {
		points = append(points, MetricPoint{
			Descriptor: c.desc,
			Labels:     s.labels.Clone(),
			Value:      s.value,
			StartTime:  start,
			Time:       now,
		})
	}
	return points
}

func (c *Counter) reset() {
	c.mu.Lock()
	c.series = make(map[string]*counterSeries)
	c.mu.Unlock()
}

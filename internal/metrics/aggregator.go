package metrics

import (
	"log/slog"
	"math"
	"sort"
	"sync"
	"sync/atomic"
	"time"
)

// DefaultBuckets are the explicit histogram bounds used when an instrument
// does not set its own. They suit millisecond latencies.
var DefaultBuckets = []float64{0, 5, 10, 25, 50, 75, 100, 250, 500, 750, 1000, 2500, 5000, 7500, 10000}

// Aggregator owns all instruments and their accumulated series. It is safe
// for concurrent use.
type Aggregator struct {
	enabled        atomic.Bool
	now            func() time.Time
	defaultBuckets []float64

	mu         sync.Mutex
	start      time.Time
	counters   map[string]*Counter
	histograms map[string]*Histogram
	gauges     map[string]*gauge
}

// Option configures an Aggregator.
type Option func(*Aggregator)

// WithEnabled turns recording on or off.
func WithEnabled(enabled bool) Option {
	return func(a *Aggregator) { a.enabled.Store(enabled) }
}

// WithClock overrides the time source for point timestamps.
func WithClock(now func() time.Time) Option {
	return func(a *Aggregator) {
		if now != nil {
			a.now = now
		}
	}
}

// WithDefaultBuckets overrides DefaultBuckets for histograms created without
// WithBuckets.
func WithDefaultBuckets(bounds ...float64) Option {
	return func(a *Aggregator) {
		if b, ok := normalizeBounds(bounds); ok {
			a.defaultBuckets = b
		}
	}
}

// NewAggregator creates an enabled Aggregator.
func NewAggregator(opts ...Option) *Aggregator {
	a := &Aggregator{
		now:            time.Now,
		defaultBuckets: DefaultBuckets,
		counters:       make(map[string]*Counter),
		histograms:     make(map[string]*Histogram),
		gauges:         make(map[string]*gauge),
	}
	a.enabled.Store(true)
	for _, opt := range opts {
		opt(a)
	}
	a.start = a.now()
	return a
}

// Enabled reports whether recording is on.
func (a *Aggregator) Enabled() bool {
	return a.enabled.Load()
}

// SetEnabled turns recording on or off at runtime.
func (a *Aggregator) SetEnabled(enabled bool) {
	a.enabled.Store(enabled)
}

// InstrumentOption configures an instrument.
type InstrumentOption func(*instrumentConfig)

type instrumentConfig struct {
	description string
	unit        string
	buckets     []float64
}

// WithDescription sets the instrument description.
func WithDescription(desc string) InstrumentOption {
	return func(c *instrumentConfig) { c.description = desc }
}

// WithUnit sets the instrument unit, e.g. "ms" or "1".
func WithUnit(unit string) InstrumentOption {
	return func(c *instrumentConfig) { c.unit = unit }
}

// WithBuckets sets explicit histogram bounds. Bounds are sorted and
// deduplicated; non-finite bounds are dropped.
func WithBuckets(bounds ...float64) InstrumentOption {
	return func(c *instrumentConfig) { c.buckets = bounds }
}

func newInstrumentConfig(opts []InstrumentOption) instrumentConfig {
	var c instrumentConfig
	for _, opt := range opts {
		opt(&c)
	}
	return c
}

// Counter returns the counter registered under name, creating it on first
// use. Options only apply on creation.
func (a *Aggregator) Counter(name string, opts ...InstrumentOption) *Counter {
	a.mu.Lock()
	defer a.mu.Unlock()

	if c, ok := a.counters[name]; ok {
		return c
	}
	cfg := newInstrumentConfig(opts)
	c := &Counter{
		agg:    a,
		desc:   Descriptor{Name: name, Description: cfg.description, Unit: cfg.unit, Kind: KindCounter},
		series: make(map[string]*counterSeries),
	}
	if a.nameTakenLocked(name) {
		slog.Warn("metric name already registered with another kind, counter will not be collected",
			"component", "metrics", "name", name)
		return c
	}
	a.counters[name] = c
	return c
}

// Histogram returns the histogram registered under name, creating it on
// first use. Options only apply on creation.
func (a *Aggregator) Histogram(name string, opts ...InstrumentOption) *Histogram {
	a.mu.Lock()
	defer a.mu.Unlock()

	if h, ok := a.histograms[name]; ok {
		return h
	}
	cfg := newInstrumentConfig(opts)
	bounds, ok := normalizeBounds(cfg.buckets)
	if !ok {
		bounds = a.defaultBuckets
	}
	h := &Histogram{
		agg:    a,
		desc:   Descriptor{Name: name, Description: cfg.description, Unit: cfg.unit, Kind: KindHistogram},
		bounds: bounds,
		series: make(map[string]*histogramSeries),
	}
	if a.nameTakenLocked(name) {
		slog.Warn("metric name already registered with another kind, histogram will not be collected",
			"component", "metrics", "name", name)
		return h
	}
	a.histograms[name] = h
	return h
}

// RegisterGauge registers fn as the sampler for the gauge name. fn is only
// called by Collect. Registering an existing gauge name replaces its
// callback.
func (a *Aggregator) RegisterGauge(name string, fn func() float64, opts ...InstrumentOption) {
	if fn == nil {
		return
	}
	a.mu.Lock()
	defer a.mu.Unlock()

	if _, ok := a.gauges[name]; !ok && a.nameTakenLocked(name) {
		slog.Warn("metric name already registered with another kind, gauge ignored",
			"component", "metrics", "name", name)
		return
	}
	cfg := newInstrumentConfig(opts)
	a.gauges[name] = &gauge{
		desc: Descriptor{Name: name, Description: cfg.description, Unit: cfg.unit, Kind: KindGauge},
		fn:   fn,
	}
}

// UnregisterGauge removes a gauge. Unknown names are ignored.
func (a *Aggregator) UnregisterGauge(name string) {
	a.mu.Lock()
	delete(a.gauges, name)
	a.mu.Unlock()
}

func (a *Aggregator) nameTakenLocked(name string) bool {
	if _, ok := a.counters[name]; ok {
		return true
	}
	if _, ok := a.histograms[name]; ok {
		return true
	}
	_, ok := a.gauges[name]
	return ok
}

// Collect returns one point per instrument and label set, sorted by name and
// then by label set. Gauge callbacks run here; a non-finite sample is
// skipped. A disabled aggregator returns nil.
func (a *Aggregator) Collect() []MetricPoint {
	if !a.Enabled() {
		return nil
	}

	a.mu.Lock()
	start := a.start
	counters := make([]*Counter, 0, len(a.counters))
	for _, c := range a.counters {
		counters = append(counters, c)
	}
	histograms := make([]*Histogram, 0, len(a.histograms))
	for _, h := range a.histograms {
		histograms = append(histograms, h)
	}
	gauges := make([]*gauge, 0, len(a.gauges))
	for _, g := range a.gauges {
		gauges = append(gauges, g)
	}
	a.mu.Unlock()

	now := a.now()
	var points []MetricPoint
	for _, c := range counters {
		points = c.collect(points, start, now)
	}
	for _, h := range histograms {
		points = h.collect(points, start, now)
	}
	// Callbacks run outside the registry lock so they may use the aggregator.
	for _, g := range gauges {
		v := g.fn()
		if math.IsNaN(v) || math.IsInf(v, 0) {
			continue
		}
		points = append(points, MetricPoint{
			Descriptor: g.desc,
			Value:      v,
			StartTime:  now,
			Time:       now,
		})
	}

	sort.Slice(points, func(i, j int) bool {
		if points[i].Name != points[j].Name {
			return points[i].Name < points[j].Name
		}
		return points[i].Labels.key() < points[j].Labels.key()
	})
	return points
}

// Reset discards every accumulated counter and histogram series. Instruments
// and gauges stay registered.
func (a *Aggregator) Reset() {
	a.mu.Lock()
	a.start = a.now()
	counters := make([]*Counter, 0, len(a.counters))
	for _, c := range a.counters {
		counters = append(counters, c)
	}
	histograms := make([]*Histogram, 0, len(a.histograms))
	for _, h := range a.histograms {
		histograms = append(histograms, h)
	}
	a.mu.Unlock()

	for _, c := range counters {
		c.reset()
	}
	for _, h := range histograms {
		h.reset()
	}
}

type gauge struct {
	desc Descriptor
	fn   func() float64
}

func normalizeBounds(bounds []float64) ([]float64, bool) {
	out := make([]float64, 0, len(bounds))
	for _, b := range bounds {
		if math.IsNaN(b) || math.IsInf(b, 0) {
			continue
		}
		out = append(out, b)
	}
	if len(out) == 0 {
		return nil, false
	}
	sort.Float64s(out)
	uniq := out[:1]
	for _, b := range out[1:] {
		if b != uniq[len(uniq)-1] {
			uniq = append(uniq, b)
		}
	}
	return uniq, true
}

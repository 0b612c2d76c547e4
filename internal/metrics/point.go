package metrics

import "time"

// Kind is the type of a metric.
type Kind int

const (
	KindCounter Kind = iota
	KindHistogram
	KindGauge
)

// String returns the uppercase kind name.
func (k Kind) String() string {
	switch k {
	case KindCounter:
		return "COUNTER"
	case KindHistogram:
		return "HISTOGRAM"
	case KindGauge:
		return "GAUGE"
	default:
		return "UNKNOWN"
	}
}

// MarshalText implements encoding.TextMarshaler.
func (k Kind) MarshalText() ([]byte, error) {
	return []byte(k.String()), nil
}

// Descriptor describes an instrument.
type Descriptor struct {
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
	Unit        string `json:"unit,omitempty"`
	Kind        Kind   `json:"kind"`
}

// HistogramPoint is a distribution snapshot. BucketCounts has one more
// element than Bounds; the last bucket counts values above the last bound.
// Counts are per bucket, not cumulative.
type HistogramPoint struct {
	Count        uint64    `json:"count"`
	Sum          float64   `json:"sum"`
	Min          float64   `json:"min"`
	Max          float64   `json:"max"`
	Bounds       []float64 `json:"bounds"`
	BucketCounts []uint64  `json:"bucket_counts"`
}

// MetricPoint is one collected series value.
type MetricPoint struct {
	Descriptor
	Labels    Labels          `json:"labels,omitempty"`
	Value     float64         `json:"value"`
	Histogram *HistogramPoint `json:"histogram,omitempty"`
	StartTime time.Time       `json:"start_time"`
	Time      time.Time       `json:"time"`
}

package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCollector_Gather(t *testing.T) {
	agg := NewAggregator()
	inst := NewInstruments(agg)
	inst.RecordLog("INFO")
	inst.RecordLog("INFO")
	agg.Histogram("http.client.duration").Record(42, Labels{"http.method": "GET"})
	agg.RegisterGauge("app.log_history.size", func() float64 { return 12 })

	reg := prometheus.NewRegistry()
	require.NoError(t, reg.Register(NewCollector(agg, "telepipe")))

	families, err := reg.Gather()
	require.NoError(t, err)

	byName := map[string]int{}
	for i, mf := range families {
		byName[mf.GetName()] = i
	}

	logs, ok := byName["telepipe_app_logs_total"]
	require.True(t, ok, "missing counter family, got %v", byName)
	m := families[logs].GetMetric()[0]
	assert.Equal(t, 2.0, m.GetCounter().GetValue())
	assert.Equal(t, "log_level", m.GetLabel()[0].GetName())
	assert.Equal(t, "INFO", m.GetLabel()[0].GetValue())

	size, ok := byName["telepipe_app_log_history_size"]
	require.True(t, ok)
	assert.Equal(t, 12.0, families[size].GetMetric()[0].GetGauge().GetValue())

	dur, ok := byName["telepipe_http_client_duration"]
	require.True(t, ok)
	hist := families[dur].GetMetric()[0].GetHistogram()
	assert.EqualValues(t, 1, hist.GetSampleCount())
	assert.Equal(t, 42.0, hist.GetSampleSum())
	for _, b := range hist.GetBucket() {
		if b.GetUpperBound() >= 50 {
			assert.EqualValues(t, 1, b.GetCumulativeCount(), "bucket %v", b.GetUpperBound())
		} else {
			assert.EqualValues(t, 0, b.GetCumulativeCount(), "bucket %v", b.GetUpperBound())
		}
	}
}

func TestPrometheusName(t *testing.T) {
	tests := map[string]string{
		"http.client.requests": "http_client_requests",
		"app.log_history.size": "app_log_history_size",
		"9lives":               "_9lives",
		"a-b c":                "a_b_c",
	}
	for in, want := range tests {
		assert.Equal(t, want, PrometheusName(in), in)
	}
}

func TestCumulativeBuckets(t *testing.T) {
	got := cumulativeBuckets(&HistogramPoint{
		Bounds:       []float64{1, 5, 10},
		BucketCounts: []uint64{1, 2, 0, 4},
	})
	assert.Equal(t, map[float64]uint64{1: 1, 5: 3, 10: 3}, got)
}

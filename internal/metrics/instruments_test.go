package metrics

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestInstruments_RecordHTTPRequest(t *testing.T) {
	agg := NewAggregator()
	inst := NewInstruments(agg)

	inst.RecordHTTPRequest("GET", "https://api.example.com/api/users/42?x=1", 200, 120*time.Millisecond)
	inst.RecordHTTPRequest("GET", "https://api.example.com/api/users/7", 200, 80*time.Millisecond)
	inst.RecordHTTPRequest("POST", "https://api.example.com/api/orders", 0, 5*time.Millisecond)

	requests := agg.Counter(MetricHTTPRequests)
	assert.Equal(t, 2.0, requests.Value(Labels{
		LabelHTTPMethod:     "GET",
		LabelHTTPStatusCode: "200",
		LabelHTTPURL:        "https://api.example.com/api/users/:id",
	}))
	assert.Equal(t, 1.0, requests.Value(Labels{
		LabelHTTPMethod:     "POST",
		LabelHTTPStatusCode: "0",
		LabelHTTPURL:        "https://api.example.com/api/orders",
	}))

	snap, ok := agg.Histogram(MetricHTTPDuration).Snapshot(Labels{LabelHTTPMethod: "GET", LabelHTTPStatusCode: "200"})
	require.True(t, ok)
	assert.EqualValues(t, 2, snap.Count)
	assert.Equal(t, 200.0, snap.Sum)
	assert.Equal(t, "ms", agg.Histogram(MetricHTTPDuration).Descriptor().Unit)
}

func TestInstruments_LogMetrics(t *testing.T) {
	agg := NewAggregator()
	inst := NewInstruments(agg)

	inst.RecordLog("WARN")
	inst.RecordLog("WARN")
	inst.RecordLog("ERROR")
	size := 4
	inst.RegisterLogHistorySize(func() int { return size })

	logs := agg.Counter(MetricLogs)
	assert.Equal(t, 2.0, logs.Value(Labels{LabelLogLevel: "WARN"}))
	assert.Equal(t, 1.0, logs.Value(Labels{LabelLogLevel: "ERROR"}))

	size = 9
	var gauge *MetricPoint
	for _, p := range agg.Collect() {
		if p.Name == MetricLogHistorySize {
			p := p
			gauge = &p
		}
	}
	require.NotNil(t, gauge)
	assert.Equal(t, 9.0, gauge.Value)
}

func TestInstruments_Nil(t *testing.T) {
	var inst *Instruments
	inst.RecordHTTPRequest("GET", "/", 200, time.Second)
	inst.RecordLog("INFO")
	inst.RegisterLogHistorySize(func() int { return 1 })
	assert.Nil(t, inst.Aggregator())
}

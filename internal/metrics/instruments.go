package metrics

import (
	"strconv"
	"time"
)

// Predefined metric names.
const (
	MetricHTTPRequests   = "http.client.requests"
	MetricHTTPDuration   = "http.client.duration"
	MetricLogs           = "app.logs"
	MetricLogHistorySize = "app.log_history.size"
)

// Metric label keys.
const (
	LabelHTTPMethod     = "http.method"
	LabelHTTPStatusCode = "http.status_code"
	LabelHTTPURL        = "http.url"
	LabelLogLevel       = "log.level"
)

// Instruments records the application's predefined metrics.
// A nil *Instruments is valid and records nothing.
type Instruments struct {
	agg          *Aggregator
	httpRequests *Counter
	httpDuration *Histogram
	logs         *Counter
}

// NewInstruments registers the predefined instruments on agg.
func NewInstruments(agg *Aggregator) *Instruments {
	return &Instruments{
		agg: agg,
		httpRequests: agg.Counter(MetricHTTPRequests,
			WithDescription("Number of HTTP requests made by the client"),
			WithUnit("1"),
		),
		httpDuration: agg.Histogram(MetricHTTPDuration,
			WithDescription("Duration of HTTP requests in milliseconds"),
			WithUnit("ms"),
		),
		logs: agg.Counter(MetricLogs,
			WithDescription("Number of logs emitted by level"),
			WithUnit("1"),
		),
	}
}

// Aggregator returns the aggregator the instruments record into.
func (i *Instruments) Aggregator() *Aggregator {
	if i == nil {
		return nil
	}
	return i.agg
}

// RecordHTTPRequest counts one outbound request and observes its duration
// in milliseconds. statusCode is 0 when no response was received. The URL
// label is normalized with NormalizeURL.
func (i *Instruments) RecordHTTPRequest(method, rawURL string, statusCode int, duration time.Duration) {
	if i == nil {
		return
	}
	status := strconv.Itoa(statusCode)

	i.httpRequests.Add(1, Labels{
		LabelHTTPMethod:     method,
		LabelHTTPStatusCode: status,
		LabelHTTPURL:        NormalizeURL(rawURL),
	})
	i.httpDuration.Record(float64(duration)/float64(time.Millisecond), Labels{
		LabelHTTPMethod:     method,
		LabelHTTPStatusCode: status,
	})
}

// RecordLog counts one accepted log entry.
func (i *Instruments) RecordLog(level string) {
	if i == nil {
		return
	}
	i.logs.Add(1, Labels{LabelLogLevel: level})
}

// RegisterLogHistorySize registers the log history size gauge.
func (i *Instruments) RegisterLogHistorySize(size func() int) {
	if i == nil || size == nil {
		return
	}
	i.agg.RegisterGauge(MetricLogHistorySize, func() float64 { return float64(size()) },
		WithDescription("Current size of in-memory log history"),
		WithUnit("1"),
	)
}

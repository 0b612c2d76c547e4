package tracing

import "sync"

// Recorder is a SpanProcessor that keeps ended spans in memory.
type Recorder struct {
	mu    sync.Mutex
	spans []SpanData
}

// NewRecorder creates an empty Recorder.
func NewRecorder() *Recorder {
	return &Recorder{}
}

// OnEnd implements SpanProcessor.
func (r *Recorder) OnEnd(d SpanData) {
	r.mu.Lock()
	r.spans = append(r.spans, d)
	r.mu.Unlock()
}

// Spans returns the recorded spans in end order.
func (r *Recorder) Spans() []SpanData {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]SpanData, len(r.spans))
	copy(out, r.spans)
	return out
}

// Reset discards all recorded spans.
func (r *Recorder) Reset() {
	r.mu.Lock()
	r.spans = nil
	r.mu.Unlock()
}

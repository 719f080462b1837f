package core

import (
	"context"
	"encoding/json"
	"expvar"
	"fmt"
	"io"
	"sync"
	"sync/atomic"
	"time"
)

var expvarSeq uint64

// OperationStat aggregates the outcomes of one service operation.
type OperationStat struct {
	Count   int64   `json:"count"`
	Errors  int64   `json:"errors"`
	TotalMS float64 `json:"total_ms"`
	MaxMS   float64 `json:"max_ms"`
}

// ExpvarMetricsSnapshot is the read-only view published through expvar:
// per-operation latency aggregates plus completion counts broken down by
// clinical urgency and final status.
type ExpvarMetricsSnapshot struct {
	Operations  map[string]OperationStat    `json:"operations"`
	Completions map[string]map[string]int64 `json:"completions"`
	RecordedAt  time.Time                   `json:"recorded_at"`
}

// ExpvarMetricsRecorder fulfills MetricsRecorder for deployments that prefer
// process-local metrics over an external scrape target. Alongside the
// operation aggregates it counts completed validations per urgency tier, so
// an operator can see at a glance how much critical work is being rejected.
type ExpvarMetricsRecorder struct {
	name        string
	mu          sync.Mutex
	operations  map[string]OperationStat
	completions map[string]map[string]int64
}

// NewExpvarMetricsRecorder constructs the recorder and publishes it under the
// supplied expvar name. An empty name gets a generated one.
func NewExpvarMetricsRecorder(name string) *ExpvarMetricsRecorder {
	if name == "" {
		id := atomic.AddUint64(&expvarSeq, 1)
		name = fmt.Sprintf("validation_service_metrics_%d", id)
	}
	rec := &ExpvarMetricsRecorder{
		name:        name,
		operations:  make(map[string]OperationStat),
		completions: make(map[string]map[string]int64),
	}
	expvar.Publish(name, expvar.Func(func() any {
		return rec.Snapshot()
	}))
	return rec
}

// Name returns the expvar export name associated with the recorder.
func (r *ExpvarMetricsRecorder) Name() string {
	return r.name
}

// Snapshot returns an immutable copy of the aggregated metrics.
func (r *ExpvarMetricsRecorder) Snapshot() ExpvarMetricsSnapshot {
	r.mu.Lock()
	defer r.mu.Unlock()

	operations := make(map[string]OperationStat, len(r.operations))
	for op, stat := range r.operations {
		operations[op] = stat
	}
	completions := make(map[string]map[string]int64, len(r.completions))
	for urgency, byStatus := range r.completions {
		cpy := make(map[string]int64, len(byStatus))
		for status, count := range byStatus {
			cpy[status] = count
		}
		completions[urgency] = cpy
	}

	return ExpvarMetricsSnapshot{
		Operations:  operations,
		Completions: completions,
		RecordedAt:  time.Now().UTC(),
	}
}

// Observe implements MetricsRecorder.
func (r *ExpvarMetricsRecorder) Observe(_ context.Context, operation string, success bool, duration time.Duration) {
	if operation == "" {
		return
	}
	ms := float64(duration) / float64(time.Millisecond)

	r.mu.Lock()
	stat := r.operations[operation]
	stat.Count++
	if !success {
		stat.Errors++
	}
	stat.TotalMS += ms
	if ms > stat.MaxMS {
		stat.MaxMS = ms
	}
	r.operations[operation] = stat
	r.mu.Unlock()
}

// ObserveCompletion implements MetricsRecorder.
func (r *ExpvarMetricsRecorder) ObserveCompletion(_ context.Context, urgency ClinicalUrgency, status ValidationStatus) {
	r.mu.Lock()
	byStatus, ok := r.completions[string(urgency)]
	if !ok {
		byStatus = make(map[string]int64, 2)
		r.completions[string(urgency)] = byStatus
	}
	byStatus[string(status)]++
	r.mu.Unlock()
}

// A long-running service must not accumulate spans without bound; the tracer
// keeps only the most recent window.
const maxRetainedSpans = 256

// JSONTraceEntry is one finished span as serialized by JSONTraceTracer.
type JSONTraceEntry struct {
	Operation  string    `json:"operation"`
	Status     string    `json:"status"`
	DurationMS float64   `json:"duration_ms"`
	Error      string    `json:"error,omitempty"`
	StartedAt  time.Time `json:"started_at"`
	EndedAt    time.Time `json:"ended_at"`
}

// JSONTraceTracer writes spans as JSON lines to a writer and retains the
// latest maxRetainedSpans for inspection through Entries.
type JSONTraceTracer struct {
	mu      sync.Mutex
	entries []JSONTraceEntry
	enc     *json.Encoder
}

// NewJSONTracer constructs the tracer. A nil writer disables encoding; spans
// are still retained in memory.
func NewJSONTracer(w io.Writer) *JSONTraceTracer {
	t := &JSONTraceTracer{}
	if w != nil {
		t.enc = json.NewEncoder(w)
	}
	return t
}

// Entries returns a copy of the retained spans, oldest first.
func (t *JSONTraceTracer) Entries() []JSONTraceEntry {
	t.mu.Lock()
	defer t.mu.Unlock()
	out := make([]JSONTraceEntry, len(t.entries))
	copy(out, t.entries)
	return out
}

// Start implements the Tracer interface.
func (t *JSONTraceTracer) Start(ctx context.Context, operation string) (context.Context, TraceSpan) {
	return ctx, &jsonTraceSpan{
		tracer:    t,
		operation: operation,
		started:   time.Now().UTC(),
	}
}

func (t *JSONTraceTracer) record(entry JSONTraceEntry) {
	t.mu.Lock()
	t.entries = append(t.entries, entry)
	if overflow := len(t.entries) - maxRetainedSpans; overflow > 0 {
		t.entries = append(t.entries[:0], t.entries[overflow:]...)
	}
	if t.enc != nil {
		_ = t.enc.Encode(entry)
	}
	t.mu.Unlock()
}

type jsonTraceSpan struct {
	tracer    *JSONTraceTracer
	operation string
	started   time.Time
}

func (s *jsonTraceSpan) End(err error) {
	status, errMsg := "success", ""
	if err != nil {
		status, errMsg = "error", err.Error()
	}
	ended := time.Now().UTC()
	s.tracer.record(JSONTraceEntry{
		Operation:  s.operation,
		Status:     status,
		DurationMS: float64(ended.Sub(s.started)) / float64(time.Millisecond),
		Error:      errMsg,
		StartedAt:  s.started,
		EndedAt:    ended,
	})
}

package core

import (
	"context"
	"expvar"
	"fmt"
	"io"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"
)

var expvarSeq uint64

// ExpvarMetricsRecorder publishes per-operation totals via expvar: call
// counts split by outcome and the summed duration in milliseconds.
type ExpvarMetricsRecorder struct {
	name string
	mu   sync.Mutex
	ops  map[string]*opTotals
}

type opTotals struct {
	success    int64
	failure    int64
	durationMS float64
	lastError  time.Time
}

// OperationMetrics is the exported view of one operation.
type OperationMetrics struct {
	Success     int64     `json:"success"`
	Error       int64     `json:"error"`
	DurationMS  float64   `json:"duration_ms_total"`
	AverageMS   float64   `json:"duration_ms_avg"`
	LastErrorAt time.Time `json:"last_error_at,omitempty"`
}

// ExpvarMetricsSnapshot captures a read-only view of the recorded metrics.
type ExpvarMetricsSnapshot struct {
	Operations map[string]OperationMetrics `json:"operations"`
	RecordedAt time.Time                   `json:"recorded_at"`
}

// NewExpvarMetricsRecorder publishes a recorder under name, or under a
// generated unique name when name is empty.
func NewExpvarMetricsRecorder(name string) *ExpvarMetricsRecorder {
	if name == "" {
		id := atomic.AddUint64(&expvarSeq, 1)
		name = fmt.Sprintf("curetrack_service_metrics_%d", id)
	}
	rec := &ExpvarMetricsRecorder{name: name, ops: make(map[string]*opTotals)}
	expvar.Publish(name, expvar.Func(func() any {
		return rec.Snapshot()
	}))
	return rec
}

// Name returns the expvar export name associated with the recorder.
func (r *ExpvarMetricsRecorder) Name() string {
	return r.name
}

// Snapshot returns a copy of the aggregated metrics.
func (r *ExpvarMetricsRecorder) Snapshot() ExpvarMetricsSnapshot {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make(map[string]OperationMetrics, len(r.ops))
	for op, t := range r.ops {
		m := OperationMetrics{Success: t.success, Error: t.failure, DurationMS: t.durationMS, LastErrorAt: t.lastError}
		if n := t.success + t.failure; n > 0 {
			m.AverageMS = t.durationMS / float64(n)
		}
		out[op] = m
	}
	return ExpvarMetricsSnapshot{Operations: out, RecordedAt: time.Now().UTC()}
}

// Operations lists the operation names observed so far, sorted.
func (r *ExpvarMetricsRecorder) Operations() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	names := make([]string, 0, len(r.ops))
	for op := range r.ops {
		names = append(names, op)
	}
	sort.Strings(names)
	return names
}

// Observe records a service operation outcome.
func (r *ExpvarMetricsRecorder) Observe(_ context.Context, operation string, success bool, duration time.Duration) {
	if operation == "" {
		return
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	t, ok := r.ops[operation]
	if !ok {
		t = &opTotals{}
		r.ops[operation] = t
	}
	t.durationMS += float64(duration) / float64(time.Millisecond)
	if success {
		t.success++
		return
	}
	t.failure++
	t.lastError = time.Now().UTC()
}

// TraceEntry is one finished span.
type TraceEntry struct {
	Operation  string    `json:"operation"`
	Status     string    `json:"status"`
	DurationMS float64   `json:"duration_ms"`
	Error      string    `json:"error,omitempty"`
	StartedAt  time.Time `json:"started_at"`
	EndedAt    time.Time `json:"ended_at"`
}

// JSONTraceTracer writes each finished span as a JSON line and keeps it for
// inspection.
type JSONTraceTracer struct {
	mu      sync.Mutex
	entries []TraceEntry
	out     *zerolog.Logger
}

// NewJSONTracer returns a tracer writing spans to w. A nil w only retains spans.
func NewJSONTracer(w io.Writer) *JSONTraceTracer {
	t := &JSONTraceTracer{}
	if w != nil {
		zl := zerolog.New(w)
		t.out = &zl
	}
	return t
}

// Entries returns a copy of all recorded spans.
func (t *JSONTraceTracer) Entries() []TraceEntry {
	t.mu.Lock()
	defer t.mu.Unlock()
	out := make([]TraceEntry, len(t.entries))
	copy(out, t.entries)
	return out
}

// Start implements Tracer.
func (t *JSONTraceTracer) Start(ctx context.Context, operation string) (context.Context, TraceSpan) {
	return ctx, &jsonTraceSpan{tracer: t, operation: operation, started: time.Now().UTC()}
}

type jsonTraceSpan struct {
	tracer    *JSONTraceTracer
	operation string
	started   time.Time
	ended     atomic.Bool
}

func (s *jsonTraceSpan) End(err error) {
	if !s.ended.CompareAndSwap(false, true) {
		return
	}
	ended := time.Now().UTC()
	entry := TraceEntry{
		Operation:  s.operation,
		Status:     "success",
		DurationMS: float64(ended.Sub(s.started)) / float64(time.Millisecond),
		StartedAt:  s.started,
		EndedAt:    ended,
	}
	if err != nil {
		entry.Status = "error"
		entry.Error = err.Error()
	}

	s.tracer.mu.Lock()
	defer s.tracer.mu.Unlock()
	s.tracer.entries = append(s.tracer.entries, entry)
	if s.tracer.out != nil {
		ev := s.tracer.out.Log().
			Str("operation", entry.Operation).
			Str("status", entry.Status).
			Float64("duration_ms", entry.DurationMS).
			Time("started_at", entry.StartedAt).
			Time("ended_at", entry.EndedAt)
		if entry.Error != "" {
			ev = ev.Str("error", entry.Error)
		}
		ev.Send()
	}
}

// MemoryAuditLog keeps audit entries in memory and optionally forwards them
// to a logger.
type MemoryAuditLog struct {
	mu      sync.Mutex
	entries []AuditEntry
	logger  Logger
}

// NewMemoryAuditLog returns an audit log. A nil logger only retains entries.
func NewMemoryAuditLog(logger Logger) *MemoryAuditLog {
	return &MemoryAuditLog{logger: logger}
}

// Record implements AuditRecorder.
func (l *MemoryAuditLog) Record(_ context.Context, entry AuditEntry) {
	l.mu.Lock()
	l.entries = append(l.entries, entry)
	l.mu.Unlock()
	if l.logger == nil {
		return
	}
	args := []any{"operation", entry.Operation, "status", string(entry.Status), "duration_ms", entry.Duration.Milliseconds()}
	if entry.SampleID != "" {
		args = append(args, "sample", entry.SampleID)
	}
	if entry.Notices > 0 {
		args = append(args, "notices", entry.Notices)
	}
	if entry.Error != "" {
		args = append(args, "error", entry.Error)
	}
	l.logger.Debug("audit", args...)
}

// Entries returns a copy of the recorded entries.
func (l *MemoryAuditLog) Entries() []AuditEntry {
	l.mu.Lock()
	defer l.mu.Unlock()
	out := make([]AuditEntry, len(l.entries))
	copy(out, l.entries)
	return out
}

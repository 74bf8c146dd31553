package core

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"

	"curetrack/internal/calendar"
	"curetrack/internal/logging"
	"curetrack/pkg/domain"
)

// Clock supplies the current time to the service.
type Clock interface {
	Now() time.Time
}

// ClockFunc adapts a function to Clock. A nil ClockFunc reads the wall clock.
type ClockFunc func() time.Time

// Now implements Clock.
func (fn ClockFunc) Now() time.Time {
	if fn == nil {
		return time.Now().UTC()
	}
	return fn().UTC()
}

// Logger is the structured logger used by the service.
type Logger = logging.Logger

// AuditStatus is the outcome recorded for an operation.
type AuditStatus string

const (
	AuditStatusSuccess AuditStatus = "success"
	AuditStatusError   AuditStatus = "error"
)

// AuditEntry describes one lifecycle operation.
type AuditEntry struct {
	Operation string
	Status    AuditStatus
	SampleID  string
	Notices   int
	Error     string
	Duration  time.Duration
	Timestamp time.Time
}

// AuditRecorder receives one entry per lifecycle operation.
type AuditRecorder interface {
	Record(ctx context.Context, entry AuditEntry)
}

// MetricsRecorder observes operation latency and outcome.
type MetricsRecorder interface {
	Observe(ctx context.Context, operation string, success bool, duration time.Duration)
}

// Tracer starts spans around service operations.
type Tracer interface {
	Start(ctx context.Context, operation string) (context.Context, TraceSpan)
}

// TraceSpan is ended exactly once with the operation error.
type TraceSpan interface {
	End(err error)
}

// PhotoStore releases owned photos. media.Library satisfies it.
type PhotoStore interface {
	Delete(ctx context.Context, uri string) error
}

// ErrConflictDeclined is returned when the user declines to proceed over
// calendar conflicts on the due day.
var ErrConflictDeclined = errors.New("calendar conflicts declined")

// ConflictConfirmer asks the user whether to proceed despite existing events
// on the due day.
type ConflictConfirmer interface {
	ConfirmConflicts(ctx context.Context, sample domain.Sample, summary calendar.ConflictSummary) (bool, error)
}

// ConflictConfirmerFunc adapts a function to ConflictConfirmer.
type ConflictConfirmerFunc func(ctx context.Context, sample domain.Sample, summary calendar.ConflictSummary) (bool, error)

// ConfirmConflicts implements ConflictConfirmer.
func (fn ConflictConfirmerFunc) ConfirmConflicts(ctx context.Context, sample domain.Sample, summary calendar.ConflictSummary) (bool, error) {
	return fn(ctx, sample, summary)
}

type (
	noopAudit   struct{}
	noopMetrics struct{}
	noopTracer  struct{}
	noopSpan    struct{}
)

func (noopAudit) Record(context.Context, AuditEntry)                     {}
func (noopMetrics) Observe(context.Context, string, bool, time.Duration) {}
func (noopSpan) End(error)                                               {}

func (noopTracer) Start(ctx context.Context, _ string) (context.Context, TraceSpan) {
	return ctx, noopSpan{}
}

// declineConflicts is the default: without an interactive confirmer the
// service never writes over an occupied day.
func declineConflicts(context.Context, domain.Sample, calendar.ConflictSummary) (bool, error) {
	return false, nil
}

type serviceOptions struct {
	clock     Clock
	logger    Logger
	audit     AuditRecorder
	metrics   MetricsRecorder
	tracer    Tracer
	scheduler domain.Scheduler
	calendar  *calendar.Coordinator
	photos    PhotoStore
	confirm   ConflictConfirmer
	newID     func() string
	loc       *time.Location
}

func defaultServiceOptions() serviceOptions {
	return serviceOptions{
		clock:   ClockFunc(nil),
		logger:  logging.Noop(),
		audit:   noopAudit{},
		metrics: noopMetrics{},
		tracer:  noopTracer{},
		confirm: ConflictConfirmerFunc(declineConflicts),
		newID:   newSampleID,
		loc:     time.Local,
	}
}

// Option configures a Service.
type Option func(*serviceOptions)

// WithClock overrides the time source.
func WithClock(clock Clock) Option {
	return func(o *serviceOptions) {
		if clock != nil {
			o.clock = clock
		}
	}
}

// WithLogger sets the service logger.
func WithLogger(logger Logger) Option {
	return func(o *serviceOptions) {
		if logger != nil {
			o.logger = logger
		}
	}
}

// WithAuditRecorder sets the audit sink.
func WithAuditRecorder(recorder AuditRecorder) Option {
	return func(o *serviceOptions) {
		if recorder != nil {
			o.audit = recorder
		}
	}
}

// WithMetricsRecorder sets the metrics sink.
func WithMetricsRecorder(recorder MetricsRecorder) Option {
	return func(o *serviceOptions) {
		if recorder != nil {
			o.metrics = recorder
		}
	}
}

// WithTracer sets the tracer.
func WithTracer(tracer Tracer) Option {
	return func(o *serviceOptions) {
		if tracer != nil {
			o.tracer = tracer
		}
	}
}

// WithScheduler enables reminders through the given scheduler.
func WithScheduler(scheduler domain.Scheduler) Option {
	return func(o *serviceOptions) {
		o.scheduler = scheduler
	}
}

// WithCalendar enables calendar mirroring through the given coordinator.
func WithCalendar(coordinator *calendar.Coordinator) Option {
	return func(o *serviceOptions) { o.calendar = coordinator }
}

// WithPhotoStore sets the store that owns sample photos.
func WithPhotoStore(photos PhotoStore) Option {
	return func(o *serviceOptions) { o.photos = photos }
}

// WithConflictConfirmer sets the callback consulted when the due day already
// holds calendar events.
func WithConflictConfirmer(confirmer ConflictConfirmer) Option {
	return func(o *serviceOptions) {
		if confirmer != nil {
			o.confirm = confirmer
		}
	}
}

// WithIDGenerator overrides sample id generation.
func WithIDGenerator(fn func() string) Option {
	return func(o *serviceOptions) {
		if fn != nil {
			o.newID = fn
		}
	}
}

// WithLocation sets the zone used for day boundaries and message dates.
func WithLocation(loc *time.Location) Option {
	return func(o *serviceOptions) {
		if loc != nil {
			o.loc = loc
		}
	}
}

// newSampleID returns a time-ordered UUIDv7, falling back to v4.
func newSampleID() string {
	id, err := uuid.NewV7()
	if err != nil {
		return uuid.NewString()
	}
	return id.String()
}

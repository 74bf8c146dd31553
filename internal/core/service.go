package core

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"curetrack/internal/calendar"
	"curetrack/internal/reminder"
	"curetrack/internal/temporal"
	"curetrack/pkg/domain"
)

// Input is a user submission for creating or editing a sample.
type Input struct {
	Name string
	// CureStart defaults to now on create and to the stored start on update.
	CureStart    time.Time
	CureDays     int
	CalendarSync bool
	// Photo is the desired photo after the operation; nil means none.
	Photo *domain.PhotoRef
}

// NoticeKind classifies a soft failure reported alongside a successful operation.
type NoticeKind string

const (
	NoticeRemindersDegraded NoticeKind = "reminders_degraded"
	NoticeCalendarDisabled  NoticeKind = "calendar_disabled"
	NoticeCleanupFailed     NoticeKind = "cleanup_failed"
	NoticeCollectionReset   NoticeKind = "collection_reset"
)

// Notice is an informational, non-blocking message for the user.
type Notice struct {
	Kind    NoticeKind
	Message string
	Err     error
}

// Result carries the notices produced by an operation.
type Result struct {
	Notices []Notice
}

// Has reports whether a notice of kind was raised.
func (r Result) Has(kind NoticeKind) bool {
	for _, n := range r.Notices {
		if n.Kind == kind {
			return true
		}
	}
	return false
}

func (r *Result) add(kind NoticeKind, msg string, err error) {
	r.Notices = append(r.Notices, Notice{Kind: kind, Message: msg, Err: err})
}

// ErrNotFound is returned when no sample has the requested id.
type ErrNotFound struct {
	ID string
}

func (e ErrNotFound) Error() string {
	return fmt.Sprintf("sample %s not found", e.ID)
}

// Service runs the sample lifecycle: it validates submissions, keeps
// reminders and the calendar mirror in step with each sample, and persists the
// collection as one document. Every operation holds one process-wide lock.
type Service struct {
	mu sync.Mutex

	store     domain.SampleStore
	reminders *reminder.Coordinator
	calendar  *calendar.Coordinator
	photos    PhotoStore

	clock   Clock
	logger  Logger
	audit   AuditRecorder
	metrics MetricsRecorder
	tracer  Tracer
	confirm ConflictConfirmer
	newID   func() string
	loc     *time.Location
}

// NewService constructs a service persisting through store.
func NewService(store domain.SampleStore, opts ...Option) *Service {
	o := defaultServiceOptions()
	for _, opt := range opts {
		opt(&o)
	}
	svc := &Service{
		store:    store,
		calendar: o.calendar,
		photos:   o.photos,
		clock:    o.clock,
		logger:   o.logger,
		audit:    o.audit,
		metrics:  o.metrics,
		tracer:   o.tracer,
		confirm:  o.confirm,
		newID:    o.newID,
		loc:      o.loc,
	}
	if o.scheduler != nil {
		svc.reminders = reminder.NewCoordinator(o.scheduler,
			reminder.WithLogger(o.logger),
			reminder.WithLocation(o.loc))
	}
	return svc
}

// Store returns the underlying persistence.
func (s *Service) Store() domain.SampleStore { return s.store }

// Location returns the zone used for day boundaries.
func (s *Service) Location() *time.Location { return s.loc }

// Now returns the service clock reading.
func (s *Service) Now() time.Time { return s.clock.Now() }

// run wraps a lifecycle operation with tracing, metrics, audit and logging.
func (s *Service) run(ctx context.Context, op string, fn func(context.Context) (string, Result, error)) (Result, error) {
	started := time.Now()
	ctx, span := s.tracer.Start(ctx, op)
	id, res, err := fn(ctx)
	span.End(err)
	elapsed := time.Since(started)
	s.metrics.Observe(ctx, op, err == nil, elapsed)

	entry := AuditEntry{
		Operation: op,
		Status:    AuditStatusSuccess,
		SampleID:  id,
		Notices:   len(res.Notices),
		Duration:  elapsed,
		Timestamp: s.clock.Now(),
	}
	if err != nil {
		entry.Status = AuditStatusError
		entry.Error = err.Error()
		s.logger.Error("sample operation failed", "operation", op, "sample", id, "err", err)
	} else {
		s.logger.Debug("sample operation completed", "operation", op, "sample", id, "notices", len(res.Notices))
	}
	s.audit.Record(ctx, entry)
	return res, err
}

// load reads the collection. A corrupt document reads as empty.
func (s *Service) load(ctx context.Context, res *Result) ([]domain.Sample, error) {
	samples, err := s.store.LoadSamples(ctx)
	if errors.Is(err, domain.ErrCorruptDocument) {
		s.logger.Warn("stored samples unreadable, starting from an empty collection", "err", err)
		if res != nil {
			res.add(NoticeCollectionReset, "stored samples could not be read", err)
		}
		return []domain.Sample{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("load samples: %w", err)
	}
	return samples, nil
}

func (s *Service) save(ctx context.Context, samples []domain.Sample) error {
	if err := s.store.SaveSamples(ctx, samples); err != nil {
		return fmt.Errorf("save samples: %w", err)
	}
	return nil
}

func indexOf(samples []domain.Sample, id string) int {
	for i := range samples {
		if samples[i].ID == id {
			return i
		}
	}
	return -1
}

func clonePhoto(p *domain.PhotoRef) *domain.PhotoRef {
	if p == nil || p.URI == "" {
		return nil
	}
	cp := *p
	return &cp
}

// Create validates in, schedules reminders, optionally mirrors the sample to
// the calendar and prepends it to the collection.
func (s *Service) Create(ctx context.Context, in Input) (domain.Sample, Result, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var created domain.Sample
	res, err := s.run(ctx, "create_sample", func(ctx context.Context) (string, Result, error) {
		var res Result
		name, err := domain.ValidateSubmission(in.Name, in.CureDays)
		if err != nil {
			return "", res, err
		}
		now := s.clock.Now()
		start := in.CureStart.In(s.loc)
		if in.CureStart.IsZero() {
			start = now.In(s.loc)
		}
		sample := domain.Sample{
			ID:                  s.newID(),
			Name:                name,
			CureStart:           start,
			CureDays:            in.CureDays,
			DueDate:             temporal.DueDate(start, in.CureDays),
			CreatedAt:           now,
			Photo:               clonePhoto(in.Photo),
			ReminderIDs:         []string{},
			CalendarSyncEnabled: in.CalendarSync,
		}
		if err := s.checkConflicts(ctx, &sample, "", &res); err != nil {
			return sample.ID, res, err
		}
		samples, err := s.load(ctx, &res)
		if err != nil {
			return sample.ID, res, err
		}

		sample.ReminderIDs = s.scheduleReminders(ctx, sample, now, &res)
		s.syncCalendar(ctx, &sample, "", &res)

		next := make([]domain.Sample, 0, len(samples)+1)
		next = append(next, sample)
		next = append(next, samples...)
		if err := s.save(ctx, next); err != nil {
			s.release(ctx, sample)
			return sample.ID, res, err
		}
		created = sample.Clone()
		return sample.ID, res, nil
	})
	return created, res, err
}

// Update applies in to the sample with id. Reminders are rescheduled and the
// calendar mirror follows the new sync intent. A replaced photo is released
// only after the collection is saved.
func (s *Service) Update(ctx context.Context, id string, in Input) (domain.Sample, Result, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var updated domain.Sample
	res, err := s.run(ctx, "update_sample", func(ctx context.Context) (string, Result, error) {
		var res Result
		name, err := domain.ValidateSubmission(in.Name, in.CureDays)
		if err != nil {
			return id, res, err
		}
		samples, err := s.load(ctx, &res)
		if err != nil {
			return id, res, err
		}
		idx := indexOf(samples, id)
		if idx < 0 {
			return id, res, ErrNotFound{ID: id}
		}
		prev := samples[idx]
		next := prev.Clone()
		next.Name = name
		if !in.CureStart.IsZero() {
			next.CureStart = in.CureStart
		}
		// decoded times carry a fixed offset; day arithmetic needs the zone
		next.CureStart = next.CureStart.In(s.loc)
		next.CureDays = in.CureDays
		next.DueDate = temporal.DueDate(next.CureStart, next.CureDays)
		next.Photo = clonePhoto(in.Photo)
		next.CalendarSyncEnabled = in.CalendarSync
		if !next.CalendarSyncEnabled {
			next.CalendarEventRef = ""
		}

		if err := s.checkConflicts(ctx, &next, prev.CalendarEventRef, &res); err != nil {
			return id, res, err
		}
		now := s.clock.Now()
		staged := s.stageReminders(ctx, prev.ReminderIDs, next, now, &res)
		next.ReminderIDs = staged.Handles
		stale := s.syncCalendar(ctx, &next, prev.CalendarEventRef, &res)

		samples[idx] = next
		if err := s.save(ctx, samples); err != nil {
			s.rollbackUpdate(ctx, prev, next, staged)
			return id, res, err
		}
		if err := staged.Commit(ctx); err != nil {
			s.logger.Warn("superseded reminders not cancelled", "sample", id, "err", err)
			res.add(NoticeCleanupFailed, "previous reminders could not be cancelled", err)
		}
		s.dropStaleEvent(ctx, id, stale, &res)
		if old := prev.PhotoURI(); old != "" && old != next.PhotoURI() {
			s.releasePhoto(ctx, id, old, &res)
		}
		updated = next.Clone()
		return id, res, nil
	})
	return updated, res, err
}

// ToggleComplete flips the completed flag and nothing else.
func (s *Service) ToggleComplete(ctx context.Context, id string) (domain.Sample, Result, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var toggled domain.Sample
	res, err := s.run(ctx, "toggle_complete", func(ctx context.Context) (string, Result, error) {
		var res Result
		samples, err := s.load(ctx, &res)
		if err != nil {
			return id, res, err
		}
		idx := indexOf(samples, id)
		if idx < 0 {
			return id, res, ErrNotFound{ID: id}
		}
		samples[idx].Completed = !samples[idx].Completed
		if err := s.save(ctx, samples); err != nil {
			return id, res, err
		}
		toggled = samples[idx].Clone()
		return id, res, nil
	})
	return toggled, res, err
}

// Delete cancels the sample's reminders, removes its calendar event and photo,
// then drops it from the collection. Cleanup failures become notices and never
// keep the sample in the list.
func (s *Service) Delete(ctx context.Context, id string) (Result, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.run(ctx, "delete_sample", func(ctx context.Context) (string, Result, error) {
		var res Result
		samples, err := s.load(ctx, &res)
		if err != nil {
			return id, res, err
		}
		idx := indexOf(samples, id)
		if idx < 0 {
			return id, res, ErrNotFound{ID: id}
		}
		s.cascade(ctx, samples[idx], &res)
		remaining := make([]domain.Sample, 0, len(samples)-1)
		remaining = append(remaining, samples[:idx]...)
		remaining = append(remaining, samples[idx+1:]...)
		if err := s.save(ctx, remaining); err != nil {
			return id, res, err
		}
		return id, res, nil
	})
}

// ReplacePhoto sets the sample's photo. A nil ref detaches it. The previous
// photo is released after the save succeeds.
func (s *Service) ReplacePhoto(ctx context.Context, id string, ref *domain.PhotoRef) (domain.Sample, Result, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var updated domain.Sample
	res, err := s.run(ctx, "replace_photo", func(ctx context.Context) (string, Result, error) {
		var res Result
		samples, err := s.load(ctx, &res)
		if err != nil {
			return id, res, err
		}
		idx := indexOf(samples, id)
		if idx < 0 {
			return id, res, ErrNotFound{ID: id}
		}
		old := samples[idx].PhotoURI()
		samples[idx].Photo = clonePhoto(ref)
		if err := s.save(ctx, samples); err != nil {
			return id, res, err
		}
		if old != "" && old != samples[idx].PhotoURI() {
			s.releasePhoto(ctx, id, old, &res)
		}
		updated = samples[idx].Clone()
		return id, res, nil
	})
	return updated, res, err
}

// Reset releases every sample's reminders, events and photos, then clears all
// stored documents.
func (s *Service) Reset(ctx context.Context) (Result, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.run(ctx, "reset", func(ctx context.Context) (string, Result, error) {
		var res Result
		samples, err := s.load(ctx, &res)
		if err != nil {
			return "", res, err
		}
		for _, sample := range samples {
			s.cascade(ctx, sample, &res)
		}
		if err := s.store.Clear(ctx); err != nil {
			return "", res, fmt.Errorf("clear store: %w", err)
		}
		if s.calendar != nil {
			s.calendar.Invalidate()
		}
		return "", res, nil
	})
}

// ScheduleProbe schedules an untracked test reminder one hour before the
// sample's due time.
func (s *Service) ScheduleProbe(ctx context.Context, id string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var handle string
	_, err := s.run(ctx, "schedule_probe", func(ctx context.Context) (string, Result, error) {
		var res Result
		if s.reminders == nil {
			return id, res, errors.New("reminders are not configured")
		}
		samples, err := s.load(ctx, &res)
		if err != nil {
			return id, res, err
		}
		idx := indexOf(samples, id)
		if idx < 0 {
			return id, res, ErrNotFound{ID: id}
		}
		sample := samples[idx]
		handle, err = s.reminders.ScheduleProbe(ctx, sample.ID, sample.Name, sample.DueDate, s.clock.Now())
		return id, res, err
	})
	return handle, err
}

// checkConflicts asks the confirmer before mirroring onto a day that already
// holds events. Lookup failures other than a refused permission let the
// operation proceed; a refused permission turns sync off.
func (s *Service) checkConflicts(ctx context.Context, sample *domain.Sample, ownRef string, res *Result) error {
	if !sample.CalendarSyncEnabled {
		return nil
	}
	if s.calendar == nil {
		sample.DisableCalendarSync()
		res.add(NoticeCalendarDisabled, "calendar mirroring is not configured", nil)
		return nil
	}
	events, err := s.calendar.FindConflicts(ctx, *sample, ownRef)
	if errors.Is(err, calendar.ErrPermissionDenied) {
		s.logger.Warn("calendar permission denied, sync disabled", "sample", sample.ID)
		sample.DisableCalendarSync()
		res.add(NoticeCalendarDisabled, "calendar permission denied", err)
		return nil
	}
	if err != nil {
		s.logger.Warn("calendar conflict lookup failed", "sample", sample.ID, "err", err)
		return nil
	}
	if len(events) == 0 {
		return nil
	}
	summary := s.calendar.SummarizeConflicts(events)
	ok, err := s.confirm.ConfirmConflicts(ctx, *sample, summary)
	if err != nil {
		return fmt.Errorf("confirm calendar conflicts: %w", err)
	}
	if !ok {
		return ErrConflictDeclined
	}
	return nil
}

// scheduleReminders arms a fresh schedule. Failures degrade to an empty set
// with a notice.
func (s *Service) scheduleReminders(ctx context.Context, sample domain.Sample, now time.Time, res *Result) []string {
	if s.reminders == nil {
		return []string{}
	}
	handles, err := s.reminders.Schedule(ctx, sample.ID, sample.Name, sample.DueDate, now)
	if err != nil {
		s.logger.Warn("reminders degraded", "sample", sample.ID, "err", err)
		res.add(NoticeRemindersDegraded, "reminders could not be fully scheduled", err)
	}
	if handles == nil {
		handles = []string{}
	}
	return handles
}

// stageReminders arms the replacement for prev. prev stays armed until the
// returned replacement is committed.
func (s *Service) stageReminders(ctx context.Context, prev []string, sample domain.Sample, now time.Time, res *Result) reminder.Replacement {
	if s.reminders == nil {
		return reminder.Replacement{Handles: []string{}}
	}
	staged, err := s.reminders.Stage(ctx, prev, sample.ID, sample.Name, sample.DueDate, now)
	if err != nil {
		s.logger.Warn("reminders degraded", "sample", sample.ID, "err", err)
		res.add(NoticeRemindersDegraded, "reminders could not be fully scheduled", err)
	}
	if staged.Handles == nil {
		staged.Handles = []string{}
	}
	return staged
}

// syncCalendar brings the mirror in line with sample.CalendarSyncEnabled.
// prevRef is the event the stored record pointed at before this operation.
// The returned ref is no longer wanted once the record is saved; it is left
// in place until then so a failed save can keep pointing at it.
func (s *Service) syncCalendar(ctx context.Context, sample *domain.Sample, prevRef string, res *Result) (stale string) {
	if s.calendar == nil {
		if sample.CalendarSyncEnabled {
			sample.DisableCalendarSync()
			res.add(NoticeCalendarDisabled, "calendar mirroring is not configured", nil)
		}
		return prevRef
	}
	if !sample.CalendarSyncEnabled {
		sample.CalendarEventRef = ""
		return prevRef
	}

	var (
		ref string
		err error
	)
	if prevRef != "" {
		ref, err = s.calendar.UpdateEvent(ctx, prevRef, *sample)
		if err != nil && !errors.Is(err, calendar.ErrPermissionDenied) {
			// the event may have been removed on the device
			ref, err = s.calendar.CreateEvent(ctx, *sample)
			if err == nil {
				stale = prevRef
			}
		}
	} else {
		ref, err = s.calendar.CreateEvent(ctx, *sample)
	}
	if err != nil {
		s.logger.Warn("calendar sync disabled", "sample", sample.ID, "err", err)
		sample.DisableCalendarSync()
		msg := "calendar event could not be saved"
		if errors.Is(err, calendar.ErrPermissionDenied) {
			msg = "calendar permission denied"
		}
		res.add(NoticeCalendarDisabled, msg, err)
		return prevRef
	}
	sample.CalendarEventRef = ref
	return stale
}

// dropStaleEvent deletes an event the saved record no longer references.
func (s *Service) dropStaleEvent(ctx context.Context, sampleID, ref string, res *Result) {
	if s.calendar == nil || ref == "" {
		return
	}
	if err := s.calendar.DeleteEvent(ctx, ref); err != nil {
		s.logger.Warn("calendar cleanup failed", "sample", sampleID, "event", ref, "err", err)
		res.add(NoticeCleanupFailed, "previous calendar event could not be removed", err)
	}
}

// rollbackUpdate restores what the stored prev record expects after the
// save of next failed: prev's reminders stay armed, the staged ones are
// disarmed, a shared event gets prev's payload back and a newly created
// event is removed.
func (s *Service) rollbackUpdate(ctx context.Context, prev, next domain.Sample, staged reminder.Replacement) {
	if s.reminders != nil {
		if err := staged.Abort(ctx); err != nil {
			s.logger.Warn("reminder compensation failed", "sample", next.ID, "err", err)
		}
	}
	if s.calendar == nil || next.CalendarEventRef == "" {
		return
	}
	if next.CalendarEventRef == prev.CalendarEventRef {
		if _, err := s.calendar.UpdateEvent(ctx, prev.CalendarEventRef, prev); err != nil {
			s.logger.Warn("calendar compensation failed", "sample", prev.ID, "event", prev.CalendarEventRef, "err", err)
		}
		return
	}
	if err := s.calendar.DeleteEvent(ctx, next.CalendarEventRef); err != nil {
		s.logger.Warn("calendar compensation failed", "sample", next.ID, "err", err)
	}
}

// release undoes the side effects of an operation whose save failed.
func (s *Service) release(ctx context.Context, sample domain.Sample) {
	if s.reminders != nil {
		if err := s.reminders.CancelAll(ctx, sample.ReminderIDs); err != nil {
			s.logger.Warn("reminder compensation failed", "sample", sample.ID, "err", err)
		}
	}
	if s.calendar != nil && sample.CalendarEventRef != "" {
		if err := s.calendar.DeleteEvent(ctx, sample.CalendarEventRef); err != nil {
			s.logger.Warn("calendar compensation failed", "sample", sample.ID, "err", err)
		}
	}
}

// cascade releases everything a sample owns. Each step runs regardless of
// earlier failures.
func (s *Service) cascade(ctx context.Context, sample domain.Sample, res *Result) {
	var failed []string
	if s.reminders != nil {
		if err := s.reminders.CancelAll(ctx, sample.ReminderIDs); err != nil {
			s.logger.Warn("reminder cleanup failed", "sample", sample.ID, "err", err)
			res.add(NoticeCleanupFailed, "reminders could not be cancelled", err)
			failed = append(failed, "reminders")
		}
	}
	if s.calendar != nil && sample.CalendarEventRef != "" {
		if err := s.calendar.DeleteEvent(ctx, sample.CalendarEventRef); err != nil {
			s.logger.Warn("calendar cleanup failed", "sample", sample.ID, "err", err)
			res.add(NoticeCleanupFailed, "calendar event could not be removed", err)
			failed = append(failed, "calendar")
		}
	}
	if uri := sample.PhotoURI(); uri != "" {
		if !s.releasePhoto(ctx, sample.ID, uri, res) {
			failed = append(failed, "photo")
		}
	}
	if len(failed) > 0 {
		s.logger.Info("sample removed with incomplete cleanup", "sample", sample.ID, "failed", strings.Join(failed, ","))
	}
}

func (s *Service) releasePhoto(ctx context.Context, sampleID, uri string, res *Result) bool {
	if s.photos == nil {
		return true
	}
	if err := s.photos.Delete(ctx, uri); err != nil {
		s.logger.Warn("photo cleanup failed", "sample", sampleID, "photo", uri, "err", err)
		res.add(NoticeCleanupFailed, "photo could not be removed", err)
		return false
	}
	return true
}

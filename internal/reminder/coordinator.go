// Package reminder translates a sample's due date into scheduled notifications
// and keeps the scheduled set consistent across edits.
package reminder

import (
	"context"
	"errors"
	"fmt"
	"time"

	"curetrack/internal/logging"
	"curetrack/internal/temporal"
	"curetrack/pkg/domain"
)

// Notification channels.
const (
	ChannelReminder  = "cure_reminder"
	ChannelCompleted = "cure_completed"
)

// Offset is one row of the reminder policy: a notification fired at due+Before.
type Offset struct {
	Kind    domain.NotificationKind
	Before  time.Duration
	Channel string
	Title   string
	Body    func(name string, due time.Time, loc *time.Location) string
}

// Policy is the fixed reminder table: completion, one day before, one week before.
var Policy = []Offset{
	{
		Kind:    domain.NotificationCureCompleted,
		Before:  0,
		Channel: ChannelCompleted,
		Title:   "🔔 Beton Kür Süresi Doldu",
		Body: func(name string, due time.Time, loc *time.Location) string {
			return fmt.Sprintf("%s numunesinin %s tarihinde kür süresi tamamlandı.", name, temporal.FormatDate(due, loc))
		},
	},
	{
		Kind:    domain.NotificationDayBefore,
		Before:  -temporal.Day,
		Channel: ChannelReminder,
		Title:   "⏰ Kür Süresi Yarın Doluyor",
		Body: func(name string, _ time.Time, _ *time.Location) string {
			return fmt.Sprintf("%s numunesinin kür süresi yarın tamamlanacak. Hazırlık yapmayı unutmayın.", name)
		},
	},
	{
		Kind:    domain.NotificationWeekBefore,
		Before:  -7 * temporal.Day,
		Channel: ChannelReminder,
		Title:   "⏰ Kür Süresi 1 Hafta Kaldı",
		Body: func(name string, _ time.Time, _ *time.Location) string {
			return fmt.Sprintf("%s numunesinin kür süresi bir hafta içinde tamamlanacak.", name)
		},
	},
}

// ErrProbeTooLate is returned when the one-hour probe target has already passed.
var ErrProbeTooLate = errors.New("reminder: probe time already passed")

// Coordinator schedules and cancels reminders through a domain.Scheduler.
type Coordinator struct {
	scheduler domain.Scheduler
	logger    logging.Logger
	loc       *time.Location
}

// Option configures a Coordinator.
type Option func(*Coordinator)

// WithLogger sets the logger used for best-effort failures.
func WithLogger(l logging.Logger) Option {
	return func(c *Coordinator) { c.logger = logging.OrNoop(l) }
}

// WithLocation sets the location used to format dates in messages.
func WithLocation(loc *time.Location) Option {
	return func(c *Coordinator) {
		if loc != nil {
			c.loc = loc
		}
	}
}

// NewCoordinator returns a coordinator over scheduler.
func NewCoordinator(scheduler domain.Scheduler, opts ...Option) *Coordinator {
	c := &Coordinator{scheduler: scheduler, logger: logging.Noop(), loc: time.Local}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Schedule schedules one notification per policy offset whose target is
// strictly after now. Passed offsets are skipped silently.
//
// Scheduler failures are soft: handles already scheduled by this call are
// cancelled, and an empty set is returned together with the error so the
// caller can surface a notice while still committing the sample.
func (c *Coordinator) Schedule(ctx context.Context, sampleID, name string, due, now time.Time) ([]string, error) {
	handles := make([]string, 0, len(Policy))
	if c.scheduler == nil {
		return handles, errors.New("reminder: no scheduler configured")
	}
	for _, off := range Policy {
		at := due.Add(off.Before)
		if !at.After(now) {
			continue
		}
		n := domain.Notification{
			SampleID: sampleID,
			Kind:     off.Kind,
			Channel:  off.Channel,
			Title:    off.Title,
			Body:     off.Body(name, due, c.loc),
		}
		handle, err := c.scheduler.ScheduleAt(ctx, at, n)
		if err != nil {
			c.logger.Warn("reminder schedule failed", "sample", sampleID, "kind", string(off.Kind), "err", err)
			if cerr := c.CancelAll(ctx, handles); cerr != nil {
				err = errors.Join(err, cerr)
			}
			return []string{}, fmt.Errorf("schedule %s: %w", off.Kind, err)
		}
		if handle != "" {
			handles = append(handles, handle)
		}
	}
	return handles, nil
}

// CancelAll cancels every handle, continuing past individual failures. The
// returned error joins all failures; nil means every cancellation succeeded.
func (c *Coordinator) CancelAll(ctx context.Context, handles []string) error {
	if len(handles) == 0 {
		return nil
	}
	if c.scheduler == nil {
		return errors.New("reminder: no scheduler configured")
	}
	var errs []error
	for _, h := range handles {
		if h == "" {
			continue
		}
		if err := c.scheduler.Cancel(ctx, h); err != nil {
			c.logger.Warn("reminder cancel failed", "handle", h, "err", err)
			errs = append(errs, fmt.Errorf("cancel %s: %w", h, err))
		}
	}
	return errors.Join(errs...)
}

// Reconcile replaces prev with a fresh schedule for due. Cancellation failures
// never prevent the new schedule from being attempted; both outcomes are
// reported through the joined error.
func (c *Coordinator) Reconcile(ctx context.Context, prev []string, sampleID, name string, due, now time.Time) ([]string, error) {
	cancelErr := c.CancelAll(ctx, prev)
	handles, schedErr := c.Schedule(ctx, sampleID, name, due, now)
	return handles, errors.Join(cancelErr, schedErr)
}

// Replacement is a fresh schedule staged next to the handles it supersedes.
// Exactly one of Commit or Abort should follow.
type Replacement struct {
	c       *Coordinator
	Prev    []string
	Handles []string
}

// Stage schedules a fresh set for due while prev stays armed, so a caller
// whose write fails can keep the stored handles live.
func (c *Coordinator) Stage(ctx context.Context, prev []string, sampleID, name string, due, now time.Time) (Replacement, error) {
	handles, err := c.Schedule(ctx, sampleID, name, due, now)
	return Replacement{c: c, Prev: append([]string(nil), prev...), Handles: handles}, err
}

// Commit cancels the superseded handles.
func (r Replacement) Commit(ctx context.Context) error {
	if r.c == nil {
		return nil
	}
	return r.c.CancelAll(ctx, r.Prev)
}

// Abort cancels the staged handles and leaves the superseded ones armed.
func (r Replacement) Abort(ctx context.Context) error {
	if r.c == nil {
		return nil
	}
	return r.c.CancelAll(ctx, r.Handles)
}

// ScheduleProbe schedules a single test notification one hour before due.
// It is not tracked on the sample.
func (c *Coordinator) ScheduleProbe(ctx context.Context, sampleID, name string, due, now time.Time) (string, error) {
	at := due.Add(-time.Hour)
	if !at.After(now) {
		return "", ErrProbeTooLate
	}
	if c.scheduler == nil {
		return "", errors.New("reminder: no scheduler configured")
	}
	return c.scheduler.ScheduleAt(ctx, at, domain.Notification{
		SampleID: sampleID,
		Kind:     domain.NotificationHourProbe,
		Channel:  ChannelReminder,
		Title:    "🧪 Test: Kür Süresi 1 Saat Kaldı",
		Body:     fmt.Sprintf("%s numunesi için test bildirimi.", name),
	})
}

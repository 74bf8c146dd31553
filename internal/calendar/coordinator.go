// Package calendar mirrors samples as all-day calendar events and detects
// same-day conflicts on the device calendar.
package calendar

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"curetrack/internal/logging"
	"curetrack/internal/temporal"
	"curetrack/pkg/domain"
)

// Mirror calendar identity.
const (
	CalendarName  = "Beton Kür Takip"
	CalendarColor = "#2563EB"
)

// PreviewLimit is how many conflicting events a summary lists before "+N more".
const PreviewLimit = 3

// ErrPermissionDenied is returned when the provider refuses calendar access.
var ErrPermissionDenied = errors.New("calendar: permission denied")

// Alarms fire 24h before the event's day start and at day start.
var Alarms = []time.Duration{-1440 * time.Minute, 0}

// Coordinator owns the mirror calendar id and all provider interaction.
type Coordinator struct {
	provider domain.CalendarProvider
	logger   logging.Logger
	loc      *time.Location

	mu         sync.Mutex
	calendarID string
}

// Option configures a Coordinator.
type Option func(*Coordinator)

// WithLogger sets the logger.
func WithLogger(l logging.Logger) Option {
	return func(c *Coordinator) { c.logger = logging.OrNoop(l) }
}

// WithLocation sets the local time zone that defines calendar days.
func WithLocation(loc *time.Location) Option {
	return func(c *Coordinator) {
		if loc != nil {
			c.loc = loc
		}
	}
}

// NewCoordinator returns a coordinator over provider.
func NewCoordinator(provider domain.CalendarProvider, opts ...Option) *Coordinator {
	c := &Coordinator{provider: provider, logger: logging.Noop(), loc: time.Local}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Location returns the zone calendar days are computed in.
func (c *Coordinator) Location() *time.Location { return c.loc }

// Invalidate drops the memoized calendar id so the next write looks it up again.
func (c *Coordinator) Invalidate() {
	c.mu.Lock()
	c.calendarID = ""
	c.mu.Unlock()
}

// BuildPayload renders sample as an event spanning its due date's local day.
func (c *Coordinator) BuildPayload(sample domain.Sample) domain.EventPayload {
	start, end := temporal.DayWindowOf(sample.DueDate, c.loc)
	notes := strings.Join([]string{
		fmt.Sprintf("Numune: %s", sample.Name),
		fmt.Sprintf("Kür Süresi: %d gün", sample.CureDays),
		fmt.Sprintf("Başlangıç: %s", temporal.FormatDate(start, c.loc)),
		fmt.Sprintf("Bitiş: %s", temporal.FormatDate(end, c.loc)),
	}, "\n")
	return domain.EventPayload{
		Title:    fmt.Sprintf("%s - Kür Takibi", sample.Name),
		Start:    start,
		End:      end,
		AllDay:   true,
		Notes:    notes,
		Alarms:   append([]time.Duration(nil), Alarms...),
		TimeZone: c.loc.String(),
	}
}

func (c *Coordinator) ensurePermission(ctx context.Context) error {
	if c.provider == nil {
		return errors.New("calendar: no provider configured")
	}
	ok, err := c.provider.RequestPermission(ctx)
	if err != nil {
		return fmt.Errorf("calendar permission: %w", err)
	}
	if !ok {
		return ErrPermissionDenied
	}
	return nil
}

func (c *Coordinator) ensureCalendar(ctx context.Context) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.calendarID != "" {
		return c.calendarID, nil
	}
	calendars, err := c.provider.Calendars(ctx)
	if err != nil {
		return "", fmt.Errorf("list calendars: %w", err)
	}
	for _, cal := range calendars {
		if cal.Title == CalendarName {
			c.calendarID = cal.ID
			return cal.ID, nil
		}
	}
	id, err := c.provider.CreateCalendar(ctx, domain.CalendarInfo{Title: CalendarName, Color: CalendarColor})
	if err != nil {
		return "", fmt.Errorf("create calendar: %w", err)
	}
	c.calendarID = id
	return id, nil
}

// FindConflicts lists events on the sample's due day, in provider order,
// excluding excludeRef and events starting before the sample's cure-start day.
func (c *Coordinator) FindConflicts(ctx context.Context, sample domain.Sample, excludeRef string) ([]domain.CalendarEvent, error) {
	if err := c.ensurePermission(ctx); err != nil {
		return nil, err
	}
	dayStart, dayEnd := temporal.DayWindowOf(sample.DueDate, c.loc)
	window := domain.DayWindow{Start: dayStart, End: dayEnd.Add(-time.Millisecond)}

	calendars, err := c.provider.Calendars(ctx)
	if err != nil {
		return nil, fmt.Errorf("list calendars: %w", err)
	}
	ids := make([]string, 0, len(calendars))
	seen := make(map[string]struct{}, len(calendars))
	for _, cal := range calendars {
		if cal.ID == "" {
			continue
		}
		if _, ok := seen[cal.ID]; ok {
			continue
		}
		seen[cal.ID] = struct{}{}
		ids = append(ids, cal.ID)
	}
	if len(ids) == 0 {
		return []domain.CalendarEvent{}, nil
	}
	events, err := c.provider.ListEvents(ctx, ids, window)
	if err != nil {
		return nil, fmt.Errorf("list events: %w", err)
	}

	var cureDay time.Time
	if !sample.CureStart.IsZero() {
		cureDay = temporal.StartOfDay(sample.CureStart, c.loc)
	}
	out := make([]domain.CalendarEvent, 0, len(events))
	for _, ev := range events {
		if excludeRef != "" && ev.ID == excludeRef {
			continue
		}
		evStart, evEnd := ev.Start, ev.End
		if !evEnd.After(evStart) {
			evEnd = evStart
		} else if ev.AllDay {
			// all-day ends are exclusive midnights
			evEnd = evEnd.Add(-time.Millisecond)
		}
		if ev.AllDay {
			evStart = temporal.StartOfDay(evStart, c.loc)
			evEnd = temporal.StartOfDay(evEnd, c.loc).AddDate(0, 0, 1).Add(-time.Millisecond)
		}
		if evStart.After(window.End) || evEnd.Before(window.Start) {
			continue
		}
		if !cureDay.IsZero() && evStart.Before(cureDay) {
			continue
		}
		out = append(out, ev)
	}
	return out, nil
}

// ConflictSummary is the user-facing preview of same-day conflicts.
type ConflictSummary struct {
	Items []string
	More  int
}

// SummarizeConflicts renders the first PreviewLimit events and counts the rest.
func (c *Coordinator) SummarizeConflicts(events []domain.CalendarEvent) ConflictSummary {
	var sum ConflictSummary
	for i, ev := range events {
		if i >= PreviewLimit {
			sum.More = len(events) - PreviewLimit
			break
		}
		title := ev.Title
		if title == "" {
			title = "Etkinlik"
		}
		timeLabel := "Tüm gün"
		if !ev.AllDay {
			timeLabel = fmt.Sprintf("%s - %s", ev.Start.In(c.loc).Format("15:04"), ev.End.In(c.loc).Format("15:04"))
		}
		sum.Items = append(sum.Items, fmt.Sprintf("• %s (%s)", title, timeLabel))
	}
	return sum
}

func (s ConflictSummary) String() string {
	lines := append([]string(nil), s.Items...)
	if s.More > 0 {
		lines = append(lines, fmt.Sprintf("• +%d etkinlik daha", s.More))
	}
	return strings.Join(lines, "\n")
}

// CreateEvent mirrors sample into the app calendar and returns the event id.
// Any failure yields "" and a non-nil error; the caller must treat that as
// sync not having taken effect.
func (c *Coordinator) CreateEvent(ctx context.Context, sample domain.Sample) (string, error) {
	if err := c.ensurePermission(ctx); err != nil {
		return "", err
	}
	calID, err := c.ensureCalendar(ctx)
	if err != nil {
		c.logger.Error("calendar lookup failed", "sample", sample.ID, "err", err)
		return "", err
	}
	id, err := c.provider.CreateEvent(ctx, calID, c.BuildPayload(sample))
	if err != nil {
		c.logger.Error("calendar event create failed", "sample", sample.ID, "err", err)
		return "", fmt.Errorf("create event: %w", err)
	}
	if id == "" {
		return "", errors.New("create event: provider returned no id")
	}
	return id, nil
}

// UpdateEvent rewrites the mirrored event. An empty ref degrades to CreateEvent.
// On provider failure it returns "" and the error; falling back to a fresh
// CreateEvent is the caller's decision.
func (c *Coordinator) UpdateEvent(ctx context.Context, ref string, sample domain.Sample) (string, error) {
	if ref == "" {
		return c.CreateEvent(ctx, sample)
	}
	if err := c.ensurePermission(ctx); err != nil {
		return "", err
	}
	if err := c.provider.UpdateEvent(ctx, ref, c.BuildPayload(sample)); err != nil {
		c.logger.Error("calendar event update failed", "sample", sample.ID, "event", ref, "err", err)
		return "", fmt.Errorf("update event %s: %w", ref, err)
	}
	return ref, nil
}

// DeleteEvent removes the mirrored event. Deleting an empty ref succeeds
// without touching the provider.
func (c *Coordinator) DeleteEvent(ctx context.Context, ref string) error {
	if ref == "" {
		return nil
	}
	if err := c.ensurePermission(ctx); err != nil {
		return err
	}
	if err := c.provider.DeleteEvent(ctx, ref); err != nil {
		c.logger.Error("calendar event delete failed", "event", ref, "err", err)
		return fmt.Errorf("delete event %s: %w", ref, err)
	}
	return nil
}

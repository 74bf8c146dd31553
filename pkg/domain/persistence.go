package domain

import (
	"context"
	"time"
)

// SampleStore persists the sample collection as one document. Implementations
// read and write the whole collection atomically; there are no row-level updates.
type SampleStore interface {
	// LoadSamples returns the stored collection, or an empty slice when nothing is stored.
	// Undecodable documents are reported with ErrCorruptDocument.
	LoadSamples(ctx context.Context) ([]Sample, error)
	// SaveSamples replaces the stored collection.
	SaveSamples(ctx context.Context, samples []Sample) error
	LoadSettings(ctx context.Context) (Settings, error)
	SaveSettings(ctx context.Context, settings Settings) error
	// Clear removes every stored document.
	Clear(ctx context.Context) error
}

// NotificationKind distinguishes reminder message variants.
type NotificationKind string

const (
	NotificationCureCompleted NotificationKind = "cure_completed"
	NotificationDayBefore     NotificationKind = "cure_reminder_day"
	NotificationWeekBefore    NotificationKind = "cure_reminder_week"
	NotificationHourProbe     NotificationKind = "cure_reminder_hour_test"
)

// Notification is the payload handed to a Scheduler.
type Notification struct {
	SampleID string           `json:"sampleId"`
	Kind     NotificationKind `json:"type"`
	Channel  string           `json:"channel"`
	Title    string           `json:"title"`
	Body     string           `json:"body"`
}

// Scheduler schedules device notifications at absolute instants.
type Scheduler interface {
	// ScheduleAt returns an opaque handle. A time in the past is a no-op and yields ("", nil).
	ScheduleAt(ctx context.Context, at time.Time, n Notification) (string, error)
	Cancel(ctx context.Context, handle string) error
}

// DayWindow is the inclusive instant range of one local calendar day.
type DayWindow struct {
	Start time.Time
	End   time.Time
}

// CalendarInfo describes a calendar exposed by a provider.
type CalendarInfo struct {
	ID    string
	Title string
	Color string
}

// EventPayload is the all-day event representation of a sample.
type EventPayload struct {
	Title    string
	Start    time.Time
	End      time.Time
	AllDay   bool
	Notes    string
	Alarms   []time.Duration
	TimeZone string
}

// CalendarEvent is an event returned by a provider query.
type CalendarEvent struct {
	ID         string
	CalendarID string
	Title      string
	Start      time.Time
	End        time.Time
	AllDay     bool
}

// CalendarProvider is the device calendar capability.
type CalendarProvider interface {
	// RequestPermission reports whether calendar access is granted, prompting if the platform can.
	RequestPermission(ctx context.Context) (bool, error)
	Calendars(ctx context.Context) ([]CalendarInfo, error)
	CreateCalendar(ctx context.Context, info CalendarInfo) (string, error)
	ListEvents(ctx context.Context, calendarIDs []string, window DayWindow) ([]CalendarEvent, error)
	CreateEvent(ctx context.Context, calendarID string, payload EventPayload) (string, error)
	UpdateEvent(ctx context.Context, eventID string, payload EventPayload) error
	DeleteEvent(ctx context.Context, eventID string) error
}

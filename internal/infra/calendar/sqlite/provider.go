// Package sqlite implements domain.CalendarProvider over a local SQLite
// database, standing in for a device calendar on headless hosts.
package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"

	"curetrack/pkg/domain"

	_ "modernc.org/sqlite" // pure go sqlite driver
)

// Compile-time contract assertion.
var _ domain.CalendarProvider = (*Provider)(nil)

// ErrEventNotFound is returned when updating an event that does not exist.
var ErrEventNotFound = errors.New("calendar event not found")

const schema = `
CREATE TABLE IF NOT EXISTS calendars (
	id TEXT PRIMARY KEY,
	title TEXT NOT NULL,
	color TEXT NOT NULL DEFAULT ''
);
CREATE TABLE IF NOT EXISTS events (
	id TEXT PRIMARY KEY,
	calendar_id TEXT NOT NULL REFERENCES calendars(id),
	title TEXT NOT NULL,
	start_ms INTEGER NOT NULL,
	end_ms INTEGER NOT NULL,
	all_day INTEGER NOT NULL DEFAULT 0,
	notes TEXT NOT NULL DEFAULT '',
	alarms TEXT NOT NULL DEFAULT '[]',
	time_zone TEXT NOT NULL DEFAULT ''
);
CREATE INDEX IF NOT EXISTS events_window ON events(calendar_id, start_ms, end_ms);
`

// Provider stores calendars and events in SQLite.
type Provider struct {
	db      *sql.DB
	granted bool
}

// Option configures a Provider.
type Option func(*Provider)

// WithPermission sets the answer RequestPermission gives.
func WithPermission(granted bool) Option {
	return func(p *Provider) { p.granted = granted }
}

// Open creates or opens the calendar database at path.
func Open(path string, opts ...Option) (*Provider, error) {
	if path == "" {
		return nil, errors.New("calendar sqlite: path required")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o750); err != nil && !errors.Is(err, os.ErrExist) {
		return nil, fmt.Errorf("create dirs: %w", err)
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open calendar db: %w", err)
	}
	for _, stmt := range strings.Split(schema, ";") {
		if strings.TrimSpace(stmt) == "" {
			continue
		}
		if _, err := db.Exec(stmt); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("apply calendar schema: %w", err)
		}
	}
	p := &Provider{db: db, granted: true}
	for _, opt := range opts {
		opt(p)
	}
	return p, nil
}

// Close closes the database.
func (p *Provider) Close() error { return p.db.Close() }

// DB exposes the handle for tests.
func (p *Provider) DB() *sql.DB { return p.db }

func (p *Provider) RequestPermission(context.Context) (bool, error) {
	return p.granted, nil
}

func (p *Provider) Calendars(ctx context.Context) ([]domain.CalendarInfo, error) {
	rows, err := p.db.QueryContext(ctx, `SELECT id, title, color FROM calendars ORDER BY rowid`)
	if err != nil {
		return nil, fmt.Errorf("select calendars: %w", err)
	}
	defer func() { _ = rows.Close() }()
	var out []domain.CalendarInfo
	for rows.Next() {
		var c domain.CalendarInfo
		if err := rows.Scan(&c.ID, &c.Title, &c.Color); err != nil {
			return nil, fmt.Errorf("scan calendar: %w", err)
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

func (p *Provider) CreateCalendar(ctx context.Context, info domain.CalendarInfo) (string, error) {
	id := uuid.NewString()
	if _, err := p.db.ExecContext(ctx, `INSERT INTO calendars(id, title, color) VALUES(?,?,?)`, id, info.Title, info.Color); err != nil {
		return "", fmt.Errorf("insert calendar: %w", err)
	}
	return id, nil
}

// ListEvents returns events from calendarIDs that overlap window, ordered by start.
func (p *Provider) ListEvents(ctx context.Context, calendarIDs []string, window domain.DayWindow) ([]domain.CalendarEvent, error) {
	if len(calendarIDs) == 0 {
		return []domain.CalendarEvent{}, nil
	}
	placeholders := strings.TrimSuffix(strings.Repeat("?,", len(calendarIDs)), ",")
	args := make([]any, 0, len(calendarIDs)+2)
	for _, id := range calendarIDs {
		args = append(args, id)
	}
	args = append(args, window.End.UnixMilli(), window.Start.UnixMilli())
	query := `SELECT id, calendar_id, title, start_ms, end_ms, all_day FROM events
		WHERE calendar_id IN (` + placeholders + `) AND start_ms <= ? AND end_ms >= ?
		ORDER BY start_ms, rowid`
	rows, err := p.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("select events: %w", err)
	}
	defer func() { _ = rows.Close() }()
	out := []domain.CalendarEvent{}
	for rows.Next() {
		var (
			ev         domain.CalendarEvent
			start, end int64
			allDay     int
		)
		if err := rows.Scan(&ev.ID, &ev.CalendarID, &ev.Title, &start, &end, &allDay); err != nil {
			return nil, fmt.Errorf("scan event: %w", err)
		}
		ev.Start = time.UnixMilli(start)
		ev.End = time.UnixMilli(end)
		ev.AllDay = allDay != 0
		out = append(out, ev)
	}
	return out, rows.Err()
}

func (p *Provider) CreateEvent(ctx context.Context, calendarID string, payload domain.EventPayload) (string, error) {
	alarms, err := encodeAlarms(payload.Alarms)
	if err != nil {
		return "", err
	}
	id := uuid.NewString()
	if _, err := p.db.ExecContext(ctx, `INSERT INTO events(id, calendar_id, title, start_ms, end_ms, all_day, notes, alarms, time_zone)
		VALUES(?,?,?,?,?,?,?,?,?)`,
		id, calendarID, payload.Title, payload.Start.UnixMilli(), payload.End.UnixMilli(), boolInt(payload.AllDay), payload.Notes, alarms, payload.TimeZone); err != nil {
		return "", fmt.Errorf("insert event: %w", err)
	}
	return id, nil
}

func (p *Provider) UpdateEvent(ctx context.Context, eventID string, payload domain.EventPayload) error {
	alarms, err := encodeAlarms(payload.Alarms)
	if err != nil {
		return err
	}
	res, err := p.db.ExecContext(ctx, `UPDATE events SET title=?, start_ms=?, end_ms=?, all_day=?, notes=?, alarms=?, time_zone=? WHERE id=?`,
		payload.Title, payload.Start.UnixMilli(), payload.End.UnixMilli(), boolInt(payload.AllDay), payload.Notes, alarms, payload.TimeZone, eventID)
	if err != nil {
		return fmt.Errorf("update event: %w", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return fmt.Errorf("%w: %s", ErrEventNotFound, eventID)
	}
	return nil
}

// DeleteEvent removes the event; deleting an absent event succeeds.
func (p *Provider) DeleteEvent(ctx context.Context, eventID string) error {
	if _, err := p.db.ExecContext(ctx, `DELETE FROM events WHERE id=?`, eventID); err != nil {
		return fmt.Errorf("delete event: %w", err)
	}
	return nil
}

// EventDetails loads the full payload of an event.
func (p *Provider) EventDetails(ctx context.Context, eventID string) (domain.EventPayload, error) {
	var (
		payload    domain.EventPayload
		start, end int64
		allDay     int
		alarms     string
	)
	err := p.db.QueryRowContext(ctx, `SELECT title, start_ms, end_ms, all_day, notes, alarms, time_zone FROM events WHERE id=?`, eventID).
		Scan(&payload.Title, &start, &end, &allDay, &payload.Notes, &alarms, &payload.TimeZone)
	if errors.Is(err, sql.ErrNoRows) {
		return payload, fmt.Errorf("%w: %s", ErrEventNotFound, eventID)
	}
	if err != nil {
		return payload, fmt.Errorf("select event: %w", err)
	}
	payload.Start = time.UnixMilli(start)
	payload.End = time.UnixMilli(end)
	payload.AllDay = allDay != 0
	var minutes []int64
	if err := json.Unmarshal([]byte(alarms), &minutes); err != nil {
		return payload, fmt.Errorf("decode alarms: %w", err)
	}
	for _, m := range minutes {
		payload.Alarms = append(payload.Alarms, time.Duration(m)*time.Minute)
	}
	return payload, nil
}

func encodeAlarms(alarms []time.Duration) (string, error) {
	minutes := make([]int64, 0, len(alarms))
	for _, a := range alarms {
		minutes = append(minutes, int64(a/time.Minute))
	}
	raw, err := json.Marshal(minutes)
	if err != nil {
		return "", fmt.Errorf("encode alarms: %w", err)
	}
	return string(raw), nil
}

func boolInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

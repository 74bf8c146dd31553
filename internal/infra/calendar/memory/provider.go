// Package memory implements an in-process calendar provider for tests and
// ephemeral runs.
package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/google/uuid"

	"curetrack/pkg/domain"
)

// StoredEvent is an event held by the provider together with its payload.
type StoredEvent struct {
	domain.CalendarEvent
	Payload domain.EventPayload
}

// Provider implements domain.CalendarProvider backed by process memory.
type Provider struct {
	mu        sync.Mutex
	granted   bool
	calendars []domain.CalendarInfo
	events    map[string]StoredEvent
	order     []string

	// Fail* inject provider errors by operation.
	FailCreate bool
	FailUpdate bool
	FailDelete bool
	FailList   bool

	calls map[string]int
}

// New returns a provider that grants permission.
func New() *Provider {
	return &Provider{granted: true, events: make(map[string]StoredEvent), calls: make(map[string]int)}
}

// SetPermission toggles whether RequestPermission grants access.
func (p *Provider) SetPermission(granted bool) {
	p.mu.Lock()
	p.granted = granted
	p.mu.Unlock()
}

// Calls reports how many times op was invoked.
func (p *Provider) Calls(op string) int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.calls[op]
}

// TotalCalls reports the number of provider invocations across all operations.
func (p *Provider) TotalCalls() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	n := 0
	for _, c := range p.calls {
		n += c
	}
	return n
}

// Event returns the stored event by id.
func (p *Provider) Event(id string) (StoredEvent, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	ev, ok := p.events[id]
	return ev, ok
}

// Len returns the number of stored events.
func (p *Provider) Len() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.events)
}

// AddCalendar registers a foreign calendar, returning its id.
func (p *Provider) AddCalendar(title string) string {
	p.mu.Lock()
	defer p.mu.Unlock()
	id := uuid.NewString()
	p.calendars = append(p.calendars, domain.CalendarInfo{ID: id, Title: title})
	return id
}

// Seed inserts an event directly, bypassing permission checks.
func (p *Provider) Seed(ev domain.CalendarEvent) string {
	p.mu.Lock()
	defer p.mu.Unlock()
	if ev.ID == "" {
		ev.ID = uuid.NewString()
	}
	p.events[ev.ID] = StoredEvent{CalendarEvent: ev}
	p.order = append(p.order, ev.ID)
	return ev.ID
}

func (p *Provider) RequestPermission(context.Context) (bool, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.calls["permission"]++
	return p.granted, nil
}

func (p *Provider) Calendars(context.Context) ([]domain.CalendarInfo, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.calls["calendars"]++
	return append([]domain.CalendarInfo(nil), p.calendars...), nil
}

func (p *Provider) CreateCalendar(_ context.Context, info domain.CalendarInfo) (string, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.calls["create_calendar"]++
	info.ID = uuid.NewString()
	p.calendars = append(p.calendars, info)
	return info.ID, nil
}

func (p *Provider) ListEvents(_ context.Context, calendarIDs []string, window domain.DayWindow) ([]domain.CalendarEvent, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.calls["list"]++
	if p.FailList {
		return nil, fmt.Errorf("list events failed")
	}
	wanted := make(map[string]bool, len(calendarIDs))
	for _, id := range calendarIDs {
		wanted[id] = true
	}
	var out []domain.CalendarEvent
	for _, id := range p.order {
		ev, ok := p.events[id]
		if !ok || !wanted[ev.CalendarID] {
			continue
		}
		end := ev.End
		if end.IsZero() {
			end = ev.Start
		}
		if ev.Start.After(window.End) || end.Before(window.Start) {
			continue
		}
		out = append(out, ev.CalendarEvent)
	}
	return out, nil
}

func (p *Provider) CreateEvent(_ context.Context, calendarID string, payload domain.EventPayload) (string, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.calls["create"]++
	if p.FailCreate {
		return "", fmt.Errorf("create event failed")
	}
	if !p.hasCalendar(calendarID) {
		return "", fmt.Errorf("calendar %s not found", calendarID)
	}
	id := uuid.NewString()
	p.events[id] = StoredEvent{CalendarEvent: eventFromPayload(id, calendarID, payload), Payload: payload}
	p.order = append(p.order, id)
	return id, nil
}

func (p *Provider) UpdateEvent(_ context.Context, eventID string, payload domain.EventPayload) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.calls["update"]++
	if p.FailUpdate {
		return fmt.Errorf("update event failed")
	}
	ev, ok := p.events[eventID]
	if !ok {
		return fmt.Errorf("event %s not found", eventID)
	}
	p.events[eventID] = StoredEvent{CalendarEvent: eventFromPayload(eventID, ev.CalendarID, payload), Payload: payload}
	return nil
}

func (p *Provider) DeleteEvent(_ context.Context, eventID string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.calls["delete"]++
	if p.FailDelete {
		return fmt.Errorf("delete event failed")
	}
	if _, ok := p.events[eventID]; !ok {
		return nil
	}
	delete(p.events, eventID)
	for i, id := range p.order {
		if id == eventID {
			p.order = append(p.order[:i], p.order[i+1:]...)
			break
		}
	}
	return nil
}

// Events returns all stored events sorted by start.
func (p *Provider) Events() []StoredEvent {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]StoredEvent, 0, len(p.events))
	for _, ev := range p.events {
		out = append(out, ev)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Start.Before(out[j].Start) })
	return out
}

func (p *Provider) hasCalendar(id string) bool {
	for _, c := range p.calendars {
		if c.ID == id {
			return true
		}
	}
	return false
}

func eventFromPayload(id, calendarID string, payload domain.EventPayload) domain.CalendarEvent {
	return domain.CalendarEvent{
		ID:         id,
		CalendarID: calendarID,
		Title:      payload.Title,
		Start:      payload.Start,
		End:        payload.End,
		AllDay:     payload.AllDay,
	}
}

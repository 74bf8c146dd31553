// Package spool implements domain.Scheduler as a durable on-disk queue. Each
// scheduled notification is one diskv entry; a dispatcher drains entries whose
// time has come. The spool survives restarts, which in-process timers do not.
package spool

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/peterbourgon/diskv/v3"

	"curetrack/pkg/domain"
)

// Compile-time contract assertion.
var _ domain.Scheduler = (*Spool)(nil)

// Entry is one spooled notification.
type Entry struct {
	Handle       string              `json:"handle"`
	At           time.Time           `json:"at"`
	Notification domain.Notification `json:"notification"`
}

// Spool is a diskv-backed scheduler.
type Spool struct {
	d   *diskv.Diskv
	now func() time.Time
}

// Option configures a Spool.
type Option func(*Spool)

// WithNow overrides the clock used to reject past targets.
func WithNow(now func() time.Time) Option {
	return func(s *Spool) {
		if now != nil {
			s.now = now
		}
	}
}

// New opens the spool directory at basePath.
func New(basePath string, opts ...Option) (*Spool, error) {
	if basePath == "" {
		return nil, errors.New("spool: base path required")
	}
	if err := os.MkdirAll(basePath, 0o750); err != nil {
		return nil, fmt.Errorf("spool: create base path: %w", err)
	}
	s := &Spool{
		d:   diskv.New(diskv.Options{BasePath: basePath, CacheSizeMax: 256 * 1024}),
		now: time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// ScheduleAt spools n for delivery at at. Past targets yield an empty handle.
func (s *Spool) ScheduleAt(ctx context.Context, at time.Time, n domain.Notification) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	if !at.After(s.now()) {
		return "", nil
	}
	e := Entry{Handle: uuid.NewString(), At: at.UTC(), Notification: n}
	payload, err := json.Marshal(e)
	if err != nil {
		return "", fmt.Errorf("spool: encode: %w", err)
	}
	if err := s.d.Write(e.Handle, payload); err != nil {
		return "", fmt.Errorf("spool: write: %w", err)
	}
	return e.Handle, nil
}

// Cancel removes the entry. Cancelling an unknown or delivered handle is a no-op.
func (s *Spool) Cancel(_ context.Context, handle string) error {
	if handle == "" || !s.d.Has(handle) {
		return nil
	}
	if err := s.d.Erase(handle); err != nil {
		return fmt.Errorf("spool: erase %s: %w", handle, err)
	}
	return nil
}

// Pending lists every spooled entry ordered by target time. Unreadable entries
// are skipped and reported through the joined error.
func (s *Spool) Pending(ctx context.Context) ([]Entry, error) {
	var (
		out  []Entry
		errs []error
	)
	for key := range s.d.Keys(ctx.Done()) {
		raw, err := s.d.Read(key)
		if err != nil {
			errs = append(errs, fmt.Errorf("read %s: %w", key, err))
			continue
		}
		var e Entry
		if err := json.Unmarshal(raw, &e); err != nil {
			errs = append(errs, fmt.Errorf("decode %s: %w", key, err))
			continue
		}
		out = append(out, e)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].At.Equal(out[j].At) {
			return out[i].Handle < out[j].Handle
		}
		return out[i].At.Before(out[j].At)
	})
	return out, errors.Join(errs...)
}

// Due returns the entries whose time is at or before now.
func (s *Spool) Due(ctx context.Context, now time.Time) ([]Entry, error) {
	all, err := s.Pending(ctx)
	due := make([]Entry, 0, len(all))
	for _, e := range all {
		if e.At.After(now) {
			break
		}
		due = append(due, e)
	}
	return due, err
}

// Dispatch delivers every due entry and erases the ones delivered successfully.
// Failed deliveries stay spooled for the next pass.
func (s *Spool) Dispatch(ctx context.Context, now time.Time, deliver func(Entry) error) (int, error) {
	due, err := s.Due(ctx, now)
	errs := []error{err}
	sent := 0
	for _, e := range due {
		if ctx.Err() != nil {
			errs = append(errs, ctx.Err())
			break
		}
		if derr := deliver(e); derr != nil {
			errs = append(errs, fmt.Errorf("deliver %s: %w", e.Handle, derr))
			continue
		}
		if cerr := s.Cancel(ctx, e.Handle); cerr != nil {
			errs = append(errs, cerr)
			continue
		}
		sent++
	}
	return sent, errors.Join(errs...)
}

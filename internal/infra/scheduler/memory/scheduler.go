// Package memory implements domain.Scheduler with in-process timers.
package memory

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"curetrack/pkg/domain"
)

// Compile-time contract assertion.
var _ domain.Scheduler = (*Scheduler)(nil)

// ErrUnknownHandle is returned when cancelling a handle that was never issued
// or has already fired.
var ErrUnknownHandle = errors.New("scheduler: unknown handle")

// DeliverFunc receives notifications when their timer fires.
type DeliverFunc func(handle string, n domain.Notification)

// Pending describes a notification awaiting delivery.
type Pending struct {
	Handle       string
	At           time.Time
	Notification domain.Notification
}

type entry struct {
	at    time.Time
	n     domain.Notification
	timer *time.Timer
}

// Scheduler arms one timer per notification.
type Scheduler struct {
	mu      sync.Mutex
	now     func() time.Time
	deliver DeliverFunc
	pending map[string]*entry
	// StrictCancel makes Cancel report unknown handles.
	StrictCancel bool
}

// Option configures a Scheduler.
type Option func(*Scheduler)

// WithNow overrides the clock used to compute timer delays.
func WithNow(now func() time.Time) Option {
	return func(s *Scheduler) {
		if now != nil {
			s.now = now
		}
	}
}

// New returns a scheduler that hands fired notifications to deliver.
func New(deliver DeliverFunc, opts ...Option) *Scheduler {
	s := &Scheduler{now: time.Now, deliver: deliver, pending: make(map[string]*entry)}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// ScheduleAt arms a timer for at. A time not after now yields an empty handle.
func (s *Scheduler) ScheduleAt(ctx context.Context, at time.Time, n domain.Notification) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	delay := at.Sub(s.now())
	if delay <= 0 {
		return "", nil
	}
	handle := uuid.NewString()
	s.mu.Lock()
	defer s.mu.Unlock()
	e := &entry{at: at, n: n}
	e.timer = time.AfterFunc(delay, func() { s.fire(handle) })
	s.pending[handle] = e
	return handle, nil
}

func (s *Scheduler) fire(handle string) {
	s.mu.Lock()
	e, ok := s.pending[handle]
	if ok {
		delete(s.pending, handle)
	}
	deliver := s.deliver
	s.mu.Unlock()
	if ok && deliver != nil {
		deliver(handle, e.n)
	}
}

// Cancel stops the timer for handle. Unknown handles are ignored unless
// StrictCancel is set.
func (s *Scheduler) Cancel(_ context.Context, handle string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.pending[handle]
	if !ok {
		if s.StrictCancel {
			return fmt.Errorf("%w: %s", ErrUnknownHandle, handle)
		}
		return nil
	}
	e.timer.Stop()
	delete(s.pending, handle)
	return nil
}

// Pending lists armed notifications ordered by fire time.
func (s *Scheduler) Pending() []Pending {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]Pending, 0, len(s.pending))
	for h, e := range s.pending {
		out = append(out, Pending{Handle: h, At: e.at, Notification: e.n})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].At.Before(out[j].At) })
	return out
}

// Stop disarms every timer.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()
	for h, e := range s.pending {
		e.timer.Stop()
		delete(s.pending, h)
	}
}

package core

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"curetrack/internal/calendar"
	memblob "curetrack/internal/infra/blob/memory"
	memcal "curetrack/internal/infra/calendar/memory"
	"curetrack/internal/infra/persistence"
	"curetrack/internal/infra/persistence/memory"
	"curetrack/internal/media"
	"curetrack/pkg/domain"
)

var (
	testNow   = time.Date(2024, 1, 20, 10, 0, 0, 0, time.UTC)
	beamStart = time.Date(2024, 1, 1, 10, 0, 0, 0, time.UTC)
	beamDue   = time.Date(2024, 1, 29, 10, 0, 0, 0, time.UTC)
	pngBytes  = append([]byte("\x89PNG\r\n\x1a\n"), bytes.Repeat([]byte{1}, 24)...)
)

type fakeScheduler struct {
	mu        sync.Mutex
	seq       int
	armed     map[string]time.Time
	cancelled []string
	// failOn makes the n-th ScheduleAt call (1-based) fail; 0 never fails.
	failOn     int
	failCancel bool
	calls      int
}

func newFakeScheduler() *fakeScheduler {
	return &fakeScheduler{armed: make(map[string]time.Time)}
}

func (f *fakeScheduler) ScheduleAt(_ context.Context, at time.Time, _ domain.Notification) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	if f.failOn > 0 && f.calls == f.failOn {
		return "", errors.New("scheduler unavailable")
	}
	if !at.After(testNow) {
		return "", nil
	}
	f.seq++
	h := fmt.Sprintf("n%d", f.seq)
	f.armed[h] = at
	return h, nil
}

func (f *fakeScheduler) Cancel(_ context.Context, handle string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failCancel {
		return errors.New("cancel failed")
	}
	f.cancelled = append(f.cancelled, handle)
	delete(f.armed, handle)
	return nil
}

func (f *fakeScheduler) armedCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.armed)
}

func (f *fakeScheduler) isArmed(handle string) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	_, ok := f.armed[handle]
	return ok
}

func (f *fakeScheduler) wasCancelled(handle string) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	n := 0
	for _, h := range f.cancelled {
		if h == handle {
			n++
		}
	}
	return n == 1
}

// flakyStore fails SaveSamples on demand.
type flakyStore struct {
	domain.SampleStore
	failSave bool
}

func (f *flakyStore) SaveSamples(ctx context.Context, samples []domain.Sample) error {
	if f.failSave {
		return errors.New("disk full")
	}
	return f.SampleStore.SaveSamples(ctx, samples)
}

type harness struct {
	svc       *Service
	store     *flakyStore
	backend   *memory.Store
	scheduler *fakeScheduler
	provider  *memcal.Provider
	blobs     *memblob.Store
	photos    *media.Library
}

func newHarness(t *testing.T, opts ...Option) *harness {
	t.Helper()
	return newHarnessIn(t, time.UTC, opts...)
}

// newHarnessIn runs the service and its calendar mirror in loc.
func newHarnessIn(t *testing.T, loc *time.Location, opts ...Option) *harness {
	t.Helper()
	backend := memory.NewStore()
	store := &flakyStore{SampleStore: persistence.NewDocuments(backend)}
	sched := newFakeScheduler()
	provider := memcal.New()
	blobs := memblob.New()
	photos := media.New(blobs)
	ids := 0
	base := []Option{
		WithClock(ClockFunc(func() time.Time { return testNow })),
		WithLocation(loc),
		WithScheduler(sched),
		WithCalendar(calendar.NewCoordinator(provider, calendar.WithLocation(loc))),
		WithPhotoStore(photos),
		WithIDGenerator(func() string {
			ids++
			return fmt.Sprintf("s%d", ids)
		}),
	}
	svc := NewService(store, append(base, opts...)...)
	return &harness{svc: svc, store: store, backend: backend, scheduler: sched, provider: provider, blobs: blobs, photos: photos}
}

func (h *harness) capturePhoto(t *testing.T) *domain.PhotoRef {
	t.Helper()
	out, ok := h.photos.Capture(context.Background(), bytes.NewReader(pngBytes), "shot.png").(media.Captured)
	if !ok {
		t.Fatalf("capture failed")
	}
	return &domain.PhotoRef{URI: out.URI, Size: out.Size}
}

func (h *harness) photoExists(uri string) bool {
	_, err := h.blobs.Head(context.Background(), uri)
	return err == nil
}

func beamInput(sync bool) Input {
	return Input{Name: "  Beam-A ", CureStart: beamStart, CureDays: 28, CalendarSync: sync}
}

func acceptConflicts(seen *calendar.ConflictSummary) Option {
	return WithConflictConfirmer(ConflictConfirmerFunc(func(_ context.Context, _ domain.Sample, summary calendar.ConflictSummary) (bool, error) {
		*seen = summary
		return true, nil
	}))
}

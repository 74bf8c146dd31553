package reminder

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"
	"time"

	"curetrack/pkg/domain"
)

type scheduled struct {
	at time.Time
	n  domain.Notification
}

type fakeScheduler struct {
	next       int
	live       map[string]scheduled
	cancelled  []string
	failAfter  int // ScheduleAt fails once this many calls succeeded; <0 disables
	calls      int
	failCancel map[string]bool
}

func newFakeScheduler() *fakeScheduler {
	return &fakeScheduler{live: map[string]scheduled{}, failAfter: -1, failCancel: map[string]bool{}}
}

func (f *fakeScheduler) ScheduleAt(_ context.Context, at time.Time, n domain.Notification) (string, error) {
	if f.failAfter >= 0 && f.calls >= f.failAfter {
		return "", errors.New("scheduler unavailable")
	}
	f.calls++
	f.next++
	h := fmt.Sprintf("h%d", f.next)
	f.live[h] = scheduled{at: at, n: n}
	return h, nil
}

func (f *fakeScheduler) Cancel(_ context.Context, handle string) error {
	f.cancelled = append(f.cancelled, handle)
	if f.failCancel[handle] {
		return errors.New("cancel refused")
	}
	delete(f.live, handle)
	return nil
}

var now = time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)

func TestScheduleAllOffsetsInFuture(t *testing.T) {
	s := newFakeScheduler()
	c := NewCoordinator(s, WithLocation(time.UTC))
	due := now.Add(30 * 24 * time.Hour)
	handles, err := c.Schedule(context.Background(), "id", "Beam-A", due, now)
	if err != nil {
		t.Fatalf("schedule: %v", err)
	}
	if len(handles) != 3 {
		t.Fatalf("expected 3 handles, got %v", handles)
	}
	kinds := map[domain.NotificationKind]time.Time{}
	for _, h := range handles {
		kinds[s.live[h].n.Kind] = s.live[h].at
	}
	if !kinds[domain.NotificationCureCompleted].Equal(due) ||
		!kinds[domain.NotificationDayBefore].Equal(due.Add(-24*time.Hour)) ||
		!kinds[domain.NotificationWeekBefore].Equal(due.Add(-7*24*time.Hour)) {
		t.Fatalf("unexpected targets %v", kinds)
	}
	completion := s.live[handles[0]].n
	if completion.Channel != ChannelCompleted || !strings.Contains(completion.Body, "Beam-A") || !strings.Contains(completion.Body, "31.01.2024 12:00") {
		t.Fatalf("unexpected completion payload %+v", completion)
	}
}

func TestScheduleSkipsPassedOffsets(t *testing.T) {
	s := newFakeScheduler()
	c := NewCoordinator(s)
	handles, err := c.Schedule(context.Background(), "id", "x", now.Add(3*24*time.Hour), now)
	if err != nil || len(handles) != 2 {
		t.Fatalf("expected completion+day-before, got %v %v", handles, err)
	}
	handles, err = c.Schedule(context.Background(), "id", "x", now.Add(time.Hour), now)
	if err != nil || len(handles) != 1 {
		t.Fatalf("expected completion only, got %v %v", handles, err)
	}
}

func TestSchedulePastDueYieldsEmptySet(t *testing.T) {
	s := newFakeScheduler()
	c := NewCoordinator(s)
	for _, due := range []time.Time{now, now.Add(-time.Hour)} {
		handles, err := c.Schedule(context.Background(), "id", "x", due, now)
		if err != nil {
			t.Fatalf("past due must not error: %v", err)
		}
		if handles == nil || len(handles) != 0 {
			t.Fatalf("expected empty non-nil handle set, got %#v", handles)
		}
	}
	if s.calls != 0 {
		t.Fatalf("scheduler must not be called for past targets")
	}
}

func TestScheduleFailureRollsBackPartialSet(t *testing.T) {
	s := newFakeScheduler()
	s.failAfter = 1
	c := NewCoordinator(s)
	handles, err := c.Schedule(context.Background(), "id", "x", now.Add(30*24*time.Hour), now)
	if err == nil {
		t.Fatalf("expected soft error")
	}
	if len(handles) != 0 {
		t.Fatalf("expected empty set on failure, got %v", handles)
	}
	if len(s.live) != 0 || len(s.cancelled) != 1 {
		t.Fatalf("partial schedule must be cancelled: live=%v cancelled=%v", s.live, s.cancelled)
	}
}

func TestCancelAllContinuesPastFailures(t *testing.T) {
	s := newFakeScheduler()
	s.failCancel["b"] = true
	c := NewCoordinator(s)
	err := c.CancelAll(context.Background(), []string{"a", "b", "", "c"})
	if err == nil || !strings.Contains(err.Error(), "cancel b") {
		t.Fatalf("expected joined failure for b, got %v", err)
	}
	if strings.Join(s.cancelled, ",") != "a,b,c" {
		t.Fatalf("every handle must be attempted once, got %v", s.cancelled)
	}
	if err := c.CancelAll(context.Background(), nil); err != nil {
		t.Fatalf("empty set: %v", err)
	}
}

func TestReconcileCancelsPreviousEvenWhenScheduleFails(t *testing.T) {
	s := newFakeScheduler()
	s.failAfter = 0
	c := NewCoordinator(s)
	prev := []string{"old1", "old2"}
	handles, err := c.Reconcile(context.Background(), prev, "id", "x", now.Add(30*24*time.Hour), now)
	if err == nil {
		t.Fatalf("expected schedule error to surface")
	}
	if len(handles) != 0 {
		t.Fatalf("expected no new handles, got %v", handles)
	}
	if strings.Join(s.cancelled, ",") != "old1,old2" {
		t.Fatalf("previous handles must be cancelled exactly once, got %v", s.cancelled)
	}
}

func TestReconcileReplacesSet(t *testing.T) {
	s := newFakeScheduler()
	c := NewCoordinator(s)
	first, err := c.Schedule(context.Background(), "id", "x", now.Add(30*24*time.Hour), now)
	if err != nil {
		t.Fatalf("schedule: %v", err)
	}
	second, err := c.Reconcile(context.Background(), first, "id", "x", now.Add(2*24*time.Hour), now)
	if err != nil {
		t.Fatalf("reconcile: %v", err)
	}
	if len(second) != 2 || len(s.live) != 2 {
		t.Fatalf("expected only the new set to be live, got %v live=%d", second, len(s.live))
	}
	for _, h := range first {
		if _, ok := s.live[h]; ok {
			t.Fatalf("old handle %s still live", h)
		}
	}
}

func TestScheduleProbe(t *testing.T) {
	s := newFakeScheduler()
	c := NewCoordinator(s)
	if _, err := c.ScheduleProbe(context.Background(), "id", "x", now.Add(30*time.Minute), now); !errors.Is(err, ErrProbeTooLate) {
		t.Fatalf("expected ErrProbeTooLate, got %v", err)
	}
	h, err := c.ScheduleProbe(context.Background(), "id", "x", now.Add(2*time.Hour), now)
	if err != nil || h == "" {
		t.Fatalf("probe: %q %v", h, err)
	}
	if got := s.live[h]; got.n.Kind != domain.NotificationHourProbe || !got.at.Equal(now.Add(time.Hour)) {
		t.Fatalf("unexpected probe %+v", got)
	}
}

func TestNilScheduler(t *testing.T) {
	c := NewCoordinator(nil)
	if _, err := c.Schedule(context.Background(), "id", "x", now.Add(time.Hour), now); err == nil {
		t.Fatalf("expected error without scheduler")
	}
}

func TestStageCommitAndAbort(t *testing.T) {
	s := newFakeScheduler()
	c := NewCoordinator(s)
	ctx := context.Background()
	first, err := c.Schedule(ctx, "id", "x", now.Add(30*24*time.Hour), now)
	if err != nil {
		t.Fatalf("schedule: %v", err)
	}

	staged, err := c.Stage(ctx, first, "id", "x", now.Add(2*24*time.Hour), now)
	if err != nil {
		t.Fatalf("stage: %v", err)
	}
	if len(s.live) != len(first)+len(staged.Handles) {
		t.Fatalf("both sets must be armed while staged, live=%d", len(s.live))
	}
	if err := staged.Abort(ctx); err != nil {
		t.Fatalf("abort: %v", err)
	}
	for _, h := range first {
		if _, ok := s.live[h]; !ok {
			t.Fatalf("abort must keep %s armed", h)
		}
	}
	if len(s.live) != len(first) {
		t.Fatalf("abort must disarm the staged set, live=%d", len(s.live))
	}

	staged, err = c.Stage(ctx, first, "id", "x", now.Add(2*24*time.Hour), now)
	if err != nil {
		t.Fatalf("stage: %v", err)
	}
	if err := staged.Commit(ctx); err != nil {
		t.Fatalf("commit: %v", err)
	}
	if len(s.live) != len(staged.Handles) {
		t.Fatalf("commit must leave only the staged set, live=%d", len(s.live))
	}
	for _, h := range staged.Handles {
		if _, ok := s.live[h]; !ok {
			t.Fatalf("staged handle %s not armed", h)
		}
	}
}

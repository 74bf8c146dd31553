package spool

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"curetrack/pkg/domain"
)

var base = time.Date(2024, 5, 1, 9, 0, 0, 0, time.UTC)

func newSpool(t *testing.T) *Spool {
	t.Helper()
	s, err := New(filepath.Join(t.TempDir(), "spool"), WithNow(func() time.Time { return base }))
	if err != nil {
		t.Fatalf("new spool: %v", err)
	}
	return s
}

func TestSpoolScheduleAndDispatch(t *testing.T) {
	ctx := context.Background()
	s := newSpool(t)
	early, _ := s.ScheduleAt(ctx, base.Add(time.Hour), domain.Notification{SampleID: "a", Kind: domain.NotificationDayBefore})
	late, _ := s.ScheduleAt(ctx, base.Add(48*time.Hour), domain.Notification{SampleID: "a", Kind: domain.NotificationCureCompleted})
	if early == "" || late == "" {
		t.Fatalf("expected handles")
	}

	var delivered []string
	n, err := s.Dispatch(ctx, base.Add(2*time.Hour), func(e Entry) error {
		delivered = append(delivered, e.Handle)
		return nil
	})
	if err != nil || n != 1 || len(delivered) != 1 || delivered[0] != early {
		t.Fatalf("expected only the early entry, got %d %v %v", n, delivered, err)
	}
	pending, _ := s.Pending(ctx)
	if len(pending) != 1 || pending[0].Handle != late || pending[0].Notification.Kind != domain.NotificationCureCompleted {
		t.Fatalf("unexpected pending %+v", pending)
	}
}

func TestSpoolFailedDeliveryStaysSpooled(t *testing.T) {
	ctx := context.Background()
	s := newSpool(t)
	h, _ := s.ScheduleAt(ctx, base.Add(time.Minute), domain.Notification{})
	n, err := s.Dispatch(ctx, base.Add(time.Hour), func(Entry) error { return errors.New("offline") })
	if err == nil || n != 0 {
		t.Fatalf("expected delivery error, got %d %v", n, err)
	}
	due, _ := s.Due(ctx, base.Add(time.Hour))
	if len(due) != 1 || due[0].Handle != h {
		t.Fatalf("entry must remain spooled, got %+v", due)
	}
}

func TestSpoolPastTargetAndCancel(t *testing.T) {
	ctx := context.Background()
	s := newSpool(t)
	if h, err := s.ScheduleAt(ctx, base, domain.Notification{}); h != "" || err != nil {
		t.Fatalf("expected empty handle for past target, got %q %v", h, err)
	}
	h, _ := s.ScheduleAt(ctx, base.Add(time.Hour), domain.Notification{})
	if err := s.Cancel(ctx, h); err != nil {
		t.Fatalf("cancel: %v", err)
	}
	if err := s.Cancel(ctx, h); err != nil {
		t.Fatalf("repeat cancel: %v", err)
	}
	if pending, _ := s.Pending(ctx); len(pending) != 0 {
		t.Fatalf("expected empty spool, got %+v", pending)
	}
}

func TestSpoolSurvivesReopen(t *testing.T) {
	ctx := context.Background()
	dir := filepath.Join(t.TempDir(), "spool")
	s, _ := New(dir, WithNow(func() time.Time { return base }))
	h, _ := s.ScheduleAt(ctx, base.Add(time.Hour), domain.Notification{Title: "t"})
	reopened, _ := New(dir)
	pending, err := reopened.Pending(ctx)
	if err != nil || len(pending) != 1 || pending[0].Handle != h || !pending[0].At.Equal(base.Add(time.Hour)) {
		t.Fatalf("unexpected pending after reopen %+v %v", pending, err)
	}
}

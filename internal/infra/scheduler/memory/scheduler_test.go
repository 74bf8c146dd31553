package memory

import (
	"context"
	"errors"
	"testing"
	"time"

	"curetrack/pkg/domain"
)

func TestSchedulerFiresAndForgets(t *testing.T) {
	fired := make(chan string, 1)
	s := New(func(handle string, n domain.Notification) { fired <- handle + ":" + n.SampleID })
	h, err := s.ScheduleAt(context.Background(), time.Now().Add(20*time.Millisecond), domain.Notification{SampleID: "s1"})
	if err != nil || h == "" {
		t.Fatalf("schedule: %q %v", h, err)
	}
	select {
	case got := <-fired:
		if got != h+":s1" {
			t.Fatalf("unexpected delivery %s", got)
		}
	case <-time.After(2 * time.Second):
		t.Fatalf("timer did not fire")
	}
	if len(s.Pending()) != 0 {
		t.Fatalf("fired entries must be removed")
	}
}

func TestSchedulerPastTimeYieldsEmptyHandle(t *testing.T) {
	now := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	s := New(nil, WithNow(func() time.Time { return now }))
	h, err := s.ScheduleAt(context.Background(), now, domain.Notification{})
	if err != nil || h != "" {
		t.Fatalf("expected empty handle, got %q %v", h, err)
	}
}

func TestSchedulerCancel(t *testing.T) {
	s := New(func(string, domain.Notification) { t.Errorf("cancelled timer fired") })
	defer s.Stop()
	h, _ := s.ScheduleAt(context.Background(), time.Now().Add(time.Hour), domain.Notification{})
	later, _ := s.ScheduleAt(context.Background(), time.Now().Add(2*time.Hour), domain.Notification{})
	if p := s.Pending(); len(p) != 2 || p[0].Handle != h {
		t.Fatalf("unexpected pending %+v", p)
	}
	if err := s.Cancel(context.Background(), h); err != nil {
		t.Fatalf("cancel: %v", err)
	}
	if err := s.Cancel(context.Background(), h); err != nil {
		t.Fatalf("repeat cancel should be ignored: %v", err)
	}
	s.StrictCancel = true
	if err := s.Cancel(context.Background(), h); !errors.Is(err, ErrUnknownHandle) {
		t.Fatalf("expected ErrUnknownHandle, got %v", err)
	}
	if p := s.Pending(); len(p) != 1 || p[0].Handle != later {
		t.Fatalf("unexpected pending after cancel %+v", p)
	}
}

func TestSchedulerHonoursContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := New(nil).ScheduleAt(ctx, time.Now().Add(time.Hour), domain.Notification{}); err == nil {
		t.Fatalf("expected context error")
	}
}

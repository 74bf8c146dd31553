package temporal

import (
	"testing"
	"time"
)

func TestDueDatePreservesTimeOfDay(t *testing.T) {
	start := time.Date(2024, 1, 1, 10, 0, 0, 0, time.UTC)
	for _, days := range []int{1, 3, 7, 28, 31, 90, 365} {
		due := DueDate(start, days)
		if due.Hour() != 10 || due.Minute() != 0 {
			t.Fatalf("cureDays=%d: time of day changed: %v", days, due)
		}
		if got := int(due.Sub(start) / Day); got != days {
			t.Fatalf("cureDays=%d: got %d days apart", days, got)
		}
	}
}

func TestDueDateIsCalendarArithmeticAcrossDST(t *testing.T) {
	loc, err := time.LoadLocation("Europe/Berlin")
	if err != nil {
		t.Skipf("tzdata unavailable: %v", err)
	}
	start := time.Date(2024, 3, 30, 10, 0, 0, 0, loc) // day before the spring-forward switch
	due := DueDate(start, 1)
	if due.Day() != 31 || due.Hour() != 10 {
		t.Fatalf("expected 2024-03-31 10:00 local, got %v", due)
	}
	if due.Sub(start) == Day {
		t.Fatalf("expected a 23h wall delta across DST, got exactly 24h")
	}
}

func TestBeamScenario(t *testing.T) {
	start := time.Date(2024, 1, 1, 10, 0, 0, 0, time.UTC)
	due := DueDate(start, 28)
	if want := time.Date(2024, 1, 29, 10, 0, 0, 0, time.UTC); !due.Equal(want) {
		t.Fatalf("due = %v, want %v", due, want)
	}
	now := time.Date(2024, 1, 20, 10, 0, 0, 0, time.UTC)
	st := Classify(due, now, false)
	if st.Label != "9 gün kaldı" || st.Amount != 9 || st.Unit != UnitDays {
		t.Fatalf("unexpected status %+v", st)
	}
	if st.Severity != SeverityNormalFar {
		t.Fatalf("9 remaining days is past the 7 day threshold, got %s", st.Severity)
	}
}

func TestClassifyThresholds(t *testing.T) {
	now := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	cases := []struct {
		name     string
		due      time.Time
		severity Severity
		label    string
		color    string
	}{
		{"past", now.Add(-24 * time.Hour), SeverityOverdue, "Süre doldu", ColorDanger},
		{"equal", now, SeverityOverdue, "Süre doldu", ColorDanger},
		{"seconds", now.Add(10 * time.Second), SeverityUrgent, "1 dakika kaldı", ColorWarning},
		{"59m", now.Add(59*time.Minute + 59*time.Second), SeverityUrgent, "59 dakika kaldı", ColorWarning},
		{"60m", now.Add(time.Hour), SeverityUrgent, "1 saat kaldı", ColorWarning},
		{"23h", now.Add(23*time.Hour + 59*time.Minute), SeverityUrgent, "23 saat kaldı", ColorWarning},
		{"24h", now.Add(24 * time.Hour), SeverityNormalNear, "1 gün kaldı", ColorSuccess},
		{"25h", now.Add(25 * time.Hour), SeverityNormalNear, "2 gün kaldı", ColorSuccess},
		{"6d", now.Add(6 * Day), SeverityNormalNear, "6 gün kaldı", ColorSuccess},
		{"6d1s", now.Add(6*Day + time.Second), SeverityNormalFar, "7 gün kaldı", ColorPrimary},
		{"30d", now.Add(30 * Day), SeverityNormalFar, "30 gün kaldı", ColorPrimary},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			st := Classify(tc.due, now, false)
			if st.Severity != tc.severity || st.Label != tc.label || st.Color != tc.color {
				t.Fatalf("got %+v, want %s %q %s", st, tc.severity, tc.label, tc.color)
			}
		})
	}
}

func TestClassifyOverdueScenario(t *testing.T) {
	due := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	now := time.Date(2024, 1, 2, 0, 0, 0, 0, time.UTC)
	if st := Classify(due, now, false); st.Severity != SeverityOverdue {
		t.Fatalf("expected overdue, got %+v", st)
	}
}

func TestClassifyCompletedShortCircuits(t *testing.T) {
	now := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	for _, due := range []time.Time{now.AddDate(-5, 0, 0), now, now.AddDate(10, 0, 0)} {
		st := Classify(due, now, true)
		if st.Severity != SeverityDone || st.Label != "Tamamlandı" {
			t.Fatalf("due %v: expected done, got %+v", due, st)
		}
	}
}

func TestDaysBetweenRounding(t *testing.T) {
	base := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	if got := DaysBetween(base.Add(time.Minute), base); got != 1 {
		t.Fatalf("positive remainder must round up, got %d", got)
	}
	if got := DaysBetween(base.Add(-time.Minute), base); got != -1 {
		t.Fatalf("negative remainder must round down, got %d", got)
	}
	if got := DaysBetween(base, base); got != 0 {
		t.Fatalf("zero delta, got %d", got)
	}
}

func TestDayWindowOf(t *testing.T) {
	loc := time.FixedZone("TRT", 3*60*60)
	start, end := DayWindowOf(time.Date(2024, 1, 29, 22, 30, 0, 0, time.UTC), loc) // 01:30 next day local
	if start.Day() != 30 || start.Hour() != 0 || !end.Equal(start.AddDate(0, 0, 1)) {
		t.Fatalf("unexpected window %v - %v", start, end)
	}
	if got := FormatDate(time.Date(2024, 1, 29, 10, 5, 0, 0, time.UTC), loc); got != "29.01.2024 13:05" {
		t.Fatalf("FormatDate = %q", got)
	}
}

func TestLookupPeriod(t *testing.T) {
	if p, ok := LookupPeriod(28); !ok || p.Description != "Tam mukavemet" {
		t.Fatalf("unexpected preset %+v %v", p, ok)
	}
	if _, ok := LookupPeriod(5); ok {
		t.Fatalf("5 is not a preset")
	}
}

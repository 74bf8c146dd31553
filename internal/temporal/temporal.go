// Package temporal holds the pure due-date arithmetic and remaining-time
// classification used to present sample status. Nothing here performs I/O or
// reads the wall clock; callers pass now explicitly.
package temporal

import (
	"fmt"
	"math"
	"time"
)

// Severity classifies how actionable a sample currently is.
type Severity string

const (
	SeverityOverdue    Severity = "overdue"
	SeverityUrgent     Severity = "urgent"
	SeverityNormalNear Severity = "normal-near"
	SeverityNormalFar  Severity = "normal-far"
	SeverityDone       Severity = "done"
)

// Unit is the unit a remaining amount is reported in.
type Unit string

const (
	UnitNone    Unit = ""
	UnitMinutes Unit = "minutes"
	UnitHours   Unit = "hours"
	UnitDays    Unit = "days"
)

// Palette colors keyed by severity.
const (
	ColorDanger  = "#DC2626"
	ColorWarning = "#D97706"
	ColorSuccess = "#059669"
	ColorPrimary = "#2563EB"
)

// Day is the fixed span used for the day-count rounding rule.
const Day = 24 * time.Hour

// nearThresholdDays separates normal-near from normal-far.
const nearThresholdDays = 7

// Status is the human presentation of a sample's remaining time.
type Status struct {
	Label    string
	Severity Severity
	Color    string
	Amount   int
	Unit     Unit
}

// DueDate adds cureDays calendar days to start. Day arithmetic happens in
// start's location so the time of day survives DST transitions.
func DueDate(start time.Time, cureDays int) time.Time {
	return start.AddDate(0, 0, cureDays)
}

// Classify returns the status of a sample due at due, observed at now.
func Classify(due, now time.Time, completed bool) Status {
	if completed {
		return Status{Label: "Tamamlandı", Severity: SeverityDone, Color: ColorSuccess}
	}
	if !due.After(now) {
		return Status{Label: "Süre doldu", Severity: SeverityOverdue, Color: ColorDanger}
	}
	delta := due.Sub(now)

	if minutes := atLeastOne(int(delta / time.Minute)); minutes < 60 {
		return Status{
			Label:    fmt.Sprintf("%d dakika kaldı", minutes),
			Severity: SeverityUrgent,
			Color:    ColorWarning,
			Amount:   minutes,
			Unit:     UnitMinutes,
		}
	}
	if hours := atLeastOne(int(delta / time.Hour)); hours < 24 {
		return Status{
			Label:    fmt.Sprintf("%d saat kaldı", hours),
			Severity: SeverityUrgent,
			Color:    ColorWarning,
			Amount:   hours,
			Unit:     UnitHours,
		}
	}
	days := atLeastOne(DaysBetween(due, now))
	st := Status{
		Label:    fmt.Sprintf("%d gün kaldı", days),
		Severity: SeverityNormalFar,
		Color:    ColorPrimary,
		Amount:   days,
		Unit:     UnitDays,
	}
	if days < nearThresholdDays {
		st.Severity = SeverityNormalNear
		st.Color = ColorSuccess
	}
	return st
}

// DaysBetween counts days from b to a: ceiling for positive deltas, floor for
// negative ones, so any positive remainder counts as a whole day.
func DaysBetween(a, b time.Time) int {
	days := float64(a.Sub(b)) / float64(Day)
	if days >= 0 {
		return int(math.Ceil(days))
	}
	return int(math.Floor(days))
}

// IsOverdue reports whether an incomplete sample due at due has lapsed at now.
func IsOverdue(due, now time.Time, completed bool) bool {
	return !completed && !due.After(now)
}

// StartOfDay truncates t to local midnight in loc.
func StartOfDay(t time.Time, loc *time.Location) time.Time {
	if loc == nil {
		loc = t.Location()
	}
	lt := t.In(loc)
	return time.Date(lt.Year(), lt.Month(), lt.Day(), 0, 0, 0, 0, loc)
}

// DayWindowOf returns [midnight, next midnight) of t's day in loc.
func DayWindowOf(t time.Time, loc *time.Location) (time.Time, time.Time) {
	start := StartOfDay(t, loc)
	return start, start.AddDate(0, 0, 1)
}

// DateLayout is the dd.MM.yyyy HH:mm presentation used across the app.
const DateLayout = "02.01.2006 15:04"

// FormatDate renders t in loc using DateLayout.
func FormatDate(t time.Time, loc *time.Location) string {
	if loc != nil {
		t = t.In(loc)
	}
	return t.Format(DateLayout)
}

func atLeastOne(n int) int {
	if n < 1 {
		return 1
	}
	return n
}

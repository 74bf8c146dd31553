// Package domain defines the persisted sample entity, its document codec and the
// collaborator contracts the lifecycle service depends on.
package domain

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

// StorageKeySamples names the single document holding the sample collection.
const StorageKeySamples = "beton_kur_samples_v2"

// StorageKeySettings names the document holding user settings.
const StorageKeySettings = "beton_kur_settings"

// PhotoRef points at a stored photo owned by a sample.
type PhotoRef struct {
	URI  string
	Size int64
}

// Sample is a concrete test sample tracked through its curing period.
type Sample struct {
	ID                  string
	Name                string
	CureStart           time.Time
	CureDays            int
	DueDate             time.Time
	Completed           bool
	CreatedAt           time.Time
	Photo               *PhotoRef
	ReminderIDs         []string
	CalendarEventRef    string
	CalendarSyncEnabled bool
}

// Clone returns a deep copy so callers can mutate without aliasing slices or the photo.
func (s Sample) Clone() Sample {
	cp := s
	if s.Photo != nil {
		p := *s.Photo
		cp.Photo = &p
	}
	cp.ReminderIDs = append([]string(nil), s.ReminderIDs...)
	return cp
}

// PhotoURI returns the stored photo URI or "" when no photo is attached.
func (s Sample) PhotoURI() string {
	if s.Photo == nil {
		return ""
	}
	return s.Photo.URI
}

// DisableCalendarSync clears the mirror state so the record never claims a sync that does not exist.
func (s *Sample) DisableCalendarSync() {
	s.CalendarSyncEnabled = false
	s.CalendarEventRef = ""
}

// Settings holds user preferences persisted next to the collection.
type Settings struct {
	DefaultCureDays     int  `json:"defaultCureDays,omitempty"`
	CalendarSyncDefault bool `json:"calendarSyncDefault,omitempty"`
}

// DefaultSettings returns the settings used when none are stored.
func DefaultSettings() Settings {
	return Settings{DefaultCureDays: 28}
}

// ErrInvalidSample is matched by every ValidationError.
var ErrInvalidSample = errors.New("invalid sample")

// ValidationError reports a rejected user submission.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Message)
}

// Is reports ErrInvalidSample equivalence.
func (e *ValidationError) Is(target error) bool {
	return target == ErrInvalidSample
}

// ValidateSubmission checks a user submission before any side effect is attempted.
// It returns the trimmed name.
func ValidateSubmission(name string, cureDays int) (string, error) {
	trimmed := strings.TrimSpace(name)
	if trimmed == "" {
		return "", &ValidationError{Field: "name", Message: "must not be empty"}
	}
	if cureDays <= 0 {
		return "", &ValidationError{Field: "cureDays", Message: "must be greater than zero"}
	}
	return trimmed, nil
}

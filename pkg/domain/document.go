package domain

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"
)

// ErrCorruptDocument is returned when a stored document cannot be decoded.
var ErrCorruptDocument = errors.New("corrupt document")

// sampleRecord is the persisted JSON shape. Field names stay compatible with
// documents written by the mobile app so existing exports load unchanged.
type sampleRecord struct {
	ID                  string          `json:"id"`
	Name                string          `json:"name"`
	CureDate            time.Time       `json:"cureDate"`
	CureDays            int             `json:"cureDays"`
	DueDate             time.Time       `json:"dueDate"`
	Completed           bool            `json:"completed"`
	CreatedAt           time.Time       `json:"createdAt"`
	PhotoURI            string          `json:"photoUri,omitempty"`
	PhotoSize           int64           `json:"photoSize,omitempty"`
	NotificationIDs     []string        `json:"notificationIds"`
	NotificationID      json.RawMessage `json:"notificationId,omitempty"`
	CalendarEventID     string          `json:"calendarEventId,omitempty"`
	CalendarSyncEnabled *bool           `json:"calendarSyncEnabled,omitempty"`
}

func recordFromSample(s Sample) sampleRecord {
	sync := s.CalendarSyncEnabled
	rec := sampleRecord{
		ID:                  s.ID,
		Name:                s.Name,
		CureDate:            s.CureStart,
		CureDays:            s.CureDays,
		DueDate:             s.DueDate,
		Completed:           s.Completed,
		CreatedAt:           s.CreatedAt,
		NotificationIDs:     append([]string{}, s.ReminderIDs...),
		CalendarEventID:     s.CalendarEventRef,
		CalendarSyncEnabled: &sync,
	}
	if s.Photo != nil {
		rec.PhotoURI = s.Photo.URI
		rec.PhotoSize = s.Photo.Size
	}
	return rec
}

func (r sampleRecord) toSample() (Sample, error) {
	ids, err := mergeLegacyNotificationID(r.NotificationIDs, r.NotificationID)
	if err != nil {
		return Sample{}, fmt.Errorf("sample %s: %w", r.ID, err)
	}
	s := Sample{
		ID:               r.ID,
		Name:             r.Name,
		CureStart:        r.CureDate,
		CureDays:         r.CureDays,
		DueDate:          r.DueDate,
		Completed:        r.Completed,
		CreatedAt:        r.CreatedAt,
		ReminderIDs:      ids,
		CalendarEventRef: r.CalendarEventID,
	}
	if r.PhotoURI != "" {
		s.Photo = &PhotoRef{URI: r.PhotoURI, Size: r.PhotoSize}
	}
	switch {
	case r.CalendarSyncEnabled == nil:
		// records written before the toggle existed were synced iff they carry an event
		s.CalendarSyncEnabled = r.CalendarEventID != ""
	case !*r.CalendarSyncEnabled:
		s.DisableCalendarSync()
	default:
		s.CalendarSyncEnabled = true
	}
	return s, nil
}

// mergeLegacyNotificationID folds the single-id field used by older documents
// (a string, or an array in some builds) into the handle set.
func mergeLegacyNotificationID(ids []string, legacy json.RawMessage) ([]string, error) {
	merged := append([]string{}, ids...)
	if len(legacy) > 0 && string(legacy) != "null" {
		var single string
		if err := json.Unmarshal(legacy, &single); err == nil {
			merged = append(merged, single)
		} else {
			var many []string
			if err := json.Unmarshal(legacy, &many); err != nil {
				return nil, fmt.Errorf("decode legacy notificationId: %w", err)
			}
			merged = append(merged, many...)
		}
	}
	return dedupeHandles(merged), nil
}

func dedupeHandles(values []string) []string {
	out := make([]string, 0, len(values))
	seen := make(map[string]struct{}, len(values))
	for _, v := range values {
		if v == "" {
			continue
		}
		if _, ok := seen[v]; ok {
			continue
		}
		seen[v] = struct{}{}
		out = append(out, v)
	}
	return out
}

// EncodeSamples serializes the collection preserving order.
func EncodeSamples(samples []Sample) ([]byte, error) {
	records := make([]sampleRecord, 0, len(samples))
	for _, s := range samples {
		records = append(records, recordFromSample(s))
	}
	return json.Marshal(records)
}

// DecodeSamples parses a stored collection, migrating legacy fields. An empty
// payload decodes to an empty collection.
func DecodeSamples(payload []byte) ([]Sample, error) {
	if len(payload) == 0 || string(payload) == "null" {
		return []Sample{}, nil
	}
	var records []sampleRecord
	if err := json.Unmarshal(payload, &records); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrCorruptDocument, err)
	}
	out := make([]Sample, 0, len(records))
	for _, r := range records {
		s, err := r.toSample()
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrCorruptDocument, err)
		}
		out = append(out, s)
	}
	return out, nil
}

// EncodeSettings serializes user settings.
func EncodeSettings(settings Settings) ([]byte, error) {
	return json.Marshal(settings)
}

// DecodeSettings parses stored settings, filling defaults for missing values.
func DecodeSettings(payload []byte) (Settings, error) {
	settings := DefaultSettings()
	if len(payload) == 0 {
		return settings, nil
	}
	if err := json.Unmarshal(payload, &settings); err != nil {
		return DefaultSettings(), fmt.Errorf("%w: %v", ErrCorruptDocument, err)
	}
	if settings.DefaultCureDays <= 0 {
		settings.DefaultCureDays = DefaultSettings().DefaultCureDays
	}
	return settings, nil
}

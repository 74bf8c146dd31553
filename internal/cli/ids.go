package cli

import (
	"context"
	"fmt"
	"strings"
	"time"

	"curetrack/internal/core"
	"curetrack/pkg/domain"
)

// resolveSample finds the sample whose id equals ref or, failing that, is the
// only one starting with ref.
func resolveSample(ctx context.Context, svc *core.Service, ref string) (domain.Sample, error) {
	ref = strings.TrimSpace(ref)
	if ref == "" {
		return domain.Sample{}, fmt.Errorf("sample id required")
	}
	samples, err := svc.List(ctx)
	if err != nil {
		return domain.Sample{}, err
	}
	var matches []domain.Sample
	for _, s := range samples {
		if s.ID == ref {
			return s, nil
		}
		if strings.HasPrefix(s.ID, ref) {
			matches = append(matches, s)
		}
	}
	switch len(matches) {
	case 0:
		return domain.Sample{}, core.ErrNotFound{ID: ref}
	case 1:
		return matches[0], nil
	}
	names := make([]string, 0, len(matches))
	for _, m := range matches {
		names = append(names, fmt.Sprintf("%s (%s)", m.ID, m.Name))
	}
	return domain.Sample{}, fmt.Errorf("id %q is ambiguous: %s", ref, strings.Join(names, ", "))
}

var startLayouts = []string{time.RFC3339, "2006-01-02T15:04", "2006-01-02 15:04"}

// parseStart reads a cure start. A bare date keeps now's time of day.
func parseStart(value string, now time.Time, loc *time.Location) (time.Time, error) {
	value = strings.TrimSpace(value)
	if value == "" || strings.EqualFold(value, "now") {
		return now.In(loc), nil
	}
	for _, layout := range startLayouts {
		if t, err := time.ParseInLocation(layout, value, loc); err == nil {
			return t, nil
		}
	}
	day, err := time.ParseInLocation("2006-01-02", value, loc)
	if err != nil {
		return time.Time{}, fmt.Errorf("start %q: use YYYY-MM-DD, YYYY-MM-DD HH:MM or RFC 3339", value)
	}
	local := now.In(loc)
	return time.Date(day.Year(), day.Month(), day.Day(), local.Hour(), local.Minute(), local.Second(), 0, loc), nil
}

package core

import (
	"context"
	"fmt"
	"time"

	"curetrack/internal/temporal"
	"curetrack/pkg/domain"
)

// Stats are the aggregate counts shown above the sample list.
type Stats struct {
	Total     int `json:"total"`
	Active    int `json:"active"`
	Overdue   int `json:"overdue"`
	Completed int `json:"completed"`
}

// Upcoming is the soonest-due open sample and its classification.
type Upcoming struct {
	Sample domain.Sample
	Status temporal.Status
}

// ComputeStats counts samples as observed at now. Active includes overdue samples.
func ComputeStats(samples []domain.Sample, now time.Time) Stats {
	st := Stats{Total: len(samples)}
	for _, s := range samples {
		if s.Completed {
			st.Completed++
			continue
		}
		if temporal.IsOverdue(s.DueDate, now, false) {
			st.Overdue++
		}
	}
	st.Active = st.Total - st.Completed
	return st
}

// SoonestDue returns the open sample with the earliest due date. Ties keep
// collection order.
func SoonestDue(samples []domain.Sample, now time.Time) (Upcoming, bool) {
	var (
		best  domain.Sample
		found bool
	)
	for _, s := range samples {
		if s.Completed {
			continue
		}
		if !found || s.DueDate.Before(best.DueDate) {
			best = s
			found = true
		}
	}
	if !found {
		return Upcoming{}, false
	}
	return Upcoming{Sample: best.Clone(), Status: temporal.Classify(best.DueDate, now, false)}, true
}

// List returns the collection, newest first.
func (s *Service) List(ctx context.Context) ([]domain.Sample, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	samples, err := s.load(ctx, nil)
	if err != nil {
		return nil, err
	}
	out := make([]domain.Sample, len(samples))
	for i := range samples {
		out[i] = samples[i].Clone()
	}
	return out, nil
}

// Get returns one sample.
func (s *Service) Get(ctx context.Context, id string) (domain.Sample, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	samples, err := s.load(ctx, nil)
	if err != nil {
		return domain.Sample{}, err
	}
	idx := indexOf(samples, id)
	if idx < 0 {
		return domain.Sample{}, ErrNotFound{ID: id}
	}
	return samples[idx].Clone(), nil
}

// Stats returns the aggregate counts at the service clock's now.
func (s *Service) Stats(ctx context.Context) (Stats, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	samples, err := s.load(ctx, nil)
	if err != nil {
		return Stats{}, err
	}
	return ComputeStats(samples, s.clock.Now()), nil
}

// NextDue returns the soonest-due open sample, if any.
func (s *Service) NextDue(ctx context.Context) (Upcoming, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	samples, err := s.load(ctx, nil)
	if err != nil {
		return Upcoming{}, false, err
	}
	up, ok := SoonestDue(samples, s.clock.Now())
	return up, ok, nil
}

// Settings returns stored preferences, or defaults when none are stored.
func (s *Service) Settings(ctx context.Context) (domain.Settings, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	settings, err := s.store.LoadSettings(ctx)
	if err != nil {
		s.logger.Warn("settings unreadable, using defaults", "err", err)
		return domain.DefaultSettings(), nil
	}
	return settings, nil
}

// SaveSettings validates and stores preferences.
func (s *Service) SaveSettings(ctx context.Context, settings domain.Settings) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, err := s.run(ctx, "save_settings", func(ctx context.Context) (string, Result, error) {
		if settings.DefaultCureDays <= 0 {
			return "", Result{}, &domain.ValidationError{Field: "defaultCureDays", Message: "must be greater than zero"}
		}
		if err := s.store.SaveSettings(ctx, settings); err != nil {
			return "", Result{}, fmt.Errorf("save settings: %w", err)
		}
		return "", Result{}, nil
	})
	return err
}

// Package availability stores practitioner working windows per civil date
// and resolves them into bookable start times.
package availability

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/hackgods/practice-booking/internal/civil"
)

var (
	ErrPastDate           = errors.New("date is in the past")
	ErrDuplicateRange     = errors.New("duplicate range")
	ErrAllRangesPast      = errors.New("all ranges already past")
	ErrInvalidSlotMinutes = errors.New("slotMinutes must be between 5 and 240")
)

type Service struct {
	repo Repository
	log  zerolog.Logger
	now  func() time.Time
}

func NewService(repo Repository, log zerolog.Logger) *Service {
	return &Service{
		repo: repo,
		log:  log.With().Str("component", "availability").Logger(),
		now:  time.Now,
	}
}

// Validate checks every range and rejects exact duplicates. Overlapping
// ranges are allowed.
func Validate(ranges []civil.Range) error {
	seen := make(map[civil.Range]struct{}, len(ranges))
	for _, r := range ranges {
		if err := r.Validate(); err != nil {
			return err
		}
		if _, dup := seen[r]; dup {
			return fmt.Errorf("%s: %w", r, ErrDuplicateRange)
		}
		seen[r] = struct{}{}
	}
	return nil
}

// trimToday drops ranges that end at or before now rounded up to the next
// five minutes. Other dates are returned unchanged.
func trimToday(date civil.Date, ranges []civil.Range, now time.Time) []civil.Range {
	if date != civil.Today(now) {
		return ranges
	}
	cutoff := civil.RoundUp5(now)
	kept := make([]civil.Range, 0, len(ranges))
	for _, r := range ranges {
		if r.End > cutoff {
			kept = append(kept, r)
		}
	}
	return kept
}

// Save replaces the ranges for one date.
func (s *Service) Save(ctx context.Context, practitionerID uuid.UUID, date civil.Date, ranges []civil.Range) ([]civil.Range, error) {
	now := s.now()
	if date.Before(civil.Today(now)) {
		return nil, ErrPastDate
	}
	if err := Validate(ranges); err != nil {
		return nil, err
	}

	kept := trimToday(date, ranges, now)
	if len(ranges) > 0 && len(kept) == 0 {
		return nil, ErrAllRangesPast
	}

	if err := s.repo.Upsert(ctx, practitionerID, date, kept); err != nil {
		return nil, fmt.Errorf("save availability: %w", err)
	}
	return kept, nil
}

// SaveBulk writes one range list to many dates. Past dates and dates whose
// ranges are all already over today are skipped. It returns the number of
// dates written.
func (s *Service) SaveBulk(ctx context.Context, practitionerID uuid.UUID, dates []civil.Date, ranges []civil.Range) (int, error) {
	if err := Validate(ranges); err != nil {
		return 0, err
	}

	now := s.now()
	today := civil.Today(now)
	seen := make(map[civil.Date]struct{}, len(dates))
	days := make([]Day, 0, len(dates))
	for _, d := range dates {
		if _, dup := seen[d]; dup {
			continue
		}
		seen[d] = struct{}{}
		if d.Before(today) {
			continue
		}
		kept := trimToday(d, ranges, now)
		if len(ranges) > 0 && len(kept) == 0 {
			continue
		}
		days = append(days, Day{Date: d, Ranges: kept})
	}

	if err := s.repo.UpsertMany(ctx, practitionerID, days); err != nil {
		return 0, fmt.Errorf("save availability bulk: %w", err)
	}

	s.log.Debug().
		Str("practitioner_id", practitionerID.String()).
		Int("requested", len(dates)).
		Int("updated", len(days)).
		Msg("bulk availability saved")

	return len(days), nil
}

// Get returns the stored ranges, or nil when the date has none.
func (s *Service) Get(ctx context.Context, practitionerID uuid.UUID, date civil.Date) ([]civil.Range, error) {
	ranges, found, err := s.repo.Get(ctx, practitionerID, date)
	if err != nil {
		return nil, fmt.Errorf("get availability: %w", err)
	}
	if !found {
		return nil, nil
	}
	return ranges, nil
}

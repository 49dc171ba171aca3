package availability

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"

	"github.com/hackgods/practice-booking/internal/civil"
)

const (
	DefaultSlotMinutes = 60
	MinSlotMinutes     = 5
	MaxSlotMinutes     = 240
)

// Resolver turns stored ranges into what a client can still book. Reads take
// no lock; the booking insert is the authority on conflicts.
type Resolver struct {
	repo   Repository
	booked BookedStarts
	now    func() time.Time
}

func NewResolver(repo Repository, booked BookedStarts) *Resolver {
	return &Resolver{repo: repo, booked: booked, now: time.Now}
}

// load returns the stored ranges and the booked start set for a date that is
// not in the past. ok is false when there is nothing to resolve.
func (r *Resolver) load(ctx context.Context, practitionerID uuid.UUID, date civil.Date, now time.Time) ([]civil.Range, map[civil.Clock]bool, bool, error) {
	if date.Before(civil.Today(now)) {
		return nil, nil, false, nil
	}

	ranges, found, err := r.repo.Get(ctx, practitionerID, date)
	if err != nil {
		return nil, nil, false, fmt.Errorf("load availability: %w", err)
	}
	if !found || len(ranges) == 0 {
		return nil, nil, false, nil
	}

	starts, err := r.booked.BookedStarts(ctx, practitionerID, date)
	if err != nil {
		return nil, nil, false, fmt.Errorf("load booked starts: %w", err)
	}
	booked := make(map[civil.Clock]bool, len(starts))
	for _, s := range starts {
		booked[s] = true
	}
	return ranges, booked, true, nil
}

// Ranges returns the stored ranges with today's starts moved up to the next
// five-minute boundary. Ranges that are fully past, or whose start is already
// booked, are dropped.
func (r *Resolver) Ranges(ctx context.Context, practitionerID uuid.UUID, date civil.Date) ([]civil.Range, error) {
	now := r.now()
	ranges, booked, ok, err := r.load(ctx, practitionerID, date, now)
	if err != nil {
		return nil, err
	}
	if !ok {
		return []civil.Range{}, nil
	}

	isToday := date == civil.Today(now)
	cutoff := civil.RoundUp5(now)

	out := make([]civil.Range, 0, len(ranges))
	for _, rg := range ranges {
		if isToday && rg.Start < cutoff {
			rg.Start = cutoff
		}
		if rg.Start >= rg.End || booked[rg.Start] {
			continue
		}
		out = append(out, rg)
	}
	return out, nil
}

// Slots splits every range into fixed-length slots and returns the free
// starts in ascending order. slotMinutes of zero uses the default.
func (r *Resolver) Slots(ctx context.Context, practitionerID uuid.UUID, date civil.Date, slotMinutes int) ([]civil.Clock, error) {
	if slotMinutes == 0 {
		slotMinutes = DefaultSlotMinutes
	}
	if slotMinutes < MinSlotMinutes || slotMinutes > MaxSlotMinutes {
		return nil, ErrInvalidSlotMinutes
	}

	now := r.now()
	ranges, booked, ok, err := r.load(ctx, practitionerID, date, now)
	if err != nil {
		return nil, err
	}
	if !ok {
		return []civil.Clock{}, nil
	}

	// Today, a start must sit on or after the next 5-minute boundary and
	// still be strictly in the future, the same floor ranges mode uses.
	isToday := date == civil.Today(now)
	cutoff := civil.RoundUp5(now)
	step := civil.Clock(slotMinutes)
	seen := make(map[civil.Clock]bool)
	out := make([]civil.Clock, 0)
	for _, rg := range ranges {
		for start := rg.Start; start+step <= rg.End; start += step {
			if isToday && (start < cutoff || !date.At(start).After(now)) {
				continue
			}
			if booked[start] || seen[start] {
				continue
			}
			seen[start] = true
			out = append(out, start)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out, nil
}

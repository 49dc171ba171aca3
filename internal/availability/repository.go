package availability

import (
	"context"

	"github.com/google/uuid"

	"github.com/hackgods/practice-booking/internal/civil"
)

// Day is the full range list for one date.
type Day struct {
	Date   civil.Date
	Ranges []civil.Range
}

// Repository stores one range list per practitioner and date.
type Repository interface {
	// Get returns nil ranges and found=false when nothing is stored.
	Get(ctx context.Context, practitionerID uuid.UUID, date civil.Date) (ranges []civil.Range, found bool, err error)
	Upsert(ctx context.Context, practitionerID uuid.UUID, date civil.Date, ranges []civil.Range) error
	// UpsertMany writes every day atomically.
	UpsertMany(ctx context.Context, practitionerID uuid.UUID, days []Day) error
}

// BookedStarts lists the start times of active appointments for a
// practitioner on one date.
type BookedStarts interface {
	BookedStarts(ctx context.Context, practitionerID uuid.UUID, date civil.Date) ([]civil.Clock, error)
}

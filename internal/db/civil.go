package db

import (
	"time"

	"github.com/jackc/pgx/v5/pgtype"

	"github.com/hackgods/practice-booking/internal/civil"
)

// Date encodes a civil date for a DATE column. pgx writes only the
// year/month/day of the value so the zone used here never shifts the day.
func Date(d civil.Date) pgtype.Date {
	return pgtype.Date{Time: d.Midnight(time.UTC), Valid: true}
}

// CivilDate decodes a DATE column.
func CivilDate(d pgtype.Date) civil.Date {
	return civil.DateOf(d.Time)
}

func Time(c civil.Clock) pgtype.Time {
	return pgtype.Time{Microseconds: int64(c.Duration() / time.Microsecond), Valid: true}
}

// Clock decodes a TIME column, truncating to the minute.
func Clock(t pgtype.Time) civil.Clock {
	return civil.Clock(t.Microseconds / int64(time.Minute/time.Microsecond))
}

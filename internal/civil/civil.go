// Package civil holds the date-only and time-of-day values used for
// availability and appointment scheduling. None of these types carry a
// timezone; they are interpreted in the operator's local time.
package civil

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"time"
)

var (
	ErrInvalidDate  = errors.New("date must be formatted YYYY-MM-DD")
	ErrInvalidClock = errors.New("time must be formatted HH:mm")
	ErrInvalidRange = errors.New("range end must be after start")
)

const dateLayout = "2006-01-02"

// Date is a calendar day with no time-of-day component.
type Date struct {
	Year  int
	Month time.Month
	Day   int
}

func ParseDate(s string) (Date, error) {
	t, err := time.Parse(dateLayout, s)
	if err != nil {
		return Date{}, ErrInvalidDate
	}
	return DateOf(t), nil
}

// DateOf returns the calendar day of t in t's own location.
func DateOf(t time.Time) Date {
	y, m, d := t.Date()
	return Date{Year: y, Month: m, Day: d}
}

// Today returns the local calendar day of now.
func Today(now time.Time) Date {
	return DateOf(now.In(time.Local))
}

func (d Date) String() string {
	return fmt.Sprintf("%04d-%02d-%02d", d.Year, d.Month, d.Day)
}

func (d Date) IsZero() bool {
	return d == Date{}
}

// Midnight returns d at 00:00 in loc.
func (d Date) Midnight(loc *time.Location) time.Time {
	return time.Date(d.Year, d.Month, d.Day, 0, 0, 0, 0, loc)
}

// At combines d with a clock time in the local zone.
func (d Date) At(c Clock) time.Time {
	return d.Midnight(time.Local).Add(time.Duration(c) * time.Minute)
}

func (d Date) Compare(o Date) int {
	switch {
	case d.Year != o.Year:
		return cmpInt(d.Year, o.Year)
	case d.Month != o.Month:
		return cmpInt(int(d.Month), int(o.Month))
	default:
		return cmpInt(d.Day, o.Day)
	}
}

func (d Date) Before(o Date) bool { return d.Compare(o) < 0 }
func (d Date) After(o Date) bool  { return d.Compare(o) > 0 }

func (d Date) MarshalJSON() ([]byte, error) {
	return json.Marshal(d.String())
}

func (d *Date) UnmarshalJSON(b []byte) error {
	var s string
	if err := json.Unmarshal(b, &s); err != nil {
		return ErrInvalidDate
	}
	parsed, err := ParseDate(s)
	if err != nil {
		return err
	}
	*d = parsed
	return nil
}

// Clock is a time of day expressed in whole minutes since midnight.
type Clock int

// MinutesPerDay doubles as the clock value for "end of day".
const MinutesPerDay = 24 * 60

// ParseClock accepts exactly "HH:mm" with a 00-23 hour and 00-59 minute.
func ParseClock(s string) (Clock, error) {
	if len(s) != 5 || s[2] != ':' {
		return 0, ErrInvalidClock
	}
	h, ok1 := twoDigits(s[0], s[1])
	m, ok2 := twoDigits(s[3], s[4])
	if !ok1 || !ok2 || h > 23 || m > 59 {
		return 0, ErrInvalidClock
	}
	return Clock(h*60 + m), nil
}

func MustClock(s string) Clock {
	c, err := ParseClock(s)
	if err != nil {
		panic(err)
	}
	return c
}

// ClockOf truncates t to the minute.
func ClockOf(t time.Time) Clock {
	return Clock(t.Hour()*60 + t.Minute())
}

// RoundUp5 returns now rounded up to the next 5-minute boundary. A time
// already sitting exactly on a boundary is returned unchanged.
func RoundUp5(now time.Time) Clock {
	m := now.Hour()*60 + now.Minute()
	if now.Second() > 0 || now.Nanosecond() > 0 {
		m++
	}
	if rem := m % 5; rem != 0 {
		m += 5 - rem
	}
	return Clock(m)
}

func (c Clock) String() string {
	return fmt.Sprintf("%02d:%02d", int(c)/60, int(c)%60)
}

func (c Clock) Duration() time.Duration {
	return time.Duration(c) * time.Minute
}

func (c Clock) MarshalJSON() ([]byte, error) {
	return json.Marshal(c.String())
}

func (c *Clock) UnmarshalJSON(b []byte) error {
	var s string
	if err := json.Unmarshal(b, &s); err != nil {
		return ErrInvalidClock
	}
	parsed, err := ParseClock(s)
	if err != nil {
		return err
	}
	*c = parsed
	return nil
}

// Range is one availability window on a single day.
type Range struct {
	Start Clock `json:"start"`
	End   Clock `json:"end"`
}

// UnmarshalJSON requires both ends so that a missing start never reads as
// midnight.
func (r *Range) UnmarshalJSON(b []byte) error {
	var aux struct {
		Start *Clock `json:"start"`
		End   *Clock `json:"end"`
	}
	dec := json.NewDecoder(bytes.NewReader(b))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&aux); err != nil {
		return err
	}
	if aux.Start == nil || aux.End == nil {
		return fmt.Errorf("range needs both start and end: %w", ErrInvalidClock)
	}
	*r = Range{Start: *aux.Start, End: *aux.End}
	return nil
}

// ParseRange parses and validates both ends of an "HH:mm" window.
func ParseRange(start, end string) (Range, error) {
	s, err := ParseClock(start)
	if err != nil {
		return Range{}, fmt.Errorf("start %q: %w", start, err)
	}
	e, err := ParseClock(end)
	if err != nil {
		return Range{}, fmt.Errorf("end %q: %w", end, err)
	}
	r := Range{Start: s, End: e}
	if err := r.Validate(); err != nil {
		return Range{}, err
	}
	return r, nil
}

func (r Range) Validate() error {
	if r.Start < 0 || r.End > MinutesPerDay {
		return ErrInvalidClock
	}
	if r.End <= r.Start {
		return fmt.Errorf("%s-%s: %w", r.Start, r.End, ErrInvalidRange)
	}
	return nil
}

func (r Range) String() string {
	return r.Start.String() + "-" + r.End.String()
}

func twoDigits(a, b byte) (int, bool) {
	if a < '0' || a > '9' || b < '0' || b > '9' {
		return 0, false
	}
	return int(a-'0')*10 + int(b-'0'), true
}

func cmpInt(a, b int) int {
	switch {
	case a < b:
		return -1
	case a > b:
		return 1
	}
	return 0
}

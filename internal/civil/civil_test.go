package civil

import (
	"encoding/json"
	"errors"
	"testing"
	"time"
)

func TestParseClock(t *testing.T) {
	tests := []struct {
		in      string
		want    Clock
		wantErr bool
	}{
		{"00:00", 0, false},
		{"09:30", 9*60 + 30, false},
		{"23:59", 23*60 + 59, false},
		{"24:00", 0, true},
		{"9:30", 0, true},
		{"09:60", 0, true},
		{"09-30", 0, true},
		{"ab:cd", 0, true},
		{"", 0, true},
	}
	for _, tt := range tests {
		got, err := ParseClock(tt.in)
		if tt.wantErr {
			if err == nil {
				t.Errorf("ParseClock(%q): expected error", tt.in)
			}
			continue
		}
		if err != nil {
			t.Errorf("ParseClock(%q): unexpected error %v", tt.in, err)
			continue
		}
		if got != tt.want {
			t.Errorf("ParseClock(%q) = %d, want %d", tt.in, got, tt.want)
		}
	}
}

func TestParseRange(t *testing.T) {
	r, err := ParseRange("09:00", "10:00")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if r.String() != "09:00-10:00" {
		t.Errorf("got %s", r)
	}

	if _, err := ParseRange("10:00", "10:00"); !errors.Is(err, ErrInvalidRange) {
		t.Errorf("zero-length range: expected ErrInvalidRange, got %v", err)
	}
	if _, err := ParseRange("11:00", "10:00"); !errors.Is(err, ErrInvalidRange) {
		t.Errorf("inverted range: expected ErrInvalidRange, got %v", err)
	}
	if _, err := ParseRange("1100", "12:00"); !errors.Is(err, ErrInvalidClock) {
		t.Errorf("malformed start: expected ErrInvalidClock, got %v", err)
	}
}

func TestRoundUp5(t *testing.T) {
	day := time.Date(2025, 1, 10, 0, 0, 0, 0, time.Local)
	tests := []struct {
		offset time.Duration
		want   string
	}{
		{9 * time.Hour, "09:00"},
		{9*time.Hour + 30*time.Second, "09:05"},
		{9*time.Hour + time.Minute, "09:05"},
		{9*time.Hour + 4*time.Minute + 59*time.Second, "09:05"},
		{9*time.Hour + 5*time.Minute, "09:05"},
		{23*time.Hour + 58*time.Minute, "24:00"},
	}
	for _, tt := range tests {
		got := RoundUp5(day.Add(tt.offset)).String()
		if got != tt.want {
			t.Errorf("RoundUp5(+%s) = %s, want %s", tt.offset, got, tt.want)
		}
	}
}

func TestDateCompareAndToday(t *testing.T) {
	a := Date{2025, time.January, 10}
	b := Date{2025, time.February, 1}
	if !a.Before(b) || b.Before(a) || !b.After(a) {
		t.Fatal("date ordering is wrong")
	}
	now := time.Date(2025, 1, 10, 23, 59, 0, 0, time.Local)
	if Today(now) != a {
		t.Errorf("Today = %s, want %s", Today(now), a)
	}
	if got := a.At(MustClock("09:15")); !got.Equal(time.Date(2025, 1, 10, 9, 15, 0, 0, time.Local)) {
		t.Errorf("At = %s", got)
	}
}

func TestParseDate(t *testing.T) {
	d, err := ParseDate("2025-01-10")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if d.String() != "2025-01-10" {
		t.Errorf("got %s", d)
	}
	if _, err := ParseDate("2025-13-01"); !errors.Is(err, ErrInvalidDate) {
		t.Errorf("expected ErrInvalidDate, got %v", err)
	}
}

func TestRangeJSON(t *testing.T) {
	var rs []Range
	if err := json.Unmarshal([]byte(`[{"start":"09:00","end":"10:30"}]`), &rs); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if len(rs) != 1 || rs[0].Start != MustClock("09:00") || rs[0].End != MustClock("10:30") {
		t.Fatalf("unexpected ranges: %+v", rs)
	}
	out, err := json.Marshal(rs)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	if string(out) != `[{"start":"09:00","end":"10:30"}]` {
		t.Errorf("marshal = %s", out)
	}
}

func TestRangeJSON_RequiresBothEnds(t *testing.T) {
	for _, body := range []string{
		`[{"end":"10:00"}]`,
		`[{"start":"09:00"}]`,
		`[{"start":null,"end":"10:00"}]`,
		`[{}]`,
	} {
		var rs []Range
		err := json.Unmarshal([]byte(body), &rs)
		if !errors.Is(err, ErrInvalidClock) {
			t.Errorf("%s: expected ErrInvalidClock, got %v (ranges %+v)", body, err, rs)
		}
	}

	var rs []Range
	if err := json.Unmarshal([]byte(`[{"start":"09:00","end":"10:00","extra":1}]`), &rs); err == nil {
		t.Error("expected unknown range field to be rejected")
	}
}

package timerange

import (
	"testing"
	"time"
)

func mustLoc(t *testing.T, name string) *time.Location {
	t.Helper()
	loc, err := time.LoadLocation(name)
	if err != nil {
		t.Fatalf("load location %s: %v", name, err)
	}
	return loc
}

func TestParse(t *testing.T) {
	tests := []struct {
		spec string
		want Range
		ok   bool
	}{
		{"today", Range{Kind: KindToday}, true},
		{"yesterday", Range{Kind: KindYesterday}, true},
		{"this_month", Range{Kind: KindThisMonth}, true},
		{"last_month", Range{Kind: KindLastMonth}, true},
		{"last_7_days", Range{Kind: KindLastN, Count: 7, Unit: UnitDay}, true},
		{"last_1_day", Range{Kind: KindLastN, Count: 1, Unit: UnitDay}, true},
		{"last_2_weeks", Range{Kind: KindLastN, Count: 2, Unit: UnitWeek}, true},
		{"last_3_months", Range{Kind: KindLastN, Count: 3, Unit: UnitMonth}, true},
		{"last_1_year", Range{Kind: KindLastN, Count: 1, Unit: UnitYear}, true},
		{"specific_month_2024_02", Range{Kind: KindSpecificMonth, Year: 2024, Month: time.February}, true},
		{"specific_date_2024_02_29", Range{Kind: KindSpecificDate, Year: 2024, Month: time.February, Day: 29}, true},
		{"last_0_days", Range{}, false},
		{"last_x_days", Range{}, false},
		{"last_7_fortnights", Range{}, false},
		{"specific_month_2024_13", Range{}, false},
		{"sales_yesterday", Range{}, false},
		{"", Range{}, false},
	}
	for _, tt := range tests {
		got, err := Parse(tt.spec)
		if tt.ok && err != nil {
			t.Errorf("Parse(%q): unexpected error %v", tt.spec, err)
			continue
		}
		if !tt.ok {
			if err == nil {
				t.Errorf("Parse(%q): expected error", tt.spec)
			}
			continue
		}
		if got != tt.want {
			t.Errorf("Parse(%q) = %+v, want %+v", tt.spec, got, tt.want)
		}
	}
}

func TestResolveSpecificMonthLeapYear(t *testing.T) {
	now := time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)
	p := Resolve("specific_month_2024_02", "UTC", now)

	wantStart := time.Date(2024, 2, 1, 0, 0, 0, 0, time.UTC)
	wantEnd := time.Date(2024, 2, 29, 23, 59, 59, 999999000, time.UTC)
	if !p.Start.Equal(wantStart) {
		t.Errorf("start = %v, want %v", p.Start, wantStart)
	}
	if !p.End.Equal(wantEnd) {
		t.Errorf("end = %v, want %v", p.End, wantEnd)
	}
}

func TestResolveLastMonthIsCalendarMonth(t *testing.T) {
	// last_month from mid-March must be all of February, not a rolling
	// 30-day window.
	now := time.Date(2024, 3, 15, 10, 30, 0, 0, time.UTC)
	p := Resolve("last_month", "UTC", now)

	wantStart := time.Date(2024, 2, 1, 0, 0, 0, 0, time.UTC)
	wantEnd := time.Date(2024, 2, 29, 23, 59, 59, 999999000, time.UTC)
	if !p.Start.Equal(wantStart) {
		t.Errorf("start = %v, want %v", p.Start, wantStart)
	}
	if !p.End.Equal(wantEnd) {
		t.Errorf("end = %v, want %v", p.End, wantEnd)
	}
}

func TestResolveTodayLocalMidnight(t *testing.T) {
	loc := mustLoc(t, "America/Los_Angeles")
	now := time.Date(2024, 5, 10, 15, 0, 0, 0, loc)
	p := Resolve("today", "America/Los_Angeles", now)

	wantStart := time.Date(2024, 5, 10, 0, 0, 0, 0, loc).UTC()
	if !p.Start.Equal(wantStart) {
		t.Errorf("start = %v, want %v", p.Start, wantStart)
	}
	if !p.End.Equal(now.UTC()) {
		t.Errorf("end = %v, want %v", p.End, now.UTC())
	}
}

func TestResolveYesterdayFullDay(t *testing.T) {
	loc := mustLoc(t, "Asia/Tokyo")
	now := time.Date(2024, 5, 10, 9, 0, 0, 0, loc)
	p := Resolve("yesterday", "Asia/Tokyo", now)

	wantStart := time.Date(2024, 5, 9, 0, 0, 0, 0, loc).UTC()
	wantEnd := time.Date(2024, 5, 9, 23, 59, 59, 999999000, loc).UTC()
	if !p.Start.Equal(wantStart) || !p.End.Equal(wantEnd) {
		t.Errorf("got [%v, %v], want [%v, %v]", p.Start, p.End, wantStart, wantEnd)
	}
}

func TestResolveLastNDays(t *testing.T) {
	now := time.Date(2024, 5, 10, 14, 0, 0, 0, time.UTC)
	p := Resolve("last_7_days", "UTC", now)

	wantStart := time.Date(2024, 5, 3, 0, 0, 0, 0, time.UTC)
	if !p.Start.Equal(wantStart) {
		t.Errorf("start = %v, want %v", p.Start, wantStart)
	}
	if !p.End.Equal(now) {
		t.Errorf("end = %v, want %v", p.End, now)
	}
}

func TestResolveFallbackOnMalformedSpec(t *testing.T) {
	now := time.Date(2024, 5, 10, 14, 0, 0, 0, time.UTC)
	p := Resolve("whenever", "UTC", now)

	// Degrades to last_7_days rather than erroring.
	if p.RangeType != DefaultRange {
		t.Errorf("range type = %s, want %s", p.RangeType, DefaultRange)
	}
	wantStart := time.Date(2024, 5, 3, 0, 0, 0, 0, time.UTC)
	if !p.Start.Equal(wantStart) {
		t.Errorf("start = %v, want %v", p.Start, wantStart)
	}
}

func TestResolveUnknownTimezoneFallsBackToUTC(t *testing.T) {
	now := time.Date(2024, 5, 10, 14, 0, 0, 0, time.UTC)
	p := Resolve("yesterday", "Mars/Olympus", now)

	wantStart := time.Date(2024, 5, 9, 0, 0, 0, 0, time.UTC)
	if !p.Start.Equal(wantStart) {
		t.Errorf("start = %v, want %v", p.Start, wantStart)
	}
}

func TestResolveRelativeRangesAtMidnightEndAtNow(t *testing.T) {
	// Resolved at exactly local midnight, the ranges ending at "now" must
	// not reach into the not-yet-elapsed day.
	loc := mustLoc(t, "Asia/Tokyo")
	now := time.Date(2024, 5, 10, 0, 0, 0, 0, loc)

	for _, spec := range []string{"today", "this_month", "last_7_days"} {
		p := Resolve(spec, "Asia/Tokyo", now)
		if !p.End.Equal(now.UTC()) {
			t.Errorf("Resolve(%q) end = %v, want %v", spec, p.End, now.UTC())
		}
		if p.End.After(now.UTC()) {
			t.Errorf("Resolve(%q) end is in the future", spec)
		}
	}
}

func TestResolveCustomMidnightTailExtended(t *testing.T) {
	// An end landing exactly on local midnight means "through that date";
	// the zero-width tail is extended to the end of the day.
	start := time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC)
	end := time.Date(2024, 5, 3, 0, 0, 0, 0, time.UTC)
	s, e := Custom(start, end).Resolve(time.UTC, time.Date(2024, 5, 10, 0, 0, 0, 0, time.UTC))

	if !s.Equal(start) {
		t.Errorf("start = %v, want %v", s, start)
	}
	wantEnd := time.Date(2024, 5, 3, 23, 59, 59, 999999000, time.UTC)
	if !e.Equal(wantEnd) {
		t.Errorf("end = %v, want %v", e, wantEnd)
	}
}

func TestResolveSpecificDate(t *testing.T) {
	now := time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC)
	p := Resolve("specific_date_2024_02_29", "UTC", now)

	wantStart := time.Date(2024, 2, 29, 0, 0, 0, 0, time.UTC)
	wantEnd := time.Date(2024, 2, 29, 23, 59, 59, 999999000, time.UTC)
	if !p.Start.Equal(wantStart) || !p.End.Equal(wantEnd) {
		t.Errorf("got [%v, %v], want [%v, %v]", p.Start, p.End, wantStart, wantEnd)
	}
}

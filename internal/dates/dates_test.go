package dates

import (
	"testing"
	"time"
)

var berlin = time.FixedZone("CET", 3600)

func TestParseStrict(t *testing.T) {
	now := time.Date(2025, 3, 14, 16, 45, 0, 0, berlin)

	cases := []struct {
		name string
		in   string
		want time.Time
		ok   bool
	}{
		{"today with clock", "Today, 09:30", time.Date(2025, 3, 14, 9, 30, 0, 0, berlin), true},
		{"today bare", "Today", now, true},
		{"today lower case", "today, 10:00", time.Date(2025, 3, 14, 10, 0, 0, 0, berlin), true},
		{"yesterday with clock", "Yesterday, 23:59", time.Date(2025, 3, 13, 23, 59, 0, 0, berlin), true},
		{"yesterday bare", "Yesterday", now.AddDate(0, 0, -1), true},
		{"slash date", "05/02/2024", time.Date(2024, 2, 5, 0, 0, 0, 0, berlin), true},
		{"dot with clock uses current year", "01.03. 08:15", time.Date(2025, 3, 1, 8, 15, 0, 0, berlin), true},
		{"dot full date", "31.12.2024", time.Date(2024, 12, 31, 0, 0, 0, 0, berlin), true},
		{"dot stamp", "13.03.2025 21:05", time.Date(2025, 3, 13, 21, 5, 0, 0, berlin), true},
		{"invalid day", "31.02.2024", time.Time{}, false},
		{"invalid month", "01/13/2024", time.Time{}, false},
		{"garbage", "next tuesday", time.Time{}, false},
		{"empty", "", time.Time{}, false},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got, ok := ParseStrict(tc.in, now)
			if ok != tc.ok {
				t.Fatalf("ParseStrict(%q) ok = %v, want %v", tc.in, ok, tc.ok)
			}
			if ok && !got.Equal(tc.want) {
				t.Errorf("ParseStrict(%q) = %v, want %v", tc.in, got, tc.want)
			}
		})
	}
}

func TestParseFallsBackToNow(t *testing.T) {
	now := time.Date(2025, 3, 14, 16, 45, 0, 0, berlin)
	if got := Parse("sometime", now); !got.Equal(now) {
		t.Errorf("Parse fallback = %v, want %v", got, now)
	}
}

func TestFormatRoundTrip(t *testing.T) {
	now := time.Date(2025, 3, 14, 16, 45, 0, 0, berlin)

	cases := []struct {
		at   time.Time
		want string
	}{
		{time.Date(2025, 3, 14, 8, 5, 0, 0, berlin), "Today, 08:05"},
		{time.Date(2025, 3, 13, 20, 0, 0, 0, berlin), "Yesterday, 20:00"},
		{time.Date(2025, 1, 2, 7, 30, 0, 0, berlin), "02.01. 07:30"},
		{time.Date(2024, 11, 30, 0, 0, 0, 0, berlin), "30.11.2024"},
	}
	for _, tc := range cases {
		got := Format(tc.at, now)
		if got != tc.want {
			t.Errorf("Format(%v) = %q, want %q", tc.at, got, tc.want)
		}
		back := Parse(got, now)
		if !back.Equal(tc.at) {
			t.Errorf("Parse(Format(%v)) = %v", tc.at, back)
		}
	}
}

func TestFormatStampIsAbsolute(t *testing.T) {
	at := time.Date(2025, 3, 14, 8, 5, 0, 0, berlin)
	for _, now := range []time.Time{at, at.AddDate(0, 0, 1), at.AddDate(1, 0, 0)} {
		got := FormatStamp(at, now)
		if got != "14.03.2025 08:05" {
			t.Errorf("FormatStamp at %v = %q", now, got)
		}
		if back := Parse(got, now); !back.Equal(at) {
			t.Errorf("Parse(%q) = %v", got, back)
		}
	}
}

func TestWeekWindow(t *testing.T) {
	// Sunday
	now := time.Date(2025, 3, 16, 12, 0, 0, 0, berlin)

	start, end := WeekWindow(now, 0)
	wantStart := time.Date(2025, 3, 10, 0, 0, 0, 0, berlin)
	if !start.Equal(wantStart) || !end.Equal(wantStart.AddDate(0, 0, 7)) {
		t.Fatalf("WeekWindow(0) = %v..%v", start, end)
	}

	start, _ = WeekWindow(now, -2)
	if !start.Equal(time.Date(2025, 2, 24, 0, 0, 0, 0, berlin)) {
		t.Errorf("WeekWindow(-2) start = %v", start)
	}

	if Weekday(wantStart) != 0 || Weekday(now) != 6 {
		t.Errorf("Weekday: monday=%d sunday=%d", Weekday(wantStart), Weekday(now))
	}
}

func TestMonthHelpers(t *testing.T) {
	a := time.Date(2025, 3, 1, 0, 0, 0, 0, berlin)
	b := time.Date(2025, 3, 31, 23, 0, 0, 0, berlin)
	c := time.Date(2024, 3, 31, 23, 0, 0, 0, berlin)

	if !SameMonth(a, b) || SameMonth(a, c) {
		t.Error("SameMonth mismatch")
	}
	if MonthKey(a) != "2025-03" {
		t.Errorf("MonthKey = %q", MonthKey(a))
	}
}

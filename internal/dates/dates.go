// Package dates parses and renders the display dates stored on ledger entries.
//
// Recognized shapes, in priority order:
//
//	Today[, HH:MM]
//	Yesterday[, HH:MM]
//	DD/MM/YYYY
//	DD.MM. HH:MM   (current year)
//	DD.MM.YYYY HH:MM
//	DD.MM.YYYY
//
// Anything else resolves to the current instant in Parse. ParseStrict reports
// whether the input was recognized so callers can decide for themselves.
package dates

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"
)

const (
	todayWord     = "Today"
	yesterdayWord = "Yesterday"

	// DateLayout is the layout used for dates without a time component.
	DateLayout = "02.01.2006"
	// StampLayout is the absolute form stored where a date must not drift
	// with the current day.
	StampLayout = "02.01.2006 15:04"
	// MonthKeyLayout identifies a calendar month, e.g. "2025-03".
	MonthKeyLayout = "2006-01"
)

var (
	clockRe      = regexp.MustCompile(`^(\d{1,2}):(\d{2})$`)
	slashDateRe  = regexp.MustCompile(`^(\d{1,2})/(\d{1,2})/(\d{4})$`)
	dotClockRe   = regexp.MustCompile(`^(\d{1,2})\.(\d{1,2})\.\s+(\d{1,2}):(\d{2})$`)
	dotFullDayRe = regexp.MustCompile(`^(\d{1,2})\.(\d{1,2})\.(\d{4})$`)
	dotStampRe   = regexp.MustCompile(`^(\d{1,2})\.(\d{1,2})\.(\d{4})\s+(\d{1,2}):(\d{2})$`)
)

// Parse resolves a display date relative to now. Unrecognized input yields now.
func Parse(s string, now time.Time) time.Time {
	if t, ok := ParseStrict(s, now); ok {
		return t
	}
	return now
}

// ParseStrict resolves a display date relative to now and reports whether the
// input matched one of the known shapes.
func ParseStrict(s string, now time.Time) (time.Time, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, false
	}
	loc := now.Location()

	if rest, ok := cutWord(s, todayWord); ok {
		return atClock(now, rest)
	}
	if rest, ok := cutWord(s, yesterdayWord); ok {
		return atClock(now.AddDate(0, 0, -1), rest)
	}
	if m := slashDateRe.FindStringSubmatch(s); m != nil {
		return build(atoi(m[3]), atoi(m[2]), atoi(m[1]), 0, 0, loc)
	}
	if m := dotClockRe.FindStringSubmatch(s); m != nil {
		return build(now.Year(), atoi(m[2]), atoi(m[1]), atoi(m[3]), atoi(m[4]), loc)
	}
	if m := dotStampRe.FindStringSubmatch(s); m != nil {
		return build(atoi(m[3]), atoi(m[2]), atoi(m[1]), atoi(m[4]), atoi(m[5]), loc)
	}
	if m := dotFullDayRe.FindStringSubmatch(s); m != nil {
		return build(atoi(m[3]), atoi(m[2]), atoi(m[1]), 0, 0, loc)
	}
	return time.Time{}, false
}

// cutWord strips a leading keyword (case-insensitive) and returns the rest.
func cutWord(s, word string) (string, bool) {
	if len(s) < len(word) || !strings.EqualFold(s[:len(word)], word) {
		return "", false
	}
	return strings.TrimSpace(s[len(word):]), true
}

// atClock places day at the clock time given after a comma, or at day's own
// clock time when none is given.
func atClock(day time.Time, rest string) (time.Time, bool) {
	rest = strings.TrimSpace(strings.TrimPrefix(rest, ","))
	if rest == "" {
		return day, true
	}
	m := clockRe.FindStringSubmatch(rest)
	if m == nil {
		// "Yesterday at noon" and similar still mean that day
		return day, true
	}
	h, minute := atoi(m[1]), atoi(m[2])
	if h > 23 || minute > 59 {
		return day, true
	}
	return time.Date(day.Year(), day.Month(), day.Day(), h, minute, 0, 0, day.Location()), true
}

func build(year, month, day, hour, minute int, loc *time.Location) (time.Time, bool) {
	if month < 1 || month > 12 || day < 1 || hour > 23 || minute > 59 {
		return time.Time{}, false
	}
	t := time.Date(year, time.Month(month), day, hour, minute, 0, 0, loc)
	if t.Day() != day {
		// 31.02. rolled over into March
		return time.Time{}, false
	}
	return t, true
}

func atoi(s string) int {
	n, _ := strconv.Atoi(s)
	return n
}

// Format renders t the way ledger entries display it relative to now.
func Format(t, now time.Time) string {
	t = t.In(now.Location())
	switch {
	case SameDay(t, now):
		return fmt.Sprintf("%s, %s", todayWord, t.Format("15:04"))
	case SameDay(t, now.AddDate(0, 0, -1)):
		return fmt.Sprintf("%s, %s", yesterdayWord, t.Format("15:04"))
	case t.Year() == now.Year():
		return t.Format("02.01. 15:04")
	default:
		return t.Format(DateLayout)
	}
}

// FormatDate renders the calendar date of t as DD.MM.YYYY.
func FormatDate(t time.Time) string {
	return t.Format(DateLayout)
}

// FormatStamp renders t in now's location as DD.MM.YYYY HH:MM.
func FormatStamp(t, now time.Time) string {
	return t.In(now.Location()).Format(StampLayout)
}

// SameDay reports whether a and b fall on the same calendar day.
func SameDay(a, b time.Time) bool {
	ay, am, ad := a.Date()
	by, bm, bd := b.Date()
	return ay == by && am == bm && ad == bd
}

// SameMonth reports whether a and b fall in the same calendar month.
func SameMonth(a, b time.Time) bool {
	return a.Year() == b.Year() && a.Month() == b.Month()
}

// MonthKey identifies the calendar month of t.
func MonthKey(t time.Time) string {
	return t.Format(MonthKeyLayout)
}

// StartOfDay truncates t to local midnight.
func StartOfDay(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, t.Location())
}

// WeekWindow returns the Monday 00:00 start and the following Monday 00:00 end
// of the week offset weeks away from the week containing now.
func WeekWindow(now time.Time, offset int) (start, end time.Time) {
	daysSinceMonday := (int(now.Weekday()) + 6) % 7
	start = StartOfDay(now).AddDate(0, 0, -daysSinceMonday+offset*7)
	end = start.AddDate(0, 0, 7)
	return start, end
}

// Weekday returns the Monday-first index (0..6) of t.
func Weekday(t time.Time) int {
	return (int(t.Weekday()) + 6) % 7
}

package dates

import (
	"fmt"
	"strings"
	"time"

	"dompet/internal/core"
)

// ISOLayout is the storage format for dates: UTC with millisecond precision.
const ISOLayout = "2006-01-02T15:04:05.000Z"

// DayLayout is the date-only form used in query strings and day keys.
const DayLayout = "2006-01-02"

var shortMonths = [...]string{"Jan", "Feb", "Mar", "Apr", "Mei", "Jun", "Jul", "Agu", "Sep", "Okt", "Nov", "Des"}

var shortWeekdays = [...]string{"Min", "Sen", "Sel", "Rab", "Kam", "Jum", "Sab"}

// IsSameDay reports whether a and b fall on the same calendar day, with b
// viewed in a's location.
func IsSameDay(a, b time.Time) bool {
	b = b.In(a.Location())
	ay, am, ad := a.Date()
	by, bm, bd := b.Date()
	return ay == by && am == bm && ad == bd
}

// ResolveTargetDate maps a filter mode to the single day it focuses on.
// Yesterday keeps now's time of day. Unknown modes resolve to now.
func ResolveTargetDate(mode core.DateFilterMode, selected, now time.Time) time.Time {
	switch mode {
	case core.ModeToday:
		return now
	case core.ModeYesterday:
		return now.AddDate(0, 0, -1)
	case core.ModeCustom:
		return selected
	default:
		return now
	}
}

// ParseMode parses a filter mode. The empty string means today.
func ParseMode(s string) (core.DateFilterMode, error) {
	m := core.DateFilterMode(strings.ToLower(strings.TrimSpace(s)))
	if m == "" {
		return core.ModeToday, nil
	}
	if !m.IsValid() {
		return "", fmt.Errorf("%w: %q", core.ErrInvalidMode, s)
	}
	return m, nil
}

// StartOfDay returns local midnight of t's day.
func StartOfDay(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, t.Location())
}

// NextMidnight returns the start of the day after t.
func NextMidnight(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d+1, 0, 0, 0, 0, t.Location())
}

// DayBounds returns the half-open window [start, end) of t's calendar day.
func DayBounds(t time.Time) (time.Time, time.Time) {
	return StartOfDay(t), NextMidnight(t)
}

// WeekBounds returns the half-open window of t's week, Monday 00:00 to the
// following Monday 00:00.
func WeekBounds(t time.Time) (time.Time, time.Time) {
	sinceMonday := (int(t.Weekday()) + 6) % 7
	y, m, d := t.Date()
	start := time.Date(y, m, d-sinceMonday, 0, 0, 0, 0, t.Location())
	return start, time.Date(y, m, d-sinceMonday+7, 0, 0, 0, 0, t.Location())
}

// MonthBounds returns the half-open window of the calendar month offset
// months away from t's month. Offset 0 is t's month, -1 the previous one.
func MonthBounds(t time.Time, offset int) (time.Time, time.Time) {
	y, m, _ := t.Date()
	start := time.Date(y, m+time.Month(offset), 1, 0, 0, 0, 0, t.Location())
	return start, time.Date(y, m+time.Month(offset)+1, 1, 0, 0, 0, 0, t.Location())
}

// Within reports whether t lies in [start, end).
func Within(t, start, end time.Time) bool {
	return !t.Before(start) && t.Before(end)
}

// DayKey identifies t's calendar day in loc, e.g. "2024-01-15".
func DayKey(t time.Time, loc *time.Location) string {
	if loc != nil {
		t = t.In(loc)
	}
	return t.Format(DayLayout)
}

// FormatISO renders t for storage.
func FormatISO(t time.Time) string {
	return t.UTC().Format(ISOLayout)
}

// ParseISO parses a stored date. RFC 3339 inputs with any fractional
// precision or offset are accepted; the result is truncated to milliseconds.
func ParseISO(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, fmt.Errorf("empty date")
	}
	t, err := time.Parse(time.RFC3339Nano, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("parse date %q: %w", s, err)
	}
	return t.UTC().Truncate(time.Millisecond), nil
}

// ParseDay parses a YYYY-MM-DD query value as a day in loc, at midnight.
func ParseDay(s string, loc *time.Location) (time.Time, error) {
	if loc == nil {
		loc = time.Local
	}
	t, err := time.ParseInLocation(DayLayout, strings.TrimSpace(s), loc)
	if err != nil {
		return time.Time{}, fmt.Errorf("%w: %q", core.ErrInvalidDate, s)
	}
	return t, nil
}

// Coerce reads a stored date leniently. Anything that does not parse is
// replaced with now and ok is false.
func Coerce(raw string, now time.Time) (time.Time, bool) {
	t, err := ParseISO(raw)
	if err != nil {
		for _, layout := range []string{time.RFC3339, "2006-01-02 15:04:05", DayLayout} {
			if t, err = time.Parse(layout, strings.TrimSpace(raw)); err == nil {
				break
			}
		}
	}
	if err != nil || t.IsZero() {
		return now, false
	}
	return t, true
}

// ShortDate formats t as "15 Jan".
func ShortDate(t time.Time) string {
	return fmt.Sprintf("%d %s", t.Day(), MonthShort(t))
}

// MonthShort returns the short Indonesian month name, e.g. "Agu".
func MonthShort(t time.Time) string {
	return shortMonths[t.Month()-1]
}

// WeekdayShort returns the short Indonesian weekday name, e.g. "Sen".
func WeekdayShort(t time.Time) string {
	return shortWeekdays[t.Weekday()]
}

// RelativeLabel describes t relative to now for list rows: "Today",
// "Yesterday", "N days ago" up to a week, else a short date.
func RelativeLabel(t, now time.Time) string {
	t = t.In(now.Location())
	if IsSameDay(now, t) {
		return "Today"
	}
	if IsSameDay(now.AddDate(0, 0, -1), t) {
		return "Yesterday"
	}
	diff := now.Sub(t)
	days := int((diff + 24*time.Hour - 1) / (24 * time.Hour))
	if days >= 2 && days <= 7 {
		return fmt.Sprintf("%d days ago", days)
	}
	return ShortDate(t)
}

// TargetLabel names the day a filter mode focuses on, e.g. "Sen, 15 Jan".
func TargetLabel(mode core.DateFilterMode, date time.Time) string {
	switch mode {
	case core.ModeYesterday:
		return "Yesterday"
	case core.ModeCustom:
		return WeekdayShort(date) + ", " + ShortDate(date)
	default:
		return "Today"
	}
}

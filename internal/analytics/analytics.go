// Package analytics derives summaries, filtered lists and chart series from
// a snapshot of expense records. Every function here is pure: no I/O, no
// wall-clock reads, and the result depends only on the arguments.
package analytics

import (
	"encoding/json"
	"time"

	"github.com/shopspring/decimal"

	"dompet/internal/core"
	"dompet/internal/dates"
)

// DefaultListLimit caps the filtered list when the caller gives no limit.
const DefaultListLimit = 8

// Filter is the user's current view selection.
type Filter struct {
	Category     *core.Category // nil means every category
	Mode         core.DateFilterMode
	SelectedDate time.Time // only read in custom mode
}

// DefaultFilter is today with no category.
func DefaultFilter(now time.Time) Filter {
	return Filter{Mode: core.ModeToday, SelectedDate: now}
}

// Summary holds the spend totals for the dashboard cards. Amounts are Rupiah.
type Summary struct {
	Mode             core.DateFilterMode
	TargetDate       time.Time
	TargetLabel      string
	Day              int64
	ThisWeek         int64
	ThisMonth        int64
	LastMonth        int64
	DailyAverage     int64
	DaysWithExpenses int
}

// MarshalJSON reports the day total under the mode's name, so clients read
// "today", "yesterday" or "custom".
func (s Summary) MarshalJSON() ([]byte, error) {
	mode := s.Mode
	if !mode.IsValid() {
		mode = core.ModeToday
	}
	return json.Marshal(map[string]any{
		"mode":             mode,
		"targetDate":       dates.DayKey(s.TargetDate, nil),
		"targetLabel":      s.TargetLabel,
		string(mode):       s.Day,
		"thisWeek":         s.ThisWeek,
		"thisMonth":        s.ThisMonth,
		"lastMonth":        s.LastMonth,
		"dailyAverage":     s.DailyAverage,
		"daysWithExpenses": s.DaysWithExpenses,
	})
}

// Item is the projection of a record shown in the recent list.
type Item struct {
	ID          string    `json:"id"`
	Title       string    `json:"title"`
	Amount      int64     `json:"amount"`
	AmountLabel string    `json:"amountLabel"`
	Category    string    `json:"category"`
	Date        time.Time `json:"date"`
	DateLabel   string    `json:"dateLabel"`
	Icon        string    `json:"icon"`
}

func matchesCategory(e core.Expense, c *core.Category) bool {
	return c == nil || e.Category == c.Name
}

func byCategory(records []core.Expense, c *core.Category) []core.Expense {
	if c == nil {
		return records
	}
	out := make([]core.Expense, 0, len(records))
	for _, e := range records {
		if matchesCategory(e, c) {
			out = append(out, e)
		}
	}
	return out
}

func sumWithin(records []core.Expense, start, end time.Time) int64 {
	var total int64
	for _, e := range records {
		if dates.Within(e.Date, start, end) {
			total += e.Amount.Rupiah
		}
	}
	return total
}

// averagePerDay divides total by days, rounding half up. Zero days yields 0.
func averagePerDay(total int64, days int) int64 {
	if days <= 0 {
		return 0
	}
	return decimal.NewFromInt(total).
		Div(decimal.NewFromInt(int64(days))).
		Round(0).
		IntPart()
}

// distinctDays counts calendar days in loc that hold at least one record
// inside [start, end).
func distinctDays(records []core.Expense, start, end time.Time, loc *time.Location) int {
	seen := make(map[string]struct{})
	for _, e := range records {
		if dates.Within(e.Date, start, end) {
			seen[dates.DayKey(e.Date, loc)] = struct{}{}
		}
	}
	return len(seen)
}

// Compute builds the dashboard summary. The category filter applies first;
// the week and month windows always follow now, never the selected date.
func Compute(records []core.Expense, f Filter, now time.Time) Summary {
	loc := now.Location()
	matching := byCategory(records, f.Category)

	target := dates.ResolveTargetDate(f.Mode, f.SelectedDate, now).In(loc)
	dayStart, dayEnd := dates.DayBounds(target)
	weekStart, weekEnd := dates.WeekBounds(now)
	monthStart, monthEnd := dates.MonthBounds(now, 0)
	lastStart, lastEnd := dates.MonthBounds(now, -1)

	mode := f.Mode
	if !mode.IsValid() {
		mode = core.ModeToday
	}

	thisMonth := sumWithin(matching, monthStart, monthEnd)
	days := distinctDays(matching, monthStart, monthEnd, loc)

	return Summary{
		Mode:             mode,
		TargetDate:       target,
		TargetLabel:      dates.TargetLabel(mode, target),
		Day:              sumWithin(matching, dayStart, dayEnd),
		ThisWeek:         sumWithin(matching, weekStart, weekEnd),
		ThisMonth:        thisMonth,
		LastMonth:        sumWithin(matching, lastStart, lastEnd),
		DailyAverage:     averagePerDay(thisMonth, days),
		DaysWithExpenses: days,
	}
}

// FilterExpenses returns the records on the filter's target day, in the
// order given, truncated to limit. A non-positive limit means DefaultListLimit.
func FilterExpenses(records []core.Expense, f Filter, now time.Time, limit int) []Item {
	if limit <= 0 {
		limit = DefaultListLimit
	}
	loc := now.Location()
	target := dates.ResolveTargetDate(f.Mode, f.SelectedDate, now).In(loc)

	items := make([]Item, 0, limit)
	for _, e := range records {
		if len(items) == limit {
			break
		}
		if !matchesCategory(e, f.Category) || !dates.IsSameDay(target, e.Date) {
			continue
		}
		items = append(items, Item{
			ID:          e.ID,
			Title:       e.Title,
			Amount:      e.Amount.Rupiah,
			AmountLabel: e.Amount.String(),
			Category:    e.Category,
			Date:        e.Date,
			DateLabel:   dates.RelativeLabel(e.Date, now),
			Icon:        e.Icon,
		})
	}
	return items
}

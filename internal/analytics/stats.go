package analytics

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"dompet/internal/core"
	"dompet/internal/dates"
)

type Period string

const (
	PeriodWeek  Period = "week"
	PeriodMonth Period = "month"
)

var ErrInvalidPeriod = errors.New("invalid period")

// ParsePeriod accepts "week" or "month"; empty means week.
func ParsePeriod(s string) (Period, error) {
	switch p := Period(strings.ToLower(strings.TrimSpace(s))); p {
	case "":
		return PeriodWeek, nil
	case PeriodWeek, PeriodMonth:
		return p, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrInvalidPeriod, s)
	}
}

// Bounds returns the calendar window of p containing now.
func (p Period) Bounds(now time.Time) (time.Time, time.Time) {
	if p == PeriodMonth {
		return dates.MonthBounds(now, 0)
	}
	return dates.WeekBounds(now)
}

type Stats struct {
	Period           Period    `json:"period"`
	Start            time.Time `json:"start"`
	End              time.Time `json:"end"`
	Total            int64     `json:"total"`
	Average          int64     `json:"average"`
	Count            int       `json:"count"`
	DaysWithExpenses int       `json:"daysWithExpenses"`
}

// ChartPoint is one day of the statistics chart.
type ChartPoint struct {
	Date      string `json:"date"`
	Day       int    `json:"day"`
	Weekday   string `json:"weekday"`
	Month     string `json:"month"`
	Amount    int64  `json:"amount"`
	Count     int    `json:"transactionCount"`
	IsToday   bool   `json:"isToday"`
	IsWeekend bool   `json:"isWeekend"`
}

// PeriodStats totals the current week or month. Average is the total over
// the days that have at least one record.
func PeriodStats(records []core.Expense, c *core.Category, p Period, now time.Time) Stats {
	start, end := p.Bounds(now)
	matching := byCategory(records, c)

	var count int
	for _, e := range matching {
		if dates.Within(e.Date, start, end) {
			count++
		}
	}
	total := sumWithin(matching, start, end)
	days := distinctDays(matching, start, end, now.Location())

	return Stats{
		Period:           p,
		Start:            start,
		End:              end,
		Total:            total,
		Average:          averagePerDay(total, days),
		Count:            count,
		DaysWithExpenses: days,
	}
}

// Chart returns one point per day from the start of the period through
// today, most recent first.
func Chart(records []core.Expense, c *core.Category, p Period, now time.Time) []ChartPoint {
	start, end := p.Bounds(now)
	loc := now.Location()
	matching := byCategory(records, c)

	amounts := make(map[string]int64)
	counts := make(map[string]int)
	for _, e := range matching {
		if !dates.Within(e.Date, start, end) {
			continue
		}
		key := dates.DayKey(e.Date, loc)
		amounts[key] += e.Amount.Rupiah
		counts[key]++
	}

	var points []ChartPoint
	for day := start; !day.After(now) && day.Before(end); day = dates.NextMidnight(day) {
		key := dates.DayKey(day, loc)
		wd := day.Weekday()
		points = append(points, ChartPoint{
			Date:      key,
			Day:       day.Day(),
			Weekday:   dates.WeekdayShort(day),
			Month:     dates.MonthShort(day),
			Amount:    amounts[key],
			Count:     counts[key],
			IsToday:   dates.IsSameDay(now, day),
			IsWeekend: wd == time.Saturday || wd == time.Sunday,
		})
	}

	for i, j := 0, len(points)-1; i < j; i, j = i+1, j-1 {
		points[i], points[j] = points[j], points[i]
	}
	return points
}

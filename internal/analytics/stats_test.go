package analytics

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"dompet/internal/core"
)

func TestParsePeriod(t *testing.T) {
	p, err := ParsePeriod("")
	require.NoError(t, err)
	assert.Equal(t, PeriodWeek, p)

	p, err = ParsePeriod("MONTH")
	require.NoError(t, err)
	assert.Equal(t, PeriodMonth, p)

	_, err = ParsePeriod("year")
	assert.ErrorIs(t, err, ErrInvalidPeriod)
}

func TestPeriodStats(t *testing.T) {
	now := day(2024, 1, 17, 12, 0) // Wednesday
	records := []core.Expense{
		expense("1", 30000, "Food", day(2024, 1, 17, 8, 0)),
		expense("2", 20000, "Transport", day(2024, 1, 17, 9, 0)),
		expense("3", 25000, "Food", day(2024, 1, 15, 9, 0)),
		expense("4", 99000, "Food", day(2024, 1, 14, 9, 0)), // previous week
	}

	week := PeriodStats(records, nil, PeriodWeek, now)
	assert.Equal(t, int64(75000), week.Total)
	assert.Equal(t, 3, week.Count)
	assert.Equal(t, 2, week.DaysWithExpenses)
	assert.Equal(t, int64(37500), week.Average)
	assert.Equal(t, day(2024, 1, 15, 0, 0), week.Start)

	month := PeriodStats(records, food, PeriodMonth, now)
	assert.Equal(t, int64(154000), month.Total)
	assert.Equal(t, 3, month.Count)
	assert.Equal(t, 3, month.DaysWithExpenses)
	assert.Equal(t, int64(51333), month.Average)

	empty := PeriodStats(nil, nil, PeriodWeek, now)
	assert.Zero(t, empty.Average)
}

func TestChartWeek(t *testing.T) {
	now := day(2024, 1, 17, 12, 0) // Wednesday
	records := []core.Expense{
		expense("1", 30000, "Food", day(2024, 1, 17, 8, 0)),
		expense("2", 20000, "Food", day(2024, 1, 17, 9, 0)),
		expense("3", 25000, "Food", day(2024, 1, 15, 9, 0)),
	}

	points := Chart(records, nil, PeriodWeek, now)
	require.Len(t, points, 3)

	assert.Equal(t, "2024-01-17", points[0].Date)
	assert.True(t, points[0].IsToday)
	assert.Equal(t, int64(50000), points[0].Amount)
	assert.Equal(t, 2, points[0].Count)
	assert.Equal(t, "Rab", points[0].Weekday)

	assert.Equal(t, "2024-01-16", points[1].Date)
	assert.Zero(t, points[1].Amount)

	assert.Equal(t, "2024-01-15", points[2].Date)
	assert.Equal(t, "Sen", points[2].Weekday)
	assert.Equal(t, "Jan", points[2].Month)
	assert.False(t, points[2].IsWeekend)
}

func TestChartMonthThroughToday(t *testing.T) {
	now := time.Date(2024, 3, 10, 0, 30, 0, 0, wib) // Sunday
	points := Chart(nil, nil, PeriodMonth, now)

	require.Len(t, points, 10)
	assert.Equal(t, "2024-03-10", points[0].Date)
	assert.True(t, points[0].IsWeekend)
	assert.Equal(t, "2024-03-01", points[9].Date)
}

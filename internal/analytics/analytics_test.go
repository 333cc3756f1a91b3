package analytics

import (
	"encoding/json"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"dompet/internal/core"
)

var wib = time.FixedZone("WIB", 7*3600)

var (
	food      = &core.Category{ID: "1", Name: "Food", Icon: "restaurant"}
	transport = &core.Category{ID: "2", Name: "Transport", Icon: "car"}
)

func day(y int, m time.Month, d, hh, mm int) time.Time {
	return time.Date(y, m, d, hh, mm, 0, 0, wib)
}

func expense(id string, amount int64, category string, date time.Time) core.Expense {
	return core.Expense{
		ID:       id,
		Title:    fmt.Sprintf("expense %s", id),
		Amount:   core.Money{Rupiah: amount},
		Category: category,
		Date:     date,
		Icon:     "icon-" + category,
	}
}

func scenarioRecords() []core.Expense {
	return []core.Expense{
		expense("a", 85000, "Food", day(2024, 1, 15, 10, 0)),
		expense("b", 150000, "Transport", day(2024, 1, 14, 8, 0)),
	}
}

func TestComputeTodayAllCategories(t *testing.T) {
	now := day(2024, 1, 15, 12, 0)
	s := Compute(scenarioRecords(), DefaultFilter(now), now)

	assert.Equal(t, core.ModeToday, s.Mode)
	assert.Equal(t, int64(85000), s.Day)
	assert.Equal(t, int64(85000), s.ThisWeek, "Sunday the 14th belongs to the previous week")
	assert.Equal(t, int64(235000), s.ThisMonth)
	assert.Equal(t, int64(0), s.LastMonth)
	assert.Equal(t, 2, s.DaysWithExpenses)
	assert.Equal(t, int64(117500), s.DailyAverage)

	items := FilterExpenses(scenarioRecords(), DefaultFilter(now), now, 0)
	require.Len(t, items, 1)
	assert.Equal(t, "Food", items[0].Category)
	assert.Equal(t, "Today", items[0].DateLabel)
	assert.Equal(t, "icon-Food", items[0].Icon)
}

func TestComputeWeekStartsMonday(t *testing.T) {
	now := day(2024, 1, 14, 12, 0) // Sunday
	s := Compute(scenarioRecords(), DefaultFilter(now), now)
	assert.Equal(t, int64(150000), s.ThisWeek)
	assert.Equal(t, int64(150000), s.Day)
}

func TestComputeCategoryWithNoRecordToday(t *testing.T) {
	now := day(2024, 1, 15, 12, 0)
	f := DefaultFilter(now)
	f.Category = transport

	s := Compute(scenarioRecords(), f, now)
	assert.Equal(t, int64(0), s.Day)
	assert.Equal(t, int64(150000), s.ThisMonth)
	assert.Empty(t, FilterExpenses(scenarioRecords(), f, now, 8))
}

func TestComputeCategoryChangeEffects(t *testing.T) {
	now := day(2024, 1, 15, 12, 0)
	all := Compute(scenarioRecords(), DefaultFilter(now), now)

	f := DefaultFilter(now)
	f.Category = food
	onlyFood := Compute(scenarioRecords(), f, now)

	assert.LessOrEqual(t, onlyFood.ThisMonth, all.ThisMonth)
	assert.Equal(t, int64(85000), onlyFood.ThisMonth)
	assert.Equal(t, 1, onlyFood.DaysWithExpenses)

	f.Category = &core.Category{Name: "Nobody"}
	none := Compute(scenarioRecords(), f, now)
	assert.Zero(t, none.Day)
	assert.Zero(t, none.ThisMonth)
	assert.Zero(t, none.DailyAverage)
}

func TestComputeDailyAverageDistinctDays(t *testing.T) {
	records := []core.Expense{
		expense("1", 100000, "Food", day(2024, 1, 10, 8, 0)),
		expense("2", 100000, "Food", day(2024, 1, 10, 12, 0)),
		expense("3", 100000, "Food", day(2024, 1, 10, 19, 0)),
		expense("4", 120000, "Food", day(2024, 1, 20, 9, 0)),
		expense("5", 80000, "Food", day(2024, 1, 20, 21, 0)),
	}
	now := day(2024, 1, 25, 9, 0)

	s := Compute(records, DefaultFilter(now), now)
	assert.Equal(t, int64(500000), s.ThisMonth)
	assert.Equal(t, 2, s.DaysWithExpenses)
	assert.Equal(t, int64(250000), s.DailyAverage)
}

func TestComputeDailyAverageZeroAndRounding(t *testing.T) {
	now := day(2024, 2, 10, 9, 0)

	s := Compute(scenarioRecords(), DefaultFilter(now), now)
	assert.Zero(t, s.ThisMonth)
	assert.Zero(t, s.DaysWithExpenses)
	assert.Zero(t, s.DailyAverage)
	assert.Equal(t, int64(235000), s.LastMonth)

	records := []core.Expense{
		expense("1", 10001, "Food", day(2024, 2, 1, 8, 0)),
		expense("2", 10000, "Food", day(2024, 2, 2, 8, 0)),
	}
	s = Compute(records, DefaultFilter(now), now)
	assert.Equal(t, int64(10001), s.DailyAverage, "10000.5 rounds half up")
}

func TestComputeEndOfDayBoundary(t *testing.T) {
	last := time.Date(2024, 1, 15, 23, 59, 59, int(999*time.Millisecond), wib)
	records := []core.Expense{expense("x", 5000, "Food", last)}

	now := day(2024, 1, 15, 12, 0)
	assert.Equal(t, int64(5000), Compute(records, DefaultFilter(now), now).Day)

	next := day(2024, 1, 16, 0, 0)
	assert.Zero(t, Compute(records, DefaultFilter(next), next).Day)
	y := Filter{Mode: core.ModeYesterday}
	assert.Equal(t, int64(5000), Compute(records, y, next).Day)
}

func TestComputeMonthWindowsIgnoreSelectedDate(t *testing.T) {
	records := []core.Expense{
		expense("dec", 40000, "Food", day(2023, 12, 20, 10, 0)),
		expense("jan", 60000, "Food", day(2024, 1, 5, 10, 0)),
	}
	now := day(2024, 1, 15, 12, 0)
	f := Filter{Mode: core.ModeCustom, SelectedDate: day(2023, 12, 20, 0, 0)}

	s := Compute(records, f, now)
	assert.Equal(t, int64(40000), s.Day)
	assert.Equal(t, int64(60000), s.ThisMonth)
	assert.Equal(t, int64(40000), s.LastMonth)
	assert.Equal(t, "Rab, 20 Des", s.TargetLabel)
}

func TestFilterExpensesLimitAndOrder(t *testing.T) {
	now := day(2024, 1, 15, 22, 0)
	var records []core.Expense
	for i := 0; i < 12; i++ {
		records = append(records, expense(fmt.Sprint(i), 1000, "Food", day(2024, 1, 15, 20-i, 0)))
	}
	records = append(records, expense("old", 1000, "Food", day(2024, 1, 1, 10, 0)))

	items := FilterExpenses(records, DefaultFilter(now), now, -1)
	require.Len(t, items, DefaultListLimit)
	for i, it := range items {
		assert.Equal(t, fmt.Sprint(i), it.ID)
	}

	items = FilterExpenses(records, DefaultFilter(now), now, 3)
	assert.Len(t, items, 3)

	custom := Filter{Mode: core.ModeCustom, SelectedDate: day(2024, 1, 1, 0, 0)}
	items = FilterExpenses(records, custom, now, 8)
	require.Len(t, items, 1)
	assert.Equal(t, "old", items[0].ID)
	assert.Equal(t, "1 Jan", items[0].DateLabel)
}

func TestSummaryJSONUsesModeKey(t *testing.T) {
	now := day(2024, 1, 15, 12, 0)
	s := Compute(scenarioRecords(), Filter{Mode: core.ModeYesterday}, now)

	raw, err := json.Marshal(s)
	require.NoError(t, err)

	var out map[string]any
	require.NoError(t, json.Unmarshal(raw, &out))
	assert.Equal(t, float64(150000), out["yesterday"])
	assert.NotContains(t, out, "today")
	assert.Equal(t, "2024-01-14", out["targetDate"])
}

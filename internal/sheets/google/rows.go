package google

import (
	"fmt"
	"strings"

	"dompet/internal/core"
	"dompet/internal/dates"
)

const lastColumn = "G"

var header = []any{"ID", "Date", "Title", "Amount", "Category", "Icon", "Updated"}

func rowValues(e core.Expense) []any {
	return []any{
		e.ID,
		dates.FormatISO(e.Date),
		e.Title,
		e.Amount.Rupiah,
		e.Category,
		e.Icon,
		dates.FormatISO(e.UpdatedAt),
	}
}

func headerMatches(row []any) bool {
	if len(row) < len(header) {
		return false
	}
	for i, h := range header {
		if !strings.EqualFold(toString(row[i]), fmt.Sprint(h)) {
			return false
		}
	}
	return true
}

// rowOf returns the 1-based row of id in a column A read, skipping the
// header, or -1.
func rowOf(values [][]any, id string) int {
	for i, row := range values {
		if i == 0 || len(row) == 0 {
			continue
		}
		if toString(row[0]) == id {
			return i + 1
		}
	}
	return -1
}

func toString(v any) string {
	return strings.TrimSpace(fmt.Sprint(v))
}

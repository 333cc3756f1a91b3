package http

import (
	"errors"
	"net/http"
	"time"

	"dompet/internal/analytics"
	"dompet/internal/core"
	"dompet/internal/dates"
	"dompet/internal/log"
	"dompet/internal/middleware/trace"
	"dompet/internal/store"
)

// expenseJSON is the API shape of a stored record.
type expenseJSON struct {
	ID          string    `json:"id"`
	Title       string    `json:"title"`
	Amount      int64     `json:"amount"`
	AmountLabel string    `json:"amountLabel"`
	Category    string    `json:"category"`
	Icon        string    `json:"icon"`
	Date        time.Time `json:"date"`
	CreatedAt   time.Time `json:"createdAt"`
	UpdatedAt   time.Time `json:"updatedAt"`
	DateCoerced bool      `json:"dateCoerced,omitempty"`
}

func toExpenseJSON(e core.Expense) expenseJSON {
	return expenseJSON{
		ID:          e.ID,
		Title:       e.Title,
		Amount:      e.Amount.Rupiah,
		AmountLabel: e.Amount.String(),
		Category:    e.Category,
		Icon:        e.Icon,
		Date:        e.Date,
		CreatedAt:   e.CreatedAt,
		UpdatedAt:   e.UpdatedAt,
		DateCoerced: e.DateCoerced,
	}
}

type categoryJSON struct {
	ID        string `json:"id"`
	Name      string `json:"name"`
	Icon      string `json:"icon"`
	Color     string `json:"color,omitempty"`
	IconColor string `json:"iconColor,omitempty"`
}

func toCategoriesJSON(cats []core.Category) []categoryJSON {
	out := make([]categoryJSON, len(cats))
	for i, c := range cats {
		out[i] = categoryJSON{ID: c.ID, Name: c.Name, Icon: c.Icon, Color: c.Color, IconColor: c.IconColor}
	}
	return out
}

type filterJSON struct {
	Category *string             `json:"category"`
	Mode     core.DateFilterMode `json:"mode"`
	Date     string              `json:"date"`
}

func toFilterJSON(f analytics.Filter, now time.Time) filterJSON {
	out := filterJSON{
		Mode: f.Mode,
		Date: dates.DayKey(dates.ResolveTargetDate(f.Mode, f.SelectedDate, now), now.Location()),
	}
	if f.Category != nil {
		name := f.Category.Name
		out.Category = &name
	}
	return out
}

// viewJSON is the dashboard payload shared by /api/summary and the stream.
type viewJSON struct {
	Filter  filterJSON        `json:"filter"`
	Summary analytics.Summary `json:"summary"`
	Items   []analytics.Item  `json:"items"`
}

// errorStatus maps an error to its HTTP status. Bad query parameters are
// 400, invalid input 422, unknown records 404 and store failures 502.
func errorStatus(err error) int {
	var paramErr *ParamError
	var tooLarge *http.MaxBytesError
	var storeErr *store.Error
	switch {
	case errors.As(err, &tooLarge):
		return http.StatusRequestEntityTooLarge
	case errors.As(err, &paramErr):
		return http.StatusBadRequest
	case errors.Is(err, analytics.ErrInvalidPeriod):
		return http.StatusBadRequest
	case core.IsValidationError(err):
		return http.StatusUnprocessableEntity
	case store.IsNotFound(err):
		return http.StatusNotFound
	case errors.As(err, &storeErr):
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

// writeError logs and renders err. Server-side failures hide their detail.
func writeError(w http.ResponseWriter, r *http.Request, op string, err error) {
	status := errorStatus(err)
	msg := err.Error()
	logger := log.FromContext(r.Context())
	if status >= http.StatusInternalServerError {
		log.NewStructuredLogger(logger).LogError(r.Context(), "Request failed", err, op, nil)
		msg = http.StatusText(status)
	} else {
		logger.DebugContext(r.Context(), "Request rejected", log.FieldOperation, op, log.FieldError, err)
	}

	NewJSONResponse().
		Status(status).
		Body(errorBody{Error: msg, RequestID: trace.GetRequestID(r.Context())}).
		Write(w)
}

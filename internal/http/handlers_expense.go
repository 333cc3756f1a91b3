package http

import (
	"net/http"
	"strings"

	"dompet/internal/analytics"
	"dompet/internal/log"
	"dompet/internal/store"
)

// handleExpenses lists the filtered records (GET) or records a new
// expense (POST).
func (s *Server) handleExpenses(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		s.listExpenses(w, r)
	case http.MethodPost:
		s.createExpense(w, r)
	default:
		MethodNotAllowedError("GET, POST").Write(w)
	}
}

// handleExpense serves /api/expenses/{id}.
func (s *Server) handleExpense(w http.ResponseWriter, r *http.Request) {
	id := strings.TrimPrefix(r.URL.Path, "/api/expenses/")
	if id == "" || strings.Contains(id, "/") {
		writeError(w, r, log.OpRead, store.Wrap(log.OpRead, id, store.ErrNotFound))
		return
	}

	switch r.Method {
	case http.MethodGet:
		s.getExpense(w, r, id)
	case http.MethodPut:
		s.updateExpense(w, r, id)
	case http.MethodDelete:
		s.deleteExpense(w, r, id)
	default:
		MethodNotAllowedError("GET, PUT, DELETE").Write(w)
	}
}

func (s *Server) listExpenses(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	now := s.opts.Clock.Now()

	params, err := ParseFilterParams(ctx, r.URL.Query(), s.opts.Categories, now, s.opts.ListLimit)
	if err != nil {
		writeError(w, r, log.OpList, err)
		return
	}
	records, err := s.opts.Store.GetAll(ctx)
	if err != nil {
		writeError(w, r, log.OpList, err)
		return
	}

	items := analytics.FilterExpenses(records, params.Filter, now, params.Limit)
	NewJSONResponse().Body(map[string]interface{}{
		"filter": toFilterJSON(params.Filter, now),
		"items":  items,
		"count":  len(items),
	}).Write(w)
}

func (s *Server) createExpense(w http.ResponseWriter, r *http.Request) {
	draft, err := ParseDraft(w, r, s.opts.Clock.Now())
	if err != nil {
		writeError(w, r, log.OpCreate, err)
		return
	}

	e, err := s.opts.Expenses.Create(r.Context(), draft)
	if err != nil {
		writeError(w, r, log.OpCreate, err)
		return
	}

	NewJSONResponse().
		Status(http.StatusCreated).
		Header("Location", "/api/expenses/"+e.ID).
		Body(toExpenseJSON(e)).
		Write(w)
}

func (s *Server) getExpense(w http.ResponseWriter, r *http.Request, id string) {
	getter, ok := s.opts.Store.(store.ExpenseGetter)
	if !ok {
		MethodNotAllowedError("PUT, DELETE").Write(w)
		return
	}
	e, err := getter.GetByID(r.Context(), id)
	if err != nil {
		writeError(w, r, log.OpRead, err)
		return
	}
	NewJSONResponse().Body(toExpenseJSON(e)).Write(w)
}

func (s *Server) updateExpense(w http.ResponseWriter, r *http.Request, id string) {
	draft, err := ParseDraft(w, r, s.opts.Clock.Now())
	if err != nil {
		writeError(w, r, log.OpUpdate, err)
		return
	}

	e, err := s.opts.Expenses.Update(r.Context(), id, draft)
	if err != nil {
		writeError(w, r, log.OpUpdate, err)
		return
	}
	NewJSONResponse().Body(toExpenseJSON(e)).Write(w)
}

func (s *Server) deleteExpense(w http.ResponseWriter, r *http.Request, id string) {
	if err := s.opts.Expenses.Delete(r.Context(), id); err != nil {
		writeError(w, r, log.OpDelete, err)
		return
	}
	NewJSONResponse().Status(http.StatusNoContent).Write(w)
}

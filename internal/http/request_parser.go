// Package http provides HTTP server and handler implementations.
//
// This file implements utilities for parsing and validating HTTP request data:
// dashboard filter query parameters and expense bodies sent as JSON or form
// data.

package http

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"dompet/internal/analytics"
	"dompet/internal/core"
	"dompet/internal/dates"
	"dompet/internal/store"
)

const (
	maxBodyBytes = 64 << 10
	maxListLimit = 100
)

// ParamError is a malformed query parameter. It maps to 400.
type ParamError struct {
	Param string
	Err   error
}

func (e *ParamError) Error() string {
	return fmt.Sprintf("invalid %s: %v", e.Param, e.Err)
}

func (e *ParamError) Unwrap() error { return e.Err }

// FilterParams holds the dashboard selection read from a query string.
type FilterParams struct {
	Filter analytics.Filter
	Limit  int
}

// ParseFilterParams reads category, mode, date and limit. Missing values
// mean every category, today, and defaultLimit rows. The category name is
// resolved against categories so the filter carries its canonical form.
func ParseFilterParams(ctx context.Context, query url.Values, categories store.CategoryReader, now time.Time, defaultLimit int) (FilterParams, error) {
	params := FilterParams{
		Filter: analytics.DefaultFilter(now),
		Limit:  defaultLimit,
	}

	mode, err := dates.ParseMode(query.Get("mode"))
	if err != nil {
		return params, &ParamError{Param: "mode", Err: err}
	}
	params.Filter.Mode = mode

	if v := strings.TrimSpace(query.Get("date")); v != "" {
		day, err := dates.ParseDay(v, now.Location())
		if err != nil {
			return params, &ParamError{Param: "date", Err: err}
		}
		params.Filter.SelectedDate = day
	} else if mode == core.ModeCustom {
		return params, &ParamError{Param: "date", Err: errors.New("required in custom mode")}
	}

	cat, err := ParseCategoryParam(ctx, query, categories)
	if err != nil {
		return params, err
	}
	params.Filter.Category = cat

	if v := strings.TrimSpace(query.Get("limit")); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 || n > maxListLimit {
			return params, &ParamError{Param: "limit", Err: fmt.Errorf("must be between 1 and %d", maxListLimit)}
		}
		params.Limit = n
	}

	return params, nil
}

// ParseCategoryParam resolves the category query parameter. It returns nil
// when the parameter is absent.
func ParseCategoryParam(ctx context.Context, query url.Values, categories store.CategoryReader) (*core.Category, error) {
	name := sanitizeInput(query.Get("category"))
	if name == "" {
		return nil, nil
	}
	cat, err := store.FindCategory(ctx, categories, name)
	if err != nil {
		if core.IsValidationError(err) {
			return nil, &ParamError{Param: "category", Err: err}
		}
		return nil, err
	}
	return &cat, nil
}

// ParseDraft reads an expense body. amount may be a JSON number or a
// formatted string such as "85.000". date is RFC 3339 or YYYY-MM-DD (the
// start of that day in now's location); when absent the record is dated now.
func ParseDraft(w http.ResponseWriter, r *http.Request, now time.Time) (core.ExpenseDraft, error) {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	p := NewRequestBodyParser(r)
	if err := p.Parse(); err != nil {
		return core.ExpenseDraft{}, &ParamError{Param: "body", Err: err}
	}

	// Form text drops every non-digit, a JSON number keeps its sign.
	if n, ok := p.jsonData["amount"].(float64); ok && (n <= 0 || n != math.Trunc(n)) {
		return core.ExpenseDraft{}, core.ErrInvalidAmount
	}

	draft := core.ExpenseDraft{
		Title:      p.Get("title"),
		AmountText: p.Get("amount"),
		Category:   p.Get("category"),
		Date:       now,
	}
	if v := p.Get("date"); v != "" {
		d, err := parseDraftDate(v, now.Location())
		if err != nil {
			return draft, err
		}
		draft.Date = d
	}
	return draft, nil
}

func parseDraftDate(s string, loc *time.Location) (time.Time, error) {
	if len(s) == len(dates.DayLayout) {
		return dates.ParseDay(s, loc)
	}
	t, err := time.Parse(time.RFC3339Nano, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("%w: %q", core.ErrInvalidDate, s)
	}
	return t, nil
}

// RequestBodyParser handles different content types for request body parsing.
// It supports both JSON and form-encoded data.
type RequestBodyParser struct {
	body        []byte
	contentType string
	jsonData    map[string]interface{}
	formData    url.Values
	parsed      bool
	err         error
}

// NewRequestBodyParser creates a parser for the given request.
// It reads the body once and stores it for subsequent parsing.
func NewRequestBodyParser(r *http.Request) *RequestBodyParser {
	p := &RequestBodyParser{
		contentType: r.Header.Get("Content-Type"),
	}

	p.body, p.err = io.ReadAll(r.Body)
	return p
}

// Parse attempts to parse the body as JSON or form data.
func (p *RequestBodyParser) Parse() error {
	if p.parsed {
		return p.err
	}
	p.parsed = true

	if p.err != nil {
		return p.err
	}

	body := strings.TrimSpace(string(p.body))
	if body == "" {
		p.formData = url.Values{}
		return nil
	}

	if body[0] == '{' {
		p.jsonData = make(map[string]interface{})
		if err := json.Unmarshal([]byte(body), &p.jsonData); err != nil {
			p.err = err
			return err
		}
		return nil
	}

	// Fall back to form parsing
	p.formData, p.err = url.ParseQuery(body)
	return p.err
}

// Get returns a string value from the parsed data (JSON or form).
func (p *RequestBodyParser) Get(key string) string {
	if p.jsonData != nil {
		if val, ok := p.jsonData[key]; ok {
			return sanitizeInput(stringValue(val))
		}
		return ""
	}
	if p.formData != nil {
		return sanitizeInput(p.formData.Get(key))
	}
	return ""
}

// IsJSON returns true if the parsed content was JSON.
func (p *RequestBodyParser) IsJSON() bool {
	return p.jsonData != nil
}

// stringValue converts an interface{} to string.
func stringValue(v interface{}) string {
	switch val := v.(type) {
	case string:
		return val
	case float64:
		return strconv.FormatFloat(val, 'f', -1, 64)
	case bool:
		return strconv.FormatBool(val)
	default:
		return ""
	}
}

// RequireMethod checks if the request method matches the expected method(s).
// Returns an error response builder if the method doesn't match.
func RequireMethod(r *http.Request, methods ...string) *JSONResponseBuilder {
	for _, m := range methods {
		if r.Method == m {
			return nil
		}
	}
	return MethodNotAllowedError(strings.Join(methods, ", "))
}

// sanitizeInput removes control characters except tab, newline and carriage
// return, and trims whitespace.
func sanitizeInput(s string) string {
	s = strings.TrimSpace(s)
	return strings.Map(func(r rune) rune {
		if r < 32 && r != 9 && r != 10 && r != 13 {
			return -1
		}
		return r
	}, s)
}

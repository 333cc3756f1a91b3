package http

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"dompet/internal/analytics"
	"dompet/internal/log"
	"dompet/internal/middleware/trace"
	"dompet/internal/session"
)

const streamHeartbeat = 25 * time.Second

// handleSummary returns the dashboard cards and recent list for the
// filter in the query string.
func (s *Server) handleSummary(w http.ResponseWriter, r *http.Request) {
	if resp := RequireMethod(r, http.MethodGet); resp != nil {
		resp.Write(w)
		return
	}

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

	NewJSONResponse().Body(viewJSON{
		Filter:  toFilterJSON(params.Filter, now),
		Summary: analytics.Compute(records, params.Filter, now),
		Items:   analytics.FilterExpenses(records, params.Filter, now, params.Limit),
	}).Write(w)
}

// handleStats returns the week or month totals and the per-day chart.
func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	if resp := RequireMethod(r, http.MethodGet); resp != nil {
		resp.Write(w)
		return
	}

	ctx := r.Context()
	query := r.URL.Query()
	period, err := analytics.ParsePeriod(query.Get("period"))
	if err != nil {
		writeError(w, r, log.OpList, err)
		return
	}
	cat, err := ParseCategoryParam(ctx, query, s.opts.Categories)
	if err != nil {
		writeError(w, r, log.OpList, err)
		return
	}
	records, err := s.opts.Store.GetAll(ctx)
	if err != nil {
		writeError(w, r, log.OpList, err)
		return
	}

	now := s.opts.Clock.Now()
	NewJSONResponse().Body(map[string]interface{}{
		"stats": analytics.PeriodStats(records, cat, period, now),
		"chart": analytics.Chart(records, cat, period, now),
	}).Write(w)
}

// handleStream pushes a "summary" event every time the records, the day or
// the feed state change, for as long as the client stays connected. A feed
// failure is sent as an "error" event and ends the stream.
func (s *Server) handleStream(w http.ResponseWriter, r *http.Request) {
	if resp := RequireMethod(r, http.MethodGet); resp != nil {
		resp.Write(w)
		return
	}

	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()
	stop := context.AfterFunc(s.streams, cancel)
	defer stop()

	logger := log.FromContext(ctx).WithComponent(log.ComponentStream)
	params, err := ParseFilterParams(ctx, r.URL.Query(), s.opts.Categories, s.opts.Clock.Now(), s.opts.ListLimit)
	if err != nil {
		writeError(w, r, log.OpSubscribe, err)
		return
	}

	s.openStreams.Add(1)
	defer s.openStreams.Add(-1)

	changes := make(chan struct{}, 1)
	d := session.New(s.opts.Store, s.opts.Clock, session.Options{
		ListLimit: params.Limit,
		Logger:    logger,
		OnChange: func() {
			select {
			case changes <- struct{}{}:
			default:
			}
		},
	})
	defer d.Close()

	if params.Filter.Category != nil {
		d.SetCategory(*params.Filter.Category)
	}
	if err := d.SetDateMode(params.Filter.Mode, params.Filter.SelectedDate); err != nil {
		writeError(w, r, log.OpSubscribe, &ParamError{Param: "date", Err: err})
		return
	}

	rc := http.NewResponseController(w)
	h := w.Header()
	h.Set("Content-Type", "text/event-stream")
	h.Set("Cache-Control", "no-cache")
	h.Set("Connection", "keep-alive")
	h.Set("X-Accel-Buffering", "no")
	w.WriteHeader(http.StatusOK)
	if err := rc.Flush(); err != nil {
		logger.WarnContext(ctx, "Streaming not supported", log.FieldError, err)
		return
	}

	if err := d.Start(ctx); err != nil {
		s.sendStreamError(ctx, w, rc, err)
		return
	}
	logger.DebugContext(ctx, "Stream opened", log.FieldMode, params.Filter.Mode)

	heartbeat := time.NewTicker(streamHeartbeat)
	defer heartbeat.Stop()

	for {
		select {
		case <-ctx.Done():
			logger.DebugContext(ctx, "Stream closed")
			return
		case <-heartbeat.C:
			if _, err := fmt.Fprint(w, ": ping\n\n"); err != nil {
				return
			}
			if err := rc.Flush(); err != nil {
				return
			}
		case <-changes:
			v := d.View()
			if v.Err != nil {
				s.sendStreamError(ctx, w, rc, v.Err)
				return
			}
			if !v.Loaded {
				continue
			}
			now := s.opts.Clock.Now()
			if err := writeEvent(w, rc, "summary", viewJSON{
				Filter:  toFilterJSON(v.Filter, now),
				Summary: v.Summary,
				Items:   v.Items,
			}); err != nil {
				logger.DebugContext(ctx, "Stream write failed", log.FieldError, err)
				return
			}
		}
	}
}

func (s *Server) sendStreamError(ctx context.Context, w http.ResponseWriter, rc *http.ResponseController, err error) {
	log.NewStructuredLogger(log.FromContext(ctx)).LogError(ctx, "Expense feed failed", err, log.OpSubscribe, nil)
	_ = writeEvent(w, rc, "error", errorBody{
		Error:     http.StatusText(errorStatus(err)),
		RequestID: trace.GetRequestID(ctx),
	})
}

// writeEvent writes one server-sent event and flushes it.
func writeEvent(w http.ResponseWriter, rc *http.ResponseController, event string, v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return err
	}
	if _, err := fmt.Fprintf(w, "event: %s\ndata: %s\n\n", event, data); err != nil {
		return err
	}
	return rc.Flush()
}

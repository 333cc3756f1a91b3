package http

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"dompet/internal/auth"
	"dompet/internal/log"
)

// handleHealth performs basic liveness check
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	NewJSONResponse().Body(map[string]interface{}{
		"status":    "ok",
		"timestamp": s.opts.Clock.Now().Format(time.RFC3339),
		"uptime":    time.Since(s.started).Round(time.Second).String(),
	}).Write(w)
}

// handleReady checks that the category list can be read and runs the
// configured probe.
func (s *Server) handleReady(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	status := "ready"
	httpStatus := http.StatusOK
	checks := make(map[string]string)

	if _, err := s.opts.Categories.ListCategories(ctx); err != nil {
		checks["categories"] = "failed: " + err.Error()
		status = "not_ready"
		httpStatus = http.StatusServiceUnavailable
	} else {
		checks["categories"] = "ok"
	}

	if s.opts.Ready != nil {
		if err := s.opts.Ready(ctx); err != nil {
			checks["backend"] = "failed: " + err.Error()
			status = "not_ready"
			httpStatus = http.StatusServiceUnavailable
		} else {
			checks["backend"] = "ok"
		}
	}

	if httpStatus != http.StatusOK {
		log.FromContext(r.Context()).WarnContext(r.Context(), "Readiness check failed", "checks", checks)
	}
	NewJSONResponse().
		Status(httpStatus).
		Body(map[string]interface{}{"status": status, "checks": checks}).
		Write(w)
}

// handleCategories lists the selectable categories.
func (s *Server) handleCategories(w http.ResponseWriter, r *http.Request) {
	if resp := RequireMethod(r, http.MethodGet); resp != nil {
		resp.Write(w)
		return
	}
	cats, err := s.opts.Categories.ListCategories(r.Context())
	if err != nil {
		writeError(w, r, log.OpList, err)
		return
	}
	NewJSONResponse().
		Header("Cache-Control", "private, max-age=60").
		Body(map[string]interface{}{"categories": toCategoriesJSON(cats)}).
		Write(w)
}

// handleMetrics reports request, security and stream counters in the
// Prometheus text format.
func (s *Server) handleMetrics(w http.ResponseWriter, r *http.Request) {
	if resp := RequireMethod(r, http.MethodGet); resp != nil {
		resp.Write(w)
		return
	}

	traceMetrics := s.tracer.GetMetrics()
	rateLimitMetrics := s.limiter.GetMetrics()
	securityMetrics := s.detector.GetMetrics()

	w.Header().Set("Content-Type", "text/plain; version=0.0.4; charset=utf-8")
	w.WriteHeader(http.StatusOK)

	metric := func(name, kind, help string, value int64) {
		fmt.Fprintf(w, "# HELP %s %s\n# TYPE %s %s\n%s %d\n\n", name, help, name, kind, name, value)
	}
	metric("dompet_http_requests_total", "counter", "Total number of HTTP requests", traceMetrics.TotalRequests)
	metric("dompet_http_last_response_microseconds", "gauge", "Duration of the most recent request", traceMetrics.LastResponseTime)
	metric("dompet_rate_limited_total", "counter", "Writes rejected by the rate limiter", rateLimitMetrics.TotalHits)
	metric("dompet_rate_limit_clients", "gauge", "Clients tracked by the rate limiter", int64(s.limiter.ActiveClients()))
	metric("dompet_suspicious_requests_total", "counter", "Requests flagged as suspicious", securityMetrics.SuspiciousRequests)
	metric("dompet_open_streams", "gauge", "Open dashboard event streams", s.openStreams.Load())
	metric("dompet_uptime_seconds", "gauge", "Seconds since the server started", int64(time.Since(s.started).Seconds()))
}

// handleMe returns the signed-in caller, or authenticated=false when the
// API runs without identity checks.
func (s *Server) handleMe(w http.ResponseWriter, r *http.Request) {
	if resp := RequireMethod(r, http.MethodGet); resp != nil {
		resp.Write(w)
		return
	}
	id, ok := auth.FromContext(r.Context())
	if !ok {
		NewJSONResponse().Body(map[string]interface{}{"authenticated": false}).Write(w)
		return
	}
	NewJSONResponse().Body(map[string]interface{}{
		"authenticated": true,
		"subject":       id.Subject,
		"email":         id.Email,
	}).Write(w)
}

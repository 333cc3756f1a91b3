package http

import (
	"context"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"dompet/internal/analytics"
	"dompet/internal/auth"
	"dompet/internal/core"
	"dompet/internal/dates"
	"dompet/internal/log"
	"dompet/internal/middleware/ratelimit"
	"dompet/internal/middleware/security"
	"dompet/internal/middleware/trace"
	"dompet/internal/store"
)

// ExpenseWriter is the write side used by the API, normally
// services.ExpenseService.
type ExpenseWriter interface {
	Create(ctx context.Context, draft core.ExpenseDraft) (core.Expense, error)
	Update(ctx context.Context, id string, draft core.ExpenseDraft) (core.Expense, error)
	Delete(ctx context.Context, id string) error
}

// Options wires the server. Store, Categories, Expenses and Clock are
// required.
type Options struct {
	Addr       string
	Expenses   ExpenseWriter
	Store      store.ExpenseStore
	Categories store.CategoryReader
	Clock      dates.Clock
	Logger     *log.Logger

	// ListLimit is the default number of rows in filtered lists.
	ListLimit int

	// Ready is an extra readiness probe, such as a database ping.
	Ready func(ctx context.Context) error

	// Audience enables Google ID token auth on /api/ when non-empty.
	Audience  string
	Validator auth.Validator

	RateLimit ratelimit.Config

	// TrustedProxies lists CIDRs whose forwarding headers name the client.
	TrustedProxies []string
}

type Server struct {
	http.Server
	opts     Options
	logger   *log.Logger
	limiter  *ratelimit.Limiter
	detector *security.Detector
	tracer   *trace.Middleware
	started  time.Time

	openStreams atomic.Int64

	// streams is cancelled on shutdown so open event streams end.
	streams       context.Context
	cancelStreams context.CancelFunc
	shutdownOnce  sync.Once
}

// NewServer configures routes and middleware, returning a ready-to-run
// http.Server.
func NewServer(opts Options) *Server {
	if opts.Logger == nil {
		opts.Logger = log.New(log.DefaultConfig())
	}
	if opts.ListLimit <= 0 {
		opts.ListLimit = analytics.DefaultListLimit
	}
	if opts.Validator == nil {
		opts.Validator = auth.GoogleValidator()
	}
	if opts.RateLimit.RequestsPerMinute == 0 {
		opts.RateLimit = ratelimit.DefaultConfig()
	}

	logger := opts.Logger.WithComponent(log.ComponentHTTP)
	detector := security.NewDetector()
	for _, cidr := range opts.TrustedProxies {
		if err := detector.AddTrustedProxy(cidr); err != nil {
			logger.Warn("Ignoring trusted proxy", "cidr", cidr, log.FieldError, err)
		}
	}
	streams, cancel := context.WithCancel(context.Background())

	s := &Server{
		opts:          opts,
		logger:        logger,
		limiter:       ratelimit.NewLimiter(opts.RateLimit),
		detector:      detector,
		tracer:        trace.NewMiddleware(logger, detector.ExtractClientIP),
		started:       time.Now(),
		streams:       streams,
		cancelStreams: cancel,
	}

	api := http.NewServeMux()
	api.HandleFunc("/api/categories", s.handleCategories)
	api.HandleFunc("/api/expenses", s.handleExpenses)
	api.HandleFunc("/api/expenses/", s.handleExpense)
	api.HandleFunc("/api/summary", s.handleSummary)
	api.HandleFunc("/api/stats", s.handleStats)
	api.HandleFunc("/api/stream", s.handleStream)
	api.HandleFunc("/api/me", s.handleMe)

	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", s.handleHealth)
	mux.HandleFunc("/readyz", s.handleReady)
	mux.HandleFunc("/metrics", s.handleMetrics)
	mux.Handle("/api/", auth.Middleware(opts.Validator, opts.Audience, logger)(api))

	var handler http.Handler = mux
	handler = s.limiter.Middleware(detector.ExtractClientIP, s.onRateLimit)(handler)
	handler = detector.Middleware(handler)
	handler = security.NewHeadersMiddleware(security.DefaultHeadersConfig()).Middleware(handler)
	handler = s.tracer.Middleware(handler)

	s.Server = http.Server{
		Addr:              opts.Addr,
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       15 * time.Second,
		IdleTimeout:       60 * time.Second,
	}
	return s
}

func (s *Server) onRateLimit(w http.ResponseWriter, r *http.Request) {
	log.FromContext(r.Context()).WarnContext(r.Context(), "Rate limit exceeded",
		log.FieldClientIP, s.detector.ExtractClientIP(r),
		log.FieldMethod, r.Method,
		log.FieldPath, r.URL.Path)
	ErrorResponse(http.StatusTooManyRequests, "rate limit exceeded, please try again later").
		Header("Retry-After", "60").
		Write(w)
}

// Shutdown ends open event streams, stops the rate limiter and shuts the
// HTTP server down.
func (s *Server) Shutdown(ctx context.Context) error {
	var shutdownErr error
	s.shutdownOnce.Do(func() {
		s.cancelStreams()
		s.limiter.Stop()
		shutdownErr = s.Server.Shutdown(ctx)
	})
	return shutdownErr
}

// Package http exposes the record store, the dashboard and the notification
// feed as a JSON API.
package http

import (
	"context"
	"net/http"
	"sync"
	"time"

	"lifedash/internal/format"
	"lifedash/internal/log"
	"lifedash/internal/middleware/ratelimit"
	"lifedash/internal/middleware/security"
	"lifedash/internal/middleware/trace"
	"lifedash/internal/notify"
	"lifedash/internal/records"
	"lifedash/internal/services"
)

// Deps are the collaborators the handlers need. Store, Transactions,
// Dashboard, Notifier and Formatter are required.
type Deps struct {
	Store        *records.Store
	Transactions *services.TransactionService
	Dashboard    *services.DashboardService
	Notifier     *notify.Notifier
	Formatter    *format.Formatter
	Logger       *log.Logger
	Location     *time.Location

	// RequestsPerMinute limits mutating requests per client; 0 means 60.
	RequestsPerMinute int
	// Ready reports dependency health for /readyz; nil means always ready.
	Ready func(ctx context.Context) map[string]string
}

type Server struct {
	http.Server

	deps     Deps
	logger   *log.Logger
	limiter  *ratelimit.Limiter
	detector *security.Detector
	tracer   *trace.Middleware
	started  time.Time

	shutdownOnce sync.Once
}

// NewServer configures routes and middleware, returning a ready-to-run server.
func NewServer(addr string, deps Deps) *Server {
	if deps.Logger == nil {
		deps.Logger = log.Default(log.ComponentHTTP)
	}
	if deps.Location == nil {
		deps.Location = time.Local
	}

	s := &Server{
		deps:     deps,
		logger:   deps.Logger,
		limiter:  ratelimit.NewLimiter(ratelimit.Config{RequestsPerMinute: deps.RequestsPerMinute}),
		detector: security.NewDetector(),
		started:  time.Now(),
	}
	s.tracer = trace.NewMiddleware(deps.Logger, s.detector.ExtractClientIP)

	mux := http.NewServeMux()
	s.routes(mux)

	var handler http.Handler = mux
	handler = s.limiter.Middleware(s.detector.ExtractClientIP, s.handleRateLimited,
		http.MethodPost, http.MethodPut, http.MethodDelete)(handler)
	handler = security.NewHeadersMiddleware(security.DefaultHeadersConfig()).Middleware(handler)
	handler = s.detector.Middleware(deps.Logger)(handler)
	handler = s.tracer.Middleware(handler)

	s.Server = http.Server{
		Addr:              addr,
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       60 * time.Second,
	}
	return s
}

func (s *Server) routes(mux *http.ServeMux) {
	mux.HandleFunc("GET /healthz", s.handleHealth)
	mux.HandleFunc("GET /readyz", s.handleReady)
	mux.HandleFunc("GET /metrics", s.handleMetrics)

	registerCRUD(s, mux, "transactions", s.transactionResource())
	registerCRUD(s, mux, "categories", s.categoryResource())
	registerCRUD(s, mux, "tasks", s.taskResource())
	registerCRUD(s, mux, "reminders", s.reminderResource())
	registerCRUD(s, mux, "notes", s.noteResource())
	registerCRUD(s, mux, "health", s.healthResource())

	mux.HandleFunc("GET /api/settings", s.handleGetSettings)
	mux.HandleFunc("PUT /api/settings", s.handlePutSettings)

	mux.HandleFunc("GET /api/overview", s.handleOverview)
	mux.HandleFunc("GET /api/charts/weekly", s.handleWeeklyChart)
	mux.HandleFunc("GET /api/charts/monthly", s.handleMonthlyChart)
	mux.HandleFunc("GET /api/budgets", s.handleBudgets)

	mux.HandleFunc("GET /api/notifications", s.handleNotifications)
	mux.HandleFunc("POST /api/notifications/read", s.handleMarkAllRead)
	mux.HandleFunc("POST /api/notifications/{id}/read", s.handleMarkRead)
}

// Handler exposes the full middleware chain, for tests and embedding.
func (s *Server) Handler() http.Handler {
	return s.Server.Handler
}

// Shutdown stops the rate limiter and gracefully shuts down the HTTP server.
func (s *Server) Shutdown(ctx context.Context) error {
	var shutdownErr error
	s.shutdownOnce.Do(func() {
		s.limiter.Stop()
		shutdownErr = s.Server.Shutdown(ctx)
	})
	return shutdownErr
}

func (s *Server) handleRateLimited(w http.ResponseWriter, r *http.Request) {
	s.logger.WarnContext(r.Context(), "Rate limit exceeded",
		log.FieldClientIP, s.detector.ExtractClientIP(r),
		log.FieldMethod, r.Method,
		log.FieldPath, r.URL.Path)
	writeJSON(w, http.StatusTooManyRequests, errorBody{Error: "rate limit exceeded, try again later"})
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status":    "ok",
		"timestamp": time.Now().Format(time.RFC3339),
		"uptime":    time.Since(s.started).Round(time.Second).String(),
	})
}

// handleReady reports the store version, persistence failures and any
// dependency checks supplied by the command.
func (s *Server) handleReady(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	status, code := "ready", http.StatusOK
	checks := map[string]string{}
	if s.deps.Ready != nil {
		for name, result := range s.deps.Ready(ctx) {
			checks[name] = result
			if result != "ok" && result != "disabled" {
				status, code = "not_ready", http.StatusServiceUnavailable
			}
		}
	}

	writeJSON(w, code, map[string]any{
		"status":         status,
		"timestamp":      time.Now().Format(time.RFC3339),
		"version":        s.deps.Store.Version(),
		"persist_errors": s.deps.Store.PersistErrors(),
		"checks":         checks,
	})
}

func (s *Server) handleMetrics(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"requests":       s.tracer.GetMetrics(),
		"rate_limit":     s.limiter.GetMetrics(),
		"security":       s.detector.GetMetrics(),
		"store_version":  s.deps.Store.Version(),
		"persist_errors": s.deps.Store.PersistErrors(),
		"uptime_seconds": int64(time.Since(s.started).Seconds()),
	})
}

func (s *Server) now() time.Time {
	return s.deps.Dashboard.Now()
}

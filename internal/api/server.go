// Package api provides the HTTP surface of the engagement engine: weekly
// challenges, streaks and pair weekly goals as JSON endpoints.
package api

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/gorilla/handlers"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/promotebya/sunbird-client-sub002/internal/app/engagement"
	"github.com/promotebya/sunbird-client-sub002/internal/domain"
	"github.com/promotebya/sunbird-client-sub002/internal/health"
)

// Options tune the HTTP surface. Zero values are usable.
type Options struct {
	DefaultTarget  int      // weekly target when a request names none
	CORSOrigins    []string // nil allows every origin
	RateLimit      float64  // requests per second per client; 0 disables
	RateBurst      int
	EnableMetrics  bool
	Logger         *slog.Logger
	RequestTimeout time.Duration
	Version        string
	Health         *health.Checker // serves /readyz when set
}

// Server is the sunbird HTTP API server.
type Server struct {
	engine  *engagement.Engine
	opts    Options
	logger  *slog.Logger
	limiter *rateLimiter
}

// NewServer creates a new API server over engine.
func NewServer(engine *engagement.Engine, opts Options) *Server {
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	if opts.DefaultTarget <= 0 {
		opts.DefaultTarget = 50
	}
	if opts.RequestTimeout <= 0 {
		opts.RequestTimeout = 30 * time.Second
	}
	if len(opts.CORSOrigins) == 0 {
		opts.CORSOrigins = []string{"*"}
	}
	s := &Server{engine: engine, opts: opts, logger: opts.Logger}
	if opts.RateLimit > 0 {
		s.limiter = newRateLimiter(opts.RateLimit, max(opts.RateBurst, 1))
	}
	return s
}

// Handler returns the chi router with all routes mounted, wrapped in CORS.
func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()

	// Middleware
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(requestLogger(s.logger))
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(s.opts.RequestTimeout))
	if s.limiter != nil {
		r.Use(s.limiter.middleware)
	}

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})
	r.Get("/readyz", s.handleReady)
	r.Get("/version", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"version": s.opts.Version})
	})

	r.Route("/v1", func(r chi.Router) {
		r.Get("/catalog", s.handleCatalog)

		r.Route("/users/{userID}", func(r chi.Router) {
			r.Get("/week", s.handleWeekItems)
			r.Post("/challenges/{challengeID}/unlock", s.handleUnlock)
			r.Post("/challenges/{challengeID}/complete", s.handleComplete)
			r.Put("/weeks/{weekID}/challenges/{challengeID}/completed", s.handleSetCompleted)
		})

		r.Route("/streaks/{userID}", func(r chi.Router) {
			r.Get("/", s.handleStreakView)
			r.Post("/completions", s.handleStreakCompletion)
			r.Post("/catchup", s.handleActivateCatchup)
		})

		r.Route("/pairs/{pairID}", func(r chi.Router) {
			r.Get("/points", s.handleWeekPoints)
			r.Post("/points", s.handleAddPoints)
			r.Get("/weekly", s.handleGetWeekly)
			r.Post("/weekly", s.handleEnsureWeekly)
			r.Post("/weekly/claim", s.handleClaim)
			r.Get("/weekly/history", s.handleHistory)
		})
	})

	if s.opts.EnableMetrics {
		r.Handle("/metrics", promhttp.Handler())
	}

	cors := handlers.CORS(
		handlers.AllowedOrigins(s.opts.CORSOrigins),
		handlers.AllowedMethods([]string{"GET", "POST", "PUT", "OPTIONS"}),
		handlers.AllowedHeaders([]string{"Content-Type", "Authorization"}),
		handlers.ExposedHeaders([]string{"Content-Length", "X-Request-Id"}),
	)
	return cors(r)
}

// handleReady reports dependency health. Without a checker the server is
// always ready.
func (s *Server) handleReady(w http.ResponseWriter, r *http.Request) {
	if s.opts.Health == nil {
		writeJSON(w, http.StatusOK, map[string]any{"ready": true})
		return
	}
	status := http.StatusOK
	ready := s.opts.Health.IsHealthy()
	if !ready {
		status = http.StatusServiceUnavailable
	}
	writeJSON(w, status, map[string]any{"ready": ready, "checks": s.opts.Health.Statuses()})
}

// writeJSON writes a JSON response.
func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

// writeError writes a JSON error response.
func writeError(w http.ResponseWriter, status int, kind domain.Kind, msg string) {
	writeJSON(w, status, map[string]any{
		"error": map[string]any{
			"message": msg,
			"type":    string(kind),
		},
	})
}

// statusFor maps an error kind onto an HTTP status.
func statusFor(kind domain.Kind) int {
	switch kind {
	case domain.KindNotFound:
		return http.StatusNotFound
	case domain.KindPreconditionFailed:
		return http.StatusConflict
	case domain.KindInvalidArgument:
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}

// fail writes err with the status of its kind. Internal errors are logged and
// their details withheld from the client.
func (s *Server) fail(w http.ResponseWriter, r *http.Request, err error) {
	kind := domain.KindOf(err)
	status := statusFor(kind)
	msg := err.Error()
	if status == http.StatusInternalServerError {
		s.logger.ErrorContext(r.Context(), "request failed",
			"path", r.URL.Path, "request_id", middleware.GetReqID(r.Context()), "error", err)
		msg = "internal error"
	}
	writeError(w, status, kind, msg)
}

package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	mw "github.com/demandcast/optimizer/internal/api/middleware"
	"github.com/demandcast/optimizer/internal/api/response"
)

// Dependencies holds all handler and middleware dependencies for the router.
type Dependencies struct {
	RateLimit *mw.RateLimit

	HealthHandler         http.HandlerFunc
	CreateJobsHandler     http.HandlerFunc
	JobsStatusHandler     http.HandlerFunc
	PollJobHandler        http.HandlerFunc
	ResetJobsHandler      http.HandlerFunc
	ClearCompletedHandler http.HandlerFunc
	BestResultsHandler    http.HandlerFunc
	ExportResultsHandler  http.HandlerFunc
	CancelHandler         http.HandlerFunc
}

// NewRouter builds the Chi router with middleware stack and all routes.
func NewRouter(deps Dependencies) http.Handler {
	r := chi.NewRouter()

	// Global middleware
	r.Use(mw.Logger)
	r.Use(mw.Recovery)

	// Public health check
	r.Get("/api/v1/health", orNotImplemented(deps.HealthHandler))

	// Rate-limited job surface
	r.Group(func(r chi.Router) {
		if deps.RateLimit != nil {
			r.Use(deps.RateLimit.Limit)
		}

		r.Post("/api/v1/jobs", orNotImplemented(deps.CreateJobsHandler))
		r.Get("/api/v1/jobs/status", orNotImplemented(deps.JobsStatusHandler))
		r.Post("/api/v1/jobs/reset", orNotImplemented(deps.ResetJobsHandler))
		r.Post("/api/v1/jobs/clear-completed", orNotImplemented(deps.ClearCompletedHandler))
		r.Get("/api/v1/jobs/best-results-per-model", orNotImplemented(deps.BestResultsHandler))
		r.Get("/api/v1/jobs/export-results", orNotImplemented(deps.ExportResultsHandler))
		r.Get("/api/v1/jobs/{jobID}", orNotImplemented(deps.PollJobHandler))

		r.Post("/api/v1/optimizations/{optimizationID}/cancel", orNotImplemented(deps.CancelHandler))
	})

	return r
}

// orNotImplemented returns the handler if non-nil, or a 501 placeholder.
func orNotImplemented(h http.HandlerFunc) http.HandlerFunc {
	if h != nil {
		return h
	}
	return func(w http.ResponseWriter, r *http.Request) {
		response.Error(w, http.StatusNotImplemented, "NOT_IMPLEMENTED", "Endpoint not yet implemented", nil)
	}
}

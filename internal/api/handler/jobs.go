package handler

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/demandcast/optimizer/internal/api/response"
	"github.com/demandcast/optimizer/internal/cache"
	"github.com/demandcast/optimizer/internal/optimize"
	"github.com/demandcast/optimizer/internal/store"
	"github.com/demandcast/optimizer/pkg/models"
)

// JobCreator turns a creation request into persisted jobs.
type JobCreator interface {
	CreateJobs(ctx context.Context, req optimize.CreateRequest) (optimize.CreateSummary, error)
}

// Waker nudges the scheduler to run a selection pass.
type Waker interface {
	Wake()
}

type metricWeightsBody struct {
	MAPE     float64 `json:"mape"`
	RMSE     float64 `json:"rmse"`
	MAE      float64 `json:"mae"`
	Accuracy float64 `json:"accuracy"`
}

// NewCreateJobsHandler returns an http.HandlerFunc for POST /api/v1/jobs.
func NewCreateJobsHandler(factory JobCreator, waker Waker) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			SKUs              []string           `json:"skus"`
			Models            []string           `json:"models"`
			Method            string             `json:"method"`
			DatasetIdentifier string             `json:"datasetIdentifier"`
			Reason            string             `json:"reason"`
			BusinessContext   string             `json:"businessContext"`
			MetricWeights     *metricWeightsBody `json:"metricWeights"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			response.Error(w, http.StatusBadRequest, "INVALID_REQUEST", "Invalid JSON body", nil)
			return
		}

		create := optimize.CreateRequest{
			SKUs:              req.SKUs,
			Models:            req.Models,
			Method:            req.Method,
			DatasetIdentifier: req.DatasetIdentifier,
			Reason:            req.Reason,
			BusinessContext:   req.BusinessContext,
		}
		if req.MetricWeights != nil {
			create.MetricWeights = &models.MetricWeights{
				MAPE:     req.MetricWeights.MAPE,
				RMSE:     req.MetricWeights.RMSE,
				MAE:      req.MetricWeights.MAE,
				Accuracy: req.MetricWeights.Accuracy,
			}
		}

		summary, err := factory.CreateJobs(r.Context(), create)
		if err != nil {
			switch {
			case errors.Is(err, optimize.ErrInvalidRequest):
				response.Error(w, http.StatusBadRequest, "INVALID_REQUEST", err.Error(), nil)
			case errors.Is(err, optimize.ErrUnknownDataset):
				response.Error(w, http.StatusNotFound, "DATASET_NOT_FOUND", err.Error(), nil)
			case errors.Is(err, optimize.ErrUnknownSKU):
				response.Error(w, http.StatusNotFound, "SKU_NOT_FOUND", err.Error(), nil)
			case errors.Is(err, optimize.ErrUnknownModel):
				response.Error(w, http.StatusNotFound, "MODEL_NOT_FOUND", err.Error(), nil)
			default:
				response.Error(w, http.StatusInternalServerError, "INTERNAL_ERROR",
					"An unexpected error occurred", nil)
			}
			return
		}

		if waker != nil && summary.JobsCreated > 0 {
			waker.Wake()
		}
		response.Created(w, summary)
	}
}

// NewJobsStatusHandler returns an http.HandlerFunc for GET /api/v1/jobs/status.
// Jobs come back in scheduler selection order; optional query filters narrow
// the list.
func NewJobsStatusHandler(st store.Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		filter := store.JobFilter{
			Method:            r.URL.Query().Get("method"),
			DatasetIdentifier: r.URL.Query().Get("datasetIdentifier"),
			SKU:               r.URL.Query().Get("sku"),
		}
		if status := r.URL.Query().Get("status"); status != "" {
			filter.Statuses = []string{status}
		}

		jobs, err := st.ListJobs(r.Context(), filter)
		if err != nil {
			response.Error(w, http.StatusInternalServerError, "INTERNAL_ERROR",
				"An unexpected error occurred", nil)
			return
		}
		if jobs == nil {
			jobs = []*models.Job{}
		}

		response.JSON(w, map[string]any{
			"totalJobs": len(jobs),
			"jobs":      jobs,
		})
	}
}

// NewPollJobHandler returns an http.HandlerFunc for GET /api/v1/jobs/{jobID}.
// The Redis status mirror answers cheap polls; the store remains the source
// of truth for the full record.
func NewPollJobHandler(st store.Store, ca cache.Cache) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		jobID, err := uuid.Parse(chi.URLParam(r, "jobID"))
		if err != nil {
			response.Error(w, http.StatusBadRequest, "INVALID_REQUEST", "jobID must be a valid UUID", nil)
			return
		}

		if status, ok, _ := ca.GetJobStatus(r.Context(), jobID); ok && !isTerminalStatus(status) {
			response.JSON(w, map[string]any{"jobId": jobID, "status": status})
			return
		}

		job, err := st.GetJob(r.Context(), jobID)
		if errors.Is(err, store.ErrNotFound) {
			response.Error(w, http.StatusNotFound, "JOB_NOT_FOUND", "No job with that id", nil)
			return
		}
		if err != nil {
			response.Error(w, http.StatusInternalServerError, "INTERNAL_ERROR",
				"An unexpected error occurred", nil)
			return
		}
		response.JSON(w, job)
	}
}

func isTerminalStatus(status string) bool {
	for _, s := range models.TerminalStatuses {
		if s == status {
			return true
		}
	}
	return false
}

// NewResetJobsHandler returns an http.HandlerFunc for POST /api/v1/jobs/reset.
func NewResetJobsHandler(st store.Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		count, err := st.DeleteAllJobs(r.Context())
		if err != nil {
			response.Error(w, http.StatusInternalServerError, "INTERNAL_ERROR",
				"An unexpected error occurred", nil)
			return
		}
		response.JSON(w, map[string]int{"deletedCount": count})
	}
}

// NewClearCompletedHandler returns an http.HandlerFunc for
// POST /api/v1/jobs/clear-completed.
func NewClearCompletedHandler(st store.Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		count, err := st.DeleteCompletedJobs(r.Context())
		if err != nil {
			response.Error(w, http.StatusInternalServerError, "INTERNAL_ERROR",
				"An unexpected error occurred", nil)
			return
		}
		response.JSON(w, map[string]int{"deletedCount": count})
	}
}

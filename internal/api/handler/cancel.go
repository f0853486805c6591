package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/demandcast/optimizer/internal/api/response"
	"github.com/demandcast/optimizer/internal/store"
)

// NewCancelOptimizationHandler returns an http.HandlerFunc for
// POST /api/v1/optimizations/{optimizationID}/cancel. Only pending rows are
// cancelled; a running job is not preemptible and finishes on its own.
func NewCancelOptimizationHandler(st store.Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		optimizationID, err := uuid.Parse(chi.URLParam(r, "optimizationID"))
		if err != nil {
			response.Error(w, http.StatusBadRequest, "INVALID_REQUEST",
				"optimizationID must be a valid UUID", nil)
			return
		}

		cancelled, err := st.CancelPendingByOptimizationID(r.Context(), optimizationID)
		if err != nil {
			response.Error(w, http.StatusInternalServerError, "INTERNAL_ERROR",
				"An unexpected error occurred", nil)
			return
		}

		response.JSON(w, map[string]int{"cancelledJobs": cancelled})
	}
}

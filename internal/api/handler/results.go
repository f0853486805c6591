package handler

import (
	"net/http"
	"strconv"

	"github.com/demandcast/optimizer/internal/api/response"
	"github.com/demandcast/optimizer/internal/forecast"
	"github.com/demandcast/optimizer/internal/optimize"
	"github.com/demandcast/optimizer/internal/store"
	"github.com/demandcast/optimizer/pkg/models"
)

// NewBestResultsHandler returns an http.HandlerFunc for
// GET /api/v1/jobs/best-results-per-model. The response is recomputed from
// the job rows on every call.
func NewBestResultsHandler(st store.Store, registry *forecast.Registry) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		agg, ok := aggregateFromRequest(w, r, st, registry)
		if !ok {
			return
		}
		response.JSON(w, agg)
	}
}

// NewExportResultsHandler returns an http.HandlerFunc for
// GET /api/v1/jobs/export-results. Every scored attempt becomes one CSV row.
func NewExportResultsHandler(st store.Store, registry *forecast.Registry) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		agg, ok := aggregateFromRequest(w, r, st, registry)
		if !ok {
			return
		}

		w.Header().Set("Content-Type", "text/csv")
		w.Header().Set("Content-Disposition", `attachment; filename="optimization-results.csv"`)
		if err := optimize.ExportCSV(w, agg); err != nil {
			// Headers are gone by now; the truncated body is the best signal left.
			return
		}
	}
}

// aggregateFromRequest parses the shared filter and weight query parameters,
// loads the matching jobs, and aggregates them. On failure it writes the
// error response and returns ok=false.
func aggregateFromRequest(w http.ResponseWriter, r *http.Request, st store.Store, registry *forecast.Registry) (optimize.Aggregation, bool) {
	q := r.URL.Query()

	method := q.Get("method")
	if method != "" && method != models.MethodGrid && method != models.MethodAI {
		response.Error(w, http.StatusBadRequest, "INVALID_REQUEST",
			"method must be \"grid\" or \"ai\"", nil)
		return optimize.Aggregation{}, false
	}

	weights, err := weightsFromQuery(q.Get("mapeWeight"), q.Get("rmseWeight"),
		q.Get("maeWeight"), q.Get("accuracyWeight"))
	if err != nil {
		response.Error(w, http.StatusBadRequest, "INVALID_REQUEST", err.Error(), nil)
		return optimize.Aggregation{}, false
	}

	jobs, err := st.ListJobs(r.Context(), store.JobFilter{
		Method:            method,
		DatasetIdentifier: q.Get("datasetIdentifier"),
		SKU:               q.Get("sku"),
	})
	if err != nil {
		response.Error(w, http.StatusInternalServerError, "INTERNAL_ERROR",
			"An unexpected error occurred", nil)
		return optimize.Aggregation{}, false
	}

	var methods []string
	if method != "" {
		methods = []string{method}
	}
	return optimize.Aggregate(jobs, registry, methods, weights), true
}

// weightsFromQuery builds metric weights from the per-metric query params.
// All absent means server defaults; a partial set leaves the rest at zero.
func weightsFromQuery(mape, rmse, mae, accuracy string) (models.MetricWeights, error) {
	var w models.MetricWeights
	for _, p := range []struct {
		name  string
		raw   string
		field *float64
	}{
		{"mapeWeight", mape, &w.MAPE},
		{"rmseWeight", rmse, &w.RMSE},
		{"maeWeight", mae, &w.MAE},
		{"accuracyWeight", accuracy, &w.Accuracy},
	} {
		if p.raw == "" {
			continue
		}
		v, err := strconv.ParseFloat(p.raw, 64)
		if err != nil || v < 0 {
			return models.MetricWeights{}, &weightError{name: p.name}
		}
		*p.field = v
	}
	return w, nil
}

type weightError struct {
	name string
}

func (e *weightError) Error() string {
	return e.name + " must be a non-negative number"
}

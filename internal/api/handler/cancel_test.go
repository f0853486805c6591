package handler

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/demandcast/optimizer/internal/store"
	"github.com/demandcast/optimizer/pkg/models"
)

func cancelRouter(st store.Store) http.Handler {
	r := chi.NewRouter()
	r.Post("/api/v1/optimizations/{optimizationID}/cancel", NewCancelOptimizationHandler(st))
	return r
}

func TestCancelOptimizationHandler(t *testing.T) {
	st := store.NewMemStore()
	ctx := context.Background()

	pending := seedJob(t, st, "SKU-1", "holt", models.MethodGrid, models.JobStatusPending)
	other := seedJob(t, st, "SKU-2", "holt", models.MethodGrid, models.JobStatusPending)

	rec := httptest.NewRecorder()
	cancelRouter(st).ServeHTTP(rec, httptest.NewRequest(http.MethodPost,
		"/api/v1/optimizations/"+pending.OptimizationID.String()+"/cancel", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	assert.EqualValues(t, 1, decodeData(t, rec)["cancelledJobs"])

	cancelled, err := st.GetJob(ctx, pending.ID)
	require.NoError(t, err)
	assert.Equal(t, models.JobStatusCancelled, cancelled.Status)

	untouched, err := st.GetJob(ctx, other.ID)
	require.NoError(t, err)
	assert.Equal(t, models.JobStatusPending, untouched.Status, "other optimizations stay queued")
}

func TestCancelOptimizationHandlerRunningNotTouched(t *testing.T) {
	st := store.NewMemStore()
	ctx := context.Background()
	running := seedJob(t, st, "SKU-1", "holt", models.MethodGrid, models.JobStatusRunning)

	rec := httptest.NewRecorder()
	cancelRouter(st).ServeHTTP(rec, httptest.NewRequest(http.MethodPost,
		"/api/v1/optimizations/"+running.OptimizationID.String()+"/cancel", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	assert.EqualValues(t, 0, decodeData(t, rec)["cancelledJobs"])

	stored, err := st.GetJob(ctx, running.ID)
	require.NoError(t, err)
	assert.Equal(t, models.JobStatusRunning, stored.Status)
}

func TestCancelOptimizationHandlerUnknownIDIsZero(t *testing.T) {
	rec := httptest.NewRecorder()
	cancelRouter(store.NewMemStore()).ServeHTTP(rec, httptest.NewRequest(http.MethodPost,
		"/api/v1/optimizations/"+uuid.NewString()+"/cancel", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	assert.EqualValues(t, 0, decodeData(t, rec)["cancelledJobs"])
}

func TestCancelOptimizationHandlerInvalidID(t *testing.T) {
	rec := httptest.NewRecorder()
	cancelRouter(store.NewMemStore()).ServeHTTP(rec, httptest.NewRequest(http.MethodPost,
		"/api/v1/optimizations/nope/cancel", nil))

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "INVALID_REQUEST", decodeErrCode(t, rec))
}

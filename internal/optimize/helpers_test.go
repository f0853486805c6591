package optimize

import (
	"context"
	"math"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/demandcast/optimizer/internal/store"
	"github.com/demandcast/optimizer/pkg/models"
)

const testDatasetIdentifier = "acme-demand-2024"

// newSeededStore returns a MemStore with one dataset and 24 months of history
// for each given SKU.
func newSeededStore(t *testing.T, skus ...string) (*store.MemStore, *models.Dataset) {
	t.Helper()
	ctx := context.Background()

	st := store.NewMemStore()
	ds := &models.Dataset{
		ID:         uuid.New(),
		Identifier: testDatasetIdentifier,
		Name:       "Acme demand 2024",
		CreatedAt:  time.Now().UTC(),
	}
	require.NoError(t, st.CreateDataset(ctx, ds))

	for _, sku := range skus {
		points := make([]models.SeriesPoint, 0, 24)
		for i := 0; i < 24; i++ {
			points = append(points, models.SeriesPoint{
				Bucket:   i,
				Quantity: 100 + float64(i) + 20*math.Sin(2*math.Pi*float64(i)/12),
			})
		}
		require.NoError(t, st.InsertSeriesPoints(ctx, ds.ID, sku, points))
	}
	return st, ds
}

// newPendingJob persists a pending job bound to the given dataset SKU.
func newPendingJob(t *testing.T, st store.Store, ds *models.Dataset, sku, modelID, method string) *models.Job {
	t.Helper()
	now := time.Now().UTC()
	job := &models.Job{
		ID:                uuid.New(),
		OptimizationID:    uuid.New(),
		BatchID:           uuid.New(),
		OptimizationHash:  uuid.NewString(),
		SKU:               sku,
		ModelID:           modelID,
		Method:            method,
		DatasetID:         ds.ID,
		DatasetIdentifier: ds.Identifier,
		Priority:          PriorityInitialImport,
		Reason:            "initial_import",
		Status:            models.JobStatusPending,
		Payload: models.JobPayload{
			Variant:   models.PayloadVariantDatasetRef,
			DatasetID: &ds.ID,
			SKU:       sku,
		},
		CreatedAt: now,
		UpdatedAt: now,
	}
	require.NoError(t, st.CreateJob(context.Background(), job))
	return job
}

// stubModel is a forecast model with injectable behaviour.
type stubModel struct {
	id         string
	ranges     map[string][]float64
	defaults   map[string]float64
	forecastFn func(series []float64, horizon int, params map[string]float64) ([]float64, error)
}

func (m stubModel) ID() string {
	if m.id == "" {
		return "stub"
	}
	return m.id
}

func (m stubModel) DisplayName() string { return "Stub Model" }
func (m stubModel) Category() string { return "test" }
func (m stubModel) Defaults() map[string]float64 { return m.defaults }
func (m stubModel) Ranges() map[string][]float64 { return m.ranges }

func (m stubModel) Forecast(series []float64, horizon int, params map[string]float64) ([]float64, error) {
	return m.forecastFn(series, horizon, params)
}

// nopCache satisfies cache.Cache without any backing state.
type nopCache struct{}

func (nopCache) Set(context.Context, string, []byte, time.Duration) error { return nil }
func (nopCache) Get(context.Context, string) ([]byte, bool, error) { return nil, false, nil }
func (nopCache) Delete(context.Context, string) error { return nil }
func (nopCache) Ping(context.Context) error { return nil }
func (nopCache) SetJobStatus(context.Context, uuid.UUID, string, time.Duration) error {
	return nil
}
func (nopCache) GetJobStatus(context.Context, uuid.UUID) (string, bool, error) {
	return "", false, nil
}
func (nopCache) IncrWithExpiry(context.Context, string, time.Duration) (int64, error) {
	return 0, nil
}

// recordingRunner records the order jobs arrive in and marks each completed.
// When gate is non-nil every Run blocks until the gate is fed or closed.
type recordingRunner struct {
	st   store.Store
	gate chan struct{}

	mu    sync.Mutex
	order []uuid.UUID
}

func (r *recordingRunner) Run(ctx context.Context, job *models.Job) {
	r.mu.Lock()
	r.order = append(r.order, job.ID)
	r.mu.Unlock()

	if r.gate != nil {
		<-r.gate
	}
	_ = r.st.UpdateJobStatus(ctx, job.ID, models.JobStatusCompleted, store.WithProgress(100))
}

func (r *recordingRunner) seen() []uuid.UUID {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]uuid.UUID, len(r.order))
	copy(out, r.order)
	return out
}

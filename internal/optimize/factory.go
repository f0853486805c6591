package optimize

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/demandcast/optimizer/internal/fingerprint"
	"github.com/demandcast/optimizer/internal/forecast"
	"github.com/demandcast/optimizer/internal/store"
	"github.com/demandcast/optimizer/pkg/models"
)

var (
	ErrInvalidRequest = errors.New("invalid optimization request")
	ErrUnknownDataset = errors.New("unknown dataset")
	ErrUnknownSKU     = errors.New("unknown sku")
	ErrUnknownModel   = errors.New("unknown model")
)

// CreateRequest is one user-facing optimization request; it fans out into one
// job per (sku, model) pair.
type CreateRequest struct {
	SKUs              []string
	Models            []string
	Method            string
	DatasetIdentifier string
	Reason            string
	MetricWeights     *models.MetricWeights
	BusinessContext   string
}

// CreateSummary reports what the factory did with a request.
type CreateSummary struct {
	JobsCreated   int `json:"jobsCreated"`
	JobsMerged    int `json:"jobsMerged"`
	JobsSkipped   int `json:"jobsSkipped"`
	SKUsProcessed int `json:"skusProcessed"`
	ModelsPerSKU  int `json:"modelsPerSku"`
	Priority      int `json:"priority"`
}

// Factory validates creation requests and emits job rows, applying dedup and
// eligibility rules.
type Factory struct {
	store    store.Store
	registry *forecast.Registry
	now      func() time.Time
}

func NewFactory(st store.Store, registry *forecast.Registry) *Factory {
	return &Factory{store: st, registry: registry, now: time.Now}
}

// CreateJobs turns a request into persisted job rows. Validation is
// all-or-nothing: an unknown dataset, SKU, or model aborts the whole batch
// before any row is written. Once validation passes, each (sku, model) pair
// is handled independently:
//
//   - grid method + model with no tunable parameters → skipped
//   - latest job with the same fingerprint is pending, running, or completed
//     → a merged row is recorded and no new work is scheduled
//   - otherwise → a fresh pending job
func (f *Factory) CreateJobs(ctx context.Context, req CreateRequest) (CreateSummary, error) {
	if err := validateRequest(req); err != nil {
		return CreateSummary{}, err
	}

	dataset, err := f.store.GetDatasetByIdentifier(ctx, req.DatasetIdentifier)
	if errors.Is(err, store.ErrNotFound) {
		return CreateSummary{}, fmt.Errorf("%w: %q", ErrUnknownDataset, req.DatasetIdentifier)
	}
	if err != nil {
		return CreateSummary{}, fmt.Errorf("resolve dataset: %w", err)
	}

	for _, sku := range req.SKUs {
		exists, err := f.store.SKUExists(ctx, dataset.ID, sku)
		if err != nil {
			return CreateSummary{}, fmt.Errorf("check sku %q: %w", sku, err)
		}
		if !exists {
			return CreateSummary{}, fmt.Errorf("%w: %q not in dataset %q", ErrUnknownSKU, sku, req.DatasetIdentifier)
		}
	}

	modelsByID := make(map[string]forecast.Model, len(req.Models))
	for _, id := range req.Models {
		m, ok := f.registry.Get(id)
		if !ok {
			return CreateSummary{}, fmt.Errorf("%w: %q", ErrUnknownModel, id)
		}
		modelsByID[id] = m
	}

	weights := models.DefaultMetricWeights()
	if req.MetricWeights != nil && !req.MetricWeights.IsZero() {
		weights = *req.MetricWeights
	}

	summary := CreateSummary{
		SKUsProcessed: len(req.SKUs),
		ModelsPerSKU:  len(req.Models),
		Priority:      PriorityForReason(req.Reason),
	}
	batchID := uuid.New()

	for _, sku := range req.SKUs {
		optimizationID := uuid.New()

		for _, modelID := range req.Models {
			model := modelsByID[modelID]

			if req.Method == models.MethodGrid && !forecast.HasTunableParams(model) {
				summary.JobsSkipped++
				continue
			}

			hash := fingerprint.Compute(fingerprint.Input{
				SKU:               sku,
				ModelID:           modelID,
				Method:            req.Method,
				DatasetIdentifier: req.DatasetIdentifier,
				MetricWeights:     weights,
			})

			status := models.JobStatusPending
			latest, err := f.store.GetLatestJobByHash(ctx, hash)
			switch {
			case err == nil && isMergeable(latest.Status):
				// Equivalent work exists or already succeeded. Record the
				// duplicate for audit visibility, schedule nothing.
				status = models.JobStatusMerged
			case err != nil && !errors.Is(err, store.ErrNotFound):
				return summary, fmt.Errorf("dedup lookup for %s/%s: %w", sku, modelID, err)
			}

			now := f.now().UTC()
			job := &models.Job{
				ID:                uuid.New(),
				OptimizationID:    optimizationID,
				BatchID:           batchID,
				OptimizationHash:  hash,
				SKU:               sku,
				ModelID:           modelID,
				Method:            req.Method,
				DatasetID:         dataset.ID,
				DatasetIdentifier: req.DatasetIdentifier,
				Priority:          summary.Priority,
				Reason:            req.Reason,
				Status:            status,
				Payload: models.JobPayload{
					Variant:         models.PayloadVariantDatasetRef,
					DatasetID:       &dataset.ID,
					SKU:             sku,
					BusinessContext: req.BusinessContext,
				},
				CreatedAt: now,
				UpdatedAt: now,
			}

			if err := f.store.CreateJob(ctx, job); err != nil {
				return summary, fmt.Errorf("create job for %s/%s: %w", sku, modelID, err)
			}

			if status == models.JobStatusMerged {
				summary.JobsMerged++
			} else {
				summary.JobsCreated++
			}
		}
	}

	return summary, nil
}

// isMergeable reports whether an existing job with the same fingerprint makes
// a new request a duplicate. Failed and cancelled jobs do not: a fresh request
// is the only way to re-attempt them.
func isMergeable(status string) bool {
	switch status {
	case models.JobStatusPending, models.JobStatusRunning, models.JobStatusCompleted:
		return true
	}
	return false
}

func validateRequest(req CreateRequest) error {
	if len(req.SKUs) == 0 {
		return fmt.Errorf("%w: skus must not be empty", ErrInvalidRequest)
	}
	if len(req.Models) == 0 {
		return fmt.Errorf("%w: models must not be empty", ErrInvalidRequest)
	}
	if req.Method != models.MethodGrid && req.Method != models.MethodAI {
		return fmt.Errorf("%w: method must be %q or %q", ErrInvalidRequest, models.MethodGrid, models.MethodAI)
	}
	if req.DatasetIdentifier == "" {
		return fmt.Errorf("%w: datasetIdentifier is required", ErrInvalidRequest)
	}
	if req.MetricWeights != nil {
		w := req.MetricWeights
		if w.MAPE < 0 || w.RMSE < 0 || w.MAE < 0 || w.Accuracy < 0 {
			return fmt.Errorf("%w: metric weights must be non-negative", ErrInvalidRequest)
		}
	}
	return nil
}

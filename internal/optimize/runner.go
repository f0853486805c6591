package optimize

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"time"

	"github.com/demandcast/optimizer/internal/ai"
	"github.com/demandcast/optimizer/internal/cache"
	"github.com/demandcast/optimizer/internal/forecast"
	"github.com/demandcast/optimizer/internal/store"
	"github.com/demandcast/optimizer/pkg/models"
)

const statusCacheTTL = 30 * time.Minute

// aiSeriesWindow bounds how much history is sent to the AI provider.
const aiSeriesWindow = 60

// Runner executes one claimed job to a terminal state. The scheduler marks the
// job running before launch; the runner's contract is that whatever happens —
// provider error, model error, panic — the job row ends up completed or failed.
type Runner struct {
	store     store.Store
	cache     cache.Cache
	registry  *forecast.Registry
	provider  ai.Provider
	aiTimeout time.Duration
}

func NewRunner(st store.Store, ca cache.Cache, registry *forecast.Registry, provider ai.Provider, aiTimeout time.Duration) *Runner {
	return &Runner{store: st, cache: ca, registry: registry, provider: provider, aiTimeout: aiTimeout}
}

// Run executes the job and writes its terminal state. Terminal writes use a
// context detached from cancellation so a shutdown mid-job cannot leave the
// row stuck in running.
func (r *Runner) Run(ctx context.Context, job *models.Job) {
	writeCtx := context.WithoutCancel(ctx)

	defer func() {
		if rec := recover(); rec != nil {
			slog.Error("panic in job runner", "error", rec, "job_id", job.ID)
			r.fail(writeCtx, job, fmt.Sprintf("panic: %v", rec))
		}
	}()

	_ = r.cache.SetJobStatus(writeCtx, job.ID, models.JobStatusRunning, statusCacheTTL)

	series, err := r.resolveSeries(ctx, job)
	if err != nil {
		r.fail(writeCtx, job, fmt.Sprintf("resolving series: %v", err))
		return
	}

	var result *models.OptimizationResult
	switch job.Method {
	case models.MethodGrid:
		result, err = r.runGrid(ctx, job, series)
	case models.MethodAI:
		result, err = r.runAI(ctx, job, series)
	default:
		err = fmt.Errorf("unknown method %q", job.Method)
	}
	if err != nil {
		r.fail(writeCtx, job, err.Error())
		return
	}

	if err := r.store.UpdateJobStatus(writeCtx, job.ID, models.JobStatusCompleted,
		store.WithResult(result), store.WithProgress(100)); err != nil {
		slog.Error("write job result", "error", err, "job_id", job.ID)
		return
	}
	_ = r.cache.SetJobStatus(writeCtx, job.ID, models.JobStatusCompleted, statusCacheTTL)

	slog.Info("job completed", "job_id", job.ID, "sku", job.SKU,
		"model", job.ModelID, "method", job.Method, "mape", result.MAPE)
}

func (r *Runner) fail(ctx context.Context, job *models.Job, msg string) {
	if err := r.store.UpdateJobStatus(ctx, job.ID, models.JobStatusFailed,
		store.WithErrorMessage(msg)); err != nil {
		slog.Error("write job failure", "error", err, "job_id", job.ID)
	}
	_ = r.cache.SetJobStatus(ctx, job.ID, models.JobStatusFailed, statusCacheTTL)

	slog.Warn("job failed", "job_id", job.ID, "sku", job.SKU,
		"model", job.ModelID, "error", msg)
}

// resolveSeries produces the job's historical series from its payload:
// embedded points for the "series" variant, a dataset-store read otherwise.
func (r *Runner) resolveSeries(ctx context.Context, job *models.Job) ([]float64, error) {
	switch job.Payload.Variant {
	case models.PayloadVariantSeries:
		series := job.Payload.Series()
		if len(series) == 0 {
			return nil, fmt.Errorf("series payload is empty")
		}
		return series, nil
	case models.PayloadVariantDatasetRef:
		datasetID := job.DatasetID
		if job.Payload.DatasetID != nil {
			datasetID = *job.Payload.DatasetID
		}
		sku := job.SKU
		if job.Payload.SKU != "" {
			sku = job.Payload.SKU
		}
		return r.store.GetSeries(ctx, datasetID, sku)
	default:
		return nil, fmt.Errorf("unknown payload variant %q", job.Payload.Variant)
	}
}

func (r *Runner) runGrid(ctx context.Context, job *models.Job, series []float64) (*models.OptimizationResult, error) {
	model, ok := r.registry.Get(job.ModelID)
	if !ok {
		return nil, fmt.Errorf("model %q is not registered", job.ModelID)
	}

	// Push progress to the store only when the whole-percent value advances,
	// so a large grid does not turn into thousands of writes.
	lastPct := 0
	progress := func(evaluated, total int) {
		pct := evaluated * 100 / total
		if pct > 99 {
			pct = 99 // 100 is reserved for the completion write
		}
		if pct > lastPct {
			lastPct = pct
			_ = r.store.UpdateJobProgress(ctx, job.ID, pct)
		}
	}

	best, err := GridSearch(series, model, progress)
	if err != nil {
		return nil, err
	}

	return &models.OptimizationResult{
		Parameters: best.Parameters,
		MAPE:       best.Metrics.MAPE,
		RMSE:       best.Metrics.RMSE,
		MAE:        best.Metrics.MAE,
		Accuracy:   best.Metrics.Accuracy,
		Reasoning:  gridReasoning(model, best),
	}, nil
}

func (r *Runner) runAI(ctx context.Context, job *models.Job, series []float64) (*models.OptimizationResult, error) {
	model, ok := r.registry.Get(job.ModelID)
	if !ok {
		return nil, fmt.Errorf("model %q is not registered", job.ModelID)
	}

	if len(series) > aiSeriesWindow {
		series = series[len(series)-aiSeriesWindow:]
	}

	aiCtx, cancel := context.WithTimeout(ctx, r.aiTimeout)
	defer cancel()

	resp, err := r.provider.Optimize(aiCtx, ai.OptimizeRequest{
		SKU:             job.SKU,
		ModelID:         job.ModelID,
		Series:          series,
		Defaults:        model.Defaults(),
		Ranges:          model.Ranges(),
		BusinessContext: job.Payload.BusinessContext,
	})
	if err != nil {
		return nil, fmt.Errorf("ai optimization: %w", err)
	}

	// The provider's parameter set and metrics are authoritative for ai jobs.
	return &models.OptimizationResult{
		Parameters: resp.Parameters,
		MAPE:       resp.MAPE,
		RMSE:       resp.RMSE,
		MAE:        resp.MAE,
		Accuracy:   resp.Accuracy,
		Reasoning:  resp.Reasoning,
		Provider:   r.provider.Name(),
		Model:      resp.Model,
	}, nil
}

func gridReasoning(model forecast.Model, best Candidate) string {
	names := make([]string, 0, len(best.Parameters))
	for name := range best.Parameters {
		names = append(names, name)
	}
	sort.Strings(names)

	parts := make([]string, 0, len(names))
	for _, name := range names {
		parts = append(parts, fmt.Sprintf("%s=%g", name, best.Parameters[name]))
	}

	return fmt.Sprintf("Grid search over %d candidate configurations for %s selected %s with holdout MAE %.4f (MAPE %.2f%%).",
		TotalCandidates(model), model.DisplayName(), strings.Join(parts, ", "), best.Metrics.MAE, best.Metrics.MAPE)
}

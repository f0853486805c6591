package optimize

import (
	"math"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/demandcast/optimizer/internal/forecast"
	"github.com/demandcast/optimizer/pkg/models"
)

func completedJob(sku, modelID, method string, batch uuid.UUID, res models.OptimizationResult) *models.Job {
	now := time.Now().UTC()
	return &models.Job{
		ID:                uuid.New(),
		OptimizationID:    uuid.New(),
		BatchID:           batch,
		OptimizationHash:  uuid.NewString(),
		SKU:               sku,
		ModelID:           modelID,
		Method:            method,
		DatasetIdentifier: testDatasetIdentifier,
		Priority:          PriorityInitialImport,
		Status:            models.JobStatusCompleted,
		Progress:          100,
		Result:            &res,
		CreatedAt:         now,
		UpdatedAt:         now,
	}
}

func findRow(t *testing.T, rows []ModelMethodBest, modelType, sku string) ModelMethodBest {
	t.Helper()
	for _, row := range rows {
		if row.ModelType == modelType && row.SKU == sku {
			return row
		}
	}
	t.Fatalf("no row for model %q sku %q", modelType, sku)
	return ModelMethodBest{}
}

func methodBest(t *testing.T, row ModelMethodBest, method string) *BestResult {
	t.Helper()
	for _, m := range row.Methods {
		if m.Method == method {
			return m.BestResult
		}
	}
	t.Fatalf("no %q entry in row for model %q sku %q", method, row.ModelType, row.SKU)
	return nil
}

func TestAggregateCompositeScoring(t *testing.T) {
	batch := uuid.New()
	better := completedJob("SKU-1", "holt", models.MethodGrid, batch, models.OptimizationResult{
		Parameters: map[string]float64{"alpha": 0.3},
		MAPE:       10, RMSE: 5, MAE: 3, Accuracy: 90,
	})
	worse := completedJob("SKU-1", "holt", models.MethodGrid, batch, models.OptimizationResult{
		Parameters: map[string]float64{"alpha": 0.5},
		MAPE:       30, RMSE: 15, MAE: 9, Accuracy: 60,
	})

	agg := Aggregate([]*models.Job{better, worse}, forecast.NewRegistry(),
		[]string{models.MethodGrid}, models.DefaultMetricWeights())

	assert.Equal(t, 2, agg.TotalJobs)
	require.Len(t, agg.Attempts, 2)

	// Group maxima are 30/15/9, so the better attempt normalizes to 2/3 on
	// every error metric and 0.9 accuracy:
	// 0.4*(2/3) + 0.3*(2/3) + 0.2*(2/3) + 0.1*0.9 = 0.69.
	var bestAttempt, worstAttempt *ScoredAttempt
	for i := range agg.Attempts {
		if agg.Attempts[i].JobID == better.ID {
			bestAttempt = &agg.Attempts[i]
		} else {
			worstAttempt = &agg.Attempts[i]
		}
	}
	require.NotNil(t, bestAttempt)
	require.NotNil(t, worstAttempt)

	assert.InDelta(t, 0.69, bestAttempt.CompositeScore, 1e-9)
	assert.InDelta(t, 0.06, worstAttempt.CompositeScore, 1e-9)
	assert.True(t, bestAttempt.IsBest)
	assert.False(t, worstAttempt.IsBest)

	row := findRow(t, agg.Rows, "holt", "SKU-1")
	best := methodBest(t, row, models.MethodGrid)
	assert.Equal(t, BestStatusCompleted, best.Status)
	require.NotNil(t, best.JobID)
	assert.Equal(t, better.ID, *best.JobID)
	require.NotNil(t, best.CompositeScore)
	assert.InDelta(t, 0.69, *best.CompositeScore, 1e-9)
}

func TestAggregateTieKeepsFirstAttempt(t *testing.T) {
	batch := uuid.New()
	res := models.OptimizationResult{
		Parameters: map[string]float64{"alpha": 0.3},
		MAPE:       10, RMSE: 5, MAE: 3, Accuracy: 90,
	}
	first := completedJob("SKU-1", "holt", models.MethodGrid, batch, res)
	second := completedJob("SKU-1", "holt", models.MethodGrid, batch, res)

	agg := Aggregate([]*models.Job{first, second}, forecast.NewRegistry(),
		[]string{models.MethodGrid}, models.DefaultMetricWeights())

	row := findRow(t, agg.Rows, "holt", "SKU-1")
	best := methodBest(t, row, models.MethodGrid)
	require.NotNil(t, best.JobID)
	assert.Equal(t, first.ID, *best.JobID)
}

func TestAggregateScoreMonotonicInAccuracy(t *testing.T) {
	// Raising accuracy while holding the error metrics fixed must never
	// lower the composite score. The companion attempt pins the group maxima
	// so each pass normalizes against the same denominators.
	companion := models.OptimizationResult{
		Parameters: map[string]float64{"alpha": 0.5},
		MAPE:       30, RMSE: 15, MAE: 9, Accuracy: 60,
	}

	prev := -1.0
	for _, accuracy := range []float64{0, 25, 50, 75, 90, 100, 120} {
		batch := uuid.New()
		subject := completedJob("SKU-1", "holt", models.MethodGrid, batch, models.OptimizationResult{
			Parameters: map[string]float64{"alpha": 0.3},
			MAPE:       10, RMSE: 5, MAE: 3, Accuracy: accuracy,
		})
		other := completedJob("SKU-1", "holt", models.MethodGrid, batch, companion)

		agg := Aggregate([]*models.Job{subject, other}, forecast.NewRegistry(),
			[]string{models.MethodGrid}, models.DefaultMetricWeights())

		var score float64
		found := false
		for _, a := range agg.Attempts {
			if a.JobID == subject.ID {
				score = a.CompositeScore
				found = true
			}
		}
		require.True(t, found)
		assert.GreaterOrEqual(t, score, prev, "accuracy %v lowered the score", accuracy)
		prev = score
	}
}

func TestAggregateNormalizationFloor(t *testing.T) {
	// All error metrics below 1: the group max floors at 1 instead of
	// inflating tiny errors to a zero score.
	job := completedJob("SKU-1", "holt", models.MethodGrid, uuid.New(), models.OptimizationResult{
		Parameters: map[string]float64{"alpha": 0.3},
		MAPE:       0.5, RMSE: 0.25, MAE: 0.1, Accuracy: 99.5,
	})

	agg := Aggregate([]*models.Job{job}, forecast.NewRegistry(),
		[]string{models.MethodGrid}, models.DefaultMetricWeights())

	require.Len(t, agg.Attempts, 1)
	a := agg.Attempts[0]
	assert.InDelta(t, 0.5, a.NormMAPE, 1e-9)
	assert.InDelta(t, 0.75, a.NormRMSE, 1e-9)
	assert.InDelta(t, 0.9, a.NormMAE, 1e-9)
	assert.InDelta(t, 0.995, a.NormAccuracy, 1e-9)
}

func TestAggregateInvalidMetricsScoreWorst(t *testing.T) {
	batch := uuid.New()
	valid := completedJob("SKU-1", "holt", models.MethodGrid, batch, models.OptimizationResult{
		Parameters: map[string]float64{"alpha": 0.3},
		MAPE:       20, RMSE: 10, MAE: 5, Accuracy: 80,
	})
	broken := completedJob("SKU-1", "holt", models.MethodGrid, batch, models.OptimizationResult{
		Parameters: map[string]float64{"alpha": 0.9},
		MAPE:       math.NaN(), RMSE: math.Inf(1), MAE: -3, Accuracy: math.NaN(),
	})

	agg := Aggregate([]*models.Job{valid, broken}, forecast.NewRegistry(),
		[]string{models.MethodGrid}, models.DefaultMetricWeights())

	for _, a := range agg.Attempts {
		if a.JobID != broken.ID {
			continue
		}
		assert.Zero(t, a.NormMAPE)
		assert.Zero(t, a.NormRMSE)
		assert.Zero(t, a.NormMAE)
		assert.Zero(t, a.NormAccuracy)
		assert.Zero(t, a.CompositeScore)
		assert.False(t, a.IsBest)
	}

	best := methodBest(t, findRow(t, agg.Rows, "holt", "SKU-1"), models.MethodGrid)
	require.NotNil(t, best.JobID)
	assert.Equal(t, valid.ID, *best.JobID)
}

func TestAggregateIneligiblePlaceholders(t *testing.T) {
	registry := forecast.NewRegistry()
	job := completedJob("SKU-1", "moving_average", models.MethodGrid, uuid.New(), models.OptimizationResult{
		Parameters: map[string]float64{"window": 3},
		MAPE:       12, RMSE: 6, MAE: 4, Accuracy: 88,
	})

	agg := Aggregate([]*models.Job{job}, registry,
		[]string{models.MethodGrid}, models.DefaultMetricWeights())

	// Four tunable models get a row; seasonal_naive has no parameters and is
	// omitted rather than shown as ineligible forever.
	require.Len(t, agg.Rows, 4)

	completed := methodBest(t, findRow(t, agg.Rows, "moving_average", "SKU-1"), models.MethodGrid)
	assert.Equal(t, BestStatusCompleted, completed.Status)

	for _, modelType := range []string{"exponential_smoothing", "holt", "holt_winters"} {
		placeholder := methodBest(t, findRow(t, agg.Rows, modelType, "SKU-1"), models.MethodGrid)
		assert.Equal(t, BestStatusIneligible, placeholder.Status)
		assert.Nil(t, placeholder.JobID)
		assert.Nil(t, placeholder.MAPE)
		assert.Nil(t, placeholder.CompositeScore)
	}
}

func TestAggregatePendingJobsContributeCoordinates(t *testing.T) {
	// A batch with only queued work still shows up as an ineligible matrix,
	// so a caller polling best-results sees the shape of what is coming.
	batch := uuid.New()
	now := time.Now().UTC()
	pending := &models.Job{
		ID:                uuid.New(),
		OptimizationID:    uuid.New(),
		BatchID:           batch,
		OptimizationHash:  uuid.NewString(),
		SKU:               "SKU-9",
		ModelID:           "holt",
		Method:            models.MethodGrid,
		DatasetIdentifier: testDatasetIdentifier,
		Status:            models.JobStatusPending,
		CreatedAt:         now,
		UpdatedAt:         now,
	}

	agg := Aggregate([]*models.Job{pending}, forecast.NewRegistry(),
		[]string{models.MethodGrid}, models.DefaultMetricWeights())

	assert.Equal(t, 1, agg.TotalJobs)
	assert.Empty(t, agg.Attempts)
	require.NotEmpty(t, agg.Rows)
	for _, row := range agg.Rows {
		assert.Equal(t, "SKU-9", row.SKU)
		for _, m := range row.Methods {
			assert.Equal(t, BestStatusIneligible, m.BestResult.Status)
		}
	}
}

func TestAggregateGroupsAreIndependentPerSKU(t *testing.T) {
	batch := uuid.New()
	a := completedJob("SKU-A", "holt", models.MethodGrid, batch, models.OptimizationResult{
		Parameters: map[string]float64{"alpha": 0.3},
		MAPE:       50, RMSE: 20, MAE: 10, Accuracy: 50,
	})
	b := completedJob("SKU-B", "holt", models.MethodGrid, batch, models.OptimizationResult{
		Parameters: map[string]float64{"alpha": 0.5},
		MAPE:       5, RMSE: 2, MAE: 1, Accuracy: 95,
	})

	agg := Aggregate([]*models.Job{a, b}, forecast.NewRegistry(),
		[]string{models.MethodGrid}, models.DefaultMetricWeights())

	// Each SKU forms its own group: both single attempts win their group,
	// regardless of how they compare across SKUs.
	for _, attempt := range agg.Attempts {
		assert.True(t, attempt.IsBest, "sku %s", attempt.SKU)
	}
}

func TestAggregateZeroWeightsFallBackToDefaults(t *testing.T) {
	job := completedJob("SKU-1", "holt", models.MethodGrid, uuid.New(), models.OptimizationResult{
		Parameters: map[string]float64{"alpha": 0.3},
		MAPE:       10, RMSE: 5, MAE: 3, Accuracy: 90,
	})

	zero := Aggregate([]*models.Job{job}, forecast.NewRegistry(),
		[]string{models.MethodGrid}, models.MetricWeights{})
	def := Aggregate([]*models.Job{job}, forecast.NewRegistry(),
		[]string{models.MethodGrid}, models.DefaultMetricWeights())

	require.Len(t, zero.Attempts, 1)
	require.Len(t, def.Attempts, 1)
	assert.Equal(t, def.Attempts[0].CompositeScore, zero.Attempts[0].CompositeScore)
}

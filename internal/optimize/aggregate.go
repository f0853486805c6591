package optimize

import (
	"math"
	"sort"

	"github.com/google/uuid"

	"github.com/demandcast/optimizer/internal/forecast"
	"github.com/demandcast/optimizer/pkg/models"
)

const (
	BestStatusCompleted  = "completed"
	BestStatusIneligible = "ineligible"
)

// ScoredAttempt is one completed attempt with its normalized metrics and
// composite score filled in relative to its group.
type ScoredAttempt struct {
	JobID             uuid.UUID          `json:"jobId"`
	SKU               string             `json:"sku"`
	ModelID           string             `json:"modelId"`
	Method            string             `json:"method"`
	BatchID           uuid.UUID          `json:"batchId"`
	DatasetIdentifier string             `json:"datasetIdentifier"`
	Parameters        map[string]float64 `json:"parameters"`
	MAPE              float64            `json:"mape"`
	RMSE              float64            `json:"rmse"`
	MAE               float64            `json:"mae"`
	Accuracy          float64            `json:"accuracy"`
	NormMAPE          float64            `json:"normMape"`
	NormRMSE          float64            `json:"normRmse"`
	NormMAE           float64            `json:"normMae"`
	NormAccuracy      float64            `json:"normAccuracy"`
	CompositeScore    float64            `json:"compositeScore"`
	Reasoning         string             `json:"reasoning,omitempty"`
	IsBest            bool               `json:"isBestResult"`
}

// BestResult is the winner of one (model, method, sku, group) cell, or an
// ineligible placeholder when the cell has no completed attempt. Metrics are
// pointers so placeholders serialize with explicit nulls.
type BestResult struct {
	Status         string             `json:"status"`
	JobID          *uuid.UUID         `json:"jobId,omitempty"`
	Parameters     map[string]float64 `json:"parameters,omitempty"`
	MAPE           *float64           `json:"mape"`
	RMSE           *float64           `json:"rmse"`
	MAE            *float64           `json:"mae"`
	Accuracy       *float64           `json:"accuracy"`
	CompositeScore *float64           `json:"compositeScore"`
	Reasoning      string             `json:"reasoning,omitempty"`
}

// MethodResult pairs a method with its best result.
type MethodResult struct {
	Method     string      `json:"method"`
	BestResult *BestResult `json:"bestResult"`
}

// ModelMethodBest is one output row: a model × SKU × batch cell with the best
// result per method. Consumers always see the complete model × method × sku
// matrix — missing cells are filled with ineligible placeholders, never gaps.
type ModelMethodBest struct {
	ModelType         string         `json:"modelType"`
	DisplayName       string         `json:"displayName"`
	Category          string         `json:"category"`
	SKU               string         `json:"sku"`
	BatchID           string         `json:"batchId,omitempty"`
	DatasetIdentifier string         `json:"datasetIdentifier"`
	Methods           []MethodResult `json:"methods"`
}

// Aggregation is the full reduction of a job set: per-group winners plus
// every scored attempt (for CSV export).
type Aggregation struct {
	TotalJobs int               `json:"totalJobs"`
	Rows      []ModelMethodBest `json:"bestResultsPerModelMethod"`
	Attempts  []ScoredAttempt   `json:"-"`
}

type groupKey struct {
	modelID string
	method  string
	sku     string
	group   string // batchID when present, datasetIdentifier otherwise
}

// Aggregate reduces a job set to the best attempt per (model, method, sku,
// batch/dataset) group using a weighted composite of normalized metrics.
// It is recomputed on every call — nothing here is authoritative state.
// Jobs that are not completed still contribute their (sku, group) coordinates
// so the output matrix covers work that is merely queued.
func Aggregate(jobs []*models.Job, registry *forecast.Registry, methods []string, weights models.MetricWeights) Aggregation {
	if weights.IsZero() {
		weights = models.DefaultMetricWeights()
	}
	if len(methods) == 0 {
		methods = []string{models.MethodGrid, models.MethodAI}
	}

	agg := Aggregation{TotalJobs: len(jobs)}

	// Collect completed attempts and the coordinate space.
	groups := make(map[groupKey][]int)
	type coord struct{ sku, group, dataset, batch string }
	coordSet := map[coord]bool{}
	var coords []coord

	for _, job := range jobs {
		group := job.DatasetIdentifier
		batch := ""
		if job.BatchID != uuid.Nil {
			group = job.BatchID.String()
			batch = job.BatchID.String()
		}

		c := coord{sku: job.SKU, group: group, dataset: job.DatasetIdentifier, batch: batch}
		if !coordSet[c] {
			coordSet[c] = true
			coords = append(coords, c)
		}

		if job.Status != models.JobStatusCompleted || job.Result == nil {
			continue
		}

		agg.Attempts = append(agg.Attempts, ScoredAttempt{
			JobID:             job.ID,
			SKU:               job.SKU,
			ModelID:           job.ModelID,
			Method:            job.Method,
			BatchID:           job.BatchID,
			DatasetIdentifier: job.DatasetIdentifier,
			Parameters:        job.Result.Parameters,
			MAPE:              job.Result.MAPE,
			RMSE:              job.Result.RMSE,
			MAE:               job.Result.MAE,
			Accuracy:          job.Result.Accuracy,
			Reasoning:         job.Result.Reasoning,
		})
		key := groupKey{modelID: job.ModelID, method: job.Method, sku: job.SKU, group: group}
		groups[key] = append(groups[key], len(agg.Attempts)-1)
	}

	// Score each group and flag its winner.
	bestByKey := make(map[groupKey]*ScoredAttempt)
	for key, indices := range groups {
		scoreGroup(agg.Attempts, indices, weights)

		bestIdx := indices[0]
		for _, i := range indices[1:] {
			// Strict comparison keeps the first-seen attempt on ties.
			if agg.Attempts[i].CompositeScore > agg.Attempts[bestIdx].CompositeScore {
				bestIdx = i
			}
		}
		agg.Attempts[bestIdx].IsBest = true
		bestByKey[key] = &agg.Attempts[bestIdx]
	}

	// Assemble output rows over the full model × method × coordinate matrix.
	sort.Slice(coords, func(i, j int) bool {
		if coords[i].sku != coords[j].sku {
			return coords[i].sku < coords[j].sku
		}
		return coords[i].group < coords[j].group
	})

	for _, model := range registry.List() {
		for _, c := range coords {
			row := ModelMethodBest{
				ModelType:         model.ID(),
				DisplayName:       model.DisplayName(),
				Category:          model.Category(),
				SKU:               c.sku,
				BatchID:           c.batch,
				DatasetIdentifier: c.dataset,
			}

			hasResult := false
			for _, method := range methods {
				key := groupKey{modelID: model.ID(), method: method, sku: c.sku, group: c.group}
				if best, ok := bestByKey[key]; ok {
					row.Methods = append(row.Methods, MethodResult{
						Method:     method,
						BestResult: completedBest(best),
					})
					hasResult = true
					continue
				}
				if forecast.HasTunableParams(model) {
					row.Methods = append(row.Methods, MethodResult{
						Method:     method,
						BestResult: &BestResult{Status: BestStatusIneligible},
					})
				}
			}

			if hasResult || len(row.Methods) > 0 {
				agg.Rows = append(agg.Rows, row)
			}
		}
	}

	return agg
}

func completedBest(a *ScoredAttempt) *BestResult {
	jobID := a.JobID
	mape, rmse, mae, acc, score := a.MAPE, a.RMSE, a.MAE, a.Accuracy, a.CompositeScore
	return &BestResult{
		Status:         BestStatusCompleted,
		JobID:          &jobID,
		Parameters:     a.Parameters,
		MAPE:           &mape,
		RMSE:           &rmse,
		MAE:            &mae,
		Accuracy:       &acc,
		CompositeScore: &score,
		Reasoning:      a.Reasoning,
	}
}

// scoreGroup fills normalized metrics and composite scores for the attempts
// at the given indices, which form one comparison group.
func scoreGroup(attempts []ScoredAttempt, indices []int, w models.MetricWeights) {
	// Group maxima with a floor of 1 so normalization never divides by zero.
	maxMAPE, maxRMSE, maxMAE := 1.0, 1.0, 1.0
	for _, i := range indices {
		a := attempts[i]
		if valid(a.MAPE) && a.MAPE > maxMAPE {
			maxMAPE = a.MAPE
		}
		if valid(a.RMSE) && a.RMSE > maxRMSE {
			maxRMSE = a.RMSE
		}
		if valid(a.MAE) && a.MAE > maxMAE {
			maxMAE = a.MAE
		}
	}

	for _, i := range indices {
		a := &attempts[i]

		// Missing or invalid metrics count as the worst value in the group,
		// never as silently dropped.
		mape, rmse, mae, acc := a.MAPE, a.RMSE, a.MAE, a.Accuracy
		if !valid(mape) {
			mape = maxMAPE
		}
		if !valid(rmse) {
			rmse = maxRMSE
		}
		if !valid(mae) {
			mae = maxMAE
		}
		if !valid(acc) {
			acc = 0
		}

		a.NormAccuracy = clamp01(acc / 100)
		a.NormMAPE = clamp01(1 - mape/maxMAPE)
		a.NormRMSE = clamp01(1 - rmse/maxRMSE)
		a.NormMAE = clamp01(1 - mae/maxMAE)

		a.CompositeScore = w.MAPE*a.NormMAPE + w.RMSE*a.NormRMSE + w.MAE*a.NormMAE + w.Accuracy*a.NormAccuracy
	}
}

func valid(v float64) bool {
	return v >= 0 && !math.IsNaN(v) && !math.IsInf(v, 0)
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}

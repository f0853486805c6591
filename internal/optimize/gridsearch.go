package optimize

import (
	"fmt"
	"sort"

	"github.com/demandcast/optimizer/internal/forecast"
)

// Candidate is one evaluated parameter configuration with its holdout metrics.
type Candidate struct {
	Parameters map[string]float64
	Metrics    forecast.Metrics
}

// ProgressFunc receives (candidatesEvaluated, totalCandidates) after every
// candidate, including ones whose evaluation failed.
type ProgressFunc func(evaluated, total int)

// GridSearch exhaustively evaluates the Cartesian product of the model's
// parameter ranges against a held-out tail of the series and returns the
// candidate with minimum validation MAE. The enumeration order is
// deterministic (parameter names sorted, values in declared order) and ties
// keep the first candidate seen, so two runs over the same input always agree.
// A model with no parameter ranges returns its default vector scored once.
// Individual candidate failures are swallowed: those candidates simply lose.
func GridSearch(series []float64, model forecast.Model, progress ProgressFunc) (Candidate, error) {
	if progress == nil {
		progress = func(int, int) {}
	}
	if len(series) < 2 {
		return Candidate{}, fmt.Errorf("grid search needs at least 2 observations, got %d", len(series))
	}

	// Hold out the most recent fifth of the series (at least one point)
	// for validation.
	holdout := len(series) / 5
	if holdout < 1 {
		holdout = 1
	}
	train := series[:len(series)-holdout]
	actual := series[len(series)-holdout:]

	ranges := model.Ranges()
	if len(ranges) == 0 {
		params := model.Defaults()
		preds, err := model.Forecast(train, holdout, params)
		progress(1, 1)
		if err != nil {
			return Candidate{}, fmt.Errorf("evaluate default parameters: %w", err)
		}
		return Candidate{Parameters: params, Metrics: forecast.Evaluate(actual, preds)}, nil
	}

	names := make([]string, 0, len(ranges))
	for name := range ranges {
		names = append(names, name)
	}
	sort.Strings(names)

	total := 1
	for _, name := range names {
		total *= len(ranges[name])
	}

	// Odometer over value indices: generates each combination lazily instead
	// of materializing the full product.
	indices := make([]int, len(names))
	var best *Candidate
	evaluated := 0
	failed := 0

	for {
		params := make(map[string]float64, len(names))
		for i, name := range names {
			params[name] = ranges[name][indices[i]]
		}

		preds, err := model.Forecast(train, holdout, params)
		if err != nil {
			failed++
		} else {
			metrics := forecast.Evaluate(actual, preds)
			if best == nil || metrics.MAE < best.Metrics.MAE {
				best = &Candidate{Parameters: params, Metrics: metrics}
			}
		}

		evaluated++
		progress(evaluated, total)

		// Advance the odometer.
		pos := len(indices) - 1
		for pos >= 0 {
			indices[pos]++
			if indices[pos] < len(ranges[names[pos]]) {
				break
			}
			indices[pos] = 0
			pos--
		}
		if pos < 0 {
			break
		}
	}

	if best == nil {
		return Candidate{}, fmt.Errorf("all %d grid candidates failed for model %s", failed, model.ID())
	}
	return *best, nil
}

// TotalCandidates returns the size of a model's parameter grid.
func TotalCandidates(model forecast.Model) int {
	total := 1
	for _, values := range model.Ranges() {
		total *= len(values)
	}
	return total
}

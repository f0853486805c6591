package forecast

import "math"

// Metrics holds the standard forecast error measures. Accuracy is derived
// from MAPE and clamped to [0, 100].
type Metrics struct {
	MAPE     float64 `json:"mape"`
	RMSE     float64 `json:"rmse"`
	MAE      float64 `json:"mae"`
	Accuracy float64 `json:"accuracy"`
}

// Evaluate computes error metrics for predicted against actual. Both slices
// must have the same length. Zero actuals are excluded from MAPE so a single
// zero-demand bucket does not blow the percentage up to infinity.
func Evaluate(actual, predicted []float64) Metrics {
	n := len(actual)
	if n == 0 || len(predicted) != n {
		return Metrics{MAPE: math.Inf(1), RMSE: math.Inf(1), MAE: math.Inf(1)}
	}

	var sumAbs, sumSq, sumPct float64
	pctCount := 0
	for i := 0; i < n; i++ {
		diff := predicted[i] - actual[i]
		sumAbs += math.Abs(diff)
		sumSq += diff * diff
		if actual[i] != 0 {
			sumPct += math.Abs(diff / actual[i])
			pctCount++
		}
	}

	m := Metrics{
		MAE:  sumAbs / float64(n),
		RMSE: math.Sqrt(sumSq / float64(n)),
	}
	if pctCount > 0 {
		m.MAPE = sumPct / float64(pctCount) * 100
	} else {
		m.MAPE = math.Inf(1)
	}
	m.Accuracy = 100 - m.MAPE
	if m.Accuracy < 0 {
		m.Accuracy = 0
	}
	if m.Accuracy > 100 {
		m.Accuracy = 100
	}
	return m
}

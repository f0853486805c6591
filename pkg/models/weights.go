package models

// MetricWeights controls how the composite score blends the four accuracy
// metrics. Weights are relative — they are not required to sum to 1.
type MetricWeights struct {
	MAPE     float64 `json:"mape"`
	RMSE     float64 `json:"rmse"`
	MAE      float64 `json:"mae"`
	Accuracy float64 `json:"accuracy"`
}

// DefaultMetricWeights returns the standard weighting used when a request
// does not supply its own.
func DefaultMetricWeights() MetricWeights {
	return MetricWeights{MAPE: 0.4, RMSE: 0.3, MAE: 0.2, Accuracy: 0.1}
}

// IsZero reports whether no weight has been set.
func (w MetricWeights) IsZero() bool {
	return w.MAPE == 0 && w.RMSE == 0 && w.MAE == 0 && w.Accuracy == 0
}

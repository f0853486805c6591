// Package ai defines the external optimization-service boundary used by the
// `ai` method. A provider receives a SKU's recent history plus the model's
// parameter space and returns the parameter set it recommends together with
// the metrics it claims for them — both treated as authoritative.
package ai

import "context"

// OptimizeRequest carries everything a provider needs to recommend parameters
// for one (SKU, model) pair.
type OptimizeRequest struct {
	SKU             string               `json:"sku"`
	ModelID         string               `json:"model_id"`
	Series          []float64            `json:"series"`
	Defaults        map[string]float64   `json:"defaults"`
	Ranges          map[string][]float64 `json:"ranges"`
	BusinessContext string               `json:"business_context,omitempty"`
}

// OptimizeResponse is the provider's recommendation.
type OptimizeResponse struct {
	Parameters map[string]float64 `json:"parameters"`
	MAPE       float64            `json:"mape"`
	RMSE       float64            `json:"rmse"`
	MAE        float64            `json:"mae"`
	Accuracy   float64            `json:"accuracy"`
	Reasoning  string             `json:"reasoning"`
	Model      string             `json:"model,omitempty"`
}

// Provider is the interface every AI optimization integration must implement.
// Never call a specific provider directly — always inject this interface.
type Provider interface {
	Optimize(ctx context.Context, req OptimizeRequest) (OptimizeResponse, error)
	Name() string
}

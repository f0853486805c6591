// Package fingerprint computes the content hash that identifies a unit of
// optimization work. Two requests with the same logical inputs always produce
// the same digest, regardless of the order their fields were assembled in, so
// the hash can be used to detect equivalent work across processes — and by
// any client that pre-computes the same canonical form.
package fingerprint

import (
	"crypto/sha256"
	"encoding/json"
	"fmt"

	"github.com/demandcast/optimizer/pkg/models"
)

// Input is the defining tuple of an optimization job. Parameters defaults to
// an empty object and MetricWeights to models.DefaultMetricWeights when unset.
type Input struct {
	SKU               string
	ModelID           string
	Method            string
	DatasetIdentifier string
	Parameters        map[string]any
	MetricWeights     models.MetricWeights
}

// canonical is the serialized form that gets hashed. Field order here is part
// of the wire contract — changing it changes every hash.
type canonical struct {
	SKU               string           `json:"sku"`
	ModelID           string           `json:"modelId"`
	Method            string           `json:"method"`
	DatasetIdentifier string           `json:"datasetIdentifier"`
	Parameters        map[string]any   `json:"parameters"`
	MetricWeights     canonicalWeights `json:"metricWeights"`
}

type canonicalWeights struct {
	MAPE     float64 `json:"mape"`
	RMSE     float64 `json:"rmse"`
	MAE      float64 `json:"mae"`
	Accuracy float64 `json:"accuracy"`
}

// Compute returns the hex SHA-256 digest of the canonical serialization of in.
// encoding/json marshals map keys in sorted order, which gives parameter maps
// a stable byte representation without a separate canonicalization pass.
func Compute(in Input) string {
	params := in.Parameters
	if params == nil {
		params = map[string]any{}
	}
	weights := in.MetricWeights
	if weights.IsZero() {
		weights = models.DefaultMetricWeights()
	}

	c := canonical{
		SKU:               in.SKU,
		ModelID:           in.ModelID,
		Method:            in.Method,
		DatasetIdentifier: in.DatasetIdentifier,
		Parameters:        params,
		MetricWeights: canonicalWeights{
			MAPE:     weights.MAPE,
			RMSE:     weights.RMSE,
			MAE:      weights.MAE,
			Accuracy: weights.Accuracy,
		},
	}

	// Marshal of a map[string]any cannot fail for JSON-compatible values;
	// a non-serializable parameter value is a programming error upstream.
	data, err := json.Marshal(c)
	if err != nil {
		panic(fmt.Sprintf("fingerprint: marshal canonical form: %v", err))
	}

	hash := sha256.Sum256(data)
	return fmt.Sprintf("%x", hash)
}

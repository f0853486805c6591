package models

import "github.com/google/uuid"

const (
	PayloadVariantSeries     = "series"
	PayloadVariantDatasetRef = "dataset-ref"
)

// SeriesPoint is one observation in a SKU's historical demand series.
// Bucket is the period index (monotonically increasing, e.g. month number).
type SeriesPoint struct {
	Bucket   int     `json:"bucket"`
	Quantity float64 `json:"quantity"`
}

// JobPayload carries the data a job needs to run. It is a tagged union:
// either the series is embedded directly (variant "series") or the runner
// resolves it from the dataset store at execution time (variant "dataset-ref").
type JobPayload struct {
	Variant         string        `json:"variant"`
	Points          []SeriesPoint `json:"points,omitempty"`
	DatasetID       *uuid.UUID    `json:"dataset_id,omitempty"`
	SKU             string        `json:"sku,omitempty"`
	BusinessContext string        `json:"business_context,omitempty"`
}

// Series returns the embedded quantities for a "series" payload, nil otherwise.
func (p JobPayload) Series() []float64 {
	if p.Variant != PayloadVariantSeries {
		return nil
	}
	out := make([]float64, len(p.Points))
	for i, pt := range p.Points {
		out[i] = pt.Quantity
	}
	return out
}

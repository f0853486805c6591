// Package forecast defines the forecast-model contract the optimizer tunes
// against, a registry of the built-in models, and the accuracy metrics used
// to score them.
package forecast

import "errors"

var (
	ErrSeriesTooShort = errors.New("series too short for model")
	ErrInvalidParams  = errors.New("invalid model parameters")
	ErrInvalidHorizon = errors.New("forecast horizon must be positive")
)

// SeasonLength is the number of buckets in one seasonal cycle. Demand series
// are bucketed monthly, so a season is a year.
const SeasonLength = 12

// Model is the contract every forecast algorithm must satisfy. Ranges returns
// the explicit, finite, ordered candidate values for each tunable parameter;
// a model with no tunable parameters returns an empty map and is not eligible
// for grid search. Forecast must be deterministic for a given (series, params).
type Model interface {
	ID() string
	DisplayName() string
	Category() string
	Defaults() map[string]float64
	Ranges() map[string][]float64
	Forecast(series []float64, horizon int, params map[string]float64) ([]float64, error)
}

// paramOr returns params[key], falling back to the given default when absent.
func paramOr(params map[string]float64, key string, def float64) float64 {
	if v, ok := params[key]; ok {
		return v
	}
	return def
}

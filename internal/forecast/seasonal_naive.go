package forecast

// SeasonalNaive repeats the most recent full season. It has no tunable
// parameters, so it is never grid-searched — the factory skips it for the
// grid method and only the ai method can produce results for it.
type SeasonalNaive struct{}

func (SeasonalNaive) ID() string { return "seasonal_naive" }
func (SeasonalNaive) DisplayName() string { return "Seasonal Naive" }
func (SeasonalNaive) Category() string { return "baseline" }

func (SeasonalNaive) Defaults() map[string]float64 {
	return map[string]float64{}
}

func (SeasonalNaive) Ranges() map[string][]float64 {
	return map[string][]float64{}
}

func (m SeasonalNaive) Forecast(series []float64, horizon int, _ map[string]float64) ([]float64, error) {
	if horizon <= 0 {
		return nil, ErrInvalidHorizon
	}
	if len(series) < SeasonLength {
		return nil, ErrSeriesTooShort
	}

	lastSeason := series[len(series)-SeasonLength:]
	out := make([]float64, horizon)
	for h := 0; h < horizon; h++ {
		out[h] = lastSeason[h%SeasonLength]
	}
	return out, nil
}

package forecast

// HoltWinters is triple exponential smoothing with additive seasonality.
// Requires at least two full seasons of history to initialize the seasonal
// component.
type HoltWinters struct{}

func (HoltWinters) ID() string { return "holt_winters" }
func (HoltWinters) DisplayName() string { return "Holt-Winters" }
func (HoltWinters) Category() string { return "seasonal" }

func (HoltWinters) Defaults() map[string]float64 {
	return map[string]float64{"alpha": 0.3, "beta": 0.1, "gamma": 0.1}
}

func (HoltWinters) Ranges() map[string][]float64 {
	return map[string][]float64{
		"alpha": {0.1, 0.3, 0.5},
		"beta":  {0.05, 0.1, 0.3},
		"gamma": {0.1, 0.3, 0.5},
	}
}

func (m HoltWinters) Forecast(series []float64, horizon int, params map[string]float64) ([]float64, error) {
	if horizon <= 0 {
		return nil, ErrInvalidHorizon
	}
	alpha := paramOr(params, "alpha", 0.3)
	beta := paramOr(params, "beta", 0.1)
	gamma := paramOr(params, "gamma", 0.1)
	if alpha <= 0 || alpha > 1 || beta <= 0 || beta > 1 || gamma <= 0 || gamma > 1 {
		return nil, ErrInvalidParams
	}
	if len(series) < 2*SeasonLength {
		return nil, ErrSeriesTooShort
	}

	// Initial level/trend from the first two seasons, seasonal indices from
	// deviations against the first-season mean.
	var firstSum, secondSum float64
	for i := 0; i < SeasonLength; i++ {
		firstSum += series[i]
		secondSum += series[SeasonLength+i]
	}
	firstMean := firstSum / SeasonLength
	secondMean := secondSum / SeasonLength

	level := firstMean
	trend := (secondMean - firstMean) / SeasonLength
	seasonal := make([]float64, SeasonLength)
	for i := 0; i < SeasonLength; i++ {
		seasonal[i] = series[i] - firstMean
	}

	for i := SeasonLength; i < len(series); i++ {
		si := i % SeasonLength
		prevLevel := level
		level = alpha*(series[i]-seasonal[si]) + (1-alpha)*(level+trend)
		trend = beta*(level-prevLevel) + (1-beta)*trend
		seasonal[si] = gamma*(series[i]-level) + (1-gamma)*seasonal[si]
	}

	out := make([]float64, horizon)
	for h := 0; h < horizon; h++ {
		si := (len(series) + h) % SeasonLength
		f := level + float64(h+1)*trend + seasonal[si]
		if f < 0 {
			f = 0
		}
		out[h] = f
	}
	return out, nil
}

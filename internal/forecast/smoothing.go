package forecast

// ExponentialSmoothing is simple exponential smoothing: a single level
// updated by alpha, forecast flat across the horizon.
type ExponentialSmoothing struct{}

func (ExponentialSmoothing) ID() string { return "exponential_smoothing" }
func (ExponentialSmoothing) DisplayName() string { return "Exponential Smoothing" }
func (ExponentialSmoothing) Category() string { return "smoothing" }

func (ExponentialSmoothing) Defaults() map[string]float64 {
	return map[string]float64{"alpha": 0.3}
}

func (ExponentialSmoothing) Ranges() map[string][]float64 {
	return map[string][]float64{
		"alpha": {0.1, 0.2, 0.3, 0.4, 0.5, 0.6, 0.7, 0.8, 0.9},
	}
}

func (m ExponentialSmoothing) Forecast(series []float64, horizon int, params map[string]float64) ([]float64, error) {
	if horizon <= 0 {
		return nil, ErrInvalidHorizon
	}
	alpha := paramOr(params, "alpha", 0.3)
	if alpha <= 0 || alpha > 1 {
		return nil, ErrInvalidParams
	}
	if len(series) < 2 {
		return nil, ErrSeriesTooShort
	}

	level := series[0]
	for _, v := range series[1:] {
		level = alpha*v + (1-alpha)*level
	}

	out := make([]float64, horizon)
	for i := range out {
		out[i] = level
	}
	return out, nil
}

// Holt is double exponential smoothing: level plus linear trend.
type Holt struct{}

func (Holt) ID() string { return "holt" }
func (Holt) DisplayName() string { return "Holt Linear Trend" }
func (Holt) Category() string { return "smoothing" }

func (Holt) Defaults() map[string]float64 {
	return map[string]float64{"alpha": 0.3, "beta": 0.1}
}

func (Holt) Ranges() map[string][]float64 {
	return map[string][]float64{
		"alpha": {0.1, 0.2, 0.3, 0.4, 0.5},
		"beta":  {0.05, 0.1, 0.2, 0.3},
	}
}

func (m Holt) Forecast(series []float64, horizon int, params map[string]float64) ([]float64, error) {
	if horizon <= 0 {
		return nil, ErrInvalidHorizon
	}
	alpha := paramOr(params, "alpha", 0.3)
	beta := paramOr(params, "beta", 0.1)
	if alpha <= 0 || alpha > 1 || beta <= 0 || beta > 1 {
		return nil, ErrInvalidParams
	}
	if len(series) < 3 {
		return nil, ErrSeriesTooShort
	}

	level := series[0]
	trend := series[1] - series[0]
	for _, v := range series[1:] {
		prevLevel := level
		level = alpha*v + (1-alpha)*(level+trend)
		trend = beta*(level-prevLevel) + (1-beta)*trend
	}

	out := make([]float64, horizon)
	for i := range out {
		f := level + float64(i+1)*trend
		if f < 0 {
			f = 0 // demand cannot go negative
		}
		out[i] = f
	}
	return out, nil
}

package forecast

// MovingAverage forecasts the mean of the last `window` observations,
// held flat across the horizon.
type MovingAverage struct{}

func (MovingAverage) ID() string { return "moving_average" }
func (MovingAverage) DisplayName() string { return "Moving Average" }
func (MovingAverage) Category() string { return "baseline" }

func (MovingAverage) Defaults() map[string]float64 {
	return map[string]float64{"window": 3}
}

func (MovingAverage) Ranges() map[string][]float64 {
	return map[string][]float64{
		"window": {2, 3, 4, 6, 12},
	}
}

func (m MovingAverage) Forecast(series []float64, horizon int, params map[string]float64) ([]float64, error) {
	if horizon <= 0 {
		return nil, ErrInvalidHorizon
	}
	window := int(paramOr(params, "window", 3))
	if window < 1 {
		return nil, ErrInvalidParams
	}
	if len(series) < window {
		return nil, ErrSeriesTooShort
	}

	var sum float64
	for _, v := range series[len(series)-window:] {
		sum += v
	}
	level := sum / float64(window)

	out := make([]float64, horizon)
	for i := range out {
		out[i] = level
	}
	return out, nil
}

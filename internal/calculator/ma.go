package calculator

import "math"

// SMA returns the trailing simple moving average. Positions before
// window-1 are NaN.
func SMA(values []float64, window int) ([]float64, error) {
	if window <= 0 {
		return nil, ErrInvalidWindow
	}
	return RollingMean(values, window), nil
}

// EMA returns the exponential moving average with alpha = 2/(span+1),
// seeded with the first defined value and no bias adjustment.
func EMA(values []float64, span int) ([]float64, error) {
	if span <= 0 {
		return nil, ErrInvalidWindow
	}
	alpha := 2.0 / (float64(span) + 1.0)
	out := nanSeries(len(values))
	prev := math.NaN()
	for i, v := range values {
		if math.IsNaN(v) {
			continue
		}
		if math.IsNaN(prev) {
			prev = v
		} else {
			prev = alpha*v + (1-alpha)*prev
		}
		out[i] = prev
	}
	return out, nil
}

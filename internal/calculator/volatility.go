package calculator

import "math"

// ATR is the trailing mean of true range. The first bar has no previous
// close, so its true range is high minus low.
func ATR(high, low, closes []float64, window int) ([]float64, error) {
	if window <= 0 {
		return nil, ErrInvalidWindow
	}
	if len(high) != len(low) || len(low) != len(closes) {
		return nil, ErrLengthMismatch
	}
	tr := make([]float64, len(closes))
	for i := range closes {
		tr[i] = high[i] - low[i]
		if i == 0 {
			continue
		}
		prev := closes[i-1]
		tr[i] = math.Max(tr[i], math.Max(math.Abs(high[i]-prev), math.Abs(low[i]-prev)))
	}
	return RollingMean(tr, window), nil
}

// Stochastic returns %K and %D. %K is undefined where the high-low range
// over kWindow is zero.
func Stochastic(high, low, closes []float64, kWindow, dWindow int) (k, d []float64, err error) {
	if kWindow <= 0 || dWindow <= 0 {
		return nil, nil, ErrInvalidWindow
	}
	if len(high) != len(low) || len(low) != len(closes) {
		return nil, nil, ErrLengthMismatch
	}
	lowest := RollingMin(low, kWindow)
	highest := RollingMax(high, kWindow)
	k = nanSeries(len(closes))
	for i := range closes {
		rng := highest[i] - lowest[i]
		if math.IsNaN(rng) || rng == 0 {
			continue
		}
		k[i] = 100 * (closes[i] - lowest[i]) / rng
	}
	return k, RollingMean(k, dWindow), nil
}

// OBV folds volume into a running total: added on an up close, subtracted
// on a down close. The first value is the first bar's volume.
func OBV(closes, volume []float64) ([]float64, error) {
	if len(closes) != len(volume) {
		return nil, ErrLengthMismatch
	}
	out := make([]float64, len(closes))
	if len(closes) == 0 {
		return out, nil
	}
	out[0] = volume[0]
	for i := 1; i < len(closes); i++ {
		switch {
		case closes[i] > closes[i-1]:
			out[i] = out[i-1] + volume[i]
		case closes[i] < closes[i-1]:
			out[i] = out[i-1] - volume[i]
		default:
			out[i] = out[i-1]
		}
	}
	return out, nil
}

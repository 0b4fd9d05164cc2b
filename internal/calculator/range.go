package calculator

import "math"

// RollingMean is the trailing mean over window. Any NaN inside the window
// makes that position NaN.
func RollingMean(values []float64, window int) []float64 {
	return rolling(values, window, func(w []float64) float64 {
		sum := 0.0
		for _, v := range w {
			sum += v
		}
		return sum / float64(len(w))
	})
}

// RollingStd is the trailing sample standard deviation (n-1 denominator).
func RollingStd(values []float64, window int) []float64 {
	return rolling(values, window, func(w []float64) float64 {
		if len(w) < 2 {
			return math.NaN()
		}
		mean := 0.0
		for _, v := range w {
			mean += v
		}
		mean /= float64(len(w))
		ss := 0.0
		for _, v := range w {
			ss += (v - mean) * (v - mean)
		}
		return math.Sqrt(ss / float64(len(w)-1))
	})
}

// RollingMin is the trailing minimum over window.
func RollingMin(values []float64, window int) []float64 {
	return rolling(values, window, func(w []float64) float64 {
		low := math.Inf(1)
		for _, v := range w {
			if v < low {
				low = v
			}
		}
		return low
	})
}

// RollingMax is the trailing maximum over window.
func RollingMax(values []float64, window int) []float64 {
	return rolling(values, window, func(w []float64) float64 {
		high := math.Inf(-1)
		for _, v := range w {
			if v > high {
				high = v
			}
		}
		return high
	})
}

func rolling(values []float64, window int, agg func([]float64) float64) []float64 {
	out := nanSeries(len(values))
	if window <= 0 {
		return out
	}
	for i := window - 1; i < len(values); i++ {
		w := values[i-window+1 : i+1]
		if hasNaN(w) {
			continue
		}
		out[i] = agg(w)
	}
	return out
}

func hasNaN(values []float64) bool {
	for _, v := range values {
		if math.IsNaN(v) {
			return true
		}
	}
	return false
}

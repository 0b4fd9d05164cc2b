package calculator

import (
	"errors"
	"math"
)

var (
	ErrInvalidWindow    = errors.New("window must be positive")
	ErrLengthMismatch   = errors.New("input series lengths differ")
	ErrUnknownIndicator = errors.New("unknown indicator")
	ErrUndefined        = errors.New("indicator undefined at latest bar")
)

func nanSeries(n int) []float64 {
	out := make([]float64, n)
	for i := range out {
		out[i] = math.NaN()
	}
	return out
}

// Last returns the final element of a series, or false when the series is
// empty or its final element is undefined.
func Last(series []float64) (float64, bool) {
	if len(series) == 0 {
		return 0, false
	}
	v := series[len(series)-1]
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return 0, false
	}
	return v, true
}

package calculator

import "math"

// RSI computes the relative strength index using simple trailing means of
// gains and losses over the last window price changes. The first defined
// position is index window. A window with no losses yields 100.
func RSI(closes []float64, window int) ([]float64, error) {
	if window <= 0 {
		return nil, ErrInvalidWindow
	}
	out := nanSeries(len(closes))
	for i := window; i < len(closes); i++ {
		var gain, loss float64
		undefined := false
		for j := i - window + 1; j <= i; j++ {
			d := closes[j] - closes[j-1]
			if math.IsNaN(d) {
				undefined = true
				break
			}
			if d > 0 {
				gain += d
			} else {
				loss -= d
			}
		}
		if undefined {
			continue
		}
		avgGain := gain / float64(window)
		avgLoss := loss / float64(window)
		if avgLoss == 0 {
			out[i] = 100
			continue
		}
		rs := avgGain / avgLoss
		out[i] = 100 - 100/(1+rs)
	}
	return out, nil
}

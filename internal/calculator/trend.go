package calculator

// MACD returns the MACD line (fast EMA minus slow EMA), its signal line
// and the histogram (line minus signal).
func MACD(closes []float64, fast, slow, signal int) (line, sig, hist []float64, err error) {
	emaFast, err := EMA(closes, fast)
	if err != nil {
		return nil, nil, nil, err
	}
	emaSlow, err := EMA(closes, slow)
	if err != nil {
		return nil, nil, nil, err
	}
	line = make([]float64, len(closes))
	for i := range line {
		line[i] = emaFast[i] - emaSlow[i]
	}
	sig, err = EMA(line, signal)
	if err != nil {
		return nil, nil, nil, err
	}
	hist = make([]float64, len(closes))
	for i := range hist {
		hist[i] = line[i] - sig[i]
	}
	return line, sig, hist, nil
}

// Bollinger returns upper, middle and lower bands: SMA(window) plus or
// minus numStd sample standard deviations.
func Bollinger(closes []float64, window int, numStd float64) (upper, middle, lower []float64, err error) {
	if window <= 0 {
		return nil, nil, nil, ErrInvalidWindow
	}
	middle = RollingMean(closes, window)
	std := RollingStd(closes, window)
	upper = make([]float64, len(closes))
	lower = make([]float64, len(closes))
	for i := range closes {
		upper[i] = middle[i] + numStd*std[i]
		lower[i] = middle[i] - numStd*std[i]
	}
	return upper, middle, lower, nil
}

// ROC is the percentage change against the close window bars earlier.
func ROC(closes []float64, window int) ([]float64, error) {
	if window <= 0 {
		return nil, ErrInvalidWindow
	}
	out := nanSeries(len(closes))
	for i := window; i < len(closes); i++ {
		base := closes[i-window]
		if base == 0 {
			continue
		}
		out[i] = 100 * (closes[i]/base - 1)
	}
	return out, nil
}

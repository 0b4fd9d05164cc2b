package calculator

import (
	"fmt"

	"StockScreener/internal/model"
)

// Default windows used by the named indicators.
const (
	DefaultMAWindow   = 20
	DefaultEMASpan    = 20
	DefaultRSIWindow  = 14
	DefaultMACDFast   = 12
	DefaultMACDSlow   = 26
	DefaultMACDSignal = 9
	DefaultBollWindow = 20
	DefaultBollStd    = 2.0
	DefaultATRWindow  = 14
	DefaultStochK     = 14
	DefaultStochD     = 3
	DefaultROCWindow  = 12
)

type indicatorFunc func(s *model.PriceSeries) ([]float64, error)

type indicator struct {
	name string
	fn   indicatorFunc
}

var indicators = []indicator{
	{"ma", func(s *model.PriceSeries) ([]float64, error) {
		return SMA(s.Closes(), DefaultMAWindow)
	}},
	{"ema", func(s *model.PriceSeries) ([]float64, error) {
		return EMA(s.Closes(), DefaultEMASpan)
	}},
	{"rsi", func(s *model.PriceSeries) ([]float64, error) {
		return RSI(s.Closes(), DefaultRSIWindow)
	}},
	{"macd_hist", func(s *model.PriceSeries) ([]float64, error) {
		_, _, hist, err := MACD(s.Closes(), DefaultMACDFast, DefaultMACDSlow, DefaultMACDSignal)
		return hist, err
	}},
	{"boll_upper", func(s *model.PriceSeries) ([]float64, error) {
		upper, _, _, err := Bollinger(s.Closes(), DefaultBollWindow, DefaultBollStd)
		return distance(s.Closes(), upper), err
	}},
	{"boll_lower", func(s *model.PriceSeries) ([]float64, error) {
		_, _, lower, err := Bollinger(s.Closes(), DefaultBollWindow, DefaultBollStd)
		return distance(s.Closes(), lower), err
	}},
	{"atr", func(s *model.PriceSeries) ([]float64, error) {
		return ATR(s.Highs(), s.Lows(), s.Closes(), DefaultATRWindow)
	}},
	{"obv", func(s *model.PriceSeries) ([]float64, error) {
		return OBV(s.Closes(), s.Volumes())
	}},
	{"stoch_k", func(s *model.PriceSeries) ([]float64, error) {
		k, _, err := Stochastic(s.Highs(), s.Lows(), s.Closes(), DefaultStochK, DefaultStochD)
		return k, err
	}},
	{"stoch_d", func(s *model.PriceSeries) ([]float64, error) {
		_, d, err := Stochastic(s.Highs(), s.Lows(), s.Closes(), DefaultStochK, DefaultStochD)
		return d, err
	}},
	{"roc", func(s *model.PriceSeries) ([]float64, error) {
		return ROC(s.Closes(), DefaultROCWindow)
	}},
}

// distance returns price minus band, so boll_upper > 0 means the close
// sits above the upper band.
func distance(closes, band []float64) []float64 {
	if band == nil {
		return nil
	}
	out := make([]float64, len(closes))
	for i := range closes {
		out[i] = closes[i] - band[i]
	}
	return out
}

// Names lists the indicators Compute understands.
func Names() []string {
	names := make([]string, len(indicators))
	for i, ind := range indicators {
		names[i] = ind.name
	}
	return names
}

// Known reports whether name is a registered indicator.
func Known(name string) bool {
	for _, ind := range indicators {
		if ind.name == name {
			return true
		}
	}
	return false
}

// Compute evaluates the named indicator over series and returns its value
// at the latest bar.
func Compute(name string, series *model.PriceSeries) (float64, error) {
	for _, ind := range indicators {
		if ind.name != name {
			continue
		}
		values, err := ind.fn(series)
		if err != nil {
			return 0, fmt.Errorf("%s: %w", name, err)
		}
		v, ok := Last(values)
		if !ok {
			return 0, fmt.Errorf("%s: %w", name, ErrUndefined)
		}
		return v, nil
	}
	return 0, fmt.Errorf("%q: %w", name, ErrUnknownIndicator)
}

// Latest computes every registered indicator and keeps the defined ones.
func Latest(series *model.PriceSeries) model.IndicatorValues {
	out := make(model.IndicatorValues, len(indicators))
	for _, ind := range indicators {
		if v, err := Compute(ind.name, series); err == nil {
			out[ind.name] = v
		}
	}
	return out
}

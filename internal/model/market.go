package model

import "time"

// Bar is a single daily (or intraday) OHLCV observation.
type Bar struct {
	Date     time.Time `json:"date"`
	Open     float64   `json:"open"`
	High     float64   `json:"high"`
	Low      float64   `json:"low"`
	Close    float64   `json:"close"`
	Volume   float64   `json:"volume"`
	AdjClose *float64  `json:"adj_close,omitempty"`
}

// PriceSeries holds the bars for one symbol in strictly increasing date order.
type PriceSeries struct {
	Symbol string `json:"symbol"`
	Bars   []Bar  `json:"bars"`
}

func (s *PriceSeries) Len() int {
	if s == nil {
		return 0
	}
	return len(s.Bars)
}

// Last returns the most recent bar.
func (s *PriceSeries) Last() (Bar, bool) {
	if s.Len() == 0 {
		return Bar{}, false
	}
	return s.Bars[len(s.Bars)-1], true
}

func (s *PriceSeries) Closes() []float64 {
	return s.column(func(b Bar) float64 { return b.Close })
}

func (s *PriceSeries) Highs() []float64 {
	return s.column(func(b Bar) float64 { return b.High })
}

func (s *PriceSeries) Lows() []float64 {
	return s.column(func(b Bar) float64 { return b.Low })
}

func (s *PriceSeries) Volumes() []float64 {
	return s.column(func(b Bar) float64 { return b.Volume })
}

func (s *PriceSeries) column(pick func(Bar) float64) []float64 {
	out := make([]float64, s.Len())
	for i := range out {
		out[i] = pick(s.Bars[i])
	}
	return out
}

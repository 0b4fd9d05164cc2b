package model

// IndicatorValues holds latest indicator readings keyed by indicator name.
type IndicatorValues map[string]float64

// ScreeningResult is one row of a screen. Results are ordered by
// descending market cap.
type ScreeningResult struct {
	Symbol     string          `json:"symbol"`
	Name       string          `json:"name"`
	Sector     string          `json:"sector"`
	MarketCap  float64         `json:"market_cap"`
	Price      float64         `json:"price"`
	PERatio    float64         `json:"pe_ratio"`
	Indicators IndicatorValues `json:"indicators,omitempty"`
}

// NewScreeningResult fills the display fields from a snapshot. Missing
// fields stay zero.
func NewScreeningResult(symbol string, snap Snapshot) ScreeningResult {
	r := ScreeningResult{Symbol: symbol}
	r.Name, _ = snap.String("shortName")
	r.Sector, _ = snap.String("sector")
	r.MarketCap, _ = snap.Number("marketCap")
	r.Price, _ = snap.Number("currentPrice")
	r.PERatio, _ = snap.Number("trailingPE")
	return r
}

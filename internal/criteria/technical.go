package criteria

import (
	"fmt"

	"StockScreener/internal/calculator"
	"StockScreener/internal/model"
)

// ValidateTechnical rejects criteria naming an unknown indicator.
func ValidateTechnical(set Set) error {
	for _, field := range set.Fields() {
		if !calculator.Known(field) {
			return fmt.Errorf("%q: %w", field, calculator.ErrUnknownIndicator)
		}
	}
	return nil
}

// MatchTechnical computes each criterion's indicator on series and compares
// its latest value. It returns the computed values when every criterion
// holds. A string threshold, a computation error or an undefined value
// fails the match.
func MatchTechnical(series *model.PriceSeries, set Set) (model.IndicatorValues, bool) {
	values := make(model.IndicatorValues, len(set))
	for _, field := range set.Fields() {
		c := set[field]
		if c.Kind != KindNumber {
			return nil, false
		}
		v, err := calculator.Compute(field, series)
		if err != nil || !c.Op.Compare(v, c.Number) {
			return nil, false
		}
		values[field] = v
	}
	return values, true
}

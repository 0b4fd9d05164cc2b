package criteria

import (
	"errors"
	"testing"
	"time"

	"StockScreener/internal/calculator"
	"StockScreener/internal/model"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func declining(n int) *model.PriceSeries {
	start := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	s := &model.PriceSeries{Symbol: "DOWN"}
	for i := 0; i < n; i++ {
		c := 100 - float64(i)
		s.Bars = append(s.Bars, model.Bar{
			Date: start.AddDate(0, 0, i), Open: c + 0.5, High: c + 1, Low: c - 1, Close: c, Volume: 1000,
		})
	}
	return s
}

func TestMatchTechnical(t *testing.T) {
	series := declining(20)

	values, ok := MatchTechnical(series, Parse("rsi<30"))
	require.True(t, ok)
	assert.Less(t, values["rsi"], 30.0)

	_, ok = MatchTechnical(series, Parse("rsi>70"))
	assert.False(t, ok)

	values, ok = MatchTechnical(series, Parse("ma<100,roc<0"))
	require.True(t, ok)
	assert.Len(t, values, 2)
}

func TestMatchTechnical_Undefined(t *testing.T) {
	_, ok := MatchTechnical(declining(5), Parse("rsi<30"))
	assert.False(t, ok)
	_, ok = MatchTechnical(declining(30), Parse("rsi==low"))
	assert.False(t, ok)
}

func TestValidateTechnical(t *testing.T) {
	assert.NoError(t, ValidateTechnical(Parse("rsi<30,macd_hist>0,boll_lower<0")))
	err := ValidateTechnical(Parse("rsi<30,vwap>1"))
	require.Error(t, err)
	assert.True(t, errors.Is(err, calculator.ErrUnknownIndicator))
}

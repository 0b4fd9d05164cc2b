package model

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCanonicalSymbol(t *testing.T) {
	tests := []struct {
		in, want string
	}{
		{"aapl", "AAPL"},
		{" BRK.B ", "BRK-B"},
		{"bf.b", "BF-B"},
		{"MSFT", "MSFT"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, CanonicalSymbol(tt.in))
	}
}

func TestSnapshotJSON(t *testing.T) {
	snap := Snapshot{
		"marketCap": Number(2.5e12),
		"sector":    String("Technology"),
		"beta":      Null(),
	}
	data, err := json.Marshal(snap)
	require.NoError(t, err)
	assert.JSONEq(t, `{"marketCap":2500000000000,"sector":"Technology","beta":null}`, string(data))

	var back Snapshot
	require.NoError(t, json.Unmarshal(data, &back))
	assert.Equal(t, snap, back)
}

func TestSnapshotFromRaw(t *testing.T) {
	snap := SnapshotFromRaw(map[string]any{
		"marketCap":     float64(3e9),
		"trailingPE":    12,
		"sector":        "Energy",
		"dividendYield": nil,
		"officers":      []any{"x"},
	})
	v, ok := snap.Number("marketCap")
	require.True(t, ok)
	assert.Equal(t, 3e9, v)
	pe, ok := snap.Number("trailingPE")
	require.True(t, ok)
	assert.Equal(t, 12.0, pe)
	s, ok := snap.String("sector")
	require.True(t, ok)
	assert.Equal(t, "Energy", s)
	_, ok = snap.Number("dividendYield")
	assert.False(t, ok)
	_, ok = snap["officers"]
	assert.False(t, ok)
}

func TestPriceSeriesColumns(t *testing.T) {
	day := time.Date(2024, 1, 2, 0, 0, 0, 0, time.UTC)
	s := &PriceSeries{Symbol: "AAPL", Bars: []Bar{
		{Date: day, Open: 1, High: 2, Low: 0.5, Close: 1.5, Volume: 100},
		{Date: day.AddDate(0, 0, 1), Open: 1.5, High: 3, Low: 1, Close: 2.5, Volume: 200},
	}}
	assert.Equal(t, []float64{1.5, 2.5}, s.Closes())
	assert.Equal(t, []float64{2, 3}, s.Highs())
	assert.Equal(t, []float64{0.5, 1}, s.Lows())
	assert.Equal(t, []float64{100, 200}, s.Volumes())

	last, ok := s.Last()
	require.True(t, ok)
	assert.Equal(t, 2.5, last.Close)

	var empty *PriceSeries
	_, ok = empty.Last()
	assert.False(t, ok)
}

func TestNewScreeningResult(t *testing.T) {
	r := NewScreeningResult("XOM", Snapshot{
		"shortName":    String("Exxon Mobil"),
		"sector":       String("Energy"),
		"marketCap":    Number(4e11),
		"currentPrice": Number(110.5),
	})
	assert.Equal(t, "Exxon Mobil", r.Name)
	assert.Equal(t, 4e11, r.MarketCap)
	assert.Equal(t, 110.5, r.Price)
	assert.Zero(t, r.PERatio)
}

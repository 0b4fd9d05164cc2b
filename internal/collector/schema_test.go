package collector

import (
	"errors"
	"math"
	"testing"
	"time"

	"StockScreener/internal/logger"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testIndex(n int) []time.Time {
	start := time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)
	out := make([]time.Time, n)
	for i := range out {
		out[i] = start.AddDate(0, 0, i)
	}
	return out
}

func frameWith(labels [][]string, n int) *Frame {
	f := NewFrame(testIndex(n))
	for k, label := range labels {
		col := make([]float64, n)
		for i := range col {
			col[i] = float64(10*(k+1) + i)
		}
		f.AddColumn(label, col)
	}
	return f
}

func columnNames(f *Frame) []string {
	out := make([]string, len(f.Columns))
	for i, c := range f.Columns {
		out[i] = flatten(c)
	}
	return out
}

var nopLog = logger.NewNop().WithComponent("test")

func TestNormalizeFrame_TickerPrefixed(t *testing.T) {
	f := frameWith([][]string{
		{"AAPL_Open"}, {"AAPL_High"}, {"AAPL_Low"}, {"AAPL_Close"}, {"AAPL_Volume"},
	}, 3)
	got, err := NormalizeFrame(f, "AAPL", nopLog)
	require.NoError(t, err)
	assert.Equal(t, []string{"Open", "High", "Low", "Close", "Volume"}, columnNames(got))
}

func TestNormalizeFrame_Shapes(t *testing.T) {
	tests := []struct {
		name    string
		columns [][]string
		want    []string
	}{
		{
			name:    "flat single symbol",
			columns: [][]string{{"Open"}, {"High"}, {"Low"}, {"Close"}, {"Adj Close"}, {"Volume"}},
			want:    []string{"Open", "High", "Low", "Close", "Volume", "Adj Close"},
		},
		{
			name:    "symbol then field tuples",
			columns: [][]string{{"MSFT", "Open"}, {"MSFT", "High"}, {"MSFT", "Low"}, {"MSFT", "Close"}, {"MSFT", "Volume"}},
			want:    []string{"Open", "High", "Low", "Close", "Volume"},
		},
		{
			name:    "field then symbol tuples",
			columns: [][]string{{"Open", "MSFT"}, {"High", "MSFT"}, {"Low", "MSFT"}, {"Close", "MSFT"}, {"Volume", "MSFT"}},
			want:    []string{"Open", "High", "Low", "Close", "Volume"},
		},
		{
			name:    "upper and lower case",
			columns: [][]string{{"OPEN"}, {"high"}, {"LOW"}, {"close"}, {"VOLUME"}, {"adj_close"}},
			want:    []string{"Open", "High", "Low", "Close", "Volume", "Adj Close"},
		},
		{
			name:    "fuzzy fallback",
			columns: [][]string{{"open_price"}, {"day_high"}, {"day_low"}, {"last_close"}, {"total_volume"}},
			want:    []string{"Open", "High", "Low", "Close", "Volume"},
		},
		{
			name:    "missing high and low filled",
			columns: [][]string{{"Open"}, {"Close"}},
			want:    []string{"Open", "High", "Low", "Close", "Volume"},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := NormalizeFrame(frameWith(tt.columns, 4), "MSFT", nopLog)
			require.NoError(t, err)
			assert.Equal(t, tt.want, columnNames(got))
		})
	}
}

func TestNormalizeFrame_CloseIgnoresAdjClose(t *testing.T) {
	f := frameWith([][]string{{"Open"}, {"Adj Close"}, {"Close"}}, 2)
	got, err := NormalizeFrame(f, "X", nopLog)
	require.NoError(t, err)

	closes, ok := got.Column(ColClose)
	require.True(t, ok)
	assert.Equal(t, f.Data[2], closes)
	adj, ok := got.Column(ColAdjClose)
	require.True(t, ok)
	assert.Equal(t, f.Data[1], adj)
}

func TestNormalizeFrame_MissingClose(t *testing.T) {
	f := frameWith([][]string{{"AAPL_Open"}, {"AAPL_High"}, {"AAPL_Low"}}, 2)
	_, err := NormalizeFrame(f, "AAPL", nopLog)
	assert.True(t, errors.Is(err, ErrSchemaMismatch))
}

func TestNormalizeFrame_HighLowFallback(t *testing.T) {
	f := NewFrame(testIndex(2))
	f.AddColumn([]string{"Open"}, []float64{10, 12})
	f.AddColumn([]string{"Close"}, []float64{11, 9})
	got, err := NormalizeFrame(f, "X", nopLog)
	require.NoError(t, err)

	high, _ := got.Column(ColHigh)
	low, _ := got.Column(ColLow)
	vol, _ := got.Column(ColVolume)
	assert.Equal(t, []float64{11, 12}, high)
	assert.Equal(t, []float64{10, 9}, low)
	assert.Equal(t, []float64{0, 0}, vol)
}

func TestFrameToSeries_DropsNullRows(t *testing.T) {
	f := NewFrame(testIndex(3))
	f.AddColumn([]string{"Open"}, []float64{1, math.NaN(), 3})
	f.AddColumn([]string{"High"}, []float64{2, 2, 4})
	f.AddColumn([]string{"Low"}, []float64{0.5, 1, 2})
	f.AddColumn([]string{"Close"}, []float64{1.5, 1.8, 3.5})
	f.AddColumn([]string{"Volume"}, []float64{100, 200, math.NaN()})

	s, err := FrameToSeries(f, "X")
	require.NoError(t, err)
	require.Equal(t, 2, s.Len())
	assert.Equal(t, 1.5, s.Bars[0].Close)
	assert.Equal(t, 3.5, s.Bars[1].Close)
	assert.Zero(t, s.Bars[1].Volume)
	assert.True(t, s.Bars[0].Date.Before(s.Bars[1].Date))
}

func TestFrameToSeries_AllNullIsNoData(t *testing.T) {
	f := NewFrame(testIndex(2))
	for _, c := range []string{"Open", "High", "Low", "Close"} {
		f.AddColumn([]string{c}, []float64{math.NaN(), math.NaN()})
	}
	_, err := FrameToSeries(f, "X")
	assert.ErrorIs(t, err, ErrNoData)
}

func TestFrameSelect(t *testing.T) {
	f := frameWith([][]string{{"AAPL", "Open"}, {"MSFT", "Open"}, {"AAPL", "Close"}}, 2)
	sub := f.Select("AAPL")
	assert.Equal(t, []string{"AAPL_Open", "AAPL_Close"}, columnNames(sub))
	assert.Empty(t, f.Select("GOOG").Columns)
}

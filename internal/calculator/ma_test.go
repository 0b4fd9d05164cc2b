package calculator

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var closes20 = []float64{
	22.27, 22.19, 22.08, 22.17, 22.18, 22.13, 22.23, 22.43, 22.24, 22.29,
	22.15, 22.39, 22.38, 22.61, 23.36, 24.05, 23.75, 23.83, 23.95, 23.63,
}

func TestSMA_HandComputed(t *testing.T) {
	got, err := SMA(closes20, 10)
	require.NoError(t, err)
	require.Len(t, got, 20)

	for i := 0; i < 9; i++ {
		assert.True(t, math.IsNaN(got[i]), "index %d should be undefined", i)
	}
	want := map[int]float64{
		9: 22.221, 10: 22.209, 11: 22.229, 12: 22.259, 13: 22.303, 14: 22.421,
		15: 22.613, 16: 22.765, 17: 22.905, 18: 23.076, 19: 23.21,
	}
	for i, w := range want {
		assert.InDelta(t, w, got[i], 1e-9, "index %d", i)
	}
}

func TestSMA_FullWindow(t *testing.T) {
	got, err := SMA(closes20, 20)
	require.NoError(t, err)
	for i := 0; i < 19; i++ {
		assert.True(t, math.IsNaN(got[i]))
	}
	assert.InDelta(t, 22.7155, got[19], 1e-9)
}

func TestSMA_InvalidWindow(t *testing.T) {
	_, err := SMA(closes20, 0)
	assert.ErrorIs(t, err, ErrInvalidWindow)
}

func TestSMA_ShortSeries(t *testing.T) {
	got, err := SMA([]float64{1, 2}, 5)
	require.NoError(t, err)
	_, ok := Last(got)
	assert.False(t, ok)
}

func TestEMA_SeedAndNoAdjust(t *testing.T) {
	got, err := EMA([]float64{1, 2, 3, 4}, 3)
	require.NoError(t, err)
	assert.Equal(t, []float64{1, 1.5, 2.25, 3.125}, got)
}

func TestEMA_InvalidSpan(t *testing.T) {
	_, err := EMA([]float64{1}, -1)
	assert.ErrorIs(t, err, ErrInvalidWindow)
}

func TestRollingMinMax(t *testing.T) {
	values := []float64{3, 1, 4, 1, 5, 9, 2}
	low := RollingMin(values, 3)
	high := RollingMax(values, 3)
	assert.True(t, math.IsNaN(low[1]))
	assert.Equal(t, 1.0, low[2])
	assert.Equal(t, 1.0, low[4])
	assert.Equal(t, 2.0, low[6])
	assert.Equal(t, 4.0, high[2])
	assert.Equal(t, 9.0, high[6])
}

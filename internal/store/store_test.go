package store

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"StockScreener/internal/logger"
	"StockScreener/internal/model"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func openTemp(t *testing.T, now time.Time) *SQLStore {
	t.Helper()
	s, err := Open(DriverSQLite, filepath.Join(t.TempDir(), "data", "screener.db"), logger.NewNop())
	require.NoError(t, err)
	s.now = func() time.Time { return now }
	t.Cleanup(func() { s.Close() })
	return s
}

func stock(symbol string, last time.Time, n int) *model.StockData {
	bars := make([]model.Bar, n)
	for i := range bars {
		day := last.AddDate(0, 0, i-n+1)
		c := 100 + float64(i)
		bars[i] = model.Bar{Date: day, Open: c - 1, High: c + 1, Low: c - 2, Close: c, Volume: 1000}
	}
	return &model.StockData{
		Symbol: symbol,
		Snapshot: model.Snapshot{
			"symbol":     model.String(symbol),
			"shortName":  model.String(symbol + " Inc"),
			"sector":     model.String("Technology"),
			"marketCap":  model.Number(2e12),
			"trailingPE": model.Number(28.5),
			"beta":       model.Null(),
		},
		Series: &model.PriceSeries{Symbol: symbol, Bars: bars},
	}
}

func TestSQLStore_SaveLoad(t *testing.T) {
	ctx := context.Background()
	now := time.Date(2024, 6, 10, 15, 0, 0, 0, time.UTC)
	s := openTemp(t, now)

	require.NoError(t, s.Save(ctx, stock("AAPL", time.Date(2024, 6, 7, 0, 0, 0, 0, time.UTC), 30)))

	got, err := s.Load(ctx, "AAPL", 7*24*time.Hour)
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, 30, got.Series.Len())
	last, _ := got.Series.Last()
	assert.Equal(t, 129.0, last.Close)
	assert.True(t, last.Date.Equal(time.Date(2024, 6, 7, 0, 0, 0, 0, time.UTC)))

	mc, ok := got.Snapshot.Number("marketCap")
	require.True(t, ok)
	assert.Equal(t, 2e12, mc)
	name, _ := got.Snapshot.String("shortName")
	assert.Equal(t, "AAPL Inc", name)
	assert.True(t, got.Snapshot["beta"].IsNull())
	assert.Equal(t, now.Unix(), got.LastUpdated.Unix())
}

func TestSQLStore_LoadStale(t *testing.T) {
	ctx := context.Background()
	now := time.Date(2024, 6, 30, 0, 0, 0, 0, time.UTC)
	s := openTemp(t, now)

	require.NoError(t, s.Save(ctx, stock("MSFT", time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC), 10)))

	got, err := s.Load(ctx, "MSFT", 7*24*time.Hour)
	require.NoError(t, err)
	assert.Nil(t, got)

	got, err = s.Load(ctx, "MSFT", 60*24*time.Hour)
	require.NoError(t, err)
	assert.NotNil(t, got)

	got, err = s.Load(ctx, "NOPE", 0)
	require.NoError(t, err)
	assert.Nil(t, got)
}

func TestSQLStore_SaveReplacesHistory(t *testing.T) {
	ctx := context.Background()
	now := time.Date(2024, 6, 10, 0, 0, 0, 0, time.UTC)
	s := openTemp(t, now)

	require.NoError(t, s.Save(ctx, stock("XOM", now, 50)))
	updated := stock("XOM", now, 5)
	updated.Snapshot["sector"] = model.String("Energy")
	require.NoError(t, s.Save(ctx, updated))

	got, err := s.Load(ctx, "XOM", 0)
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, 5, got.Series.Len())
	sector, _ := got.Snapshot.String("sector")
	assert.Equal(t, "Energy", sector)

	syms, err := s.Symbols(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"XOM"}, syms)
}

func TestSQLStore_IntradayDates(t *testing.T) {
	ctx := context.Background()
	now := time.Date(2024, 6, 10, 16, 0, 0, 0, time.UTC)
	s := openTemp(t, now)

	data := stock("NVDA", now, 1)
	data.Series.Bars[0].Date = time.Date(2024, 6, 10, 14, 31, 0, 0, time.UTC)
	require.NoError(t, s.Save(ctx, data))

	got, err := s.Load(ctx, "NVDA", time.Hour*24)
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.True(t, got.Series.Bars[0].Date.Equal(data.Series.Bars[0].Date))
}

func TestSQLStore_Screens(t *testing.T) {
	ctx := context.Background()
	now := time.Date(2024, 6, 10, 12, 0, 0, 0, time.UTC)
	s := openTemp(t, now)

	rec := &ScreenRecord{
		Hash:          "abc",
		Kind:          "fundamental",
		Index:         "dow30",
		Criteria:      "market_cap>1000000000",
		Results:       []model.ScreeningResult{{Symbol: "AAPL", MarketCap: 3e12}},
		ExecutionTime: 1500 * time.Millisecond,
		CreatedAt:     now,
		ExpiresAt:     now.Add(15 * time.Minute),
	}
	require.NoError(t, s.SaveScreen(ctx, rec))

	got, err := s.LoadScreen(ctx, "abc")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, rec.Results, got.Results)
	assert.Equal(t, "dow30", got.Index)
	assert.Equal(t, 1500*time.Millisecond, got.ExecutionTime)

	s.now = func() time.Time { return now.Add(20 * time.Minute) }
	got, err = s.LoadScreen(ctx, "abc")
	require.NoError(t, err)
	assert.Nil(t, got)

	n, err := s.PurgeExpiredScreens(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)
}

func TestSQLStore_Stats(t *testing.T) {
	ctx := context.Background()
	now := time.Date(2024, 6, 10, 0, 0, 0, 0, time.UTC)
	s := openTemp(t, now)

	require.NoError(t, s.Save(ctx, stock("AAPL", now, 3)))
	other := stock("XOM", now, 2)
	other.Snapshot["sector"] = model.String("Energy")
	require.NoError(t, s.Save(ctx, other))

	st, err := s.Stats(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(2), st.Stocks)
	assert.Equal(t, int64(5), st.PriceRows)
	assert.Equal(t, "2024-06-08", st.OldestBar)
	assert.Equal(t, "2024-06-10", st.NewestBar)
	assert.Equal(t, map[string]int64{"Technology": 1, "Energy": 1}, st.Sectors)
}

func TestOpen_UnknownDriver(t *testing.T) {
	_, err := Open("mysql", "x", logger.NewNop())
	assert.Error(t, err)
}

func TestNoopStore(t *testing.T) {
	var s WarmStore = NewNoopStore()
	got, err := s.Load(context.Background(), "AAPL", 0)
	assert.NoError(t, err)
	assert.Nil(t, got)
	st, err := s.Stats(context.Background())
	require.NoError(t, err)
	assert.Empty(t, st.Sectors)
}

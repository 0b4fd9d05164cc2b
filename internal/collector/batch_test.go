package collector

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"

	"StockScreener/internal/logger"
	"StockScreener/internal/model"

	"github.com/sirupsen/logrus"
	logtest "github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// stubProvider wraps MockProvider and records batch calls.
type stubProvider struct {
	MockProvider
	mu        sync.Mutex
	batches   [][]string
	failBatch int
	infoErr   bool
}

func (s *stubProvider) FetchBatch(ctx context.Context, symbols []string, period, interval string) (*Frame, error) {
	s.mu.Lock()
	s.batches = append(s.batches, append([]string(nil), symbols...))
	n := len(s.batches)
	s.mu.Unlock()
	if s.failBatch == n {
		return nil, errors.New("provider timeout")
	}
	return s.MockProvider.FetchBatch(ctx, symbols, period, interval)
}

func (s *stubProvider) FetchInfo(ctx context.Context, symbol string) (map[string]any, error) {
	if s.infoErr {
		return nil, errors.New("info endpoint down")
	}
	return map[string]any{"marketCap": 1e9, "shortName": symbol + " Inc"}, nil
}

func symbolsN(n int) []string {
	out := make([]string, n)
	for i := range out {
		out[i] = fmt.Sprintf("S%02d", i)
	}
	return out
}

func newTestFetcher(p Provider) *BatchFetcher {
	return NewBatchFetcher(p, BatchOptions{}, logger.NewNop())
}

func TestBatchFetcher_PartitionsIntoTwenty(t *testing.T) {
	p := &stubProvider{MockProvider: MockProvider{Bars: 10}}
	got := newTestFetcher(p).Fetch(context.Background(), symbolsN(45), "1mo", "1d")

	require.Len(t, p.batches, 3)
	assert.Len(t, p.batches[0], 20)
	assert.Len(t, p.batches[1], 20)
	assert.Len(t, p.batches[2], 5)
	assert.Len(t, got, 45)
}

func TestBatchFetcher_BatchFailureIsIsolated(t *testing.T) {
	p := &stubProvider{MockProvider: MockProvider{Bars: 10}, failBatch: 1}
	got := newTestFetcher(p).Fetch(context.Background(), symbolsN(25), "1mo", "1d")

	assert.Len(t, p.batches, 2)
	assert.Len(t, got, 5)
	assert.NotContains(t, got, "S00")
	assert.Contains(t, got, "S20")
}

func TestBatchFetcher_SymbolFailureIsIsolated(t *testing.T) {
	p := &stubProvider{MockProvider: MockProvider{Bars: 10, Fail: map[string]bool{"B": true}}}
	var got map[string]*model.StockData
	assert.NotPanics(t, func() {
		got = newTestFetcher(p).Fetch(context.Background(), []string{"A", "B", "C"}, "1mo", "1d")
	})
	assert.Contains(t, got, "A")
	assert.Contains(t, got, "C")
	assert.NotContains(t, got, "B")
}

func TestBatchFetcher_SingleSymbolFlatShape(t *testing.T) {
	p := &stubProvider{MockProvider: MockProvider{Bars: 5}}
	got := newTestFetcher(p).Fetch(context.Background(), []string{"AAPL"}, "5d", "1d")

	require.Contains(t, got, "AAPL")
	assert.Equal(t, 5, got["AAPL"].Series.Len())
	name, _ := got["AAPL"].Snapshot.String("shortName")
	assert.Equal(t, "AAPL Inc", name)
}

func TestBatchFetcher_MetadataBestEffort(t *testing.T) {
	p := &stubProvider{MockProvider: MockProvider{Bars: 5}, infoErr: true}
	got := newTestFetcher(p).Fetch(context.Background(), []string{"AAPL", "MSFT"}, "5d", "1d")

	require.Len(t, got, 2)
	for sym, data := range got {
		assert.Len(t, data.Snapshot, 1)
		v, ok := data.Snapshot.String("symbol")
		require.True(t, ok)
		assert.Equal(t, sym, v)
		assert.Equal(t, 5, data.Series.Len())
	}
}

func TestBatchFetcher_WarnsWhenBatchLosesAllMetadata(t *testing.T) {
	const msg = "metadata unavailable for every symbol in batch"
	log := logger.NewNop()
	log.SetLevel(logrus.WarnLevel)
	hook := logtest.NewLocal(log.Logger)
	warned := func() bool {
		for _, e := range hook.AllEntries() {
			if e.Message == msg && e.Level == logrus.WarnLevel {
				return true
			}
		}
		return false
	}

	p := &stubProvider{MockProvider: MockProvider{Bars: 5}, infoErr: true}
	NewBatchFetcher(p, BatchOptions{}, log).Fetch(context.Background(), []string{"AAPL", "MSFT"}, "5d", "1d")
	assert.True(t, warned())

	hook.Reset()
	p.infoErr = false
	NewBatchFetcher(p, BatchOptions{}, log).Fetch(context.Background(), []string{"AAPL", "MSFT"}, "5d", "1d")
	assert.False(t, warned())
}

func TestPartition(t *testing.T) {
	assert.Nil(t, partition(nil, 20))
	assert.Equal(t, [][]string{{"a", "b"}, {"c"}}, partition([]string{"a", "b", "c"}, 2))
}

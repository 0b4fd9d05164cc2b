package collector

import (
	"context"
	"fmt"
	"time"

	"StockScreener/internal/model"
)

// MockProvider returns generated bars for development and testing.
// Symbols listed in Fail are reported as missing from every batch.
type MockProvider struct {
	Price float64
	Bars  int
	Info  map[string]map[string]any
	Fail  map[string]bool
	Now   func() time.Time
}

func (m *MockProvider) Name() string { return "mock" }

func (m *MockProvider) FetchBatch(_ context.Context, symbols []string, _, _ string) (*Frame, error) {
	count := m.Bars
	if count <= 0 {
		count = 60
	}
	rows := make(map[string]*chartRows, len(symbols))
	for _, sym := range symbols {
		if m.Fail[sym] {
			continue
		}
		rows[sym] = barsToRows(generateMockBars(m.basePrice(), count, m.now()))
	}
	if len(rows) == 0 {
		return nil, fmt.Errorf("mock: no data for %v", symbols)
	}
	return buildFrame(symbols, rows), nil
}

func (m *MockProvider) FetchInfo(_ context.Context, symbol string) (map[string]any, error) {
	info, ok := m.Info[symbol]
	if !ok {
		return nil, fmt.Errorf("mock: no info for %s", symbol)
	}
	return info, nil
}

func (m *MockProvider) basePrice() float64 {
	if m.Price <= 0 {
		return 100
	}
	return m.Price
}

func (m *MockProvider) now() time.Time {
	if m.Now != nil {
		return m.Now()
	}
	return time.Now()
}

func generateMockBars(basePrice float64, count int, now time.Time) []model.Bar {
	today := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC)
	bars := make([]model.Bar, count)
	for i := 0; i < count; i++ {
		p := basePrice * (1 + float64(i-count/2)*0.001)
		bars[i] = model.Bar{
			Date:   today.AddDate(0, 0, -(count - 1 - i)),
			Open:   p * 0.999,
			High:   p * 1.005,
			Low:    p * 0.995,
			Close:  p,
			Volume: 1000000,
		}
	}
	return bars
}

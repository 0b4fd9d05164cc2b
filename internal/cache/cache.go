package cache

import (
	"context"
	"time"

	"StockScreener/internal/model"
)

// DefaultTTL is how long a stockdata entry lives in the hot tier.
const DefaultTTL = 48 * time.Hour

// HotCache is the volatile first resolution tier. A miss is (nil, false, nil).
type HotCache interface {
	Get(ctx context.Context, symbol string) (*model.StockData, bool, error)
	Set(ctx context.Context, symbol string, data *model.StockData, ttl time.Duration) error
	GetPrice(ctx context.Context, symbol string) (float64, bool, error)
	SetPrice(ctx context.Context, symbol string, price float64, ttl time.Duration) error
	Close() error
}

func stockKey(symbol string) string { return "stockdata:" + symbol }
func priceKey(symbol string) string { return "price:" + symbol }

package collector

import "context"

// Provider is a remote market-data source.
//
// FetchBatch returns one frame for all symbols. A single-symbol request
// may come back with flat labels (["Open"]) and a multi-symbol request
// with (symbol, field) labels; the normalizer handles both.
type Provider interface {
	FetchBatch(ctx context.Context, symbols []string, period, interval string) (*Frame, error)
	FetchInfo(ctx context.Context, symbol string) (map[string]any, error)
	Name() string
}

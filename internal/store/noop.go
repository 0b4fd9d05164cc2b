package store

import (
	"context"
	"time"

	"StockScreener/internal/model"
)

// NoopStore is used when no database is configured or it fails to open.
// Every read misses and every write succeeds.
type NoopStore struct{}

func NewNoopStore() *NoopStore { return &NoopStore{} }

func (NoopStore) Load(context.Context, string, time.Duration) (*model.StockData, error) {
	return nil, nil
}

func (NoopStore) Save(context.Context, *model.StockData) error {
	return nil
}

func (NoopStore) Symbols(context.Context) ([]string, error) {
	return nil, nil
}

func (NoopStore) SaveScreen(context.Context, *ScreenRecord) error {
	return nil
}

func (NoopStore) LoadScreen(context.Context, string) (*ScreenRecord, error) {
	return nil, nil
}

func (NoopStore) PurgeExpiredScreens(context.Context) (int64, error) {
	return 0, nil
}

func (NoopStore) Stats(context.Context) (*Stats, error) {
	return &Stats{Sectors: map[string]int64{}}, nil
}

func (NoopStore) Close() error { return nil }

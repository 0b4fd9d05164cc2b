package store

import (
	"context"
	"time"

	"StockScreener/internal/model"
)

// DefaultMaxAge is how old the newest persisted bar may be before the
// warm tier stops serving a symbol.
const DefaultMaxAge = 7 * 24 * time.Hour

// ScreenRecord is a cached screening response.
type ScreenRecord struct {
	Hash          string                  `json:"criteria_hash"`
	Kind          string                  `json:"kind"`
	Index         string                  `json:"index_used"`
	Criteria      string                  `json:"criteria"`
	Results       []model.ScreeningResult `json:"results"`
	ExecutionTime time.Duration           `json:"execution_time"`
	CreatedAt     time.Time               `json:"created_at"`
	ExpiresAt     time.Time               `json:"expires_at"`
}

// Stats summarizes warm-store contents.
type Stats struct {
	Stocks        int64            `json:"total_stocks"`
	PriceRows     int64            `json:"total_price_records"`
	CachedResults int64            `json:"cached_screening_results"`
	OldestBar     string           `json:"oldest_price_date,omitempty"`
	NewestBar     string           `json:"newest_price_date,omitempty"`
	Sectors       map[string]int64 `json:"sector_distribution"`
}

// WarmStore is the persistent second resolution tier.
type WarmStore interface {
	// Load returns (nil, nil) when the symbol is absent or its newest bar
	// is older than maxAge.
	Load(ctx context.Context, symbol string, maxAge time.Duration) (*model.StockData, error)
	// Save replaces the symbol's snapshot and full price history.
	Save(ctx context.Context, data *model.StockData) error
	Symbols(ctx context.Context) ([]string, error)

	SaveScreen(ctx context.Context, rec *ScreenRecord) error
	// LoadScreen returns (nil, nil) for a missing or expired record.
	LoadScreen(ctx context.Context, hash string) (*ScreenRecord, error)
	PurgeExpiredScreens(ctx context.Context) (int64, error)
	Stats(ctx context.Context) (*Stats, error)

	Close() error
}

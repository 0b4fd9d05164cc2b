package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"StockScreener/internal/model"
)

type memEntry struct {
	value   []byte
	expires time.Time
}

func (e memEntry) expired(now time.Time) bool {
	return !e.expires.IsZero() && !now.Before(e.expires)
}

// MemoryCache is an in-process HotCache used when no redis URL is
// configured and in tests. Entries are stored encoded so callers never
// share a StockData with the cache.
type MemoryCache struct {
	mu      sync.RWMutex
	entries map[string]memEntry
	now     func() time.Time
}

func NewMemoryCache() *MemoryCache {
	return &MemoryCache{entries: make(map[string]memEntry), now: time.Now}
}

// WithClock swaps the time source. Used by tests.
func (c *MemoryCache) WithClock(now func() time.Time) *MemoryCache {
	c.now = now
	return c
}

func (c *MemoryCache) get(key string) ([]byte, bool) {
	c.mu.RLock()
	e, ok := c.entries[key]
	c.mu.RUnlock()
	if !ok {
		return nil, false
	}
	now := c.now()
	if !e.expired(now) {
		return e.value, true
	}

	// The entry may have been replaced since the read lock was released.
	c.mu.Lock()
	defer c.mu.Unlock()
	e, ok = c.entries[key]
	if !ok {
		return nil, false
	}
	if e.expired(now) {
		delete(c.entries, key)
		return nil, false
	}
	return e.value, true
}

func (c *MemoryCache) set(key string, value []byte, ttl time.Duration) {
	e := memEntry{value: value}
	if ttl > 0 {
		e.expires = c.now().Add(ttl)
	}
	c.mu.Lock()
	c.entries[key] = e
	c.mu.Unlock()
}

func (c *MemoryCache) Get(_ context.Context, symbol string) (*model.StockData, bool, error) {
	raw, ok := c.get(stockKey(symbol))
	if !ok {
		return nil, false, nil
	}
	var data model.StockData
	if err := json.Unmarshal(raw, &data); err != nil {
		return nil, false, fmt.Errorf("decode cached %s: %w", symbol, err)
	}
	return &data, true, nil
}

func (c *MemoryCache) Set(_ context.Context, symbol string, data *model.StockData, ttl time.Duration) error {
	raw, err := json.Marshal(data)
	if err != nil {
		return fmt.Errorf("encode %s: %w", symbol, err)
	}
	c.set(stockKey(symbol), raw, ttl)
	return nil
}

func (c *MemoryCache) GetPrice(_ context.Context, symbol string) (float64, bool, error) {
	raw, ok := c.get(priceKey(symbol))
	if !ok {
		return 0, false, nil
	}
	var price float64
	if err := json.Unmarshal(raw, &price); err != nil {
		return 0, false, err
	}
	return price, true, nil
}

func (c *MemoryCache) SetPrice(_ context.Context, symbol string, price float64, ttl time.Duration) error {
	raw, err := json.Marshal(price)
	if err != nil {
		return err
	}
	c.set(priceKey(symbol), raw, ttl)
	return nil
}

func (c *MemoryCache) Close() error { return nil }

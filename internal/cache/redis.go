package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"time"

	"StockScreener/internal/model"

	"github.com/redis/go-redis/v9"
)

// RedisCache stores entries as JSON under stockdata:<SYM> and live prices
// under price:<SYM>.
type RedisCache struct {
	client *redis.Client
}

// NewRedisCache connects using a redis:// URL and pings the server.
func NewRedisCache(ctx context.Context, rawURL string) (*RedisCache, error) {
	opts, err := redis.ParseURL(rawURL)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}
	client := redis.NewClient(opts)
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("ping redis: %w", err)
	}
	return &RedisCache{client: client}, nil
}

// NewRedisCacheFromClient wraps an existing client.
func NewRedisCacheFromClient(client *redis.Client) *RedisCache {
	return &RedisCache{client: client}
}

func (c *RedisCache) Get(ctx context.Context, symbol string) (*model.StockData, bool, error) {
	raw, err := c.client.Get(ctx, stockKey(symbol)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("redis get %s: %w", symbol, err)
	}
	var data model.StockData
	if err := json.Unmarshal(raw, &data); err != nil {
		return nil, false, fmt.Errorf("decode cached %s: %w", symbol, err)
	}
	return &data, true, nil
}

func (c *RedisCache) Set(ctx context.Context, symbol string, data *model.StockData, ttl time.Duration) error {
	raw, err := json.Marshal(data)
	if err != nil {
		return fmt.Errorf("encode %s: %w", symbol, err)
	}
	if err := c.client.Set(ctx, stockKey(symbol), raw, ttl).Err(); err != nil {
		return fmt.Errorf("redis set %s: %w", symbol, err)
	}
	return nil
}

func (c *RedisCache) GetPrice(ctx context.Context, symbol string) (float64, bool, error) {
	raw, err := c.client.Get(ctx, priceKey(symbol)).Result()
	if errors.Is(err, redis.Nil) {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, fmt.Errorf("redis get price %s: %w", symbol, err)
	}
	price, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return 0, false, fmt.Errorf("parse price %s: %w", symbol, err)
	}
	return price, true, nil
}

func (c *RedisCache) SetPrice(ctx context.Context, symbol string, price float64, ttl time.Duration) error {
	v := strconv.FormatFloat(price, 'f', -1, 64)
	if err := c.client.Set(ctx, priceKey(symbol), v, ttl).Err(); err != nil {
		return fmt.Errorf("redis set price %s: %w", symbol, err)
	}
	return nil
}

func (c *RedisCache) Close() error {
	return c.client.Close()
}

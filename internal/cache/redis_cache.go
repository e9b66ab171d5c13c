package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// Options configures the redis connection
type Options struct {
	Addr     string
	Password string
	DB       int
	TTL      time.Duration
}

// RedisCache stores delivery receipts in redis with a TTL
type RedisCache struct {
	rdb *redis.Client
	ttl time.Duration
}

// NewRedisCache wraps an existing client
func NewRedisCache(rdb *redis.Client, ttl time.Duration) *RedisCache {
	return &RedisCache{rdb: rdb, ttl: ttl}
}

// Dial creates a client for opts; the connection is made lazily by go-redis
func Dial(opts Options) *RedisCache {
	rdb := redis.NewClient(&redis.Options{
		Addr:     opts.Addr,
		Password: opts.Password,
		DB:       opts.DB,
	})
	return NewRedisCache(rdb, opts.TTL)
}

func receiptKey(messageID string) string {
	return fmt.Sprintf("receipt:%s", messageID)
}

// StoreDelivered records the receipt, replacing any previous one
func (c *RedisCache) StoreDelivered(ctx context.Context, receipt Receipt) error {
	if receipt.MessageID == "" {
		return errors.New("message ID is required")
	}
	receipt.DeliveredAt = receipt.DeliveredAt.UTC()

	b, err := json.Marshal(receipt)
	if err != nil {
		return err
	}

	return c.rdb.Set(ctx, receiptKey(receipt.MessageID), b, c.ttl).Err()
}

// GetDelivered returns the stored receipt or nil when absent or expired
func (c *RedisCache) GetDelivered(ctx context.Context, messageID string) (*Receipt, error) {
	raw, err := c.rdb.Get(ctx, receiptKey(messageID)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	var receipt Receipt
	if err := json.Unmarshal(raw, &receipt); err != nil {
		return nil, fmt.Errorf("failed to decode receipt: %w", err)
	}
	return &receipt, nil
}

// Ping checks the redis connection
func (c *RedisCache) Ping(ctx context.Context) error {
	return c.rdb.Ping(ctx).Err()
}

// Close releases the client
func (c *RedisCache) Close() error {
	return c.rdb.Close()
}

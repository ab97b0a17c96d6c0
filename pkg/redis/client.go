// Package redis wraps go-redis for the searcher's result cache.
package redis

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/Adithya-Monish-Kumar-K/docsearch/pkg/config"
)

// scanBatch is the SCAN page size and the most keys deleted per round trip.
const scanBatch = 100

type Client struct {
	rdb *redis.Client
}

// NewClient connects and fails fast if the server does not answer PING.
func NewClient(cfg config.RedisConfig) (*Client, error) {
	rdb := redis.NewClient(&redis.Options{
		Addr:         cfg.Addr,
		Password:     cfg.Password,
		DB:           cfg.DB,
		PoolSize:     cfg.PoolSize,
		DialTimeout:  2 * time.Second,
		ReadTimeout:  time.Second,
		WriteTimeout: time.Second,
	})
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := rdb.Ping(ctx).Err(); err != nil {
		rdb.Close()
		return nil, fmt.Errorf("connecting to redis at %s: %w", cfg.Addr, err)
	}
	return &Client{rdb: rdb}, nil
}

// Get returns the value stored at key. A missing or expired key is not an
// error: found is false.
func (c *Client) Get(ctx context.Context, key string) (value []byte, found bool, err error) {
	value, err = c.rdb.Get(ctx, key).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	return value, true, nil
}

// Set stores value at key. A zero ttl stores it without expiry.
func (c *Client) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	return c.rdb.Set(ctx, key, value, ttl).Err()
}

// DeleteMatching removes every key matching the glob pattern for which keep
// returns false. keep may be nil. The whole keyspace is scanned before
// anything is deleted; deletes then go out scanBatch keys per round trip.
// It returns the number of keys removed.
func (c *Client) DeleteMatching(ctx context.Context, pattern string, keep func(key string) bool) (int64, error) {
	var doomed []string
	iter := c.rdb.Scan(ctx, 0, pattern, scanBatch).Iterator()
	for iter.Next(ctx) {
		if k := iter.Val(); keep == nil || !keep(k) {
			doomed = append(doomed, k)
		}
	}
	if err := iter.Err(); err != nil {
		return 0, fmt.Errorf("scanning %s: %w", pattern, err)
	}

	var deleted int64
	for start := 0; start < len(doomed); start += scanBatch {
		batch := doomed[start:min(start+scanBatch, len(doomed))]
		n, err := c.rdb.Del(ctx, batch...).Result()
		deleted += n
		if err != nil {
			return deleted, fmt.Errorf("deleting %d key(s) matching %s: %w", len(batch), pattern, err)
		}
	}
	return deleted, nil
}

func (c *Client) Close() error {
	return c.rdb.Close()
}

func (c *Client) Ping(ctx context.Context) error {
	return c.rdb.Ping(ctx).Err()
}

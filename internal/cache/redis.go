package cache

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"
)

const (
	keyPrefix = "wallet:"
	opTimeout = 2 * time.Second
)

// RedisCache stores balance snapshots in Redis with a TTL.
type RedisCache struct {
	client *redis.Client
	ttl    time.Duration
	logger *slog.Logger
}

// NewRedisCache builds a Redis-backed balance cache.
func NewRedisCache(client *redis.Client, ttl time.Duration, logger *slog.Logger) *RedisCache {
	return &RedisCache{client: client, ttl: ttl, logger: logger}
}

// Get fetches the snapshot for the wallet. Any failure, including an
// unreachable Redis, is reported as a miss.
func (c *RedisCache) Get(ctx context.Context, walletID string) (Snapshot, bool) {
	ctx, cancel := context.WithTimeout(ctx, opTimeout)
	defer cancel()

	raw, err := c.client.Get(ctx, keyPrefix+walletID).Result()
	if err != nil {
		if !errors.Is(err, redis.Nil) {
			c.logger.Warn("cache read failed, treating as miss", "wallet_id", walletID, "error", err)
		}
		return Snapshot{}, false
	}

	var snap Snapshot
	if err := json.Unmarshal([]byte(raw), &snap); err != nil {
		c.logger.Warn("cache entry undecodable, treating as miss", "wallet_id", walletID, "error", err)
		return Snapshot{}, false
	}
	return snap, true
}

// Set stores the snapshot with the configured TTL. Best effort.
func (c *RedisCache) Set(ctx context.Context, snap Snapshot) {
	ctx, cancel := context.WithTimeout(ctx, opTimeout)
	defer cancel()

	payload, err := json.Marshal(snap)
	if err != nil {
		c.logger.Warn("cache encode failed", "wallet_id", snap.WalletID, "error", err)
		return
	}
	if err := c.client.Set(ctx, keyPrefix+snap.WalletID, payload, c.ttl).Err(); err != nil {
		c.logger.Warn("cache write failed", "wallet_id", snap.WalletID, "error", err)
	}
}

// Invalidate deletes the wallet's snapshot. Best effort.
func (c *RedisCache) Invalidate(ctx context.Context, walletID string) {
	ctx, cancel := context.WithTimeout(ctx, opTimeout)
	defer cancel()

	if err := c.client.Del(ctx, keyPrefix+walletID).Err(); err != nil {
		c.logger.Warn("cache invalidate failed", "wallet_id", walletID, "error", err)
	}
}

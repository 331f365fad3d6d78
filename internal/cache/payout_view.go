// Package cache holds read-through caches for admin payout views.
package cache

import (
	"context"
	"crypto/sha1"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"
)

const versionKey = "payouts:view:version"

// PayoutViewCache caches serialized history and stats views. Writes that
// change payouts bump a version counter, which orphans every cached view at
// once; orphans expire with their TTL.
//
// A nil client, or any Redis error, behaves as a cache miss.
type PayoutViewCache struct {
	client *redis.Client
	ttl    time.Duration
	logger *slog.Logger
}

// NewPayoutViewCache creates a cache. client may be nil.
func NewPayoutViewCache(client *redis.Client, ttl time.Duration, logger *slog.Logger) *PayoutViewCache {
	if ttl <= 0 {
		ttl = 30 * time.Second
	}
	return &PayoutViewCache{client: client, ttl: ttl, logger: logger}
}

// Enabled reports whether a Redis client is attached.
func (c *PayoutViewCache) Enabled() bool {
	return c != nil && c.client != nil
}

// Key builds the cache key for a view name and its filter.
func (c *PayoutViewCache) Key(ctx context.Context, name string, filter any) (string, error) {
	version, err := c.client.Get(ctx, versionKey).Int64()
	if err != nil && !errors.Is(err, redis.Nil) {
		return "", err
	}
	raw, err := json.Marshal(filter)
	if err != nil {
		return "", fmt.Errorf("encode cache filter: %w", err)
	}
	sum := sha1.Sum(raw)
	return fmt.Sprintf("payouts:view:v%d:%s:%s", version, name, hex.EncodeToString(sum[:])), nil
}

// GetJSON decodes a cached view into dst. It reports false on a miss.
func (c *PayoutViewCache) GetJSON(ctx context.Context, name string, filter, dst any) bool {
	if !c.Enabled() {
		return false
	}
	key, err := c.Key(ctx, name, filter)
	if err != nil {
		c.logger.Warn("payout cache key failed", "view", name, "error", err)
		return false
	}
	data, err := c.client.Get(ctx, key).Bytes()
	if err != nil {
		if !errors.Is(err, redis.Nil) {
			c.logger.Warn("payout cache read failed", "view", name, "error", err)
		}
		return false
	}
	if err := json.Unmarshal(data, dst); err != nil {
		c.logger.Warn("payout cache decode failed", "view", name, "error", err)
		return false
	}
	return true
}

// SetJSON stores a view. Failures are logged and otherwise ignored.
func (c *PayoutViewCache) SetJSON(ctx context.Context, name string, filter, value any) {
	if !c.Enabled() {
		return
	}
	key, err := c.Key(ctx, name, filter)
	if err != nil {
		c.logger.Warn("payout cache key failed", "view", name, "error", err)
		return
	}
	payload, err := json.Marshal(value)
	if err != nil {
		c.logger.Warn("payout cache encode failed", "view", name, "error", err)
		return
	}
	if err := c.client.Set(ctx, key, payload, c.ttl).Err(); err != nil {
		c.logger.Warn("payout cache write failed", "view", name, "error", err)
	}
}

// Invalidate orphans every cached view.
func (c *PayoutViewCache) Invalidate(ctx context.Context) {
	if !c.Enabled() {
		return
	}
	if err := c.client.Incr(ctx, versionKey).Err(); err != nil {
		c.logger.Warn("payout cache invalidate failed", "error", err)
	}
}

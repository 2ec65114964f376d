package service

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/genjishimada/dispatch-core/internal/notifications"
)

// RedisPreferenceCache caches resolved channel sets in Redis. Failures are
// logged and swallowed so a cache outage only costs latency.
type RedisPreferenceCache struct {
	client *redis.Client
	ttl    time.Duration
	logger *slog.Logger
}

func NewRedisPreferenceCache(client *redis.Client, ttl time.Duration, logger *slog.Logger) *RedisPreferenceCache {
	return &RedisPreferenceCache{
		client: client,
		ttl:    ttl,
		logger: logger,
	}
}

func prefsKey(userID int64, eventType notifications.EventType) string {
	return fmt.Sprintf("notify:prefs:%d:%s", userID, eventType)
}

func prefsKeyPattern(userID int64) string {
	return fmt.Sprintf("notify:prefs:%d:*", userID)
}

func (c *RedisPreferenceCache) GetChannels(ctx context.Context, userID int64, eventType notifications.EventType) ([]notifications.Channel, bool) {
	raw, err := c.client.Get(ctx, prefsKey(userID, eventType)).Bytes()
	if err != nil {
		if err != redis.Nil {
			c.logger.Warn("preference cache read failed", slog.String("error", err.Error()))
		}
		return nil, false
	}

	var channels []notifications.Channel
	if err := json.Unmarshal(raw, &channels); err != nil {
		c.logger.Warn("preference cache entry corrupt, discarding", slog.String("error", err.Error()))
		c.client.Del(ctx, prefsKey(userID, eventType))
		return nil, false
	}

	return channels, true
}

func (c *RedisPreferenceCache) SetChannels(ctx context.Context, userID int64, eventType notifications.EventType, channels []notifications.Channel) {
	raw, err := json.Marshal(channels)
	if err != nil {
		return
	}

	if err := c.client.Set(ctx, prefsKey(userID, eventType), raw, c.ttl).Err(); err != nil {
		c.logger.Warn("preference cache write failed", slog.String("error", err.Error()))
	}
}

// Invalidate drops every cached resolution for a user. Keys are scanned
// rather than tracked; the per-user key count is bounded by the number of
// event types.
func (c *RedisPreferenceCache) Invalidate(ctx context.Context, userID int64) {
	iter := c.client.Scan(ctx, 0, prefsKeyPattern(userID), 0).Iterator()
	for iter.Next(ctx) {
		if err := c.client.Del(ctx, iter.Val()).Err(); err != nil {
			c.logger.Warn("preference cache invalidation failed", slog.String("error", err.Error()))
			return
		}
	}
	if err := iter.Err(); err != nil {
		c.logger.Warn("preference cache scan failed", slog.String("error", err.Error()))
	}
}

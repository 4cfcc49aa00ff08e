package cache

import (
	"context"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"
	"go.uber.org/zap"

	"github.com/wizarding-anonymous/identity_platform/internal/config"
)

// RateLimiter is a fixed-window counter on Redis keys with TTL. Allow
// reports whether the operation may proceed; when it may not, retryAfter is
// the remaining window. A rejected call never increments the counter, so
// being limited does not consume attempts.
type RateLimiter struct {
	client *redis.Client
	logger *zap.Logger
	cfg    *config.RateLimitConfig
}

// NewRateLimiter creates a RateLimiter.
func NewRateLimiter(client *redis.Client, logger *zap.Logger, cfg *config.RateLimitConfig) *RateLimiter {
	return &RateLimiter{client: client, logger: logger, cfg: cfg}
}

// Allow checks and counts one operation under key against rule.
func (l *RateLimiter) Allow(ctx context.Context, key string, rule config.RateLimitRule) (allowed bool, retryAfter time.Duration, err error) {
	if !l.cfg.Enabled || !rule.Enabled {
		return true, 0, nil
	}

	redisKey := fmt.Sprintf("rate:%s", key)

	count, err := l.client.Get(ctx, redisKey).Int()
	if err != nil && err != redis.Nil {
		// Redis being down must not lock every user out.
		l.logger.Error("Rate limiter read failed, allowing request", zap.Error(err), zap.String("key", key))
		return true, 0, err
	}

	if err == redis.Nil {
		if err := l.client.Set(ctx, redisKey, 1, rule.Window).Err(); err != nil {
			l.logger.Error("Rate limiter write failed, allowing request", zap.Error(err), zap.String("key", key))
			return true, 0, err
		}
		return true, 0, nil
	}

	if count >= rule.Limit {
		ttl, ttlErr := l.client.TTL(ctx, redisKey).Result()
		if ttlErr != nil || ttl < 0 {
			ttl = rule.Window
		}
		l.logger.Warn("Rate limit exceeded", zap.String("key", key), zap.Int("count", count), zap.Int("limit", rule.Limit))
		return false, ttl, nil
	}

	if err := l.client.Incr(ctx, redisKey).Err(); err != nil {
		l.logger.Error("Rate limiter increment failed, allowing request", zap.Error(err), zap.String("key", key))
		return true, 0, err
	}

	// Repair a missing TTL so the key cannot live forever.
	ttl, err := l.client.TTL(ctx, redisKey).Result()
	if err == nil && ttl < 0 {
		_ = l.client.Expire(ctx, redisKey, rule.Window).Err()
	}

	return true, 0, nil
}

// Reset clears the counter for key.
func (l *RateLimiter) Reset(ctx context.Context, key string) error {
	return l.client.Del(ctx, fmt.Sprintf("rate:%s", key)).Err()
}

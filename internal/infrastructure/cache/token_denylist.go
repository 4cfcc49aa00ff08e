package cache

import (
	"context"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"
	"go.uber.org/zap"
)

// TokenDenylist records logged-out token ids for their remaining lifetime.
// Redis expiry prunes entries automatically, so the list never needs a
// background sweeper.
type TokenDenylist struct {
	client *redis.Client
	logger *zap.Logger
}

// NewTokenDenylist creates a TokenDenylist.
func NewTokenDenylist(client *redis.Client, logger *zap.Logger) *TokenDenylist {
	return &TokenDenylist{client: client, logger: logger}
}

// Deny marks the token id as revoked until its natural expiry.
func (d *TokenDenylist) Deny(ctx context.Context, jti string, remaining time.Duration) error {
	if remaining <= 0 {
		return nil // already expired, nothing to deny
	}
	if err := d.client.Set(ctx, d.key(jti), 1, remaining).Err(); err != nil {
		d.logger.Error("Failed to denylist token", zap.Error(err), zap.String("jti", jti))
		return fmt.Errorf("failed to denylist token: %w", err)
	}
	return nil
}

// IsDenied reports whether the token id has been revoked.
func (d *TokenDenylist) IsDenied(ctx context.Context, jti string) (bool, error) {
	n, err := d.client.Exists(ctx, d.key(jti)).Result()
	if err != nil {
		d.logger.Error("Failed to check token denylist", zap.Error(err), zap.String("jti", jti))
		return false, fmt.Errorf("failed to check token denylist: %w", err)
	}
	return n > 0, nil
}

func (d *TokenDenylist) key(jti string) string {
	return fmt.Sprintf("token:denied:%s", jti)
}

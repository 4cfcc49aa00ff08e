package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"
	"go.uber.org/zap"

	domainErrors "github.com/wizarding-anonymous/identity_platform/internal/domain/errors"
)

// ChallengeStore keeps short-lived single-use records (login challenges,
// magic-link tokens) in Redis. Consume is backed by GETDEL so concurrent
// requests presenting the same token resolve it at most once.
type ChallengeStore struct {
	client *redis.Client
	logger *zap.Logger
}

// NewChallengeStore creates a ChallengeStore.
func NewChallengeStore(client *redis.Client, logger *zap.Logger) *ChallengeStore {
	return &ChallengeStore{client: client, logger: logger}
}

// Put stores value under kind:token with the given TTL.
func (s *ChallengeStore) Put(ctx context.Context, kind, token string, value interface{}, ttl time.Duration) error {
	data, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("failed to marshal challenge value: %w", err)
	}
	key := s.key(kind, token)
	if err := s.client.Set(ctx, key, data, ttl).Err(); err != nil {
		s.logger.Error("Failed to store challenge", zap.Error(err), zap.String("kind", kind))
		return fmt.Errorf("failed to store challenge: %w", err)
	}
	return nil
}

// Consume atomically reads and deletes the record, unmarshalling it into
// dest. A missing or expired token yields ErrChallengeNotFound.
func (s *ChallengeStore) Consume(ctx context.Context, kind, token string, dest interface{}) error {
	key := s.key(kind, token)
	data, err := s.client.GetDel(ctx, key).Bytes()
	if err != nil {
		if err == redis.Nil {
			return domainErrors.ErrChallengeNotFound
		}
		s.logger.Error("Failed to consume challenge", zap.Error(err), zap.String("kind", kind))
		return fmt.Errorf("failed to consume challenge: %w", err)
	}
	if err := json.Unmarshal(data, dest); err != nil {
		return fmt.Errorf("failed to unmarshal challenge value: %w", err)
	}
	return nil
}

// Peek reads the record without consuming it.
func (s *ChallengeStore) Peek(ctx context.Context, kind, token string, dest interface{}) error {
	data, err := s.client.Get(ctx, s.key(kind, token)).Bytes()
	if err != nil {
		if err == redis.Nil {
			return domainErrors.ErrChallengeNotFound
		}
		return fmt.Errorf("failed to read challenge: %w", err)
	}
	return json.Unmarshal(data, dest)
}

// Delete removes the record, if it still exists.
func (s *ChallengeStore) Delete(ctx context.Context, kind, token string) error {
	return s.client.Del(ctx, s.key(kind, token)).Err()
}

func (s *ChallengeStore) key(kind, token string) string {
	return fmt.Sprintf("challenge:%s:%s", kind, token)
}

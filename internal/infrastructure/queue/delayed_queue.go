package queue

import (
	"context"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"
	"go.uber.org/zap"
)

// DelayedQueue schedules fire-at-time tasks on a Redis sorted set, scored by
// the unix timestamp at which the task becomes due. Claiming is atomic: a
// member removed by ZREM belongs to exactly one worker, so two workers can
// never run the same task id concurrently.
type DelayedQueue struct {
	client *redis.Client
	logger *zap.Logger
	name   string
}

// NewDelayedQueue creates a queue under the given name.
func NewDelayedQueue(client *redis.Client, logger *zap.Logger, name string) *DelayedQueue {
	return &DelayedQueue{client: client, logger: logger, name: name}
}

// Enqueue schedules taskID to become due at fireAt. Re-enqueueing an
// existing task moves its fire time.
func (q *DelayedQueue) Enqueue(ctx context.Context, taskID string, fireAt time.Time) error {
	err := q.client.ZAdd(ctx, q.key(), &redis.Z{
		Score:  float64(fireAt.Unix()),
		Member: taskID,
	}).Err()
	if err != nil {
		q.logger.Error("Failed to enqueue delayed task", zap.Error(err), zap.String("task_id", taskID))
		return fmt.Errorf("failed to enqueue delayed task: %w", err)
	}
	return nil
}

// ClaimDue returns up to limit task ids that are due at now, removing each
// from the queue. Ids that another worker removed first are skipped.
func (q *DelayedQueue) ClaimDue(ctx context.Context, now time.Time, limit int64) ([]string, error) {
	candidates, err := q.client.ZRangeByScore(ctx, q.key(), &redis.ZRangeBy{
		Min:   "-inf",
		Max:   fmt.Sprintf("%d", now.Unix()),
		Count: limit,
	}).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to read due tasks: %w", err)
	}

	claimed := make([]string, 0, len(candidates))
	for _, id := range candidates {
		removed, err := q.client.ZRem(ctx, q.key(), id).Result()
		if err != nil {
			q.logger.Error("Failed to claim delayed task", zap.Error(err), zap.String("task_id", id))
			continue
		}
		if removed == 1 {
			claimed = append(claimed, id)
		}
	}
	return claimed, nil
}

// Remove drops a scheduled task, if it is still queued.
func (q *DelayedQueue) Remove(ctx context.Context, taskID string) error {
	return q.client.ZRem(ctx, q.key(), taskID).Err()
}

func (q *DelayedQueue) key() string {
	return fmt.Sprintf("queue:delayed:%s", q.name)
}

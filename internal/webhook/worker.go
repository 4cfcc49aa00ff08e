package webhook

import (
	"context"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/wizarding-anonymous/identity_platform/internal/config"
)

const claimBatchSize = 100

// Worker drains the retry queue. Several instances can run side by side:
// queue claims are atomic, so a due delivery is attempted by exactly one of
// them. Retries of a single delivery stay sequential because the next
// attempt is only enqueued after the previous one finished.
type Worker struct {
	engine *DeliveryService
	queue  RetryQueue
	cfg    *config.WebhookConfig
	logger *zap.Logger
}

// NewWorker creates a Worker.
func NewWorker(engine *DeliveryService, queue RetryQueue, cfg *config.WebhookConfig, logger *zap.Logger) *Worker {
	return &Worker{engine: engine, queue: queue, cfg: cfg, logger: logger}
}

// Run polls until ctx is cancelled. Claimed deliveries are attempted on a
// bounded pool of goroutines.
func (w *Worker) Run(ctx context.Context) {
	ticker := time.NewTicker(w.cfg.WorkerPollInterval)
	defer ticker.Stop()

	w.logger.Info("Delivery worker started",
		zap.Duration("poll_interval", w.cfg.WorkerPollInterval),
		zap.Int("concurrency", w.cfg.WorkerConcurrency))

	sem := make(chan struct{}, w.cfg.WorkerConcurrency)
	for {
		select {
		case <-ctx.Done():
			w.logger.Info("Delivery worker stopping")
			return
		case <-ticker.C:
			w.drain(ctx, sem)
		}
	}
}

func (w *Worker) drain(ctx context.Context, sem chan struct{}) {
	taskIDs, err := w.queue.ClaimDue(ctx, time.Now().UTC(), claimBatchSize)
	if err != nil {
		w.logger.Error("Failed to claim due deliveries", zap.Error(err))
		return
	}

	for _, taskID := range taskIDs {
		deliveryID, err := uuid.Parse(taskID)
		if err != nil {
			w.logger.Error("Discarding malformed task id", zap.String("task_id", taskID))
			continue
		}

		select {
		case sem <- struct{}{}:
		case <-ctx.Done():
			return
		}
		go func(id uuid.UUID) {
			defer func() { <-sem }()
			if err := w.engine.Attempt(ctx, id); err != nil {
				w.logger.Error("Delivery attempt failed",
					zap.Error(err),
					zap.String("delivery_id", id.String()))
			}
		}(deliveryID)
	}
}

package webhook

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	domainErrors "github.com/wizarding-anonymous/identity_platform/internal/domain/errors"
	"github.com/wizarding-anonymous/identity_platform/internal/domain/models"
	"github.com/wizarding-anonymous/identity_platform/internal/domain/repository"
	"github.com/wizarding-anonymous/identity_platform/internal/infrastructure/security"
	"github.com/wizarding-anonymous/identity_platform/internal/utils/metrics"
)

// RetryQueue schedules delivery attempts. Claiming a task is atomic: of all
// workers polling the queue, exactly one owns any given task.
type RetryQueue interface {
	Enqueue(ctx context.Context, taskID string, fireAt time.Time) error
	ClaimDue(ctx context.Context, now time.Time, limit int64) ([]string, error)
}

// DeliveryService is the webhook delivery engine: it fans events out to
// subscribed webhooks and drives each delivery through its retry schedule.
type DeliveryService struct {
	webhooks   repository.WebhookRepository
	deliveries repository.DeliveryRepository
	queue      RetryQueue
	sender     Sender
	logger     *zap.Logger
}

// NewDeliveryService creates a DeliveryService.
func NewDeliveryService(
	webhooks repository.WebhookRepository,
	deliveries repository.DeliveryRepository,
	queue RetryQueue,
	sender Sender,
	logger *zap.Logger,
) *DeliveryService {
	return &DeliveryService{
		webhooks:   webhooks,
		deliveries: deliveries,
		queue:      queue,
		sender:     sender,
		logger:     logger,
	}
}

// Dispatch fans one event occurrence out to every active webhook subscribed
// to it. Each match gets exactly one delivery row, created pending and
// scheduled for an immediate first attempt.
func (s *DeliveryService) Dispatch(ctx context.Context, eventType string, payload interface{}) error {
	webhooks, err := s.webhooks.ListActiveByEvent(ctx, eventType)
	if err != nil {
		return err
	}

	for _, webhook := range webhooks {
		if _, err := s.DispatchTo(ctx, webhook, eventType, payload); err != nil {
			s.logger.Error("Failed to dispatch event to webhook",
				zap.Error(err),
				zap.String("webhook_id", webhook.ID.String()),
				zap.String("event_type", eventType))
		}
	}
	return nil
}

// DispatchTo creates a pending delivery for a single webhook and schedules
// its first attempt.
func (s *DeliveryService) DispatchTo(ctx context.Context, webhook *models.Webhook, eventType string, payload interface{}) (*models.WebhookDelivery, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal event payload: %w", err)
	}

	now := time.Now().UTC()
	delivery := &models.WebhookDelivery{
		ID:        uuid.New(),
		WebhookID: webhook.ID,
		EventType: eventType,
		Payload:   data,
		Status:    models.DeliveryStatusPending,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := s.deliveries.Create(ctx, delivery); err != nil {
		return nil, err
	}
	if err := s.queue.Enqueue(ctx, delivery.ID.String(), now); err != nil {
		return nil, err
	}
	return delivery, nil
}

// Attempt performs one delivery attempt. The envelope bytes are derived
// from the immutable payload and the delivery's creation time, so every
// attempt POSTs the identical body; only the signature can change, when the
// webhook's secret was regenerated between attempts.
func (s *DeliveryService) Attempt(ctx context.Context, deliveryID uuid.UUID) error {
	delivery, err := s.deliveries.FindByID(ctx, deliveryID)
	if err != nil {
		if errors.Is(err, domainErrors.ErrDeliveryNotFound) {
			// The webhook was deleted and the row cascaded away.
			return nil
		}
		return err
	}
	if delivery.Terminal() {
		return nil
	}

	webhook, err := s.webhooks.FindByID(ctx, delivery.WebhookID)
	if err != nil {
		if errors.Is(err, domainErrors.ErrWebhookNotFound) {
			return nil
		}
		return err
	}
	if !webhook.Active {
		s.logger.Info("Skipping delivery for inactive webhook",
			zap.String("delivery_id", deliveryID.String()),
			zap.String("webhook_id", webhook.ID.String()))
		return nil
	}

	body, err := json.Marshal(models.DeliveryEnvelope{
		Event:      delivery.EventType,
		Data:       delivery.Payload,
		WebhookID:  webhook.ID,
		DeliveryID: delivery.ID,
		Timestamp:  delivery.CreatedAt,
	})
	if err != nil {
		return fmt.Errorf("failed to marshal delivery envelope: %w", err)
	}
	signature := security.SignPayload(webhook.Secret, body)

	delivery.Attempts++
	delivery.Signature = signature

	status, responseBody, sendErr := s.sender.Send(ctx, webhook, body, signature, delivery.EventType, delivery.ID.String())
	now := time.Now().UTC()
	delivery.UpdatedAt = now

	if sendErr == nil && status >= 200 && status < 300 {
		delivery.Status = models.DeliveryStatusSuccess
		delivery.ResponseStatus = &status
		delivery.ResponseBody = &responseBody
		delivery.ErrorMessage = nil
		delivery.DeliveredAt = &now
		delivery.NextRetryAt = nil

		metrics.WebhookDeliveriesTotal.WithLabelValues("success").Inc()
		s.logger.Info("Webhook delivered",
			zap.String("delivery_id", delivery.ID.String()),
			zap.Int("attempts", delivery.Attempts))
		return s.deliveries.Update(ctx, delivery)
	}

	if sendErr != nil {
		msg := sendErr.Error()
		delivery.ErrorMessage = &msg
		delivery.ResponseStatus = nil
		delivery.ResponseBody = nil
	} else {
		msg := fmt.Sprintf("unexpected status %d", status)
		delivery.ErrorMessage = &msg
		delivery.ResponseStatus = &status
		delivery.ResponseBody = &responseBody
	}

	if delivery.Attempts < webhook.MaxRetries+1 {
		// Linear backoff: the gap grows by one base delay per attempt made.
		retryAt := now.Add(webhook.RetryDelay * time.Duration(delivery.Attempts))
		delivery.NextRetryAt = &retryAt

		metrics.WebhookDeliveriesTotal.WithLabelValues("retry").Inc()
		s.logger.Warn("Webhook delivery failed, retry scheduled",
			zap.String("delivery_id", delivery.ID.String()),
			zap.Int("attempts", delivery.Attempts),
			zap.Time("next_retry_at", retryAt))

		if err := s.deliveries.Update(ctx, delivery); err != nil {
			return err
		}
		return s.queue.Enqueue(ctx, delivery.ID.String(), retryAt)
	}

	delivery.Status = models.DeliveryStatusFailed
	delivery.NextRetryAt = nil

	metrics.WebhookDeliveriesTotal.WithLabelValues("failure").Inc()
	s.logger.Error("Webhook delivery exhausted retries",
		zap.String("delivery_id", delivery.ID.String()),
		zap.String("webhook_id", webhook.ID.String()),
		zap.Int("attempts", delivery.Attempts))
	return s.deliveries.Update(ctx, delivery)
}

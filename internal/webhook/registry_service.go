package webhook

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/wizarding-anonymous/identity_platform/internal/config"
	domainErrors "github.com/wizarding-anonymous/identity_platform/internal/domain/errors"
	"github.com/wizarding-anonymous/identity_platform/internal/domain/models"
	"github.com/wizarding-anonymous/identity_platform/internal/domain/repository"
	"github.com/wizarding-anonymous/identity_platform/internal/infrastructure/security"
	"github.com/wizarding-anonymous/identity_platform/internal/utils/logger"
)

const webhookSecretBytes = 32

// RegistryService manages tenant webhook subscriptions.
type RegistryService struct {
	webhooks   repository.WebhookRepository
	deliveries repository.DeliveryRepository
	dispatcher Dispatcher
	retries    RetryCanceler
	cfg        *config.WebhookConfig
	logger     *zap.Logger
}

// Dispatcher is the slice of the delivery engine the registry needs for
// explicit test deliveries.
type Dispatcher interface {
	DispatchTo(ctx context.Context, webhook *models.Webhook, eventType string, payload interface{}) (*models.WebhookDelivery, error)
}

// RetryCanceler drops a scheduled delivery attempt from the retry queue.
type RetryCanceler interface {
	Remove(ctx context.Context, taskID string) error
}

// NewRegistryService creates a RegistryService.
func NewRegistryService(
	webhooks repository.WebhookRepository,
	deliveries repository.DeliveryRepository,
	dispatcher Dispatcher,
	retries RetryCanceler,
	cfg *config.WebhookConfig,
	logger *zap.Logger,
) *RegistryService {
	return &RegistryService{
		webhooks:   webhooks,
		deliveries: deliveries,
		dispatcher: dispatcher,
		retries:    retries,
		cfg:        cfg,
		logger:     logger,
	}
}

// Register creates an active webhook for the tenant. When the caller does
// not supply a signing secret, the registry generates one and returns it in
// the model exactly once.
func (s *RegistryService) Register(ctx context.Context, tenantID uuid.UUID, req *models.CreateWebhookRequest) (*models.Webhook, error) {
	secret := req.Secret
	if secret == "" {
		generated, err := security.GenerateOpaqueToken(webhookSecretBytes)
		if err != nil {
			return nil, fmt.Errorf("failed to generate webhook secret: %w", err)
		}
		secret = generated
	}

	now := time.Now().UTC()
	webhook := &models.Webhook{
		ID:            uuid.New(),
		TenantID:      tenantID,
		Name:          req.Name,
		TargetURL:     req.TargetURL,
		Events:        req.Events,
		Secret:        secret,
		Active:        true,
		CustomHeaders: req.CustomHeaders,
		MaxRetries:    s.cfg.DefaultMaxRetries,
		RetryDelay:    s.cfg.DefaultRetryDelay,
		CreatedAt:     now,
		UpdatedAt:     now,
	}
	if req.MaxRetries != nil {
		webhook.MaxRetries = *req.MaxRetries
	}
	if req.RetryDelay != nil {
		webhook.RetryDelay = *req.RetryDelay
	}

	if err := s.webhooks.Create(ctx, webhook); err != nil {
		return nil, err
	}

	logger.WithTenant(s.logger, tenantID.String()).Info("Webhook registered",
		zap.String("webhook_id", webhook.ID.String()),
		zap.Strings("events", webhook.Events))
	return webhook, nil
}

// Get returns the webhook, scoped to the tenant.
func (s *RegistryService) Get(ctx context.Context, tenantID, webhookID uuid.UUID) (*models.Webhook, error) {
	webhook, err := s.webhooks.FindByID(ctx, webhookID)
	if err != nil {
		return nil, err
	}
	if webhook.TenantID != tenantID {
		return nil, domainErrors.ErrWebhookNotFound
	}
	return webhook, nil
}

// List returns the tenant's webhooks.
func (s *RegistryService) List(ctx context.Context, tenantID uuid.UUID) ([]*models.Webhook, error) {
	return s.webhooks.ListByTenant(ctx, tenantID)
}

// Update applies a partial update. In-flight deliveries keep the payload
// and signature they were created with; only future attempts see the new
// target or headers.
func (s *RegistryService) Update(ctx context.Context, tenantID, webhookID uuid.UUID, req *models.UpdateWebhookRequest) (*models.Webhook, error) {
	webhook, err := s.Get(ctx, tenantID, webhookID)
	if err != nil {
		return nil, err
	}

	if req.Name != nil {
		webhook.Name = *req.Name
	}
	if req.TargetURL != nil {
		webhook.TargetURL = *req.TargetURL
	}
	if req.Events != nil {
		webhook.Events = req.Events
	}
	if req.Active != nil {
		webhook.Active = *req.Active
	}
	if req.CustomHeaders != nil {
		webhook.CustomHeaders = req.CustomHeaders
	}
	if req.MaxRetries != nil {
		webhook.MaxRetries = *req.MaxRetries
	}
	if req.RetryDelay != nil {
		webhook.RetryDelay = *req.RetryDelay
	}

	if err := s.webhooks.Update(ctx, webhook); err != nil {
		return nil, err
	}
	s.logger.Info("Webhook updated", zap.String("webhook_id", webhookID.String()))
	return webhook, nil
}

// Delete removes the webhook. Pending deliveries cascade away with it, and
// their queued retries are dropped eagerly; any retry that slips through is
// still a no-op on the next attempt.
func (s *RegistryService) Delete(ctx context.Context, tenantID, webhookID uuid.UUID) error {
	if _, err := s.Get(ctx, tenantID, webhookID); err != nil {
		return err
	}

	if deliveries, err := s.deliveries.ListByWebhook(ctx, webhookID, 0); err != nil {
		s.logger.Warn("Failed to list deliveries for retry cleanup",
			zap.Error(err),
			zap.String("webhook_id", webhookID.String()))
	} else {
		for _, delivery := range deliveries {
			if delivery.Terminal() {
				continue
			}
			if err := s.retries.Remove(ctx, delivery.ID.String()); err != nil {
				s.logger.Warn("Failed to drop queued retry",
					zap.Error(err),
					zap.String("delivery_id", delivery.ID.String()))
			}
		}
	}

	if err := s.webhooks.Delete(ctx, webhookID); err != nil {
		return err
	}
	s.logger.Info("Webhook deleted", zap.String("webhook_id", webhookID.String()))
	return nil
}

// RegenerateSecret replaces the signing secret. The cutover is hard: there
// is no grace period, and attempts made after the swap sign with the new
// secret even for deliveries created before it.
func (s *RegistryService) RegenerateSecret(ctx context.Context, tenantID, webhookID uuid.UUID) (*models.Webhook, error) {
	webhook, err := s.Get(ctx, tenantID, webhookID)
	if err != nil {
		return nil, err
	}

	secret, err := security.GenerateOpaqueToken(webhookSecretBytes)
	if err != nil {
		return nil, fmt.Errorf("failed to generate webhook secret: %w", err)
	}
	webhook.Secret = secret
	if err := s.webhooks.Update(ctx, webhook); err != nil {
		return nil, err
	}

	s.logger.Info("Webhook secret regenerated", zap.String("webhook_id", webhookID.String()))
	return webhook, nil
}

// TestDelivery dispatches a synthetic event to a single webhook so the
// subscriber can verify its endpoint and signature handling.
func (s *RegistryService) TestDelivery(ctx context.Context, tenantID, webhookID uuid.UUID) (*models.WebhookDelivery, error) {
	webhook, err := s.Get(ctx, tenantID, webhookID)
	if err != nil {
		return nil, err
	}
	if !webhook.Active {
		return nil, domainErrors.ErrWebhookInactive
	}

	return s.dispatcher.DispatchTo(ctx, webhook, models.EventWebhookTest, models.WebhookTestPayload{
		WebhookID: webhook.ID.String(),
		Message:   "test delivery",
		SentAt:    time.Now().UTC(),
	})
}

// ListDeliveries returns the webhook's recent delivery history.
func (s *RegistryService) ListDeliveries(ctx context.Context, tenantID, webhookID uuid.UUID, limit int) ([]*models.WebhookDelivery, error) {
	if _, err := s.Get(ctx, tenantID, webhookID); err != nil {
		return nil, err
	}
	return s.deliveries.ListByWebhook(ctx, webhookID, limit)
}

// GetDelivery returns a single delivery, scoped through its webhook's tenant.
func (s *RegistryService) GetDelivery(ctx context.Context, tenantID, deliveryID uuid.UUID) (*models.WebhookDelivery, error) {
	delivery, err := s.deliveries.FindByID(ctx, deliveryID)
	if err != nil {
		return nil, err
	}
	if _, err := s.Get(ctx, tenantID, delivery.WebhookID); err != nil {
		return nil, domainErrors.ErrDeliveryNotFound
	}
	return delivery, nil
}

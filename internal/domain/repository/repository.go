package repository

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/wizarding-anonymous/identity_platform/internal/domain/models"
)

// UserRepository persists tenant-scoped users. Update enforces optimistic
// locking: the caller must pass the version it read, and a stale version is
// rejected with ErrVersionConflict.
type UserRepository interface {
	Create(ctx context.Context, user *models.User) error
	FindByID(ctx context.Context, id uuid.UUID) (*models.User, error)
	FindByIDIncludingDeleted(ctx context.Context, id uuid.UUID) (*models.User, error)
	FindByEmail(ctx context.Context, tenantID uuid.UUID, email string) (*models.User, error)
	Update(ctx context.Context, user *models.User) error
	RecordLogin(ctx context.Context, id uuid.UUID, at time.Time) error
	SoftDelete(ctx context.Context, id uuid.UUID) error
	Purge(ctx context.Context, id uuid.UUID) error
}

// RecoveryCodeRepository stores single-use recovery codes.
type RecoveryCodeRepository interface {
	ReplaceForUser(ctx context.Context, userID uuid.UUID, codes []*models.RecoveryCode) error
	FindActiveByUserID(ctx context.Context, userID uuid.UUID) ([]*models.RecoveryCode, error)
	// MarkUsed consumes the code. It fails with ErrInvalidCode when the code
	// was already used, so a code can never be spent twice.
	MarkUsed(ctx context.Context, codeID uuid.UUID) error
	DeleteForUser(ctx context.Context, userID uuid.UUID) error
}

// WebhookRepository persists webhook subscriptions.
type WebhookRepository interface {
	Create(ctx context.Context, webhook *models.Webhook) error
	FindByID(ctx context.Context, id uuid.UUID) (*models.Webhook, error)
	ListByTenant(ctx context.Context, tenantID uuid.UUID) ([]*models.Webhook, error)
	ListActiveByEvent(ctx context.Context, eventType string) ([]*models.Webhook, error)
	Update(ctx context.Context, webhook *models.Webhook) error
	// Delete removes the webhook; deliveries cascade at the database level.
	Delete(ctx context.Context, id uuid.UUID) error
}

// DeliveryRepository persists webhook deliveries. Rows are created once per
// dispatch and mutated in place across retry attempts.
type DeliveryRepository interface {
	Create(ctx context.Context, delivery *models.WebhookDelivery) error
	FindByID(ctx context.Context, id uuid.UUID) (*models.WebhookDelivery, error)
	ListByWebhook(ctx context.Context, webhookID uuid.UUID, limit int) ([]*models.WebhookDelivery, error)
	Update(ctx context.Context, delivery *models.WebhookDelivery) error
}

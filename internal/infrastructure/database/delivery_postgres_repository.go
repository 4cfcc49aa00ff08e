package database

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	domainErrors "github.com/wizarding-anonymous/identity_platform/internal/domain/errors"
	"github.com/wizarding-anonymous/identity_platform/internal/domain/models"
	"github.com/wizarding-anonymous/identity_platform/internal/domain/repository"
)

type pgxDeliveryRepository struct {
	db *pgxpool.Pool
}

// NewPgxDeliveryRepository creates a new webhook delivery repository.
func NewPgxDeliveryRepository(db *pgxpool.Pool) repository.DeliveryRepository {
	return &pgxDeliveryRepository{db: db}
}

const deliveryColumns = `
	id, webhook_id, event_type, payload, status, attempts,
	response_status, response_body, error_message, signature,
	delivered_at, next_retry_at, created_at, updated_at`

func scanDelivery(row pgx.Row) (*models.WebhookDelivery, error) {
	delivery := &models.WebhookDelivery{}
	err := row.Scan(
		&delivery.ID, &delivery.WebhookID, &delivery.EventType, &delivery.Payload,
		&delivery.Status, &delivery.Attempts,
		&delivery.ResponseStatus, &delivery.ResponseBody, &delivery.ErrorMessage, &delivery.Signature,
		&delivery.DeliveredAt, &delivery.NextRetryAt, &delivery.CreatedAt, &delivery.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domainErrors.ErrDeliveryNotFound
		}
		return nil, fmt.Errorf("failed to scan delivery: %w", err)
	}
	return delivery, nil
}

// Create persists a new delivery row. The payload snapshot is immutable
// after this point.
func (r *pgxDeliveryRepository) Create(ctx context.Context, delivery *models.WebhookDelivery) error {
	query := `
		INSERT INTO webhook_deliveries (
			id, webhook_id, event_type, payload, status, attempts,
			response_status, response_body, error_message, signature,
			delivered_at, next_retry_at, created_at, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)`
	_, err := r.db.Exec(ctx, query,
		delivery.ID, delivery.WebhookID, delivery.EventType, delivery.Payload,
		delivery.Status, delivery.Attempts,
		delivery.ResponseStatus, delivery.ResponseBody, delivery.ErrorMessage, delivery.Signature,
		delivery.DeliveredAt, delivery.NextRetryAt, delivery.CreatedAt, delivery.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to create delivery: %w", err)
	}
	return nil
}

// FindByID retrieves a delivery by id.
func (r *pgxDeliveryRepository) FindByID(ctx context.Context, id uuid.UUID) (*models.WebhookDelivery, error) {
	query := `SELECT ` + deliveryColumns + ` FROM webhook_deliveries WHERE id = $1`
	return scanDelivery(r.db.QueryRow(ctx, query, id))
}

// ListByWebhook returns the webhook's delivery history, newest first.
func (r *pgxDeliveryRepository) ListByWebhook(ctx context.Context, webhookID uuid.UUID, limit int) ([]*models.WebhookDelivery, error) {
	if limit <= 0 {
		limit = 50
	}
	query := `SELECT ` + deliveryColumns + ` FROM webhook_deliveries WHERE webhook_id = $1 ORDER BY created_at DESC LIMIT $2`
	rows, err := r.db.Query(ctx, query, webhookID, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list deliveries: %w", err)
	}
	defer rows.Close()

	var deliveries []*models.WebhookDelivery
	for rows.Next() {
		delivery, err := scanDelivery(rows)
		if err != nil {
			return nil, err
		}
		deliveries = append(deliveries, delivery)
	}
	return deliveries, rows.Err()
}

// Update mutates the delivery's attempt state in place. The payload column
// is deliberately not part of the statement.
func (r *pgxDeliveryRepository) Update(ctx context.Context, delivery *models.WebhookDelivery) error {
	query := `
		UPDATE webhook_deliveries SET
			status = $1, attempts = $2,
			response_status = $3, response_body = $4, error_message = $5,
			signature = $6, delivered_at = $7, next_retry_at = $8,
			updated_at = NOW()
		WHERE id = $9`
	tag, err := r.db.Exec(ctx, query,
		delivery.Status, delivery.Attempts,
		delivery.ResponseStatus, delivery.ResponseBody, delivery.ErrorMessage,
		delivery.Signature, delivery.DeliveredAt, delivery.NextRetryAt,
		delivery.ID,
	)
	if err != nil {
		return fmt.Errorf("failed to update delivery: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return domainErrors.ErrDeliveryNotFound
	}
	return nil
}

var _ repository.DeliveryRepository = (*pgxDeliveryRepository)(nil)

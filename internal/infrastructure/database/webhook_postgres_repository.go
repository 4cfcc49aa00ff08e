package database

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	domainErrors "github.com/wizarding-anonymous/identity_platform/internal/domain/errors"
	"github.com/wizarding-anonymous/identity_platform/internal/domain/models"
	"github.com/wizarding-anonymous/identity_platform/internal/domain/repository"
)

type pgxWebhookRepository struct {
	db *pgxpool.Pool
}

// NewPgxWebhookRepository creates a new webhook repository.
func NewPgxWebhookRepository(db *pgxpool.Pool) repository.WebhookRepository {
	return &pgxWebhookRepository{db: db}
}

const webhookColumns = `
	id, tenant_id, name, target_url, events, secret, active,
	custom_headers, max_retries, retry_delay_seconds, created_at, updated_at`

func scanWebhook(row pgx.Row) (*models.Webhook, error) {
	var (
		webhook      models.Webhook
		eventsJSON   []byte
		headersJSON  []byte
		delaySeconds int64
	)
	err := row.Scan(
		&webhook.ID, &webhook.TenantID, &webhook.Name, &webhook.TargetURL,
		&eventsJSON, &webhook.Secret, &webhook.Active,
		&headersJSON, &webhook.MaxRetries, &delaySeconds,
		&webhook.CreatedAt, &webhook.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domainErrors.ErrWebhookNotFound
		}
		return nil, fmt.Errorf("failed to scan webhook: %w", err)
	}
	if err := json.Unmarshal(eventsJSON, &webhook.Events); err != nil {
		return nil, fmt.Errorf("failed to unmarshal webhook events: %w", err)
	}
	if err := json.Unmarshal(headersJSON, &webhook.CustomHeaders); err != nil {
		return nil, fmt.Errorf("failed to unmarshal webhook headers: %w", err)
	}
	webhook.RetryDelay = time.Duration(delaySeconds) * time.Second
	return &webhook, nil
}

// Create persists a new webhook subscription.
func (r *pgxWebhookRepository) Create(ctx context.Context, webhook *models.Webhook) error {
	eventsJSON, err := json.Marshal(webhook.Events)
	if err != nil {
		return fmt.Errorf("failed to marshal webhook events: %w", err)
	}
	headersJSON, err := json.Marshal(webhook.CustomHeaders)
	if err != nil {
		return fmt.Errorf("failed to marshal webhook headers: %w", err)
	}

	query := `
		INSERT INTO webhooks (
			id, tenant_id, name, target_url, events, secret, active,
			custom_headers, max_retries, retry_delay_seconds, created_at, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)`
	_, err = r.db.Exec(ctx, query,
		webhook.ID, webhook.TenantID, webhook.Name, webhook.TargetURL,
		eventsJSON, webhook.Secret, webhook.Active,
		headersJSON, webhook.MaxRetries, int64(webhook.RetryDelay/time.Second),
		webhook.CreatedAt, webhook.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to create webhook: %w", err)
	}
	return nil
}

// FindByID retrieves a webhook by id.
func (r *pgxWebhookRepository) FindByID(ctx context.Context, id uuid.UUID) (*models.Webhook, error) {
	query := `SELECT ` + webhookColumns + ` FROM webhooks WHERE id = $1`
	return scanWebhook(r.db.QueryRow(ctx, query, id))
}

// ListByTenant returns all of a tenant's webhooks, newest first.
func (r *pgxWebhookRepository) ListByTenant(ctx context.Context, tenantID uuid.UUID) ([]*models.Webhook, error) {
	query := `SELECT ` + webhookColumns + ` FROM webhooks WHERE tenant_id = $1 ORDER BY created_at DESC`
	rows, err := r.db.Query(ctx, query, tenantID)
	if err != nil {
		return nil, fmt.Errorf("failed to list webhooks: %w", err)
	}
	defer rows.Close()
	return collectWebhooks(rows)
}

// ListActiveByEvent returns the active webhooks subscribed to eventType.
func (r *pgxWebhookRepository) ListActiveByEvent(ctx context.Context, eventType string) ([]*models.Webhook, error) {
	query := `SELECT ` + webhookColumns + ` FROM webhooks WHERE active AND events @> $1`
	filter, err := json.Marshal([]string{eventType})
	if err != nil {
		return nil, fmt.Errorf("failed to marshal event filter: %w", err)
	}
	rows, err := r.db.Query(ctx, query, filter)
	if err != nil {
		return nil, fmt.Errorf("failed to list active webhooks: %w", err)
	}
	defer rows.Close()
	return collectWebhooks(rows)
}

func collectWebhooks(rows pgx.Rows) ([]*models.Webhook, error) {
	var webhooks []*models.Webhook
	for rows.Next() {
		webhook, err := scanWebhook(rows)
		if err != nil {
			return nil, err
		}
		webhooks = append(webhooks, webhook)
	}
	return webhooks, rows.Err()
}

// Update rewrites the webhook's mutable fields.
func (r *pgxWebhookRepository) Update(ctx context.Context, webhook *models.Webhook) error {
	eventsJSON, err := json.Marshal(webhook.Events)
	if err != nil {
		return fmt.Errorf("failed to marshal webhook events: %w", err)
	}
	headersJSON, err := json.Marshal(webhook.CustomHeaders)
	if err != nil {
		return fmt.Errorf("failed to marshal webhook headers: %w", err)
	}

	query := `
		UPDATE webhooks SET
			name = $1, target_url = $2, events = $3, secret = $4, active = $5,
			custom_headers = $6, max_retries = $7, retry_delay_seconds = $8,
			updated_at = NOW()
		WHERE id = $9`
	tag, err := r.db.Exec(ctx, query,
		webhook.Name, webhook.TargetURL, eventsJSON, webhook.Secret, webhook.Active,
		headersJSON, webhook.MaxRetries, int64(webhook.RetryDelay/time.Second),
		webhook.ID,
	)
	if err != nil {
		return fmt.Errorf("failed to update webhook: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return domainErrors.ErrWebhookNotFound
	}
	return nil
}

// Delete removes the webhook; deliveries cascade via the foreign key.
func (r *pgxWebhookRepository) Delete(ctx context.Context, id uuid.UUID) error {
	tag, err := r.db.Exec(ctx, `DELETE FROM webhooks WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("failed to delete webhook: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return domainErrors.ErrWebhookNotFound
	}
	return nil
}

var _ repository.WebhookRepository = (*pgxWebhookRepository)(nil)

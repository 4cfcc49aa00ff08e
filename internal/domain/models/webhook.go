package models

import (
	"time"

	"github.com/google/uuid"
)

// Webhook is a tenant-scoped subscription to domain events. Deleting a
// webhook cascades to its deliveries.
type Webhook struct {
	ID            uuid.UUID         `json:"id" db:"id"`
	TenantID      uuid.UUID         `json:"tenant_id" db:"tenant_id"`
	Name          string            `json:"name" db:"name"`
	TargetURL     string            `json:"target_url" db:"target_url"`
	Events        []string          `json:"events" db:"events"`
	Secret        string            `json:"-" db:"secret"`
	Active        bool              `json:"active" db:"active"`
	CustomHeaders map[string]string `json:"custom_headers,omitempty" db:"custom_headers"`
	MaxRetries    int               `json:"max_retries" db:"max_retries"`
	RetryDelay    time.Duration     `json:"retry_delay" db:"retry_delay"`
	CreatedAt     time.Time         `json:"created_at" db:"created_at"`
	UpdatedAt     time.Time         `json:"updated_at" db:"updated_at"`
}

// SubscribedTo reports whether the webhook's event set contains eventType.
func (w *Webhook) SubscribedTo(eventType string) bool {
	for _, e := range w.Events {
		if e == eventType {
			return true
		}
	}
	return false
}

// CreateWebhookRequest carries the data needed to register a webhook.
// Secret is optional; the registry generates one when absent.
type CreateWebhookRequest struct {
	Name          string            `json:"name" binding:"required"`
	TargetURL     string            `json:"target_url" binding:"required,url"`
	Events        []string          `json:"events" binding:"required,min=1"`
	Secret        string            `json:"secret,omitempty"`
	CustomHeaders map[string]string `json:"custom_headers,omitempty"`
	MaxRetries    *int              `json:"max_retries,omitempty"`
	RetryDelay    *time.Duration    `json:"retry_delay,omitempty"`
}

// UpdateWebhookRequest carries a partial webhook update.
type UpdateWebhookRequest struct {
	Name          *string           `json:"name,omitempty"`
	TargetURL     *string           `json:"target_url,omitempty"`
	Events        []string          `json:"events,omitempty"`
	Active        *bool             `json:"active,omitempty"`
	CustomHeaders map[string]string `json:"custom_headers,omitempty"`
	MaxRetries    *int              `json:"max_retries,omitempty"`
	RetryDelay    *time.Duration    `json:"retry_delay,omitempty"`
}

package models

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// DeliveryStatus is the webhook delivery state. Transitions are monotone:
// pending may become success or failed, terminal states never revert.
type DeliveryStatus string

const (
	DeliveryStatusPending DeliveryStatus = "pending"
	DeliveryStatusSuccess DeliveryStatus = "success"
	DeliveryStatusFailed  DeliveryStatus = "failed"
)

// WebhookDelivery records one (webhook, event) dispatch. The row is created
// once and mutated in place across retries; its ID is stable for every
// attempt of the same event occurrence. Attempts never exceeds the webhook's
// max_retries + 1.
type WebhookDelivery struct {
	ID             uuid.UUID       `json:"id" db:"id"`
	WebhookID      uuid.UUID       `json:"webhook_id" db:"webhook_id"`
	EventType      string          `json:"event_type" db:"event_type"`
	Payload        json.RawMessage `json:"payload" db:"payload"` // immutable after creation
	Status         DeliveryStatus  `json:"status" db:"status"`
	Attempts       int             `json:"attempts" db:"attempts"`
	ResponseStatus *int            `json:"response_status,omitempty" db:"response_status"`
	ResponseBody   *string         `json:"response_body,omitempty" db:"response_body"`
	ErrorMessage   *string         `json:"error_message,omitempty" db:"error_message"`
	Signature      string          `json:"signature" db:"signature"`
	DeliveredAt    *time.Time      `json:"delivered_at,omitempty" db:"delivered_at"`
	NextRetryAt    *time.Time      `json:"next_retry_at,omitempty" db:"next_retry_at"`
	CreatedAt      time.Time       `json:"created_at" db:"created_at"`
	UpdatedAt      time.Time       `json:"updated_at" db:"updated_at"`
}

// Terminal reports whether the delivery reached a final state.
func (d *WebhookDelivery) Terminal() bool {
	return d.Status == DeliveryStatusSuccess || d.Status == DeliveryStatusFailed
}

// DeliveryEnvelope is the canonical JSON body POSTed to subscribers. The
// signature is computed over the serialized envelope bytes.
type DeliveryEnvelope struct {
	Event      string          `json:"event"`
	Data       json.RawMessage `json:"data"`
	WebhookID  uuid.UUID       `json:"webhook_id"`
	DeliveryID uuid.UUID       `json:"delivery_id"`
	Timestamp  time.Time       `json:"timestamp"`
}

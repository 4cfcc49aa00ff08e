package models

import "time"

// Domain event types, versioned the way the platform's other services expect
// them on the bus. Webhook subscribers filter on these strings as well.
const (
	EventUserRegistered    = "identity.user.registered.v1"
	EventUserLoginSuccess  = "identity.user.login_success.v1"
	EventUserLoginFailed   = "identity.user.login_failed.v1"
	EventUserEmailVerified = "identity.user.email_verified.v1"
	EventUserDeleted       = "identity.user.deleted.v1"
	EventUserPurged        = "identity.user.purged.v1"
	EventWebhookTest       = "identity.webhook.test.v1"
)

// UserRegisteredPayload is emitted after a successful registration.
type UserRegisteredPayload struct {
	UserID       string    `json:"user_id"`
	TenantID     string    `json:"tenant_id"`
	Email        string    `json:"email"`
	RegisteredAt time.Time `json:"registered_at"`
}

// UserLoginSuccessPayload is emitted after a fully authenticated login.
type UserLoginSuccessPayload struct {
	UserID    string    `json:"user_id"`
	TenantID  string    `json:"tenant_id"`
	Method    string    `json:"method"` // password, magic_link, two_factor
	IPAddress string    `json:"ip_address"`
	LoginAt   time.Time `json:"login_at"`
}

// UserLoginFailedPayload is emitted for security analytics on failed logins.
type UserLoginFailedPayload struct {
	TenantID       string    `json:"tenant_id"`
	AttemptedEmail string    `json:"attempted_email"`
	Reason         string    `json:"reason"`
	IPAddress      string    `json:"ip_address"`
	FailedAt       time.Time `json:"failed_at"`
}

// UserEmailVerifiedPayload is emitted when email verification completes.
type UserEmailVerifiedPayload struct {
	UserID     string    `json:"user_id"`
	TenantID   string    `json:"tenant_id"`
	VerifiedAt time.Time `json:"verified_at"`
}

// UserDeletedPayload is emitted on soft delete and on purge.
type UserDeletedPayload struct {
	UserID    string    `json:"user_id"`
	TenantID  string    `json:"tenant_id"`
	DeletedAt time.Time `json:"deleted_at"`
	Purged    bool      `json:"purged"`
}

// WebhookTestPayload is the body of an explicit test delivery.
type WebhookTestPayload struct {
	WebhookID string    `json:"webhook_id"`
	Message   string    `json:"message"`
	SentAt    time.Time `json:"sent_at"`
}

package models

import (
	"time"

	"github.com/google/uuid"
)

// User is a tenant-scoped identity. Email is unique per tenant, and Version
// is the optimistic-locking stamp: every mutating update bumps it, and a
// writer presenting a stale version is rejected.
type User struct {
	ID              uuid.UUID  `json:"id" db:"id"`
	TenantID        uuid.UUID  `json:"tenant_id" db:"tenant_id"`
	Email           string     `json:"email" db:"email"`
	PasswordHash    string     `json:"-" db:"password_hash"`
	EmailVerifiedAt *time.Time `json:"email_verified_at,omitempty" db:"email_verified_at"`
	TOTPSecret      *string    `json:"-" db:"totp_secret"` // AES-GCM ciphertext, nil unless provisioned
	TOTPEnabled     bool       `json:"totp_enabled" db:"totp_enabled"`
	LastLoginAt     *time.Time `json:"last_login_at,omitempty" db:"last_login_at"`
	LoginCount      int        `json:"login_count" db:"login_count"`
	Version         int64      `json:"version" db:"version"`
	CreatedAt       time.Time  `json:"created_at" db:"created_at"`
	UpdatedAt       time.Time  `json:"updated_at" db:"updated_at"`
	DeletedAt       *time.Time `json:"deleted_at,omitempty" db:"deleted_at"`
}

// EmailVerified reports whether the user has completed email verification.
func (u *User) EmailVerified() bool {
	return u.EmailVerifiedAt != nil
}

// RecoveryCode is a single-use fallback second factor. Ciphertext holds the
// code encrypted with the secret codec; UsedAt is set exactly once.
type RecoveryCode struct {
	ID         uuid.UUID  `json:"id" db:"id"`
	UserID     uuid.UUID  `json:"user_id" db:"user_id"`
	Ciphertext string     `json:"-" db:"ciphertext"`
	UsedAt     *time.Time `json:"used_at,omitempty" db:"used_at"`
	CreatedAt  time.Time  `json:"created_at" db:"created_at"`
}

// RegisterRequest carries the data needed to create a new user.
type RegisterRequest struct {
	TenantID uuid.UUID `json:"tenant_id" binding:"required"`
	Email    string    `json:"email" binding:"required,email"`
	Password string    `json:"password" binding:"required,min=8"`
}

// LoginRequest carries password-login credentials.
type LoginRequest struct {
	TenantID uuid.UUID `json:"tenant_id" binding:"required"`
	Email    string    `json:"email" binding:"required,email"`
	Password string    `json:"password" binding:"required"`
}

// UserResponse structures the user data returned by API endpoints.
type UserResponse struct {
	ID              uuid.UUID  `json:"id"`
	TenantID        uuid.UUID  `json:"tenant_id"`
	Email           string     `json:"email"`
	EmailVerifiedAt *time.Time `json:"email_verified_at,omitempty"`
	TOTPEnabled     bool       `json:"totp_enabled"`
	LastLoginAt     *time.Time `json:"last_login_at,omitempty"`
	LoginCount      int        `json:"login_count"`
	CreatedAt       time.Time  `json:"created_at"`
}

// ToResponse converts a User model to an API UserResponse.
func (u *User) ToResponse() UserResponse {
	return UserResponse{
		ID:              u.ID,
		TenantID:        u.TenantID,
		Email:           u.Email,
		EmailVerifiedAt: u.EmailVerifiedAt,
		TOTPEnabled:     u.TOTPEnabled,
		LastLoginAt:     u.LastLoginAt,
		LoginCount:      u.LoginCount,
		CreatedAt:       u.CreatedAt,
	}
}

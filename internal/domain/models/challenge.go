package models

import (
	"time"

	"github.com/google/uuid"
)

// LoginChallenge is the ephemeral state of an in-progress multi-step login.
// It lives only in the cache tier, keyed by an opaque random token, and is
// consumed (deleted) on its first successful resolution.
type LoginChallenge struct {
	TenantID uuid.UUID `json:"tenant_id"`
	Email    string    `json:"email"`
	IssuedAt time.Time `json:"issued_at"`
	// OriginMagicLinkToken chains a challenge back to the magic link that
	// produced it, so the link can be invalidated once 2FA completes.
	OriginMagicLinkToken string `json:"origin_magic_link_token,omitempty"`
}

// MagicLinkToken is the cache-tier state behind a passwordless login link.
// Single-use: resolution atomically removes it.
type MagicLinkToken struct {
	TenantID uuid.UUID `json:"tenant_id"`
	Email    string    `json:"email"`
	IssuedAt time.Time `json:"issued_at"`
}

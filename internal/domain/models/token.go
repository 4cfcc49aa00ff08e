package models

import (
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// TokenType distinguishes the purposes a signed token can serve.
type TokenType string

const (
	TokenTypeAccess  TokenType = "access"
	TokenTypeRefresh TokenType = "refresh"
)

// Claims are the JWT claims embedded in every issued token.
type Claims struct {
	UserID    uuid.UUID `json:"user_id"`
	TenantID  uuid.UUID `json:"tenant_id"`
	TokenType TokenType `json:"token_type"`
	jwt.RegisteredClaims
}

// TokenPair bundles an access token with its longer-lived refresh window.
type TokenPair struct {
	AccessToken      string `json:"access_token"`
	RefreshToken     string `json:"refresh_token"`
	ExpiresIn        int64  `json:"expires_in"`
	RefreshExpiresIn int64  `json:"refresh_expires_in"`
	TokenType        string `json:"token_type"`
}

// LoginResult is the outcome of an authentication flow step. Exactly one of
// Tokens or ChallengeToken is set: a populated ChallengeToken means the flow
// is parked in the two-factor-pending state.
type LoginResult struct {
	User           *User      `json:"user,omitempty"`
	Tokens         *TokenPair `json:"tokens,omitempty"`
	ChallengeToken string     `json:"challenge_token,omitempty"`
}

// TwoFactorPending reports whether the login still needs a second factor.
func (r *LoginResult) TwoFactorPending() bool {
	return r.ChallengeToken != ""
}

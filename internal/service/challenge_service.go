package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/wizarding-anonymous/identity_platform/internal/config"
	domainErrors "github.com/wizarding-anonymous/identity_platform/internal/domain/errors"
	"github.com/wizarding-anonymous/identity_platform/internal/domain/models"
	"github.com/wizarding-anonymous/identity_platform/internal/infrastructure/security"
)

// ChallengeCache is the TTL key-value tier behind the challenge broker.
type ChallengeCache interface {
	Put(ctx context.Context, kind, token string, value interface{}, ttl time.Duration) error
	Consume(ctx context.Context, kind, token string, dest interface{}) error
	Peek(ctx context.Context, kind, token string, dest interface{}) error
	Delete(ctx context.Context, kind, token string) error
}

// RateLimiter is the shared fixed-window limiter.
type RateLimiter interface {
	Allow(ctx context.Context, key string, rule config.RateLimitRule) (allowed bool, retryAfter time.Duration, err error)
}

const (
	kindLoginChallenge = "login"
	kindMagicLink      = "magiclink"

	// Records outlive their logical TTL by this much so a late resolution
	// can be answered with "expired" instead of "not found".
	expiryGrace = 5 * time.Minute

	challengeTokenBytes = 32
)

// ChallengeService is the broker for short-lived, single-use login state:
// 2FA challenges and magic-link tokens.
type ChallengeService struct {
	cache   ChallengeCache
	limiter RateLimiter
	cfg     *config.SecurityConfig
	logger  *zap.Logger
}

// NewChallengeService creates a ChallengeService.
func NewChallengeService(cache ChallengeCache, limiter RateLimiter, cfg *config.SecurityConfig, logger *zap.Logger) *ChallengeService {
	return &ChallengeService{cache: cache, limiter: limiter, cfg: cfg, logger: logger}
}

// CreateChallenge parks a login pending its second factor and returns the
// opaque token the client must present alongside the TOTP code.
// originMagicLink carries the magic-link token that produced this challenge,
// or "" for the password path.
func (s *ChallengeService) CreateChallenge(ctx context.Context, tenantID uuid.UUID, email, originMagicLink string) (string, error) {
	token, err := security.GenerateOpaqueToken(challengeTokenBytes)
	if err != nil {
		return "", fmt.Errorf("failed to generate challenge token: %w", err)
	}

	challenge := models.LoginChallenge{
		TenantID:             tenantID,
		Email:                email,
		IssuedAt:             time.Now().UTC(),
		OriginMagicLinkToken: originMagicLink,
	}
	ttl := s.cfg.Challenge.ChallengeTTL
	if err := s.cache.Put(ctx, kindLoginChallenge, token, challenge, ttl+expiryGrace); err != nil {
		return "", err
	}
	return token, nil
}

// ResolveChallenge consumes the challenge atomically: concurrent requests
// presenting the same token resolve it at most once. A token past its TTL
// but still within the grace window reports ChallengeExpired.
func (s *ChallengeService) ResolveChallenge(ctx context.Context, token string) (*models.LoginChallenge, error) {
	var challenge models.LoginChallenge
	if err := s.cache.Consume(ctx, kindLoginChallenge, token, &challenge); err != nil {
		return nil, err
	}
	if time.Since(challenge.IssuedAt) > s.cfg.Challenge.ChallengeTTL {
		return nil, domainErrors.ErrChallengeExpired
	}
	return &challenge, nil
}

// RestoreChallenge puts a consumed challenge back under its original token.
// A wrong second-factor code must not burn the challenge, so the resolver
// re-parks it with whatever lifetime it had left.
func (s *ChallengeService) RestoreChallenge(ctx context.Context, token string, challenge *models.LoginChallenge) error {
	remaining := s.cfg.Challenge.ChallengeTTL - time.Since(challenge.IssuedAt)
	if remaining <= 0 {
		return nil
	}
	return s.cache.Put(ctx, kindLoginChallenge, token, challenge, remaining+expiryGrace)
}

// CreateMagicLink mints a passwordless login token for email, bounded by the
// per-email send limit. A limited request fails with RateLimited and does
// not mint anything.
func (s *ChallengeService) CreateMagicLink(ctx context.Context, tenantID uuid.UUID, email string) (string, error) {
	allowed, retryAfter, err := s.limiter.Allow(ctx, "magiclink:"+email, s.cfg.RateLimiting.MagicLinkPerEmail)
	if err != nil {
		s.logger.Error("Magic link rate limiter failed", zap.Error(err), zap.String("email", email))
	}
	if !allowed {
		return "", domainErrors.NewRateLimited(retryAfter)
	}

	token, err := security.GenerateOpaqueToken(challengeTokenBytes)
	if err != nil {
		return "", fmt.Errorf("failed to generate magic link token: %w", err)
	}

	link := models.MagicLinkToken{
		TenantID: tenantID,
		Email:    email,
		IssuedAt: time.Now().UTC(),
	}
	ttl := s.cfg.Challenge.MagicLinkTTL
	if err := s.cache.Put(ctx, kindMagicLink, token, link, ttl+expiryGrace); err != nil {
		return "", err
	}
	return token, nil
}

// ConsumeMagicLink atomically spends the token. Used on the direct
// (no-2FA) completion path.
func (s *ChallengeService) ConsumeMagicLink(ctx context.Context, token string) (*models.MagicLinkToken, error) {
	var link models.MagicLinkToken
	if err := s.cache.Consume(ctx, kindMagicLink, token, &link); err != nil {
		return nil, err
	}
	if time.Since(link.IssuedAt) > s.cfg.Challenge.MagicLinkTTL {
		return nil, domainErrors.ErrChallengeExpired
	}
	return &link, nil
}

// PeekMagicLink reads the token without spending it. The 2FA chaining path
// must leave the link alive until the second factor succeeds.
func (s *ChallengeService) PeekMagicLink(ctx context.Context, token string) (*models.MagicLinkToken, error) {
	var link models.MagicLinkToken
	if err := s.cache.Peek(ctx, kindMagicLink, token, &link); err != nil {
		return nil, err
	}
	if time.Since(link.IssuedAt) > s.cfg.Challenge.MagicLinkTTL {
		return nil, domainErrors.ErrChallengeExpired
	}
	return &link, nil
}

// CleanupMagicLink removes a chained magic-link token once its 2FA step has
// completed. Best effort: a missing token is not an error.
func (s *ChallengeService) CleanupMagicLink(ctx context.Context, token string) {
	if token == "" {
		return
	}
	if err := s.cache.Delete(ctx, kindMagicLink, token); err != nil && !errors.Is(err, domainErrors.ErrChallengeNotFound) {
		s.logger.Warn("Failed to clean up chained magic link", zap.Error(err))
	}
}

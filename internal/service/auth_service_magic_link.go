package service

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"go.uber.org/zap"

	domainErrors "github.com/wizarding-anonymous/identity_platform/internal/domain/errors"
	"github.com/wizarding-anonymous/identity_platform/internal/domain/models"
	"github.com/wizarding-anonymous/identity_platform/internal/utils/metrics"
)

// RequestMagicLink mints a passwordless login token for the address and
// returns it for the mail dispatcher. An unknown address succeeds without
// minting anything so the endpoint cannot be used for account enumeration.
func (s *AuthService) RequestMagicLink(ctx context.Context, tenantID uuid.UUID, email string) (string, error) {
	_, err := s.userRepo.FindByEmail(ctx, tenantID, email)
	if err != nil {
		if errors.Is(err, domainErrors.ErrUserNotFound) {
			metrics.MagicLinkRequestsTotal.WithLabelValues("unknown_user").Inc()
			s.logger.Info("Magic link requested for unknown address",
				zap.String("tenant_id", tenantID.String()))
			return "", nil
		}
		return "", err
	}

	token, err := s.challenges.CreateMagicLink(ctx, tenantID, email)
	if err != nil {
		if _, limited := domainErrors.IsRateLimited(err); limited {
			metrics.MagicLinkRequestsTotal.WithLabelValues("rate_limited").Inc()
		}
		return "", err
	}

	metrics.MagicLinkRequestsTotal.WithLabelValues("sent").Inc()
	s.logger.Info("Magic link issued", zap.String("tenant_id", tenantID.String()))
	return token, nil
}

// VerifyMagicLink logs the user in with a magic-link token. When the account
// has 2FA enabled the link is only peeked, not spent: the flow parks in the
// two-factor-pending state and the link stays valid until the second factor
// succeeds.
func (s *AuthService) VerifyMagicLink(ctx context.Context, token string) (*models.LoginResult, error) {
	link, err := s.challenges.PeekMagicLink(ctx, token)
	if err != nil {
		return nil, err
	}

	user, err := s.userRepo.FindByEmail(ctx, link.TenantID, link.Email)
	if err != nil {
		if errors.Is(err, domainErrors.ErrUserNotFound) {
			return nil, domainErrors.ErrInvalidCredentials
		}
		return nil, err
	}

	if user.TOTPEnabled {
		challengeToken, err := s.challenges.CreateChallenge(ctx, user.TenantID, user.Email, token)
		if err != nil {
			return nil, err
		}
		s.logger.Info("Magic link login parked pending second factor",
			zap.String("user_id", user.ID.String()))
		return &models.LoginResult{User: user, ChallengeToken: challengeToken}, domainErrors.ErrTwoFactorRequired
	}

	// No second factor: spend the link now. The consume is the atomic
	// single-use gate, so a concurrently spent link fails here.
	if _, err := s.challenges.ConsumeMagicLink(ctx, token); err != nil {
		return nil, err
	}

	return s.completeLogin(ctx, user, "magic_link", clientIP(ctx))
}

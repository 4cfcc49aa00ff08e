package service

import (
	"context"
	"time"

	"go.uber.org/zap"

	domainErrors "github.com/wizarding-anonymous/identity_platform/internal/domain/errors"
	"github.com/wizarding-anonymous/identity_platform/internal/domain/models"
	"github.com/wizarding-anonymous/identity_platform/internal/utils/metrics"
)

// VerifyEmail validates a signed verification link and marks the user's
// email as verified. Every check fails closed: a bad signature, an expired
// link and a hash that does not match the current address all reject.
func (s *AuthService) VerifyEmail(ctx context.Context, id, hash, expires, signature string) (*models.User, error) {
	userID, err := s.urls.VerifyParams(id, hash, expires, signature)
	if err != nil {
		metrics.EmailVerificationsTotal.WithLabelValues("rejected").Inc()
		return nil, err
	}

	user, err := s.userRepo.FindByID(ctx, userID)
	if err != nil {
		return nil, err
	}

	// The hash binds the link to the address it was sent to. If the email
	// changed since the link was issued, the link is dead.
	if !s.urls.MatchesEmail(hash, user.Email) {
		metrics.EmailVerificationsTotal.WithLabelValues("rejected").Inc()
		return nil, domainErrors.ErrTokenInvalid
	}

	if user.EmailVerified() {
		metrics.EmailVerificationsTotal.WithLabelValues("already_verified").Inc()
		return nil, domainErrors.ErrAlreadyVerified
	}

	now := time.Now().UTC()
	user.EmailVerifiedAt = &now
	if err := s.userRepo.Update(ctx, user); err != nil {
		return nil, err
	}

	s.bus.Publish(ctx, models.EventUserEmailVerified, user.ID.String(), models.UserEmailVerifiedPayload{
		UserID:     user.ID.String(),
		TenantID:   user.TenantID.String(),
		VerifiedAt: now,
	})

	metrics.EmailVerificationsTotal.WithLabelValues("success").Inc()
	s.logger.Info("Email verified", zap.String("user_id", user.ID.String()))
	return user, nil
}

// ResendVerification issues a fresh signed link for a not-yet-verified user.
func (s *AuthService) ResendVerification(ctx context.Context, req *models.LoginRequest) (string, error) {
	user, err := s.userRepo.FindByEmail(ctx, req.TenantID, req.Email)
	if err != nil {
		return "", err
	}

	ok, err := s.hasher.Verify(req.Password, user.PasswordHash)
	if err != nil {
		return "", err
	}
	if !ok {
		return "", domainErrors.ErrInvalidCredentials
	}
	if user.EmailVerified() {
		return "", domainErrors.ErrAlreadyVerified
	}

	return s.urls.VerificationURL(user.ID, user.Email, s.cfg.JWT.EmailVerificationTTL), nil
}

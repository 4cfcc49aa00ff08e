package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	domainErrors "github.com/wizarding-anonymous/identity_platform/internal/domain/errors"
	"github.com/wizarding-anonymous/identity_platform/internal/domain/models"
	"github.com/wizarding-anonymous/identity_platform/internal/utils/metrics"
)

// Register creates a new unverified user and mails out a signed verification
// link. The returned URL is handed to the mail dispatcher by the caller.
func (s *AuthService) Register(ctx context.Context, req *models.RegisterRequest) (*models.User, string, error) {
	hash, err := s.hasher.Hash(req.Password)
	if err != nil {
		return nil, "", fmt.Errorf("failed to hash password: %w", err)
	}

	now := time.Now().UTC()
	user := &models.User{
		ID:           uuid.New(),
		TenantID:     req.TenantID,
		Email:        req.Email,
		PasswordHash: hash,
		Version:      1,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if err := s.userRepo.Create(ctx, user); err != nil {
		return nil, "", err
	}

	verificationURL := s.urls.VerificationURL(user.ID, user.Email, s.cfg.JWT.EmailVerificationTTL)

	s.bus.Publish(ctx, models.EventUserRegistered, user.ID.String(), models.UserRegisteredPayload{
		UserID:       user.ID.String(),
		TenantID:     user.TenantID.String(),
		Email:        user.Email,
		RegisteredAt: now,
	})

	s.logger.Info("User registered",
		zap.String("user_id", user.ID.String()),
		zap.String("tenant_id", user.TenantID.String()))
	return user, verificationURL, nil
}

// Login runs the password authentication flow. The per-IP rate limit is
// checked before credentials are even looked at, so a limited caller learns
// nothing about account existence. Depending on the account state the flow
// terminates with tokens, parks in the two-factor-pending state, or fails.
func (s *AuthService) Login(ctx context.Context, req *models.LoginRequest) (*models.LoginResult, error) {
	ip := clientIP(ctx)

	allowed, retryAfter, err := s.limiter.Allow(ctx, "login:"+ip, s.cfg.Security.RateLimiting.LoginPerIP)
	if err != nil {
		s.logger.Error("Login rate limiter failed", zap.Error(err), zap.String("ip", ip))
	}
	if !allowed {
		metrics.LoginAttemptsTotal.WithLabelValues("rate_limited").Inc()
		return nil, domainErrors.NewRateLimited(retryAfter)
	}

	user, err := s.userRepo.FindByEmail(ctx, req.TenantID, req.Email)
	if err != nil {
		if errors.Is(err, domainErrors.ErrUserNotFound) {
			s.recordLoginFailure(ctx, req.TenantID, req.Email, "unknown_user", ip)
			return nil, domainErrors.ErrInvalidCredentials
		}
		return nil, err
	}

	ok, err := s.hasher.Verify(req.Password, user.PasswordHash)
	if err != nil {
		return nil, fmt.Errorf("failed to verify password: %w", err)
	}
	if !ok {
		s.recordLoginFailure(ctx, req.TenantID, req.Email, "bad_password", ip)
		return nil, domainErrors.ErrInvalidCredentials
	}

	if !user.EmailVerified() {
		metrics.LoginAttemptsTotal.WithLabelValues("unverified").Inc()
		return nil, domainErrors.ErrEmailVerificationRequired
	}

	if user.TOTPEnabled {
		challengeToken, err := s.challenges.CreateChallenge(ctx, user.TenantID, user.Email, "")
		if err != nil {
			return nil, err
		}
		metrics.LoginAttemptsTotal.WithLabelValues("two_factor_pending").Inc()
		s.logger.Info("Login parked pending second factor",
			zap.String("user_id", user.ID.String()))
		return &models.LoginResult{User: user, ChallengeToken: challengeToken}, domainErrors.ErrTwoFactorRequired
	}

	return s.completeLogin(ctx, user, "password", ip)
}

// completeLogin is the shared terminal step of every successful flow:
// it stamps the login, issues the token pair and publishes the event.
func (s *AuthService) completeLogin(ctx context.Context, user *models.User, method, ip string) (*models.LoginResult, error) {
	now := time.Now().UTC()
	if err := s.userRepo.RecordLogin(ctx, user.ID, now); err != nil {
		s.logger.Error("Failed to record login", zap.Error(err), zap.String("user_id", user.ID.String()))
	}
	user.LastLoginAt = &now
	user.LoginCount++

	tokens, err := s.tokens.Issue(user)
	if err != nil {
		return nil, err
	}

	s.bus.Publish(ctx, models.EventUserLoginSuccess, user.ID.String(), models.UserLoginSuccessPayload{
		UserID:    user.ID.String(),
		TenantID:  user.TenantID.String(),
		Method:    method,
		IPAddress: ip,
		LoginAt:   now,
	})

	metrics.LoginAttemptsTotal.WithLabelValues("success").Inc()
	s.logger.Info("Login succeeded",
		zap.String("user_id", user.ID.String()),
		zap.String("method", method))
	return &models.LoginResult{User: user, Tokens: tokens}, nil
}

func (s *AuthService) recordLoginFailure(ctx context.Context, tenantID uuid.UUID, email, reason, ip string) {
	metrics.LoginAttemptsTotal.WithLabelValues("failure").Inc()
	s.bus.Publish(ctx, models.EventUserLoginFailed, email, models.UserLoginFailedPayload{
		TenantID:       tenantID.String(),
		AttemptedEmail: email,
		Reason:         reason,
		IPAddress:      ip,
		FailedAt:       time.Now().UTC(),
	})
	s.logger.Warn("Login failed",
		zap.String("tenant_id", tenantID.String()),
		zap.String("reason", reason),
		zap.String("ip", ip))
}

package service

import (
	"context"
	"crypto/subtle"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	domainErrors "github.com/wizarding-anonymous/identity_platform/internal/domain/errors"
	"github.com/wizarding-anonymous/identity_platform/internal/domain/models"
	"github.com/wizarding-anonymous/identity_platform/internal/infrastructure/security"
	"github.com/wizarding-anonymous/identity_platform/internal/utils/metrics"
)

// TwoFactorSetup is the provisioning data returned when 2FA setup starts.
// The secret is shown to the user exactly once.
type TwoFactorSetup struct {
	Secret     string `json:"secret"`
	OTPAuthURL string `json:"otpauth_url"`
}

// SetupTwoFactor provisions a TOTP secret for the user. The secret is stored
// encrypted but 2FA stays off until ActivateTwoFactor confirms the user's
// authenticator produces valid codes.
func (s *AuthService) SetupTwoFactor(ctx context.Context, userID uuid.UUID) (*TwoFactorSetup, error) {
	user, err := s.userRepo.FindByID(ctx, userID)
	if err != nil {
		return nil, err
	}
	if user.TOTPEnabled {
		return nil, domainErrors.Err2FAAlreadyEnabled
	}

	secret, otpauthURL, err := s.totp.GenerateSecret(user.Email)
	if err != nil {
		return nil, fmt.Errorf("failed to generate totp secret: %w", err)
	}
	ciphertext, err := s.codec.Encrypt(secret)
	if err != nil {
		return nil, fmt.Errorf("failed to encrypt totp secret: %w", err)
	}

	user.TOTPSecret = &ciphertext
	if err := s.userRepo.Update(ctx, user); err != nil {
		return nil, err
	}

	s.logger.Info("Two-factor secret provisioned", zap.String("user_id", userID.String()))
	return &TwoFactorSetup{Secret: secret, OTPAuthURL: otpauthURL}, nil
}

// ActivateTwoFactor turns 2FA on after the user proves possession of the
// provisioned secret with a valid code. It mints a fresh set of recovery
// codes and returns them in plaintext, the only time they are ever visible.
func (s *AuthService) ActivateTwoFactor(ctx context.Context, userID uuid.UUID, code string) ([]string, error) {
	user, err := s.userRepo.FindByID(ctx, userID)
	if err != nil {
		return nil, err
	}
	if user.TOTPEnabled {
		return nil, domainErrors.Err2FAAlreadyEnabled
	}
	if user.TOTPSecret == nil {
		return nil, domainErrors.Err2FANotEnabled
	}

	secret, err := s.codec.Decrypt(*user.TOTPSecret)
	if err != nil {
		return nil, fmt.Errorf("failed to decrypt totp secret: %w", err)
	}
	if !s.totp.ValidateCode(secret, code) {
		return nil, domainErrors.ErrInvalidCode
	}

	plaintexts, stored, err := s.mintRecoveryCodes(user.ID)
	if err != nil {
		return nil, err
	}

	// The version-guarded user write goes first: a stale-version failure
	// here must leave any previously stored recovery codes untouched.
	user.TOTPEnabled = true
	if err := s.userRepo.Update(ctx, user); err != nil {
		return nil, err
	}
	if err := s.recoveryRepo.ReplaceForUser(ctx, user.ID, stored); err != nil {
		user.TOTPEnabled = false
		if revertErr := s.userRepo.Update(ctx, user); revertErr != nil {
			s.logger.Error("Failed to revert two-factor enable after recovery code write failure",
				zap.Error(revertErr),
				zap.String("user_id", userID.String()))
		}
		return nil, err
	}

	s.logger.Info("Two-factor enabled", zap.String("user_id", userID.String()))
	return plaintexts, nil
}

// DisableTwoFactor turns 2FA off. A valid current code is required so a
// hijacked session cannot silently weaken the account.
func (s *AuthService) DisableTwoFactor(ctx context.Context, userID uuid.UUID, code string) error {
	user, err := s.userRepo.FindByID(ctx, userID)
	if err != nil {
		return err
	}
	if !user.TOTPEnabled || user.TOTPSecret == nil {
		return domainErrors.Err2FANotEnabled
	}

	secret, err := s.codec.Decrypt(*user.TOTPSecret)
	if err != nil {
		return fmt.Errorf("failed to decrypt totp secret: %w", err)
	}
	if !s.totp.ValidateCode(secret, code) {
		return domainErrors.ErrInvalidCode
	}

	user.TOTPEnabled = false
	user.TOTPSecret = nil
	if err := s.userRepo.Update(ctx, user); err != nil {
		return err
	}
	if err := s.recoveryRepo.DeleteForUser(ctx, userID); err != nil {
		s.logger.Error("Failed to delete recovery codes", zap.Error(err), zap.String("user_id", userID.String()))
	}

	s.logger.Info("Two-factor disabled", zap.String("user_id", userID.String()))
	return nil
}

// VerifyTwoFactor resolves a pending login challenge with a TOTP code or a
// recovery code and completes the login. The challenge is spent atomically,
// so two concurrent requests with the same token race for a single
// resolution. A wrong code puts the challenge back for another try.
func (s *AuthService) VerifyTwoFactor(ctx context.Context, challengeToken, code string) (*models.LoginResult, error) {
	challenge, err := s.challenges.ResolveChallenge(ctx, challengeToken)
	if err != nil {
		if errors.Is(err, domainErrors.ErrChallengeExpired) {
			metrics.TwoFactorAttemptsTotal.WithLabelValues("expired").Inc()
		}
		return nil, err
	}

	user, err := s.userRepo.FindByEmail(ctx, challenge.TenantID, challenge.Email)
	if err != nil {
		return nil, err
	}
	if !user.TOTPEnabled || user.TOTPSecret == nil {
		return nil, domainErrors.Err2FANotEnabled
	}

	valid, err := s.checkSecondFactor(ctx, user, code)
	if err != nil {
		return nil, err
	}
	if !valid {
		if restoreErr := s.challenges.RestoreChallenge(ctx, challengeToken, challenge); restoreErr != nil {
			s.logger.Error("Failed to restore challenge after bad code", zap.Error(restoreErr))
		}
		metrics.TwoFactorAttemptsTotal.WithLabelValues("failure").Inc()
		return nil, domainErrors.ErrInvalidCode
	}

	// The chained magic link stays alive until this point so a failed second
	// factor does not strand the user without a usable link.
	s.challenges.CleanupMagicLink(ctx, challenge.OriginMagicLinkToken)

	metrics.TwoFactorAttemptsTotal.WithLabelValues("success").Inc()
	return s.completeLogin(ctx, user, "two_factor", clientIP(ctx))
}

// checkSecondFactor accepts either a TOTP code or a recovery code. A
// recovery code match consumes it: the row is marked used under a guard
// that fails if another request got there first.
func (s *AuthService) checkSecondFactor(ctx context.Context, user *models.User, code string) (bool, error) {
	secret, err := s.codec.Decrypt(*user.TOTPSecret)
	if err != nil {
		return false, fmt.Errorf("failed to decrypt totp secret: %w", err)
	}
	if s.totp.ValidateCode(secret, code) {
		return true, nil
	}

	stored, err := s.recoveryRepo.FindActiveByUserID(ctx, user.ID)
	if err != nil {
		return false, err
	}
	for _, rc := range stored {
		plaintext, err := s.codec.Decrypt(rc.Ciphertext)
		if err != nil {
			s.logger.Error("Failed to decrypt recovery code", zap.Error(err), zap.String("code_id", rc.ID.String()))
			continue
		}
		if subtle.ConstantTimeCompare([]byte(plaintext), []byte(code)) == 1 {
			if err := s.recoveryRepo.MarkUsed(ctx, rc.ID); err != nil {
				if errors.Is(err, domainErrors.ErrInvalidCode) {
					return false, nil
				}
				return false, err
			}
			s.logger.Info("Recovery code consumed",
				zap.String("user_id", user.ID.String()),
				zap.String("code_id", rc.ID.String()))
			return true, nil
		}
	}
	return false, nil
}

func (s *AuthService) mintRecoveryCodes(userID uuid.UUID) ([]string, []*models.RecoveryCode, error) {
	count := s.cfg.Security.Challenge.RecoveryCodeCount
	plaintexts := make([]string, 0, count)
	stored := make([]*models.RecoveryCode, 0, count)
	now := time.Now().UTC()
	for i := 0; i < count; i++ {
		code, err := security.GenerateRecoveryCode()
		if err != nil {
			return nil, nil, fmt.Errorf("failed to generate recovery code: %w", err)
		}
		ciphertext, err := s.codec.Encrypt(code)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to encrypt recovery code: %w", err)
		}
		plaintexts = append(plaintexts, code)
		stored = append(stored, &models.RecoveryCode{
			ID:         uuid.New(),
			UserID:     userID,
			Ciphertext: ciphertext,
			CreatedAt:  now,
		})
	}
	return plaintexts, stored, nil
}

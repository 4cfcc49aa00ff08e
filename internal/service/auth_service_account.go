package service

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	domainErrors "github.com/wizarding-anonymous/identity_platform/internal/domain/errors"
	"github.com/wizarding-anonymous/identity_platform/internal/domain/models"
)

// ChangePassword swaps the credential after re-verifying the current one.
// The optimistic-lock guard on the write surfaces VersionConflict to the
// caller when a concurrent update won the race.
func (s *AuthService) ChangePassword(ctx context.Context, subject *models.Claims, userID uuid.UUID, current, proposed string) error {
	user, err := s.userRepo.FindByID(ctx, userID)
	if err != nil {
		return err
	}
	if err := Authorize(subject, ActionWrite, Resource{TenantID: user.TenantID, OwnerID: user.ID}); err != nil {
		return err
	}

	ok, err := s.hasher.Verify(current, user.PasswordHash)
	if err != nil {
		return fmt.Errorf("failed to verify password: %w", err)
	}
	if !ok {
		return domainErrors.ErrInvalidCredentials
	}

	hash, err := s.hasher.Hash(proposed)
	if err != nil {
		return fmt.Errorf("failed to hash password: %w", err)
	}
	user.PasswordHash = hash
	if err := s.userRepo.Update(ctx, user); err != nil {
		return err
	}

	s.logger.Info("Password changed", zap.String("user_id", userID.String()))
	return nil
}

// DeleteAccount soft-deletes the user. The row survives for auditability;
// lookups exclude it and the email slot frees up for re-registration.
func (s *AuthService) DeleteAccount(ctx context.Context, subject *models.Claims, userID uuid.UUID) error {
	user, err := s.userRepo.FindByIDIncludingDeleted(ctx, userID)
	if err != nil {
		return err
	}
	if err := Authorize(subject, ActionDelete, Resource{TenantID: user.TenantID, OwnerID: user.ID}); err != nil {
		return err
	}
	if user.DeletedAt != nil {
		return domainErrors.ErrUserDeleted
	}
	if err := s.userRepo.SoftDelete(ctx, userID); err != nil {
		return err
	}

	s.bus.Publish(ctx, models.EventUserDeleted, userID.String(), models.UserDeletedPayload{
		UserID:    userID.String(),
		TenantID:  user.TenantID.String(),
		DeletedAt: time.Now().UTC(),
		Purged:    false,
	})
	s.logger.Info("Account soft-deleted", zap.String("user_id", userID.String()))
	return nil
}

// PurgeAccount irreversibly removes the user row and everything attached to
// it. Recovery codes and deliveries cascade at the database level. The
// lookup must see tombstoned rows, since purge usually follows a soft
// delete.
func (s *AuthService) PurgeAccount(ctx context.Context, subject *models.Claims, userID uuid.UUID) error {
	user, err := s.userRepo.FindByIDIncludingDeleted(ctx, userID)
	if err != nil {
		return err
	}
	if err := Authorize(subject, ActionDelete, Resource{TenantID: user.TenantID, OwnerID: user.ID}); err != nil {
		return err
	}
	if err := s.userRepo.Purge(ctx, userID); err != nil {
		return err
	}

	s.bus.Publish(ctx, models.EventUserPurged, userID.String(), models.UserDeletedPayload{
		UserID:    userID.String(),
		TenantID:  user.TenantID.String(),
		DeletedAt: time.Now().UTC(),
		Purged:    true,
	})
	s.logger.Info("Account purged", zap.String("user_id", userID.String()))
	return nil
}

// GetUser returns the user by id, confined to the subject's tenant.
func (s *AuthService) GetUser(ctx context.Context, subject *models.Claims, userID uuid.UUID) (*models.User, error) {
	user, err := s.userRepo.FindByID(ctx, userID)
	if err != nil {
		return nil, err
	}
	if err := Authorize(subject, ActionRead, Resource{TenantID: user.TenantID}); err != nil {
		return nil, err
	}
	return user, nil
}
